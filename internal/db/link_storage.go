package db

import (
	"context"

	"github.com/avolkhin/linkcut/internal/types"
)

// LinkStorage is the durable store of links and their click log. It is the
// only shared mutable state in the service and the sole arbiter of slug
// uniqueness; implementations must be safe for concurrent use.
type LinkStorage interface {
	// FindBySlug returns the link for an exact, case-sensitive slug match,
	// or types.ErrNotFound.
	FindBySlug(ctx context.Context, slug string) (types.ShortLink, error)
	// Create inserts the link, failing with types.ErrSlugTaken if the slug
	// is already present. The check and the insert are one atomic step.
	Create(ctx context.Context, link types.ShortLink) error
	// RecordClick appends a click row and increments the owning link's
	// counter as a single atomic unit: both happen or neither does.
	RecordClick(ctx context.Context, click types.Click) error
	// ListAll returns every link, newest first.
	ListAll(ctx context.Context) ([]types.ShortLink, error)
	// ListByOwner returns the owner's links, newest first.
	ListByOwner(ctx context.Context, ownerID string) ([]types.ShortLink, error)
	// Stats returns service-wide totals.
	Stats(ctx context.Context) (types.Stats, error)
	// Ping reports backend reachability.
	Ping(ctx context.Context) error
	// Close releases the backend.
	Close(ctx context.Context) error
}
