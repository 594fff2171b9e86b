// Package urlshort implements the link service: creation with custom or
// generated slugs and resolution with click accounting. All uniqueness
// guarantees come from the storage layer; this package only decides the
// retry policy around them.
package urlshort

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/avolkhin/linkcut/config"
	"github.com/avolkhin/linkcut/internal/db"
	"github.com/avolkhin/linkcut/internal/slug"
	"github.com/avolkhin/linkcut/internal/types"
)

// maxGenerateAttempts bounds the collision retry loop for generated slugs.
// Exhausting it means the slug space is undersized for current load, which
// is an operational signal rather than a client error.
const maxGenerateAttempts = 5

// ErrSlugsExhausted is returned when generated slugs kept colliding.
var ErrSlugsExhausted = errors.New("could not generate a unique slug")

// ValidationError rejects malformed input before any storage call.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// Generator produces candidate slugs. Swapped out in tests to force
// collisions.
type Generator func() string

// Service orchestrates slug generation and storage.
type Service struct {
	storage  db.LinkStorage
	cfg      *config.Config
	logger   *zap.SugaredLogger
	generate Generator

	clickFailures atomic.Int64
}

// NewService creates a link service using the default slug generator.
func NewService(storage db.LinkStorage, cfg *config.Config, logger *zap.SugaredLogger) *Service {
	return &Service{
		storage:  storage,
		cfg:      cfg,
		logger:   logger,
		generate: slug.Generate,
	}
}

// NewServiceWithGenerator creates a link service with a custom slug
// generator (for testing the retry policy).
func NewServiceWithGenerator(storage db.LinkStorage, cfg *config.Config, logger *zap.SugaredLogger, gen Generator) *Service {
	return &Service{
		storage:  storage,
		cfg:      cfg,
		logger:   logger,
		generate: gen,
	}
}

// CreateLink validates the destination and persists a new link. A requested
// slug is used as-is and its conflict surfaces directly: the caller chose it
// and must pick another. Without a requested slug the service generates one
// and retries on collision up to maxGenerateAttempts.
func (s *Service) CreateLink(ctx context.Context, destinationURL, requestedSlug, ownerID string, expiresAt *time.Time) (types.ShortLink, error) {
	if !validDestination(destinationURL) {
		return types.ShortLink{}, &ValidationError{Reason: "destination must be an absolute http or https URL"}
	}

	if requestedSlug != "" {
		if !slug.Validate(requestedSlug) {
			return types.ShortLink{}, &ValidationError{Reason: "slug must be 3-32 characters of [A-Za-z0-9_-]"}
		}
		link := s.newLink(requestedSlug, destinationURL, ownerID, expiresAt)
		if err := s.storage.Create(ctx, link); err != nil {
			return types.ShortLink{}, fmt.Errorf("create link: %w", err)
		}
		return link, nil
	}

	for attempt := 0; attempt < maxGenerateAttempts; attempt++ {
		link := s.newLink(s.generate(), destinationURL, ownerID, expiresAt)
		err := s.storage.Create(ctx, link)
		if err == nil {
			return link, nil
		}
		if errors.Is(err, types.ErrSlugTaken) {
			s.logger.Infow("generated slug collided, retrying", "slug", link.Slug, "attempt", attempt+1)
			continue
		}
		return types.ShortLink{}, fmt.Errorf("create link: %w", err)
	}

	return types.ShortLink{}, ErrSlugsExhausted
}

// Resolve looks up the slug and returns its destination URL, recording a
// click as a side effect. Expired links behave exactly like missing ones
// and record nothing. A click-recording failure never blocks the redirect;
// it is logged and counted for operational visibility.
func (s *Service) Resolve(ctx context.Context, slugValue string, meta types.ClickMeta) (string, error) {
	link, err := s.storage.FindBySlug(ctx, slugValue)
	if err != nil {
		return "", fmt.Errorf("resolve %q: %w", slugValue, err)
	}

	if link.Expired(time.Now()) {
		return "", fmt.Errorf("resolve %q: %w", slugValue, types.ErrNotFound)
	}

	click := types.Click{
		ID:          uuid.New().String(),
		ShortLinkID: link.ID,
		IP:          meta.IP,
		UserAgent:   meta.UserAgent,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.storage.RecordClick(ctx, click); err != nil {
		s.clickFailures.Add(1)
		s.logger.Errorw("failed to record click", "slug", slugValue, "error", err)
	}

	return link.DestinationURL, nil
}

// Links returns the owner's links when an identity is present, otherwise
// all links. Both orderings are newest first.
func (s *Service) Links(ctx context.Context, ownerID string) ([]types.ShortLink, error) {
	if ownerID != "" {
		return s.storage.ListByOwner(ctx, ownerID)
	}
	return s.storage.ListAll(ctx)
}

// Stats returns service-wide totals.
func (s *Service) Stats(ctx context.Context) (types.Stats, error) {
	return s.storage.Stats(ctx)
}

// Ping reports storage reachability.
func (s *Service) Ping(ctx context.Context) error {
	return s.storage.Ping(ctx)
}

// ShortURL builds the fully qualified redirect URL for a slug.
func (s *Service) ShortURL(slugValue string) string {
	return s.cfg.BaseURL + "/r/" + slugValue
}

// ClickFailures reports how many click writes have failed since startup.
func (s *Service) ClickFailures() int64 {
	return s.clickFailures.Load()
}

func (s *Service) newLink(slugValue, destinationURL, ownerID string, expiresAt *time.Time) types.ShortLink {
	return types.ShortLink{
		ID:             uuid.New().String(),
		Slug:           slugValue,
		DestinationURL: destinationURL,
		OwnerID:        ownerID,
		CreatedAt:      time.Now().UTC(),
		ExpiresAt:      expiresAt,
	}
}

func validDestination(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
