package types

import "errors"

var (
	// ErrNotFound indicates the slug does not map to a stored link.
	ErrNotFound = errors.New("link not found")

	// ErrSlugTaken indicates an insert lost the uniqueness race: another
	// link already owns the slug. Enforced by the storage backend itself,
	// never by a prior existence check.
	ErrSlugTaken = errors.New("slug already taken")

	// ErrUnavailable indicates the storage backend could not be reached.
	// It must never be reported as ErrSlugTaken: a failed uniqueness check
	// does not mean the slug is in use.
	ErrUnavailable = errors.New("storage unavailable")
)
