package types

import "time"

// ShortLink is a single slug to destination URL mapping. ClickCount is a
// cached aggregate of the Click log and is maintained by the storage layer
// atomically with every recorded click.
type ShortLink struct {
	ID             string     `json:"id"`
	Slug           string     `json:"slug"`
	DestinationURL string     `json:"url"`
	OwnerID        string     `json:"owner_id,omitempty"`
	ClickCount     int64      `json:"click_count"`
	CreatedAt      time.Time  `json:"created_at"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
}

// Expired reports whether the link is past its expiry at the given time.
// Links without an expiry never expire.
func (l *ShortLink) Expired(now time.Time) bool {
	return l.ExpiresAt != nil && now.After(*l.ExpiresAt)
}

// Click is one redirect event. Rows are append-only; IP and UserAgent are
// best-effort request metadata and carry no validation.
type Click struct {
	ID          string    `json:"id"`
	ShortLinkID string    `json:"short_link_id"`
	IP          string    `json:"ip,omitempty"`
	UserAgent   string    `json:"user_agent,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// ClickMeta is the request metadata attached to a resolution.
type ClickMeta struct {
	IP        string
	UserAgent string
}

// CreateLinkRequest is the body of POST /links.
type CreateLinkRequest struct {
	URL       string     `json:"url"`
	Slug      string     `json:"slug,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// ShortenRequest is the body of POST /api/shorten.
type ShortenRequest struct {
	OriginalURL string `json:"originalUrl"`
	Slug        string `json:"slug,omitempty"`
}

// ShortenResponse carries the fully qualified short URL back to the caller.
type ShortenResponse struct {
	ShortURL string `json:"shortUrl"`
}

// ErrorResponse is the uniform error body for the HTTP surface.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Stats holds service-wide totals for the internal stats endpoint.
type Stats struct {
	Links  int `json:"urls"`
	Owners int `json:"users"`
}
