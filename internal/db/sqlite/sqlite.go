package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/avolkhin/linkcut/config"
	"github.com/avolkhin/linkcut/internal/types"
)

const schema = `
CREATE TABLE IF NOT EXISTS short_links (
	id              TEXT PRIMARY KEY,
	slug            TEXT NOT NULL UNIQUE,
	destination_url TEXT NOT NULL,
	owner_id        TEXT NOT NULL DEFAULT '',
	click_count     INTEGER NOT NULL DEFAULT 0,
	created_at      DATETIME NOT NULL,
	expires_at      DATETIME
);
CREATE INDEX IF NOT EXISTS idx_short_links_owner ON short_links(owner_id);

CREATE TABLE IF NOT EXISTS clicks (
	id            TEXT PRIMARY KEY,
	short_link_id TEXT NOT NULL,
	ip            TEXT NOT NULL DEFAULT '',
	user_agent    TEXT NOT NULL DEFAULT '',
	created_at    DATETIME NOT NULL,
	FOREIGN KEY(short_link_id) REFERENCES short_links(id)
);
CREATE INDEX IF NOT EXISTS idx_clicks_short_link ON clicks(short_link_id);
`

// Manager is the SQLite storage backend. Same shape as the Postgres one,
// with ? placeholders and the driver's textual constraint errors.
type Manager struct {
	db *sql.DB
}

// NewManager opens the database file and ensures the schema exists.
func NewManager(cfg *config.Config) (*Manager, error) {
	db, err := sql.Open("sqlite", cfg.SQLitePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	if err = db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	if _, err = db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Manager{db: db}, nil
}

// FindBySlug returns the link for an exact slug match.
func (m *Manager) FindBySlug(ctx context.Context, slug string) (types.ShortLink, error) {
	var (
		link      types.ShortLink
		expiresAt sql.NullTime
	)

	err := m.db.QueryRowContext(ctx,
		`SELECT id, slug, destination_url, owner_id, click_count, created_at, expires_at
		 FROM short_links WHERE slug = ?`, slug,
	).Scan(&link.ID, &link.Slug, &link.DestinationURL, &link.OwnerID, &link.ClickCount, &link.CreatedAt, &expiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.ShortLink{}, types.ErrNotFound
		}
		return types.ShortLink{}, fmt.Errorf("%w: %v", types.ErrUnavailable, err)
	}

	if expiresAt.Valid {
		t := expiresAt.Time
		link.ExpiresAt = &t
	}
	return link, nil
}

// Create inserts the link; the UNIQUE constraint on slug reports a lost
// race as ErrSlugTaken.
func (m *Manager) Create(ctx context.Context, link types.ShortLink) error {
	_, err := m.db.ExecContext(ctx,
		`INSERT INTO short_links (id, slug, destination_url, owner_id, click_count, created_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		link.ID, link.Slug, link.DestinationURL, link.OwnerID, link.ClickCount, link.CreatedAt, link.ExpiresAt)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return types.ErrSlugTaken
		}
		return fmt.Errorf("%w: %v", types.ErrUnavailable, err)
	}
	return nil
}

// RecordClick appends the click row and bumps the counter in one
// transaction.
func (m *Manager) RecordClick(ctx context.Context, click types.Click) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", types.ErrUnavailable, err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE short_links SET click_count = click_count + 1 WHERE id = ?`, click.ShortLinkID)
	if err != nil {
		return fmt.Errorf("%w: %v", types.ErrUnavailable, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %v", types.ErrUnavailable, err)
	}
	if affected == 0 {
		return types.ErrNotFound
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO clicks (id, short_link_id, ip, user_agent, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		click.ID, click.ShortLinkID, click.IP, click.UserAgent, click.CreatedAt)
	if err != nil {
		return fmt.Errorf("%w: %v", types.ErrUnavailable, err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("%w: %v", types.ErrUnavailable, err)
	}
	return nil
}

// ListAll returns every link, newest first.
func (m *Manager) ListAll(ctx context.Context) ([]types.ShortLink, error) {
	return m.list(ctx,
		`SELECT id, slug, destination_url, owner_id, click_count, created_at, expires_at
		 FROM short_links ORDER BY created_at DESC`)
}

// ListByOwner returns the owner's links, newest first.
func (m *Manager) ListByOwner(ctx context.Context, ownerID string) ([]types.ShortLink, error) {
	return m.list(ctx,
		`SELECT id, slug, destination_url, owner_id, click_count, created_at, expires_at
		 FROM short_links WHERE owner_id = ? ORDER BY created_at DESC`, ownerID)
}

func (m *Manager) list(ctx context.Context, query string, args ...any) ([]types.ShortLink, error) {
	rows, err := m.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrUnavailable, err)
	}
	defer rows.Close()

	var links []types.ShortLink
	for rows.Next() {
		var (
			link      types.ShortLink
			expiresAt sql.NullTime
		)
		if err = rows.Scan(&link.ID, &link.Slug, &link.DestinationURL, &link.OwnerID, &link.ClickCount, &link.CreatedAt, &expiresAt); err != nil {
			return nil, fmt.Errorf("%w: %v", types.ErrUnavailable, err)
		}
		if expiresAt.Valid {
			t := expiresAt.Time
			link.ExpiresAt = &t
		}
		links = append(links, link)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrUnavailable, err)
	}
	return links, nil
}

// Stats returns the number of links and distinct non-anonymous owners.
func (m *Manager) Stats(ctx context.Context) (types.Stats, error) {
	var stats types.Stats
	err := m.db.QueryRowContext(ctx,
		`SELECT COUNT(*),
		        COUNT(DISTINCT CASE WHEN owner_id <> '' THEN owner_id END)
		 FROM short_links`,
	).Scan(&stats.Links, &stats.Owners)
	if err != nil {
		return types.Stats{}, fmt.Errorf("%w: %v", types.ErrUnavailable, err)
	}
	return stats, nil
}

// Ping checks database reachability.
func (m *Manager) Ping(ctx context.Context) error {
	return m.db.PingContext(ctx)
}

// Close closes the database.
func (m *Manager) Close(_ context.Context) error {
	return m.db.Close()
}
