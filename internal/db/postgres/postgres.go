package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/avolkhin/linkcut/config"
	"github.com/avolkhin/linkcut/internal/types"
)

// uniqueViolation is the Postgres error code for a unique constraint hit.
const uniqueViolation = "23505"

const schema = `
CREATE TABLE IF NOT EXISTS short_links (
	id              UUID PRIMARY KEY,
	slug            VARCHAR(32) NOT NULL UNIQUE,
	destination_url TEXT NOT NULL,
	owner_id        TEXT NOT NULL DEFAULT '',
	click_count     BIGINT NOT NULL DEFAULT 0,
	created_at      TIMESTAMPTZ NOT NULL,
	expires_at      TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_short_links_owner ON short_links(owner_id);
CREATE INDEX IF NOT EXISTS idx_short_links_created ON short_links(created_at);

CREATE TABLE IF NOT EXISTS clicks (
	id            UUID PRIMARY KEY,
	short_link_id UUID NOT NULL REFERENCES short_links(id),
	ip            TEXT NOT NULL DEFAULT '',
	user_agent    TEXT NOT NULL DEFAULT '',
	created_at    TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_clicks_short_link ON clicks(short_link_id);
`

// Manager is the PostgreSQL storage backend. Slug uniqueness is enforced by
// the UNIQUE constraint; the click log and the cached counter are written in
// one transaction.
type Manager struct {
	db *sql.DB
}

// NewManager connects to the database and ensures the schema exists.
func NewManager(cfg *config.Config) (*Manager, error) {
	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err = db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
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
		owner     sql.NullString
		expiresAt sql.NullTime
	)

	err := m.db.QueryRowContext(ctx,
		`SELECT id, slug, destination_url, owner_id, click_count, created_at, expires_at
		 FROM short_links WHERE slug = $1`, slug,
	).Scan(&link.ID, &link.Slug, &link.DestinationURL, &owner, &link.ClickCount, &link.CreatedAt, &expiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.ShortLink{}, types.ErrNotFound
		}
		return types.ShortLink{}, fmt.Errorf("%w: %v", types.ErrUnavailable, err)
	}

	link.OwnerID = owner.String
	if expiresAt.Valid {
		t := expiresAt.Time
		link.ExpiresAt = &t
	}
	return link, nil
}

// Create inserts the link; the unique constraint on slug turns a lost race
// into ErrSlugTaken without any prior existence check.
func (m *Manager) Create(ctx context.Context, link types.ShortLink) error {
	_, err := m.db.ExecContext(ctx,
		`INSERT INTO short_links (id, slug, destination_url, owner_id, click_count, created_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		link.ID, link.Slug, link.DestinationURL, link.OwnerID, link.ClickCount, link.CreatedAt, link.ExpiresAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return types.ErrSlugTaken
		}
		return fmt.Errorf("%w: %v", types.ErrUnavailable, err)
	}
	return nil
}

// RecordClick appends the click row and bumps the cached counter inside one
// transaction, so neither can exist without the other.
func (m *Manager) RecordClick(ctx context.Context, click types.Click) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", types.ErrUnavailable, err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE short_links SET click_count = click_count + 1 WHERE id = $1`, click.ShortLinkID)
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
		 VALUES ($1, $2, $3, $4, $5)`,
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
		 FROM short_links WHERE owner_id = $1 ORDER BY created_at DESC`, ownerID)
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
			owner     sql.NullString
			expiresAt sql.NullTime
		)
		if err = rows.Scan(&link.ID, &link.Slug, &link.DestinationURL, &owner, &link.ClickCount, &link.CreatedAt, &expiresAt); err != nil {
			return nil, fmt.Errorf("%w: %v", types.ErrUnavailable, err)
		}
		link.OwnerID = owner.String
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
		`SELECT COUNT(*), COUNT(DISTINCT owner_id) FILTER (WHERE owner_id <> '')
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

// Close closes the database connection.
func (m *Manager) Close(_ context.Context) error {
	return m.db.Close()
}
