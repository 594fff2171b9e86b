package memorystorage

import (
	"context"
	"sync"

	"github.com/avolkhin/linkcut/config"
	"github.com/avolkhin/linkcut/internal/types"
)

// Manager is the in-memory storage backend. A single mutex covers both the
// link table and the click log so that slug uniqueness and the
// click-plus-counter pair stay atomic under concurrent requests.
type Manager struct {
	mu     sync.RWMutex
	bySlug map[string]*types.ShortLink
	byID   map[string]*types.ShortLink
	order  []string // slugs in insertion order
	clicks map[string][]types.Click
	Config *config.Config
}

// NewManager initializes a new memory storage backend.
func NewManager(cfg *config.Config) (*Manager, error) {
	return &Manager{
		bySlug: make(map[string]*types.ShortLink),
		byID:   make(map[string]*types.ShortLink),
		clicks: make(map[string][]types.Click),
		Config: cfg,
	}, nil
}

// FindBySlug retrieves the link stored under the given slug.
func (m *Manager) FindBySlug(_ context.Context, slug string) (types.ShortLink, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	link, ok := m.bySlug[slug]
	if !ok {
		return types.ShortLink{}, types.ErrNotFound
	}
	return *link, nil
}

// Create inserts the link unless its slug is already taken. The existence
// check and the insert happen under one lock, closing the race window
// between two creators of the same slug.
func (m *Manager) Create(_ context.Context, link types.ShortLink) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.bySlug[link.Slug]; ok {
		return types.ErrSlugTaken
	}

	stored := link
	m.bySlug[link.Slug] = &stored
	m.byID[link.ID] = &stored
	m.order = append(m.order, link.Slug)
	return nil
}

// RecordClick appends the click and increments the owning link's counter in
// one critical section.
func (m *Manager) RecordClick(_ context.Context, click types.Click) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	link, ok := m.byID[click.ShortLinkID]
	if !ok {
		return types.ErrNotFound
	}

	m.clicks[click.ShortLinkID] = append(m.clicks[click.ShortLinkID], click)
	link.ClickCount++
	return nil
}

// ListAll returns every stored link, newest first.
func (m *Manager) ListAll(_ context.Context) ([]types.ShortLink, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	links := make([]types.ShortLink, 0, len(m.order))
	for i := len(m.order) - 1; i >= 0; i-- {
		links = append(links, *m.bySlug[m.order[i]])
	}
	return links, nil
}

// ListByOwner returns the owner's links, newest first.
func (m *Manager) ListByOwner(_ context.Context, ownerID string) ([]types.ShortLink, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var links []types.ShortLink
	for i := len(m.order) - 1; i >= 0; i-- {
		link := m.bySlug[m.order[i]]
		if link.OwnerID == ownerID {
			links = append(links, *link)
		}
	}
	return links, nil
}

// Clicks returns the recorded clicks for a link. Tests use it to check the
// counter and the log never diverge.
func (m *Manager) Clicks(shortLinkID string) []types.Click {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]types.Click, len(m.clicks[shortLinkID]))
	copy(out, m.clicks[shortLinkID])
	return out
}

// Stats returns the number of stored links and distinct owners.
func (m *Manager) Stats(_ context.Context) (types.Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	owners := make(map[string]struct{})
	for _, link := range m.bySlug {
		if link.OwnerID != "" {
			owners[link.OwnerID] = struct{}{}
		}
	}

	return types.Stats{
		Links:  len(m.bySlug),
		Owners: len(owners),
	}, nil
}

// Ping always succeeds for memory storage.
func (m *Manager) Ping(_ context.Context) error {
	return nil
}

// Close releases nothing for memory storage.
func (m *Manager) Close(_ context.Context) error {
	return nil
}
