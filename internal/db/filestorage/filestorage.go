// Package filestorage keeps the link table in memory and mirrors every
// mutation into an append-only JSON-lines journal, which is replayed on
// startup. One mutex covers state and journal, so the click row and the
// counter increment cannot be separated by a crash of a concurrent writer.
package filestorage

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/avolkhin/linkcut/config"
	"github.com/avolkhin/linkcut/internal/types"
)

// record is one journal line: exactly one of the fields is set.
type record struct {
	Link  *types.ShortLink `json:"link,omitempty"`
	Click *types.Click     `json:"click,omitempty"`
}

// Manager is the file-backed storage backend.
type Manager struct {
	mu     sync.RWMutex
	file   *os.File
	bySlug map[string]*types.ShortLink
	byID   map[string]*types.ShortLink
	order  []string
	clicks map[string][]types.Click
	cfg    *config.Config
}

// NewManager opens (or creates) the journal and replays it into memory.
func NewManager(cfg *config.Config) (*Manager, error) {
	file, err := os.OpenFile(cfg.FileStoragePath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}

	m := &Manager{
		file:   file,
		bySlug: make(map[string]*types.ShortLink),
		byID:   make(map[string]*types.ShortLink),
		clicks: make(map[string][]types.Click),
		cfg:    cfg,
	}

	if err := m.loadFromFile(); err != nil {
		return nil, fmt.Errorf("failed to load journal: %w", err)
	}

	return m, nil
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

// Create inserts the link and journals it, failing if the slug is taken.
func (m *Manager) Create(_ context.Context, link types.ShortLink) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.bySlug[link.Slug]; ok {
		return types.ErrSlugTaken
	}

	if err := m.writeRecord(record{Link: &link}); err != nil {
		return fmt.Errorf("%w: %v", types.ErrUnavailable, err)
	}

	stored := link
	m.bySlug[link.Slug] = &stored
	m.byID[link.ID] = &stored
	m.order = append(m.order, link.Slug)
	return nil
}

// RecordClick journals the click and applies it to memory, keeping the
// click log and the cached counter in step.
func (m *Manager) RecordClick(_ context.Context, click types.Click) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	link, ok := m.byID[click.ShortLinkID]
	if !ok {
		return types.ErrNotFound
	}

	if err := m.writeRecord(record{Click: &click}); err != nil {
		return fmt.Errorf("%w: %v", types.ErrUnavailable, err)
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

// Ping is not supported for file storage.
func (m *Manager) Ping(_ context.Context) error {
	return fmt.Errorf("ping is not supported for file storage")
}

// Close closes the journal file.
func (m *Manager) Close(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.file.Close()
}

func (m *Manager) writeRecord(rec record) error {
	data, err := json.Marshal(&rec)
	if err != nil {
		return err
	}
	data = append(data, '\n')

	_, err = m.file.Write(data)
	return err
}

func (m *Manager) loadFromFile() error {
	fi, err := m.file.Stat()
	if err != nil {
		return err
	}
	if fi.Size() == 0 {
		return nil
	}

	if _, err = m.file.Seek(0, 0); err != nil {
		return err
	}

	scanner := bufio.NewScanner(m.file)
	for scanner.Scan() {
		var rec record
		if err = json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			return err
		}

		switch {
		case rec.Link != nil:
			link := *rec.Link
			m.bySlug[link.Slug] = &link
			m.byID[link.ID] = &link
			m.order = append(m.order, link.Slug)
		case rec.Click != nil:
			click := *rec.Click
			link, ok := m.byID[click.ShortLinkID]
			if !ok {
				return fmt.Errorf("journal click references unknown link %s", click.ShortLinkID)
			}
			m.clicks[click.ShortLinkID] = append(m.clicks[click.ShortLinkID], click)
			link.ClickCount++
		}
	}

	return scanner.Err()
}
