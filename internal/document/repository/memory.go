package repository

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/syncpad/syncpad/internal/document"
)

var (
	ErrNotFound = errors.New("document not found")
)

// MemoryStore is the authoritative in-memory document table. It is the only
// owner of document state; the Mongo mirror (when configured) trails behind
// it and is never read back.
//
// List order is most-recently-created first, on every surface.
type MemoryStore struct {
	mu      sync.RWMutex
	docs    map[string]*document.Document
	order   []string // ids, newest first
	counter int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string]*document.Document)}
}

// Create inserts a new document at the front of the list and returns a copy.
// An empty title gets the placeholder default; content may be empty.
func (m *MemoryStore) Create(title, content string) *document.Document {
	m.mu.Lock()
	defer m.mu.Unlock()

	if title == "" {
		title = document.DefaultTitle
	}
	m.counter++
	now := time.Now()
	d := &document.Document{
		ID:            fmt.Sprintf("doc_%d", m.counter),
		Title:         title,
		Content:       content,
		CreatedAt:     now,
		UpdatedAt:     now,
		Collaborators: []string{},
	}
	m.docs[d.ID] = d
	m.order = append([]string{d.ID}, m.order...)
	return d.Clone()
}

func (m *MemoryStore) Get(id string) (*document.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.docs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return d.Clone(), nil
}

// List returns every document, newest first.
func (m *MemoryStore) List() []*document.Document {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*document.Document, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.docs[id].Clone())
	}
	return out
}

// UpdateContent fully replaces the content (last write wins) and refreshes
// UpdatedAt. The returned copy reflects the stored state.
func (m *MemoryStore) UpdateContent(id, content string) (*document.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[id]
	if !ok {
		return nil, ErrNotFound
	}
	d.Content = content
	d.UpdatedAt = m.tick(d.UpdatedAt)
	return d.Clone(), nil
}

// UpdateTitle fully replaces the title and refreshes UpdatedAt.
func (m *MemoryStore) UpdateTitle(id, title string) (*document.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[id]
	if !ok {
		return nil, ErrNotFound
	}
	d.Title = title
	d.UpdatedAt = m.tick(d.UpdatedAt)
	return d.Clone(), nil
}

// Replace overwrites whichever of title/content are provided (nil = keep).
// Used by the request/response surface.
func (m *MemoryStore) Replace(id string, title, content *string) (*document.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[id]
	if !ok {
		return nil, ErrNotFound
	}
	if title != nil {
		d.Title = *title
	}
	if content != nil {
		d.Content = *content
	}
	d.UpdatedAt = m.tick(d.UpdatedAt)
	return d.Clone(), nil
}

// Delete removes the document permanently. A second delete of the same id
// returns ErrNotFound, not a panic.
func (m *MemoryStore) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[id]; !ok {
		return ErrNotFound
	}
	delete(m.docs, id)
	for i, oid := range m.order {
		if oid == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

// SetCollaborators records which connections are currently in the document's
// room. It does not bump UpdatedAt: presence is not an edit.
func (m *MemoryStore) SetCollaborators(id string, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[id]
	if !ok {
		return ErrNotFound
	}
	d.Collaborators = append([]string(nil), ids...)
	return nil
}

// tick guarantees UpdatedAt strictly increases even when two mutations land
// within the clock's resolution.
func (m *MemoryStore) tick(prev time.Time) time.Time {
	now := time.Now()
	if !now.After(prev) {
		now = prev.Add(time.Nanosecond)
	}
	return now
}
