// Package store persists a traveller's gallery of generated check-in photos
// and their last confirmed route, so both survive restarts of the local
// server and recycling of Lambda containers.
//
// Three implementations share the Store interface: DynamoStore (single-table
// DynamoDB design, used in Lambda), SQLiteStore (a local file, used by the
// CLI server) and MemoryStore (tests and ephemeral runs).
package store

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fpang/tripstory/internal/apperr"
	"github.com/fpang/tripstory/internal/journey"
)

// DefaultOwner is the gallery owner used when none is configured.
const DefaultOwner = "default"

// Entry is one generated photo in the gallery.
type Entry struct {
	ID        string `json:"id" dynamodbav:"id"`
	URL       string `json:"url" dynamodbav:"url"`
	CreatedAt int64  `json:"createdAt" dynamodbav:"createdAt"` // Unix millis
}

// Store is the persistence interface for a single owner's gallery and route.
// Each method is safe for concurrent use.
type Store interface {
	// Append adds a photo URL to the end of the gallery.
	Append(ctx context.Context, url string) error

	// List returns the gallery, oldest first.
	List(ctx context.Context) ([]Entry, error)

	// PutRoute replaces the stored route.
	PutRoute(ctx context.Context, r *journey.Route) error

	// GetRoute returns the stored route, or nil, nil if none was saved.
	GetRoute(ctx context.Context) (*journey.Route, error)
}

// errEmptyURL rejects blank gallery entries.
var errEmptyURL = errors.New("empty photo URL")

func newEntry(url string, now time.Time) (Entry, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return Entry{}, apperr.Validation("append photo", errEmptyURL)
	}
	return Entry{ID: uuid.NewString(), URL: url, CreatedAt: now.UnixMilli()}, nil
}

// URLs returns the entries' URLs in order.
func URLs(entries []Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.URL
	}
	return out
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu      sync.Mutex
	entries []Entry
	route   *journey.Route
	now     func() time.Time
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{now: time.Now}
}

func (m *MemoryStore) Append(ctx context.Context, url string) error {
	e, err := newEntry(url, m.now())
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	return nil
}

func (m *MemoryStore) List(ctx context.Context) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Entry(nil), m.entries...), nil
}

func (m *MemoryStore) PutRoute(ctx context.Context, r *journey.Route) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.route = r.Clone()
	return nil
}

func (m *MemoryStore) GetRoute(ctx context.Context) (*journey.Route, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.route.Clone(), nil
}
