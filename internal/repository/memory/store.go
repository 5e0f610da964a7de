// Package memory implements the repository interfaces with plain in-process
// maps. It is the volatile backend: same contract as repository/sqlite, zero
// infrastructure, everything lost on restart.
//
// WHEN IS THIS USED?
// Selected via STORAGE_BACKEND=memory — local development and demo deployments
// where persistence doesn't matter, and the service tests in other packages,
// which get a full Store without touching the filesystem.
//
// CONCURRENCY:
// One sync.RWMutex guards the whole store. That is deliberate: the request
// model is low-contention, and a single lock makes cross-map invariants
// (the email index, the project → files ownership) trivially consistent.
// Reads take RLock, writes take Lock. Every value that crosses the API
// boundary is copied on the way in and on the way out so callers can never
// alias internal state.
package memory

import (
	"sync"

	"github.com/rs/xid"
	"github.com/sakif/appforge/internal/model"
	"github.com/sakif/appforge/internal/repository"
)

// compile-time check that *Store implements the full capability set
var _ repository.Store = (*Store)(nil)

// Store holds all four entity maps.
//
// files is keyed projectID → path → file. The nested map is both the
// natural-key lookup AND the ownership index: cascade-deleting a project's
// files is a single map delete instead of an O(n) scan over every file in
// the store.
type Store struct {
	mu sync.RWMutex

	users        map[string]*model.User // by internal ID
	usersByEmail map[string]string      // non-empty email → ID

	projects map[string]*model.Project
	files    map[string]map[string]*model.ProjectFile

	generations map[string][]model.Generation // userID → rows, oldest first
}

// New creates an empty volatile store.
func New() *Store {
	return &Store{
		users:        make(map[string]*model.User),
		usersByEmail: make(map[string]string),
		projects:     make(map[string]*model.Project),
		files:        make(map[string]map[string]*model.ProjectFile),
		generations:  make(map[string][]model.Generation),
	}
}

// Close satisfies repository.Store. There is nothing to release.
func (s *Store) Close() error {
	return nil
}

// newID mirrors the durable backend's ID scheme so records look identical
// regardless of which backend produced them.
func newID() string {
	return xid.New().String()
}
