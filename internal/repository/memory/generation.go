package memory

import (
	"context"
	"time"

	"github.com/sakif/appforge/internal/model"
	"github.com/sakif/appforge/internal/repository"
)

// CreateGeneration appends to the user's log. Rows are stored oldest first;
// reads reverse the order.
func (s *Store) CreateGeneration(_ context.Context, gen *model.Generation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	gen.ID = newID()
	gen.CreatedAt = time.Now()

	s.generations[gen.UserID] = append(s.generations[gen.UserID], *gen)
	return nil
}

// GetUserGenerations returns the newest rows first, capped at limit
// (default 50). Append order doubles as createdAt order, so "newest first"
// is just iterating the slice backwards.
func (s *Store) GetUserGenerations(_ context.Context, userID string, limit int) ([]model.Generation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = repository.DefaultGenerationLimit
	}

	all := s.generations[userID]
	n := len(all)
	if n > limit {
		n = limit
	}

	gens := make([]model.Generation, 0, n)
	for i := len(all) - 1; i >= 0 && len(gens) < n; i-- {
		gens = append(gens, all[i])
	}
	return gens, nil
}
