package memory

import (
	"context"
	"time"

	"github.com/sakif/appforge/internal/apperror"
	"github.com/sakif/appforge/internal/model"
)

// CreateUser inserts a new user. Same defaults as the durable backend:
// credits=1000, subscriptionStatus="free", generated ID and timestamps.
func (s *Store) CreateUser(_ context.Context, user *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if user.Email != "" {
		if _, taken := s.usersByEmail[user.Email]; taken {
			return apperror.Conflict("user", user.Email)
		}
	}

	user.ID = newID()
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	if user.Credits == 0 {
		user.Credits = model.DefaultCredits
	}
	if user.SubscriptionStatus == "" {
		user.SubscriptionStatus = model.SubscriptionFree
	}

	stored := *user
	s.users[user.ID] = &stored
	if user.Email != "" {
		s.usersByEmail[user.Email] = user.ID
	}

	return nil
}

func (s *Store) GetUser(_ context.Context, id string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getUserLocked(id)
}

// getUserLocked returns a copy; callers must hold at least RLock.
func (s *Store) getUserLocked(id string) (*model.User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	copied := *u
	return &copied, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if email == "" {
		return nil, apperror.NotFound("user", "(empty email)")
	}
	id, ok := s.usersByEmail[email]
	if !ok {
		return nil, apperror.NotFound("user", email)
	}
	return s.getUserLocked(id)
}

// UpsertUser inserts or merges, keyed by ID when present, else by email —
// the same single contract as the durable backend.
func (s *Store) UpsertUser(_ context.Context, user *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var existing *model.User
	switch {
	case user.ID != "":
		existing = s.users[user.ID]
	case user.Email != "":
		if id, ok := s.usersByEmail[user.Email]; ok {
			existing = s.users[id]
		}
	default:
		return apperror.ValidationFailed("user", "upsert requires an id or email")
	}

	if existing == nil {
		// Insert path — duplicate the CreateUser logic inline since we
		// already hold the write lock.
		if user.Email != "" {
			if _, taken := s.usersByEmail[user.Email]; taken {
				return apperror.Conflict("user", user.Email)
			}
		}
		user.ID = newID()
		now := time.Now()
		user.CreatedAt = now
		user.UpdatedAt = now
		if user.Credits == 0 {
			user.Credits = model.DefaultCredits
		}
		if user.SubscriptionStatus == "" {
			user.SubscriptionStatus = model.SubscriptionFree
		}
		stored := *user
		s.users[user.ID] = &stored
		if user.Email != "" {
			s.usersByEmail[user.Email] = user.ID
		}
		return nil
	}

	// Merge path — non-empty incoming profile fields win, identity and
	// billing fields are preserved, updatedAt is touched.
	if user.Email != "" && user.Email != existing.Email {
		delete(s.usersByEmail, existing.Email)
		existing.Email = user.Email
		s.usersByEmail[existing.Email] = existing.ID
	}
	if user.FirstName != "" {
		existing.FirstName = user.FirstName
	}
	if user.LastName != "" {
		existing.LastName = user.LastName
	}
	if user.ProfileImageURL != "" {
		existing.ProfileImageURL = user.ProfileImageURL
	}
	existing.UpdatedAt = time.Now()

	*user = *existing
	return nil
}

func (s *Store) UpdateUserCredits(_ context.Context, id string, credits int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return apperror.NotFound("user", id)
	}
	u.Credits = credits
	u.UpdatedAt = time.Now()
	return nil
}

// ApplyCreditDelta adjusts the balance under the write lock, so the
// check-and-write is atomic with respect to every other store operation.
func (s *Store) ApplyCreditDelta(_ context.Context, id string, delta int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return 0, apperror.NotFound("user", id)
	}
	if u.Credits+delta < 0 {
		return u.Credits, apperror.InsufficientCredits(u.Credits, -delta)
	}
	u.Credits += delta
	u.UpdatedAt = time.Now()
	return u.Credits, nil
}

func (s *Store) UpdateUserStripeInfo(_ context.Context, id string, info model.StripeInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return apperror.NotFound("user", id)
	}
	if info.CustomerID != "" {
		u.StripeCustomerID = info.CustomerID
	}
	if info.SubscriptionID != "" {
		u.StripeSubscriptionID = info.SubscriptionID
	}
	if info.Status != "" {
		u.SubscriptionStatus = info.Status
	}
	u.UpdatedAt = time.Now()
	return nil
}

func (s *Store) UpdateUserGitHubInfo(_ context.Context, id string, info model.GitHubInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return apperror.NotFound("user", id)
	}
	// Full overwrite — an empty GitHubInfo unlinks the account.
	u.GitHubAccessToken = info.AccessToken
	u.GitHubUsername = info.Username
	u.UpdatedAt = time.Now()
	return nil
}
