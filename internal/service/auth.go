// Package service — authentication business logic.
//
// AuthService sits between the HTTP handlers and the repository/auth
// utilities:
//
//	AuthHandler (HTTP) → AuthService (business rules) → UserRepository (store)
//	                   ↘ TokenService (JWT)
//	                   ↘ PasswordService (bcrypt)
//
// Primary identity is email + password. GitHub OAuth is NOT a login path
// here — LinkGitHub attaches a GitHub account (and its access token) to an
// already-authenticated user so the git service can reach their repos.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/appforge/internal/apperror"
	"github.com/sakif/appforge/internal/auth"
	"github.com/sakif/appforge/internal/model"
	"github.com/sakif/appforge/internal/repository"
)

// Validation constants for registration.
const (
	MinPasswordLength = 8
	MaxEmailLength    = 254
)

// AuthService handles the authentication business logic.
type AuthService struct {
	users     repository.UserRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	logger    *slog.Logger
}

// NewAuthService creates an AuthService with all required dependencies.
// Call this in server.go when wiring the dependency graph.
func NewAuthService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		tokens:    tokens,
		passwords: passwords,
		logger:    logger,
	}
}

// AuthResult bundles the user record and the issued JWT so the handler can
// set the cookie and respond in one step.
type AuthResult struct {
	User  *model.User
	Token string
}

// Register creates a new account and signs the user in.
//
// Email is normalised to lowercase before the uniqueness check so
// "Bob@Example.com" and "bob@example.com" are the same account. The
// password is bcrypt-hashed; the plaintext never touches the store.
func (s *AuthService) Register(ctx context.Context, email, password, firstName, lastName string) (*AuthResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	if email == "" || !strings.Contains(email, "@") {
		return nil, apperror.ValidationFailed("email", "a valid email address is required")
	}
	if len(email) > MaxEmailLength {
		return nil, apperror.ValidationFailed("email", "email address is too long")
	}
	if len(password) < MinPasswordLength {
		return nil, apperror.ValidationFailed("password", fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
	}

	// Check-then-insert is racy in theory, but the store enforces email
	// uniqueness too — this early check just produces a friendlier error
	// without a failed insert in the common case.
	if _, err := s.users.GetUserByEmail(ctx, email); err == nil {
		return nil, apperror.Conflict("user", email)
	} else if !errors.Is(err, apperror.ErrNotFound) {
		return nil, fmt.Errorf("service/auth: checking existing email: %w", err)
	}

	hashed, err := s.passwords.Hash(password)
	if err != nil {
		return nil, apperror.ValidationFailed("password", err.Error())
	}

	user := &model.User{
		Email:          email,
		FirstName:      strings.TrimSpace(firstName),
		LastName:       strings.TrimSpace(lastName),
		HashedPassword: hashed,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("service/auth: creating user: %w", err)
	}

	s.logger.Info("user registered",
		slog.String("userID", user.ID),
		slog.String("email", user.Email),
	)

	return s.issue(user)
}

// Login verifies credentials and signs the user in.
//
// A missing user and a wrong password produce the SAME error: an attacker
// probing for registered emails learns nothing from the response.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.Unauthorized("invalid email or password")
		}
		return nil, fmt.Errorf("service/auth: looking up user: %w", err)
	}

	if user.HashedPassword == "" {
		// Account exists but has no password set (e.g. created via webhook
		// upsert). Same opaque error — don't leak account state.
		return nil, apperror.Unauthorized("invalid email or password")
	}

	if err := s.passwords.Verify(user.HashedPassword, password); err != nil {
		return nil, apperror.Unauthorized("invalid email or password")
	}

	s.logger.Info("user logged in", slog.String("userID", user.ID))

	return s.issue(user)
}

// GetUser returns the user record for an authenticated session.
func (s *AuthService) GetUser(ctx context.Context, userID string) (*model.User, error) {
	return s.users.GetUser(ctx, userID)
}

// ValidateToken checks a JWT and returns the userID it carries.
// Thin passthrough so callers outside HTTP middleware (e.g. a websocket
// upgrade) don't need the TokenService directly.
func (s *AuthService) ValidateToken(tokenStr string) (string, error) {
	userID, err := s.tokens.Validate(tokenStr)
	if err != nil {
		return "", apperror.Unauthorized("invalid or expired token")
	}
	return userID, nil
}

// LinkGitHub stores a completed OAuth result on the user record. After this,
// git operations on the user's projects authenticate with their token.
func (s *AuthService) LinkGitHub(ctx context.Context, userID string, link *auth.GitHubLink) (*model.User, error) {
	if link == nil || link.AccessToken == "" {
		return nil, fmt.Errorf("service/auth: GitHub link must carry an access token")
	}

	info := model.GitHubInfo{
		AccessToken: link.AccessToken,
		Username:    link.Account.Login,
	}
	if err := s.users.UpdateUserGitHubInfo(ctx, userID, info); err != nil {
		return nil, fmt.Errorf("service/auth: storing GitHub link for user %s: %w", userID, err)
	}

	s.logger.Info("GitHub account linked",
		slog.String("userID", userID),
		slog.String("githubUsername", link.Account.Login),
	)

	return s.users.GetUser(ctx, userID)
}

// UnlinkGitHub clears the stored GitHub token and username.
// Projects already connected to remotes keep their remote config but pushes
// will fail until the user relinks (or the project carries its own token).
func (s *AuthService) UnlinkGitHub(ctx context.Context, userID string) error {
	if err := s.users.UpdateUserGitHubInfo(ctx, userID, model.GitHubInfo{}); err != nil {
		return fmt.Errorf("service/auth: clearing GitHub link for user %s: %w", userID, err)
	}
	s.logger.Info("GitHub account unlinked", slog.String("userID", userID))
	return nil
}

func (s *AuthService) issue(user *model.User) (*AuthResult, error) {
	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for user %s: %w", user.ID, err)
	}
	return &AuthResult{User: user, Token: token}, nil
}
