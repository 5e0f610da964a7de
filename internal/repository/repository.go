// Package repository defines the storage contracts the rest of the
// application programs against.
//
// Two interchangeable backends implement these interfaces: a durable one
// (repository/sqlite) and a process-local volatile one (repository/memory).
// The backend is chosen once at process start via an explicit config value
// and injected at the composition root — there is no global selection and no
// hot-swap.
//
// CONTRACT NOTES shared by both backends:
//   - Reads that find nothing return apperror.NotFound; callers branch with
//     errors.Is rather than treating it as a hard failure.
//   - Targeted updates (credits, Stripe info, GitHub info) also return
//     apperror.NotFound when the row is absent — callers must surface that.
//   - Each operation is atomic at the single-entity level only; there is no
//     cross-entity transaction.
package repository

import (
	"context"

	"github.com/sakif/appforge/internal/model"
)

// DefaultGenerationLimit caps GetUserGenerations when the caller passes 0.
const DefaultGenerationLimit = 50

// UserRepository persists User records.
type UserRepository interface {
	// CreateUser inserts a new user, generating the ID and timestamps and
	// applying defaults (credits=1000, subscriptionStatus="free") for any
	// unset field. Returns apperror.Conflict if the email is already taken.
	CreateUser(ctx context.Context, user *model.User) error

	GetUser(ctx context.Context, id string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)

	// UpsertUser inserts or merges a user record. The natural key is the ID
	// when the incoming record carries one, otherwise the email. On merge,
	// non-empty incoming fields overwrite and updatedAt is touched; ID and
	// CreatedAt are preserved. Both backends implement this one contract.
	UpsertUser(ctx context.Context, user *model.User) error

	// UpdateUserCredits replaces the balance outright. Admin/webhook use
	// only — request-path spending goes through ApplyCreditDelta.
	UpdateUserCredits(ctx context.Context, id string, credits int) error

	// ApplyCreditDelta atomically adjusts the balance by delta and returns
	// the new value. Fails with apperror.ErrInsufficientCredits if the
	// result would be negative; the balance is untouched in that case.
	ApplyCreditDelta(ctx context.Context, id string, delta int) (int, error)

	UpdateUserStripeInfo(ctx context.Context, id string, info model.StripeInfo) error
	UpdateUserGitHubInfo(ctx context.Context, id string, info model.GitHubInfo) error
}

// ProjectRepository persists Project records.
type ProjectRepository interface {
	// CreateProject inserts a new project with defaults applied
	// (template="react", status="draft", gitStatus="unconnected",
	// githubBranch="main").
	CreateProject(ctx context.Context, project *model.Project) error

	GetProject(ctx context.Context, id string) (*model.Project, error)

	// GetUserProjects returns all projects owned by userID, most recently
	// touched first (updatedAt descending). Any update moves a project to
	// the front — the frontend relies on this for its "recent" list.
	GetUserProjects(ctx context.Context, userID string) ([]model.Project, error)

	// UpdateProject writes all mutable fields of the given record and
	// touches updatedAt. Callers follow fetch-then-update: load the row,
	// change what they need, save it back.
	UpdateProject(ctx context.Context, project *model.Project) error

	// DeleteProject removes the project and cascades to every ProjectFile
	// it owns.
	DeleteProject(ctx context.Context, id string) error
}

// ProjectFileRepository persists ProjectFile records, keyed by the natural
// key (projectID, path).
type ProjectFileRepository interface {
	// GetProjectFiles returns every file in the project ordered by path
	// ascending. The ordering is load-bearing: file-tree rendering and
	// workspace materialisation both assume it.
	GetProjectFiles(ctx context.Context, projectID string) ([]model.ProjectFile, error)

	GetProjectFile(ctx context.Context, projectID, path string) (*model.ProjectFile, error)

	// CreateOrUpdateProjectFile is the sole write path for file content.
	// If a row exists for (ProjectID, Path), its content/language are
	// overwritten and updatedAt touched while ID and CreatedAt are kept;
	// otherwise a new row is inserted. When the stored content and language
	// already match the incoming record, the call is a pure no-op (the
	// timestamp does not advance) — this is what makes repeated
	// dematerialisation of an unchanged workspace cheap and idempotent.
	CreateOrUpdateProjectFile(ctx context.Context, file *model.ProjectFile) error

	// DeleteProjectFile removes the row for (projectID, path) if present;
	// it is a no-op (not an error) otherwise.
	DeleteProjectFile(ctx context.Context, projectID, path string) error
}

// GenerationRepository persists the append-only AI usage log.
type GenerationRepository interface {
	CreateGeneration(ctx context.Context, gen *model.Generation) error

	// GetUserGenerations returns the user's generations newest first,
	// capped at limit (DefaultGenerationLimit when limit <= 0).
	GetUserGenerations(ctx context.Context, userID string, limit int) ([]model.Generation, error)
}

// Store is the full capability set a backend must provide.
type Store interface {
	UserRepository
	ProjectRepository
	ProjectFileRepository
	GenerationRepository

	Close() error
}
