package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/appforge/internal/apperror"
	"github.com/sakif/appforge/internal/model"
	"github.com/sakif/appforge/internal/repository"
)

// compile-time check that *DB implements repository.ProjectRepository
var _ repository.ProjectRepository = (*DB)(nil)

const projectColumns = `id, user_id, name, description, template, status,
	deploy_url, is_public, github_repo_url, github_branch,
	github_access_token, last_sync_at, git_status, created_at, updated_at`

// scanProject reads one project row. last_sync_at is nullable, so it goes
// through sql.NullTime rather than time.Time directly.
func scanProject(row interface{ Scan(...any) error }) (*model.Project, error) {
	var (
		p        model.Project
		lastSync sql.NullTime
	)
	err := row.Scan(
		&p.ID,
		&p.UserID,
		&p.Name,
		&p.Description,
		&p.Template,
		&p.Status,
		&p.DeployURL,
		&p.IsPublic,
		&p.GitHubRepoURL,
		&p.GitHubBranch,
		&p.GitHubAccessToken,
		&lastSync,
		&p.GitStatus,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if lastSync.Valid {
		t := lastSync.Time
		p.LastSyncAt = &t
	}
	return &p, nil
}

// CreateProject inserts a new project with generated ID, timestamps, and
// defaults applied (template="react", status="draft", branch="main",
// gitStatus="unconnected").
func (db *DB) CreateProject(ctx context.Context, project *model.Project) error {
	project.ID = xid.New().String()

	now := time.Now()
	project.CreatedAt = now
	project.UpdatedAt = now

	if project.Template == "" {
		project.Template = model.DefaultTemplate
	}
	if project.Status == "" {
		project.Status = model.StatusDraft
	}
	if project.GitHubBranch == "" {
		project.GitHubBranch = model.DefaultBranch
	}
	if project.GitStatus == "" {
		project.GitStatus = model.GitStatusUnconnected
	}

	var lastSync sql.NullTime
	if project.LastSyncAt != nil {
		lastSync = sql.NullTime{Time: *project.LastSyncAt, Valid: true}
	}

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO projects (`+projectColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		project.ID,
		project.UserID,
		project.Name,
		project.Description,
		project.Template,
		project.Status,
		project.DeployURL,
		project.IsPublic,
		project.GitHubRepoURL,
		project.GitHubBranch,
		project.GitHubAccessToken,
		lastSync,
		project.GitStatus,
		project.CreatedAt,
		project.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting project: %w", err)
	}

	return nil
}

// GetProject retrieves a project by ID.
// Returns apperror.ErrNotFound if no project exists with that ID.
func (db *DB) GetProject(ctx context.Context, id string) (*model.Project, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE id = ?`, id)

	p, err := scanProject(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("project", id)
		}
		return nil, fmt.Errorf("sqlite: getting project %s: %w", id, err)
	}
	return p, nil
}

// GetUserProjects returns all of a user's projects, most recently touched
// first. A user with no projects gets an empty slice, not an error.
func (db *DB) GetUserProjects(ctx context.Context, userID string) ([]model.Project, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+projectColumns+`
		 FROM projects
		 WHERE user_id = ?
		 ORDER BY updated_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing projects for user %s: %w", userID, err)
	}
	defer rows.Close()

	projects := make([]model.Project, 0, 8)
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning project row: %w", err)
		}
		projects = append(projects, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating projects: %w", err)
	}

	return projects, nil
}

// UpdateProject writes all mutable fields and touches updatedAt. ID, UserID,
// and CreatedAt are immutable. Callers use fetch-then-update, so every field
// here carries the merged value.
func (db *DB) UpdateProject(ctx context.Context, project *model.Project) error {
	project.UpdatedAt = time.Now()

	var lastSync sql.NullTime
	if project.LastSyncAt != nil {
		lastSync = sql.NullTime{Time: *project.LastSyncAt, Valid: true}
	}

	result, err := db.conn.ExecContext(ctx,
		`UPDATE projects
		 SET name = ?, description = ?, template = ?, status = ?,
		     deploy_url = ?, is_public = ?, github_repo_url = ?,
		     github_branch = ?, github_access_token = ?, last_sync_at = ?,
		     git_status = ?, updated_at = ?
		 WHERE id = ?`,
		project.Name,
		project.Description,
		project.Template,
		project.Status,
		project.DeployURL,
		project.IsPublic,
		project.GitHubRepoURL,
		project.GitHubBranch,
		project.GitHubAccessToken,
		lastSync,
		project.GitStatus,
		project.UpdatedAt,
		project.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating project %s: %w", project.ID, err)
	}
	return requireRow(result, "project", project.ID)
}

// DeleteProject removes the project; the ON DELETE CASCADE foreign key on
// project_files removes every owned file in the same statement.
func (db *DB) DeleteProject(ctx context.Context, id string) error {
	result, err := db.conn.ExecContext(ctx,
		`DELETE FROM projects WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting project %s: %w", id, err)
	}
	return requireRow(result, "project", id)
}
