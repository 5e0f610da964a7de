// Package service contains the business logic layer of the application.
//
// THE THREE-LAYER ARCHITECTURE:
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (Business layer) → validates, enforces rules, orchestrates
//	Repository (Data layer)  → reads/writes to the store
//
// Services accept a repository.Store (interface), never a concrete backend —
// the composition root in server.go decides whether that's SQLite or the
// in-memory store, and tests pass whichever is convenient. Services return
// domain errors (apperror.*), never HTTP status codes; the handler layer
// translates.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/appforge/internal/apperror"
	"github.com/sakif/appforge/internal/model"
	"github.com/sakif/appforge/internal/repository"
	"github.com/sakif/appforge/internal/template"
	"github.com/sakif/appforge/internal/workspace"
)

// Validation constants.
const (
	MaxProjectNameLength = 100
	MaxFileContentLength = 1 << 20 // 1MB per file via the API
)

// ProjectService handles business logic for projects and their files.
type ProjectService struct {
	projects repository.ProjectRepository
	files    repository.ProjectFileRepository
	ws       *workspace.Workspace
	logger   *slog.Logger
}

// NewProjectService creates a ProjectService.
func NewProjectService(
	projects repository.ProjectRepository,
	files repository.ProjectFileRepository,
	ws *workspace.Workspace,
	logger *slog.Logger,
) *ProjectService {
	return &ProjectService{
		projects: projects,
		files:    files,
		ws:       ws,
		logger:   logger,
	}
}

// CreateProjectInput carries the caller-settable fields for Create.
type CreateProjectInput struct {
	Name        string
	Description string
	Template    string
	IsPublic    bool
}

// Create validates input, creates the project, and seeds it with the files
// of its template. An unknown template name is a validation error — the
// project is not created.
//
// Seeding happens AFTER the project row exists, one file at a time through
// the same CreateOrUpdateProjectFile path every other writer uses, so the
// seeded files get real IDs and timestamps like any other file.
func (s *ProjectService) Create(ctx context.Context, userID string, in CreateProjectInput) (*model.Project, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperror.ValidationFailed("name", "project name is required")
	}
	if len(name) > MaxProjectNameLength {
		return nil, apperror.ValidationFailed("name", fmt.Sprintf("project name must be %d characters or fewer", MaxProjectNameLength))
	}

	tmplName := in.Template
	if tmplName == "" {
		tmplName = model.DefaultTemplate
	}
	tmpl, ok := template.Get(tmplName)
	if !ok {
		return nil, apperror.ValidationFailed("template", fmt.Sprintf("unknown template %q (available: %s)", tmplName, strings.Join(template.Names(), ", ")))
	}

	project := &model.Project{
		UserID:      userID,
		Name:        name,
		Description: strings.TrimSpace(in.Description),
		Template:    tmplName,
		IsPublic:    in.IsPublic,
	}
	if err := s.projects.CreateProject(ctx, project); err != nil {
		return nil, fmt.Errorf("service/project: creating project: %w", err)
	}

	for _, f := range tmpl.Files {
		pf := &model.ProjectFile{
			ProjectID: project.ID,
			Path:      f.Path,
			Content:   f.Content,
			Language:  f.Language,
		}
		if err := s.files.CreateOrUpdateProjectFile(ctx, pf); err != nil {
			return nil, fmt.Errorf("service/project: seeding template file %s: %w", f.Path, err)
		}
	}

	s.logger.Info("project created",
		slog.String("projectID", project.ID),
		slog.String("userID", userID),
		slog.String("template", tmplName),
	)

	return project, nil
}

// List returns the caller's projects, most recently touched first.
func (s *ProjectService) List(ctx context.Context, userID string) ([]model.Project, error) {
	return s.projects.GetUserProjects(ctx, userID)
}

// Get returns a project the caller may read: their own, or a public one.
func (s *ProjectService) Get(ctx context.Context, userID, projectID string) (*model.Project, error) {
	project, err := s.projects.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if project.UserID != userID && !project.IsPublic {
		// Deliberately NOT NotFound: a 403 on a real ID vs 404 on a fake
		// one is an acceptable existence leak for this app, and the
		// distinction helps the frontend show the right message.
		return nil, apperror.Forbidden("you do not have access to this project")
	}
	return project, nil
}

// UpdateProjectInput carries the mutable fields for Update. Nil pointers
// mean "leave unchanged" so a PATCH-style request only touches what it sends.
type UpdateProjectInput struct {
	Name        *string
	Description *string
	IsPublic    *bool
	Status      *string
	DeployURL   *string
}

// Update applies a partial update to a project the caller owns.
func (s *ProjectService) Update(ctx context.Context, userID, projectID string, in UpdateProjectInput) (*model.Project, error) {
	project, err := s.owned(ctx, userID, projectID)
	if err != nil {
		return nil, err
	}

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, apperror.ValidationFailed("name", "project name is required")
		}
		if len(name) > MaxProjectNameLength {
			return nil, apperror.ValidationFailed("name", fmt.Sprintf("project name must be %d characters or fewer", MaxProjectNameLength))
		}
		project.Name = name
	}
	if in.Description != nil {
		project.Description = strings.TrimSpace(*in.Description)
	}
	if in.IsPublic != nil {
		project.IsPublic = *in.IsPublic
	}
	if in.Status != nil {
		switch *in.Status {
		case model.StatusDraft, model.StatusBuilding, model.StatusDeployed, model.StatusError:
			project.Status = *in.Status
		default:
			return nil, apperror.ValidationFailed("status", fmt.Sprintf("unknown status %q", *in.Status))
		}
	}
	if in.DeployURL != nil {
		project.DeployURL = strings.TrimSpace(*in.DeployURL)
	}

	if err := s.projects.UpdateProject(ctx, project); err != nil {
		return nil, fmt.Errorf("service/project: updating project %s: %w", projectID, err)
	}
	return project, nil
}

// Delete removes a project the caller owns, its files (store cascade), and
// its on-disk scratch areas.
func (s *ProjectService) Delete(ctx context.Context, userID, projectID string) error {
	if _, err := s.owned(ctx, userID, projectID); err != nil {
		return err
	}

	if err := s.projects.DeleteProject(ctx, projectID); err != nil {
		return fmt.Errorf("service/project: deleting project %s: %w", projectID, err)
	}

	// Disk cleanup is best-effort: the store is the source of truth, and a
	// stale scratch dir is recreated from the store on next use anyway.
	unlock := s.ws.Lock(projectID)
	defer unlock()
	if err := s.ws.Clean(s.ws.SnapshotRoot(projectID)); err != nil {
		s.logger.Warn("removing snapshot dir failed", slog.String("projectID", projectID), slog.String("error", err.Error()))
	}
	if err := s.ws.Clean(s.ws.RepoRoot(projectID)); err != nil {
		s.logger.Warn("removing repo dir failed", slog.String("projectID", projectID), slog.String("error", err.Error()))
	}

	s.logger.Info("project deleted", slog.String("projectID", projectID), slog.String("userID", userID))
	return nil
}

// ListFiles returns every file in a readable project, ordered by path.
func (s *ProjectService) ListFiles(ctx context.Context, userID, projectID string) ([]model.ProjectFile, error) {
	if _, err := s.Get(ctx, userID, projectID); err != nil {
		return nil, err
	}
	return s.files.GetProjectFiles(ctx, projectID)
}

// GetFile returns a single file from a readable project.
func (s *ProjectService) GetFile(ctx context.Context, userID, projectID, path string) (*model.ProjectFile, error) {
	if _, err := s.Get(ctx, userID, projectID); err != nil {
		return nil, err
	}
	return s.files.GetProjectFile(ctx, projectID, path)
}

// SaveFile writes file content at a path in a project the caller owns.
// The language, when empty, is inferred from the path's extension so files
// saved via the API look the same as files imported from disk.
func (s *ProjectService) SaveFile(ctx context.Context, userID, projectID, path, content, language string) (*model.ProjectFile, error) {
	if _, err := s.owned(ctx, userID, projectID); err != nil {
		return nil, err
	}

	if !workspace.ValidPath(path) {
		return nil, apperror.ValidationFailed("path", fmt.Sprintf("invalid file path %q", path))
	}
	if len(content) > MaxFileContentLength {
		return nil, apperror.ValidationFailed("content", "file content exceeds the 1MB limit")
	}
	if language == "" {
		language = workspace.LanguageForPath(path)
	}

	file := &model.ProjectFile{
		ProjectID: projectID,
		Path:      path,
		Content:   content,
		Language:  language,
	}
	if err := s.files.CreateOrUpdateProjectFile(ctx, file); err != nil {
		return nil, fmt.Errorf("service/project: saving file %s: %w", path, err)
	}
	return file, nil
}

// DeleteFile removes a file from a project the caller owns. Deleting an
// absent path is a no-op, matching the store contract.
func (s *ProjectService) DeleteFile(ctx context.Context, userID, projectID, path string) error {
	if _, err := s.owned(ctx, userID, projectID); err != nil {
		return err
	}
	if err := s.files.DeleteProjectFile(ctx, projectID, path); err != nil {
		return fmt.Errorf("service/project: deleting file %s: %w", path, err)
	}
	return nil
}

// owned loads a project and requires the caller to be its owner. Public
// visibility grants read, never write — every mutation goes through here.
func (s *ProjectService) owned(ctx context.Context, userID, projectID string) (*model.Project, error) {
	project, err := s.projects.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if project.UserID != userID {
		return nil, apperror.Forbidden("you do not own this project")
	}
	return project, nil
}
