package memory

import (
	"context"
	"sort"
	"time"

	"github.com/sakif/appforge/internal/apperror"
	"github.com/sakif/appforge/internal/model"
)

func (s *Store) CreateProject(_ context.Context, project *model.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	project.ID = newID()
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

	stored := *project
	s.projects[project.ID] = &stored
	s.files[project.ID] = make(map[string]*model.ProjectFile)

	return nil
}

func (s *Store) GetProject(_ context.Context, id string) (*model.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.projects[id]
	if !ok {
		return nil, apperror.NotFound("project", id)
	}
	copied := *p
	return &copied, nil
}

// GetUserProjects returns the user's projects sorted by updatedAt
// descending. The map has no order, so we sort on the way out — same
// observable contract as the ORDER BY in the durable backend.
func (s *Store) GetUserProjects(_ context.Context, userID string) ([]model.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	projects := make([]model.Project, 0, 8)
	for _, p := range s.projects {
		if p.UserID == userID {
			projects = append(projects, *p)
		}
	}

	sort.Slice(projects, func(i, j int) bool {
		return projects[i].UpdatedAt.After(projects[j].UpdatedAt)
	})

	return projects, nil
}

func (s *Store) UpdateProject(_ context.Context, project *model.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.projects[project.ID]
	if !ok {
		return apperror.NotFound("project", project.ID)
	}

	project.UserID = existing.UserID
	project.CreatedAt = existing.CreatedAt
	project.UpdatedAt = time.Now()

	stored := *project
	s.projects[project.ID] = &stored
	return nil
}

// DeleteProject removes the project and its entire file map in one step —
// the nested-map layout makes the cascade O(1) instead of a scan.
func (s *Store) DeleteProject(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.projects[id]; !ok {
		return apperror.NotFound("project", id)
	}
	delete(s.projects, id)
	delete(s.files, id)
	return nil
}

// --- project files -------------------------------------------------------

func (s *Store) GetProjectFiles(_ context.Context, projectID string) ([]model.ProjectFile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byPath := s.files[projectID]

	paths := make([]string, 0, len(byPath))
	for path := range byPath {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	files := make([]model.ProjectFile, 0, len(paths))
	for _, path := range paths {
		files = append(files, *byPath[path])
	}
	return files, nil
}

func (s *Store) GetProjectFile(_ context.Context, projectID, path string) (*model.ProjectFile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, ok := s.files[projectID][path]
	if !ok {
		return nil, apperror.NotFound("file", path)
	}
	copied := *f
	return &copied, nil
}

// CreateOrUpdateProjectFile upserts by (projectID, path) with the same
// identity-stability and unchanged-content-no-op semantics as the durable
// backend. See the interface doc in repository.go for the full contract.
func (s *Store) CreateOrUpdateProjectFile(_ context.Context, file *model.ProjectFile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if file.Language == "" {
		file.Language = model.DefaultLanguage
	}

	byPath := s.files[file.ProjectID]
	if byPath == nil {
		// A file for a project created through the other backend path (or
		// a project that never existed) still gets a bucket; the store does
		// not enforce referential integrity, matching the contract.
		byPath = make(map[string]*model.ProjectFile)
		s.files[file.ProjectID] = byPath
	}

	existing, ok := byPath[file.Path]
	if !ok {
		file.ID = newID()
		now := time.Now()
		file.CreatedAt = now
		file.UpdatedAt = now
		stored := *file
		byPath[file.Path] = &stored
		return nil
	}

	if existing.Content == file.Content && existing.Language == file.Language {
		*file = *existing
		return nil
	}

	existing.Content = file.Content
	existing.Language = file.Language
	existing.UpdatedAt = time.Now()

	*file = *existing
	return nil
}

func (s *Store) DeleteProjectFile(_ context.Context, projectID, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// No-op when absent, by contract.
	delete(s.files[projectID], path)
	return nil
}
