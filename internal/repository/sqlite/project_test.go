package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sakif/appforge/internal/apperror"
	"github.com/sakif/appforge/internal/model"
)

func createTestProject(t *testing.T, db *DB, userID, name string) *model.Project {
	t.Helper()
	project := &model.Project{UserID: userID, Name: name}
	if err := db.CreateProject(context.Background(), project); err != nil {
		t.Fatalf("failed to create test project: %v", err)
	}
	return project
}

func TestCreateProject_AppliesDefaults(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "p@example.com")

	project := &model.Project{UserID: user.ID, Name: "my app"}
	if err := db.CreateProject(context.Background(), project); err != nil {
		t.Fatalf("CreateProject() error = %v", err)
	}

	if project.ID == "" {
		t.Error("CreateProject() did not set ID")
	}
	if project.Template != model.DefaultTemplate {
		t.Errorf("Template = %q, want %q", project.Template, model.DefaultTemplate)
	}
	if project.Status != model.StatusDraft {
		t.Errorf("Status = %q, want %q", project.Status, model.StatusDraft)
	}
	if project.GitStatus != model.GitStatusUnconnected {
		t.Errorf("GitStatus = %q, want %q", project.GitStatus, model.GitStatusUnconnected)
	}
	if project.GitHubBranch != model.DefaultBranch {
		t.Errorf("GitHubBranch = %q, want %q", project.GitHubBranch, model.DefaultBranch)
	}
	if project.LastSyncAt != nil {
		t.Error("LastSyncAt should be nil before the first sync")
	}
}

func TestGetUserProjects_MostRecentlyTouchedFirst(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "order@example.com")

	first := createTestProject(t, db, user.ID, "first")
	second := createTestProject(t, db, user.ID, "second")

	// Touch the older one; it must move to the front.
	time.Sleep(5 * time.Millisecond) // ensure a strictly later updated_at
	first.Description = "touched"
	if err := db.UpdateProject(context.Background(), first); err != nil {
		t.Fatalf("UpdateProject() error = %v", err)
	}

	projects, err := db.GetUserProjects(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("GetUserProjects() error = %v", err)
	}
	if len(projects) != 2 {
		t.Fatalf("GetUserProjects() returned %d projects, want 2", len(projects))
	}
	if projects[0].ID != first.ID {
		t.Errorf("projects[0] = %q, want recently touched %q", projects[0].Name, first.Name)
	}
	if projects[1].ID != second.ID {
		t.Errorf("projects[1] = %q, want %q", projects[1].Name, second.Name)
	}
}

func TestGetUserProjects_EmptyForUnknownUser(t *testing.T) {
	db := newTestDB(t)

	projects, err := db.GetUserProjects(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("GetUserProjects() error = %v", err)
	}
	if len(projects) != 0 {
		t.Errorf("GetUserProjects() = %d projects, want 0", len(projects))
	}
}

func TestUpdateProject_PersistsGitFields(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "git@example.com")
	project := createTestProject(t, db, user.ID, "repo")

	now := time.Now()
	project.GitHubRepoURL = "https://github.com/u/r.git"
	project.GitStatus = model.GitStatusConnected
	project.LastSyncAt = &now
	if err := db.UpdateProject(context.Background(), project); err != nil {
		t.Fatalf("UpdateProject() error = %v", err)
	}

	got, err := db.GetProject(context.Background(), project.ID)
	if err != nil {
		t.Fatalf("GetProject() error = %v", err)
	}
	if got.GitStatus != model.GitStatusConnected {
		t.Errorf("GitStatus = %q, want %q", got.GitStatus, model.GitStatusConnected)
	}
	if got.LastSyncAt == nil {
		t.Error("LastSyncAt not persisted")
	}
}

func TestUpdateProject_NotFound(t *testing.T) {
	db := newTestDB(t)

	err := db.UpdateProject(context.Background(), &model.Project{ID: "missing", Name: "x"})
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Fatalf("UpdateProject() = %v, want ErrNotFound", err)
	}
}

func TestDeleteProject_CascadesToFiles(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "cascade@example.com")
	project := createTestProject(t, db, user.ID, "doomed")

	file := &model.ProjectFile{ProjectID: project.ID, Path: "src/App.jsx", Content: "x"}
	if err := db.CreateOrUpdateProjectFile(context.Background(), file); err != nil {
		t.Fatalf("CreateOrUpdateProjectFile() error = %v", err)
	}

	if err := db.DeleteProject(context.Background(), project.ID); err != nil {
		t.Fatalf("DeleteProject() error = %v", err)
	}

	if _, err := db.GetProject(context.Background(), project.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetProject() after delete = %v, want ErrNotFound", err)
	}

	files, err := db.GetProjectFiles(context.Background(), project.ID)
	if err != nil {
		t.Fatalf("GetProjectFiles() error = %v", err)
	}
	if len(files) != 0 {
		t.Errorf("files survived project deletion: %d remain", len(files))
	}
}
