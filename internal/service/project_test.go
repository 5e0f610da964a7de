package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/sakif/appforge/internal/apperror"
	"github.com/sakif/appforge/internal/model"
	"github.com/sakif/appforge/internal/repository/memory"
	"github.com/sakif/appforge/internal/workspace"
)

// Service tests run against the in-memory store: same contract as sqlite,
// no filesystem, no cleanup.

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func newProjectFixture(t *testing.T) (*ProjectService, *memory.Store) {
	t.Helper()
	store := memory.New()
	ws := workspace.New(store, discardLogger(), t.TempDir())
	return NewProjectService(store, store, ws, discardLogger()), store
}

func seedServiceUser(t *testing.T, store *memory.Store, email string) *model.User {
	t.Helper()
	u := &model.User{Email: email}
	if err := store.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	return u
}

func TestProjectCreate_SeedsTemplateFiles(t *testing.T) {
	svc, store := newProjectFixture(t)
	ctx := context.Background()
	owner := seedServiceUser(t, store, "owner@example.com")

	p, err := svc.Create(ctx, owner.ID, CreateProjectInput{Name: "  My App  "})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if p.Name != "My App" {
		t.Errorf("Name = %q, want trimmed", p.Name)
	}
	if p.Template != model.DefaultTemplate {
		t.Errorf("Template = %q, want default %q", p.Template, model.DefaultTemplate)
	}

	files, err := store.GetProjectFiles(ctx, p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 3 {
		t.Fatalf("seeded %d files, want 3 from the react template", len(files))
	}
	for _, f := range files {
		if f.ID == "" || f.Content == "" {
			t.Errorf("seeded file %q missing ID or content", f.Path)
		}
	}
}

func TestProjectCreate_Rejects(t *testing.T) {
	svc, store := newProjectFixture(t)
	ctx := context.Background()
	owner := seedServiceUser(t, store, "owner@example.com")

	tests := []struct {
		name string
		in   CreateProjectInput
	}{
		{"empty name", CreateProjectInput{Name: "   "}},
		{"name too long", CreateProjectInput{Name: strings.Repeat("x", MaxProjectNameLength+1)}},
		{"unknown template", CreateProjectInput{Name: "ok", Template: "fortran-spa"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, owner.ID, tt.in)
			if !errors.Is(err, apperror.ErrValidation) {
				t.Errorf("Create() error = %v, want ErrValidation", err)
			}
		})
	}

	// Nothing was created along the way.
	projects, err := store.GetUserProjects(ctx, owner.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(projects) != 0 {
		t.Errorf("rejected creates left %d projects behind", len(projects))
	}
}

func TestProjectGet_Visibility(t *testing.T) {
	svc, store := newProjectFixture(t)
	ctx := context.Background()
	owner := seedServiceUser(t, store, "owner@example.com")
	stranger := seedServiceUser(t, store, "stranger@example.com")

	private, err := svc.Create(ctx, owner.ID, CreateProjectInput{Name: "private"})
	if err != nil {
		t.Fatal(err)
	}
	public, err := svc.Create(ctx, owner.ID, CreateProjectInput{Name: "public", IsPublic: true})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := svc.Get(ctx, stranger.ID, private.ID); !errors.Is(err, apperror.ErrForbidden) {
		t.Errorf("Get(private, stranger) = %v, want ErrForbidden", err)
	}
	if _, err := svc.Get(ctx, stranger.ID, public.ID); err != nil {
		t.Errorf("Get(public, stranger) = %v, want readable", err)
	}
	if _, err := svc.Get(ctx, owner.ID, private.ID); err != nil {
		t.Errorf("Get(private, owner) = %v", err)
	}
}

func TestProjectUpdate_PartialAndOwnership(t *testing.T) {
	svc, store := newProjectFixture(t)
	ctx := context.Background()
	owner := seedServiceUser(t, store, "owner@example.com")
	stranger := seedServiceUser(t, store, "stranger@example.com")

	p, err := svc.Create(ctx, owner.ID, CreateProjectInput{Name: "app", Description: "desc", IsPublic: true})
	if err != nil {
		t.Fatal(err)
	}

	// Public grants read, never write.
	name := "hijacked"
	if _, err := svc.Update(ctx, stranger.ID, p.ID, UpdateProjectInput{Name: &name}); !errors.Is(err, apperror.ErrForbidden) {
		t.Errorf("Update by non-owner = %v, want ErrForbidden", err)
	}

	// Only the sent field changes.
	status := model.StatusDeployed
	updated, err := svc.Update(ctx, owner.ID, p.ID, UpdateProjectInput{Status: &status})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated.Status != model.StatusDeployed {
		t.Errorf("Status = %q", updated.Status)
	}
	if updated.Name != "app" || updated.Description != "desc" || !updated.IsPublic {
		t.Errorf("unsent fields changed: %+v", updated)
	}

	bad := "launched"
	if _, err := svc.Update(ctx, owner.ID, p.ID, UpdateProjectInput{Status: &bad}); !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("Update with unknown status = %v, want ErrValidation", err)
	}
}

func TestProjectDelete_RemovesFiles(t *testing.T) {
	svc, store := newProjectFixture(t)
	ctx := context.Background()
	owner := seedServiceUser(t, store, "owner@example.com")
	stranger := seedServiceUser(t, store, "stranger@example.com")

	p, err := svc.Create(ctx, owner.ID, CreateProjectInput{Name: "doomed"})
	if err != nil {
		t.Fatal(err)
	}

	if err := svc.Delete(ctx, stranger.ID, p.ID); !errors.Is(err, apperror.ErrForbidden) {
		t.Errorf("Delete by non-owner = %v, want ErrForbidden", err)
	}

	if err := svc.Delete(ctx, owner.ID, p.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := store.GetProject(ctx, p.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("project survived delete: %v", err)
	}
	files, err := store.GetProjectFiles(ctx, p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 0 {
		t.Errorf("%d files survived delete", len(files))
	}
}

func TestSaveFile_ValidatesPathAndSize(t *testing.T) {
	svc, store := newProjectFixture(t)
	ctx := context.Background()
	owner := seedServiceUser(t, store, "owner@example.com")

	p, err := svc.Create(ctx, owner.ID, CreateProjectInput{Name: "app"})
	if err != nil {
		t.Fatal(err)
	}

	for _, path := range []string{"../escape.js", "/abs.js", "", `win\style.js`} {
		if _, err := svc.SaveFile(ctx, owner.ID, p.ID, path, "x", ""); !errors.Is(err, apperror.ErrValidation) {
			t.Errorf("SaveFile(%q) = %v, want ErrValidation", path, err)
		}
	}

	huge := strings.Repeat("a", MaxFileContentLength+1)
	if _, err := svc.SaveFile(ctx, owner.ID, p.ID, "big.txt", huge, ""); !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("oversized SaveFile = %v, want ErrValidation", err)
	}

	// Language inferred from the extension when not supplied.
	f, err := svc.SaveFile(ctx, owner.ID, p.ID, "src/util.ts", "export {}\n", "")
	if err != nil {
		t.Fatalf("SaveFile() error = %v", err)
	}
	if f.Language != "typescript" {
		t.Errorf("Language = %q, want typescript", f.Language)
	}
}

func TestDeleteFile_AbsentPathIsNoOp(t *testing.T) {
	svc, store := newProjectFixture(t)
	ctx := context.Background()
	owner := seedServiceUser(t, store, "owner@example.com")

	p, err := svc.Create(ctx, owner.ID, CreateProjectInput{Name: "app"})
	if err != nil {
		t.Fatal(err)
	}

	if err := svc.DeleteFile(ctx, owner.ID, p.ID, "never-existed.txt"); err != nil {
		t.Errorf("DeleteFile(absent) = %v, want nil", err)
	}
}
