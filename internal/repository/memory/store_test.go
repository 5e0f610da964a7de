package memory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/sakif/appforge/internal/apperror"
	"github.com/sakif/appforge/internal/model"
)

// The memory backend must honour the same contracts the sqlite tests pin
// down. These tests cover the behaviours where an in-memory map could
// plausibly drift: copy-in/copy-out isolation, ordering, atomic credits,
// and cascade on delete.

func seedUser(t *testing.T, s *Store, email string) *model.User {
	t.Helper()
	u := &model.User{Email: email}
	if err := s.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	return u
}

func seedProject(t *testing.T, s *Store, userID, name string) *model.Project {
	t.Helper()
	p := &model.Project{UserID: userID, Name: name}
	if err := s.CreateProject(context.Background(), p); err != nil {
		t.Fatalf("CreateProject() error = %v", err)
	}
	return p
}

func TestCreateUser_DefaultsAndConflict(t *testing.T) {
	s := New()

	u := seedUser(t, s, "a@example.com")
	if u.Credits != model.DefaultCredits || u.SubscriptionStatus != model.SubscriptionFree {
		t.Errorf("defaults not applied: credits=%d status=%q", u.Credits, u.SubscriptionStatus)
	}

	err := s.CreateUser(context.Background(), &model.User{Email: "a@example.com"})
	if !errors.Is(err, apperror.ErrConflict) {
		t.Fatalf("duplicate email = %v, want ErrConflict", err)
	}
}

func TestGetUser_ReturnsCopy(t *testing.T) {
	s := New()
	u := seedUser(t, s, "copy@example.com")

	got, err := s.GetUser(context.Background(), u.ID)
	if err != nil {
		t.Fatalf("GetUser() error = %v", err)
	}

	// Mutating the returned record must not leak into the store.
	got.FirstName = "mutated"

	again, _ := s.GetUser(context.Background(), u.ID)
	if again.FirstName == "mutated" {
		t.Error("GetUser() returned a live pointer into store state")
	}
}

func TestApplyCreditDelta_Atomicity(t *testing.T) {
	s := New()
	u := seedUser(t, s, "race@example.com")

	// 200 concurrent 10-credit spends against a 1000-credit balance:
	// exactly 100 must succeed and the balance must land on zero.
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.ApplyCreditDelta(context.Background(), u.ID, -10); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if succeeded != 100 {
		t.Errorf("succeeded = %d spends, want exactly 100", succeeded)
	}
	got, _ := s.GetUser(context.Background(), u.ID)
	if got.Credits != 0 {
		t.Errorf("final balance = %d, want 0", got.Credits)
	}
}

func TestUpsertUser_ByEmailThenByID(t *testing.T) {
	s := New()
	u := seedUser(t, s, "upsert@example.com")

	byEmail := &model.User{Email: "upsert@example.com", FirstName: "Via Email"}
	if err := s.UpsertUser(context.Background(), byEmail); err != nil {
		t.Fatalf("UpsertUser() by email error = %v", err)
	}
	if byEmail.ID != u.ID {
		t.Errorf("upsert by email resolved ID %q, want %q", byEmail.ID, u.ID)
	}

	byID := &model.User{ID: u.ID, LastName: "Via ID"}
	if err := s.UpsertUser(context.Background(), byID); err != nil {
		t.Fatalf("UpsertUser() by id error = %v", err)
	}
	if byID.FirstName != "Via Email" || byID.LastName != "Via ID" {
		t.Errorf("merge result = %q %q, want non-empty fields merged", byID.FirstName, byID.LastName)
	}
}

func TestDeleteProject_CascadesToFiles(t *testing.T) {
	s := New()
	u := seedUser(t, s, "cascade@example.com")
	p := seedProject(t, s, u.ID, "doomed")

	f := &model.ProjectFile{ProjectID: p.ID, Path: "a.txt", Content: "x"}
	if err := s.CreateOrUpdateProjectFile(context.Background(), f); err != nil {
		t.Fatalf("CreateOrUpdateProjectFile() error = %v", err)
	}

	if err := s.DeleteProject(context.Background(), p.ID); err != nil {
		t.Fatalf("DeleteProject() error = %v", err)
	}

	files, err := s.GetProjectFiles(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("GetProjectFiles() error = %v", err)
	}
	if len(files) != 0 {
		t.Errorf("files survived project deletion: %d remain", len(files))
	}
}

func TestCreateOrUpdateProjectFile_PathStableIdentity(t *testing.T) {
	s := New()
	u := seedUser(t, s, "files@example.com")
	p := seedProject(t, s, u.ID, "files")

	v1 := &model.ProjectFile{ProjectID: p.ID, Path: "src/App.jsx", Content: "v1"}
	if err := s.CreateOrUpdateProjectFile(context.Background(), v1); err != nil {
		t.Fatalf("insert error = %v", err)
	}
	v2 := &model.ProjectFile{ProjectID: p.ID, Path: "src/App.jsx", Content: "v2"}
	if err := s.CreateOrUpdateProjectFile(context.Background(), v2); err != nil {
		t.Fatalf("update error = %v", err)
	}

	if v2.ID != v1.ID {
		t.Errorf("overwrite changed ID: %q → %q", v1.ID, v2.ID)
	}

	files, _ := s.GetProjectFiles(context.Background(), p.ID)
	if len(files) != 1 || files[0].Content != "v2" {
		t.Errorf("expected single file with v2 content, got %+v", files)
	}
}

func TestGetProjectFiles_SortedByPath(t *testing.T) {
	s := New()
	u := seedUser(t, s, "sorted@example.com")
	p := seedProject(t, s, u.ID, "sorted")

	for _, path := range []string{"z.txt", "a.txt", "m/n.txt"} {
		f := &model.ProjectFile{ProjectID: p.ID, Path: path, Content: "x"}
		if err := s.CreateOrUpdateProjectFile(context.Background(), f); err != nil {
			t.Fatalf("insert %s error = %v", path, err)
		}
	}

	files, _ := s.GetProjectFiles(context.Background(), p.ID)
	want := []string{"a.txt", "m/n.txt", "z.txt"}
	for i, path := range want {
		if files[i].Path != path {
			t.Errorf("files[%d].Path = %q, want %q", i, files[i].Path, path)
		}
	}
}

func TestGetUserGenerations_NewestFirstAndCapped(t *testing.T) {
	s := New()
	u := seedUser(t, s, "gens@example.com")

	for i := 0; i < 5; i++ {
		g := &model.Generation{UserID: u.ID, Prompt: "p", Response: "r", CreditsUsed: 10}
		if err := s.CreateGeneration(context.Background(), g); err != nil {
			t.Fatalf("CreateGeneration() error = %v", err)
		}
	}

	gens, err := s.GetUserGenerations(context.Background(), u.ID, 3)
	if err != nil {
		t.Fatalf("GetUserGenerations() error = %v", err)
	}
	if len(gens) != 3 {
		t.Fatalf("got %d generations, want 3", len(gens))
	}
	for i := 1; i < len(gens); i++ {
		if gens[i].CreatedAt.After(gens[i-1].CreatedAt) {
			t.Error("generations not in newest-first order")
		}
	}
}
