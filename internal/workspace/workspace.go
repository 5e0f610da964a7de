// Package workspace projects a project's stored file set onto a real
// directory tree and back.
//
// Two scratch roots exist per project, for two different consumers:
//
//	<base>/snapshots/<projectID>  — read-only input for AI-context scanning
//	<base>/repos/<projectID>      — the working tree for git operations
//
// They are deliberately separate paths so an AI snapshot and a git clone can
// never alias each other mid-operation.
//
// SERIALISATION:
// Materialize, Dematerialize, and every git operation on the same project
// must not interleave — a push reading a half-materialised tree would commit
// garbage. Lock(projectID) hands out a per-project mutex; the git service
// holds it across its whole composite operation, and the context builder
// holds it while snapshotting.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sakif/appforge/internal/model"
	"github.com/sakif/appforge/internal/repository"
)

// skipDirs are directory names excluded from every recursive walk, by name
// match at any depth: version-control metadata, dependency caches, and
// build output. This is a name list, not ignore-file parsing.
var skipDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"dist":         true,
	"build":        true,
	".next":        true,
	"vendor":       true,
	"__pycache__":  true,
}

// Workspace mirrors project file sets to and from disk.
type Workspace struct {
	files  repository.ProjectFileRepository
	logger *slog.Logger
	base   string

	locks sync.Map // projectID → *sync.Mutex
}

// New creates a Workspace rooted at baseDir. The directory is created on
// first materialisation, not here.
func New(files repository.ProjectFileRepository, logger *slog.Logger, baseDir string) *Workspace {
	return &Workspace{
		files:  files,
		logger: logger,
		base:   baseDir,
	}
}

// SnapshotRoot is the scratch directory for AI-context snapshots.
func (w *Workspace) SnapshotRoot(projectID string) string {
	return filepath.Join(w.base, "snapshots", projectID)
}

// RepoRoot is the scratch directory used as the git working tree.
func (w *Workspace) RepoRoot(projectID string) string {
	return filepath.Join(w.base, "repos", projectID)
}

// Lock acquires the per-project mutex and returns its unlock function:
//
//	unlock := ws.Lock(projectID)
//	defer unlock()
//
// Mutexes are created lazily and never removed; the map grows with the
// number of distinct projects touched by this process, which is bounded and
// small per instance.
func (w *Workspace) Lock(projectID string) (unlock func()) {
	v, _ := w.locks.LoadOrStore(projectID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// Materialize writes the project's stored files under root, creating parent
// directories as needed and overwriting anything already at each relative
// path. After it returns, root is a byte-exact mirror of the store at the
// moment of the call. Files present on disk but absent from the store are
// left alone (a git working tree keeps its .git directory this way).
//
// Callers are expected to hold Lock(projectID).
func (w *Workspace) Materialize(ctx context.Context, projectID, root string) error {
	files, err := w.files.GetProjectFiles(ctx, projectID)
	if err != nil {
		return fmt.Errorf("workspace: loading files for project %s: %w", projectID, err)
	}

	if err := os.MkdirAll(root, 0o755); err != nil {
		return fmt.Errorf("workspace: creating root %s: %w", root, err)
	}

	for _, f := range files {
		rel, err := safeRelPath(f.Path)
		if err != nil {
			// A hostile path in the store must not escape the root. Skip
			// and record it; the rest of the tree is still valid.
			w.logger.Warn("skipping file with unsafe path",
				slog.String("projectID", projectID),
				slog.String("path", f.Path),
			)
			continue
		}

		dst := filepath.Join(root, rel)
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return fmt.Errorf("workspace: creating directory for %s: %w", f.Path, err)
		}
		if err := os.WriteFile(dst, []byte(f.Content), 0o644); err != nil {
			return fmt.Errorf("workspace: writing %s: %w", f.Path, err)
		}
	}

	w.logger.Debug("workspace materialized",
		slog.String("projectID", projectID),
		slog.String("root", root),
		slog.Int("files", len(files)),
	)
	return nil
}

// Dematerialize walks root and writes every regular file back into the
// store via CreateOrUpdateProjectFile, inferring the language tag from the
// extension. Directories in skipDirs are pruned at any depth. An unreadable
// individual file is skipped and logged, not fatal to the walk.
//
// The operation is ADDITIVE-ONLY: store rows whose path no longer exists on
// disk are NOT deleted. That asymmetry matches the product's current
// semantics (a file deleted in a git remote survives in the editor until
// deleted there too); reconciling deletions here is a product decision, not
// a bug fix. Re-running on an unchanged tree is a pure no-op thanks to the
// store's unchanged-content short-circuit.
//
// Returns the number of files imported. Callers are expected to hold
// Lock(projectID).
func (w *Workspace) Dematerialize(ctx context.Context, projectID, root string) (int, error) {
	imported := 0

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && skipDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return fmt.Errorf("workspace: computing relative path for %s: %w", path, err)
		}
		rel = filepath.ToSlash(rel)

		content, err := os.ReadFile(path)
		if err != nil {
			// Recorded and skipped — one unreadable file must not abort
			// the whole import.
			w.logger.Warn("skipping unreadable file during import",
				slog.String("projectID", projectID),
				slog.String("path", rel),
				slog.String("error", err.Error()),
			)
			return nil
		}

		file := &model.ProjectFile{
			ProjectID: projectID,
			Path:      rel,
			Content:   string(content),
			Language:  LanguageForPath(rel),
		}
		if err := w.files.CreateOrUpdateProjectFile(ctx, file); err != nil {
			return fmt.Errorf("workspace: importing %s: %w", rel, err)
		}

		imported++
		return nil
	})
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, fmt.Errorf("workspace: root %s does not exist: %w", root, err)
		}
		return imported, err
	}

	w.logger.Debug("workspace dematerialized",
		slog.String("projectID", projectID),
		slog.String("root", root),
		slog.Int("files", imported),
	)
	return imported, nil
}

// Clean removes a scratch root entirely. Used before a fresh clone.
func (w *Workspace) Clean(root string) error {
	if err := os.RemoveAll(root); err != nil {
		return fmt.Errorf("workspace: removing %s: %w", root, err)
	}
	return nil
}

// safeRelPath validates a store path for use on disk: it must be relative,
// slash-separated, and must not climb out of the root via "..".
func safeRelPath(p string) (string, error) {
	if p == "" || strings.HasPrefix(p, "/") {
		return "", fmt.Errorf("path %q is not relative", p)
	}
	clean := filepath.Clean(filepath.FromSlash(p))
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes the workspace root", p)
	}
	return clean, nil
}

// ValidPath reports whether a store path is acceptable: relative,
// slash-separated, not escaping via "..". The service layer calls this on
// API file writes so a bad path is rejected before it reaches the store.
func ValidPath(p string) bool {
	if strings.Contains(p, "\\") {
		return false
	}
	_, err := safeRelPath(p)
	return err == nil
}

// SkippedDir reports whether a directory name is in the fixed exclusion
// list. Exported for the AI context builder, which walks snapshots with the
// same rules.
func SkippedDir(name string) bool {
	return skipDirs[name]
}
