package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sakif/appforge/internal/workspace"
)

// MaxContextFileSize is the ceiling for full inclusion: files above it are
// summarised (path + size) instead of inlined, so one bundled asset can't
// blow the prompt budget.
const MaxContextFileSize = 100 * 1024

// contextExts is the allow-list of source-like extensions included in full.
// Everything else is summarised regardless of size.
var contextExts = map[string]bool{
	".js": true, ".jsx": true, ".mjs": true,
	".ts": true, ".tsx": true,
	".py": true, ".go": true,
	".css": true, ".html": true, ".htm": true,
	".json": true, ".md": true,
	".yml": true, ".yaml": true,
}

// ContextFile is one file included in full in the model context.
type ContextFile struct {
	Path     string
	Content  string
	Language string
	Size     int64
}

// FileSummary is a file mentioned but not inlined (too large, or not a
// source-like extension).
type FileSummary struct {
	Path string
	Size int64
}

// ProjectContext is everything the model gets to see about a project.
type ProjectContext struct {
	Files             []ContextFile
	Summaries         []FileSummary
	Structure         string // indented tree rendering of all paths
	DependencySummary string // from package.json, when present
}

// ContextBuilder assembles a ProjectContext from a workspace snapshot.
//
// It materialises the project into its snapshot root (never the git working
// tree) and scans the directory, holding the per-project lock for the whole
// pass so a concurrent re-import can't produce a torn snapshot.
type ContextBuilder struct {
	ws     *workspace.Workspace
	logger *slog.Logger
}

func NewContextBuilder(ws *workspace.Workspace, logger *slog.Logger) *ContextBuilder {
	return &ContextBuilder{ws: ws, logger: logger}
}

// Build snapshots the project and assembles its context.
func (b *ContextBuilder) Build(ctx context.Context, projectID string) (*ProjectContext, error) {
	unlock := b.ws.Lock(projectID)
	defer unlock()

	root := b.ws.SnapshotRoot(projectID)
	if err := b.ws.Materialize(ctx, projectID, root); err != nil {
		return nil, fmt.Errorf("ai: snapshotting project %s: %w", projectID, err)
	}

	pc := &ProjectContext{}
	var paths []string

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && workspace.SkippedDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		paths = append(paths, rel)

		info, err := d.Info()
		if err != nil {
			return err
		}

		ext := strings.ToLower(filepath.Ext(rel))
		if !contextExts[ext] || info.Size() > MaxContextFileSize {
			pc.Summaries = append(pc.Summaries, FileSummary{Path: rel, Size: info.Size()})
			return nil
		}

		content, err := os.ReadFile(path)
		if err != nil {
			b.logger.Warn("skipping unreadable file in context",
				slog.String("projectID", projectID),
				slog.String("path", rel),
			)
			return nil
		}

		pc.Files = append(pc.Files, ContextFile{
			Path:     rel,
			Content:  string(content),
			Language: workspace.LanguageForPath(rel),
			Size:     info.Size(),
		})

		if rel == "package.json" {
			pc.DependencySummary = summarizeDependencies(content)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ai: scanning snapshot for %s: %w", projectID, err)
	}

	sort.Strings(paths)
	pc.Structure = treeString(paths)
	return pc, nil
}

// summarizeDependencies extracts dependency names and versions from a
// package.json body. A malformed file yields an empty summary, not an
// error — the context is best-effort.
func summarizeDependencies(packageJSON []byte) string {
	var parsed struct {
		Dependencies    map[string]string `json:"dependencies"`
		DevDependencies map[string]string `json:"devDependencies"`
	}
	if err := json.Unmarshal(packageJSON, &parsed); err != nil {
		return ""
	}

	format := func(label string, deps map[string]string) string {
		if len(deps) == 0 {
			return ""
		}
		names := make([]string, 0, len(deps))
		for name := range deps {
			names = append(names, name)
		}
		sort.Strings(names)
		parts := make([]string, 0, len(names))
		for _, name := range names {
			parts = append(parts, name+" "+deps[name])
		}
		return label + ": " + strings.Join(parts, ", ")
	}

	sections := []string{}
	if s := format("dependencies", parsed.Dependencies); s != "" {
		sections = append(sections, s)
	}
	if s := format("devDependencies", parsed.DevDependencies); s != "" {
		sections = append(sections, s)
	}
	return strings.Join(sections, "\n")
}

// treeString renders sorted relative paths as an indented tree:
//
//	src/
//	  App.css
//	  App.jsx
//	package.json
//
// Deterministic because the input is sorted; directories appear once.
func treeString(paths []string) string {
	var sb strings.Builder
	seen := map[string]bool{}

	for _, p := range paths {
		parts := strings.Split(p, "/")
		for depth, part := range parts {
			prefix := strings.Join(parts[:depth+1], "/")
			if depth < len(parts)-1 {
				if seen[prefix] {
					continue
				}
				seen[prefix] = true
				sb.WriteString(strings.Repeat("  ", depth) + part + "/\n")
			} else {
				sb.WriteString(strings.Repeat("  ", depth) + part + "\n")
			}
		}
	}
	return sb.String()
}

// Render formats the context as the model-facing prompt section.
func (pc *ProjectContext) Render() string {
	var sb strings.Builder

	sb.WriteString("Project structure:\n\n")
	sb.WriteString(pc.Structure)

	if pc.DependencySummary != "" {
		sb.WriteString("\nDependencies:\n")
		sb.WriteString(pc.DependencySummary)
		sb.WriteString("\n")
	}

	for _, f := range pc.Files {
		sb.WriteString("\n```" + f.Language + " " + f.Path + "\n")
		sb.WriteString(f.Content)
		if !strings.HasSuffix(f.Content, "\n") {
			sb.WriteString("\n")
		}
		sb.WriteString("```\n")
	}

	if len(pc.Summaries) > 0 {
		sb.WriteString("\nOmitted from context (too large or binary):\n")
		for _, s := range pc.Summaries {
			sb.WriteString(fmt.Sprintf("  %s (%d bytes)\n", s.Path, s.Size))
		}
	}

	return sb.String()
}
