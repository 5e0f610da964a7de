package model

import "time"

// DefaultLanguage is the language tag applied to a file created without one.
const DefaultLanguage = "javascript"

// ProjectFile is one file in a project's virtual tree.
//
// The surrogate ID exists for API convenience, but the NATURAL key is
// (ProjectID, Path) — at most one row may exist per pair at any time.
// Writes to an existing path update the row in place, preserving ID and
// CreatedAt, so file identity is stable across edits. This is what lets an
// AI generation or a git re-import overwrite src/App.jsx a hundred times
// without ever producing a duplicate row.
//
// Path is always relative, slash-separated, and never begins with "/" or
// contains "..": the workspace layer rejects anything else before it reaches
// the store.
type ProjectFile struct {
	ID        string    `json:"id"        db:"id"`
	ProjectID string    `json:"projectId" db:"project_id"`
	Path      string    `json:"path"      db:"path"`
	Content   string    `json:"content"   db:"content"`
	Language  string    `json:"language"  db:"language"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}
