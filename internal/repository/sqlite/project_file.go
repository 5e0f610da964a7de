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

// compile-time check that *DB implements repository.ProjectFileRepository
var _ repository.ProjectFileRepository = (*DB)(nil)

const fileColumns = `id, project_id, path, content, language, created_at, updated_at`

func scanFile(row interface{ Scan(...any) error }) (*model.ProjectFile, error) {
	var f model.ProjectFile
	err := row.Scan(
		&f.ID,
		&f.ProjectID,
		&f.Path,
		&f.Content,
		&f.Language,
		&f.CreatedAt,
		&f.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// GetProjectFiles returns every file in the project ordered by path
// ascending. The ordering is part of the contract — the file tree and the
// workspace materialiser both depend on it being deterministic.
func (db *DB) GetProjectFiles(ctx context.Context, projectID string) ([]model.ProjectFile, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+fileColumns+`
		 FROM project_files
		 WHERE project_id = ?
		 ORDER BY path ASC`,
		projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing files for project %s: %w", projectID, err)
	}
	defer rows.Close()

	files := make([]model.ProjectFile, 0, 16)
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning file row: %w", err)
		}
		files = append(files, *f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating files: %w", err)
	}

	return files, nil
}

// GetProjectFile is an exact-match lookup on the natural key.
func (db *DB) GetProjectFile(ctx context.Context, projectID, path string) (*model.ProjectFile, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+fileColumns+`
		 FROM project_files
		 WHERE project_id = ? AND path = ?`,
		projectID, path,
	)

	f, err := scanFile(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("file", path)
		}
		return nil, fmt.Errorf("sqlite: getting file %s/%s: %w", projectID, path, err)
	}
	return f, nil
}

// CreateOrUpdateProjectFile upserts by (project_id, path).
//
// Existing row → overwrite content/language and touch updatedAt, KEEPING the
// original id and created_at so file identity survives edits. Absent row →
// insert with a fresh id. When the stored content and language already equal
// the incoming values, nothing is written at all — re-importing an unchanged
// workspace must not churn timestamps.
//
// This is deliberately SELECT-then-write rather than INSERT OR REPLACE:
// REPLACE would delete and recreate the row, discarding the id and breaking
// identity stability.
func (db *DB) CreateOrUpdateProjectFile(ctx context.Context, file *model.ProjectFile) error {
	if file.Language == "" {
		file.Language = model.DefaultLanguage
	}

	existing, err := db.GetProjectFile(ctx, file.ProjectID, file.Path)
	if err != nil && !isNotFound(err) {
		return err
	}

	if existing == nil {
		file.ID = xid.New().String()
		now := time.Now()
		file.CreatedAt = now
		file.UpdatedAt = now

		_, err := db.conn.ExecContext(ctx,
			`INSERT INTO project_files (`+fileColumns+`)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			file.ID,
			file.ProjectID,
			file.Path,
			file.Content,
			file.Language,
			file.CreatedAt,
			file.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("sqlite: inserting file %s/%s: %w", file.ProjectID, file.Path, err)
		}
		return nil
	}

	if existing.Content == file.Content && existing.Language == file.Language {
		*file = *existing
		return nil
	}

	existing.Content = file.Content
	existing.Language = file.Language
	existing.UpdatedAt = time.Now()

	_, err = db.conn.ExecContext(ctx,
		`UPDATE project_files
		 SET content = ?, language = ?, updated_at = ?
		 WHERE id = ?`,
		existing.Content,
		existing.Language,
		existing.UpdatedAt,
		existing.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating file %s/%s: %w", file.ProjectID, file.Path, err)
	}

	*file = *existing
	return nil
}

// DeleteProjectFile removes the row for the natural key if present.
// Deleting a path that doesn't exist is a no-op, not an error — the caller's
// intent (path gone) is already satisfied.
func (db *DB) DeleteProjectFile(ctx context.Context, projectID, path string) error {
	_, err := db.conn.ExecContext(ctx,
		`DELETE FROM project_files WHERE project_id = ? AND path = ?`,
		projectID, path,
	)
	if err != nil {
		return fmt.Errorf("sqlite: deleting file %s/%s: %w", projectID, path, err)
	}
	return nil
}
