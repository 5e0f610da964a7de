package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/appforge/internal/model"
	"github.com/sakif/appforge/internal/repository"
)

// compile-time check that *DB implements repository.GenerationRepository
var _ repository.GenerationRepository = (*DB)(nil)

// CreateGeneration appends one row to the usage log. There is no update or
// delete counterpart on purpose — the log is append-only.
func (db *DB) CreateGeneration(ctx context.Context, gen *model.Generation) error {
	gen.ID = xid.New().String()
	gen.CreatedAt = time.Now()

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO ai_generations
		 (id, user_id, project_id, prompt, response, credits_used, model, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		gen.ID,
		gen.UserID,
		gen.ProjectID,
		gen.Prompt,
		gen.Response,
		gen.CreditsUsed,
		gen.Model,
		gen.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting generation: %w", err)
	}

	return nil
}

// GetUserGenerations returns the user's generations newest first, capped at
// limit (default 50).
func (db *DB) GetUserGenerations(ctx context.Context, userID string, limit int) ([]model.Generation, error) {
	if limit <= 0 {
		limit = repository.DefaultGenerationLimit
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, user_id, project_id, prompt, response, credits_used, model, created_at
		 FROM ai_generations
		 WHERE user_id = ?
		 ORDER BY created_at DESC
		 LIMIT ?`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing generations for user %s: %w", userID, err)
	}
	defer rows.Close()

	gens := make([]model.Generation, 0, limit)
	for rows.Next() {
		var g model.Generation
		if err := rows.Scan(
			&g.ID, &g.UserID, &g.ProjectID, &g.Prompt, &g.Response,
			&g.CreditsUsed, &g.Model, &g.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scanning generation row: %w", err)
		}
		gens = append(gens, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating generations: %w", err)
	}

	return gens, nil
}
