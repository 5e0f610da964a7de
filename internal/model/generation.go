package model

import "time"

// Generation is one recorded AI invocation: the prompt sent, the raw model
// response, and the credits it cost.
//
// This is an append-only audit log — rows are never updated or deleted by
// normal operation. ProjectID may be empty: a generation can happen before
// the project it leads to exists (e.g. "build me a todo app" from the
// dashboard).
type Generation struct {
	ID          string    `json:"id"          db:"id"`
	UserID      string    `json:"userId"      db:"user_id"`
	ProjectID   string    `json:"projectId"   db:"project_id"` // optional
	Prompt      string    `json:"prompt"      db:"prompt"`
	Response    string    `json:"response"    db:"response"`
	CreditsUsed int       `json:"creditsUsed" db:"credits_used"`
	Model       string    `json:"model"       db:"model"`
	CreatedAt   time.Time `json:"createdAt"   db:"created_at"`
}
