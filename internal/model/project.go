package model

import "time"

// Project lifecycle status values.
const (
	StatusDraft    = "draft"
	StatusBuilding = "building"
	StatusDeployed = "deployed"
	StatusError    = "error"
)

// GitStatus values form a small state machine:
//
//	unconnected → connected            (connect: record remote URL + branch)
//	connected   → syncing → connected  (clone/push/pull success)
//	syncing     → error                (clone/push/pull failure — retryable)
//	connected/error → unconnected      (disconnect: clear remote, keep files)
//
// The transitions are enforced by the git service, not the store — the store
// just persists whatever status it is given.
const (
	GitStatusUnconnected = "unconnected"
	GitStatusConnected   = "connected"
	GitStatusSyncing     = "syncing"
	GitStatusError       = "error"
)

// DefaultTemplate is applied when a project is created without one.
const DefaultTemplate = "react"

// DefaultBranch is the branch a project tracks until told otherwise.
const DefaultBranch = "main"

// Project is a named container of files owned by exactly one user, optionally
// linked to one external git remote.
//
// Invariant: GitStatus is "connected" (or "syncing"/"error") only while
// GitHubRepoURL is non-empty. Disconnect resets both together.
//
// GitHubAccessToken is a project-scoped override; when empty, git operations
// fall back to the owning user's linked token. It is json:"-" for the same
// reason as the user-level token — it must never appear in a response body.
type Project struct {
	ID                string     `json:"id"            db:"id"`
	UserID            string     `json:"userId"        db:"user_id"`
	Name              string     `json:"name"          db:"name"`
	Description       string     `json:"description"   db:"description"`
	Template          string     `json:"template"      db:"template"`
	Status            string     `json:"status"        db:"status"`
	DeployURL         string     `json:"deployUrl"     db:"deploy_url"`
	IsPublic          bool       `json:"isPublic"      db:"is_public"`
	GitHubRepoURL     string     `json:"githubRepoUrl" db:"github_repo_url"`
	GitHubBranch      string     `json:"githubBranch"  db:"github_branch"`
	GitHubAccessToken string     `json:"-"             db:"github_access_token"`
	LastSyncAt        *time.Time `json:"lastSyncAt"    db:"last_sync_at"` // nil until the first successful sync
	GitStatus         string     `json:"gitStatus"     db:"git_status"`
	CreatedAt         time.Time  `json:"createdAt"     db:"created_at"`
	UpdatedAt         time.Time  `json:"updatedAt"     db:"updated_at"`
}
