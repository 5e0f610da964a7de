package gitbridge

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// Bridge performs git operations on project working trees. It is stateless:
// every call receives the working directory, remote, and branch explicitly.
// The gitStatus state machine lives one layer up, in the git service —
// Bridge only knows how to run the verbs.
type Bridge struct {
	run    Runner
	logger *slog.Logger
}

// New creates a Bridge using the given Runner. Pass NewRunner(...) in
// production; tests pass a fake.
func New(run Runner, logger *slog.Logger) *Bridge {
	return &Bridge{run: run, logger: logger}
}

// commit identity used when the working tree has no local git config.
// Commits made through the bridge are authored by the platform, not by the
// user's personal identity.
const (
	commitAuthorName  = "appforge"
	commitAuthorEmail = "bot@appforge.dev"
)

// identityArgs prefix every commit with an explicit author so commits work
// in a fresh clone with no global config.
func identityArgs() []string {
	return []string{
		"-c", "user.name=" + commitAuthorName,
		"-c", "user.email=" + commitAuthorEmail,
	}
}

// Clone clones remoteURL (at branch) into dir. dir must not already contain
// a repository — callers clean it first. On failure whatever partial state
// the clone left behind stays on disk; the next attempt cleans again.
func (b *Bridge) Clone(ctx context.Context, dir, remoteURL, branch, token string) error {
	if err := os.MkdirAll(filepath.Dir(dir), 0o755); err != nil {
		return fmt.Errorf("gitbridge: creating clone parent: %w", err)
	}

	authed, err := AuthenticatedURL(remoteURL, token)
	if err != nil {
		return err
	}

	_, err = b.run.Run(ctx, "", "clone", "--branch", branch, "--single-branch", authed, dir)
	if err != nil {
		return fmt.Errorf("gitbridge: clone failed: %w", err)
	}

	b.logger.Info("repository cloned",
		slog.String("dir", dir),
		slog.String("branch", branch),
	)
	return nil
}

// EnsureRepo makes dir a repository tracking remoteURL on branch, creating
// it when a project pushes for the first time without ever having cloned.
// Safe to call when the repository already exists: the remote URL is
// refreshed (the token may have rotated since the last operation).
func (b *Bridge) EnsureRepo(ctx context.Context, dir, remoteURL, branch, token string) error {
	authed, err := AuthenticatedURL(remoteURL, token)
	if err != nil {
		return err
	}

	if _, statErr := os.Stat(filepath.Join(dir, ".git")); statErr == nil {
		if _, err := b.run.Run(ctx, dir, "remote", "set-url", "origin", authed); err != nil {
			return fmt.Errorf("gitbridge: updating remote: %w", err)
		}
		return nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("gitbridge: creating repo dir: %w", err)
	}
	if _, err := b.run.Run(ctx, dir, "init", "--initial-branch", branch); err != nil {
		return fmt.Errorf("gitbridge: init failed: %w", err)
	}
	if _, err := b.run.Run(ctx, dir, "remote", "add", "origin", authed); err != nil {
		return fmt.Errorf("gitbridge: adding remote: %w", err)
	}
	return nil
}

// HasChanges reports whether the working tree differs from HEAD (including
// untracked files). Empty porcelain output means a clean tree.
func (b *Bridge) HasChanges(ctx context.Context, dir string) (bool, error) {
	out, err := b.run.Run(ctx, dir, "status", "--porcelain")
	if err != nil {
		return false, fmt.Errorf("gitbridge: status failed: %w", err)
	}
	return strings.TrimSpace(out) != "", nil
}

// CommitAll stages everything and commits with the given message.
// Callers check HasChanges first; committing a clean tree is an error in
// git itself, which we deliberately never trigger.
func (b *Bridge) CommitAll(ctx context.Context, dir, message string) error {
	if _, err := b.run.Run(ctx, dir, "add", "-A"); err != nil {
		return fmt.Errorf("gitbridge: staging failed: %w", err)
	}

	args := append(identityArgs(), "commit", "-m", message)
	if _, err := b.run.Run(ctx, dir, args...); err != nil {
		return fmt.Errorf("gitbridge: commit failed: %w", err)
	}
	return nil
}

// Push pushes branch to origin, setting upstream on the first push.
func (b *Bridge) Push(ctx context.Context, dir, branch string) error {
	if _, err := b.run.Run(ctx, dir, "push", "-u", "origin", branch); err != nil {
		return fmt.Errorf("gitbridge: push failed: %w", err)
	}
	return nil
}

// Pull pulls branch from origin into the existing working tree. Merge
// conflicts are not resolved here — git's failure propagates to the caller,
// which marks the project's git state as errored.
func (b *Bridge) Pull(ctx context.Context, dir, branch string) error {
	if _, err := b.run.Run(ctx, dir, "pull", "origin", branch); err != nil {
		return fmt.Errorf("gitbridge: pull failed: %w", err)
	}
	return nil
}

// AuthenticatedURL injects an access token into an https remote URL using
// GitHub's x-access-token convention. An empty token returns the URL
// unchanged (public remotes). Non-https remotes are rejected: ssh remotes
// would need key management this system doesn't do.
func AuthenticatedURL(remoteURL, token string) (string, error) {
	u, err := url.Parse(remoteURL)
	if err != nil {
		return "", fmt.Errorf("gitbridge: invalid remote URL: %w", err)
	}
	if u.Scheme != "https" {
		return "", fmt.Errorf("gitbridge: only https remotes are supported, got %q", u.Scheme)
	}
	if token == "" {
		return remoteURL, nil
	}
	u.User = url.UserPassword("x-access-token", token)
	return u.String(), nil
}
