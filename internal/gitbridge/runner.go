// Package gitbridge moves changes between a project's materialized working
// tree and its single upstream remote by shelling out to the git binary.
//
// WHY A SUBPROCESS AND NOT A GIT LIBRARY?
// The system needs exactly five verbs (clone, status, add/commit, push,
// pull) against ordinary https remotes. The git CLI does all of them
// correctly, including credential handling and merge machinery we would
// otherwise have to reimplement. The subprocess boundary is wrapped in the
// Runner interface so everything above it is testable without a git binary
// or network.
package gitbridge

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
	"time"
)

// Runner executes one git command in a working directory and returns its
// combined output. Implementations must treat a non-zero exit as an error
// whose message includes the output — that text is the only diagnostic a
// failed clone or push produces.
type Runner interface {
	Run(ctx context.Context, dir string, args ...string) (string, error)
}

// execRunner is the production Runner: git via os/exec, with a per-command
// timeout so a hung remote cannot pin a request forever.
type execRunner struct {
	timeout time.Duration
}

// DefaultCommandTimeout bounds any single git command. Clones of large
// repositories are the slowest operation this has to accommodate.
const DefaultCommandTimeout = 2 * time.Minute

// NewRunner returns the production git runner. A non-positive timeout falls
// back to DefaultCommandTimeout.
func NewRunner(timeout time.Duration) Runner {
	if timeout <= 0 {
		timeout = DefaultCommandTimeout
	}
	return &execRunner{timeout: timeout}
}

func (r *execRunner) Run(ctx context.Context, dir string, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", args...)
	if dir != "" {
		cmd.Dir = dir
	}
	// Never let git fall back to an interactive credential prompt — there
	// is no terminal, so it would hang until the timeout.
	cmd.Env = append(cmd.Environ(), "GIT_TERMINAL_PROMPT=0")

	out, err := cmd.CombinedOutput()
	if err != nil {
		return string(out), fmt.Errorf("git %s: %w: %s",
			strings.Join(args, " "), err, sanitize(strings.TrimSpace(string(out))))
	}
	return string(out), nil
}

// credentialedURL matches the userinfo portion of an https URL, e.g. the
// "x-access-token:ghp_xxx@" in an authenticated remote.
var credentialedURL = regexp.MustCompile(`https://[^@/\s]+@`)

// sanitize strips credentials from any URL git echoed back in its output,
// so access tokens never reach logs or error responses.
func sanitize(s string) string {
	return credentialedURL.ReplaceAllString(s, "https://***@")
}
