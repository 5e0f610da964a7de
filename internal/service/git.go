// Git business logic: the state machine that drives a project's gitStatus
// through connect, clone, push, pull, and disconnect.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sakif/appforge/internal/apperror"
	"github.com/sakif/appforge/internal/gitbridge"
	"github.com/sakif/appforge/internal/model"
	"github.com/sakif/appforge/internal/repository"
	"github.com/sakif/appforge/internal/workspace"
)

// GitService orchestrates git operations on projects.
//
// Every network operation follows the same shape:
//
//  1. load project, check ownership and that a remote is connected
//  2. persist gitStatus="syncing" so the UI can show progress
//  3. take the project's workspace lock and do the work in the repo dir
//  4. on success: gitStatus="connected", LastSyncAt=now
//     on failure: gitStatus="error" (retryable — the remote config stays)
//
// The workspace lock is held across the whole composite operation, so a
// concurrent push and pull on the same project serialize instead of
// corrupting the scratch checkout.
type GitService struct {
	users    repository.UserRepository
	projects repository.ProjectRepository
	ws       *workspace.Workspace
	git      *gitbridge.Bridge
	logger   *slog.Logger
}

// NewGitService creates a GitService.
func NewGitService(
	users repository.UserRepository,
	projects repository.ProjectRepository,
	ws *workspace.Workspace,
	git *gitbridge.Bridge,
	logger *slog.Logger,
) *GitService {
	return &GitService{
		users:    users,
		projects: projects,
		ws:       ws,
		git:      git,
		logger:   logger,
	}
}

// Connect records a remote on the project and marks it connected. No
// network traffic happens here — the first clone/push/pull exercises the
// remote. An explicit token overrides the owner's linked GitHub token for
// this project only.
func (s *GitService) Connect(ctx context.Context, userID, projectID, remoteURL, branch, token string) (*model.Project, error) {
	project, err := s.ownedProject(ctx, userID, projectID)
	if err != nil {
		return nil, err
	}

	remoteURL = strings.TrimSpace(remoteURL)
	if !strings.HasPrefix(remoteURL, "https://") {
		return nil, apperror.ValidationFailed("repoUrl", "remote URL must be https")
	}
	if branch == "" {
		branch = model.DefaultBranch
	}

	project.GitHubRepoURL = remoteURL
	project.GitHubBranch = branch
	project.GitHubAccessToken = token
	project.GitStatus = model.GitStatusConnected

	if err := s.projects.UpdateProject(ctx, project); err != nil {
		return nil, fmt.Errorf("service/git: connecting project %s: %w", projectID, err)
	}

	s.logger.Info("project connected to remote",
		slog.String("projectID", projectID),
		slog.String("branch", branch),
	)
	return project, nil
}

// Disconnect clears the remote config and returns the project to
// unconnected. Files stay — disconnecting never touches content. The
// scratch checkout is removed so a later re-connect starts clean.
func (s *GitService) Disconnect(ctx context.Context, userID, projectID string) (*model.Project, error) {
	project, err := s.ownedProject(ctx, userID, projectID)
	if err != nil {
		return nil, err
	}

	project.GitHubRepoURL = ""
	project.GitHubBranch = model.DefaultBranch
	project.GitHubAccessToken = ""
	project.GitStatus = model.GitStatusUnconnected
	project.LastSyncAt = nil

	if err := s.projects.UpdateProject(ctx, project); err != nil {
		return nil, fmt.Errorf("service/git: disconnecting project %s: %w", projectID, err)
	}

	unlock := s.ws.Lock(projectID)
	defer unlock()
	if err := s.ws.Clean(s.ws.RepoRoot(projectID)); err != nil {
		s.logger.Warn("removing repo dir on disconnect failed",
			slog.String("projectID", projectID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.Info("project disconnected from remote", slog.String("projectID", projectID))
	return project, nil
}

// Clone fetches the remote from scratch and imports its files into the
// store. Import is additive: store files whose paths don't exist in the
// clone survive. Existing paths are overwritten with the cloned content.
func (s *GitService) Clone(ctx context.Context, userID, projectID string) (*model.Project, error) {
	return s.sync(ctx, userID, projectID, "clone", func(ctx context.Context, project *model.Project, dir, token string) error {
		if err := s.ws.Clean(dir); err != nil {
			return err
		}
		if err := s.git.Clone(ctx, dir, project.GitHubRepoURL, project.GitHubBranch, token); err != nil {
			return err
		}
		imported, err := s.ws.Dematerialize(ctx, project.ID, dir)
		if err != nil {
			return err
		}
		s.logger.Info("clone imported files",
			slog.String("projectID", project.ID),
			slog.Int("files", imported),
		)
		return nil
	})
}

// Push exports the project's files to the scratch checkout, commits, and
// pushes. A clean tree (nothing changed since the last push) is a SUCCESS:
// the remote already matches, so the project stays connected and LastSyncAt
// still advances.
func (s *GitService) Push(ctx context.Context, userID, projectID, message string) (*model.Project, error) {
	if strings.TrimSpace(message) == "" {
		message = "Update from appforge"
	}
	return s.sync(ctx, userID, projectID, "push", func(ctx context.Context, project *model.Project, dir, token string) error {
		if err := s.git.EnsureRepo(ctx, dir, project.GitHubRepoURL, project.GitHubBranch, token); err != nil {
			return err
		}
		if err := s.ws.Materialize(ctx, project.ID, dir); err != nil {
			return err
		}
		dirty, err := s.git.HasChanges(ctx, dir)
		if err != nil {
			return err
		}
		if !dirty {
			s.logger.Info("push found nothing to commit", slog.String("projectID", project.ID))
			return nil
		}
		if err := s.git.CommitAll(ctx, dir, message); err != nil {
			return err
		}
		return s.git.Push(ctx, dir, project.GitHubBranch)
	})
}

// Pull fetches the remote's current state into the scratch checkout and
// imports it, additively, into the store.
func (s *GitService) Pull(ctx context.Context, userID, projectID string) (*model.Project, error) {
	return s.sync(ctx, userID, projectID, "pull", func(ctx context.Context, project *model.Project, dir, token string) error {
		if err := s.git.EnsureRepo(ctx, dir, project.GitHubRepoURL, project.GitHubBranch, token); err != nil {
			return err
		}
		if err := s.git.Pull(ctx, dir, project.GitHubBranch); err != nil {
			return err
		}
		imported, err := s.ws.Dematerialize(ctx, project.ID, dir)
		if err != nil {
			return err
		}
		s.logger.Info("pull imported files",
			slog.String("projectID", project.ID),
			slog.Int("files", imported),
		)
		return nil
	})
}

// sync wraps a network git operation in the shared state-machine choreography.
func (s *GitService) sync(
	ctx context.Context,
	userID, projectID, op string,
	work func(ctx context.Context, project *model.Project, dir, token string) error,
) (*model.Project, error) {
	project, err := s.ownedProject(ctx, userID, projectID)
	if err != nil {
		return nil, err
	}
	if project.GitHubRepoURL == "" {
		return nil, apperror.ValidationFailed("repoUrl", "project is not connected to a remote")
	}

	token, err := s.resolveToken(ctx, project)
	if err != nil {
		return nil, err
	}
	// Reject a bad remote URL before flipping any status.
	if _, err := gitbridge.AuthenticatedURL(project.GitHubRepoURL, token); err != nil {
		return nil, apperror.ValidationFailed("repoUrl", err.Error())
	}

	project.GitStatus = model.GitStatusSyncing
	if err := s.projects.UpdateProject(ctx, project); err != nil {
		return nil, fmt.Errorf("service/git: marking project syncing: %w", err)
	}

	unlock := s.ws.Lock(projectID)
	workErr := work(ctx, project, s.ws.RepoRoot(projectID), token)
	unlock()

	if workErr != nil {
		project.GitStatus = model.GitStatusError
		if err := s.projects.UpdateProject(ctx, project); err != nil {
			s.logger.Error("persisting git error status failed",
				slog.String("projectID", projectID),
				slog.String("error", err.Error()),
			)
		}
		s.logger.Warn("git operation failed",
			slog.String("projectID", projectID),
			slog.String("op", op),
			slog.String("error", workErr.Error()),
		)
		return nil, apperror.Upstream("git remote", workErr)
	}

	now := time.Now()
	project.GitStatus = model.GitStatusConnected
	project.LastSyncAt = &now
	if err := s.projects.UpdateProject(ctx, project); err != nil {
		return nil, fmt.Errorf("service/git: marking project synced: %w", err)
	}

	s.logger.Info("git operation completed",
		slog.String("projectID", projectID),
		slog.String("op", op),
	)
	return project, nil
}

// resolveToken picks the credential for a project: a project-scoped token
// wins, otherwise the owner's linked GitHub token. No token at all is a
// validation error pointing the user at the GitHub connect flow.
func (s *GitService) resolveToken(ctx context.Context, project *model.Project) (string, error) {
	if project.GitHubAccessToken != "" {
		return project.GitHubAccessToken, nil
	}
	owner, err := s.users.GetUser(ctx, project.UserID)
	if err != nil {
		return "", fmt.Errorf("service/git: loading project owner: %w", err)
	}
	if owner.GitHubAccessToken == "" {
		return "", apperror.ValidationFailed("github", "link a GitHub account (or provide a token) before syncing")
	}
	return owner.GitHubAccessToken, nil
}

func (s *GitService) ownedProject(ctx context.Context, userID, projectID string) (*model.Project, error) {
	project, err := s.projects.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if project.UserID != userID {
		return nil, apperror.Forbidden("you do not own this project")
	}
	return project, nil
}
