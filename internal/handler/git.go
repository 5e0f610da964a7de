package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/appforge/internal/auth"
	"github.com/sakif/appforge/internal/service"
)

// GitHandler exposes the project git lifecycle. Every endpoint returns the
// updated project so the frontend can render gitStatus and lastSyncAt
// without a follow-up fetch.
type GitHandler struct {
	svc    *service.GitService
	logger *slog.Logger
}

// NewGitHandler creates a GitHandler.
func NewGitHandler(svc *service.GitService, logger *slog.Logger) *GitHandler {
	return &GitHandler{svc: svc, logger: logger}
}

type connectRequest struct {
	RepoURL string `json:"repoUrl"`
	Branch  string `json:"branch"`
	Token   string `json:"token"` // optional project-scoped token
}

// HandleConnect records a remote on the project.
//
// HTTP: POST /api/projects/{projectID}/git/connect
// BODY: {"repoUrl":"https://github.com/user/repo.git","branch":"main"}
func (h *GitHandler) HandleConnect(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	var req connectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "bad_request", Message: "invalid JSON body"})
		return
	}

	project, err := h.svc.Connect(r.Context(), userID, chi.URLParam(r, "projectID"), req.RepoURL, req.Branch, req.Token)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, project)
}

// HandleDisconnect clears the remote config. Project files are untouched.
//
// HTTP: POST /api/projects/{projectID}/git/disconnect
func (h *GitHandler) HandleDisconnect(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	project, err := h.svc.Disconnect(r.Context(), userID, chi.URLParam(r, "projectID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, project)
}

// HandleClone fetches the remote from scratch and imports its files.
//
// HTTP: POST /api/projects/{projectID}/git/clone
func (h *GitHandler) HandleClone(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	project, err := h.svc.Clone(r.Context(), userID, chi.URLParam(r, "projectID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, project)
}

type pushRequest struct {
	Message string `json:"message"` // optional commit message
}

// HandlePush exports the project to its checkout, commits, and pushes.
// Pushing with nothing changed is a success, not an error.
//
// HTTP: POST /api/projects/{projectID}/git/push
func (h *GitHandler) HandlePush(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	// The body is optional — an empty POST pushes with the default message.
	var req pushRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "bad_request", Message: "invalid JSON body"})
			return
		}
	}

	project, err := h.svc.Push(r.Context(), userID, chi.URLParam(r, "projectID"), req.Message)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, project)
}

// HandlePull fetches the remote's state and imports it additively.
//
// HTTP: POST /api/projects/{projectID}/git/pull
func (h *GitHandler) HandlePull(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	project, err := h.svc.Pull(r.Context(), userID, chi.URLParam(r, "projectID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, project)
}
