package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/appforge/internal/auth"
	"github.com/sakif/appforge/internal/service"
)

// ProjectHandler manages CRUD for projects and their files.
type ProjectHandler struct {
	svc    *service.ProjectService
	logger *slog.Logger
}

// NewProjectHandler creates a ProjectHandler.
func NewProjectHandler(svc *service.ProjectService, logger *slog.Logger) *ProjectHandler {
	return &ProjectHandler{svc: svc, logger: logger}
}

type createProjectRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Template    string `json:"template"`
	IsPublic    bool   `json:"isPublic"`
}

// HandleCreate creates a project seeded from a template.
//
// HTTP: POST /api/projects
// BODY: {"name":"my app","template":"react"}
func (h *ProjectHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	var req createProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "bad_request", Message: "invalid JSON body"})
		return
	}

	project, err := h.svc.Create(r.Context(), userID, service.CreateProjectInput{
		Name:        req.Name,
		Description: req.Description,
		Template:    req.Template,
		IsPublic:    req.IsPublic,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, project)
}

// HandleList returns the caller's projects, most recently touched first.
//
// HTTP: GET /api/projects
func (h *ProjectHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	projects, err := h.svc.List(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, projects)
}

// HandleGet returns one project.
//
// HTTP: GET /api/projects/{projectID}
func (h *ProjectHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	project, err := h.svc.Get(r.Context(), userID, chi.URLParam(r, "projectID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, project)
}

type updateProjectRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	IsPublic    *bool   `json:"isPublic"`
	Status      *string `json:"status"`
	DeployURL   *string `json:"deployUrl"`
}

// HandleUpdate applies a partial update — absent fields stay unchanged.
//
// HTTP: PATCH /api/projects/{projectID}
func (h *ProjectHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	var req updateProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "bad_request", Message: "invalid JSON body"})
		return
	}

	project, err := h.svc.Update(r.Context(), userID, chi.URLParam(r, "projectID"), service.UpdateProjectInput{
		Name:        req.Name,
		Description: req.Description,
		IsPublic:    req.IsPublic,
		Status:      req.Status,
		DeployURL:   req.DeployURL,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, project)
}

// HandleDelete removes a project and everything it owns.
//
// HTTP: DELETE /api/projects/{projectID}
func (h *ProjectHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	if err := h.svc.Delete(r.Context(), userID, chi.URLParam(r, "projectID")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleListFiles returns every file in the project, ordered by path.
//
// HTTP: GET /api/projects/{projectID}/files
func (h *ProjectHandler) HandleListFiles(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	files, err := h.svc.ListFiles(r.Context(), userID, chi.URLParam(r, "projectID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, files)
}

// HandleGetFile returns one file by path.
//
// HTTP: GET /api/projects/{projectID}/file?path=src/App.jsx
//
// The path travels as a query parameter, not a URL segment — file paths
// contain slashes and route patterns with wildcards invite encoding bugs.
func (h *ProjectHandler) HandleGetFile(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	path := r.URL.Query().Get("path")
	if path == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "bad_request", Message: "missing path query parameter"})
		return
	}

	file, err := h.svc.GetFile(r.Context(), userID, chi.URLParam(r, "projectID"), path)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, file)
}

type saveFileRequest struct {
	Path     string `json:"path"`
	Content  string `json:"content"`
	Language string `json:"language"`
}

// HandleSaveFile creates or overwrites a file at a path.
//
// HTTP: PUT /api/projects/{projectID}/files
// BODY: {"path":"src/App.jsx","content":"..."}
//
// The path travels in the body, not the URL — file paths contain slashes
// and route patterns with wildcards invite encoding bugs.
func (h *ProjectHandler) HandleSaveFile(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	var req saveFileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "bad_request", Message: "invalid JSON body"})
		return
	}

	file, err := h.svc.SaveFile(r.Context(), userID, chi.URLParam(r, "projectID"), req.Path, req.Content, req.Language)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, file)
}

type deleteFileRequest struct {
	Path string `json:"path"`
}

// HandleDeleteFile removes a file. Deleting an absent path succeeds — the
// desired end state (no file) holds either way.
//
// HTTP: DELETE /api/projects/{projectID}/files
func (h *ProjectHandler) HandleDeleteFile(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	var req deleteFileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "bad_request", Message: "invalid JSON body"})
		return
	}

	if err := h.svc.DeleteFile(r.Context(), userID, chi.URLParam(r, "projectID"), req.Path); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
