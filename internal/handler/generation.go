package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/sakif/appforge/internal/auth"
	"github.com/sakif/appforge/internal/service"
)

// GenerationHandler exposes AI generation and the usage history.
type GenerationHandler struct {
	svc    *service.GenerationService
	logger *slog.Logger
}

// NewGenerationHandler creates a GenerationHandler.
func NewGenerationHandler(svc *service.GenerationService, logger *slog.Logger) *GenerationHandler {
	return &GenerationHandler{svc: svc, logger: logger}
}

type generateRequest struct {
	Prompt    string `json:"prompt"`
	ProjectID string `json:"projectId"` // optional: empty = project-less generation
}

// HandleGenerate runs one AI generation.
//
// HTTP: POST /api/generate
// BODY: {"prompt":"add a dark mode toggle","projectId":"..."}
//
// RESPONSES:
//
//	200 → {"generation":{...},"files":[...],"credits":990,"responseText":"..."}
//	402 → the user can't afford the call; no provider request was made
//	502 → the model API failed; no credits were charged
func (h *GenerationHandler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "bad_request", Message: "invalid JSON body"})
		return
	}

	result, err := h.svc.Generate(r.Context(), userID, req.ProjectID, req.Prompt)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// HandleHistory returns the caller's recent generations, newest first.
//
// HTTP: GET /api/generations?limit=20
func (h *GenerationHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "bad_request", Message: "limit must be a non-negative integer"})
			return
		}
		limit = n
	}

	history, err := h.svc.History(r.Context(), userID, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}
