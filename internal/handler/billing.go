package handler

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/sakif/appforge/internal/billing"
	"github.com/sakif/appforge/internal/service"
)

// maxWebhookBody bounds the webhook payload read. Stripe events are small;
// 64KB leaves generous headroom.
const maxWebhookBody = 64 * 1024

// BillingHandler receives Stripe webhooks. It is NOT behind RequireAuth —
// Stripe authenticates with the signature header, not a session.
type BillingHandler struct {
	svc      *service.BillingService
	verifier *billing.Verifier
	logger   *slog.Logger
}

// NewBillingHandler creates a BillingHandler.
func NewBillingHandler(svc *service.BillingService, verifier *billing.Verifier, logger *slog.Logger) *BillingHandler {
	return &BillingHandler{svc: svc, verifier: verifier, logger: logger}
}

// HandleWebhook verifies and applies one Stripe event.
//
// HTTP: POST /api/billing/webhook
//
// The signature covers the RAW body bytes, so the body must be read before
// any JSON decoding — re-serialised JSON would never match.
func (h *BillingHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "bad_request", Message: "unreadable body"})
		return
	}

	if err := h.verifier.Verify(payload, r.Header.Get("Stripe-Signature")); err != nil {
		h.logger.Warn("stripe webhook rejected", slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid_signature", Message: "webhook signature verification failed"})
		return
	}

	ev, err := billing.ParseEvent(payload)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "bad_request", Message: "malformed event payload"})
		return
	}

	if err := h.svc.HandleEvent(r.Context(), ev); err != nil {
		h.logger.Error("stripe event handling failed",
			slog.String("eventID", ev.ID),
			slog.String("type", ev.Type),
			slog.String("error", err.Error()),
		)
		writeError(w, err)
		return
	}

	// Stripe only needs a 2xx; the body is for humans reading logs.
	writeJSON(w, http.StatusOK, map[string]string{"received": ev.ID})
}
