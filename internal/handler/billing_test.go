package handler_test

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sakif/appforge/internal/billing"
	"github.com/sakif/appforge/internal/handler"
	"github.com/sakif/appforge/internal/model"
	"github.com/sakif/appforge/internal/repository/memory"
	"github.com/sakif/appforge/internal/service"
)

const webhookSecret = "whsec_handler_test"

func stripeSignature(secret string, payload []byte) string {
	ts := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", ts)
	mac.Write(payload)
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func newBillingHandler(t *testing.T) (*handler.BillingHandler, *memory.Store) {
	t.Helper()
	store := memory.New()
	svc := service.NewBillingService(store, testLogger())
	return handler.NewBillingHandler(svc, billing.NewVerifier(webhookSecret), testLogger()), store
}

func postWebhook(h *handler.BillingHandler, payload []byte, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/billing/webhook", bytes.NewBuffer(payload))
	if signature != "" {
		req.Header.Set("Stripe-Signature", signature)
	}
	rr := httptest.NewRecorder()
	h.HandleWebhook(rr, req)
	return rr
}

func TestBillingHandler_HandleWebhook(t *testing.T) {
	t.Run("signed checkout event credits the user", func(t *testing.T) {
		h, store := newBillingHandler(t)

		u := &model.User{Email: "buyer@example.com"}
		assert.NoError(t, store.CreateUser(context.Background(), u))

		payload := fmt.Appendf(nil, `{
			"id": "evt_ok",
			"type": "checkout.session.completed",
			"data": {"object": {"customer": "cus_1", "metadata": {"userId": %q, "credits": "250"}}}
		}`, u.ID)

		rr := postWebhook(h, payload, stripeSignature(webhookSecret, payload))

		assert.Equal(t, http.StatusOK, rr.Code)

		after, err := store.GetUser(context.Background(), u.ID)
		assert.NoError(t, err)
		assert.Equal(t, model.DefaultCredits+250, after.Credits)
	})

	t.Run("missing signature", func(t *testing.T) {
		h, _ := newBillingHandler(t)

		rr := postWebhook(h, []byte(`{"id":"evt_1","type":"x"}`), "")
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Contains(t, rr.Body.String(), "invalid_signature")
	})

	t.Run("wrong secret", func(t *testing.T) {
		h, store := newBillingHandler(t)

		u := &model.User{Email: "victim@example.com"}
		assert.NoError(t, store.CreateUser(context.Background(), u))

		payload := fmt.Appendf(nil, `{
			"id": "evt_forged",
			"type": "checkout.session.completed",
			"data": {"object": {"metadata": {"userId": %q, "credits": "999999"}}}
		}`, u.ID)

		rr := postWebhook(h, payload, stripeSignature("whsec_attacker", payload))

		assert.Equal(t, http.StatusBadRequest, rr.Code)

		// A forged event must not move credits.
		after, err := store.GetUser(context.Background(), u.ID)
		assert.NoError(t, err)
		assert.Equal(t, model.DefaultCredits, after.Credits)
	})

	t.Run("signed but malformed event", func(t *testing.T) {
		h, _ := newBillingHandler(t)

		payload := []byte(`{"id":"evt_1"}`) // no type
		rr := postWebhook(h, payload, stripeSignature(webhookSecret, payload))

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("unconsumed event type is acknowledged", func(t *testing.T) {
		h, _ := newBillingHandler(t)

		payload := []byte(`{"id":"evt_1","type":"invoice.created","data":{"object":{}}}`)
		rr := postWebhook(h, payload, stripeSignature(webhookSecret, payload))

		// 2xx or Stripe retries forever.
		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("bad metadata is a 400", func(t *testing.T) {
		h, _ := newBillingHandler(t)

		payload := []byte(`{
			"id": "evt_1",
			"type": "checkout.session.completed",
			"data": {"object": {"metadata": {"userId": "u1", "credits": "not-a-number"}}}
		}`)
		rr := postWebhook(h, payload, stripeSignature(webhookSecret, payload))

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Contains(t, rr.Body.String(), "validation_error")
	})
}
