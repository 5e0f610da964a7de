// Package billing is the Stripe boundary: webhook signature verification
// and the minimal event surface the credit system consumes.
//
// DELIBERATELY THIN:
// The app never calls the Stripe API — checkout sessions are created
// client-side with Stripe's hosted pages, and everything the backend needs
// arrives via webhooks. So the entire integration is: verify the signature,
// decode the handful of fields we use, update the user. No SDK required.
package billing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Event is a decoded webhook envelope. Data.Object is left raw; each event
// type decodes only the object shape it cares about.
type Event struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

// CheckoutSession is the slice of checkout.session.completed we consume.
// The credit amount travels in the session metadata, set when the checkout
// link is created.
type CheckoutSession struct {
	Customer string            `json:"customer"`
	Metadata map[string]string `json:"metadata"` // "userId", "credits"
}

// Subscription is the slice of customer.subscription.* we consume.
type Subscription struct {
	ID       string            `json:"id"`
	Customer string            `json:"customer"`
	Status   string            `json:"status"`
	Metadata map[string]string `json:"metadata"` // "userId"
}

// Verifier checks Stripe-Signature headers.
//
// The scheme is Stripe's documented one: the header carries a timestamp and
// one or more "v1" signatures, each an HMAC-SHA256 of "<timestamp>.<payload>"
// keyed with the endpoint's signing secret. We accept if any v1 signature
// matches and the timestamp is within tolerance (replay protection).
type Verifier struct {
	secret    []byte
	tolerance time.Duration
	// now is swappable in tests; defaults to time.Now.
	now func() time.Time
}

// DefaultTolerance matches Stripe's recommended 5 minutes.
const DefaultTolerance = 5 * time.Minute

// NewVerifier creates a Verifier for the given webhook signing secret
// (the whsec_... value from the Stripe dashboard).
func NewVerifier(secret string) *Verifier {
	return &Verifier{
		secret:    []byte(secret),
		tolerance: DefaultTolerance,
		now:       time.Now,
	}
}

// Verify checks header against payload. Returns nil only for a valid,
// fresh signature.
func (v *Verifier) Verify(payload []byte, header string) error {
	var (
		timestamp  int64
		signatures [][]byte
	)

	for _, part := range strings.Split(header, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch key {
		case "t":
			ts, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return fmt.Errorf("billing: malformed timestamp in signature header")
			}
			timestamp = ts
		case "v1":
			sig, err := hex.DecodeString(value)
			if err != nil {
				continue // skip malformed entries, another v1 may be valid
			}
			signatures = append(signatures, sig)
		}
	}

	if timestamp == 0 || len(signatures) == 0 {
		return fmt.Errorf("billing: signature header missing timestamp or v1 signature")
	}

	age := v.now().Sub(time.Unix(timestamp, 0))
	if age > v.tolerance || age < -v.tolerance {
		return fmt.Errorf("billing: signature timestamp outside tolerance")
	}

	mac := hmac.New(sha256.New, v.secret)
	fmt.Fprintf(mac, "%d.", timestamp)
	mac.Write(payload)
	expected := mac.Sum(nil)

	for _, sig := range signatures {
		if hmac.Equal(sig, expected) {
			return nil
		}
	}
	return fmt.Errorf("billing: no matching signature")
}

// ParseEvent decodes a verified payload into an Event.
func ParseEvent(payload []byte) (*Event, error) {
	var ev Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, fmt.Errorf("billing: decoding event: %w", err)
	}
	if ev.Type == "" {
		return nil, fmt.Errorf("billing: event has no type")
	}
	return &ev, nil
}
