// Billing business logic: applying verified Stripe webhook events to user
// records.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/sakif/appforge/internal/apperror"
	"github.com/sakif/appforge/internal/billing"
	"github.com/sakif/appforge/internal/model"
	"github.com/sakif/appforge/internal/repository"
)

// BillingService turns Stripe events into credit top-ups and subscription
// state changes. Signature verification happens in the handler, before
// anything reaches this service.
type BillingService struct {
	users  repository.UserRepository
	logger *slog.Logger
}

// NewBillingService creates a BillingService.
func NewBillingService(users repository.UserRepository, logger *slog.Logger) *BillingService {
	return &BillingService{users: users, logger: logger}
}

// HandleEvent applies one verified webhook event.
//
// WEBHOOK SEMANTICS:
//   - Event types we don't consume are acknowledged and ignored — returning
//     an error would make Stripe retry forever.
//   - An event referencing a user we don't know is logged and swallowed for
//     the same reason (it usually means a test-mode event hit a prod
//     endpoint or vice versa).
//   - A malformed payload IS an error: that's a bug on one side or the
//     other, and a 400 makes it visible in the Stripe dashboard.
func (s *BillingService) HandleEvent(ctx context.Context, ev *billing.Event) error {
	switch ev.Type {
	case "checkout.session.completed":
		return s.handleCheckoutCompleted(ctx, ev)
	case "customer.subscription.created", "customer.subscription.updated":
		return s.handleSubscriptionChange(ctx, ev, "")
	case "customer.subscription.deleted":
		return s.handleSubscriptionChange(ctx, ev, model.SubscriptionCanceled)
	default:
		s.logger.Debug("ignoring stripe event", slog.String("type", ev.Type))
		return nil
	}
}

// handleCheckoutCompleted credits a one-time purchase. The checkout link is
// created with userId and credits in its metadata; that metadata round-trips
// through Stripe and arrives here.
func (s *BillingService) handleCheckoutCompleted(ctx context.Context, ev *billing.Event) error {
	var session billing.CheckoutSession
	if err := json.Unmarshal(ev.Data.Object, &session); err != nil {
		return apperror.ValidationFailed("payload", fmt.Sprintf("malformed checkout session: %v", err))
	}

	userID := session.Metadata["userId"]
	creditsStr := session.Metadata["credits"]
	if userID == "" || creditsStr == "" {
		return apperror.ValidationFailed("metadata", "checkout session missing userId or credits metadata")
	}
	credits, err := strconv.Atoi(creditsStr)
	if err != nil || credits <= 0 {
		return apperror.ValidationFailed("metadata", fmt.Sprintf("invalid credits value %q", creditsStr))
	}

	balance, err := s.users.ApplyCreditDelta(ctx, userID, credits)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			s.logger.Warn("stripe checkout for unknown user",
				slog.String("eventID", ev.ID),
				slog.String("userID", userID),
			)
			return nil
		}
		return fmt.Errorf("service/billing: crediting user %s: %w", userID, err)
	}

	// Remember the Stripe customer so later subscription events can be
	// correlated even without metadata.
	if session.Customer != "" {
		if err := s.users.UpdateUserStripeInfo(ctx, userID, model.StripeInfo{CustomerID: session.Customer}); err != nil {
			s.logger.Warn("storing stripe customer failed",
				slog.String("userID", userID),
				slog.String("error", err.Error()),
			)
		}
	}

	s.logger.Info("credits purchased",
		slog.String("userID", userID),
		slog.Int("credits", credits),
		slog.Int("balance", balance),
	)
	return nil
}

// handleSubscriptionChange records the subscription's current status on the
// user. forceStatus overrides the payload status (used for deletion, where
// Stripe may still report the old status in the object).
func (s *BillingService) handleSubscriptionChange(ctx context.Context, ev *billing.Event, forceStatus string) error {
	var sub billing.Subscription
	if err := json.Unmarshal(ev.Data.Object, &sub); err != nil {
		return apperror.ValidationFailed("payload", fmt.Sprintf("malformed subscription: %v", err))
	}

	userID := sub.Metadata["userId"]
	if userID == "" {
		s.logger.Warn("subscription event without userId metadata", slog.String("eventID", ev.ID))
		return nil
	}

	status := forceStatus
	if status == "" {
		status = mapSubscriptionStatus(sub.Status)
	}

	info := model.StripeInfo{
		CustomerID:     sub.Customer,
		SubscriptionID: sub.ID,
		Status:         status,
	}
	if err := s.users.UpdateUserStripeInfo(ctx, userID, info); err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			s.logger.Warn("subscription event for unknown user",
				slog.String("eventID", ev.ID),
				slog.String("userID", userID),
			)
			return nil
		}
		return fmt.Errorf("service/billing: updating subscription for user %s: %w", userID, err)
	}

	s.logger.Info("subscription updated",
		slog.String("userID", userID),
		slog.String("status", status),
	)
	return nil
}

// mapSubscriptionStatus folds Stripe's status vocabulary into ours. Statuses
// we don't model (trialing, incomplete, unpaid) map to the nearest bucket.
func mapSubscriptionStatus(stripeStatus string) string {
	switch stripeStatus {
	case "active", "trialing":
		return model.SubscriptionActive
	case "past_due", "incomplete", "unpaid":
		return model.SubscriptionPastDue
	case "canceled", "incomplete_expired":
		return model.SubscriptionCanceled
	default:
		return model.SubscriptionFree
	}
}
