// Package model defines the data structures used throughout the application.
// In Go, we use structs to represent our data — similar to classes in other languages,
// but without inheritance. Go favours composition over inheritance.
package model

import "time"

// Subscription status values. "free" is the default for every new account;
// Stripe webhook events move users between statuses.
const (
	SubscriptionFree     = "free"
	SubscriptionActive   = "active"
	SubscriptionPastDue  = "past_due"
	SubscriptionCanceled = "canceled"
)

// DefaultCredits is the starting balance granted to every new account.
// Each AI generation debits from this balance; purchases and subscriptions
// top it up via Stripe webhooks.
const DefaultCredits = 1000

// User represents a registered account.
//
// Identity can come from two places: email/password registration, or an
// external provider (in which case Email may be empty and HashedPassword is
// unset). We always generate our own internal string ID (xid) so primary keys
// are never tied to a third party's numbering scheme.
//
// WHY Email string (not *string)?
// An externally-authenticated user may have no email at all. We use the empty
// string as the zero value rather than a nullable pointer — simpler to work
// with and safe to display. Uniqueness is only enforced for non-empty emails.
//
// GitHubAccessToken and HashedPassword are tagged `json:"-"` so they can never
// leak through an API response, no matter which handler serialises the struct.
type User struct {
	ID                   string    `json:"id"                   db:"id"`
	Email                string    `json:"email"                db:"email"` // may be empty for external identities
	FirstName            string    `json:"firstName"            db:"first_name"`
	LastName             string    `json:"lastName"             db:"last_name"`
	ProfileImageURL      string    `json:"profileImageUrl"      db:"profile_image_url"`
	HashedPassword       string    `json:"-"                    db:"hashed_password"`
	Credits              int       `json:"credits"              db:"credits"`
	StripeCustomerID     string    `json:"stripeCustomerId"     db:"stripe_customer_id"`
	StripeSubscriptionID string    `json:"stripeSubscriptionId" db:"stripe_subscription_id"`
	SubscriptionStatus   string    `json:"subscriptionStatus"   db:"subscription_status"`
	GitHubAccessToken    string    `json:"-"                    db:"github_access_token"`
	GitHubUsername       string    `json:"githubUsername"       db:"github_username"`
	CreatedAt            time.Time `json:"createdAt"            db:"created_at"`
	UpdatedAt            time.Time `json:"updatedAt"            db:"updated_at"`
}

// StripeInfo is the set of Stripe-owned fields updated together when a
// checkout or subscription webhook arrives.
type StripeInfo struct {
	CustomerID     string
	SubscriptionID string
	Status         string
}

// GitHubInfo is the set of GitHub-owned fields updated together when a user
// links (or re-links) their GitHub account.
type GitHubInfo struct {
	AccessToken string
	Username    string
}
