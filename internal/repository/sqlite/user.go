package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/appforge/internal/apperror"
	"github.com/sakif/appforge/internal/model"
	"github.com/sakif/appforge/internal/repository"
)

// COMPILE-TIME INTERFACE CHECK:
// `var _ X = (*Y)(nil)` assigns a nil *Y to a variable of interface type X.
// If *Y doesn't implement X, the compiler errors immediately instead of at
// the first call site. Standard practice for every interface implementation.
var _ repository.UserRepository = (*DB)(nil)

const userColumns = `id, email, first_name, last_name, profile_image_url,
	hashed_password, credits, stripe_customer_id, stripe_subscription_id,
	subscription_status, github_access_token, github_username,
	created_at, updated_at`

// scanUser reads one user row. The column order must match userColumns.
func scanUser(row interface{ Scan(...any) error }) (*model.User, error) {
	var u model.User
	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.FirstName,
		&u.LastName,
		&u.ProfileImageURL,
		&u.HashedPassword,
		&u.Credits,
		&u.StripeCustomerID,
		&u.StripeSubscriptionID,
		&u.SubscriptionStatus,
		&u.GitHubAccessToken,
		&u.GitHubUsername,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// CreateUser inserts a new user with generated ID, server-assigned
// timestamps, and defaults applied (credits=1000, subscriptionStatus="free").
//
// A duplicate non-empty email violates the partial unique index; that is
// translated to apperror.Conflict so the handler can return 409 instead of
// a generic 500.
func (db *DB) CreateUser(ctx context.Context, user *model.User) error {
	user.ID = xid.New().String()

	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	if user.Credits == 0 {
		user.Credits = model.DefaultCredits
	}
	if user.SubscriptionStatus == "" {
		user.SubscriptionStatus = model.SubscriptionFree
	}

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.Email,
		user.FirstName,
		user.LastName,
		user.ProfileImageURL,
		user.HashedPassword,
		user.Credits,
		user.StripeCustomerID,
		user.StripeSubscriptionID,
		user.SubscriptionStatus,
		user.GitHubAccessToken,
		user.GitHubUsername,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		// modernc/sqlite reports constraint failures in the error text;
		// database/sql gives us no structured code to switch on here.
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return apperror.Conflict("user", user.Email)
		}
		return fmt.Errorf("sqlite: inserting user: %w", err)
	}

	return nil
}

// GetUser retrieves a user by internal ID.
// Returns apperror.ErrNotFound if no user exists with that ID.
func (db *DB) GetUser(ctx context.Context, id string) (*model.User, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id)

	u, err := scanUser(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("user", id)
		}
		return nil, fmt.Errorf("sqlite: getting user %s: %w", id, err)
	}
	return u, nil
}

// GetUserByEmail retrieves a user by email. Empty emails are never matched —
// they are not unique, so a lookup would be meaningless.
func (db *DB) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	if email == "" {
		return nil, apperror.NotFound("user", "(empty email)")
	}

	row := db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ?`, email)

	u, err := scanUser(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("user", email)
		}
		return nil, fmt.Errorf("sqlite: getting user by email %s: %w", email, err)
	}
	return u, nil
}

// UpsertUser inserts or merges a user record.
//
// Natural key: the incoming ID when present, otherwise the email. On merge,
// non-empty incoming profile fields overwrite the stored ones and updatedAt
// is touched; ID, CreatedAt, credits, and billing fields are preserved.
//
// The usual shape for OAuth identities: first login → INSERT, subsequent
// logins → UPDATE whatever profile data changed upstream.
func (db *DB) UpsertUser(ctx context.Context, user *model.User) error {
	existing, err := db.lookupForUpsert(ctx, user)
	if err != nil {
		return err
	}

	if existing == nil {
		return db.CreateUser(ctx, user)
	}

	merge := func(incoming, current string) string {
		if incoming != "" {
			return incoming
		}
		return current
	}

	existing.Email = merge(user.Email, existing.Email)
	existing.FirstName = merge(user.FirstName, existing.FirstName)
	existing.LastName = merge(user.LastName, existing.LastName)
	existing.ProfileImageURL = merge(user.ProfileImageURL, existing.ProfileImageURL)
	existing.UpdatedAt = time.Now()

	_, err = db.conn.ExecContext(ctx,
		`UPDATE users
		 SET email = ?, first_name = ?, last_name = ?, profile_image_url = ?, updated_at = ?
		 WHERE id = ?`,
		existing.Email,
		existing.FirstName,
		existing.LastName,
		existing.ProfileImageURL,
		existing.UpdatedAt,
		existing.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: upserting user %s: %w", existing.ID, err)
	}

	*user = *existing
	return nil
}

// lookupForUpsert resolves the upsert natural key: by ID if set, else by
// email. Returns (nil, nil) when no existing row matches.
func (db *DB) lookupForUpsert(ctx context.Context, user *model.User) (*model.User, error) {
	var (
		existing *model.User
		err      error
	)
	switch {
	case user.ID != "":
		existing, err = db.GetUser(ctx, user.ID)
	case user.Email != "":
		existing, err = db.GetUserByEmail(ctx, user.Email)
	default:
		return nil, apperror.ValidationFailed("user", "upsert requires an id or email")
	}

	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return existing, nil
}

// UpdateUserCredits replaces the credit balance outright and touches
// updatedAt. RowsAffected distinguishes "not found" from success — one query
// instead of SELECT + UPDATE.
func (db *DB) UpdateUserCredits(ctx context.Context, id string, credits int) error {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE users SET credits = ?, updated_at = ? WHERE id = ?`,
		credits, time.Now(), id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating credits for user %s: %w", id, err)
	}
	return requireRow(result, "user", id)
}

// ApplyCreditDelta atomically adjusts the balance by delta.
//
// The guard lives in the WHERE clause: the UPDATE only matches when the
// resulting balance stays non-negative, so two concurrent spends can never
// drive the balance below zero — whichever lands second simply doesn't match
// and is rejected. This replaces the racy read-modify-write the schema's
// original design implied.
//
// RETURNING hands back the balance this UPDATE produced; a separate SELECT
// could observe a later concurrent adjustment instead of this one's result.
func (db *DB) ApplyCreditDelta(ctx context.Context, id string, delta int) (int, error) {
	var balance int
	err := db.conn.QueryRowContext(ctx,
		`UPDATE users SET credits = credits + ?, updated_at = ?
		 WHERE id = ? AND credits + ? >= 0
		 RETURNING credits`,
		delta, time.Now(), id, delta,
	).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		// Either the user doesn't exist or the balance can't cover it.
		// Disambiguate with a read so the caller gets the right error class.
		u, getErr := db.GetUser(ctx, id)
		if getErr != nil {
			return 0, getErr
		}
		return u.Credits, apperror.InsufficientCredits(u.Credits, -delta)
	}
	if err != nil {
		return 0, fmt.Errorf("sqlite: applying credit delta for user %s: %w", id, err)
	}
	return balance, nil
}

// UpdateUserStripeInfo merges the Stripe linkage fields. Empty fields in the
// incoming info leave the stored values alone, so a subscription-status-only
// webhook doesn't wipe the customer ID.
func (db *DB) UpdateUserStripeInfo(ctx context.Context, id string, info model.StripeInfo) error {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE users
		 SET stripe_customer_id     = CASE WHEN ? != '' THEN ? ELSE stripe_customer_id END,
		     stripe_subscription_id = CASE WHEN ? != '' THEN ? ELSE stripe_subscription_id END,
		     subscription_status    = CASE WHEN ? != '' THEN ? ELSE subscription_status END,
		     updated_at = ?
		 WHERE id = ?`,
		info.CustomerID, info.CustomerID,
		info.SubscriptionID, info.SubscriptionID,
		info.Status, info.Status,
		time.Now(), id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating stripe info for user %s: %w", id, err)
	}
	return requireRow(result, "user", id)
}

// UpdateUserGitHubInfo stores (or clears) the user's GitHub linkage. Unlike
// Stripe info this is a full overwrite: passing an empty GitHubInfo is how
// an account gets unlinked.
func (db *DB) UpdateUserGitHubInfo(ctx context.Context, id string, info model.GitHubInfo) error {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE users
		 SET github_access_token = ?, github_username = ?, updated_at = ?
		 WHERE id = ?`,
		info.AccessToken, info.Username, time.Now(), id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating github info for user %s: %w", id, err)
	}
	return requireRow(result, "user", id)
}

// requireRow converts a zero-rows-affected result into apperror.NotFound.
func requireRow(result sql.Result, resource, id string) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound(resource, id)
	}
	return nil
}

func isNotFound(err error) bool {
	return errors.Is(err, apperror.ErrNotFound)
}
