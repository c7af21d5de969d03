package repository

import (
	"context"
	"database/sql"
	"time"
)

// User is the row shape of the users table.
type User struct {
	ID               string
	Email            string
	PasswordHash     string
	Name             string
	IsPremium        bool
	QuoteCount       int32
	QuoteCountDate   sql.NullTime
	StripeCustomerID sql.NullString
	EmailVerified    bool
	EmailVerifiedAt  sql.NullTime
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

const userColumns = `id, email, password_hash, name, is_premium, quote_count, quote_count_date,
	stripe_customer_id, email_verified, email_verified_at, created_at, updated_at`

func scanUser(row *sql.Row) (User, error) {
	var u User
	err := row.Scan(
		&u.ID, &u.Email, &u.PasswordHash, &u.Name, &u.IsPremium, &u.QuoteCount,
		&u.QuoteCountDate, &u.StripeCustomerID, &u.EmailVerified, &u.EmailVerifiedAt,
		&u.CreatedAt, &u.UpdatedAt,
	)
	return u, err
}

// CreateUserParams are the caller-supplied fields for a new user row.
// PasswordHash is empty for rows created by the payment webhook before the
// user ever registered.
type CreateUserParams struct {
	Email        string
	PasswordHash string
	Name         string
}

// CreateUser inserts a user row with default entitlement state
// (is_premium=false, quote_count=0, quote_count_date=NULL).
func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (User, error) {
	row := q.db.QueryRowContext(ctx, `
		INSERT INTO users (email, password_hash, name)
		VALUES ($1, $2, $3)
		RETURNING `+userColumns,
		arg.Email, arg.PasswordHash, arg.Name,
	)
	return scanUser(row)
}

// GetUserByEmail fetches a user by email. Returns sql.ErrNoRows when absent.
func (q *Queries) GetUserByEmail(ctx context.Context, email string) (User, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	return scanUser(row)
}

// GetUserByID fetches a user by primary key.
func (q *Queries) GetUserByID(ctx context.Context, id string) (User, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// GetUserByStripeCustomerID fetches a user by their Stripe customer ID.
func (q *Queries) GetUserByStripeCustomerID(ctx context.Context, customerID string) (User, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT `+userColumns+` FROM users WHERE stripe_customer_id = $1`, customerID)
	return scanUser(row)
}

// UpdateUserStripeCustomer saves the Stripe customer ID for a user.
func (q *Queries) UpdateUserStripeCustomer(ctx context.Context, id, customerID string) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE users SET stripe_customer_id = $2, updated_at = now() WHERE id = $1`,
		id, customerID)
	return err
}

// UpdateUserEmailVerification marks a user's email as verified.
func (q *Queries) UpdateUserEmailVerification(ctx context.Context, id string, verifiedAt time.Time) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE users SET email_verified = true, email_verified_at = $2, updated_at = now()
		WHERE id = $1`,
		id, verifiedAt)
	return err
}

// SetUserPremiumByEmail flips is_premium on for the row matching email and
// reports how many rows were updated (0 means no such user).
// Re-activating an already-premium user is a plain no-op update.
func (q *Queries) SetUserPremiumByEmail(ctx context.Context, email string) (int64, error) {
	res, err := q.db.ExecContext(ctx, `
		UPDATE users SET is_premium = true, updated_at = now() WHERE email = $1`, email)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ClaimUserAccountParams set credentials on a passwordless row.
type ClaimUserAccountParams struct {
	ID           string
	PasswordHash string
	Name         string
}

// ClaimUserAccount attaches a password and name to a row the payment
// webhook created before the user registered. The guard on password_hash
// keeps this from ever overwriting real credentials.
func (q *Queries) ClaimUserAccount(ctx context.Context, arg ClaimUserAccountParams) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE users SET password_hash = $2, name = $3, updated_at = now()
		WHERE id = $1 AND password_hash = ''`,
		arg.ID, arg.PasswordHash, arg.Name)
	return err
}

// CreatePremiumUser inserts a premium user row keyed by email, or flips
// is_premium on if the row already exists. Used by the payment webhook when a
// checkout completes for an email with no account yet.
func (q *Queries) CreatePremiumUser(ctx context.Context, email string) (User, error) {
	row := q.db.QueryRowContext(ctx, `
		INSERT INTO users (email, password_hash, name, is_premium)
		VALUES ($1, '', '', true)
		ON CONFLICT (email) DO UPDATE SET is_premium = true, updated_at = now()
		RETURNING `+userColumns,
		email)
	return scanUser(row)
}

// ConsumeQuoteCreditParams identify the row and day for a quota consumption.
type ConsumeQuoteCreditParams struct {
	Email string
	Day   time.Time // UTC calendar day
	Limit int32
}

// ConsumeQuoteCredit records one metered quote in a single conditional
// update. The WHERE clause re-checks the limit so two racing requests cannot
// both consume the last slot: the loser updates zero rows. A stale
// quote_count_date resets the counter to 1 in the same statement (lazy
// reset), and premium rows always pass the guard.
func (q *Queries) ConsumeQuoteCredit(ctx context.Context, arg ConsumeQuoteCreditParams) (int64, error) {
	res, err := q.db.ExecContext(ctx, `
		UPDATE users SET
			quote_count = CASE WHEN quote_count_date = $2 THEN quote_count + 1 ELSE 1 END,
			quote_count_date = $2,
			updated_at = now()
		WHERE email = $1
		  AND (is_premium
		       OR quote_count_date IS DISTINCT FROM $2
		       OR quote_count < $3)`,
		arg.Email, arg.Day, arg.Limit)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
