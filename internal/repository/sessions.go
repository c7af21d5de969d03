package repository

import (
	"context"
	"time"
)

// Session is the row shape of the sessions table.
type Session struct {
	ID        string
	UserID    string
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// CreateSessionParams are the fields for a new session row.
type CreateSessionParams struct {
	UserID    string
	TokenHash string
	ExpiresAt time.Time
}

// CreateSession inserts a session row.
func (q *Queries) CreateSession(ctx context.Context, arg CreateSessionParams) (Session, error) {
	row := q.db.QueryRowContext(ctx, `
		INSERT INTO sessions (user_id, token_hash, expires_at)
		VALUES ($1, $2, $3)
		RETURNING id, user_id, token_hash, expires_at, created_at`,
		arg.UserID, arg.TokenHash, arg.ExpiresAt,
	)
	var s Session
	err := row.Scan(&s.ID, &s.UserID, &s.TokenHash, &s.ExpiresAt, &s.CreatedAt)
	return s, err
}

// GetSessionByTokenHash fetches a non-expired session by its token hash.
// Expired sessions are filtered here so callers never see them.
func (q *Queries) GetSessionByTokenHash(ctx context.Context, tokenHash string) (Session, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT id, user_id, token_hash, expires_at, created_at
		FROM sessions
		WHERE token_hash = $1 AND expires_at > now()`,
		tokenHash,
	)
	var s Session
	err := row.Scan(&s.ID, &s.UserID, &s.TokenHash, &s.ExpiresAt, &s.CreatedAt)
	return s, err
}

// DeleteSession removes a session by token hash.
func (q *Queries) DeleteSession(ctx context.Context, tokenHash string) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM sessions WHERE token_hash = $1`, tokenHash)
	return err
}

// DeleteUserSessions removes all sessions belonging to a user.
func (q *Queries) DeleteUserSessions(ctx context.Context, userID string) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM sessions WHERE user_id = $1`, userID)
	return err
}

// DeleteExpiredSessions removes all expired sessions.
func (q *Queries) DeleteExpiredSessions(ctx context.Context) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= now()`)
	return err
}

// EmailVerificationToken is the row shape of the email_verification_tokens table.
type EmailVerificationToken struct {
	ID        string
	UserID    string
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// CreateEmailVerificationTokenParams are the fields for a new token row.
type CreateEmailVerificationTokenParams struct {
	UserID    string
	TokenHash string
	ExpiresAt time.Time
}

// CreateEmailVerificationToken inserts a verification token row.
func (q *Queries) CreateEmailVerificationToken(ctx context.Context, arg CreateEmailVerificationTokenParams) (EmailVerificationToken, error) {
	row := q.db.QueryRowContext(ctx, `
		INSERT INTO email_verification_tokens (user_id, token_hash, expires_at)
		VALUES ($1, $2, $3)
		RETURNING id, user_id, token_hash, expires_at, created_at`,
		arg.UserID, arg.TokenHash, arg.ExpiresAt,
	)
	var t EmailVerificationToken
	err := row.Scan(&t.ID, &t.UserID, &t.TokenHash, &t.ExpiresAt, &t.CreatedAt)
	return t, err
}

// GetEmailVerificationTokenByHash fetches a non-expired token by hash.
func (q *Queries) GetEmailVerificationTokenByHash(ctx context.Context, tokenHash string) (EmailVerificationToken, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT id, user_id, token_hash, expires_at, created_at
		FROM email_verification_tokens
		WHERE token_hash = $1 AND expires_at > now()`,
		tokenHash,
	)
	var t EmailVerificationToken
	err := row.Scan(&t.ID, &t.UserID, &t.TokenHash, &t.ExpiresAt, &t.CreatedAt)
	return t, err
}

// DeleteUserEmailVerificationTokens removes all verification tokens for a user.
func (q *Queries) DeleteUserEmailVerificationTokens(ctx context.Context, userID string) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM email_verification_tokens WHERE user_id = $1`, userID)
	return err
}

// DeleteEmailVerificationToken removes a token by hash after use.
func (q *Queries) DeleteEmailVerificationToken(ctx context.Context, tokenHash string) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM email_verification_tokens WHERE token_hash = $1`, tokenHash)
	return err
}

// DeleteExpiredEmailVerificationTokens removes all expired verification tokens.
func (q *Queries) DeleteExpiredEmailVerificationTokens(ctx context.Context) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM email_verification_tokens WHERE expires_at <= now()`)
	return err
}
