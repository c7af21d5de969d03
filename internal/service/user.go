// Package service contains the business logic layer.
//
// Services orchestrate interactions between repositories, external APIs,
// and domain logic. They are responsible for:
// - Input validation
// - Business rule enforcement
// - Error translation (database errors -> domain errors)
package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/mwestcott/habitflow/internal/domain"
	"github.com/mwestcott/habitflow/internal/repository"
)

const (
	// BcryptCost is the cost factor for bcrypt password hashing.
	// Cost 12 provides good security (~250ms on modern hardware) while being
	// fast enough for login flows.
	BcryptCost = 12

	// SessionTokenBytes is the number of random bytes for session tokens.
	// 32 bytes = 256 bits of entropy. The token is hex-encoded to 64
	// characters for storage and transmission.
	SessionTokenBytes = 32

	// SessionDuration is how long a session remains valid.
	SessionDuration = 7 * 24 * time.Hour

	// MinPasswordLength is the minimum password length.
	MinPasswordLength = 8

	// MaxPasswordLength prevents DoS via bcrypt on very long passwords.
	// bcrypt has a 72-byte limit anyway, but we cap earlier for clarity.
	MaxPasswordLength = 72
)

// UserService defines the interface for user-related operations.
type UserService interface {
	// Register creates a new user account.
	// Returns domain.ECONFLICT if email already exists.
	// Returns domain.EINVALID for validation errors.
	Register(ctx context.Context, params domain.RegisterParams) (*domain.User, error)

	// Login authenticates a user and creates a new session.
	// Returns the user and raw session token on success.
	// Returns domain.EUNAUTHORIZED for invalid credentials.
	Login(ctx context.Context, email, password string) (*domain.LoginResult, error)

	// Logout invalidates a session by its raw token.
	// This is idempotent - calling with an invalid token is not an error.
	Logout(ctx context.Context, token string) error

	// GetByID retrieves a user by their ID.
	// Returns domain.ENOTFOUND if user does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)

	// GetByEmail retrieves a user by their email address.
	// Returns domain.ENOTFOUND if user does not exist.
	GetByEmail(ctx context.Context, email string) (*domain.User, error)

	// GetBySessionToken retrieves a user by their session token.
	// Returns domain.EUNAUTHORIZED if token is invalid or expired.
	GetBySessionToken(ctx context.Context, token string) (*domain.User, error)

	// CreateEmailVerificationToken creates a new email verification token.
	// Returns the raw token (to send in email) and expiration time.
	// Deletes any existing tokens for the user before creating a new one.
	CreateEmailVerificationToken(ctx context.Context, userID uuid.UUID) (*domain.EmailVerificationResult, error)

	// VerifyEmail validates a verification token and marks the user verified.
	// Returns domain.ENOTFOUND if token is invalid or expired.
	// Returns domain.ECONFLICT if user is already verified.
	VerifyEmail(ctx context.Context, token string) error

	// ResendVerificationEmail creates a new verification token for an
	// unverified user. Returns domain.ECONFLICT if already verified.
	ResendVerificationEmail(ctx context.Context, email string) (*domain.EmailVerificationResult, error)

	// UpdateStripeCustomer saves the Stripe customer ID for a user.
	UpdateStripeCustomer(ctx context.Context, userID uuid.UUID, stripeCustomerID string) error

	// GetByStripeCustomerID retrieves a user by their Stripe customer ID.
	// Returns domain.ENOTFOUND if no user has that customer ID.
	GetByStripeCustomerID(ctx context.Context, stripeCustomerID string) (*domain.User, error)

	// DeleteExpiredSessions removes all expired sessions from the database.
	DeleteExpiredSessions(ctx context.Context) error

	// DeleteExpiredEmailVerificationTokens removes expired verification tokens.
	DeleteExpiredEmailVerificationTokens(ctx context.Context) error
}

// userService is the concrete implementation of UserService.
type userService struct {
	queries *repository.Queries
	logger  *slog.Logger
}

// NewUserService creates a new UserService instance.
func NewUserService(queries *repository.Queries, logger *slog.Logger) UserService {
	return &userService{
		queries: queries,
		logger:  logger,
	}
}

// Register creates a new user account.
//
// Security considerations:
// - Password is hashed with bcrypt cost 12
// - Timing attacks are mitigated by hashing even on duplicate email
// - The raw password is never logged or stored
//
// A row may already exist for the email without a password hash: the
// payment webhook creates such rows when a checkout completes before
// registration. Those accounts are claimable, so registration fills in
// the credentials instead of rejecting the email.
func (s *userService) Register(ctx context.Context, params domain.RegisterParams) (*domain.User, error) {
	const op = "UserService.Register"

	params.Email = strings.ToLower(strings.TrimSpace(params.Email))
	params.Name = strings.TrimSpace(params.Name)

	if err := validateEmail(params.Email); err != nil {
		return nil, domain.Wrap(err, domain.EINVALID, op, "Invalid email address")
	}
	if params.Name == "" {
		return nil, domain.Invalid(op, "Name is required")
	}
	if err := validatePassword(params.Password); err != nil {
		return nil, domain.Wrap(err, domain.EINVALID, op, "Invalid password")
	}

	existing, err := s.queries.GetUserByEmail(ctx, params.Email)
	if err == nil {
		if existing.PasswordHash != "" {
			// User exists - hash the password anyway to keep timing constant
			_, _ = bcrypt.GenerateFromPassword([]byte(params.Password), BcryptCost)
			return nil, domain.Conflict(op, "Email already registered")
		}
		return s.claimWebhookAccount(ctx, existing, params)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, domain.Internal(err, op, "Failed to check email availability")
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(params.Password), BcryptCost)
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to hash password")
	}

	repoUser, err := s.queries.CreateUser(ctx, repository.CreateUserParams{
		Email:        params.Email,
		PasswordHash: string(passwordHash),
		Name:         params.Name,
	})
	if err != nil {
		// Unique constraint violation means we lost a registration race
		if repository.IsUniqueViolation(err) {
			return nil, domain.Conflict(op, "Email already registered")
		}
		return nil, domain.Internal(err, op, "Failed to create user")
	}

	user := repoUserToDomain(repoUser)
	user.PasswordHash = ""

	s.logger.Info("user registered", "user_id", user.ID, "email", user.Email)

	return user, nil
}

// claimWebhookAccount attaches credentials to a passwordless row created by
// the payment webhook.
func (s *userService) claimWebhookAccount(ctx context.Context, existing repository.User, params domain.RegisterParams) (*domain.User, error) {
	const op = "UserService.Register"

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(params.Password), BcryptCost)
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to hash password")
	}

	err = s.queries.ClaimUserAccount(ctx, repository.ClaimUserAccountParams{
		ID:           existing.ID,
		PasswordHash: string(passwordHash),
		Name:         params.Name,
	})
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to create user")
	}

	repoUser, err := s.queries.GetUserByID(ctx, existing.ID)
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to retrieve user")
	}

	user := repoUserToDomain(repoUser)
	user.PasswordHash = ""

	s.logger.Info("user registered", "user_id", user.ID, "email", user.Email, "claimed", true)

	return user, nil
}

// Login authenticates a user and creates a new session.
//
// Security considerations:
// - Constant-time password comparison via bcrypt
// - Generic error message prevents email enumeration
// - Token is hashed before storage (if DB is compromised, tokens are useless)
func (s *userService) Login(ctx context.Context, email, password string) (*domain.LoginResult, error) {
	const op = "UserService.Login"

	email = strings.ToLower(strings.TrimSpace(email))

	repoUser, err := s.queries.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Dummy comparison to keep timing constant when email is unknown
			dummyHash := "$2a$12$R9h/cIPz0gi.URNNX3kh2OPST9/PgBkqquzi.Ss7KIUgO2t0jWMUW" // bcrypt hash of "dummy"
			_ = bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte(password))
			return nil, domain.Unauthorized(op, "Invalid email or password")
		}
		return nil, domain.Internal(err, op, "Failed to retrieve user")
	}

	// Webhook-created rows have no password until claimed via Register
	if repoUser.PasswordHash == "" {
		return nil, domain.Unauthorized(op, "Invalid email or password")
	}

	err = bcrypt.CompareHashAndPassword([]byte(repoUser.PasswordHash), []byte(password))
	if err != nil {
		return nil, domain.Unauthorized(op, "Invalid email or password")
	}

	token, err := generateSessionToken()
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to generate session token")
	}

	tokenHash := hashSessionToken(token)
	expiresAt := time.Now().Add(SessionDuration)

	_, err = s.queries.CreateSession(ctx, repository.CreateSessionParams{
		UserID:    repoUser.ID,
		TokenHash: tokenHash,
		ExpiresAt: expiresAt,
	})
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to create session")
	}

	user := repoUserToDomain(repoUser)
	user.PasswordHash = ""

	s.logger.Info("user logged in", "user_id", user.ID, "email", user.Email)

	return &domain.LoginResult{
		User:  user,
		Token: token,
	}, nil
}

// Logout invalidates a session. Idempotent.
func (s *userService) Logout(ctx context.Context, token string) error {
	if token == "" || len(token) != 64 {
		return nil
	}

	tokenHash := hashSessionToken(token)

	if err := s.queries.DeleteSession(ctx, tokenHash); err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn("failed to delete session", "error", err)
		}
	}

	s.logger.Debug("session invalidated")

	return nil
}

// GetByID retrieves a user by their ID.
func (s *userService) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	const op = "UserService.GetByID"

	repoUser, err := s.queries.GetUserByID(ctx, id.String())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(op, "user", id.String())
		}
		return nil, domain.Internal(err, op, "Failed to retrieve user")
	}

	user := repoUserToDomain(repoUser)
	user.PasswordHash = ""

	return user, nil
}

// GetByEmail retrieves a user by their email address.
func (s *userService) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	const op = "UserService.GetByEmail"

	repoUser, err := s.queries.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(op, "user", email)
		}
		return nil, domain.Internal(err, op, "Failed to retrieve user")
	}

	user := repoUserToDomain(repoUser)
	user.PasswordHash = ""

	return user, nil
}

// GetBySessionToken retrieves a user by their session token.
//
// The token is hashed before lookup and expired sessions are rejected at
// the query level.
func (s *userService) GetBySessionToken(ctx context.Context, token string) (*domain.User, error) {
	const op = "UserService.GetBySessionToken"

	if token == "" || len(token) != 64 {
		return nil, domain.Unauthorized(op, "Invalid or expired session")
	}

	tokenHash := hashSessionToken(token)

	session, err := s.queries.GetSessionByTokenHash(ctx, tokenHash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.Unauthorized(op, "Invalid or expired session")
		}
		return nil, domain.Internal(err, op, "Failed to retrieve session")
	}

	repoUser, err := s.queries.GetUserByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Unlikely but possible if user was deleted
			return nil, domain.Unauthorized(op, "Invalid or expired session")
		}
		return nil, domain.Internal(err, op, "Failed to retrieve user")
	}

	user := repoUserToDomain(repoUser)
	user.PasswordHash = ""

	return user, nil
}

// CreateEmailVerificationToken creates a new email verification token.
//
// The raw token is returned only once; only the SHA-256 hash is stored.
func (s *userService) CreateEmailVerificationToken(ctx context.Context, userID uuid.UUID) (*domain.EmailVerificationResult, error) {
	const op = "UserService.CreateEmailVerificationToken"

	_, err := s.queries.GetUserByID(ctx, userID.String())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(op, "user", userID.String())
		}
		return nil, domain.Internal(err, op, "Failed to retrieve user")
	}

	// One token per user
	if err := s.queries.DeleteUserEmailVerificationTokens(ctx, userID.String()); err != nil {
		return nil, domain.Internal(err, op, "Failed to delete existing tokens")
	}

	rawToken, err := generateSessionToken()
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to generate token")
	}

	tokenHash := hashSessionToken(rawToken)
	expiresAt := time.Now().Add(domain.EmailVerificationTokenDuration)

	_, err = s.queries.CreateEmailVerificationToken(ctx, repository.CreateEmailVerificationTokenParams{
		UserID:    userID.String(),
		TokenHash: tokenHash,
		ExpiresAt: expiresAt,
	})
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to create verification token")
	}

	s.logger.Info("email verification token created", "user_id", userID)

	return &domain.EmailVerificationResult{
		Token:     rawToken,
		ExpiresAt: expiresAt,
		UserID:    userID,
	}, nil
}

// VerifyEmail validates a verification token and marks the user verified.
func (s *userService) VerifyEmail(ctx context.Context, token string) error {
	const op = "UserService.VerifyEmail"

	if len(token) != 64 {
		return domain.Invalid(op, "Invalid verification token")
	}

	tokenHash := hashSessionToken(token)

	verificationToken, err := s.queries.GetEmailVerificationTokenByHash(ctx, tokenHash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.NotFound(op, "verification token", "")
		}
		return domain.Internal(err, op, "Failed to retrieve verification token")
	}

	user, err := s.queries.GetUserByID(ctx, verificationToken.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.NotFound(op, "user", verificationToken.UserID)
		}
		return domain.Internal(err, op, "Failed to retrieve user")
	}

	if user.EmailVerified {
		return domain.Conflict(op, "Email is already verified")
	}

	if err := s.queries.UpdateUserEmailVerification(ctx, user.ID, time.Now()); err != nil {
		return domain.Internal(err, op, "Failed to mark email as verified")
	}

	// One-time use
	if err := s.queries.DeleteEmailVerificationToken(ctx, tokenHash); err != nil {
		s.logger.Warn("failed to delete verification token after use", "error", err, "user_id", user.ID)
	}

	s.logger.Info("email verified", "user_id", user.ID, "email", user.Email)

	return nil
}

// ResendVerificationEmail creates a new verification token for an unverified user.
func (s *userService) ResendVerificationEmail(ctx context.Context, email string) (*domain.EmailVerificationResult, error) {
	const op = "UserService.ResendVerificationEmail"

	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.queries.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(op, "user", email)
		}
		return nil, domain.Internal(err, op, "Failed to retrieve user")
	}

	if user.EmailVerified {
		return nil, domain.Conflict(op, "Email is already verified")
	}

	id, err := uuid.Parse(user.ID)
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to parse user ID")
	}

	return s.CreateEmailVerificationToken(ctx, id)
}

// UpdateStripeCustomer saves the Stripe customer ID for a user.
func (s *userService) UpdateStripeCustomer(ctx context.Context, userID uuid.UUID, stripeCustomerID string) error {
	const op = "UserService.UpdateStripeCustomer"

	err := s.queries.UpdateUserStripeCustomer(ctx, userID.String(), stripeCustomerID)
	if err != nil {
		return domain.Internal(err, op, "Failed to update Stripe customer ID")
	}

	s.logger.Info("stripe customer ID updated", "user_id", userID, "stripe_customer_id", stripeCustomerID)
	return nil
}

// GetByStripeCustomerID retrieves a user by their Stripe customer ID.
func (s *userService) GetByStripeCustomerID(ctx context.Context, stripeCustomerID string) (*domain.User, error) {
	const op = "UserService.GetByStripeCustomerID"

	repoUser, err := s.queries.GetUserByStripeCustomerID(ctx, stripeCustomerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(op, "user", stripeCustomerID)
		}
		return nil, domain.Internal(err, op, "Failed to retrieve user by Stripe customer ID")
	}

	user := repoUserToDomain(repoUser)
	user.PasswordHash = ""
	return user, nil
}

// DeleteExpiredSessions removes all expired sessions.
func (s *userService) DeleteExpiredSessions(ctx context.Context) error {
	const op = "UserService.DeleteExpiredSessions"

	if err := s.queries.DeleteExpiredSessions(ctx); err != nil {
		return domain.Internal(err, op, "Failed to delete expired sessions")
	}

	s.logger.Info("expired sessions cleaned up")
	return nil
}

// DeleteExpiredEmailVerificationTokens removes expired verification tokens.
func (s *userService) DeleteExpiredEmailVerificationTokens(ctx context.Context) error {
	const op = "UserService.DeleteExpiredEmailVerificationTokens"

	if err := s.queries.DeleteExpiredEmailVerificationTokens(ctx); err != nil {
		return domain.Internal(err, op, "Failed to delete expired tokens")
	}

	s.logger.Info("expired email verification tokens cleaned up")
	return nil
}

// generateSessionToken creates a cryptographically secure token as a
// 64-character hex string (32 random bytes).
func generateSessionToken() (string, error) {
	bytes := make([]byte, SessionTokenBytes)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

// hashSessionToken creates a SHA-256 hash of a session token.
//
// Tokens are high-entropy random values, so SHA-256 is sufficient here
// (bcrypt would be overkill and too slow for per-request validation).
func hashSessionToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

// repoUserToDomain converts a repository.User to domain.User, translating
// sql.Null* wrappers into plain Go types.
func repoUserToDomain(u repository.User) *domain.User {
	var emailVerifiedAt *time.Time
	if u.EmailVerifiedAt.Valid {
		t := u.EmailVerifiedAt.Time
		emailVerifiedAt = &t
	}

	var quoteCountDate string
	if u.QuoteCountDate.Valid {
		quoteCountDate = domain.QuoteDay(u.QuoteCountDate.Time)
	}

	id, _ := uuid.Parse(u.ID)

	return &domain.User{
		ID:               id,
		Email:            u.Email,
		PasswordHash:     u.PasswordHash,
		Name:             u.Name,
		IsPremium:        u.IsPremium,
		QuoteCount:       int(u.QuoteCount),
		QuoteCountDate:   quoteCountDate,
		StripeCustomerID: u.StripeCustomerID.String,
		EmailVerified:    u.EmailVerified,
		EmailVerifiedAt:  emailVerifiedAt,
		CreatedAt:        u.CreatedAt,
		UpdatedAt:        u.UpdatedAt,
	}
}

// validateEmail validates an email address format.
//
// Checks basic shape (single @, dotted domain) and the RFC 5321 length
// limit. Full RFC validation is out of scope; the verification email is
// the real test.
func validateEmail(email string) error {
	if email == "" {
		return domain.Invalid("", "Email is required")
	}
	if len(email) > 254 {
		return domain.Invalid("", "Email must be 254 characters or less")
	}

	at := strings.Count(email, "@")
	if at != 1 {
		return domain.Invalid("", "Email must contain exactly one @ symbol")
	}

	idx := strings.Index(email, "@")
	if idx == 0 || idx == len(email)-1 {
		return domain.Invalid("", "Email must have a local part and a domain")
	}

	if !strings.Contains(email[idx+1:], ".") {
		return domain.Invalid("", "Email domain must contain a dot")
	}

	if strings.Contains(email, "..") {
		return domain.Invalid("", "Email cannot contain consecutive dots")
	}

	return nil
}

// validatePassword validates password strength requirements.
func validatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return domain.Invalid("", "Password must be at least 8 characters")
	}
	if len(password) > MaxPasswordLength {
		return domain.Invalid("", "Password must be 72 characters or less")
	}
	return nil
}

// Ensure userService implements UserService
var _ UserService = (*userService)(nil)
