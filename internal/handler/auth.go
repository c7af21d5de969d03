// Package handler contains HTTP handlers for the HabitFlow API.
//
// This file implements authentication endpoints.
//
// Routes handled:
//   - POST /api/auth/register            -> Register
//   - POST /api/auth/login               -> Login
//   - POST /api/auth/logout              -> Logout
//   - GET  /api/auth/me                  -> Me
//   - GET  /verify-email                 -> VerifyEmail
//   - POST /api/auth/resend-verification -> ResendVerification
package handler

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/mwestcott/habitflow/internal/auth"
	"github.com/mwestcott/habitflow/internal/domain"
	"github.com/mwestcott/habitflow/internal/email"
	"github.com/mwestcott/habitflow/internal/metrics"
	"github.com/mwestcott/habitflow/internal/middleware"
	"github.com/mwestcott/habitflow/internal/service"
	"github.com/mwestcott/habitflow/internal/session"
)

// AuthHandler handles authentication HTTP requests.
type AuthHandler struct {
	userService service.UserService
	email       email.EmailService
	limiter     *middleware.AuthRateLimiter
	logger      *slog.Logger
	isSecure    bool
}

// NewAuthHandler creates a new AuthHandler.
// emailService may be nil when SMTP is not configured (development mode).
func NewAuthHandler(userService service.UserService, emailService email.EmailService, limiter *middleware.AuthRateLimiter, logger *slog.Logger, isSecure bool) *AuthHandler {
	return &AuthHandler{
		userService: userService,
		email:       emailService,
		limiter:     limiter,
		logger:      logger,
		isSecure:    isSecure,
	}
}

// RegisterRoutes registers auth routes on the provided mux.
// requireUser guards the endpoints that need an authenticated session.
func (h *AuthHandler) RegisterRoutes(mux *http.ServeMux, requireUser func(http.Handler) http.Handler) {
	mux.Handle("POST /api/auth/register", h.limiter.LimitRegister(http.HandlerFunc(h.Register)))
	mux.Handle("POST /api/auth/login", h.limiter.LimitLogin(http.HandlerFunc(h.Login)))
	mux.HandleFunc("POST /api/auth/logout", h.Logout)
	mux.Handle("GET /api/auth/me", requireUser(http.HandlerFunc(h.Me)))
	// The emailed link hits the short path; the API path exists for
	// clients that verify in-app.
	mux.HandleFunc("GET /verify-email", h.VerifyEmail)
	mux.HandleFunc("GET /api/auth/verify-email", h.VerifyEmail)
	mux.HandleFunc("POST /api/auth/resend-verification", h.ResendVerification)
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// userResponse is the public shape of a user account. The password hash
// and Stripe identifiers never leave the server.
type userResponse struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	Name          string `json:"name"`
	IsPremium     bool   `json:"is_premium"`
	EmailVerified bool   `json:"email_verified"`
	CreatedAt     string `json:"created_at"`
}

func toUserResponse(u *domain.User) userResponse {
	return userResponse{
		ID:            u.ID.String(),
		Email:         u.Email,
		Name:          u.Name,
		IsPremium:     u.IsPremium,
		EmailVerified: u.EmailVerified,
		CreatedAt:     u.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// Register creates a new account, starts a session, and sends the
// verification email.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	user, err := h.userService.Register(r.Context(), domain.RegisterParams{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
	})
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	metrics.UsersRegistered.Inc()

	// Log the new user in immediately so the client has a session.
	login, err := h.userService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		// Account exists but session creation failed; the user can log
		// in manually.
		h.logger.Error("post-registration login failed", "error", err, "user_id", user.ID)
		writeJSON(w, http.StatusCreated, map[string]interface{}{"user": toUserResponse(user)})
		return
	}

	h.sendVerificationEmail(user)

	middleware.SetSessionCookie(w, login.Token, h.isSecure)
	writeJSON(w, http.StatusCreated, map[string]interface{}{"user": toUserResponse(user)})
}

// Login authenticates a user and starts a session.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	result, err := h.userService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		// Failed attempts count against the per-IP limit so credential
		// stuffing locks out quickly.
		if domain.ErrorCode(err) == domain.EUNAUTHORIZED {
			h.limiter.RecordFailedLogin(clientIP(r))
		}
		ErrorResponse(w, r, h.logger, err)
		return
	}

	h.limiter.ResetLogin(clientIP(r))

	middleware.SetSessionCookie(w, result.Token, h.isSecure)
	writeJSON(w, http.StatusOK, map[string]interface{}{"user": toUserResponse(result.User)})
}

// Logout ends the current session. Idempotent: an anonymous request
// still gets a 204.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(session.CookieName); err == nil {
		if err := h.userService.Logout(r.Context(), cookie.Value); err != nil {
			h.logger.Warn("logout failed", "error", err)
		}
	}

	middleware.ClearSessionCookie(w, h.isSecure)
	w.WriteHeader(http.StatusNoContent)
}

// Me returns the authenticated user's account.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		ErrorResponse(w, r, h.logger, domain.Unauthorized("auth.me", "Authentication required"))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"user": toUserResponse(user)})
}

// VerifyEmail consumes a verification token from the emailed link.
func (h *AuthHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		ErrorResponse(w, r, h.logger, domain.Invalid("auth.verify_email", "Verification token is required"))
		return
	}

	if err := h.userService.VerifyEmail(r.Context(), token); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"verified": true})
}

// ResendVerification issues a fresh verification token.
//
// The response is the same whether or not the email exists, so the
// endpoint cannot be used to probe for accounts.
func (h *AuthHandler) ResendVerification(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := decodeJSON(r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	result, err := h.userService.ResendVerificationEmail(r.Context(), req.Email)
	if err != nil {
		h.logger.Info("resend verification skipped", "error", err)
	} else if h.email != nil {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := h.email.SendVerificationEmail(ctx, req.Email, "", result.Token); err != nil {
				h.logger.Error("failed to send verification email", "error", err)
			}
		}()
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "If the account exists, a verification email has been sent.",
	})
}

// sendVerificationEmail creates a token and emails it in the background.
// Registration never fails because SMTP is down.
func (h *AuthHandler) sendVerificationEmail(user *domain.User) {
	if h.email == nil {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		result, err := h.userService.CreateEmailVerificationToken(ctx, user.ID)
		if err != nil {
			h.logger.Error("failed to create verification token", "error", err, "user_id", user.ID)
			return
		}

		if err := h.email.SendVerificationEmail(ctx, user.Email, user.Name, result.Token); err != nil {
			h.logger.Error("failed to send verification email", "error", err, "user_id", user.ID)
		}
	}()
}

// clientIP extracts the client IP for rate limit bookkeeping.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		if ip := strings.TrimSpace(parts[0]); ip != "" {
			return ip
		}
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
