// Package handler contains HTTP handlers for the HabitFlow API.
//
// This file implements the premium subscription checkout flow.
//
// Routes handled:
//   - POST /api/billing/checkout -> CreateCheckout
//   - POST /api/billing/portal   -> OpenPortal
//
// The webhook is the authoritative path for activating premium; these
// endpoints only start the Stripe-hosted flows.
package handler

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/mwestcott/habitflow/internal/auth"
	"github.com/mwestcott/habitflow/internal/billing"
	"github.com/mwestcott/habitflow/internal/domain"
	"github.com/mwestcott/habitflow/internal/service"
)

// BillingHandler handles billing HTTP requests.
type BillingHandler struct {
	billing     billing.Service
	userService service.UserService
	baseURL     string
	logger      *slog.Logger
}

// NewBillingHandler creates a new BillingHandler.
// billingService may be nil when Stripe is not configured (development mode).
func NewBillingHandler(billingService billing.Service, userService service.UserService, baseURL string, logger *slog.Logger) *BillingHandler {
	return &BillingHandler{
		billing:     billingService,
		userService: userService,
		baseURL:     baseURL,
		logger:      logger,
	}
}

// RegisterRoutes registers billing routes on the provided mux.
func (h *BillingHandler) RegisterRoutes(mux *http.ServeMux, requireUser func(http.Handler) http.Handler) {
	mux.Handle("POST /api/billing/checkout", requireUser(http.HandlerFunc(h.CreateCheckout)))
	mux.Handle("POST /api/billing/portal", requireUser(http.HandlerFunc(h.OpenPortal)))
}

// CreateCheckout creates a Stripe Checkout session for the premium
// subscription and returns its URL.
func (h *BillingHandler) CreateCheckout(w http.ResponseWriter, r *http.Request) {
	const op = "billing.checkout"

	user := auth.GetUser(r.Context())

	if h.billing == nil {
		h.logger.Warn("checkout attempted but Stripe is not configured")
		ErrorResponse(w, r, h.logger, domain.Errorf(domain.EINVALID, op, "Billing is not configured"))
		return
	}

	if user.IsPremium {
		ErrorResponse(w, r, h.logger, domain.Conflict(op, "Account is already premium"))
		return
	}

	checkoutURL, err := h.billing.CreateCheckoutSession(billing.CheckoutParams{
		UserID:     user.ID.String(),
		Email:      user.Email,
		SuccessURL: fmt.Sprintf("%s/premium/success?session_id={CHECKOUT_SESSION_ID}", h.baseURL),
		CancelURL:  fmt.Sprintf("%s/premium", h.baseURL),
	})
	if err != nil {
		h.logger.Error("failed to create checkout session", "error", err, "user_id", user.ID)
		ErrorResponse(w, r, h.logger, domain.Upstream(err, op, "Failed to create checkout session"))
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"url": checkoutURL})
}

// OpenPortal creates a Stripe Customer Portal session and returns its URL.
func (h *BillingHandler) OpenPortal(w http.ResponseWriter, r *http.Request) {
	const op = "billing.portal"

	user := auth.GetUser(r.Context())

	if h.billing == nil {
		ErrorResponse(w, r, h.logger, domain.Errorf(domain.EINVALID, op, "Billing is not configured"))
		return
	}

	if user.StripeCustomerID == "" {
		ErrorResponse(w, r, h.logger, domain.Invalid(op, "No billing account for this user"))
		return
	}

	returnURL := fmt.Sprintf("%s/premium", h.baseURL)
	portalURL, err := h.billing.CreatePortalSession(user.StripeCustomerID, returnURL)
	if err != nil {
		h.logger.Error("failed to create portal session", "error", err, "user_id", user.ID)
		ErrorResponse(w, r, h.logger, domain.Upstream(err, op, "Failed to open billing portal"))
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"url": portalURL})
}
