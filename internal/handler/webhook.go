// Package handler contains HTTP handlers for the HabitFlow API.
//
// This file implements the Stripe webhook handler for processing billing
// events.
//
// Route:
//   - POST /webhooks/stripe -> HandleStripeWebhook
//
// This route is PUBLIC (no auth middleware) because Stripe calls it
// directly. Authentication is via the Stripe webhook signature
// verification.
package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/stripe/stripe-go/v79"

	"github.com/mwestcott/habitflow/internal/billing"
	"github.com/mwestcott/habitflow/internal/email"
	"github.com/mwestcott/habitflow/internal/metrics"
	"github.com/mwestcott/habitflow/internal/service"
)

// WebhookHandler handles incoming webhook events from Stripe.
type WebhookHandler struct {
	billing      billing.Service
	entitlements service.EntitlementService
	userService  service.UserService
	email        email.EmailService
	logger       *slog.Logger
}

// NewWebhookHandler creates a new WebhookHandler.
// billingService may be nil when Stripe is not configured.
func NewWebhookHandler(billingService billing.Service, entitlements service.EntitlementService, userService service.UserService, emailService email.EmailService, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		billing:      billingService,
		entitlements: entitlements,
		userService:  userService,
		email:        emailService,
		logger:       logger,
	}
}

// RegisterRoutes registers webhook routes on the provided mux.
// These routes are PUBLIC — no auth middleware.
func (h *WebhookHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /webhooks/stripe", h.HandleStripeWebhook)
}

// HandleStripeWebhook processes incoming Stripe webhook events.
//
// Every recognized event ends in a 200 so Stripe stops retrying;
// activation itself is idempotent, so a retry of an already processed
// event is harmless.
func (h *WebhookHandler) HandleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	if h.billing == nil {
		h.logger.Warn("stripe webhook received but billing is not configured")
		w.WriteHeader(http.StatusOK)
		return
	}

	// Read body (limit to 64KB)
	body, err := io.ReadAll(io.LimitReader(r.Body, 65536))
	if err != nil {
		h.logger.Error("failed to read webhook body", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	// Verify signature
	signature := r.Header.Get("Stripe-Signature")
	event, err := h.billing.VerifyWebhookSignature(body, signature)
	if err != nil {
		h.logger.Warn("webhook signature verification failed", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	h.logger.Info("stripe webhook received", "type", event.Type, "id", event.ID)

	switch event.Type {
	case "checkout.session.completed":
		h.handleCheckoutCompleted(event)
	default:
		h.logger.Debug("unhandled webhook event type", "type", event.Type)
	}

	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}

// handleCheckoutCompleted activates premium for the checkout's email.
//
// The account may not exist yet when the checkout races registration;
// activation creates a claimable row in that case, so the upgrade is
// never lost.
func (h *WebhookHandler) handleCheckoutCompleted(event stripe.Event) {
	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		h.logger.Error("failed to parse checkout session", "error", err)
		return
	}

	customerEmail := checkoutEmail(&session)
	if customerEmail == "" {
		h.logger.Warn("checkout session has no customer email", "session_id", session.ID)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := h.entitlements.ActivatePremium(ctx, customerEmail); err != nil {
		h.logger.Error("failed to activate premium", "error", err, "session_id", session.ID)
		return
	}

	metrics.PremiumActivations.Inc()
	h.logger.Info("premium activated", "session_id", session.ID)

	h.saveStripeCustomer(ctx, &session, customerEmail)
	h.sendWelcomeEmail(customerEmail)
}

// checkoutEmail picks the best available email from a checkout session.
// customer_details is filled in by Stripe at completion; the metadata
// copy is the fallback for older sessions.
func checkoutEmail(session *stripe.CheckoutSession) string {
	if session.CustomerDetails != nil && session.CustomerDetails.Email != "" {
		return session.CustomerDetails.Email
	}
	if session.CustomerEmail != "" {
		return session.CustomerEmail
	}
	return session.Metadata["user_email"]
}

// saveStripeCustomer links the Stripe customer to the account so the
// billing portal works later. Best effort.
func (h *WebhookHandler) saveStripeCustomer(ctx context.Context, session *stripe.CheckoutSession, customerEmail string) {
	if session.Customer == nil {
		return
	}

	user, err := h.userService.GetByEmail(ctx, customerEmail)
	if err != nil {
		h.logger.Warn("could not link stripe customer", "error", err, "session_id", session.ID)
		return
	}
	if user.StripeCustomerID == session.Customer.ID {
		return
	}

	if err := h.userService.UpdateStripeCustomer(ctx, user.ID, session.Customer.ID); err != nil {
		h.logger.Error("failed to save stripe customer ID", "error", err, "user_id", user.ID)
	}
}

// sendWelcomeEmail confirms the upgrade in the background.
func (h *WebhookHandler) sendWelcomeEmail(to string) {
	if h.email == nil {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := h.email.SendPremiumWelcomeEmail(ctx, to, ""); err != nil {
			h.logger.Error("failed to send premium welcome email", "error", err, "to", to)
		}
	}()
}
