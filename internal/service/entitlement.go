// Package service contains the business logic layer.
//
// This file implements the entitlement service that meters the daily
// quote feature by subscription tier.
package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/mwestcott/habitflow/internal/domain"
	"github.com/mwestcott/habitflow/internal/repository"
)

// EntitlementStore is the slice of the repository the entitlement service
// needs. *repository.Queries satisfies it; tests substitute an in-memory
// fake.
type EntitlementStore interface {
	GetUserByEmail(ctx context.Context, email string) (repository.User, error)
	ConsumeQuoteCredit(ctx context.Context, arg repository.ConsumeQuoteCreditParams) (int64, error)
	SetUserPremiumByEmail(ctx context.Context, email string) (int64, error)
	CreatePremiumUser(ctx context.Context, email string) (repository.User, error)
}

// EntitlementService decides whether a metered action may proceed and
// records consumption once the action has succeeded.
//
// The two-phase shape (Evaluate, then CommitConsumption) exists because
// consumption must only be recorded after the downstream provider call
// succeeds: a failed generation never burns a credit. CommitConsumption
// re-checks the limit atomically, so two racing requests cannot both take
// the last slot.
type EntitlementService interface {
	// Evaluate checks whether the user may generate a quote right now
	// without consuming anything. Returns *domain.QuotaError when the
	// daily limit is exhausted.
	Evaluate(ctx context.Context, email string) error

	// CommitConsumption records one generated quote and returns the
	// number of quotes remaining today (-1 for premium). The underlying
	// update re-checks the limit; a request that loses the race for the
	// last slot gets *domain.QuotaError even though Evaluate passed.
	CommitConsumption(ctx context.Context, email string) (int, error)

	// GetUsage reports the user's standing against the daily limit.
	GetUsage(ctx context.Context, email string) (*domain.QuotaUsage, error)

	// ActivatePremium marks the account for this email as premium,
	// creating the account if it does not exist yet. Idempotent: repeated
	// activations (webhook retries) are no-ops.
	ActivatePremium(ctx context.Context, email string) error
}

type entitlementService struct {
	store  EntitlementStore
	logger *slog.Logger
	now    func() time.Time
}

// NewEntitlementService creates a new EntitlementService.
func NewEntitlementService(store EntitlementStore, logger *slog.Logger) EntitlementService {
	return &entitlementService{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// Evaluate checks the daily limit without consuming.
func (s *entitlementService) Evaluate(ctx context.Context, email string) error {
	const op = "entitlement.evaluate"

	usage, err := s.GetUsage(ctx, email)
	if err != nil {
		return err
	}

	if usage.Unlimited {
		return nil
	}

	if usage.Used >= usage.Limit {
		s.logger.Info("quote quota exhausted",
			"email", email,
			"used", usage.Used,
			"limit", usage.Limit,
		)
		return domain.QuotaExceeded(op, usage.Used, usage.Limit)
	}

	return nil
}

// CommitConsumption records one generated quote via a conditional update.
// The statement's WHERE clause embeds the limit check, so the read in
// Evaluate can never be the deciding factor: whoever updates zero rows
// lost the race and is denied.
func (s *entitlementService) CommitConsumption(ctx context.Context, email string) (int, error) {
	const op = "entitlement.commit"

	email = strings.ToLower(strings.TrimSpace(email))
	day := s.today()

	affected, err := s.store.ConsumeQuoteCredit(ctx, repository.ConsumeQuoteCreditParams{
		Email: email,
		Day:   day,
		Limit: domain.DailyQuoteLimit,
	})
	if err != nil {
		return 0, domain.Internal(err, op, "Failed to record quote consumption")
	}

	if affected == 0 {
		// Either the user does not exist or the guard rejected the update.
		user, err := s.store.GetUserByEmail(ctx, email)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return 0, domain.NotFound(op, "user", email)
			}
			return 0, domain.Internal(err, op, "Failed to retrieve user")
		}
		usage := usageFromRow(user, domain.QuoteDay(day))
		return 0, domain.QuotaExceeded(op, usage.Used, usage.Limit)
	}

	usage, err := s.GetUsage(ctx, email)
	if err != nil {
		// The credit is committed; failing to read it back is not worth
		// surfacing as an error to the caller.
		s.logger.Warn("failed to read usage after commit", "email", email, "error", err)
		return 0, nil
	}
	return usage.Remaining(), nil
}

// GetUsage reports the user's standing against the daily limit.
func (s *entitlementService) GetUsage(ctx context.Context, email string) (*domain.QuotaUsage, error) {
	const op = "entitlement.get_usage"

	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(op, "user", email)
		}
		return nil, domain.Internal(err, op, "Failed to retrieve user")
	}

	usage := usageFromRow(user, domain.QuoteDay(s.today()))
	return &usage, nil
}

// ActivatePremium marks the account for this email as premium.
//
// Checkout completion events arrive keyed by email, and Stripe retries
// webhooks, so this must tolerate both an unknown email (checkout before
// registration) and repeated delivery.
func (s *entitlementService) ActivatePremium(ctx context.Context, email string) error {
	const op = "entitlement.activate_premium"

	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return domain.Invalid(op, "Email is required")
	}

	affected, err := s.store.SetUserPremiumByEmail(ctx, email)
	if err != nil {
		return domain.Internal(err, op, "Failed to activate premium")
	}

	if affected == 0 {
		// No account yet: create a premium placeholder row the user can
		// claim at registration. The upsert also covers an insert race.
		if _, err := s.store.CreatePremiumUser(ctx, email); err != nil {
			return domain.Internal(err, op, "Failed to create premium account")
		}
		s.logger.Info("premium account created from checkout", "email", email)
		return nil
	}

	s.logger.Info("premium activated", "email", email)
	return nil
}

// today returns the current UTC day truncated for quota bookkeeping.
func (s *entitlementService) today() time.Time {
	now := s.now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

// usageFromRow derives quota usage from a user row, applying the lazy
// day-rollover reset.
func usageFromRow(u repository.User, today string) domain.QuotaUsage {
	if u.IsPremium {
		return domain.QuotaUsage{Unlimited: true}
	}

	used := 0
	if u.QuoteCountDate.Valid && domain.QuoteDay(u.QuoteCountDate.Time) == today {
		used = int(u.QuoteCount)
	}

	return domain.QuotaUsage{
		Used:  used,
		Limit: domain.DailyQuoteLimit,
	}
}

var _ EntitlementService = (*entitlementService)(nil)
