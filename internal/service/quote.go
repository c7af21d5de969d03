// Package service contains the business logic layer.
//
// This file implements the quote service: the metered orchestration of
// entitlement gate, AI provider, and consumption commit.
package service

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/mwestcott/habitflow/internal/ai"
	"github.com/mwestcott/habitflow/internal/domain"
	"github.com/mwestcott/habitflow/internal/metrics"
	"github.com/mwestcott/habitflow/internal/repository"
)

// QuoteService generates metered AI quotes and manages favorites.
type QuoteService interface {
	// Generate produces a motivational quote for the user, enforcing the
	// daily limit for free accounts. Returns *domain.QuotaError when the
	// limit is exhausted and domain.EUPSTREAM when the provider fails; a
	// provider failure never consumes a credit.
	Generate(ctx context.Context, user *domain.User) (*domain.GenerateQuoteResult, error)

	// Usage reports the user's standing against the daily limit.
	Usage(ctx context.Context, user *domain.User) (*domain.QuotaUsage, error)

	// SaveFavorite stores a quote in the user's favorites.
	SaveFavorite(ctx context.Context, userID uuid.UUID, quote domain.Quote) (*domain.FavoriteQuote, error)

	// ListFavorites returns the user's favorite quotes, newest first.
	ListFavorites(ctx context.Context, userID uuid.UUID) ([]domain.FavoriteQuote, error)

	// DeleteFavorite removes a favorite owned by the user.
	// Returns domain.ENOTFOUND if the favorite does not exist or belongs
	// to someone else.
	DeleteFavorite(ctx context.Context, userID, favoriteID uuid.UUID) error
}

type quoteService struct {
	entitlements EntitlementService
	provider     ai.QuoteProvider
	queries      *repository.Queries
	logger       *slog.Logger
}

// NewQuoteService creates a new QuoteService.
func NewQuoteService(entitlements EntitlementService, provider ai.QuoteProvider, queries *repository.Queries, logger *slog.Logger) QuoteService {
	return &quoteService{
		entitlements: entitlements,
		provider:     provider,
		queries:      queries,
		logger:       logger,
	}
}

// Generate produces a quote through the metered flow:
//
//  1. Evaluate the gate. An exhausted limit is denied here, before any
//     provider spend.
//  2. Call the AI provider.
//  3. Commit the consumption. The commit re-checks the limit atomically,
//     so a request that raced past step 1 is still denied here.
//
// Consumption is committed only after the provider succeeds: a failed
// generation leaves the user's count untouched.
func (s *quoteService) Generate(ctx context.Context, user *domain.User) (*domain.GenerateQuoteResult, error) {
	const op = "quote.generate"

	if err := s.entitlements.Evaluate(ctx, user.Email); err != nil {
		if domain.ErrorCode(err) == domain.EQUOTA {
			metrics.QuotesDenied.Inc()
		}
		return nil, err
	}

	result, err := s.provider.GenerateQuote(ctx, ai.GenerateParams{UserEmail: user.Email})
	if err != nil {
		metrics.AIAPICalls.WithLabelValues("error").Inc()
		s.logger.Error("quote generation failed", "user_id", user.ID, "error", err)
		if ai.IsRetryable(err) {
			return nil, domain.Upstream(err, op, "Quote service is temporarily unavailable. Please try again.")
		}
		return nil, domain.Internal(err, op, "Failed to generate quote")
	}

	metrics.AIAPICalls.WithLabelValues("success").Inc()
	metrics.AITokensTotal.WithLabelValues("input").Add(float64(result.Usage.InputTokens))
	metrics.AITokensTotal.WithLabelValues("output").Add(float64(result.Usage.OutputTokens))

	remaining, err := s.entitlements.CommitConsumption(ctx, user.Email)
	if err != nil {
		if domain.ErrorCode(err) == domain.EQUOTA {
			// Lost the race for the last slot after the provider call.
			metrics.QuotesDenied.Inc()
		}
		return nil, err
	}

	tier := "free"
	if user.IsPremium {
		tier = "premium"
	}
	metrics.QuotesGenerated.WithLabelValues(tier).Inc()

	s.logger.Info("quote generated",
		"user_id", user.ID,
		"author", result.Quote.Author,
		"remaining", remaining,
	)

	return &domain.GenerateQuoteResult{
		Quote:     result.Quote,
		Remaining: remaining,
	}, nil
}

// Usage reports the user's standing against the daily limit.
func (s *quoteService) Usage(ctx context.Context, user *domain.User) (*domain.QuotaUsage, error) {
	return s.entitlements.GetUsage(ctx, user.Email)
}

// SaveFavorite stores a quote in the user's favorites.
func (s *quoteService) SaveFavorite(ctx context.Context, userID uuid.UUID, quote domain.Quote) (*domain.FavoriteQuote, error) {
	const op = "quote.save_favorite"

	if quote.Text == "" {
		return nil, domain.Invalid(op, "Quote text is required")
	}
	if quote.Author == "" {
		quote.Author = "Unknown"
	}

	row, err := s.queries.CreateFavoriteQuote(ctx, repository.CreateFavoriteQuoteParams{
		UserID: userID.String(),
		Quote:  quote.Text,
		Author: quote.Author,
	})
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to save favorite")
	}

	return repoFavoriteToDomain(row), nil
}

// ListFavorites returns the user's favorite quotes, newest first.
func (s *quoteService) ListFavorites(ctx context.Context, userID uuid.UUID) ([]domain.FavoriteQuote, error) {
	const op = "quote.list_favorites"

	rows, err := s.queries.ListFavoriteQuotesByUser(ctx, userID.String())
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to list favorites")
	}

	favorites := make([]domain.FavoriteQuote, 0, len(rows))
	for _, row := range rows {
		favorites = append(favorites, *repoFavoriteToDomain(row))
	}
	return favorites, nil
}

// DeleteFavorite removes a favorite owned by the user.
func (s *quoteService) DeleteFavorite(ctx context.Context, userID, favoriteID uuid.UUID) error {
	const op = "quote.delete_favorite"

	affected, err := s.queries.DeleteFavoriteQuote(ctx, favoriteID.String(), userID.String())
	if err != nil {
		return domain.Internal(err, op, "Failed to delete favorite")
	}
	if affected == 0 {
		return domain.NotFound(op, "favorite", favoriteID.String())
	}
	return nil
}

func repoFavoriteToDomain(f repository.FavoriteQuote) *domain.FavoriteQuote {
	id, _ := uuid.Parse(f.ID)
	userID, _ := uuid.Parse(f.UserID)
	return &domain.FavoriteQuote{
		ID:        id,
		UserID:    userID,
		Quote:     f.Quote,
		Author:    f.Author,
		CreatedAt: f.CreatedAt,
	}
}

var _ QuoteService = (*quoteService)(nil)
