package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/google/uuid"

	"github.com/mwestcott/habitflow/internal/auth"
	"github.com/mwestcott/habitflow/internal/domain"
)

// stubQuoteService returns canned results for handler tests.
type stubQuoteService struct {
	generateResult *domain.GenerateQuoteResult
	generateErr    error
	usage          *domain.QuotaUsage
}

func (s *stubQuoteService) Generate(ctx context.Context, user *domain.User) (*domain.GenerateQuoteResult, error) {
	return s.generateResult, s.generateErr
}

func (s *stubQuoteService) Usage(ctx context.Context, user *domain.User) (*domain.QuotaUsage, error) {
	return s.usage, nil
}

func (s *stubQuoteService) SaveFavorite(ctx context.Context, userID uuid.UUID, quote domain.Quote) (*domain.FavoriteQuote, error) {
	return &domain.FavoriteQuote{ID: uuid.New(), UserID: userID, Quote: quote.Text, Author: quote.Author}, nil
}

func (s *stubQuoteService) ListFavorites(ctx context.Context, userID uuid.UUID) ([]domain.FavoriteQuote, error) {
	return nil, nil
}

func (s *stubQuoteService) DeleteFavorite(ctx context.Context, userID, favoriteID uuid.UUID) error {
	return nil
}

func authedRequest(method, path string) *http.Request {
	req := httptest.NewRequest(method, path, nil)
	user := &domain.User{ID: uuid.New(), Email: "test@example.com", EmailVerified: true}
	return req.WithContext(auth.SetUser(req.Context(), user))
}

func TestQuoteHandler_Generate(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	svc := &stubQuoteService{
		generateResult: &domain.GenerateQuoteResult{
			Quote:     domain.Quote{Text: "Fall seven times, stand up eight.", Author: "Japanese Proverb"},
			Remaining: 2,
		},
	}
	h := NewQuoteHandler(svc, logger)

	rec := httptest.NewRecorder()
	h.Generate(rec, authedRequest(http.MethodPost, "/api/quotes/generate"))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body struct {
		Quote     quoteResponse `json:"quote"`
		Remaining int           `json:"remaining"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if body.Quote.Author != "Japanese Proverb" {
		t.Errorf("author = %q", body.Quote.Author)
	}
	if body.Remaining != 2 {
		t.Errorf("remaining = %d, want 2", body.Remaining)
	}
}

func TestQuoteHandler_GenerateQuotaExhausted(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	svc := &stubQuoteService{
		generateErr: domain.QuotaExceeded("quote.generate", 3, 3),
	}
	h := NewQuoteHandler(svc, logger)

	rec := httptest.NewRecorder()
	h.Generate(rec, authedRequest(http.MethodPost, "/api/quotes/generate"))

	if rec.Code != http.StatusPaymentRequired {
		t.Fatalf("expected 402, got %d", rec.Code)
	}

	var body JSONError
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if body.Error.Code != domain.EQUOTA {
		t.Errorf("code = %q, want %q", body.Error.Code, domain.EQUOTA)
	}
	if body.Error.Limit != 3 || body.Error.Used != 3 {
		t.Errorf("limit/used = %d/%d, want 3/3", body.Error.Limit, body.Error.Used)
	}
}

func TestQuoteHandler_GenerateProviderDown(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	svc := &stubQuoteService{
		generateErr: domain.Upstream(nil, "quote.generate", "Quote service is temporarily unavailable. Please try again."),
	}
	h := NewQuoteHandler(svc, logger)

	rec := httptest.NewRecorder()
	h.Generate(rec, authedRequest(http.MethodPost, "/api/quotes/generate"))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestQuoteHandler_Usage(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	svc := &stubQuoteService{
		usage: &domain.QuotaUsage{Used: 1, Limit: 3},
	}
	h := NewQuoteHandler(svc, logger)

	rec := httptest.NewRecorder()
	h.Usage(rec, authedRequest(http.MethodGet, "/api/quotes/usage"))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body struct {
		Used      int  `json:"used"`
		Limit     int  `json:"limit"`
		Remaining int  `json:"remaining"`
		Unlimited bool `json:"unlimited"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if body.Used != 1 || body.Limit != 3 || body.Remaining != 2 || body.Unlimited {
		t.Errorf("unexpected usage body: %+v", body)
	}
}
