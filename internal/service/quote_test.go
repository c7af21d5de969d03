package service

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mwestcott/habitflow/internal/ai"
	"github.com/mwestcott/habitflow/internal/domain"
)

// stubEntitlements records gate calls so tests can assert that consumption
// is only committed after the provider succeeds.
type stubEntitlements struct {
	evaluateErr  error
	commitErr    error
	remaining    int
	evaluateCall int
	commitCalls  int
}

func (s *stubEntitlements) Evaluate(ctx context.Context, email string) error {
	s.evaluateCall++
	return s.evaluateErr
}

func (s *stubEntitlements) CommitConsumption(ctx context.Context, email string) (int, error) {
	s.commitCalls++
	if s.commitErr != nil {
		return 0, s.commitErr
	}
	return s.remaining, nil
}

func (s *stubEntitlements) GetUsage(ctx context.Context, email string) (*domain.QuotaUsage, error) {
	return &domain.QuotaUsage{Used: 0, Limit: domain.DailyQuoteLimit}, nil
}

func (s *stubEntitlements) ActivatePremium(ctx context.Context, email string) error {
	return nil
}

type stubProvider struct {
	quote domain.Quote
	err   error
	calls int
}

func (s *stubProvider) GenerateQuote(ctx context.Context, params ai.GenerateParams) (*ai.GenerateResult, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &ai.GenerateResult{Quote: s.quote}, nil
}

func newTestQuoteService(ents *stubEntitlements, provider *stubProvider) QuoteService {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewQuoteService(ents, provider, nil, logger)
}

func testUser() *domain.User {
	return &domain.User{Email: "u@example.com", Name: "Test"}
}

func TestGenerate_CommitsAfterProviderSuccess(t *testing.T) {
	ents := &stubEntitlements{remaining: 1}
	provider := &stubProvider{quote: domain.Quote{Text: "Ship it.", Author: "Reid Hoffman"}}
	svc := newTestQuoteService(ents, provider)

	result, err := svc.Generate(context.Background(), testUser())
	require.NoError(t, err)
	assert.Equal(t, "Ship it.", result.Quote.Text)
	assert.Equal(t, "Reid Hoffman", result.Quote.Author)
	assert.Equal(t, 1, result.Remaining)
	assert.Equal(t, 1, provider.calls)
	assert.Equal(t, 1, ents.commitCalls)
}

func TestGenerate_DeniedBeforeProviderCall(t *testing.T) {
	ents := &stubEntitlements{evaluateErr: domain.QuotaExceeded("entitlement.evaluate", 3, 3)}
	provider := &stubProvider{}
	svc := newTestQuoteService(ents, provider)

	_, err := svc.Generate(context.Background(), testUser())
	assert.Equal(t, domain.EQUOTA, domain.ErrorCode(err))
	assert.Equal(t, 0, provider.calls, "provider must not be called when the gate denies")
	assert.Equal(t, 0, ents.commitCalls, "nothing to commit when the gate denies")
}

func TestGenerate_ProviderFailureDoesNotConsume(t *testing.T) {
	ents := &stubEntitlements{}
	provider := &stubProvider{err: ai.EAIUnavailable}
	svc := newTestQuoteService(ents, provider)

	_, err := svc.Generate(context.Background(), testUser())
	assert.Equal(t, domain.EUPSTREAM, domain.ErrorCode(err))
	assert.Equal(t, 1, provider.calls)
	assert.Equal(t, 0, ents.commitCalls, "a failed generation must not burn a credit")
}

func TestGenerate_NonRetryableProviderFailureIsInternal(t *testing.T) {
	ents := &stubEntitlements{}
	provider := &stubProvider{err: ai.EAIUnauthorized}
	svc := newTestQuoteService(ents, provider)

	_, err := svc.Generate(context.Background(), testUser())
	assert.Equal(t, domain.EINTERNAL, domain.ErrorCode(err))
	assert.Equal(t, 0, ents.commitCalls)
}

func TestGenerate_CommitRaceLoserIsDenied(t *testing.T) {
	ents := &stubEntitlements{commitErr: domain.QuotaExceeded("entitlement.commit", 3, 3)}
	provider := &stubProvider{quote: domain.Quote{Text: "x", Author: "y"}}
	svc := newTestQuoteService(ents, provider)

	_, err := svc.Generate(context.Background(), testUser())
	assert.Equal(t, domain.EQUOTA, domain.ErrorCode(err))
	assert.Equal(t, 1, ents.commitCalls)
}
