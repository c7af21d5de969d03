package ai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mwestcott/habitflow/internal/domain"
)

// QuoteProvider defines the interface for AI-powered motivational quote generation
type QuoteProvider interface {
	// GenerateQuote generates a motivational quote attributed to a real
	// entrepreneur or business leader
	GenerateQuote(ctx context.Context, params GenerateParams) (*GenerateResult, error)
}

// GenerateParams contains parameters for quote generation
type GenerateParams struct {
	UserEmail string // User email for usage tracking in logs
}

// GenerateResult contains a generated quote and usage information
type GenerateResult struct {
	Quote domain.Quote // The generated quote with attribution
	Usage UsageInfo    // Token usage information
}

// UsageInfo tracks API usage for monitoring
type UsageInfo struct {
	Model        string        // AI model used
	InputTokens  int           // Tokens in the request
	OutputTokens int           // Tokens in the response
	Duration     time.Duration // Request duration
}

// ProviderConfig contains common configuration for AI providers
type ProviderConfig struct {
	MaxRetries     int           // Maximum retry attempts for transient errors
	RetryBaseDelay time.Duration // Base delay for exponential backoff
	RequestTimeout time.Duration // Timeout for individual requests
}

// Error codes for AI provider operations
var (
	// EAIRateLimit indicates the API rate limit has been exceeded
	EAIRateLimit = errors.New("ai provider rate limit exceeded")

	// EAITimeout indicates the request timed out
	EAITimeout = errors.New("ai request timed out")

	// EAIUnavailable indicates the AI service is temporarily unavailable
	EAIUnavailable = errors.New("ai service temporarily unavailable")

	// EAIUnauthorized indicates invalid API credentials
	EAIUnauthorized = errors.New("ai provider authentication failed")

	// EAIEmptyResponse indicates the provider returned no usable content
	EAIEmptyResponse = errors.New("ai provider returned empty response")
)

// IsRetryable returns true if the error is a transient error that can be retried
func IsRetryable(err error) bool {
	return errors.Is(err, EAIRateLimit) ||
		errors.Is(err, EAITimeout) ||
		errors.Is(err, EAIUnavailable)
}

// WrapError wraps an error with context about the AI operation
func WrapError(operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("ai %s: %w", operation, err)
}
