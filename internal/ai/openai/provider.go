// Package openai implements the quote provider interface using the
// OpenAI chat completions API.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mwestcott/habitflow/internal/ai"
	"github.com/mwestcott/habitflow/internal/domain"
)

const (
	// APIBaseURL is the base URL for the OpenAI chat completions API
	APIBaseURL = "https://api.openai.com/v1/chat/completions"

	// DefaultModel is the default model to use for quote generation
	DefaultModel = "gpt-3.5-turbo"

	// MaxTokens caps the completion length. Quotes are short; anything
	// longer than this is the model rambling.
	MaxTokens = 60

	// Temperature is set high to maximize variety between quotes
	Temperature = 1.2

	systemPrompt = "You are a helpful assistant that generates motivational quotes. " +
		"Only use real, well-known entrepreneurs, founders, or business leaders as the author. " +
		"Never use 'Unknown' or fictional names. Always maximize variety and randomness in your responses."

	userPrompt = "Give me a short, original motivational quote attributed to a real, " +
		"well-known entrepreneur, founder, or business leader. The author must be a real " +
		"person and never 'Unknown'. Make the quote and author as random as possible, and " +
		"avoid repeating previous responses. Format: <quote> — <author>."
)

// Config contains configuration for the OpenAI provider
type Config struct {
	APIKey         string
	Model          string
	BaseURL        string // Override for testing; defaults to APIBaseURL
	ProviderConfig ai.ProviderConfig
}

// Provider implements the QuoteProvider interface using OpenAI's API
type Provider struct {
	config Config
	client *http.Client
	logger *slog.Logger
}

// New creates a new OpenAI quote provider
func New(config Config, logger *slog.Logger) (*Provider, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("openai API key is required")
	}

	// Set defaults
	if config.Model == "" {
		config.Model = DefaultModel
	}
	if config.BaseURL == "" {
		config.BaseURL = APIBaseURL
	}
	if config.ProviderConfig.MaxRetries == 0 {
		config.ProviderConfig.MaxRetries = 3
	}
	if config.ProviderConfig.RetryBaseDelay == 0 {
		config.ProviderConfig.RetryBaseDelay = 1 * time.Second
	}
	if config.ProviderConfig.RequestTimeout == 0 {
		config.ProviderConfig.RequestTimeout = 30 * time.Second
	}

	return &Provider{
		config: config,
		client: &http.Client{
			Timeout: config.ProviderConfig.RequestTimeout,
		},
		logger: logger,
	}, nil
}

// GenerateQuote requests a motivational quote from the OpenAI API
func (p *Provider) GenerateQuote(ctx context.Context, params ai.GenerateParams) (*ai.GenerateResult, error) {
	startTime := time.Now()

	bodyBytes, err := p.buildRequestBody()
	if err != nil {
		return nil, ai.WrapError("build request", err)
	}

	resp, err := p.executeWithRetry(ctx, bodyBytes)
	if err != nil {
		return nil, ai.WrapError("execute request", err)
	}

	quote, err := parseQuote(resp)
	if err != nil {
		return nil, ai.WrapError("parse response", err)
	}

	duration := time.Since(startTime)
	p.logger.Debug("Quote generated",
		"model", p.config.Model,
		"input_tokens", resp.Usage.PromptTokens,
		"output_tokens", resp.Usage.CompletionTokens,
		"duration", duration,
	)

	return &ai.GenerateResult{
		Quote: *quote,
		Usage: ai.UsageInfo{
			Model:        p.config.Model,
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
			Duration:     duration,
		},
	}, nil
}

// buildRequestBody builds the JSON body for a chat completions request
func (p *Provider) buildRequestBody() ([]byte, error) {
	reqBody := apiRequest{
		Model: p.config.Model,
		Messages: []apiMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		MaxTokens:   MaxTokens,
		Temperature: Temperature,
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	return bodyBytes, nil
}

// executeWithRetry executes the request with exponential backoff retry.
// A fresh request is built per attempt because the body reader is
// consumed on each send.
func (p *Provider) executeWithRetry(ctx context.Context, bodyBytes []byte) (*apiResponse, error) {
	var lastErr error

	for attempt := 1; attempt <= p.config.ProviderConfig.MaxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.BaseURL, bytes.NewReader(bodyBytes))
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+p.config.APIKey)

		resp, err := p.executeRequest(req)
		if err == nil {
			return resp, nil
		}

		lastErr = err

		// Only retry on retryable errors
		if !ai.IsRetryable(err) {
			return nil, err
		}

		if attempt >= p.config.ProviderConfig.MaxRetries {
			break
		}

		// Exponential backoff: base * 2^(attempt-1)
		delay := p.config.ProviderConfig.RetryBaseDelay * time.Duration(1<<(attempt-1))
		p.logger.Info("Retrying quote request", "attempt", attempt, "delay", delay, "error", err)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, lastErr
}

// executeRequest executes a single HTTP request
func (p *Provider) executeRequest(req *http.Request) (*apiResponse, error) {
	resp, err := p.client.Do(req)
	if err != nil {
		// Network errors are typically retryable
		return nil, ai.EAIUnavailable
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, mapHTTPError(resp.StatusCode, bodyBytes)
	}

	var apiResp apiResponse
	if err := json.Unmarshal(bodyBytes, &apiResp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	return &apiResp, nil
}

// mapHTTPError maps HTTP status codes to provider errors
func mapHTTPError(statusCode int, body []byte) error {
	var errResp apiErrorResponse
	_ = json.Unmarshal(body, &errResp)

	switch statusCode {
	case http.StatusUnauthorized:
		return ai.EAIUnauthorized
	case http.StatusTooManyRequests:
		return ai.EAIRateLimit
	case http.StatusRequestTimeout:
		return ai.EAITimeout
	case http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusGatewayTimeout:
		return ai.EAIUnavailable
	default:
		return fmt.Errorf("API error (status %d): %s", statusCode, errResp.Error.Message)
	}
}

// parseQuote extracts the quote text and author from the completion.
// The model is prompted to respond as "<quote> — <author>"; if the
// separator is missing the whole text becomes the quote with an
// "Unknown" author rather than failing the request.
func parseQuote(resp *apiResponse) (*domain.Quote, error) {
	if len(resp.Choices) == 0 {
		return nil, ai.EAIEmptyResponse
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return nil, ai.EAIEmptyResponse
	}

	quote := domain.Quote{Text: text, Author: "Unknown"}
	if idx := strings.Index(text, "—"); idx >= 0 {
		quote.Text = strings.TrimSpace(text[:idx])
		quote.Author = strings.TrimSpace(text[idx+len("—"):])
		if quote.Author == "" {
			quote.Author = "Unknown"
		}
	}

	// Strip surrounding quotation marks the model sometimes adds
	quote.Text = strings.Trim(quote.Text, `"“”`)

	if quote.Text == "" {
		return nil, ai.EAIEmptyResponse
	}

	return &quote, nil
}

// API request/response types

type apiRequest struct {
	Model       string       `json:"model"`
	Messages    []apiMessage `json:"messages"`
	MaxTokens   int          `json:"max_tokens"`
	Temperature float64      `json:"temperature"`
}

type apiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type apiResponse struct {
	ID      string      `json:"id"`
	Model   string      `json:"model"`
	Choices []apiChoice `json:"choices"`
	Usage   apiUsage    `json:"usage"`
}

type apiChoice struct {
	Index        int        `json:"index"`
	Message      apiMessage `json:"message"`
	FinishReason string     `json:"finish_reason"`
}

type apiUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type apiErrorResponse struct {
	Error apiError `json:"error"`
}

type apiError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Code    string `json:"code"`
}
