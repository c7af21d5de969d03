package openai

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mwestcott/habitflow/internal/ai"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func completionResponse(content string) apiResponse {
	return apiResponse{
		ID:    "chatcmpl-test",
		Model: DefaultModel,
		Choices: []apiChoice{
			{Message: apiMessage{Role: "assistant", Content: content}, FinishReason: "stop"},
		},
		Usage: apiUsage{PromptTokens: 80, CompletionTokens: 25, TotalTokens: 105},
	}
}

func newTestProvider(t *testing.T, serverURL string) *Provider {
	t.Helper()
	p, err := New(Config{
		APIKey:  "sk-test",
		BaseURL: serverURL,
		ProviderConfig: ai.ProviderConfig{
			MaxRetries:     3,
			RetryBaseDelay: time.Millisecond,
			RequestTimeout: time.Second,
		},
	}, testLogger())
	require.NoError(t, err)
	return p
}

func TestGenerateQuote_ParsesQuoteAndAuthor(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req apiRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, DefaultModel, req.Model)
		assert.Equal(t, MaxTokens, req.MaxTokens)
		assert.InDelta(t, Temperature, req.Temperature, 0.001)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)
		assert.Equal(t, "user", req.Messages[1].Role)

		json.NewEncoder(w).Encode(completionResponse(`"Stay hungry, stay foolish." — Steve Jobs`))
	}))
	defer server.Close()

	p := newTestProvider(t, server.URL)

	result, err := p.GenerateQuote(context.Background(), ai.GenerateParams{})
	require.NoError(t, err)
	assert.Equal(t, "Stay hungry, stay foolish.", result.Quote.Text)
	assert.Equal(t, "Steve Jobs", result.Quote.Author)
	assert.Equal(t, 80, result.Usage.InputTokens)
	assert.Equal(t, 25, result.Usage.OutputTokens)
}

func TestGenerateQuote_MissingSeparatorFallsBackToUnknown(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(completionResponse("Success is a lousy teacher."))
	}))
	defer server.Close()

	p := newTestProvider(t, server.URL)

	result, err := p.GenerateQuote(context.Background(), ai.GenerateParams{})
	require.NoError(t, err)
	assert.Equal(t, "Success is a lousy teacher.", result.Quote.Text)
	assert.Equal(t, "Unknown", result.Quote.Author)
}

func TestGenerateQuote_RetriesOnRateLimit(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		json.NewEncoder(w).Encode(completionResponse("Dream big. — Richard Branson"))
	}))
	defer server.Close()

	p := newTestProvider(t, server.URL)

	result, err := p.GenerateQuote(context.Background(), ai.GenerateParams{})
	require.NoError(t, err)
	assert.Equal(t, "Richard Branson", result.Quote.Author)
	assert.Equal(t, int32(2), calls.Load())
}

func TestGenerateQuote_DoesNotRetryOnUnauthorized(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	p := newTestProvider(t, server.URL)

	_, err := p.GenerateQuote(context.Background(), ai.GenerateParams{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ai.EAIUnauthorized)
	assert.Equal(t, int32(1), calls.Load())
}

func TestGenerateQuote_EmptyResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(apiResponse{})
	}))
	defer server.Close()

	p := newTestProvider(t, server.URL)

	_, err := p.GenerateQuote(context.Background(), ai.GenerateParams{})
	assert.ErrorIs(t, err, ai.EAIEmptyResponse)
}

func TestNew_RequiresAPIKey(t *testing.T) {
	_, err := New(Config{}, testLogger())
	assert.Error(t, err)
}
