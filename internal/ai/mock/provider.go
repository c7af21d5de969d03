// Package mock provides a quote provider for development and testing
// that returns canned quotes without calling an external API.
package mock

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/mwestcott/habitflow/internal/ai"
	"github.com/mwestcott/habitflow/internal/domain"
)

var quotes = []domain.Quote{
	{Text: "The way to get started is to quit talking and begin doing.", Author: "Walt Disney"},
	{Text: "Your most unhappy customers are your greatest source of learning.", Author: "Bill Gates"},
	{Text: "If you are not embarrassed by the first version of your product, you've launched too late.", Author: "Reid Hoffman"},
	{Text: "It's fine to celebrate success but it is more important to heed the lessons of failure.", Author: "Bill Gates"},
	{Text: "Chase the vision, not the money; the money will end up following you.", Author: "Tony Hsieh"},
	{Text: "I have not failed. I've just found 10,000 ways that won't work.", Author: "Thomas Edison"},
	{Text: "Make every detail perfect and limit the number of details to perfect.", Author: "Jack Dorsey"},
	{Text: "Risk more than others think is safe.", Author: "Howard Schultz"},
}

// Provider implements the QuoteProvider interface with canned responses
type Provider struct {
	mu   sync.Mutex
	rand *rand.Rand
}

// New creates a new mock quote provider
func New() *Provider {
	return &Provider{
		rand: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// GenerateQuote returns a random canned quote
func (p *Provider) GenerateQuote(ctx context.Context, params ai.GenerateParams) (*ai.GenerateResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	quote := quotes[p.rand.Intn(len(quotes))]
	p.mu.Unlock()

	return &ai.GenerateResult{
		Quote: quote,
		Usage: ai.UsageInfo{Model: "mock"},
	}, nil
}
