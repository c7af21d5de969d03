package domain

import (
	"time"

	"github.com/google/uuid"
)

// Quote is a generated motivational quote.
type Quote struct {
	Text   string
	Author string
}

// FavoriteQuote is a quote a user chose to keep.
type FavoriteQuote struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Quote     string
	Author    string
	CreatedAt time.Time
}

// GenerateQuoteResult is the outcome of a successful metered generation.
type GenerateQuoteResult struct {
	Quote     Quote
	Remaining int // quotes left today; -1 when unlimited
}
