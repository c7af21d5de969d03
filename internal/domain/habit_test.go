package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// fixed reference point: 2025-06-10 noon UTC
var streakNow = time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

func TestHabit_ComputeStreaks(t *testing.T) {
	tests := []struct {
		name        string
		dates       []string
		wantCurrent int
		wantLongest int
	}{
		{"no completions", nil, 0, 0},
		{"single today", []string{"2025-06-10"}, 1, 1},
		{"single yesterday keeps streak alive", []string{"2025-06-09"}, 1, 1},
		{"single two days ago is broken", []string{"2025-06-08"}, 0, 1},
		{"run ending today", []string{"2025-06-08", "2025-06-09", "2025-06-10"}, 3, 3},
		{"run ending yesterday", []string{"2025-06-07", "2025-06-08", "2025-06-09"}, 3, 3},
		{
			"old run longer than current",
			[]string{"2025-05-01", "2025-05-02", "2025-05-03", "2025-05-04", "2025-06-09", "2025-06-10"},
			2, 4,
		},
		{"unsorted input", []string{"2025-06-10", "2025-06-08", "2025-06-09"}, 3, 3},
		{"duplicates ignored", []string{"2025-06-10", "2025-06-10", "2025-06-09"}, 2, 2},
		{"malformed dates skipped", []string{"not-a-date", "2025-06-10"}, 1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := &Habit{CompletedDates: tt.dates}
			s := h.ComputeStreaks(streakNow)
			assert.Equal(t, tt.wantCurrent, s.Current, "current streak")
			assert.Equal(t, tt.wantLongest, s.Longest, "longest streak")
		})
	}
}

func TestHabit_ToggleCompletion(t *testing.T) {
	h := &Habit{CompletedDates: []string{"2025-06-09"}}

	done := h.ToggleCompletion("2025-06-10")
	assert.True(t, done)
	assert.True(t, h.CompletedOn("2025-06-10"))

	done = h.ToggleCompletion("2025-06-10")
	assert.False(t, done)
	assert.False(t, h.CompletedOn("2025-06-10"))
	assert.True(t, h.CompletedOn("2025-06-09"))
}

func TestNormalizeCategory(t *testing.T) {
	assert.Equal(t, "Health & Fitness", NormalizeCategory("  health & FITNESS "))
	assert.Equal(t, "General", NormalizeCategory(""))
	assert.Equal(t, "Mindfulness", NormalizeCategory("mindfulness"))
}

func TestUser_EffectiveQuoteCount(t *testing.T) {
	u := &User{QuoteCount: 5, QuoteCountDate: "2025-06-09"}

	// Stale date means the stored count is logically zero.
	assert.Equal(t, 0, u.EffectiveQuoteCount("2025-06-10"))
	assert.Equal(t, 5, u.EffectiveQuoteCount("2025-06-09"))
}

func TestQuotaUsage_Remaining(t *testing.T) {
	assert.Equal(t, -1, QuotaUsage{Unlimited: true}.Remaining())
	assert.Equal(t, 3, QuotaUsage{Used: 0, Limit: 3}.Remaining())
	assert.Equal(t, 1, QuotaUsage{Used: 2, Limit: 3}.Remaining())
	assert.Equal(t, 0, QuotaUsage{Used: 3, Limit: 3}.Remaining())
	assert.Equal(t, 0, QuotaUsage{Used: 7, Limit: 3}.Remaining())
}
