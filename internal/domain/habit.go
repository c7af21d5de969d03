// Package domain contains core business types and interfaces.
//
// This file defines the Habit type and the streak arithmetic computed from
// its set of completed days.
package domain

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// DateLayout is the wire and storage format for habit completion days.
const DateLayout = "2006-01-02"

// Habit represents a tracked habit belonging to one user.
//
// CompletedDates holds UTC calendar days (YYYY-MM-DD) on which the habit was
// marked done. The set is small (one entry per day at most) so streaks are
// computed on demand rather than stored.
type Habit struct {
	ID             uuid.UUID
	UserID         uuid.UUID
	Name           string
	Category       string
	CompletedDates []string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

var categoryTitle = cases.Title(language.English)

// NormalizeCategory canonicalizes a user-supplied category for storage and
// display ("health & fitness" -> "Health & Fitness").
func NormalizeCategory(category string) string {
	category = strings.TrimSpace(category)
	if category == "" {
		return "General"
	}
	return categoryTitle.String(strings.ToLower(category))
}

// CompletedOn reports whether the habit was marked done on the given day.
func (h *Habit) CompletedOn(day string) bool {
	for _, d := range h.CompletedDates {
		if d == day {
			return true
		}
	}
	return false
}

// ToggleCompletion adds the day to the completed set, or removes it if
// already present. Returns true if the day is completed after the toggle.
func (h *Habit) ToggleCompletion(day string) bool {
	for i, d := range h.CompletedDates {
		if d == day {
			h.CompletedDates = append(h.CompletedDates[:i], h.CompletedDates[i+1:]...)
			return false
		}
	}
	h.CompletedDates = append(h.CompletedDates, day)
	return true
}

// Streaks summarizes consecutive-day runs over the completed set.
type Streaks struct {
	Current int // run ending today or yesterday
	Longest int // longest run anywhere in the history
}

// ComputeStreaks calculates the current and longest streaks as of now.
//
// The current streak counts back from today; a habit not yet done today but
// done yesterday still has a live streak (the user has until midnight).
// Malformed dates are skipped rather than failing the whole computation.
func (h *Habit) ComputeStreaks(now time.Time) Streaks {
	days := make([]time.Time, 0, len(h.CompletedDates))
	seen := make(map[string]bool, len(h.CompletedDates))
	for _, d := range h.CompletedDates {
		if seen[d] {
			continue
		}
		t, err := time.ParseInLocation(DateLayout, d, time.UTC)
		if err != nil {
			continue
		}
		seen[d] = true
		days = append(days, t)
	}
	if len(days) == 0 {
		return Streaks{}
	}

	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	var streaks Streaks
	run := 1
	streaks.Longest = 1
	for i := 1; i < len(days); i++ {
		if days[i].Sub(days[i-1]) == 24*time.Hour {
			run++
		} else {
			run = 1
		}
		if run > streaks.Longest {
			streaks.Longest = run
		}
	}

	// The trailing run is current only if it reaches today or yesterday.
	today := now.UTC().Truncate(24 * time.Hour)
	last := days[len(days)-1]
	if gap := today.Sub(last); gap == 0 || gap == 24*time.Hour {
		streaks.Current = run
	}
	return streaks
}
