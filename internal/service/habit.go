// Package service contains the business logic layer.
//
// This file implements habit CRUD and completion tracking.
package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sqlc-dev/pqtype"

	"github.com/mwestcott/habitflow/internal/domain"
	"github.com/mwestcott/habitflow/internal/metrics"
	"github.com/mwestcott/habitflow/internal/repository"
)

// MaxHabitNameLength caps habit names at a sane display length.
const MaxHabitNameLength = 120

// HabitService manages a user's habits and their completion history.
type HabitService interface {
	// Create adds a new habit for the user.
	Create(ctx context.Context, userID uuid.UUID, name, category string) (*domain.Habit, error)

	// List returns all of the user's habits, oldest first.
	List(ctx context.Context, userID uuid.UUID) ([]domain.Habit, error)

	// Get retrieves a habit owned by the user.
	// Returns domain.ENOTFOUND if it does not exist or belongs to someone else.
	Get(ctx context.Context, userID, habitID uuid.UUID) (*domain.Habit, error)

	// Update changes a habit's name and category.
	Update(ctx context.Context, userID, habitID uuid.UUID, name, category string) (*domain.Habit, error)

	// Delete removes a habit owned by the user.
	Delete(ctx context.Context, userID, habitID uuid.UUID) error

	// ToggleCompletion marks the habit done for the given day, or un-marks
	// it if already done. Day defaults to today (UTC) when empty.
	// Returns the updated habit and whether the day is now completed.
	ToggleCompletion(ctx context.Context, userID, habitID uuid.UUID, day string) (*domain.Habit, bool, error)
}

type habitService struct {
	queries *repository.Queries
	logger  *slog.Logger
	now     func() time.Time
}

// NewHabitService creates a new HabitService.
func NewHabitService(queries *repository.Queries, logger *slog.Logger) HabitService {
	return &habitService{
		queries: queries,
		logger:  logger,
		now:     time.Now,
	}
}

// Create adds a new habit for the user.
func (s *habitService) Create(ctx context.Context, userID uuid.UUID, name, category string) (*domain.Habit, error) {
	const op = "habit.create"

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, domain.Invalid(op, "Habit name is required")
	}
	if len(name) > MaxHabitNameLength {
		return nil, domain.Invalid(op, "Habit name is too long")
	}

	row, err := s.queries.CreateHabit(ctx, repository.CreateHabitParams{
		UserID:   userID.String(),
		Name:     name,
		Category: domain.NormalizeCategory(category),
	})
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to create habit")
	}

	metrics.HabitsCreated.Inc()
	s.logger.Info("habit created", "user_id", userID, "habit_id", row.ID, "category", row.Category)

	return repoHabitToDomain(row), nil
}

// List returns all of the user's habits, oldest first.
func (s *habitService) List(ctx context.Context, userID uuid.UUID) ([]domain.Habit, error) {
	const op = "habit.list"

	rows, err := s.queries.ListHabitsByUser(ctx, userID.String())
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to list habits")
	}

	habits := make([]domain.Habit, 0, len(rows))
	for _, row := range rows {
		habits = append(habits, *repoHabitToDomain(row))
	}
	return habits, nil
}

// Get retrieves a habit owned by the user.
func (s *habitService) Get(ctx context.Context, userID, habitID uuid.UUID) (*domain.Habit, error) {
	const op = "habit.get"
	return s.getOwned(ctx, op, userID, habitID)
}

// Update changes a habit's name and category.
func (s *habitService) Update(ctx context.Context, userID, habitID uuid.UUID, name, category string) (*domain.Habit, error) {
	const op = "habit.update"

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, domain.Invalid(op, "Habit name is required")
	}
	if len(name) > MaxHabitNameLength {
		return nil, domain.Invalid(op, "Habit name is too long")
	}

	habit, err := s.getOwned(ctx, op, userID, habitID)
	if err != nil {
		return nil, err
	}

	habit.Name = name
	habit.Category = domain.NormalizeCategory(category)

	err = s.queries.UpdateHabit(ctx, repository.UpdateHabitParams{
		ID:       habitID.String(),
		Name:     habit.Name,
		Category: habit.Category,
	})
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to update habit")
	}

	return habit, nil
}

// Delete removes a habit owned by the user.
func (s *habitService) Delete(ctx context.Context, userID, habitID uuid.UUID) error {
	const op = "habit.delete"

	affected, err := s.queries.DeleteHabit(ctx, habitID.String(), userID.String())
	if err != nil {
		return domain.Internal(err, op, "Failed to delete habit")
	}
	if affected == 0 {
		return domain.NotFound(op, "habit", habitID.String())
	}

	s.logger.Info("habit deleted", "user_id", userID, "habit_id", habitID)
	return nil
}

// ToggleCompletion marks the habit done for the given day, or un-marks it.
func (s *habitService) ToggleCompletion(ctx context.Context, userID, habitID uuid.UUID, day string) (*domain.Habit, bool, error) {
	const op = "habit.toggle_completion"

	if day == "" {
		day = domain.QuoteDay(s.now())
	} else if _, err := time.Parse(domain.DateLayout, day); err != nil {
		return nil, false, domain.Invalid(op, "Date must be in YYYY-MM-DD format")
	}

	habit, err := s.getOwned(ctx, op, userID, habitID)
	if err != nil {
		return nil, false, err
	}

	completed := habit.ToggleCompletion(day)

	raw, err := encodeCompletedDates(habit.CompletedDates)
	if err != nil {
		return nil, false, domain.Internal(err, op, "Failed to encode completion dates")
	}

	err = s.queries.UpdateHabitCompletedDates(ctx, repository.UpdateHabitCompletedDatesParams{
		ID:             habitID.String(),
		CompletedDates: raw,
	})
	if err != nil {
		return nil, false, domain.Internal(err, op, "Failed to update completion dates")
	}

	return habit, completed, nil
}

// getOwned fetches a habit and enforces ownership. A habit belonging to a
// different user reads as not found so the API does not leak existence.
func (s *habitService) getOwned(ctx context.Context, op string, userID, habitID uuid.UUID) (*domain.Habit, error) {
	row, err := s.queries.GetHabitByID(ctx, habitID.String())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(op, "habit", habitID.String())
		}
		return nil, domain.Internal(err, op, "Failed to retrieve habit")
	}
	if row.UserID != userID.String() {
		return nil, domain.NotFound(op, "habit", habitID.String())
	}
	return repoHabitToDomain(row), nil
}

func repoHabitToDomain(h repository.Habit) *domain.Habit {
	id, _ := uuid.Parse(h.ID)
	userID, _ := uuid.Parse(h.UserID)

	var dates []string
	if h.CompletedDates.Valid {
		// Corrupt jsonb reads as an empty set rather than failing the request
		_ = json.Unmarshal(h.CompletedDates.RawMessage, &dates)
	}
	if dates == nil {
		dates = []string{}
	}

	return &domain.Habit{
		ID:             id,
		UserID:         userID,
		Name:           h.Name,
		Category:       h.Category,
		CompletedDates: dates,
		CreatedAt:      h.CreatedAt,
		UpdatedAt:      h.UpdatedAt,
	}
}

func encodeCompletedDates(dates []string) (pqtype.NullRawMessage, error) {
	if dates == nil {
		dates = []string{}
	}
	raw, err := json.Marshal(dates)
	if err != nil {
		return pqtype.NullRawMessage{}, err
	}
	return pqtype.NullRawMessage{RawMessage: raw, Valid: true}, nil
}

var _ HabitService = (*habitService)(nil)
