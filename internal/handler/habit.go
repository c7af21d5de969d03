// Package handler contains HTTP handlers for the HabitFlow API.
//
// This file implements habit CRUD and completion tracking.
//
// Routes handled:
//   - GET    /api/habits             -> List
//   - POST   /api/habits             -> Create
//   - GET    /api/habits/{id}        -> Get
//   - PUT    /api/habits/{id}        -> Update
//   - DELETE /api/habits/{id}        -> Delete
//   - POST   /api/habits/{id}/toggle -> Toggle
//
// All routes require an authenticated session.
package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/mwestcott/habitflow/internal/auth"
	"github.com/mwestcott/habitflow/internal/domain"
	"github.com/mwestcott/habitflow/internal/service"
)

// HabitHandler handles habit HTTP requests.
type HabitHandler struct {
	habits service.HabitService
	logger *slog.Logger
	now    func() time.Time
}

// NewHabitHandler creates a new HabitHandler.
func NewHabitHandler(habits service.HabitService, logger *slog.Logger) *HabitHandler {
	return &HabitHandler{
		habits: habits,
		logger: logger,
		now:    time.Now,
	}
}

// RegisterRoutes registers habit routes on the provided mux.
func (h *HabitHandler) RegisterRoutes(mux *http.ServeMux, requireUser func(http.Handler) http.Handler) {
	mux.Handle("GET /api/habits", requireUser(http.HandlerFunc(h.List)))
	mux.Handle("POST /api/habits", requireUser(http.HandlerFunc(h.Create)))
	mux.Handle("GET /api/habits/{id}", requireUser(http.HandlerFunc(h.Get)))
	mux.Handle("PUT /api/habits/{id}", requireUser(http.HandlerFunc(h.Update)))
	mux.Handle("DELETE /api/habits/{id}", requireUser(http.HandlerFunc(h.Delete)))
	mux.Handle("POST /api/habits/{id}/toggle", requireUser(http.HandlerFunc(h.Toggle)))
}

type habitRequest struct {
	Name     string `json:"name"`
	Category string `json:"category"`
}

type toggleRequest struct {
	Date string `json:"date"`
}

// habitResponse carries the habit plus streaks computed from its
// completion history.
type habitResponse struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Category       string   `json:"category"`
	CompletedDates []string `json:"completed_dates"`
	CurrentStreak  int      `json:"current_streak"`
	LongestStreak  int      `json:"longest_streak"`
	CreatedAt      string   `json:"created_at"`
	UpdatedAt      string   `json:"updated_at"`
}

func (h *HabitHandler) toHabitResponse(habit *domain.Habit) habitResponse {
	streaks := habit.ComputeStreaks(h.now())
	dates := habit.CompletedDates
	if dates == nil {
		dates = []string{}
	}
	return habitResponse{
		ID:             habit.ID.String(),
		Name:           habit.Name,
		Category:       habit.Category,
		CompletedDates: dates,
		CurrentStreak:  streaks.Current,
		LongestStreak:  streaks.Longest,
		CreatedAt:      habit.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:      habit.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// List returns all of the user's habits, optionally filtered with
// ?category=.
func (h *HabitHandler) List(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())

	habits, err := h.habits.List(r.Context(), user.ID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	category := ""
	if raw := r.URL.Query().Get("category"); raw != "" {
		category = domain.NormalizeCategory(raw)
	}

	responses := make([]habitResponse, 0, len(habits))
	for i := range habits {
		if category != "" && habits[i].Category != category {
			continue
		}
		responses = append(responses, h.toHabitResponse(&habits[i]))
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"habits": responses})
}

// Create adds a new habit.
func (h *HabitHandler) Create(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())

	var req habitRequest
	if err := decodeJSON(r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	habit, err := h.habits.Create(r.Context(), user.ID, req.Name, req.Category)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{"habit": h.toHabitResponse(habit)})
}

// Get returns a single habit.
func (h *HabitHandler) Get(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())

	habitID, err := parseIDParam(r, "id")
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	habit, err := h.habits.Get(r.Context(), user.ID, habitID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"habit": h.toHabitResponse(habit)})
}

// Update changes a habit's name and category.
func (h *HabitHandler) Update(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())

	habitID, err := parseIDParam(r, "id")
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	var req habitRequest
	if err := decodeJSON(r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	habit, err := h.habits.Update(r.Context(), user.ID, habitID, req.Name, req.Category)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"habit": h.toHabitResponse(habit)})
}

// Delete removes a habit.
func (h *HabitHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())

	habitID, err := parseIDParam(r, "id")
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	if err := h.habits.Delete(r.Context(), user.ID, habitID); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Toggle marks the habit done for a day, or un-marks it. The day
// defaults to today (UTC) when the body is empty.
func (h *HabitHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())

	habitID, err := parseIDParam(r, "id")
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	var req toggleRequest
	if r.ContentLength > 0 {
		if err := decodeJSON(r, &req); err != nil {
			ErrorResponse(w, r, h.logger, err)
			return
		}
	}

	habit, completed, err := h.habits.ToggleCompletion(r.Context(), user.ID, habitID, req.Date)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"habit":     h.toHabitResponse(habit),
		"completed": completed,
	})
}

// parseIDParam extracts a UUID path parameter.
func parseIDParam(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		return uuid.Nil, domain.Invalid("", "Invalid "+name)
	}
	return id, nil
}
