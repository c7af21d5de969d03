// Package handler contains HTTP handlers for the HabitFlow API.
//
// This file implements the metered quote endpoints and favorites.
//
// Routes handled:
//   - POST   /api/quotes/generate  -> Generate
//   - GET    /api/quotes/usage     -> Usage
//   - GET    /api/favorites        -> ListFavorites
//   - POST   /api/favorites        -> SaveFavorite
//   - DELETE /api/favorites/{id}   -> DeleteFavorite
//
// Generate returns 402 Payment Required when the daily free limit is
// exhausted; the error body carries the limit and usage for the
// client's upgrade prompt.
package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/mwestcott/habitflow/internal/auth"
	"github.com/mwestcott/habitflow/internal/domain"
	"github.com/mwestcott/habitflow/internal/service"
)

// QuoteHandler handles quote generation and favorites HTTP requests.
type QuoteHandler struct {
	quotes service.QuoteService
	logger *slog.Logger
}

// NewQuoteHandler creates a new QuoteHandler.
func NewQuoteHandler(quotes service.QuoteService, logger *slog.Logger) *QuoteHandler {
	return &QuoteHandler{
		quotes: quotes,
		logger: logger,
	}
}

// RegisterRoutes registers quote routes on the provided mux.
//
// Only generation requires a verified email: it is the one endpoint
// that spends provider credits, and unverified throwaway accounts
// must not be able to burn them.
func (h *QuoteHandler) RegisterRoutes(mux *http.ServeMux, requireUser, requireVerified func(http.Handler) http.Handler) {
	mux.Handle("POST /api/quotes/generate", requireVerified(http.HandlerFunc(h.Generate)))
	mux.Handle("GET /api/quotes/usage", requireUser(http.HandlerFunc(h.Usage)))
	mux.Handle("GET /api/favorites", requireUser(http.HandlerFunc(h.ListFavorites)))
	mux.Handle("POST /api/favorites", requireUser(http.HandlerFunc(h.SaveFavorite)))
	mux.Handle("DELETE /api/favorites/{id}", requireUser(http.HandlerFunc(h.DeleteFavorite)))
}

type quoteResponse struct {
	Text   string `json:"text"`
	Author string `json:"author"`
}

type favoriteResponse struct {
	ID        string `json:"id"`
	Quote     string `json:"quote"`
	Author    string `json:"author"`
	CreatedAt string `json:"created_at"`
}

func toFavoriteResponse(f *domain.FavoriteQuote) favoriteResponse {
	return favoriteResponse{
		ID:        f.ID.String(),
		Quote:     f.Quote,
		Author:    f.Author,
		CreatedAt: f.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// Generate produces a motivational quote, consuming one daily credit
// for free accounts.
func (h *QuoteHandler) Generate(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())

	result, err := h.quotes.Generate(r.Context(), user)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"quote": quoteResponse{
			Text:   result.Quote.Text,
			Author: result.Quote.Author,
		},
		"remaining": result.Remaining,
	})
}

// Usage reports the user's standing against the daily limit.
func (h *QuoteHandler) Usage(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())

	usage, err := h.quotes.Usage(r.Context(), user)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"used":      usage.Used,
		"limit":     usage.Limit,
		"remaining": usage.Remaining(),
		"unlimited": usage.Unlimited,
	})
}

// SaveFavorite stores a quote in the user's favorites.
func (h *QuoteHandler) SaveFavorite(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())

	var req struct {
		Quote  string `json:"quote"`
		Author string `json:"author"`
	}
	if err := decodeJSON(r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	favorite, err := h.quotes.SaveFavorite(r.Context(), user.ID, domain.Quote{
		Text:   req.Quote,
		Author: req.Author,
	})
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{"favorite": toFavoriteResponse(favorite)})
}

// ListFavorites returns the user's favorite quotes, newest first.
func (h *QuoteHandler) ListFavorites(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())

	favorites, err := h.quotes.ListFavorites(r.Context(), user.ID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	responses := make([]favoriteResponse, 0, len(favorites))
	for i := range favorites {
		responses = append(responses, toFavoriteResponse(&favorites[i]))
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"favorites": responses})
}

// DeleteFavorite removes a favorite owned by the user.
func (h *QuoteHandler) DeleteFavorite(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())

	favoriteID, err := parseIDParam(r, "id")
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	if err := h.quotes.DeleteFavorite(r.Context(), user.ID, favoriteID); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
