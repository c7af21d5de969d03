package repository

import (
	"context"
	"time"
)

// FavoriteQuote is the row shape of the favorite_quotes table.
type FavoriteQuote struct {
	ID        string
	UserID    string
	Quote     string
	Author    string
	CreatedAt time.Time
}

// CreateFavoriteQuoteParams are the fields for a new favorite row.
type CreateFavoriteQuoteParams struct {
	UserID string
	Quote  string
	Author string
}

// CreateFavoriteQuote inserts a favorite quote row.
func (q *Queries) CreateFavoriteQuote(ctx context.Context, arg CreateFavoriteQuoteParams) (FavoriteQuote, error) {
	row := q.db.QueryRowContext(ctx, `
		INSERT INTO favorite_quotes (user_id, quote, author)
		VALUES ($1, $2, $3)
		RETURNING id, user_id, quote, author, created_at`,
		arg.UserID, arg.Quote, arg.Author,
	)
	var f FavoriteQuote
	err := row.Scan(&f.ID, &f.UserID, &f.Quote, &f.Author, &f.CreatedAt)
	return f, err
}

// ListFavoriteQuotesByUser returns a user's favorites, newest first.
func (q *Queries) ListFavoriteQuotesByUser(ctx context.Context, userID string) ([]FavoriteQuote, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, user_id, quote, author, created_at
		FROM favorite_quotes
		WHERE user_id = $1
		ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var favorites []FavoriteQuote
	for rows.Next() {
		var f FavoriteQuote
		if err := rows.Scan(&f.ID, &f.UserID, &f.Quote, &f.Author, &f.CreatedAt); err != nil {
			return nil, err
		}
		favorites = append(favorites, f)
	}
	return favorites, rows.Err()
}

// DeleteFavoriteQuote removes a favorite owned by the given user.
func (q *Queries) DeleteFavoriteQuote(ctx context.Context, id, userID string) (int64, error) {
	res, err := q.db.ExecContext(ctx, `
		DELETE FROM favorite_quotes WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
