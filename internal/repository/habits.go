package repository

import (
	"context"
	"time"

	"github.com/sqlc-dev/pqtype"
)

// Habit is the row shape of the habits table. CompletedDates is a jsonb
// array of YYYY-MM-DD strings; pqtype handles the NULL-vs-empty distinction.
type Habit struct {
	ID             string
	UserID         string
	Name           string
	Category       string
	CompletedDates pqtype.NullRawMessage
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

const habitColumns = `id, user_id, name, category, completed_dates, created_at, updated_at`

// CreateHabitParams are the fields for a new habit row.
type CreateHabitParams struct {
	UserID   string
	Name     string
	Category string
}

// CreateHabit inserts a habit row with an empty completion set.
func (q *Queries) CreateHabit(ctx context.Context, arg CreateHabitParams) (Habit, error) {
	row := q.db.QueryRowContext(ctx, `
		INSERT INTO habits (user_id, name, category, completed_dates)
		VALUES ($1, $2, $3, '[]'::jsonb)
		RETURNING `+habitColumns,
		arg.UserID, arg.Name, arg.Category,
	)
	return scanHabit(row)
}

// GetHabitByID fetches a habit by primary key.
func (q *Queries) GetHabitByID(ctx context.Context, id string) (Habit, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT `+habitColumns+` FROM habits WHERE id = $1`, id)
	return scanHabit(row)
}

// ListHabitsByUser returns all habits for a user, oldest first.
func (q *Queries) ListHabitsByUser(ctx context.Context, userID string) ([]Habit, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT `+habitColumns+` FROM habits WHERE user_id = $1 ORDER BY created_at`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var habits []Habit
	for rows.Next() {
		var h Habit
		if err := rows.Scan(&h.ID, &h.UserID, &h.Name, &h.Category, &h.CompletedDates, &h.CreatedAt, &h.UpdatedAt); err != nil {
			return nil, err
		}
		habits = append(habits, h)
	}
	return habits, rows.Err()
}

// UpdateHabitParams are the updatable habit fields.
type UpdateHabitParams struct {
	ID       string
	Name     string
	Category string
}

// UpdateHabit updates a habit's name and category.
func (q *Queries) UpdateHabit(ctx context.Context, arg UpdateHabitParams) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE habits SET name = $2, category = $3, updated_at = now() WHERE id = $1`,
		arg.ID, arg.Name, arg.Category)
	return err
}

// UpdateHabitCompletedDates replaces the completion set for a habit.
type UpdateHabitCompletedDatesParams struct {
	ID             string
	CompletedDates pqtype.NullRawMessage
}

func (q *Queries) UpdateHabitCompletedDates(ctx context.Context, arg UpdateHabitCompletedDatesParams) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE habits SET completed_dates = $2, updated_at = now() WHERE id = $1`,
		arg.ID, arg.CompletedDates)
	return err
}

// DeleteHabit removes a habit owned by the given user. Returns the number of
// rows deleted so callers can distinguish not-found from success.
func (q *Queries) DeleteHabit(ctx context.Context, id, userID string) (int64, error) {
	res, err := q.db.ExecContext(ctx, `DELETE FROM habits WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func scanHabit(row rowScanner) (Habit, error) {
	var h Habit
	err := row.Scan(&h.ID, &h.UserID, &h.Name, &h.Category, &h.CompletedDates, &h.CreatedAt, &h.UpdatedAt)
	return h, err
}

// rowScanner abstracts *sql.Row for shared scan helpers.
type rowScanner interface {
	Scan(dest ...interface{}) error
}
