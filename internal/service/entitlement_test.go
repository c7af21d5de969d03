package service

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mwestcott/habitflow/internal/domain"
	"github.com/mwestcott/habitflow/internal/repository"
)

// fakeEntitlementStore is an in-memory EntitlementStore. ConsumeQuoteCredit
// mirrors the repository's conditional update semantics so gate behavior can
// be tested without a database.
type fakeEntitlementStore struct {
	users map[string]*repository.User
}

func newFakeStore() *fakeEntitlementStore {
	return &fakeEntitlementStore{users: make(map[string]*repository.User)}
}

func (f *fakeEntitlementStore) GetUserByEmail(ctx context.Context, email string) (repository.User, error) {
	u, ok := f.users[email]
	if !ok {
		return repository.User{}, sql.ErrNoRows
	}
	return *u, nil
}

func (f *fakeEntitlementStore) ConsumeQuoteCredit(ctx context.Context, arg repository.ConsumeQuoteCreditParams) (int64, error) {
	u, ok := f.users[arg.Email]
	if !ok {
		return 0, nil
	}

	sameDay := u.QuoteCountDate.Valid && u.QuoteCountDate.Time.Equal(arg.Day)
	if !u.IsPremium && sameDay && u.QuoteCount >= arg.Limit {
		return 0, nil
	}

	if sameDay {
		u.QuoteCount++
	} else {
		u.QuoteCount = 1
		u.QuoteCountDate = sql.NullTime{Time: arg.Day, Valid: true}
	}
	return 1, nil
}

func (f *fakeEntitlementStore) SetUserPremiumByEmail(ctx context.Context, email string) (int64, error) {
	u, ok := f.users[email]
	if !ok {
		return 0, nil
	}
	u.IsPremium = true
	return 1, nil
}

func (f *fakeEntitlementStore) CreatePremiumUser(ctx context.Context, email string) (repository.User, error) {
	if u, ok := f.users[email]; ok {
		u.IsPremium = true
		return *u, nil
	}
	u := &repository.User{ID: "00000000-0000-0000-0000-000000000001", Email: email, IsPremium: true}
	f.users[email] = u
	return *u, nil
}

var entitlementNow = time.Date(2025, 6, 10, 15, 30, 0, 0, time.UTC)

func newTestEntitlements(store EntitlementStore) *entitlementService {
	svc := NewEntitlementService(store, slog.New(slog.NewTextHandler(io.Discard, nil))).(*entitlementService)
	svc.now = func() time.Time { return entitlementNow }
	return svc
}

func addUser(store *fakeEntitlementStore, email string, premium bool, count int32, day time.Time) {
	store.users[email] = &repository.User{
		ID:             "00000000-0000-0000-0000-0000000000aa",
		Email:          email,
		IsPremium:      premium,
		QuoteCount:     count,
		QuoteCountDate: sql.NullTime{Time: day, Valid: !day.IsZero()},
	}
}

func TestEvaluate(t *testing.T) {
	today := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
	yesterday := today.AddDate(0, 0, -1)

	tests := []struct {
		name      string
		premium   bool
		count     int32
		countDay  time.Time
		wantDeny  bool
		wantUsed  int
		wantLimit int
	}{
		{name: "fresh user allowed", count: 0},
		{name: "under limit allowed", count: 2, countDay: today},
		{name: "at limit denied", count: 3, countDay: today, wantDeny: true, wantUsed: 3, wantLimit: 3},
		{name: "over limit denied", count: 7, countDay: today, wantDeny: true, wantUsed: 7, wantLimit: 3},
		{name: "stale count from yesterday allowed", count: 5, countDay: yesterday},
		{name: "premium at limit allowed", premium: true, count: 3, countDay: today},
		{name: "premium far over limit allowed", premium: true, count: 500, countDay: today},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStore()
			addUser(store, "u@example.com", tt.premium, tt.count, tt.countDay)
			svc := newTestEntitlements(store)

			err := svc.Evaluate(context.Background(), "u@example.com")
			if !tt.wantDeny {
				assert.NoError(t, err)
				return
			}
			var qe *domain.QuotaError
			require.ErrorAs(t, err, &qe)
			assert.Equal(t, tt.wantUsed, qe.Used)
			assert.Equal(t, tt.wantLimit, qe.Limit)
		})
	}
}

func TestCommitConsumption_IncrementsAndReportsRemaining(t *testing.T) {
	today := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
	store := newFakeStore()
	addUser(store, "u@example.com", false, 1, today)
	svc := newTestEntitlements(store)

	remaining, err := svc.CommitConsumption(context.Background(), "u@example.com")
	require.NoError(t, err)
	assert.Equal(t, 1, remaining)
	assert.Equal(t, int32(2), store.users["u@example.com"].QuoteCount)

	remaining, err = svc.CommitConsumption(context.Background(), "u@example.com")
	require.NoError(t, err)
	assert.Equal(t, 0, remaining)

	// Fourth consumption of the day is rejected by the guard
	_, err = svc.CommitConsumption(context.Background(), "u@example.com")
	var qe *domain.QuotaError
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, 3, qe.Used)
	assert.Equal(t, int32(3), store.users["u@example.com"].QuoteCount)
}

func TestCommitConsumption_DayRolloverResetsCount(t *testing.T) {
	yesterday := time.Date(2025, 6, 9, 0, 0, 0, 0, time.UTC)
	store := newFakeStore()
	addUser(store, "u@example.com", false, 5, yesterday)
	svc := newTestEntitlements(store)

	remaining, err := svc.CommitConsumption(context.Background(), "u@example.com")
	require.NoError(t, err)
	assert.Equal(t, 2, remaining)

	u := store.users["u@example.com"]
	assert.Equal(t, int32(1), u.QuoteCount)
	assert.Equal(t, "2025-06-10", domain.QuoteDay(u.QuoteCountDate.Time))
}

func TestCommitConsumption_PremiumUnlimited(t *testing.T) {
	today := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
	store := newFakeStore()
	addUser(store, "p@example.com", true, 99, today)
	svc := newTestEntitlements(store)

	remaining, err := svc.CommitConsumption(context.Background(), "p@example.com")
	require.NoError(t, err)
	assert.Equal(t, -1, remaining)
	assert.Equal(t, int32(100), store.users["p@example.com"].QuoteCount)
}

func TestCommitConsumption_UnknownUser(t *testing.T) {
	svc := newTestEntitlements(newFakeStore())

	_, err := svc.CommitConsumption(context.Background(), "nobody@example.com")
	assert.Equal(t, domain.ENOTFOUND, domain.ErrorCode(err))
}

func TestGetUsage(t *testing.T) {
	today := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
	yesterday := today.AddDate(0, 0, -1)

	tests := []struct {
		name          string
		premium       bool
		count         int32
		countDay      time.Time
		wantUsed      int
		wantRemaining int
		wantUnlimited bool
	}{
		{name: "fresh user", wantUsed: 0, wantRemaining: 3},
		{name: "partially used", count: 2, countDay: today, wantUsed: 2, wantRemaining: 1},
		{name: "exhausted", count: 3, countDay: today, wantUsed: 3, wantRemaining: 0},
		{name: "stale day reads as zero", count: 3, countDay: yesterday, wantUsed: 0, wantRemaining: 3},
		{name: "premium", premium: true, count: 42, countDay: today, wantUnlimited: true, wantRemaining: -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStore()
			addUser(store, "u@example.com", tt.premium, tt.count, tt.countDay)
			svc := newTestEntitlements(store)

			usage, err := svc.GetUsage(context.Background(), "u@example.com")
			require.NoError(t, err)
			assert.Equal(t, tt.wantUnlimited, usage.Unlimited)
			assert.Equal(t, tt.wantRemaining, usage.Remaining())
			if !tt.wantUnlimited {
				assert.Equal(t, tt.wantUsed, usage.Used)
			}
		})
	}
}

func TestActivatePremium(t *testing.T) {
	t.Run("existing user", func(t *testing.T) {
		store := newFakeStore()
		addUser(store, "u@example.com", false, 2, time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC))
		svc := newTestEntitlements(store)

		require.NoError(t, svc.ActivatePremium(context.Background(), "u@example.com"))
		assert.True(t, store.users["u@example.com"].IsPremium)

		// Webhook redelivery is a no-op
		require.NoError(t, svc.ActivatePremium(context.Background(), "u@example.com"))
		assert.True(t, store.users["u@example.com"].IsPremium)
	})

	t.Run("unknown email creates premium account", func(t *testing.T) {
		store := newFakeStore()
		svc := newTestEntitlements(store)

		require.NoError(t, svc.ActivatePremium(context.Background(), "new@example.com"))
		require.Contains(t, store.users, "new@example.com")
		assert.True(t, store.users["new@example.com"].IsPremium)
	})

	t.Run("email is normalized", func(t *testing.T) {
		store := newFakeStore()
		addUser(store, "u@example.com", false, 0, time.Time{})
		svc := newTestEntitlements(store)

		require.NoError(t, svc.ActivatePremium(context.Background(), "  U@Example.COM "))
		assert.True(t, store.users["u@example.com"].IsPremium)
	})

	t.Run("empty email rejected", func(t *testing.T) {
		svc := newTestEntitlements(newFakeStore())
		err := svc.ActivatePremium(context.Background(), "")
		assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
	})
}
