package dlc

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type memoryRepo struct {
	entries map[int64]Entry
	nextID  int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{entries: make(map[int64]Entry)}
}

func (r *memoryRepo) add(productID int64, date time.Time, qty decimal.Decimal) Entry {
	r.nextID++
	e := Entry{ID: r.nextID, ProductID: productID, ExpirationDate: date, Quantity: qty, Status: StatusActive}
	r.entries[e.ID] = e
	return e
}

func (r *memoryRepo) Get(ctx context.Context, id int64) (Entry, error) {
	e, ok := r.entries[id]
	if !ok {
		return Entry{}, ErrEntryNotFound
	}
	return e, nil
}

func (r *memoryRepo) ListByProduct(ctx context.Context, productID int64) ([]Entry, error) {
	var out []Entry
	for _, e := range r.entries {
		if e.ProductID == productID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *memoryRepo) UpdateStatus(ctx context.Context, id int64, to Status) (Entry, error) {
	e, ok := r.entries[id]
	if !ok {
		return Entry{}, ErrEntryNotFound
	}
	if e.Status != StatusActive {
		return Entry{}, ErrNotActive
	}
	e.Status = to
	r.entries[id] = e
	return e, nil
}

func (r *memoryRepo) ExpireOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	var count int64
	for id, e := range r.entries {
		if e.Status == StatusActive && e.ExpirationDate.Before(cutoff) {
			e.Status = StatusExpired
			r.entries[id] = e
			count++
		}
	}
	return count, nil
}

func TestConsumeOnlyActive(t *testing.T) {
	repo := newMemoryRepo()
	entry := repo.add(1, time.Now().AddDate(0, 0, 3), decimal.NewFromInt(2))
	svc := NewService(repo, nil)
	ctx := context.Background()

	updated, err := svc.Consume(ctx, entry.ID)
	require.NoError(t, err)
	require.Equal(t, StatusConsumed, updated.Status)

	_, err = svc.Discard(ctx, entry.ID)
	require.ErrorIs(t, err, ErrNotActive)
}

func TestSweepExpired(t *testing.T) {
	repo := newMemoryRepo()
	now := time.Now()
	stale := repo.add(1, now.AddDate(0, 0, -1), decimal.NewFromInt(1))
	fresh := repo.add(1, now.AddDate(0, 0, 5), decimal.NewFromInt(1))
	discarded := repo.add(2, now.AddDate(0, 0, -2), decimal.NewFromInt(1))
	_, err := NewService(repo, nil).Discard(context.Background(), discarded.ID)
	require.NoError(t, err)

	svc := NewService(repo, nil)
	expired, err := svc.SweepExpired(context.Background(), now)
	require.NoError(t, err)
	require.EqualValues(t, 1, expired)

	got, _ := repo.Get(context.Background(), stale.ID)
	require.Equal(t, StatusExpired, got.Status)
	got, _ = repo.Get(context.Background(), fresh.ID)
	require.Equal(t, StatusActive, got.Status)
	got, _ = repo.Get(context.Background(), discarded.ID)
	require.Equal(t, StatusDiscarded, got.Status)
}
