package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/gastrodesk/gastrodesk/internal/units"
)

type memoryRepo struct {
	products map[int64]Product
	nextID   int64
	searches int
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{products: make(map[int64]Product)}
}

func (r *memoryRepo) add(name string, unit units.Unit, qty decimal.Decimal) Product {
	r.nextID++
	p := Product{ID: r.nextID, Name: name, Unit: unit, Quantity: qty, Trackable: true}
	r.products[p.ID] = p
	return p
}

func (r *memoryRepo) GetProduct(ctx context.Context, id int64) (Product, error) {
	p, ok := r.products[id]
	if !ok {
		return Product{}, ErrProductNotFound
	}
	return p, nil
}

func (r *memoryRepo) SearchByName(ctx context.Context, query string, limit int) ([]Candidate, error) {
	r.searches++
	var out []Candidate
	for _, p := range r.products {
		out = append(out, Candidate{ID: p.ID, Name: p.Name, Unit: p.Unit, Quantity: p.Quantity})
	}
	return out, nil
}

func (r *memoryRepo) ListBelowPar(ctx context.Context) ([]Product, error) {
	var out []Product
	for _, p := range r.products {
		if p.ParLevel != nil && p.Quantity.LessThan(*p.ParLevel) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *memoryRepo) Ensure(ctx context.Context, draft Draft) (Product, bool, error) {
	for _, p := range r.products {
		if Fold(p.Name) == Fold(draft.Name) {
			return p, false, nil
		}
	}
	p := r.add(draft.Name, draft.Unit, decimal.Zero)
	return p, true, nil
}

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCache(client, 30*time.Second)
}

func TestSearchRejectsShortQuery(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, nil, ServiceConfig{})
	_, err := svc.Search(context.Background(), "a")
	require.ErrorIs(t, err, ErrQueryTooShort)
}

func TestSearchRanksAndCaches(t *testing.T) {
	repo := newMemoryRepo()
	repo.add("Tomates", units.UnitKilogram, decimal.NewFromInt(3))
	repo.add("Tomates cerises", units.UnitKilogram, decimal.NewFromInt(1))
	repo.add("Lait entier", units.UnitLitre, decimal.NewFromInt(5))

	svc := NewService(repo, newTestCache(t), nil, ServiceConfig{})
	ctx := context.Background()

	candidates, err := svc.Search(ctx, "tomates")
	require.NoError(t, err)
	require.Len(t, candidates, 2)
	require.Equal(t, "Tomates", candidates[0].Name)
	require.Equal(t, 1.0, candidates[0].Score)

	// Second identical query is served from cache.
	_, err = svc.Search(ctx, "tomates")
	require.NoError(t, err)
	require.Equal(t, 1, repo.searches)
}

func TestEnsureInvalidatesCache(t *testing.T) {
	repo := newMemoryRepo()
	repo.add("Tomates", units.UnitKilogram, decimal.NewFromInt(3))

	svc := NewService(repo, newTestCache(t), nil, ServiceConfig{})
	ctx := context.Background()

	first, err := svc.Search(ctx, "tomates vertes")
	require.NoError(t, err)
	require.Len(t, first, 1)
	require.Equal(t, "Tomates", first[0].Name)

	_, created, err := svc.Ensure(ctx, Draft{Name: "Tomates vertes", Unit: units.UnitKilogram})
	require.NoError(t, err)
	require.True(t, created)

	// The version bump makes the new product visible despite the cached miss.
	second, err := svc.Search(ctx, "tomates vertes")
	require.NoError(t, err)
	require.Len(t, second, 2)
	require.Equal(t, "Tomates vertes", second[0].Name)
	require.Equal(t, 1.0, second[0].Score)
}

func TestEnsureReturnsExisting(t *testing.T) {
	repo := newMemoryRepo()
	existing := repo.add("Crème Fraîche", units.UnitLitre, decimal.NewFromInt(2))

	svc := NewService(repo, nil, nil, ServiceConfig{})
	product, created, err := svc.Ensure(context.Background(), Draft{Name: "creme fraiche", Unit: units.UnitLitre})
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, existing.ID, product.ID)
}

func TestMatchNoConfidentCandidate(t *testing.T) {
	repo := newMemoryRepo()
	repo.add("Huile d'olive", units.UnitLitre, decimal.NewFromInt(1))

	svc := NewService(repo, nil, nil, ServiceConfig{})
	match, err := svc.Match(context.Background(), "beurre doux")
	require.NoError(t, err)
	require.Nil(t, match)
}
