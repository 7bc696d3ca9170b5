package ledger

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/gastrodesk/gastrodesk/internal/catalog"
	"github.com/gastrodesk/gastrodesk/internal/units"
)

type memoryRepo struct {
	products  map[int64]catalog.Product
	movements []StockMovement
	nextID    int64
}

type memoryTx struct {
	repo *memoryRepo
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{products: make(map[int64]catalog.Product)}
}

func (r *memoryRepo) addProduct(name string, unit units.Unit, qty decimal.Decimal) catalog.Product {
	r.nextID++
	p := catalog.Product{ID: r.nextID, Name: name, Unit: unit, Quantity: qty, Trackable: true}
	r.products[p.ID] = p
	return p
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryTx{repo: r})
}

func (r *memoryRepo) ListByProduct(ctx context.Context, productID int64, limit int) ([]StockMovement, error) {
	var out []StockMovement
	for _, m := range r.movements {
		if m.ProductID == productID {
			out = append(out, m)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memoryRepo) GetProduct(ctx context.Context, id int64) (catalog.Product, error) {
	p, ok := r.products[id]
	if !ok {
		return catalog.Product{}, catalog.ErrProductNotFound
	}
	return p, nil
}

func (tx *memoryTx) GetProductForUpdate(ctx context.Context, id int64) (catalog.Product, error) {
	return tx.repo.GetProduct(ctx, id)
}

func (tx *memoryTx) UpdateProductQuantity(ctx context.Context, id int64, quantity, totalValue decimal.Decimal) error {
	p := tx.repo.products[id]
	p.Quantity = quantity
	p.TotalValue = totalValue
	tx.repo.products[id] = p
	return nil
}

func (tx *memoryTx) InsertMovement(ctx context.Context, movement *StockMovement) error {
	movement.ID = int64(len(tx.repo.movements) + 1)
	tx.repo.movements = append(tx.repo.movements, *movement)
	return nil
}

func TestAdjustPositive(t *testing.T) {
	repo := newMemoryRepo()
	product := repo.addProduct("Farine", units.UnitKilogram, decimal.NewFromInt(4))
	svc := NewService(repo, repo, nil)

	movement, err := svc.Adjust(context.Background(), AdjustmentInput{
		ProductID:      product.ID,
		QuantityChange: decimal.NewFromInt(3),
		Reason:         "inventory recount",
	})
	require.NoError(t, err)
	require.Equal(t, DirectionIn, movement.Direction)
	require.True(t, movement.Quantity.Equal(decimal.NewFromInt(3)))
	require.True(t, movement.BalanceAfter.Equal(decimal.NewFromInt(7)))
	require.True(t, repo.products[product.ID].Quantity.Equal(decimal.NewFromInt(7)))
}

func TestAdjustNegativeGuard(t *testing.T) {
	repo := newMemoryRepo()
	product := repo.addProduct("Farine", units.UnitKilogram, decimal.NewFromInt(1))
	svc := NewService(repo, repo, nil)

	_, err := svc.Adjust(context.Background(), AdjustmentInput{
		ProductID:      product.ID,
		QuantityChange: decimal.NewFromInt(-2),
		Reason:         "spill",
	})
	require.ErrorIs(t, err, ErrNegativeStock)
	require.Empty(t, repo.movements)
	require.True(t, repo.products[product.ID].Quantity.Equal(decimal.NewFromInt(1)))
}

func TestAdjustRequiresReason(t *testing.T) {
	repo := newMemoryRepo()
	product := repo.addProduct("Farine", units.UnitKilogram, decimal.NewFromInt(1))
	svc := NewService(repo, repo, nil)

	_, err := svc.Adjust(context.Background(), AdjustmentInput{
		ProductID:      product.ID,
		QuantityChange: decimal.NewFromInt(1),
	})
	require.ErrorIs(t, err, ErrMissingReason)

	_, err = svc.Adjust(context.Background(), AdjustmentInput{
		ProductID: product.ID,
		Reason:    "noop",
	})
	require.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestVerifyProductReplay(t *testing.T) {
	repo := newMemoryRepo()
	product := repo.addProduct("Lait", units.UnitLitre, decimal.Zero)
	svc := NewService(repo, repo, nil)
	ctx := context.Background()

	_, err := svc.Adjust(ctx, AdjustmentInput{ProductID: product.ID, QuantityChange: decimal.NewFromInt(10), Reason: "delivery"})
	require.NoError(t, err)
	_, err = svc.Adjust(ctx, AdjustmentInput{ProductID: product.ID, QuantityChange: decimal.NewFromInt(-4), Reason: "service"})
	require.NoError(t, err)

	report, err := svc.VerifyProduct(ctx, product.ID)
	require.NoError(t, err)
	require.True(t, report.Consistent)
	require.Equal(t, 2, report.Movements)
	require.True(t, report.LedgerQuantity.Equal(decimal.NewFromInt(6)))

	// A quantity edit bypassing the ledger must be detected.
	p := repo.products[product.ID]
	p.Quantity = decimal.NewFromInt(9)
	repo.products[product.ID] = p

	report, err = svc.VerifyProduct(ctx, product.ID)
	require.NoError(t, err)
	require.False(t, report.Consistent)
}
