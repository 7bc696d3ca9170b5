package ledger

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/gastrodesk/gastrodesk/internal/catalog"
	"github.com/gastrodesk/gastrodesk/internal/platform/db"
)

// Repository persists stock movements in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes the transactional operations used by the adjustment
// path. Product row locks come from the catalog helpers.
type TxRepository interface {
	GetProductForUpdate(ctx context.Context, id int64) (catalog.Product, error)
	UpdateProductQuantity(ctx context.Context, id int64, quantity, totalValue decimal.Decimal) error
	InsertMovement(ctx context.Context, movement *StockMovement) error
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("ledger repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

func (r *txRepository) GetProductForUpdate(ctx context.Context, id int64) (catalog.Product, error) {
	return catalog.GetForUpdate(ctx, r.tx, id)
}

func (r *txRepository) UpdateProductQuantity(ctx context.Context, id int64, quantity, totalValue decimal.Decimal) error {
	return catalog.UpdateQuantity(ctx, r.tx, id, quantity, totalValue)
}

func (r *txRepository) InsertMovement(ctx context.Context, movement *StockMovement) error {
	return InsertMovement(ctx, r.tx, movement)
}

// InsertMovement appends one ledger entry inside an existing transaction.
// Shared by the bill-confirmation and dispute-resolution repositories so the
// append statement is defined once.
func InsertMovement(ctx context.Context, tx pgx.Tx, movement *StockMovement) error {
	return tx.QueryRow(ctx, `INSERT INTO stock_movements (product_id, direction, quantity, balance_after, dispute_id, reason, unit_price, value, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,NOW())
RETURNING id, created_at`,
		movement.ProductID, string(movement.Direction), movement.Quantity, movement.BalanceAfter,
		movement.DisputeID, movement.Reason, movement.UnitPrice, movement.Value,
	).Scan(&movement.ID, &movement.CreatedAt)
}

// ListByProduct returns a product's movements in creation order. A zero
// limit returns everything, which the consistency replay depends on.
func (r *Repository) ListByProduct(ctx context.Context, productID int64, limit int) ([]StockMovement, error) {
	if limit < 0 {
		limit = 0
	}
	rows, err := r.pool.Query(ctx, `SELECT id, product_id, direction, quantity, balance_after, dispute_id, reason, unit_price, value, created_at
FROM stock_movements
WHERE product_id=$1
ORDER BY created_at ASC, id ASC
LIMIT NULLIF($2, 0)`, productID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	movements := []StockMovement{}
	for rows.Next() {
		var m StockMovement
		var direction string
		if err := rows.Scan(&m.ID, &m.ProductID, &direction, &m.Quantity, &m.BalanceAfter, &m.DisputeID, &m.Reason, &m.UnitPrice, &m.Value, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.Direction = Direction(direction)
		movements = append(movements, m)
	}
	return movements, rows.Err()
}
