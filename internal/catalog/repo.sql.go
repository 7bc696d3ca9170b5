package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/gastrodesk/gastrodesk/internal/platform/db"
	"github.com/gastrodesk/gastrodesk/internal/units"
)

// Repository persists products in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const productColumns = `id, name, unit, quantity, total_value, unit_price, par_level, trackable, created_at, updated_at`

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	var unit string
	err := row.Scan(&p.ID, &p.Name, &unit, &p.Quantity, &p.TotalValue, &p.UnitPrice, &p.ParLevel, &p.Trackable, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, ErrProductNotFound
		}
		return Product{}, err
	}
	p.Unit = units.Unit(unit)
	return p, nil
}

// GetProduct loads one product by id.
func (r *Repository) GetProduct(ctx context.Context, id int64) (Product, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id=$1`, id)
	return scanProduct(row)
}

// SearchByName returns candidates whose folded name contains the folded query.
func (r *Repository) SearchByName(ctx context.Context, query string, limit int) ([]Candidate, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.pool.Query(ctx, `SELECT id, name, unit, quantity FROM products
WHERE name_folded LIKE '%' || $1 || '%'
ORDER BY name ASC
LIMIT $2`, Fold(query), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	candidates := []Candidate{}
	for rows.Next() {
		var c Candidate
		var unit string
		if err := rows.Scan(&c.ID, &c.Name, &unit, &c.Quantity); err != nil {
			return nil, err
		}
		c.Unit = units.Unit(unit)
		candidates = append(candidates, c)
	}
	return candidates, rows.Err()
}

// ListBelowPar returns trackable products whose on-hand quantity sits under
// their par level.
func (r *Repository) ListBelowPar(ctx context.Context) ([]Product, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+productColumns+` FROM products
WHERE trackable AND par_level IS NOT NULL AND quantity < par_level
ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var products []Product
	for rows.Next() {
		var p Product
		var unit string
		if err := rows.Scan(&p.ID, &p.Name, &unit, &p.Quantity, &p.TotalValue, &p.UnitPrice, &p.ParLevel, &p.Trackable, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		p.Unit = units.Unit(unit)
		products = append(products, p)
	}
	return products, rows.Err()
}

// Ensure runs the shared ensure-exists path in its own transaction.
func (r *Repository) Ensure(ctx context.Context, draft Draft) (Product, bool, error) {
	var product Product
	var created bool
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var err error
		product, created, err = EnsureProduct(ctx, tx, draft)
		return err
	})
	return product, created, err
}

// EnsureProduct resolves a draft to an existing product by exact folded name,
// creating the product when none exists. It is the single creation path used
// by bill confirmation, dish composition and manual catalog edits, so the
// matching policy is defined once. Must run inside a transaction.
func EnsureProduct(ctx context.Context, tx pgx.Tx, draft Draft) (Product, bool, error) {
	if len(draft.Name) < MinQueryLength || !units.IsCanonical(draft.Unit) {
		return Product{}, false, fmt.Errorf("%w: name=%q unit=%q", ErrInvalidDraft, draft.Name, draft.Unit)
	}
	row := tx.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE name_folded=$1 FOR UPDATE`, Fold(draft.Name))
	product, err := scanProduct(row)
	if err == nil {
		return product, false, nil
	}
	if !errors.Is(err, ErrProductNotFound) {
		return Product{}, false, err
	}
	row = tx.QueryRow(ctx, `INSERT INTO products (name, name_folded, unit, quantity, total_value, unit_price, par_level, trackable, created_at, updated_at)
VALUES ($1, $2, $3, 0, 0, $4, $5, TRUE, NOW(), NOW())
RETURNING `+productColumns, draft.Name, Fold(draft.Name), string(draft.Unit), draft.UnitPrice, draft.ParLevel)
	product, err = scanProduct(row)
	if err != nil {
		return Product{}, false, fmt.Errorf("catalog: create product: %w", err)
	}
	return product, true, nil
}

// GetForUpdate locks a product row for a balance change. Callers compute the
// new quantity only after this lock is held.
func GetForUpdate(ctx context.Context, tx pgx.Tx, id int64) (Product, error) {
	row := tx.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id=$1 FOR UPDATE`, id)
	return scanProduct(row)
}

// UpdateQuantity writes a product's new on-hand quantity and value snapshot.
// Only the stock-movement transactions call this.
func UpdateQuantity(ctx context.Context, tx pgx.Tx, id int64, quantity, totalValue decimal.Decimal) error {
	tag, err := tx.Exec(ctx, `UPDATE products SET quantity=$2, total_value=$3, updated_at=NOW() WHERE id=$1`, id, quantity, totalValue)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrProductNotFound
	}
	return nil
}
