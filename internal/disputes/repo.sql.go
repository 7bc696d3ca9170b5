package disputes

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/gastrodesk/gastrodesk/internal/catalog"
	"github.com/gastrodesk/gastrodesk/internal/ledger"
	"github.com/gastrodesk/gastrodesk/internal/platform/db"
)

// Repository persists disputes in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations used by service.
type TxRepository interface {
	InsertDispute(ctx context.Context, input CreateInput) (Dispute, error)
	MarkBillDisputed(ctx context.Context, billID int64) error
	GetForUpdate(ctx context.Context, id int64) (Dispute, []DisputeProduct, error)
	UpdateStatus(ctx context.Context, id int64, to Status, out *Dispute) error
	MarkResolved(ctx context.Context, id int64, notes string, at time.Time, out *Dispute) error
	GetProductForUpdate(ctx context.Context, id int64) (catalog.Product, error)
	UpdateProductQuantity(ctx context.Context, id int64, quantity, totalValue decimal.Decimal) error
	InsertMovement(ctx context.Context, movement *ledger.StockMovement) error
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("disputes repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

const disputeColumns = `id, bill_id, type, status, amount, reason, resolution_notes, resolved_at, created_at, updated_at`

func scanDispute(row pgx.Row) (Dispute, error) {
	var d Dispute
	var typ, status string
	err := row.Scan(&d.ID, &d.BillID, &typ, &status, &d.Amount, &d.Reason, &d.ResolutionNotes, &d.ResolvedAt, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Dispute{}, ErrDisputeNotFound
		}
		return Dispute{}, err
	}
	d.Type = Type(typ)
	d.Status = Status(status)
	return d, nil
}

// Get loads a dispute with its products.
func (r *Repository) Get(ctx context.Context, id int64) (Dispute, []DisputeProduct, error) {
	dispute, err := scanDispute(r.pool.QueryRow(ctx, `SELECT `+disputeColumns+` FROM disputes WHERE id=$1`, id))
	if err != nil {
		return Dispute{}, nil, err
	}
	products, err := r.listProducts(ctx, r.pool, id)
	if err != nil {
		return Dispute{}, nil, err
	}
	return dispute, products, nil
}

// ListByBill returns all disputes raised against a bill.
func (r *Repository) ListByBill(ctx context.Context, billID int64) ([]Dispute, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+disputeColumns+` FROM disputes WHERE bill_id=$1 ORDER BY id ASC`, billID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	disputes := []Dispute{}
	for rows.Next() {
		var d Dispute
		var typ, status string
		if err := rows.Scan(&d.ID, &d.BillID, &typ, &status, &d.Amount, &d.Reason, &d.ResolutionNotes, &d.ResolvedAt, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, err
		}
		d.Type = Type(typ)
		d.Status = Status(status)
		disputes = append(disputes, d)
	}
	return disputes, rows.Err()
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func (r *Repository) listProducts(ctx context.Context, q querier, disputeID int64) ([]DisputeProduct, error) {
	rows, err := q.Query(ctx, `SELECT id, dispute_id, product_id, reason, quantity FROM dispute_products WHERE dispute_id=$1 ORDER BY id ASC`, disputeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	products := []DisputeProduct{}
	for rows.Next() {
		var p DisputeProduct
		if err := rows.Scan(&p.ID, &p.DisputeID, &p.ProductID, &p.Reason, &p.Quantity); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func (r *txRepository) InsertDispute(ctx context.Context, input CreateInput) (Dispute, error) {
	return InsertDispute(ctx, r.tx, input)
}

// InsertDispute creates a dispute with its products inside an existing
// transaction. The bill-confirmation repository shares this path when a
// dispute is attached during confirmation.
func InsertDispute(ctx context.Context, tx pgx.Tx, input CreateInput) (Dispute, error) {
	dispute, err := scanDispute(tx.QueryRow(ctx, `INSERT INTO disputes (bill_id, type, status, amount, reason, resolution_notes, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,'',NOW(),NOW())
RETURNING `+disputeColumns,
		input.BillID, string(input.Type), string(StatusOpen), input.Amount, input.Reason))
	if err != nil {
		return Dispute{}, err
	}
	for _, p := range input.Products {
		if _, err := tx.Exec(ctx, `INSERT INTO dispute_products (dispute_id, product_id, reason, quantity)
VALUES ($1,$2,$3,$4)`, dispute.ID, p.ProductID, p.Reason, p.Quantity); err != nil {
			return Dispute{}, err
		}
	}
	return dispute, nil
}

func (r *txRepository) MarkBillDisputed(ctx context.Context, billID int64) error {
	tag, err := r.tx.Exec(ctx, `UPDATE bills SET status='DISPUTED', updated_at=NOW() WHERE id=$1`, billID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrBillNotFound
	}
	return nil
}

func (r *txRepository) GetForUpdate(ctx context.Context, id int64) (Dispute, []DisputeProduct, error) {
	dispute, err := scanDispute(r.tx.QueryRow(ctx, `SELECT `+disputeColumns+` FROM disputes WHERE id=$1 FOR UPDATE`, id))
	if err != nil {
		return Dispute{}, nil, err
	}
	rows, err := r.tx.Query(ctx, `SELECT id, dispute_id, product_id, reason, quantity FROM dispute_products WHERE dispute_id=$1 ORDER BY id ASC`, id)
	if err != nil {
		return Dispute{}, nil, err
	}
	defer rows.Close()
	products := []DisputeProduct{}
	for rows.Next() {
		var p DisputeProduct
		if err := rows.Scan(&p.ID, &p.DisputeID, &p.ProductID, &p.Reason, &p.Quantity); err != nil {
			return Dispute{}, nil, err
		}
		products = append(products, p)
	}
	return dispute, products, rows.Err()
}

func (r *txRepository) UpdateStatus(ctx context.Context, id int64, to Status, out *Dispute) error {
	dispute, err := scanDispute(r.tx.QueryRow(ctx, `UPDATE disputes SET status=$2, updated_at=NOW() WHERE id=$1
RETURNING `+disputeColumns, id, string(to)))
	if err != nil {
		return err
	}
	*out = dispute
	return nil
}

func (r *txRepository) MarkResolved(ctx context.Context, id int64, notes string, at time.Time, out *Dispute) error {
	dispute, err := scanDispute(r.tx.QueryRow(ctx, `UPDATE disputes SET status=$2, resolution_notes=$3, resolved_at=$4, updated_at=NOW() WHERE id=$1
RETURNING `+disputeColumns, id, string(StatusResolved), notes, at))
	if err != nil {
		return err
	}
	*out = dispute
	return nil
}

func (r *txRepository) GetProductForUpdate(ctx context.Context, id int64) (catalog.Product, error) {
	return catalog.GetForUpdate(ctx, r.tx, id)
}

func (r *txRepository) UpdateProductQuantity(ctx context.Context, id int64, quantity, totalValue decimal.Decimal) error {
	return catalog.UpdateQuantity(ctx, r.tx, id, quantity, totalValue)
}

func (r *txRepository) InsertMovement(ctx context.Context, movement *ledger.StockMovement) error {
	return ledger.InsertMovement(ctx, r.tx, movement)
}
