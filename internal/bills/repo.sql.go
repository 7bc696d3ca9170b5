package bills

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/gastrodesk/gastrodesk/internal/catalog"
	"github.com/gastrodesk/gastrodesk/internal/disputes"
	"github.com/gastrodesk/gastrodesk/internal/dlc"
	"github.com/gastrodesk/gastrodesk/internal/ledger"
	"github.com/gastrodesk/gastrodesk/internal/platform/db"
	"github.com/gastrodesk/gastrodesk/internal/units"
)

// Repository persists bills in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes the transactional operations confirmation composes.
// Product, movement, expiration and dispute writes delegate to the owning
// packages so each table's SQL is defined once.
type TxRepository interface {
	GetBillForUpdate(ctx context.Context, id int64) (Bill, error)
	FinalizeBill(ctx context.Context, bill *Bill) error
	ReplaceLineItems(ctx context.Context, billID int64, items []LineItem) error
	EnsureProduct(ctx context.Context, draft catalog.Draft) (catalog.Product, bool, error)
	GetProductForUpdate(ctx context.Context, id int64) (catalog.Product, error)
	UpdateProductQuantity(ctx context.Context, id int64, quantity, totalValue decimal.Decimal) error
	InsertMovement(ctx context.Context, movement *ledger.StockMovement) error
	InsertDLCEntry(ctx context.Context, entry *dlc.Entry) error
	InsertDispute(ctx context.Context, input disputes.CreateInput) (disputes.Dispute, error)
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("bills repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

const billColumns = `id, source_file, source_ref, supplier, supplier_email, bill_date, total_amount, status, created_at, updated_at`

func scanBill(row pgx.Row) (Bill, error) {
	var b Bill
	var status string
	err := row.Scan(&b.ID, &b.SourceFile, &b.SourceRef, &b.Supplier, &b.SupplierEmail,
		&b.BillDate, &b.TotalAmount, &status, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Bill{}, ErrBillNotFound
		}
		return Bill{}, err
	}
	b.Status = Status(status)
	return b, nil
}

// Insert stores a freshly extracted bill and its raw line items.
func (r *Repository) Insert(ctx context.Context, bill *Bill, items []LineItem) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `INSERT INTO bills (source_file, source_ref, supplier, supplier_email, bill_date, total_amount, status, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,NOW(),NOW())
RETURNING id, created_at, updated_at`,
			bill.SourceFile, bill.SourceRef, bill.Supplier, bill.SupplierEmail,
			bill.BillDate, bill.TotalAmount, string(bill.Status),
		).Scan(&bill.ID, &bill.CreatedAt, &bill.UpdatedAt)
		if err != nil {
			return err
		}
		return insertLineItems(ctx, tx, bill.ID, items)
	})
}

// Get loads a bill with its line items.
func (r *Repository) Get(ctx context.Context, id int64) (Bill, []LineItem, error) {
	bill, err := scanBill(r.pool.QueryRow(ctx, `SELECT `+billColumns+` FROM bills WHERE id=$1`, id))
	if err != nil {
		return Bill{}, nil, err
	}
	items, err := r.listLineItems(ctx, id)
	if err != nil {
		return Bill{}, nil, err
	}
	return bill, items, nil
}

// List returns bills newest first.
func (r *Repository) List(ctx context.Context, limit int) ([]Bill, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+billColumns+` FROM bills ORDER BY id DESC LIMIT NULLIF($1, 0)`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	bills := []Bill{}
	for rows.Next() {
		var b Bill
		var status string
		if err := rows.Scan(&b.ID, &b.SourceFile, &b.SourceRef, &b.Supplier, &b.SupplierEmail,
			&b.BillDate, &b.TotalAmount, &status, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, err
		}
		b.Status = Status(status)
		bills = append(bills, b)
	}
	return bills, rows.Err()
}

func (r *Repository) listLineItems(ctx context.Context, billID int64) ([]LineItem, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, bill_id, name, quantity, unit, unit_price, product_id, converted_quantity, canonical_unit
FROM bill_line_items WHERE bill_id=$1 ORDER BY id ASC`, billID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []LineItem{}
	for rows.Next() {
		var item LineItem
		var canonical *string
		if err := rows.Scan(&item.ID, &item.BillID, &item.Name, &item.Quantity, &item.Unit,
			&item.UnitPrice, &item.ProductID, &item.ConvertedQuantity, &canonical); err != nil {
			return nil, err
		}
		if canonical != nil {
			u := units.Unit(*canonical)
			item.CanonicalUnit = &u
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func insertLineItems(ctx context.Context, tx pgx.Tx, billID int64, items []LineItem) error {
	for i := range items {
		item := &items[i]
		var canonical *string
		if item.CanonicalUnit != nil {
			s := string(*item.CanonicalUnit)
			canonical = &s
		}
		err := tx.QueryRow(ctx, `INSERT INTO bill_line_items (bill_id, name, quantity, unit, unit_price, product_id, converted_quantity, canonical_unit)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
RETURNING id`,
			billID, item.Name, item.Quantity, item.Unit, item.UnitPrice,
			item.ProductID, item.ConvertedQuantity, canonical,
		).Scan(&item.ID)
		if err != nil {
			return err
		}
		item.BillID = billID
	}
	return nil
}

func (r *txRepository) GetBillForUpdate(ctx context.Context, id int64) (Bill, error) {
	return scanBill(r.tx.QueryRow(ctx, `SELECT `+billColumns+` FROM bills WHERE id=$1 FOR UPDATE`, id))
}

func (r *txRepository) FinalizeBill(ctx context.Context, bill *Bill) error {
	return r.tx.QueryRow(ctx, `UPDATE bills SET supplier=$2, supplier_email=$3, bill_date=$4, total_amount=$5, status=$6, updated_at=NOW()
WHERE id=$1
RETURNING updated_at`,
		bill.ID, bill.Supplier, bill.SupplierEmail, bill.BillDate, bill.TotalAmount, string(bill.Status),
	).Scan(&bill.UpdatedAt)
}

func (r *txRepository) ReplaceLineItems(ctx context.Context, billID int64, items []LineItem) error {
	if _, err := r.tx.Exec(ctx, `DELETE FROM bill_line_items WHERE bill_id=$1`, billID); err != nil {
		return err
	}
	return insertLineItems(ctx, r.tx, billID, items)
}

func (r *txRepository) EnsureProduct(ctx context.Context, draft catalog.Draft) (catalog.Product, bool, error) {
	return catalog.EnsureProduct(ctx, r.tx, draft)
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

func (r *txRepository) InsertDLCEntry(ctx context.Context, entry *dlc.Entry) error {
	return dlc.InsertEntry(ctx, r.tx, entry)
}

func (r *txRepository) InsertDispute(ctx context.Context, input disputes.CreateInput) (disputes.Dispute, error) {
	return disputes.InsertDispute(ctx, r.tx, input)
}
