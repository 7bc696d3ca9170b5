package dlc

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists expiration entries in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const entryColumns = `id, product_id, bill_id, expiration_date, quantity, status, created_at, updated_at`

func scanEntry(row pgx.Row) (Entry, error) {
	var e Entry
	var status string
	err := row.Scan(&e.ID, &e.ProductID, &e.BillID, &e.ExpirationDate, &e.Quantity, &status, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Entry{}, ErrEntryNotFound
		}
		return Entry{}, err
	}
	e.Status = Status(status)
	return e, nil
}

// InsertEntry creates one entry inside an existing transaction; the
// bill-confirmation repository calls this for each attached DLC draft.
func InsertEntry(ctx context.Context, tx pgx.Tx, entry *Entry) error {
	return tx.QueryRow(ctx, `INSERT INTO dlc_entries (product_id, bill_id, expiration_date, quantity, status, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,NOW(),NOW())
RETURNING id, created_at, updated_at`,
		entry.ProductID, entry.BillID, entry.ExpirationDate, entry.Quantity, string(entry.Status),
	).Scan(&entry.ID, &entry.CreatedAt, &entry.UpdatedAt)
}

// Get loads one entry by id.
func (r *Repository) Get(ctx context.Context, id int64) (Entry, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+entryColumns+` FROM dlc_entries WHERE id=$1`, id)
	return scanEntry(row)
}

// ListByProduct returns entries for a product, soonest expiration first.
func (r *Repository) ListByProduct(ctx context.Context, productID int64) ([]Entry, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+entryColumns+` FROM dlc_entries WHERE product_id=$1 ORDER BY expiration_date ASC, id ASC`, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	entries := []Entry{}
	for rows.Next() {
		var e Entry
		var status string
		if err := rows.Scan(&e.ID, &e.ProductID, &e.BillID, &e.ExpirationDate, &e.Quantity, &status, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		e.Status = Status(status)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// UpdateStatus transitions an ACTIVE entry to a terminal status. The guard
// lives in the statement so two concurrent calls cannot both win.
func (r *Repository) UpdateStatus(ctx context.Context, id int64, to Status) (Entry, error) {
	row := r.pool.QueryRow(ctx, `UPDATE dlc_entries SET status=$2, updated_at=NOW()
WHERE id=$1 AND status=$3
RETURNING `+entryColumns, id, string(to), string(StatusActive))
	entry, err := scanEntry(row)
	if err == nil {
		return entry, nil
	}
	if !errors.Is(err, ErrEntryNotFound) {
		return Entry{}, err
	}
	// Distinguish a missing row from a non-active one.
	if _, getErr := r.Get(ctx, id); getErr != nil {
		return Entry{}, getErr
	}
	return Entry{}, ErrNotActive
}

// ExpireOlderThan marks every ACTIVE entry with a passed date as EXPIRED and
// returns the number of rows affected.
func (r *Repository) ExpireOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE dlc_entries SET status=$1, updated_at=NOW()
WHERE status=$2 AND expiration_date < $3`, string(StatusExpired), string(StatusActive), cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
