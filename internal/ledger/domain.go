// Package ledger is the append-only record of every product quantity change.
// Both bill confirmation and dispute resolution write here; movements are
// never mutated after creation and replaying them must reproduce the current
// on-hand quantity of each product.
package ledger

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Direction enumerates movement directions.
type Direction string

const (
	// DirectionIn records stock received.
	DirectionIn Direction = "IN"
	// DirectionOut records stock leaving, e.g. a dispute return.
	DirectionOut Direction = "OUT"
)

// StockMovement is one immutable ledger entry. BalanceAfter snapshots the
// product quantity immediately following this movement.
type StockMovement struct {
	ID           int64
	ProductID    int64
	Direction    Direction
	Quantity     decimal.Decimal
	BalanceAfter decimal.Decimal
	DisputeID    *int64
	Reason       string
	UnitPrice    *decimal.Decimal
	Value        decimal.Decimal
	CreatedAt    time.Time
}

// AdjustmentInput describes a manual stock correction. QuantityChange is
// signed; manual edits go through the ledger like every other change.
type AdjustmentInput struct {
	ProductID      int64
	QuantityChange decimal.Decimal
	Reason         string
	UnitPrice      *decimal.Decimal
}

// ConsistencyReport is the outcome of replaying a product's movements.
type ConsistencyReport struct {
	ProductID      int64
	Movements      int
	LedgerQuantity decimal.Decimal
	OnHandQuantity decimal.Decimal
	Consistent     bool
}

var (
	// ErrNegativeStock triggered when a change would drive on-hand quantity negative.
	ErrNegativeStock = errors.New("ledger: negative stock not allowed")
	// ErrInvalidQuantity indicates a zero or malformed quantity change.
	ErrInvalidQuantity = errors.New("ledger: quantity change must be non zero")
	// ErrMissingReason indicates a manual adjustment without a reason.
	ErrMissingReason = errors.New("ledger: adjustment reason required")
)
