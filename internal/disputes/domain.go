// Package disputes handles supplier disputes against bills, including the
// atomic resolution transaction that returns stock through the ledger.
package disputes

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Type enumerates dispute kinds.
type Type string

const (
	// TypeReturn is a dispute resolved by sending product back.
	TypeReturn Type = "RETURN"
	// TypeComplaint is a quality complaint without stock effect.
	TypeComplaint Type = "COMPLAINT"
	// TypeRefund is a price disagreement settled in money.
	TypeRefund Type = "REFUND"
)

// Status enumerates dispute lifecycle states. RESOLVED and CLOSED are
// terminal; resolution happens exactly once.
type Status string

const (
	StatusOpen       Status = "OPEN"
	StatusInProgress Status = "IN_PROGRESS"
	StatusResolved   Status = "RESOLVED"
	StatusClosed     Status = "CLOSED"
)

// Dispute models one dispute against a bill.
type Dispute struct {
	ID              int64
	BillID          int64
	Type            Type
	Status          Status
	Amount          decimal.Decimal
	Reason          string
	ResolutionNotes string
	ResolvedAt      *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// DisputeProduct links a disputed product and quantity to a dispute.
type DisputeProduct struct {
	ID        int64
	DisputeID int64
	ProductID int64
	Reason    string
	Quantity  decimal.Decimal
}

// ProductReturn is one returned quantity in a RETURN resolution.
type ProductReturn struct {
	ProductID int64
	Quantity  decimal.Decimal
}

// CreateInput describes a new dispute raised against a bill.
type CreateInput struct {
	BillID   int64
	Type     Type
	Amount   decimal.Decimal
	Reason   string
	Products []ProductDraft
}

// ProductDraft is one disputed product in CreateInput.
type ProductDraft struct {
	ProductID int64
	Reason    string
	Quantity  decimal.Decimal
}

// ResolveInput carries the resolution request.
type ResolveInput struct {
	ResolutionNotes string
	ProductReturns  []ProductReturn
}

var (
	// ErrDisputeNotFound indicates a missing dispute row.
	ErrDisputeNotFound = errors.New("disputes: dispute not found")
	// ErrBillNotFound indicates the referenced bill does not exist.
	ErrBillNotFound = errors.New("disputes: bill not found")
	// ErrAlreadyResolved indicates a resolution against a terminal dispute.
	ErrAlreadyResolved = errors.New("disputes: dispute already resolved or closed")
	// ErrInvalidTransition indicates a status change the state machine forbids.
	ErrInvalidTransition = errors.New("disputes: invalid status transition")
	// ErrNotesRequired indicates a resolution without notes.
	ErrNotesRequired = errors.New("disputes: resolution notes required")
	// ErrInsufficientStock indicates a return that would drive stock negative.
	ErrInsufficientStock = errors.New("disputes: insufficient stock for return")
	// ErrInvalidReturn indicates a non-positive or unknown-product return.
	ErrInvalidReturn = errors.New("disputes: invalid product return")
)

// ValidType reports whether t is a known dispute type.
func ValidType(t Type) bool {
	switch t {
	case TypeReturn, TypeComplaint, TypeRefund:
		return true
	}
	return false
}
