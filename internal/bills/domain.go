// Package bills turns extracted delivery bills into durable inventory state:
// line-item reconciliation against the catalog and the atomic confirmation
// transaction that writes products, stock movements and expiration entries.
package bills

import (
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/gastrodesk/gastrodesk/internal/disputes"
	"github.com/gastrodesk/gastrodesk/internal/dlc"
	"github.com/gastrodesk/gastrodesk/internal/units"
)

// Status enumerates bill statuses. Transitions are one-way: a bill never
// returns to PENDING.
type Status string

const (
	// StatusPending marks an uploaded bill awaiting review.
	StatusPending Status = "PENDING"
	// StatusProcessed marks a confirmed bill.
	StatusProcessed Status = "PROCESSED"
	// StatusDisputed marks a bill with an open dispute.
	StatusDisputed Status = "DISPUTED"
)

// Bill models one delivery bill.
type Bill struct {
	ID            int64
	SourceFile    string
	SourceRef     string
	Supplier      string
	SupplierEmail string
	BillDate      *time.Time
	TotalAmount   decimal.Decimal
	Status        Status
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// LineItem is one extracted product entry on a bill. Unit keeps the raw
// extracted token; CanonicalUnit and ConvertedQuantity are filled once the
// line is reconciled.
type LineItem struct {
	ID                int64
	BillID            int64
	Name              string
	Quantity          decimal.Decimal
	Unit              string
	UnitPrice         *decimal.Decimal
	ProductID         *int64
	ConvertedQuantity *decimal.Decimal
	CanonicalUnit     *units.Unit
}

// ConfirmLine is one reviewed line in the confirmation request: either an
// existing product id or a new-product draft described by name and unit.
type ConfirmLine struct {
	ProductID *int64
	Name      string
	Quantity  decimal.Decimal
	Unit      units.Unit
	UnitPrice *decimal.Decimal
	DLC       *dlc.Draft
}

// DisputeProductDraft references a confirmed line by index.
type DisputeProductDraft struct {
	LineIndex int
	Reason    string
	Quantity  decimal.Decimal
}

// DisputeDraft is a dispute opened together with the confirmation.
type DisputeDraft struct {
	Type     disputes.Type
	Amount   decimal.Decimal
	Reason   string
	Products []DisputeProductDraft
}

// ConfirmInput is the reviewed draft reconciliation, submitted wholesale.
type ConfirmInput struct {
	Supplier      string
	SupplierEmail string
	BillDate      time.Time
	TotalAmount   decimal.Decimal
	Lines         []ConfirmLine
	Dispute       *DisputeDraft
}

var (
	// ErrBillNotFound indicates a missing bill row.
	ErrBillNotFound = errors.New("bills: bill not found")
	// ErrAlreadyProcessed indicates a confirmation against a non-pending bill.
	ErrAlreadyProcessed = errors.New("bills: bill already processed")
)

// ValidationErrors maps field paths to messages. Confirmation rejects input
// carrying any of these before the transaction starts.
type ValidationErrors map[string]string

func (v ValidationErrors) Error() string {
	fields := make([]string, 0, len(v))
	for field := range v {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return "bills: invalid fields: " + strings.Join(fields, ", ")
}
