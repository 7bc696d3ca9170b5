// Package catalog owns the product inventory: canonical product records,
// the shared ensure-exists creation path and name matching for bill review.
package catalog

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/gastrodesk/gastrodesk/internal/units"
)

// Product is a catalog entry tracked in its canonical unit. Quantity only
// changes through stock movements; there is no direct-edit path.
type Product struct {
	ID         int64
	Name       string
	Unit       units.Unit
	Quantity   decimal.Decimal
	TotalValue decimal.Decimal
	UnitPrice  *decimal.Decimal
	ParLevel   *decimal.Decimal
	Trackable  bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Draft describes a product to create when no acceptable match exists.
type Draft struct {
	Name      string
	Unit      units.Unit
	UnitPrice *decimal.Decimal
	ParLevel  *decimal.Decimal
}

// Candidate is a ranked match returned by Search.
type Candidate struct {
	ID       int64
	Name     string
	Unit     units.Unit
	Quantity decimal.Decimal
	Score    float64
}

// MinQueryLength is the shortest name fragment worth searching.
const MinQueryLength = 2

// DefaultMatchThreshold is the minimum score to report a match at all.
const DefaultMatchThreshold = 0.5

var (
	// ErrProductNotFound indicates a missing product row.
	ErrProductNotFound = errors.New("catalog: product not found")
	// ErrQueryTooShort indicates a search query below MinQueryLength.
	ErrQueryTooShort = errors.New("catalog: query too short")
	// ErrInvalidDraft indicates a draft missing name or canonical unit.
	ErrInvalidDraft = errors.New("catalog: invalid product draft")
)
