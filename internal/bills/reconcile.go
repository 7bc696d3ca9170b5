package bills

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/gastrodesk/gastrodesk/internal/catalog"
	"github.com/gastrodesk/gastrodesk/internal/units"
)

// Action enumerates reconciliation decisions for one line item.
type Action string

const (
	// ActionAttach binds the line to an existing product.
	ActionAttach Action = "ATTACH"
	// ActionCreate stages a new product draft.
	ActionCreate Action = "CREATE"
)

// RawLine is one extracted line item fed to the reconciler.
type RawLine struct {
	Name      string
	Quantity  decimal.Decimal
	Unit      string
	UnitPrice *decimal.Decimal
}

// Decision is the reconciler output for one line. It is a suggestion only;
// a reviewer may override any part of it before confirmation. When the
// extracted unit token is unrecognized UnitError carries the reason and the
// line must be resolved by hand. Incompatible flags a matched product whose
// unit family differs from the line's; the raw quantity is kept untouched
// rather than silently accepted.
type Decision struct {
	Action            Action
	ProductID         *int64
	ProductName       string
	MatchScore        float64
	ConvertedQuantity decimal.Decimal
	CanonicalUnit     units.Unit
	WasConverted      bool
	Conversion        string
	Incompatible      bool
	UnitError         string
	Draft             *catalog.Draft
}

// Reconcile combines the best matcher candidate with unit normalization into
// a single decision. Pure: no I/O, no writes.
func Reconcile(line RawLine, match *catalog.Candidate) Decision {
	lineUnit, unitErr := units.Normalize(line.Unit)

	if match == nil {
		d := Decision{
			Action:            ActionCreate,
			ConvertedQuantity: line.Quantity,
			CanonicalUnit:     lineUnit,
		}
		if unitErr != nil {
			d.UnitError = unitErr.Error()
			return d
		}
		d.Draft = &catalog.Draft{
			Name:      line.Name,
			Unit:      lineUnit,
			UnitPrice: line.UnitPrice,
		}
		return d
	}

	productID := match.ID
	d := Decision{
		Action:            ActionAttach,
		ProductID:         &productID,
		ProductName:       match.Name,
		MatchScore:        match.Score,
		ConvertedQuantity: line.Quantity,
		CanonicalUnit:     match.Unit,
	}
	if unitErr != nil {
		d.UnitError = unitErr.Error()
		return d
	}

	result, err := units.Convert(line.Quantity, lineUnit, match.Unit)
	if err != nil {
		if errors.Is(err, units.ErrIncompatibleUnits) {
			d.Incompatible = true
			d.CanonicalUnit = lineUnit
			return d
		}
		d.UnitError = err.Error()
		return d
	}
	d.ConvertedQuantity = result.Quantity
	d.WasConverted = result.WasConverted
	d.Conversion = result.Description
	return d
}
