package bills

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/gastrodesk/gastrodesk/internal/catalog"
	"github.com/gastrodesk/gastrodesk/internal/units"
)

func TestReconcileAttachWithConversion(t *testing.T) {
	match := &catalog.Candidate{ID: 7, Name: "Lait entier", Unit: units.UnitLitre, Score: 0.92}
	line := RawLine{Name: "lait", Quantity: decimal.NewFromInt(500), Unit: "ml"}

	d := Reconcile(line, match)
	require.Equal(t, ActionAttach, d.Action)
	require.NotNil(t, d.ProductID)
	require.Equal(t, int64(7), *d.ProductID)
	require.True(t, d.ConvertedQuantity.Equal(decimal.RequireFromString("0.5")))
	require.Equal(t, units.UnitLitre, d.CanonicalUnit)
	require.True(t, d.WasConverted)
	require.Empty(t, d.UnitError)
}

func TestReconcileSameUnitNoConversion(t *testing.T) {
	match := &catalog.Candidate{ID: 3, Name: "Farine", Unit: units.UnitKilogram, Score: 1}
	line := RawLine{Name: "farine", Quantity: decimal.NewFromInt(2), Unit: "kg"}

	d := Reconcile(line, match)
	require.Equal(t, ActionAttach, d.Action)
	require.True(t, d.ConvertedQuantity.Equal(decimal.NewFromInt(2)))
	require.False(t, d.WasConverted)
}

func TestReconcileIncompatibleSurfaced(t *testing.T) {
	match := &catalog.Candidate{ID: 9, Name: "Oeufs", Unit: units.UnitPiece, Score: 0.8}
	line := RawLine{Name: "oeufs", Quantity: decimal.NewFromInt(2), Unit: "kg"}

	d := Reconcile(line, match)
	require.Equal(t, ActionAttach, d.Action)
	require.True(t, d.Incompatible)
	require.True(t, d.ConvertedQuantity.Equal(decimal.NewFromInt(2)))
	require.Equal(t, units.UnitKilogram, d.CanonicalUnit)
}

func TestReconcileNoMatchCreatesDraft(t *testing.T) {
	line := RawLine{Name: "Tomates cerises", Quantity: decimal.NewFromInt(3), Unit: "kg"}

	d := Reconcile(line, nil)
	require.Equal(t, ActionCreate, d.Action)
	require.Nil(t, d.ProductID)
	require.NotNil(t, d.Draft)
	require.Equal(t, "Tomates cerises", d.Draft.Name)
	require.Equal(t, units.UnitKilogram, d.Draft.Unit)
}

func TestReconcileUnknownUnitNeedsReview(t *testing.T) {
	line := RawLine{Name: "Huile", Quantity: decimal.NewFromInt(1), Unit: "barrel"}

	d := Reconcile(line, nil)
	require.Equal(t, ActionCreate, d.Action)
	require.NotEmpty(t, d.UnitError)
	require.Nil(t, d.Draft)
}
