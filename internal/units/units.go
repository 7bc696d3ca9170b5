// Package units maps free-text unit tokens to the canonical unit vocabulary
// and converts quantities between compatible units.
package units

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Unit is a canonical unit token.
type Unit string

const (
	UnitGram       Unit = "G"
	UnitKilogram   Unit = "KG"
	UnitMillilitre Unit = "ML"
	UnitCentilitre Unit = "CL"
	UnitLitre      Unit = "L"
	UnitPiece      Unit = "PC"
	UnitBox        Unit = "BOX"
	UnitBag        Unit = "BAG"
	UnitBottle     Unit = "BOTTLE"
)

// Family groups units that convert between each other.
type Family string

const (
	FamilyMass      Family = "MASS"
	FamilyVolume    Family = "VOLUME"
	FamilyCount     Family = "COUNT"
	FamilyPackaging Family = "PACKAGING"
)

// ErrUnknownUnit indicates a token outside the vocabulary and alias table.
var ErrUnknownUnit = errors.New("units: unrecognized unit")

// ErrIncompatibleUnits indicates a conversion across unit families.
var ErrIncompatibleUnits = errors.New("units: incompatible unit families")

var families = map[Unit]Family{
	UnitGram:       FamilyMass,
	UnitKilogram:   FamilyMass,
	UnitMillilitre: FamilyVolume,
	UnitCentilitre: FamilyVolume,
	UnitLitre:      FamilyVolume,
	UnitPiece:      FamilyCount,
	UnitBox:        FamilyPackaging,
	UnitBag:        FamilyPackaging,
	UnitBottle:     FamilyPackaging,
}

// factors express each unit in its family base unit (G for mass, ML for volume).
// Count and packaging units carry no factor and convert only unit-for-unit.
var factors = map[Unit]decimal.Decimal{
	UnitGram:       decimal.NewFromInt(1),
	UnitKilogram:   decimal.NewFromInt(1000),
	UnitMillilitre: decimal.NewFromInt(1),
	UnitCentilitre: decimal.NewFromInt(10),
	UnitLitre:      decimal.NewFromInt(1000),
}

var aliases = map[string]Unit{
	"g": UnitGram, "gr": UnitGram, "gram": UnitGram, "grams": UnitGram,
	"gramme": UnitGram, "grammes": UnitGram,
	"kg": UnitKilogram, "kilo": UnitKilogram, "kilos": UnitKilogram,
	"kilogram": UnitKilogram, "kilograms": UnitKilogram, "kilogramme": UnitKilogram,
	"ml": UnitMillilitre, "millilitre": UnitMillilitre, "milliliter": UnitMillilitre,
	"cl": UnitCentilitre, "centilitre": UnitCentilitre, "centiliter": UnitCentilitre,
	"l": UnitLitre, "lt": UnitLitre, "liter": UnitLitre, "litre": UnitLitre,
	"liters": UnitLitre, "litres": UnitLitre,
	"pc": UnitPiece, "pcs": UnitPiece, "piece": UnitPiece, "pieces": UnitPiece,
	"pièce": UnitPiece, "pièces": UnitPiece, "unit": UnitPiece, "unité": UnitPiece,
	"u": UnitPiece,
	"box": UnitBox, "boite": UnitBox, "boîte": UnitBox, "carton": UnitBox,
	"bag": UnitBag, "sachet": UnitBag, "sac": UnitBag,
	"bottle": UnitBottle, "bouteille": UnitBottle, "btl": UnitBottle,
}

// ConversionResult reports the outcome of a quantity conversion.
type ConversionResult struct {
	Quantity     decimal.Decimal
	Unit         Unit
	WasConverted bool
	Description  string
}

// Normalize maps a free-text token to a canonical unit. Unrecognized tokens
// return ErrUnknownUnit so the caller can prompt for manual selection.
func Normalize(token string) (Unit, error) {
	cleaned := strings.ToLower(strings.TrimSpace(strings.Trim(token, ".")))
	if cleaned == "" {
		return "", ErrUnknownUnit
	}
	if _, ok := families[Unit(strings.ToUpper(cleaned))]; ok {
		return Unit(strings.ToUpper(cleaned)), nil
	}
	if unit, ok := aliases[cleaned]; ok {
		return unit, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownUnit, token)
}

// FamilyOf returns the family of a canonical unit.
func FamilyOf(unit Unit) (Family, bool) {
	fam, ok := families[unit]
	return fam, ok
}

// IsCanonical reports whether unit belongs to the vocabulary.
func IsCanonical(unit Unit) bool {
	_, ok := families[unit]
	return ok
}

// Convert expresses qty in the target unit. Units in the same mass or volume
// family convert through fixed factors; count and packaging units only match
// unit-for-unit. Cross-family conversions return ErrIncompatibleUnits with
// the quantity untouched so the caller can flag the line for review.
func Convert(qty decimal.Decimal, from, to Unit) (ConversionResult, error) {
	fromFam, ok := families[from]
	if !ok {
		return ConversionResult{Quantity: qty, Unit: from}, fmt.Errorf("%w: %q", ErrUnknownUnit, from)
	}
	toFam, ok := families[to]
	if !ok {
		return ConversionResult{Quantity: qty, Unit: from}, fmt.Errorf("%w: %q", ErrUnknownUnit, to)
	}
	if from == to {
		return ConversionResult{Quantity: qty, Unit: to}, nil
	}
	if fromFam != toFam {
		return ConversionResult{Quantity: qty, Unit: from},
			fmt.Errorf("%w: %s (%s) vs %s (%s)", ErrIncompatibleUnits, from, fromFam, to, toFam)
	}
	fromFactor, okFrom := factors[from]
	toFactor, okTo := factors[to]
	if !okFrom || !okTo {
		// Same family but no factor table: packaging units never cross-convert.
		return ConversionResult{Quantity: qty, Unit: from},
			fmt.Errorf("%w: %s vs %s", ErrIncompatibleUnits, from, to)
	}
	converted := qty.Mul(fromFactor).Div(toFactor)
	return ConversionResult{
		Quantity:     converted,
		Unit:         to,
		WasConverted: true,
		Description:  fmt.Sprintf("%s %s = %s %s", qty.String(), from, converted.String(), to),
	}, nil
}
