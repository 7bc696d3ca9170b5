// Package extraction defines the boundary with the external OCR/LLM service
// that turns delivery documents into structured line items. The service runs
// before reconciliation starts and is never part of the transactional path;
// only the contract lives here.
package extraction

import (
	"context"
	"errors"
	"time"
)

// ExtractedLine is one raw line item as read from the document. Units arrive
// as free text and must pass through the unit normalizer before use.
type ExtractedLine struct {
	Name       string  `json:"name"`
	Quantity   string  `json:"quantity"`
	Unit       string  `json:"unit"`
	UnitPrice  *string `json:"unitPrice,omitempty"`
	TotalPrice *string `json:"totalPrice,omitempty"`
}

// ExtractedBill is the bill-level payload produced by the collaborator.
type ExtractedBill struct {
	Supplier      string          `json:"supplier,omitempty"`
	SupplierEmail string          `json:"supplierEmail,omitempty"`
	Date          *time.Time      `json:"date,omitempty"`
	TotalAmount   *string         `json:"totalAmount,omitempty"`
	Lines         []ExtractedLine `json:"lines"`
}

// ErrNoContent indicates the document yielded nothing recognizable. Nothing
// is persisted in that case; the user re-uploads or types the bill in.
var ErrNoContent = errors.New("extraction: no recognizable content")

// Extractor is implemented by the OCR/LLM adapter.
type Extractor interface {
	ExtractBill(ctx context.Context, filename string, content []byte) (ExtractedBill, error)
}
