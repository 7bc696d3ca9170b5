package bills

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/gastrodesk/gastrodesk/internal/catalog"
	"github.com/gastrodesk/gastrodesk/internal/disputes"
	"github.com/gastrodesk/gastrodesk/internal/dlc"
	"github.com/gastrodesk/gastrodesk/internal/extraction"
	"github.com/gastrodesk/gastrodesk/internal/ledger"
	"github.com/gastrodesk/gastrodesk/internal/units"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Insert(ctx context.Context, bill *Bill, items []LineItem) error
	Get(ctx context.Context, id int64) (Bill, []LineItem, error)
	List(ctx context.Context, limit int) ([]Bill, error)
}

// ProductMatcher is the slice of the catalog service the bill flow needs.
type ProductMatcher interface {
	Match(ctx context.Context, name string) (*catalog.Candidate, error)
	Get(ctx context.Context, id int64) (catalog.Product, error)
	InvalidateSearches(ctx context.Context)
}

// Service coordinates bill intake, reconciliation previews and the
// confirmation transaction.
type Service struct {
	repo     RepositoryPort
	products ProductMatcher
	logger   *slog.Logger
}

// NewService builds Service.
func NewService(repo RepositoryPort, products ProductMatcher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, products: products, logger: logger}
}

// Get loads a bill with its line items.
func (s *Service) Get(ctx context.Context, id int64) (Bill, []LineItem, error) {
	return s.repo.Get(ctx, id)
}

// List returns recent bills.
func (s *Service) List(ctx context.Context, limit int) ([]Bill, error) {
	return s.repo.List(ctx, limit)
}

// CreateFromExtraction persists a PENDING bill from the extractor's output.
// No stock is touched; the bill waits for review and confirmation.
func (s *Service) CreateFromExtraction(ctx context.Context, sourceFile string, extracted extraction.ExtractedBill) (Bill, []LineItem, error) {
	if len(extracted.Lines) == 0 {
		return Bill{}, nil, extraction.ErrNoContent
	}

	verrs := ValidationErrors{}
	items := make([]LineItem, 0, len(extracted.Lines))
	for i, line := range extracted.Lines {
		field := "lines[" + strconv.Itoa(i) + "]"
		if line.Name == "" {
			verrs[field+".name"] = "name is required"
			continue
		}
		qty, err := decimal.NewFromString(line.Quantity)
		if err != nil {
			verrs[field+".quantity"] = "not a decimal"
			continue
		}
		item := LineItem{Name: line.Name, Quantity: qty, Unit: line.Unit}
		if line.UnitPrice != nil {
			price, err := decimal.NewFromString(*line.UnitPrice)
			if err != nil {
				verrs[field+".unitPrice"] = "not a decimal"
				continue
			}
			item.UnitPrice = &price
		}
		items = append(items, item)
	}
	if len(verrs) > 0 {
		return Bill{}, nil, verrs
	}

	bill := Bill{
		SourceFile:    sourceFile,
		SourceRef:     uuid.NewString(),
		Supplier:      extracted.Supplier,
		SupplierEmail: extracted.SupplierEmail,
		BillDate:      extracted.Date,
		Status:        StatusPending,
	}
	if extracted.TotalAmount != nil {
		total, err := decimal.NewFromString(*extracted.TotalAmount)
		if err != nil {
			return Bill{}, nil, ValidationErrors{"totalAmount": "not a decimal"}
		}
		bill.TotalAmount = total
	}
	if err := s.repo.Insert(ctx, &bill, items); err != nil {
		return Bill{}, nil, err
	}
	s.logger.Info("bill created",
		slog.Int64("bill_id", bill.ID),
		slog.String("source_file", sourceFile),
		slog.Int("lines", len(items)))
	return bill, items, nil
}

// Suggestion pairs a stored line item with the reconciler's proposal for it.
type Suggestion struct {
	Line     LineItem
	Decision Decision
}

// Suggest runs the matcher and reconciler over a pending bill's raw lines.
// The result is advisory; the reviewer edits it and submits via Confirm.
func (s *Service) Suggest(ctx context.Context, billID int64) ([]Suggestion, error) {
	_, items, err := s.repo.Get(ctx, billID)
	if err != nil {
		return nil, err
	}
	suggestions := make([]Suggestion, 0, len(items))
	for _, item := range items {
		match, err := s.products.Match(ctx, item.Name)
		if err != nil {
			return nil, fmt.Errorf("match %q: %w", item.Name, err)
		}
		decision := Reconcile(RawLine{
			Name:      item.Name,
			Quantity:  item.Quantity,
			Unit:      item.Unit,
			UnitPrice: item.UnitPrice,
		}, match)
		suggestions = append(suggestions, Suggestion{Line: item, Decision: decision})
	}
	return suggestions, nil
}

func (s *Service) validateConfirm(ctx context.Context, input ConfirmInput) ValidationErrors {
	verrs := ValidationErrors{}
	if input.Supplier == "" {
		verrs["supplier"] = "supplier is required"
	}
	if input.BillDate.IsZero() {
		verrs["billDate"] = "bill date is required"
	}
	if len(input.Lines) == 0 {
		verrs["lines"] = "at least one line is required"
	}
	for i, line := range input.Lines {
		field := "lines[" + strconv.Itoa(i) + "]"
		if !line.Quantity.IsPositive() {
			verrs[field+".quantity"] = "must be positive"
		}
		if !units.IsCanonical(line.Unit) {
			verrs[field+".unit"] = "unresolved unit"
			continue
		}
		if line.ProductID == nil {
			if len(line.Name) < catalog.MinQueryLength {
				verrs[field+".name"] = "name is required for new products"
			}
		} else if s.products != nil {
			product, err := s.products.Get(ctx, *line.ProductID)
			if err != nil {
				verrs[field+".productId"] = "unknown product"
			} else if _, err := units.Convert(line.Quantity, line.Unit, product.Unit); err != nil {
				verrs[field+".unit"] = fmt.Sprintf("incompatible with product unit %s", product.Unit)
			}
		}
		if line.DLC != nil {
			if line.DLC.ExpirationDate.IsZero() {
				verrs[field+".dlc.expirationDate"] = "expiration date is required"
			}
			if !line.DLC.Quantity.IsPositive() {
				verrs[field+".dlc.quantity"] = "must be positive"
			}
		}
	}
	if d := input.Dispute; d != nil {
		if !disputes.ValidType(d.Type) {
			verrs["dispute.type"] = "unknown dispute type"
		}
		if d.Reason == "" {
			verrs["dispute.reason"] = "reason is required"
		}
		for i, p := range d.Products {
			field := "dispute.products[" + strconv.Itoa(i) + "]"
			if p.LineIndex < 0 || p.LineIndex >= len(input.Lines) {
				verrs[field+".lineIndex"] = "out of range"
			}
			if !p.Quantity.IsPositive() {
				verrs[field+".quantity"] = "must be positive"
			}
		}
	}
	if len(verrs) > 0 {
		return verrs
	}
	return nil
}

// Confirm applies the reviewed reconciliation in one transaction: products
// are created or locked, quantities move forward, one IN movement is written
// per line, expiration entries and an optional dispute are recorded, and the
// bill leaves PENDING for good. Any failure rolls the whole thing back.
func (s *Service) Confirm(ctx context.Context, billID int64, input ConfirmInput) (Bill, error) {
	if verrs := s.validateConfirm(ctx, input); verrs != nil {
		return Bill{}, verrs
	}

	var (
		bill    Bill
		created int
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		bill, err = tx.GetBillForUpdate(ctx, billID)
		if err != nil {
			return err
		}
		if bill.Status != StatusPending {
			return fmt.Errorf("%w: bill %d is %s", ErrAlreadyProcessed, billID, bill.Status)
		}

		items := make([]LineItem, 0, len(input.Lines))
		lineProducts := make([]int64, len(input.Lines))
		for i, line := range input.Lines {
			var product catalog.Product
			if line.ProductID != nil {
				product, err = tx.GetProductForUpdate(ctx, *line.ProductID)
				if err != nil {
					return fmt.Errorf("line %d: %w", i, err)
				}
			} else {
				var wasCreated bool
				product, wasCreated, err = tx.EnsureProduct(ctx, catalog.Draft{
					Name:      line.Name,
					Unit:      line.Unit,
					UnitPrice: line.UnitPrice,
				})
				if err != nil {
					return fmt.Errorf("line %d: %w", i, err)
				}
				if wasCreated {
					created++
				}
			}
			lineProducts[i] = product.ID

			converted, err := units.Convert(line.Quantity, line.Unit, product.Unit)
			if err != nil {
				return fmt.Errorf("line %d: %w", i, err)
			}
			newQty := product.Quantity.Add(converted.Quantity)

			unitPrice := line.UnitPrice
			if unitPrice == nil {
				unitPrice = product.UnitPrice
			}
			value := decimal.Zero
			if unitPrice != nil {
				value = newQty.Mul(*unitPrice).Round(2)
			}
			if err := tx.UpdateProductQuantity(ctx, product.ID, newQty, value); err != nil {
				return fmt.Errorf("line %d: %w", i, err)
			}
			movement := ledger.StockMovement{
				ProductID:    product.ID,
				Direction:    ledger.DirectionIn,
				Quantity:     converted.Quantity,
				BalanceAfter: newQty,
				Reason:       fmt.Sprintf("Bill #%d confirmation", billID),
				UnitPrice:    unitPrice,
				Value:        value,
			}
			if err := tx.InsertMovement(ctx, &movement); err != nil {
				return fmt.Errorf("line %d: %w", i, err)
			}

			productID := product.ID
			canonical := product.Unit
			convertedQty := converted.Quantity
			items = append(items, LineItem{
				Name:              line.Name,
				Quantity:          line.Quantity,
				Unit:              string(line.Unit),
				UnitPrice:         line.UnitPrice,
				ProductID:         &productID,
				ConvertedQuantity: &convertedQty,
				CanonicalUnit:     &canonical,
			})

			if line.DLC != nil {
				entry := dlc.Entry{
					ProductID:      product.ID,
					BillID:         &billID,
					ExpirationDate: line.DLC.ExpirationDate,
					Quantity:       line.DLC.Quantity,
					Status:         dlc.StatusActive,
				}
				if err := tx.InsertDLCEntry(ctx, &entry); err != nil {
					return fmt.Errorf("line %d: %w", i, err)
				}
			}
		}
		if err := tx.ReplaceLineItems(ctx, billID, items); err != nil {
			return err
		}

		status := StatusProcessed
		if d := input.Dispute; d != nil {
			disputeInput := disputes.CreateInput{
				BillID: billID,
				Type:   d.Type,
				Amount: d.Amount,
				Reason: d.Reason,
			}
			for _, p := range d.Products {
				disputeInput.Products = append(disputeInput.Products, disputes.ProductDraft{
					ProductID: lineProducts[p.LineIndex],
					Reason:    p.Reason,
					Quantity:  p.Quantity,
				})
			}
			if _, err := tx.InsertDispute(ctx, disputeInput); err != nil {
				return err
			}
			status = StatusDisputed
		}

		bill.Supplier = input.Supplier
		bill.SupplierEmail = input.SupplierEmail
		billDate := input.BillDate
		bill.BillDate = &billDate
		bill.TotalAmount = input.TotalAmount
		bill.Status = status
		return tx.FinalizeBill(ctx, &bill)
	})
	if err != nil {
		return Bill{}, err
	}

	if created > 0 && s.products != nil {
		s.products.InvalidateSearches(ctx)
	}
	s.logger.Info("bill confirmed",
		slog.Int64("bill_id", bill.ID),
		slog.String("status", string(bill.Status)),
		slog.Int("lines", len(input.Lines)),
		slog.Int("new_products", created))
	return bill, nil
}
