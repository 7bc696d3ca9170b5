package ledger

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/gastrodesk/gastrodesk/internal/catalog"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	ListByProduct(ctx context.Context, productID int64, limit int) ([]StockMovement, error)
}

// ProductReader loads current product state for verification reads.
type ProductReader interface {
	GetProduct(ctx context.Context, id int64) (catalog.Product, error)
}

// Service posts manual adjustments and verifies ledger consistency.
type Service struct {
	repo     RepositoryPort
	products ProductReader
	logger   *slog.Logger
}

// NewService builds Service.
func NewService(repo RepositoryPort, products ProductReader, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, products: products, logger: logger}
}

// Adjust posts a manual stock correction as a regular ledger movement. Direct
// quantity edits are not offered anywhere else, which keeps the replay
// invariant intact for ad hoc corrections too.
func (s *Service) Adjust(ctx context.Context, input AdjustmentInput) (StockMovement, error) {
	if input.QuantityChange.IsZero() {
		return StockMovement{}, ErrInvalidQuantity
	}
	if input.Reason == "" {
		return StockMovement{}, ErrMissingReason
	}
	var movement StockMovement
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		product, err := tx.GetProductForUpdate(ctx, input.ProductID)
		if err != nil {
			return err
		}
		newQty := product.Quantity.Add(input.QuantityChange)
		if newQty.IsNegative() {
			return fmt.Errorf("%w: product %q has %s, change %s",
				ErrNegativeStock, product.Name, product.Quantity.String(), input.QuantityChange.String())
		}
		direction := DirectionIn
		if input.QuantityChange.IsNegative() {
			direction = DirectionOut
		}
		unitPrice := input.UnitPrice
		if unitPrice == nil {
			unitPrice = product.UnitPrice
		}
		value := decimal.Zero
		if unitPrice != nil {
			value = newQty.Mul(*unitPrice).Round(2)
		}
		movement = StockMovement{
			ProductID:    product.ID,
			Direction:    direction,
			Quantity:     input.QuantityChange.Abs(),
			BalanceAfter: newQty,
			Reason:       input.Reason,
			UnitPrice:    unitPrice,
			Value:        value,
		}
		if err := tx.InsertMovement(ctx, &movement); err != nil {
			return err
		}
		return tx.UpdateProductQuantity(ctx, product.ID, newQty, value)
	})
	if err != nil {
		return StockMovement{}, err
	}
	s.logger.Info("manual adjustment posted",
		slog.Int64("product_id", input.ProductID),
		slog.String("change", input.QuantityChange.String()),
		slog.String("balance_after", movement.BalanceAfter.String()))
	return movement, nil
}

// ListByProduct returns the stock card for a product in creation order.
func (s *Service) ListByProduct(ctx context.Context, productID int64, limit int) ([]StockMovement, error) {
	return s.repo.ListByProduct(ctx, productID, limit)
}

// VerifyProduct replays every movement of a product and compares the result
// with the stored on-hand quantity. Sum of IN minus sum of OUT must equal the
// current quantity exactly.
func (s *Service) VerifyProduct(ctx context.Context, productID int64) (ConsistencyReport, error) {
	product, err := s.products.GetProduct(ctx, productID)
	if err != nil {
		return ConsistencyReport{}, err
	}
	movements, err := s.repo.ListByProduct(ctx, productID, 0)
	if err != nil {
		return ConsistencyReport{}, err
	}
	replayed := decimal.Zero
	for _, m := range movements {
		switch m.Direction {
		case DirectionIn:
			replayed = replayed.Add(m.Quantity)
		case DirectionOut:
			replayed = replayed.Sub(m.Quantity)
		}
	}
	report := ConsistencyReport{
		ProductID:      productID,
		Movements:      len(movements),
		LedgerQuantity: replayed,
		OnHandQuantity: product.Quantity,
		Consistent:     replayed.Equal(product.Quantity),
	}
	if !report.Consistent {
		s.logger.Error("ledger inconsistency detected",
			slog.Int64("product_id", productID),
			slog.String("ledger", replayed.String()),
			slog.String("on_hand", product.Quantity.String()))
	}
	return report, nil
}
