package disputes

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/gastrodesk/gastrodesk/internal/ledger"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (Dispute, []DisputeProduct, error)
	ListByBill(ctx context.Context, billID int64) ([]Dispute, error)
}

// Service coordinates dispute lifecycle and the resolution transaction.
type Service struct {
	repo   RepositoryPort
	logger *slog.Logger
}

// NewService builds Service.
func NewService(repo RepositoryPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger}
}

// Get loads a dispute with its products.
func (s *Service) Get(ctx context.Context, id int64) (Dispute, []DisputeProduct, error) {
	return s.repo.Get(ctx, id)
}

// Create opens a dispute against a bill and flips the bill to DISPUTED.
func (s *Service) Create(ctx context.Context, input CreateInput) (Dispute, error) {
	if !ValidType(input.Type) {
		return Dispute{}, fmt.Errorf("%w: unknown type %q", ErrInvalidTransition, input.Type)
	}
	for _, p := range input.Products {
		if p.ProductID == 0 || !p.Quantity.IsPositive() {
			return Dispute{}, fmt.Errorf("%w: product %d", ErrInvalidReturn, p.ProductID)
		}
	}
	var dispute Dispute
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		dispute, err = tx.InsertDispute(ctx, input)
		if err != nil {
			return err
		}
		return tx.MarkBillDisputed(ctx, input.BillID)
	})
	if err != nil {
		return Dispute{}, err
	}
	s.logger.Info("dispute opened",
		slog.Int64("dispute_id", dispute.ID),
		slog.Int64("bill_id", dispute.BillID),
		slog.String("type", string(dispute.Type)))
	return dispute, nil
}

// Start moves an OPEN dispute to IN_PROGRESS.
func (s *Service) Start(ctx context.Context, id int64) (Dispute, error) {
	var dispute Dispute
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, _, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if current.Status != StatusOpen {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current.Status, StatusInProgress)
		}
		return tx.UpdateStatus(ctx, id, StatusInProgress, &dispute)
	})
	return dispute, err
}

// Close moves any non-terminal dispute to CLOSED.
func (s *Service) Close(ctx context.Context, id int64) (Dispute, error) {
	var dispute Dispute
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, _, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if current.Status == StatusResolved || current.Status == StatusClosed {
			return ErrAlreadyResolved
		}
		return tx.UpdateStatus(ctx, id, StatusClosed, &dispute)
	})
	return dispute, err
}

// Resolve settles a dispute exactly once. For RETURN disputes the listed
// quantities leave stock through OUT movements linked to the dispute; a
// return that would drive a product negative aborts the whole transaction.
func (s *Service) Resolve(ctx context.Context, id int64, input ResolveInput) (Dispute, error) {
	if input.ResolutionNotes == "" {
		return Dispute{}, ErrNotesRequired
	}
	for _, ret := range input.ProductReturns {
		if ret.ProductID == 0 || !ret.Quantity.IsPositive() {
			return Dispute{}, fmt.Errorf("%w: product %d", ErrInvalidReturn, ret.ProductID)
		}
	}
	var dispute Dispute
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, disputedProducts, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if current.Status == StatusResolved || current.Status == StatusClosed {
			return fmt.Errorf("%w: dispute %d is %s", ErrAlreadyResolved, id, current.Status)
		}
		if len(input.ProductReturns) > 0 && current.Type != TypeReturn {
			return fmt.Errorf("%w: dispute %d is %s, returns only apply to %s",
				ErrInvalidReturn, id, current.Type, TypeReturn)
		}

		disputedQty := make(map[int64]decimal.Decimal, len(disputedProducts))
		for _, dp := range disputedProducts {
			disputedQty[dp.ProductID] = disputedQty[dp.ProductID].Add(dp.Quantity)
		}

		disputeID := id
		for _, ret := range input.ProductReturns {
			product, err := tx.GetProductForUpdate(ctx, ret.ProductID)
			if err != nil {
				return fmt.Errorf("product %d: %w", ret.ProductID, err)
			}
			newQty := product.Quantity.Sub(ret.Quantity)
			if newQty.IsNegative() {
				return fmt.Errorf("%w: product %q has %s, return of %s requested",
					ErrInsufficientStock, product.Name, product.Quantity.String(), ret.Quantity.String())
			}
			// The stock bound is hard; the originally-disputed bound is only
			// advisory until the product owner decides otherwise.
			if bound, ok := disputedQty[ret.ProductID]; ok && ret.Quantity.GreaterThan(bound) {
				s.logger.Warn("return exceeds disputed quantity",
					slog.Int64("dispute_id", id),
					slog.Int64("product_id", ret.ProductID),
					slog.String("returned", ret.Quantity.String()),
					slog.String("disputed", bound.String()))
			}
			value := decimal.Zero
			if product.UnitPrice != nil {
				value = newQty.Mul(*product.UnitPrice).Round(2)
			}
			if err := tx.UpdateProductQuantity(ctx, product.ID, newQty, value); err != nil {
				return err
			}
			movement := ledger.StockMovement{
				ProductID:    product.ID,
				Direction:    ledger.DirectionOut,
				Quantity:     ret.Quantity,
				BalanceAfter: newQty,
				DisputeID:    &disputeID,
				Reason:       fmt.Sprintf("Dispute #%d resolution: product return", id),
				UnitPrice:    product.UnitPrice,
				Value:        value,
			}
			if err := tx.InsertMovement(ctx, &movement); err != nil {
				return err
			}
		}
		return tx.MarkResolved(ctx, id, input.ResolutionNotes, time.Now().UTC(), &dispute)
	})
	if err != nil {
		return Dispute{}, err
	}
	s.logger.Info("dispute resolved",
		slog.Int64("dispute_id", id),
		slog.Int("returns", len(input.ProductReturns)))
	return dispute, nil
}
