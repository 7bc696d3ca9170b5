package dlc

import (
	"context"
	"log/slog"
	"time"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	Get(ctx context.Context, id int64) (Entry, error)
	ListByProduct(ctx context.Context, productID int64) ([]Entry, error)
	UpdateStatus(ctx context.Context, id int64, to Status) (Entry, error)
	ExpireOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// Service manages expiration entry lifecycle after creation.
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

// Get loads one entry.
func (s *Service) Get(ctx context.Context, id int64) (Entry, error) {
	return s.repo.Get(ctx, id)
}

// ListByProduct returns a product's entries, soonest expiration first.
func (s *Service) ListByProduct(ctx context.Context, productID int64) ([]Entry, error) {
	return s.repo.ListByProduct(ctx, productID)
}

// Consume marks an active batch as used up.
func (s *Service) Consume(ctx context.Context, id int64) (Entry, error) {
	return s.repo.UpdateStatus(ctx, id, StatusConsumed)
}

// Discard marks an active batch as thrown away.
func (s *Service) Discard(ctx context.Context, id int64) (Entry, error) {
	return s.repo.UpdateStatus(ctx, id, StatusDiscarded)
}

// SweepExpired transitions every active entry whose date passed to EXPIRED.
// The background worker runs this on a schedule.
func (s *Service) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	expired, err := s.repo.ExpireOlderThan(ctx, now)
	if err != nil {
		return 0, err
	}
	if expired > 0 {
		s.logger.Info("expired dlc entries", slog.Int64("count", expired))
	}
	return expired, nil
}
