package catalog

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/singleflight"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	GetProduct(ctx context.Context, id int64) (Product, error)
	SearchByName(ctx context.Context, query string, limit int) ([]Candidate, error)
	ListBelowPar(ctx context.Context) ([]Product, error)
	Ensure(ctx context.Context, draft Draft) (Product, bool, error)
}

// Service coordinates catalog reads and the shared creation path.
type Service struct {
	repo      RepositoryPort
	cache     *Cache
	logger    *slog.Logger
	threshold float64
	group     singleflight.Group
}

// ServiceConfig groups optional settings.
type ServiceConfig struct {
	MatchThreshold float64
}

// NewService builds Service. cache may be nil.
func NewService(repo RepositoryPort, cache *Cache, logger *slog.Logger, cfg ServiceConfig) *Service {
	threshold := cfg.MatchThreshold
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultMatchThreshold
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, cache: cache, logger: logger, threshold: threshold}
}

// Get loads one product.
func (s *Service) Get(ctx context.Context, id int64) (Product, error) {
	return s.repo.GetProduct(ctx, id)
}

// Search returns candidates for a partial name, best-scored first. Results
// are cached briefly and concurrent identical queries share one load; the
// review UI calls this on every keystroke.
func (s *Service) Search(ctx context.Context, query string) ([]Candidate, error) {
	if len([]rune(query)) < MinQueryLength {
		return nil, fmt.Errorf("%w: %q", ErrQueryTooShort, query)
	}
	folded := Fold(query)

	key, err := s.cache.SearchKey(ctx, folded)
	if err != nil {
		s.logger.Warn("search cache unavailable", slog.Any("error", err))
		return s.load(ctx, query)
	}
	if cached, ok, err := s.cache.GetCandidates(ctx, key); err != nil {
		s.logger.Warn("search cache read", slog.Any("error", err))
	} else if ok {
		return cached, nil
	}

	result, err, _ := s.group.Do(key, func() (any, error) {
		candidates, err := s.load(ctx, query)
		if err != nil {
			return nil, err
		}
		if err := s.cache.SetCandidates(ctx, key, candidates); err != nil {
			s.logger.Warn("search cache write", slog.Any("error", err))
		}
		return candidates, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]Candidate), nil
}

func (s *Service) load(ctx context.Context, query string) ([]Candidate, error) {
	candidates, err := s.repo.SearchByName(ctx, query, 20)
	if err != nil {
		return nil, err
	}
	return Rank(query, candidates, s.threshold), nil
}

// Match returns the best existing product for a line-item name, or nil when
// no candidate clears the confidence threshold.
func (s *Service) Match(ctx context.Context, name string) (*Candidate, error) {
	if len([]rune(name)) < MinQueryLength {
		return nil, nil
	}
	candidates, err := s.Search(ctx, name)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	best := candidates[0]
	return &best, nil
}

// Ensure resolves a draft to an existing product or creates it.
func (s *Service) Ensure(ctx context.Context, draft Draft) (Product, bool, error) {
	product, created, err := s.repo.Ensure(ctx, draft)
	if err != nil {
		return Product{}, false, err
	}
	if created {
		if err := s.cache.Bump(ctx); err != nil {
			s.logger.Warn("search cache bump", slog.Any("error", err))
		}
		s.logger.Info("product created",
			slog.Int64("product_id", product.ID),
			slog.String("name", product.Name),
			slog.String("unit", string(product.Unit)))
	}
	return product, created, nil
}

// LowStock lists trackable products under their par level.
func (s *Service) LowStock(ctx context.Context) ([]Product, error) {
	return s.repo.ListBelowPar(ctx)
}

// InvalidateSearches drops cached search results after external writes, such
// as the bill-confirmation transaction creating products through its own
// repository.
func (s *Service) InvalidateSearches(ctx context.Context) {
	if err := s.cache.Bump(ctx); err != nil {
		s.logger.Warn("search cache bump", slog.Any("error", err))
	}
}
