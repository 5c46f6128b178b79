package forecast

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/warehouse-wrangler/warehouse-wrangler/internal/catalog"
	"github.com/warehouse-wrangler/warehouse-wrangler/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	StockSnapshots(ctx context.Context) (map[int64]StockSnapshot, error)
	PlannedByProduct(ctx context.Context) (map[int64][]PlannedEntry, error)
	ListPlanned(ctx context.Context, productID int64, includeInactive bool) ([]PlannedEntry, error)
	GetPlanned(ctx context.Context, id int64) (PlannedEntry, error)
	CreatePlanned(ctx context.Context, e PlannedEntry) (PlannedEntry, error)
	UpdatePlanned(ctx context.Context, id int64, e PlannedEntry) error
	DeactivatePlanned(ctx context.Context, id int64) error
	DeletePlanned(ctx context.Context, id int64) error
}

// ProductSource lists catalog products for projection runs.
type ProductSource interface {
	List(ctx context.Context, filter catalog.ListFilter) ([]catalog.Product, int, error)
}

// Config is the dashboard configuration handed to clients.
type Config struct {
	Unit  Unit      `json:"unit"`
	Today time.Time `json:"today"`
}

// Service runs projections and owns planned stock.
type Service struct {
	repo     RepositoryPort
	products ProductSource
	cache    *Cache
	unit     Unit
}

// NewService builds Service.
func NewService(repo RepositoryPort, products ProductSource, cache *Cache, unit Unit) *Service {
	if unit != UnitPairs {
		unit = UnitBoxes
	}
	return &Service{repo: repo, products: products, cache: cache, unit: unit}
}

// Config returns the dashboard configuration.
func (s *Service) Config() Config {
	return Config{Unit: s.unit, Today: time.Now()}
}

// Dashboard computes projections for every active product, cached per
// option set until the next ledger write bumps the cache version.
func (s *Service) Dashboard(ctx context.Context, opts Options) ([]Projection, error) {
	opts.Unit = s.unit
	if opts.Today.IsZero() {
		opts.Today = time.Now()
	}
	if opts.TargetDate.IsZero() || opts.TargetDate.Before(opts.Today) {
		opts.TargetDate = opts.Today
	}

	key, err := s.cache.BuildKey(ctx, "forecast", "dashboard", optionsKey(opts))
	if err != nil {
		return nil, err
	}
	var rows []Projection
	err = s.cache.FetchJSON(ctx, key, &rows, func(ctx context.Context) (interface{}, error) {
		return s.compute(ctx, opts)
	})
	return rows, err
}

func (s *Service) compute(ctx context.Context, opts Options) ([]Projection, error) {
	active := true
	products, _, err := s.products.List(ctx, catalog.ListFilter{IsActive: &active})
	if err != nil {
		return nil, fmt.Errorf("forecast: load products: %w", err)
	}
	snapshots, err := s.repo.StockSnapshots(ctx)
	if err != nil {
		return nil, fmt.Errorf("forecast: load stock: %w", err)
	}
	planned, err := s.repo.PlannedByProduct(ctx)
	if err != nil {
		return nil, fmt.Errorf("forecast: load planned stock: %w", err)
	}

	rows := make([]Projection, len(products))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, product := range products {
		i, product := i, product
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			rows[i] = Project(product, snapshots[product.ID], planned[product.ID], opts)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	SortProjections(rows)
	return rows, nil
}

func optionsKey(opts Options) string {
	return fmt.Sprintf("%s:%s:%s:%t%t%t%t",
		opts.Unit,
		opts.Today.Format("2006-01-02"),
		opts.TargetDate.Format("2006-01-02"),
		opts.IncludeAmazon, opts.IncludeAdditional, opts.IncludeSimulations, opts.IncludeFuture,
	)
}

// ListPlanned returns planned entries.
func (s *Service) ListPlanned(ctx context.Context, productID int64, includeInactive bool) ([]PlannedEntry, error) {
	return s.repo.ListPlanned(ctx, productID, includeInactive)
}

// GetPlanned returns one planned entry.
func (s *Service) GetPlanned(ctx context.Context, id int64) (PlannedEntry, error) {
	return s.repo.GetPlanned(ctx, id)
}

// CreatePlanned inserts a planned entry.
func (s *Service) CreatePlanned(ctx context.Context, e PlannedEntry) (PlannedEntry, error) {
	if err := validatePlanned(e); err != nil {
		return PlannedEntry{}, err
	}
	created, err := s.repo.CreatePlanned(ctx, e)
	if err != nil {
		return PlannedEntry{}, err
	}
	s.bump(ctx)
	return created, nil
}

// UpdatePlanned rewrites a planned entry.
func (s *Service) UpdatePlanned(ctx context.Context, id int64, e PlannedEntry) (PlannedEntry, error) {
	if err := validatePlanned(e); err != nil {
		return PlannedEntry{}, err
	}
	if err := s.repo.UpdatePlanned(ctx, id, e); err != nil {
		return PlannedEntry{}, err
	}
	s.bump(ctx)
	return s.repo.GetPlanned(ctx, id)
}

// DeactivatePlanned soft-deletes a planned entry. This is the normal
// removal path; DeletePlanned exists for cleaning up mistakes.
func (s *Service) DeactivatePlanned(ctx context.Context, id int64) error {
	if err := s.repo.DeactivatePlanned(ctx, id); err != nil {
		return err
	}
	s.bump(ctx)
	return nil
}

// DeletePlanned hard-deletes a planned entry.
func (s *Service) DeletePlanned(ctx context.Context, id int64) error {
	if err := s.repo.DeletePlanned(ctx, id); err != nil {
		return err
	}
	s.bump(ctx)
	return nil
}

func validatePlanned(e PlannedEntry) error {
	if e.ProductID <= 0 {
		return fmt.Errorf("forecast: product_id required: %w", shared.ErrValidation)
	}
	if e.QuantityBoxes <= 0 {
		return fmt.Errorf("forecast: quantity_boxes must be positive: %w", shared.ErrValidation)
	}
	if _, err := ParseScope(string(e.Scope)); err != nil {
		return err
	}
	return nil
}

func (s *Service) bump(ctx context.Context) {
	_ = s.cache.Bump(ctx)
}
