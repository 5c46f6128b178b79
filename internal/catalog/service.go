package catalog

import (
	"context"
	"fmt"

	"github.com/warehouse-wrangler/warehouse-wrangler/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	List(ctx context.Context, filter ListFilter) ([]Product, int, error)
	Get(ctx context.Context, id int64) (Product, error)
	GetBySKU(ctx context.Context, sku string) (Product, error)
	Create(ctx context.Context, p Product) (Product, error)
	Update(ctx context.Context, id int64, p Product) error
	Delete(ctx context.Context, id int64) error
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Invalidator bumps downstream caches after catalog mutations.
type Invalidator interface {
	Bump(ctx context.Context) error
}

// Service coordinates catalog operations.
type Service struct {
	repo       RepositoryPort
	audit      AuditPort
	invalidate Invalidator
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort, invalidate Invalidator) *Service {
	return &Service{repo: repo, audit: audit, invalidate: invalidate}
}

// List returns products for the filter with the unpaged total.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Product, int, error) {
	return s.repo.List(ctx, filter)
}

// Get returns one product.
func (s *Service) Get(ctx context.Context, id int64) (Product, error) {
	if id <= 0 {
		return Product{}, fmt.Errorf("catalog: invalid product id: %w", shared.ErrValidation)
	}
	return s.repo.Get(ctx, id)
}

// GetBySKU returns one product by SKU.
func (s *Service) GetBySKU(ctx context.Context, sku string) (Product, error) {
	if sku == "" {
		return Product{}, fmt.Errorf("catalog: sku required: %w", shared.ErrValidation)
	}
	return s.repo.GetBySKU(ctx, sku)
}

// Create inserts a product. A zeroed seasonal profile is replaced with
// a flat year so demand math never multiplies by zero by accident.
func (s *Service) Create(ctx context.Context, p Product, actorID int64) (Product, error) {
	if p.SeasonalFactors == ([12]float64{}) {
		p.SeasonalFactors = DefaultSeasonalFactors()
	}
	if err := p.Validate(); err != nil {
		return Product{}, err
	}
	p.IsActive = true
	created, err := s.repo.Create(ctx, p)
	if err != nil {
		return Product{}, err
	}
	s.bump(ctx)
	s.record(ctx, actorID, "catalog:create", created.ID, created.SKU)
	return created, nil
}

// Update rewrites a product.
func (s *Service) Update(ctx context.Context, id int64, p Product, actorID int64) (Product, error) {
	if id <= 0 {
		return Product{}, fmt.Errorf("catalog: invalid product id: %w", shared.ErrValidation)
	}
	if err := p.Validate(); err != nil {
		return Product{}, err
	}
	if err := s.repo.Update(ctx, id, p); err != nil {
		return Product{}, err
	}
	s.bump(ctx)
	s.record(ctx, actorID, "catalog:update", id, p.SKU)
	return s.repo.Get(ctx, id)
}

// Delete removes a product unless ledger or shipment rows still
// reference it.
func (s *Service) Delete(ctx context.Context, id int64, actorID int64) error {
	if id <= 0 {
		return fmt.Errorf("catalog: invalid product id: %w", shared.ErrValidation)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.bump(ctx)
	s.record(ctx, actorID, "catalog:delete", id, "")
	return nil
}

func (s *Service) bump(ctx context.Context) {
	if s.invalidate == nil {
		return
	}
	_ = s.invalidate.Bump(ctx)
}

func (s *Service) record(ctx context.Context, actorID int64, action string, productID int64, sku string) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "product",
		EntityID: fmt.Sprintf("%d", productID),
		Meta:     map[string]any{"sku": sku},
	})
}
