package catalog

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/warehouse-wrangler/warehouse-wrangler/internal/shared"
)

type memoryRepo struct {
	products   map[int64]Product
	referenced map[int64]bool
	nextID     int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{products: make(map[int64]Product), referenced: make(map[int64]bool)}
}

func (r *memoryRepo) List(ctx context.Context, filter ListFilter) ([]Product, int, error) {
	var result []Product
	for _, p := range r.products {
		if filter.IsActive != nil && p.IsActive != *filter.IsActive {
			continue
		}
		result = append(result, p)
	}
	return result, len(result), nil
}

func (r *memoryRepo) Get(ctx context.Context, id int64) (Product, error) {
	p, ok := r.products[id]
	if !ok {
		return Product{}, fmt.Errorf("product %d: %w", id, shared.ErrNotFound)
	}
	return p, nil
}

func (r *memoryRepo) GetBySKU(ctx context.Context, sku string) (Product, error) {
	for _, p := range r.products {
		if p.SKU == sku {
			return p, nil
		}
	}
	return Product{}, fmt.Errorf("product %q: %w", sku, shared.ErrNotFound)
}

func (r *memoryRepo) Create(ctx context.Context, p Product) (Product, error) {
	for _, existing := range r.products {
		if existing.SKU == p.SKU {
			return Product{}, ErrDuplicateSKU
		}
	}
	r.nextID++
	p.ID = r.nextID
	r.products[p.ID] = p
	return p, nil
}

func (r *memoryRepo) Update(ctx context.Context, id int64, p Product) error {
	if _, ok := r.products[id]; !ok {
		return fmt.Errorf("product %d: %w", id, shared.ErrNotFound)
	}
	p.ID = id
	r.products[id] = p
	return nil
}

func (r *memoryRepo) Delete(ctx context.Context, id int64) error {
	if _, ok := r.products[id]; !ok {
		return fmt.Errorf("product %d: %w", id, shared.ErrNotFound)
	}
	if r.referenced[id] {
		return ErrProductReferenced
	}
	delete(r.products, id)
	return nil
}

func TestCreateDefaultsSeasonalFactors(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)

	created, err := svc.Create(context.Background(), Product{
		SKU:                "BOOT-41",
		Name:               "Winter boot 41",
		PairsPerBox:        12,
		AverageWeeklySales: 7,
	}, 1)
	require.NoError(t, err)
	require.Equal(t, DefaultSeasonalFactors(), created.SeasonalFactors)
	require.True(t, created.IsActive)

	_, err = svc.Create(context.Background(), Product{
		SKU:         "BOOT-41",
		Name:        "Duplicate",
		PairsPerBox: 10,
	}, 1)
	require.ErrorIs(t, err, shared.ErrDuplicateReference)
}

func TestCreateValidation(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, nil)
	cases := []Product{
		{Name: "no sku", PairsPerBox: 12},
		{SKU: "X", PairsPerBox: 12},
		{SKU: "X", Name: "zero pairs", PairsPerBox: 0},
		{SKU: "X", Name: "negative sales", PairsPerBox: 12, AverageWeeklySales: -1},
		{SKU: "X", Name: "negative factor", PairsPerBox: 12, SeasonalFactors: [12]float64{1, 1, -0.5, 1, 1, 1, 1, 1, 1, 1, 1, 1}},
	}
	for _, p := range cases {
		_, err := svc.Create(context.Background(), p, 1)
		require.ErrorIs(t, err, shared.ErrValidation, "product %q", p.Name)
	}
}

func TestDeleteRefusedWhileReferenced(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)

	created, err := svc.Create(context.Background(), Product{SKU: "BOOT-42", Name: "Boot", PairsPerBox: 12}, 1)
	require.NoError(t, err)

	repo.referenced[created.ID] = true
	err = svc.Delete(context.Background(), created.ID, 1)
	require.ErrorIs(t, err, ErrProductReferenced)
	require.ErrorIs(t, err, shared.ErrInvalidState)

	repo.referenced[created.ID] = false
	require.NoError(t, svc.Delete(context.Background(), created.ID, 1))
	_, err = svc.Get(context.Background(), created.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestUpdateRoundTrips(t *testing.T) {
	repo := newMemoryRepo()
	bump := &countingInvalidator{}
	svc := NewService(repo, nil, bump)

	created, err := svc.Create(context.Background(), Product{SKU: "BOOT-43", Name: "Boot", PairsPerBox: 12}, 1)
	require.NoError(t, err)
	require.Equal(t, 1, bump.bumps)

	created.AverageWeeklySales = 9.5
	created.SeasonalFactors[11] = 1.8
	updated, err := svc.Update(context.Background(), created.ID, created, 1)
	require.NoError(t, err)
	require.Equal(t, 9.5, updated.AverageWeeklySales)
	require.Equal(t, 1.8, updated.SeasonalFactors[11])
	require.Equal(t, 2, bump.bumps)
}

type countingInvalidator struct {
	bumps int
}

func (c *countingInvalidator) Bump(ctx context.Context) error {
	c.bumps++
	return nil
}
