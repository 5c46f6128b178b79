package forecast

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/warehouse-wrangler/warehouse-wrangler/internal/catalog"
	"github.com/warehouse-wrangler/warehouse-wrangler/internal/shared"
)

type memoryRepo struct {
	snapshots map[int64]StockSnapshot
	planned   map[int64][]PlannedEntry
	entries   map[int64]PlannedEntry
	nextID    int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		snapshots: make(map[int64]StockSnapshot),
		planned:   make(map[int64][]PlannedEntry),
		entries:   make(map[int64]PlannedEntry),
	}
}

func (r *memoryRepo) StockSnapshots(ctx context.Context) (map[int64]StockSnapshot, error) {
	return r.snapshots, nil
}

func (r *memoryRepo) PlannedByProduct(ctx context.Context) (map[int64][]PlannedEntry, error) {
	return r.planned, nil
}

func (r *memoryRepo) ListPlanned(ctx context.Context, productID int64, includeInactive bool) ([]PlannedEntry, error) {
	var result []PlannedEntry
	for _, e := range r.entries {
		if productID != 0 && e.ProductID != productID {
			continue
		}
		if !includeInactive && !e.IsActive {
			continue
		}
		result = append(result, e)
	}
	return result, nil
}

func (r *memoryRepo) GetPlanned(ctx context.Context, id int64) (PlannedEntry, error) {
	e, ok := r.entries[id]
	if !ok {
		return PlannedEntry{}, fmt.Errorf("planned stock %d: %w", id, shared.ErrNotFound)
	}
	return e, nil
}

func (r *memoryRepo) CreatePlanned(ctx context.Context, e PlannedEntry) (PlannedEntry, error) {
	r.nextID++
	e.ID = r.nextID
	e.IsActive = true
	r.entries[e.ID] = e
	return e, nil
}

func (r *memoryRepo) UpdatePlanned(ctx context.Context, id int64, e PlannedEntry) error {
	if _, ok := r.entries[id]; !ok {
		return fmt.Errorf("planned stock %d: %w", id, shared.ErrNotFound)
	}
	e.ID = id
	r.entries[id] = e
	return nil
}

func (r *memoryRepo) DeactivatePlanned(ctx context.Context, id int64) error {
	e, ok := r.entries[id]
	if !ok {
		return fmt.Errorf("planned stock %d: %w", id, shared.ErrNotFound)
	}
	e.IsActive = false
	r.entries[id] = e
	return nil
}

func (r *memoryRepo) DeletePlanned(ctx context.Context, id int64) error {
	if _, ok := r.entries[id]; !ok {
		return fmt.Errorf("planned stock %d: %w", id, shared.ErrNotFound)
	}
	delete(r.entries, id)
	return nil
}

type staticProducts struct {
	products []catalog.Product
}

func (s staticProducts) List(ctx context.Context, filter catalog.ListFilter) ([]catalog.Product, int, error) {
	return s.products, len(s.products), nil
}

func TestDashboardSortsBySoonestStockout(t *testing.T) {
	repo := newMemoryRepo()
	repo.snapshots[1] = StockSnapshot{WMLPairs: 840} // 10 weeks
	repo.snapshots[2] = StockSnapshot{WMLPairs: 84}  // 1 week
	products := staticProducts{products: []catalog.Product{
		{ID: 1, SKU: "SLOW", PairsPerBox: 12, AverageWeeklySales: 7, SeasonalFactors: catalog.DefaultSeasonalFactors()},
		{ID: 2, SKU: "FAST", PairsPerBox: 12, AverageWeeklySales: 7, SeasonalFactors: catalog.DefaultSeasonalFactors()},
		{ID: 3, SKU: "DEAD", PairsPerBox: 12, AverageWeeklySales: 0, SeasonalFactors: catalog.DefaultSeasonalFactors()},
	}}
	svc := NewService(repo, products, NewCache(nil, time.Minute), UnitBoxes)

	rows, err := svc.Dashboard(context.Background(), Options{})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.Equal(t, "FAST", rows[0].SKU)
	require.Equal(t, "SLOW", rows[1].SKU)
	require.Equal(t, "DEAD", rows[2].SKU)
	require.True(t, rows[2].NoDemand)
}

func TestPlannedCRUD(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, staticProducts{}, NewCache(nil, time.Minute), UnitBoxes)
	ctx := context.Background()

	_, err := svc.CreatePlanned(ctx, PlannedEntry{ProductID: 1, QuantityBoxes: 0, Scope: ScopeCommitted})
	require.ErrorIs(t, err, shared.ErrValidation)
	_, err = svc.CreatePlanned(ctx, PlannedEntry{ProductID: 1, QuantityBoxes: 5, Scope: "maybe"})
	require.ErrorIs(t, err, shared.ErrValidation)

	created, err := svc.CreatePlanned(ctx, PlannedEntry{ProductID: 1, QuantityBoxes: 5, Scope: ScopeSimulation, Label: "spring order"})
	require.NoError(t, err)
	require.True(t, created.IsActive)

	created.QuantityBoxes = 8
	updated, err := svc.UpdatePlanned(ctx, created.ID, created)
	require.NoError(t, err)
	require.Equal(t, 8, updated.QuantityBoxes)

	require.NoError(t, svc.DeactivatePlanned(ctx, created.ID))
	entries, err := svc.ListPlanned(ctx, 1, false)
	require.NoError(t, err)
	require.Empty(t, entries)
	entries, err = svc.ListPlanned(ctx, 1, true)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	require.NoError(t, svc.DeletePlanned(ctx, created.ID))
	err = svc.DeletePlanned(ctx, created.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)
}
