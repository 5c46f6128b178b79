package ledger

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/warehouse-wrangler/warehouse-wrangler/internal/shared"
)

type memoryRepo struct {
	cartons      map[int64]Carton
	cartonByNum  map[string]int64
	contents     map[string]Content
	products     map[string]int64
	amazonStock  map[int64]int
	movements    []LogEntry
	nextCartonID int64
	nextRowID    int64
}

type memoryTx struct {
	repo *memoryRepo
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		cartons:     make(map[int64]Carton),
		cartonByNum: make(map[string]int64),
		contents:    make(map[string]Content),
		products:    make(map[string]int64),
		amazonStock: make(map[int64]int),
	}
}

func contentKey(cartonID, productID int64) string {
	return fmt.Sprintf("%d:%d", cartonID, productID)
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryTx{repo: r})
}

func (r *memoryRepo) GetAvailable(ctx context.Context, cartonID, productID int64) (int, error) {
	content, ok := r.contents[contentKey(cartonID, productID)]
	if !ok {
		return 0, shared.ErrNotFound
	}
	return content.BoxesCurrent, nil
}

func (r *memoryRepo) ListCartons(ctx context.Context, filter CartonFilter) ([]Carton, error) {
	var result []Carton
	for _, c := range r.cartons {
		if filter.Location != nil && c.Location != *filter.Location {
			continue
		}
		if filter.Status != nil && c.Status != *filter.Status {
			continue
		}
		result = append(result, c)
	}
	return result, nil
}

func (r *memoryRepo) GetCarton(ctx context.Context, id int64) (Carton, []Content, error) {
	carton, ok := r.cartons[id]
	if !ok {
		return Carton{}, nil, shared.ErrNotFound
	}
	var contents []Content
	for _, c := range r.contents {
		if c.CartonID == id {
			contents = append(contents, c)
		}
	}
	return carton, contents, nil
}

func (r *memoryRepo) ListMovements(ctx context.Context, filter LogFilter) ([]LogEntry, error) {
	var result []LogEntry
	for _, m := range r.movements {
		if filter.CartonID != 0 && m.CartonID != filter.CartonID {
			continue
		}
		if filter.ShipmentID != 0 && m.ShipmentID != filter.ShipmentID {
			continue
		}
		result = append(result, m)
	}
	return result, nil
}

func (tx *memoryTx) FindProductID(ctx context.Context, sku string) (int64, error) {
	id, ok := tx.repo.products[sku]
	if !ok {
		return 0, fmt.Errorf("product %q: %w", sku, shared.ErrNotFound)
	}
	return id, nil
}

func (tx *memoryTx) UpsertCarton(ctx context.Context, number string, location Location) (Carton, error) {
	if id, ok := tx.repo.cartonByNum[number]; ok {
		return tx.repo.cartons[id], nil
	}
	tx.repo.nextCartonID++
	carton := Carton{ID: tx.repo.nextCartonID, Number: number, Location: location, Status: CartonInStock}
	tx.repo.cartons[carton.ID] = carton
	tx.repo.cartonByNum[number] = carton.ID
	return carton, nil
}

func (tx *memoryTx) AddReceiptBoxes(ctx context.Context, cartonID, productID int64, boxes int) (Content, error) {
	key := contentKey(cartonID, productID)
	content, ok := tx.repo.contents[key]
	if !ok {
		tx.repo.nextRowID++
		content = Content{ID: tx.repo.nextRowID, CartonID: cartonID, ProductID: productID}
	}
	content.BoxesInitial += boxes
	content.BoxesCurrent += boxes
	tx.repo.contents[key] = content
	tx.repo.recomputeStatus(cartonID)
	return content, nil
}

func (tx *memoryTx) GetCartonsForUpdate(ctx context.Context, ids []int64) ([]Carton, error) {
	var result []Carton
	for _, id := range ids {
		if c, ok := tx.repo.cartons[id]; ok {
			result = append(result, c)
		}
	}
	return result, nil
}

func (tx *memoryTx) SetCartonLocation(ctx context.Context, id int64, location Location) error {
	carton, ok := tx.repo.cartons[id]
	if !ok {
		return shared.ErrNotFound
	}
	carton.Location = location
	tx.repo.cartons[id] = carton
	return nil
}

func (tx *memoryTx) UpsertAmazonStock(ctx context.Context, productID int64, pairs int) error {
	tx.repo.amazonStock[productID] = pairs
	return nil
}

func (tx *memoryTx) Apply(ctx context.Context, mv Movement) (Content, error) {
	key := contentKey(mv.CartonID, mv.ProductID)
	content, ok := tx.repo.contents[key]
	if !ok {
		return Content{}, shared.ErrNotFound
	}
	if content.BoxesCurrent+mv.Delta < 0 {
		return Content{}, fmt.Errorf("carton %d product %d: %w", mv.CartonID, mv.ProductID, shared.ErrInsufficientStock)
	}
	content.BoxesCurrent += mv.Delta
	content.BoxesSentToAmazon -= mv.Delta
	tx.repo.contents[key] = content
	tx.repo.movements = append(tx.repo.movements, LogEntry{
		ID:         int64(len(tx.repo.movements) + 1),
		CartonID:   mv.CartonID,
		ProductID:  mv.ProductID,
		Boxes:      mv.Delta,
		Kind:       mv.Kind,
		ShipmentID: mv.ShipmentID,
		UserID:     mv.UserID,
	})
	tx.repo.recomputeStatus(mv.CartonID)
	return content, nil
}

func (r *memoryRepo) recomputeStatus(cartonID int64) {
	carton, ok := r.cartons[cartonID]
	if !ok || carton.Status == CartonArchived {
		return
	}
	total := 0
	for _, c := range r.contents {
		if c.CartonID == cartonID {
			total += c.BoxesCurrent
		}
	}
	if total == 0 {
		carton.Status = CartonEmpty
	} else {
		carton.Status = CartonInStock
	}
	r.cartons[cartonID] = carton
}

type countingInvalidator struct {
	bumps int
}

func (c *countingInvalidator) Bump(ctx context.Context) error {
	c.bumps++
	return nil
}

func seedProduct(repo *memoryRepo, sku string) int64 {
	id := int64(len(repo.products) + 1)
	repo.products[sku] = id
	return id
}

func TestReceiveCreatesAndTopsUpCartons(t *testing.T) {
	repo := newMemoryRepo()
	seedProduct(repo, "SKU-A")
	seedProduct(repo, "SKU-B")
	bump := &countingInvalidator{}
	svc := NewService(repo, nil, bump, nil)
	ctx := context.Background()

	result, err := svc.Receive(ctx, ReceiveInput{Rows: []ReceiptRow{
		{CartonNumber: "C-001", ProductSKU: "SKU-A", Boxes: 10},
		{CartonNumber: "C-001", ProductSKU: "SKU-B", Boxes: 4},
		{CartonNumber: "C-002", ProductSKU: "SKU-A", Boxes: 6},
	}})
	require.NoError(t, err)
	require.Len(t, result.Cartons, 2)
	require.Len(t, result.Contents, 3)
	require.Equal(t, LocationIncoming, result.Cartons[0].Location)
	require.Equal(t, 1, bump.bumps)

	// Receiving the same carton again accumulates instead of duplicating.
	result, err = svc.Receive(ctx, ReceiveInput{Rows: []ReceiptRow{
		{CartonNumber: "C-001", ProductSKU: "SKU-A", Boxes: 5},
	}, Location: LocationWML})
	require.NoError(t, err)
	require.Equal(t, 15, result.Contents[0].BoxesInitial)
	require.Equal(t, 15, result.Contents[0].BoxesCurrent)
}

type memoryIdempotency struct {
	keys map[string]string
}

func newMemoryIdempotency() *memoryIdempotency {
	return &memoryIdempotency{keys: make(map[string]string)}
}

func (m *memoryIdempotency) CheckAndInsert(ctx context.Context, key, module string) error {
	if _, ok := m.keys[key]; ok {
		return shared.ErrIdempotencyConflict
	}
	m.keys[key] = module
	return nil
}

func (m *memoryIdempotency) Delete(ctx context.Context, key string) error {
	delete(m.keys, key)
	return nil
}

func TestReceiveDedupesByIdempotencyKey(t *testing.T) {
	repo := newMemoryRepo()
	seedProduct(repo, "SKU-A")
	store := newMemoryIdempotency()
	svc := NewService(repo, nil, nil, store)
	ctx := context.Background()

	rows := []ReceiptRow{{CartonNumber: "C-001", ProductSKU: "SKU-A", Boxes: 10}}
	_, err := svc.Receive(ctx, ReceiveInput{Rows: rows, IdempotencyKey: "upload-1"})
	require.NoError(t, err)

	// A retried upload with the same key must not double the stock.
	_, err = svc.Receive(ctx, ReceiveInput{Rows: rows, IdempotencyKey: "upload-1"})
	require.ErrorIs(t, err, shared.ErrIdempotencyConflict)
	require.Len(t, repo.cartons, 1)
	require.Equal(t, 10, repo.contents[contentKey(1, 1)].BoxesCurrent)

	// A failed import releases its key so the corrected retry goes through.
	_, err = svc.Receive(ctx, ReceiveInput{
		Rows:           []ReceiptRow{{CartonNumber: "C-002", ProductSKU: "NOPE", Boxes: 1}},
		IdempotencyKey: "upload-2",
	})
	require.ErrorIs(t, err, shared.ErrNotFound)
	_, err = svc.Receive(ctx, ReceiveInput{
		Rows:           []ReceiptRow{{CartonNumber: "C-002", ProductSKU: "SKU-A", Boxes: 1}},
		IdempotencyKey: "upload-2",
	})
	require.NoError(t, err)
}

func TestReceiveRejectsBadRowsAtomically(t *testing.T) {
	repo := newMemoryRepo()
	seedProduct(repo, "SKU-A")
	svc := NewService(repo, nil, nil, nil)
	ctx := context.Background()

	_, err := svc.Receive(ctx, ReceiveInput{Rows: []ReceiptRow{
		{CartonNumber: "C-001", ProductSKU: "SKU-A", Boxes: 10},
		{CartonNumber: "C-002", ProductSKU: "SKU-A", Boxes: 0},
	}})
	require.ErrorIs(t, err, shared.ErrValidation)
	require.Empty(t, repo.cartons)

	_, err = svc.Receive(ctx, ReceiveInput{Rows: nil})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Receive(ctx, ReceiveInput{
		Rows:     []ReceiptRow{{CartonNumber: "C-001", ProductSKU: "SKU-A", Boxes: 1}},
		Location: "Narnia",
	})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestMoveCartonsSkipsAndReports(t *testing.T) {
	repo := newMemoryRepo()
	repo.cartons[1] = Carton{ID: 1, Number: "C-001", Location: LocationIncoming, Status: CartonInStock}
	repo.cartons[2] = Carton{ID: 2, Number: "C-002", Location: LocationWML, Status: CartonInStock}
	repo.cartons[3] = Carton{ID: 3, Number: "C-003", Location: LocationIncoming, Status: CartonArchived}
	bump := &countingInvalidator{}
	svc := NewService(repo, nil, bump, nil)

	result, err := svc.MoveCartons(context.Background(), []int64{1, 2, 3, 99}, LocationWML, 7)
	require.NoError(t, err)
	require.Equal(t, []int64{1}, result.Moved)
	require.Len(t, result.Skipped, 3)

	reasons := map[int64]string{}
	for _, s := range result.Skipped {
		reasons[s.CartonID] = s.Reason
	}
	require.Equal(t, "already at location", reasons[2])
	require.Equal(t, "archived", reasons[3])
	require.Equal(t, "not found", reasons[99])
	require.Equal(t, LocationWML, repo.cartons[1].Location)
	require.Equal(t, 1, bump.bumps)
}

func TestMoveCartonsNoopSkipsCacheBump(t *testing.T) {
	repo := newMemoryRepo()
	repo.cartons[1] = Carton{ID: 1, Number: "C-001", Location: LocationWML, Status: CartonInStock}
	bump := &countingInvalidator{}
	svc := NewService(repo, nil, bump, nil)

	result, err := svc.MoveCartons(context.Background(), []int64{1}, LocationWML, 7)
	require.NoError(t, err)
	require.Empty(t, result.Moved)
	require.Equal(t, 0, bump.bumps)
}

func TestImportAmazonSnapshotReplacesStock(t *testing.T) {
	repo := newMemoryRepo()
	idA := seedProduct(repo, "SKU-A")
	svc := NewService(repo, nil, nil, nil)
	ctx := context.Background()

	err := svc.ImportAmazonSnapshot(ctx, []SnapshotRow{{ProductSKU: "SKU-A", Pairs: 240}}, 7)
	require.NoError(t, err)
	require.Equal(t, 240, repo.amazonStock[idA])

	err = svc.ImportAmazonSnapshot(ctx, []SnapshotRow{{ProductSKU: "SKU-A", Pairs: 180}}, 7)
	require.NoError(t, err)
	require.Equal(t, 180, repo.amazonStock[idA])

	err = svc.ImportAmazonSnapshot(ctx, []SnapshotRow{{ProductSKU: "SKU-A", Pairs: -1}}, 7)
	require.ErrorIs(t, err, shared.ErrValidation)

	err = svc.ImportAmazonSnapshot(ctx, []SnapshotRow{{ProductSKU: "NOPE", Pairs: 1}}, 7)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestApplyConservationAndStatus(t *testing.T) {
	repo := newMemoryRepo()
	seedProduct(repo, "SKU-A")
	svc := NewService(repo, nil, nil, nil)
	ctx := context.Background()

	_, err := svc.Receive(ctx, ReceiveInput{Rows: []ReceiptRow{
		{CartonNumber: "C-001", ProductSKU: "SKU-A", Boxes: 10},
	}})
	require.NoError(t, err)

	tx := &memoryTx{repo: repo}
	content, err := tx.Apply(ctx, Movement{CartonID: 1, ProductID: 1, Delta: -10, Kind: MovementSentToAmazon, ShipmentID: 5, UserID: 7})
	require.NoError(t, err)
	require.Equal(t, 0, content.BoxesCurrent)
	require.Equal(t, 10, content.BoxesSentToAmazon)
	require.Equal(t, content.BoxesInitial, content.BoxesCurrent+content.BoxesSentToAmazon)
	require.Equal(t, CartonEmpty, repo.cartons[1].Status)

	// Recall restores the boxes and flips the carton back to in-stock.
	content, err = tx.Apply(ctx, Movement{CartonID: 1, ProductID: 1, Delta: 10, Kind: MovementRecalled, ShipmentID: 5, UserID: 7})
	require.NoError(t, err)
	require.Equal(t, 10, content.BoxesCurrent)
	require.Equal(t, 0, content.BoxesSentToAmazon)
	require.Equal(t, CartonInStock, repo.cartons[1].Status)

	_, err = tx.Apply(ctx, Movement{CartonID: 1, ProductID: 1, Delta: -11, Kind: MovementSentToAmazon, ShipmentID: 5, UserID: 7})
	require.True(t, errors.Is(err, shared.ErrInsufficientStock))

	movements, err := svc.ListMovements(ctx, LogFilter{CartonID: 1})
	require.NoError(t, err)
	require.Len(t, movements, 2)
	require.Equal(t, MovementSentToAmazon, movements[0].Kind)
	require.Equal(t, MovementRecalled, movements[1].Kind)
}
