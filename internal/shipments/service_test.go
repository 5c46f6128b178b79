package shipments

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/warehouse-wrangler/warehouse-wrangler/internal/ledger"
	"github.com/warehouse-wrangler/warehouse-wrangler/internal/shared"
)

type ledgerRow struct {
	current int
	sent    int
}

type contentRef struct {
	shipmentID int64
	key        string
}

type memoryRepo struct {
	shipments    map[int64]Shipment
	contents     map[int64]map[string]int
	contentRows  map[int64]contentRef
	stock        map[string]*ledgerRow
	cartonStatus map[int64]ledger.CartonStatus
	movements    []ledger.Movement
	nextID       int64
	nextRowID    int64
}

type memoryTx struct {
	repo *memoryRepo
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		shipments:    make(map[int64]Shipment),
		contents:     make(map[int64]map[string]int),
		contentRows:  make(map[int64]contentRef),
		stock:        make(map[string]*ledgerRow),
		cartonStatus: make(map[int64]ledger.CartonStatus),
	}
}

func stockKey(cartonID, productID int64) string {
	return fmt.Sprintf("%d:%d", cartonID, productID)
}

func (r *memoryRepo) seedStock(cartonID, productID int64, boxes int) {
	r.stock[stockKey(cartonID, productID)] = &ledgerRow{current: boxes}
	if _, ok := r.cartonStatus[cartonID]; !ok {
		r.cartonStatus[cartonID] = ledger.CartonInStock
	}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryTx{repo: r})
}

func (r *memoryRepo) List(ctx context.Context, filter ListFilter) ([]Shipment, error) {
	var result []Shipment
	for _, s := range r.shipments {
		if filter.Status != nil && s.Status != *filter.Status {
			continue
		}
		result = append(result, s)
	}
	return result, nil
}

func (r *memoryRepo) Get(ctx context.Context, id int64) (Shipment, []Content, error) {
	s, ok := r.shipments[id]
	if !ok {
		return Shipment{}, nil, fmt.Errorf("shipment %d: %w", id, shared.ErrNotFound)
	}
	var contents []Content
	for key, boxes := range r.contents[id] {
		var cartonID, productID int64
		fmt.Sscanf(key, "%d:%d", &cartonID, &productID)
		contents = append(contents, Content{ShipmentID: id, CartonID: cartonID, ProductID: productID, Boxes: boxes})
	}
	return s, contents, nil
}

func (r *memoryRepo) AvailableForShipment(ctx context.Context) ([]Availability, error) {
	var result []Availability
	for key, row := range r.stock {
		var cartonID, productID int64
		fmt.Sscanf(key, "%d:%d", &cartonID, &productID)
		if r.cartonStatus[cartonID] != ledger.CartonInStock {
			continue
		}
		reserved := r.reserved(cartonID, productID)
		if row.current-reserved <= 0 {
			continue
		}
		result = append(result, Availability{
			CartonID:     cartonID,
			ProductID:    productID,
			BoxesCurrent: row.current,
			Reserved:     reserved,
			Available:    row.current - reserved,
		})
	}
	return result, nil
}

func (r *memoryRepo) reserved(cartonID, productID int64) int {
	total := 0
	key := stockKey(cartonID, productID)
	for shipmentID, lines := range r.contents {
		if r.shipments[shipmentID].Status != StatusPrepared {
			continue
		}
		total += lines[key]
	}
	return total
}

func (tx *memoryTx) CreateShipment(ctx context.Context, name string, createdBy int64) (Shipment, error) {
	for _, s := range tx.repo.shipments {
		if s.Name == name {
			return Shipment{}, ErrDuplicateName
		}
	}
	tx.repo.nextID++
	s := Shipment{ID: tx.repo.nextID, Name: name, Status: StatusPrepared, CreatedBy: createdBy, CreatedAt: time.Now()}
	tx.repo.shipments[s.ID] = s
	tx.repo.contents[s.ID] = make(map[string]int)
	return s, nil
}

func (tx *memoryTx) GetShipmentForUpdate(ctx context.Context, id int64) (Shipment, error) {
	s, ok := tx.repo.shipments[id]
	if !ok {
		return Shipment{}, fmt.Errorf("shipment %d: %w", id, shared.ErrNotFound)
	}
	return s, nil
}

func (tx *memoryTx) SetStatus(ctx context.Context, id int64, status Status, note string) error {
	s := tx.repo.shipments[id]
	s.Status = status
	s.Note = note
	now := time.Now()
	switch status {
	case StatusSent:
		s.SentAt = &now
	case StatusRecalled:
		s.RecalledAt = &now
	}
	tx.repo.shipments[id] = s
	return nil
}

func (tx *memoryTx) DeleteShipment(ctx context.Context, id int64) error {
	delete(tx.repo.shipments, id)
	delete(tx.repo.contents, id)
	return nil
}

func (tx *memoryTx) GetContents(ctx context.Context, shipmentID int64) ([]Content, error) {
	var contents []Content
	for key, boxes := range tx.repo.contents[shipmentID] {
		var cartonID, productID int64
		fmt.Sscanf(key, "%d:%d", &cartonID, &productID)
		contents = append(contents, Content{ShipmentID: shipmentID, CartonID: cartonID, ProductID: productID, Boxes: boxes})
	}
	return contents, nil
}

func (tx *memoryTx) ReservableBoxes(ctx context.Context, cartonID, productID int64) (ReservableRow, error) {
	row, ok := tx.repo.stock[stockKey(cartonID, productID)]
	if !ok {
		return ReservableRow{}, fmt.Errorf("carton %d product %d: %w", cartonID, productID, shared.ErrNotFound)
	}
	return ReservableRow{
		BoxesCurrent: row.current,
		Reserved:     tx.repo.reserved(cartonID, productID),
		CartonStatus: tx.repo.cartonStatus[cartonID],
	}, nil
}

func (tx *memoryTx) UpsertContent(ctx context.Context, shipmentID, cartonID, productID int64, boxes int) (Content, error) {
	key := stockKey(cartonID, productID)
	tx.repo.contents[shipmentID][key] += boxes
	tx.repo.nextRowID++
	tx.repo.contentRows[tx.repo.nextRowID] = contentRef{shipmentID: shipmentID, key: key}
	return Content{
		ID:         tx.repo.nextRowID,
		ShipmentID: shipmentID,
		CartonID:   cartonID,
		ProductID:  productID,
		Boxes:      tx.repo.contents[shipmentID][key],
	}, nil
}

func (tx *memoryTx) ReduceContent(ctx context.Context, shipmentID, cartonID, productID int64, boxes int) error {
	key := stockKey(cartonID, productID)
	if tx.repo.contents[shipmentID][key] < boxes {
		return fmt.Errorf("fewer boxes reserved than requested: %w", shared.ErrInsufficientStock)
	}
	tx.repo.contents[shipmentID][key] -= boxes
	if tx.repo.contents[shipmentID][key] == 0 {
		delete(tx.repo.contents[shipmentID], key)
	}
	return nil
}

func (tx *memoryTx) DeleteContent(ctx context.Context, shipmentID, contentID int64) error {
	ref, ok := tx.repo.contentRows[contentID]
	if !ok || ref.shipmentID != shipmentID {
		return fmt.Errorf("content %d: %w", contentID, shared.ErrNotFound)
	}
	delete(tx.repo.contents[shipmentID], ref.key)
	delete(tx.repo.contentRows, contentID)
	return nil
}

func (tx *memoryTx) ApplyMovement(ctx context.Context, mv ledger.Movement) (ledger.Content, error) {
	row, ok := tx.repo.stock[stockKey(mv.CartonID, mv.ProductID)]
	if !ok {
		return ledger.Content{}, shared.ErrNotFound
	}
	if row.current+mv.Delta < 0 {
		return ledger.Content{}, fmt.Errorf("carton %d: %w", mv.CartonID, shared.ErrInsufficientStock)
	}
	row.current += mv.Delta
	row.sent -= mv.Delta
	tx.repo.movements = append(tx.repo.movements, mv)
	return ledger.Content{CartonID: mv.CartonID, ProductID: mv.ProductID, BoxesCurrent: row.current, BoxesSentToAmazon: row.sent}, nil
}

type fakeMetrics struct {
	transitions []string
	boxes       map[string]int
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{boxes: make(map[string]int)}
}

func (m *fakeMetrics) ShipmentTransition(transition string) {
	m.transitions = append(m.transitions, transition)
}

func (m *fakeMetrics) BoxesMoved(kind string, boxes int) {
	m.boxes[kind] += boxes
}

func TestReservationsCompeteForFreeStock(t *testing.T) {
	repo := newMemoryRepo()
	repo.seedStock(1, 1, 10)
	svc := NewService(repo, nil, nil, newFakeMetrics())
	ctx := context.Background()

	s1, err := svc.Create(ctx, "FBA-1", 7)
	require.NoError(t, err)
	s2, err := svc.Create(ctx, "FBA-2", 7)
	require.NoError(t, err)

	// S1 reserves 6 of the 10 free boxes.
	result, err := svc.AddBoxes(ctx, s1.ID, []Item{{CartonID: 1, ProductID: 1, Boxes: 6}}, 7)
	require.NoError(t, err)
	require.Len(t, result.Added, 1)
	require.Empty(t, result.Skipped)

	// S2 only sees 4 free.
	available, err := svc.AvailableForShipment(ctx)
	require.NoError(t, err)
	require.Len(t, available, 1)
	require.Equal(t, 4, available[0].Available)
	require.Equal(t, 6, available[0].Reserved)

	// S2 asking for 5 reserves nothing, which fails the call; the skip
	// report still says how many boxes were free.
	result, err = svc.AddBoxes(ctx, s2.ID, []Item{{CartonID: 1, ProductID: 1, Boxes: 5}}, 7)
	require.ErrorIs(t, err, shared.ErrInsufficientStock)
	require.Empty(t, result.Added)
	require.Len(t, result.Skipped, 1)
	require.Equal(t, 4, result.Skipped[0].Available)
	require.Equal(t, "insufficient free boxes", result.Skipped[0].Reason)

	// 4 boxes still fit.
	result, err = svc.AddBoxes(ctx, s2.ID, []Item{{CartonID: 1, ProductID: 1, Boxes: 4}}, 7)
	require.NoError(t, err)
	require.Len(t, result.Added, 1)

	available, err = svc.AvailableForShipment(ctx)
	require.NoError(t, err)
	require.Empty(t, available)
}

func TestSendDebitsLedgerAndRecallRestores(t *testing.T) {
	repo := newMemoryRepo()
	repo.seedStock(1, 1, 10)
	metrics := newFakeMetrics()
	bump := &countingInvalidator{}
	svc := NewService(repo, nil, bump, metrics)
	ctx := context.Background()

	shipment, err := svc.Create(ctx, "FBA-1", 7)
	require.NoError(t, err)
	_, err = svc.AddBoxes(ctx, shipment.ID, []Item{{CartonID: 1, ProductID: 1, Boxes: 6}}, 7)
	require.NoError(t, err)

	sent, err := svc.Send(ctx, shipment.ID, 7)
	require.NoError(t, err)
	require.Equal(t, StatusSent, sent.Status)
	require.NotNil(t, sent.SentAt)
	require.Equal(t, 4, repo.stock[stockKey(1, 1)].current)
	require.Equal(t, 6, repo.stock[stockKey(1, 1)].sent)
	require.Equal(t, []string{"sent"}, metrics.transitions)
	require.Equal(t, 6, metrics.boxes[string(ledger.MovementSentToAmazon)])
	require.Equal(t, 1, bump.bumps)

	// Sending twice is an invalid transition.
	_, err = svc.Send(ctx, shipment.ID, 7)
	require.ErrorIs(t, err, shared.ErrInvalidState)

	recalled, err := svc.Recall(ctx, shipment.ID, "label misprint", 7)
	require.NoError(t, err)
	require.Equal(t, StatusRecalled, recalled.Status)
	require.Contains(t, recalled.Note, "label misprint")
	require.NotNil(t, recalled.RecalledAt)
	require.Equal(t, 10, repo.stock[stockKey(1, 1)].current)
	require.Equal(t, 0, repo.stock[stockKey(1, 1)].sent)
	require.Equal(t, 6, metrics.boxes[string(ledger.MovementRecalled)])

	// recalled is terminal
	_, err = svc.Recall(ctx, shipment.ID, "again", 7)
	require.ErrorIs(t, err, shared.ErrInvalidState)
	_, err = svc.Send(ctx, shipment.ID, 7)
	require.ErrorIs(t, err, shared.ErrInvalidState)
}

func TestSendIsAllOrNothing(t *testing.T) {
	repo := newMemoryRepo()
	repo.seedStock(1, 1, 10)
	repo.seedStock(2, 1, 3)
	svc := NewService(repo, nil, nil, nil)
	ctx := context.Background()

	shipment, err := svc.Create(ctx, "FBA-1", 7)
	require.NoError(t, err)
	_, err = svc.AddBoxes(ctx, shipment.ID, []Item{
		{CartonID: 1, ProductID: 1, Boxes: 6},
		{CartonID: 2, ProductID: 1, Boxes: 3},
	}, 7)
	require.NoError(t, err)

	// Stock vanishes out from under the reservation.
	repo.stock[stockKey(2, 1)].current = 1

	_, err = svc.Send(ctx, shipment.ID, 7)
	require.ErrorIs(t, err, shared.ErrInsufficientStock)

	shipmentAfter, _, err := svc.Get(ctx, shipment.ID)
	require.NoError(t, err)
	require.Equal(t, StatusPrepared, shipmentAfter.Status)
}

func TestSendRejectsEmptyShipment(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil, nil)
	ctx := context.Background()

	shipment, err := svc.Create(ctx, "FBA-1", 7)
	require.NoError(t, err)
	_, err = svc.Send(ctx, shipment.ID, 7)
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestAddBoxesGuards(t *testing.T) {
	repo := newMemoryRepo()
	repo.seedStock(1, 1, 10)
	repo.seedStock(2, 1, 5)
	repo.cartonStatus[2] = ledger.CartonArchived
	svc := NewService(repo, nil, nil, nil)
	ctx := context.Background()

	shipment, err := svc.Create(ctx, "FBA-1", 7)
	require.NoError(t, err)

	result, err := svc.AddBoxes(ctx, shipment.ID, []Item{
		{CartonID: 2, ProductID: 1, Boxes: 1},
		{CartonID: 9, ProductID: 1, Boxes: 1},
		{CartonID: 1, ProductID: 1, Boxes: 1},
	}, 7)
	require.NoError(t, err)
	require.Len(t, result.Added, 1)
	require.Len(t, result.Skipped, 2)
	require.Equal(t, "carton archived", result.Skipped[0].Reason)
	require.Equal(t, "no such carton content", result.Skipped[1].Reason)

	_, err = svc.AddBoxes(ctx, shipment.ID, []Item{{CartonID: 1, ProductID: 1, Boxes: 0}}, 7)
	require.ErrorIs(t, err, shared.ErrValidation)

	// Mutations only apply to prepared shipments.
	require.NoError(t, repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.SetStatus(ctx, shipment.ID, StatusSent, "")
	}))
	_, err = svc.AddBoxes(ctx, shipment.ID, []Item{{CartonID: 1, ProductID: 1, Boxes: 1}}, 7)
	require.ErrorIs(t, err, shared.ErrInvalidState)
	err = svc.RemoveBoxes(ctx, shipment.ID, []Item{{CartonID: 1, ProductID: 1, Boxes: 1}}, 7)
	require.ErrorIs(t, err, shared.ErrInvalidState)
}

func TestAddBoxesFailsWhenNothingReserved(t *testing.T) {
	repo := newMemoryRepo()
	repo.seedStock(1, 1, 4)
	svc := NewService(repo, nil, nil, nil)
	ctx := context.Background()

	shipment, err := svc.Create(ctx, "FBA-1", 7)
	require.NoError(t, err)

	// Every line skipped means the round reserved nothing: that is a
	// failure, not an empty success.
	result, err := svc.AddBoxes(ctx, shipment.ID, []Item{{CartonID: 1, ProductID: 1, Boxes: 5}}, 7)
	require.ErrorIs(t, err, shared.ErrInsufficientStock)
	require.Empty(t, result.Added)
	require.Len(t, result.Skipped, 1)
	require.Equal(t, 4, result.Skipped[0].Available)

	// No reservation leaked from the failed round.
	available, err := svc.AvailableForShipment(ctx)
	require.NoError(t, err)
	require.Equal(t, 4, available[0].Available)
	require.Equal(t, 0, available[0].Reserved)
}

func TestRemoveBoxesReleasesReservation(t *testing.T) {
	repo := newMemoryRepo()
	repo.seedStock(1, 1, 10)
	svc := NewService(repo, nil, nil, nil)
	ctx := context.Background()

	shipment, err := svc.Create(ctx, "FBA-1", 7)
	require.NoError(t, err)
	_, err = svc.AddBoxes(ctx, shipment.ID, []Item{{CartonID: 1, ProductID: 1, Boxes: 6}}, 7)
	require.NoError(t, err)

	require.NoError(t, svc.RemoveBoxes(ctx, shipment.ID, []Item{{CartonID: 1, ProductID: 1, Boxes: 2}}, 7))
	available, err := svc.AvailableForShipment(ctx)
	require.NoError(t, err)
	require.Equal(t, 6, available[0].Available)

	err = svc.RemoveBoxes(ctx, shipment.ID, []Item{{CartonID: 1, ProductID: 1, Boxes: 99}}, 7)
	require.ErrorIs(t, err, shared.ErrInsufficientStock)
}

func TestDeleteContentDropsWholeLine(t *testing.T) {
	repo := newMemoryRepo()
	repo.seedStock(1, 1, 10)
	svc := NewService(repo, nil, nil, nil)
	ctx := context.Background()

	shipment, err := svc.Create(ctx, "FBA-1", 7)
	require.NoError(t, err)
	result, err := svc.AddBoxes(ctx, shipment.ID, []Item{{CartonID: 1, ProductID: 1, Boxes: 6}}, 7)
	require.NoError(t, err)
	require.Len(t, result.Added, 1)

	require.NoError(t, svc.DeleteContent(ctx, shipment.ID, result.Added[0].ID, 7))
	available, err := svc.AvailableForShipment(ctx)
	require.NoError(t, err)
	require.Equal(t, 10, available[0].Available)

	err = svc.DeleteContent(ctx, shipment.ID, result.Added[0].ID, 7)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestDeleteOnlyPrepared(t *testing.T) {
	repo := newMemoryRepo()
	repo.seedStock(1, 1, 10)
	svc := NewService(repo, nil, nil, nil)
	ctx := context.Background()

	shipment, err := svc.Create(ctx, "FBA-1", 7)
	require.NoError(t, err)
	_, err = svc.AddBoxes(ctx, shipment.ID, []Item{{CartonID: 1, ProductID: 1, Boxes: 6}}, 7)
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, shipment.ID, 7))

	// Deleting released the reservation.
	available, err := svc.AvailableForShipment(ctx)
	require.NoError(t, err)
	require.Equal(t, 10, available[0].Available)

	other, err := svc.Create(ctx, "FBA-2", 7)
	require.NoError(t, err)
	_, err = svc.AddBoxes(ctx, other.ID, []Item{{CartonID: 1, ProductID: 1, Boxes: 1}}, 7)
	require.NoError(t, err)
	_, err = svc.Send(ctx, other.ID, 7)
	require.NoError(t, err)
	err = svc.Delete(ctx, other.ID, 7)
	require.ErrorIs(t, err, shared.ErrInvalidState)
}

func TestCreateRejectsDuplicateName(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil, nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, "FBA-1", 7)
	require.NoError(t, err)
	_, err = svc.Create(ctx, "FBA-1", 7)
	require.ErrorIs(t, err, shared.ErrDuplicateReference)

	_, err = svc.Create(ctx, "   ", 7)
	require.ErrorIs(t, err, shared.ErrValidation)
}

type countingInvalidator struct {
	bumps int
}

func (c *countingInvalidator) Bump(ctx context.Context) error {
	c.bumps++
	return nil
}
