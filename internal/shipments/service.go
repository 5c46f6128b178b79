package shipments

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/warehouse-wrangler/warehouse-wrangler/internal/ledger"
	"github.com/warehouse-wrangler/warehouse-wrangler/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	List(ctx context.Context, filter ListFilter) ([]Shipment, error)
	Get(ctx context.Context, id int64) (Shipment, []Content, error)
	AvailableForShipment(ctx context.Context) ([]Availability, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Invalidator bumps downstream caches after ledger-affecting changes.
type Invalidator interface {
	Bump(ctx context.Context) error
}

// MetricsPort counts lifecycle transitions and box flow.
type MetricsPort interface {
	ShipmentTransition(transition string)
	BoxesMoved(kind string, boxes int)
}

// Service coordinates shipment operations.
type Service struct {
	repo       RepositoryPort
	audit      AuditPort
	invalidate Invalidator
	metrics    MetricsPort
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort, invalidate Invalidator, metrics MetricsPort) *Service {
	return &Service{repo: repo, audit: audit, invalidate: invalidate, metrics: metrics}
}

// Create opens a new prepared shipment.
func (s *Service) Create(ctx context.Context, name string, actorID int64) (Shipment, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Shipment{}, fmt.Errorf("shipments: name required: %w", shared.ErrValidation)
	}
	var shipment Shipment
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		shipment, err = tx.CreateShipment(ctx, name, actorID)
		return err
	})
	if err != nil {
		return Shipment{}, err
	}
	s.record(ctx, actorID, "shipments:create", shipment.ID, map[string]any{"name": name})
	return shipment, nil
}

// AddBoxes reserves boxes on a prepared shipment. Each item succeeds or
// is skipped independently: an item asking for more than is free right
// now is reported with the free quantity instead of failing the batch.
// The call as a whole fails only when not a single item could be
// reserved; the skip report still comes back so the caller can see why.
func (s *Service) AddBoxes(ctx context.Context, shipmentID int64, items []Item, actorID int64) (AddResult, error) {
	if len(items) == 0 {
		return AddResult{}, fmt.Errorf("shipments: no items: %w", shared.ErrValidation)
	}
	for i, item := range items {
		if item.Boxes <= 0 {
			return AddResult{}, fmt.Errorf("shipments: item %d: boxes must be positive: %w", i+1, shared.ErrValidation)
		}
	}

	var result AddResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		shipment, err := tx.GetShipmentForUpdate(ctx, shipmentID)
		if err != nil {
			return err
		}
		if shipment.Status != StatusPrepared {
			return fmt.Errorf("shipments: cannot add boxes to %s shipment: %w", shipment.Status, shared.ErrInvalidState)
		}
		for _, item := range items {
			row, err := tx.ReservableBoxes(ctx, item.CartonID, item.ProductID)
			if err != nil {
				if errors.Is(err, shared.ErrNotFound) {
					result.Skipped = append(result.Skipped, SkippedItem{Item: item, Reason: "no such carton content"})
					continue
				}
				return err
			}
			if row.CartonStatus == ledger.CartonArchived {
				result.Skipped = append(result.Skipped, SkippedItem{Item: item, Available: row.Available(), Reason: "carton archived"})
				continue
			}
			if item.Boxes > row.Available() {
				result.Skipped = append(result.Skipped, SkippedItem{Item: item, Available: row.Available(), Reason: "insufficient free boxes"})
				continue
			}
			content, err := tx.UpsertContent(ctx, shipmentID, item.CartonID, item.ProductID, item.Boxes)
			if err != nil {
				return err
			}
			result.Added = append(result.Added, content)
		}
		return nil
	})
	if err != nil {
		return AddResult{}, err
	}
	if len(result.Added) == 0 {
		return result, fmt.Errorf("shipments: no items could be reserved: %w", shared.ErrInsufficientStock)
	}
	s.record(ctx, actorID, "shipments:add_boxes", shipmentID, map[string]any{
		"added": len(result.Added), "skipped": len(result.Skipped),
	})
	return result, nil
}

// RemoveBoxes releases reserved boxes from a prepared shipment.
func (s *Service) RemoveBoxes(ctx context.Context, shipmentID int64, items []Item, actorID int64) error {
	if len(items) == 0 {
		return fmt.Errorf("shipments: no items: %w", shared.ErrValidation)
	}
	for i, item := range items {
		if item.Boxes <= 0 {
			return fmt.Errorf("shipments: item %d: boxes must be positive: %w", i+1, shared.ErrValidation)
		}
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		shipment, err := tx.GetShipmentForUpdate(ctx, shipmentID)
		if err != nil {
			return err
		}
		if shipment.Status != StatusPrepared {
			return fmt.Errorf("shipments: cannot remove boxes from %s shipment: %w", shipment.Status, shared.ErrInvalidState)
		}
		for _, item := range items {
			if err := tx.ReduceContent(ctx, shipmentID, item.CartonID, item.ProductID, item.Boxes); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.record(ctx, actorID, "shipments:remove_boxes", shipmentID, map[string]any{"items": len(items)})
	return nil
}

// DeleteContent removes one reservation line by its row id. Prepared
// shipments only; nothing was committed so the ledger is untouched.
func (s *Service) DeleteContent(ctx context.Context, shipmentID, contentID int64, actorID int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		shipment, err := tx.GetShipmentForUpdate(ctx, shipmentID)
		if err != nil {
			return err
		}
		if shipment.Status != StatusPrepared {
			return fmt.Errorf("shipments: cannot remove content from %s shipment: %w", shipment.Status, shared.ErrInvalidState)
		}
		return tx.DeleteContent(ctx, shipmentID, contentID)
	})
	if err != nil {
		return err
	}
	s.record(ctx, actorID, "shipments:delete_content", shipmentID, map[string]any{"content_id": contentID})
	return nil
}

// Send debits the ledger for every reserved line and marks the shipment
// sent. The whole shipment goes or none of it does: any line the ledger
// cannot cover aborts the transaction.
func (s *Service) Send(ctx context.Context, shipmentID int64, actorID int64) (Shipment, error) {
	var boxesSent int
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		shipment, err := tx.GetShipmentForUpdate(ctx, shipmentID)
		if err != nil {
			return err
		}
		if !CanTransition(shipment.Status, StatusSent) {
			return fmt.Errorf("shipments: cannot send %s shipment: %w", shipment.Status, shared.ErrInvalidState)
		}
		contents, err := tx.GetContents(ctx, shipmentID)
		if err != nil {
			return err
		}
		if len(contents) == 0 {
			return fmt.Errorf("shipments: shipment is empty: %w", shared.ErrValidation)
		}
		for _, content := range contents {
			if _, err := tx.ApplyMovement(ctx, ledger.Movement{
				CartonID:   content.CartonID,
				ProductID:  content.ProductID,
				Delta:      -content.Boxes,
				Kind:       ledger.MovementSentToAmazon,
				ShipmentID: shipmentID,
				UserID:     actorID,
			}); err != nil {
				return err
			}
			boxesSent += content.Boxes
		}
		return tx.SetStatus(ctx, shipmentID, StatusSent, shipment.Note)
	})
	if err != nil {
		return Shipment{}, err
	}
	s.bump(ctx)
	if s.metrics != nil {
		s.metrics.ShipmentTransition("sent")
		s.metrics.BoxesMoved(string(ledger.MovementSentToAmazon), boxesSent)
	}
	s.record(ctx, actorID, "shipments:send", shipmentID, map[string]any{"boxes": boxesSent})
	shipment, _, err := s.repo.Get(ctx, shipmentID)
	return shipment, err
}

// Recall credits every sent line back to its carton and marks the
// shipment recalled. The note explains why and is kept on the record.
func (s *Service) Recall(ctx context.Context, shipmentID int64, note string, actorID int64) (Shipment, error) {
	note = strings.TrimSpace(note)
	if note == "" {
		return Shipment{}, fmt.Errorf("shipments: recall note required: %w", shared.ErrValidation)
	}
	var boxesRecalled int
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		shipment, err := tx.GetShipmentForUpdate(ctx, shipmentID)
		if err != nil {
			return err
		}
		if !CanTransition(shipment.Status, StatusRecalled) {
			return fmt.Errorf("shipments: cannot recall %s shipment: %w", shipment.Status, shared.ErrInvalidState)
		}
		contents, err := tx.GetContents(ctx, shipmentID)
		if err != nil {
			return err
		}
		for _, content := range contents {
			if _, err := tx.ApplyMovement(ctx, ledger.Movement{
				CartonID:   content.CartonID,
				ProductID:  content.ProductID,
				Delta:      content.Boxes,
				Kind:       ledger.MovementRecalled,
				ShipmentID: shipmentID,
				UserID:     actorID,
			}); err != nil {
				return err
			}
			boxesRecalled += content.Boxes
		}
		merged := note
		if shipment.Note != "" {
			merged = shipment.Note + "\n" + note
		}
		return tx.SetStatus(ctx, shipmentID, StatusRecalled, merged)
	})
	if err != nil {
		return Shipment{}, err
	}
	s.bump(ctx)
	if s.metrics != nil {
		s.metrics.ShipmentTransition("recalled")
		s.metrics.BoxesMoved(string(ledger.MovementRecalled), boxesRecalled)
	}
	s.record(ctx, actorID, "shipments:recall", shipmentID, map[string]any{"boxes": boxesRecalled})
	shipment, _, err := s.repo.Get(ctx, shipmentID)
	return shipment, err
}

// Delete removes a prepared shipment and releases its reservations.
// Sent and recalled shipments are history and stay.
func (s *Service) Delete(ctx context.Context, shipmentID int64, actorID int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		shipment, err := tx.GetShipmentForUpdate(ctx, shipmentID)
		if err != nil {
			return err
		}
		if shipment.Status != StatusPrepared {
			return fmt.Errorf("shipments: cannot delete %s shipment: %w", shipment.Status, shared.ErrInvalidState)
		}
		return tx.DeleteShipment(ctx, shipmentID)
	})
	if err != nil {
		return err
	}
	s.record(ctx, actorID, "shipments:delete", shipmentID, nil)
	return nil
}

// List returns shipments for the filter.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Shipment, error) {
	return s.repo.List(ctx, filter)
}

// Get returns one shipment with its contents.
func (s *Service) Get(ctx context.Context, id int64) (Shipment, []Content, error) {
	return s.repo.Get(ctx, id)
}

// AvailableForShipment lists free, reservation-aware stock.
func (s *Service) AvailableForShipment(ctx context.Context) ([]Availability, error) {
	return s.repo.AvailableForShipment(ctx)
}

func (s *Service) bump(ctx context.Context) {
	if s.invalidate == nil {
		return
	}
	_ = s.invalidate.Bump(ctx)
}

func (s *Service) record(ctx context.Context, actorID int64, action string, shipmentID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "shipment",
		EntityID: fmt.Sprintf("%d", shipmentID),
		Meta:     meta,
	})
}

