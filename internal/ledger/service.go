package ledger

import (
	"context"
	"fmt"

	"github.com/warehouse-wrangler/warehouse-wrangler/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetAvailable(ctx context.Context, cartonID, productID int64) (int, error)
	ListCartons(ctx context.Context, filter CartonFilter) ([]Carton, error)
	GetCarton(ctx context.Context, id int64) (Carton, []Content, error)
	ListMovements(ctx context.Context, filter LogFilter) ([]LogEntry, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Invalidator bumps downstream caches after ledger mutations.
type Invalidator interface {
	Bump(ctx context.Context) error
}

// IdempotencyPort dedupes retried imports by client-supplied key.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// Service coordinates ledger operations.
type Service struct {
	repo        RepositoryPort
	audit       AuditPort
	invalidate  Invalidator
	idempotency IdempotencyPort
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort, invalidate Invalidator, idempotency IdempotencyPort) *Service {
	return &Service{repo: repo, audit: audit, invalidate: invalidate, idempotency: idempotency}
}

// GetAvailable returns boxes_current for a (carton, product) pair.
func (s *Service) GetAvailable(ctx context.Context, cartonID, productID int64) (int, error) {
	return s.repo.GetAvailable(ctx, cartonID, productID)
}

// ReceiveInput carries one packing-list import. IdempotencyKey is
// optional; when set, a retry of the same upload is rejected instead of
// doubling the stock.
type ReceiveInput struct {
	Rows           []ReceiptRow
	Location       Location
	ActorID        int64
	IdempotencyKey string
}

// ReceiveResult summarises a processed packing list.
type ReceiveResult struct {
	Cartons  []Carton  `json:"cartons"`
	Contents []Content `json:"contents"`
}

// Receive is the initial-receipt path: it creates or tops up cartons and
// their contents from already-parsed packing-list rows. All rows commit
// or none do.
func (s *Service) Receive(ctx context.Context, input ReceiveInput) (ReceiveResult, error) {
	if len(input.Rows) == 0 {
		return ReceiveResult{}, fmt.Errorf("ledger: no rows to receive: %w", shared.ErrValidation)
	}
	location := input.Location
	if location == "" {
		location = LocationIncoming
	}
	if _, err := ParseLocation(string(location)); err != nil {
		return ReceiveResult{}, err
	}
	for i, row := range input.Rows {
		if row.CartonNumber == "" {
			return ReceiveResult{}, fmt.Errorf("ledger: row %d: carton number required: %w", i+1, shared.ErrValidation)
		}
		if row.ProductSKU == "" {
			return ReceiveResult{}, fmt.Errorf("ledger: row %d: product sku required: %w", i+1, shared.ErrValidation)
		}
		if row.Boxes <= 0 {
			return ReceiveResult{}, fmt.Errorf("ledger: row %d: boxes must be positive: %w", i+1, shared.ErrValidation)
		}
	}

	insertedKey := false
	if s.idempotency != nil && input.IdempotencyKey != "" {
		if err := s.idempotency.CheckAndInsert(ctx, input.IdempotencyKey, "ledger.receive"); err != nil {
			return ReceiveResult{}, err
		}
		insertedKey = true
	}

	var result ReceiveResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		seen := make(map[string]Carton)
		for _, row := range input.Rows {
			carton, ok := seen[row.CartonNumber]
			if !ok {
				var err error
				carton, err = tx.UpsertCarton(ctx, row.CartonNumber, location)
				if err != nil {
					return err
				}
				seen[row.CartonNumber] = carton
				result.Cartons = append(result.Cartons, carton)
			}
			productID, err := tx.FindProductID(ctx, row.ProductSKU)
			if err != nil {
				return err
			}
			content, err := tx.AddReceiptBoxes(ctx, carton.ID, productID, row.Boxes)
			if err != nil {
				return err
			}
			result.Contents = append(result.Contents, content)
		}
		return nil
	})
	if err != nil {
		// Release the key so a corrected upload may retry with it.
		if insertedKey {
			_ = s.idempotency.Delete(ctx, input.IdempotencyKey)
		}
		return ReceiveResult{}, err
	}
	s.bump(ctx)
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  input.ActorID,
			Action:   "ledger:receive",
			Entity:   "carton",
			EntityID: fmt.Sprintf("rows:%d", len(input.Rows)),
			Meta:     map[string]any{"rows": len(input.Rows), "location": string(location)},
		})
	}
	return result, nil
}

// MoveCartons bulk-moves cartons to a new location. Archived cartons and
// cartons already at the target are skipped and reported, not errors.
func (s *Service) MoveCartons(ctx context.Context, ids []int64, target Location, actorID int64) (MoveResult, error) {
	if len(ids) == 0 {
		return MoveResult{}, fmt.Errorf("ledger: no cartons to move: %w", shared.ErrValidation)
	}
	if _, err := ParseLocation(string(target)); err != nil {
		return MoveResult{}, err
	}

	var result MoveResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		cartons, err := tx.GetCartonsForUpdate(ctx, ids)
		if err != nil {
			return err
		}
		found := make(map[int64]Carton, len(cartons))
		for _, c := range cartons {
			found[c.ID] = c
		}
		for _, id := range ids {
			carton, ok := found[id]
			if !ok {
				result.Skipped = append(result.Skipped, SkippedCarton{CartonID: id, Reason: "not found"})
				continue
			}
			if carton.Status == CartonArchived {
				result.Skipped = append(result.Skipped, SkippedCarton{CartonID: id, Reason: "archived"})
				continue
			}
			if carton.Location == target {
				result.Skipped = append(result.Skipped, SkippedCarton{CartonID: id, Reason: "already at location"})
				continue
			}
			if err := tx.SetCartonLocation(ctx, id, target); err != nil {
				return err
			}
			result.Moved = append(result.Moved, id)
		}
		return nil
	})
	if err != nil {
		return MoveResult{}, err
	}
	if len(result.Moved) > 0 {
		s.bump(ctx)
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actorID,
			Action:   "ledger:move",
			Entity:   "carton",
			EntityID: fmt.Sprintf("moved:%d", len(result.Moved)),
			Meta:     map[string]any{"target": string(target), "moved": result.Moved, "skipped": len(result.Skipped)},
		})
	}
	return result, nil
}

// ImportAmazonSnapshot replaces per-product Amazon stock from parsed
// snapshot rows.
func (s *Service) ImportAmazonSnapshot(ctx context.Context, rows []SnapshotRow, actorID int64) error {
	if len(rows) == 0 {
		return fmt.Errorf("ledger: no snapshot rows: %w", shared.ErrValidation)
	}
	for i, row := range rows {
		if row.ProductSKU == "" {
			return fmt.Errorf("ledger: row %d: product sku required: %w", i+1, shared.ErrValidation)
		}
		if row.Pairs < 0 {
			return fmt.Errorf("ledger: row %d: pairs must not be negative: %w", i+1, shared.ErrValidation)
		}
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		for _, row := range rows {
			productID, err := tx.FindProductID(ctx, row.ProductSKU)
			if err != nil {
				return err
			}
			if err := tx.UpsertAmazonStock(ctx, productID, row.Pairs); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.bump(ctx)
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actorID,
			Action:   "ledger:amazon_snapshot",
			Entity:   "amazon_stock",
			EntityID: fmt.Sprintf("rows:%d", len(rows)),
			Meta:     map[string]any{"rows": len(rows)},
		})
	}
	return nil
}

// ListCartons returns cartons matching the filter.
func (s *Service) ListCartons(ctx context.Context, filter CartonFilter) ([]Carton, error) {
	return s.repo.ListCartons(ctx, filter)
}

// GetCarton returns one carton with its contents.
func (s *Service) GetCarton(ctx context.Context, id int64) (Carton, []Content, error) {
	return s.repo.GetCarton(ctx, id)
}

// ListMovements returns movement log entries.
func (s *Service) ListMovements(ctx context.Context, filter LogFilter) ([]LogEntry, error) {
	return s.repo.ListMovements(ctx, filter)
}

func (s *Service) bump(ctx context.Context) {
	if s.invalidate == nil {
		return
	}
	// Cache invalidation is best effort; a stale dashboard is preferable
	// to failing the ledger write.
	_ = s.invalidate.Bump(ctx)
}
