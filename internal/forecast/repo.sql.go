package forecast

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/warehouse-wrangler/warehouse-wrangler/internal/ledger"
	"github.com/warehouse-wrangler/warehouse-wrangler/internal/shared"
)

// Repository reads the ledger snapshot and owns the planned_stock
// table. Forecast math itself never touches the database.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository builds Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// StockSnapshots returns per-product pairs by location plus the last
// imported Amazon figures. Archived cartons are excluded.
func (r *Repository) StockSnapshots(ctx context.Context) (map[int64]StockSnapshot, error) {
	snapshots := make(map[int64]StockSnapshot)

	rows, err := r.pool.Query(ctx, `
		SELECT cc.product_id, c.location, SUM(cc.boxes_current * p.pairs_per_box)
		FROM carton_contents cc
		JOIN cartons c ON c.id = cc.carton_id
		JOIN products p ON p.id = cc.product_id
		WHERE c.status <> 'archived'
		GROUP BY cc.product_id, c.location`,
	)
	if err != nil {
		return nil, fmt.Errorf("stock by location: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var productID int64
		var location ledger.Location
		var pairs int
		if err := rows.Scan(&productID, &location, &pairs); err != nil {
			return nil, err
		}
		snapshot := snapshots[productID]
		switch location {
		case ledger.LocationIncoming:
			snapshot.IncomingPairs = pairs
		case ledger.LocationWML:
			snapshot.WMLPairs = pairs
		case ledger.LocationGMR:
			snapshot.GMRPairs = pairs
		}
		snapshots[productID] = snapshot
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	amazonRows, err := r.pool.Query(ctx, `SELECT product_id, pairs FROM amazon_stock`)
	if err != nil {
		return nil, fmt.Errorf("amazon stock: %w", err)
	}
	defer amazonRows.Close()
	for amazonRows.Next() {
		var productID int64
		var pairs int
		if err := amazonRows.Scan(&productID, &pairs); err != nil {
			return nil, err
		}
		snapshot := snapshots[productID]
		snapshot.AmazonPairs = pairs
		snapshots[productID] = snapshot
	}
	return snapshots, amazonRows.Err()
}

const plannedColumns = `id, product_id, quantity_boxes, eta_date, scope, is_active, label, created_at, updated_at`

func scanPlanned(row pgx.Row) (PlannedEntry, error) {
	var e PlannedEntry
	err := row.Scan(&e.ID, &e.ProductID, &e.QuantityBoxes, &e.ETADate, &e.Scope, &e.IsActive, &e.Label, &e.CreatedAt, &e.UpdatedAt)
	return e, err
}

// PlannedByProduct returns active planned entries grouped by product.
func (r *Repository) PlannedByProduct(ctx context.Context) (map[int64][]PlannedEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+plannedColumns+`
		FROM planned_stock
		WHERE is_active
		ORDER BY product_id, eta_date NULLS FIRST, id`,
	)
	if err != nil {
		return nil, fmt.Errorf("planned stock: %w", err)
	}
	defer rows.Close()

	result := make(map[int64][]PlannedEntry)
	for rows.Next() {
		entry, err := scanPlanned(rows)
		if err != nil {
			return nil, err
		}
		result[entry.ProductID] = append(result[entry.ProductID], entry)
	}
	return result, rows.Err()
}

// ListPlanned returns planned entries, optionally for one product and
// optionally including soft-deleted rows.
func (r *Repository) ListPlanned(ctx context.Context, productID int64, includeInactive bool) ([]PlannedEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+plannedColumns+`
		FROM planned_stock
		WHERE ($1 = 0 OR product_id = $1)
		  AND ($2 OR is_active)
		ORDER BY eta_date NULLS FIRST, id`,
		productID, includeInactive,
	)
	if err != nil {
		return nil, fmt.Errorf("list planned stock: %w", err)
	}
	defer rows.Close()

	var entries []PlannedEntry
	for rows.Next() {
		entry, err := scanPlanned(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// GetPlanned returns one planned entry.
func (r *Repository) GetPlanned(ctx context.Context, id int64) (PlannedEntry, error) {
	entry, err := scanPlanned(r.pool.QueryRow(ctx, `SELECT `+plannedColumns+` FROM planned_stock WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return PlannedEntry{}, fmt.Errorf("planned stock %d: %w", id, shared.ErrNotFound)
	}
	return entry, err
}

// CreatePlanned inserts a planned entry.
func (r *Repository) CreatePlanned(ctx context.Context, e PlannedEntry) (PlannedEntry, error) {
	now := time.Now()
	err := r.pool.QueryRow(ctx, `
		INSERT INTO planned_stock (product_id, quantity_boxes, eta_date, scope, is_active, label, created_at, updated_at)
		VALUES ($1, $2, $3, $4, true, $5, $6, $6)
		RETURNING id`,
		e.ProductID, e.QuantityBoxes, e.ETADate, e.Scope, e.Label, now,
	).Scan(&e.ID)
	if err != nil {
		return PlannedEntry{}, fmt.Errorf("create planned stock: %w", err)
	}
	e.IsActive = true
	e.CreatedAt = now
	e.UpdatedAt = now
	return e, nil
}

// UpdatePlanned rewrites a planned entry.
func (r *Repository) UpdatePlanned(ctx context.Context, id int64, e PlannedEntry) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE planned_stock
		SET quantity_boxes = $2, eta_date = $3, scope = $4, is_active = $5, label = $6, updated_at = $7
		WHERE id = $1`,
		id, e.QuantityBoxes, e.ETADate, e.Scope, e.IsActive, e.Label, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("update planned stock: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("planned stock %d: %w", id, shared.ErrNotFound)
	}
	return nil
}

// DeactivatePlanned soft-deletes a planned entry.
func (r *Repository) DeactivatePlanned(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE planned_stock SET is_active = false, updated_at = now() WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("deactivate planned stock: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("planned stock %d: %w", id, shared.ErrNotFound)
	}
	return nil
}

// DeletePlanned hard-deletes a planned entry.
func (r *Repository) DeletePlanned(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM planned_stock WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete planned stock: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("planned stock %d: %w", id, shared.ErrNotFound)
	}
	return nil
}
