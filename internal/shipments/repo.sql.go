package shipments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/warehouse-wrangler/warehouse-wrangler/internal/ledger"
	"github.com/warehouse-wrangler/warehouse-wrangler/internal/platform/db"
	"github.com/warehouse-wrangler/warehouse-wrangler/internal/shared"
)

// Repository gives the shipment service access to shipment tables and,
// inside transactions, to the box ledger.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository builds Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes the operations available inside one shipment
// transaction.
type TxRepository interface {
	CreateShipment(ctx context.Context, name string, createdBy int64) (Shipment, error)
	GetShipmentForUpdate(ctx context.Context, id int64) (Shipment, error)
	SetStatus(ctx context.Context, id int64, status Status, note string) error
	DeleteShipment(ctx context.Context, id int64) error
	GetContents(ctx context.Context, shipmentID int64) ([]Content, error)
	ReservableBoxes(ctx context.Context, cartonID, productID int64) (ReservableRow, error)
	UpsertContent(ctx context.Context, shipmentID, cartonID, productID int64, boxes int) (Content, error)
	ReduceContent(ctx context.Context, shipmentID, cartonID, productID int64, boxes int) error
	DeleteContent(ctx context.Context, shipmentID, contentID int64) error
	ApplyMovement(ctx context.Context, mv ledger.Movement) (ledger.Content, error)
}

// ReservableRow is the locked free-stock view AddBoxes decides on.
type ReservableRow struct {
	BoxesCurrent int
	Reserved     int
	CartonStatus ledger.CartonStatus
}

// Available is boxes not spoken for by any prepared shipment.
func (r ReservableRow) Available() int {
	return r.BoxesCurrent - r.Reserved
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

const shipmentColumns = `id, name, status, note, created_by, created_at, updated_at, sent_at, recalled_at`

func scanShipment(row pgx.Row) (Shipment, error) {
	var s Shipment
	err := row.Scan(&s.ID, &s.Name, &s.Status, &s.Note, &s.CreatedBy, &s.CreatedAt, &s.UpdatedAt, &s.SentAt, &s.RecalledAt)
	return s, err
}

// List returns shipments matching the filter, newest first.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Shipment, error) {
	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+shipmentColumns+`
		FROM amazon_shipments
		WHERE ($1::text IS NULL OR status = $1)
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3`,
		filter.Status, limit, filter.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list shipments: %w", err)
	}
	defer rows.Close()

	var shipments []Shipment
	for rows.Next() {
		s, err := scanShipment(rows)
		if err != nil {
			return nil, err
		}
		shipments = append(shipments, s)
	}
	return shipments, rows.Err()
}

// Get returns one shipment with its contents, carton numbers and SKUs
// joined in for display.
func (r *Repository) Get(ctx context.Context, id int64) (Shipment, []Content, error) {
	shipment, err := scanShipment(r.pool.QueryRow(ctx, `SELECT `+shipmentColumns+` FROM amazon_shipments WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Shipment{}, nil, fmt.Errorf("shipment %d: %w", id, shared.ErrNotFound)
	}
	if err != nil {
		return Shipment{}, nil, fmt.Errorf("get shipment: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT sc.id, sc.shipment_id, sc.carton_id, sc.product_id, sc.boxes, c.number, p.sku
		FROM shipment_contents sc
		JOIN cartons c ON c.id = sc.carton_id
		JOIN products p ON p.id = sc.product_id
		WHERE sc.shipment_id = $1
		ORDER BY c.number, p.sku`,
		id,
	)
	if err != nil {
		return Shipment{}, nil, fmt.Errorf("get shipment contents: %w", err)
	}
	defer rows.Close()

	var contents []Content
	for rows.Next() {
		var c Content
		if err := rows.Scan(&c.ID, &c.ShipmentID, &c.CartonID, &c.ProductID, &c.Boxes, &c.CartonNum, &c.ProductSKU); err != nil {
			return Shipment{}, nil, err
		}
		contents = append(contents, c)
	}
	return shipment, contents, rows.Err()
}

// AvailableForShipment lists in-stock ledger rows with prepared
// reservations subtracted. Rows with nothing free are omitted.
func (r *Repository) AvailableForShipment(ctx context.Context) ([]Availability, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT cc.carton_id, c.number, cc.product_id, p.sku, cc.boxes_current,
		       COALESCE(res.boxes, 0) AS reserved
		FROM carton_contents cc
		JOIN cartons c ON c.id = cc.carton_id
		JOIN products p ON p.id = cc.product_id
		LEFT JOIN (
			SELECT sc.carton_id, sc.product_id, SUM(sc.boxes) AS boxes
			FROM shipment_contents sc
			JOIN amazon_shipments s ON s.id = sc.shipment_id
			WHERE s.status = 'prepared'
			GROUP BY sc.carton_id, sc.product_id
		) res ON res.carton_id = cc.carton_id AND res.product_id = cc.product_id
		WHERE c.status = 'in-stock'
		  AND cc.boxes_current - COALESCE(res.boxes, 0) > 0
		ORDER BY c.number, p.sku`,
	)
	if err != nil {
		return nil, fmt.Errorf("available for shipment: %w", err)
	}
	defer rows.Close()

	var result []Availability
	for rows.Next() {
		var a Availability
		if err := rows.Scan(&a.CartonID, &a.CartonNumber, &a.ProductID, &a.ProductSKU, &a.BoxesCurrent, &a.Reserved); err != nil {
			return nil, err
		}
		a.Available = a.BoxesCurrent - a.Reserved
		result = append(result, a)
	}
	return result, rows.Err()
}

func (r *txRepository) CreateShipment(ctx context.Context, name string, createdBy int64) (Shipment, error) {
	now := time.Now()
	shipment := Shipment{Name: name, Status: StatusPrepared, CreatedBy: createdBy, CreatedAt: now, UpdatedAt: now}
	err := r.tx.QueryRow(ctx, `
		INSERT INTO amazon_shipments (name, status, note, created_by, created_at, updated_at)
		VALUES ($1, 'prepared', '', $2, $3, $3)
		RETURNING id`,
		name, createdBy, now,
	).Scan(&shipment.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Shipment{}, ErrDuplicateName
		}
		return Shipment{}, fmt.Errorf("create shipment: %w", err)
	}
	return shipment, nil
}

func (r *txRepository) GetShipmentForUpdate(ctx context.Context, id int64) (Shipment, error) {
	shipment, err := scanShipment(r.tx.QueryRow(ctx, `SELECT `+shipmentColumns+` FROM amazon_shipments WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Shipment{}, fmt.Errorf("shipment %d: %w", id, shared.ErrNotFound)
	}
	if err != nil {
		return Shipment{}, fmt.Errorf("lock shipment: %w", err)
	}
	return shipment, nil
}

func (r *txRepository) SetStatus(ctx context.Context, id int64, status Status, note string) error {
	var stamp string
	switch status {
	case StatusSent:
		stamp = `, sent_at = now()`
	case StatusRecalled:
		stamp = `, recalled_at = now()`
	}
	_, err := r.tx.Exec(ctx, `
		UPDATE amazon_shipments
		SET status = $2, note = $3, updated_at = now()`+stamp+`
		WHERE id = $1`,
		id, status, note,
	)
	if err != nil {
		return fmt.Errorf("set shipment status: %w", err)
	}
	return nil
}

func (r *txRepository) DeleteShipment(ctx context.Context, id int64) error {
	if _, err := r.tx.Exec(ctx, `DELETE FROM shipment_contents WHERE shipment_id = $1`, id); err != nil {
		return fmt.Errorf("delete shipment contents: %w", err)
	}
	if _, err := r.tx.Exec(ctx, `DELETE FROM amazon_shipments WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete shipment: %w", err)
	}
	return nil
}

func (r *txRepository) GetContents(ctx context.Context, shipmentID int64) ([]Content, error) {
	rows, err := r.tx.Query(ctx, `
		SELECT id, shipment_id, carton_id, product_id, boxes
		FROM shipment_contents
		WHERE shipment_id = $1
		ORDER BY id`,
		shipmentID,
	)
	if err != nil {
		return nil, fmt.Errorf("shipment contents: %w", err)
	}
	defer rows.Close()

	var contents []Content
	for rows.Next() {
		var c Content
		if err := rows.Scan(&c.ID, &c.ShipmentID, &c.CartonID, &c.ProductID, &c.Boxes); err != nil {
			return nil, err
		}
		contents = append(contents, c)
	}
	return contents, rows.Err()
}

// ReservableBoxes locks the ledger row and returns current stock with
// the prepared-shipment reservation total.
func (r *txRepository) ReservableBoxes(ctx context.Context, cartonID, productID int64) (ReservableRow, error) {
	var row ReservableRow
	err := r.tx.QueryRow(ctx, `
		SELECT cc.boxes_current, c.status
		FROM carton_contents cc
		JOIN cartons c ON c.id = cc.carton_id
		WHERE cc.carton_id = $1 AND cc.product_id = $2
		FOR UPDATE OF cc`,
		cartonID, productID,
	).Scan(&row.BoxesCurrent, &row.CartonStatus)
	if errors.Is(err, pgx.ErrNoRows) {
		return ReservableRow{}, fmt.Errorf("carton %d product %d: %w", cartonID, productID, shared.ErrNotFound)
	}
	if err != nil {
		return ReservableRow{}, fmt.Errorf("lock ledger row: %w", err)
	}
	err = r.tx.QueryRow(ctx, `
		SELECT COALESCE(SUM(sc.boxes), 0)
		FROM shipment_contents sc
		JOIN amazon_shipments s ON s.id = sc.shipment_id
		WHERE sc.carton_id = $1 AND sc.product_id = $2 AND s.status = 'prepared'`,
		cartonID, productID,
	).Scan(&row.Reserved)
	if err != nil {
		return ReservableRow{}, fmt.Errorf("sum reservations: %w", err)
	}
	return row, nil
}

func (r *txRepository) UpsertContent(ctx context.Context, shipmentID, cartonID, productID int64, boxes int) (Content, error) {
	content := Content{ShipmentID: shipmentID, CartonID: cartonID, ProductID: productID}
	err := r.tx.QueryRow(ctx, `
		INSERT INTO shipment_contents (shipment_id, carton_id, product_id, boxes)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (shipment_id, carton_id, product_id)
		DO UPDATE SET boxes = shipment_contents.boxes + EXCLUDED.boxes
		RETURNING id, boxes`,
		shipmentID, cartonID, productID, boxes,
	).Scan(&content.ID, &content.Boxes)
	if err != nil {
		return Content{}, fmt.Errorf("upsert shipment content: %w", err)
	}
	return content, nil
}

// ReduceContent shrinks a reservation, deleting the line at zero. It
// refuses to remove more boxes than are reserved.
func (r *txRepository) ReduceContent(ctx context.Context, shipmentID, cartonID, productID int64, boxes int) error {
	tag, err := r.tx.Exec(ctx, `
		UPDATE shipment_contents
		SET boxes = boxes - $4
		WHERE shipment_id = $1 AND carton_id = $2 AND product_id = $3 AND boxes >= $4`,
		shipmentID, cartonID, productID, boxes,
	)
	if err != nil {
		return fmt.Errorf("reduce shipment content: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("shipment %d has fewer than %d boxes reserved for carton %d product %d: %w",
			shipmentID, boxes, cartonID, productID, shared.ErrInsufficientStock)
	}
	if _, err := r.tx.Exec(ctx, `
		DELETE FROM shipment_contents
		WHERE shipment_id = $1 AND carton_id = $2 AND product_id = $3 AND boxes = 0`,
		shipmentID, cartonID, productID,
	); err != nil {
		return fmt.Errorf("prune empty shipment content: %w", err)
	}
	return nil
}

// DeleteContent drops one reservation line outright.
func (r *txRepository) DeleteContent(ctx context.Context, shipmentID, contentID int64) error {
	tag, err := r.tx.Exec(ctx, `
		DELETE FROM shipment_contents
		WHERE id = $2 AND shipment_id = $1`,
		shipmentID, contentID,
	)
	if err != nil {
		return fmt.Errorf("delete shipment content: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("shipment %d content %d: %w", shipmentID, contentID, shared.ErrNotFound)
	}
	return nil
}

func (r *txRepository) ApplyMovement(ctx context.Context, mv ledger.Movement) (ledger.Content, error) {
	return ledger.Apply(ctx, r.tx, mv)
}
