package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/warehouse-wrangler/warehouse-wrangler/internal/platform/db"
	"github.com/warehouse-wrangler/warehouse-wrangler/internal/shared"
)

// Queryer is the subset of pgx satisfied by both pgx.Tx and *pgxpool.Pool,
// letting the movement SQL run inside any caller-owned transaction.
type Queryer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Apply atomically adjusts a carton content by mv.Delta, mirrors the
// inverse on boxes_sent_to_amazon, appends a movement log row and
// recomputes the carton's empty/in-stock status. The SQL guard keeps
// boxes_current from going negative.
func Apply(ctx context.Context, q Queryer, mv Movement) (Content, error) {
	if mv.Delta == 0 {
		return Content{}, fmt.Errorf("ledger: zero delta: %w", shared.ErrValidation)
	}
	if mv.Kind != MovementSentToAmazon && mv.Kind != MovementRecalled {
		return Content{}, fmt.Errorf("ledger: unknown movement kind %q: %w", mv.Kind, shared.ErrValidation)
	}

	var content Content
	err := q.QueryRow(ctx, `UPDATE carton_contents
SET boxes_current = boxes_current + $3, boxes_sent_to_amazon = boxes_sent_to_amazon - $3
WHERE carton_id = $1 AND product_id = $2 AND boxes_current + $3 >= 0
RETURNING id, carton_id, product_id, boxes_initial, boxes_current, boxes_sent_to_amazon`,
		mv.CartonID, mv.ProductID, mv.Delta).
		Scan(&content.ID, &content.CartonID, &content.ProductID, &content.BoxesInitial, &content.BoxesCurrent, &content.BoxesSentToAmazon)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			var exists bool
			if checkErr := q.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM carton_contents WHERE carton_id = $1 AND product_id = $2)`,
				mv.CartonID, mv.ProductID).Scan(&exists); checkErr != nil {
				return Content{}, checkErr
			}
			if exists {
				return Content{}, fmt.Errorf("ledger: carton %d product %d: %w", mv.CartonID, mv.ProductID, shared.ErrInsufficientStock)
			}
			return Content{}, fmt.Errorf("ledger: carton %d product %d: %w", mv.CartonID, mv.ProductID, shared.ErrNotFound)
		}
		return Content{}, err
	}

	var shipmentID, userID any
	if mv.ShipmentID != 0 {
		shipmentID = mv.ShipmentID
	}
	if mv.UserID != 0 {
		userID = mv.UserID
	}
	if _, err := q.Exec(ctx, `INSERT INTO box_movements (carton_id, product_id, boxes, kind, shipment_id, user_id, created_at)
VALUES ($1, $2, $3, $4, $5, $6, NOW())`, mv.CartonID, mv.ProductID, mv.Delta, string(mv.Kind), shipmentID, userID); err != nil {
		return Content{}, err
	}

	if err := RecomputeCartonStatus(ctx, q, mv.CartonID); err != nil {
		return Content{}, err
	}
	return content, nil
}

// RecomputeCartonStatus flips a carton between empty and in-stock from
// the sum of its current boxes. Archived cartons stay archived.
func RecomputeCartonStatus(ctx context.Context, q Queryer, cartonID int64) error {
	_, err := q.Exec(ctx, `UPDATE cartons
SET status = CASE
	WHEN COALESCE((SELECT SUM(boxes_current) FROM carton_contents WHERE carton_id = $1), 0) = 0 THEN 'empty'
	ELSE 'in-stock'
END
WHERE id = $1 AND status <> 'archived'`, cartonID)
	return err
}

// Repository persists ledger data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations used by the service.
type TxRepository interface {
	FindProductID(ctx context.Context, sku string) (int64, error)
	UpsertCarton(ctx context.Context, number string, location Location) (Carton, error)
	AddReceiptBoxes(ctx context.Context, cartonID, productID int64, boxes int) (Content, error)
	GetCartonsForUpdate(ctx context.Context, ids []int64) ([]Carton, error)
	SetCartonLocation(ctx context.Context, id int64, location Location) error
	UpsertAmazonStock(ctx context.Context, productID int64, pairs int) error
	Apply(ctx context.Context, mv Movement) (Content, error)
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("ledger repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

// GetAvailable returns boxes_current for a (carton, product) pair.
func (r *Repository) GetAvailable(ctx context.Context, cartonID, productID int64) (int, error) {
	var boxes int
	err := r.pool.QueryRow(ctx, `SELECT boxes_current FROM carton_contents WHERE carton_id = $1 AND product_id = $2`,
		cartonID, productID).Scan(&boxes)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("ledger: carton %d product %d: %w", cartonID, productID, shared.ErrNotFound)
		}
		return 0, err
	}
	return boxes, nil
}

// ListCartons returns cartons matching the filter.
func (r *Repository) ListCartons(ctx context.Context, filter CartonFilter) ([]Carton, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 200
	}
	var location, status any
	if filter.Location != nil {
		location = string(*filter.Location)
	}
	if filter.Status != nil {
		status = string(*filter.Status)
	}
	rows, err := r.pool.Query(ctx, `SELECT id, number, location, status, created_at, updated_at
FROM cartons
WHERE ($1::text IS NULL OR location = $1) AND ($2::text IS NULL OR status = $2)
ORDER BY number ASC
LIMIT $3 OFFSET $4`, location, status, limit, filter.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	cartons := []Carton{}
	for rows.Next() {
		var c Carton
		if err := rows.Scan(&c.ID, &c.Number, &c.Location, &c.Status, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		cartons = append(cartons, c)
	}
	return cartons, rows.Err()
}

// GetCarton returns a carton with its contents.
func (r *Repository) GetCarton(ctx context.Context, id int64) (Carton, []Content, error) {
	var c Carton
	err := r.pool.QueryRow(ctx, `SELECT id, number, location, status, created_at, updated_at FROM cartons WHERE id = $1`, id).
		Scan(&c.ID, &c.Number, &c.Location, &c.Status, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Carton{}, nil, fmt.Errorf("ledger: carton %d: %w", id, shared.ErrNotFound)
		}
		return Carton{}, nil, err
	}
	rows, err := r.pool.Query(ctx, `SELECT id, carton_id, product_id, boxes_initial, boxes_current, boxes_sent_to_amazon
FROM carton_contents WHERE carton_id = $1 ORDER BY product_id`, id)
	if err != nil {
		return Carton{}, nil, err
	}
	defer rows.Close()
	contents := []Content{}
	for rows.Next() {
		var content Content
		if err := rows.Scan(&content.ID, &content.CartonID, &content.ProductID, &content.BoxesInitial, &content.BoxesCurrent, &content.BoxesSentToAmazon); err != nil {
			return Carton{}, nil, err
		}
		contents = append(contents, content)
	}
	return c, contents, rows.Err()
}

// ListMovements returns movement log entries matching the filter.
func (r *Repository) ListMovements(ctx context.Context, filter LogFilter) ([]LogEntry, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 200
	}
	var cartonID, productID, shipmentID any
	if filter.CartonID != 0 {
		cartonID = filter.CartonID
	}
	if filter.ProductID != 0 {
		productID = filter.ProductID
	}
	if filter.ShipmentID != 0 {
		shipmentID = filter.ShipmentID
	}
	rows, err := r.pool.Query(ctx, `SELECT id, carton_id, product_id, boxes, kind, COALESCE(shipment_id, 0), COALESCE(user_id, 0), created_at
FROM box_movements
WHERE ($1::bigint IS NULL OR carton_id = $1)
  AND ($2::bigint IS NULL OR product_id = $2)
  AND ($3::bigint IS NULL OR shipment_id = $3)
ORDER BY created_at DESC, id DESC
LIMIT $4`, cartonID, productID, shipmentID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	entries := []LogEntry{}
	for rows.Next() {
		var e LogEntry
		if err := rows.Scan(&e.ID, &e.CartonID, &e.ProductID, &e.Boxes, &e.Kind, &e.ShipmentID, &e.UserID, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *txRepository) FindProductID(ctx context.Context, sku string) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `SELECT id FROM products WHERE sku = $1`, sku).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("ledger: product %q: %w", sku, shared.ErrNotFound)
		}
		return 0, err
	}
	return id, nil
}

func (r *txRepository) UpsertCarton(ctx context.Context, number string, location Location) (Carton, error) {
	var c Carton
	err := r.tx.QueryRow(ctx, `INSERT INTO cartons (number, location, status, created_at, updated_at)
VALUES ($1, $2, 'in-stock', NOW(), NOW())
ON CONFLICT (number) DO UPDATE SET updated_at = NOW()
RETURNING id, number, location, status, created_at, updated_at`, number, string(location)).
		Scan(&c.ID, &c.Number, &c.Location, &c.Status, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func (r *txRepository) AddReceiptBoxes(ctx context.Context, cartonID, productID int64, boxes int) (Content, error) {
	var content Content
	err := r.tx.QueryRow(ctx, `INSERT INTO carton_contents (carton_id, product_id, boxes_initial, boxes_current, boxes_sent_to_amazon)
VALUES ($1, $2, $3, $3, 0)
ON CONFLICT (carton_id, product_id) DO UPDATE
SET boxes_initial = carton_contents.boxes_initial + EXCLUDED.boxes_initial,
    boxes_current = carton_contents.boxes_current + EXCLUDED.boxes_current
RETURNING id, carton_id, product_id, boxes_initial, boxes_current, boxes_sent_to_amazon`,
		cartonID, productID, boxes).
		Scan(&content.ID, &content.CartonID, &content.ProductID, &content.BoxesInitial, &content.BoxesCurrent, &content.BoxesSentToAmazon)
	if err != nil {
		return Content{}, err
	}
	if err := RecomputeCartonStatus(ctx, r.tx, cartonID); err != nil {
		return Content{}, err
	}
	return content, nil
}

func (r *txRepository) GetCartonsForUpdate(ctx context.Context, ids []int64) ([]Carton, error) {
	rows, err := r.tx.Query(ctx, `SELECT id, number, location, status, created_at, updated_at
FROM cartons WHERE id = ANY($1) ORDER BY id FOR UPDATE`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	cartons := []Carton{}
	for rows.Next() {
		var c Carton
		if err := rows.Scan(&c.ID, &c.Number, &c.Location, &c.Status, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		cartons = append(cartons, c)
	}
	return cartons, rows.Err()
}

func (r *txRepository) SetCartonLocation(ctx context.Context, id int64, location Location) error {
	_, err := r.tx.Exec(ctx, `UPDATE cartons SET location = $2, updated_at = NOW() WHERE id = $1`, id, string(location))
	return err
}

func (r *txRepository) UpsertAmazonStock(ctx context.Context, productID int64, pairs int) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO amazon_stock (product_id, pairs, updated_at)
VALUES ($1, $2, NOW())
ON CONFLICT (product_id) DO UPDATE SET pairs = EXCLUDED.pairs, updated_at = NOW()`, productID, pairs)
	return err
}

func (r *txRepository) Apply(ctx context.Context, mv Movement) (Content, error) {
	return Apply(ctx, r.tx, mv)
}
