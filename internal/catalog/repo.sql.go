package catalog

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/warehouse-wrangler/warehouse-wrangler/internal/shared"
)

// Repository gives the catalog service access to the products table.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository builds Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const productColumns = `id, sku, name, pairs_per_box, average_weekly_sales, seasonal_factors, is_active, created_at, updated_at`

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	var factors []float64
	err := row.Scan(&p.ID, &p.SKU, &p.Name, &p.PairsPerBox, &p.AverageWeeklySales, &factors, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return Product{}, err
	}
	copy(p.SeasonalFactors[:], factors)
	return p, nil
}

// List returns products matching the filter plus the unpaged total.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Product, int, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM products WHERE 1=1`
	args := []any{}
	argCount := 0

	if filter.Search != "" {
		argCount++
		clause := ` AND (sku ILIKE $` + strconv.Itoa(argCount) + ` OR name ILIKE $` + strconv.Itoa(argCount) + `)`
		query += clause
		countQuery += clause
		args = append(args, "%"+filter.Search+"%")
	}
	if filter.IsActive != nil {
		argCount++
		clause := ` AND is_active = $` + strconv.Itoa(argCount)
		query += clause
		countQuery += clause
		args = append(args, *filter.IsActive)
	}

	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count products: %w", err)
	}

	query += ` ORDER BY sku ASC`
	if filter.Limit > 0 {
		argCount++
		query += ` LIMIT $` + strconv.Itoa(argCount)
		args = append(args, filter.Limit)
		argCount++
		query += ` OFFSET $` + strconv.Itoa(argCount)
		args = append(args, filter.Offset)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, err
		}
		products = append(products, p)
	}
	return products, total, rows.Err()
}

// Get returns one product by id.
func (r *Repository) Get(ctx context.Context, id int64) (Product, error) {
	p, err := scanProduct(r.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, fmt.Errorf("product %d: %w", id, shared.ErrNotFound)
	}
	return p, err
}

// GetBySKU returns one product by SKU.
func (r *Repository) GetBySKU(ctx context.Context, sku string) (Product, error) {
	p, err := scanProduct(r.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE sku = $1`, sku))
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, fmt.Errorf("product %q: %w", sku, shared.ErrNotFound)
	}
	return p, err
}

// Create inserts a product.
func (r *Repository) Create(ctx context.Context, p Product) (Product, error) {
	now := time.Now()
	err := r.pool.QueryRow(ctx, `
		INSERT INTO products (sku, name, pairs_per_box, average_weekly_sales, seasonal_factors, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		RETURNING id`,
		p.SKU, p.Name, p.PairsPerBox, p.AverageWeeklySales, p.SeasonalFactors[:], p.IsActive, now,
	).Scan(&p.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return Product{}, ErrDuplicateSKU
		}
		return Product{}, fmt.Errorf("create product: %w", err)
	}
	p.CreatedAt = now
	p.UpdatedAt = now
	return p, nil
}

// Update rewrites a product row.
func (r *Repository) Update(ctx context.Context, id int64, p Product) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE products
		SET sku = $1, name = $2, pairs_per_box = $3, average_weekly_sales = $4,
		    seasonal_factors = $5, is_active = $6, updated_at = $7
		WHERE id = $8`,
		p.SKU, p.Name, p.PairsPerBox, p.AverageWeeklySales, p.SeasonalFactors[:], p.IsActive, time.Now(), id,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateSKU
		}
		return fmt.Errorf("update product: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("product %d: %w", id, shared.ErrNotFound)
	}
	return nil
}

// Delete removes a product unless stock or shipment records still
// reference it.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	var referenced bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM carton_contents WHERE product_id = $1)
		    OR EXISTS (SELECT 1 FROM shipment_contents WHERE product_id = $1)
		    OR EXISTS (SELECT 1 FROM planned_stock WHERE product_id = $1)
		    OR EXISTS (SELECT 1 FROM amazon_stock WHERE product_id = $1)`,
		id,
	).Scan(&referenced)
	if err != nil {
		return fmt.Errorf("check product references: %w", err)
	}
	if referenced {
		return ErrProductReferenced
	}
	tag, err := r.pool.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("product %d: %w", id, shared.ErrNotFound)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
