package catalog

import (
	"errors"
	"fmt"
	"time"

	"github.com/warehouse-wrangler/warehouse-wrangler/internal/shared"
)

// ErrProductReferenced is returned when deleting a product that still
// appears in carton contents, shipments, or planning data.
var ErrProductReferenced = fmt.Errorf("product is referenced by stock records: %w", shared.ErrInvalidState)

// ErrDuplicateSKU is returned when a create or update collides with an
// existing SKU.
var ErrDuplicateSKU = fmt.Errorf("sku already exists: %w", shared.ErrDuplicateReference)

// Product is one sellable style. Stock for a product is counted in
// boxes of PairsPerBox pairs each.
type Product struct {
	ID                 int64       `json:"id"`
	SKU                string      `json:"sku"`
	Name               string      `json:"name"`
	PairsPerBox        int         `json:"pairs_per_box"`
	AverageWeeklySales float64     `json:"average_weekly_sales"`
	SeasonalFactors    [12]float64 `json:"seasonal_factors"`
	IsActive           bool        `json:"is_active"`
	CreatedAt          time.Time   `json:"created_at"`
	UpdatedAt          time.Time   `json:"updated_at"`
}

// Validate checks the fields a create or update must supply.
func (p Product) Validate() error {
	var problems []error
	if p.SKU == "" {
		problems = append(problems, errors.New("sku is required"))
	}
	if p.Name == "" {
		problems = append(problems, errors.New("name is required"))
	}
	if p.PairsPerBox <= 0 {
		problems = append(problems, errors.New("pairs_per_box must be positive"))
	}
	if p.AverageWeeklySales < 0 {
		problems = append(problems, errors.New("average_weekly_sales must not be negative"))
	}
	for i, factor := range p.SeasonalFactors {
		if factor < 0 {
			problems = append(problems, fmt.Errorf("seasonal factor for month %d must not be negative", i+1))
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("catalog: %w: %w", shared.ErrValidation, errors.Join(problems...))
	}
	return nil
}

// DefaultSeasonalFactors is a flat-demand year.
func DefaultSeasonalFactors() [12]float64 {
	return [12]float64{1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1}
}

// ListFilter narrows product listings.
type ListFilter struct {
	Search   string
	IsActive *bool
	Limit    int
	Offset   int
}
