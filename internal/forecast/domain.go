package forecast

import (
	"fmt"
	"time"

	"github.com/warehouse-wrangler/warehouse-wrangler/internal/shared"
)

// Unit is the unit average_weekly_sales is entered in.
type Unit string

const (
	// UnitBoxes means sales figures count boxes.
	UnitBoxes Unit = "boxes"
	// UnitPairs means sales figures count pairs.
	UnitPairs Unit = "pairs"
)

// Scope separates committed inbound stock from what-if entries.
type Scope string

const (
	// ScopeCommitted entries are ordered stock with a real ETA.
	ScopeCommitted Scope = "committed"
	// ScopeSimulation entries only exist for planning games.
	ScopeSimulation Scope = "simulation"
)

// ParseScope validates a scope string.
func ParseScope(value string) (Scope, error) {
	switch Scope(value) {
	case ScopeCommitted, ScopeSimulation:
		return Scope(value), nil
	default:
		return "", fmt.Errorf("unknown scope %q: %w", value, shared.ErrValidation)
	}
}

// PlannedEntry is forecasted future inbound stock not yet in the
// ledger.
type PlannedEntry struct {
	ID            int64      `json:"id"`
	ProductID     int64      `json:"product_id"`
	QuantityBoxes int        `json:"quantity_boxes"`
	ETADate       *time.Time `json:"eta_date"`
	Scope         Scope      `json:"scope"`
	IsActive      bool       `json:"is_active"`
	Label         string     `json:"label"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// StockSnapshot is one product's current pairs by location.
type StockSnapshot struct {
	IncomingPairs int `json:"incoming_pairs"`
	WMLPairs      int `json:"wml_pairs"`
	GMRPairs      int `json:"gmr_pairs"`
	AmazonPairs   int `json:"amazon_pairs"`
}

// Options steers one projection run.
type Options struct {
	Unit               Unit      `json:"unit"`
	Today              time.Time `json:"today"`
	TargetDate         time.Time `json:"target_date"`
	IncludeAmazon      bool      `json:"include_amazon"`
	IncludeAdditional  bool      `json:"include_additional"`
	IncludeSimulations bool      `json:"include_simulations"`
	IncludeFuture      bool      `json:"include_future"`
}

// Segment is one stock bucket with its coverage in weeks.
type Segment struct {
	Name  string  `json:"name"`
	Pairs int     `json:"pairs"`
	Weeks float64 `json:"weeks"`
}

// ToOrder is the reorder recommendation.
type ToOrder struct {
	Pairs float64 `json:"pairs"`
	Boxes float64 `json:"boxes"`
}

// Projection is the per-product dashboard row. When NoDemand is set the
// week-based fields are zeroed and StockoutDate is nil; the product
// cannot run out because nothing sells.
type Projection struct {
	ProductID          int64      `json:"product_id"`
	SKU                string     `json:"sku"`
	Name               string     `json:"name"`
	PairsPerBox        int        `json:"pairs_per_box"`
	AverageWeeklySales float64    `json:"average_weekly_sales"`
	SeasonFactor       float64    `json:"season_factor"`
	WeeklyDemand       float64    `json:"weekly_demand"`
	NoDemand           bool       `json:"no_demand"`
	Segments           []Segment  `json:"segments"`
	TotalWeeks         float64    `json:"total_weeks"`
	InternalWeeks      float64    `json:"internal_weeks"`
	StockoutDate       *time.Time `json:"stockout_date"`
	WeeksToTarget      float64    `json:"weeks_to_target"`
	ToOrder            ToOrder    `json:"to_order"`
}
