package forecast

import (
	"math"
	"sort"
	"time"

	"github.com/warehouse-wrangler/warehouse-wrangler/internal/catalog"
)

// Segment names, in display order.
const (
	SegmentIncoming   = "Incoming"
	SegmentWML        = "WML"
	SegmentGMR        = "GMR"
	SegmentAmazon     = "Amazon"
	SegmentAdditional = "Additional"
)

// Project computes the coverage projection for one product. Pure
// function: it reads its inputs and writes nothing.
func Project(p catalog.Product, stock StockSnapshot, planned []PlannedEntry, opts Options) Projection {
	today := truncateDay(opts.Today)
	target := truncateDay(opts.TargetDate)

	factor := seasonFactor(p, target)
	demand := weeklyDemand(p, factor, opts.Unit)

	projection := Projection{
		ProductID:          p.ID,
		SKU:                p.SKU,
		Name:               p.Name,
		PairsPerBox:        p.PairsPerBox,
		AverageWeeklySales: p.AverageWeeklySales,
		SeasonFactor:       factor,
		WeeklyDemand:       demand,
		WeeksToTarget:      weeksToTarget(today, target),
	}

	segments := []Segment{
		{Name: SegmentIncoming, Pairs: stock.IncomingPairs},
		{Name: SegmentWML, Pairs: stock.WMLPairs},
		{Name: SegmentGMR, Pairs: stock.GMRPairs},
	}
	if opts.IncludeAmazon {
		segments = append(segments, Segment{Name: SegmentAmazon, Pairs: stock.AmazonPairs})
	}
	if opts.IncludeAdditional {
		segments = append(segments, Segment{Name: SegmentAdditional, Pairs: additionalPairs(p, planned, opts, today)})
	}

	if demand <= 0 {
		projection.NoDemand = true
		projection.Segments = segments
		return projection
	}

	totalPairs := 0
	internalPairs := 0
	for i := range segments {
		segments[i].Weeks = float64(segments[i].Pairs) / demand
		totalPairs += segments[i].Pairs
		if segments[i].Name != SegmentAmazon {
			internalPairs += segments[i].Pairs
		}
	}
	projection.Segments = segments
	projection.TotalWeeks = float64(totalPairs) / demand
	projection.InternalWeeks = float64(internalPairs) / demand

	stockout := today.AddDate(0, 0, int(math.Ceil(projection.TotalWeeks*7)))
	projection.StockoutDate = &stockout

	orderPairs := math.Max(0, (projection.WeeksToTarget-projection.TotalWeeks)*demand)
	projection.ToOrder.Pairs = orderPairs
	if p.PairsPerBox > 0 {
		projection.ToOrder.Boxes = orderPairs / float64(p.PairsPerBox)
	}
	return projection
}

// seasonFactor picks the multiplier for the target month. Missing or
// non-positive factors count as 1.0.
func seasonFactor(p catalog.Product, target time.Time) float64 {
	factor := p.SeasonalFactors[int(target.Month())-1]
	if factor <= 0 {
		return 1.0
	}
	return factor
}

// weeklyDemand converts average weekly sales into pairs per week.
func weeklyDemand(p catalog.Product, factor float64, unit Unit) float64 {
	if unit == UnitPairs {
		return p.AverageWeeklySales * factor
	}
	return p.AverageWeeklySales * float64(p.PairsPerBox) * factor
}

// additionalPairs sums the planned entries the toggles let through.
func additionalPairs(p catalog.Product, planned []PlannedEntry, opts Options, today time.Time) int {
	total := 0
	for _, entry := range planned {
		if !entry.IsActive {
			continue
		}
		if entry.Scope == ScopeSimulation && !opts.IncludeSimulations {
			continue
		}
		if entry.ETADate != nil && truncateDay(*entry.ETADate).After(today) && !opts.IncludeFuture {
			continue
		}
		total += entry.QuantityBoxes * p.PairsPerBox
	}
	return total
}

func weeksToTarget(today, target time.Time) float64 {
	weeks := target.Sub(today).Hours() / (24 * 7)
	return math.Max(0, weeks)
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// SortProjections orders rows for display: soonest to stock out first,
// products with no demand at the end.
func SortProjections(rows []Projection) {
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].NoDemand != rows[j].NoDemand {
			return !rows[i].NoDemand
		}
		if rows[i].NoDemand {
			return rows[i].SKU < rows[j].SKU
		}
		return rows[i].TotalWeeks < rows[j].TotalWeeks
	})
}
