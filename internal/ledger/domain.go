package ledger

import (
	"fmt"
	"time"

	"github.com/warehouse-wrangler/warehouse-wrangler/internal/shared"
)

// Location enumerates the physical warehouse locations a carton can be in.
type Location string

const (
	// LocationIncoming is the receiving dock, stock not yet shelved.
	LocationIncoming Location = "Incoming"
	// LocationWML is the WML warehouse.
	LocationWML Location = "WML"
	// LocationGMR is the GMR warehouse.
	LocationGMR Location = "GMR"
)

// ParseLocation validates a location string.
func ParseLocation(value string) (Location, error) {
	switch Location(value) {
	case LocationIncoming, LocationWML, LocationGMR:
		return Location(value), nil
	default:
		return "", fmt.Errorf("unknown location %q: %w", value, shared.ErrValidation)
	}
}

// CartonStatus enumerates the carton lifecycle states.
type CartonStatus string

const (
	// CartonInStock holds at least one box across its contents.
	CartonInStock CartonStatus = "in-stock"
	// CartonEmpty has zero current boxes across all contents.
	CartonEmpty CartonStatus = "empty"
	// CartonArchived is terminal; blocks moves and shipment assignment.
	CartonArchived CartonStatus = "archived"
)

// MovementKind enumerates ledger-affecting events in the movement log.
type MovementKind string

const (
	// MovementSentToAmazon records boxes leaving on a shipment (negative boxes).
	MovementSentToAmazon MovementKind = "sent_to_amazon"
	// MovementRecalled records boxes restored by a shipment recall (positive boxes).
	MovementRecalled MovementKind = "recalled"
)

// Carton is a physical storage unit at a location.
type Carton struct {
	ID        int64        `json:"id"`
	Number    string       `json:"number"`
	Location  Location     `json:"location"`
	Status    CartonStatus `json:"status"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// Content is the ledger row for a (carton, product) pair.
type Content struct {
	ID                int64 `json:"id"`
	CartonID          int64 `json:"carton_id"`
	ProductID         int64 `json:"product_id"`
	BoxesInitial      int   `json:"boxes_initial"`
	BoxesCurrent      int   `json:"boxes_current"`
	BoxesSentToAmazon int   `json:"boxes_sent_to_amazon"`
}

// Movement describes one ledger adjustment to apply.
type Movement struct {
	CartonID   int64
	ProductID  int64
	Delta      int
	Kind       MovementKind
	ShipmentID int64
	UserID     int64
}

// LogEntry is a row of the append-only box movement log.
type LogEntry struct {
	ID         int64        `json:"id"`
	CartonID   int64        `json:"carton_id"`
	ProductID  int64        `json:"product_id"`
	Boxes      int          `json:"boxes"`
	Kind       MovementKind `json:"kind"`
	ShipmentID int64        `json:"shipment_id"`
	UserID     int64        `json:"user_id"`
	CreatedAt  time.Time    `json:"created_at"`
}

// ReceiptRow is one parsed packing-list line handed over by the CSV
// import collaborator.
type ReceiptRow struct {
	CartonNumber string `json:"carton_number"`
	ProductSKU   string `json:"product_sku"`
	Boxes        int    `json:"boxes"`
}

// SnapshotRow is one parsed Amazon inventory snapshot line.
type SnapshotRow struct {
	ProductSKU string `json:"product_sku"`
	Pairs      int    `json:"pairs"`
}

// SkippedCarton reports a carton a bulk move left untouched.
type SkippedCarton struct {
	CartonID int64  `json:"carton_id"`
	Reason   string `json:"reason"`
}

// MoveResult summarises a bulk carton move.
type MoveResult struct {
	Moved   []int64         `json:"moved"`
	Skipped []SkippedCarton `json:"skipped"`
}

// CartonFilter narrows carton listings.
type CartonFilter struct {
	Location *Location
	Status   *CartonStatus
	Limit    int
	Offset   int
}

// LogFilter narrows movement log listings.
type LogFilter struct {
	CartonID   int64
	ProductID  int64
	ShipmentID int64
	Limit      int
}
