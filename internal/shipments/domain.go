package shipments

import (
	"fmt"
	"time"

	"github.com/warehouse-wrangler/warehouse-wrangler/internal/shared"
)

// Status enumerates the shipment lifecycle.
type Status string

const (
	// StatusPrepared is the mutable staging state. Contents reserve
	// stock but nothing has left the warehouse.
	StatusPrepared Status = "prepared"
	// StatusSent means the boxes are gone; the ledger has been debited.
	StatusSent Status = "sent"
	// StatusRecalled is terminal; the ledger has been credited back.
	StatusRecalled Status = "recalled"
)

// CanTransition reports whether the lifecycle permits from -> to. The
// only legal moves are prepared -> sent and sent -> recalled.
func CanTransition(from, to Status) bool {
	switch {
	case from == StatusPrepared && to == StatusSent:
		return true
	case from == StatusSent && to == StatusRecalled:
		return true
	default:
		return false
	}
}

// ErrDuplicateName is returned when a shipment name collides.
var ErrDuplicateName = fmt.Errorf("shipment name already exists: %w", shared.ErrDuplicateReference)

// Shipment is an outbound Amazon consignment.
type Shipment struct {
	ID         int64      `json:"id"`
	Name       string     `json:"name"`
	Status     Status     `json:"status"`
	Note       string     `json:"note"`
	CreatedBy  int64      `json:"created_by"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	SentAt     *time.Time `json:"sent_at,omitempty"`
	RecalledAt *time.Time `json:"recalled_at,omitempty"`
}

// Content is one reserved (carton, product) line of a shipment.
type Content struct {
	ID         int64  `json:"id"`
	ShipmentID int64  `json:"shipment_id"`
	CartonID   int64  `json:"carton_id"`
	ProductID  int64  `json:"product_id"`
	Boxes      int    `json:"boxes"`
	CartonNum  string `json:"carton_number,omitempty"`
	ProductSKU string `json:"product_sku,omitempty"`
}

// Item addresses boxes of one product in one carton.
type Item struct {
	CartonID  int64 `json:"carton_id"`
	ProductID int64 `json:"product_id"`
	Boxes     int   `json:"boxes"`
}

// SkippedItem reports an item an add round could not reserve.
type SkippedItem struct {
	Item      Item   `json:"item"`
	Available int    `json:"available"`
	Reason    string `json:"reason"`
}

// AddResult summarises a partial-success add round.
type AddResult struct {
	Added   []Content     `json:"added"`
	Skipped []SkippedItem `json:"skipped"`
}

// Availability is reservation-aware free stock for one ledger row.
type Availability struct {
	CartonID     int64  `json:"carton_id"`
	CartonNumber string `json:"carton_number"`
	ProductID    int64  `json:"product_id"`
	ProductSKU   string `json:"product_sku"`
	BoxesCurrent int    `json:"boxes_current"`
	Reserved     int    `json:"reserved"`
	Available    int    `json:"available"`
}

// ListFilter narrows shipment listings.
type ListFilter struct {
	Status *Status
	Limit  int
	Offset int
}
