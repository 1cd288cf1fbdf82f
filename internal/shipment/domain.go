package shipment

import (
	"time"

	"github.com/google/uuid"
)

// Shipment records packed units leaving the plant against an order.
// Reference is the stable identifier handed to carriers and customs
// paperwork; database ids never leave the system.
type Shipment struct {
	ID        int64     `json:"id"`
	Reference uuid.UUID `json:"reference"`
	OrderID   int64     `json:"order_id"`
	ShipDate  time.Time `json:"ship_date"`
	Carrier   string    `json:"carrier,omitempty"`
	BLNumber  string    `json:"bl_number,omitempty"`
	Notes     string    `json:"notes,omitempty"`
	Items     []Item    `json:"items"`
	CreatedAt time.Time `json:"created_at"`
}

// Item is one product position on a shipment. AllocationID and
// AllocationQty record exactly which allocation was consumed and by how
// much, so deleting the shipment can restore it.
type Item struct {
	ID            int64  `json:"id"`
	ShipmentID    int64  `json:"shipment_id"`
	ProductCode   string `json:"product_code"`
	Quantity      int64  `json:"quantity"`
	AllocationID  int64  `json:"allocation_id,omitempty"`
	AllocationQty int64  `json:"allocation_qty,omitempty"`
}
