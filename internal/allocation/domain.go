package allocation

import "time"

// Allocation statuses.
const (
	StatusActive   = "ACTIVE"
	StatusConsumed = "CONSUMED"
	StatusReleased = "RELEASED"
)

// Marking types.
const (
	MarkingPlain    = "PLAIN"
	MarkingStamped  = "STAMPED"
	MarkingStickers = "STICKERS"
)

// ValidMarkingType reports whether t is a known marking type.
func ValidMarkingType(t string) bool {
	switch t {
	case MarkingPlain, MarkingStamped, MarkingStickers:
		return true
	}
	return false
}

// Allocation earmarks finished units at a stage for a customer marking,
// optionally tied to an order. Active allocations put a floor under the
// stage counter: the ledger refuses decrements that would drop the
// counter below the allocated sum.
type Allocation struct {
	ID          int64     `json:"id"`
	ProductCode string    `json:"product_code"`
	Stage       string    `json:"stage"`
	MarkingType string    `json:"marking_type"`
	MarkingText string    `json:"marking_text,omitempty"`
	Quantity    int64     `json:"quantity"`
	OrderID     int64     `json:"order_id,omitempty"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}
