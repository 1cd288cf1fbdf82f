package sales

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order statuses.
const (
	StatusOpen      = "OPEN"
	StatusFulfilled = "FULFILLED"
	StatusCancelled = "CANCELLED"
)

// Order is a customer sales order. Delivered quantities move only through
// the shipment engine; the order itself never mutates them directly.
type Order struct {
	ID         int64      `json:"id"`
	OrderNo    string     `json:"order_no"`
	CustomerID int64      `json:"customer_id"`
	Currency   string     `json:"currency"`
	Status     string     `json:"status"`
	Lines      []LineItem `json:"lines,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// LineItem is one product position on an order. Delivered is monotone
// non-decreasing except through shipment deletion, and never exceeds
// Quantity.
type LineItem struct {
	ID          int64           `json:"id"`
	OrderID     int64           `json:"order_id"`
	ProductCode string          `json:"product_code"`
	Quantity    int64           `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Delivered   int64           `json:"delivered"`
	MarkingText string          `json:"marking_text,omitempty"`
}

// Remaining returns the undelivered balance on the line.
func (l LineItem) Remaining() int64 {
	return l.Quantity - l.Delivered
}

// Total returns quantity times unit price.
func (l LineItem) Total() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(l.Quantity))
}

// Invoice is a minimal billing record against an order.
type Invoice struct {
	ID        int64           `json:"id"`
	OrderID   int64           `json:"order_id"`
	Number    string          `json:"number"`
	Total     decimal.Decimal `json:"total"`
	CreatedAt time.Time       `json:"created_at"`
}
