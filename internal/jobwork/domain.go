package jobwork

import "time"

// Job work order statuses.
const (
	StatusOpen   = "OPEN"
	StatusClosed = "CLOSED"
)

// Order sends semi-finished goods work to an outside vendor. The vendor
// supplies its own raw material, so receipts credit a stage counter
// without charging the raw-material ledger.
type Order struct {
	ID        int64     `json:"id"`
	Vendor    string    `json:"vendor"`
	SentDate  time.Time `json:"sent_date"`
	Status    string    `json:"status"`
	Notes     string    `json:"notes,omitempty"`
	Items     []Item    `json:"items"`
	CreatedAt time.Time `json:"created_at"`
}

// Item is one product position on a job work order.
type Item struct {
	ID          int64  `json:"id"`
	OrderID     int64  `json:"order_id"`
	ProductCode string `json:"product_code"`
	Quantity    int64  `json:"quantity"`
}

// Receipt records goods returned from the vendor. Each item carries the
// stage it was credited to so a delete can reverse exactly.
type Receipt struct {
	ID           int64         `json:"id"`
	OrderID      int64         `json:"order_id"`
	ReceivedDate time.Time     `json:"received_date"`
	Notes        string        `json:"notes,omitempty"`
	Items        []ReceiptItem `json:"items"`
	CreatedAt    time.Time     `json:"created_at"`
}

// ReceiptItem is one credited product position on a receipt.
type ReceiptItem struct {
	ID          int64  `json:"id"`
	ReceiptID   int64  `json:"receipt_id"`
	ProductCode string `json:"product_code"`
	Quantity    int64  `json:"quantity"`
	Stage       string `json:"stage"`
}
