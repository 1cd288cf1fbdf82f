package rawmaterial

import (
	"time"

	"github.com/shopspring/decimal"
)

// Stock is the ledger row for one raw material. AvailableStock is
// CurrentStock minus CommittedStock; CurrentStock itself can never go
// negative.
type Stock struct {
	Material       string          `json:"material"`
	CurrentStock   decimal.Decimal `json:"current_stock"`
	CommittedStock decimal.Decimal `json:"committed_stock"`
	AvgCost        decimal.Decimal `json:"avg_cost"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// Available returns the uncommitted portion of current stock.
func (s Stock) Available() decimal.Decimal {
	return s.CurrentStock.Sub(s.CommittedStock)
}

// Receipt records one inbound goods-received note for a material.
type Receipt struct {
	ID         int64           `json:"id"`
	Material   string          `json:"material"`
	Qty        decimal.Decimal `json:"qty"`
	UnitCost   decimal.Decimal `json:"unit_cost"`
	ReceivedAt time.Time       `json:"received_at"`
	Note       string          `json:"note"`
}

// ReceiveInput describes a GRN posting.
type ReceiveInput struct {
	Material string
	Qty      decimal.Decimal
	UnitCost decimal.Decimal
	Note     string
	ActorID  int64
}

// WeightedAverage recomputes the moving-average cost after receiving qty
// units at unitCost.
func WeightedAverage(current, avg, qty, unitCost decimal.Decimal) decimal.Decimal {
	total := current.Add(qty)
	if total.IsZero() {
		return decimal.Zero
	}
	return current.Mul(avg).Add(qty.Mul(unitCost)).DivRound(total, 4)
}
