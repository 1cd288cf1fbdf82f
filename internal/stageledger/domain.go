package stageledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// Production stages in process order. Counters are independent: moving
// units between stages is expressed as a decrement on one and an
// increment on another, and the ledger does not force conservation.
const (
	StageCores    = "cores"
	StagePlated   = "plated"
	StageMachined = "machined"
	StageQC       = "qc"
	StageStamped  = "stamped"
	StagePacked   = "packed"
)

// Stages lists all stage names in process order.
var Stages = []string{StageCores, StagePlated, StageMachined, StageQC, StageStamped, StagePacked}

// ValidStage reports whether name is a known stage.
func ValidStage(name string) bool {
	for _, s := range Stages {
		if s == name {
			return true
		}
	}
	return false
}

// StageCounterSet holds one product's per-stage WIP counters. Every
// counter must stay non-negative at all times.
type StageCounterSet struct {
	ProductCode string    `json:"product_code"`
	Cores       int64     `json:"cores"`
	Plated      int64     `json:"plated"`
	Machined    int64     `json:"machined"`
	QC          int64     `json:"qc"`
	Stamped     int64     `json:"stamped"`
	Packed      int64     `json:"packed"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Get returns the counter for a stage name.
func (c StageCounterSet) Get(stage string) int64 {
	switch stage {
	case StageCores:
		return c.Cores
	case StagePlated:
		return c.Plated
	case StageMachined:
		return c.Machined
	case StageQC:
		return c.QC
	case StageStamped:
		return c.Stamped
	case StagePacked:
		return c.Packed
	}
	return 0
}

// Add applies a delta to one stage counter.
func (c *StageCounterSet) Add(stage string, delta int64) {
	switch stage {
	case StageCores:
		c.Cores += delta
	case StagePlated:
		c.Plated += delta
	case StageMachined:
		c.Machined += delta
	case StageQC:
		c.QC += delta
	case StageStamped:
		c.Stamped += delta
	case StagePacked:
		c.Packed += delta
	}
}

// ProductionEntry records one day's production for a product as a set of
// per-stage deltas. When the entry credits the charging stage, the BOM is
// charged against raw-material stock and the exact consumption is stored
// alongside so a later delete can reverse it even if the BOM has changed.
type ProductionEntry struct {
	ID           int64            `json:"id"`
	ProductCode  string           `json:"product_code"`
	EntryDate    time.Time        `json:"entry_date"`
	StageDeltas  map[string]int64 `json:"stage_deltas"`
	Rejected     int64            `json:"rejected"`
	ChargedStage string           `json:"charged_stage,omitempty"`
	Notes        string           `json:"notes,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
}

// Consumption is the raw-material quantity actually charged for one
// production entry.
type Consumption struct {
	EntryID  int64           `json:"entry_id"`
	Material string          `json:"material"`
	Qty      decimal.Decimal `json:"qty"`
}

// AdjustmentType classifies a manual stock adjustment.
type AdjustmentType string

const (
	AdjustmentCorrection     AdjustmentType = "CORRECTION"
	AdjustmentOpeningBalance AdjustmentType = "OPENING_BALANCE"
	AdjustmentWriteOff       AdjustmentType = "WRITE_OFF"
)

// ValidAdjustmentType reports whether t is a known adjustment type.
func ValidAdjustmentType(t AdjustmentType) bool {
	switch t {
	case AdjustmentCorrection, AdjustmentOpeningBalance, AdjustmentWriteOff:
		return true
	}
	return false
}

// StockAdjustment is a manual correction of a single stage counter,
// outside the production flow. Adjustments never touch raw materials.
type StockAdjustment struct {
	ID          int64          `json:"id"`
	ProductCode string         `json:"product_code"`
	Stage       string         `json:"stage"`
	Delta       int64          `json:"delta"`
	Type        AdjustmentType `json:"type"`
	Reason      string         `json:"reason,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}
