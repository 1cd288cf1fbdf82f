package stageledger

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/earthrod-erp/earthrod-erp/internal/shared"
)

// BOMLine is the per-unit material requirement used when charging a
// production entry.
type BOMLine struct {
	Material   string
	QtyPerUnit decimal.Decimal
}

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetCounters(ctx context.Context, productCode string) (StageCounterSet, error)
	ListCounters(ctx context.Context) ([]StageCounterSet, error)
	GetProductionEntry(ctx context.Context, id int64) (ProductionEntry, error)
	ListProductionEntries(ctx context.Context, productCode string, limit int) ([]ProductionEntry, error)
	ListConsumption(ctx context.Context, entryID int64) ([]Consumption, error)
	ListAdjustments(ctx context.Context, productCode string, limit int) ([]StockAdjustment, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates the per-stage WIP ledger: production postings,
// their reversals, and manual adjustments.
type Service struct {
	repo          RepositoryPort
	audit         AuditPort
	chargingStage string
}

// NewService builds Service. chargingStage names the stage whose credits
// consume raw materials per the product BOM.
func NewService(repo RepositoryPort, audit AuditPort, chargingStage string) *Service {
	if !ValidStage(chargingStage) {
		chargingStage = StagePlated
	}
	return &Service{repo: repo, audit: audit, chargingStage: chargingStage}
}

// ChargingStage returns the configured raw-material charging stage.
func (s *Service) ChargingStage() string { return s.chargingStage }

// ProductionInput carries one production posting.
type ProductionInput struct {
	ProductCode string
	EntryDate   time.Time
	StageDeltas map[string]int64
	Rejected    int64
	Notes       string
	ActorID     int64
}

func (s *Service) validateProduction(input ProductionInput) error {
	if input.ProductCode == "" {
		return shared.Validationf("product_code", "required")
	}
	if len(input.StageDeltas) == 0 && input.Rejected == 0 {
		return shared.Validationf("stage_deltas", "at least one stage delta or rejection required")
	}
	for stage, delta := range input.StageDeltas {
		if !ValidStage(stage) {
			return shared.Validationf("stage_deltas", "unknown stage %q", stage)
		}
		if delta == 0 {
			return shared.Validationf("stage_deltas", "zero delta for stage %q", stage)
		}
	}
	if input.Rejected < 0 {
		return shared.Validationf("rejected", "must be >= 0")
	}
	return nil
}

// RecordProduction applies a production entry atomically: stage counters
// move, and a credit into the charging stage consumes raw materials per
// the product BOM. Any counter going negative, any decrement below the
// product's active allocations, or insufficient raw stock rolls the whole
// entry back.
func (s *Service) RecordProduction(ctx context.Context, input ProductionInput) (ProductionEntry, error) {
	if err := s.validateProduction(input); err != nil {
		return ProductionEntry{}, err
	}
	if input.EntryDate.IsZero() {
		input.EntryDate = time.Now()
	}
	entry := ProductionEntry{
		ProductCode: input.ProductCode,
		EntryDate:   input.EntryDate,
		StageDeltas: input.StageDeltas,
		Rejected:    input.Rejected,
		Notes:       input.Notes,
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		counters, err := tx.GetCountersForUpdate(ctx, input.ProductCode)
		if err != nil {
			return err
		}
		if err := s.applyDeltas(ctx, tx, &counters, input.StageDeltas, 1); err != nil {
			return err
		}
		if err := tx.UpsertCounters(ctx, counters); err != nil {
			return err
		}

		charged := input.StageDeltas[s.chargingStage]
		if charged > 0 {
			entry.ChargedStage = s.chargingStage
		}
		id, err := tx.InsertProductionEntry(ctx, entry)
		if err != nil {
			return err
		}
		entry.ID = id

		if charged > 0 {
			bom, err := tx.GetBOM(ctx, input.ProductCode)
			if err != nil {
				return err
			}
			qty := decimal.NewFromInt(charged)
			for _, line := range bom {
				consumed := qty.Mul(line.QtyPerUnit)
				current, err := tx.GetRawCurrentForUpdate(ctx, line.Material)
				if err != nil {
					return err
				}
				if consumed.GreaterThan(current) {
					return shared.Conflictf("material %s: need %s, have %s", line.Material, consumed, current)
				}
				if err := tx.AdjustRawStock(ctx, line.Material, consumed.Neg()); err != nil {
					return err
				}
				if err := tx.InsertConsumption(ctx, Consumption{EntryID: id, Material: line.Material, Qty: consumed}); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return ProductionEntry{}, err
	}
	s.recordAudit(ctx, input.ActorID, "PRODUCTION_RECORD", strconv.FormatInt(entry.ID, 10), map[string]any{
		"product_code": input.ProductCode,
		"stage_deltas": input.StageDeltas,
	})
	return entry, nil
}

// DeleteProductionEntry reverses an entry exactly: stage deltas are
// negated and the stored consumption quantities are credited back to raw
// materials. Reversal fails if it would drive any counter negative or
// below the product's active allocations.
func (s *Service) DeleteProductionEntry(ctx context.Context, id int64, actorID int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		entry, err := tx.GetProductionEntryForUpdate(ctx, id)
		if err != nil {
			return err
		}
		counters, err := tx.GetCountersForUpdate(ctx, entry.ProductCode)
		if err != nil {
			return err
		}
		if err := s.applyDeltas(ctx, tx, &counters, entry.StageDeltas, -1); err != nil {
			return err
		}
		if err := tx.UpsertCounters(ctx, counters); err != nil {
			return err
		}
		consumed, err := tx.ListConsumptionForUpdate(ctx, id)
		if err != nil {
			return err
		}
		for _, c := range consumed {
			if err := tx.AdjustRawStock(ctx, c.Material, c.Qty); err != nil {
				return err
			}
		}
		return tx.DeleteProductionEntry(ctx, id)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, "PRODUCTION_DELETE", strconv.FormatInt(id, 10), nil)
	return nil
}

// BulkDeleteProductionEntries reverses each entry independently and
// reports per-entry outcomes.
func (s *Service) BulkDeleteProductionEntries(ctx context.Context, ids []int64, actorID int64) []shared.BatchResult {
	results := make([]shared.BatchResult, 0, len(ids))
	for _, id := range ids {
		key := strconv.FormatInt(id, 10)
		if err := s.DeleteProductionEntry(ctx, id, actorID); err != nil {
			results = append(results, shared.BatchResult{ID: key, OK: false, Error: err.Error()})
			continue
		}
		results = append(results, shared.BatchResult{ID: key, OK: true})
	}
	return results
}

// AdjustmentInput carries one manual counter correction.
type AdjustmentInput struct {
	ProductCode string
	Stage       string
	Delta       int64
	Type        AdjustmentType
	Reason      string
	ActorID     int64
}

// AdjustStock posts a manual counter correction. Adjustments never touch
// raw-material stock.
func (s *Service) AdjustStock(ctx context.Context, input AdjustmentInput) (StockAdjustment, error) {
	if input.ProductCode == "" {
		return StockAdjustment{}, shared.Validationf("product_code", "required")
	}
	if !ValidStage(input.Stage) {
		return StockAdjustment{}, shared.Validationf("stage", "unknown stage %q", input.Stage)
	}
	if input.Delta == 0 {
		return StockAdjustment{}, shared.Validationf("delta", "must be non-zero")
	}
	if !ValidAdjustmentType(input.Type) {
		return StockAdjustment{}, shared.Validationf("type", "unknown adjustment type %q", input.Type)
	}
	adj := StockAdjustment{
		ProductCode: input.ProductCode,
		Stage:       input.Stage,
		Delta:       input.Delta,
		Type:        input.Type,
		Reason:      input.Reason,
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		counters, err := tx.GetCountersForUpdate(ctx, input.ProductCode)
		if err != nil {
			return err
		}
		if err := s.applyDeltas(ctx, tx, &counters, map[string]int64{input.Stage: input.Delta}, 1); err != nil {
			return err
		}
		if err := tx.UpsertCounters(ctx, counters); err != nil {
			return err
		}
		id, err := tx.InsertAdjustment(ctx, adj)
		if err != nil {
			return err
		}
		adj.ID = id
		return nil
	})
	if err != nil {
		return StockAdjustment{}, err
	}
	s.recordAudit(ctx, input.ActorID, "STOCK_ADJUST", input.ProductCode, map[string]any{
		"stage": input.Stage,
		"delta": input.Delta,
		"type":  string(input.Type),
	})
	return adj, nil
}

// DeleteAdjustment reverses a manual correction, honoring the same
// counter floors as the original posting.
func (s *Service) DeleteAdjustment(ctx context.Context, id int64, actorID int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		adj, err := tx.GetAdjustmentForUpdate(ctx, id)
		if err != nil {
			return err
		}
		counters, err := tx.GetCountersForUpdate(ctx, adj.ProductCode)
		if err != nil {
			return err
		}
		if err := s.applyDeltas(ctx, tx, &counters, map[string]int64{adj.Stage: adj.Delta}, -1); err != nil {
			return err
		}
		if err := tx.UpsertCounters(ctx, counters); err != nil {
			return err
		}
		return tx.DeleteAdjustment(ctx, id)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, "STOCK_ADJUST_DELETE", strconv.FormatInt(id, 10), nil)
	return nil
}

// applyDeltas mutates counters by sign*deltas, enforcing both the
// non-negative floor and the active-allocation floor on every decrement.
func (s *Service) applyDeltas(ctx context.Context, tx TxRepository, counters *StageCounterSet, deltas map[string]int64, sign int64) error {
	for stage, delta := range deltas {
		effective := sign * delta
		next := counters.Get(stage) + effective
		if next < 0 {
			return shared.Conflictf("stage %s for %s would go negative (%d%+d)", stage, counters.ProductCode, counters.Get(stage), effective)
		}
		if effective < 0 {
			allocated, err := tx.SumActiveAllocations(ctx, counters.ProductCode, stage)
			if err != nil {
				return err
			}
			if next < allocated {
				return shared.Conflictf("stage %s for %s has %d allocated; cannot drop to %d", stage, counters.ProductCode, allocated, next)
			}
		}
		counters.Add(stage, effective)
	}
	return nil
}

// GetCounters returns a product's stage counters.
func (s *Service) GetCounters(ctx context.Context, productCode string) (StageCounterSet, error) {
	return s.repo.GetCounters(ctx, productCode)
}

// ListCounters lists stage counters for every product with ledger rows.
func (s *Service) ListCounters(ctx context.Context) ([]StageCounterSet, error) {
	return s.repo.ListCounters(ctx)
}

// GetProductionEntry returns one entry with its recorded consumption.
func (s *Service) GetProductionEntry(ctx context.Context, id int64) (ProductionEntry, []Consumption, error) {
	entry, err := s.repo.GetProductionEntry(ctx, id)
	if err != nil {
		return ProductionEntry{}, nil, err
	}
	consumed, err := s.repo.ListConsumption(ctx, id)
	if err != nil {
		return ProductionEntry{}, nil, err
	}
	return entry, consumed, nil
}

// ListProductionEntries lists entries for a product, newest first.
func (s *Service) ListProductionEntries(ctx context.Context, productCode string, limit int) ([]ProductionEntry, error) {
	return s.repo.ListProductionEntries(ctx, productCode, limit)
}

// ListAdjustments lists manual adjustments for a product, newest first.
func (s *Service) ListAdjustments(ctx context.Context, productCode string, limit int) ([]StockAdjustment, error) {
	return s.repo.ListAdjustments(ctx, productCode, limit)
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action, entityID string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   fmt.Sprintf("stageledger:%s", action),
		Entity:   "production_entry",
		EntityID: entityID,
		Meta:     meta,
	})
}
