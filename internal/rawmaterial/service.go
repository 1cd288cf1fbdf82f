package rawmaterial

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/earthrod-erp/earthrod-erp/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetStock(ctx context.Context, material string) (Stock, error)
	ListStocks(ctx context.Context) ([]Stock, error)
	ListReceipts(ctx context.Context, material string, limit int) ([]Receipt, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates raw-material stock operations.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit}
}

// Receive credits stock for a goods receipt and recomputes the
// weighted-average cost. Unknown materials are created on first receipt.
func (s *Service) Receive(ctx context.Context, input ReceiveInput) (Stock, error) {
	if input.Material == "" {
		return Stock{}, shared.Validationf("material", "required")
	}
	if input.Qty.LessThanOrEqual(decimal.Zero) {
		return Stock{}, shared.Validationf("qty", "must be > 0")
	}
	if input.UnitCost.IsNegative() {
		return Stock{}, shared.Validationf("unit_cost", "must be >= 0")
	}
	var updated Stock
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		stock, err := tx.GetStockForUpdate(ctx, input.Material)
		if err != nil && !errors.Is(err, ErrStockNotFound) {
			return err
		}
		if errors.Is(err, ErrStockNotFound) {
			stock = Stock{Material: input.Material, CurrentStock: decimal.Zero, CommittedStock: decimal.Zero, AvgCost: decimal.Zero}
		}
		stock.AvgCost = WeightedAverage(stock.CurrentStock, stock.AvgCost, input.Qty, input.UnitCost)
		stock.CurrentStock = stock.CurrentStock.Add(input.Qty)
		if err := tx.UpsertStock(ctx, stock); err != nil {
			return err
		}
		if err := tx.InsertReceipt(ctx, Receipt{Material: input.Material, Qty: input.Qty, UnitCost: input.UnitCost, Note: input.Note}); err != nil {
			return err
		}
		updated = stock
		return nil
	})
	if err != nil {
		return Stock{}, err
	}
	s.recordAudit(ctx, input.ActorID, "RECEIVE", input.Material, map[string]any{
		"qty":       input.Qty.String(),
		"unit_cost": input.UnitCost.String(),
	})
	return updated, nil
}

// Reserve commits stock for a confirmed order. Reserving more than the
// uncommitted balance is a conflict.
func (s *Service) Reserve(ctx context.Context, material string, qty decimal.Decimal, actorID int64) (Stock, error) {
	if qty.LessThanOrEqual(decimal.Zero) {
		return Stock{}, shared.Validationf("qty", "must be > 0")
	}
	var updated Stock
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		stock, err := tx.GetStockForUpdate(ctx, material)
		if err != nil {
			return err
		}
		if qty.GreaterThan(stock.Available()) {
			return shared.Conflictf("reserve %s %s: only %s available", material, qty, stock.Available())
		}
		stock.CommittedStock = stock.CommittedStock.Add(qty)
		if err := tx.UpsertStock(ctx, stock); err != nil {
			return err
		}
		updated = stock
		return nil
	})
	if err != nil {
		return Stock{}, err
	}
	s.recordAudit(ctx, actorID, "RESERVE", material, map[string]any{"qty": qty.String()})
	return updated, nil
}

// Unreserve releases previously committed stock.
func (s *Service) Unreserve(ctx context.Context, material string, qty decimal.Decimal, actorID int64) (Stock, error) {
	if qty.LessThanOrEqual(decimal.Zero) {
		return Stock{}, shared.Validationf("qty", "must be > 0")
	}
	var updated Stock
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		stock, err := tx.GetStockForUpdate(ctx, material)
		if err != nil {
			return err
		}
		if qty.GreaterThan(stock.CommittedStock) {
			return shared.Conflictf("unreserve %s %s: only %s committed", material, qty, stock.CommittedStock)
		}
		stock.CommittedStock = stock.CommittedStock.Sub(qty)
		if err := tx.UpsertStock(ctx, stock); err != nil {
			return err
		}
		updated = stock
		return nil
	})
	if err != nil {
		return Stock{}, err
	}
	s.recordAudit(ctx, actorID, "UNRESERVE", material, map[string]any{"qty": qty.String()})
	return updated, nil
}

// GetStock returns a material's ledger row.
func (s *Service) GetStock(ctx context.Context, material string) (Stock, error) {
	return s.repo.GetStock(ctx, material)
}

// ListStocks lists all materials.
func (s *Service) ListStocks(ctx context.Context) ([]Stock, error) {
	return s.repo.ListStocks(ctx)
}

// ListReceipts lists recent receipts for a material.
func (s *Service) ListReceipts(ctx context.Context, material string, limit int) ([]Receipt, error) {
	return s.repo.ListReceipts(ctx, material, limit)
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action, material string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   fmt.Sprintf("rawmaterial:%s", action),
		Entity:   "raw_material",
		EntityID: material,
		Meta:     meta,
	})
}
