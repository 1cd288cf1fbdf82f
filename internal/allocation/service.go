package allocation

import (
	"context"
	"fmt"
	"strconv"

	"github.com/earthrod-erp/earthrod-erp/internal/shared"
	"github.com/earthrod-erp/earthrod-erp/internal/stageledger"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetAllocation(ctx context.Context, id int64) (Allocation, error)
	ListAllocations(ctx context.Context, productCode, status string) ([]Allocation, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates marking allocations.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit}
}

// AllocateInput carries one allocation request.
type AllocateInput struct {
	ProductCode string
	Stage       string
	MarkingType string
	MarkingText string
	Quantity    int64
	OrderID     int64
	ActorID     int64
}

// Allocate earmarks quantity units at a stage. The allocation is bounded
// by the stage counter minus the units already allocated there; the check
// and the insert share one transaction.
func (s *Service) Allocate(ctx context.Context, input AllocateInput) (Allocation, error) {
	if input.ProductCode == "" {
		return Allocation{}, shared.Validationf("product_code", "required")
	}
	if !stageledger.ValidStage(input.Stage) {
		return Allocation{}, shared.Validationf("stage", "unknown stage %q", input.Stage)
	}
	if !ValidMarkingType(input.MarkingType) {
		return Allocation{}, shared.Validationf("marking_type", "unknown marking type %q", input.MarkingType)
	}
	if input.Quantity <= 0 {
		return Allocation{}, shared.Validationf("quantity", "must be > 0")
	}
	alloc := Allocation{
		ProductCode: input.ProductCode,
		Stage:       input.Stage,
		MarkingType: input.MarkingType,
		MarkingText: input.MarkingText,
		Quantity:    input.Quantity,
		OrderID:     input.OrderID,
		Status:      StatusActive,
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		counter, err := tx.GetStageCounterForUpdate(ctx, input.ProductCode, input.Stage)
		if err != nil {
			return err
		}
		allocated, err := tx.SumActiveAllocations(ctx, input.ProductCode, input.Stage)
		if err != nil {
			return err
		}
		free := counter - allocated
		if input.Quantity > free {
			return shared.Conflictf("allocate %d of %s at %s: only %d unallocated", input.Quantity, input.ProductCode, input.Stage, free)
		}
		id, err := tx.InsertAllocation(ctx, alloc)
		if err != nil {
			return err
		}
		alloc.ID = id
		return nil
	})
	if err != nil {
		return Allocation{}, err
	}
	s.recordAudit(ctx, input.ActorID, "ALLOCATE", strconv.FormatInt(alloc.ID, 10), map[string]any{
		"product_code": input.ProductCode,
		"stage":        input.Stage,
		"quantity":     input.Quantity,
	})
	return alloc, nil
}

// Release frees an active allocation without moving stock.
func (s *Service) Release(ctx context.Context, id int64, actorID int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		alloc, err := tx.GetAllocationForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if alloc.Status != StatusActive {
			return shared.Conflictf("allocation %d is %s, not active", id, alloc.Status)
		}
		return tx.SetAllocationStatus(ctx, id, StatusReleased)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, "RELEASE", strconv.FormatInt(id, 10), nil)
	return nil
}

// GetAllocation returns one allocation by id.
func (s *Service) GetAllocation(ctx context.Context, id int64) (Allocation, error) {
	return s.repo.GetAllocation(ctx, id)
}

// ListAllocations lists allocations, optionally filtered by product and
// status.
func (s *Service) ListAllocations(ctx context.Context, productCode, status string) ([]Allocation, error) {
	return s.repo.ListAllocations(ctx, productCode, status)
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action, entityID string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   fmt.Sprintf("allocation:%s", action),
		Entity:   "allocation",
		EntityID: entityID,
		Meta:     meta,
	})
}
