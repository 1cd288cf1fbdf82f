package shipment

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/earthrod-erp/earthrod-erp/internal/shared"
	"github.com/earthrod-erp/earthrod-erp/internal/stageledger"
)

// OrderLine is the slice of an order line the fulfillment engine needs.
type OrderLine struct {
	ID        int64
	Quantity  int64
	Delivered int64
}

// AllocationRef is the slice of an allocation the engine consumes.
type AllocationRef struct {
	ID       int64
	Quantity int64
}

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetShipment(ctx context.Context, id int64) (Shipment, error)
	ListShipments(ctx context.Context, orderID int64) ([]Shipment, error)
}

// TxRepository exposes transactional operations used by service. A
// shipment touches order_line_items, stage_inventory, allocations and
// the shipment tables in one transaction.
type TxRepository interface {
	GetOrderLineForUpdate(ctx context.Context, orderID int64, productCode string) (OrderLine, error)
	AddDelivered(ctx context.Context, lineID, delta int64) error
	RefreshOrderStatus(ctx context.Context, orderID int64) error
	GetPackedForUpdate(ctx context.Context, productCode string) (int64, error)
	AddPacked(ctx context.Context, productCode string, delta int64) error
	FindActiveAllocation(ctx context.Context, productCode string, orderID int64) (AllocationRef, bool, error)
	SumActiveAllocations(ctx context.Context, productCode, stage string) (int64, error)
	ConsumeAllocation(ctx context.Context, id, qty int64) error
	RestoreAllocation(ctx context.Context, id, qty int64) error
	InsertShipment(ctx context.Context, s Shipment) (int64, error)
	InsertShipmentItem(ctx context.Context, item Item) (int64, error)
	GetShipmentForUpdate(ctx context.Context, id int64) (Shipment, error)
	DeleteShipment(ctx context.Context, id int64) error
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// IdempotencyPort guards externally retried postings.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// Service is the order fulfillment engine.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
	idem  IdempotencyPort
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort, idem IdempotencyPort) *Service {
	return &Service{repo: repo, audit: audit, idem: idem}
}

// ItemInput is one product position on a shipment request.
type ItemInput struct {
	ProductCode string
	Quantity    int64
}

// ShipmentInput carries one shipment posting.
type ShipmentInput struct {
	OrderID        int64
	ShipDate       time.Time
	Carrier        string
	BLNumber       string
	Notes          string
	Items          []ItemInput
	IdempotencyKey string
	ActorID        int64
}

func validateInput(input ShipmentInput) error {
	if input.OrderID <= 0 {
		return shared.Validationf("order_id", "required")
	}
	if len(input.Items) == 0 {
		return shared.Validationf("items", "at least one item required")
	}
	seen := make(map[string]bool, len(input.Items))
	for i, item := range input.Items {
		if item.ProductCode == "" {
			return shared.Validationf("items", "item %d: product_code required", i)
		}
		if item.Quantity <= 0 {
			return shared.Validationf("items", "item %d: quantity must be > 0", i)
		}
		if seen[item.ProductCode] {
			return shared.Validationf("items", "duplicate product %s", item.ProductCode)
		}
		seen[item.ProductCode] = true
	}
	return nil
}

// RecordShipment posts a shipment: per item it consumes the matching
// active allocation for the order, decrements the packed counter and
// increments delivered on the order line — all in one transaction.
// Over-shipping the packed counter or the remaining order balance rolls
// everything back.
func (s *Service) RecordShipment(ctx context.Context, input ShipmentInput) (Shipment, error) {
	if err := validateInput(input); err != nil {
		return Shipment{}, err
	}
	if input.ShipDate.IsZero() {
		input.ShipDate = time.Now()
	}
	if input.IdempotencyKey != "" && s.idem != nil {
		if err := s.idem.CheckAndInsert(ctx, input.IdempotencyKey, "shipment"); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				return Shipment{}, shared.Conflictf("shipment already recorded for key %s", input.IdempotencyKey)
			}
			return Shipment{}, err
		}
	}
	shipment := Shipment{
		Reference: uuid.New(),
		OrderID:   input.OrderID,
		ShipDate:  input.ShipDate,
		Carrier:   input.Carrier,
		BLNumber:  input.BLNumber,
		Notes:     input.Notes,
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.InsertShipment(ctx, shipment)
		if err != nil {
			return err
		}
		shipment.ID = id
		for _, in := range input.Items {
			item := Item{ShipmentID: id, ProductCode: in.ProductCode, Quantity: in.Quantity}

			line, err := tx.GetOrderLineForUpdate(ctx, input.OrderID, in.ProductCode)
			if err != nil {
				if errors.Is(err, shared.ErrNotFound) {
					return shared.Conflictf("order %d has no line for %s", input.OrderID, in.ProductCode)
				}
				return err
			}
			remaining := line.Quantity - line.Delivered
			if in.Quantity > remaining {
				return shared.Conflictf("ship %d of %s: only %d undelivered on order %d", in.Quantity, in.ProductCode, remaining, input.OrderID)
			}

			packed, err := tx.GetPackedForUpdate(ctx, in.ProductCode)
			if err != nil {
				return err
			}
			if in.Quantity > packed {
				return shared.Conflictf("ship %d of %s: only %d packed", in.Quantity, in.ProductCode, packed)
			}

			alloc, found, err := tx.FindActiveAllocation(ctx, in.ProductCode, input.OrderID)
			if err != nil {
				return err
			}
			if found {
				consume := alloc.Quantity
				if in.Quantity < consume {
					consume = in.Quantity
				}
				if err := tx.ConsumeAllocation(ctx, alloc.ID, consume); err != nil {
					return err
				}
				item.AllocationID = alloc.ID
				item.AllocationQty = consume
			}

			// The remaining packed counter must still cover every active
			// allocation. The consumption above has already removed this
			// order's share from the sum.
			reserved, err := tx.SumActiveAllocations(ctx, in.ProductCode, stageledger.StagePacked)
			if err != nil {
				return err
			}
			if packed-in.Quantity < reserved {
				return shared.Conflictf("ship %d of %s: %d of %d packed are reserved by allocations", in.Quantity, in.ProductCode, reserved, packed)
			}

			if err := tx.AddPacked(ctx, in.ProductCode, -in.Quantity); err != nil {
				return err
			}
			if err := tx.AddDelivered(ctx, line.ID, in.Quantity); err != nil {
				return err
			}
			itemID, err := tx.InsertShipmentItem(ctx, item)
			if err != nil {
				return err
			}
			item.ID = itemID
			shipment.Items = append(shipment.Items, item)
		}
		return tx.RefreshOrderStatus(ctx, input.OrderID)
	})
	if err != nil {
		if input.IdempotencyKey != "" && s.idem != nil {
			_ = s.idem.Delete(ctx, input.IdempotencyKey)
		}
		return Shipment{}, err
	}
	s.recordAudit(ctx, input.ActorID, "SHIPMENT_RECORD", strconv.FormatInt(shipment.ID, 10), map[string]any{
		"order_id": input.OrderID,
		"items":    len(shipment.Items),
	})
	return shipment, nil
}

// DeleteShipment is the exact inverse of RecordShipment: packed counters
// and delivered quantities return to their prior values and consumed
// allocations are restored from the recorded allocation_qty.
func (s *Service) DeleteShipment(ctx context.Context, id int64, actorID int64) error {
	var orderID int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		shipment, err := tx.GetShipmentForUpdate(ctx, id)
		if err != nil {
			return err
		}
		orderID = shipment.OrderID
		for _, item := range shipment.Items {
			line, err := tx.GetOrderLineForUpdate(ctx, shipment.OrderID, item.ProductCode)
			if err != nil {
				return err
			}
			if line.Delivered < item.Quantity {
				return shared.Conflictf("line %s has delivered %d, cannot reverse %d", item.ProductCode, line.Delivered, item.Quantity)
			}
			if err := tx.AddDelivered(ctx, line.ID, -item.Quantity); err != nil {
				return err
			}
			if err := tx.AddPacked(ctx, item.ProductCode, item.Quantity); err != nil {
				return err
			}
			if item.AllocationID != 0 {
				if err := tx.RestoreAllocation(ctx, item.AllocationID, item.AllocationQty); err != nil {
					return err
				}
			}
		}
		if err := tx.DeleteShipment(ctx, id); err != nil {
			return err
		}
		return tx.RefreshOrderStatus(ctx, shipment.OrderID)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, "SHIPMENT_DELETE", strconv.FormatInt(id, 10), map[string]any{"order_id": orderID})
	return nil
}

// GetShipment returns one shipment with items.
func (s *Service) GetShipment(ctx context.Context, id int64) (Shipment, error) {
	return s.repo.GetShipment(ctx, id)
}

// ListShipments lists shipments, optionally for one order.
func (s *Service) ListShipments(ctx context.Context, orderID int64) ([]Shipment, error) {
	return s.repo.ListShipments(ctx, orderID)
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action, entityID string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   fmt.Sprintf("shipment:%s", action),
		Entity:   "shipment",
		EntityID: entityID,
		Meta:     meta,
	})
}
