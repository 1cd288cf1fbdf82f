package jobwork

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/earthrod-erp/earthrod-erp/internal/shared"
	"github.com/earthrod-erp/earthrod-erp/internal/stageledger"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetOrder(ctx context.Context, id int64) (Order, error)
	ListOrders(ctx context.Context, status string) ([]Order, error)
	GetReceipt(ctx context.Context, id int64) (Receipt, error)
	ListReceipts(ctx context.Context, orderID int64) ([]Receipt, error)
}

// TxRepository exposes transactional operations used by service. Receipts
// touch jobwork tables and stage_inventory in one transaction.
type TxRepository interface {
	InsertOrder(ctx context.Context, o Order) (int64, error)
	InsertOrderItem(ctx context.Context, item Item) (int64, error)
	GetOrderForUpdate(ctx context.Context, id int64) (Order, error)
	SetOrderStatus(ctx context.Context, id int64, status string) error
	InsertReceipt(ctx context.Context, r Receipt) (int64, error)
	InsertReceiptItem(ctx context.Context, item ReceiptItem) (int64, error)
	GetReceiptForUpdate(ctx context.Context, id int64) (Receipt, error)
	DeleteReceipt(ctx context.Context, id int64) error
	GetStageCounterForUpdate(ctx context.Context, productCode, stage string) (int64, error)
	AddStageCounter(ctx context.Context, productCode, stage string, delta int64) error
	SumActiveAllocations(ctx context.Context, productCode, stage string) (int64, error)
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

// Service coordinates job work orders and their receipts.
type Service struct {
	repo         RepositoryPort
	audit        AuditPort
	idem         IdempotencyPort
	receiveStage string
}

// NewService builds Service. receiveStage is the counter credited when
// vendor goods come back.
func NewService(repo RepositoryPort, audit AuditPort, idem IdempotencyPort, receiveStage string) *Service {
	if !stageledger.ValidStage(receiveStage) {
		receiveStage = stageledger.StageCores
	}
	return &Service{repo: repo, audit: audit, idem: idem, receiveStage: receiveStage}
}

// ItemInput is one product position on an order or receipt.
type ItemInput struct {
	ProductCode string
	Quantity    int64
}

func validateItems(items []ItemInput) error {
	if len(items) == 0 {
		return shared.Validationf("items", "at least one item required")
	}
	for i, item := range items {
		if item.ProductCode == "" {
			return shared.Validationf("items", "item %d: product_code required", i)
		}
		if item.Quantity <= 0 {
			return shared.Validationf("items", "item %d: quantity must be > 0", i)
		}
	}
	return nil
}

// OrderInput carries one job work order.
type OrderInput struct {
	Vendor   string
	SentDate time.Time
	Notes    string
	Items    []ItemInput
	ActorID  int64
}

// CreateOrder records a job work order with its items.
func (s *Service) CreateOrder(ctx context.Context, input OrderInput) (Order, error) {
	if input.Vendor == "" {
		return Order{}, shared.Validationf("vendor", "required")
	}
	if err := validateItems(input.Items); err != nil {
		return Order{}, err
	}
	if input.SentDate.IsZero() {
		input.SentDate = time.Now()
	}
	order := Order{Vendor: input.Vendor, SentDate: input.SentDate, Status: StatusOpen, Notes: input.Notes}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.InsertOrder(ctx, order)
		if err != nil {
			return err
		}
		order.ID = id
		for _, in := range input.Items {
			item := Item{OrderID: id, ProductCode: in.ProductCode, Quantity: in.Quantity}
			itemID, err := tx.InsertOrderItem(ctx, item)
			if err != nil {
				return err
			}
			item.ID = itemID
			order.Items = append(order.Items, item)
		}
		return nil
	})
	if err != nil {
		return Order{}, err
	}
	s.recordAudit(ctx, input.ActorID, "ORDER_CREATE", strconv.FormatInt(order.ID, 10), map[string]any{"vendor": input.Vendor})
	return order, nil
}

// AddItem appends a product position to an open order.
func (s *Service) AddItem(ctx context.Context, orderID int64, input ItemInput, actorID int64) (Item, error) {
	if err := validateItems([]ItemInput{input}); err != nil {
		return Item{}, err
	}
	item := Item{OrderID: orderID, ProductCode: input.ProductCode, Quantity: input.Quantity}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		order, err := tx.GetOrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if order.Status != StatusOpen {
			return shared.Conflictf("job work order %d is %s", orderID, order.Status)
		}
		id, err := tx.InsertOrderItem(ctx, item)
		if err != nil {
			return err
		}
		item.ID = id
		return nil
	})
	if err != nil {
		return Item{}, err
	}
	s.recordAudit(ctx, actorID, "ITEM_ADD", strconv.FormatInt(orderID, 10), map[string]any{"product_code": input.ProductCode})
	return item, nil
}

// ReceiveInput carries one vendor receipt.
type ReceiveInput struct {
	OrderID        int64
	ReceivedDate   time.Time
	Notes          string
	Items          []ItemInput
	IdempotencyKey string
	ActorID        int64
}

// Receive credits the configured receive stage for each returned product.
// No raw material is consumed; the vendor supplied its own.
func (s *Service) Receive(ctx context.Context, input ReceiveInput) (Receipt, error) {
	if input.OrderID <= 0 {
		return Receipt{}, shared.Validationf("order_id", "required")
	}
	if err := validateItems(input.Items); err != nil {
		return Receipt{}, err
	}
	if input.ReceivedDate.IsZero() {
		input.ReceivedDate = time.Now()
	}
	if input.IdempotencyKey != "" && s.idem != nil {
		if err := s.idem.CheckAndInsert(ctx, input.IdempotencyKey, "jobwork"); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				return Receipt{}, shared.Conflictf("receipt already recorded for key %s", input.IdempotencyKey)
			}
			return Receipt{}, err
		}
	}
	receipt := Receipt{OrderID: input.OrderID, ReceivedDate: input.ReceivedDate, Notes: input.Notes}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		order, err := tx.GetOrderForUpdate(ctx, input.OrderID)
		if err != nil {
			return err
		}
		if order.Status != StatusOpen {
			return shared.Conflictf("job work order %d is %s", input.OrderID, order.Status)
		}
		id, err := tx.InsertReceipt(ctx, receipt)
		if err != nil {
			return err
		}
		receipt.ID = id
		for _, in := range input.Items {
			if err := tx.AddStageCounter(ctx, in.ProductCode, s.receiveStage, in.Quantity); err != nil {
				return err
			}
			item := ReceiptItem{ReceiptID: id, ProductCode: in.ProductCode, Quantity: in.Quantity, Stage: s.receiveStage}
			itemID, err := tx.InsertReceiptItem(ctx, item)
			if err != nil {
				return err
			}
			item.ID = itemID
			receipt.Items = append(receipt.Items, item)
		}
		return nil
	})
	if err != nil {
		if input.IdempotencyKey != "" && s.idem != nil {
			_ = s.idem.Delete(ctx, input.IdempotencyKey)
		}
		return Receipt{}, err
	}
	s.recordAudit(ctx, input.ActorID, "RECEIPT_RECORD", strconv.FormatInt(receipt.ID, 10), map[string]any{
		"order_id": input.OrderID,
		"stage":    s.receiveStage,
	})
	return receipt, nil
}

// DeleteReceipt reverses a receipt: each credited stage counter is
// decremented by the recorded quantity. The reversal is refused if any
// counter would go negative or drop below its active allocations.
func (s *Service) DeleteReceipt(ctx context.Context, id int64, actorID int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		receipt, err := tx.GetReceiptForUpdate(ctx, id)
		if err != nil {
			return err
		}
		for _, item := range receipt.Items {
			counter, err := tx.GetStageCounterForUpdate(ctx, item.ProductCode, item.Stage)
			if err != nil {
				return err
			}
			next := counter - item.Quantity
			if next < 0 {
				return shared.Conflictf("stage %s for %s would go negative (%d-%d)", item.Stage, item.ProductCode, counter, item.Quantity)
			}
			allocated, err := tx.SumActiveAllocations(ctx, item.ProductCode, item.Stage)
			if err != nil {
				return err
			}
			if next < allocated {
				return shared.Conflictf("stage %s for %s has %d allocated; cannot drop to %d", item.Stage, item.ProductCode, allocated, next)
			}
			if err := tx.AddStageCounter(ctx, item.ProductCode, item.Stage, -item.Quantity); err != nil {
				return err
			}
		}
		return tx.DeleteReceipt(ctx, id)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, "RECEIPT_DELETE", strconv.FormatInt(id, 10), nil)
	return nil
}

// CloseOrder marks an order closed; closed orders take no more receipts.
func (s *Service) CloseOrder(ctx context.Context, id int64, actorID int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		order, err := tx.GetOrderForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if order.Status != StatusOpen {
			return shared.Conflictf("job work order %d is already %s", id, order.Status)
		}
		return tx.SetOrderStatus(ctx, id, StatusClosed)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, "ORDER_CLOSE", strconv.FormatInt(id, 10), nil)
	return nil
}

// GetOrder returns one order with items.
func (s *Service) GetOrder(ctx context.Context, id int64) (Order, error) {
	return s.repo.GetOrder(ctx, id)
}

// ListOrders lists orders, optionally filtered by status.
func (s *Service) ListOrders(ctx context.Context, status string) ([]Order, error) {
	return s.repo.ListOrders(ctx, status)
}

// GetReceipt returns one receipt with items.
func (s *Service) GetReceipt(ctx context.Context, id int64) (Receipt, error) {
	return s.repo.GetReceipt(ctx, id)
}

// ListReceipts lists receipts for an order.
func (s *Service) ListReceipts(ctx context.Context, orderID int64) ([]Receipt, error) {
	return s.repo.ListReceipts(ctx, orderID)
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action, entityID string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   fmt.Sprintf("jobwork:%s", action),
		Entity:   "jobwork_order",
		EntityID: entityID,
		Meta:     meta,
	})
}
