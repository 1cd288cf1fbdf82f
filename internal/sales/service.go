package sales

import (
	"context"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/earthrod-erp/earthrod-erp/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetOrder(ctx context.Context, id int64) (Order, error)
	ListOrders(ctx context.Context, status string) ([]Order, error)
	GetOrderLine(ctx context.Context, orderID int64, productCode string) (LineItem, error)
	ListInvoices(ctx context.Context, orderID int64) ([]Invoice, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates sales orders and invoices.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit}
}

// LineInput carries one order line.
type LineInput struct {
	ProductCode string
	Quantity    int64
	UnitPrice   decimal.Decimal
	MarkingText string
}

// OrderInput carries one order creation request.
type OrderInput struct {
	OrderNo    string
	CustomerID int64
	Currency   string
	Lines      []LineInput
	ActorID    int64
}

// CreateOrder records an order with its lines in one transaction.
func (s *Service) CreateOrder(ctx context.Context, input OrderInput) (Order, error) {
	if input.OrderNo == "" {
		return Order{}, shared.Validationf("order_no", "required")
	}
	if input.CustomerID <= 0 {
		return Order{}, shared.Validationf("customer_id", "required")
	}
	if len(input.Lines) == 0 {
		return Order{}, shared.Validationf("lines", "at least one line required")
	}
	seen := make(map[string]bool, len(input.Lines))
	for i, line := range input.Lines {
		if line.ProductCode == "" {
			return Order{}, shared.Validationf("lines", "line %d: product_code required", i)
		}
		if line.Quantity <= 0 {
			return Order{}, shared.Validationf("lines", "line %d: quantity must be > 0", i)
		}
		if line.UnitPrice.IsNegative() {
			return Order{}, shared.Validationf("lines", "line %d: unit_price must be >= 0", i)
		}
		if seen[line.ProductCode] {
			return Order{}, shared.Validationf("lines", "duplicate product %s", line.ProductCode)
		}
		seen[line.ProductCode] = true
	}
	if input.Currency == "" {
		input.Currency = "USD"
	}
	order := Order{
		OrderNo:    input.OrderNo,
		CustomerID: input.CustomerID,
		Currency:   input.Currency,
		Status:     StatusOpen,
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.InsertOrder(ctx, order)
		if err != nil {
			return err
		}
		order.ID = id
		for _, line := range input.Lines {
			item := LineItem{
				OrderID:     id,
				ProductCode: line.ProductCode,
				Quantity:    line.Quantity,
				UnitPrice:   line.UnitPrice,
				MarkingText: line.MarkingText,
			}
			lineID, err := tx.InsertLineItem(ctx, item)
			if err != nil {
				return err
			}
			item.ID = lineID
			order.Lines = append(order.Lines, item)
		}
		return nil
	})
	if err != nil {
		return Order{}, err
	}
	s.recordAudit(ctx, input.ActorID, "ORDER_CREATE", strconv.FormatInt(order.ID, 10), map[string]any{
		"order_no": order.OrderNo,
		"lines":    len(order.Lines),
	})
	return order, nil
}

// GetOrder returns an order with its lines.
func (s *Service) GetOrder(ctx context.Context, id int64) (Order, error) {
	return s.repo.GetOrder(ctx, id)
}

// ListOrders lists orders, optionally filtered by status.
func (s *Service) ListOrders(ctx context.Context, status string) ([]Order, error) {
	return s.repo.ListOrders(ctx, status)
}

// GetOrderLine returns one line of an order by product.
func (s *Service) GetOrderLine(ctx context.Context, orderID int64, productCode string) (LineItem, error) {
	return s.repo.GetOrderLine(ctx, orderID, productCode)
}

// CreateInvoice records a minimal invoice against an order. The total
// defaults to the sum of the order lines when not given.
func (s *Service) CreateInvoice(ctx context.Context, orderID int64, number string, total decimal.Decimal, actorID int64) (Invoice, error) {
	if number == "" {
		return Invoice{}, shared.Validationf("number", "required")
	}
	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return Invoice{}, err
	}
	if total.IsZero() {
		for _, line := range order.Lines {
			total = total.Add(line.Total())
		}
	}
	if total.IsNegative() {
		return Invoice{}, shared.Validationf("total", "must be >= 0")
	}
	invoice := Invoice{OrderID: orderID, Number: number, Total: total}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.InsertInvoice(ctx, invoice)
		if err != nil {
			return err
		}
		invoice.ID = id
		return nil
	})
	if err != nil {
		return Invoice{}, err
	}
	s.recordAudit(ctx, actorID, "INVOICE_CREATE", strconv.FormatInt(invoice.ID, 10), map[string]any{
		"order_id": orderID,
		"number":   number,
	})
	return invoice, nil
}

// ListInvoices lists invoices for an order.
func (s *Service) ListInvoices(ctx context.Context, orderID int64) ([]Invoice, error) {
	return s.repo.ListInvoices(ctx, orderID)
}

// DeleteOrder removes an order and its lines. Any shipment, invoice, or
// delivered quantity blocks the delete; the order history must be
// unwound first. Never partial.
func (s *Service) DeleteOrder(ctx context.Context, id int64, actorID int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		order, err := tx.GetOrderForUpdate(ctx, id)
		if err != nil {
			return err
		}
		shipments, err := tx.CountShipments(ctx, id)
		if err != nil {
			return err
		}
		if shipments > 0 {
			return shared.Conflictf("order %s has %d shipment(s)", order.OrderNo, shipments)
		}
		invoices, err := tx.CountInvoices(ctx, id)
		if err != nil {
			return err
		}
		if invoices > 0 {
			return shared.Conflictf("order %s has %d invoice(s)", order.OrderNo, invoices)
		}
		for _, line := range order.Lines {
			if line.Delivered > 0 {
				return shared.Conflictf("order %s has delivered quantity on %s", order.OrderNo, line.ProductCode)
			}
		}
		if err := tx.ReleaseOrderAllocations(ctx, id); err != nil {
			return err
		}
		return tx.DeleteOrder(ctx, id)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, "ORDER_DELETE", strconv.FormatInt(id, 10), nil)
	return nil
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action, entityID string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   fmt.Sprintf("sales:%s", action),
		Entity:   "order",
		EntityID: entityID,
		Meta:     meta,
	})
}
