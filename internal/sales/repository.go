package sales

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/earthrod-erp/earthrod-erp/internal/platform/db"
	"github.com/earthrod-erp/earthrod-erp/internal/shared"
)

// Repository persists sales data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations used by service.
type TxRepository interface {
	InsertOrder(ctx context.Context, o Order) (int64, error)
	InsertLineItem(ctx context.Context, l LineItem) (int64, error)
	InsertInvoice(ctx context.Context, inv Invoice) (int64, error)
	GetOrderForUpdate(ctx context.Context, id int64) (Order, error)
	CountShipments(ctx context.Context, orderID int64) (int64, error)
	CountInvoices(ctx context.Context, orderID int64) (int64, error)
	ReleaseOrderAllocations(ctx context.Context, orderID int64) error
	DeleteOrder(ctx context.Context, id int64) error
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func loadOrder(ctx context.Context, q querier, id int64, forUpdate bool) (Order, error) {
	query := `SELECT id, order_no, customer_id, currency, status, created_at FROM orders WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	var o Order
	err := q.QueryRow(ctx, query, id).Scan(&o.ID, &o.OrderNo, &o.CustomerID, &o.Currency, &o.Status, &o.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, shared.ErrNotFound
		}
		return Order{}, err
	}
	rows, err := q.Query(ctx,
		`SELECT id, order_id, product_code, quantity, unit_price::text, delivered, marking_text
		 FROM order_line_items WHERE order_id = $1 ORDER BY id`, id)
	if err != nil {
		return Order{}, err
	}
	defer rows.Close()
	for rows.Next() {
		l, err := scanLine(rows)
		if err != nil {
			return Order{}, err
		}
		o.Lines = append(o.Lines, l)
	}
	return o, rows.Err()
}

func scanLine(row pgx.Row) (LineItem, error) {
	var l LineItem
	var price string
	err := row.Scan(&l.ID, &l.OrderID, &l.ProductCode, &l.Quantity, &price, &l.Delivered, &l.MarkingText)
	if err != nil {
		return LineItem{}, err
	}
	if l.UnitPrice, err = decimal.NewFromString(price); err != nil {
		return LineItem{}, err
	}
	return l, nil
}

// GetOrder loads an order with its lines.
func (r *Repository) GetOrder(ctx context.Context, id int64) (Order, error) {
	return loadOrder(ctx, r.pool, id, false)
}

// ListOrders lists orders without lines, optionally filtered by status.
func (r *Repository) ListOrders(ctx context.Context, status string) ([]Order, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, order_no, customer_id, currency, status, created_at FROM orders
		 WHERE ($1 = '' OR status = $1) ORDER BY created_at DESC, id DESC`, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		var o Order
		if err := rows.Scan(&o.ID, &o.OrderNo, &o.CustomerID, &o.Currency, &o.Status, &o.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// GetOrderLine loads one line by order and product.
func (r *Repository) GetOrderLine(ctx context.Context, orderID int64, productCode string) (LineItem, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, order_id, product_code, quantity, unit_price::text, delivered, marking_text
		 FROM order_line_items WHERE order_id = $1 AND product_code = $2`, orderID, productCode)
	l, err := scanLine(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return LineItem{}, shared.ErrNotFound
		}
		return LineItem{}, err
	}
	return l, nil
}

// ListInvoices lists invoices for an order.
func (r *Repository) ListInvoices(ctx context.Context, orderID int64) ([]Invoice, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, order_id, number, total::text, created_at FROM invoices WHERE order_id = $1 ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Invoice
	for rows.Next() {
		var inv Invoice
		var total string
		if err := rows.Scan(&inv.ID, &inv.OrderID, &inv.Number, &total, &inv.CreatedAt); err != nil {
			return nil, err
		}
		if inv.Total, err = decimal.NewFromString(total); err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

func (r *txRepo) InsertOrder(ctx context.Context, o Order) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx,
		`INSERT INTO orders (order_no, customer_id, currency, status) VALUES ($1, $2, $3, $4) RETURNING id`,
		o.OrderNo, o.CustomerID, o.Currency, o.Status).Scan(&id)
	return id, err
}

func (r *txRepo) InsertLineItem(ctx context.Context, l LineItem) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx,
		`INSERT INTO order_line_items (order_id, product_code, quantity, unit_price, marking_text)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		l.OrderID, l.ProductCode, l.Quantity, l.UnitPrice.String(), l.MarkingText).Scan(&id)
	return id, err
}

func (r *txRepo) InsertInvoice(ctx context.Context, inv Invoice) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx,
		`INSERT INTO invoices (order_id, number, total) VALUES ($1, $2, $3) RETURNING id`,
		inv.OrderID, inv.Number, inv.Total.String()).Scan(&id)
	return id, err
}

func (r *txRepo) GetOrderForUpdate(ctx context.Context, id int64) (Order, error) {
	return loadOrder(ctx, r.tx, id, true)
}

func (r *txRepo) CountShipments(ctx context.Context, orderID int64) (int64, error) {
	var n int64
	err := r.tx.QueryRow(ctx, `SELECT COUNT(*) FROM shipments WHERE order_id = $1`, orderID).Scan(&n)
	return n, err
}

func (r *txRepo) CountInvoices(ctx context.Context, orderID int64) (int64, error) {
	var n int64
	err := r.tx.QueryRow(ctx, `SELECT COUNT(*) FROM invoices WHERE order_id = $1`, orderID).Scan(&n)
	return n, err
}

func (r *txRepo) ReleaseOrderAllocations(ctx context.Context, orderID int64) error {
	_, err := r.tx.Exec(ctx,
		`UPDATE allocations SET status = 'RELEASED' WHERE order_id = $1 AND status = 'ACTIVE'`, orderID)
	return err
}

func (r *txRepo) DeleteOrder(ctx context.Context, id int64) error {
	if _, err := r.tx.Exec(ctx, `DELETE FROM order_line_items WHERE order_id = $1`, id); err != nil {
		return err
	}
	tag, err := r.tx.Exec(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}
