package jobwork

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/earthrod-erp/earthrod-erp/internal/platform/db"
	"github.com/earthrod-erp/earthrod-erp/internal/shared"
	"github.com/earthrod-erp/earthrod-erp/internal/stageledger"
)

// Repository persists job work data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
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
	query := `SELECT id, vendor, sent_date, status, notes, created_at FROM jobwork_orders WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	var o Order
	err := q.QueryRow(ctx, query, id).Scan(&o.ID, &o.Vendor, &o.SentDate, &o.Status, &o.Notes, &o.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, shared.ErrNotFound
		}
		return Order{}, err
	}
	rows, err := q.Query(ctx,
		`SELECT id, order_id, product_code, quantity FROM jobwork_items WHERE order_id = $1 ORDER BY id`, id)
	if err != nil {
		return Order{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var item Item
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductCode, &item.Quantity); err != nil {
			return Order{}, err
		}
		o.Items = append(o.Items, item)
	}
	return o, rows.Err()
}

func loadReceipt(ctx context.Context, q querier, id int64, forUpdate bool) (Receipt, error) {
	query := `SELECT id, order_id, received_date, notes, created_at FROM jobwork_receipts WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	var rec Receipt
	err := q.QueryRow(ctx, query, id).Scan(&rec.ID, &rec.OrderID, &rec.ReceivedDate, &rec.Notes, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Receipt{}, shared.ErrNotFound
		}
		return Receipt{}, err
	}
	rows, err := q.Query(ctx,
		`SELECT id, receipt_id, product_code, quantity, stage FROM jobwork_receipt_items WHERE receipt_id = $1 ORDER BY id`, id)
	if err != nil {
		return Receipt{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var item ReceiptItem
		if err := rows.Scan(&item.ID, &item.ReceiptID, &item.ProductCode, &item.Quantity, &item.Stage); err != nil {
			return Receipt{}, err
		}
		rec.Items = append(rec.Items, item)
	}
	return rec, rows.Err()
}

// GetOrder loads one job work order with items.
func (r *Repository) GetOrder(ctx context.Context, id int64) (Order, error) {
	return loadOrder(ctx, r.pool, id, false)
}

// ListOrders lists orders without items, optionally filtered by status.
func (r *Repository) ListOrders(ctx context.Context, status string) ([]Order, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, vendor, sent_date, status, notes, created_at FROM jobwork_orders
		 WHERE ($1 = '' OR status = $1) ORDER BY sent_date DESC, id DESC`, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		var o Order
		if err := rows.Scan(&o.ID, &o.Vendor, &o.SentDate, &o.Status, &o.Notes, &o.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// GetReceipt loads one receipt with items.
func (r *Repository) GetReceipt(ctx context.Context, id int64) (Receipt, error) {
	return loadReceipt(ctx, r.pool, id, false)
}

// ListReceipts lists receipts for an order, items included.
func (r *Repository) ListReceipts(ctx context.Context, orderID int64) ([]Receipt, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id FROM jobwork_receipts WHERE order_id = $1 ORDER BY received_date DESC, id DESC`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	out := make([]Receipt, 0, len(ids))
	for _, id := range ids {
		rec, err := loadReceipt(ctx, r.pool, id, false)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (r *txRepo) InsertOrder(ctx context.Context, o Order) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx,
		`INSERT INTO jobwork_orders (vendor, sent_date, status, notes) VALUES ($1, $2, $3, $4) RETURNING id`,
		o.Vendor, o.SentDate, o.Status, o.Notes).Scan(&id)
	return id, err
}

func (r *txRepo) InsertOrderItem(ctx context.Context, item Item) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx,
		`INSERT INTO jobwork_items (order_id, product_code, quantity) VALUES ($1, $2, $3) RETURNING id`,
		item.OrderID, item.ProductCode, item.Quantity).Scan(&id)
	return id, err
}

func (r *txRepo) GetOrderForUpdate(ctx context.Context, id int64) (Order, error) {
	return loadOrder(ctx, r.tx, id, true)
}

func (r *txRepo) SetOrderStatus(ctx context.Context, id int64, status string) error {
	tag, err := r.tx.Exec(ctx, `UPDATE jobwork_orders SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *txRepo) InsertReceipt(ctx context.Context, rec Receipt) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx,
		`INSERT INTO jobwork_receipts (order_id, received_date, notes) VALUES ($1, $2, $3) RETURNING id`,
		rec.OrderID, rec.ReceivedDate, rec.Notes).Scan(&id)
	return id, err
}

func (r *txRepo) InsertReceiptItem(ctx context.Context, item ReceiptItem) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx,
		`INSERT INTO jobwork_receipt_items (receipt_id, product_code, quantity, stage) VALUES ($1, $2, $3, $4) RETURNING id`,
		item.ReceiptID, item.ProductCode, item.Quantity, item.Stage).Scan(&id)
	return id, err
}

func (r *txRepo) GetReceiptForUpdate(ctx context.Context, id int64) (Receipt, error) {
	return loadReceipt(ctx, r.tx, id, true)
}

func (r *txRepo) DeleteReceipt(ctx context.Context, id int64) error {
	tag, err := r.tx.Exec(ctx, `DELETE FROM jobwork_receipts WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *txRepo) GetStageCounterForUpdate(ctx context.Context, productCode, stage string) (int64, error) {
	if !stageledger.ValidStage(stage) {
		return 0, shared.Validationf("stage", "unknown stage %q", stage)
	}
	var counter int64
	err := r.tx.QueryRow(ctx,
		`SELECT `+stage+` FROM stage_inventory WHERE product_code = $1 FOR UPDATE`, productCode).Scan(&counter)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	return counter, nil
}

func (r *txRepo) AddStageCounter(ctx context.Context, productCode, stage string, delta int64) error {
	if !stageledger.ValidStage(stage) {
		return shared.Validationf("stage", "unknown stage %q", stage)
	}
	if _, err := r.tx.Exec(ctx,
		`INSERT INTO stage_inventory (product_code) VALUES ($1) ON CONFLICT (product_code) DO NOTHING`,
		productCode); err != nil {
		return err
	}
	_, err := r.tx.Exec(ctx,
		`UPDATE stage_inventory SET `+stage+` = `+stage+` + $2, updated_at = NOW() WHERE product_code = $1`,
		productCode, delta)
	return err
}

func (r *txRepo) SumActiveAllocations(ctx context.Context, productCode, stage string) (int64, error) {
	var sum int64
	err := r.tx.QueryRow(ctx,
		`SELECT COALESCE(SUM(quantity), 0) FROM allocations
		 WHERE product_code = $1 AND stage = $2 AND status = 'ACTIVE'`,
		productCode, stage).Scan(&sum)
	return sum, err
}
