package shipment

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/earthrod-erp/earthrod-erp/internal/platform/db"
	"github.com/earthrod-erp/earthrod-erp/internal/shared"
)

// Repository persists shipments in PostgreSQL.
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

func loadShipment(ctx context.Context, q querier, id int64, forUpdate bool) (Shipment, error) {
	query := `SELECT id, reference, order_id, ship_date, carrier, bl_number, notes, created_at FROM shipments WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	var s Shipment
	err := q.QueryRow(ctx, query, id).Scan(&s.ID, &s.Reference, &s.OrderID, &s.ShipDate, &s.Carrier, &s.BLNumber, &s.Notes, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Shipment{}, shared.ErrNotFound
		}
		return Shipment{}, err
	}
	rows, err := q.Query(ctx,
		`SELECT id, shipment_id, product_code, quantity, COALESCE(allocation_id, 0), allocation_qty
		 FROM shipment_items WHERE shipment_id = $1 ORDER BY id`, id)
	if err != nil {
		return Shipment{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var item Item
		if err := rows.Scan(&item.ID, &item.ShipmentID, &item.ProductCode, &item.Quantity, &item.AllocationID, &item.AllocationQty); err != nil {
			return Shipment{}, err
		}
		s.Items = append(s.Items, item)
	}
	return s, rows.Err()
}

// GetShipment loads one shipment with items.
func (r *Repository) GetShipment(ctx context.Context, id int64) (Shipment, error) {
	return loadShipment(ctx, r.pool, id, false)
}

// ListShipments lists shipments without items, optionally for one order.
func (r *Repository) ListShipments(ctx context.Context, orderID int64) ([]Shipment, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, reference, order_id, ship_date, carrier, bl_number, notes, created_at FROM shipments
		 WHERE ($1 = 0 OR order_id = $1) ORDER BY ship_date DESC, id DESC`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Shipment
	for rows.Next() {
		var s Shipment
		if err := rows.Scan(&s.ID, &s.Reference, &s.OrderID, &s.ShipDate, &s.Carrier, &s.BLNumber, &s.Notes, &s.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *txRepo) GetOrderLineForUpdate(ctx context.Context, orderID int64, productCode string) (OrderLine, error) {
	var line OrderLine
	err := r.tx.QueryRow(ctx,
		`SELECT id, quantity, delivered FROM order_line_items
		 WHERE order_id = $1 AND product_code = $2 FOR UPDATE`, orderID, productCode).
		Scan(&line.ID, &line.Quantity, &line.Delivered)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return OrderLine{}, shared.ErrNotFound
		}
		return OrderLine{}, err
	}
	return line, nil
}

func (r *txRepo) AddDelivered(ctx context.Context, lineID, delta int64) error {
	_, err := r.tx.Exec(ctx,
		`UPDATE order_line_items SET delivered = delivered + $2 WHERE id = $1`, lineID, delta)
	return err
}

func (r *txRepo) RefreshOrderStatus(ctx context.Context, orderID int64) error {
	_, err := r.tx.Exec(ctx,
		`UPDATE orders SET status = CASE
			WHEN NOT EXISTS (SELECT 1 FROM order_line_items WHERE order_id = $1 AND delivered < quantity)
			THEN 'FULFILLED' ELSE 'OPEN' END
		 WHERE id = $1 AND status <> 'CANCELLED'`, orderID)
	return err
}

func (r *txRepo) GetPackedForUpdate(ctx context.Context, productCode string) (int64, error) {
	var packed int64
	err := r.tx.QueryRow(ctx,
		`SELECT packed FROM stage_inventory WHERE product_code = $1 FOR UPDATE`, productCode).Scan(&packed)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	return packed, nil
}

func (r *txRepo) AddPacked(ctx context.Context, productCode string, delta int64) error {
	tag, err := r.tx.Exec(ctx,
		`UPDATE stage_inventory SET packed = packed + $2, updated_at = NOW() WHERE product_code = $1`,
		productCode, delta)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.Conflictf("product %s has no stage inventory", productCode)
	}
	return nil
}

func (r *txRepo) FindActiveAllocation(ctx context.Context, productCode string, orderID int64) (AllocationRef, bool, error) {
	var ref AllocationRef
	err := r.tx.QueryRow(ctx,
		`SELECT id, quantity FROM allocations
		 WHERE product_code = $1 AND order_id = $2 AND status = 'ACTIVE'
		 ORDER BY id LIMIT 1 FOR UPDATE`, productCode, orderID).Scan(&ref.ID, &ref.Quantity)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return AllocationRef{}, false, nil
		}
		return AllocationRef{}, false, err
	}
	return ref, true, nil
}

func (r *txRepo) SumActiveAllocations(ctx context.Context, productCode, stage string) (int64, error) {
	var sum int64
	err := r.tx.QueryRow(ctx,
		`SELECT COALESCE(SUM(quantity), 0) FROM allocations
		 WHERE product_code = $1 AND stage = $2 AND status = 'ACTIVE'`,
		productCode, stage).Scan(&sum)
	return sum, err
}

func (r *txRepo) ConsumeAllocation(ctx context.Context, id, qty int64) error {
	_, err := r.tx.Exec(ctx,
		`UPDATE allocations SET quantity = quantity - $2,
			status = CASE WHEN quantity - $2 = 0 THEN 'CONSUMED' ELSE status END
		 WHERE id = $1`, id, qty)
	return err
}

func (r *txRepo) RestoreAllocation(ctx context.Context, id, qty int64) error {
	_, err := r.tx.Exec(ctx,
		`UPDATE allocations SET quantity = quantity + $2, status = 'ACTIVE' WHERE id = $1`, id, qty)
	return err
}

func (r *txRepo) InsertShipment(ctx context.Context, s Shipment) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx,
		`INSERT INTO shipments (reference, order_id, ship_date, carrier, bl_number, notes)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		s.Reference, s.OrderID, s.ShipDate, s.Carrier, s.BLNumber, s.Notes).Scan(&id)
	return id, err
}

func (r *txRepo) InsertShipmentItem(ctx context.Context, item Item) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx,
		`INSERT INTO shipment_items (shipment_id, product_code, quantity, allocation_id, allocation_qty)
		 VALUES ($1, $2, $3, NULLIF($4, 0), $5) RETURNING id`,
		item.ShipmentID, item.ProductCode, item.Quantity, item.AllocationID, item.AllocationQty).Scan(&id)
	return id, err
}

func (r *txRepo) GetShipmentForUpdate(ctx context.Context, id int64) (Shipment, error) {
	return loadShipment(ctx, r.tx, id, true)
}

func (r *txRepo) DeleteShipment(ctx context.Context, id int64) error {
	tag, err := r.tx.Exec(ctx, `DELETE FROM shipments WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}
