package allocation

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/earthrod-erp/earthrod-erp/internal/platform/db"
	"github.com/earthrod-erp/earthrod-erp/internal/shared"
	"github.com/earthrod-erp/earthrod-erp/internal/stageledger"
)

// Repository persists allocations in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations used by service.
type TxRepository interface {
	GetStageCounterForUpdate(ctx context.Context, productCode, stage string) (int64, error)
	SumActiveAllocations(ctx context.Context, productCode, stage string) (int64, error)
	InsertAllocation(ctx context.Context, a Allocation) (int64, error)
	GetAllocationForUpdate(ctx context.Context, id int64) (Allocation, error)
	SetAllocationStatus(ctx context.Context, id int64, status string) error
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

const allocationColumns = `id, product_code, stage, marking_type, marking_text, quantity, COALESCE(order_id, 0), status, created_at`

func scanAllocation(row pgx.Row) (Allocation, error) {
	var a Allocation
	err := row.Scan(&a.ID, &a.ProductCode, &a.Stage, &a.MarkingType, &a.MarkingText,
		&a.Quantity, &a.OrderID, &a.Status, &a.CreatedAt)
	return a, err
}

// GetAllocation loads one allocation by id.
func (r *Repository) GetAllocation(ctx context.Context, id int64) (Allocation, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+allocationColumns+` FROM allocations WHERE id = $1`, id)
	a, err := scanAllocation(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Allocation{}, shared.ErrNotFound
		}
		return Allocation{}, err
	}
	return a, nil
}

// ListAllocations lists allocations with optional product/status filters.
func (r *Repository) ListAllocations(ctx context.Context, productCode, status string) ([]Allocation, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+allocationColumns+` FROM allocations
		 WHERE ($1 = '' OR product_code = $1) AND ($2 = '' OR status = $2)
		 ORDER BY created_at DESC, id DESC`,
		productCode, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Allocation
	for rows.Next() {
		a, err := scanAllocation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *txRepo) GetStageCounterForUpdate(ctx context.Context, productCode, stage string) (int64, error) {
	// stage names the column; only whitelisted stage names may reach SQL.
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

func (r *txRepo) SumActiveAllocations(ctx context.Context, productCode, stage string) (int64, error) {
	var sum int64
	err := r.tx.QueryRow(ctx,
		`SELECT COALESCE(SUM(quantity), 0) FROM allocations
		 WHERE product_code = $1 AND stage = $2 AND status = 'ACTIVE'`,
		productCode, stage).Scan(&sum)
	return sum, err
}

func (r *txRepo) InsertAllocation(ctx context.Context, a Allocation) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx,
		`INSERT INTO allocations (product_code, stage, marking_type, marking_text, quantity, order_id, status)
		 VALUES ($1, $2, $3, $4, $5, NULLIF($6, 0), $7) RETURNING id`,
		a.ProductCode, a.Stage, a.MarkingType, a.MarkingText, a.Quantity, a.OrderID, a.Status).Scan(&id)
	return id, err
}

func (r *txRepo) GetAllocationForUpdate(ctx context.Context, id int64) (Allocation, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+allocationColumns+` FROM allocations WHERE id = $1 FOR UPDATE`, id)
	a, err := scanAllocation(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Allocation{}, shared.ErrNotFound
		}
		return Allocation{}, err
	}
	return a, nil
}

func (r *txRepo) SetAllocationStatus(ctx context.Context, id int64, status string) error {
	tag, err := r.tx.Exec(ctx, `UPDATE allocations SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}
