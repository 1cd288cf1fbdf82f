package rawmaterial

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/earthrod-erp/earthrod-erp/internal/platform/db"
	"github.com/earthrod-erp/earthrod-erp/internal/shared"
)

// ErrStockNotFound signals that no ledger row exists for a material yet.
var ErrStockNotFound = shared.ErrNotFound

// Repository persists raw-material data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations used by service.
type TxRepository interface {
	GetStockForUpdate(ctx context.Context, material string) (Stock, error)
	UpsertStock(ctx context.Context, stock Stock) error
	InsertReceipt(ctx context.Context, receipt Receipt) error
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

const stockColumns = `material, current_stock::text, committed_stock::text, avg_cost::text, updated_at`

func scanStock(row pgx.Row) (Stock, error) {
	var s Stock
	var current, committed, avg string
	if err := row.Scan(&s.Material, &current, &committed, &avg, &s.UpdatedAt); err != nil {
		return Stock{}, err
	}
	var err error
	if s.CurrentStock, err = decimal.NewFromString(current); err != nil {
		return Stock{}, err
	}
	if s.CommittedStock, err = decimal.NewFromString(committed); err != nil {
		return Stock{}, err
	}
	if s.AvgCost, err = decimal.NewFromString(avg); err != nil {
		return Stock{}, err
	}
	return s, nil
}

// GetStock loads one material's ledger row.
func (r *Repository) GetStock(ctx context.Context, material string) (Stock, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+stockColumns+` FROM raw_materials WHERE material = $1`, material)
	s, err := scanStock(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Stock{}, ErrStockNotFound
		}
		return Stock{}, err
	}
	return s, nil
}

// ListStocks lists every material ledger row.
func (r *Repository) ListStocks(ctx context.Context) ([]Stock, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+stockColumns+` FROM raw_materials ORDER BY material`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stocks []Stock
	for rows.Next() {
		s, err := scanStock(rows)
		if err != nil {
			return nil, err
		}
		stocks = append(stocks, s)
	}
	return stocks, rows.Err()
}

// ListReceipts lists recent receipts for one material, newest first.
func (r *Repository) ListReceipts(ctx context.Context, material string, limit int) ([]Receipt, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx,
		`SELECT id, material, qty::text, unit_cost::text, received_at, note
		 FROM raw_material_receipts WHERE material = $1 ORDER BY received_at DESC LIMIT $2`,
		material, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var receipts []Receipt
	for rows.Next() {
		var rec Receipt
		var qty, cost string
		if err := rows.Scan(&rec.ID, &rec.Material, &qty, &cost, &rec.ReceivedAt, &rec.Note); err != nil {
			return nil, err
		}
		if rec.Qty, err = decimal.NewFromString(qty); err != nil {
			return nil, err
		}
		if rec.UnitCost, err = decimal.NewFromString(cost); err != nil {
			return nil, err
		}
		receipts = append(receipts, rec)
	}
	return receipts, rows.Err()
}

func (r *txRepo) GetStockForUpdate(ctx context.Context, material string) (Stock, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+stockColumns+` FROM raw_materials WHERE material = $1 FOR UPDATE`, material)
	s, err := scanStock(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Stock{}, ErrStockNotFound
		}
		return Stock{}, err
	}
	return s, nil
}

func (r *txRepo) UpsertStock(ctx context.Context, stock Stock) error {
	_, err := r.tx.Exec(ctx,
		`INSERT INTO raw_materials (material, current_stock, committed_stock, avg_cost, updated_at)
		 VALUES ($1, $2, $3, $4, NOW())
		 ON CONFLICT (material) DO UPDATE SET
			current_stock = EXCLUDED.current_stock,
			committed_stock = EXCLUDED.committed_stock,
			avg_cost = EXCLUDED.avg_cost,
			updated_at = NOW()`,
		stock.Material, stock.CurrentStock.String(), stock.CommittedStock.String(), stock.AvgCost.String())
	return err
}

func (r *txRepo) InsertReceipt(ctx context.Context, receipt Receipt) error {
	_, err := r.tx.Exec(ctx,
		`INSERT INTO raw_material_receipts (material, qty, unit_cost, note) VALUES ($1, $2, $3, $4)`,
		receipt.Material, receipt.Qty.String(), receipt.UnitCost.String(), receipt.Note)
	return err
}
