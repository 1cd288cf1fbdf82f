package stageledger

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/earthrod-erp/earthrod-erp/internal/platform/db"
	"github.com/earthrod-erp/earthrod-erp/internal/shared"
)

// Repository persists the stage ledger in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations used by service. A
// production posting touches stage_inventory, production_entries,
// production_entry_consumption and raw_materials in one transaction, so
// all four live behind the same port.
type TxRepository interface {
	GetCountersForUpdate(ctx context.Context, productCode string) (StageCounterSet, error)
	UpsertCounters(ctx context.Context, counters StageCounterSet) error
	InsertProductionEntry(ctx context.Context, entry ProductionEntry) (int64, error)
	GetProductionEntryForUpdate(ctx context.Context, id int64) (ProductionEntry, error)
	DeleteProductionEntry(ctx context.Context, id int64) error
	InsertConsumption(ctx context.Context, c Consumption) error
	ListConsumptionForUpdate(ctx context.Context, entryID int64) ([]Consumption, error)
	InsertAdjustment(ctx context.Context, adj StockAdjustment) (int64, error)
	GetAdjustmentForUpdate(ctx context.Context, id int64) (StockAdjustment, error)
	DeleteAdjustment(ctx context.Context, id int64) error
	SumActiveAllocations(ctx context.Context, productCode, stage string) (int64, error)
	GetBOM(ctx context.Context, productCode string) ([]BOMLine, error)
	GetRawCurrentForUpdate(ctx context.Context, material string) (decimal.Decimal, error)
	AdjustRawStock(ctx context.Context, material string, delta decimal.Decimal) error
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

const counterColumns = `product_code, cores, plated, machined, qc, stamped, packed, updated_at`

func scanCounters(row pgx.Row) (StageCounterSet, error) {
	var c StageCounterSet
	err := row.Scan(&c.ProductCode, &c.Cores, &c.Plated, &c.Machined, &c.QC, &c.Stamped, &c.Packed, &c.UpdatedAt)
	return c, err
}

// GetCounters loads one product's counters. Products without ledger rows
// report all-zero counters.
func (r *Repository) GetCounters(ctx context.Context, productCode string) (StageCounterSet, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+counterColumns+` FROM stage_inventory WHERE product_code = $1`, productCode)
	c, err := scanCounters(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return StageCounterSet{ProductCode: productCode}, nil
		}
		return StageCounterSet{}, err
	}
	return c, nil
}

// ListCounters lists counters for every product that has a ledger row.
func (r *Repository) ListCounters(ctx context.Context) ([]StageCounterSet, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+counterColumns+` FROM stage_inventory ORDER BY product_code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StageCounterSet
	for rows.Next() {
		c, err := scanCounters(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

const entryColumns = `id, product_code, entry_date, cores_delta, plated_delta, machined_delta,
	qc_delta, stamped_delta, packed_delta, rejected, charged_stage, notes, created_at`

func scanEntry(row pgx.Row) (ProductionEntry, error) {
	var e ProductionEntry
	var cores, plated, machined, qc, stamped, packed int64
	err := row.Scan(&e.ID, &e.ProductCode, &e.EntryDate, &cores, &plated, &machined,
		&qc, &stamped, &packed, &e.Rejected, &e.ChargedStage, &e.Notes, &e.CreatedAt)
	if err != nil {
		return ProductionEntry{}, err
	}
	e.StageDeltas = make(map[string]int64)
	for stage, delta := range map[string]int64{
		StageCores: cores, StagePlated: plated, StageMachined: machined,
		StageQC: qc, StageStamped: stamped, StagePacked: packed,
	} {
		if delta != 0 {
			e.StageDeltas[stage] = delta
		}
	}
	return e, nil
}

// GetProductionEntry loads one entry by id.
func (r *Repository) GetProductionEntry(ctx context.Context, id int64) (ProductionEntry, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+entryColumns+` FROM production_entries WHERE id = $1`, id)
	e, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ProductionEntry{}, shared.ErrNotFound
		}
		return ProductionEntry{}, err
	}
	return e, nil
}

// ListProductionEntries lists entries for a product, newest first.
func (r *Repository) ListProductionEntries(ctx context.Context, productCode string, limit int) ([]ProductionEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx,
		`SELECT `+entryColumns+` FROM production_entries WHERE product_code = $1 ORDER BY entry_date DESC, id DESC LIMIT $2`,
		productCode, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ProductionEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ListConsumption returns the recorded consumption rows for an entry.
func (r *Repository) ListConsumption(ctx context.Context, entryID int64) ([]Consumption, error) {
	return scanConsumption(r.pool.Query(ctx,
		`SELECT entry_id, material, qty::text FROM production_entry_consumption WHERE entry_id = $1 ORDER BY material`,
		entryID))
}

// ListAdjustments lists manual adjustments for a product, newest first.
func (r *Repository) ListAdjustments(ctx context.Context, productCode string, limit int) ([]StockAdjustment, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx,
		`SELECT id, product_code, stage, quantity, adj_type, reason, created_at
		 FROM stock_adjustments WHERE product_code = $1 ORDER BY created_at DESC, id DESC LIMIT $2`,
		productCode, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StockAdjustment
	for rows.Next() {
		var adj StockAdjustment
		if err := rows.Scan(&adj.ID, &adj.ProductCode, &adj.Stage, &adj.Delta, &adj.Type, &adj.Reason, &adj.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, adj)
	}
	return out, rows.Err()
}

func scanConsumption(rows pgx.Rows, err error) ([]Consumption, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Consumption
	for rows.Next() {
		var c Consumption
		var qty string
		if err := rows.Scan(&c.EntryID, &c.Material, &qty); err != nil {
			return nil, err
		}
		if c.Qty, err = decimal.NewFromString(qty); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *txRepo) GetCountersForUpdate(ctx context.Context, productCode string) (StageCounterSet, error) {
	// Ensure the row exists so FOR UPDATE has something to lock.
	_, err := r.tx.Exec(ctx,
		`INSERT INTO stage_inventory (product_code) VALUES ($1) ON CONFLICT (product_code) DO NOTHING`,
		productCode)
	if err != nil {
		return StageCounterSet{}, err
	}
	row := r.tx.QueryRow(ctx, `SELECT `+counterColumns+` FROM stage_inventory WHERE product_code = $1 FOR UPDATE`, productCode)
	return scanCounters(row)
}

func (r *txRepo) UpsertCounters(ctx context.Context, c StageCounterSet) error {
	_, err := r.tx.Exec(ctx,
		`UPDATE stage_inventory SET cores = $2, plated = $3, machined = $4, qc = $5, stamped = $6, packed = $7, updated_at = NOW()
		 WHERE product_code = $1`,
		c.ProductCode, c.Cores, c.Plated, c.Machined, c.QC, c.Stamped, c.Packed)
	return err
}

func (r *txRepo) InsertProductionEntry(ctx context.Context, e ProductionEntry) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx,
		`INSERT INTO production_entries (product_code, entry_date, cores_delta, plated_delta, machined_delta,
			qc_delta, stamped_delta, packed_delta, rejected, charged_stage, notes)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 RETURNING id`,
		e.ProductCode, e.EntryDate,
		e.StageDeltas[StageCores], e.StageDeltas[StagePlated], e.StageDeltas[StageMachined],
		e.StageDeltas[StageQC], e.StageDeltas[StageStamped], e.StageDeltas[StagePacked],
		e.Rejected, e.ChargedStage, e.Notes).Scan(&id)
	return id, err
}

func (r *txRepo) GetProductionEntryForUpdate(ctx context.Context, id int64) (ProductionEntry, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+entryColumns+` FROM production_entries WHERE id = $1 FOR UPDATE`, id)
	e, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ProductionEntry{}, shared.ErrNotFound
		}
		return ProductionEntry{}, err
	}
	return e, nil
}

func (r *txRepo) DeleteProductionEntry(ctx context.Context, id int64) error {
	tag, err := r.tx.Exec(ctx, `DELETE FROM production_entries WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *txRepo) InsertConsumption(ctx context.Context, c Consumption) error {
	_, err := r.tx.Exec(ctx,
		`INSERT INTO production_entry_consumption (entry_id, material, qty) VALUES ($1, $2, $3)`,
		c.EntryID, c.Material, c.Qty.String())
	return err
}

func (r *txRepo) ListConsumptionForUpdate(ctx context.Context, entryID int64) ([]Consumption, error) {
	return scanConsumption(r.tx.Query(ctx,
		`SELECT entry_id, material, qty::text FROM production_entry_consumption WHERE entry_id = $1 FOR UPDATE`,
		entryID))
}

func (r *txRepo) InsertAdjustment(ctx context.Context, adj StockAdjustment) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx,
		`INSERT INTO stock_adjustments (adj_date, product_code, stage, quantity, adj_type, reason)
		 VALUES (CURRENT_DATE, $1, $2, $3, $4, $5) RETURNING id`,
		adj.ProductCode, adj.Stage, adj.Delta, string(adj.Type), adj.Reason).Scan(&id)
	return id, err
}

func (r *txRepo) GetAdjustmentForUpdate(ctx context.Context, id int64) (StockAdjustment, error) {
	var adj StockAdjustment
	err := r.tx.QueryRow(ctx,
		`SELECT id, product_code, stage, quantity, adj_type, reason, created_at
		 FROM stock_adjustments WHERE id = $1 FOR UPDATE`, id).
		Scan(&adj.ID, &adj.ProductCode, &adj.Stage, &adj.Delta, &adj.Type, &adj.Reason, &adj.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return StockAdjustment{}, shared.ErrNotFound
		}
		return StockAdjustment{}, err
	}
	return adj, nil
}

func (r *txRepo) DeleteAdjustment(ctx context.Context, id int64) error {
	tag, err := r.tx.Exec(ctx, `DELETE FROM stock_adjustments WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *txRepo) SumActiveAllocations(ctx context.Context, productCode, stage string) (int64, error) {
	var sum int64
	err := r.tx.QueryRow(ctx,
		`SELECT COALESCE(SUM(quantity), 0) FROM allocations
		 WHERE product_code = $1 AND stage = $2 AND status = 'ACTIVE'`,
		productCode, stage).Scan(&sum)
	return sum, err
}

func (r *txRepo) GetBOM(ctx context.Context, productCode string) ([]BOMLine, error) {
	rows, err := r.tx.Query(ctx,
		`SELECT material, qty_per_unit::text FROM bom_entries WHERE product_code = $1 ORDER BY material`,
		productCode)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []BOMLine
	for rows.Next() {
		var line BOMLine
		var qty string
		if err := rows.Scan(&line.Material, &qty); err != nil {
			return nil, err
		}
		if line.QtyPerUnit, err = decimal.NewFromString(qty); err != nil {
			return nil, err
		}
		out = append(out, line)
	}
	return out, rows.Err()
}

func (r *txRepo) GetRawCurrentForUpdate(ctx context.Context, material string) (decimal.Decimal, error) {
	var current string
	err := r.tx.QueryRow(ctx,
		`SELECT current_stock::text FROM raw_materials WHERE material = $1 FOR UPDATE`, material).Scan(&current)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, shared.Conflictf("material %s has no stock record", material)
		}
		return decimal.Zero, err
	}
	return decimal.NewFromString(current)
}

func (r *txRepo) AdjustRawStock(ctx context.Context, material string, delta decimal.Decimal) error {
	tag, err := r.tx.Exec(ctx,
		`UPDATE raw_materials SET current_stock = current_stock + $2, updated_at = NOW() WHERE material = $1`,
		material, delta.String())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.Conflictf("material %s has no stock record", material)
	}
	return nil
}
