package catalog

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/earthrod-erp/earthrod-erp/internal/platform/db"
	"github.com/earthrod-erp/earthrod-erp/internal/shared"
)

// Repository persists catalog data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations used by service.
type TxRepository interface {
	ProductExists(ctx context.Context, code string) (bool, error)
	InsertProduct(ctx context.Context, p Product) error
	UpdateProduct(ctx context.Context, p Product) error
	UpsertBOMEntry(ctx context.Context, entry BOMEntry) error
	CopyProduct(ctx context.Context, oldCode, newCode string) error
	RewriteProductReferences(ctx context.Context, oldCode, newCode string) error
	DeleteProduct(ctx context.Context, code string) error
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

const productColumns = `code, steel_diameter_mm::text, copper_coating_um::text, length_mm::text,
	cbg_diameter_mm::text, active, threaded, COALESCE(base_code, ''), created_at, updated_at`

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	var steel, coating, length, cbg string
	err := row.Scan(&p.Code, &steel, &coating, &length, &cbg, &p.Active, &p.Threaded, &p.BaseCode, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return Product{}, err
	}
	if p.SteelDiameterMM, err = decimal.NewFromString(steel); err != nil {
		return Product{}, err
	}
	if p.CopperCoatingUM, err = decimal.NewFromString(coating); err != nil {
		return Product{}, err
	}
	if p.LengthMM, err = decimal.NewFromString(length); err != nil {
		return Product{}, err
	}
	if p.CBGDiameterMM, err = decimal.NewFromString(cbg); err != nil {
		return Product{}, err
	}
	return p, nil
}

// GetProduct loads one product by code.
func (r *Repository) GetProduct(ctx context.Context, code string) (Product, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE code = $1`, code)
	p, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, shared.ErrNotFound
		}
		return Product{}, err
	}
	return p, nil
}

// ListProducts lists products, optionally only active ones.
func (r *Repository) ListProducts(ctx context.Context, activeOnly bool) ([]Product, error) {
	query := `SELECT ` + productColumns + ` FROM products ORDER BY code`
	if activeOnly {
		query = `SELECT ` + productColumns + ` FROM products WHERE active ORDER BY code`
	}
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// GetBOM returns the bill of materials for a product.
func (r *Repository) GetBOM(ctx context.Context, productCode string) ([]BOMEntry, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT product_code, material, qty_per_unit::text FROM bom_entries WHERE product_code = $1 ORDER BY material`,
		productCode)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []BOMEntry
	for rows.Next() {
		var entry BOMEntry
		var qty string
		if err := rows.Scan(&entry.ProductCode, &entry.Material, &qty); err != nil {
			return nil, err
		}
		if entry.QtyPerUnit, err = decimal.NewFromString(qty); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (r *txRepo) ProductExists(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := r.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM products WHERE code = $1)`, code).Scan(&exists)
	return exists, err
}

func (r *txRepo) InsertProduct(ctx context.Context, p Product) error {
	_, err := r.tx.Exec(ctx,
		`INSERT INTO products (code, steel_diameter_mm, copper_coating_um, length_mm, cbg_diameter_mm, active, threaded, base_code)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''))`,
		p.Code, p.SteelDiameterMM.String(), p.CopperCoatingUM.String(), p.LengthMM.String(),
		p.CBGDiameterMM.String(), p.Active, p.Threaded, p.BaseCode)
	return err
}

func (r *txRepo) UpdateProduct(ctx context.Context, p Product) error {
	tag, err := r.tx.Exec(ctx,
		`UPDATE products SET steel_diameter_mm = $2, copper_coating_um = $3, length_mm = $4,
		 cbg_diameter_mm = $5, active = $6, threaded = $7, base_code = NULLIF($8, ''), updated_at = NOW()
		 WHERE code = $1`,
		p.Code, p.SteelDiameterMM.String(), p.CopperCoatingUM.String(), p.LengthMM.String(),
		p.CBGDiameterMM.String(), p.Active, p.Threaded, p.BaseCode)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *txRepo) UpsertBOMEntry(ctx context.Context, entry BOMEntry) error {
	_, err := r.tx.Exec(ctx,
		`INSERT INTO bom_entries (product_code, material, qty_per_unit) VALUES ($1, $2, $3)
		 ON CONFLICT (product_code, material) DO UPDATE SET qty_per_unit = EXCLUDED.qty_per_unit`,
		entry.ProductCode, entry.Material, entry.QtyPerUnit.String())
	return err
}

func (r *txRepo) CopyProduct(ctx context.Context, oldCode, newCode string) error {
	_, err := r.tx.Exec(ctx,
		`INSERT INTO products (code, steel_diameter_mm, copper_coating_um, length_mm, cbg_diameter_mm, active, threaded, base_code, created_at)
		 SELECT $2, steel_diameter_mm, copper_coating_um, length_mm, cbg_diameter_mm, active, threaded, base_code, created_at
		 FROM products WHERE code = $1`,
		oldCode, newCode)
	return err
}

// referencingTables lists every (table, column) pair that carries a
// product code. The rename cascade rewrites all of them or none.
var referencingTables = []struct {
	table  string
	column string
}{
	{"bom_entries", "product_code"},
	{"stage_inventory", "product_code"},
	{"production_entries", "product_code"},
	{"stock_adjustments", "product_code"},
	{"allocations", "product_code"},
	{"order_line_items", "product_code"},
	{"shipment_items", "product_code"},
	{"jobwork_items", "product_code"},
	{"jobwork_receipt_items", "product_code"},
	{"products", "base_code"},
}

func (r *txRepo) RewriteProductReferences(ctx context.Context, oldCode, newCode string) error {
	for _, ref := range referencingTables {
		_, err := r.tx.Exec(ctx,
			`UPDATE `+ref.table+` SET `+ref.column+` = $2 WHERE `+ref.column+` = $1`,
			oldCode, newCode)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *txRepo) DeleteProduct(ctx context.Context, code string) error {
	tag, err := r.tx.Exec(ctx, `DELETE FROM products WHERE code = $1`, code)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}
