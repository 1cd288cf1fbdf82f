package db

// Migrations is the ordered schema history. Append only; never edit an
// applied version.
var Migrations = []Migration{
	{
		Version: 1,
		Name:    "catalog",
		SQL: `
CREATE TABLE IF NOT EXISTS products (
	code TEXT PRIMARY KEY,
	steel_diameter_mm NUMERIC(8,3) NOT NULL,
	copper_coating_um NUMERIC(8,2) NOT NULL,
	length_mm NUMERIC(10,2) NOT NULL,
	cbg_diameter_mm NUMERIC(8,3) NOT NULL,
	active BOOLEAN NOT NULL DEFAULT TRUE,
	threaded BOOLEAN NOT NULL DEFAULT FALSE,
	base_code TEXT REFERENCES products(code),
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS bom_entries (
	id BIGSERIAL PRIMARY KEY,
	product_code TEXT NOT NULL REFERENCES products(code),
	material TEXT NOT NULL,
	qty_per_unit NUMERIC(12,4) NOT NULL CHECK (qty_per_unit > 0),
	UNIQUE (product_code, material)
);`,
	},
	{
		Version: 2,
		Name:    "raw_materials",
		SQL: `
CREATE TABLE IF NOT EXISTS raw_materials (
	material TEXT PRIMARY KEY,
	current_stock NUMERIC(14,4) NOT NULL DEFAULT 0 CHECK (current_stock >= 0),
	committed_stock NUMERIC(14,4) NOT NULL DEFAULT 0 CHECK (committed_stock >= 0),
	avg_cost NUMERIC(14,4) NOT NULL DEFAULT 0,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS raw_material_receipts (
	id BIGSERIAL PRIMARY KEY,
	material TEXT NOT NULL REFERENCES raw_materials(material),
	qty NUMERIC(14,4) NOT NULL CHECK (qty > 0),
	unit_cost NUMERIC(14,4) NOT NULL CHECK (unit_cost >= 0),
	received_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	note TEXT NOT NULL DEFAULT ''
);`,
	},
	{
		Version: 3,
		Name:    "stage_ledger",
		SQL: `
CREATE TABLE IF NOT EXISTS stage_inventory (
	product_code TEXT PRIMARY KEY REFERENCES products(code),
	cores BIGINT NOT NULL DEFAULT 0 CHECK (cores >= 0),
	plated BIGINT NOT NULL DEFAULT 0 CHECK (plated >= 0),
	machined BIGINT NOT NULL DEFAULT 0 CHECK (machined >= 0),
	qc BIGINT NOT NULL DEFAULT 0 CHECK (qc >= 0),
	stamped BIGINT NOT NULL DEFAULT 0 CHECK (stamped >= 0),
	packed BIGINT NOT NULL DEFAULT 0 CHECK (packed >= 0),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS production_entries (
	id BIGSERIAL PRIMARY KEY,
	entry_date DATE NOT NULL,
	product_code TEXT NOT NULL REFERENCES products(code),
	cores_delta BIGINT NOT NULL DEFAULT 0,
	plated_delta BIGINT NOT NULL DEFAULT 0,
	machined_delta BIGINT NOT NULL DEFAULT 0,
	qc_delta BIGINT NOT NULL DEFAULT 0,
	stamped_delta BIGINT NOT NULL DEFAULT 0,
	packed_delta BIGINT NOT NULL DEFAULT 0,
	rejected BIGINT NOT NULL DEFAULT 0,
	charged_stage TEXT NOT NULL DEFAULT '',
	notes TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS production_entry_consumption (
	id BIGSERIAL PRIMARY KEY,
	entry_id BIGINT NOT NULL REFERENCES production_entries(id) ON DELETE CASCADE,
	material TEXT NOT NULL REFERENCES raw_materials(material),
	qty NUMERIC(14,4) NOT NULL CHECK (qty > 0)
);
CREATE TABLE IF NOT EXISTS stock_adjustments (
	id BIGSERIAL PRIMARY KEY,
	adj_date DATE NOT NULL,
	product_code TEXT NOT NULL REFERENCES products(code),
	stage TEXT NOT NULL,
	quantity BIGINT NOT NULL,
	adj_type TEXT NOT NULL,
	reason TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`,
	},
	{
		Version: 4,
		Name:    "allocations",
		SQL: `
CREATE TABLE IF NOT EXISTS allocations (
	id BIGSERIAL PRIMARY KEY,
	product_code TEXT NOT NULL REFERENCES products(code),
	stage TEXT NOT NULL,
	marking_type TEXT NOT NULL,
	marking_text TEXT NOT NULL DEFAULT '',
	quantity BIGINT NOT NULL CHECK (quantity >= 0),
	order_id BIGINT,
	status TEXT NOT NULL DEFAULT 'ACTIVE',
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_allocations_product_stage
	ON allocations (product_code, stage) WHERE status = 'ACTIVE';`,
	},
	{
		Version: 5,
		Name:    "sales",
		SQL: `
CREATE TABLE IF NOT EXISTS orders (
	id BIGSERIAL PRIMARY KEY,
	order_no TEXT NOT NULL UNIQUE,
	customer_id BIGINT NOT NULL,
	currency TEXT NOT NULL DEFAULT 'USD',
	status TEXT NOT NULL DEFAULT 'OPEN',
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS order_line_items (
	id BIGSERIAL PRIMARY KEY,
	order_id BIGINT NOT NULL REFERENCES orders(id),
	product_code TEXT NOT NULL REFERENCES products(code),
	quantity BIGINT NOT NULL CHECK (quantity > 0),
	unit_price NUMERIC(14,4) NOT NULL DEFAULT 0,
	delivered BIGINT NOT NULL DEFAULT 0 CHECK (delivered >= 0 AND delivered <= quantity),
	marking_text TEXT NOT NULL DEFAULT '',
	UNIQUE (order_id, product_code)
);
CREATE TABLE IF NOT EXISTS invoices (
	id BIGSERIAL PRIMARY KEY,
	order_id BIGINT NOT NULL REFERENCES orders(id),
	number TEXT NOT NULL UNIQUE,
	total NUMERIC(14,2) NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`,
	},
	{
		Version: 6,
		Name:    "shipments",
		SQL: `
CREATE TABLE IF NOT EXISTS shipments (
	id BIGSERIAL PRIMARY KEY,
	reference UUID NOT NULL UNIQUE,
	order_id BIGINT NOT NULL REFERENCES orders(id),
	ship_date DATE NOT NULL,
	carrier TEXT NOT NULL DEFAULT '',
	bl_number TEXT NOT NULL DEFAULT '',
	notes TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS shipment_items (
	id BIGSERIAL PRIMARY KEY,
	shipment_id BIGINT NOT NULL REFERENCES shipments(id) ON DELETE CASCADE,
	product_code TEXT NOT NULL REFERENCES products(code),
	quantity BIGINT NOT NULL CHECK (quantity > 0),
	allocation_id BIGINT REFERENCES allocations(id),
	allocation_qty BIGINT NOT NULL DEFAULT 0
);`,
	},
	{
		Version: 7,
		Name:    "jobwork",
		SQL: `
CREATE TABLE IF NOT EXISTS jobwork_orders (
	id BIGSERIAL PRIMARY KEY,
	vendor TEXT NOT NULL,
	sent_date DATE NOT NULL,
	status TEXT NOT NULL DEFAULT 'OPEN',
	notes TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS jobwork_items (
	id BIGSERIAL PRIMARY KEY,
	order_id BIGINT NOT NULL REFERENCES jobwork_orders(id) ON DELETE CASCADE,
	product_code TEXT NOT NULL REFERENCES products(code),
	quantity BIGINT NOT NULL CHECK (quantity > 0)
);
CREATE TABLE IF NOT EXISTS jobwork_receipts (
	id BIGSERIAL PRIMARY KEY,
	order_id BIGINT NOT NULL REFERENCES jobwork_orders(id),
	received_date DATE NOT NULL,
	notes TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS jobwork_receipt_items (
	id BIGSERIAL PRIMARY KEY,
	receipt_id BIGINT NOT NULL REFERENCES jobwork_receipts(id) ON DELETE CASCADE,
	product_code TEXT NOT NULL REFERENCES products(code),
	quantity BIGINT NOT NULL CHECK (quantity > 0),
	stage TEXT NOT NULL DEFAULT 'cores'
);`,
	},
	{
		Version: 8,
		Name:    "shared",
		SQL: `
CREATE TABLE IF NOT EXISTS audit_logs (
	id BIGSERIAL PRIMARY KEY,
	actor_id BIGINT NOT NULL DEFAULT 0,
	action TEXT NOT NULL,
	entity TEXT NOT NULL,
	entity_id TEXT NOT NULL,
	meta JSONB,
	occurred_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS idempotency_keys (
	key TEXT PRIMARY KEY,
	module TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);`,
	},
}
