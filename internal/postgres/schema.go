package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// EnsureSchema creates the tables on a fresh database. Idempotent.
func EnsureSchema(ctx context.Context, db *pgxpool.Pool) error {
	schema := `
	CREATE TABLE IF NOT EXISTS sellers (
		id TEXT PRIMARY KEY,
		name TEXT UNIQUE NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS products (
		id TEXT PRIMARY KEY,
		seller_id TEXT NOT NULL REFERENCES sellers(id),
		name TEXT NOT NULL,
		price_cents INT NOT NULL,
		count_in_stock INT NOT NULL CHECK (count_in_stock >= 0),
		ledger_managed BOOLEAN NOT NULL DEFAULT FALSE,
		ledger_last_tx_ref TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	-- append-only stock audit trail
	CREATE TABLE IF NOT EXISTS stock_history (
		id BIGSERIAL PRIMARY KEY,
		product_id TEXT NOT NULL REFERENCES products(id),
		previous_stock INT NOT NULL,
		new_stock INT NOT NULL,
		tx_ref TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS orders (
		id TEXT PRIMARY KEY,
		buyer_id TEXT NOT NULL,
		seller_id TEXT NOT NULL REFERENCES sellers(id),
		status TEXT NOT NULL,
		total_cents INT NOT NULL,
		shipping_address TEXT,
		payment_method TEXT NOT NULL,
		estimated_delivery TIMESTAMPTZ,
		actual_delivery TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS order_items (
		id BIGSERIAL PRIMARY KEY,
		order_id TEXT NOT NULL REFERENCES orders(id),
		product_id TEXT NOT NULL REFERENCES products(id),
		qty INT NOT NULL CHECK (qty >= 1),
		price_cents INT NOT NULL
	);

	-- append-only status audit trail; first row written at creation
	CREATE TABLE IF NOT EXISTS order_status_history (
		id BIGSERIAL PRIMARY KEY,
		order_id TEXT NOT NULL REFERENCES orders(id),
		status TEXT NOT NULL,
		notes TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_orders_buyer ON orders(buyer_id, created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_stock_history_product ON stock_history(product_id, id DESC);
	CREATE INDEX IF NOT EXISTS idx_status_history_order ON order_status_history(order_id, id);
	`
	_, err := db.Exec(ctx, schema)
	return err
}
