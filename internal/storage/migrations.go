package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Masterminds/semver/v3"
)

const (
	// CurrentSchemaVersion tracks the database schema version
	CurrentSchemaVersion = "1.1.0"
)

// Migration represents a database schema migration
type Migration struct {
	Version string
	Up      string
	Down    string
}

// SQLiteMigrations contains all SQLite migrations in order
var SQLiteMigrations = []Migration{
	{
		Version: "1.0.0",
		Up:      sqliteV1Up,
		Down:    sqliteV1Down,
	},
	{
		Version: "1.1.0",
		Up:      sqliteV11Up,
		Down:    sqliteV11Down,
	},
}

// Money is stored as integer cents and timestamps as UTC text in timeLayout.
const sqliteV1Up = `
CREATE TABLE IF NOT EXISTS customers (
    customer_id INTEGER PRIMARY KEY AUTOINCREMENT,
    first_name TEXT NOT NULL,
    last_name TEXT NOT NULL,
    email TEXT UNIQUE,
    created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS products (
    product_id INTEGER PRIMARY KEY AUTOINCREMENT,
    product_name TEXT NOT NULL,
    category TEXT NOT NULL DEFAULT '',
    price_cents INTEGER NOT NULL CHECK (price_cents >= 0),
    stock_quantity INTEGER NOT NULL CHECK (stock_quantity >= 0),
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_products_category ON products(category);

CREATE TABLE IF NOT EXISTS orders (
    order_id INTEGER PRIMARY KEY AUTOINCREMENT,
    customer_id INTEGER NOT NULL,
    order_date TEXT NOT NULL,
    total_cents INTEGER NOT NULL DEFAULT 0,
    idempotency_key TEXT UNIQUE,
    FOREIGN KEY (customer_id) REFERENCES customers(customer_id)
);

CREATE INDEX IF NOT EXISTS idx_orders_customer ON orders(customer_id);
CREATE INDEX IF NOT EXISTS idx_orders_date ON orders(order_date);

CREATE TABLE IF NOT EXISTS order_details (
    order_detail_id INTEGER PRIMARY KEY AUTOINCREMENT,
    order_id INTEGER NOT NULL,
    product_id INTEGER NOT NULL,
    quantity INTEGER NOT NULL CHECK (quantity > 0),
    unit_price_cents INTEGER NOT NULL,
    subtotal_cents INTEGER NOT NULL,
    FOREIGN KEY (order_id) REFERENCES orders(order_id) ON DELETE CASCADE,
    FOREIGN KEY (product_id) REFERENCES products(product_id),
    UNIQUE(order_id, product_id)
);

CREATE INDEX IF NOT EXISTS idx_order_details_product ON order_details(product_id);
`

const sqliteV1Down = `
DROP TABLE IF EXISTS order_details;
DROP TABLE IF EXISTS orders;
DROP TABLE IF EXISTS products;
DROP TABLE IF EXISTS customers;
`

const sqliteV11Up = `
CREATE TABLE IF NOT EXISTS payments (
    payment_id INTEGER PRIMARY KEY AUTOINCREMENT,
    order_id INTEGER NOT NULL,
    amount_cents INTEGER NOT NULL CHECK (amount_cents > 0),
    method TEXT NOT NULL,
    paid_at TEXT NOT NULL,
    FOREIGN KEY (order_id) REFERENCES orders(order_id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_payments_order ON payments(order_id);
`

const sqliteV11Down = `
DROP TABLE IF EXISTS payments;
`

// PostgresMigrations contains all PostgreSQL migrations in order
var PostgresMigrations = []Migration{
	{
		Version: "1.0.0",
		Up:      postgresV1Up,
		Down:    postgresV1Down,
	},
	{
		Version: "1.1.0",
		Up:      postgresV11Up,
		Down:    postgresV11Down,
	},
}

const postgresV1Up = `
CREATE TABLE IF NOT EXISTS customers (
    customer_id SERIAL PRIMARY KEY,
    first_name TEXT NOT NULL,
    last_name TEXT NOT NULL,
    email TEXT UNIQUE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS products (
    product_id SERIAL PRIMARY KEY,
    product_name TEXT NOT NULL,
    category TEXT NOT NULL DEFAULT '',
    price NUMERIC(12,2) NOT NULL CHECK (price >= 0),
    stock_quantity INTEGER NOT NULL CHECK (stock_quantity >= 0),
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_products_category ON products(category);

CREATE TABLE IF NOT EXISTS orders (
    order_id SERIAL PRIMARY KEY,
    customer_id INTEGER NOT NULL REFERENCES customers(customer_id),
    order_date TIMESTAMPTZ NOT NULL DEFAULT now(),
    total_amount NUMERIC(12,2) NOT NULL DEFAULT 0,
    idempotency_key TEXT UNIQUE
);

CREATE INDEX IF NOT EXISTS idx_orders_customer ON orders(customer_id);
CREATE INDEX IF NOT EXISTS idx_orders_date ON orders(order_date);

CREATE TABLE IF NOT EXISTS order_details (
    order_detail_id SERIAL PRIMARY KEY,
    order_id INTEGER NOT NULL REFERENCES orders(order_id) ON DELETE CASCADE,
    product_id INTEGER NOT NULL REFERENCES products(product_id),
    quantity INTEGER NOT NULL CHECK (quantity > 0),
    unit_price NUMERIC(12,2) NOT NULL,
    subtotal NUMERIC(12,2) NOT NULL,
    UNIQUE (order_id, product_id)
);

CREATE INDEX IF NOT EXISTS idx_order_details_product ON order_details(product_id);

-- Places a whole order or nothing. Product rows are locked in id order so
-- concurrent orders over overlapping products serialize without deadlock.
CREATE OR REPLACE PROCEDURE place_multi_product_order(
    p_customer_id INTEGER,
    p_product_ids INTEGER[],
    p_quantities INTEGER[],
    p_idempotency_key TEXT,
    INOUT p_order_id INTEGER DEFAULT NULL
)
LANGUAGE plpgsql
AS $$
DECLARE
    v_count INTEGER := COALESCE(cardinality(p_product_ids), 0);
    v_price NUMERIC(12,2);
    v_stock INTEGER;
    v_total NUMERIC(12,2) := 0;
    i INTEGER;
BEGIN
    IF v_count = 0 THEN
        RAISE EXCEPTION 'order must contain at least one product' USING ERRCODE = '22023';
    END IF;
    IF v_count <> COALESCE(cardinality(p_quantities), 0) THEN
        RAISE EXCEPTION 'product and quantity lists differ in length (% vs %)',
            v_count, COALESCE(cardinality(p_quantities), 0) USING ERRCODE = '22023';
    END IF;
    IF (SELECT count(DISTINCT x) FROM unnest(p_product_ids) AS x) <> v_count THEN
        RAISE EXCEPTION 'order lists the same product more than once' USING ERRCODE = '22023';
    END IF;

    IF p_idempotency_key IS NOT NULL THEN
        SELECT o.order_id INTO p_order_id FROM orders o WHERE o.idempotency_key = p_idempotency_key;
        IF FOUND THEN
            RETURN;
        END IF;
    END IF;

    PERFORM 1 FROM customers WHERE customer_id = p_customer_id;
    IF NOT FOUND THEN
        RAISE EXCEPTION 'customer % does not exist', p_customer_id USING ERRCODE = 'AM002';
    END IF;

    PERFORM 1 FROM products
    WHERE product_id = ANY (p_product_ids)
    ORDER BY product_id
    FOR UPDATE;

    INSERT INTO orders (customer_id, order_date, total_amount, idempotency_key)
    VALUES (p_customer_id, now(), 0, p_idempotency_key)
    RETURNING order_id INTO p_order_id;

    FOR i IN 1 .. v_count LOOP
        IF p_quantities[i] IS NULL OR p_quantities[i] < 1 THEN
            RAISE EXCEPTION 'quantity for product % must be at least 1', p_product_ids[i]
                USING ERRCODE = '22023';
        END IF;

        SELECT price, stock_quantity INTO v_price, v_stock
        FROM products WHERE product_id = p_product_ids[i];
        IF NOT FOUND THEN
            RAISE EXCEPTION 'product % does not exist', p_product_ids[i] USING ERRCODE = 'AM003';
        END IF;
        IF v_stock < p_quantities[i] THEN
            RAISE EXCEPTION 'insufficient stock for product %: requested %, available %',
                p_product_ids[i], p_quantities[i], v_stock USING ERRCODE = 'AM001';
        END IF;

        UPDATE products
        SET stock_quantity = stock_quantity - p_quantities[i], updated_at = now()
        WHERE product_id = p_product_ids[i];

        INSERT INTO order_details (order_id, product_id, quantity, unit_price, subtotal)
        VALUES (p_order_id, p_product_ids[i], p_quantities[i], v_price, v_price * p_quantities[i]);

        v_total := v_total + v_price * p_quantities[i];
    END LOOP;

    UPDATE orders SET total_amount = v_total WHERE order_id = p_order_id;
END;
$$;
`

const postgresV1Down = `
DROP PROCEDURE IF EXISTS place_multi_product_order(INTEGER, INTEGER[], INTEGER[], TEXT, INTEGER);
DROP TABLE IF EXISTS order_details;
DROP TABLE IF EXISTS orders;
DROP TABLE IF EXISTS products;
DROP TABLE IF EXISTS customers;
`

const postgresV11Up = `
CREATE TABLE IF NOT EXISTS payments (
    payment_id SERIAL PRIMARY KEY,
    order_id INTEGER NOT NULL REFERENCES orders(order_id) ON DELETE CASCADE,
    amount NUMERIC(12,2) NOT NULL CHECK (amount > 0),
    method TEXT NOT NULL CHECK (method IN ('card', 'cash', 'transfer')),
    paid_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_payments_order ON payments(order_id);
`

const postgresV11Down = `
DROP TABLE IF EXISTS payments;
`

// migrator abstracts the schema_version bookkeeping of one backend
type migrator interface {
	ensureVersionTable(ctx context.Context) error
	appliedVersions(ctx context.Context) ([]string, error)
	apply(ctx context.Context, m Migration) error
	revert(ctx context.Context, m Migration) error
}

// currentVersion returns the highest applied version, or 0.0.0
func currentVersion(ctx context.Context, m migrator) (*semver.Version, error) {
	applied, err := m.appliedVersions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema_version: %w", err)
	}

	current := semver.MustParse("0.0.0")
	for _, v := range applied {
		version, err := semver.NewVersion(v)
		if err != nil {
			return nil, fmt.Errorf("invalid current schema version %s: %w", v, err)
		}
		if version.GreaterThan(current) {
			current = version
		}
	}
	return current, nil
}

// runMigrations applies every migration newer than the current version
func runMigrations(ctx context.Context, m migrator, migrations []Migration) error {
	if err := m.ensureVersionTable(ctx); err != nil {
		return fmt.Errorf("failed to create schema_version table: %w", err)
	}

	current, err := currentVersion(ctx, m)
	if err != nil {
		return err
	}

	for _, migration := range migrations {
		migrationVersion, err := semver.NewVersion(migration.Version)
		if err != nil {
			return fmt.Errorf("invalid migration version %s: %w", migration.Version, err)
		}

		if !current.LessThan(migrationVersion) {
			continue // Already applied
		}

		if err := m.apply(ctx, migration); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", migration.Version, err)
		}
		current = migrationVersion
	}

	return nil
}

// rollbackLatest reverts the most recent migration
func rollbackLatest(ctx context.Context, m migrator, migrations []Migration) error {
	current, err := currentVersion(ctx, m)
	if err != nil {
		return err
	}
	if current.Equal(semver.MustParse("0.0.0")) {
		return fmt.Errorf("no migrations to rollback")
	}

	var migration *Migration
	for i := range migrations {
		v, err := semver.NewVersion(migrations[i].Version)
		if err == nil && v.Equal(current) {
			migration = &migrations[i]
			break
		}
	}
	if migration == nil {
		return fmt.Errorf("migration %s not found", current.Original())
	}

	if err := m.revert(ctx, *migration); err != nil {
		return fmt.Errorf("failed to rollback migration %s: %w", migration.Version, err)
	}
	return nil
}

// sqliteMigrator records SQLite migrations inside the migration's own transaction
type sqliteMigrator struct {
	db *sql.DB
}

func (m sqliteMigrator) ensureVersionTable(ctx context.Context) error {
	_, err := m.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_version (
			version TEXT PRIMARY KEY,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`)
	return err
}

func (m sqliteMigrator) appliedVersions(ctx context.Context) ([]string, error) {
	rows, err := m.db.QueryContext(ctx, "SELECT version FROM schema_version")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

func (m sqliteMigrator) apply(ctx context.Context, migration Migration) error {
	return m.inTx(ctx, migration.Up, "INSERT INTO schema_version (version) VALUES (?)", migration.Version)
}

func (m sqliteMigrator) revert(ctx context.Context, migration Migration) error {
	return m.inTx(ctx, migration.Down, "DELETE FROM schema_version WHERE version = ?", migration.Version)
}

func (m sqliteMigrator) inTx(ctx context.Context, script, record, version string) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, script); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, record, version); err != nil {
		return fmt.Errorf("failed to record migration %s: %w", version, err)
	}
	return tx.Commit()
}

// ApplyMigrations runs all pending SQLite migrations
func ApplyMigrations(ctx context.Context, db *sql.DB) error {
	return runMigrations(ctx, sqliteMigrator{db: db}, SQLiteMigrations)
}

// RollbackMigration rolls back the most recent SQLite migration
func RollbackMigration(ctx context.Context, db *sql.DB) error {
	return rollbackLatest(ctx, sqliteMigrator{db: db}, SQLiteMigrations)
}
