package storage

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/dshills/amazonmart/pkg/types"
)

// SQLSTATE codes raised by place_multi_product_order
const (
	sqlstateInsufficientStock = "AM001"
	sqlstateUnknownCustomer   = "AM002"
	sqlstateUnknownProduct    = "AM003"
	sqlstateInvalidParameter  = "22023"
	sqlstateInvalidText       = "22P02"
	sqlstateNumericOverflow   = "22003"
	sqlstateUniqueViolation   = "23505"
	sqlstateCheckViolation    = "23514"
)

// PoolConfig holds connection pool tuning for PostgreSQL
type PoolConfig struct {
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// DefaultPoolConfig returns the pool defaults
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxConns:        10,
		MinConns:        1,
		MaxConnLifetime: time.Hour,
		MaxConnIdleTime: 30 * time.Minute,
	}
}

// PostgresStorage implements the Storage interface on PostgreSQL. Order
// placement is delegated to the place_multi_product_order procedure.
type PostgresStorage struct {
	pool *pgxpool.Pool
}

// pgQuerier is an interface that both *pgxpool.Pool and pgx.Tx implement
type pgQuerier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// newPool parses the DSN and builds a pool without touching the network
func newPool(ctx context.Context, dsn string, cfg PoolConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolConfig.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	return pool, nil
}

// NewPostgresStorage connects to PostgreSQL, retrying the first ping with
// backoff, and applies pending migrations.
func NewPostgresStorage(ctx context.Context, dsn string, cfg PoolConfig, retry RetryConfig) (*PostgresStorage, error) {
	pool, err := newPool(ctx, dsn, cfg)
	if err != nil {
		return nil, err
	}

	_, err = retryWithBackoff(ctx, retry, func() (struct{}, error) {
		return struct{}{}, pool.Ping(ctx)
	})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", classifyPgError(err))
	}

	if err := ApplyPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &PostgresStorage{pool: pool}, nil
}

// Close closes the connection pool
func (s *PostgresStorage) Close() error {
	s.pool.Close()
	return nil
}

// Ping verifies the database is reachable
func (s *PostgresStorage) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return classifyPgError(err)
	}
	return nil
}

// Customer operations

func (s *PostgresStorage) CreateCustomer(ctx context.Context, customer *types.Customer) error {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO customers (first_name, last_name, email)
		VALUES ($1, $2, $3)
		RETURNING customer_id, created_at`,
		customer.FirstName, customer.LastName, nullString(customer.Email),
	).Scan(&customer.ID, &customer.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create customer: %w", classifyPgError(err))
	}
	return nil
}

const pgCustomerColumns = `customer_id, first_name, last_name, COALESCE(email, ''), created_at`

func scanPgCustomer(row pgx.Row) (*types.Customer, error) {
	var c types.Customer
	if err := row.Scan(&c.ID, &c.FirstName, &c.LastName, &c.Email, &c.CreatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *PostgresStorage) GetCustomer(ctx context.Context, customerID int64) (*types.Customer, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+pgCustomerColumns+` FROM customers WHERE customer_id = $1`, customerID)
	customer, err := scanPgCustomer(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, classifyPgError(err)
	}
	return customer, nil
}

func (s *PostgresStorage) ListCustomers(ctx context.Context) ([]*types.Customer, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+pgCustomerColumns+` FROM customers ORDER BY customer_id`)
	if err != nil {
		return nil, classifyPgError(err)
	}
	defer rows.Close()

	var customers []*types.Customer
	for rows.Next() {
		customer, err := scanPgCustomer(rows)
		if err != nil {
			return nil, err
		}
		customers = append(customers, customer)
	}
	return customers, classifyPgError(rows.Err())
}

// Product operations

func (s *PostgresStorage) CreateProduct(ctx context.Context, product *types.Product) error {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO products (product_name, category, price, stock_quantity)
		VALUES ($1, $2, $3::text::numeric, $4)
		RETURNING product_id, created_at, updated_at`,
		product.Name, product.Category, product.Price.StringFixed(2), product.StockQuantity,
	).Scan(&product.ID, &product.CreatedAt, &product.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create product: %w", classifyPgError(err))
	}
	product.Price = product.Price.Round(2)
	return nil
}

const pgProductColumns = `product_id, product_name, category, price::text, stock_quantity, created_at, updated_at`

func scanPgProduct(row pgx.Row) (*types.Product, error) {
	var p types.Product
	var price string
	if err := row.Scan(&p.ID, &p.Name, &p.Category, &price, &p.StockQuantity, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	var err error
	if p.Price, err = decimal.NewFromString(price); err != nil {
		return nil, fmt.Errorf("invalid price %q: %w", price, err)
	}
	return &p, nil
}

func (s *PostgresStorage) GetProduct(ctx context.Context, productID int64) (*types.Product, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+pgProductColumns+` FROM products WHERE product_id = $1`, productID)
	product, err := scanPgProduct(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, classifyPgError(err)
	}
	return product, nil
}

func (s *PostgresStorage) ListProducts(ctx context.Context, filter ProductFilter) ([]*types.Product, error) {
	var conditions []string
	var args []any
	if filter.InStockOnly {
		conditions = append(conditions, "stock_quantity > 0")
	}
	if filter.Category != "" {
		args = append(args, filter.Category)
		conditions = append(conditions, fmt.Sprintf("category = $%d", len(args)))
	}

	query := `SELECT ` + pgProductColumns + ` FROM products`
	if len(conditions) > 0 {
		query += ` WHERE ` + strings.Join(conditions, " AND ")
	}
	query += ` ORDER BY product_id`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, classifyPgError(err)
	}
	defer rows.Close()

	var products []*types.Product
	for rows.Next() {
		product, err := scanPgProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, product)
	}
	return products, classifyPgError(rows.Err())
}

func (s *PostgresStorage) UpdateProduct(ctx context.Context, productID int64, update types.ProductUpdate) (*types.Product, error) {
	sets := []string{"updated_at = now()"}
	var args []any
	if update.Price != nil {
		args = append(args, update.Price.StringFixed(2))
		sets = append(sets, fmt.Sprintf("price = $%d::text::numeric", len(args)))
	}
	if update.StockQuantity != nil {
		args = append(args, *update.StockQuantity)
		sets = append(sets, fmt.Sprintf("stock_quantity = $%d", len(args)))
	}
	args = append(args, productID)

	row := s.pool.QueryRow(ctx, fmt.Sprintf(
		`UPDATE products SET %s WHERE product_id = $%d RETURNING `+pgProductColumns,
		strings.Join(sets, ", "), len(args)), args...)
	product, err := scanPgProduct(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update product: %w", classifyPgError(err))
	}
	return product, nil
}

// Order operations

// PlaceOrder calls the stored procedure inside one transaction and reads the
// receipt back before committing.
func (s *PostgresStorage) PlaceOrder(ctx context.Context, req types.OrderRequest) (*types.Order, error) {
	var key *string
	if req.IdempotencyKey != "" {
		key = &req.IdempotencyKey
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, classifyPgError(fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var orderID int64
	err = tx.QueryRow(ctx,
		`CALL place_multi_product_order($1::integer, $2::integer[], $3::integer[], $4::text, NULL)`,
		req.CustomerID, req.ProductIDs(), req.Quantities(), key,
	).Scan(&orderID)
	if err != nil {
		// A concurrent request with the same key committed first.
		if key != nil && isUniqueViolation(err) {
			_ = tx.Rollback(ctx)
			order, err := s.orderByKey(ctx, *key)
			if err != nil {
				return nil, err
			}
			return replayOf(order, req)
		}
		return nil, classifyPgError(err)
	}

	order, err := s.getOrderWithQuerier(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}
	// The procedure returns the existing order for a known key without
	// writing anything.
	if key != nil {
		if _, err := replayOf(order, req); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, classifyPgError(fmt.Errorf("failed to commit order: %w", err))
	}
	return order, nil
}

func (s *PostgresStorage) orderByKey(ctx context.Context, key string) (*types.Order, error) {
	var orderID int64
	err := s.pool.QueryRow(ctx, `SELECT order_id FROM orders WHERE idempotency_key = $1`, key).Scan(&orderID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, classifyPgError(err)
	}
	return s.getOrderWithQuerier(ctx, s.pool, orderID)
}

const pgOrderColumns = `
	o.order_id, o.customer_id, c.first_name || ' ' || c.last_name,
	o.order_date, o.total_amount::text, COALESCE(o.idempotency_key, '')`

func scanPgOrder(row pgx.Row) (*types.Order, error) {
	var o types.Order
	var total string
	if err := row.Scan(&o.ID, &o.CustomerID, &o.CustomerName, &o.OrderDate, &total, &o.IdempotencyKey); err != nil {
		return nil, err
	}
	var err error
	if o.TotalAmount, err = decimal.NewFromString(total); err != nil {
		return nil, fmt.Errorf("invalid order total %q: %w", total, err)
	}
	o.Lines = []types.OrderLine{}
	return &o, nil
}

func (s *PostgresStorage) getOrderWithQuerier(ctx context.Context, q pgQuerier, orderID int64) (*types.Order, error) {
	row := q.QueryRow(ctx, `SELECT `+pgOrderColumns+`
		FROM orders o JOIN customers c ON c.customer_id = o.customer_id
		WHERE o.order_id = $1`, orderID)
	order, err := scanPgOrder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, classifyPgError(err)
	}

	if err := s.loadLinesWithQuerier(ctx, q, []*types.Order{order}); err != nil {
		return nil, err
	}
	return order, nil
}

func (s *PostgresStorage) GetOrder(ctx context.Context, orderID int64) (*types.Order, error) {
	return s.getOrderWithQuerier(ctx, s.pool, orderID)
}

func (s *PostgresStorage) ListOrders(ctx context.Context, filter OrderFilter) ([]*types.Order, error) {
	query := `SELECT ` + pgOrderColumns + `
		FROM orders o JOIN customers c ON c.customer_id = o.customer_id`
	var args []any
	if filter.CustomerID > 0 {
		args = append(args, filter.CustomerID)
		query += ` WHERE o.customer_id = $1`
	}
	args = append(args, orderLimit(filter.Limit))
	query += fmt.Sprintf(` ORDER BY o.order_date DESC, o.order_id DESC LIMIT $%d`, len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, classifyPgError(err)
	}
	defer rows.Close()

	var orders []*types.Order
	for rows.Next() {
		order, err := scanPgOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, classifyPgError(err)
	}
	rows.Close()

	if err := s.loadLinesWithQuerier(ctx, s.pool, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// loadLinesWithQuerier fills Lines for all given orders in a single query
func (s *PostgresStorage) loadLinesWithQuerier(ctx context.Context, q pgQuerier, orders []*types.Order) error {
	if len(orders) == 0 {
		return nil
	}

	byID := make(map[int64]*types.Order, len(orders))
	ids := make([]int64, len(orders))
	for i, o := range orders {
		byID[o.ID] = o
		ids[i] = o.ID
	}

	rows, err := q.Query(ctx, `
		SELECT d.order_id, d.product_id, p.product_name, d.quantity, d.unit_price::text, d.subtotal::text
		FROM order_details d
		JOIN products p ON p.product_id = d.product_id
		WHERE d.order_id = ANY($1::integer[])
		ORDER BY d.order_id, d.order_detail_id`, ids)
	if err != nil {
		return classifyPgError(err)
	}
	defer rows.Close()

	for rows.Next() {
		var orderID int64
		var unit, subtotal string
		var line types.OrderLine
		if err := rows.Scan(&orderID, &line.ProductID, &line.ProductName, &line.Quantity, &unit, &subtotal); err != nil {
			return err
		}
		line.UnitPrice = decimal.RequireFromString(unit)
		line.Subtotal = decimal.RequireFromString(subtotal)
		if o, ok := byID[orderID]; ok {
			o.Lines = append(o.Lines, line)
		}
	}
	return classifyPgError(rows.Err())
}

// Payment operations

func (s *PostgresStorage) RecordPayment(ctx context.Context, payment *types.Payment) error {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO payments (order_id, amount, method)
		SELECT order_id, $2::text::numeric, $3 FROM orders WHERE order_id = $1
		RETURNING payment_id, paid_at`,
		payment.OrderID, payment.Amount.StringFixed(2), string(payment.Method),
	).Scan(&payment.ID, &payment.PaidAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to record payment: %w", classifyPgError(err))
	}
	payment.Amount = payment.Amount.Round(2)
	return nil
}

func (s *PostgresStorage) ListPayments(ctx context.Context, orderID int64) ([]*types.Payment, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE order_id = $1)`, orderID).Scan(&exists)
	if err != nil {
		return nil, classifyPgError(err)
	}
	if !exists {
		return nil, ErrNotFound
	}

	rows, err := s.pool.Query(ctx, `
		SELECT payment_id, order_id, amount::text, method, paid_at
		FROM payments WHERE order_id = $1 ORDER BY payment_id`, orderID)
	if err != nil {
		return nil, classifyPgError(err)
	}
	defer rows.Close()

	payments := []*types.Payment{}
	for rows.Next() {
		var p types.Payment
		var amount, method string
		if err := rows.Scan(&p.ID, &p.OrderID, &amount, &method, &p.PaidAt); err != nil {
			return nil, err
		}
		p.Amount = decimal.RequireFromString(amount)
		p.Method = types.PaymentMethod(method)
		payments = append(payments, &p)
	}
	return payments, classifyPgError(rows.Err())
}

// Report operations

func (s *PostgresStorage) SalesSummary(ctx context.Context) (*SalesSummary, error) {
	var summary SalesSummary
	var revenue, payments string

	err := s.pool.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM orders),
			(SELECT COUNT(DISTINCT customer_id) FROM orders),
			(SELECT COALESCE(SUM(quantity), 0) FROM order_details),
			(SELECT COALESCE(SUM(total_amount), 0)::text FROM orders),
			(SELECT COALESCE(SUM(amount), 0)::text FROM payments),
			(SELECT MIN(order_date) FROM orders),
			(SELECT MAX(order_date) FROM orders)`).Scan(
		&summary.OrderCount, &summary.CustomerCount, &summary.UnitsSold,
		&revenue, &payments, &summary.FirstOrderDate, &summary.LastOrderDate)
	if err != nil {
		return nil, classifyPgError(err)
	}

	summary.Revenue = decimal.RequireFromString(revenue)
	summary.PaymentsTotal = decimal.RequireFromString(payments)
	summary.AverageOrder = averageOrder(summary.Revenue, summary.OrderCount)
	return &summary, nil
}

func (s *PostgresStorage) TopProducts(ctx context.Context, limit int) ([]ProductSales, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT p.product_id, p.product_name, SUM(d.quantity), SUM(d.subtotal)::text
		FROM order_details d
		JOIN products p ON p.product_id = d.product_id
		GROUP BY p.product_id, p.product_name
		ORDER BY SUM(d.quantity) DESC, p.product_id
		LIMIT $1`, reportLimit(limit))
	if err != nil {
		return nil, classifyPgError(err)
	}
	defer rows.Close()

	results := []ProductSales{}
	for rows.Next() {
		var ps ProductSales
		var revenue string
		if err := rows.Scan(&ps.ProductID, &ps.ProductName, &ps.UnitsSold, &revenue); err != nil {
			return nil, err
		}
		ps.Revenue = decimal.RequireFromString(revenue)
		results = append(results, ps)
	}
	return results, classifyPgError(rows.Err())
}

func (s *PostgresStorage) TopCustomers(ctx context.Context, limit int) ([]CustomerRevenue, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT c.customer_id, c.first_name || ' ' || c.last_name, COUNT(o.order_id), SUM(o.total_amount)::text
		FROM orders o
		JOIN customers c ON c.customer_id = o.customer_id
		GROUP BY c.customer_id, c.first_name, c.last_name
		ORDER BY SUM(o.total_amount) DESC, c.customer_id
		LIMIT $1`, reportLimit(limit))
	if err != nil {
		return nil, classifyPgError(err)
	}
	defer rows.Close()

	results := []CustomerRevenue{}
	for rows.Next() {
		var cr CustomerRevenue
		var revenue string
		if err := rows.Scan(&cr.CustomerID, &cr.CustomerName, &cr.OrderCount, &revenue); err != nil {
			return nil, err
		}
		cr.Revenue = decimal.RequireFromString(revenue)
		results = append(results, cr)
	}
	return results, classifyPgError(rows.Err())
}

func (s *PostgresStorage) DailySales(ctx context.Context, since time.Time) ([]DailySales, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT to_char(order_date AT TIME ZONE 'UTC', 'YYYY-MM-DD') AS day, COUNT(*), SUM(total_amount)::text
		FROM orders
		WHERE order_date >= $1
		GROUP BY day
		ORDER BY day`, since.UTC())
	if err != nil {
		return nil, classifyPgError(err)
	}
	defer rows.Close()

	results := []DailySales{}
	for rows.Next() {
		var ds DailySales
		var revenue string
		if err := rows.Scan(&ds.Day, &ds.OrderCount, &revenue); err != nil {
			return nil, err
		}
		ds.Revenue = decimal.RequireFromString(revenue)
		results = append(results, ds)
	}
	return results, classifyPgError(rows.Err())
}

// Status operations

func (s *PostgresStorage) GetStatus(ctx context.Context) (*Status, error) {
	status := &Status{Driver: "postgres"}

	if err := s.pool.Ping(ctx); err != nil {
		return status, classifyPgError(err)
	}
	status.Health.DatabaseAccessible = true

	version, err := currentVersion(ctx, pgMigrator{pool: s.pool})
	if err != nil {
		return status, err
	}
	status.SchemaVersion = version.Original()
	status.Health.MigrationsApplied = status.SchemaVersion == CurrentSchemaVersion

	err = s.pool.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM customers),
			(SELECT COUNT(*) FROM products),
			(SELECT COUNT(*) FROM orders),
			(SELECT COUNT(*) FROM payments),
			(SELECT COUNT(*) FROM products WHERE stock_quantity = 0)`).Scan(
		&status.CustomersCount, &status.ProductsCount, &status.OrdersCount,
		&status.PaymentsCount, &status.OutOfStock)
	if err != nil {
		return status, classifyPgError(err)
	}
	return status, nil
}

// Migrations

// pgMigrator records PostgreSQL migrations inside the migration's own transaction
type pgMigrator struct {
	pool *pgxpool.Pool
}

func (m pgMigrator) ensureVersionTable(ctx context.Context) error {
	_, err := m.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_version (
			version TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ DEFAULT now()
		)`)
	return err
}

func (m pgMigrator) appliedVersions(ctx context.Context) ([]string, error) {
	rows, err := m.pool.Query(ctx, "SELECT version FROM schema_version")
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func (m pgMigrator) apply(ctx context.Context, migration Migration) error {
	return m.inTx(ctx, migration.Up,
		"INSERT INTO schema_version (version) VALUES ($1) ON CONFLICT DO NOTHING", migration.Version)
}

func (m pgMigrator) revert(ctx context.Context, migration Migration) error {
	return m.inTx(ctx, migration.Down, "DELETE FROM schema_version WHERE version = $1", migration.Version)
}

func (m pgMigrator) inTx(ctx context.Context, script, record, version string) error {
	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// No arguments: pgx sends the script with the simple protocol, which
	// accepts multiple statements.
	if _, err := tx.Exec(ctx, script); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, record, version); err != nil {
		return fmt.Errorf("failed to record migration %s: %w", version, err)
	}
	return tx.Commit(ctx)
}

// ApplyPostgresMigrations runs all pending PostgreSQL migrations
func ApplyPostgresMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	return runMigrations(ctx, pgMigrator{pool: pool}, PostgresMigrations)
}

// RollbackPostgresMigration rolls back the most recent PostgreSQL migration
func RollbackPostgresMigration(ctx context.Context, pool *pgxpool.Pool) error {
	return rollbackLatest(ctx, pgMigrator{pool: pool}, PostgresMigrations)
}

// Errors

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == sqlstateUniqueViolation
}

// classifyPgError maps PostgreSQL and connection errors onto the package
// sentinels, keeping the server's message text.
func classifyPgError(err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case sqlstateInsufficientStock:
			return newDBError(ErrInsufficientStock, pgErr.Message, err)
		case sqlstateUnknownCustomer:
			return newDBError(ErrUnknownCustomer, pgErr.Message, err)
		case sqlstateUnknownProduct:
			return newDBError(ErrUnknownProduct, pgErr.Message, err)
		case sqlstateInvalidParameter, sqlstateInvalidText:
			return newDBError(ErrInvalidOrder, pgErr.Message, err)
		case sqlstateNumericOverflow:
			return newDBError(ErrConstraint, pgErr.Message, err)
		case sqlstateUniqueViolation:
			return newDBError(ErrAlreadyExists, pgErr.Message, err)
		case sqlstateCheckViolation:
			if pgErr.ConstraintName == "products_stock_quantity_check" {
				return newDBError(ErrInsufficientStock, pgErr.Message, err)
			}
			return newDBError(ErrConstraint, pgErr.Message, err)
		}
		switch {
		case strings.HasPrefix(pgErr.Code, "23"):
			return newDBError(ErrConstraint, pgErr.Message, err)
		case strings.HasPrefix(pgErr.Code, "08"), strings.HasPrefix(pgErr.Code, "57P"):
			return newDBError(ErrUnavailable, pgErr.Message, err)
		}
		return err
	}

	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return newDBError(ErrUnavailable, err.Error(), err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return newDBError(ErrUnavailable, err.Error(), err)
	}
	return err
}
