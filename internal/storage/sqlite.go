package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dshills/amazonmart/pkg/types"
)

// timeLayout is the UTC text form used for SQLite timestamps. Fixed width
// keeps lexical and chronological order identical.
const timeLayout = "2006-01-02T15:04:05.000000Z"

// SQLiteStorage implements the Storage interface using SQLite
type SQLiteStorage struct {
	db *sql.DB
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// Single connection: it serializes order transactions and keeps
	// in-memory databases alive between calls.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return db, nil
}

// NewSQLiteStorage creates a new SQLite storage instance
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Apply migrations
	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// Ping verifies the database is reachable
func (s *SQLiteStorage) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return classifySQLiteError(err)
	}
	return nil
}

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// querier returns the DB querier
func (s *SQLiteStorage) querier() querier {
	return s.db
}

// Customer operations

// createCustomerWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) createCustomerWithQuerier(ctx context.Context, q querier, customer *types.Customer) error {
	query := `
		INSERT INTO customers (first_name, last_name, email, created_at)
		VALUES (?, ?, ?, ?)
	`
	now := time.Now().UTC()
	result, err := q.ExecContext(ctx, query,
		customer.FirstName, customer.LastName, nullString(customer.Email), formatTime(now))
	if err != nil {
		return fmt.Errorf("failed to create customer: %w", classifySQLiteError(err))
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	customer.ID = id
	customer.CreatedAt = now.Truncate(time.Microsecond)
	return nil
}

func (s *SQLiteStorage) CreateCustomer(ctx context.Context, customer *types.Customer) error {
	return s.createCustomerWithQuerier(ctx, s.querier(), customer)
}

const customerColumns = `customer_id, first_name, last_name, COALESCE(email, ''), created_at`

func scanCustomer(row interface{ Scan(...interface{}) error }) (*types.Customer, error) {
	var c types.Customer
	var createdAt string
	if err := row.Scan(&c.ID, &c.FirstName, &c.LastName, &c.Email, &createdAt); err != nil {
		return nil, err
	}
	c.CreatedAt = parseTime(createdAt)
	return &c, nil
}

// getCustomerWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) getCustomerWithQuerier(ctx context.Context, q querier, customerID int64) (*types.Customer, error) {
	row := q.QueryRowContext(ctx, `SELECT `+customerColumns+` FROM customers WHERE customer_id = ?`, customerID)
	customer, err := scanCustomer(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, classifySQLiteError(err)
	}
	return customer, nil
}

func (s *SQLiteStorage) GetCustomer(ctx context.Context, customerID int64) (*types.Customer, error) {
	return s.getCustomerWithQuerier(ctx, s.querier(), customerID)
}

func (s *SQLiteStorage) ListCustomers(ctx context.Context) ([]*types.Customer, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+customerColumns+` FROM customers ORDER BY customer_id`)
	if err != nil {
		return nil, classifySQLiteError(err)
	}
	defer rows.Close()

	var customers []*types.Customer
	for rows.Next() {
		customer, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		customers = append(customers, customer)
	}
	return customers, rows.Err()
}

// Product operations

func (s *SQLiteStorage) CreateProduct(ctx context.Context, product *types.Product) error {
	query := `
		INSERT INTO products (product_name, category, price_cents, stock_quantity, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	priceCents, err := toCents(product.Price)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	result, err := s.db.ExecContext(ctx, query,
		product.Name, product.Category, priceCents, product.StockQuantity,
		formatTime(now), formatTime(now))
	if err != nil {
		return fmt.Errorf("failed to create product: %w", classifySQLiteError(err))
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	product.ID = id
	product.Price = product.Price.Round(2)
	product.CreatedAt = now.Truncate(time.Microsecond)
	product.UpdatedAt = product.CreatedAt
	return nil
}

const productColumns = `product_id, product_name, category, price_cents, stock_quantity, created_at, updated_at`

func scanProduct(row interface{ Scan(...interface{}) error }) (*types.Product, error) {
	var p types.Product
	var priceCents int64
	var createdAt, updatedAt string
	if err := row.Scan(&p.ID, &p.Name, &p.Category, &priceCents, &p.StockQuantity, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	p.Price = fromCents(priceCents)
	p.CreatedAt = parseTime(createdAt)
	p.UpdatedAt = parseTime(updatedAt)
	return &p, nil
}

// getProductWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) getProductWithQuerier(ctx context.Context, q querier, productID int64) (*types.Product, error) {
	row := q.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE product_id = ?`, productID)
	product, err := scanProduct(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, classifySQLiteError(err)
	}
	return product, nil
}

func (s *SQLiteStorage) GetProduct(ctx context.Context, productID int64) (*types.Product, error) {
	return s.getProductWithQuerier(ctx, s.querier(), productID)
}

func (s *SQLiteStorage) ListProducts(ctx context.Context, filter ProductFilter) ([]*types.Product, error) {
	var conditions []string
	var args []interface{}
	if filter.InStockOnly {
		conditions = append(conditions, "stock_quantity > 0")
	}
	if filter.Category != "" {
		conditions = append(conditions, "category = ?")
		args = append(args, filter.Category)
	}

	query := `SELECT ` + productColumns + ` FROM products`
	if len(conditions) > 0 {
		query += ` WHERE ` + strings.Join(conditions, " AND ")
	}
	query += ` ORDER BY product_id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classifySQLiteError(err)
	}
	defer rows.Close()

	var products []*types.Product
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, product)
	}
	return products, rows.Err()
}

func (s *SQLiteStorage) UpdateProduct(ctx context.Context, productID int64, update types.ProductUpdate) (*types.Product, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, classifySQLiteError(fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer func() { _ = tx.Rollback() }()

	sets := []string{"updated_at = ?"}
	args := []interface{}{formatTime(time.Now().UTC())}
	if update.Price != nil {
		priceCents, err := toCents(*update.Price)
		if err != nil {
			return nil, err
		}
		sets = append(sets, "price_cents = ?")
		args = append(args, priceCents)
	}
	if update.StockQuantity != nil {
		sets = append(sets, "stock_quantity = ?")
		args = append(args, *update.StockQuantity)
	}
	args = append(args, productID)

	result, err := tx.ExecContext(ctx,
		`UPDATE products SET `+strings.Join(sets, ", ")+` WHERE product_id = ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to update product: %w", classifySQLiteError(err))
	}
	if n, err := result.RowsAffected(); err != nil {
		return nil, err
	} else if n == 0 {
		return nil, ErrNotFound
	}

	product, err := s.getProductWithQuerier(ctx, tx, productID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, classifySQLiteError(err)
	}
	return product, nil
}

// Order operations

// PlaceOrder runs the whole order in one transaction. Every statement goes
// through the transaction; the pool holds a single connection.
func (s *SQLiteStorage) PlaceOrder(ctx context.Context, req types.OrderRequest) (*types.Order, error) {
	if len(req.Items) == 0 {
		return nil, newDBError(ErrInvalidOrder, "order must contain at least one product", nil)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, classifySQLiteError(fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer func() { _ = tx.Rollback() }()

	if req.IdempotencyKey != "" {
		var existingID int64
		err := tx.QueryRowContext(ctx,
			`SELECT order_id FROM orders WHERE idempotency_key = ?`, req.IdempotencyKey).Scan(&existingID)
		switch {
		case err == nil:
			order, err := s.getOrderWithQuerier(ctx, tx, existingID)
			if err != nil {
				return nil, err
			}
			return replayOf(order, req)
		case err != sql.ErrNoRows:
			return nil, classifySQLiteError(err)
		}
	}

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM customers WHERE customer_id = ?`, req.CustomerID).Scan(&exists)
	if err == sql.ErrNoRows {
		return nil, newDBError(ErrUnknownCustomer, fmt.Sprintf("customer %d does not exist", req.CustomerID), nil)
	}
	if err != nil {
		return nil, classifySQLiteError(err)
	}

	now := formatTime(time.Now().UTC())
	result, err := tx.ExecContext(ctx,
		`INSERT INTO orders (customer_id, order_date, total_cents, idempotency_key) VALUES (?, ?, 0, ?)`,
		req.CustomerID, now, nullString(req.IdempotencyKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create order: %w", classifySQLiteError(err))
	}
	orderID, err := result.LastInsertId()
	if err != nil {
		return nil, err
	}

	var total int64
	seen := make(map[int64]struct{}, len(req.Items))
	for _, item := range req.Items {
		if item.Quantity < 1 {
			return nil, newDBError(ErrInvalidOrder,
				fmt.Sprintf("quantity for product %d must be at least 1", item.ProductID), nil)
		}
		if _, dup := seen[item.ProductID]; dup {
			return nil, newDBError(ErrInvalidOrder, "order lists the same product more than once", nil)
		}
		seen[item.ProductID] = struct{}{}

		var priceCents int64
		var stock int
		err := tx.QueryRowContext(ctx,
			`SELECT price_cents, stock_quantity FROM products WHERE product_id = ?`,
			item.ProductID).Scan(&priceCents, &stock)
		if err == sql.ErrNoRows {
			return nil, newDBError(ErrUnknownProduct, fmt.Sprintf("product %d does not exist", item.ProductID), nil)
		}
		if err != nil {
			return nil, classifySQLiteError(err)
		}
		if stock < item.Quantity {
			return nil, insufficientStock(item.ProductID, item.Quantity, stock)
		}

		// The guard keeps the decrement safe even if another writer slipped in.
		result, err := tx.ExecContext(ctx, `
			UPDATE products SET stock_quantity = stock_quantity - ?, updated_at = ?
			WHERE product_id = ? AND stock_quantity >= ?`,
			item.Quantity, now, item.ProductID, item.Quantity)
		if err != nil {
			return nil, classifySQLiteError(err)
		}
		if n, err := result.RowsAffected(); err != nil {
			return nil, err
		} else if n != 1 {
			return nil, insufficientStock(item.ProductID, item.Quantity, stock)
		}

		subtotal, ok := lineSubtotal(priceCents, item.Quantity)
		if !ok || total > maxCents-subtotal {
			return nil, newDBError(ErrInvalidOrder,
				fmt.Sprintf("order total exceeds the maximum of %s", types.MaxPrice.StringFixed(2)), nil)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO order_details (order_id, product_id, quantity, unit_price_cents, subtotal_cents)
			VALUES (?, ?, ?, ?, ?)`,
			orderID, item.ProductID, item.Quantity, priceCents, subtotal)
		if err != nil {
			return nil, fmt.Errorf("failed to create order line: %w", classifySQLiteError(err))
		}
		total += subtotal
	}

	if _, err := tx.ExecContext(ctx, `UPDATE orders SET total_cents = ? WHERE order_id = ?`, total, orderID); err != nil {
		return nil, classifySQLiteError(err)
	}

	order, err := s.getOrderWithQuerier(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, classifySQLiteError(fmt.Errorf("failed to commit order: %w", err))
	}
	return order, nil
}

func insufficientStock(productID int64, requested, available int) error {
	return newDBError(ErrInsufficientStock, fmt.Sprintf(
		"insufficient stock for product %d: requested %d, available %d",
		productID, requested, available), nil)
}

const orderColumns = `
	o.order_id, o.customer_id, c.first_name || ' ' || c.last_name,
	o.order_date, o.total_cents, COALESCE(o.idempotency_key, '')`

func scanOrder(row interface{ Scan(...interface{}) error }) (*types.Order, error) {
	var o types.Order
	var orderDate string
	var totalCents int64
	if err := row.Scan(&o.ID, &o.CustomerID, &o.CustomerName, &orderDate, &totalCents, &o.IdempotencyKey); err != nil {
		return nil, err
	}
	o.OrderDate = parseTime(orderDate)
	o.TotalAmount = fromCents(totalCents)
	o.Lines = []types.OrderLine{}
	return &o, nil
}

// getOrderWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) getOrderWithQuerier(ctx context.Context, q querier, orderID int64) (*types.Order, error) {
	row := q.QueryRowContext(ctx, `SELECT `+orderColumns+`
		FROM orders o JOIN customers c ON c.customer_id = o.customer_id
		WHERE o.order_id = ?`, orderID)
	order, err := scanOrder(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, classifySQLiteError(err)
	}

	if err := s.loadLinesWithQuerier(ctx, q, []*types.Order{order}); err != nil {
		return nil, err
	}
	return order, nil
}

func (s *SQLiteStorage) GetOrder(ctx context.Context, orderID int64) (*types.Order, error) {
	return s.getOrderWithQuerier(ctx, s.querier(), orderID)
}

func (s *SQLiteStorage) ListOrders(ctx context.Context, filter OrderFilter) ([]*types.Order, error) {
	query := `SELECT ` + orderColumns + `
		FROM orders o JOIN customers c ON c.customer_id = o.customer_id`
	var args []interface{}
	if filter.CustomerID > 0 {
		query += ` WHERE o.customer_id = ?`
		args = append(args, filter.CustomerID)
	}
	query += ` ORDER BY o.order_date DESC, o.order_id DESC LIMIT ?`
	args = append(args, orderLimit(filter.Limit))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classifySQLiteError(err)
	}

	var orders []*types.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	// Release the connection before loading lines.
	rows.Close()

	if err := s.loadLinesWithQuerier(ctx, s.querier(), orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// loadLinesWithQuerier fills Lines for all given orders in a single query
func (s *SQLiteStorage) loadLinesWithQuerier(ctx context.Context, q querier, orders []*types.Order) error {
	if len(orders) == 0 {
		return nil
	}

	// Build parameterized IN clause
	byID := make(map[int64]*types.Order, len(orders))
	placeholders := make([]string, len(orders))
	args := make([]interface{}, len(orders))
	for i, o := range orders {
		byID[o.ID] = o
		placeholders[i] = "?"
		args[i] = o.ID
	}

	query := `
		SELECT d.order_id, d.product_id, p.product_name, d.quantity, d.unit_price_cents, d.subtotal_cents
		FROM order_details d
		JOIN products p ON p.product_id = d.product_id
		WHERE d.order_id IN (` + strings.Join(placeholders, ",") + `)
		ORDER BY d.order_id, d.order_detail_id`
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return classifySQLiteError(err)
	}
	defer rows.Close()

	for rows.Next() {
		var orderID, unitCents, subtotalCents int64
		var line types.OrderLine
		if err := rows.Scan(&orderID, &line.ProductID, &line.ProductName, &line.Quantity, &unitCents, &subtotalCents); err != nil {
			return err
		}
		line.UnitPrice = fromCents(unitCents)
		line.Subtotal = fromCents(subtotalCents)
		if o, ok := byID[orderID]; ok {
			o.Lines = append(o.Lines, line)
		}
	}
	return rows.Err()
}

// Payment operations

func (s *SQLiteStorage) RecordPayment(ctx context.Context, payment *types.Payment) error {
	amountCents, err := toCents(payment.Amount)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO payments (order_id, amount_cents, method, paid_at)
		SELECT order_id, ?, ?, ? FROM orders WHERE order_id = ?`,
		amountCents, string(payment.Method), formatTime(now), payment.OrderID)
	if err != nil {
		return fmt.Errorf("failed to record payment: %w", classifySQLiteError(err))
	}
	if n, err := result.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return ErrNotFound
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	payment.ID = id
	payment.Amount = payment.Amount.Round(2)
	payment.PaidAt = now.Truncate(time.Microsecond)
	return nil
}

func (s *SQLiteStorage) ListPayments(ctx context.Context, orderID int64) ([]*types.Payment, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM orders WHERE order_id = ?`, orderID).Scan(&exists)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, classifySQLiteError(err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT payment_id, order_id, amount_cents, method, paid_at
		FROM payments WHERE order_id = ? ORDER BY payment_id`, orderID)
	if err != nil {
		return nil, classifySQLiteError(err)
	}
	defer rows.Close()

	payments := []*types.Payment{}
	for rows.Next() {
		var p types.Payment
		var amountCents int64
		var method, paidAt string
		if err := rows.Scan(&p.ID, &p.OrderID, &amountCents, &method, &paidAt); err != nil {
			return nil, err
		}
		p.Amount = fromCents(amountCents)
		p.Method = types.PaymentMethod(method)
		p.PaidAt = parseTime(paidAt)
		payments = append(payments, &p)
	}
	return payments, rows.Err()
}

// Report operations

func (s *SQLiteStorage) SalesSummary(ctx context.Context) (*SalesSummary, error) {
	var summary SalesSummary
	var revenueCents, paymentsCents int64
	var first, last sql.NullString

	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(DISTINCT customer_id), COALESCE(SUM(total_cents), 0),
		       MIN(order_date), MAX(order_date)
		FROM orders`).Scan(&summary.OrderCount, &summary.CustomerCount, &revenueCents, &first, &last)
	if err != nil {
		return nil, classifySQLiteError(err)
	}

	err = s.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(quantity), 0) FROM order_details`).Scan(&summary.UnitsSold)
	if err != nil {
		return nil, classifySQLiteError(err)
	}
	err = s.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(amount_cents), 0) FROM payments`).Scan(&paymentsCents)
	if err != nil {
		return nil, classifySQLiteError(err)
	}

	summary.Revenue = fromCents(revenueCents)
	summary.PaymentsTotal = fromCents(paymentsCents)
	summary.AverageOrder = averageOrder(summary.Revenue, summary.OrderCount)
	if first.Valid {
		t := parseTime(first.String)
		summary.FirstOrderDate = &t
	}
	if last.Valid {
		t := parseTime(last.String)
		summary.LastOrderDate = &t
	}
	return &summary, nil
}

func (s *SQLiteStorage) TopProducts(ctx context.Context, limit int) ([]ProductSales, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.product_id, p.product_name, SUM(d.quantity), SUM(d.subtotal_cents)
		FROM order_details d
		JOIN products p ON p.product_id = d.product_id
		GROUP BY p.product_id, p.product_name
		ORDER BY SUM(d.quantity) DESC, p.product_id
		LIMIT ?`, reportLimit(limit))
	if err != nil {
		return nil, classifySQLiteError(err)
	}
	defer rows.Close()

	results := []ProductSales{}
	for rows.Next() {
		var ps ProductSales
		var revenueCents int64
		if err := rows.Scan(&ps.ProductID, &ps.ProductName, &ps.UnitsSold, &revenueCents); err != nil {
			return nil, err
		}
		ps.Revenue = fromCents(revenueCents)
		results = append(results, ps)
	}
	return results, rows.Err()
}

func (s *SQLiteStorage) TopCustomers(ctx context.Context, limit int) ([]CustomerRevenue, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.customer_id, c.first_name || ' ' || c.last_name, COUNT(o.order_id), SUM(o.total_cents)
		FROM orders o
		JOIN customers c ON c.customer_id = o.customer_id
		GROUP BY c.customer_id, c.first_name, c.last_name
		ORDER BY SUM(o.total_cents) DESC, c.customer_id
		LIMIT ?`, reportLimit(limit))
	if err != nil {
		return nil, classifySQLiteError(err)
	}
	defer rows.Close()

	results := []CustomerRevenue{}
	for rows.Next() {
		var cr CustomerRevenue
		var revenueCents int64
		if err := rows.Scan(&cr.CustomerID, &cr.CustomerName, &cr.OrderCount, &revenueCents); err != nil {
			return nil, err
		}
		cr.Revenue = fromCents(revenueCents)
		results = append(results, cr)
	}
	return results, rows.Err()
}

func (s *SQLiteStorage) DailySales(ctx context.Context, since time.Time) ([]DailySales, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT substr(order_date, 1, 10) AS day, COUNT(*), SUM(total_cents)
		FROM orders
		WHERE order_date >= ?
		GROUP BY day
		ORDER BY day`, formatTime(since.UTC()))
	if err != nil {
		return nil, classifySQLiteError(err)
	}
	defer rows.Close()

	results := []DailySales{}
	for rows.Next() {
		var ds DailySales
		var revenueCents int64
		if err := rows.Scan(&ds.Day, &ds.OrderCount, &revenueCents); err != nil {
			return nil, err
		}
		ds.Revenue = fromCents(revenueCents)
		results = append(results, ds)
	}
	return results, rows.Err()
}

// Status operations

func (s *SQLiteStorage) GetStatus(ctx context.Context) (*Status, error) {
	status := &Status{Driver: "sqlite/" + BuildMode}

	if err := s.db.PingContext(ctx); err != nil {
		return status, classifySQLiteError(err)
	}
	status.Health.DatabaseAccessible = true

	version, err := currentVersion(ctx, sqliteMigrator{db: s.db})
	if err != nil {
		return status, err
	}
	status.SchemaVersion = version.Original()
	status.Health.MigrationsApplied = status.SchemaVersion == CurrentSchemaVersion

	err = s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM customers),
			(SELECT COUNT(*) FROM products),
			(SELECT COUNT(*) FROM orders),
			(SELECT COUNT(*) FROM payments),
			(SELECT COUNT(*) FROM products WHERE stock_quantity = 0)`).Scan(
		&status.CustomersCount, &status.ProductsCount, &status.OrdersCount,
		&status.PaymentsCount, &status.OutOfStock)
	if err != nil {
		return status, classifySQLiteError(err)
	}
	return status, nil
}

// classifySQLiteError maps driver errors onto the package sentinels. Both
// drivers report constraint failures with the same SQLite message text.
func classifySQLiteError(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "UNIQUE constraint failed"):
		return newDBError(ErrAlreadyExists, msg, err)
	case strings.Contains(msg, "FOREIGN KEY constraint failed"),
		strings.Contains(msg, "CHECK constraint failed"),
		strings.Contains(msg, "NOT NULL constraint failed"):
		return newDBError(ErrConstraint, msg, err)
	case strings.Contains(msg, "database is locked"),
		strings.Contains(msg, "unable to open database"),
		errors.Is(err, sql.ErrConnDone):
		return newDBError(ErrUnavailable, msg, err)
	}
	return err
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		// Tolerate rows written by hand with the SQLite default format.
		t, _ = time.Parse("2006-01-02 15:04:05", s)
	}
	return t
}

// maxCents is types.MaxPrice in cents, the range of the PostgreSQL
// NUMERIC(12,2) columns.
const maxCents int64 = 999_999_999_999

// toCents rejects values outside the NUMERIC(12,2) range instead of letting
// IntPart wrap.
func toCents(d decimal.Decimal) (int64, error) {
	r := d.Round(2)
	if r.Abs().GreaterThan(types.MaxPrice) {
		return 0, newDBError(ErrConstraint,
			fmt.Sprintf("numeric value %s is out of range", r.StringFixed(2)), nil)
	}
	return r.Shift(2).IntPart(), nil
}

// lineSubtotal multiplies without overflowing and reports false when the
// result exceeds maxCents.
func lineSubtotal(priceCents int64, quantity int) (int64, bool) {
	if quantity < 0 || priceCents < 0 {
		return 0, false
	}
	if priceCents != 0 && int64(quantity) > maxCents/priceCents {
		return 0, false
	}
	return priceCents * int64(quantity), true
}

func fromCents(c int64) decimal.Decimal {
	return decimal.New(c, -2)
}

func averageOrder(revenue decimal.Decimal, orders int) decimal.Decimal {
	if orders == 0 {
		return decimal.Zero
	}
	return revenue.DivRound(decimal.NewFromInt(int64(orders)), 2)
}

// nullString converts empty strings to NULL so UNIQUE columns allow many blanks
func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
