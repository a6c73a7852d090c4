// Package storage persists customers, products, orders and payments.
//
// Two backends implement the Storage interface:
//   - PostgresStorage: pgx connection pool; order placement runs the
//     place_multi_product_order stored procedure
//   - SQLiteStorage: database/sql with the SQLite driver selected by build tag;
//     order placement runs as one application-level transaction
//
// Both backends give PlaceOrder the same contract: stock is checked and
// decremented, the order header and every line item are inserted, and the
// total is computed, all in one transaction. On any failure nothing is
// persisted.
//
// # Database Schema
//
// Tables:
//   - customers: first/last name and optional unique email
//   - products: name, category, price, stock_quantity (never negative)
//   - orders: customer, timestamp, total, optional unique idempotency key
//   - order_details: one row per (order, product) with unit price and subtotal
//   - payments: amounts received against an order
//   - schema_version: applied migrations (semver)
//
// SQLite stores money as integer cents and timestamps as fixed-width UTC text.
// PostgreSQL uses NUMERIC(12,2) and TIMESTAMPTZ.
//
// # Basic Usage
//
//	store, err := storage.Open(ctx, storage.Options{
//	    Driver:      storage.DriverPostgres,
//	    PostgresDSN: dsn,
//	    Pool:        storage.DefaultPoolConfig(),
//	    Retry:       storage.DefaultRetryConfig(),
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer store.Close()
//
//	order, err := store.PlaceOrder(ctx, types.OrderRequest{
//	    CustomerID: 1,
//	    Items:      []types.OrderItem{{ProductID: 7, Quantity: 2}},
//	})
//
// # Errors
//
// Failures are reported through sentinels matched with errors.Is:
// ErrInsufficientStock, ErrUnknownCustomer, ErrUnknownProduct, ErrInvalidOrder
// and ErrConstraint for rejected orders, ErrUnavailable when the database
// cannot be reached, ErrNotFound for missing rows. The error text is the
// database's own message.
//
// # Build Tags
//
// Pure Go build (default):
//
//   - Uses modernc.org/sqlite driver
//
//     CGO_ENABLED=0 go build ./...
//
// CGO build (sqlite_cgo tag):
//
//   - Uses github.com/mattn/go-sqlite3 driver
//
//     CGO_ENABLED=1 go build -tags "sqlite_cgo" ./...
package storage
