package storage

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dshills/amazonmart/pkg/types"
)

// Storage defines the interface for persisting and querying store data
type Storage interface {
	// Customer operations
	CreateCustomer(ctx context.Context, customer *types.Customer) error
	GetCustomer(ctx context.Context, customerID int64) (*types.Customer, error)
	ListCustomers(ctx context.Context) ([]*types.Customer, error)

	// Product operations
	CreateProduct(ctx context.Context, product *types.Product) error
	GetProduct(ctx context.Context, productID int64) (*types.Product, error)
	ListProducts(ctx context.Context, filter ProductFilter) ([]*types.Product, error)
	UpdateProduct(ctx context.Context, productID int64, update types.ProductUpdate) (*types.Product, error)

	// Order operations

	// PlaceOrder atomically validates stock, decrements it, and inserts the
	// order header and all line items. Nothing is persisted on error.
	PlaceOrder(ctx context.Context, req types.OrderRequest) (*types.Order, error)
	GetOrder(ctx context.Context, orderID int64) (*types.Order, error)
	ListOrders(ctx context.Context, filter OrderFilter) ([]*types.Order, error)

	// Payment operations
	RecordPayment(ctx context.Context, payment *types.Payment) error
	ListPayments(ctx context.Context, orderID int64) ([]*types.Payment, error)

	// Report operations
	SalesSummary(ctx context.Context) (*SalesSummary, error)
	TopProducts(ctx context.Context, limit int) ([]ProductSales, error)
	TopCustomers(ctx context.Context, limit int) ([]CustomerRevenue, error)
	DailySales(ctx context.Context, since time.Time) ([]DailySales, error)

	// Status operations
	GetStatus(ctx context.Context) (*Status, error)

	// Database operations
	Ping(ctx context.Context) error
	Close() error
}

// ProductFilter narrows a product listing
type ProductFilter struct {
	InStockOnly bool
	Category    string
}

// OrderFilter narrows an order history listing
type OrderFilter struct {
	CustomerID int64 // 0 means all customers
	Limit      int   // <= 0 means DefaultOrderLimit
}

// DefaultOrderLimit caps order history listings when no limit is given
const DefaultOrderLimit = 50

// SalesSummary contains store-wide order aggregates
type SalesSummary struct {
	OrderCount     int             `json:"order_count"`
	CustomerCount  int             `json:"customer_count"`
	UnitsSold      int             `json:"units_sold"`
	Revenue        decimal.Decimal `json:"revenue"`
	AverageOrder   decimal.Decimal `json:"average_order"`
	PaymentsTotal  decimal.Decimal `json:"payments_total"`
	FirstOrderDate *time.Time      `json:"first_order_date,omitempty"`
	LastOrderDate  *time.Time      `json:"last_order_date,omitempty"`
}

// ProductSales aggregates sold units and revenue for one product
type ProductSales struct {
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"product_name"`
	UnitsSold   int             `json:"units_sold"`
	Revenue     decimal.Decimal `json:"revenue"`
}

// CustomerRevenue aggregates orders and spend for one customer
type CustomerRevenue struct {
	CustomerID   int64           `json:"customer_id"`
	CustomerName string          `json:"customer_name"`
	OrderCount   int             `json:"order_count"`
	Revenue      decimal.Decimal `json:"revenue"`
}

// DailySales aggregates orders placed on one calendar day (UTC)
type DailySales struct {
	Day        string          `json:"day"` // YYYY-MM-DD
	OrderCount int             `json:"order_count"`
	Revenue    decimal.Decimal `json:"revenue"`
}

// Status contains statistics about the database
type Status struct {
	Driver         string       `json:"driver"`
	SchemaVersion  string       `json:"schema_version"`
	CustomersCount int          `json:"customers_count"`
	ProductsCount  int          `json:"products_count"`
	OrdersCount    int          `json:"orders_count"`
	PaymentsCount  int          `json:"payments_count"`
	OutOfStock     int          `json:"out_of_stock"`
	Health         HealthStatus `json:"health"`
}

// HealthStatus represents the health of the database connection
type HealthStatus struct {
	DatabaseAccessible bool `json:"database_accessible"`
	MigrationsApplied  bool `json:"migrations_applied"`
}

// orderLimit normalizes a history limit
func orderLimit(limit int) int {
	if limit <= 0 {
		return DefaultOrderLimit
	}
	if limit > MaxOrderLimit {
		return MaxOrderLimit
	}
	return limit
}

// MaxOrderLimit is the largest accepted order history page
const MaxOrderLimit = 500

const (
	// DefaultReportLimit caps ranking reports when no limit is given
	DefaultReportLimit = 10
	// MaxReportLimit is the largest accepted ranking report
	MaxReportLimit = 100
)

// reportLimit normalizes a ranking limit
func reportLimit(limit int) int {
	if limit <= 0 {
		return DefaultReportLimit
	}
	if limit > MaxReportLimit {
		return MaxReportLimit
	}
	return limit
}

var (
	_ Storage = (*SQLiteStorage)(nil)
	_ Storage = (*PostgresStorage)(nil)
)
