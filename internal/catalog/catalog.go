// Package catalog serves product and customer listings, the selection
// options used to build an order, and the admin writes that change them.
package catalog

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/dshills/amazonmart/internal/cache"
	"github.com/dshills/amazonmart/internal/orders"
	"github.com/dshills/amazonmart/internal/storage"
	"github.com/dshills/amazonmart/internal/telemetry"
	"github.com/dshills/amazonmart/pkg/types"
)

// Operation names carried by orders.Error.Op
const (
	OpListProducts   = "list_products"
	OpListCustomers  = "list_customers"
	OpGetProduct     = "get_product"
	OpOrderForm      = "order_form"
	OpAddProduct     = "add_product"
	OpUpdateProduct  = "update_product"
	OpAddCustomer    = "add_customer"
	opOptionsRefresh = "refresh_options"
)

// OrderForm is everything a client needs to compose an order
type OrderForm struct {
	Customers []types.Option `json:"customers"`
	Products  []types.Option `json:"products"`
}

// Service reads and writes the catalog
type Service struct {
	store   storage.Storage
	cache   cache.Cache
	logger  *slog.Logger
	metrics *telemetry.Metrics
}

// Option configures a Service
type Option func(*Service)

// WithLogger sets the logger (default slog.Default())
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithMetrics sets the metrics sink
func WithMetrics(m *telemetry.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// New creates a catalog service. A nil cache gets a private LRU.
func New(store storage.Storage, c cache.Cache, opts ...Option) *Service {
	if c == nil {
		c = cache.NewLRU(0, cache.DefaultTTL)
	}
	s := &Service{
		store:  store,
		cache:  c,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "catalog")
	return s
}

// ListProducts returns all products, or only those with stock left
func (s *Service) ListProducts(ctx context.Context, inStockOnly bool) ([]*types.Product, error) {
	products, err := s.store.ListProducts(ctx, storage.ProductFilter{InStockOnly: inStockOnly})
	if err != nil {
		return nil, orders.Classify(OpListProducts, err)
	}
	return products, nil
}

// ListCustomers returns all customers
func (s *Service) ListCustomers(ctx context.Context) ([]*types.Customer, error) {
	customers, err := s.store.ListCustomers(ctx)
	if err != nil {
		return nil, orders.Classify(OpListCustomers, err)
	}
	return customers, nil
}

// GetProduct returns one product
func (s *Service) GetProduct(ctx context.Context, productID int64) (*types.Product, error) {
	product, err := s.store.GetProduct(ctx, productID)
	if err != nil {
		return nil, orders.Classify(OpGetProduct, err)
	}
	return product, nil
}

// CustomerOptions returns (id, "First Last") pairs
func (s *Service) CustomerOptions(ctx context.Context) ([]types.Option, error) {
	return s.options(ctx, cache.KeyCustomerOptions, func(ctx context.Context) ([]types.Option, error) {
		customers, err := s.store.ListCustomers(ctx)
		if err != nil {
			return nil, err
		}
		options := make([]types.Option, len(customers))
		for i, c := range customers {
			options[i] = types.CustomerOption(c)
		}
		return options, nil
	})
}

// ProductOptions returns (id, name) pairs
func (s *Service) ProductOptions(ctx context.Context) ([]types.Option, error) {
	return s.options(ctx, cache.KeyProductOptions, func(ctx context.Context) ([]types.Option, error) {
		products, err := s.store.ListProducts(ctx, storage.ProductFilter{})
		if err != nil {
			return nil, err
		}
		options := make([]types.Option, len(products))
		for i, p := range products {
			options[i] = types.ProductOption(p)
		}
		return options, nil
	})
}

// options serves key from the cache, loading and storing it on a miss.
// Cache failures are logged and never fail the read.
func (s *Service) options(ctx context.Context, key string, load func(context.Context) ([]types.Option, error)) ([]types.Option, error) {
	cached, ok, err := s.cache.GetOptions(ctx, key)
	if err != nil {
		s.logger.WarnContext(ctx, "option cache read failed", "key", key, "error", err)
	}
	s.metrics.ObserveCache(ok)
	if ok {
		return cached, nil
	}

	options, err := load(ctx)
	if err != nil {
		return nil, orders.Classify(opOptionsRefresh, err)
	}
	if err := s.cache.SetOptions(ctx, key, options); err != nil {
		s.logger.WarnContext(ctx, "option cache write failed", "key", key, "error", err)
	}
	return options, nil
}

// OrderForm loads customer and product options concurrently
func (s *Service) OrderForm(ctx context.Context) (*OrderForm, error) {
	var form OrderForm
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		options, err := s.CustomerOptions(gctx)
		form.Customers = options
		return err
	})
	g.Go(func() error {
		options, err := s.ProductOptions(gctx)
		form.Products = options
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, orders.Classify(OpOrderForm, err)
	}
	return &form, nil
}

// AddProduct validates and creates a product
func (s *Service) AddProduct(ctx context.Context, product *types.Product) error {
	if err := product.Validate(); err != nil {
		return orders.Invalid(OpAddProduct, err)
	}
	if err := s.store.CreateProduct(ctx, product); err != nil {
		return orders.Classify(OpAddProduct, err)
	}
	s.invalidate(ctx, cache.KeyProductOptions)
	s.logger.InfoContext(ctx, "product added", "product_id", product.ID, "name", product.Name)
	return nil
}

// UpdateProduct adjusts price and/or stock
func (s *Service) UpdateProduct(ctx context.Context, productID int64, update types.ProductUpdate) (*types.Product, error) {
	if productID <= 0 {
		return nil, orders.Invalid(OpUpdateProduct, types.ErrInvalidProductID)
	}
	if err := update.Validate(); err != nil {
		return nil, orders.Invalid(OpUpdateProduct, err)
	}
	product, err := s.store.UpdateProduct(ctx, productID, update)
	if err != nil {
		return nil, orders.Classify(OpUpdateProduct, err)
	}
	s.invalidate(ctx, cache.KeyProductOptions)
	s.logger.InfoContext(ctx, "product updated",
		"product_id", product.ID,
		"price", product.Price.StringFixed(2),
		"stock_quantity", product.StockQuantity)
	return product, nil
}

// AddCustomer validates and creates a customer
func (s *Service) AddCustomer(ctx context.Context, customer *types.Customer) error {
	if err := customer.Validate(); err != nil {
		return orders.Invalid(OpAddCustomer, err)
	}
	if err := s.store.CreateCustomer(ctx, customer); err != nil {
		return orders.Classify(OpAddCustomer, err)
	}
	s.invalidate(ctx, cache.KeyCustomerOptions)
	s.logger.InfoContext(ctx, "customer added", "customer_id", customer.ID)
	return nil
}

func (s *Service) invalidate(ctx context.Context, keys ...string) {
	if err := s.cache.Invalidate(ctx, keys...); err != nil {
		s.logger.WarnContext(ctx, "option cache invalidation failed", "keys", keys, "error", err)
	}
}
