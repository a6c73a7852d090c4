// Package reports answers read-only questions about placed orders: order
// history, single order lookup and the sales dashboard.
package reports

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dshills/amazonmart/internal/orders"
	"github.com/dshills/amazonmart/internal/storage"
	"github.com/dshills/amazonmart/pkg/types"
)

// Operation names carried by orders.Error.Op
const (
	OpOrderHistory = "order_history"
	OpGetOrder     = "get_order"
	OpDashboard    = "sales_dashboard"
)

// DefaultDashboardDays is the daily sales window of the dashboard
const DefaultDashboardDays = 30

// Dashboard is the sales overview
type Dashboard struct {
	Summary      *storage.SalesSummary     `json:"summary"`
	TopProducts  []storage.ProductSales    `json:"top_products"`
	TopCustomers []storage.CustomerRevenue `json:"top_customers"`
	DailySales   []storage.DailySales      `json:"daily_sales"`
	GeneratedAt  time.Time                 `json:"generated_at"`
}

// DashboardOptions sizes the dashboard sections. Zero values take defaults.
type DashboardOptions struct {
	Top  int
	Days int
}

// Service runs reports against the store
type Service struct {
	store storage.Storage
	now   func() time.Time
}

// New creates a report service
func New(store storage.Storage) *Service {
	return &Service{store: store, now: time.Now}
}

// OrderHistory lists orders newest first. customerID 0 means everyone.
func (s *Service) OrderHistory(ctx context.Context, customerID int64, limit int) ([]*types.Order, error) {
	if customerID < 0 {
		return nil, orders.Invalid(OpOrderHistory, types.ErrInvalidCustomerID)
	}
	history, err := s.store.ListOrders(ctx, storage.OrderFilter{CustomerID: customerID, Limit: limit})
	if err != nil {
		return nil, orders.Classify(OpOrderHistory, err)
	}
	if history == nil {
		history = []*types.Order{}
	}
	return history, nil
}

// GetOrder returns one order with its lines
func (s *Service) GetOrder(ctx context.Context, orderID int64) (*types.Order, error) {
	if orderID <= 0 {
		return nil, orders.Invalid(OpGetOrder, types.ErrInvalidOrderID)
	}
	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, orders.Classify(OpGetOrder, err)
	}
	return order, nil
}

// Dashboard loads all sections concurrently
func (s *Service) Dashboard(ctx context.Context, opts DashboardOptions) (*Dashboard, error) {
	days := opts.Days
	if days <= 0 {
		days = DefaultDashboardDays
	}
	now := s.now().UTC()
	since := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, -(days - 1))

	d := &Dashboard{GeneratedAt: now}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		summary, err := s.store.SalesSummary(gctx)
		d.Summary = summary
		return err
	})
	g.Go(func() error {
		top, err := s.store.TopProducts(gctx, opts.Top)
		d.TopProducts = top
		return err
	})
	g.Go(func() error {
		top, err := s.store.TopCustomers(gctx, opts.Top)
		d.TopCustomers = top
		return err
	})
	g.Go(func() error {
		daily, err := s.store.DailySales(gctx, since)
		d.DailySales = daily
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, orders.Classify(OpDashboard, err)
	}
	return d, nil
}
