//go:build integration

package storage

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/dshills/amazonmart/pkg/types"
)

func setupPostgres(t *testing.T) *PostgresStorage {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("amazonmart"),
		postgres.WithUsername("amazonmart"),
		postgres.WithPassword("secret"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	store, err := NewPostgresStorage(ctx, dsn, DefaultPoolConfig(), DefaultRetryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// seedPostgresExample creates a customer and products priced 10.00 x5 and 25.00 x1
func seedPostgresExample(t *testing.T, s *PostgresStorage) (customerID, widgetID, gadgetID int64) {
	t.Helper()
	ctx := context.Background()

	customer := &types.Customer{FirstName: "Ada", LastName: "Lovelace"}
	require.NoError(t, s.CreateCustomer(ctx, customer))

	widget := &types.Product{Name: "Widget", Price: decimal.NewFromInt(10), StockQuantity: 5}
	gadget := &types.Product{Name: "Gadget", Price: decimal.NewFromInt(25), StockQuantity: 1}
	require.NoError(t, s.CreateProduct(ctx, widget))
	require.NoError(t, s.CreateProduct(ctx, gadget))
	return customer.ID, widget.ID, gadget.ID
}

func TestPostgres_PlaceOrder(t *testing.T) {
	store := setupPostgres(t)
	ctx := context.Background()
	customerID, widgetID, gadgetID := seedPostgresExample(t, store)

	req := types.OrderRequest{
		CustomerID: customerID,
		Items:      []types.OrderItem{{ProductID: widgetID, Quantity: 2}, {ProductID: gadgetID, Quantity: 1}},
	}

	order, err := store.PlaceOrder(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "45.00", order.TotalAmount.StringFixed(2))
	assert.Len(t, order.Lines, 2)

	widget, err := store.GetProduct(ctx, widgetID)
	require.NoError(t, err)
	assert.Equal(t, 3, widget.StockQuantity)

	// Repeat fails on the gadget line and leaves the widget untouched
	_, err = store.PlaceOrder(ctx, req)
	require.ErrorIs(t, err, ErrInsufficientStock)
	assert.Contains(t, err.Error(), "insufficient stock for product")

	widget, err = store.GetProduct(ctx, widgetID)
	require.NoError(t, err)
	assert.Equal(t, 3, widget.StockQuantity)

	orders, err := store.ListOrders(ctx, OrderFilter{})
	require.NoError(t, err)
	assert.Len(t, orders, 1)
}

func TestPostgres_Rejections(t *testing.T) {
	store := setupPostgres(t)
	ctx := context.Background()
	customerID, widgetID, _ := seedPostgresExample(t, store)

	_, err := store.PlaceOrder(ctx, types.OrderRequest{
		CustomerID: customerID + 100,
		Items:      []types.OrderItem{{ProductID: widgetID, Quantity: 1}},
	})
	assert.ErrorIs(t, err, ErrUnknownCustomer)

	_, err = store.PlaceOrder(ctx, types.OrderRequest{
		CustomerID: customerID,
		Items:      []types.OrderItem{{ProductID: widgetID, Quantity: 1}, {ProductID: 9999, Quantity: 1}},
	})
	assert.ErrorIs(t, err, ErrUnknownProduct)

	_, err = store.PlaceOrder(ctx, types.OrderRequest{
		CustomerID: customerID,
		Items:      []types.OrderItem{{ProductID: widgetID, Quantity: 1}, {ProductID: widgetID, Quantity: 1}},
	})
	assert.ErrorIs(t, err, ErrInvalidOrder)

	pricey := &types.Product{Name: "Yacht", Price: types.MaxPrice, StockQuantity: 10}
	require.NoError(t, store.CreateProduct(ctx, pricey))
	_, err = store.PlaceOrder(ctx, types.OrderRequest{
		CustomerID: customerID,
		Items:      []types.OrderItem{{ProductID: widgetID, Quantity: 1}, {ProductID: pricey.ID, Quantity: 2}},
	})
	assert.ErrorIs(t, err, ErrConstraint)

	widget, err := store.GetProduct(ctx, widgetID)
	require.NoError(t, err)
	assert.Equal(t, 5, widget.StockQuantity)
	yacht, err := store.GetProduct(ctx, pricey.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, yacht.StockQuantity)
}

func TestPostgres_IdempotentAndConcurrent(t *testing.T) {
	store := setupPostgres(t)
	ctx := context.Background()
	customerID, widgetID, gadgetID := seedPostgresExample(t, store)

	keyed := types.OrderRequest{
		CustomerID:     customerID,
		Items:          []types.OrderItem{{ProductID: widgetID, Quantity: 1}},
		IdempotencyKey: uuid.NewString(),
	}
	first, err := store.PlaceOrder(ctx, keyed)
	require.NoError(t, err)
	again, err := store.PlaceOrder(ctx, keyed)
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)

	changed := keyed
	changed.Items = []types.OrderItem{{ProductID: widgetID, Quantity: 2}}
	_, err = store.PlaceOrder(ctx, changed)
	assert.ErrorIs(t, err, ErrIdempotencyMismatch)
	widget, err := store.GetProduct(ctx, widgetID)
	require.NoError(t, err)
	assert.Equal(t, 4, widget.StockQuantity)

	lastUnit := types.OrderRequest{
		CustomerID: customerID,
		Items:      []types.OrderItem{{ProductID: gadgetID, Quantity: 1}},
	}
	const workers = 8
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = store.PlaceOrder(ctx, lastUnit)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, ErrInsufficientStock)
	}
	assert.Equal(t, 1, succeeded)

	gadget, err := store.GetProduct(ctx, gadgetID)
	require.NoError(t, err)
	assert.Equal(t, 0, gadget.StockQuantity)
}

func TestPostgres_PaymentsReportsStatus(t *testing.T) {
	store := setupPostgres(t)
	ctx := context.Background()
	customerID, widgetID, _ := seedPostgresExample(t, store)

	order, err := store.PlaceOrder(ctx, types.OrderRequest{
		CustomerID: customerID,
		Items:      []types.OrderItem{{ProductID: widgetID, Quantity: 3}},
	})
	require.NoError(t, err)

	require.NoError(t, store.RecordPayment(ctx, &types.Payment{
		OrderID: order.ID, Amount: decimal.RequireFromString("30.00"), Method: types.PaymentTransfer,
	}))
	payments, err := store.ListPayments(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, payments, 1)

	summary, err := store.SalesSummary(ctx)
	require.NoError(t, err)
	assert.Equal(t, "30.00", summary.Revenue.StringFixed(2))
	assert.Equal(t, "30.00", summary.PaymentsTotal.StringFixed(2))

	daily, err := store.DailySales(ctx, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.NotEmpty(t, daily)

	status, err := store.GetStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, CurrentSchemaVersion, status.SchemaVersion)
	assert.True(t, status.Health.MigrationsApplied)

	require.NoError(t, RollbackPostgresMigration(ctx, store.pool))
	require.NoError(t, ApplyPostgresMigrations(ctx, store.pool))
}
