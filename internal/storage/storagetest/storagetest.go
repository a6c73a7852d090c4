// Package storagetest provides seeded in-memory stores for tests.
package storagetest

import (
	"context"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/dshills/amazonmart/internal/storage"
	"github.com/dshills/amazonmart/pkg/types"
)

// Identifiers created by Seed
const (
	CustomerID = int64(7) // Ada Lovelace
	WidgetID   = int64(3) // 10.00, stock 5
	GadgetID   = int64(9) // 25.00, stock 1
)

// NewSQLite opens an in-memory store closed at test cleanup
func NewSQLite(t testing.TB) *storage.SQLiteStorage {
	t.Helper()
	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// Seed creates customers 1..7 and products 1..9. Customer 7 is Ada Lovelace;
// product 3 is a Widget at 10.00 with stock 5 and product 9 a Gadget at 25.00
// with stock 1. Other products cost their id in whole units with stock 10.
func Seed(t testing.TB, store storage.Storage) {
	t.Helper()
	ctx := context.Background()

	for i := int64(1); i <= CustomerID; i++ {
		c := &types.Customer{FirstName: "Customer", LastName: fmt.Sprint(i)}
		if i == CustomerID {
			c = &types.Customer{FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com"}
		}
		require.NoError(t, store.CreateCustomer(ctx, c))
		require.Equal(t, i, c.ID)
	}

	for i := int64(1); i <= GadgetID; i++ {
		p := &types.Product{
			Name:          fmt.Sprintf("Item %d", i),
			Category:      "misc",
			Price:         decimal.NewFromInt(i),
			StockQuantity: 10,
		}
		switch i {
		case WidgetID:
			p = &types.Product{Name: "Widget", Category: "tools", Price: decimal.NewFromInt(10), StockQuantity: 5}
		case GadgetID:
			p = &types.Product{Name: "Gadget", Category: "gadgets", Price: decimal.NewFromInt(25), StockQuantity: 1}
		}
		require.NoError(t, store.CreateProduct(ctx, p))
		require.Equal(t, i, p.ID)
	}
}

// Stock returns the current stock of a product
func Stock(t testing.TB, store storage.Storage, productID int64) int {
	t.Helper()
	p, err := store.GetProduct(context.Background(), productID)
	require.NoError(t, err)
	return p.StockQuantity
}

// ExampleRequest orders 2 widgets and 1 gadget for customer 7
func ExampleRequest() types.OrderRequest {
	return types.OrderRequest{
		CustomerID: CustomerID,
		Items: []types.OrderItem{
			{ProductID: WidgetID, Quantity: 2},
			{ProductID: GadgetID, Quantity: 1},
		},
	}
}
