package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/amazonmart/internal/cache"
	"github.com/dshills/amazonmart/internal/catalog"
	"github.com/dshills/amazonmart/internal/orders"
	"github.com/dshills/amazonmart/internal/reports"
	"github.com/dshills/amazonmart/internal/storage"
	"github.com/dshills/amazonmart/internal/storage/storagetest"
)

func newTestServer(t *testing.T) (*Server, storage.Storage) {
	t.Helper()
	store := storagetest.NewSQLite(t)
	storagetest.Seed(t, store)

	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	s, err := NewServer(Deps{
		Store:   store,
		Orders:  orders.New(store, orders.WithLogger(logger)),
		Catalog: catalog.New(store, cache.NewLRU(8, cache.DefaultTTL), catalog.WithLogger(logger)),
		Reports: reports.New(store),
		Logger:  logger,
	})
	require.NoError(t, err)
	return s, store
}

func request(args map[string]interface{}) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func decode(t *testing.T, res *mcp.CallToolResult) map[string]interface{} {
	t.Helper()
	require.NotNil(t, res)
	require.Len(t, res.Content, 1)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content")

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(text.Text), &out))
	return out
}

func exampleArgs() map[string]interface{} {
	return map[string]interface{}{
		"customer_id": float64(storagetest.CustomerID),
		"items": []interface{}{
			map[string]interface{}{"product_id": float64(storagetest.WidgetID), "quantity": float64(2)},
			map[string]interface{}{"product_id": float64(storagetest.GadgetID), "quantity": float64(1)},
		},
	}
}

func TestNewServer_RequiresDeps(t *testing.T) {
	_, err := NewServer(Deps{})
	assert.Error(t, err)
}

func TestTools_Registered(t *testing.T) {
	s, _ := newTestServer(t)

	var names []string
	for _, tool := range s.tools() {
		names = append(names, tool.Tool.Name)
		assert.NotNil(t, tool.Handler, tool.Tool.Name)
		assert.Equal(t, "object", tool.Tool.InputSchema.Type, tool.Tool.Name)
	}
	assert.ElementsMatch(t, []string{
		"list_products", "list_customers", "order_form", "place_order",
		"get_order", "order_history", "sales_dashboard", "add_product",
		"update_product", "add_customer", "record_payment", "get_status",
	}, names)
}

func TestPlaceOrder_Example(t *testing.T) {
	s, store := newTestServer(t)
	ctx := context.Background()

	res, err := s.handlePlaceOrder(ctx, request(exampleArgs()))
	require.NoError(t, err)
	assert.False(t, res.IsError)

	out := decode(t, res)
	assert.Equal(t, "committed", out["status"])
	order := out["order"].(map[string]interface{})
	assert.Equal(t, "45.00", order["total_amount"])
	assert.Equal(t, "Ada Lovelace", order["customer_name"])
	assert.Len(t, order["lines"], 2)

	assert.Equal(t, 3, storagetest.Stock(t, store, storagetest.WidgetID))
	assert.Equal(t, 0, storagetest.Stock(t, store, storagetest.GadgetID))

	// The same request again fails on the exhausted product
	res, err = s.handlePlaceOrder(ctx, request(exampleArgs()))
	require.NoError(t, err)
	assert.True(t, res.IsError)

	out = decode(t, res)
	assert.Equal(t, "failed", out["status"])
	assert.Equal(t, "constraint", out["kind"])
	assert.Equal(t, "error", out["level"])
	assert.Contains(t, out["message"], "insufficient stock")
	assert.Equal(t, 3, storagetest.Stock(t, store, storagetest.WidgetID))
}

func TestPlaceOrder_ValidationWarning(t *testing.T) {
	s, _ := newTestServer(t)

	args := exampleArgs()
	args["items"] = []interface{}{
		map[string]interface{}{"product_id": float64(storagetest.WidgetID), "quantity": float64(0)},
	}
	res, err := s.handlePlaceOrder(context.Background(), request(args))
	require.NoError(t, err)
	require.True(t, res.IsError)

	out := decode(t, res)
	assert.Equal(t, "validation", out["kind"])
	assert.Equal(t, "warning", out["level"])
}

func TestPlaceOrder_InvalidParams(t *testing.T) {
	s, _ := newTestServer(t)
	ctx := context.Background()

	tests := []struct {
		name string
		args map[string]interface{}
	}{
		{"missing customer", map[string]interface{}{"items": []interface{}{}}},
		{"fractional customer", map[string]interface{}{"customer_id": 1.5, "items": []interface{}{}}},
		{"missing items", map[string]interface{}{"customer_id": float64(1)}},
		{"item not an object", map[string]interface{}{"customer_id": float64(1), "items": []interface{}{"x"}}},
		{"item without quantity", map[string]interface{}{"customer_id": float64(1), "items": []interface{}{
			map[string]interface{}{"product_id": float64(1)},
		}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := s.handlePlaceOrder(ctx, request(tt.args))
			assert.Nil(t, res)
			var mcpErr *MCPError
			require.True(t, errors.As(err, &mcpErr))
			assert.Equal(t, ErrorCodeInvalidParams, mcpErr.Code)
		})
	}

	var req mcp.CallToolRequest
	req.Params.Arguments = "not an object"
	_, err := s.handlePlaceOrder(ctx, req)
	assert.Error(t, err)
}

func TestPlaceOrder_IdempotencyKey(t *testing.T) {
	s, _ := newTestServer(t)
	ctx := context.Background()

	args := map[string]interface{}{
		"customer_id":     float64(1),
		"items":           []interface{}{map[string]interface{}{"product_id": float64(1), "quantity": float64(1)}},
		"idempotency_key": "0b8f3f4e-1f55-4d7e-9a7a-2d9c4d0e6a10",
	}
	first, err := s.handlePlaceOrder(ctx, request(args))
	require.NoError(t, err)
	second, err := s.handlePlaceOrder(ctx, request(args))
	require.NoError(t, err)

	a := decode(t, first)["order"].(map[string]interface{})
	b := decode(t, second)["order"].(map[string]interface{})
	assert.Equal(t, a["order_id"], b["order_id"])
}

func TestGetOrderAndPayments(t *testing.T) {
	s, _ := newTestServer(t)
	ctx := context.Background()

	placed := decode(t, mustCall(t, s.handlePlaceOrder, exampleArgs()))
	orderID := placed["order"].(map[string]interface{})["order_id"].(float64)

	paid := decode(t, mustCall(t, s.handleRecordPayment, map[string]interface{}{
		"order_id": orderID,
		"amount":   "20.00",
		"method":   "card",
	}))
	assert.Equal(t, "20.00", paid["amount"])

	order := decode(t, mustCall(t, s.handleGetOrder, map[string]interface{}{"order_id": orderID}))
	assert.Equal(t, "45.00", order["total_amount"])
	assert.Equal(t, "20.00", order["paid"])
	assert.Equal(t, "25.00", order["balance"])

	res, err := s.handleGetOrder(ctx, request(map[string]interface{}{"order_id": orderID + 100}))
	require.NoError(t, err)
	require.True(t, res.IsError)
	assert.Equal(t, "not_found", decode(t, res)["kind"])

	res, err = s.handleRecordPayment(ctx, request(map[string]interface{}{
		"order_id": orderID,
		"amount":   "5",
		"method":   "barter",
	}))
	require.NoError(t, err)
	require.True(t, res.IsError)
	assert.Equal(t, "validation", decode(t, res)["kind"])

	_, err = s.handleRecordPayment(ctx, request(map[string]interface{}{
		"order_id": orderID,
		"amount":   "lots",
		"method":   "card",
	}))
	assert.Error(t, err)
}

func TestCatalogTools(t *testing.T) {
	s, _ := newTestServer(t)
	ctx := context.Background()

	form := decode(t, mustCall(t, s.handleOrderForm, nil))
	assert.Len(t, form["customers"], 7)
	assert.Len(t, form["products"], 9)

	added := decode(t, mustCall(t, s.handleAddProduct, map[string]interface{}{
		"name":           "Lamp",
		"price":          "12.50",
		"stock_quantity": float64(4),
	}))
	assert.Equal(t, "12.50", added["price"])

	products := decode(t, mustCall(t, s.handleListProducts, map[string]interface{}{}))
	assert.Equal(t, float64(10), products["count"])

	updated := decode(t, mustCall(t, s.handleUpdateProduct, map[string]interface{}{
		"product_id":     float64(storagetest.GadgetID),
		"stock_quantity": float64(0),
	}))
	assert.Equal(t, float64(0), updated["stock_quantity"])

	inStock := decode(t, mustCall(t, s.handleListProducts, map[string]interface{}{"in_stock_only": true}))
	assert.Equal(t, float64(9), inStock["count"])

	res, err := s.handleUpdateProduct(ctx, request(map[string]interface{}{"product_id": float64(storagetest.GadgetID)}))
	require.NoError(t, err)
	require.True(t, res.IsError)
	assert.Equal(t, "validation", decode(t, res)["kind"])

	customer := decode(t, mustCall(t, s.handleAddCustomer, map[string]interface{}{
		"first_name": "Grace",
		"last_name":  "Hopper",
	}))
	assert.Equal(t, "Grace Hopper", customer["name"])

	customers := decode(t, mustCall(t, s.handleListCustomers, nil))
	assert.Equal(t, float64(8), customers["count"])

	_, err = s.handleAddProduct(ctx, request(map[string]interface{}{"name": "No price"}))
	assert.Error(t, err)
}

func TestReportTools(t *testing.T) {
	s, _ := newTestServer(t)
	ctx := context.Background()

	mustCall(t, s.handlePlaceOrder, exampleArgs())

	history := decode(t, mustCall(t, s.handleOrderHistory, map[string]interface{}{
		"customer_id": float64(storagetest.CustomerID),
	}))
	assert.Equal(t, float64(1), history["count"])

	dash := decode(t, mustCall(t, s.handleSalesDashboard, map[string]interface{}{"top": float64(3)}))
	summary := dash["summary"].(map[string]interface{})
	assert.Equal(t, "45.00", summary["revenue"])
	assert.Equal(t, float64(1), summary["order_count"])

	_, err := s.handleOrderHistory(ctx, request(map[string]interface{}{"limit": float64(1000)}))
	assert.Error(t, err)
	_, err = s.handleSalesDashboard(ctx, request(map[string]interface{}{"days": float64(0)}))
	assert.Error(t, err)

	status := decode(t, mustCall(t, s.handleGetStatus, nil))
	assert.Equal(t, storage.CurrentSchemaVersion, status["schema_version"])
	stats := status["statistics"].(map[string]interface{})
	assert.Equal(t, float64(1), stats["orders_count"])
	health := status["health"].(map[string]interface{})
	assert.Equal(t, true, health["database_accessible"])
}

func mustCall(t *testing.T, handler server.ToolHandlerFunc, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	res, err := handler(context.Background(), request(args))
	require.NoError(t, err)
	require.False(t, res.IsError, "unexpected tool error: %v", res.Content)
	return res
}
