package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/dshills/amazonmart/internal/cache"
	"github.com/dshills/amazonmart/internal/catalog"
	"github.com/dshills/amazonmart/internal/orders"
	"github.com/dshills/amazonmart/internal/reports"
	"github.com/dshills/amazonmart/internal/storage"
	"github.com/dshills/amazonmart/internal/storage/storagetest"
	"github.com/dshills/amazonmart/internal/telemetry"
	"github.com/dshills/amazonmart/pkg/types"
)

type testAPI struct {
	router  http.Handler
	store   storage.Storage
	metrics *telemetry.Metrics
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newHandler(store storage.Storage, metrics *telemetry.Metrics) *Handler {
	logger := quietLogger()
	return New(Deps{
		Store:   store,
		Orders:  orders.New(store, orders.WithLogger(logger), orders.WithMetrics(metrics)),
		Catalog: catalog.New(store, cache.NewLRU(8, cache.DefaultTTL), catalog.WithLogger(logger)),
		Reports: reports.New(store),
		Metrics: metrics,
		Logger:  logger,
	})
}

func setupAPI(t *testing.T) *testAPI {
	t.Helper()
	store := storagetest.NewSQLite(t)
	storagetest.Seed(t, store)
	metrics := telemetry.NewMetrics()
	return &testAPI{
		router:  NewRouter(newHandler(store, metrics)),
		store:   store,
		metrics: metrics,
	}
}

func (a *testAPI) do(t *testing.T, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

const exampleOrder = `{"customer_id": 7, "items": [{"product_id": 3, "quantity": 2}, {"product_id": 9, "quantity": 1}]}`

func TestHealth(t *testing.T) {
	api := setupAPI(t)

	rec := api.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", decodeBody[map[string]string](t, rec)["status"])
	assert.NotEmpty(t, rec.Header().Get("Content-Type"))
}

func TestPlaceOrder_Example(t *testing.T) {
	api := setupAPI(t)

	rec := api.do(t, http.MethodPost, "/orders", exampleOrder)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var order map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &order))
	assert.Equal(t, "45.00", order["total_amount"])
	assert.Equal(t, "committed", order["status"])
	assert.Equal(t, "Ada Lovelace", order["customer_name"])
	lines := order["lines"].([]interface{})
	require.Len(t, lines, 2)
	assert.Equal(t, "20.00", lines[0].(map[string]interface{})["subtotal"])
	assert.Equal(t, "/orders/"+jsonNumber(order["id"]), rec.Header().Get("Location"))

	assert.Equal(t, 3, storagetest.Stock(t, api.store, storagetest.WidgetID))
	assert.Equal(t, 0, storagetest.Stock(t, api.store, storagetest.GadgetID))

	// Repeat: product 9 is exhausted, nothing changes
	rec = api.do(t, http.MethodPost, "/orders", exampleOrder)
	require.Equal(t, http.StatusConflict, rec.Code)
	failure := decodeBody[ErrorResponse](t, rec)
	assert.Equal(t, "constraint", failure.Error)
	assert.Equal(t, orders.LevelError, failure.Level)
	assert.Contains(t, failure.Message, "insufficient stock")
	assert.Equal(t, 3, storagetest.Stock(t, api.store, storagetest.WidgetID))

	assert.Equal(t, float64(1), testutil.ToFloat64(api.metrics.Requests.WithLabelValues("POST /orders", "201")))
	assert.Equal(t, float64(1), testutil.ToFloat64(api.metrics.Requests.WithLabelValues("POST /orders", "409")))
}

func TestPlaceOrder_Rejections(t *testing.T) {
	api := setupAPI(t)

	tests := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{"zero quantity", `{"customer_id": 7, "items": [{"product_id": 3, "quantity": 0}]}`, http.StatusUnprocessableEntity, "validation"},
		{"no items", `{"customer_id": 7, "items": []}`, http.StatusUnprocessableEntity, "validation"},
		{"duplicate product", `{"customer_id": 7, "items": [{"product_id": 3, "quantity": 1}, {"product_id": 3, "quantity": 1}]}`, http.StatusUnprocessableEntity, "validation"},
		{"quantity above int32", `{"customer_id": 7, "items": [{"product_id": 3, "quantity": 5000000000}]}`, http.StatusUnprocessableEntity, "validation"},
		{"product above int32", `{"customer_id": 7, "items": [{"product_id": 2147483648, "quantity": 1}]}`, http.StatusUnprocessableEntity, "validation"},
		{"unknown customer", `{"customer_id": 404, "items": [{"product_id": 3, "quantity": 1}]}`, http.StatusConflict, "constraint"},
		{"unknown product", `{"customer_id": 7, "items": [{"product_id": 404, "quantity": 1}]}`, http.StatusConflict, "constraint"},
		{"malformed json", `{"customer_id": `, http.StatusBadRequest, "invalid_request"},
		{"unknown field", `{"customer": 7}`, http.StatusBadRequest, "invalid_request"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := api.do(t, http.MethodPost, "/orders", tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			failure := decodeBody[ErrorResponse](t, rec)
			assert.Equal(t, tt.code, failure.Error)
			assert.NotEmpty(t, failure.Message)
		})
	}

	rec := api.do(t, http.MethodPost, "/orders", `{"customer_id": 7, "items": [{"product_id": 3, "quantity": 0}]}`)
	assert.Equal(t, orders.LevelWarning, decodeBody[ErrorResponse](t, rec).Level)
	assert.Equal(t, 5, storagetest.Stock(t, api.store, storagetest.WidgetID))
}

func TestPlaceOrder_IdempotencyKey(t *testing.T) {
	api := setupAPI(t)
	key := uuid.NewString()
	body := `{"customer_id": 1, "items": [{"product_id": 1, "quantity": 1}]}`

	first := api.do(t, http.MethodPost, "/orders", body, IdempotencyKeyHeader, key)
	require.Equal(t, http.StatusCreated, first.Code)
	second := api.do(t, http.MethodPost, "/orders", body, IdempotencyKeyHeader, key)
	require.Equal(t, http.StatusCreated, second.Code)

	a := decodeBody[OrderResponseJSON](t, first)
	b := decodeBody[OrderResponseJSON](t, second)
	assert.Equal(t, a.ID, b.ID)
	assert.Equal(t, key, b.IdempotencyKey)
	assert.Equal(t, 9, storagetest.Stock(t, api.store, 1))

	changed := `{"customer_id": 1, "items": [{"product_id": 1, "quantity": 3}]}`
	rec := api.do(t, http.MethodPost, "/orders", changed, IdempotencyKeyHeader, key)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "constraint", decodeBody[ErrorResponse](t, rec).Error)
	assert.Equal(t, 9, storagetest.Stock(t, api.store, 1))

	rec = api.do(t, http.MethodPost, "/orders", body, IdempotencyKeyHeader, "not-a-uuid")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

// OrderResponseJSON mirrors the wire form of OrderResponse
type OrderResponseJSON struct {
	ID             int64  `json:"id"`
	TotalAmount    string `json:"total_amount"`
	IdempotencyKey string `json:"idempotency_key"`
}

func TestOrders_ReadAndPayments(t *testing.T) {
	api := setupAPI(t)

	placed := decodeBody[OrderResponseJSON](t, api.do(t, http.MethodPost, "/orders", exampleOrder))
	path := "/orders/" + jsonNumber(float64(placed.ID))

	rec := api.do(t, http.MethodGet, path, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "45.00", decodeBody[OrderResponseJSON](t, rec).TotalAmount)

	assert.Equal(t, http.StatusNotFound, api.do(t, http.MethodGet, "/orders/999", "").Code)
	assert.Equal(t, http.StatusBadRequest, api.do(t, http.MethodGet, "/orders/abc", "").Code)

	rec = api.do(t, http.MethodPost, path+"/payments", `{"amount": "20.00", "method": "card"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	payment := decodeBody[map[string]interface{}](t, rec)
	assert.Equal(t, "20.00", payment["amount"])
	assert.Equal(t, "card", payment["method"])

	rec = api.do(t, http.MethodPost, path+"/payments", `{"amount": 0, "method": "card"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = api.do(t, http.MethodGet, path+"/payments", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]map[string]interface{}](t, rec), 1)

	assert.Equal(t, http.StatusNotFound, api.do(t, http.MethodGet, "/orders/999/payments", "").Code)
	assert.Equal(t, http.StatusNotFound, api.do(t, http.MethodPost, "/orders/999/payments", `{"amount": "1", "method": "cash"}`).Code)

	api.do(t, http.MethodPost, "/orders", `{"customer_id": 2, "items": [{"product_id": 1, "quantity": 1}]}`)

	rec = api.do(t, http.MethodGet, "/orders?customer_id=7", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]OrderResponseJSON](t, rec), 1)

	rec = api.do(t, http.MethodGet, "/orders?limit=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]OrderResponseJSON](t, rec), 1)

	assert.Equal(t, http.StatusBadRequest, api.do(t, http.MethodGet, "/orders?limit=-2", "").Code)
}

func TestCatalogEndpoints(t *testing.T) {
	api := setupAPI(t)

	rec := api.do(t, http.MethodGet, "/order-form", "")
	require.Equal(t, http.StatusOK, rec.Code)
	form := decodeBody[catalog.OrderForm](t, rec)
	assert.Len(t, form.Customers, 7)
	assert.Equal(t, types.Option{ID: storagetest.GadgetID, Label: "Gadget"}, form.Products[8])

	rec = api.do(t, http.MethodPost, "/products", `{"name": "Lamp", "price": "12.5", "stock_quantity": 3}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	product := decodeBody[map[string]interface{}](t, rec)
	assert.Equal(t, "12.50", product["price"])

	rec = api.do(t, http.MethodPost, "/products", `{"name": "Bad", "price": "-1"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = api.do(t, http.MethodPatch, "/products/9", `{"stock_quantity": 0}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = api.do(t, http.MethodPatch, "/products/9", `{}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = api.do(t, http.MethodPatch, "/products/404", `{"stock_quantity": 1}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = api.do(t, http.MethodGet, "/products?in_stock=true", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]map[string]interface{}](t, rec), 9)

	rec = api.do(t, http.MethodGet, "/products?in_stock=maybe", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// The new product shows up in the cached form after invalidation
	form = decodeBody[catalog.OrderForm](t, api.do(t, http.MethodGet, "/order-form", ""))
	assert.Len(t, form.Products, 10)

	rec = api.do(t, http.MethodPost, "/customers", `{"first_name": "Grace", "last_name": "Hopper", "email": "grace@example.com"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "Grace Hopper", decodeBody[CustomerResponse](t, rec).Name)

	rec = api.do(t, http.MethodPost, "/customers", `{"first_name": "Ada", "last_name": "Two", "email": "ada@example.com"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = api.do(t, http.MethodGet, "/customers", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]CustomerResponse](t, rec), 8)
}

func TestDashboardAndMetrics(t *testing.T) {
	api := setupAPI(t)
	api.do(t, http.MethodPost, "/orders", exampleOrder)

	rec := api.do(t, http.MethodGet, "/reports/dashboard?top=5&days=7", "")
	require.Equal(t, http.StatusOK, rec.Code)
	dash := decodeBody[map[string]interface{}](t, rec)
	summary := dash["summary"].(map[string]interface{})
	assert.Equal(t, "45.00", summary["revenue"])
	assert.Equal(t, float64(1), summary["order_count"])
	assert.Len(t, dash["top_products"], 2)

	assert.Equal(t, http.StatusBadRequest, api.do(t, http.MethodGet, "/reports/dashboard?top=x", "").Code)

	rec = api.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "amazonmart_orders_placed_total")
	assert.Contains(t, rec.Body.String(), `handler="GET /reports/dashboard"`)
}

// downStore fails every call as if the database were unreachable
type downStore struct {
	storage.Storage
}

func (downStore) Ping(context.Context) error {
	return storage.ErrUnavailable
}

func (downStore) ListCustomers(context.Context) ([]*types.Customer, error) {
	return nil, storage.ErrUnavailable
}

func TestDatabaseUnavailable(t *testing.T) {
	router := NewRouter(newHandler(downStore{}, nil))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/customers", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	failure := decodeBody[ErrorResponse](t, rec)
	assert.Equal(t, "connectivity", failure.Error)
	assert.True(t, strings.HasPrefix(failure.Message, "Database unavailable: "), failure.Message)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_ShutsDownOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	srv := NewServer(ln.Addr().String(), handler, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	client := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}, Timeout: 5 * time.Second}
	resp, err := client.Get("http://" + ln.Addr().String() + "/")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, bytes.Contains(body, []byte(`"ok"`)))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not shut down")
	}
	client.CloseIdleConnections()
}

func jsonNumber(v interface{}) string {
	b, _ := json.Marshal(v)
	return string(b)
}
