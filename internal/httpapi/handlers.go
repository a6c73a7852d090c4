package httpapi

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dshills/amazonmart/internal/catalog"
	"github.com/dshills/amazonmart/internal/orders"
	"github.com/dshills/amazonmart/internal/reports"
	"github.com/dshills/amazonmart/internal/storage"
	"github.com/dshills/amazonmart/internal/telemetry"
	"github.com/dshills/amazonmart/pkg/types"
)

// IdempotencyKeyHeader carries the optional client key of POST /orders
const IdempotencyKeyHeader = "Idempotency-Key"

const healthTimeout = 2 * time.Second

// Deps are the services the handlers call into
type Deps struct {
	Store   storage.Storage
	Orders  *orders.Coordinator
	Catalog *catalog.Service
	Reports *reports.Service
	Metrics *telemetry.Metrics
	Logger  *slog.Logger
}

// Handler serves the HTTP API
type Handler struct {
	store   storage.Storage
	orders  *orders.Coordinator
	catalog *catalog.Service
	reports *reports.Service
	metrics *telemetry.Metrics
	logger  *slog.Logger
}

// New creates a Handler
func New(deps Deps) *Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		store:   deps.Store,
		orders:  deps.Orders,
		catalog: deps.Catalog,
		reports: deps.Reports,
		metrics: deps.Metrics,
		logger:  logger.With("component", "http"),
	}
}

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		h.logger.WarnContext(ctx, "health check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (h *Handler) ListCustomers(w http.ResponseWriter, r *http.Request) {
	customers, err := h.catalog.ListCustomers(r.Context())
	if err != nil {
		writeFailure(w, err)
		return
	}
	resp := make([]CustomerResponse, len(customers))
	for i, c := range customers {
		resp[i] = customerResponse(c)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) CreateCustomer(w http.ResponseWriter, r *http.Request) {
	var req CreateCustomerRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	customer := &types.Customer{
		FirstName: strings.TrimSpace(req.FirstName),
		LastName:  strings.TrimSpace(req.LastName),
		Email:     strings.TrimSpace(req.Email),
	}
	if err := h.catalog.AddCustomer(r.Context(), customer); err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, customerResponse(customer))
}

func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	inStock := false
	if v := r.URL.Query().Get("in_stock"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_query", "in_stock must be true or false")
			return
		}
		inStock = b
	}

	products, err := h.catalog.ListProducts(r.Context(), inStock)
	if err != nil {
		writeFailure(w, err)
		return
	}
	resp := make([]ProductResponse, len(products))
	for i, p := range products {
		resp[i] = productResponse(p)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req CreateProductRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	product := &types.Product{
		Name:          strings.TrimSpace(req.Name),
		Category:      strings.TrimSpace(req.Category),
		Price:         req.Price,
		StockQuantity: req.StockQuantity,
	}
	if err := h.catalog.AddProduct(r.Context(), product); err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, productResponse(product))
}

func (h *Handler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var update types.ProductUpdate
	if !decodeJSON(w, r, &update) {
		return
	}

	product, err := h.catalog.UpdateProduct(r.Context(), id, update)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, productResponse(product))
}

func (h *Handler) OrderForm(w http.ResponseWriter, r *http.Request) {
	form, err := h.catalog.OrderForm(r.Context())
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, form)
}

func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req PlaceOrderRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	order, err := h.orders.PlaceOrder(r.Context(), types.OrderRequest{
		CustomerID:     req.CustomerID,
		Items:          req.Items,
		IdempotencyKey: strings.TrimSpace(r.Header.Get(IdempotencyKeyHeader)),
	})
	if err != nil {
		writeFailure(w, err)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/orders/%d", order.ID))
	writeJSON(w, http.StatusCreated, orderResponse(order))
}

func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	customerID, ok := queryInt(w, r, "customer_id", 0)
	if !ok {
		return
	}
	limit, ok := queryInt(w, r, "limit", storage.DefaultOrderLimit)
	if !ok {
		return
	}

	history, err := h.reports.OrderHistory(r.Context(), int64(customerID), limit)
	if err != nil {
		writeFailure(w, err)
		return
	}
	resp := make([]OrderResponse, len(history))
	for i, o := range history {
		resp[i] = orderResponse(o)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	order, err := h.reports.GetOrder(r.Context(), id)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orderResponse(order))
}

func (h *Handler) ListPayments(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	// Unknown orders are a 404 rather than an empty list
	if _, err := h.reports.GetOrder(r.Context(), id); err != nil {
		writeFailure(w, err)
		return
	}
	payments, err := h.orders.ListPayments(r.Context(), id)
	if err != nil {
		writeFailure(w, err)
		return
	}
	resp := make([]PaymentResponse, len(payments))
	for i, p := range payments {
		resp[i] = paymentResponse(p)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req RecordPaymentRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	payment, err := h.orders.RecordPayment(r.Context(), id, req.Amount, req.Method)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, paymentResponse(payment))
}

func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	top, ok := queryInt(w, r, "top", storage.DefaultReportLimit)
	if !ok {
		return
	}
	days, ok := queryInt(w, r, "days", reports.DefaultDashboardDays)
	if !ok {
		return
	}

	dash, err := h.reports.Dashboard(r.Context(), reports.DashboardOptions{Top: top, Days: days})
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dashboardResponse(dash))
}

// pathID parses the {id} route parameter
func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid_id", fmt.Sprintf("invalid id %q", raw))
		return 0, false
	}
	return id, true
}

// queryInt parses an optional non-negative integer query parameter
func queryInt(w http.ResponseWriter, r *http.Request, key string, def int) (int, bool) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		writeError(w, http.StatusBadRequest, "invalid_query", fmt.Sprintf("%s must be a non-negative integer", key))
		return 0, false
	}
	return n, true
}
