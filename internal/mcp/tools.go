package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/shopspring/decimal"

	"github.com/dshills/amazonmart/internal/orders"
	"github.com/dshills/amazonmart/internal/reports"
	"github.com/dshills/amazonmart/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams = -32602 // Invalid method parameters
	ErrorCodeInternalError = -32603 // Internal JSON-RPC error
)

const opGetStatus = "get_status"

// handleListProducts handles the list_products tool invocation
func (s *Server) handleListProducts(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := arguments(request)
	if err != nil {
		return nil, err
	}

	products, err := s.catalog.ListProducts(ctx, getBoolDefault(args, "in_stock_only", false))
	if err != nil {
		return failure(err), nil
	}

	items := make([]map[string]interface{}, len(products))
	for i, p := range products {
		items[i] = map[string]interface{}{
			"id":             p.ID,
			"name":           p.Name,
			"category":       p.Category,
			"price":          p.Price.StringFixed(2),
			"stock_quantity": p.StockQuantity,
		}
	}
	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"products": items,
		"count":    len(items),
	})), nil
}

// handleListCustomers handles the list_customers tool invocation
func (s *Server) handleListCustomers(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	customers, err := s.catalog.ListCustomers(ctx)
	if err != nil {
		return failure(err), nil
	}

	items := make([]map[string]interface{}, len(customers))
	for i, c := range customers {
		items[i] = map[string]interface{}{
			"id":    c.ID,
			"name":  c.FullName(),
			"email": c.Email,
		}
	}
	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"customers": items,
		"count":     len(items),
	})), nil
}

// handleOrderForm handles the order_form tool invocation
func (s *Server) handleOrderForm(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	form, err := s.catalog.OrderForm(ctx)
	if err != nil {
		return failure(err), nil
	}
	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"customers": form.Customers,
		"products":  form.Products,
	})), nil
}

// handlePlaceOrder handles the place_order tool invocation
func (s *Server) handlePlaceOrder(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := arguments(request)
	if err != nil {
		return nil, err
	}

	customerID, err := requireInt(args, "customer_id")
	if err != nil {
		return nil, err
	}
	items, err := parseItems(args)
	if err != nil {
		return nil, err
	}

	req := types.OrderRequest{
		CustomerID:     customerID,
		Items:          items,
		IdempotencyKey: strings.TrimSpace(getStringDefault(args, "idempotency_key", "")),
	}

	order, err := s.orders.PlaceOrder(ctx, req)
	if err != nil {
		return failure(err), nil
	}

	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"status":  types.OrderCommitted,
		"message": fmt.Sprintf("Order %d placed for %s, total %s", order.ID, order.CustomerName, order.TotalAmount.StringFixed(2)),
		"order":   receipt(order),
	})), nil
}

// handleGetOrder handles the get_order tool invocation
func (s *Server) handleGetOrder(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := arguments(request)
	if err != nil {
		return nil, err
	}
	orderID, err := requireInt(args, "order_id")
	if err != nil {
		return nil, err
	}

	order, err := s.reports.GetOrder(ctx, orderID)
	if err != nil {
		return failure(err), nil
	}

	payments, err := s.orders.ListPayments(ctx, orderID)
	if err != nil {
		return failure(err), nil
	}
	paid := decimal.Zero
	for _, p := range payments {
		paid = paid.Add(p.Amount)
	}

	response := receipt(order)
	response["paid"] = paid.StringFixed(2)
	response["balance"] = order.TotalAmount.Sub(paid).StringFixed(2)
	response["payments"] = len(payments)
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleOrderHistory handles the order_history tool invocation
func (s *Server) handleOrderHistory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := arguments(request)
	if err != nil {
		return nil, err
	}

	limit := getIntDefault(args, "limit", 50)
	if limit < 1 || limit > 500 {
		return nil, newMCPError(ErrorCodeInvalidParams, "limit must be between 1 and 500", map[string]interface{}{
			"param": "limit",
			"value": limit,
		})
	}

	history, err := s.reports.OrderHistory(ctx, int64(getIntDefault(args, "customer_id", 0)), limit)
	if err != nil {
		return failure(err), nil
	}

	receipts := make([]map[string]interface{}, len(history))
	for i, order := range history {
		receipts[i] = receipt(order)
	}
	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"orders": receipts,
		"count":  len(receipts),
	})), nil
}

// handleSalesDashboard handles the sales_dashboard tool invocation
func (s *Server) handleSalesDashboard(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := arguments(request)
	if err != nil {
		return nil, err
	}

	top := getIntDefault(args, "top", 10)
	if top < 1 || top > 100 {
		return nil, newMCPError(ErrorCodeInvalidParams, "top must be between 1 and 100", map[string]interface{}{
			"param": "top",
			"value": top,
		})
	}
	days := getIntDefault(args, "days", reports.DefaultDashboardDays)
	if days < 1 || days > 366 {
		return nil, newMCPError(ErrorCodeInvalidParams, "days must be between 1 and 366", map[string]interface{}{
			"param": "days",
			"value": days,
		})
	}

	dash, err := s.reports.Dashboard(ctx, reports.DashboardOptions{Top: top, Days: days})
	if err != nil {
		return failure(err), nil
	}

	topProducts := make([]map[string]interface{}, len(dash.TopProducts))
	for i, p := range dash.TopProducts {
		topProducts[i] = map[string]interface{}{
			"product_id":   p.ProductID,
			"product_name": p.ProductName,
			"units_sold":   p.UnitsSold,
			"revenue":      p.Revenue.StringFixed(2),
		}
	}
	topCustomers := make([]map[string]interface{}, len(dash.TopCustomers))
	for i, c := range dash.TopCustomers {
		topCustomers[i] = map[string]interface{}{
			"customer_id":   c.CustomerID,
			"customer_name": c.CustomerName,
			"order_count":   c.OrderCount,
			"revenue":       c.Revenue.StringFixed(2),
		}
	}
	daily := make([]map[string]interface{}, len(dash.DailySales))
	for i, d := range dash.DailySales {
		daily[i] = map[string]interface{}{
			"day":         d.Day,
			"order_count": d.OrderCount,
			"revenue":     d.Revenue.StringFixed(2),
		}
	}

	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"summary": map[string]interface{}{
			"order_count":    dash.Summary.OrderCount,
			"customer_count": dash.Summary.CustomerCount,
			"units_sold":     dash.Summary.UnitsSold,
			"revenue":        dash.Summary.Revenue.StringFixed(2),
			"average_order":  dash.Summary.AverageOrder.StringFixed(2),
			"payments_total": dash.Summary.PaymentsTotal.StringFixed(2),
		},
		"top_products":  topProducts,
		"top_customers": topCustomers,
		"daily_sales":   daily,
		"generated_at":  dash.GeneratedAt.Format(time.RFC3339),
	})), nil
}

// handleAddProduct handles the add_product tool invocation
func (s *Server) handleAddProduct(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := arguments(request)
	if err != nil {
		return nil, err
	}

	name, err := requireString(args, "name")
	if err != nil {
		return nil, err
	}
	price, ok, err := getDecimal(args, "price")
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, missingParam("price")
	}

	product := &types.Product{
		Name:          name,
		Category:      strings.TrimSpace(getStringDefault(args, "category", "")),
		Price:         price,
		StockQuantity: getIntDefault(args, "stock_quantity", 0),
	}
	if err := s.catalog.AddProduct(ctx, product); err != nil {
		return failure(err), nil
	}

	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"product_id":     product.ID,
		"name":           product.Name,
		"price":          product.Price.StringFixed(2),
		"stock_quantity": product.StockQuantity,
	})), nil
}

// handleUpdateProduct handles the update_product tool invocation
func (s *Server) handleUpdateProduct(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := arguments(request)
	if err != nil {
		return nil, err
	}

	productID, err := requireInt(args, "product_id")
	if err != nil {
		return nil, err
	}

	var update types.ProductUpdate
	price, ok, err := getDecimal(args, "price")
	if err != nil {
		return nil, err
	}
	if ok {
		update.Price = &price
	}
	if _, present := args["stock_quantity"]; present {
		stock, err := requireInt(args, "stock_quantity")
		if err != nil {
			return nil, err
		}
		n := int(stock)
		update.StockQuantity = &n
	}

	product, err := s.catalog.UpdateProduct(ctx, productID, update)
	if err != nil {
		return failure(err), nil
	}

	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"product_id":     product.ID,
		"name":           product.Name,
		"price":          product.Price.StringFixed(2),
		"stock_quantity": product.StockQuantity,
	})), nil
}

// handleAddCustomer handles the add_customer tool invocation
func (s *Server) handleAddCustomer(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := arguments(request)
	if err != nil {
		return nil, err
	}

	customer := &types.Customer{
		FirstName: strings.TrimSpace(getStringDefault(args, "first_name", "")),
		LastName:  strings.TrimSpace(getStringDefault(args, "last_name", "")),
		Email:     strings.TrimSpace(getStringDefault(args, "email", "")),
	}
	if err := s.catalog.AddCustomer(ctx, customer); err != nil {
		return failure(err), nil
	}

	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"customer_id": customer.ID,
		"name":        customer.FullName(),
	})), nil
}

// handleRecordPayment handles the record_payment tool invocation
func (s *Server) handleRecordPayment(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := arguments(request)
	if err != nil {
		return nil, err
	}

	orderID, err := requireInt(args, "order_id")
	if err != nil {
		return nil, err
	}
	amount, ok, err := getDecimal(args, "amount")
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, missingParam("amount")
	}
	method, err := requireString(args, "method")
	if err != nil {
		return nil, err
	}

	payment, err := s.orders.RecordPayment(ctx, orderID, amount, types.PaymentMethod(method))
	if err != nil {
		return failure(err), nil
	}

	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"payment_id": payment.ID,
		"order_id":   payment.OrderID,
		"amount":     payment.Amount.StringFixed(2),
		"method":     payment.Method,
		"paid_at":    payment.PaidAt.Format(time.RFC3339),
	})), nil
}

// handleGetStatus handles the get_status tool invocation
func (s *Server) handleGetStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	status, err := s.store.GetStatus(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "status query failed", "error", err)
		return failure(orders.Classify(opGetStatus, err)), nil
	}

	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"driver":         status.Driver,
		"schema_version": status.SchemaVersion,
		"statistics": map[string]interface{}{
			"customers_count": status.CustomersCount,
			"products_count":  status.ProductsCount,
			"orders_count":    status.OrdersCount,
			"payments_count":  status.PaymentsCount,
			"out_of_stock":    status.OutOfStock,
		},
		"health": map[string]interface{}{
			"database_accessible": status.Health.DatabaseAccessible,
			"migrations_applied":  status.Health.MigrationsApplied,
		},
	})), nil
}

// Helper functions

// receipt renders an order for tool output with money fixed to two places
func receipt(order *types.Order) map[string]interface{} {
	lines := make([]map[string]interface{}, len(order.Lines))
	for i, line := range order.Lines {
		lines[i] = map[string]interface{}{
			"product_id":   line.ProductID,
			"product_name": line.ProductName,
			"quantity":     line.Quantity,
			"unit_price":   line.UnitPrice.StringFixed(2),
			"subtotal":     line.Subtotal.StringFixed(2),
		}
	}

	r := map[string]interface{}{
		"order_id":      order.ID,
		"customer_id":   order.CustomerID,
		"customer_name": order.CustomerName,
		"order_date":    order.OrderDate.Format(time.RFC3339),
		"total_amount":  order.TotalAmount.StringFixed(2),
		"lines":         lines,
	}
	if order.IdempotencyKey != "" {
		r["idempotency_key"] = order.IdempotencyKey
	}
	return r
}

// failure turns a classified service error into a tool error result
// carrying the single user-visible message.
func failure(err error) *mcp.CallToolResult {
	msg := orders.Describe(err)
	kind, ok := orders.KindOf(err)
	if !ok {
		kind = orders.KindConnectivity
	}
	return mcp.NewToolResultError(formatJSON(map[string]interface{}{
		"status":  types.OrderFailed,
		"kind":    kind.String(),
		"level":   msg.Level,
		"message": msg.Text,
	}))
}

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	// MCP errors are returned as regular errors, the framework handles encoding
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

func missingParam(key string) error {
	return newMCPError(ErrorCodeInvalidParams, key+" parameter is required", map[string]interface{}{
		"param":  key,
		"reason": "missing or empty",
	})
}

func invalidParam(key string, value interface{}, reason string) error {
	return newMCPError(ErrorCodeInvalidParams, "invalid "+key, map[string]interface{}{
		"param":  key,
		"value":  value,
		"reason": reason,
	})
}

// arguments extracts the argument object; a call with no arguments is an
// empty object.
func arguments(request mcp.CallToolRequest) (map[string]interface{}, error) {
	if request.Params.Arguments == nil {
		return map[string]interface{}{}, nil
	}
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}
	return args, nil
}

// formatJSON formats a value as indented JSON
func formatJSON(data interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// integer converts a JSON number to an int64, rejecting fractions
func integer(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return int64(n), true
	case int:
		return int64(n), true
	case int64:
		return n, true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	}
	return 0, false
}

// requireInt extracts a required integer parameter
func requireInt(args map[string]interface{}, key string) (int64, error) {
	v, ok := args[key]
	if !ok || v == nil {
		return 0, missingParam(key)
	}
	n, ok := integer(v)
	if !ok {
		return 0, invalidParam(key, v, "must be an integer")
	}
	return n, nil
}

// requireString extracts a required non-empty string parameter
func requireString(args map[string]interface{}, key string) (string, error) {
	v, ok := args[key].(string)
	if !ok || strings.TrimSpace(v) == "" {
		return "", missingParam(key)
	}
	return strings.TrimSpace(v), nil
}

// getDecimal extracts an optional money parameter given as a string or number
func getDecimal(args map[string]interface{}, key string) (decimal.Decimal, bool, error) {
	switch v := args[key].(type) {
	case nil:
		return decimal.Zero, false, nil
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(v))
		if err != nil {
			return decimal.Zero, false, invalidParam(key, v, "must be a decimal amount")
		}
		return d, true, nil
	case float64:
		return decimal.NewFromFloat(v), true, nil
	default:
		return decimal.Zero, false, invalidParam(key, v, "must be a decimal amount")
	}
}

// parseItems extracts the order lines of place_order
func parseItems(args map[string]interface{}) ([]types.OrderItem, error) {
	raw, ok := args["items"].([]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "items parameter is required", map[string]interface{}{
			"param":  "items",
			"reason": "missing or not an array",
		})
	}

	items := make([]types.OrderItem, 0, len(raw))
	for i, entry := range raw {
		line, ok := entry.(map[string]interface{})
		if !ok {
			return nil, invalidParam(fmt.Sprintf("items[%d]", i), entry, "must be an object")
		}
		productID, err := requireInt(line, "product_id")
		if err != nil {
			return nil, err
		}
		quantity, err := requireInt(line, "quantity")
		if err != nil {
			return nil, err
		}
		if quantity > math.MaxInt32 || quantity < math.MinInt32 {
			return nil, invalidParam(fmt.Sprintf("items[%d].quantity", i), quantity, "out of range")
		}
		items = append(items, types.OrderItem{ProductID: productID, Quantity: int(quantity)})
	}
	return items, nil
}

// getBoolDefault extracts a boolean parameter with a default value
func getBoolDefault(args map[string]interface{}, key string, defaultValue bool) bool {
	if val, ok := args[key].(bool); ok {
		return val
	}
	return defaultValue
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := integer(args[key]); ok {
		return int(val)
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok {
		return val
	}
	return defaultValue
}
