package httpapi

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/dshills/amazonmart/internal/reports"
	"github.com/dshills/amazonmart/internal/storage"
	"github.com/dshills/amazonmart/pkg/types"
)

// money renders as a string with exactly two decimal places
type money decimal.Decimal

func (m money) MarshalJSON() ([]byte, error) {
	return []byte(`"` + decimal.Decimal(m).StringFixed(2) + `"`), nil
}

type CreateCustomerRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
}

type CustomerResponse struct {
	ID        int64     `json:"id"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func customerResponse(c *types.Customer) CustomerResponse {
	return CustomerResponse{
		ID:        c.ID,
		FirstName: c.FirstName,
		LastName:  c.LastName,
		Name:      c.FullName(),
		Email:     c.Email,
		CreatedAt: c.CreatedAt,
	}
}

type CreateProductRequest struct {
	Name          string          `json:"name"`
	Category      string          `json:"category"`
	Price         decimal.Decimal `json:"price"`
	StockQuantity int             `json:"stock_quantity"`
}

type ProductResponse struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	Category      string    `json:"category,omitempty"`
	Price         money     `json:"price"`
	StockQuantity int       `json:"stock_quantity"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func productResponse(p *types.Product) ProductResponse {
	return ProductResponse{
		ID:            p.ID,
		Name:          p.Name,
		Category:      p.Category,
		Price:         money(p.Price),
		StockQuantity: p.StockQuantity,
		UpdatedAt:     p.UpdatedAt,
	}
}

type PlaceOrderRequest struct {
	CustomerID int64             `json:"customer_id"`
	Items      []types.OrderItem `json:"items"`
}

type OrderLineResponse struct {
	ProductID   int64  `json:"product_id"`
	ProductName string `json:"product_name"`
	Quantity    int    `json:"quantity"`
	UnitPrice   money  `json:"unit_price"`
	Subtotal    money  `json:"subtotal"`
}

type OrderResponse struct {
	ID             int64               `json:"id"`
	Status         types.OrderStatus   `json:"status"`
	CustomerID     int64               `json:"customer_id"`
	CustomerName   string              `json:"customer_name"`
	OrderDate      time.Time           `json:"order_date"`
	TotalAmount    money               `json:"total_amount"`
	IdempotencyKey string              `json:"idempotency_key,omitempty"`
	Lines          []OrderLineResponse `json:"lines"`
}

func orderResponse(o *types.Order) OrderResponse {
	lines := make([]OrderLineResponse, len(o.Lines))
	for i, l := range o.Lines {
		lines[i] = OrderLineResponse{
			ProductID:   l.ProductID,
			ProductName: l.ProductName,
			Quantity:    l.Quantity,
			UnitPrice:   money(l.UnitPrice),
			Subtotal:    money(l.Subtotal),
		}
	}
	return OrderResponse{
		ID:             o.ID,
		Status:         types.OrderCommitted,
		CustomerID:     o.CustomerID,
		CustomerName:   o.CustomerName,
		OrderDate:      o.OrderDate,
		TotalAmount:    money(o.TotalAmount),
		IdempotencyKey: o.IdempotencyKey,
		Lines:          lines,
	}
}

type RecordPaymentRequest struct {
	Amount decimal.Decimal     `json:"amount"`
	Method types.PaymentMethod `json:"method"`
}

type PaymentResponse struct {
	ID      int64               `json:"id"`
	OrderID int64               `json:"order_id"`
	Amount  money               `json:"amount"`
	Method  types.PaymentMethod `json:"method"`
	PaidAt  time.Time           `json:"paid_at"`
}

func paymentResponse(p *types.Payment) PaymentResponse {
	return PaymentResponse{
		ID:      p.ID,
		OrderID: p.OrderID,
		Amount:  money(p.Amount),
		Method:  p.Method,
		PaidAt:  p.PaidAt,
	}
}

type SummaryResponse struct {
	OrderCount    int   `json:"order_count"`
	CustomerCount int   `json:"customer_count"`
	UnitsSold     int   `json:"units_sold"`
	Revenue       money `json:"revenue"`
	AverageOrder  money `json:"average_order"`
	PaymentsTotal money `json:"payments_total"`
}

type ProductSalesResponse struct {
	ProductID   int64  `json:"product_id"`
	ProductName string `json:"product_name"`
	UnitsSold   int    `json:"units_sold"`
	Revenue     money  `json:"revenue"`
}

type CustomerRevenueResponse struct {
	CustomerID   int64  `json:"customer_id"`
	CustomerName string `json:"customer_name"`
	OrderCount   int    `json:"order_count"`
	Revenue      money  `json:"revenue"`
}

type DailySalesResponse struct {
	Day        string `json:"day"`
	OrderCount int    `json:"order_count"`
	Revenue    money  `json:"revenue"`
}

type DashboardResponse struct {
	Summary      SummaryResponse           `json:"summary"`
	TopProducts  []ProductSalesResponse    `json:"top_products"`
	TopCustomers []CustomerRevenueResponse `json:"top_customers"`
	DailySales   []DailySalesResponse      `json:"daily_sales"`
	GeneratedAt  time.Time                 `json:"generated_at"`
}

func dashboardResponse(d *reports.Dashboard) DashboardResponse {
	resp := DashboardResponse{
		TopProducts:  make([]ProductSalesResponse, len(d.TopProducts)),
		TopCustomers: make([]CustomerRevenueResponse, len(d.TopCustomers)),
		DailySales:   make([]DailySalesResponse, len(d.DailySales)),
		GeneratedAt:  d.GeneratedAt,
	}
	if s := d.Summary; s != nil {
		resp.Summary = summaryResponse(s)
	}
	for i, p := range d.TopProducts {
		resp.TopProducts[i] = ProductSalesResponse{p.ProductID, p.ProductName, p.UnitsSold, money(p.Revenue)}
	}
	for i, c := range d.TopCustomers {
		resp.TopCustomers[i] = CustomerRevenueResponse{c.CustomerID, c.CustomerName, c.OrderCount, money(c.Revenue)}
	}
	for i, day := range d.DailySales {
		resp.DailySales[i] = DailySalesResponse{day.Day, day.OrderCount, money(day.Revenue)}
	}
	return resp
}

func summaryResponse(s *storage.SalesSummary) SummaryResponse {
	return SummaryResponse{
		OrderCount:    s.OrderCount,
		CustomerCount: s.CustomerCount,
		UnitsSold:     s.UnitsSold,
		Revenue:       money(s.Revenue),
		AverageOrder:  money(s.AverageOrder),
		PaymentsTotal: money(s.PaymentsTotal),
	}
}
