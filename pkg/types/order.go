package types

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderStatus is the lifecycle state of an order submission
type OrderStatus string

const (
	// OrderPending is a request that has not reached the database yet
	OrderPending OrderStatus = "pending"
	// OrderCommitted is an order that is fully persisted
	OrderCommitted OrderStatus = "committed"
	// OrderFailed is a request that was rejected or rolled back
	OrderFailed OrderStatus = "failed"
)

// OrderItem is one requested (product, quantity) pair
type OrderItem struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

// OrderRequest is a candidate order
type OrderRequest struct {
	CustomerID int64       `json:"customer_id"`
	Items      []OrderItem `json:"items"`

	// IdempotencyKey is optional. When set, a repeated request with the same
	// key returns the order created by the first one.
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

// Validate checks the request preconditions. Duplicate products are rejected
// rather than merged. Identifiers and quantities must fit a 32-bit INTEGER
// column.
func (r *OrderRequest) Validate() error {
	if r.CustomerID <= 0 {
		return ErrInvalidCustomerID
	}
	if r.CustomerID > math.MaxInt32 {
		return fmt.Errorf("%w: customer %d", ErrIDOutOfRange, r.CustomerID)
	}
	if len(r.Items) == 0 {
		return ErrEmptyOrder
	}

	seen := make(map[int64]struct{}, len(r.Items))
	for i, item := range r.Items {
		if item.ProductID <= 0 {
			return fmt.Errorf("%w: item %d", ErrInvalidProductID, i+1)
		}
		if item.ProductID > math.MaxInt32 {
			return fmt.Errorf("%w: item %d has product %d", ErrIDOutOfRange, i+1, item.ProductID)
		}
		if item.Quantity < 1 || item.Quantity > math.MaxInt32 {
			return fmt.Errorf("%w: item %d has quantity %d", ErrInvalidQuantity, i+1, item.Quantity)
		}
		if _, dup := seen[item.ProductID]; dup {
			return fmt.Errorf("%w: product %d", ErrDuplicateProduct, item.ProductID)
		}
		seen[item.ProductID] = struct{}{}
	}

	if r.IdempotencyKey != "" {
		if _, err := uuid.Parse(r.IdempotencyKey); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidIdempotency, err)
		}
	}
	return nil
}

// ProductIDs returns the product identifiers in request order
func (r *OrderRequest) ProductIDs() []int64 {
	ids := make([]int64, len(r.Items))
	for i, item := range r.Items {
		ids[i] = item.ProductID
	}
	return ids
}

// Quantities returns the quantities in request order, parallel to ProductIDs
func (r *OrderRequest) Quantities() []int {
	qtys := make([]int, len(r.Items))
	for i, item := range r.Items {
		qtys[i] = item.Quantity
	}
	return qtys
}

// OrderLine is one persisted line item
type OrderLine struct {
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Subtotal    decimal.Decimal `json:"subtotal"`
}

// Order is a persisted order with its line items
type Order struct {
	ID             int64           `json:"id"`
	CustomerID     int64           `json:"customer_id"`
	CustomerName   string          `json:"customer_name"`
	OrderDate      time.Time       `json:"order_date"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	IdempotencyKey string          `json:"idempotency_key,omitempty"`
	Lines          []OrderLine     `json:"lines"`
}

// LinesTotal sums the line subtotals
func (o *Order) LinesTotal() decimal.Decimal {
	total := decimal.Zero
	for _, line := range o.Lines {
		total = total.Add(line.Subtotal)
	}
	return total
}

// PaymentMethod is how a payment was made
type PaymentMethod string

const (
	PaymentCard     PaymentMethod = "card"
	PaymentCash     PaymentMethod = "cash"
	PaymentTransfer PaymentMethod = "transfer"
)

// Valid reports whether the method is supported
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCard, PaymentCash, PaymentTransfer:
		return true
	}
	return false
}

// Payment records money received against an order
type Payment struct {
	ID      int64           `json:"id"`
	OrderID int64           `json:"order_id"`
	Amount  decimal.Decimal `json:"amount"`
	Method  PaymentMethod   `json:"method"`
	PaidAt  time.Time       `json:"paid_at"`
}

// Validate checks the payment fields
func (p *Payment) Validate() error {
	if p.OrderID <= 0 {
		return ErrInvalidOrderID
	}
	if !p.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if p.Amount.GreaterThan(MaxPrice) {
		return ErrAmountTooLarge
	}
	if !p.Method.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidMethod, p.Method)
	}
	return nil
}
