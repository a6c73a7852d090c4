package types

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Customer is a person who can place orders
type Customer struct {
	ID        int64     `json:"id"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Email     string    `json:"email,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// FullName returns the display name used in listings and order history
func (c *Customer) FullName() string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

// Validate checks the fields required to create a customer
func (c *Customer) Validate() error {
	if strings.TrimSpace(c.FirstName) == "" {
		return fmt.Errorf("%w: first name", ErrEmptyName)
	}
	if strings.TrimSpace(c.LastName) == "" {
		return fmt.Errorf("%w: last name", ErrEmptyName)
	}
	return nil
}

// MaxPrice is the largest money value a product or payment may carry. It is
// the range of a NUMERIC(12,2) column.
var MaxPrice = decimal.RequireFromString("9999999999.99")

// Product is a sellable item with a unit price and remaining stock
type Product struct {
	ID            int64           `json:"id"`
	Name          string          `json:"name"`
	Category      string          `json:"category,omitempty"`
	Price         decimal.Decimal `json:"price"`
	StockQuantity int             `json:"stock_quantity"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Validate checks the fields required to create a product
func (p *Product) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: product name", ErrEmptyName)
	}
	if p.Price.IsNegative() {
		return ErrNegativePrice
	}
	if p.Price.GreaterThan(MaxPrice) {
		return ErrPriceTooLarge
	}
	if p.StockQuantity < 0 {
		return ErrNegativeStock
	}
	return nil
}

// ProductUpdate carries an admin adjustment of price and/or stock.
// Nil fields are left unchanged.
type ProductUpdate struct {
	Price         *decimal.Decimal `json:"price,omitempty"`
	StockQuantity *int             `json:"stock_quantity,omitempty"`
}

// Validate checks that the update changes something and keeps values in range
func (u *ProductUpdate) Validate() error {
	if u.Price == nil && u.StockQuantity == nil {
		return ErrNoChanges
	}
	if u.Price != nil && u.Price.IsNegative() {
		return ErrNegativePrice
	}
	if u.Price != nil && u.Price.GreaterThan(MaxPrice) {
		return ErrPriceTooLarge
	}
	if u.StockQuantity != nil && *u.StockQuantity < 0 {
		return ErrNegativeStock
	}
	return nil
}

// Option is an (id, label) pair for selection widgets
type Option struct {
	ID    int64  `json:"id"`
	Label string `json:"label"`
}

// CustomerOption builds the selection option for a customer
func CustomerOption(c *Customer) Option {
	return Option{ID: c.ID, Label: c.FullName()}
}

// ProductOption builds the selection option for a product
func ProductOption(p *Product) Option {
	return Option{ID: p.ID, Label: p.Name}
}
