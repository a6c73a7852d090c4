package types

import "errors"

// Domain errors for request validation
var (
	// Order request errors
	ErrInvalidCustomerID  = errors.New("customer ID must be positive")
	ErrEmptyOrder         = errors.New("order must contain at least one product")
	ErrInvalidProductID   = errors.New("product ID must be positive")
	ErrInvalidQuantity    = errors.New("quantity must be a positive integer")
	ErrIDOutOfRange       = errors.New("identifier exceeds the maximum of 2147483647")
	ErrDuplicateProduct   = errors.New("product selected more than once")
	ErrInvalidIdempotency = errors.New("idempotency key must be a UUID")

	// Catalog errors
	ErrEmptyName     = errors.New("name cannot be empty")
	ErrNegativePrice = errors.New("price cannot be negative")
	ErrPriceTooLarge = errors.New("price exceeds the maximum of 9999999999.99")
	ErrNegativeStock = errors.New("stock quantity cannot be negative")
	ErrNoChanges     = errors.New("no fields to update")

	// Payment errors
	ErrInvalidOrderID = errors.New("order ID must be positive")
	ErrInvalidAmount  = errors.New("payment amount must be positive")
	ErrAmountTooLarge = errors.New("payment amount exceeds the maximum of 9999999999.99")
	ErrInvalidMethod  = errors.New("unsupported payment method")
)
