package storage

import (
	"errors"

	"github.com/dshills/amazonmart/pkg/types"
)

var (
	// ErrNotFound is returned when a requested entity doesn't exist
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when trying to create a duplicate entity
	ErrAlreadyExists = errors.New("already exists")

	// ErrInsufficientStock is returned when a line requests more than the remaining stock
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrUnknownCustomer is returned when an order references a missing customer
	ErrUnknownCustomer = errors.New("unknown customer")
	// ErrUnknownProduct is returned when an order references a missing product
	ErrUnknownProduct = errors.New("unknown product")
	// ErrInvalidOrder is returned when the database rejects the shape of an order
	ErrInvalidOrder = errors.New("invalid order")
	// ErrIdempotencyMismatch is returned when an idempotency key is replayed
	// with a different customer or different lines
	ErrIdempotencyMismatch = errors.New("idempotency key reused with a different request")
	// ErrConstraint is returned for any other integrity violation raised by the database
	ErrConstraint = errors.New("constraint violation")

	// ErrUnavailable is returned when the database cannot be reached
	ErrUnavailable = errors.New("database unavailable")
)

// dbError carries the database's own message while matching a sentinel
// through errors.Is.
type dbError struct {
	kind error
	msg  string
	err  error
}

func newDBError(kind error, msg string, cause error) error {
	return &dbError{kind: kind, msg: msg, err: cause}
}

func (e *dbError) Error() string {
	return e.msg
}

func (e *dbError) Is(target error) bool {
	return target == e.kind
}

func (e *dbError) Unwrap() error {
	return e.err
}

// replayOf returns the stored order for a repeated idempotency key, or
// ErrIdempotencyMismatch when the request no longer describes that order.
func replayOf(order *types.Order, req types.OrderRequest) (*types.Order, error) {
	if order.CustomerID != req.CustomerID || len(order.Lines) != len(req.Items) {
		return nil, ErrIdempotencyMismatch
	}
	want := make(map[int64]int, len(req.Items))
	for _, item := range req.Items {
		want[item.ProductID] = item.Quantity
	}
	for _, line := range order.Lines {
		if qty, ok := want[line.ProductID]; !ok || qty != line.Quantity {
			return nil, ErrIdempotencyMismatch
		}
	}
	return order, nil
}
