package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/dshills/amazonmart/internal/storage"
)

// Kind classifies a failed operation for the caller
type Kind int

const (
	// KindValidation means the request was rejected before reaching the database
	KindValidation Kind = iota + 1
	// KindConnectivity means the database could not be reached or the call was cut short
	KindConnectivity
	// KindConstraint means the database rejected the operation and rolled it back
	KindConstraint
	// KindNotFound means a referenced order, product or customer does not exist
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConnectivity:
		return "connectivity"
	case KindConstraint:
		return "constraint"
	case KindNotFound:
		return "not_found"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error is a classified failure. Error() returns the underlying message
// unchanged so database messages reach the user verbatim.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the classification of err, if it carries one
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

// IsKind reports whether err is classified as k
func IsKind(err error, k Kind) bool {
	got, ok := KindOf(err)
	return ok && got == k
}

// Classify wraps a storage error with its Kind. Already classified errors
// are returned as is. Anything unrecognised is treated as connectivity.
func Classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := KindOf(err); ok {
		return err
	}

	kind := KindConnectivity
	switch {
	case errors.Is(err, storage.ErrNotFound):
		kind = KindNotFound
	case errors.Is(err, storage.ErrInsufficientStock),
		errors.Is(err, storage.ErrUnknownCustomer),
		errors.Is(err, storage.ErrUnknownProduct),
		errors.Is(err, storage.ErrInvalidOrder),
		errors.Is(err, storage.ErrAlreadyExists),
		errors.Is(err, storage.ErrIdempotencyMismatch),
		errors.Is(err, storage.ErrConstraint):
		kind = KindConstraint
	case errors.Is(err, storage.ErrUnavailable),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		kind = KindConnectivity
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// Invalid wraps a precondition failure as KindValidation
func Invalid(op string, err error) error {
	return &Error{Kind: KindValidation, Op: op, Err: err}
}

// Message levels
const (
	LevelWarning = "warning"
	LevelError   = "error"
)

// Message is the single user-visible outcome of a failed operation
type Message struct {
	Level string `json:"level"`
	Text  string `json:"message"`
}

// Describe converts any failure into one user-visible message
func Describe(err error) Message {
	if err == nil {
		return Message{}
	}

	kind, ok := KindOf(err)
	if !ok {
		kind = KindConnectivity
	}

	switch kind {
	case KindValidation, KindNotFound:
		return Message{Level: LevelWarning, Text: err.Error()}
	case KindConstraint:
		return Message{Level: LevelError, Text: err.Error()}
	default:
		return Message{Level: LevelError, Text: "Database unavailable: " + err.Error()}
	}
}
