package orders

import (
	"context"
	"log/slog"
	"time"

	"github.com/dshills/amazonmart/internal/storage"
	"github.com/dshills/amazonmart/internal/telemetry"
	"github.com/dshills/amazonmart/pkg/types"
)

// Operation names carried by Error.Op
const (
	OpPlaceOrder    = "place_order"
	OpRecordPayment = "record_payment"
	OpListPayments  = "list_payments"
)

// Coordinator submits orders to the store as single atomic calls
type Coordinator struct {
	store   storage.Storage
	logger  *slog.Logger
	metrics *telemetry.Metrics
}

// Option configures a Coordinator
type Option func(*Coordinator)

// WithLogger sets the logger (default slog.Default())
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

// WithMetrics sets the metrics sink (default none)
func WithMetrics(m *telemetry.Metrics) Option {
	return func(c *Coordinator) {
		c.metrics = m
	}
}

// New creates a coordinator over store
func New(store storage.Storage, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:  store,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "orders")
	return c
}

// Validate checks request preconditions without touching the store
func Validate(req types.OrderRequest) error {
	if err := req.Validate(); err != nil {
		return Invalid("validate", err)
	}
	return nil
}

// PlaceOrder validates req and submits it in exactly one store call. The
// order either commits as a whole or fails with a classified *Error; the
// call is never retried, in whole or per line.
func (c *Coordinator) PlaceOrder(ctx context.Context, req types.OrderRequest) (*types.Order, error) {
	start := time.Now()
	ctx = telemetry.WithIdempotencyKey(ctx, req.IdempotencyKey)

	c.logger.DebugContext(ctx, "order submitted",
		"status", types.OrderPending,
		"customer_id", req.CustomerID,
		"lines", len(req.Items))

	if err := req.Validate(); err != nil {
		err = Invalid(OpPlaceOrder, err)
		c.finish(ctx, req, nil, err, start)
		return nil, err
	}

	order, err := c.store.PlaceOrder(ctx, req)
	if err != nil {
		err = Classify(OpPlaceOrder, err)
		c.finish(ctx, req, nil, err, start)
		return nil, err
	}

	c.finish(ctx, req, order, nil, start)
	return order, nil
}

// finish logs the terminal state once and records metrics
func (c *Coordinator) finish(ctx context.Context, req types.OrderRequest, order *types.Order, err error, start time.Time) {
	elapsed := time.Since(start)

	if err == nil {
		c.metrics.ObserveOrder(string(types.OrderCommitted), len(order.Lines), elapsed)
		c.logger.InfoContext(ctx, "order committed",
			"status", types.OrderCommitted,
			"order_id", order.ID,
			"customer_id", order.CustomerID,
			"total", order.TotalAmount.StringFixed(2),
			"lines", len(order.Lines),
			"duration_ms", elapsed.Milliseconds())
		return
	}

	kind, _ := KindOf(err)
	c.metrics.ObserveOrder(kind.String(), 0, elapsed)

	level := slog.LevelError
	if kind == KindValidation || kind == KindConstraint {
		level = slog.LevelWarn
	}
	c.logger.Log(ctx, level, "order failed",
		"status", types.OrderFailed,
		"kind", kind.String(),
		"customer_id", req.CustomerID,
		"lines", len(req.Items),
		"error", err,
		"duration_ms", elapsed.Milliseconds())
}
