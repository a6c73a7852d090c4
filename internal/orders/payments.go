package orders

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/dshills/amazonmart/pkg/types"
)

// RecordPayment records money received against an existing order
func (c *Coordinator) RecordPayment(ctx context.Context, orderID int64, amount decimal.Decimal, method types.PaymentMethod) (*types.Payment, error) {
	payment := &types.Payment{
		OrderID: orderID,
		Amount:  amount,
		Method:  method,
	}
	if err := payment.Validate(); err != nil {
		return nil, Invalid(OpRecordPayment, err)
	}

	if err := c.store.RecordPayment(ctx, payment); err != nil {
		err = Classify(OpRecordPayment, err)
		c.logger.WarnContext(ctx, "payment failed", "order_id", orderID, "error", err)
		return nil, err
	}

	c.logger.InfoContext(ctx, "payment recorded",
		"payment_id", payment.ID,
		"order_id", orderID,
		"amount", payment.Amount.StringFixed(2),
		"method", payment.Method)
	return payment, nil
}

// ListPayments returns the payments recorded for an order, oldest first
func (c *Coordinator) ListPayments(ctx context.Context, orderID int64) ([]*types.Payment, error) {
	if orderID <= 0 {
		return nil, Invalid(OpListPayments, types.ErrInvalidOrderID)
	}
	payments, err := c.store.ListPayments(ctx, orderID)
	if err != nil {
		return nil, Classify(OpListPayments, err)
	}
	return payments, nil
}
