// Package orders submits customer orders to the store as one atomic unit.
//
// The Coordinator checks request preconditions (positive customer id, at
// least one line, positive quantities, unique products, UUID idempotency key)
// before any database call, then makes exactly one call to
// storage.Storage.PlaceOrder. That call either commits the whole order or
// nothing. Concurrent orders for the same stock are arbitrated by the
// database; the coordinator holds no locks and never retries.
//
// Failures are returned as *Error with a Kind:
//   - KindValidation: rejected before reaching the database
//   - KindConstraint: rejected by the database and rolled back (insufficient
//     stock, unknown customer or product, integrity violations)
//   - KindConnectivity: the database could not be reached, or the context
//     ended first
//   - KindNotFound: a lookup found nothing
//
// Describe turns any error into a single message for display:
//
//	order, err := coord.PlaceOrder(ctx, req)
//	if err != nil {
//	    msg := orders.Describe(err)
//	    fmt.Println(msg.Level, msg.Text)
//	}
package orders
