// Package types provides shared domain types for the AmazonMart order service.
//
// These types are used by the storage backends, the order coordinator and both
// presentation surfaces (MCP tools and the HTTP API).
//
// # Core Types
//
// Customer and Product are the catalog entities. Orders reference both:
//
//	req := types.OrderRequest{
//	    CustomerID: 7,
//	    Items: []types.OrderItem{
//	        {ProductID: 3, Quantity: 2},
//	        {ProductID: 9, Quantity: 1},
//	    },
//	}
//	if err := req.Validate(); err != nil {
//	    // err wraps one of the Err* sentinels in this package
//	}
//
// Order is the persisted result, with one OrderLine per requested item. Line
// subtotals and the order total are computed by the database at placement time
// and are never recomputed from current prices.
//
// # Money
//
// All amounts use github.com/shopspring/decimal and are rounded to two places
// by the storage layer.
//
// # Selection Options
//
// Option is an (id, label) pair for selection widgets. Clients select by ID;
// labels are display text only and are never parsed back into identifiers.
package types
