// Package mcp implements the Model Context Protocol (MCP) server for AmazonMart.
//
// The server exposes the store to MCP clients as tools:
//   - list_products, list_customers, order_form: catalog reads
//   - place_order: submit one multi-line order atomically
//   - get_order, order_history, sales_dashboard: reports
//   - add_product, update_product, add_customer: catalog admin
//   - record_payment: record money received against an order
//   - get_status: database health and record counts
//
// # Protocol Overview
//
// MCP is a JSON-RPC 2.0 protocol over stdio transport:
//
//	Client → Server: {"method": "tools/call", "params": {...}}
//	Server → Client: {"result": {...}}
//
// Stdout carries protocol messages only; logs go to stderr.
//
// # Tool: place_order
//
//	Request:
//	{
//	  "name": "place_order",
//	  "arguments": {
//	    "customer_id": 7,
//	    "items": [
//	      {"product_id": 3, "quantity": 2},
//	      {"product_id": 9, "quantity": 1}
//	    ],
//	    "idempotency_key": "5f0c6a4e-3c1b-4b53-9a43-1f1f8f0e2f11"
//	  }
//	}
//
//	Response:
//	{
//	  "status": "committed",
//	  "message": "Order 12 placed for Ada Lovelace, total 45.00",
//	  "order": {
//	    "order_id": 12,
//	    "total_amount": "45.00",
//	    "lines": [...]
//	  }
//	}
//
// # Errors
//
// Malformed arguments (missing parameters, wrong types, out-of-range limits)
// are returned as *MCPError with JSON-RPC code -32602.
//
// Failures of the operation itself are returned as a tool result with
// isError set and a single message:
//
//	{
//	  "status": "failed",
//	  "kind": "constraint",
//	  "level": "error",
//	  "message": "insufficient stock for product 3: requested 2, available 0"
//	}
//
// kind is one of validation, constraint, connectivity or not_found. level is
// "warning" for validation and not_found, "error" otherwise. Constraint
// messages are the database's own text.
//
// # Money
//
// Amounts are decimal strings with two places in responses. Tool inputs
// accept strings ("12.50") or JSON numbers.
package mcp
