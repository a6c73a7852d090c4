package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

func objectSchema(properties map[string]interface{}, required ...string) mcp.ToolInputSchema {
	return mcp.ToolInputSchema{
		Type:       "object",
		Properties: properties,
		Required:   required,
	}
}

func integerProperty(description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "integer",
		"description": description,
		"minimum":     1,
	}
}

func moneyProperty(description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": description + " as a decimal string, e.g. \"12.50\"",
		"pattern":     `^\d+(\.\d{1,2})?$`,
	}
}

// listProductsTool returns the tool definition for list_products
func listProductsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "list_products",
		Description: "List products with price and remaining stock",
		InputSchema: objectSchema(map[string]interface{}{
			"in_stock_only": map[string]interface{}{
				"type":        "boolean",
				"description": "If true, omit products with no stock left",
				"default":     false,
			},
		}),
	}
}

// listCustomersTool returns the tool definition for list_customers
func listCustomersTool() mcp.Tool {
	return mcp.Tool{
		Name:        "list_customers",
		Description: "List customers",
		InputSchema: objectSchema(map[string]interface{}{}),
	}
}

// orderFormTool returns the tool definition for order_form
func orderFormTool() mcp.Tool {
	return mcp.Tool{
		Name:        "order_form",
		Description: "Customer and product choices as (id, label) pairs for composing an order",
		InputSchema: objectSchema(map[string]interface{}{}),
	}
}

// placeOrderTool returns the tool definition for place_order
func placeOrderTool() mcp.Tool {
	return mcp.Tool{
		Name: "place_order",
		Description: "Place one order for a customer. All lines commit together or none do; " +
			"stock is checked and decremented atomically.",
		InputSchema: objectSchema(map[string]interface{}{
			"customer_id": integerProperty("Customer placing the order"),
			"items": map[string]interface{}{
				"type":        "array",
				"description": "Order lines; each product may appear once",
				"minItems":    1,
				"items": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"product_id": integerProperty("Product to order"),
						"quantity":   integerProperty("Units to order"),
					},
					"required": []string{"product_id", "quantity"},
				},
			},
			"idempotency_key": map[string]interface{}{
				"type":        "string",
				"description": "Optional UUID; repeating a call with the same key returns the first order",
				"format":      "uuid",
			},
		}, "customer_id", "items"),
	}
}

// getOrderTool returns the tool definition for get_order
func getOrderTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_order",
		Description: "Fetch one order with its lines",
		InputSchema: objectSchema(map[string]interface{}{
			"order_id": integerProperty("Order to fetch"),
		}, "order_id"),
	}
}

// orderHistoryTool returns the tool definition for order_history
func orderHistoryTool() mcp.Tool {
	return mcp.Tool{
		Name:        "order_history",
		Description: "List placed orders, newest first",
		InputSchema: objectSchema(map[string]interface{}{
			"customer_id": integerProperty("Only orders of this customer (default: all customers)"),
			"limit": map[string]interface{}{
				"type":        "integer",
				"description": "Maximum number of orders to return (1-500)",
				"default":     50,
				"minimum":     1,
				"maximum":     500,
			},
		}),
	}
}

// salesDashboardTool returns the tool definition for sales_dashboard
func salesDashboardTool() mcp.Tool {
	return mcp.Tool{
		Name:        "sales_dashboard",
		Description: "Revenue summary, best sellers, top customers and daily sales",
		InputSchema: objectSchema(map[string]interface{}{
			"top": map[string]interface{}{
				"type":        "integer",
				"description": "Entries in the best seller and top customer lists (1-100)",
				"default":     10,
				"minimum":     1,
				"maximum":     100,
			},
			"days": map[string]interface{}{
				"type":        "integer",
				"description": "Days of daily sales to include",
				"default":     30,
				"minimum":     1,
				"maximum":     366,
			},
		}),
	}
}

// addProductTool returns the tool definition for add_product
func addProductTool() mcp.Tool {
	return mcp.Tool{
		Name:        "add_product",
		Description: "Add a product to the catalog",
		InputSchema: objectSchema(map[string]interface{}{
			"name":  map[string]interface{}{"type": "string", "description": "Product name"},
			"price": moneyProperty("Unit price"),
			"stock_quantity": map[string]interface{}{
				"type":        "integer",
				"description": "Units in stock",
				"default":     0,
				"minimum":     0,
			},
			"category": map[string]interface{}{"type": "string", "description": "Optional category"},
		}, "name", "price"),
	}
}

// updateProductTool returns the tool definition for update_product
func updateProductTool() mcp.Tool {
	return mcp.Tool{
		Name:        "update_product",
		Description: "Change the price and/or stock of a product",
		InputSchema: objectSchema(map[string]interface{}{
			"product_id": integerProperty("Product to change"),
			"price":      moneyProperty("New unit price"),
			"stock_quantity": map[string]interface{}{
				"type":        "integer",
				"description": "New stock level",
				"minimum":     0,
			},
		}, "product_id"),
	}
}

// addCustomerTool returns the tool definition for add_customer
func addCustomerTool() mcp.Tool {
	return mcp.Tool{
		Name:        "add_customer",
		Description: "Register a customer",
		InputSchema: objectSchema(map[string]interface{}{
			"first_name": map[string]interface{}{"type": "string", "description": "First name"},
			"last_name":  map[string]interface{}{"type": "string", "description": "Last name"},
			"email":      map[string]interface{}{"type": "string", "description": "Optional unique email", "format": "email"},
		}, "first_name", "last_name"),
	}
}

// recordPaymentTool returns the tool definition for record_payment
func recordPaymentTool() mcp.Tool {
	return mcp.Tool{
		Name:        "record_payment",
		Description: "Record money received against an order",
		InputSchema: objectSchema(map[string]interface{}{
			"order_id": integerProperty("Order being paid"),
			"amount":   moneyProperty("Amount received"),
			"method": map[string]interface{}{
				"type":        "string",
				"description": "Payment method",
				"enum":        []string{"card", "cash", "transfer"},
			},
		}, "order_id", "amount", "method"),
	}
}

// getStatusTool returns the tool definition for get_status
func getStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_status",
		Description: "Database health, schema version and record counts",
		InputSchema: objectSchema(map[string]interface{}{}),
	}
}
