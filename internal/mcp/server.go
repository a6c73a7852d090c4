package mcp

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/mark3labs/mcp-go/server"

	"github.com/dshills/amazonmart/internal/catalog"
	"github.com/dshills/amazonmart/internal/orders"
	"github.com/dshills/amazonmart/internal/reports"
	"github.com/dshills/amazonmart/internal/storage"
)

const (
	// ServerName is the MCP server name
	ServerName = "amazonmart"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
)

// Deps are the services the tools call into
type Deps struct {
	Store   storage.Storage
	Orders  *orders.Coordinator
	Catalog *catalog.Service
	Reports *reports.Service
	Logger  *slog.Logger
}

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp     *server.MCPServer
	store   storage.Storage
	orders  *orders.Coordinator
	catalog *catalog.Service
	reports *reports.Service
	logger  *slog.Logger
}

// NewServer creates a new MCP server instance. The caller owns the store
// and closes it after Serve returns.
func NewServer(deps Deps) (*Server, error) {
	if deps.Store == nil || deps.Orders == nil || deps.Catalog == nil || deps.Reports == nil {
		return nil, fmt.Errorf("mcp server requires store, orders, catalog and reports")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		mcp: server.NewMCPServer(
			ServerName,
			ServerVersion,
			server.WithToolCapabilities(false),
			server.WithRecovery(),
		),
		store:   deps.Store,
		orders:  deps.Orders,
		catalog: deps.Catalog,
		reports: deps.Reports,
		logger:  logger.With("component", "mcp"),
	}

	s.registerTools()
	return s, nil
}

// Serve runs the MCP protocol on stdin/stdout until ctx is cancelled or
// the client disconnects.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	stdio := server.NewStdioServer(s.mcp)
	s.logger.InfoContext(ctx, "mcp server listening on stdio", "tools", len(s.tools()))
	return stdio.Listen(ctx, in, out)
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	s.mcp.AddTools(s.tools()...)
}

// tools pairs every tool definition with its handler
func (s *Server) tools() []server.ServerTool {
	return []server.ServerTool{
		{Tool: listProductsTool(), Handler: s.handleListProducts},
		{Tool: listCustomersTool(), Handler: s.handleListCustomers},
		{Tool: orderFormTool(), Handler: s.handleOrderForm},
		{Tool: placeOrderTool(), Handler: s.handlePlaceOrder},
		{Tool: getOrderTool(), Handler: s.handleGetOrder},
		{Tool: orderHistoryTool(), Handler: s.handleOrderHistory},
		{Tool: salesDashboardTool(), Handler: s.handleSalesDashboard},
		{Tool: addProductTool(), Handler: s.handleAddProduct},
		{Tool: updateProductTool(), Handler: s.handleUpdateProduct},
		{Tool: addCustomerTool(), Handler: s.handleAddCustomer},
		{Tool: recordPaymentTool(), Handler: s.handleRecordPayment},
		{Tool: getStatusTool(), Handler: s.handleGetStatus},
	}
}
