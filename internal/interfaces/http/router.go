package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/stockledger-api/internal/application/billing"
	"github.com/jhoicas/stockledger-api/internal/application/catalog"
	"github.com/jhoicas/stockledger-api/internal/application/inventory"
	"github.com/jhoicas/stockledger-api/internal/application/purchasing"
	"github.com/jhoicas/stockledger-api/internal/application/sales"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	Catalog    *catalog.ProductUseCase
	Ledger     *inventory.LedgerUseCase
	Sales      *sales.UseCase
	Purchasing *purchasing.UseCase
	Billing    *billing.Coordinator
	JWTSecret  string
	// Ping opcional para /health (p. ej. pool.Ping).
	Ping HealthCheck
}

// Router registra las rutas de la API.
func Router(app *fiber.App, deps RouterDeps) {
	app.Get("/health", NewHealthHandler(deps.Ping).Check)

	// Todo /api requiere Bearer Token
	api := app.Group("/api", AuthMiddleware(deps.JWTSecret))

	stockRoles := RequireRole(RoleAdmin, RoleBodeguero)
	salesRoles := RequireRole(RoleAdmin, RoleVendedor)

	products := api.Group("/products")
	productHandler := NewProductHandler(deps.Catalog)
	products.Post("/", RequireRole(RoleAdmin), productHandler.Create)
	products.Get("/", productHandler.FindBySKU)
	products.Get("/:id", productHandler.GetByID)

	inv := api.Group("/inventory")
	inventoryHandler := NewInventoryHandler(deps.Ledger)
	inv.Post("/movements", stockRoles, inventoryHandler.RegisterMovement)
	inv.Post("/recounts", stockRoles, inventoryHandler.RegisterRecount)
	inv.Get("/products/:id/movements", inventoryHandler.History)
	inv.Get("/products/:id/verify", inventoryHandler.Verify)
	inv.Get("/low-stock", inventoryHandler.LowStock)

	quotes := api.Group("/quotes")
	quoteHandler := NewQuoteHandler(deps.Sales)
	quotes.Post("/", salesRoles, quoteHandler.Create)
	quotes.Get("/:id", quoteHandler.GetByID)
	quotes.Post("/:id/approve", salesRoles, quoteHandler.Approve)
	quotes.Post("/:id/reject", salesRoles, quoteHandler.Reject)

	orders := api.Group("/orders")
	orderHandler := NewOrderHandler(deps.Sales, deps.Billing)
	orders.Post("/", salesRoles, orderHandler.Create)
	orders.Get("/:id", orderHandler.GetByID)
	orders.Post("/:id/confirm", salesRoles, orderHandler.Confirm)
	orders.Post("/:id/cancel", salesRoles, orderHandler.Cancel)
	orders.Post("/:id/invoice", salesRoles, orderHandler.RequestInvoice)
	orders.Get("/:id/invoice", orderHandler.GetInvoice)

	purchases := api.Group("/purchases")
	purchaseHandler := NewPurchaseHandler(deps.Purchasing)
	purchases.Post("/", stockRoles, purchaseHandler.Create)
	purchases.Get("/:id", purchaseHandler.GetByID)

	invoices := api.Group("/invoices")
	invoiceHandler := NewInvoiceHandler(deps.Billing)
	invoices.Post("/cancel", RequireRole(RoleAdmin), invoiceHandler.Cancel)
	invoices.Get("/by-reference/:ref/document", invoiceHandler.Document)
	invoices.Get("/:id", invoiceHandler.GetByID)
}
