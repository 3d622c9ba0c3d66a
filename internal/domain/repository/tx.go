package repository

import "context"

// Repos agrupa los repositorios atados a una misma transacción.
type Repos struct {
	Products  ProductRepository
	Movements StockMovementRepository
	Quotes    QuoteRepository
	Orders    OrderRepository
	Purchases PurchaseRepository
	Invoices  InvoiceRepository
	Numbers   DocumentNumberRepository
}

// TxRunner ejecuta fn dentro de una transacción: Commit si fn retorna nil, Rollback en otro caso.
// Las implementaciones reintentan un número acotado de veces ante conflictos de concurrencia
// (fn debe ser re-ejecutable).
type TxRunner interface {
	Run(ctx context.Context, fn func(ctx context.Context, repos Repos) error) error
}
