package sales_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/stockledger-api/internal/application/inventory"
	"github.com/jhoicas/stockledger-api/internal/application/sales"
	"github.com/jhoicas/stockledger-api/internal/domain"
	"github.com/jhoicas/stockledger-api/internal/domain/entity"
	"github.com/jhoicas/stockledger-api/internal/domain/repository"
	"github.com/jhoicas/stockledger-api/internal/infrastructure/memory"
)

type fixture struct {
	store  *memory.Store
	ledger *inventory.LedgerUseCase
	sales  *sales.UseCase
}

func newFixture(t *testing.T, stock map[string]int64) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()
	ledger := inventory.NewLedgerUseCase(store, store.Repos(), nil, inventory.Config{}, zerolog.Nop())
	for id, qty := range stock {
		require.NoError(t, store.Repos().Products.Create(ctx, &entity.Product{ID: id, SKU: "SKU-" + id, Name: id}))
		if qty > 0 {
			_, err := ledger.Adjust(ctx, inventory.AdjustInput{ProductID: id, Delta: qty, Kind: entity.MovementKindInflow, Reason: "saldo inicial"})
			require.NoError(t, err)
		}
	}
	return &fixture{
		store:  store,
		ledger: ledger,
		sales:  sales.NewUseCase(store, store.Repos(), ledger, nil, zerolog.Nop()),
	}
}

func (f *fixture) qty(t *testing.T, productID string) int64 {
	t.Helper()
	p, err := f.store.Repos().Products.GetByID(context.Background(), productID)
	require.NoError(t, err)
	return p.QuantityOnHand
}

func (f *fixture) movementsOf(t *testing.T, productID string) []*entity.StockMovement {
	t.Helper()
	movs, err := f.ledger.History(context.Background(), productID, repository.MovementFilter{})
	require.NoError(t, err)
	return movs
}

func line(id string, qty int64, unit int64) entity.LineItem {
	return entity.LineItem{ReferenceID: id, ReferenceKind: entity.ReferenceKindProduct, Quantity: qty, UnitValue: decimal.NewFromInt(unit)}
}

func service(id string, unit int64) entity.LineItem {
	return entity.LineItem{ReferenceID: id, ReferenceKind: entity.ReferenceKindService, Quantity: 1, UnitValue: decimal.NewFromInt(unit)}
}

func (f *fixture) quote(t *testing.T, items ...entity.LineItem) *entity.Quote {
	t.Helper()
	q, err := f.sales.CreateQuote(context.Background(), sales.CreateQuoteInput{
		CustomerID: "c1", LineItems: items, ValidUntil: time.Now().Add(24 * time.Hour), ActorID: "u1",
	})
	require.NoError(t, err)
	return q
}

func TestCreateQuote_NumeraYCalculaTotal(t *testing.T) {
	f := newFixture(t, map[string]int64{"p1": 10})
	ctx := context.Background()

	q, err := f.sales.CreateQuote(ctx, sales.CreateQuoteInput{
		CustomerID: "c1",
		LineItems:  []entity.LineItem{line("p1", 2, 150), service("s1", 250)},
		Discount:   decimal.NewFromInt(50),
	})
	require.NoError(t, err)
	assert.Equal(t, entity.QuoteStatusPending, q.Status)
	assert.True(t, q.TotalValue.Equal(decimal.NewFromInt(500)))
	assert.Regexp(t, `^COT-\d{4}-00001$`, q.Number)

	_, err = f.sales.CreateQuote(ctx, sales.CreateQuoteInput{CustomerID: "c1"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = f.sales.CreateQuote(ctx, sales.CreateQuoteInput{
		CustomerID: "c1", LineItems: []entity.LineItem{line("p1", 1, 10)}, Discount: decimal.NewFromInt(11),
	})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestCreateQuote_ProductoDesconocido(t *testing.T) {
	f := newFixture(t, map[string]int64{"p1": 10})
	ctx := context.Background()

	_, err := f.sales.CreateQuote(ctx, sales.CreateQuoteInput{
		CustomerID: "c1", LineItems: []entity.LineItem{line("p1", 1, 10), line("nope", 1, 10)},
	})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	// el consecutivo no se consumió
	q := f.quote(t, line("p1", 1, 10), service("s1", 20))
	assert.Regexp(t, `^COT-\d{4}-00001$`, q.Number)
}

func TestApprove_CreaPedidoConfirmadoYEsIdempotente(t *testing.T) {
	f := newFixture(t, map[string]int64{"p1": 10, "p2": 10})
	ctx := context.Background()
	q := f.quote(t, line("p1", 2, 100), line("p2", 3, 100))

	order, err := f.sales.Approve(ctx, q.ID, sales.ApproveInput{ActorID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, entity.OrderStatusConfirmed, order.Status)
	require.NotNil(t, order.QuoteID)
	assert.Equal(t, q.ID, *order.QuoteID)
	assert.True(t, order.TotalValue.Equal(decimal.NewFromInt(500)))
	assert.Equal(t, q.LineItems, order.LineItems)
	assert.Equal(t, int64(8), f.qty(t, "p1"))
	assert.Equal(t, int64(7), f.qty(t, "p2"))

	again, err := f.sales.Approve(ctx, q.ID, sales.ApproveInput{ActorID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, order.ID, again.ID)
	assert.Equal(t, int64(8), f.qty(t, "p1"))

	stored, err := f.sales.GetQuote(ctx, q.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.QuoteStatusApproved, stored.Status)
}

func TestApprove_ConcurrenteUnSoloPedido(t *testing.T) {
	f := newFixture(t, map[string]int64{"p1": 100})
	ctx := context.Background()
	q := f.quote(t, line("p1", 1, 100))

	var wg sync.WaitGroup
	ids := make([]string, 20)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			o, err := f.sales.Approve(ctx, q.ID, sales.ApproveInput{})
			if assert.NoError(t, err) {
				ids[i] = o.ID
			}
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	assert.Equal(t, int64(99), f.qty(t, "p1"))
	assert.Len(t, f.movementsOf(t, "p1"), 2)
}

func TestApprove_RechazadaOVencida(t *testing.T) {
	f := newFixture(t, map[string]int64{"p1": 10})
	ctx := context.Background()

	q := f.quote(t, line("p1", 1, 10))
	_, err := f.sales.Reject(ctx, q.ID, "u1")
	require.NoError(t, err)
	_, err = f.sales.Approve(ctx, q.ID, sales.ApproveInput{})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	_, err = f.sales.Reject(ctx, q.ID, "u1")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = f.sales.Approve(ctx, "no-existe", sales.ApproveInput{})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	// vencida: se guarda directamente con validez pasada
	expired := &entity.Quote{
		ID: "qx", Number: "COT-2020-00001", CustomerID: "c1", Status: entity.QuoteStatusPending,
		ValidUntil: time.Now().Add(-time.Hour), LineItems: []entity.LineItem{line("p1", 1, 10)},
	}
	require.NoError(t, f.store.Repos().Quotes.Create(ctx, expired))
	_, err = f.sales.Approve(ctx, "qx", sales.ApproveInput{})
	assert.ErrorIs(t, err, domain.ErrQuoteExpired)
	assert.Equal(t, int64(10), f.qty(t, "p1"))
}

func TestApprove_SinStockNoApruebaNiConsume(t *testing.T) {
	f := newFixture(t, map[string]int64{"p1": 10, "p2": 1})
	ctx := context.Background()
	q := f.quote(t, line("p1", 2, 10), line("p2", 5, 10))

	_, err := f.sales.Approve(ctx, q.ID, sales.ApproveInput{})
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)

	stored, _ := f.sales.GetQuote(ctx, q.ID)
	assert.Equal(t, entity.QuoteStatusPending, stored.Status)
	assert.Equal(t, int64(10), f.qty(t, "p1"))
}

func TestCreateOrder_TodoONada(t *testing.T) {
	f := newFixture(t, map[string]int64{"p1": 10, "p2": 10, "p3": 2})
	ctx := context.Background()

	_, err := f.sales.CreateOrder(ctx, sales.CreateOrderInput{
		CustomerID: "c1",
		LineItems:  []entity.LineItem{line("p1", 1, 10), line("p2", 1, 10), line("p3", 5, 10)},
	})
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)

	for _, pid := range []string{"p1", "p2", "p3"} {
		assert.Len(t, f.movementsOf(t, pid), 1, pid)
	}
	assert.Equal(t, int64(2), f.qty(t, "p3"))

	// el consecutivo tampoco se consumió
	o, err := f.sales.CreateOrder(ctx, sales.CreateOrderInput{CustomerID: "c1", LineItems: []entity.LineItem{line("p1", 1, 10)}})
	require.NoError(t, err)
	assert.Regexp(t, `^PED-\d{4}-00001$`, o.Number)
}

func TestCreateOrder_ServiciosNoTocanInventario(t *testing.T) {
	f := newFixture(t, map[string]int64{"p1": 10})
	ctx := context.Background()

	o, err := f.sales.CreateOrder(ctx, sales.CreateOrderInput{
		CustomerID: "c1",
		LineItems:  []entity.LineItem{line("p1", 2, 10), service("instalacion", 50)},
		Status:     entity.OrderStatusPending,
	})
	require.NoError(t, err)
	assert.Equal(t, entity.OrderStatusPending, o.Status)
	assert.Equal(t, int64(8), f.qty(t, "p1"))

	movs := f.movementsOf(t, "p1")
	assert.Equal(t, o.Number, movs[len(movs)-1].ReferenceDocument)

	confirmed, err := f.sales.Confirm(ctx, o.ID, "u1")
	require.NoError(t, err)
	assert.Equal(t, entity.OrderStatusConfirmed, confirmed.Status)
	_, err = f.sales.Confirm(ctx, o.ID, "u1")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestCreateOrder_ProductoDesconocido(t *testing.T) {
	f := newFixture(t, map[string]int64{"p1": 10})
	_, err := f.sales.CreateOrder(context.Background(), sales.CreateOrderInput{
		CustomerID: "c1", LineItems: []entity.LineItem{line("p1", 1, 10), line("zz", 1, 10)},
	})
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, int64(10), f.qty(t, "p1"))
}

func TestCancel_CompensaSalidas(t *testing.T) {
	f := newFixture(t, map[string]int64{"p1": 10, "p2": 10})
	ctx := context.Background()

	o, err := f.sales.CreateOrder(ctx, sales.CreateOrderInput{
		CustomerID: "c1", LineItems: []entity.LineItem{line("p2", 4, 10), line("p1", 3, 10), line("p1", 1, 10)},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(6), f.qty(t, "p1"))

	cancelled, err := f.sales.Cancel(ctx, o.ID, "u1")
	require.NoError(t, err)
	assert.Equal(t, entity.OrderStatusCancelled, cancelled.Status)
	assert.Equal(t, int64(10), f.qty(t, "p1"))
	assert.Equal(t, int64(10), f.qty(t, "p2"))

	movs := f.movementsOf(t, "p1")
	last := movs[len(movs)-1]
	assert.Equal(t, entity.MovementKindInflow, last.Kind)
	assert.Equal(t, int64(4), last.QuantityDelta)
	assert.Equal(t, o.Number, last.ReferenceDocument)

	_, err = f.sales.Cancel(ctx, o.ID, "u1")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestCancel_NoRevierteAjustesManualesConLaMismaReferencia(t *testing.T) {
	f := newFixture(t, map[string]int64{"p1": 10})
	ctx := context.Background()

	o, err := f.sales.CreateOrder(ctx, sales.CreateOrderInput{CustomerID: "c1", LineItems: []entity.LineItem{line("p1", 3, 10)}})
	require.NoError(t, err)
	// rotura registrada a mano citando el pedido
	_, err = f.ledger.Adjust(ctx, inventory.AdjustInput{
		ProductID: "p1", Delta: -2, Kind: entity.MovementKindAdjustment, Reason: "rotura", ReferenceDocument: o.Number,
	})
	require.NoError(t, err)
	_, err = f.ledger.Adjust(ctx, inventory.AdjustInput{
		ProductID: "p1", Delta: -1, Kind: entity.MovementKindOutflow, Reason: "muestra", ReferenceDocument: o.Number,
	})
	require.NoError(t, err)
	require.Equal(t, int64(4), f.qty(t, "p1"))

	_, err = f.sales.Cancel(ctx, o.ID, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(7), f.qty(t, "p1"))

	movs := f.movementsOf(t, "p1")
	assert.Equal(t, int64(3), movs[len(movs)-1].QuantityDelta)
}

func TestCancel_FacturadoOEmitiendo(t *testing.T) {
	f := newFixture(t, map[string]int64{"p1": 10})
	ctx := context.Background()
	repos := f.store.Repos()

	o, err := f.sales.CreateOrder(ctx, sales.CreateOrderInput{CustomerID: "c1", LineItems: []entity.LineItem{line("p1", 1, 10)}})
	require.NoError(t, err)

	until := time.Now().Add(time.Minute)
	require.NoError(t, repos.Invoices.Create(ctx, &entity.Invoice{
		ID: "i1", OrderID: o.ID, Status: entity.InvoiceStatusPending, ExternalReference: "ref-1", EmittingUntil: &until,
	}))
	_, err = f.sales.Cancel(ctx, o.ID, "u1")
	assert.ErrorIs(t, err, domain.ErrEmissionInProgress)
	assert.Equal(t, int64(9), f.qty(t, "p1"))

	o.Status = entity.OrderStatusInvoiced
	require.NoError(t, repos.Orders.Update(ctx, o))
	_, err = f.sales.Cancel(ctx, o.ID, "u1")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestCreateOrder_ConcurrenteOrdenDeBloqueos(t *testing.T) {
	f := newFixture(t, map[string]int64{"a": 100, "b": 100})
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			items := []entity.LineItem{line("a", 1, 1), line("b", 1, 1)}
			if i%2 == 1 {
				items = []entity.LineItem{line("b", 1, 1), line("a", 1, 1)}
			}
			_, err := f.sales.CreateOrder(ctx, sales.CreateOrderInput{CustomerID: "c1", LineItems: items})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, int64(80), f.qty(t, "a"))
	assert.Equal(t, int64(80), f.qty(t, "b"))
}
