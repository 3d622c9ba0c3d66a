package billing_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/stockledger-api/internal/application/billing"
	"github.com/jhoicas/stockledger-api/internal/application/inventory"
	"github.com/jhoicas/stockledger-api/internal/application/ports"
	"github.com/jhoicas/stockledger-api/internal/application/sales"
	"github.com/jhoicas/stockledger-api/internal/domain"
	"github.com/jhoicas/stockledger-api/internal/domain/entity"
	"github.com/jhoicas/stockledger-api/internal/domain/repository"
	"github.com/jhoicas/stockledger-api/internal/infrastructure/memory"
)

// fakeGateway autoridad programable: issueFn decide cada respuesta según el número de llamada.
type fakeGateway struct {
	mu          sync.Mutex
	issueFn     func(ctx context.Context, call int) (*ports.IssueResult, error)
	refs        []string
	cancelRes   *ports.CancelResult
	cancelErr   error
	cancelCalls int
	cancelWait  chan struct{}
	fetchErr    error
}

func (g *fakeGateway) Issue(ctx context.Context, ref string, _ ports.FiscalPayload) (*ports.IssueResult, error) {
	g.mu.Lock()
	g.refs = append(g.refs, ref)
	call := len(g.refs)
	fn := g.issueFn
	g.mu.Unlock()
	if fn == nil {
		return authorized("000001"), nil
	}
	return fn(ctx, call)
}

func (g *fakeGateway) Cancel(_ context.Context, _, _ string) (*ports.CancelResult, error) {
	g.mu.Lock()
	g.cancelCalls++
	wait := g.cancelWait
	g.mu.Unlock()
	if wait != nil {
		<-wait
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.cancelErr != nil {
		return nil, g.cancelErr
	}
	if g.cancelRes != nil {
		return g.cancelRes, nil
	}
	return &ports.CancelResult{Status: ports.CancelStatusCancelled}, nil
}

func (g *fakeGateway) FetchDocument(_ context.Context, ref, format string) ([]byte, error) {
	if g.fetchErr != nil {
		return nil, g.fetchErr
	}
	return []byte(format + ":" + ref), nil
}

func (g *fakeGateway) issuedRefs() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.refs...)
}

func authorized(number string) *ports.IssueResult {
	return &ports.IssueResult{Status: ports.IssueStatusAuthorized, AuthorizationKey: "CLAVE-" + number, DocumentNumber: number}
}

type fakeRenderer struct{ calls int }

func (r *fakeRenderer) RenderInvoicePDF(_ context.Context, inv *entity.Invoice, order *entity.Order) ([]byte, error) {
	r.calls++
	return []byte("%PDF-local " + order.Number), nil
}

type recordingSink struct {
	mu     sync.Mutex
	events []ports.AuditEvent
}

func (s *recordingSink) Record(_ context.Context, ev ports.AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

func (s *recordingSink) last(eventType string) *ports.AuditEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.events) - 1; i >= 0; i-- {
		if s.events[i].AggregateType == ports.AggregateInvoice && s.events[i].Type == eventType {
			ev := s.events[i]
			return &ev
		}
	}
	return nil
}

type fixture struct {
	store    *memory.Store
	ledger   *inventory.LedgerUseCase
	sales    *sales.UseCase
	gateway  *fakeGateway
	renderer *fakeRenderer
	audit    *recordingSink
	coord    *billing.Coordinator
}

func newFixture(t *testing.T, cfg billing.Config) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()
	ledger := inventory.NewLedgerUseCase(store, store.Repos(), nil, inventory.Config{}, zerolog.Nop())
	require.NoError(t, store.Repos().Products.Create(ctx, &entity.Product{ID: "p1", SKU: "SKU-1", Name: "Tornillo"}))
	_, err := ledger.Adjust(ctx, inventory.AdjustInput{ProductID: "p1", Delta: 10, Kind: entity.MovementKindInflow, Reason: "saldo inicial"})
	require.NoError(t, err)

	f := &fixture{
		store:    store,
		ledger:   ledger,
		sales:    sales.NewUseCase(store, store.Repos(), ledger, nil, zerolog.Nop()),
		gateway:  &fakeGateway{},
		renderer: &fakeRenderer{},
		audit:    &recordingSink{},
	}
	f.coord = billing.NewCoordinator(store, store.Repos(), f.gateway, f.renderer, f.audit, cfg, zerolog.Nop())
	return f
}

func (f *fixture) order(t *testing.T, status string) *entity.Order {
	t.Helper()
	o, err := f.sales.CreateOrder(context.Background(), sales.CreateOrderInput{
		CustomerID: "c1",
		LineItems: []entity.LineItem{{
			ReferenceID: "p1", ReferenceKind: entity.ReferenceKindProduct, Quantity: 2, UnitValue: decimal.NewFromInt(50),
		}},
		Status:  status,
		ActorID: "u1",
	})
	require.NoError(t, err)
	return o
}

func (f *fixture) reloadOrder(t *testing.T, id string) *entity.Order {
	t.Helper()
	o, err := f.sales.GetOrder(context.Background(), id)
	require.NoError(t, err)
	return o
}

func (f *fixture) qty(t *testing.T) int64 {
	t.Helper()
	p, err := f.store.Repos().Products.GetByID(context.Background(), "p1")
	require.NoError(t, err)
	return p.QuantityOnHand
}

func (f *fixture) issued(t *testing.T) (*entity.Order, *entity.Invoice) {
	t.Helper()
	o := f.order(t, "")
	inv, err := f.coord.RequestEmission(context.Background(), o.ID, "u1")
	require.NoError(t, err)
	require.Equal(t, entity.InvoiceStatusIssued, inv.Status)
	return o, inv
}

func TestRequestEmission_AutorizadaFacturaElPedido(t *testing.T) {
	f := newFixture(t, billing.Config{})
	o := f.order(t, "")

	inv, err := f.coord.RequestEmission(context.Background(), o.ID, "u1")
	require.NoError(t, err)
	assert.Equal(t, entity.InvoiceStatusIssued, inv.Status)
	assert.Equal(t, "000001", inv.DocumentNumber)
	assert.Equal(t, "CLAVE-000001", inv.AuthorizationKey)
	assert.NotEmpty(t, inv.ExternalReference)
	assert.Equal(t, 1, inv.Attempts)
	assert.Nil(t, inv.EmittingUntil)
	require.NotNil(t, inv.IssuedAt)

	got := f.reloadOrder(t, o.ID)
	assert.Equal(t, entity.OrderStatusInvoiced, got.Status)
	require.NotNil(t, got.InvoiceID)
	assert.Equal(t, inv.ID, *got.InvoiceID)
	assert.NotNil(t, f.audit.last(ports.EventInvoiceIssued))
}

func TestRequestEmission_TimeoutLuegoReintentoConMismaReferencia(t *testing.T) {
	f := newFixture(t, billing.Config{Timeout: 50 * time.Millisecond})
	f.gateway.issueFn = func(ctx context.Context, call int) (*ports.IssueResult, error) {
		if call == 1 {
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return authorized("000123"), nil
	}
	o := f.order(t, "")
	ctx := context.Background()

	first, err := f.coord.RequestEmission(ctx, o.ID, "u1")
	require.NoError(t, err)
	assert.Equal(t, entity.InvoiceStatusError, first.Status)
	assert.Contains(t, first.LastError, "timeout")
	assert.Nil(t, first.EmittingUntil)
	assert.Equal(t, entity.OrderStatusConfirmed, f.reloadOrder(t, o.ID).Status)
	assert.NotNil(t, f.audit.last(ports.EventInvoiceErrored))

	second, err := f.coord.RequestEmission(ctx, o.ID, "u1")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.ExternalReference, second.ExternalReference)
	assert.Equal(t, entity.InvoiceStatusIssued, second.Status)
	assert.Equal(t, "000123", second.DocumentNumber)
	assert.Empty(t, second.LastError)
	assert.Equal(t, 2, second.Attempts)
	assert.Equal(t, entity.OrderStatusInvoiced, f.reloadOrder(t, o.ID).Status)

	refs := f.gateway.issuedRefs()
	require.Len(t, refs, 2)
	assert.Equal(t, refs[0], refs[1])
}

func TestRequestEmission_RechazoDejaPedidoConfirmado(t *testing.T) {
	f := newFixture(t, billing.Config{})
	f.gateway.issueFn = func(context.Context, int) (*ports.IssueResult, error) {
		return &ports.IssueResult{Status: ports.IssueStatusRejected, Message: "cliente inválido"}, nil
	}
	o := f.order(t, "")

	inv, err := f.coord.RequestEmission(context.Background(), o.ID, "u1")
	require.NoError(t, err)
	assert.Equal(t, entity.InvoiceStatusError, inv.Status)
	assert.Equal(t, "rechazada por la autoridad fiscal: cliente inválido", inv.LastError)
	assert.Equal(t, entity.OrderStatusConfirmed, f.reloadOrder(t, o.ID).Status)
}

func TestRequestEmission_FallaDeRed(t *testing.T) {
	f := newFixture(t, billing.Config{})
	f.gateway.issueFn = func(context.Context, int) (*ports.IssueResult, error) {
		return nil, errors.New("connection refused")
	}
	o := f.order(t, "")

	inv, err := f.coord.RequestEmission(context.Background(), o.ID, "u1")
	require.NoError(t, err)
	assert.Equal(t, entity.InvoiceStatusError, inv.Status)
	assert.Contains(t, inv.LastError, "connection refused")
}

func TestRequestEmission_PedidoFacturadoNoLlamaALaAutoridad(t *testing.T) {
	f := newFixture(t, billing.Config{})
	o, inv := f.issued(t)

	again, err := f.coord.RequestEmission(context.Background(), o.ID, "u1")
	require.NoError(t, err)
	assert.Equal(t, inv.ID, again.ID)
	assert.Equal(t, entity.InvoiceStatusIssued, again.Status)
	assert.Len(t, f.gateway.issuedRefs(), 1)
}

func TestRequestEmission_ConcurrenteUnaSolaLlamada(t *testing.T) {
	f := newFixture(t, billing.Config{})
	release := make(chan struct{})
	f.gateway.issueFn = func(context.Context, int) (*ports.IssueResult, error) {
		<-release
		return authorized("000007"), nil
	}
	o := f.order(t, "")

	const n = 8
	var wg sync.WaitGroup
	results := make([]*entity.Invoice, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = f.coord.RequestEmission(context.Background(), o.ID, "u1")
		}(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, entity.InvoiceStatusIssued, results[i].Status)
		assert.Equal(t, results[0].ExternalReference, results[i].ExternalReference)
	}
	assert.Len(t, f.gateway.issuedRefs(), 1)
}

func TestRequestEmission_EstadosNoFacturables(t *testing.T) {
	f := newFixture(t, billing.Config{})
	ctx := context.Background()

	pending := f.order(t, entity.OrderStatusPending)
	_, err := f.coord.RequestEmission(ctx, pending.ID, "u1")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	cancelled := f.order(t, "")
	_, err = f.sales.Cancel(ctx, cancelled.ID, "u1")
	require.NoError(t, err)
	_, err = f.coord.RequestEmission(ctx, cancelled.ID, "u1")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = f.coord.RequestEmission(ctx, "no-existe", "u1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Empty(t, f.gateway.issuedRefs())
}

func TestRequestEmission_LeaseVigenteRechazaSegundoIntento(t *testing.T) {
	f := newFixture(t, billing.Config{})
	ctx := context.Background()
	o := f.order(t, "")
	lease := time.Now().Add(time.Hour)
	require.NoError(t, f.store.Repos().Invoices.Create(ctx, &entity.Invoice{
		ID: "inv-1", OrderID: o.ID, Status: entity.InvoiceStatusPending, ExternalReference: "ref-en-curso",
		Attempts: 1, EmittingUntil: &lease, CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}))

	_, err := f.coord.RequestEmission(ctx, o.ID, "u1")
	assert.ErrorIs(t, err, domain.ErrEmissionInProgress)
	assert.Empty(t, f.gateway.issuedRefs())
}

func TestRequestEmission_AutorizacionTardiaConPedidoAnulado(t *testing.T) {
	f := newFixture(t, billing.Config{Timeout: 20 * time.Millisecond, LeaseMargin: time.Millisecond})
	entered := make(chan struct{})
	release := make(chan struct{})
	f.gateway.issueFn = func(context.Context, int) (*ports.IssueResult, error) {
		close(entered)
		<-release
		return authorized("000555"), nil
	}
	o := f.order(t, "")
	ctx := context.Background()

	done := make(chan *entity.Invoice)
	go func() {
		inv, err := f.coord.RequestEmission(ctx, o.ID, "u1")
		assert.NoError(t, err)
		done <- inv
	}()
	<-entered
	time.Sleep(60 * time.Millisecond)
	_, err := f.sales.Cancel(ctx, o.ID, "u1")
	require.NoError(t, err)
	close(release)

	inv := <-done
	require.NotNil(t, inv)
	assert.Equal(t, entity.InvoiceStatusIssued, inv.Status)
	assert.Equal(t, entity.OrderStatusCancelled, f.reloadOrder(t, o.ID).Status)
	ev := f.audit.last(ports.EventInvoiceIssued)
	require.NotNil(t, ev)
	assert.Equal(t, true, ev.Data["order_cancelled"])
}

func TestNormalizeJustification(t *testing.T) {
	got, err := billing.NormalizeJustification("  Anulación única  ")
	require.NoError(t, err)
	assert.Equal(t, "Anulación única", got)

	_, err = billing.NormalizeJustification("muy corta")
	assert.ErrorIs(t, err, domain.ErrJustificationTooShort)

	_, err = billing.NormalizeJustification("   catorce letras    ")
	assert.ErrorIs(t, err, domain.ErrJustificationTooShort)
}

func TestCancel_AnulaSinTocarInventario(t *testing.T) {
	f := newFixture(t, billing.Config{})
	o, inv := f.issued(t)
	before := f.qty(t)

	got, err := f.coord.Cancel(context.Background(), billing.CancelInput{
		ExternalReference: inv.ExternalReference, Justification: "Cliente desistiu da compra", ActorID: "u1",
	})
	require.NoError(t, err)
	assert.Equal(t, entity.InvoiceStatusCancelled, got.Status)
	assert.Equal(t, "Cliente desistiu da compra", got.CancelJustification)
	require.NotNil(t, got.CancelledAt)

	assert.Equal(t, before, f.qty(t))
	assert.Equal(t, entity.OrderStatusInvoiced, f.reloadOrder(t, o.ID).Status)
	assert.NotNil(t, f.audit.last(ports.EventInvoiceCancelled))

	_, err = f.coord.Cancel(context.Background(), billing.CancelInput{
		ExternalReference: inv.ExternalReference, Justification: "Cliente desistiu da compra",
	})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestCancel_JustificacionCortaNoLlamaALaAutoridad(t *testing.T) {
	f := newFixture(t, billing.Config{})
	_, inv := f.issued(t)

	_, err := f.coord.Cancel(context.Background(), billing.CancelInput{ExternalReference: inv.ExternalReference, Justification: "error"})
	assert.ErrorIs(t, err, domain.ErrJustificationTooShort)
	assert.Zero(t, f.gateway.cancelCalls)
}

func TestCancel_FacturaNoEmitida(t *testing.T) {
	f := newFixture(t, billing.Config{})
	f.gateway.issueFn = func(context.Context, int) (*ports.IssueResult, error) {
		return &ports.IssueResult{Status: ports.IssueStatusRejected}, nil
	}
	o := f.order(t, "")
	inv, err := f.coord.RequestEmission(context.Background(), o.ID, "u1")
	require.NoError(t, err)
	require.Equal(t, entity.InvoiceStatusError, inv.Status)

	_, err = f.coord.Cancel(context.Background(), billing.CancelInput{
		ExternalReference: inv.ExternalReference, Justification: "Cliente desistiu da compra",
	})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = f.coord.Cancel(context.Background(), billing.CancelInput{
		ExternalReference: "no-existe", Justification: "Cliente desistiu da compra",
	})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCancel_RechazoOFallaDeLaAutoridadMantieneEmitida(t *testing.T) {
	f := newFixture(t, billing.Config{})
	_, inv := f.issued(t)
	ctx := context.Background()
	in := billing.CancelInput{ExternalReference: inv.ExternalReference, Justification: "Cliente desistiu da compra"}

	f.gateway.cancelRes = &ports.CancelResult{Status: ports.CancelStatusRejected, Message: "fuera de plazo"}
	_, err := f.coord.Cancel(ctx, in)
	assert.ErrorIs(t, err, domain.ErrConflict)

	f.gateway.cancelRes = nil
	f.gateway.cancelErr = errors.New("connection reset")
	_, err = f.coord.Cancel(ctx, in)
	assert.ErrorIs(t, err, domain.ErrConflict)

	got, err := f.coord.GetInvoice(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.InvoiceStatusIssued, got.Status)
	assert.Nil(t, got.CancelledAt)
	assert.Nil(t, got.EmittingUntil)
	assert.Equal(t, 2, f.gateway.cancelCalls)
}

// conflictOnceRunner simula un fallo de serialización al confirmar: cada Run repite su
// callback una vez, como hace el TxRunner de PostgreSQL ante 40001.
type conflictOnceRunner struct {
	store *memory.Store
}

func (r conflictOnceRunner) Run(ctx context.Context, fn func(ctx context.Context, repos repository.Repos) error) error {
	failed := false
	return r.store.Run(ctx, func(ctx context.Context, repos repository.Repos) error {
		if err := fn(ctx, repos); err != nil {
			return err
		}
		if !failed {
			failed = true
			return domain.ErrConcurrencyConflict
		}
		return nil
	})
}

func TestCancel_ReintentoDeTransaccionNoReenviaALaAutoridad(t *testing.T) {
	f := newFixture(t, billing.Config{})
	_, inv := f.issued(t)
	coord := billing.NewCoordinator(conflictOnceRunner{f.store}, f.store.Repos(), f.gateway, f.renderer, f.audit, billing.Config{}, zerolog.Nop())

	got, err := coord.Cancel(context.Background(), billing.CancelInput{
		ExternalReference: inv.ExternalReference, Justification: "Cliente desistiu da compra",
	})
	require.NoError(t, err)
	assert.Equal(t, entity.InvoiceStatusCancelled, got.Status)
	assert.Equal(t, 1, f.gateway.cancelCalls)
}

func TestCancel_SegundaAnulacionMientrasLaPrimeraEspera(t *testing.T) {
	f := newFixture(t, billing.Config{})
	_, inv := f.issued(t)
	ctx := context.Background()
	in := billing.CancelInput{ExternalReference: inv.ExternalReference, Justification: "Cliente desistiu da compra"}

	f.gateway.cancelWait = make(chan struct{})
	done := make(chan error, 1)
	go func() {
		_, err := f.coord.Cancel(ctx, in)
		done <- err
	}()
	require.Eventually(t, func() bool {
		f.gateway.mu.Lock()
		defer f.gateway.mu.Unlock()
		return f.gateway.cancelCalls == 1
	}, time.Second, 5*time.Millisecond)

	_, err := f.coord.Cancel(ctx, in)
	assert.ErrorIs(t, err, domain.ErrConflict)

	close(f.gateway.cancelWait)
	require.NoError(t, <-done)
	f.gateway.mu.Lock()
	assert.Equal(t, 1, f.gateway.cancelCalls)
	f.gateway.mu.Unlock()
}

func TestFetchDocument(t *testing.T) {
	f := newFixture(t, billing.Config{})
	o, inv := f.issued(t)
	ctx := context.Background()

	doc, err := f.coord.FetchDocument(ctx, inv.ExternalReference, ports.DocumentFormatXML)
	require.NoError(t, err)
	assert.Equal(t, "xml:"+inv.ExternalReference, string(doc))

	_, err = f.coord.FetchDocument(ctx, inv.ExternalReference, "docx")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	f.gateway.fetchErr = errors.New("no disponible")
	doc, err = f.coord.FetchDocument(ctx, inv.ExternalReference, ports.DocumentFormatPDF)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-local "+o.Number, string(doc))
	assert.Equal(t, 1, f.renderer.calls)

	_, err = f.coord.FetchDocument(ctx, inv.ExternalReference, ports.DocumentFormatXML)
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestFetchDocument_FacturaSinEmitir(t *testing.T) {
	f := newFixture(t, billing.Config{})
	f.gateway.issueFn = func(context.Context, int) (*ports.IssueResult, error) {
		return &ports.IssueResult{Status: ports.IssueStatusRejected}, nil
	}
	o := f.order(t, "")
	inv, err := f.coord.RequestEmission(context.Background(), o.ID, "u1")
	require.NoError(t, err)

	_, err = f.coord.FetchDocument(context.Background(), inv.ExternalReference, ports.DocumentFormatXML)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = f.coord.FetchDocument(context.Background(), "no-existe", ports.DocumentFormatXML)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	byOrder, err := f.coord.GetInvoiceByOrder(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, inv.ID, byOrder.ID)
}
