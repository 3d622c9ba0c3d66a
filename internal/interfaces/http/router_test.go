package http_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/stockledger-api/internal/application/billing"
	"github.com/jhoicas/stockledger-api/internal/application/catalog"
	"github.com/jhoicas/stockledger-api/internal/application/dto"
	"github.com/jhoicas/stockledger-api/internal/application/inventory"
	"github.com/jhoicas/stockledger-api/internal/application/purchasing"
	"github.com/jhoicas/stockledger-api/internal/application/sales"
	"github.com/jhoicas/stockledger-api/internal/infrastructure/fiscal"
	"github.com/jhoicas/stockledger-api/internal/infrastructure/memory"
	"github.com/jhoicas/stockledger-api/internal/infrastructure/pdf"
	apphttp "github.com/jhoicas/stockledger-api/internal/interfaces/http"
	pkgjwt "github.com/jhoicas/stockledger-api/pkg/jwt"
)

type apiFixture struct {
	app     *fiber.App
	gateway *fiscal.SimulatedGateway
}

func newAPI(t *testing.T) *apiFixture {
	t.Helper()
	store := memory.NewStore()
	log := zerolog.Nop()
	ledger := inventory.NewLedgerUseCase(store, store.Repos(), nil, inventory.Config{}, log)
	gateway := fiscal.NewSimulatedGateway(fiscal.IssuerInfo{TaxID: "900123456", Series: "FE"})
	renderer := pdf.NewInvoiceRenderer(pdf.Issuer{Name: "Ferretería Central", TaxID: "900123456"})

	app := fiber.New()
	apphttp.Router(app, apphttp.RouterDeps{
		Catalog:    catalog.NewProductUseCase(store.Repos().Products, log),
		Ledger:     ledger,
		Sales:      sales.NewUseCase(store, store.Repos(), ledger, nil, log),
		Purchasing: purchasing.NewUseCase(store, store.Repos(), ledger, nil, log),
		Billing:    billing.NewCoordinator(store, store.Repos(), gateway, renderer, nil, billing.Config{Timeout: time.Second}, log),
		JWTSecret:  testJWTSecret,
	})
	return &apiFixture{app: app, gateway: gateway}
}

// call ejecuta la petición con un token del rol dado (rol vacío = sin token).
func (f *apiFixture) call(t *testing.T, method, path, role string, body any) (int, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if role != "" {
		tok, err := pkgjwt.Generate(testJWTSecret, "usuario-"+role, role, testIssuer, testExpMin)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, out
}

func decode[T any](t *testing.T, raw []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v), string(raw))
	return v
}

// product registra un producto y le da existencia inicial con una entrada.
func (f *apiFixture) product(t *testing.T, sku string, minimum, stock int64) string {
	t.Helper()
	status, raw := f.call(t, http.MethodPost, "/api/products", "admin", map[string]any{
		"sku": sku, "name": "Producto " + sku, "price": 1500, "minimum_quantity": minimum,
	})
	require.Equal(t, http.StatusCreated, status, string(raw))
	p := decode[dto.ProductResponse](t, raw)
	if stock > 0 {
		status, raw = f.call(t, http.MethodPost, "/api/inventory/movements", "bodeguero", map[string]any{
			"product_id": p.ID, "type": "inflow", "quantity": stock, "unit_cost": 1000, "reason": "saldo inicial",
		})
		require.Equal(t, http.StatusCreated, status, string(raw))
	}
	return p.ID
}

func lines(productID string, qty int64) []map[string]any {
	return []map[string]any{{
		"reference_id": productID, "reference_kind": "product", "description": "Tornillo", "quantity": qty, "unit_value": 1500,
	}}
}

func TestRouter_PedidoFacturaYAnulacion(t *testing.T) {
	f := newAPI(t)
	pid := f.product(t, "TOR-1", 0, 10)

	status, raw := f.call(t, http.MethodPost, "/api/orders", "vendedor", map[string]any{
		"customer_id": "C-1", "line_items": lines(pid, 3), "payment_method": "efectivo",
	})
	require.Equal(t, http.StatusCreated, status, string(raw))
	order := decode[dto.OrderResponse](t, raw)
	assert.Equal(t, "confirmed", order.Status)
	assert.True(t, strings.HasPrefix(order.Number, "PED-"))

	status, raw = f.call(t, http.MethodGet, "/api/inventory/products/"+pid+"/movements", "bodeguero", nil)
	require.Equal(t, http.StatusOK, status)
	history := decode[dto.MovementListResponse](t, raw)
	require.Len(t, history.Items, 2)
	assert.Equal(t, "outflow", history.Items[1].Type)
	assert.Equal(t, int64(7), history.Items[1].QuantityAfter)
	assert.Equal(t, order.Number, history.Items[1].ReferenceDocument)
	assert.Equal(t, "usuario-vendedor", history.Items[1].ActorID)

	status, raw = f.call(t, http.MethodGet, "/api/inventory/products/"+pid+"/verify", "admin", nil)
	require.Equal(t, http.StatusOK, status)
	verify := decode[dto.VerifyResponse](t, raw)
	assert.True(t, verify.Consistent)
	assert.Equal(t, int64(7), verify.ProjectedQuantity)

	status, raw = f.call(t, http.MethodPost, "/api/orders/"+order.ID+"/invoice", "vendedor", nil)
	require.Equal(t, http.StatusOK, status, string(raw))
	inv := decode[dto.InvoiceResponse](t, raw)
	assert.Equal(t, "issued", inv.Status)
	assert.NotEmpty(t, inv.AuthorizationKey)

	status, raw = f.call(t, http.MethodGet, "/api/orders/"+order.ID, "vendedor", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "invoiced", decode[dto.OrderResponse](t, raw).Status)

	status, raw = f.call(t, http.MethodGet, "/api/invoices/by-reference/"+inv.ExternalReference+"/document?format=xml", "vendedor", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(raw), "DocumentoFiscal")

	status, raw = f.call(t, http.MethodGet, "/api/invoices/by-reference/"+inv.ExternalReference+"/document?format=pdf", "vendedor", nil)
	require.Equal(t, http.StatusOK, status)
	assert.True(t, bytes.HasPrefix(raw, []byte("%PDF")))

	status, raw = f.call(t, http.MethodPost, "/api/invoices/cancel", "admin", map[string]any{
		"external_reference": inv.ExternalReference, "justification": "corto",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Contains(t, string(raw), "JUSTIFICATION_TOO_SHORT")

	status, raw = f.call(t, http.MethodPost, "/api/invoices/cancel", "admin", map[string]any{
		"external_reference": inv.ExternalReference, "justification": "Cliente desistió de la compra",
	})
	require.Equal(t, http.StatusOK, status, string(raw))
	assert.Equal(t, "cancelled", decode[dto.InvoiceResponse](t, raw).Status)

	// la anulación fiscal no devuelve inventario
	status, raw = f.call(t, http.MethodGet, "/api/inventory/products/"+pid+"/verify", "admin", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, int64(7), decode[dto.VerifyResponse](t, raw).CachedQuantity)
}

func TestRouter_EmisionRechazadaDevuelve202(t *testing.T) {
	f := newAPI(t)
	pid := f.product(t, "TOR-2", 0, 5)
	_, raw := f.call(t, http.MethodPost, "/api/orders", "vendedor", map[string]any{
		"customer_id": "C-1", "line_items": lines(pid, 1),
	})
	order := decode[dto.OrderResponse](t, raw)

	f.gateway.RejectNext("cliente inválido")
	status, raw := f.call(t, http.MethodPost, "/api/orders/"+order.ID+"/invoice", "vendedor", nil)
	require.Equal(t, http.StatusAccepted, status, string(raw))
	first := decode[dto.InvoiceResponse](t, raw)
	assert.Equal(t, "error", first.Status)
	assert.Contains(t, first.LastError, "cliente inválido")

	status, raw = f.call(t, http.MethodPost, "/api/orders/"+order.ID+"/invoice", "vendedor", nil)
	require.Equal(t, http.StatusOK, status, string(raw))
	second := decode[dto.InvoiceResponse](t, raw)
	assert.Equal(t, "issued", second.Status)
	assert.Equal(t, first.ExternalReference, second.ExternalReference)
	assert.Equal(t, 2, second.Attempts)
}

func TestRouter_StockInsuficienteYCancelacion(t *testing.T) {
	f := newAPI(t)
	pid := f.product(t, "TOR-3", 0, 2)

	status, raw := f.call(t, http.MethodPost, "/api/orders", "vendedor", map[string]any{
		"customer_id": "C-1", "line_items": lines(pid, 3),
	})
	assert.Equal(t, http.StatusConflict, status)
	assert.Contains(t, string(raw), "INSUFFICIENT_STOCK")

	_, raw = f.call(t, http.MethodPost, "/api/orders", "vendedor", map[string]any{
		"customer_id": "C-1", "line_items": lines(pid, 2),
	})
	order := decode[dto.OrderResponse](t, raw)

	status, raw = f.call(t, http.MethodPost, "/api/orders/"+order.ID+"/cancel", "vendedor", nil)
	require.Equal(t, http.StatusOK, status, string(raw))
	assert.Equal(t, "cancelled", decode[dto.OrderResponse](t, raw).Status)

	status, raw = f.call(t, http.MethodPost, "/api/orders/"+order.ID+"/cancel", "vendedor", nil)
	assert.Equal(t, http.StatusConflict, status)
	assert.Contains(t, string(raw), "INVALID_TRANSITION")

	_, raw = f.call(t, http.MethodGet, "/api/inventory/products/"+pid+"/verify", "admin", nil)
	assert.Equal(t, int64(2), decode[dto.VerifyResponse](t, raw).CachedQuantity)
}

func TestRouter_CotizacionAprobadaUnaVez(t *testing.T) {
	f := newAPI(t)
	pid := f.product(t, "TOR-4", 0, 10)

	status, raw := f.call(t, http.MethodPost, "/api/quotes", "vendedor", map[string]any{
		"customer_id": "C-9", "line_items": lines(pid, 4), "discount": 500,
	})
	require.Equal(t, http.StatusCreated, status, string(raw))
	quote := decode[dto.QuoteResponse](t, raw)
	assert.Equal(t, "pending", quote.Status)
	assert.Equal(t, "5500", quote.TotalValue.String())

	status, raw = f.call(t, http.MethodPost, "/api/quotes/"+quote.ID+"/approve", "vendedor", map[string]any{"payment_method": "transferencia"})
	require.Equal(t, http.StatusOK, status, string(raw))
	order := decode[dto.OrderResponse](t, raw)
	assert.Equal(t, "confirmed", order.Status)
	require.NotNil(t, order.QuoteID)
	assert.Equal(t, quote.ID, *order.QuoteID)
	assert.True(t, order.TotalValue.Equal(quote.TotalValue))

	status, raw = f.call(t, http.MethodPost, "/api/quotes/"+quote.ID+"/approve", "vendedor", nil)
	require.Equal(t, http.StatusOK, status, string(raw))
	assert.Equal(t, order.ID, decode[dto.OrderResponse](t, raw).ID)

	status, _ = f.call(t, http.MethodPost, "/api/quotes/"+quote.ID+"/reject", "vendedor", nil)
	assert.Equal(t, http.StatusConflict, status)

	_, raw = f.call(t, http.MethodGet, "/api/inventory/products/"+pid+"/movements?type=outflow", "admin", nil)
	assert.Len(t, decode[dto.MovementListResponse](t, raw).Items, 1)
}

func TestRouter_CompraConteoYBajoMinimo(t *testing.T) {
	f := newAPI(t)
	pid := f.product(t, "TOR-5", 10, 0)

	status, raw := f.call(t, http.MethodPost, "/api/purchases", "bodeguero", map[string]any{
		"supplier_id": "P-1", "line_items": lines(pid, 4),
	})
	require.Equal(t, http.StatusCreated, status, string(raw))
	purchase := decode[dto.PurchaseResponse](t, raw)
	assert.True(t, strings.HasPrefix(purchase.Number, "COM-"))

	status, raw = f.call(t, http.MethodGet, "/api/purchases/"+purchase.ID, "bodeguero", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, purchase.Number, decode[dto.PurchaseResponse](t, raw).Number)

	status, raw = f.call(t, http.MethodGet, "/api/inventory/low-stock", "bodeguero", nil)
	require.Equal(t, http.StatusOK, status)
	low := decode[struct {
		Total int                   `json:"total"`
		Items []dto.LowStockItemDTO `json:"items"`
	}](t, raw)
	require.Equal(t, 1, low.Total)
	assert.Equal(t, int64(6), low.Items[0].Shortfall)
	assert.Equal(t, int64(16), low.Items[0].SuggestedOrder)

	status, raw = f.call(t, http.MethodPost, "/api/inventory/recounts", "bodeguero", map[string]any{
		"product_id": pid, "counted": 12, "reason": "conteo mensual",
	})
	require.Equal(t, http.StatusCreated, status, string(raw))
	mov := decode[dto.MovementResponse](t, raw)
	assert.Equal(t, "recount", mov.Type)
	assert.Equal(t, int64(8), mov.QuantityDelta)

	_, raw = f.call(t, http.MethodGet, "/api/inventory/low-stock", "bodeguero", nil)
	assert.Contains(t, string(raw), `"total":0`)
}

func TestRouter_RolesYAutenticacion(t *testing.T) {
	f := newAPI(t)
	pid := f.product(t, "TOR-6", 0, 1)

	status, _ := f.call(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, status)

	status, _ = f.call(t, http.MethodGet, "/api/products/"+pid, "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, raw := f.call(t, http.MethodPost, "/api/inventory/movements", "vendedor", map[string]any{
		"product_id": pid, "type": "inflow", "quantity": 1,
	})
	assert.Equal(t, http.StatusForbidden, status)
	assert.Contains(t, string(raw), "FORBIDDEN")

	status, _ = f.call(t, http.MethodGet, "/api/inventory/products/"+pid+"/verify?reconcile=true", "bodeguero", nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = f.call(t, http.MethodPost, "/api/products", "bodeguero", map[string]any{"sku": "X", "name": "Y"})
	assert.Equal(t, http.StatusForbidden, status)
}

func TestRouter_ValidacionYNoEncontrado(t *testing.T) {
	f := newAPI(t)
	pid := f.product(t, "TOR-7", 0, 0)

	req := httptest.NewRequest(http.MethodPost, "/api/orders", strings.NewReader("{no es json"))
	req.Header.Set("Content-Type", "application/json")
	tok, err := pkgjwt.Generate(testJWTSecret, testUserID, "vendedor", testIssuer, testExpMin)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+tok)
	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	status, raw := f.call(t, http.MethodPost, "/api/inventory/movements", "bodeguero", map[string]any{
		"product_id": pid, "type": "outflow", "quantity": 3,
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, string(raw), "VALIDATION")

	status, _ = f.call(t, http.MethodGet, "/api/inventory/products/"+pid+"/movements?from=ayer", "bodeguero", nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = f.call(t, http.MethodGet, "/api/orders/no-existe", "vendedor", nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = f.call(t, http.MethodGet, "/api/inventory/products/no-existe/movements", "bodeguero", nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = f.call(t, http.MethodGet, "/api/invoices/by-reference/no-existe/document?format=xml", "vendedor", nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = f.call(t, http.MethodPost, "/api/products", "admin", map[string]any{"sku": "TOR-7", "name": "Otra"})
	assert.Equal(t, http.StatusConflict, status)

	status, raw = f.call(t, http.MethodGet, "/api/products?sku=TOR-7", "vendedor", nil)
	require.Equal(t, http.StatusOK, status, string(raw))
	assert.Equal(t, pid, decode[dto.ProductResponse](t, raw).ID)

	status, _ = f.call(t, http.MethodGet, "/api/products?sku=NADA", "vendedor", nil)
	assert.Equal(t, http.StatusNotFound, status)
	status, _ = f.call(t, http.MethodGet, "/api/products", "vendedor", nil)
	assert.Equal(t, http.StatusBadRequest, status)
}
