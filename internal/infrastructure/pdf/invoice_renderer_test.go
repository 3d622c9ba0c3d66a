package pdf_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/stockledger-api/internal/domain/entity"
	"github.com/jhoicas/stockledger-api/internal/infrastructure/pdf"
)

func TestMoney(t *testing.T) {
	assert.Equal(t, "$0,00", pdf.Money(decimal.Zero))
	assert.Equal(t, "$999,90", pdf.Money(decimal.RequireFromString("999.9")))
	assert.Equal(t, "$1.234.567,50", pdf.Money(decimal.RequireFromString("1234567.5")))
	assert.Equal(t, "-$1.000,00", pdf.Money(decimal.NewFromInt(-1000)))
}

func TestRenderInvoicePDF(t *testing.T) {
	issued := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	inv := &entity.Invoice{
		ID: "inv-1", OrderID: "o-1", Status: entity.InvoiceStatusIssued, ExternalReference: "ref-1",
		AuthorizationKey: "CLAVE-000123", DocumentNumber: "000123", IssuedAt: &issued,
	}
	order := &entity.Order{
		ID: "o-1", Number: "PED-2026-00001", CustomerID: "c1", PaymentMethod: "cash",
		LineItems: []entity.LineItem{
			{ReferenceID: "p1", ReferenceKind: entity.ReferenceKindProduct, Description: "Tornillo", Quantity: 3, UnitValue: decimal.NewFromInt(10)},
			{ReferenceID: "s1", ReferenceKind: entity.ReferenceKindService, Quantity: 1, UnitValue: decimal.NewFromInt(20)},
		},
		Discount:   decimal.NewFromInt(5),
		TotalValue: decimal.NewFromInt(45),
		CreatedAt:  issued,
	}

	out, err := pdf.NewInvoiceRenderer(pdf.Issuer{Name: "Ferretería Central", TaxID: "900123456"}).
		RenderInvoicePDF(context.Background(), inv, order)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestRenderInvoicePDF_SinPedido(t *testing.T) {
	_, err := pdf.NewInvoiceRenderer(pdf.Issuer{}).RenderInvoicePDF(context.Background(), &entity.Invoice{}, nil)
	assert.Error(t, err)
}
