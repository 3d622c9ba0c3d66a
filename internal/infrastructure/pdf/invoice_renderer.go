// Package pdf genera la representación gráfica local de una factura cuando la autoridad
// fiscal no entrega el PDF.
//
// Layout de la página A4:
//
//	┌─────────────────────────────────────────────────────────────┐
//	│  HEADER: Emisor + identificación │ N° documento + fecha      │
//	│  CLIENTE / PEDIDO / FORMA DE PAGO                             │
//	│  TABLA: Cant | Descripción | Tipo | V.Unit | Subtotal        │
//	│  TOTALES: Subtotal / Descuento / TOTAL                       │
//	│  FOOTER: estado, clave de autorización + QR de la referencia │
//	└─────────────────────────────────────────────────────────────┘
package pdf

import (
	"context"
	"fmt"
	"strings"

	maroto "github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/code"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/consts/pagesize"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/stockledger-api/internal/application/ports"
	"github.com/jhoicas/stockledger-api/internal/domain/entity"
)

var (
	colorPrimary = &props.Color{Red: 0, Green: 70, Blue: 127}
	colorGray    = &props.Color{Red: 100, Green: 100, Blue: 100}
	colorRed     = &props.Color{Red: 170, Green: 20, Blue: 20}
)

// Issuer datos del emisor impresos en el encabezado.
type Issuer struct {
	Name  string
	TaxID string
}

// InvoiceRenderer implementa ports.DocumentRenderer con Maroto v2.
type InvoiceRenderer struct {
	issuer Issuer
}

var _ ports.DocumentRenderer = (*InvoiceRenderer)(nil)

// NewInvoiceRenderer construye el renderer.
func NewInvoiceRenderer(issuer Issuer) *InvoiceRenderer {
	return &InvoiceRenderer{issuer: issuer}
}

// RenderInvoicePDF genera el PDF de la factura con las líneas y totales del pedido.
func (r *InvoiceRenderer) RenderInvoicePDF(_ context.Context, invoice *entity.Invoice, order *entity.Order) ([]byte, error) {
	if invoice == nil || order == nil {
		return nil, fmt.Errorf("pdf: factura y pedido requeridos")
	}
	cfg := config.NewBuilder().
		WithPageSize(pagesize.A4).
		WithLeftMargin(10).WithRightMargin(10).
		WithTopMargin(10).WithBottomMargin(10).
		WithDefaultFont(&props.Font{Family: "helvetica", Size: 9}).
		WithTitle("Factura "+documentLabel(invoice, order), true).
		WithAuthor(nonEmpty(r.issuer.Name, "stockledger"), true).
		Build()

	m := maroto.New(cfg)
	m.AddRows(r.headerRow(invoice, order))
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.5}))
	m.AddRows(customerRow(order))
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.3}))

	m.AddRows(tableHeaderRow())
	m.AddRows(tableDetailRows(order.LineItems)...)

	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.3}))
	m.AddRows(totalsRow(order))

	m.AddRows(line.NewRow(3))
	m.AddRows(line.NewRow(1, props.Line{Color: colorGray, Thickness: 0.3}))
	m.AddRows(footerRows(invoice)...)

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("pdf: generar documento: %w", err)
	}
	return doc.GetBytes(), nil
}

func documentLabel(invoice *entity.Invoice, order *entity.Order) string {
	if invoice.DocumentNumber != "" {
		return invoice.DocumentNumber
	}
	return order.Number
}

func (r *InvoiceRenderer) headerRow(invoice *entity.Invoice, order *entity.Order) core.Row {
	date := order.CreatedAt
	if invoice.IssuedAt != nil {
		date = *invoice.IssuedAt
	}
	return row.New(18).Add(
		col.New(7).Add(
			text.New(nonEmpty(r.issuer.Name, "-"), props.Text{
				Style: fontstyle.Bold, Size: 13, Color: colorPrimary, Top: 1,
			}),
			text.New("Identificación fiscal: "+nonEmpty(r.issuer.TaxID, "-"), props.Text{
				Size: 9, Top: 9, Color: colorGray,
			}),
		),
		col.New(5).Add(
			text.New("REPRESENTACIÓN GRÁFICA DE FACTURA", props.Text{
				Style: fontstyle.Bold, Size: 8, Align: align.Right, Color: colorPrimary, Top: 1,
			}),
			text.New(documentLabel(invoice, order), props.Text{
				Style: fontstyle.Bold, Size: 12, Align: align.Right, Top: 7,
			}),
			text.New("Fecha: "+date.Format("02/01/2006"), props.Text{
				Size: 8, Align: align.Right, Top: 14, Color: colorGray,
			}),
		),
	)
}

func customerRow(order *entity.Order) core.Row {
	return row.New(12).Add(
		col.New(12).Add(
			text.New("CLIENTE", props.Text{Style: fontstyle.Bold, Size: 8, Color: colorPrimary, Top: 1}),
			text.New(fmt.Sprintf("Cliente: %s   |   Pedido: %s   |   Forma de pago: %s",
				order.CustomerID, order.Number, nonEmpty(order.PaymentMethod, "-"),
			), props.Text{Size: 8, Top: 7, Color: colorGray}),
		),
	)
}

func tableHeaderRow() core.Row {
	h := func(label string, size int, a align.Type) core.Col {
		return col.New(size).Add(text.New(label, props.Text{
			Style: fontstyle.Bold, Size: 8, Align: a, Color: colorPrimary, Top: 2, Left: 1, Right: 1,
		}))
	}
	return row.New(8).Add(
		h("Cant.", 1, align.Center),
		h("Descripción", 5, align.Left),
		h("Tipo", 1, align.Center),
		h("Valor unit.", 2, align.Right),
		h("Subtotal", 3, align.Right),
	)
}

func tableDetailRows(items []entity.LineItem) []core.Row {
	rows := make([]core.Row, 0, len(items))
	for _, it := range items {
		kind := "P"
		if !it.IsProduct() {
			kind = "S"
		}
		rows = append(rows, row.New(7).Add(
			col.New(1).Add(text.New(fmt.Sprintf("%d", it.Quantity), props.Text{Size: 8, Align: align.Center, Top: 1})),
			col.New(5).Add(text.New(nonEmpty(it.Description, it.ReferenceID), props.Text{Size: 8, Top: 1, Left: 1})),
			col.New(1).Add(text.New(kind, props.Text{Size: 8, Align: align.Center, Top: 1})),
			col.New(2).Add(text.New(Money(it.UnitValue), props.Text{Size: 8, Align: align.Right, Top: 1, Right: 1})),
			col.New(3).Add(text.New(Money(it.Subtotal()), props.Text{Size: 8, Align: align.Right, Top: 1, Right: 1})),
		))
	}
	return rows
}

func totalsRow(order *entity.Order) core.Row {
	subtotal := decimal.Zero
	for _, it := range order.LineItems {
		subtotal = subtotal.Add(it.Subtotal())
	}
	label := func(s string, size float64) core.Component {
		return text.New(s, props.Text{Style: fontstyle.Bold, Size: size, Align: align.Right, Right: 2})
	}
	value := func(s string, size float64) core.Component {
		return text.New(s, props.Text{Size: size, Align: align.Right, Right: 1})
	}
	return row.New(20).Add(
		col.New(6),
		col.New(3).Add(label("Subtotal:", 9), label("Descuento:", 9), label("TOTAL:", 10)),
		col.New(3).Add(value(Money(subtotal), 9), value(Money(order.Discount), 9), value(Money(order.TotalValue), 10)),
	)
}

func footerRows(invoice *entity.Invoice) []core.Row {
	status := "EMITIDA"
	statusColor := colorPrimary
	if invoice.Status == entity.InvoiceStatusCancelled {
		status = "ANULADA"
		statusColor = colorRed
	}
	rows := []core.Row{
		row.New(7).Add(col.New(12).Add(
			text.New("ESTADO: "+status, props.Text{Style: fontstyle.Bold, Size: 9, Color: statusColor, Top: 1}),
		)),
	}
	if invoice.AuthorizationKey != "" {
		rows = append(rows, row.New(5).Add(col.New(12).Add(
			text.New("Clave de autorización:", props.Text{Style: fontstyle.Bold, Size: 7, Top: 1}),
		)))
		for _, chunk := range splitEvery(invoice.AuthorizationKey, 80) {
			rows = append(rows, row.New(4).Add(col.New(12).Add(
				text.New(chunk, props.Text{Size: 6.5, Color: colorGray, Top: 0.5, Left: 2}),
			)))
		}
	}
	rows = append(rows, row.New(40).Add(
		col.New(3).Add(code.NewQr(invoice.ExternalReference, props.Rect{Percent: 95, Center: true})),
		col.New(9).Add(
			text.New("Referencia: "+invoice.ExternalReference, props.Text{Size: 8, Top: 4, Left: 3, Color: colorGray}),
			text.New("Representación generada localmente; el documento válido es el registrado ante la autoridad fiscal.",
				props.Text{Size: 7, Top: 12, Left: 3, Color: colorGray}),
		),
	))
	return rows
}

func nonEmpty(s, fallback string) string {
	if s != "" {
		return s
	}
	return fallback
}

// Money formatea con separador de miles "." y decimales ",": 1234567.5 → "$1.234.567,50".
func Money(d decimal.Decimal) string {
	s := d.Abs().StringFixed(2)
	intPart, frac, _ := strings.Cut(s, ".")
	sign := ""
	if d.IsNegative() {
		sign = "-"
	}
	return sign + "$" + groupThousands(intPart) + "," + frac
}

func groupThousands(s string) string {
	n := len(s)
	if n <= 3 {
		return s
	}
	buf := make([]byte, 0, n+n/3)
	for i, c := range []byte(s) {
		if i > 0 && (n-i)%3 == 0 {
			buf = append(buf, '.')
		}
		buf = append(buf, c)
	}
	return string(buf)
}

func splitEvery(s string, n int) []string {
	var parts []string
	for len(s) > n {
		parts = append(parts, s[:n])
		s = s[n:]
	}
	if s != "" {
		parts = append(parts, s)
	}
	return parts
}
