package fiscal

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/stockledger-api/internal/application/ports"
)

// Identificadores del documento fiscal.
const (
	NamespaceDocument = "urn:stockledger:fiscal:documento:1.0"
	DocumentVersion   = "1.0"
	// DocumentElementID es el Id del nodo raíz referenciado por la firma.
	DocumentElementID = "documento"
)

// IssuerInfo datos del emisor que viajan en cada documento.
type IssuerInfo struct {
	TaxID  string
	Series string
}

// XMLBuilderService construye el XML del documento fiscal a partir del payload.
type XMLBuilderService struct {
	issuer IssuerInfo
}

// NewXMLBuilderService crea el builder.
func NewXMLBuilderService(issuer IssuerInfo) *XMLBuilderService {
	return &XMLBuilderService{issuer: issuer}
}

// Build genera el documento sin firma. La firma enveloped se agrega como último hijo de la raíz.
func (b *XMLBuilderService) Build(payload ports.FiscalPayload, externalReference string) ([]byte, error) {
	if externalReference == "" {
		return nil, fmt.Errorf("fiscal: referencia externa vacía")
	}
	if len(payload.Lines) == 0 {
		return nil, fmt.Errorf("fiscal: el documento no tiene líneas")
	}
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)

	root := xml.StartElement{
		Name: xml.Name{Local: "DocumentoFiscal"},
		Attr: []xml.Attr{
			{Name: xml.Name{Local: "xmlns"}, Value: NamespaceDocument},
			{Name: xml.Name{Local: "Id"}, Value: DocumentElementID},
			{Name: xml.Name{Local: "version"}, Value: DocumentVersion},
		},
	}
	if err := enc.EncodeToken(root); err != nil {
		return nil, err
	}
	writeText(enc, "Referencia", externalReference)

	emisor := xml.StartElement{Name: xml.Name{Local: "Emisor"}}
	enc.EncodeToken(emisor)
	writeText(enc, "IdentificacionFiscal", b.issuer.TaxID)
	writeText(enc, "Serie", b.issuer.Series)
	enc.EncodeToken(emisor.End())

	receptor := xml.StartElement{Name: xml.Name{Local: "Receptor"}}
	enc.EncodeToken(receptor)
	writeText(enc, "Identificacion", payload.CustomerID)
	enc.EncodeToken(receptor.End())

	writeText(enc, "Pedido", payload.OrderNumber)
	issued := payload.IssueDate.UTC()
	writeText(enc, "FechaEmision", issued.Format("2006-01-02"))
	writeText(enc, "HoraEmision", issued.Format("15:04:05Z"))
	writeText(enc, "FormaPago", payload.PaymentMethod)

	lineas := xml.StartElement{Name: xml.Name{Local: "Lineas"}}
	enc.EncodeToken(lineas)
	for i, l := range payload.Lines {
		linea := xml.StartElement{
			Name: xml.Name{Local: "Linea"},
			Attr: []xml.Attr{
				{Name: xml.Name{Local: "numero"}, Value: strconv.Itoa(i + 1)},
				{Name: xml.Name{Local: "tipo"}, Value: l.Kind},
			},
		}
		enc.EncodeToken(linea)
		writeText(enc, "Codigo", l.Code)
		writeText(enc, "Descripcion", l.Description)
		writeText(enc, "Cantidad", strconv.FormatInt(l.Quantity, 10))
		writeAmount(enc, "ValorUnitario", l.UnitValue)
		writeAmount(enc, "Subtotal", l.Subtotal)
		enc.EncodeToken(linea.End())
	}
	enc.EncodeToken(lineas.End())

	totales := xml.StartElement{Name: xml.Name{Local: "Totales"}}
	enc.EncodeToken(totales)
	writeAmount(enc, "Subtotal", payload.Subtotal)
	writeAmount(enc, "Descuento", payload.Discount)
	writeAmount(enc, "Total", payload.Total)
	enc.EncodeToken(totales.End())

	if err := enc.EncodeToken(root.End()); err != nil {
		return nil, err
	}
	if err := enc.Flush(); err != nil {
		return nil, fmt.Errorf("fiscal: serializar XML: %w", err)
	}
	return buf.Bytes(), nil
}

func writeText(enc *xml.Encoder, local, value string) {
	start := xml.StartElement{Name: xml.Name{Local: local}}
	enc.EncodeToken(start)
	enc.EncodeToken(xml.CharData(value))
	enc.EncodeToken(start.End())
}

func writeAmount(enc *xml.Encoder, local string, value decimal.Decimal) {
	writeText(enc, local, formatDecimal(value))
}

func formatDecimal(d decimal.Decimal) string {
	return d.Round(2).StringFixed(2)
}
