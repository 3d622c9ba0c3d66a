package fiscal

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/klauspost/compress/zip"
)

// CompressXMLToZip empaqueta el XML firmado en un ZIP con una sola entrada.
func CompressXMLToZip(xmlBytes []byte, xmlName string) ([]byte, error) {
	if !strings.HasSuffix(strings.ToLower(xmlName), ".xml") {
		xmlName += ".xml"
	}
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	f, err := w.Create(xmlName)
	if err != nil {
		return nil, fmt.Errorf("fiscal: crear entrada zip: %w", err)
	}
	if _, err := f.Write(xmlBytes); err != nil {
		return nil, fmt.Errorf("fiscal: escribir zip: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("fiscal: cerrar zip: %w", err)
	}
	return buf.Bytes(), nil
}

// DocumentFileName nombre del archivo enviado: emisor + serie + número de pedido.
func DocumentFileName(issuer IssuerInfo, orderNumber string) string {
	return fmt.Sprintf("%s%s%s", issuer.TaxID, issuer.Series, strings.ReplaceAll(orderNumber, "-", ""))
}
