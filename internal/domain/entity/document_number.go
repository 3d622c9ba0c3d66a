package entity

import "fmt"

// Prefijos de consecutivo por tipo de documento.
const (
	PrefixQuote    = "COT"
	PrefixOrder    = "PED"
	PrefixPurchase = "COM"
)

// FormatDocumentNumber arma el número visible del documento, p. ej. PED-2026-00042.
func FormatDocumentNumber(prefix string, year int, seq int64) string {
	return fmt.Sprintf("%s-%d-%05d", prefix, year, seq)
}
