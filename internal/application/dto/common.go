package dto

// Tope de filas en listados sin paginación por cursor.
const (
	DefaultLimit = 50
	MaxLimit     = 500
)

// ListQuery parámetros de query comunes a listados del catálogo e inventario.
type ListQuery struct {
	Limit int    `query:"limit"`
	SKU   string `query:"sku"`
}

// EffectiveLimit 0 o negativo toma DefaultLimit; nunca supera MaxLimit.
func (q ListQuery) EffectiveLimit() int {
	switch {
	case q.Limit <= 0:
		return DefaultLimit
	case q.Limit > MaxLimit:
		return MaxLimit
	}
	return q.Limit
}

// ErrorResponse cuerpo de error HTTP. Code es estable; Message es para humanos.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
