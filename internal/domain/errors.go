package domain

import "errors"

// Errores de dominio (sin dependencias externas).
var (
	ErrNotFound              = errors.New("recurso no encontrado")
	ErrInvalidInput          = errors.New("entrada inválida")
	ErrDuplicate             = errors.New("recurso duplicado")
	ErrUnauthorized          = errors.New("no autorizado")
	ErrForbidden             = errors.New("acceso denegado")
	ErrConflict              = errors.New("conflicto con el estado actual")
	ErrInsufficientStock     = errors.New("stock insuficiente")
	ErrInvalidTransition     = errors.New("transición de estado inválida")
	ErrJustificationTooShort = errors.New("la justificación debe tener al menos 15 caracteres")
	ErrConcurrencyConflict   = errors.New("conflicto de concurrencia, reintente")
	ErrEmissionInProgress    = errors.New("emisión fiscal en curso para el pedido")
	ErrQuoteExpired          = errors.New("cotización vencida")
	ErrLedgerCorrupted       = errors.New("cadena de movimientos inconsistente")
)
