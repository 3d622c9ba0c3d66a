package repository

import "context"

// DocumentNumberRepository entrega consecutivos por prefijo y año.
// Atado a la transacción del documento: un rollback no deja huecos.
type DocumentNumberRepository interface {
	Next(ctx context.Context, prefix string, year int) (int64, error)
}
