package postgres

import (
	"context"
	"fmt"

	"github.com/jhoicas/stockledger-api/internal/domain/repository"
)

var _ repository.DocumentNumberRepository = (*DocumentNumberRepo)(nil)

// DocumentNumberRepo secuencias por prefijo y año. El upsert deja la fila bloqueada hasta
// el fin de la transacción: un rollback no deja huecos y los números salen en orden de commit.
type DocumentNumberRepo struct {
	q Querier
}

// NewDocumentNumberRepository construye el adaptador.
func NewDocumentNumberRepository(q Querier) *DocumentNumberRepo {
	return &DocumentNumberRepo{q: q}
}

func (r *DocumentNumberRepo) Next(ctx context.Context, prefix string, year int) (int64, error) {
	sql, args, err := psql.Insert("document_sequences").
		Columns("prefix", "year", "last_value").
		Values(prefix, year, 1).
		Suffix("ON CONFLICT (prefix, year) DO UPDATE SET last_value = document_sequences.last_value + 1 RETURNING last_value").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build next number: %w", err)
	}
	var next int64
	if err := r.q.QueryRow(ctx, sql, args...).Scan(&next); err != nil {
		return 0, fmt.Errorf("next number %s-%d: %w", prefix, year, err)
	}
	return next, nil
}
