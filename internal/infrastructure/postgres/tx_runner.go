package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jhoicas/stockledger-api/internal/domain"
	"github.com/jhoicas/stockledger-api/internal/domain/repository"
)

var tracer = otel.Tracer("stockledger/postgres")

const defaultMaxAttempts = 5

var _ repository.TxRunner = (*TxRunner)(nil)

// TxRunner ejecuta callbacks dentro de una transacción PostgreSQL (READ COMMITTED + bloqueos
// de fila explícitos). Reintenta la transacción completa ante serialización, deadlock o
// domain.ErrConcurrencyConflict.
type TxRunner struct {
	pool        *pgxpool.Pool
	maxAttempts int
	log         zerolog.Logger
}

// NewTxRunner construye el runner con el pool.
func NewTxRunner(pool *pgxpool.Pool, maxAttempts int, log zerolog.Logger) *TxRunner {
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	return &TxRunner{pool: pool, maxAttempts: maxAttempts, log: log}
}

// Repos devuelve repositorios sobre el pool (autocommit), para lecturas.
func (r *TxRunner) Repos() repository.Repos {
	return NewRepos(r.pool)
}

// NewRepos construye el conjunto de repositorios sobre q (pool o tx).
func NewRepos(q Querier) repository.Repos {
	return repository.Repos{
		Products:  NewProductRepository(q),
		Movements: NewStockMovementRepository(q),
		Quotes:    NewQuoteRepository(q),
		Orders:    NewOrderRepository(q),
		Purchases: NewPurchaseRepository(q),
		Invoices:  NewInvoiceRepository(q),
		Numbers:   NewDocumentNumberRepository(q),
	}
}

// Run inicia una transacción, ejecuta fn con repos atados a la tx y hace Commit o Rollback.
func (r *TxRunner) Run(ctx context.Context, fn func(ctx context.Context, repos repository.Repos) error) error {
	ctx, span := tracer.Start(ctx, "transaction",
		trace.WithAttributes(attribute.String("tx.isolation", string(pgx.ReadCommitted))))
	defer span.End()

	var err error
retry:
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		err = r.runOnce(ctx, fn)
		if err == nil || !isRetryable(err) {
			break
		}
		span.AddEvent("retry", trace.WithAttributes(attribute.Int("tx.attempt", attempt)))
		r.log.Debug().Err(err).Int("attempt", attempt).Msg("transacción en conflicto, reintentando")
		if attempt == r.maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			err = ctx.Err()
			break retry
		case <-time.After(time.Duration(attempt) * 5 * time.Millisecond):
		}
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transaction")
		if isRetryable(err) {
			if errors.Is(err, domain.ErrConcurrencyConflict) {
				return fmt.Errorf("%d intentos: %w", r.maxAttempts, err)
			}
			return fmt.Errorf("%w: %d intentos: %v", domain.ErrConcurrencyConflict, r.maxAttempts, err)
		}
	}
	return err
}

func (r *TxRunner) runOnce(ctx context.Context, fn func(ctx context.Context, repos repository.Repos) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted, AccessMode: pgx.ReadWrite})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	// Rollback con contexto propio: debe completarse aunque ctx esté cancelado.
	defer func() { _ = tx.Rollback(context.Background()) }()

	if err := fn(ctx, NewRepos(tx)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
