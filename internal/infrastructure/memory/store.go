// Package memory implementa los repositorios sobre memoria con transacciones y bloqueos por fila.
// Se usa en modo dev (STORE_DRIVER=memory) y como doble de prueba de los casos de uso.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/jhoicas/stockledger-api/internal/domain"
	"github.com/jhoicas/stockledger-api/internal/domain/entity"
	"github.com/jhoicas/stockledger-api/internal/domain/repository"
)

const defaultMaxAttempts = 3

var _ repository.TxRunner = (*Store)(nil)

// Store estado confirmado en memoria. Las escrituras se preparan en una transacción y se
// aplican de forma atómica en el commit; las filas leídas con ...ForUpdate quedan bloqueadas
// hasta el commit o rollback.
type Store struct {
	mu        sync.RWMutex
	rows      map[string]any
	movements map[string][]*entity.StockMovement
	sequences map[string]int64

	locks       *lockTable
	maxAttempts int
}

// Option configura el Store.
type Option func(*Store)

// WithMaxAttempts fija los intentos de TxRunner ante conflictos de concurrencia.
func WithMaxAttempts(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

// NewStore construye un Store vacío.
func NewStore(opts ...Option) *Store {
	s := &Store{
		rows:        make(map[string]any),
		movements:   make(map[string][]*entity.StockMovement),
		sequences:   make(map[string]int64),
		locks:       newLockTable(),
		maxAttempts: defaultMaxAttempts,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Repos devuelve repositorios en modo autocommit (cada escritura es su propia transacción).
func (s *Store) Repos() repository.Repos {
	return reposFor(s, nil)
}

// Run ejecuta fn en una transacción. Reintenta ante domain.ErrConcurrencyConflict.
func (s *Store) Run(ctx context.Context, fn func(ctx context.Context, repos repository.Repos) error) error {
	var lastErr error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		t := s.begin()
		err := fn(ctx, reposFor(s, t))
		if err == nil {
			err = t.commit()
		} else {
			t.rollback()
		}
		if err == nil {
			return nil
		}
		if !errors.Is(err, domain.ErrConcurrencyConflict) {
			return err
		}
		lastErr = err
	}
	return fmt.Errorf("%d intentos: %w", s.maxAttempts, lastErr)
}

func reposFor(s *Store, t *txn) repository.Repos {
	return repository.Repos{
		Products:  &productRepo{s: s, t: t},
		Movements: &movementRepo{s: s, t: t},
		Quotes:    &quoteRepo{s: s, t: t},
		Orders:    &orderRepo{s: s, t: t},
		Purchases: &purchaseRepo{s: s, t: t},
		Invoices:  &invoiceRepo{s: s, t: t},
		Numbers:   &numberRepo{s: s, t: t},
	}
}

// txn cambios preparados y bloqueos retenidos por una transacción.
type txn struct {
	s         *Store
	rows      map[string]any
	movements map[string][]*entity.StockMovement
	sequences map[string]int64
	held      map[string]bool
	order     []string
	done      bool
}

func (s *Store) begin() *txn {
	return &txn{
		s:         s,
		rows:      make(map[string]any),
		movements: make(map[string][]*entity.StockMovement),
		sequences: make(map[string]int64),
		held:      make(map[string]bool),
	}
}

// lock adquiere el bloqueo de la fila key hasta el fin de la transacción (reentrante).
func (t *txn) lock(ctx context.Context, key string) error {
	if t.held[key] {
		return nil
	}
	if err := t.s.locks.acquire(ctx, key); err != nil {
		return fmt.Errorf("bloqueo %s: %w", key, err)
	}
	t.held[key] = true
	t.order = append(t.order, key)
	return nil
}

func (t *txn) release() {
	if t.done {
		return
	}
	t.done = true
	for i := len(t.order) - 1; i >= 0; i-- {
		t.s.locks.release(t.order[i])
	}
}

func (t *txn) rollback() { t.release() }

func (t *txn) commit() error {
	defer t.release()
	s := t.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := t.checkConstraints(); err != nil {
		return err
	}
	for k, v := range t.rows {
		s.rows[k] = v
	}
	for pid, movs := range t.movements {
		s.movements[pid] = append(s.movements[pid], movs...)
	}
	for k, v := range t.sequences {
		s.sequences[k] = v
	}
	return nil
}

// checkConstraints valida las restricciones únicas contra el estado confirmado (s.mu tomado).
func (t *txn) checkConstraints() error {
	s := t.s
	for k, v := range t.rows {
		switch row := v.(type) {
		case *entity.Product:
			for ck, cv := range s.rows {
				p, ok := cv.(*entity.Product)
				if ok && ck != k && p.SKU == row.SKU {
					return fmt.Errorf("%w: sku %s", domain.ErrDuplicate, row.SKU)
				}
			}
		case *entity.Order:
			if row.QuoteID == nil {
				continue
			}
			for ck, cv := range s.rows {
				o, ok := cv.(*entity.Order)
				if ok && ck != k && o.QuoteID != nil && *o.QuoteID == *row.QuoteID {
					return fmt.Errorf("%w: ya existe un pedido para la cotización %s", domain.ErrDuplicate, *row.QuoteID)
				}
			}
		case *entity.Invoice:
			for ck, cv := range s.rows {
				inv, ok := cv.(*entity.Invoice)
				if !ok || ck == k {
					continue
				}
				if inv.OrderID == row.OrderID || inv.ExternalReference == row.ExternalReference {
					return fmt.Errorf("%w: factura duplicada para el pedido %s", domain.ErrDuplicate, row.OrderID)
				}
			}
		}
	}
	for pid, movs := range t.movements {
		next := int64(len(s.movements[pid]) + 1)
		for _, m := range movs {
			if m.Seq != next {
				return fmt.Errorf("%w: seq %d del producto %s ya existe", domain.ErrConcurrencyConflict, m.Seq, pid)
			}
			next++
		}
	}
	return nil
}

// within ejecuta fn en la transacción activa o en una transacción autocommit.
func (s *Store) within(t *txn, fn func(t *txn) error) error {
	if t != nil {
		return fn(t)
	}
	t = s.begin()
	if err := fn(t); err != nil {
		t.rollback()
		return err
	}
	return t.commit()
}

func rowKey(kind, id string) string { return kind + ":" + id }

// get lee una fila: primero lo preparado en la transacción, luego lo confirmado.
func get[T any](s *Store, t *txn, key string, clone func(*T) *T) *T {
	if t != nil {
		if v, ok := t.rows[key]; ok {
			return clone(v.(*T))
		}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if v, ok := s.rows[key]; ok {
		return clone(v.(*T))
	}
	return nil
}

func exists(s *Store, t *txn, key string) bool {
	if t != nil {
		if _, ok := t.rows[key]; ok {
			return true
		}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.rows[key]
	return ok
}

// scan recorre las filas de un tipo combinando lo preparado con lo confirmado, ordenadas por clave.
func scan[T any](s *Store, t *txn, kind string, match func(*T) bool, clone func(*T) *T) []*T {
	prefix := kind + ":"
	seen := make(map[string]*T)
	if t != nil {
		for k, v := range t.rows {
			if strings.HasPrefix(k, prefix) {
				seen[k] = v.(*T)
			}
		}
	}
	s.mu.RLock()
	for k, v := range s.rows {
		if _, ok := seen[k]; !ok && strings.HasPrefix(k, prefix) {
			seen[k] = v.(*T)
		}
	}
	s.mu.RUnlock()

	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var out []*T
	for _, k := range keys {
		if row := seen[k]; match(row) {
			out = append(out, clone(row))
		}
	}
	return out
}

// lockTable bloqueos por clave que respetan la cancelación del contexto.
type lockTable struct {
	mu    sync.Mutex
	locks map[string]chan struct{}
}

func newLockTable() *lockTable {
	return &lockTable{locks: make(map[string]chan struct{})}
}

func (l *lockTable) slot(key string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch, ok := l.locks[key]
	if !ok {
		ch = make(chan struct{}, 1)
		l.locks[key] = ch
	}
	return ch
}

func (l *lockTable) acquire(ctx context.Context, key string) error {
	select {
	case l.slot(key) <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *lockTable) release(key string) {
	<-l.slot(key)
}
