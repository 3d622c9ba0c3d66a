package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/stockledger-api/internal/domain"
	"github.com/jhoicas/stockledger-api/internal/domain/entity"
	"github.com/jhoicas/stockledger-api/internal/domain/repository"
)

const (
	kindProduct  = "product"
	kindQuote    = "quote"
	kindOrder    = "order"
	kindPurchase = "purchase"
	kindInvoice  = "invoice"
)

var (
	_ repository.ProductRepository        = (*productRepo)(nil)
	_ repository.StockMovementRepository  = (*movementRepo)(nil)
	_ repository.QuoteRepository          = (*quoteRepo)(nil)
	_ repository.OrderRepository          = (*orderRepo)(nil)
	_ repository.PurchaseRepository       = (*purchaseRepo)(nil)
	_ repository.InvoiceRepository        = (*invoiceRepo)(nil)
	_ repository.DocumentNumberRepository = (*numberRepo)(nil)
)

// --- productos ---

type productRepo struct {
	s *Store
	t *txn
}

func (r *productRepo) Create(_ context.Context, product *entity.Product) error {
	key := rowKey(kindProduct, product.ID)
	return r.s.within(r.t, func(t *txn) error {
		if exists(r.s, t, key) {
			return fmt.Errorf("%w: producto %s", domain.ErrDuplicate, product.ID)
		}
		if len(scan(r.s, t, kindProduct, func(p *entity.Product) bool { return p.SKU == product.SKU }, cloneProduct)) > 0 {
			return fmt.Errorf("%w: sku %s", domain.ErrDuplicate, product.SKU)
		}
		t.rows[key] = cloneProduct(product)
		return nil
	})
}

func (r *productRepo) GetByID(_ context.Context, id string) (*entity.Product, error) {
	return get(r.s, r.t, rowKey(kindProduct, id), cloneProduct), nil
}

func (r *productRepo) GetBySKU(_ context.Context, sku string) (*entity.Product, error) {
	out := scan(r.s, r.t, kindProduct, func(p *entity.Product) bool { return p.SKU == sku }, cloneProduct)
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

func (r *productRepo) GetForUpdate(ctx context.Context, id string) (*entity.Product, error) {
	key := rowKey(kindProduct, id)
	if r.t == nil {
		return get(r.s, nil, key, cloneProduct), nil
	}
	if err := r.t.lock(ctx, key); err != nil {
		return nil, err
	}
	return get(r.s, r.t, key, cloneProduct), nil
}

func (r *productRepo) UpdateStock(_ context.Context, id string, expected, quantity int64, cost decimal.Decimal) error {
	key := rowKey(kindProduct, id)
	return r.s.within(r.t, func(t *txn) error {
		p := get(r.s, t, key, cloneProduct)
		if p == nil {
			return fmt.Errorf("%w: producto %s", domain.ErrNotFound, id)
		}
		if p.QuantityOnHand != expected {
			return fmt.Errorf("%w: producto %s cambió (%d != %d)", domain.ErrConcurrencyConflict, id, p.QuantityOnHand, expected)
		}
		p.QuantityOnHand = quantity
		p.Cost = cost
		p.UpdatedAt = time.Now()
		t.rows[key] = p
		return nil
	})
}

func (r *productRepo) ListBelowMinimum(_ context.Context, limit int) ([]*entity.Product, error) {
	out := scan(r.s, r.t, kindProduct, func(p *entity.Product) bool {
		return p.BelowMinimum(p.QuantityOnHand)
	}, cloneProduct)
	sort.SliceStable(out, func(i, j int) bool { return out[i].SKU < out[j].SKU })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// --- movimientos ---

type movementRepo struct {
	s *Store
	t *txn
}

func (r *movementRepo) Append(_ context.Context, movement *entity.StockMovement) error {
	return r.s.within(r.t, func(t *txn) error {
		t.movements[movement.ProductID] = append(t.movements[movement.ProductID], cloneMovement(movement))
		return nil
	})
}

// chain devuelve la cadena confirmada más lo preparado en la transacción.
func (r *movementRepo) chain(productID string) []*entity.StockMovement {
	r.s.mu.RLock()
	committed := r.s.movements[productID]
	out := make([]*entity.StockMovement, 0, len(committed))
	for _, m := range committed {
		out = append(out, cloneMovement(m))
	}
	r.s.mu.RUnlock()
	if r.t != nil {
		for _, m := range r.t.movements[productID] {
			out = append(out, cloneMovement(m))
		}
	}
	return out
}

func (r *movementRepo) LastByProduct(_ context.Context, productID string) (*entity.StockMovement, error) {
	movs := r.chain(productID)
	if len(movs) == 0 {
		return nil, nil
	}
	return movs[len(movs)-1], nil
}

func (r *movementRepo) ListByProduct(_ context.Context, productID string, filter repository.MovementFilter) ([]*entity.StockMovement, error) {
	var out []*entity.StockMovement
	for _, m := range r.chain(productID) {
		if filter.Kind != "" && m.Kind != filter.Kind {
			continue
		}
		if filter.From != nil && m.CreatedAt.Before(*filter.From) {
			continue
		}
		if filter.To != nil && m.CreatedAt.After(*filter.To) {
			continue
		}
		out = append(out, m)
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}

func (r *movementRepo) ListByReference(_ context.Context, referenceDocument string) ([]*entity.StockMovement, error) {
	r.s.mu.RLock()
	pids := make(map[string]struct{}, len(r.s.movements))
	for pid := range r.s.movements {
		pids[pid] = struct{}{}
	}
	r.s.mu.RUnlock()
	if r.t != nil {
		for pid := range r.t.movements {
			pids[pid] = struct{}{}
		}
	}
	var out []*entity.StockMovement
	for pid := range pids {
		for _, m := range r.chain(pid) {
			if m.ReferenceDocument == referenceDocument {
				out = append(out, m)
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].ProductID != out[j].ProductID {
			return out[i].ProductID < out[j].ProductID
		}
		return out[i].Seq < out[j].Seq
	})
	return out, nil
}

// --- cotizaciones ---

type quoteRepo struct {
	s *Store
	t *txn
}

func (r *quoteRepo) Create(_ context.Context, quote *entity.Quote) error {
	key := rowKey(kindQuote, quote.ID)
	return r.s.within(r.t, func(t *txn) error {
		if exists(r.s, t, key) {
			return fmt.Errorf("%w: cotización %s", domain.ErrDuplicate, quote.ID)
		}
		t.rows[key] = cloneQuote(quote)
		return nil
	})
}

func (r *quoteRepo) GetByID(_ context.Context, id string) (*entity.Quote, error) {
	return get(r.s, r.t, rowKey(kindQuote, id), cloneQuote), nil
}

func (r *quoteRepo) GetForUpdate(ctx context.Context, id string) (*entity.Quote, error) {
	key := rowKey(kindQuote, id)
	if r.t != nil {
		if err := r.t.lock(ctx, key); err != nil {
			return nil, err
		}
	}
	return get(r.s, r.t, key, cloneQuote), nil
}

func (r *quoteRepo) UpdateStatus(_ context.Context, id, status string, at time.Time) error {
	key := rowKey(kindQuote, id)
	return r.s.within(r.t, func(t *txn) error {
		q := get(r.s, t, key, cloneQuote)
		if q == nil {
			return fmt.Errorf("%w: cotización %s", domain.ErrNotFound, id)
		}
		q.Status = status
		q.UpdatedAt = at
		t.rows[key] = q
		return nil
	})
}

// --- pedidos ---

type orderRepo struct {
	s *Store
	t *txn
}

func (r *orderRepo) Create(_ context.Context, order *entity.Order) error {
	key := rowKey(kindOrder, order.ID)
	return r.s.within(r.t, func(t *txn) error {
		if exists(r.s, t, key) {
			return fmt.Errorf("%w: pedido %s", domain.ErrDuplicate, order.ID)
		}
		if order.QuoteID != nil {
			quoteID := *order.QuoteID
			dup := scan(r.s, t, kindOrder, func(o *entity.Order) bool {
				return o.QuoteID != nil && *o.QuoteID == quoteID
			}, cloneOrder)
			if len(dup) > 0 {
				return fmt.Errorf("%w: ya existe un pedido para la cotización %s", domain.ErrDuplicate, quoteID)
			}
		}
		t.rows[key] = cloneOrder(order)
		return nil
	})
}

func (r *orderRepo) GetByID(_ context.Context, id string) (*entity.Order, error) {
	return get(r.s, r.t, rowKey(kindOrder, id), cloneOrder), nil
}

func (r *orderRepo) GetForUpdate(ctx context.Context, id string) (*entity.Order, error) {
	key := rowKey(kindOrder, id)
	if r.t != nil {
		if err := r.t.lock(ctx, key); err != nil {
			return nil, err
		}
	}
	return get(r.s, r.t, key, cloneOrder), nil
}

func (r *orderRepo) GetByQuoteID(_ context.Context, quoteID string) (*entity.Order, error) {
	found := scan(r.s, r.t, kindOrder, func(o *entity.Order) bool {
		return o.QuoteID != nil && *o.QuoteID == quoteID
	}, cloneOrder)
	if len(found) == 0 {
		return nil, nil
	}
	return found[0], nil
}

func (r *orderRepo) Update(_ context.Context, order *entity.Order) error {
	key := rowKey(kindOrder, order.ID)
	return r.s.within(r.t, func(t *txn) error {
		if !exists(r.s, t, key) {
			return fmt.Errorf("%w: pedido %s", domain.ErrNotFound, order.ID)
		}
		t.rows[key] = cloneOrder(order)
		return nil
	})
}

// --- compras ---

type purchaseRepo struct {
	s *Store
	t *txn
}

func (r *purchaseRepo) Create(_ context.Context, purchase *entity.Purchase) error {
	key := rowKey(kindPurchase, purchase.ID)
	return r.s.within(r.t, func(t *txn) error {
		if exists(r.s, t, key) {
			return fmt.Errorf("%w: compra %s", domain.ErrDuplicate, purchase.ID)
		}
		t.rows[key] = clonePurchase(purchase)
		return nil
	})
}

func (r *purchaseRepo) GetByID(_ context.Context, id string) (*entity.Purchase, error) {
	return get(r.s, r.t, rowKey(kindPurchase, id), clonePurchase), nil
}

// --- facturas ---

type invoiceRepo struct {
	s *Store
	t *txn
}

func (r *invoiceRepo) Create(_ context.Context, invoice *entity.Invoice) error {
	key := rowKey(kindInvoice, invoice.ID)
	return r.s.within(r.t, func(t *txn) error {
		dup := scan(r.s, t, kindInvoice, func(i *entity.Invoice) bool {
			return i.ID == invoice.ID || i.OrderID == invoice.OrderID || i.ExternalReference == invoice.ExternalReference
		}, cloneInvoice)
		if len(dup) > 0 {
			return fmt.Errorf("%w: factura para el pedido %s", domain.ErrDuplicate, invoice.OrderID)
		}
		t.rows[key] = cloneInvoice(invoice)
		return nil
	})
}

func (r *invoiceRepo) GetByID(_ context.Context, id string) (*entity.Invoice, error) {
	return get(r.s, r.t, rowKey(kindInvoice, id), cloneInvoice), nil
}

func (r *invoiceRepo) find(match func(*entity.Invoice) bool) *entity.Invoice {
	found := scan(r.s, r.t, kindInvoice, match, cloneInvoice)
	if len(found) == 0 {
		return nil
	}
	return found[0]
}

func (r *invoiceRepo) GetByOrderID(_ context.Context, orderID string) (*entity.Invoice, error) {
	return r.find(func(i *entity.Invoice) bool { return i.OrderID == orderID }), nil
}

func (r *invoiceRepo) GetByExternalReference(_ context.Context, ref string) (*entity.Invoice, error) {
	return r.find(func(i *entity.Invoice) bool { return i.ExternalReference == ref }), nil
}

// lockAndReload bloquea la fila encontrada y la vuelve a leer ya bajo el bloqueo.
func (r *invoiceRepo) lockAndReload(ctx context.Context, inv *entity.Invoice) (*entity.Invoice, error) {
	if inv == nil || r.t == nil {
		return inv, nil
	}
	key := rowKey(kindInvoice, inv.ID)
	if err := r.t.lock(ctx, key); err != nil {
		return nil, err
	}
	return get(r.s, r.t, key, cloneInvoice), nil
}

func (r *invoiceRepo) GetByOrderIDForUpdate(ctx context.Context, orderID string) (*entity.Invoice, error) {
	inv, _ := r.GetByOrderID(ctx, orderID)
	return r.lockAndReload(ctx, inv)
}

func (r *invoiceRepo) GetByExternalReferenceForUpdate(ctx context.Context, ref string) (*entity.Invoice, error) {
	inv, _ := r.GetByExternalReference(ctx, ref)
	return r.lockAndReload(ctx, inv)
}

func (r *invoiceRepo) Update(_ context.Context, invoice *entity.Invoice) error {
	key := rowKey(kindInvoice, invoice.ID)
	return r.s.within(r.t, func(t *txn) error {
		if !exists(r.s, t, key) {
			return fmt.Errorf("%w: factura %s", domain.ErrNotFound, invoice.ID)
		}
		t.rows[key] = cloneInvoice(invoice)
		return nil
	})
}

// --- consecutivos ---

type numberRepo struct {
	s *Store
	t *txn
}

func (r *numberRepo) Next(ctx context.Context, prefix string, year int) (int64, error) {
	key := fmt.Sprintf("seq:%s:%d", prefix, year)
	var next int64
	err := r.s.within(r.t, func(t *txn) error {
		if err := t.lock(ctx, key); err != nil {
			return err
		}
		cur, ok := t.sequences[key]
		if !ok {
			r.s.mu.RLock()
			cur = r.s.sequences[key]
			r.s.mu.RUnlock()
		}
		next = cur + 1
		t.sequences[key] = next
		return nil
	})
	return next, err
}
