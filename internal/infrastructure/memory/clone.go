package memory

import (
	"time"

	"github.com/jhoicas/stockledger-api/internal/domain/entity"
)

func cloneProduct(p *entity.Product) *entity.Product {
	c := *p
	return &c
}

func cloneMovement(m *entity.StockMovement) *entity.StockMovement {
	c := *m
	if m.UnitValue != nil {
		v := *m.UnitValue
		c.UnitValue = &v
	}
	return &c
}

func cloneQuote(q *entity.Quote) *entity.Quote {
	c := *q
	c.LineItems = entity.CloneLineItems(q.LineItems)
	return &c
}

func cloneOrder(o *entity.Order) *entity.Order {
	c := *o
	c.LineItems = entity.CloneLineItems(o.LineItems)
	c.QuoteID = cloneString(o.QuoteID)
	c.InvoiceID = cloneString(o.InvoiceID)
	return &c
}

func clonePurchase(p *entity.Purchase) *entity.Purchase {
	c := *p
	c.LineItems = entity.CloneLineItems(p.LineItems)
	return &c
}

func cloneInvoice(i *entity.Invoice) *entity.Invoice {
	c := *i
	c.EmittingUntil = cloneTime(i.EmittingUntil)
	c.IssuedAt = cloneTime(i.IssuedAt)
	c.CancelledAt = cloneTime(i.CancelledAt)
	return &c
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
