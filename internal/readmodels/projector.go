package readmodels

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"storefront/internal/events"
	"storefront/internal/transaction"
	"storefront/kit/broker"
	"storefront/kit/db"
)

// OrderPaymentView is the checkout state of one order as seen from its
// latest payment attempt.
type OrderPaymentView struct {
	OrderID        string             `json:"orderId"`
	TransactionID  string             `json:"transactionId"`
	GatewayOrderID string             `json:"gatewayOrderId,omitempty"`
	Amount         string             `json:"amount"`
	Currency       string             `json:"currency"`
	Status         transaction.Status `json:"status"`
	Attempts       int                `json:"attempts"`
	Reason         string             `json:"reason,omitempty"`
	Stuck          bool               `json:"stuck,omitempty"`
	Paid           bool               `json:"paid"`
	UpdatedAt      time.Time          `json:"updatedAt"`
}

// JournalContract define replay source responsibility.
type JournalContract interface {
	All(ctx context.Context) []db.Record
}

type Projector struct {
	mu     sync.RWMutex
	orders map[string]OrderPaymentView
}

func NewProjector() *Projector {
	return &Projector{orders: make(map[string]OrderPaymentView)}
}

func (p *Projector) Replay(ctx context.Context, journal JournalContract) error {
	for _, rec := range journal.All(ctx) {
		if err := p.ApplyRecord(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}

func (p *Projector) Apply(ctx context.Context, evt broker.Event) error {
	switch e := evt.(type) {
	case events.TransactionInitiated:
		p.applyInitiated(e)
	case events.TransactionProcessing:
		p.applyProcessing(e)
	case events.TransactionSucceeded:
		p.applySucceeded(e)
	case events.TransactionFailed:
		p.applyFailed(e)
	case events.TransactionStuck:
		p.applyStuck(e)
	case events.OrderPaid:
		p.applyOrderPaid(e)
	}
	return nil
}

func (p *Projector) ApplyRecord(ctx context.Context, rec db.Record) error {
	var evt broker.Event
	var err error
	switch rec.EventName {
	case (events.TransactionInitiated{}).Name():
		evt, err = decode[events.TransactionInitiated](rec)
	case (events.TransactionProcessing{}).Name():
		evt, err = decode[events.TransactionProcessing](rec)
	case (events.TransactionSucceeded{}).Name():
		evt, err = decode[events.TransactionSucceeded](rec)
	case (events.TransactionFailed{}).Name():
		evt, err = decode[events.TransactionFailed](rec)
	default:
		return nil
	}
	if err != nil {
		return err
	}
	return p.Apply(ctx, evt)
}

func decode[T broker.Event](rec db.Record) (broker.Event, error) {
	var e T
	if err := json.Unmarshal(rec.Payload, &e); err != nil {
		return nil, errors.Join(db.ErrInternal, err)
	}
	return e, nil
}

func (p *Projector) GetOrder(orderID string) (OrderPaymentView, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	v, ok := p.orders[orderID]
	return v, ok
}

// current returns the view only when txID is the order's latest attempt.
func (p *Projector) current(orderID, txID string) (OrderPaymentView, bool) {
	cur, ok := p.orders[orderID]
	if !ok || cur.TransactionID != txID {
		return OrderPaymentView{}, false
	}
	return cur, true
}

func (p *Projector) applyInitiated(e events.TransactionInitiated) {
	p.mu.Lock()
	defer p.mu.Unlock()
	cur := p.orders[e.OrderID]
	if cur.Paid {
		return
	}
	p.orders[e.OrderID] = OrderPaymentView{
		OrderID:       e.OrderID,
		TransactionID: e.TransactionID,
		Amount:        e.Amount,
		Currency:      e.Currency,
		Status:        transaction.StatusInitiated,
		Attempts:      cur.Attempts + 1,
		UpdatedAt:     e.At,
	}
}

func (p *Projector) applyProcessing(e events.TransactionProcessing) {
	p.mu.Lock()
	defer p.mu.Unlock()
	cur, ok := p.current(e.OrderID, e.TransactionID)
	if !ok || cur.Status.IsTerminal() {
		return
	}
	cur.GatewayOrderID = e.GatewayOrderID
	cur.Status = transaction.StatusProcessing
	cur.UpdatedAt = e.At
	p.orders[e.OrderID] = cur
}

func (p *Projector) applySucceeded(e events.TransactionSucceeded) {
	p.mu.Lock()
	defer p.mu.Unlock()
	cur, ok := p.current(e.OrderID, e.TransactionID)
	if !ok {
		return
	}
	cur.GatewayOrderID = e.GatewayOrderID
	cur.Status = transaction.StatusSucceeded
	cur.Stuck = false
	cur.UpdatedAt = e.At
	p.orders[e.OrderID] = cur
}

func (p *Projector) applyFailed(e events.TransactionFailed) {
	p.mu.Lock()
	defer p.mu.Unlock()
	cur, ok := p.current(e.OrderID, e.TransactionID)
	if !ok {
		return
	}
	cur.Status = transaction.StatusFailed
	cur.Reason = e.Reason
	cur.Stuck = false
	cur.UpdatedAt = e.At
	p.orders[e.OrderID] = cur
}

func (p *Projector) applyStuck(e events.TransactionStuck) {
	p.mu.Lock()
	defer p.mu.Unlock()
	cur, ok := p.current(e.OrderID, e.TransactionID)
	if !ok || cur.Status.IsTerminal() {
		return
	}
	cur.Stuck = true
	p.orders[e.OrderID] = cur
}

func (p *Projector) applyOrderPaid(e events.OrderPaid) {
	p.mu.Lock()
	defer p.mu.Unlock()
	cur, ok := p.current(e.OrderID, e.TransactionID)
	if !ok {
		return
	}
	cur.Paid = true
	cur.UpdatedAt = e.At
	p.orders[e.OrderID] = cur
}
