// Package events is the in-process domain event bus. Financial mutations commit first and
// then publish; subscribers run on a bounded worker pool and their failures are only logged.
package events

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
)

type Kind string

const (
	KindQuotationCreated Kind = "quotation.created"
	KindBidCreated       Kind = "bid.created"
	KindBidAccepted      Kind = "bid.accepted"
	KindBidWithdrawn     Kind = "bid.withdrawn"
	KindWorkSubmitted    Kind = "work.submitted"
	KindPaymentSettled   Kind = "payment.settled"
	KindQuotationExpired Kind = "quotation.expired"
)

// Event is a fact about the settlement core that other components may react to.
type Event struct {
	Kind        Kind       `json:"kind"`
	QuotationID uuid.UUID  `json:"quotation_id"`
	BidID       *uuid.UUID `json:"bid_id,omitempty"`
	UserID      *uuid.UUID `json:"user_id,omitempty"`
	EditorID    *uuid.UUID `json:"editor_id,omitempty"`
	AmountCents int64      `json:"amount_cents,omitempty"`
	OccurredAt  time.Time  `json:"occurred_at"`
}

// Recipients returns the users the event concerns.
func (e Event) Recipients() []uuid.UUID {
	var out []uuid.UUID
	if e.UserID != nil {
		out = append(out, *e.UserID)
	}
	if e.EditorID != nil {
		out = append(out, *e.EditorID)
	}
	return out
}

type Handler func(ctx context.Context, e Event) error

// Bus fans events out to subscribers asynchronously.
type Bus struct {
	pool   *ants.Pool
	log    *slog.Logger
	mu     sync.RWMutex
	byKind map[Kind][]Handler
	all    []Handler
	wg     sync.WaitGroup
}

// NewBus returns a Bus running subscribers on at most size goroutines. When the pool is
// saturated new deliveries are dropped and logged instead of blocking the publisher.
func NewBus(size int, log *slog.Logger) (*Bus, error) {
	if log == nil {
		log = slog.Default()
	}
	pool, err := ants.NewPool(size,
		ants.WithNonblocking(true),
		ants.WithPanicHandler(func(p any) {
			log.Error("event subscriber panicked", "panic", fmt.Sprint(p))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("create event pool: %w", err)
	}
	return &Bus{pool: pool, log: log, byKind: make(map[Kind][]Handler)}, nil
}

// Subscribe registers h for one event kind.
func (b *Bus) Subscribe(kind Kind, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.byKind[kind] = append(b.byKind[kind], h)
}

// SubscribeAll registers h for every event kind.
func (b *Bus) SubscribeAll(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.all = append(b.all, h)
}

// Publish hands e to every matching subscriber and returns immediately. The request context's
// cancellation is detached so a finished HTTP request does not abort delivery.
func (b *Bus) Publish(ctx context.Context, e Event) {
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.all)+len(b.byKind[e.Kind]))
	handlers = append(handlers, b.byKind[e.Kind]...)
	handlers = append(handlers, b.all...)
	b.mu.RUnlock()

	detached := context.WithoutCancel(ctx)
	for _, h := range handlers {
		h := h
		b.wg.Add(1)
		err := b.pool.Submit(func() {
			defer b.wg.Done()
			if err := h(detached, e); err != nil {
				b.log.Warn("event subscriber failed", "kind", e.Kind, "quotation_id", e.QuotationID, "error", err)
			}
		})
		if err != nil {
			b.wg.Done()
			b.log.Warn("event dropped", "kind", e.Kind, "quotation_id", e.QuotationID, "error", err)
		}
	}
}

// Wait blocks until every submitted delivery has finished.
func (b *Bus) Wait() {
	b.wg.Wait()
}

// Close waits for in-flight deliveries and releases the pool.
func (b *Bus) Close() {
	b.wg.Wait()
	b.pool.Release()
}
