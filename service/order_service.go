package service

import (
	"errors"
	"sync"

	"go.uber.org/zap"

	"heimdall/domain/orderbook"
	"heimdall/engine"
	"heimdall/infra/sequence"
	walentry "heimdall/infra/wal/entry"
)

/*
OrderService is the only write entry point into the system.

The engine queue is single-producer; the service's mutex funnels
concurrent API callers into that contract and keeps the WAL append and
the queue push atomic with respect to each other, so the log order is
the matching order.
*/

var (
	ErrQueueFull   = errors.New("service: event queue full")
	ErrBadOrder    = errors.New("service: invalid order")
	ErrWrongSymbol = errors.New("service: wrong symbol")
)

type OrderService struct {
	mu     sync.Mutex
	engine *engine.Engine
	wal    *walentry.WAL
	ids    *sequence.Sequencer
	walSeq *sequence.Sequencer
	log    *zap.Logger
}

// NewOrderService wires all dependencies. ids issues order ids, walSeq
// issues log sequence numbers; Recover advances both past the replayed
// log.
func NewOrderService(
	eng *engine.Engine,
	w *walentry.WAL,
	ids *sequence.Sequencer,
	walSeq *sequence.Sequencer,
	log *zap.Logger,
) *OrderService {
	if log == nil {
		log = zap.NewNop()
	}
	return &OrderService{
		engine: eng,
		wal:    w,
		ids:    ids,
		walSeq: walSeq,
		log:    log,
	}
}

//
// ──────────────────────────────────────────────────────────
// Commands
// ──────────────────────────────────────────────────────────
//

// PlaceOrder validates, persists and submits a new order. The returned
// order carries the assigned id; its status fields update as the engine
// processes it.
func (s *OrderService) PlaceOrder(
	side orderbook.Side,
	otype orderbook.OrderType,
	price int64,
	qty int64,
) (*orderbook.Order, error) {
	if qty <= 0 {
		return nil, ErrBadOrder
	}
	if otype == orderbook.Limit && price <= 0 {
		return nil, ErrBadOrder
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	o := orderbook.NewOrder(s.ids.Next(), s.engine.Symbol(), side, otype, price, qty)

	if err := s.append(walentry.RecordPlace, encodeOrder(o)); err != nil {
		return nil, err
	}
	if !s.engine.Submit(o) {
		return nil, ErrQueueFull
	}
	return o, nil
}

// CancelOrder persists and submits a cancel for id. Unknown ids are
// accepted here and resolved to a no-op by the engine.
func (s *OrderService) CancelOrder(id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.append(walentry.RecordCancel, encodeCancel(id)); err != nil {
		return err
	}
	if !s.engine.Cancel(id) {
		return ErrQueueFull
	}
	return nil
}

// ReplaceOrder cancels oldID and submits a replacement in one event, so
// no other order can interleave between the two.
func (s *OrderService) ReplaceOrder(
	oldID uint64,
	side orderbook.Side,
	otype orderbook.OrderType,
	price int64,
	qty int64,
) (*orderbook.Order, error) {
	if qty <= 0 {
		return nil, ErrBadOrder
	}
	if otype == orderbook.Limit && price <= 0 {
		return nil, ErrBadOrder
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	o := orderbook.NewOrder(s.ids.Next(), s.engine.Symbol(), side, otype, price, qty)

	if err := s.append(walentry.RecordReplace, encodeReplace(oldID, o)); err != nil {
		return nil, err
	}
	if !s.engine.Replace(oldID, o) {
		return nil, ErrQueueFull
	}
	return o, nil
}

//
// ──────────────────────────────────────────────────────────
// Queries
// ──────────────────────────────────────────────────────────
//

// LookupOrder returns the live order with id, or nil. The returned
// order is read-only for the caller.
func (s *OrderService) LookupOrder(id uint64) *orderbook.Order {
	return s.engine.OrderBook().Lookup(id)
}

// Statistics mirrors the engine counters.
func (s *OrderService) Statistics() engine.Statistics {
	return s.engine.Statistics()
}

func (s *OrderService) append(t walentry.RecordType, payload []byte) error {
	if s.wal == nil {
		return nil
	}
	rec := walentry.NewRecord(t, s.walSeq.Next(), payload)
	if err := s.wal.Append(rec); err != nil {
		s.log.Error("wal append failed",
			zap.Uint64("seq", rec.Seq),
			zap.Error(err))
		return err
	}
	return nil
}
