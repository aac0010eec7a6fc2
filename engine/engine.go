package engine

import (
	"errors"
	"runtime"
	"sync/atomic"

	"go.uber.org/zap"

	"heimdall/domain/orderbook"
	"heimdall/infra/sequence"
)

// TradeCallback receives each execution as it happens. It runs on the
// engine goroutine; a slow callback stalls matching.
type TradeCallback func(Trade)

// OrderUpdateCallback receives the aggressive order after matching
// completes, whatever its final status, and also each resting order that
// fills completely and each order removed by a cancel. Runs on the engine
// goroutine.
type OrderUpdateCallback func(*orderbook.Order)

// Statistics is a plain snapshot of engine counters. Fields are written
// only by the engine goroutine; readers on other goroutines may observe
// slightly stale values.
type Statistics struct {
	OrdersProcessed uint64
	TradesExecuted  uint64
	OrdersCancelled uint64
	OrdersRejected  uint64
	TradedQty       uint64
}

// ErrEngineRunning is returned by Apply when the engine loop is live.
var ErrEngineRunning = errors.New("engine: apply while running")

// Engine owns one symbol's book and consumes the event queue on a single
// goroutine. All mutation of the book happens on that goroutine; the
// submission side only pushes events and reads atomics.
type Engine struct {
	symbol string
	book   *orderbook.OrderBook
	queue  *EventQueue

	running atomic.Bool
	done    chan struct{}

	tradeSeq *sequence.Sequencer

	onTrade       TradeCallback
	onOrderUpdate OrderUpdateCallback

	stats   Statistics
	log     *zap.Logger
	metrics *Metrics
}

// Option configures an Engine at construction.
type Option func(*Engine)

// WithQueueCapacity sets the event ring size. Rounded up to a power of
// two; zero keeps the default.
func WithQueueCapacity(n uint64) Option {
	return func(e *Engine) { e.queue = NewEventQueue(n) }
}

// WithLogger attaches a structured logger. Default is a nop logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithMetrics attaches Prometheus collectors.
func WithMetrics(m *Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithTradeSequencer overrides the trade id source. Used after WAL
// replay so fresh ids continue the recovered stream.
func WithTradeSequencer(s *sequence.Sequencer) Option {
	return func(e *Engine) { e.tradeSeq = s }
}

// OnTrade registers the execution callback.
func OnTrade(cb TradeCallback) Option {
	return func(e *Engine) { e.onTrade = cb }
}

// OnOrderUpdate registers the order status callback.
func OnOrderUpdate(cb OrderUpdateCallback) Option {
	return func(e *Engine) { e.onOrderUpdate = cb }
}

// SetCallbacks installs or swaps the callbacks. Only legal while the
// engine is stopped; recovery replays with callbacks unset so replayed
// activity is not re-published.
func (e *Engine) SetCallbacks(onTrade TradeCallback, onOrderUpdate OrderUpdateCallback) {
	if e.running.Load() {
		return
	}
	e.onTrade = onTrade
	e.onOrderUpdate = onOrderUpdate
}

// New builds an engine for symbol. The engine is idle until Start.
func New(symbol string, opts ...Option) *Engine {
	e := &Engine{
		symbol:   symbol,
		book:     orderbook.NewOrderBook(symbol),
		tradeSeq: sequence.New(0),
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.queue == nil {
		e.queue = NewEventQueue(DefaultQueueCapacity)
	}
	return e
}

// Start launches the consumer goroutine. Calling Start on a running
// engine is a no-op.
func (e *Engine) Start() {
	if !e.running.CompareAndSwap(false, true) {
		return
	}
	e.done = make(chan struct{})
	go e.run()
	e.log.Info("engine started",
		zap.String("symbol", e.symbol),
		zap.Int("queue_capacity", e.queue.Cap()))
}

// Stop flips the running flag, nudges the consumer with a shutdown
// sentinel and blocks until the queue is drained and the loop exits.
func (e *Engine) Stop() {
	if !e.running.CompareAndSwap(true, false) {
		return
	}
	e.queue.Push(Event{Type: EventShutdown})
	<-e.done
	e.log.Info("engine stopped",
		zap.String("symbol", e.symbol),
		zap.Uint64("orders_processed", e.stats.OrdersProcessed),
		zap.Uint64("trades_executed", e.stats.TradesExecuted))
}

// Running reports whether the consumer loop is live.
func (e *Engine) Running() bool {
	return e.running.Load()
}

// Submit enqueues a new order. Returns false when the order is nil, is
// for another symbol, or the ring is full; the caller decides whether
// to retry or shed.
func (e *Engine) Submit(o *orderbook.Order) bool {
	if o == nil || o.Symbol != e.symbol {
		return false
	}
	return e.queue.Push(Event{Type: EventNewOrder, Order: o})
}

// Cancel enqueues a cancel for id. False means the ring was full, not
// that the order is unknown.
func (e *Engine) Cancel(id uint64) bool {
	return e.queue.Push(Event{Type: EventCancelOrder, CancelID: id})
}

// Replace enqueues an atomic cancel-then-submit: oldID is removed and o
// is matched as a fresh order in the same event, with no interleaving.
func (e *Engine) Replace(oldID uint64, o *orderbook.Order) bool {
	if o == nil || o.Symbol != e.symbol {
		return false
	}
	return e.queue.Push(Event{Type: EventReplaceOrder, Order: o, CancelID: oldID})
}

// Apply processes one event synchronously on the caller's goroutine.
// Only legal before Start; WAL replay uses it to rebuild state through
// the exact matching path.
func (e *Engine) Apply(ev Event) error {
	if e.running.Load() {
		return ErrEngineRunning
	}
	e.process(ev)
	return nil
}

// OrderBook exposes the book for read-side queries. Depth and
// top-of-book reads race benignly with the engine goroutine; callers
// needing a consistent view snapshot from the market data feed instead.
func (e *Engine) OrderBook() *orderbook.OrderBook {
	return e.book
}

// Symbol returns the instrument this engine serves.
func (e *Engine) Symbol() string {
	return e.symbol
}

// Statistics returns a copy of the engine counters.
func (e *Engine) Statistics() Statistics {
	return e.stats
}

// QueueDepth reports events waiting in the ring.
func (e *Engine) QueueDepth() int {
	return e.queue.Len()
}

// TradeSeq exposes the trade id sequencer for replay wiring.
func (e *Engine) TradeSeq() *sequence.Sequencer {
	return e.tradeSeq
}

func (e *Engine) run() {
	defer close(e.done)
	for e.running.Load() || !e.queue.IsEmpty() {
		ev, ok := e.queue.Pop()
		if !ok {
			runtime.Gosched()
			continue
		}
		e.process(ev)
		if e.metrics != nil {
			e.metrics.queueDepth.Set(float64(e.queue.Len()))
			e.metrics.observeBook(e.book)
		}
	}
}

func (e *Engine) process(ev Event) {
	switch ev.Type {
	case EventNewOrder:
		e.processNew(ev.Order)
	case EventCancelOrder:
		e.processCancel(ev.CancelID)
	case EventReplaceOrder:
		e.processCancel(ev.CancelID)
		e.processNew(ev.Order)
	case EventShutdown:
		// Sentinel only; the loop condition does the work.
	default:
		e.log.Warn("unknown event type", zap.Uint8("type", uint8(ev.Type)))
	}
}

func (e *Engine) processNew(o *orderbook.Order) {
	if o == nil {
		return
	}
	e.stats.OrdersProcessed++
	if e.metrics != nil {
		e.metrics.ordersProcessed.Inc()
	}

	switch o.Type {
	case orderbook.Market:
		e.matchMarket(o)
	default:
		e.matchLimit(o)
	}
	e.emitOrderUpdate(o)
}

func (e *Engine) processCancel(id uint64) {
	o := e.book.Lookup(id)
	if o == nil || !e.book.Cancel(id) {
		return
	}
	e.stats.OrdersCancelled++
	if e.metrics != nil {
		e.metrics.ordersCancelled.Inc()
	}
	e.emitOrderUpdate(o)
}

// matchLimit sweeps marketable liquidity, then rests any remainder.
func (e *Engine) matchLimit(o *orderbook.Order) {
	for o.Remaining() > 0 {
		if !e.matchStep(o) {
			break
		}
	}
	if o.Remaining() > 0 && o.Active() {
		if err := e.book.Add(o); err != nil {
			o.SetStatus(orderbook.StatusRejected)
			e.reject(o, err)
		}
	}
}

// matchMarket sweeps until filled or the far side is exhausted; any
// remainder is rejected rather than rested.
func (e *Engine) matchMarket(o *orderbook.Order) {
	for o.Remaining() > 0 {
		if !e.matchStep(o) {
			break
		}
	}
	if o.Remaining() > 0 {
		o.SetStatus(orderbook.StatusRejected)
		e.reject(o, nil)
	}
}

// matchStep executes at most one fill against the best opposing level.
// Trades print at the resting price. Returns false when nothing on the
// far side is marketable.
func (e *Engine) matchStep(o *orderbook.Order) bool {
	var lvl *orderbook.PriceLevel
	if o.Side == orderbook.Buy {
		lvl = e.book.BestAskLevel()
	} else {
		lvl = e.book.BestBidLevel()
	}
	if lvl == nil {
		return false
	}
	if o.Type == orderbook.Limit {
		if o.Side == orderbook.Buy && lvl.Price > o.Price {
			return false
		}
		if o.Side == orderbook.Sell && lvl.Price < o.Price {
			return false
		}
	}

	resting := lvl.Front()
	if resting == nil {
		return false
	}

	qty := min(o.Remaining(), resting.Remaining())
	price := lvl.Price

	o.AddFill(qty)
	resting.AddFill(qty)
	lvl.ApplyFill(qty)

	e.recordTrade(o, resting, price, qty)

	if resting.IsFilled() {
		e.book.Remove(resting)
		e.emitOrderUpdate(resting)
	}
	return true
}

func (e *Engine) recordTrade(aggressive, resting *orderbook.Order, price, qty int64) {
	t := Trade{
		ID:        e.tradeSeq.Next(),
		Symbol:    e.symbol,
		Price:     price,
		Qty:       qty,
		Timestamp: orderbook.NowMicros(),
	}
	if aggressive.Side == orderbook.Buy {
		t.BuyOrderID = aggressive.ID
		t.SellOrderID = resting.ID
	} else {
		t.BuyOrderID = resting.ID
		t.SellOrderID = aggressive.ID
	}

	e.stats.TradesExecuted++
	e.stats.TradedQty += uint64(qty)
	if e.metrics != nil {
		e.metrics.tradesExecuted.Inc()
		e.metrics.tradedQty.Add(float64(qty))
	}
	e.emitTrade(t)
}

func (e *Engine) reject(o *orderbook.Order, err error) {
	e.stats.OrdersRejected++
	if e.metrics != nil {
		e.metrics.ordersRejected.Inc()
	}
	fields := []zap.Field{
		zap.Uint64("order_id", o.ID),
		zap.String("side", o.Side.String()),
		zap.Int64("remaining", o.Remaining()),
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	e.log.Debug("order rejected", fields...)
}

func (e *Engine) emitTrade(t Trade) {
	if e.onTrade == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("trade callback panic",
				zap.Uint64("trade_id", t.ID), zap.Any("panic", r))
		}
	}()
	e.onTrade(t)
}

func (e *Engine) emitOrderUpdate(o *orderbook.Order) {
	if e.onOrderUpdate == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("order update callback panic",
				zap.Uint64("order_id", o.ID), zap.Any("panic", r))
		}
	}()
	e.onOrderUpdate(o)
}
