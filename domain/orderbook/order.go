package orderbook

import (
	"sync/atomic"
	"time"
)

// Side distinguishes the two halves of the book.
type Side int

// OrderType selects matching semantics for an incoming order.
type OrderType int

// Status tracks the execution lifecycle of an order.
type Status int32

const (
	Buy Side = iota
	Sell
)

const (
	Limit OrderType = iota
	Market
)

const (
	StatusNew Status = iota
	StatusPartiallyFilled
	StatusFilled
	StatusCancelled
	StatusRejected
)

func (s Side) String() string {
	if s == Buy {
		return "BUY"
	}
	return "SELL"
}

func (t OrderType) String() string {
	if t == Market {
		return "MARKET"
	}
	return "LIMIT"
}

func (s Status) String() string {
	switch s {
	case StatusNew:
		return "NEW"
	case StatusPartiallyFilled:
		return "PARTIALLY_FILLED"
	case StatusFilled:
		return "FILLED"
	case StatusCancelled:
		return "CANCELLED"
	case StatusRejected:
		return "REJECTED"
	default:
		return "UNKNOWN"
	}
}

// Terminal reports whether the status admits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusFilled || s == StatusCancelled || s == StatusRejected
}

var processStart = time.Now()

// NowMicros returns microseconds elapsed on the process-local monotonic
// clock. Values are never comparable across processes.
func NowMicros() int64 {
	return time.Since(processStart).Microseconds()
}

// Order is the domain entity flowing through the engine. Identity fields
// are set at construction and never change. Execution state (filled, status)
// is written only by the engine goroutine after submission; the atomic
// fields let the submitter poll both without synchronization.
type Order struct {
	ID        uint64
	Symbol    string
	Side      Side
	Type      OrderType
	Price     int64 // ticks; by convention 0 for market orders
	Qty       int64
	Timestamp int64 // monotonic micros at creation

	// Seq is assigned by the book on admission, strictly increasing
	// across all orders admitted to one book.
	Seq uint64

	filled atomic.Int64
	status atomic.Int32

	next *Order
	prev *Order
}

// NewOrder builds an order in status NEW with nothing filled.
func NewOrder(id uint64, symbol string, side Side, otype OrderType, price, qty int64) *Order {
	return &Order{
		ID:        id,
		Symbol:    symbol,
		Side:      side,
		Type:      otype,
		Price:     price,
		Qty:       qty,
		Timestamp: NowMicros(),
	}
}

func (o *Order) Filled() int64 {
	return o.filled.Load()
}

func (o *Order) Remaining() int64 {
	return o.Qty - o.filled.Load()
}

func (o *Order) Status() Status {
	return Status(o.status.Load())
}

// Active reports whether the order can still trade or rest.
func (o *Order) Active() bool {
	s := o.Status()
	return s == StatusNew || s == StatusPartiallyFilled
}

func (o *Order) IsFilled() bool {
	return o.filled.Load() == o.Qty
}

// AddFill records an execution of qty units and moves the status to
// FILLED or PARTIALLY_FILLED accordingly. Engine goroutine only.
func (o *Order) AddFill(qty int64) {
	filled := o.filled.Add(qty)
	if filled == o.Qty {
		o.status.Store(int32(StatusFilled))
	} else {
		o.status.Store(int32(StatusPartiallyFilled))
	}
}

// SetStatus transitions the order. Terminal states are sticky.
// Engine goroutine only.
func (o *Order) SetStatus(s Status) {
	if o.Status().Terminal() {
		return
	}
	o.status.Store(int32(s))
}

// Read-only traversal helpers for level FIFO walks.
func (o *Order) Next() *Order { return o.next }
func (o *Order) Prev() *Order { return o.prev }
