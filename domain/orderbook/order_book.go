package orderbook

import "errors"

var (
	// ErrWrongSymbol is returned when an order targets a different
	// instrument than the book manages.
	ErrWrongSymbol = errors.New("orderbook: wrong symbol")
	// ErrDuplicateOrder is returned when an order id is already resting.
	ErrDuplicateOrder = errors.New("orderbook: duplicate order id")
)

// DepthLevel is one aggregated row of a depth snapshot.
type DepthLevel struct {
	Price  int64 `json:"price"`
	Qty    int64 `json:"qty"`
	Orders int   `json:"orders"`
}

// Quote is one side of the top of book.
type Quote struct {
	Price int64 `json:"price"`
	Qty   int64 `json:"qty"`
}

// TopOfBook carries the best level of each side; either may be absent.
type TopOfBook struct {
	Bid *Quote `json:"bid,omitempty"`
	Ask *Quote `json:"ask,omitempty"`
}

// OrderBook keeps the two price-ordered sides for one instrument plus an
// id index for O(1) cancels. It is single-writer: the matching engine
// goroutine holds exclusive write access for the book's entire lifetime,
// so no locks are taken anywhere on the hot path.
type OrderBook struct {
	symbol string
	bids   *levelTree
	asks   *levelTree

	// orders tracks every resting order by id: at most one copy per id.
	orders map[uint64]*Order

	seq uint64
}

// NewOrderBook creates an empty book for one instrument.
func NewOrderBook(symbol string) *OrderBook {
	return &OrderBook{
		symbol: symbol,
		bids:   newLevelTree(),
		asks:   newLevelTree(),
		orders: make(map[uint64]*Order),
	}
}

func (b *OrderBook) Symbol() string { return b.symbol }

// LastSeq returns the sequence number most recently assigned on admission.
func (b *OrderBook) LastSeq() uint64 { return b.seq }

// Add admits a resting order: assigns its sequence number, upserts the
// price level on the order's side and appends in time priority.
func (b *OrderBook) Add(o *Order) error {
	if o.Symbol != b.symbol {
		return ErrWrongSymbol
	}
	if _, exists := b.orders[o.ID]; exists {
		return ErrDuplicateOrder
	}

	b.seq++
	o.Seq = b.seq

	if o.Side == Buy {
		b.bids.upsert(o.Price).Enqueue(o)
	} else {
		b.asks.upsert(o.Price).Enqueue(o)
	}
	b.orders[o.ID] = o
	return nil
}

// Cancel removes the order with the given id from whichever side holds it
// and marks it CANCELLED. Unknown ids, filled orders, and repeated cancels
// all return false.
func (b *OrderBook) Cancel(id uint64) bool {
	o, ok := b.orders[id]
	if !ok {
		return false
	}
	o.SetStatus(StatusCancelled)
	b.unlink(o)
	return true
}

// Remove drops a fully-filled order from its level; the matcher already
// drained the level's TotalQty via ApplyFill.
func (b *OrderBook) Remove(o *Order) bool {
	if _, ok := b.orders[o.ID]; !ok {
		return false
	}
	b.unlink(o)
	return true
}

func (b *OrderBook) unlink(o *Order) {
	side := b.bids
	if o.Side == Sell {
		side = b.asks
	}
	if lvl := side.find(o.Price); lvl != nil {
		lvl.Remove(o.ID)
		if lvl.IsEmpty() {
			side.remove(lvl.Price)
		}
	}
	delete(b.orders, o.ID)
}

// Lookup returns the resting order for id, nil if not in the book.
func (b *OrderBook) Lookup(id uint64) *Order {
	return b.orders[id]
}

// BestBid returns the highest bid price.
func (b *OrderBook) BestBid() (int64, bool) {
	lvl := b.bids.max()
	if lvl == nil {
		return 0, false
	}
	return lvl.Price, true
}

// BestAsk returns the lowest ask price.
func (b *OrderBook) BestAsk() (int64, bool) {
	lvl := b.asks.min()
	if lvl == nil {
		return 0, false
	}
	return lvl.Price, true
}

// Spread is best ask minus best bid, defined only when both sides quote.
func (b *OrderBook) Spread() (int64, bool) {
	bid, okBid := b.BestBid()
	ask, okAsk := b.BestAsk()
	if !okBid || !okAsk {
		return 0, false
	}
	return ask - bid, true
}

// MidPrice is the arithmetic midpoint of the touch, as a fractional value.
func (b *OrderBook) MidPrice() (float64, bool) {
	bid, okBid := b.BestBid()
	ask, okAsk := b.BestAsk()
	if !okBid || !okAsk {
		return 0, false
	}
	return float64(bid+ask) / 2.0, true
}

// TopOfBook reports the best level of each side independently.
func (b *OrderBook) TopOfBook() TopOfBook {
	var top TopOfBook
	if lvl := b.bids.max(); lvl != nil {
		top.Bid = &Quote{Price: lvl.Price, Qty: lvl.TotalQty}
	}
	if lvl := b.asks.min(); lvl != nil {
		top.Ask = &Quote{Price: lvl.Price, Qty: lvl.TotalQty}
	}
	return top
}

// BidDepth returns up to max levels of the bid side, best first
// (descending price).
func (b *OrderBook) BidDepth(max int) []DepthLevel {
	if max <= 0 {
		return []DepthLevel{}
	}
	depth := make([]DepthLevel, 0, max)
	b.bids.descend(func(lvl *PriceLevel) bool {
		depth = append(depth, DepthLevel{Price: lvl.Price, Qty: lvl.TotalQty, Orders: lvl.OrderCount})
		return len(depth) < max
	})
	return depth
}

// AskDepth returns up to max levels of the ask side, best first
// (ascending price).
func (b *OrderBook) AskDepth(max int) []DepthLevel {
	if max <= 0 {
		return []DepthLevel{}
	}
	depth := make([]DepthLevel, 0, max)
	b.asks.ascend(func(lvl *PriceLevel) bool {
		depth = append(depth, DepthLevel{Price: lvl.Price, Qty: lvl.TotalQty, Orders: lvl.OrderCount})
		return len(depth) < max
	})
	return depth
}

// BestBidLevel exposes the best bid level to the matcher. Single-consumer.
func (b *OrderBook) BestBidLevel() *PriceLevel {
	return b.bids.max()
}

// BestAskLevel exposes the best ask level to the matcher. Single-consumer.
func (b *OrderBook) BestAskLevel() *PriceLevel {
	return b.asks.min()
}

func (b *OrderBook) BidLevels() int { return b.bids.len() }
func (b *OrderBook) AskLevels() int { return b.asks.len() }

// LiveOrders is the number of resting orders across both sides.
func (b *OrderBook) LiveOrders() int { return len(b.orders) }

// WalkBids visits bid levels best-to-worst (descending price).
func (b *OrderBook) WalkBids(fn func(*PriceLevel) bool) {
	b.bids.descend(fn)
}

// WalkAsks visits ask levels best-to-worst (ascending price).
func (b *OrderBook) WalkAsks(fn func(*PriceLevel) bool) {
	b.asks.ascend(fn)
}

// Clear drops all state. Used when rebuilding from the log at boot.
func (b *OrderBook) Clear() {
	b.bids.clear()
	b.asks.clear()
	b.orders = make(map[uint64]*Order)
	b.seq = 0
}
