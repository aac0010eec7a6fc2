package marketdata

import (
	"heimdall/domain/orderbook"
	"heimdall/engine"
)

// DefaultDepthLevels bounds depth snapshots when no limit is
// configured.
const DefaultDepthLevels = 10

// Publisher turns engine activity into market data updates and fans
// them out through a Hub. PublishTrade and PublishBook run on the
// engine goroutine, so they read the book without synchronization and
// must stay cheap; the hub's non-blocking broadcast keeps slow
// consumers from stalling matching.
type Publisher struct {
	symbol      string
	book        *orderbook.OrderBook
	hub         *Hub
	depthLevels int
}

func NewPublisher(book *orderbook.OrderBook, hub *Hub, depthLevels int) *Publisher {
	if depthLevels <= 0 {
		depthLevels = DefaultDepthLevels
	}
	return &Publisher{
		symbol:      book.Symbol(),
		book:        book,
		hub:         hub,
		depthLevels: depthLevels,
	}
}

// PublishTrade emits the execution itself.
func (p *Publisher) PublishTrade(t engine.Trade) {
	p.hub.Broadcast(Update{
		V:         1,
		Type:      UpdateTrade,
		Symbol:    p.symbol,
		Timestamp: t.Timestamp,
		Trade:     &t,
	})
}

// PublishBook emits the current top of book followed by a bounded depth
// snapshot. Called after each processed event.
func (p *Publisher) PublishBook() {
	now := orderbook.NowMicros()
	top := p.book.TopOfBook()
	p.hub.Broadcast(Update{
		V:         1,
		Type:      UpdateTopOfBook,
		Symbol:    p.symbol,
		Timestamp: now,
		TopOfBook: &top,
	})

	depth := Depth{
		Bids: p.book.BidDepth(p.depthLevels),
		Asks: p.book.AskDepth(p.depthLevels),
	}
	p.hub.Broadcast(Update{
		V:         1,
		Type:      UpdateDepthSnapshot,
		Symbol:    p.symbol,
		Timestamp: now,
		Depth:     &depth,
	})
}

// Snapshot builds a one-off depth view for request/response paths. It
// races benignly with the engine goroutine.
func (p *Publisher) Snapshot() Update {
	return Update{
		V:         1,
		Type:      UpdateDepthSnapshot,
		Symbol:    p.symbol,
		Timestamp: orderbook.NowMicros(),
		Depth: &Depth{
			Bids: p.book.BidDepth(p.depthLevels),
			Asks: p.book.AskDepth(p.depthLevels),
		},
	}
}

func (p *Publisher) Hub() *Hub {
	return p.hub
}
