package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"heimdall/domain/orderbook"
)

type capture struct {
	trades  []Trade
	updates []*orderbook.Order
}

func newTestEngine(t *testing.T) (*Engine, *capture) {
	t.Helper()
	c := &capture{}
	eng := New("HMD",
		WithQueueCapacity(1024),
		OnTrade(func(tr Trade) { c.trades = append(c.trades, tr) }),
		OnOrderUpdate(func(o *orderbook.Order) { c.updates = append(c.updates, o) }),
	)
	return eng, c
}

func limit(id uint64, side orderbook.Side, price, qty int64) *orderbook.Order {
	return orderbook.NewOrder(id, "HMD", side, orderbook.Limit, price, qty)
}

func market(id uint64, side orderbook.Side, qty int64) *orderbook.Order {
	return orderbook.NewOrder(id, "HMD", side, orderbook.Market, 0, qty)
}

func submit(t *testing.T, eng *Engine, o *orderbook.Order) {
	t.Helper()
	require.NoError(t, eng.Apply(Event{Type: EventNewOrder, Order: o}))
}

func cancel(t *testing.T, eng *Engine, id uint64) {
	t.Helper()
	require.NoError(t, eng.Apply(Event{Type: EventCancelOrder, CancelID: id}))
}

func TestSimpleCross(t *testing.T) {
	eng, c := newTestEngine(t)

	sell := limit(1, orderbook.Sell, 15000, 100)
	buy := limit(2, orderbook.Buy, 15000, 50)
	submit(t, eng, sell)
	submit(t, eng, buy)

	require.Len(t, c.trades, 1)
	tr := c.trades[0]
	require.Equal(t, int64(15000), tr.Price)
	require.Equal(t, int64(50), tr.Qty)
	require.Equal(t, uint64(2), tr.BuyOrderID)
	require.Equal(t, uint64(1), tr.SellOrderID)

	require.Equal(t, orderbook.StatusFilled, buy.Status())
	require.Equal(t, orderbook.StatusPartiallyFilled, sell.Status())
	require.Equal(t, int64(50), sell.Filled())

	lvl := eng.OrderBook().BestAskLevel()
	require.NotNil(t, lvl)
	require.Equal(t, int64(15000), lvl.Price)
	require.Equal(t, int64(50), lvl.TotalQty)
}

func TestPriceTimePriority(t *testing.T) {
	eng, c := newTestEngine(t)

	s1 := limit(1, orderbook.Sell, 15000, 100)
	s2 := limit(2, orderbook.Sell, 15000, 100)
	b3 := limit(3, orderbook.Buy, 15000, 150)
	submit(t, eng, s1)
	submit(t, eng, s2)
	submit(t, eng, b3)

	require.Len(t, c.trades, 2)
	require.Equal(t, uint64(1), c.trades[0].SellOrderID)
	require.Equal(t, int64(100), c.trades[0].Qty)
	require.Equal(t, uint64(2), c.trades[1].SellOrderID)
	require.Equal(t, int64(50), c.trades[1].Qty)

	require.Equal(t, orderbook.StatusFilled, s1.Status())
	require.Equal(t, orderbook.StatusPartiallyFilled, s2.Status())
	require.Equal(t, int64(50), s2.Remaining())
	require.Equal(t, orderbook.StatusFilled, b3.Status())
}

func TestMarketOrderFill(t *testing.T) {
	eng, c := newTestEngine(t)

	submit(t, eng, limit(1, orderbook.Sell, 15000, 100))
	buy := market(2, orderbook.Buy, 50)
	submit(t, eng, buy)

	require.Len(t, c.trades, 1)
	require.Equal(t, int64(15000), c.trades[0].Price)
	require.Equal(t, int64(50), c.trades[0].Qty)
	require.Equal(t, orderbook.StatusFilled, buy.Status())
}

func TestMarketOrderExhaustionRejected(t *testing.T) {
	eng, c := newTestEngine(t)

	buy := market(1, orderbook.Buy, 10)
	submit(t, eng, buy)

	require.Empty(t, c.trades)
	require.Equal(t, orderbook.StatusRejected, buy.Status())
	require.Equal(t, uint64(1), eng.Statistics().OrdersRejected)
}

func TestMarketOrderPartialThenRejected(t *testing.T) {
	eng, c := newTestEngine(t)

	submit(t, eng, limit(1, orderbook.Sell, 15000, 30))
	buy := market(2, orderbook.Buy, 100)
	submit(t, eng, buy)

	require.Len(t, c.trades, 1)
	require.Equal(t, int64(30), c.trades[0].Qty)
	require.Equal(t, orderbook.StatusRejected, buy.Status())
	require.Equal(t, int64(30), buy.Filled())
	require.Equal(t, 0, eng.OrderBook().LiveOrders())
}

func TestAggressorPriceImprovement(t *testing.T) {
	eng, c := newTestEngine(t)

	buy := limit(1, orderbook.Buy, 15000, 100)
	sell := limit(2, orderbook.Sell, 14995, 50)
	submit(t, eng, buy)
	submit(t, eng, sell)

	require.Len(t, c.trades, 1)
	require.Equal(t, int64(15000), c.trades[0].Price, "trade must print at the resting price")
	require.Equal(t, int64(50), c.trades[0].Qty)
	require.Equal(t, orderbook.StatusFilled, sell.Status())
	require.Equal(t, orderbook.StatusPartiallyFilled, buy.Status())
	require.Equal(t, int64(50), buy.Remaining())
}

func TestCancelLifecycle(t *testing.T) {
	eng, _ := newTestEngine(t)

	buy := limit(1, orderbook.Buy, 15000, 100)
	submit(t, eng, buy)
	cancel(t, eng, 1)

	if _, ok := eng.OrderBook().BestBid(); ok {
		t.Fatal("cancelled order still quoted")
	}
	require.Equal(t, orderbook.StatusCancelled, buy.Status())
	require.Equal(t, uint64(1), eng.Statistics().OrdersCancelled)

	// Second cancel of the same id is a no-op.
	cancel(t, eng, 1)
	require.Equal(t, uint64(1), eng.Statistics().OrdersCancelled)
}

func TestCancelUnknownIDIsNoop(t *testing.T) {
	eng, _ := newTestEngine(t)
	cancel(t, eng, 42)
	require.Zero(t, eng.Statistics().OrdersCancelled)
}

func TestSweepAcrossLevels(t *testing.T) {
	eng, c := newTestEngine(t)

	submit(t, eng, limit(1, orderbook.Sell, 15000, 50))
	submit(t, eng, limit(2, orderbook.Sell, 15010, 50))
	submit(t, eng, limit(3, orderbook.Sell, 15020, 50))

	buy := limit(4, orderbook.Buy, 15010, 120)
	submit(t, eng, buy)

	// Fills the two marketable levels, then rests the remainder at its
	// own limit.
	require.Len(t, c.trades, 2)
	require.Equal(t, int64(15000), c.trades[0].Price)
	require.Equal(t, int64(15010), c.trades[1].Price)
	require.Equal(t, int64(20), buy.Remaining())

	bid, ok := eng.OrderBook().BestBid()
	require.True(t, ok)
	require.Equal(t, int64(15010), bid)

	ask, ok := eng.OrderBook().BestAsk()
	require.True(t, ok)
	require.Equal(t, int64(15020), ask)
}

func TestBookNeverCrossed(t *testing.T) {
	eng, _ := newTestEngine(t)

	submit(t, eng, limit(1, orderbook.Sell, 15010, 10))
	submit(t, eng, limit(2, orderbook.Buy, 15000, 10))
	submit(t, eng, limit(3, orderbook.Buy, 15005, 10))
	submit(t, eng, limit(4, orderbook.Sell, 15002, 5))

	bid, okBid := eng.OrderBook().BestBid()
	ask, okAsk := eng.OrderBook().BestAsk()
	if okBid && okAsk && bid >= ask {
		t.Fatalf("book crossed: bid=%d ask=%d", bid, ask)
	}
}

func TestTradeIDsDense(t *testing.T) {
	eng, c := newTestEngine(t)

	for i := uint64(1); i <= 5; i++ {
		submit(t, eng, limit(i, orderbook.Sell, 15000, 10))
	}
	submit(t, eng, limit(6, orderbook.Buy, 15000, 50))

	require.Len(t, c.trades, 5)
	for i, tr := range c.trades {
		require.Equal(t, uint64(i+1), tr.ID, "trade ids must be dense from 1")
	}
}

func TestQuantityConservation(t *testing.T) {
	eng, c := newTestEngine(t)

	orders := []*orderbook.Order{
		limit(1, orderbook.Sell, 15000, 70),
		limit(2, orderbook.Sell, 15005, 30),
		limit(3, orderbook.Buy, 15005, 60),
		limit(4, orderbook.Buy, 15000, 80),
	}
	for _, o := range orders {
		submit(t, eng, o)
	}

	var traded int64
	for _, tr := range c.trades {
		traded += tr.Qty
	}
	for _, o := range orders {
		require.Equal(t, o.Qty, o.Filled()+o.Remaining(),
			"order %d: filled+remaining must equal qty", o.ID)
	}
	require.Equal(t, uint64(traded), eng.Statistics().TradedQty)
}

func TestReplaceIsCancelThenSubmit(t *testing.T) {
	eng, _ := newTestEngine(t)

	old := limit(1, orderbook.Buy, 15000, 100)
	submit(t, eng, old)

	repl := limit(2, orderbook.Buy, 15005, 50)
	require.NoError(t, eng.Apply(Event{Type: EventReplaceOrder, Order: repl, CancelID: 1}))

	require.Equal(t, orderbook.StatusCancelled, old.Status())
	bid, ok := eng.OrderBook().BestBid()
	require.True(t, ok)
	require.Equal(t, int64(15005), bid)
	require.Equal(t, repl, eng.OrderBook().Lookup(2))
}

func TestReplaceDoesNotSelfMatch(t *testing.T) {
	eng, c := newTestEngine(t)

	submit(t, eng, limit(1, orderbook.Sell, 15010, 50))
	// Replacement crosses the old order's side but not itself: the old
	// order is gone before the new one matches.
	require.NoError(t, eng.Apply(Event{
		Type:     EventReplaceOrder,
		Order:    limit(2, orderbook.Buy, 15010, 50),
		CancelID: 1,
	}))

	require.Empty(t, c.trades)
	require.Equal(t, 1, eng.OrderBook().LiveOrders())
}

func TestApplyRejectedWhileRunning(t *testing.T) {
	eng, _ := newTestEngine(t)
	eng.Start()
	defer eng.Stop()

	err := eng.Apply(Event{Type: EventNewOrder, Order: limit(1, orderbook.Buy, 100, 10)})
	require.ErrorIs(t, err, ErrEngineRunning)
}

func TestSubmitValidation(t *testing.T) {
	eng, _ := newTestEngine(t)
	require.False(t, eng.Submit(nil))
	require.False(t, eng.Submit(orderbook.NewOrder(1, "OTHER", orderbook.Buy, orderbook.Limit, 100, 10)))
}

func TestCallbackPanicIsolated(t *testing.T) {
	eng := New("HMD",
		OnTrade(func(Trade) { panic("boom") }),
	)
	submit(t, eng, limit(1, orderbook.Sell, 15000, 10))
	submit(t, eng, limit(2, orderbook.Buy, 15000, 10))

	// The panic is recovered; matching completed regardless.
	require.Equal(t, uint64(1), eng.Statistics().TradesExecuted)
	require.Equal(t, 0, eng.OrderBook().LiveOrders())
}

// End-to-end through the ring: the producer submits, the engine
// goroutine matches, and Stop returns only after every queued event has
// been processed.
func TestStartStopDrains(t *testing.T) {
	var trades int
	eng := New("HMD",
		WithQueueCapacity(4096),
		OnTrade(func(Trade) { trades++ }),
	)
	eng.Start()

	const pairs = 500
	id := uint64(0)
	for i := 0; i < pairs; i++ {
		id++
		for !eng.Submit(limit(id, orderbook.Sell, 15000, 10)) {
		}
		id++
		for !eng.Submit(limit(id, orderbook.Buy, 15000, 10)) {
		}
	}

	eng.Stop()

	require.Equal(t, pairs, trades)
	require.Equal(t, uint64(2*pairs), eng.Statistics().OrdersProcessed)
	require.Equal(t, 0, eng.OrderBook().LiveOrders())
	require.True(t, eng.QueueDepth() == 0)
}

func TestStopIsIdempotent(t *testing.T) {
	eng, _ := newTestEngine(t)
	eng.Start()
	eng.Stop()
	eng.Stop()

	// Restart works after a full stop.
	eng.Start()
	require.True(t, eng.Running())
	eng.Stop()
	require.False(t, eng.Running())
}

func TestSubmitterSeesStatusWithoutLocks(t *testing.T) {
	eng, _ := newTestEngine(t)
	eng.Start()
	defer eng.Stop()

	sell := limit(1, orderbook.Sell, 15000, 10)
	buy := limit(2, orderbook.Buy, 15000, 10)
	require.True(t, eng.Submit(sell))
	require.True(t, eng.Submit(buy))

	deadline := time.After(2 * time.Second)
	for buy.Status() != orderbook.StatusFilled {
		select {
		case <-deadline:
			t.Fatalf("buy never filled: status=%v", buy.Status())
		default:
			time.Sleep(time.Millisecond)
		}
	}
	require.Equal(t, orderbook.StatusFilled, sell.Status())
}
