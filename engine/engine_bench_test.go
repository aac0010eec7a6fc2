package engine

import (
	"testing"

	"heimdall/domain/orderbook"
)

func BenchmarkQueuePushPop(b *testing.B) {
	q := NewEventQueue(1 << 12)
	ev := Event{Type: EventCancelOrder, CancelID: 1}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		q.Push(ev)
		q.Pop()
	}
}

func BenchmarkMatchCross(b *testing.B) {
	eng := New("HMD")
	id := uint64(0)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		id++
		sell := orderbook.NewOrder(id, "HMD", orderbook.Sell, orderbook.Limit, 15000, 10)
		_ = eng.Apply(Event{Type: EventNewOrder, Order: sell})
		id++
		buy := orderbook.NewOrder(id, "HMD", orderbook.Buy, orderbook.Limit, 15000, 10)
		_ = eng.Apply(Event{Type: EventNewOrder, Order: buy})
	}
}

func BenchmarkRestingInsertCancel(b *testing.B) {
	eng := New("HMD")
	id := uint64(0)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		id++
		o := orderbook.NewOrder(id, "HMD", orderbook.Buy, orderbook.Limit, int64(10000+i%256), 10)
		_ = eng.Apply(Event{Type: EventNewOrder, Order: o})
		_ = eng.Apply(Event{Type: EventCancelOrder, CancelID: id})
	}
}

func BenchmarkSubmitThroughRing(b *testing.B) {
	eng := New("HMD", WithQueueCapacity(1<<16))
	eng.Start()
	defer eng.Stop()

	id := uint64(0)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		id++
		side := orderbook.Sell
		if id%2 == 0 {
			side = orderbook.Buy
		}
		o := orderbook.NewOrder(id, "HMD", side, orderbook.Limit, 15000, 10)
		for !eng.Submit(o) {
		}
	}
}
