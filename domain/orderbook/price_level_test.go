package orderbook

import "testing"

func level(price int64) *PriceLevel {
	return &PriceLevel{Price: price}
}

func TestLevelFIFO(t *testing.T) {
	lvl := level(100)
	a := NewOrder(1, "HMD", Buy, Limit, 100, 10)
	b := NewOrder(2, "HMD", Buy, Limit, 100, 20)
	c := NewOrder(3, "HMD", Buy, Limit, 100, 30)

	lvl.Enqueue(a)
	lvl.Enqueue(b)
	lvl.Enqueue(c)

	if lvl.Len() != 3 || lvl.TotalQty != 60 {
		t.Fatalf("len=%d total=%d", lvl.Len(), lvl.TotalQty)
	}

	want := []uint64{1, 2, 3}
	i := 0
	for o := lvl.Front(); o != nil; o = o.Next() {
		if o.ID != want[i] {
			t.Fatalf("position %d: got id %d, want %d", i, o.ID, want[i])
		}
		i++
	}
}

func TestLevelDuplicateEnqueueDropped(t *testing.T) {
	lvl := level(100)
	o := NewOrder(1, "HMD", Buy, Limit, 100, 10)
	lvl.Enqueue(o)
	lvl.Enqueue(o)
	if lvl.Len() != 1 || lvl.TotalQty != 10 {
		t.Fatalf("duplicate changed level: len=%d total=%d", lvl.Len(), lvl.TotalQty)
	}
}

func TestLevelRemoveMiddle(t *testing.T) {
	lvl := level(100)
	for i := uint64(1); i <= 3; i++ {
		lvl.Enqueue(NewOrder(i, "HMD", Buy, Limit, 100, 10))
	}

	if !lvl.Remove(2) {
		t.Fatal("remove reported not found")
	}
	if lvl.Remove(2) {
		t.Fatal("second remove should report not found")
	}
	if lvl.Len() != 2 || lvl.TotalQty != 20 {
		t.Fatalf("after remove: len=%d total=%d", lvl.Len(), lvl.TotalQty)
	}
	if lvl.Front().ID != 1 || lvl.Front().Next().ID != 3 {
		t.Fatal("FIFO order broken after middle removal")
	}
}

func TestLevelRemoveHeadAndTail(t *testing.T) {
	lvl := level(100)
	for i := uint64(1); i <= 3; i++ {
		lvl.Enqueue(NewOrder(i, "HMD", Buy, Limit, 100, 10))
	}

	lvl.Remove(1)
	lvl.Remove(3)
	if lvl.Front().ID != 2 || lvl.Front().Next() != nil {
		t.Fatal("head/tail removal left bad links")
	}

	lvl.Remove(2)
	if !lvl.IsEmpty() || lvl.TotalQty != 0 {
		t.Fatalf("empty level: total=%d", lvl.TotalQty)
	}
}

func TestLevelTotalQtyTracksRemaining(t *testing.T) {
	lvl := level(100)
	o := NewOrder(1, "HMD", Buy, Limit, 100, 50)
	lvl.Enqueue(o)

	o.AddFill(20)
	lvl.ApplyFill(20)
	if lvl.TotalQty != 30 {
		t.Fatalf("total after fill = %d, want 30", lvl.TotalQty)
	}

	// Cancel of a partially filled order removes only its remainder.
	lvl.Remove(1)
	if lvl.TotalQty != 0 {
		t.Fatalf("total after remove = %d, want 0", lvl.TotalQty)
	}
}
