package orderbook

import "testing"

func TestOrderLifecycle(t *testing.T) {
	o := NewOrder(1, "HMD", Buy, Limit, 15000, 100)

	if o.Status() != StatusNew {
		t.Fatalf("new order status = %v", o.Status())
	}
	if o.Remaining() != 100 {
		t.Fatalf("remaining = %d, want 100", o.Remaining())
	}

	o.AddFill(40)
	if o.Status() != StatusPartiallyFilled || o.Remaining() != 60 {
		t.Fatalf("after partial fill: status=%v remaining=%d", o.Status(), o.Remaining())
	}

	o.AddFill(60)
	if o.Status() != StatusFilled || !o.IsFilled() {
		t.Fatalf("after full fill: status=%v", o.Status())
	}
}

func TestTerminalStatusSticky(t *testing.T) {
	o := NewOrder(2, "HMD", Sell, Limit, 15000, 10)
	o.SetStatus(StatusCancelled)
	o.SetStatus(StatusNew)
	if o.Status() != StatusCancelled {
		t.Fatalf("terminal status overwritten: %v", o.Status())
	}
}

func TestActiveStates(t *testing.T) {
	o := NewOrder(3, "HMD", Buy, Limit, 100, 10)
	if !o.Active() {
		t.Fatal("NEW order should be active")
	}
	o.AddFill(5)
	if !o.Active() {
		t.Fatal("PARTIALLY_FILLED order should be active")
	}
	o.SetStatus(StatusRejected)
	if o.Active() {
		t.Fatal("REJECTED order should not be active")
	}
}
