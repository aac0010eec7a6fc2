package engine

import "heimdall/domain/orderbook"

// EventType tags the payload carried by an Event.
type EventType uint8

const (
	EventNewOrder EventType = iota
	EventCancelOrder
	EventReplaceOrder
	EventShutdown
)

func (t EventType) String() string {
	switch t {
	case EventNewOrder:
		return "NEW_ORDER"
	case EventCancelOrder:
		return "CANCEL_ORDER"
	case EventReplaceOrder:
		return "REPLACE_ORDER"
	case EventShutdown:
		return "SHUTDOWN"
	default:
		return "UNKNOWN"
	}
}

// Event is a submission-side command. Events are values; the order payload
// is shared with the submitter, which observes status transitions through
// the order's atomic fields.
type Event struct {
	Type EventType

	// Order is the payload for NEW_ORDER and the replacement for
	// REPLACE_ORDER.
	Order *orderbook.Order

	// CancelID targets CANCEL_ORDER and the old id of REPLACE_ORDER.
	CancelID uint64
}
