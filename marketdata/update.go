package marketdata

import (
	"heimdall/domain/orderbook"
	"heimdall/engine"
)

// UpdateType discriminates the payload of an Update.
type UpdateType string

const (
	UpdateTopOfBook     UpdateType = "TOP_OF_BOOK"
	UpdateDepthSnapshot UpdateType = "DEPTH_SNAPSHOT"
	UpdateTrade         UpdateType = "TRADE"
)

// Depth is a bounded view of both sides, best first.
type Depth struct {
	Bids []orderbook.DepthLevel `json:"bids"`
	Asks []orderbook.DepthLevel `json:"asks"`
}

// Update is one market data message. Exactly one of Trade, TopOfBook or
// Depth is set, matching Type.
type Update struct {
	V         int        `json:"v"`
	Type      UpdateType `json:"type"`
	Symbol    string     `json:"symbol"`
	Timestamp int64      `json:"ts_micros"`

	Trade     *engine.Trade        `json:"trade,omitempty"`
	TopOfBook *orderbook.TopOfBook `json:"top_of_book,omitempty"`
	Depth     *Depth               `json:"depth,omitempty"`
}
