package engine

// Trade records one execution between an aggressive and a resting order.
// Immutable once emitted; ids are dense and strictly increasing per engine.
type Trade struct {
	ID          uint64 `json:"trade_id"`
	Symbol      string `json:"symbol"`
	BuyOrderID  uint64 `json:"buy_order_id"`
	SellOrderID uint64 `json:"sell_order_id"`
	Price       int64  `json:"price"`
	Qty         int64  `json:"qty"`
	Timestamp   int64  `json:"ts_micros"`
}
