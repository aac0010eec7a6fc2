package service

import (
	"encoding/binary"
	"errors"
	"fmt"

	"heimdall/domain/orderbook"
)

// Wire formats for WAL payloads. Fixed header, symbol last so the
// decoder never guesses lengths.
//
//	order:  [id:8][side:1][type:1][price:8][qty:8][ts:8][symlen:2][symbol]
//	cancel: [id:8]
//	replace: [oldID:8][order payload]

const orderHeaderLen = 8 + 1 + 1 + 8 + 8 + 8 + 2

var errShortPayload = errors.New("short payload")

func encodeOrder(o *orderbook.Order) []byte {
	sym := []byte(o.Symbol)
	buf := make([]byte, orderHeaderLen+len(sym))
	binary.BigEndian.PutUint64(buf[0:8], o.ID)
	buf[8] = byte(o.Side)
	buf[9] = byte(o.Type)
	binary.BigEndian.PutUint64(buf[10:18], uint64(o.Price))
	binary.BigEndian.PutUint64(buf[18:26], uint64(o.Qty))
	binary.BigEndian.PutUint64(buf[26:34], uint64(o.Timestamp))
	binary.BigEndian.PutUint16(buf[34:36], uint16(len(sym)))
	copy(buf[36:], sym)
	return buf
}

func decodeOrder(b []byte) (*orderbook.Order, error) {
	if len(b) < orderHeaderLen {
		return nil, errShortPayload
	}
	symLen := int(binary.BigEndian.Uint16(b[34:36]))
	if len(b) != orderHeaderLen+symLen {
		return nil, fmt.Errorf("order payload length %d, want %d", len(b), orderHeaderLen+symLen)
	}

	o := orderbook.NewOrder(
		binary.BigEndian.Uint64(b[0:8]),
		string(b[36:36+symLen]),
		orderbook.Side(b[8]),
		orderbook.OrderType(b[9]),
		int64(binary.BigEndian.Uint64(b[10:18])),
		int64(binary.BigEndian.Uint64(b[18:26])),
	)
	o.Timestamp = int64(binary.BigEndian.Uint64(b[26:34]))
	return o, nil
}

func encodeCancel(id uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, id)
	return buf
}

func decodeCancel(b []byte) (uint64, error) {
	if len(b) != 8 {
		return 0, errShortPayload
	}
	return binary.BigEndian.Uint64(b), nil
}

func encodeReplace(oldID uint64, o *orderbook.Order) []byte {
	order := encodeOrder(o)
	buf := make([]byte, 8+len(order))
	binary.BigEndian.PutUint64(buf[0:8], oldID)
	copy(buf[8:], order)
	return buf
}

func decodeReplace(b []byte) (uint64, *orderbook.Order, error) {
	if len(b) < 8 {
		return 0, nil, errShortPayload
	}
	o, err := decodeOrder(b[8:])
	if err != nil {
		return 0, nil, err
	}
	return binary.BigEndian.Uint64(b[0:8]), o, nil
}
