package exit

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/cockroachdb/pebble"
)

// -------------------- State --------------------

type ExitState uint8

const (
	StateNew ExitState = iota
	StateSent
	StateAcked
	StateFailed
)

func (s ExitState) String() string {
	switch s {
	case StateNew:
		return "NEW"
	case StateSent:
		return "SENT"
	case StateAcked:
		return "ACKED"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// -------------------- Record --------------------

// ExitRecord is one outbox entry. Payload is the serialized trade so a
// restarted broadcaster can publish without consulting the engine.
type ExitRecord struct {
	State       ExitState
	Retries     uint32
	LastAttempt int64
	Payload     []byte
}

// binary encoding: [state:1][retries:4][lastAttempt:8][payload]
func encodeRecord(r ExitRecord) []byte {
	buf := make([]byte, 1+4+8+len(r.Payload))
	buf[0] = byte(r.State)
	binary.BigEndian.PutUint32(buf[1:5], r.Retries)
	binary.BigEndian.PutUint64(buf[5:13], uint64(r.LastAttempt))
	copy(buf[13:], r.Payload)
	return buf
}

func decodeRecord(b []byte) (ExitRecord, error) {
	if len(b) < 13 {
		return ExitRecord{}, errors.New("invalid exit record length")
	}
	payload := make([]byte, len(b)-13)
	copy(payload, b[13:])
	return ExitRecord{
		State:       ExitState(b[0]),
		Retries:     binary.BigEndian.Uint32(b[1:5]),
		LastAttempt: int64(binary.BigEndian.Uint64(b[5:13])),
		Payload:     payload,
	}, nil
}

// -------------------- WAL --------------------

// ExitWAL is the durable trade outbox. Trades land here before any
// publish attempt so a crash between match and broadcast loses nothing.
type ExitWAL struct {
	db *pebble.DB
}

func Open(dir string) (*ExitWAL, error) {
	db, err := pebble.Open(dir, &pebble.Options{
		DisableWAL: false, // we WANT durability
	})
	if err != nil {
		return nil, err
	}
	return &ExitWAL{db: db}, nil
}

func (w *ExitWAL) Close() error {
	return w.db.Close()
}

// -------------------- API --------------------

// PutNew inserts a fresh outbox entry for a trade.
func (w *ExitWAL) PutNew(tradeID uint64, payload []byte) error {
	key := keyFor(tradeID)
	rec := ExitRecord{
		State:       StateNew,
		Retries:     0,
		LastAttempt: 0,
		Payload:     payload,
	}
	return w.db.Set(key, encodeRecord(rec), pebble.Sync)
}

// UpdateState moves a trade through the send / ack / failure lifecycle
// while preserving its payload.
func (w *ExitWAL) UpdateState(
	tradeID uint64,
	state ExitState,
	retries uint32,
) error {
	rec, err := w.Get(tradeID)
	if err != nil {
		return err
	}
	rec.State = state
	rec.Retries = retries
	rec.LastAttempt = time.Now().UnixNano()
	return w.db.Set(keyFor(tradeID), encodeRecord(rec), pebble.Sync)
}

// Delete removes ACKED records (cleanup).
func (w *ExitWAL) Delete(tradeID uint64) error {
	return w.db.Delete(keyFor(tradeID), pebble.Sync)
}

// Get returns the current record for a trade.
func (w *ExitWAL) Get(tradeID uint64) (ExitRecord, error) {
	val, closer, err := w.db.Get(keyFor(tradeID))
	if err != nil {
		return ExitRecord{}, err
	}
	defer closer.Close()

	return decodeRecord(val)
}

// -------------------- Scan --------------------

// ScanByState iterates all records in the given state in trade id
// order. The broadcaster drives retries off this.
func (w *ExitWAL) ScanByState(
	state ExitState,
	fn func(tradeID uint64, rec ExitRecord) error,
) error {
	iter, err := w.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte("trade/"),
		UpperBound: []byte("trade/~"),
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		key := iter.Key()
		val := iter.Value()

		rec, err := decodeRecord(val)
		if err != nil {
			return err
		}

		if rec.State != state {
			continue
		}

		id, err := parseKey(key)
		if err != nil {
			return err
		}

		if err := fn(id, rec); err != nil {
			return err
		}
	}
	return iter.Error()
}

// MaxTradeID returns the highest trade id in the outbox, or zero when
// empty. Recovery seeds the trade sequencer from it.
func (w *ExitWAL) MaxTradeID() (uint64, error) {
	iter, err := w.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte("trade/"),
		UpperBound: []byte("trade/~"),
	})
	if err != nil {
		return 0, err
	}
	defer iter.Close()

	if !iter.Last() {
		return 0, iter.Error()
	}
	return parseKey(iter.Key())
}

// -------------------- Helpers --------------------

func keyFor(tradeID uint64) []byte {
	return []byte(fmt.Sprintf("trade/%020d", tradeID))
}

func parseKey(b []byte) (uint64, error) {
	var id uint64
	_, err := fmt.Sscanf(string(bytes.TrimPrefix(b, []byte("trade/"))), "%d", &id)
	return id, err
}
