package service

import (
	"fmt"

	"go.uber.org/zap"

	"heimdall/engine"
	"heimdall/infra/sequence"
	walentry "heimdall/infra/wal/entry"
)

// Recover rebuilds engine state by streaming the entry WAL through the
// engine's synchronous apply path, then advances the sequencers so
// fresh ids continue past everything replayed. Must run before Start.
func Recover(
	dir string,
	eng *engine.Engine,
	ids *sequence.Sequencer,
	walSeq *sequence.Sequencer,
	log *zap.Logger,
) error {
	if log == nil {
		log = zap.NewNop()
	}

	var maxOrderID uint64
	var records int

	lastSeq, err := walentry.Replay(dir, func(rec *walentry.Record) error {
		records++
		switch rec.Type {
		case walentry.RecordPlace:
			o, err := decodeOrder(rec.Data)
			if err != nil {
				return fmt.Errorf("seq %d: %w", rec.Seq, err)
			}
			if o.ID > maxOrderID {
				maxOrderID = o.ID
			}
			return eng.Apply(engine.Event{Type: engine.EventNewOrder, Order: o})

		case walentry.RecordCancel:
			id, err := decodeCancel(rec.Data)
			if err != nil {
				return fmt.Errorf("seq %d: %w", rec.Seq, err)
			}
			return eng.Apply(engine.Event{Type: engine.EventCancelOrder, CancelID: id})

		case walentry.RecordReplace:
			oldID, o, err := decodeReplace(rec.Data)
			if err != nil {
				return fmt.Errorf("seq %d: %w", rec.Seq, err)
			}
			if o.ID > maxOrderID {
				maxOrderID = o.ID
			}
			return eng.Apply(engine.Event{Type: engine.EventReplaceOrder, Order: o, CancelID: oldID})

		default:
			return fmt.Errorf("seq %d: unknown record type %d", rec.Seq, rec.Type)
		}
	})
	if err != nil {
		return err
	}

	ids.Advance(maxOrderID)
	walSeq.Advance(lastSeq)

	log.Info("recovery complete",
		zap.Int("records", records),
		zap.Uint64("last_wal_seq", lastSeq),
		zap.Uint64("last_order_id", maxOrderID),
		zap.Int("live_orders", eng.OrderBook().LiveOrders()))
	return nil
}
