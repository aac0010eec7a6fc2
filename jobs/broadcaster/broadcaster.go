package broadcaster

import (
	"context"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	exitwal "heimdall/infra/wal/exit"
)

const pollInterval = 250 * time.Millisecond

// maxRetries caps delivery attempts before a trade is parked FAILED for
// operator attention.
const maxRetries = 10

// Broadcaster drains the trade outbox into Kafka. Trades move
// NEW -> SENT -> ACKED; a send error leaves the record SENT so the next
// sweep retries it, and records that exhaust their retries go FAILED.
type Broadcaster struct {
	exitWAL  *exitwal.ExitWAL
	producer sarama.SyncProducer
	topic    string
	log      *zap.Logger
}

func New(
	exitWAL *exitwal.ExitWAL,
	brokers []string,
	topic string,
	log *zap.Logger,
) (*Broadcaster, error) {

	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 5

	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, err
	}

	if log == nil {
		log = zap.NewNop()
	}

	return &Broadcaster{
		exitWAL:  exitWAL,
		producer: producer,
		topic:    topic,
		log:      log,
	}, nil
}

// Start launches the poll loop. It returns immediately; the loop exits
// when ctx is cancelled.
func (b *Broadcaster) Start(ctx context.Context) {
	b.log.Info("broadcaster started", zap.String("topic", b.topic))

	go func() {
		ticker := time.NewTicker(pollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return

			case <-ticker.C:
				b.replayOnce()
			}
		}
	}()
}

func (b *Broadcaster) replayOnce() {
	b.sweep(exitwal.StateNew)
	b.sweep(exitwal.StateSent)
}

func (b *Broadcaster) sweep(state exitwal.ExitState) {
	err := b.exitWAL.ScanByState(state, func(tradeID uint64, rec exitwal.ExitRecord) error {
		if rec.Retries >= maxRetries {
			_ = b.exitWAL.UpdateState(tradeID, exitwal.StateFailed, rec.Retries)
			b.log.Error("trade delivery abandoned",
				zap.Uint64("trade_id", tradeID),
				zap.Uint32("retries", rec.Retries))
			return nil
		}

		// SENT before the send so a crash mid-publish re-delivers
		// rather than drops. Consumers must tolerate duplicates.
		if err := b.exitWAL.UpdateState(tradeID, exitwal.StateSent, rec.Retries+1); err != nil {
			return err
		}

		msg := &sarama.ProducerMessage{
			Topic: b.topic,
			Key:   sarama.StringEncoder(fmt.Sprintf("%d", tradeID)),
			Value: sarama.ByteEncoder(rec.Payload),
		}

		if _, _, err := b.producer.SendMessage(msg); err != nil {
			b.log.Warn("trade publish failed",
				zap.Uint64("trade_id", tradeID),
				zap.Error(err))
			return nil // retry next sweep
		}

		return b.exitWAL.UpdateState(tradeID, exitwal.StateAcked, rec.Retries+1)
	})
	if err != nil {
		b.log.Error("outbox sweep failed",
			zap.String("state", state.String()),
			zap.Error(err))
	}
}

func (b *Broadcaster) Close() error {
	return b.producer.Close()
}
