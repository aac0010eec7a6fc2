package kafka

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
)

// Feed updates are small and consumers care about freshness, so the
// writer flushes quickly by default.
const defaultBatchTimeout = 10 * time.Millisecond

// Producer publishes keyed messages to one topic. Writes are
// synchronous and wait for all in-sync replicas.
type Producer struct {
	writer *kafka.Writer
}

// Option adjusts the underlying writer before first use.
type Option func(*kafka.Writer)

// WithBatching buffers up to size messages for at most timeout before
// flushing, trading latency for throughput.
func WithBatching(size int, timeout time.Duration) Option {
	return func(w *kafka.Writer) {
		w.BatchSize = size
		w.BatchTimeout = timeout
	}
}

// WithSnappy enables snappy compression on batches.
func WithSnappy() Option {
	return func(w *kafka.Writer) { w.Compression = kafka.Snappy }
}

func NewProducer(brokers []string, topic string, opts ...Option) *Producer {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: defaultBatchTimeout,
	}
	for _, opt := range opts {
		opt(w)
	}
	return &Producer{writer: w}
}

func (p *Producer) Send(ctx context.Context, key, value []byte) error {
	return p.writer.WriteMessages(ctx, kafka.Message{Key: key, Value: value})
}

func (p *Producer) Close() error {
	return p.writer.Close()
}
