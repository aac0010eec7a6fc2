package marketdata

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"heimdall/infra/kafka"
)

const forwarderBuffer = 256

// Forwarder mirrors the feed onto a Kafka topic for downstream systems
// that consume off-box. It is a hub subscriber like any websocket
// client, so backpressure drops updates instead of touching the engine.
type Forwarder struct {
	producer *kafka.Producer
	hub      *Hub
	log      *zap.Logger
}

func NewForwarder(producer *kafka.Producer, hub *Hub, log *zap.Logger) *Forwarder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Forwarder{producer: producer, hub: hub, log: log}
}

// Run consumes the feed until ctx is cancelled. Call in its own
// goroutine.
func (f *Forwarder) Run(ctx context.Context) {
	sub := f.hub.Subscribe(forwarderBuffer)
	defer f.hub.Unsubscribe(sub)

	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-sub.Updates():
			if !ok {
				return
			}
			f.forward(ctx, u)
		}
	}
}

func (f *Forwarder) forward(ctx context.Context, u Update) {
	value, err := json.Marshal(u)
	if err != nil {
		f.log.Error("marshal update", zap.Error(err))
		return
	}
	if err := f.producer.Send(ctx, []byte(u.Symbol), value); err != nil {
		f.log.Warn("market data publish failed",
			zap.String("type", string(u.Type)),
			zap.Error(err))
	}
}
