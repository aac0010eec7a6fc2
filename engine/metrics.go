package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exports engine activity to Prometheus. All counters are
// incremented on the engine goroutine; the client library handles the
// cross-thread reads.
type Metrics struct {
	ordersProcessed prometheus.Counter
	tradesExecuted  prometheus.Counter
	ordersCancelled prometheus.Counter
	ordersRejected  prometheus.Counter
	tradedQty       prometheus.Counter
	queueDepth      prometheus.Gauge
	bookLevels      *prometheus.GaugeVec
}

// NewMetrics registers the engine collectors with reg, labelled by symbol.
func NewMetrics(reg prometheus.Registerer, symbol string) *Metrics {
	f := promauto.With(reg)
	labels := prometheus.Labels{"symbol": symbol}

	return &Metrics{
		ordersProcessed: f.NewCounter(prometheus.CounterOpts{
			Name:        "heimdall_orders_processed_total",
			Help:        "Orders consumed from the event queue.",
			ConstLabels: labels,
		}),
		tradesExecuted: f.NewCounter(prometheus.CounterOpts{
			Name:        "heimdall_trades_executed_total",
			Help:        "Trades emitted by the matcher.",
			ConstLabels: labels,
		}),
		ordersCancelled: f.NewCounter(prometheus.CounterOpts{
			Name:        "heimdall_orders_cancelled_total",
			Help:        "Resting orders removed via cancel.",
			ConstLabels: labels,
		}),
		ordersRejected: f.NewCounter(prometheus.CounterOpts{
			Name:        "heimdall_orders_rejected_total",
			Help:        "Orders rejected by the matcher.",
			ConstLabels: labels,
		}),
		tradedQty: f.NewCounter(prometheus.CounterOpts{
			Name:        "heimdall_traded_qty_total",
			Help:        "Total quantity crossed.",
			ConstLabels: labels,
		}),
		queueDepth: f.NewGauge(prometheus.GaugeOpts{
			Name:        "heimdall_event_queue_depth",
			Help:        "Events waiting in the SPSC ring.",
			ConstLabels: labels,
		}),
		bookLevels: f.NewGaugeVec(prometheus.GaugeOpts{
			Name:        "heimdall_book_levels",
			Help:        "Price levels per side.",
			ConstLabels: labels,
		}, []string{"side"}),
	}
}

func (m *Metrics) observeBook(book interface {
	BidLevels() int
	AskLevels() int
}) {
	if m == nil {
		return
	}
	m.bookLevels.WithLabelValues("bid").Set(float64(book.BidLevels()))
	m.bookLevels.WithLabelValues("ask").Set(float64(book.AskLevels()))
}
