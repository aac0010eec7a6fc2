package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"heimdall/api/httpserver"
	"heimdall/domain/orderbook"
	"heimdall/engine"
	"heimdall/infra/kafka"
	"heimdall/infra/sequence"
	entrywal "heimdall/infra/wal/entry"
	exitwal "heimdall/infra/wal/exit"
	"heimdall/jobs/broadcaster"
	"heimdall/marketdata"
	"heimdall/pkg/config"
	"heimdall/pkg/logger"
	"heimdall/service"
)

func main() {
	cfg := config.MustLoad()

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	// ---------------- Entry WAL ----------------

	entryWAL, err := entrywal.Open(entrywal.Config{
		Dir:         cfg.WAL.EntryDir,
		SegmentSize: cfg.WAL.SegmentSize,
	})
	if err != nil {
		log.Fatal("entry WAL init failed", zap.Error(err))
	}
	defer func() { _ = entryWAL.Close() }()

	// ---------------- Exit WAL ----------------

	exitWAL, err := exitwal.Open(cfg.WAL.ExitDir)
	if err != nil {
		log.Fatal("exit WAL init failed", zap.Error(err))
	}
	defer func() { _ = exitWAL.Close() }()

	// ---------------- Metrics ----------------

	registry := prometheus.NewRegistry()
	metrics := engine.NewMetrics(registry, cfg.Symbol)

	// ---------------- Market data ----------------

	hub := marketdata.NewHub()

	// ---------------- Engine ----------------

	eng := engine.New(cfg.Symbol,
		engine.WithQueueCapacity(cfg.QueueCapacity),
		engine.WithLogger(log.Named("engine")),
		engine.WithMetrics(metrics),
	)

	publisher := marketdata.NewPublisher(eng.OrderBook(), hub, cfg.DepthLevels)

	// ---------------- Recovery ----------------

	// Callbacks are attached after replay so recovered trades are not
	// written to the outbox or re-broadcast.
	ids := sequence.New(0)
	walSeq := sequence.New(0)

	if err := service.Recover(cfg.WAL.EntryDir, eng, ids, walSeq, log.Named("recovery")); err != nil {
		log.Fatal("WAL replay failed", zap.Error(err))
	}
	if maxTrade, err := exitWAL.MaxTradeID(); err == nil {
		eng.TradeSeq().Advance(maxTrade)
	}

	eng.SetCallbacks(
		func(t engine.Trade) {
			payload, err := json.Marshal(t)
			if err != nil {
				log.Error("marshal trade", zap.Uint64("trade_id", t.ID), zap.Error(err))
				return
			}
			if err := exitWAL.PutNew(t.ID, payload); err != nil {
				log.Error("outbox write failed", zap.Uint64("trade_id", t.ID), zap.Error(err))
			}
			publisher.PublishTrade(t)
		},
		func(o *orderbook.Order) {
			publisher.PublishBook()
		},
	)

	eng.Start()
	defer eng.Stop()

	// ---------------- Service ----------------

	svc := service.NewOrderService(eng, entryWAL, ids, walSeq, log.Named("service"))

	// ---------------- Background jobs ----------------

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if len(cfg.Kafka.Brokers) > 0 {
		bc, err := broadcaster.New(exitWAL, cfg.Kafka.Brokers, cfg.Kafka.TradeTopic, log.Named("broadcaster"))
		if err != nil {
			log.Fatal("broadcaster init failed", zap.Error(err))
		}
		defer func() { _ = bc.Close() }()
		bc.Start(ctx)

		producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.MarketDataTopic, kafka.WithSnappy())
		defer func() { _ = producer.Close() }()
		go marketdata.NewForwarder(producer, hub, log.Named("forwarder")).Run(ctx)
	}

	// ---------------- HTTP ----------------

	mux := http.NewServeMux()
	httpserver.New(svc, log.Named("api")).Register(mux)
	marketdata.NewServer(publisher, log.Named("marketdata")).Register(mux)
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: mux,
	}

	go func() {
		log.Info("server listening",
			zap.String("addr", cfg.ListenAddr),
			zap.String("symbol", cfg.Symbol))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("http server exited", zap.Error(err))
		}
	}()

	// ---------------- Shutdown ----------------

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
}
