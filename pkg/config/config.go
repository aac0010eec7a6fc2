package config

import (
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds the configuration for the matching server.
type Config struct {
	Symbol        string `env:"SYMBOL" envDefault:"HMD"`
	QueueCapacity uint64 `env:"QUEUE_CAPACITY" envDefault:"65536"`
	DepthLevels   int    `env:"DEPTH_LEVELS" envDefault:"10"`
	ListenAddr    string `env:"LISTEN_ADDR" envDefault:":8080"`
	LogLevel      string `env:"LOG_LEVEL" envDefault:"info"`

	WAL   WALConfig   `envPrefix:"WAL_"`
	Kafka KafkaConfig `envPrefix:"KAFKA_"`
}

// WALConfig locates the durable logs.
type WALConfig struct {
	EntryDir    string `env:"ENTRY_DIR" envDefault:"data/wal/entry"`
	SegmentSize int64  `env:"SEGMENT_SIZE" envDefault:"67108864"`
	ExitDir     string `env:"EXIT_DIR" envDefault:"data/wal/exit"`
}

// KafkaConfig holds broker addresses and topics. Empty Brokers disables
// Kafka publication entirely.
type KafkaConfig struct {
	Brokers         []string `env:"BROKERS"`
	TradeTopic      string   `env:"TRADE_TOPIC" envDefault:"heimdall.trades"`
	MarketDataTopic string   `env:"MARKET_DATA_TOPIC" envDefault:"heimdall.marketdata"`
}

// Load reads .env (if present) then the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// MustLoad is Load that panics, for main wiring.
func MustLoad() *Config {
	return env.Must(Load())
}
