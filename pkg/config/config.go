package config

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// MustLoad loads the configuration from environment variables and .env file.
func MustLoad[T any](cfg T) {
	_ = godotenv.Load() // Load environment variables from .env file

	env.Must(cfg, env.Parse(cfg))
}

// Load loads the configuration from environment variables and .env file.
func Load[T any](cfg T) error {
	_ = godotenv.Load() // .env file is optional

	if err := env.Parse(cfg); err != nil {
		return err
	}

	return nil
}

// Config holds the configuration for the trading engine service.
type Config struct {
	// Instruments is the comma separated list of instrument definitions loaded
	// at boot, each formatted as id:tickSize:lotSize, e.g. BTC-USD:0.01:0.0001.
	Instruments []string `env:"INSTRUMENTS,required"`

	Kafka      KafkaConfig      `envPrefix:"KAFKA_"`
	Redis      RedisConfig      `envPrefix:"REDIS_"`
	Journal    JournalConfig    `envPrefix:"JOURNAL_"`
	Publisher  PublisherConfig  `envPrefix:"PUBLISHER_"`
	Engine     EngineConfig     `envPrefix:"ENGINE_"`
	MarketData MarketDataConfig `envPrefix:"MARKET_DATA_"`
}

// KafkaConfig holds the configuration for the Kafka instruction reader and event sink.
type KafkaConfig struct {
	Brokers          []string `env:"BROKER,required"`
	InstructionTopic string   `env:"INSTRUCTION_TOPIC" envDefault:"trading-instructions"`
	EventTopic       string   `env:"EVENT_TOPIC" envDefault:"trading-events"`
	GroupID          string   `env:"GROUP_ID" envDefault:"trading-engine"`
}

// RedisConfig holds the configuration for the snapshot store backend.
type RedisConfig struct {
	Addrs    []string `env:"ADDRS" envDefault:"localhost:6379"`
	Password string   `env:"PASSWORD" envDefault:""`
	Username string   `env:"USERNAME" envDefault:""`
	DB       int      `env:"DB" envDefault:"0"`
}

// JournalConfig holds the configuration for the pebble instruction journal.
type JournalConfig struct {
	Dir      string `env:"DIR" envDefault:"data/journal"`
	Disabled bool   `env:"DISABLED" envDefault:"false"`
}

// PublisherConfig holds the configuration for the event publisher.
type PublisherConfig struct {
	QueueSize int    `env:"QUEUE_SIZE" envDefault:"4096"`
	Policy    string `env:"POLICY" envDefault:"block"` // block or drop_oldest
}

// EngineConfig holds the configuration for the matching engine core.
type EngineConfig struct {
	Workers         int           `env:"WORKERS" envDefault:"4"`
	WorkerQueueSize int           `env:"WORKER_QUEUE_SIZE" envDefault:"1024"`
	SelfTradePolicy string        `env:"SELF_TRADE_POLICY" envDefault:"allow"` // allow, reject or cancel_resting
	SnapshotEvery   time.Duration `env:"SNAPSHOT_INTERVAL" envDefault:"30s"`
}

// MarketDataConfig holds the configuration for the streaming reference price client.
type MarketDataConfig struct {
	Enabled bool     `env:"ENABLED" envDefault:"false"`
	URL     string   `env:"URL" envDefault:""`
	Symbols []string `env:"SYMBOLS" envDefault:""`
}
