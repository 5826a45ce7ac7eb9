package config

import (
	"os"
	"strconv"
	"strings"
)

// Config holds all configuration for the collector.
type Config struct {
	Discovery DiscoveryConfig
	Poller    PollerConfig
	Modbus    ModbusConfig
	Sunspec   SunspecConfig
	Buffer    BufferConfig
	Kafka     KafkaConfig

	// ChannelCapacity bounds the in-memory sample channel between pollers
	// and the buffer-ingest task.
	ChannelCapacity int

	// RespawnDelayMs is how long the supervisor waits before respawning a
	// poller actor that has exited.
	RespawnDelayMs int

	// DevMode enables verbose, human-readable logging.
	DevMode bool
}

// DiscoveryConfig configures host/device discovery.
type DiscoveryConfig struct {
	Subnet           string
	Port             int
	PerHostTimeoutMs int
	MaxConcurrency   int
	UnitIDs          []int
	StaticDevices    string // "ip[:unit],ip[:unit],..." — skips the scan when non-empty
}

// PollerConfig configures the per-device polling loop.
type PollerConfig struct {
	PollIntervalMs   int
	JitterMs         int
	RequestTimeoutMs int
}

// ModbusConfig configures the Modbus/TCP client used by discovery and pollers.
type ModbusConfig struct {
	TimeoutMs         int
	MaxBatchSize      int
	InterReadDelayMs  int
	RetryCount        int
	RetryBackoffMs    int
	RetryMaxBackoffMs int
}

// SunspecConfig configures the register-map walk.
type SunspecConfig struct {
	BaseAddress       int
	DiscoveryRegCount int
	CatalogPath       string
}

// BufferConfig configures the on-disk store-and-forward buffer.
type BufferConfig struct {
	Path      string
	BatchSize int
	DrainMs   int
}

// KafkaConfig configures the downstream event bus publisher.
type KafkaConfig struct {
	Brokers          []string
	ClientID         string
	Acks             string
	Compression      string
	TimeoutMs        int
	Topic            string
	EnableIdempotence bool
}

// Load loads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	cfg := &Config{
		Discovery: DiscoveryConfig{
			Subnet:           getEnv("SUNSPEC_SUBNET", "192.168.1.0/24"),
			Port:             getEnvInt("SUNSPEC_PORT", 502),
			PerHostTimeoutMs: getEnvInt("SUNSPEC_PER_HOST_TIMEOUT_MS", 500),
			MaxConcurrency:   getEnvInt("SUNSPEC_MAX_CONCURRENCY", 32),
			UnitIDs:          getEnvIntSlice("SUNSPEC_UNIT_IDS", []int{1}),
			StaticDevices:    getEnv("SUNSPEC_STATIC_DEVICES", ""),
		},

		Poller: PollerConfig{
			PollIntervalMs:   getEnvInt("SUNSPEC_POLL_INTERVAL_MS", 10000),
			JitterMs:         getEnvInt("SUNSPEC_JITTER_MS", 1000),
			RequestTimeoutMs: getEnvInt("SUNSPEC_REQUEST_TIMEOUT_MS", 3000),
		},

		Modbus: ModbusConfig{
			TimeoutMs:         getEnvInt("SUNSPEC_MODBUS_TIMEOUT_MS", 3000),
			MaxBatchSize:      getEnvInt("SUNSPEC_MAX_BATCH_SIZE", 125),
			InterReadDelayMs:  getEnvInt("SUNSPEC_INTER_READ_DELAY_MS", 0),
			RetryCount:        getEnvInt("SUNSPEC_RETRY_COUNT", 3),
			RetryBackoffMs:    getEnvInt("SUNSPEC_RETRY_BACKOFF_MS", 100),
			RetryMaxBackoffMs: getEnvInt("SUNSPEC_RETRY_MAX_BACKOFF_MS", 2000),
		},

		Sunspec: SunspecConfig{
			BaseAddress:       getEnvInt("SUNSPEC_BASE_ADDRESS", 40000),
			DiscoveryRegCount: getEnvInt("SUNSPEC_DISCOVERY_REG_COUNT", 128),
			CatalogPath:       getEnv("SUNSPEC_CATALOG_PATH", ""),
		},

		Buffer: BufferConfig{
			Path:      getEnv("SUNSPEC_BUFFER_PATH", "./data/buffer.db"),
			BatchSize: getEnvInt("SUNSPEC_BUFFER_BATCH_SIZE", 100),
			DrainMs:   getEnvInt("SUNSPEC_BUFFER_DRAIN_MS", 1000),
		},

		Kafka: KafkaConfig{
			Brokers:           getEnvSlice("SUNSPEC_KAFKA_BROKERS", nil),
			ClientID:          getEnv("SUNSPEC_KAFKA_CLIENT_ID", "sunspec-collector"),
			Acks:              getEnv("SUNSPEC_KAFKA_ACKS", "all"),
			Compression:       getEnv("SUNSPEC_KAFKA_COMPRESSION", "snappy"),
			TimeoutMs:         getEnvInt("SUNSPEC_KAFKA_TIMEOUT_MS", 5000),
			Topic:             getEnv("SUNSPEC_KAFKA_TOPIC", ""),
			EnableIdempotence: getEnvBool("SUNSPEC_KAFKA_IDEMPOTENCE", true),
		},

		ChannelCapacity: getEnvInt("SUNSPEC_CHANNEL_CAPACITY", 256),
		RespawnDelayMs:  getEnvInt("SUNSPEC_RESPAWN_DELAY_MS", 5000),
		DevMode:         getEnvBool("SUNSPEC_DEV", false),
	}

	return cfg, nil
}

// Helper functions for environment variable parsing

func getEnv(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, ok := os.LookupEnv(key); ok {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value, ok := os.LookupEnv(key); ok {
		if value == "" {
			return nil
		}
		return strings.Split(value, ",")
	}
	return defaultValue
}

func getEnvIntSlice(key string, defaultValue []int) []int {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return defaultValue
	}
	parts := strings.Split(value, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return defaultValue
		}
		out = append(out, n)
	}
	return out
}
