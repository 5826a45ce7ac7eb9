package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// TOMLConfig mirrors Config for file-based decoding (TOML or JSON; both
// formats share this shape, with TOML keys taken from the `toml` tags and
// JSON keys from the matching snake_case `json` tags).
type TOMLConfig struct {
	Discovery TOMLDiscoveryConfig `toml:"discovery" json:"discovery"`
	Poller    TOMLPollerConfig    `toml:"poller" json:"poller"`
	Modbus    TOMLModbusConfig    `toml:"modbus" json:"modbus"`
	Sunspec   TOMLSunspecConfig   `toml:"sunspec" json:"sunspec"`
	Buffer    TOMLBufferConfig    `toml:"buffer" json:"buffer"`
	Kafka     TOMLKafkaConfig     `toml:"kafka" json:"kafka"`

	ChannelCapacity int  `toml:"channel_capacity" json:"channel_capacity"`
	RespawnDelayMs  int  `toml:"respawn_delay_ms" json:"respawn_delay_ms"`
	DevMode         bool `toml:"dev_mode" json:"dev_mode"`
}

type TOMLDiscoveryConfig struct {
	Subnet           string `toml:"subnet" json:"subnet"`
	Port             int    `toml:"port" json:"port"`
	PerHostTimeoutMs int    `toml:"per_host_timeout_ms" json:"per_host_timeout_ms"`
	MaxConcurrency   int    `toml:"max_concurrency" json:"max_concurrency"`
	UnitIDs          []int  `toml:"unit_ids" json:"unit_ids"`
	StaticDevices    string `toml:"static_devices" json:"static_devices"`
}

type TOMLPollerConfig struct {
	PollIntervalMs   int `toml:"poll_interval_ms" json:"poll_interval_ms"`
	JitterMs         int `toml:"jitter_ms" json:"jitter_ms"`
	RequestTimeoutMs int `toml:"request_timeout_ms" json:"request_timeout_ms"`
}

type TOMLModbusConfig struct {
	TimeoutMs         int `toml:"timeout_ms" json:"timeout_ms"`
	MaxBatchSize      int `toml:"max_batch_size" json:"max_batch_size"`
	InterReadDelayMs  int `toml:"inter_read_delay_ms" json:"inter_read_delay_ms"`
	RetryCount        int `toml:"retry_count" json:"retry_count"`
	RetryBackoffMs    int `toml:"retry_backoff_ms" json:"retry_backoff_ms"`
	RetryMaxBackoffMs int `toml:"retry_max_backoff_ms" json:"retry_max_backoff_ms"`
}

type TOMLSunspecConfig struct {
	BaseAddress       int    `toml:"base_address" json:"base_address"`
	DiscoveryRegCount int    `toml:"discovery_reg_count" json:"discovery_reg_count"`
	CatalogPath       string `toml:"catalog_path" json:"catalog_path"`
}

type TOMLBufferConfig struct {
	Path      string `toml:"path" json:"path"`
	BatchSize int    `toml:"batch_size" json:"batch_size"`
	DrainMs   int    `toml:"drain_ms" json:"drain_ms"`
}

type TOMLKafkaConfig struct {
	Brokers           []string `toml:"brokers" json:"brokers"`
	ClientID          string   `toml:"client_id" json:"client_id"`
	Acks              string   `toml:"acks" json:"acks"`
	Compression       string   `toml:"compression" json:"compression"`
	TimeoutMs         int      `toml:"timeout_ms" json:"timeout_ms"`
	Topic             string   `toml:"topic" json:"topic"`
	EnableIdempotence bool     `toml:"enable_idempotence" json:"enable_idempotence"`
}

// ConfigPaths lists the paths to search for config files when none is given
// explicitly.
var ConfigPaths = []string{
	"config.toml",
	"sunspec.toml",
	"./config/config.toml",
	"/etc/sunspec-collector/config.toml",
}

// LoadFromFile loads configuration from a TOML or JSON file, selected by
// the `.json` extension.
func LoadFromFile(path string) (*Config, error) {
	var tc TOMLConfig

	if strings.EqualFold(filepath.Ext(path), ".json") {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := json.Unmarshal(data, &tc); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	} else {
		if _, err := toml.DecodeFile(path, &tc); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	return tomlConfigToConfig(&tc), nil
}

// LoadWithFile loads configuration from a file (if present) layered under
// environment variables: defaults <- file <- env.
func LoadWithFile(explicitPath string) (*Config, error) {
	envCfg, err := Load()
	if err != nil {
		return nil, err
	}

	configPath := explicitPath
	if configPath == "" {
		configPath = os.Getenv("SUNSPEC_CONFIG")
	}
	if configPath == "" {
		for _, path := range ConfigPaths {
			if _, err := os.Stat(path); err == nil {
				configPath = path
				break
			}
		}
	}

	if configPath == "" {
		return envCfg, nil
	}

	fileCfg, err := LoadFromFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", configPath, err)
	}

	return mergeConfigs(fileCfg, envCfg), nil
}

func tomlConfigToConfig(tc *TOMLConfig) *Config {
	return &Config{
		Discovery: DiscoveryConfig{
			Subnet:           tc.Discovery.Subnet,
			Port:             tc.Discovery.Port,
			PerHostTimeoutMs: tc.Discovery.PerHostTimeoutMs,
			MaxConcurrency:   tc.Discovery.MaxConcurrency,
			UnitIDs:          tc.Discovery.UnitIDs,
			StaticDevices:    tc.Discovery.StaticDevices,
		},
		Poller: PollerConfig{
			PollIntervalMs:   tc.Poller.PollIntervalMs,
			JitterMs:         tc.Poller.JitterMs,
			RequestTimeoutMs: tc.Poller.RequestTimeoutMs,
		},
		Modbus: ModbusConfig{
			TimeoutMs:         tc.Modbus.TimeoutMs,
			MaxBatchSize:      tc.Modbus.MaxBatchSize,
			InterReadDelayMs:  tc.Modbus.InterReadDelayMs,
			RetryCount:        tc.Modbus.RetryCount,
			RetryBackoffMs:    tc.Modbus.RetryBackoffMs,
			RetryMaxBackoffMs: tc.Modbus.RetryMaxBackoffMs,
		},
		Sunspec: SunspecConfig{
			BaseAddress:       tc.Sunspec.BaseAddress,
			DiscoveryRegCount: tc.Sunspec.DiscoveryRegCount,
			CatalogPath:       tc.Sunspec.CatalogPath,
		},
		Buffer: BufferConfig{
			Path:      tc.Buffer.Path,
			BatchSize: tc.Buffer.BatchSize,
			DrainMs:   tc.Buffer.DrainMs,
		},
		Kafka: KafkaConfig{
			Brokers:           tc.Kafka.Brokers,
			ClientID:          tc.Kafka.ClientID,
			Acks:              tc.Kafka.Acks,
			Compression:       tc.Kafka.Compression,
			TimeoutMs:         tc.Kafka.TimeoutMs,
			Topic:             tc.Kafka.Topic,
			EnableIdempotence: tc.Kafka.EnableIdempotence,
		},
		ChannelCapacity: tc.ChannelCapacity,
		RespawnDelayMs:  tc.RespawnDelayMs,
		DevMode:         tc.DevMode,
	}
}

// mergeConfigs merges two configs, with override taking precedence for
// non-zero-value fields. base is typically the file config, override the
// env/default config, so env wins per spec.md's "env overrides file" rule.
func mergeConfigs(base, override *Config) *Config {
	result := *base

	if override.Discovery.Subnet != "" {
		result.Discovery.Subnet = override.Discovery.Subnet
	}
	if override.Discovery.Port != 0 {
		result.Discovery.Port = override.Discovery.Port
	}
	if override.Discovery.PerHostTimeoutMs != 0 {
		result.Discovery.PerHostTimeoutMs = override.Discovery.PerHostTimeoutMs
	}
	if override.Discovery.MaxConcurrency != 0 {
		result.Discovery.MaxConcurrency = override.Discovery.MaxConcurrency
	}
	if len(override.Discovery.UnitIDs) > 0 {
		result.Discovery.UnitIDs = override.Discovery.UnitIDs
	}
	if override.Discovery.StaticDevices != "" {
		result.Discovery.StaticDevices = override.Discovery.StaticDevices
	}

	if override.Poller.PollIntervalMs != 0 {
		result.Poller.PollIntervalMs = override.Poller.PollIntervalMs
	}
	if override.Poller.JitterMs != 0 {
		result.Poller.JitterMs = override.Poller.JitterMs
	}
	if override.Poller.RequestTimeoutMs != 0 {
		result.Poller.RequestTimeoutMs = override.Poller.RequestTimeoutMs
	}

	if override.Modbus.TimeoutMs != 0 {
		result.Modbus.TimeoutMs = override.Modbus.TimeoutMs
	}
	if override.Modbus.MaxBatchSize != 0 {
		result.Modbus.MaxBatchSize = override.Modbus.MaxBatchSize
	}
	if override.Modbus.InterReadDelayMs != 0 {
		result.Modbus.InterReadDelayMs = override.Modbus.InterReadDelayMs
	}
	if override.Modbus.RetryCount != 0 {
		result.Modbus.RetryCount = override.Modbus.RetryCount
	}
	if override.Modbus.RetryBackoffMs != 0 {
		result.Modbus.RetryBackoffMs = override.Modbus.RetryBackoffMs
	}
	if override.Modbus.RetryMaxBackoffMs != 0 {
		result.Modbus.RetryMaxBackoffMs = override.Modbus.RetryMaxBackoffMs
	}

	if override.Sunspec.BaseAddress != 0 {
		result.Sunspec.BaseAddress = override.Sunspec.BaseAddress
	}
	if override.Sunspec.DiscoveryRegCount != 0 {
		result.Sunspec.DiscoveryRegCount = override.Sunspec.DiscoveryRegCount
	}
	if override.Sunspec.CatalogPath != "" {
		result.Sunspec.CatalogPath = override.Sunspec.CatalogPath
	}

	if override.Buffer.Path != "" {
		result.Buffer.Path = override.Buffer.Path
	}
	if override.Buffer.BatchSize != 0 {
		result.Buffer.BatchSize = override.Buffer.BatchSize
	}
	if override.Buffer.DrainMs != 0 {
		result.Buffer.DrainMs = override.Buffer.DrainMs
	}

	if len(override.Kafka.Brokers) > 0 {
		result.Kafka.Brokers = override.Kafka.Brokers
	}
	if override.Kafka.ClientID != "" {
		result.Kafka.ClientID = override.Kafka.ClientID
	}
	if override.Kafka.Acks != "" {
		result.Kafka.Acks = override.Kafka.Acks
	}
	if override.Kafka.Compression != "" {
		result.Kafka.Compression = override.Kafka.Compression
	}
	if override.Kafka.TimeoutMs != 0 {
		result.Kafka.TimeoutMs = override.Kafka.TimeoutMs
	}
	if override.Kafka.Topic != "" {
		result.Kafka.Topic = override.Kafka.Topic
	}
	if override.Kafka.EnableIdempotence {
		result.Kafka.EnableIdempotence = true
	}

	if override.ChannelCapacity != 0 {
		result.ChannelCapacity = override.ChannelCapacity
	}
	if override.RespawnDelayMs != 0 {
		result.RespawnDelayMs = override.RespawnDelayMs
	}
	if override.DevMode {
		result.DevMode = true
	}

	return &result
}

// WriteExampleConfig writes an example configuration file.
func WriteExampleConfig(path string) error {
	example := `# sunspec-collector configuration
# Environment variables override these settings.

channel_capacity = 256
respawn_delay_ms = 5000
dev_mode = false

[discovery]
subnet = "192.168.1.0/24"
port = 502
per_host_timeout_ms = 500
max_concurrency = 32
unit_ids = [1]
static_devices = ""

[poller]
poll_interval_ms = 10000
jitter_ms = 1000
request_timeout_ms = 3000

[modbus]
timeout_ms = 3000
max_batch_size = 125
inter_read_delay_ms = 0
retry_count = 3
retry_backoff_ms = 100
retry_max_backoff_ms = 2000

[sunspec]
base_address = 40000
discovery_reg_count = 128
catalog_path = ""

[buffer]
path = "./data/buffer.db"
batch_size = 100
drain_ms = 1000

[kafka]
brokers = []
client_id = "sunspec-collector"
acks = "all"
compression = "snappy"
timeout_ms = 5000
topic = ""
enable_idempotence = true
`

	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	return os.WriteFile(path, []byte(example), 0644)
}
