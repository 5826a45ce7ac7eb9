package config

import (
	"fmt"
	"net/netip"
	"strings"
)

// Validate checks a Config for the rejection rules in spec.md §6: malformed
// or overlong CIDR prefixes, zero-valued rates/timeouts/counts, and
// malformed topic names. It is safe to call independently of Load, matching
// the original implementation's standalone config-validation test suite.
func (c *Config) Validate() error {
	if c.Discovery.StaticDevices == "" {
		if _, err := netip.ParsePrefix(c.Discovery.Subnet); err != nil {
			return fmt.Errorf("discovery.subnet: invalid CIDR %q: %w", c.Discovery.Subnet, err)
		}
	}
	if c.Discovery.Port <= 0 {
		return fmt.Errorf("discovery.port: must be non-zero")
	}
	if c.Discovery.PerHostTimeoutMs <= 0 {
		return fmt.Errorf("discovery.per_host_timeout_ms: must be non-zero")
	}
	if c.Discovery.MaxConcurrency <= 0 {
		return fmt.Errorf("discovery.max_concurrency: must be non-zero")
	}

	if c.Poller.PollIntervalMs <= 0 {
		return fmt.Errorf("poller.poll_interval_ms: must be non-zero")
	}
	if c.Poller.RequestTimeoutMs <= 0 {
		return fmt.Errorf("poller.request_timeout_ms: must be non-zero")
	}

	if c.Modbus.TimeoutMs <= 0 {
		return fmt.Errorf("modbus.timeout_ms: must be non-zero")
	}
	if c.Modbus.MaxBatchSize <= 0 {
		return fmt.Errorf("modbus.max_batch_size: must be non-zero")
	}
	if c.Modbus.RetryBackoffMs <= 0 {
		return fmt.Errorf("modbus.retry_backoff_ms: must be non-zero")
	}
	if c.Modbus.RetryMaxBackoffMs <= 0 {
		return fmt.Errorf("modbus.retry_max_backoff_ms: must be non-zero")
	}

	if c.Sunspec.DiscoveryRegCount <= 0 {
		return fmt.Errorf("sunspec.discovery_reg_count: must be non-zero")
	}

	if c.Buffer.Path == "" {
		return fmt.Errorf("buffer.path: must not be empty")
	}
	if c.Buffer.BatchSize <= 0 {
		return fmt.Errorf("buffer.batch_size: must be non-zero")
	}
	if c.Buffer.DrainMs <= 0 {
		return fmt.Errorf("buffer.drain_ms: must be non-zero")
	}

	if c.Kafka.TimeoutMs <= 0 {
		return fmt.Errorf("kafka.timeout_ms: must be non-zero")
	}
	if c.Kafka.Topic != "" {
		if err := validateTopic(c.Kafka.Topic); err != nil {
			return fmt.Errorf("kafka.topic: %w", err)
		}
	}

	if c.ChannelCapacity <= 0 {
		return fmt.Errorf("channel_capacity: must be non-zero")
	}
	if c.RespawnDelayMs <= 0 {
		return fmt.Errorf("respawn_delay_ms: must be non-zero")
	}

	return nil
}

// validateTopic applies Kafka's own topic naming rules as restated in
// spec.md §6: non-empty, at most 249 characters, only
// [A-Za-z0-9._-], starting and ending alphanumerically, and never a '.'
// adjacent to a non-alphanumeric character.
func validateTopic(topic string) error {
	if topic == "" {
		return fmt.Errorf("must not be empty")
	}
	if len(topic) > 249 {
		return fmt.Errorf("must be at most 249 characters")
	}
	for _, r := range topic {
		if !isTopicChar(r) {
			return fmt.Errorf("contains invalid character %q", r)
		}
	}
	if !isAlphanumeric(rune(topic[0])) || !isAlphanumeric(rune(topic[len(topic)-1])) {
		return fmt.Errorf("must start and end with an alphanumeric character")
	}
	for i, r := range topic {
		if r != '.' {
			continue
		}
		if i > 0 && !isAlphanumeric(rune(topic[i-1])) {
			return fmt.Errorf("'.' must be adjacent only to alphanumeric characters")
		}
		if i < len(topic)-1 && !isAlphanumeric(rune(topic[i+1])) {
			return fmt.Errorf("'.' must be adjacent only to alphanumeric characters")
		}
	}
	return nil
}

func isAlphanumeric(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

func isTopicChar(r rune) bool {
	return isAlphanumeric(r) || r == '.' || r == '_' || r == '-'
}

// ResolvedTopic returns the configured Kafka topic, falling back to the
// default per spec.md §9's resolved Open Question.
func (c *Config) ResolvedTopic() string {
	if strings.TrimSpace(c.Kafka.Topic) != "" {
		return c.Kafka.Topic
	}
	return "sunspec.telemetry"
}
