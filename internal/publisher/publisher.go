// Package publisher serializes telemetry samples to the Avro wire format
// and ships them to the downstream event bus, or logs them in mock mode
// for tests and brokerless deployments.
package publisher

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hamba/avro/v2"
	"github.com/hamba/avro/v2/ocf"
	"github.com/twmb/franz-go/pkg/kgo"

	"go.sunspec.dev/internal/common/metrics"
)

// Config configures a live Kafka-backed Publisher. A Publisher constructed
// with no brokers runs in mock mode.
type Config struct {
	Brokers           []string
	ClientID          string
	Acks              string // "all", "leader", "none"
	Compression       string // "none", "gzip", "snappy", "lz4", "zstd"
	TimeoutMs         int
	Topic             string
	EnableIdempotence bool
}

// Publisher serializes and delivers PollSample-shaped values. It is safe
// to share across goroutines; the broker client owns its own concurrency.
type Publisher struct {
	topic   string
	schema  avro.Schema
	timeout time.Duration
	mock    bool
	kafka   *kgo.Client
}

// New constructs a Publisher. When cfg.Brokers is empty, it runs in mock
// mode: publish_bytes logs and returns success without a network call,
// while serialize still performs real Avro encoding.
func New(cfg Config) (*Publisher, error) {
	schema, err := avro.Parse(DefaultSchema)
	if err != nil {
		return nil, fmt.Errorf("publisher: parse schema: %w", err)
	}

	p := &Publisher{
		topic:   cfg.Topic,
		schema:  schema,
		timeout: time.Duration(cfg.TimeoutMs) * time.Millisecond,
		mock:    len(cfg.Brokers) == 0,
	}

	if p.mock {
		slog.Info("publisher running in mock mode: no Kafka brokers configured")
		return p, nil
	}

	opts := []kgo.Opt{
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ClientID(cfg.ClientID),
	}
	switch cfg.Acks {
	case "none":
		opts = append(opts, kgo.RequiredAcks(kgo.NoAck()))
	case "leader":
		opts = append(opts, kgo.RequiredAcks(kgo.LeaderAck()))
	default:
		opts = append(opts, kgo.RequiredAcks(kgo.AllISRAcks()))
	}
	if codec, ok := compressionCodec(cfg.Compression); ok {
		opts = append(opts, kgo.ProducerBatchCompression(codec))
	}
	if cfg.EnableIdempotence {
		opts = append(opts, kgo.EnableIdempotency())
	}

	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("publisher: new kafka client: %w", err)
	}
	p.kafka = client

	return p, nil
}

func compressionCodec(name string) (kgo.CompressionCodec, bool) {
	switch name {
	case "gzip":
		return kgo.GzipCompression(), true
	case "snappy":
		return kgo.SnappyCompression(), true
	case "lz4":
		return kgo.Lz4Compression(), true
	case "zstd":
		return kgo.ZstdCompression(), true
	case "none":
		return kgo.NoCompression(), true
	default:
		return kgo.CompressionCodec{}, false
	}
}

// Topic returns the publisher's configured topic.
func (p *Publisher) Topic() string {
	return p.topic
}

// DefaultSchemaString returns the fixed Avro schema.
func (p *Publisher) DefaultSchemaString() string {
	return DefaultSchema
}

// Serialize encodes value to Avro object-container bytes with the Deflate
// codec, against the fixed schema.
func (p *Publisher) Serialize(value Sample) ([]byte, error) {
	start := time.Now()
	defer func() { metrics.PublisherEncodeDuration.Observe(time.Since(start).Seconds()) }()

	var buf bytes.Buffer
	enc, err := ocf.NewEncoder(DefaultSchema, &buf, ocf.WithCodec(ocf.Deflate))
	if err != nil {
		return nil, fmt.Errorf("publisher: new encoder: %w", err)
	}
	if err := enc.Encode(value); err != nil {
		return nil, fmt.Errorf("publisher: encode: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("publisher: close encoder: %w", err)
	}
	return buf.Bytes(), nil
}

// Publish is equivalent to PublishBytes(p.Topic(), Serialize(value)).
func (p *Publisher) Publish(ctx context.Context, value Sample) error {
	bytes, err := p.Serialize(value)
	if err != nil {
		return err
	}
	return p.PublishBytes(ctx, p.topic, bytes)
}

// PublishBytes delivers payload to topic within message_timeout_ms. In
// mock mode it logs and returns success without a network call.
func (p *Publisher) PublishBytes(ctx context.Context, topic string, payload []byte) error {
	if p.mock {
		slog.Debug("mock publish", "topic", topic, "bytes", len(payload))
		metrics.PublisherDeliveries.WithLabelValues(topic, "success").Inc()
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	record := &kgo.Record{Topic: topic, Value: payload}
	result := p.kafka.ProduceSync(ctx, record)
	if err := result.FirstErr(); err != nil {
		metrics.PublisherDeliveries.WithLabelValues(topic, "error").Inc()
		return fmt.Errorf("publisher: kafka produce: %w", err)
	}

	metrics.PublisherDeliveries.WithLabelValues(topic, "success").Inc()
	return nil
}

// Close releases the underlying Kafka client, if any.
func (p *Publisher) Close() {
	if p.kafka != nil {
		p.kafka.Close()
	}
}
