package publisher

import (
	"context"
	"testing"
)

func TestNew_MockModeWhenNoBrokers(t *testing.T) {
	p, err := New(Config{Topic: "sunspec.telemetry", TimeoutMs: 1000})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !p.mock {
		t.Fatal("expected mock mode when no brokers configured")
	}
}

func TestSerialize_ProducesNonEmptyBytes(t *testing.T) {
	p, err := New(Config{Topic: "sunspec.telemetry", TimeoutMs: 1000})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sample := Sample{
		Device:        SampleDevice{IP: "10.0.0.5", UnitID: 1},
		ModelID:       103,
		ModelName:     "three_phase_inverter",
		Start:         40006,
		Registers:     []int{1, 2, 3, 4, 5, 6},
		CollectedAtMs: 1700000000000,
	}

	data, err := p.Serialize(sample)
	if err != nil {
		t.Fatalf("serialize failed: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("expected non-empty encoded bytes")
	}
}

func TestPublishBytes_MockModeReturnsSuccess(t *testing.T) {
	p, err := New(Config{Topic: "sunspec.telemetry", TimeoutMs: 1000})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := p.PublishBytes(context.Background(), "sunspec.telemetry", []byte("payload")); err != nil {
		t.Fatalf("expected mock publish to succeed, got: %v", err)
	}
}

func TestPublish_SerializesThenPublishes(t *testing.T) {
	p, err := New(Config{Topic: "sunspec.telemetry", TimeoutMs: 1000})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sample := Sample{
		Device:        SampleDevice{IP: "10.0.0.5", UnitID: 1},
		ModelID:       1,
		ModelName:     "common",
		Start:         40002,
		Registers:     []int{0, 0, 0, 0},
		CollectedAtMs: 1700000000000,
	}

	if err := p.Publish(context.Background(), sample); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestTopic_ReturnsConfigured(t *testing.T) {
	p, err := New(Config{Topic: "custom.topic", TimeoutMs: 1000})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Topic() != "custom.topic" {
		t.Errorf("expected custom.topic, got %q", p.Topic())
	}
}
