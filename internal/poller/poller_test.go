package poller

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"testing"
	"time"

	"go.sunspec.dev/internal/common/shutdown"
	"go.sunspec.dev/internal/discovery"
	"go.sunspec.dev/internal/modbus"
	"go.sunspec.dev/internal/modbus/testserver"
	"go.sunspec.dev/internal/publisher"
	"go.sunspec.dev/internal/sunspec"
)

func splitHostPort(addr string) (string, int, error) {
	idx := strings.LastIndex(addr, ":")
	if idx < 0 {
		return "", 0, errors.New("no port in address")
	}
	port, err := strconv.Atoi(addr[idx+1:])
	if err != nil {
		return "", 0, err
	}
	return addr[:idx], port, nil
}

func newTestActor(t *testing.T, srv *testserver.Server, models []sunspec.ModelDefinition, cfg Config, samples chan publisher.Sample, watch *shutdown.Watch) *Actor {
	t.Helper()
	host, port, err := splitHostPort(srv.Addr())
	if err != nil {
		t.Fatalf("bad address %q: %v", srv.Addr(), err)
	}

	modbusCfg := modbus.ClientConfig{
		Host:              host,
		Port:              port,
		MaxBatchSize:      125,
		TimeoutMs:         500,
		RetryCount:        1,
		RetryBackoffMs:    10,
		RetryMaxBackoffMs: 20,
	}

	device := discovery.DeviceIdentity{IP: host, UnitID: 1}
	return New(device, modbusCfg, models, cfg, samples, watch)
}

// Invariant 6: jittered_delay(base, j, _) in [base, base+j) when j>0;
// equals base when j=0.
func TestJitteredDelay_ZeroJitterEqualsBase(t *testing.T) {
	base := 10 * time.Second
	got := jitteredDelay(base, 0, 7, 1_700_000_000_000)
	if got != base {
		t.Fatalf("expected exact base, got %v", got)
	}
}

func TestJitteredDelay_BoundedByJitterWindow(t *testing.T) {
	base := 10 * time.Second
	jitter := 1 * time.Second

	for iteration := 0; iteration < 50; iteration++ {
		for nowMs := int64(0); nowMs < 5; nowMs++ {
			got := jitteredDelay(base, jitter, iteration, nowMs)
			if got < base {
				t.Fatalf("iteration=%d now=%d: delay %v below base %v", iteration, nowMs, got, base)
			}
			if got >= base+jitter {
				t.Fatalf("iteration=%d now=%d: delay %v not below base+jitter %v", iteration, nowMs, got, base+jitter)
			}
		}
	}
}

func TestJitteredDelay_MatchesFormula(t *testing.T) {
	base := 10 * time.Second
	jitter := 1000 * time.Millisecond
	nowMs := int64(1_700_000_000_123)
	iteration := 42

	seed := nowMs + int64(iteration)*jitterMultiplier
	wantOffset := seed % 1000
	if wantOffset < 0 {
		wantOffset += 1000
	}
	want := base + time.Duration(wantOffset)*time.Millisecond

	got := jitteredDelay(base, jitter, iteration, nowMs)
	if got != want {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestActor_EmitsSampleOnSuccessfulRead(t *testing.T) {
	srv, err := testserver.New()
	if err != nil {
		t.Fatalf("failed to start test server: %v", err)
	}
	defer srv.Close()

	srv.SetRegisters(40002, []uint16{1, 2, 3, 4})

	models := []sunspec.ModelDefinition{
		{ID: 1, Name: "common", Start: 40002, Length: 4},
	}
	samples := make(chan publisher.Sample, 4)
	watch := shutdown.New()

	actor := newTestActor(t, srv, models, Config{PollIntervalMs: 50, JitterMs: 0, RequestTimeoutMs: 500}, samples, watch)

	done := make(chan error, 1)
	go func() { done <- actor.Run(context.Background()) }()

	select {
	case sample := <-samples:
		if sample.ModelID != 1 || sample.Start != 40002 {
			t.Fatalf("unexpected sample: %+v", sample)
		}
		if len(sample.Registers) != 4 {
			t.Fatalf("expected 4 registers, got %d", len(sample.Registers))
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a sample")
	}

	watch.Fire()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected clean shutdown, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("actor did not exit after shutdown")
	}
}

func TestActor_ExitsOnShutdownDuringWait(t *testing.T) {
	srv, err := testserver.New()
	if err != nil {
		t.Fatalf("failed to start test server: %v", err)
	}
	defer srv.Close()

	srv.SetRegisters(40002, []uint16{0, 0})

	models := []sunspec.ModelDefinition{{ID: 1, Name: "common", Start: 40002, Length: 2}}
	samples := make(chan publisher.Sample, 4)
	watch := shutdown.New()

	actor := newTestActor(t, srv, models, Config{PollIntervalMs: 60_000, JitterMs: 0, RequestTimeoutMs: 500}, samples, watch)

	done := make(chan error, 1)
	go func() { done <- actor.Run(context.Background()) }()

	<-samples // wait for the first cycle to complete before firing shutdown
	watch.Fire()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected clean shutdown, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("actor did not exit promptly after shutdown during wait")
	}
}

func TestActor_ExitsWithErrorWhenConnectFails(t *testing.T) {
	srv, err := testserver.New()
	if err != nil {
		t.Fatalf("failed to start test server: %v", err)
	}
	srv.Close() // closed immediately: every connect/read will fail

	models := []sunspec.ModelDefinition{{ID: 1, Name: "common", Start: 40002, Length: 2}}
	samples := make(chan publisher.Sample, 4)
	watch := shutdown.New()

	host, port, err := splitHostPort(srv.Addr())
	if err != nil {
		t.Fatalf("bad address: %v", err)
	}

	modbusCfg := modbus.ClientConfig{
		Host: host, Port: port,
		MaxBatchSize: 125, TimeoutMs: 100,
		RetryCount: 0, RetryBackoffMs: 5, RetryMaxBackoffMs: 10,
	}
	device := discovery.DeviceIdentity{IP: host, UnitID: 1}
	actor := New(device, modbusCfg, models, Config{PollIntervalMs: 1, JitterMs: 0, RequestTimeoutMs: 100}, samples, watch)

	err = actor.Run(context.Background())
	if err == nil {
		t.Fatal("expected connect failure since the server is closed")
	}
}

func TestToIntSlice(t *testing.T) {
	got := toIntSlice([]uint16{1, 65535, 0})
	want := []int{1, 65535, 0}
	if len(got) != len(want) {
		t.Fatalf("length mismatch: %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("index %d: got %d want %d", i, got[i], want[i])
		}
	}
}
