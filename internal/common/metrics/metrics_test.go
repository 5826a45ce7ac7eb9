package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// === Modbus metrics ===

func TestModbusReadsTotal_Labels(t *testing.T) {
	results := []string{"success", "timeout", "transport", "invalid_address", "overflow"}
	for _, r := range results {
		ModbusReadsTotal.WithLabelValues("10.0.0.5", r).Inc()
	}

	counter := ModbusReadsTotal.WithLabelValues("10.0.0.5", "success")
	if counter == nil {
		t.Error("expected counter to be non-nil")
	}
}

func TestModbusReadDuration_Observe(t *testing.T) {
	ModbusReadDuration.WithLabelValues("10.0.0.5").Observe(0.042)

	histogram := ModbusReadDuration.WithLabelValues("10.0.0.5")
	if histogram == nil {
		t.Error("expected histogram to be non-nil")
	}
}

func TestModbusRetries_Counter(t *testing.T) {
	ModbusRetries.WithLabelValues("10.0.0.5").Add(3)

	counter := ModbusRetries.WithLabelValues("10.0.0.5")
	if counter == nil {
		t.Error("expected counter to be non-nil")
	}
}

// === Parser metrics ===

func TestParserCatalogCacheHits_Labels(t *testing.T) {
	ParserCatalogCacheHits.WithLabelValues("hit").Inc()
	ParserCatalogCacheHits.WithLabelValues("miss").Inc()
}

func TestParserModelsDiscovered_Observe(t *testing.T) {
	ParserModelsDiscovered.WithLabelValues("10.0.0.5").Observe(3)
}

// === Discovery metrics ===

func TestDiscoveryProbesTotal_Labels(t *testing.T) {
	for _, r := range []string{"open", "closed", "timeout"} {
		DiscoveryProbesTotal.WithLabelValues(r).Inc()
	}
}

func TestDiscoveryDevicesFound_Gauge(t *testing.T) {
	DiscoveryDevicesFound.Set(5)
	if got := testutil.ToFloat64(DiscoveryDevicesFound); got != 5 {
		t.Errorf("expected 5, got %f", got)
	}
}

func TestDiscoveryScanDuration_Observe(t *testing.T) {
	DiscoveryScanDuration.Observe(1.5)
}

// === Buffer metrics ===

func TestBufferCounters(t *testing.T) {
	before := testutil.ToFloat64(BufferEnqueued)
	BufferEnqueued.Inc()
	if got := testutil.ToFloat64(BufferEnqueued); got != before+1 {
		t.Errorf("expected %f, got %f", before+1, got)
	}

	before = testutil.ToFloat64(BufferDeleted)
	BufferDeleted.Inc()
	if got := testutil.ToFloat64(BufferDeleted); got != before+1 {
		t.Errorf("expected %f, got %f", before+1, got)
	}
}

func TestBufferPendingRows_Gauge(t *testing.T) {
	BufferPendingRows.Set(42)
	if got := testutil.ToFloat64(BufferPendingRows); got != 42 {
		t.Errorf("expected 42, got %f", got)
	}
}

func TestBufferErrors_Labels(t *testing.T) {
	for _, op := range []string{"enqueue", "dequeue", "delete", "pending_count"} {
		BufferErrors.WithLabelValues(op).Inc()
	}
}

// === Publisher metrics ===

func TestPublisherDeliveries_Labels(t *testing.T) {
	PublisherDeliveries.WithLabelValues("sunspec.telemetry", "success").Inc()
	PublisherDeliveries.WithLabelValues("sunspec.telemetry", "error").Inc()
}

func TestPublisherEncodeDuration_Observe(t *testing.T) {
	PublisherEncodeDuration.Observe(0.002)
}

// === Poller metrics ===

func TestPollerCycles_Labels(t *testing.T) {
	PollerCycles.WithLabelValues("10.0.0.5", "ok").Inc()
	PollerCycles.WithLabelValues("10.0.0.5", "error").Inc()
}

func TestPollerLag_Gauge(t *testing.T) {
	PollerLag.WithLabelValues("10.0.0.5").Set(0.25)
}

func TestPollerConsecutiveErrors_Gauge(t *testing.T) {
	g := PollerConsecutiveErrors.WithLabelValues("10.0.0.5")
	g.Set(3)
	g.Set(0)
}

func TestPollerErrorsByType_Labels(t *testing.T) {
	PollerErrorsByType.WithLabelValues("10.0.0.5", "modbus").Inc()
	PollerErrorsByType.WithLabelValues("10.0.0.5", "channel").Inc()
}

func TestPollerExits_Labels(t *testing.T) {
	for _, reason := range []string{"shutdown", "too_many_errors", "connect"} {
		PollerExits.WithLabelValues("10.0.0.5", reason).Inc()
	}
}

// === Supervisor metrics ===

func TestSupervisorActivePollers_Gauge(t *testing.T) {
	SupervisorActivePollers.Set(4)
	if got := testutil.ToFloat64(SupervisorActivePollers); got != 4 {
		t.Errorf("expected 4, got %f", got)
	}
}

func TestSupervisorRespawns_Labels(t *testing.T) {
	SupervisorRespawns.WithLabelValues("10.0.0.5").Inc()
}

func TestSupervisorDrainFailures_Gauge(t *testing.T) {
	SupervisorDrainFailures.Set(2)
}

func TestSupervisorSampleChannelDepth_Gauge(t *testing.T) {
	SupervisorSampleChannelDepth.Set(10)
}

// === Isolated registry sanity check, following the teacher's pattern of
// verifying counter/gauge semantics against a private registry rather than
// the global default one. ===

func TestCounterValueIsolated(t *testing.T) {
	reg := prometheus.NewRegistry()

	counter := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "test_counter",
		Help: "test counter",
	})
	reg.MustRegister(counter)

	counter.Add(5)
	if val := testutil.ToFloat64(counter); val != 5 {
		t.Errorf("expected counter value 5, got %f", val)
	}
}
