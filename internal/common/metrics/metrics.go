package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Modbus client metrics

	// ModbusReadsTotal tracks completed register reads
	ModbusReadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sunspec",
			Subsystem: "modbus",
			Name:      "reads_total",
			Help:      "Total Modbus holding-register reads",
		},
		[]string{"ip", "result"}, // result: success, timeout, transport, invalid_address, overflow
	)

	// ModbusReadDuration tracks read_range call duration
	ModbusReadDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "sunspec",
			Subsystem: "modbus",
			Name:      "read_duration_seconds",
			Help:      "Time to complete a read_range call, including retries",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"ip"},
	)

	// ModbusRetries tracks retry attempts issued
	ModbusRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sunspec",
			Subsystem: "modbus",
			Name:      "retries_total",
			Help:      "Total retry attempts issued after a chunk failure",
		},
		[]string{"ip"},
	)

	// Parser metrics

	// ParserCatalogCacheHits tracks catalog cache hits vs misses
	ParserCatalogCacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sunspec",
			Subsystem: "parser",
			Name:      "catalog_cache_total",
			Help:      "Catalog parse cache lookups",
		},
		[]string{"result"}, // hit, miss
	)

	// ParserModelsDiscovered tracks models found per device during discovery
	ParserModelsDiscovered = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "sunspec",
			Subsystem: "parser",
			Name:      "models_discovered",
			Help:      "Number of models discovered per device register walk",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21},
		},
		[]string{"ip"},
	)

	// Discovery metrics

	// DiscoveryProbesTotal tracks TCP probe outcomes
	DiscoveryProbesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sunspec",
			Subsystem: "discovery",
			Name:      "probes_total",
			Help:      "Total TCP discovery probes",
		},
		[]string{"result"}, // open, closed, timeout
	)

	// DiscoveryDevicesFound tracks devices found by the last scan
	DiscoveryDevicesFound = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "sunspec",
			Subsystem: "discovery",
			Name:      "devices_found",
			Help:      "Number of devices returned by the most recent discovery run",
		},
	)

	// DiscoveryScanDuration tracks time to complete a full scan
	DiscoveryScanDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "sunspec",
			Subsystem: "discovery",
			Name:      "scan_duration_seconds",
			Help:      "Time to complete one discovery scan",
			Buckets:   prometheus.DefBuckets,
		},
	)

	// Buffer store metrics

	// BufferEnqueued tracks rows appended to the buffer
	BufferEnqueued = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "sunspec",
			Subsystem: "buffer",
			Name:      "enqueued_total",
			Help:      "Total rows enqueued into the store-and-forward buffer",
		},
	)

	// BufferDeleted tracks rows removed after confirmed publish
	BufferDeleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "sunspec",
			Subsystem: "buffer",
			Name:      "deleted_total",
			Help:      "Total rows deleted after confirmed delivery",
		},
	)

	// BufferPendingRows tracks the last observed pending row count
	BufferPendingRows = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "sunspec",
			Subsystem: "buffer",
			Name:      "pending_rows",
			Help:      "Rows currently pending delivery in the buffer store",
		},
	)

	// BufferErrors tracks buffer operation failures
	BufferErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sunspec",
			Subsystem: "buffer",
			Name:      "errors_total",
			Help:      "Total buffer store operation failures",
		},
		[]string{"op"}, // enqueue, dequeue, delete, pending_count
	)

	// Publisher metrics

	// PublisherDeliveries tracks publish outcomes
	PublisherDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sunspec",
			Subsystem: "publisher",
			Name:      "deliveries_total",
			Help:      "Total publish_bytes outcomes",
		},
		[]string{"topic", "result"}, // result: success, error
	)

	// PublisherEncodeDuration tracks Avro encode duration
	PublisherEncodeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "sunspec",
			Subsystem: "publisher",
			Name:      "encode_duration_seconds",
			Help:      "Time to Avro-encode one sample",
			Buckets:   prometheus.DefBuckets,
		},
	)

	// Poller actor metrics

	// PollerCycles tracks completed poll cycles
	PollerCycles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sunspec",
			Subsystem: "poller",
			Name:      "cycles_total",
			Help:      "Total poll cycles completed",
		},
		[]string{"ip", "result"}, // result: ok, error
	)

	// PollerCycleDuration tracks elapsed time per cycle
	PollerCycleDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "sunspec",
			Subsystem: "poller",
			Name:      "cycle_duration_seconds",
			Help:      "Elapsed time for one poll cycle across all models",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"ip"},
	)

	// PollerLag tracks saturating lag (elapsed - poll_interval)
	PollerLag = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "sunspec",
			Subsystem: "poller",
			Name:      "lag_seconds",
			Help:      "Cycle elapsed time minus configured poll interval, floored at 0",
		},
		[]string{"ip"},
	)

	// PollerConsecutiveErrors tracks the live consecutive-error counter
	PollerConsecutiveErrors = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "sunspec",
			Subsystem: "poller",
			Name:      "consecutive_errors",
			Help:      "Current consecutive cycle-error count",
		},
		[]string{"ip"},
	)

	// PollerErrorsByType tracks per-model read errors by failure type
	PollerErrorsByType = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sunspec",
			Subsystem: "poller",
			Name:      "errors_total",
			Help:      "Total per-model read/send errors by type",
		},
		[]string{"ip", "type"}, // type: modbus, channel
	)

	// PollerExits tracks actor terminal states
	PollerExits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sunspec",
			Subsystem: "poller",
			Name:      "exits_total",
			Help:      "Total poller actor terminations",
		},
		[]string{"ip", "reason"}, // reason: shutdown, too_many_errors, connect
	)

	// Supervisor metrics

	// SupervisorActivePollers tracks the number of running poller goroutines
	SupervisorActivePollers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "sunspec",
			Subsystem: "supervisor",
			Name:      "active_pollers",
			Help:      "Number of currently running poller actor goroutines",
		},
	)

	// SupervisorRespawns tracks poller respawns
	SupervisorRespawns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sunspec",
			Subsystem: "supervisor",
			Name:      "respawns_total",
			Help:      "Total poller actor respawns",
		},
		[]string{"ip"},
	)

	// SupervisorDrainFailures tracks consecutive uplink-drain failure streaks
	SupervisorDrainFailures = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "sunspec",
			Subsystem: "supervisor",
			Name:      "drain_failure_count",
			Help:      "Current uplink-drain consecutive failure count",
		},
	)

	// SupervisorSampleChannelDepth tracks in-flight samples awaiting ingest
	SupervisorSampleChannelDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "sunspec",
			Subsystem: "supervisor",
			Name:      "sample_channel_depth",
			Help:      "Approximate number of samples buffered in the sample channel",
		},
	)
)
