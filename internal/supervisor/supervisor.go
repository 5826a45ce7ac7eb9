// Package supervisor builds poller specs from discovered devices, spawns
// and respawns the per-device poller actors, and runs the buffer-ingest
// and uplink-drain background loops that move samples from the in-memory
// channel to durable storage and on to the publisher.
package supervisor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.sunspec.dev/internal/buffer"
	"go.sunspec.dev/internal/common/metrics"
	"go.sunspec.dev/internal/common/shutdown"
	"go.sunspec.dev/internal/discovery"
	"go.sunspec.dev/internal/modbus"
	"go.sunspec.dev/internal/poller"
	"go.sunspec.dev/internal/publisher"
	"go.sunspec.dev/internal/sunspec"
)

// drainBackoffBase and drainBackoffMax bound the uplink-drain loop's
// adaptive backoff per spec.md §4.7.
const (
	drainBackoffBase = 1000 * time.Millisecond
	drainBackoffMax  = 30_000 * time.Millisecond
)

// PollerSpec is the supervisor's immutable description of one poller
// actor, keyed by device IP.
type PollerSpec struct {
	Identity discovery.DeviceIdentity
	Modbus   modbus.ClientConfig
	Models   []sunspec.ModelDefinition
}

// Config configures the supervisor's fixed parameters — poller tuning,
// respawn delay, channel sizing, and the drain batch size.
type Config struct {
	Poller          poller.Config
	RespawnDelayMs  int
	ChannelCapacity int
	DrainBatchSize  int
	DrainIntervalMs int
}

// Supervisor owns the device → poller spec map, the sample channel, and
// the buffer-ingest/uplink-drain background loops.
type Supervisor struct {
	cfg      Config
	buf      *buffer.Store
	pub      *publisher.Publisher
	shutdown *shutdown.Watch

	samples chan publisher.Sample

	mu     sync.Mutex
	specs  map[string]*PollerSpec
	active int
}

// New constructs a Supervisor. Call AddSpec (typically with the specs
// BuildSpecs returns) to populate the device map before Run.
func New(cfg Config, buf *buffer.Store, pub *publisher.Publisher, watch *shutdown.Watch) *Supervisor {
	return &Supervisor{
		cfg:      cfg,
		buf:      buf,
		pub:      pub,
		shutdown: watch,
		samples:  make(chan publisher.Sample, cfg.ChannelCapacity),
		specs:    make(map[string]*PollerSpec),
	}
}

// BuildSpecs performs one discovery-register read per device and feeds it
// to the lenient SunSpec parser. Devices yielding zero models or a read
// error are skipped (spec.md §4.7 startup step 2).
func BuildSpecs(ctx context.Context, devices []discovery.DeviceIdentity, modbusTemplate modbus.ClientConfig, baseAddress, discoveryRegCount uint16) []*PollerSpec {
	specs := make([]*PollerSpec, 0, len(devices))

	for _, device := range devices {
		cfg := modbusTemplate
		cfg.Host = device.IP

		client, err := modbus.Connect(cfg)
		if err != nil {
			slog.Warn("supervisor: skipping device, connect failed", "ip", device.IP, "error", err)
			continue
		}

		registers, err := client.ReadRange(ctx, device.UnitID, baseAddress, discoveryRegCount)
		client.Close()
		if err != nil {
			slog.Warn("supervisor: skipping device, discovery read failed", "ip", device.IP, "error", err)
			continue
		}

		models, err := sunspec.Walk(baseAddress, registers, false)
		metrics.ParserModelsDiscovered.WithLabelValues(device.IP).Observe(float64(len(models)))
		if err != nil || len(models) == 0 {
			slog.Warn("supervisor: skipping device, no models discovered", "ip", device.IP, "error", err)
			continue
		}

		specs = append(specs, &PollerSpec{
			Identity: device,
			Modbus:   cfg,
			Models:   models,
		})
	}

	return specs
}

// AddSpec registers a poller spec, keyed by its device IP.
func (s *Supervisor) AddSpec(spec *PollerSpec) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.specs[spec.Identity.IP] = spec
}

// ActiveCount reports how many poller actor goroutines are currently
// running — used by the Pollers health check as the "active" count.
func (s *Supervisor) ActiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

type pollerResult struct {
	ip  string
	err error
}

// Run spawns one poller goroutine per registered spec plus the
// buffer-ingest and uplink-drain background loops, and blocks until the
// shutdown watch fires and every task has exited.
func (s *Supervisor) Run(ctx context.Context) {
	var wg sync.WaitGroup
	results := make(chan pollerResult)

	s.mu.Lock()
	specs := make([]*PollerSpec, 0, len(s.specs))
	for _, spec := range s.specs {
		specs = append(specs, spec)
	}
	s.mu.Unlock()

	for _, spec := range specs {
		s.spawnPoller(ctx, spec, results, &wg)
	}

	wg.Add(2)
	go func() {
		defer wg.Done()
		s.runBufferIngest(ctx)
	}()
	go func() {
		defer wg.Done()
		s.runUplinkDrain(ctx)
	}()

	go s.respawnLoop(ctx, results, &wg)

	<-s.shutdown.Done()
	wg.Wait()
}

func (s *Supervisor) spawnPoller(ctx context.Context, spec *PollerSpec, results chan<- pollerResult, wg *sync.WaitGroup) {
	wg.Add(1)
	s.mu.Lock()
	s.active++
	s.mu.Unlock()
	metrics.SupervisorActivePollers.Inc()
	actor := poller.New(spec.Identity, spec.Modbus, spec.Models, s.cfg.Poller, s.samples, s.shutdown)
	go func() {
		defer wg.Done()
		err := actor.Run(ctx)
		s.mu.Lock()
		s.active--
		s.mu.Unlock()
		metrics.SupervisorActivePollers.Dec()
		select {
		case results <- pollerResult{ip: spec.Identity.IP, err: err}:
		case <-s.shutdown.Done():
		}
	}()
}

// respawnLoop watches for poller terminations and spawns a replacement
// after respawn_delay_ms, unless shutdown is already in progress or the
// spec has been removed from the map.
func (s *Supervisor) respawnLoop(ctx context.Context, results <-chan pollerResult, wg *sync.WaitGroup) {
	for {
		select {
		case res := <-results:
			if res.err != nil {
				slog.Warn("poller actor exited with error", "ip", res.ip, "error", res.err)
			}

			if s.shutdown.Fired() {
				continue
			}

			s.mu.Lock()
			spec, ok := s.specs[res.ip]
			s.mu.Unlock()
			if !ok {
				continue
			}

			metrics.SupervisorRespawns.WithLabelValues(res.ip).Inc()
			delay := time.Duration(s.cfg.RespawnDelayMs) * time.Millisecond

			go func(spec *PollerSpec) {
				select {
				case <-time.After(delay):
				case <-s.shutdown.Done():
					return
				}
				if s.shutdown.Fired() {
					return
				}
				s.spawnPoller(ctx, spec, results, wg)
			}(spec)

		case <-s.shutdown.Done():
			return
		}
	}
}

// runBufferIngest consumes from the sample channel, serializing and
// enqueuing each sample into the buffer store. Failures are logged but
// never terminate the task; it exits on channel close or shutdown.
func (s *Supervisor) runBufferIngest(ctx context.Context) {
	for {
		select {
		case sample, ok := <-s.samples:
			if !ok {
				return
			}
			metrics.SupervisorSampleChannelDepth.Set(float64(len(s.samples)))

			payload, err := s.pub.Serialize(sample)
			if err != nil {
				slog.Error("buffer-ingest: serialize failed", "error", err)
				continue
			}
			if err := s.buf.Enqueue(ctx, s.pub.Topic(), payload); err != nil {
				slog.Error("buffer-ingest: enqueue failed", "error", err)
				continue
			}

		case <-s.shutdown.Done():
			return
		}
	}
}

// runUplinkDrain pulls batches from the buffer and publishes them,
// deleting confirmed deliveries, with adaptive backoff on failure streaks
// per spec.md §4.7.
func (s *Supervisor) runUplinkDrain(ctx context.Context) {
	failureCount := 0
	drainInterval := time.Duration(s.cfg.DrainIntervalMs) * time.Millisecond

	for {
		delay := uplinkDelay(drainInterval, failureCount, drainBackoffBase, drainBackoffMax)

		select {
		case <-time.After(delay):
		case <-s.shutdown.Done():
			return
		}

		encounteredError := false

		batch, err := s.buf.DequeueBatch(ctx, s.cfg.DrainBatchSize)
		if err != nil {
			slog.Error("uplink-drain: dequeue failed", "error", err)
			failureCount++
			continue
		}

		if len(batch) == 0 {
			failureCount = 0
			continue
		}

		delivered := make([]int64, 0, len(batch))
		for _, msg := range batch {
			if err := s.pub.PublishBytes(ctx, msg.Topic, msg.Payload); err != nil {
				slog.Error("uplink-drain: publish failed", "id", msg.ID, "error", err)
				encounteredError = true
				break
			}
			delivered = append(delivered, msg.ID)
		}

		if err := s.buf.DeleteBatch(ctx, delivered); err != nil {
			slog.Error("uplink-drain: delete failed", "error", err)
			encounteredError = true
		}

		// Best-effort observability read; BufferPendingRows is updated as a
		// side effect inside PendingCount.
		_, _ = s.buf.PendingCount(ctx)

		if encounteredError {
			failureCount++
		} else {
			failureCount = 0
		}
		metrics.SupervisorDrainFailures.Set(float64(failureCount))
	}
}

// uplinkDelay implements spec.md §4.7's adaptive backoff: drainInterval
// when failureCount is zero; otherwise max(drainInterval,
// min(base*2^(failureCount-1), max)), with the shift clamped to 31 to
// avoid overflow.
func uplinkDelay(drainInterval time.Duration, failureCount int, base, max time.Duration) time.Duration {
	if failureCount == 0 {
		return drainInterval
	}

	shift := failureCount - 1
	if shift > 31 {
		shift = 31
	}
	backoff := base << shift
	if backoff > max || backoff < 0 {
		backoff = max
	}
	if backoff < drainInterval {
		return drainInterval
	}
	return backoff
}
