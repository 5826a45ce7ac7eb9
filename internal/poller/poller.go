// Package poller implements the per-device polling actor: one goroutine
// owns exactly one Modbus connection, reads each configured model once per
// cycle, and emits a PollSample per successful read onto a shared channel
// until shutdown fires or consecutive failures exceed the hard limit.
package poller

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.sunspec.dev/internal/common/metrics"
	"go.sunspec.dev/internal/common/shutdown"
	"go.sunspec.dev/internal/discovery"
	"go.sunspec.dev/internal/modbus"
	"go.sunspec.dev/internal/publisher"
	"go.sunspec.dev/internal/sunspec"
)

// maxConsecutiveErrors is the hard exit threshold: a poller that fails an
// entire cycle this many times in a row gives up rather than spinning
// against a device that is gone for good.
const maxConsecutiveErrors = 10

// jitterMultiplier is the seed perturbation constant from the jitter
// formula; an arbitrary large odd multiplier so consecutive iterations
// don't cluster on the same modulus residue.
const jitterMultiplier = 1_664_525

// TooManyErrorsError is returned when a poller exits after accumulating
// maxConsecutiveErrors consecutive cycle failures.
type TooManyErrorsError struct {
	Count int
}

func (e *TooManyErrorsError) Error() string {
	return "poller: too many consecutive errors"
}

// Config configures one poller actor instance.
type Config struct {
	PollIntervalMs   int
	JitterMs         int
	RequestTimeoutMs int
}

// Actor owns one Modbus connection to one device and polls its configured
// models on a jittered schedule.
type Actor struct {
	device   discovery.DeviceIdentity
	modbus   modbus.ClientConfig
	models   []sunspec.ModelDefinition
	cfg      Config
	samples  chan<- publisher.Sample
	shutdown *shutdown.Watch

	client *modbus.Client
}

// New constructs an Actor. modbusCfg.Host must already be set to the
// device's IP; modbusCfg.TimeoutMs is overridden from cfg.RequestTimeoutMs
// per the init step of the lifecycle.
func New(device discovery.DeviceIdentity, modbusCfg modbus.ClientConfig, models []sunspec.ModelDefinition, cfg Config, samples chan<- publisher.Sample, watch *shutdown.Watch) *Actor {
	modbusCfg.TimeoutMs = cfg.RequestTimeoutMs
	return &Actor{
		device:   device,
		modbus:   modbusCfg,
		models:   models,
		cfg:      cfg,
		samples:  samples,
		shutdown: watch,
	}
}

// Run executes the actor lifecycle: Connecting -> Polling <-> Waiting ->
// {Shutdown | ErrorExit}. It returns nil on a clean shutdown and a non-nil
// error (typically *TooManyErrorsError or a connect failure) on ErrorExit.
func (a *Actor) Run(ctx context.Context) error {
	client, err := modbus.Connect(a.modbus)
	if err != nil {
		metrics.PollerExits.WithLabelValues(a.device.IP, "connect").Inc()
		return err
	}
	a.client = client
	defer a.client.Close()

	consecutiveErrors := 0

	for iteration := 0; ; iteration++ {
		if a.shutdown.Fired() {
			metrics.PollerExits.WithLabelValues(a.device.IP, "shutdown").Inc()
			return nil
		}

		cycleStart := time.Now()
		cycleHadError, timeoutCount := a.runCycle(ctx)

		elapsed := time.Since(cycleStart)
		metrics.PollerCycleDuration.WithLabelValues(a.device.IP).Observe(elapsed.Seconds())

		lag := elapsed - time.Duration(a.cfg.PollIntervalMs)*time.Millisecond
		if lag < 0 {
			lag = 0
		}
		metrics.PollerLag.WithLabelValues(a.device.IP).Set(lag.Seconds())

		if cycleHadError {
			consecutiveErrors++
			metrics.PollerCycles.WithLabelValues(a.device.IP, "error").Inc()
		} else {
			if consecutiveErrors > 0 {
				slog.Info("poller recovered", "ip", a.device.IP, "previous_consecutive_errors", consecutiveErrors)
			}
			consecutiveErrors = 0
			metrics.PollerCycles.WithLabelValues(a.device.IP, "ok").Inc()
		}
		metrics.PollerConsecutiveErrors.WithLabelValues(a.device.IP).Set(float64(consecutiveErrors))

		if timeoutCount > 0 {
			slog.Warn("poller cycle had timeouts", "ip", a.device.IP, "timeouts", timeoutCount)
		}

		if consecutiveErrors >= maxConsecutiveErrors {
			metrics.PollerExits.WithLabelValues(a.device.IP, "too_many_errors").Inc()
			return &TooManyErrorsError{Count: consecutiveErrors}
		}

		delay := jitteredDelay(time.Duration(a.cfg.PollIntervalMs)*time.Millisecond, time.Duration(a.cfg.JitterMs)*time.Millisecond, iteration, time.Now().UnixMilli())

		select {
		case <-a.shutdown.Done():
			metrics.PollerExits.WithLabelValues(a.device.IP, "shutdown").Inc()
			return nil
		case <-time.After(delay):
		}
	}
}

// runCycle reads every configured model once, emitting a PollSample per
// successful read. It returns whether the cycle saw any model failure and
// how many of those failures were timeouts.
func (a *Actor) runCycle(ctx context.Context) (cycleHadError bool, timeoutCount int) {
	for _, model := range a.models {
		if model.Length == 0 {
			continue
		}

		registers, err := a.client.ReadRange(ctx, a.device.UnitID, model.Start, model.Length)
		if err != nil {
			cycleHadError = true
			var te *modbus.TimeoutError
			if errors.As(err, &te) {
				timeoutCount++
			}
			metrics.PollerErrorsByType.WithLabelValues(a.device.IP, "modbus").Inc()
			slog.Warn("poller read failed", "ip", a.device.IP, "model_id", model.ID, "error", err)
			continue
		}

		sample := publisher.Sample{
			Device: publisher.SampleDevice{
				IP:     a.device.IP,
				UnitID: int(a.device.UnitID),
			},
			ModelID:       int(model.ID),
			ModelName:     model.Name,
			Start:         int(model.Start),
			Registers:     toIntSlice(registers),
			CollectedAtMs: time.Now().UnixMilli(),
		}

		select {
		case a.samples <- sample:
		case <-a.shutdown.Done():
			metrics.PollerErrorsByType.WithLabelValues(a.device.IP, "channel").Inc()
			slog.Warn("poller sample send aborted by shutdown", "ip", a.device.IP, "model_id", model.ID)
		}
	}
	return cycleHadError, timeoutCount
}

func toIntSlice(registers []uint16) []int {
	out := make([]int, len(registers))
	for i, r := range registers {
		out[i] = int(r)
	}
	return out
}

// jitteredDelay implements spec.md's jitter formula: base when jitterMs is
// zero, otherwise base plus an additive offset in [0, jitterMs) derived
// from a per-iteration seed. Jitter never reduces the interval.
func jitteredDelay(base, jitter time.Duration, iteration int, nowMs int64) time.Duration {
	if jitter <= 0 {
		return base
	}
	seed := nowMs + int64(iteration)*jitterMultiplier
	jitterMs := int64(jitter / time.Millisecond)
	if jitterMs < 1 {
		jitterMs = 1
	}
	offset := seed % jitterMs
	if offset < 0 {
		offset += jitterMs
	}
	return base + time.Duration(offset)*time.Millisecond
}
