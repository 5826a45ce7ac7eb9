// Package modbus wraps a Modbus/TCP connection with the batching, timeout,
// and retry/backoff semantics a SunSpec poller needs: chunked reads across
// max_batch_size boundaries, 32-bit address-overflow detection, and
// exponential backoff with a hard cap, on top of a single serialized
// connection.
package modbus

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	gomodbus "github.com/goburrow/modbus"
)

// ClientConfig configures a Client's connection and per-request behavior.
type ClientConfig struct {
	Host string
	Port int

	// MaxBatchSize is the largest register count requested in one chunk.
	// Zero means unlimited (no splitting).
	MaxBatchSize uint16

	TimeoutMs        int
	InterReadDelayMs int

	RetryCount        int
	RetryBackoffMs    int
	RetryMaxBackoffMs int
}

// Client is a single Modbus/TCP connection. All calls are serialized by an
// internal mutex: "single-connection, serialized calls" per spec.md §4.1.
type Client struct {
	mu      sync.Mutex
	cfg     ClientConfig
	handler *gomodbus.TCPClientHandler
	inner   gomodbus.Client
}

// Connect opens one TCP connection per spec.md §4.1's connect contract.
func Connect(cfg ClientConfig) (*Client, error) {
	handler := gomodbus.NewTCPClientHandler(fmt.Sprintf("%s:%d", cfg.Host, cfg.Port))
	handler.Timeout = time.Duration(cfg.TimeoutMs) * time.Millisecond

	if err := handler.Connect(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}

	return &Client{
		cfg:     cfg,
		handler: handler,
		inner:   gomodbus.NewClient(handler),
	}, nil
}

// Close releases the underlying TCP connection.
func (c *Client) Close() error {
	return c.handler.Close()
}

// ReadRange returns exactly count holding registers starting at start for
// slave unitID, batching across max_batch_size boundaries and retrying
// each chunk per spec.md §4.1.
func (c *Client) ReadRange(ctx context.Context, unitID byte, start, count uint16) ([]uint16, error) {
	if count == 0 {
		return nil, ErrInvalidAddress
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.handler.SetSlave(unitID)

	batchSize := count
	if c.cfg.MaxBatchSize > 0 && c.cfg.MaxBatchSize < batchSize {
		batchSize = c.cfg.MaxBatchSize
	}

	result := make([]uint16, 0, count)
	var offset uint16
	for offset < count {
		chunkLen := batchSize
		if remaining := count - offset; chunkLen > remaining {
			chunkLen = remaining
		}

		chunkStart := uint32(start) + uint32(offset)
		if chunkStart > 0xFFFF {
			return nil, ErrAddressOverflow
		}

		chunk, err := c.readChunk(ctx, uint16(chunkStart), chunkLen)
		if err != nil {
			return nil, err
		}
		result = append(result, chunk...)

		offset += chunkLen
		if offset < count && c.cfg.InterReadDelayMs > 0 {
			sleep(ctx, time.Duration(c.cfg.InterReadDelayMs)*time.Millisecond)
		}
	}

	return result, nil
}

// readChunk issues one register read, bounded by timeout_ms and retried
// with exponential backoff up to retry_count additional attempts.
func (c *Client) readChunk(ctx context.Context, start, count uint16) ([]uint16, error) {
	bo := backoff.WithMaxRetries(&fixedFormulaBackoff{
		backoffMs:    c.cfg.RetryBackoffMs,
		maxBackoffMs: c.cfg.RetryMaxBackoffMs,
	}, uint64(c.cfg.RetryCount))

	var result []uint16
	operation := func() error {
		raw, err := c.inner.ReadHoldingRegisters(start, count)
		if err != nil {
			return classifyError(err, c.cfg.TimeoutMs)
		}
		result = bytesToRegisters(raw)
		return nil
	}

	err := backoff.Retry(operation, backoff.WithContext(bo, ctx))
	if err != nil {
		return nil, err
	}
	return result, nil
}

// fixedFormulaBackoff implements cenkalti/backoff's BackOff interface with
// the exact formula from spec.md §4.1:
// retry_delay(attempt) = min(retry_backoff_ms * 2^attempt, retry_max_backoff_ms).
type fixedFormulaBackoff struct {
	attempt      int
	backoffMs    int
	maxBackoffMs int
}

func (b *fixedFormulaBackoff) NextBackOff() time.Duration {
	shift := b.attempt
	if shift > 30 {
		shift = 30
	}
	delayMs := b.backoffMs << uint(shift)
	if delayMs > b.maxBackoffMs || delayMs <= 0 {
		delayMs = b.maxBackoffMs
	}
	b.attempt++
	return time.Duration(delayMs) * time.Millisecond
}

func (b *fixedFormulaBackoff) Reset() {
	b.attempt = 0
}

// classifyError maps a goburrow/modbus transport error to the taxonomy in
// spec.md §4.1. goburrow/modbus surfaces both I/O timeouts and plain
// connection failures as generic errors; a net.Error reporting Timeout()
// is classified as TimeoutError, everything else as ErrTransport.
func classifyError(err error, timeoutMs int) error {
	type timeouter interface{ Timeout() bool }
	if te, ok := err.(timeouter); ok && te.Timeout() {
		return &TimeoutError{TimeoutMs: timeoutMs}
	}
	return fmt.Errorf("%w: %v", ErrTransport, err)
}

// bytesToRegisters converts the big-endian byte payload returned by
// ReadHoldingRegisters into a slice of 16-bit registers.
func bytesToRegisters(raw []byte) []uint16 {
	regs := make([]uint16, len(raw)/2)
	for i := range regs {
		regs[i] = binary.BigEndian.Uint16(raw[i*2 : i*2+2])
	}
	return regs
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
