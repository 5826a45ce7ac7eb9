// Package discovery enumerates candidate SunSpec devices, either from a
// static list or by scanning a CIDR range and probing each candidate's
// Modbus/TCP port.
package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"go.sunspec.dev/internal/common/metrics"
)

// DeviceIdentity is the identity used everywhere downstream; IP is the
// keying field for respawn.
type DeviceIdentity struct {
	IP     string
	UnitID uint8
}

// Config configures one discovery run.
type Config struct {
	Subnet           string
	Port             int
	PerHostTimeoutMs int
	MaxConcurrency   int
	UnitIDs          []uint8
	StaticDevices    string
}

// Discover returns the device list per spec.md §4.3: static devices
// verbatim when configured, otherwise a CIDR scan.
func Discover(ctx context.Context, cfg Config) ([]DeviceIdentity, error) {
	if cfg.StaticDevices != "" {
		return ParseStaticDevices(cfg.StaticDevices)
	}
	return scanCIDR(ctx, cfg)
}

func scanCIDR(ctx context.Context, cfg Config) ([]DeviceIdentity, error) {
	if cfg.MaxConcurrency <= 0 {
		return nil, fmt.Errorf("discovery: max_concurrency must be greater than zero")
	}

	start := time.Now()
	ips, err := scanRange(cfg.Subnet)
	if err != nil {
		return nil, err
	}

	sem := semaphore.NewWeighted(int64(cfg.MaxConcurrency))
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		found []net.IP
	)

	for _, ip := range ips {
		if err := sem.Acquire(ctx, 1); err != nil {
			return nil, fmt.Errorf("discovery: %w", err)
		}
		wg.Add(1)
		go func(ip net.IP) {
			defer wg.Done()
			defer sem.Release(1)
			if probe(ip.String(), cfg.Port, cfg.PerHostTimeoutMs) {
				mu.Lock()
				found = append(found, ip)
				mu.Unlock()
			}
		}(ip)
	}
	wg.Wait()

	var devices []DeviceIdentity
	for _, ip := range found {
		for _, unit := range cfg.UnitIDs {
			devices = append(devices, DeviceIdentity{IP: ip.String(), UnitID: unit})
		}
	}

	metrics.DiscoveryDevicesFound.Set(float64(len(devices)))
	metrics.DiscoveryScanDuration.Observe(time.Since(start).Seconds())
	return dedupe(devices), nil
}

func probe(ip string, port int, timeoutMs int) bool {
	addr := net.JoinHostPort(ip, fmt.Sprintf("%d", port))
	conn, err := net.DialTimeout("tcp", addr, time.Duration(timeoutMs)*time.Millisecond)
	if err != nil {
		if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
			metrics.DiscoveryProbesTotal.WithLabelValues("timeout").Inc()
		} else {
			metrics.DiscoveryProbesTotal.WithLabelValues("closed").Inc()
		}
		slog.Debug("discovery probe failed", "ip", ip, "error", err)
		return false
	}
	conn.Close()
	metrics.DiscoveryProbesTotal.WithLabelValues("open").Inc()
	return true
}

// scanRange computes the scan range for a CIDR per spec.md §4.3: prefixes
// < 31 exclude the network and broadcast addresses; /31 and /32 scan their
// entire inclusive range.
func scanRange(subnet string) ([]net.IP, error) {
	prefix, err := netip.ParsePrefix(subnet)
	if err != nil {
		return nil, fmt.Errorf("discovery: invalid CIDR %q: %w", subnet, err)
	}
	if prefix.Bits() > 32 {
		return nil, fmt.Errorf("discovery: prefix %d exceeds 32", prefix.Bits())
	}
	if !prefix.Addr().Is4() {
		return nil, fmt.Errorf("discovery: only IPv4 subnets are supported")
	}

	masked := prefix.Masked()
	network := masked.Addr()
	bits := masked.Bits()

	if bits >= 31 {
		var ips []net.IP
		addr := network
		for {
			ips = append(ips, net.ParseIP(addr.String()))
			if addr == lastAddr(masked) {
				break
			}
			addr = addr.Next()
		}
		return ips, nil
	}

	broadcast := lastAddr(masked)
	first := network.Next()
	last := prevAddr(broadcast)

	var ips []net.IP
	for addr := first; ; addr = addr.Next() {
		ips = append(ips, net.ParseIP(addr.String()))
		if addr == last {
			break
		}
	}
	return ips, nil
}

func lastAddr(prefix netip.Prefix) netip.Addr {
	addr := prefix.Addr()
	bytes := addr.As4()
	ones := prefix.Bits()
	mask := uint32(0xFFFFFFFF) >> uint(ones)
	val := (uint32(bytes[0])<<24 | uint32(bytes[1])<<16 | uint32(bytes[2])<<8 | uint32(bytes[3])) | mask
	return netip.AddrFrom4([4]byte{byte(val >> 24), byte(val >> 16), byte(val >> 8), byte(val)})
}

func prevAddr(addr netip.Addr) netip.Addr {
	bytes := addr.As4()
	val := uint32(bytes[0])<<24 | uint32(bytes[1])<<16 | uint32(bytes[2])<<8 | uint32(bytes[3])
	val--
	return netip.AddrFrom4([4]byte{byte(val >> 24), byte(val >> 16), byte(val >> 8), byte(val)})
}

func dedupe(devices []DeviceIdentity) []DeviceIdentity {
	seen := make(map[DeviceIdentity]struct{}, len(devices))
	out := make([]DeviceIdentity, 0, len(devices))
	for _, d := range devices {
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		out = append(out, d)
	}
	return out
}
