package discovery

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseStaticDevices parses SUNSPEC_STATIC_DEVICES-style input:
// "ip[:unit],ip[:unit],...". A missing unit id defaults to 1. Duplicate
// (ip, unit_id) pairs are rejected, mirroring the CIDR path's dedupe
// invariant (spec.md §3 invariant 5) as a validation error instead of a
// silent drop, since a static list is operator-authored configuration.
func ParseStaticDevices(raw string) ([]DeviceIdentity, error) {
	var devices []DeviceIdentity
	seen := make(map[DeviceIdentity]struct{})

	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		ip := entry
		unit := uint8(1)

		if idx := strings.LastIndex(entry, ":"); idx >= 0 {
			ip = entry[:idx]
			unitStr := entry[idx+1:]
			n, err := strconv.Atoi(unitStr)
			if err != nil || n < 0 || n > 255 {
				return nil, fmt.Errorf("discovery: invalid unit id in static device entry %q", entry)
			}
			unit = uint8(n)
		}

		if ip == "" {
			return nil, fmt.Errorf("discovery: empty ip in static device entry %q", entry)
		}

		id := DeviceIdentity{IP: ip, UnitID: unit}
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("discovery: duplicate static device entry (ip=%s, unit=%d)", ip, unit)
		}
		seen[id] = struct{}{}
		devices = append(devices, id)
	}

	return devices, nil
}
