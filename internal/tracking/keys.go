package tracking

import (
	"fmt"
	"hash/fnv"
	"net/netip"
	"strconv"

	"github.com/banshee-data/argus/internal/protocol"
)

// DeviceKey identifies a source device.
type DeviceKey uint64

func (k DeviceKey) String() string {
	return strconv.FormatUint(uint64(k), 10)
}

// ParseDeviceKey parses the decimal form produced by DeviceKey.String.
func ParseDeviceKey(s string) (DeviceKey, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid device key %q: %w", s, err)
	}
	return DeviceKey(v), nil
}

// KeyResolver maps an inbound record to the device it belongs to.
type KeyResolver interface {
	Resolve(from netip.AddrPort, rec *protocol.SensorRecord) DeviceKey
}

// ConstantKey resolves every record to the same key.
type ConstantKey DeviceKey

// Resolve returns k.
func (k ConstantKey) Resolve(netip.AddrPort, *protocol.SensorRecord) DeviceKey {
	return DeviceKey(k)
}

// AddressKey derives the key from the sender IP. The port is ignored so a
// device that rebinds its source port keeps its tracker.
type AddressKey struct{}

// Resolve returns the FNV-1a hash of the unmapped sender address bytes.
func (AddressKey) Resolve(from netip.AddrPort, _ *protocol.SensorRecord) DeviceKey {
	h := fnv.New64a()
	h.Write(from.Addr().Unmap().AsSlice())
	return DeviceKey(h.Sum64())
}
