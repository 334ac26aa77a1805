package tracking

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeviceKey_StringRoundTrip(t *testing.T) {
	k := DeviceKey(18446744073709551615)
	got, err := ParseDeviceKey(k.String())
	require.NoError(t, err)
	assert.Equal(t, k, got)

	_, err = ParseDeviceKey("-1")
	assert.Error(t, err)
	_, err = ParseDeviceKey("abc")
	assert.Error(t, err)
}

func TestConstantKey(t *testing.T) {
	k := ConstantKey(1)
	assert.Equal(t, DeviceKey(1), k.Resolve(netip.MustParseAddrPort("1.2.3.4:5"), nil))
	assert.Equal(t, DeviceKey(1), k.Resolve(netip.AddrPort{}, nil))
}

func TestAddressKey(t *testing.T) {
	var r AddressKey
	a := r.Resolve(netip.MustParseAddrPort("192.168.1.10:4000"), nil)
	b := r.Resolve(netip.MustParseAddrPort("192.168.1.10:4999"), nil)
	c := r.Resolve(netip.MustParseAddrPort("192.168.1.11:4000"), nil)
	mapped := r.Resolve(netip.MustParseAddrPort("[::ffff:192.168.1.10]:4000"), nil)

	assert.Equal(t, a, b, "port must not affect the key")
	assert.NotEqual(t, a, c)
	assert.Equal(t, a, mapped, "IPv4-mapped IPv6 must match plain IPv4")
}
