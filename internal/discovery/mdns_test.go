package discovery

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewService(t *testing.T) {
	svc, err := NewService(Config{
		Instance: "argus-lab",
		Port:     4210,
		IPs:      []net.IP{net.IPv4(192, 168, 4, 1)},
		TXT:      []string{"layout=compact"},
	})
	require.NoError(t, err)
	assert.Equal(t, "argus-lab", svc.Instance)
	assert.Equal(t, ServiceType, svc.Service)
	assert.Equal(t, "argus-lab.local.", svc.HostName)
	assert.Equal(t, 4210, svc.Port)
	assert.Equal(t, []string{"layout=compact"}, svc.TXT)
	require.Len(t, svc.IPs, 1)
	assert.True(t, svc.IPs[0].Equal(net.IPv4(192, 168, 4, 1)))
}

func TestNewService_Invalid(t *testing.T) {
	ips := []net.IP{net.IPv4(10, 0, 0, 1)}
	tests := []struct {
		name string
		cfg  Config
	}{
		{"no instance", Config{Port: 4210, IPs: ips}},
		{"zero port", Config{Instance: "a", IPs: ips}},
		{"port too large", Config{Instance: "a", Port: 70000, IPs: ips}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewService(tt.cfg)
			assert.Error(t, err)
		})
	}
}

func TestLocalIPs_ExcludesLoopback(t *testing.T) {
	for _, ip := range LocalIPs() {
		assert.False(t, ip.IsLoopback(), ip.String())
	}
}
