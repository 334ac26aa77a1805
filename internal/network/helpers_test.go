package network

import (
	"fmt"
	"net/netip"
	"testing"

	"github.com/banshee-data/argus/internal/monitoring"
	"github.com/banshee-data/argus/internal/protocol"
	"github.com/banshee-data/argus/internal/tracking"
)

var (
	addrA = netip.MustParseAddrPort("192.168.4.20:50001")
	addrB = netip.MustParseAddrPort("192.168.4.21:50002")
)

// quietLogs mutes the package logger for the duration of a test.
func quietLogs(t *testing.T) {
	t.Helper()
	prev := monitoring.Logf
	monitoring.SetLogger(nil)
	t.Cleanup(func() { monitoring.SetLogger(prev) })
}

// captureLogs redirects the package logger into a channel for the duration
// of a test. Lines are dropped if the channel is full.
func captureLogs(t *testing.T) <-chan string {
	t.Helper()
	logs := make(chan string, 64)
	prev := monitoring.Logf
	monitoring.SetLogger(func(format string, v ...interface{}) {
		select {
		case logs <- fmt.Sprintf(format, v...):
		default:
		}
	})
	t.Cleanup(func() { monitoring.SetLogger(prev) })
	return logs
}

func sensorFrame(batteryMv uint16, sampleTimes ...uint32) []byte {
	rec := &protocol.SensorRecord{
		Header: protocol.SensorHeader{
			BatteryMilliVolts: batteryMv,
			IMUSampleCount:    uint8(len(sampleTimes)),
		},
	}
	for _, ts := range sampleTimes {
		rec.Samples = append(rec.Samples, protocol.IMUSample{TimestampMicros: ts})
	}
	return protocol.EncodeFrame(protocol.MessageSensorData, protocol.EncodeSensor(rec))
}

func discoveryFrame() []byte {
	return protocol.EncodeReply(protocol.MessageDiscovery)
}

type recordingReplier struct {
	replies []MockUDPPacket
	err     error
}

func (r *recordingReplier) Reply(to netip.AddrPort, frame []byte) error {
	if r.err != nil {
		return r.err
	}
	r.replies = append(r.replies, MockUDPPacket{Data: append([]byte(nil), frame...), Addr: to})
	return nil
}

func newTestDispatcher(resolver tracking.KeyResolver) (*Dispatcher, *tracking.Registry) {
	reg := tracking.NewRegistry(tracking.RegistryConfig{Resolver: resolver})
	d := NewDispatcher(DispatcherConfig{Sink: reg})
	return d, reg
}
