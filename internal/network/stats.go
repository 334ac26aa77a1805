package network

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/banshee-data/argus/internal/monitoring"
	"github.com/banshee-data/argus/internal/protocol"
	"github.com/banshee-data/argus/internal/timeutil"
)

// StatsSnapshot is a point-in-time copy of the cumulative counters.
type StatsSnapshot struct {
	Packets          int64     `json:"packets"`
	Bytes            int64     `json:"bytes"`
	TooShort         int64     `json:"too_short"`
	ChecksumMismatch int64     `json:"checksum_mismatch"`
	UnknownType      int64     `json:"unknown_type"`
	Unhandled        int64     `json:"unhandled"`
	DecodeFailed     int64     `json:"decode_failed"`
	Discovery        int64     `json:"discovery"`
	HelloSent        int64     `json:"hello_sent"`
	SensorRecords    int64     `json:"sensor_records"`
	TruncatedRecords int64     `json:"truncated_records"`
	ReadErrors       int64     `json:"read_errors"`
	SendErrors       int64     `json:"send_errors"`
	ForwardDropped   int64     `json:"forward_dropped"`
	Since            time.Time `json:"since"`
}

// Rejected returns the number of datagrams dropped before reaching a tracker.
func (s StatsSnapshot) Rejected() int64 {
	return s.TooShort + s.ChecksumMismatch + s.UnknownType + s.Unhandled + s.DecodeFailed
}

// PacketStats tracks ingest statistics with thread-safe operations.
// Cumulative totals back Snapshot; LogStats reports and resets the interval
// counters.
type PacketStats struct {
	mu    sync.Mutex
	clock timeutil.Clock

	totals StatsSnapshot

	intervalPackets  int64
	intervalBytes    int64
	intervalRecords  int64
	intervalRejected int64
	intervalDropped  int64
	lastReset        time.Time
}

// NewPacketStats creates a new PacketStats instance. A nil clock uses the
// wall clock.
func NewPacketStats(clock timeutil.Clock) *PacketStats {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	now := clock.Now()
	return &PacketStats{
		clock:     clock,
		totals:    StatsSnapshot{Since: now},
		lastReset: now,
	}
}

// AddPacket increments packet count and byte count.
func (ps *PacketStats) AddPacket(bytes int) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.totals.Packets++
	ps.totals.Bytes += int64(bytes)
	ps.intervalPackets++
	ps.intervalBytes += int64(bytes)
}

// AddRejected classifies a frame codec error.
func (ps *PacketStats) AddRejected(err error) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	switch {
	case errors.Is(err, protocol.ErrFrameTooShort):
		ps.totals.TooShort++
	case errors.Is(err, protocol.ErrChecksumMismatch):
		ps.totals.ChecksumMismatch++
	case errors.Is(err, protocol.ErrPayloadTooShort):
		ps.totals.DecodeFailed++
	case errors.Is(err, ErrUnhandledType):
		ps.totals.Unhandled++
	default:
		ps.totals.UnknownType++
	}
	ps.intervalRejected++
}

// AddDiscovery counts an inbound Discovery frame.
func (ps *PacketStats) AddDiscovery() {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.totals.Discovery++
}

// AddHelloSent counts a Hello reply written to the socket.
func (ps *PacketStats) AddHelloSent() {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.totals.HelloSent++
}

// AddSensorRecord counts a record delivered to the registry.
func (ps *PacketStats) AddSensorRecord(truncated bool) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.totals.SensorRecords++
	if truncated {
		ps.totals.TruncatedRecords++
	}
	ps.intervalRecords++
}

// AddReadError counts a failed socket read.
func (ps *PacketStats) AddReadError() {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.totals.ReadErrors++
}

// AddSendError counts a failed reply write.
func (ps *PacketStats) AddSendError() {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.totals.SendErrors++
}

// AddDropped counts a frame the forwarder could not queue.
func (ps *PacketStats) AddDropped() {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.totals.ForwardDropped++
	ps.intervalDropped++
}

// Snapshot returns the cumulative counters.
func (ps *PacketStats) Snapshot() StatsSnapshot {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	return ps.totals
}

// IntervalStats holds the counters accumulated since the previous reset.
type IntervalStats struct {
	Packets  int64
	Bytes    int64
	Records  int64
	Rejected int64
	Dropped  int64
	Duration time.Duration
}

// GetAndReset returns the interval counters and resets them.
func (ps *PacketStats) GetAndReset() IntervalStats {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	now := ps.clock.Now()
	s := IntervalStats{
		Packets:  ps.intervalPackets,
		Bytes:    ps.intervalBytes,
		Records:  ps.intervalRecords,
		Rejected: ps.intervalRejected,
		Dropped:  ps.intervalDropped,
		Duration: now.Sub(ps.lastReset),
	}

	ps.intervalPackets = 0
	ps.intervalBytes = 0
	ps.intervalRecords = 0
	ps.intervalRejected = 0
	ps.intervalDropped = 0
	ps.lastReset = now

	return s
}

// FormatInterval renders interval counters as a per-second summary line.
// It returns "" when nothing happened in the interval.
func FormatInterval(s IntervalStats) string {
	if s.Packets == 0 && s.Dropped == 0 {
		return ""
	}
	secs := s.Duration.Seconds()
	if secs <= 0 {
		secs = 1
	}
	msg := fmt.Sprintf("Ingest stats (/sec): %.2f KB, %.1f packets, %.1f records",
		float64(s.Bytes)/secs/1024, float64(s.Packets)/secs, float64(s.Records)/secs)
	if s.Rejected > 0 {
		msg += fmt.Sprintf(", %d rejected", s.Rejected)
	}
	if s.Dropped > 0 {
		msg += fmt.Sprintf(", %d dropped on forward", s.Dropped)
	}
	return msg
}

// LogStats logs and resets the interval counters.
func (ps *PacketStats) LogStats() {
	if msg := FormatInterval(ps.GetAndReset()); msg != "" {
		monitoring.Logf("%s", msg)
	}
}
