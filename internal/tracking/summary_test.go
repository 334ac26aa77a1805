package tracking

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/argus/internal/protocol"
)

func TestSummary_Empty(t *testing.T) {
	tr, _ := newTestTracker(t)
	s := tr.Summary()
	assert.Equal(t, DeviceKey(7), s.Key)
	assert.Equal(t, tr.ID(), s.ID)
	assert.Zero(t, s.Records)
	assert.Empty(t, s.Source)
	assert.True(t, s.LastSeen.IsZero())
}

func TestSummary_Aggregates(t *testing.T) {
	tr, clock := newTestTracker(t)

	// 100 Hz samples spread over two records.
	tr.Handle(testSource, record(3700, 0, 10000, 20000))
	clock.Advance(30_000_000)
	tr.Handle(testSource, record(3600, 30000, 40000))

	truncated := record(3500, 50000)
	truncated.Header.IMUSampleCount = 4
	truncated.Header.ImageByteSize = 64
	tr.Handle(testSource, truncated)

	withImage := &protocol.SensorRecord{
		Header:  protocol.SensorHeader{BatteryMilliVolts: 3400, ImageByteSize: 3},
		Samples: []protocol.IMUSample{},
		Image:   []byte{1, 2, 3},
	}
	tr.Handle(testSource, withImage)

	s := tr.Summary()
	assert.Equal(t, 4, s.Records)
	assert.Equal(t, 1, s.TruncatedRecords)
	assert.Equal(t, 6, s.Samples)
	assert.Equal(t, 9, s.DeclaredSamples)
	assert.Equal(t, 1, s.Images)
	assert.Equal(t, int64(3), s.ImageBytes)
	assert.Equal(t, testSource.String(), s.Source)

	assert.InDelta(t, 3550, s.BatteryMeanMv, 1e-9)
	assert.InDelta(t, 3400, s.BatteryMinMv, 1e-9)
	assert.InDelta(t, 3700, s.BatteryMaxMv, 1e-9)
	assert.Greater(t, s.BatteryStdDevMv, 0.0)
	assert.InDelta(t, 100, s.IMURateHz, 1e-9)
	assert.True(t, s.LastSeen.After(s.FirstSeen))
}

func TestSummary_SingleRecord(t *testing.T) {
	tr, _ := newTestTracker(t)
	tr.Handle(testSource, record(3900, 5))

	s := tr.Summary()
	require.Equal(t, 1, s.Records)
	assert.InDelta(t, 3900, s.BatteryMeanMv, 1e-9)
	assert.Zero(t, s.BatteryStdDevMv)
	assert.Zero(t, s.IMURateHz)
}

func TestSummary_TimestampWrap(t *testing.T) {
	tr, _ := newTestTracker(t)
	tr.Handle(testSource, record(3900, 0xFFFFD8F0, 0x00000000, 0x00002710)) // 10ms steps across the wrap

	s := tr.Summary()
	assert.InDelta(t, 100, s.IMURateHz, 1e-9)
}
