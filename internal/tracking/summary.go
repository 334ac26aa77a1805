package tracking

import (
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Summary aggregates a tracker's history.
type Summary struct {
	Key    DeviceKey `json:"key,string"`
	ID     string    `json:"id"`
	Source string    `json:"source"`

	Records          int   `json:"records"`
	TruncatedRecords int   `json:"truncated_records"`
	Samples          int   `json:"samples"`
	DeclaredSamples  int   `json:"declared_samples"`
	Images           int   `json:"images"`
	ImageBytes       int64 `json:"image_bytes"`

	BatteryMeanMv   float64 `json:"battery_mean_mv"`
	BatteryStdDevMv float64 `json:"battery_stddev_mv"`
	BatteryMinMv    float64 `json:"battery_min_mv"`
	BatteryMaxMv    float64 `json:"battery_max_mv"`

	// IMURateHz is estimated from the median spacing of consecutive sample
	// timestamps. Zero when fewer than two samples have been seen.
	IMURateHz float64 `json:"imu_rate_hz"`

	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
}

// Summary computes aggregate statistics over the current history.
func (t *Tracker) Summary() Summary {
	entries := t.Snapshot()
	s := Summary{
		Key:     t.key,
		ID:      t.id,
		Records: len(entries),
	}
	if src := t.Source(); src.IsValid() {
		s.Source = src.String()
	}
	if len(entries) == 0 {
		return s
	}
	s.FirstSeen = entries[0].ReceivedAt
	s.LastSeen = entries[len(entries)-1].ReceivedAt

	battery := make([]float64, 0, len(entries))
	var spacing []float64
	var prevTS uint32
	havePrev := false

	for _, e := range entries {
		rec := e.Record
		if rec == nil {
			continue
		}
		battery = append(battery, float64(rec.Header.BatteryMilliVolts))
		s.Samples += len(rec.Samples)
		s.DeclaredSamples += int(rec.Header.IMUSampleCount)
		if rec.Truncated() {
			s.TruncatedRecords++
		}
		if rec.Image != nil {
			s.Images++
			s.ImageBytes += int64(len(rec.Image))
		}
		for _, sample := range rec.Samples {
			if havePrev {
				// Unsigned subtraction handles the 32-bit microsecond counter
				// wrapping.
				if d := sample.TimestampMicros - prevTS; d > 0 {
					spacing = append(spacing, float64(d))
				}
			}
			prevTS = sample.TimestampMicros
			havePrev = true
		}
	}

	if len(battery) > 0 {
		s.BatteryMinMv = floats.Min(battery)
		s.BatteryMaxMv = floats.Max(battery)
		if len(battery) > 1 {
			s.BatteryMeanMv, s.BatteryStdDevMv = stat.MeanStdDev(battery, nil)
		} else {
			s.BatteryMeanMv = battery[0]
		}
	}

	if len(spacing) > 0 {
		sort.Float64s(spacing)
		if median := stat.Quantile(0.5, stat.Empirical, spacing, nil); median > 0 {
			s.IMURateHz = 1e6 / median
		}
	}

	if math.IsNaN(s.BatteryStdDevMv) {
		s.BatteryStdDevMv = 0
	}
	return s
}
