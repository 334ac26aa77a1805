package main

import (
	"math/rand/v2"

	"github.com/banshee-data/argus/internal/protocol"
)

// gravity is 1 g at the +/-2 g full scale of a 16-bit accelerometer.
const gravity = 16384

// generatorConfig controls the synthetic SensorData stream.
type generatorConfig struct {
	Samples      int // IMU samples declared per frame
	SampleHz     int // IMU sample rate used to space timestamps
	ImageBytes   int // size of the image blob; 0 sends none
	Layout       protocol.SampleLayout
	Truncate     bool // cut each payload after half the samples
	CorruptEvery int  // flip the checksum of every Nth frame; 0 disables
	Seed         uint64
}

// generator produces successive SensorData frames for one simulated device.
type generator struct {
	cfg     generatorConfig
	rng     *rand.Rand
	seq     int
	micros  uint32
	battery float64
}

func newGenerator(cfg generatorConfig) *generator {
	if cfg.SampleHz <= 0 {
		cfg.SampleHz = 1000
	}
	return &generator{
		cfg:     cfg,
		rng:     rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)),
		battery: 4200,
	}
}

// record builds the next sensor record and advances the device clock.
func (g *generator) record() *protocol.SensorRecord {
	step := uint32(1_000_000 / g.cfg.SampleHz)

	rec := &protocol.SensorRecord{
		Header: protocol.SensorHeader{
			CameraTimestampStart: g.micros,
			BatteryMilliVolts:    uint16(g.battery),
			IMUSampleCount:       uint8(g.cfg.Samples),
			ImageByteSize:        uint32(g.cfg.ImageBytes),
		},
		Samples: make([]protocol.IMUSample, 0, g.cfg.Samples),
	}
	for i := 0; i < g.cfg.Samples; i++ {
		rec.Samples = append(rec.Samples, protocol.IMUSample{
			TimestampMicros: g.micros,
			Accel:           [3]int16{g.noise(200), g.noise(200), gravity + g.noise(200)},
			Gyro:            [3]int16{g.noise(50), g.noise(50), g.noise(50)},
		})
		g.micros += step
	}
	rec.Header.CameraTimestampEnd = g.micros

	if g.cfg.ImageBytes > 0 {
		rec.Image = g.image(g.cfg.ImageBytes)
	}

	// Slow discharge with a little jitter, floored at a flat cell.
	g.battery = max(3300, g.battery-0.05+g.rng.NormFloat64()*0.5)
	return rec
}

func (g *generator) noise(scale float64) int16 {
	return int16(g.rng.NormFloat64() * scale)
}

// image returns n random bytes framed by JPEG start and end markers.
func (g *generator) image(n int) []byte {
	img := make([]byte, n)
	for i := range img {
		img[i] = byte(g.rng.UintN(256))
	}
	if n >= 4 {
		copy(img, []byte{0xFF, 0xD8})
		copy(img[n-2:], []byte{0xFF, 0xD9})
	}
	return img
}

// next returns the next encoded SensorData frame.
func (g *generator) next() []byte {
	g.seq++
	payload := protocol.Decoder{Layout: g.cfg.Layout}.Encode(g.record())
	if g.cfg.Truncate {
		keep := protocol.SensorHeaderSize + (g.cfg.Samples/2)*g.cfg.Layout.Size()
		payload = payload[:keep]
	}

	frame := protocol.EncodeFrame(protocol.MessageSensorData, payload)
	if g.cfg.CorruptEvery > 0 && g.seq%g.cfg.CorruptEvery == 0 {
		frame[len(frame)-1] ^= 0xFF
	}
	return frame
}
