package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
)

const (
	// SensorHeaderSize is the packed size of SensorHeader on the wire.
	SensorHeaderSize = 15
	// IMUSampleSize is the stride of a sample in the compact layout.
	IMUSampleSize = 10
	// FullIMUSampleSize is the stride of a sample in the full layout.
	FullIMUSampleSize = 16
)

// ErrPayloadTooShort indicates a SensorData payload that cannot hold a header.
var ErrPayloadTooShort = errors.New("sensor payload shorter than header")

// SensorHeader is the fixed prefix of a SensorData payload.
//
// Byte layout (little-endian, no padding):
//
//	0-3:   CameraTimestampStart
//	4-7:   CameraTimestampEnd
//	8-9:   BatteryMilliVolts
//	10:    IMUSampleCount
//	11-14: ImageByteSize
type SensorHeader struct {
	CameraTimestampStart uint32 `json:"camera_timestamp_start"`
	CameraTimestampEnd   uint32 `json:"camera_timestamp_end"`
	BatteryMilliVolts    uint16 `json:"battery_mv"`
	IMUSampleCount       uint8  `json:"imu_sample_count"`
	ImageByteSize        uint32 `json:"image_byte_size"`
}

// IMUSample is one timestamped inertial reading.
type IMUSample struct {
	TimestampMicros uint32   `json:"timestamp_us"`
	Accel           [3]int16 `json:"accel"`
	Gyro            [3]int16 `json:"gyro"`
}

// SampleLayout selects how IMU samples are packed after the header.
type SampleLayout uint8

const (
	// SampleLayoutCompact is the 10-byte sample: TimestampMicros followed by
	// the three acceleration axes. Gyro is left zero.
	SampleLayoutCompact SampleLayout = iota
	// SampleLayoutFull is the 16-byte sample: TimestampMicros, three
	// acceleration axes, then three gyro axes.
	SampleLayoutFull
)

// Size returns the number of bytes one sample occupies.
func (l SampleLayout) Size() int {
	if l == SampleLayoutFull {
		return FullIMUSampleSize
	}
	return IMUSampleSize
}

func (l SampleLayout) String() string {
	if l == SampleLayoutFull {
		return "full"
	}
	return "compact"
}

// ParseSampleLayout maps "compact" or "full" to a SampleLayout.
func ParseSampleLayout(s string) (SampleLayout, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "compact":
		return SampleLayoutCompact, nil
	case "full":
		return SampleLayoutFull, nil
	}
	return 0, fmt.Errorf("unknown IMU sample layout %q", s)
}

// SensorRecord is a decoded SensorData payload.
//
// Samples may be shorter than Header.IMUSampleCount and Image may be nil
// even when Header.ImageByteSize is non-zero; see DecodeSensor.
type SensorRecord struct {
	Header  SensorHeader `json:"header"`
	Samples []IMUSample  `json:"samples"`
	Image   []byte       `json:"-"`
}

// MissingSamples returns how many declared samples were not present.
func (r *SensorRecord) MissingSamples() int {
	return int(r.Header.IMUSampleCount) - len(r.Samples)
}

// ImageMissing reports whether an image was declared but not delivered.
func (r *SensorRecord) ImageMissing() bool {
	return r.Header.ImageByteSize > 0 && r.Image == nil
}

// Truncated reports whether any declared data was absent from the payload.
func (r *SensorRecord) Truncated() bool {
	return r.MissingSamples() > 0 || r.ImageMissing()
}

// Decoder decodes SensorData payloads for a given sample layout.
type Decoder struct {
	Layout SampleLayout
}

// DecodeSensor decodes payload with the compact sample layout.
func DecodeSensor(payload []byte) (*SensorRecord, error) {
	return Decoder{Layout: SampleLayoutCompact}.Decode(payload)
}

// Decode parses payload into a SensorRecord.
//
// It fails only when payload cannot hold the header. Samples are read until
// the declared count is reached or fewer than one sample's worth of bytes
// remain. The image is copied only when all ImageByteSize bytes follow the
// parsed samples; otherwise it is left nil. Neither case is an error.
func (d Decoder) Decode(payload []byte) (*SensorRecord, error) {
	if len(payload) < SensorHeaderSize {
		return nil, fmt.Errorf("%w: %d bytes, need %d", ErrPayloadTooShort, len(payload), SensorHeaderSize)
	}

	rec := &SensorRecord{Header: decodeHeader(payload[:SensorHeaderSize])}

	stride := d.Layout.Size()
	offset := SensorHeaderSize
	rec.Samples = make([]IMUSample, 0, min(int(rec.Header.IMUSampleCount), (len(payload)-offset)/stride))
	for i := 0; i < int(rec.Header.IMUSampleCount); i++ {
		if len(payload)-offset < stride {
			break
		}
		rec.Samples = append(rec.Samples, d.decodeSample(payload[offset:offset+stride]))
		offset += stride
	}

	if size := rec.Header.ImageByteSize; size > 0 && uint64(len(payload)-offset) >= uint64(size) {
		rec.Image = make([]byte, size)
		copy(rec.Image, payload[offset:offset+int(size)])
	}

	return rec, nil
}

func decodeHeader(b []byte) SensorHeader {
	return SensorHeader{
		CameraTimestampStart: binary.LittleEndian.Uint32(b[0:4]),
		CameraTimestampEnd:   binary.LittleEndian.Uint32(b[4:8]),
		BatteryMilliVolts:    binary.LittleEndian.Uint16(b[8:10]),
		IMUSampleCount:       b[10],
		ImageByteSize:        binary.LittleEndian.Uint32(b[11:15]),
	}
}

func (d Decoder) decodeSample(b []byte) IMUSample {
	s := IMUSample{TimestampMicros: binary.LittleEndian.Uint32(b[0:4])}
	for axis := 0; axis < 3; axis++ {
		s.Accel[axis] = int16(binary.LittleEndian.Uint16(b[4+2*axis:]))
	}
	if d.Layout == SampleLayoutFull {
		for axis := 0; axis < 3; axis++ {
			s.Gyro[axis] = int16(binary.LittleEndian.Uint16(b[10+2*axis:]))
		}
	}
	return s
}

// AppendHeader appends the packed header to dst.
func AppendHeader(dst []byte, h SensorHeader) []byte {
	dst = binary.LittleEndian.AppendUint32(dst, h.CameraTimestampStart)
	dst = binary.LittleEndian.AppendUint32(dst, h.CameraTimestampEnd)
	dst = binary.LittleEndian.AppendUint16(dst, h.BatteryMilliVolts)
	dst = append(dst, h.IMUSampleCount)
	return binary.LittleEndian.AppendUint32(dst, h.ImageByteSize)
}

// AppendSample appends s packed with layout l to dst.
func AppendSample(dst []byte, s IMUSample, l SampleLayout) []byte {
	dst = binary.LittleEndian.AppendUint32(dst, s.TimestampMicros)
	for _, v := range s.Accel {
		dst = binary.LittleEndian.AppendUint16(dst, uint16(v))
	}
	if l == SampleLayoutFull {
		for _, v := range s.Gyro {
			dst = binary.LittleEndian.AppendUint16(dst, uint16(v))
		}
	}
	return dst
}

// EncodeSensor packs rec as a SensorData payload in the compact layout.
//
// The header is written verbatim, so a header whose counts disagree with
// Samples and Image produces a deliberately truncated payload.
func EncodeSensor(rec *SensorRecord) []byte {
	return Decoder{Layout: SampleLayoutCompact}.Encode(rec)
}

// Encode packs rec using the decoder's sample layout.
func (d Decoder) Encode(rec *SensorRecord) []byte {
	buf := make([]byte, 0, SensorHeaderSize+len(rec.Samples)*d.Layout.Size()+len(rec.Image))
	buf = AppendHeader(buf, rec.Header)
	for _, s := range rec.Samples {
		buf = AppendSample(buf, s, d.Layout)
	}
	return append(buf, rec.Image...)
}
