package protocol

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSample(i int) IMUSample {
	return IMUSample{
		TimestampMicros: uint32(1000 * (i + 1)),
		Accel:           [3]int16{int16(i), -int16(i) - 1, 16384},
	}
}

func TestDecodeSensor_HeaderLayout(t *testing.T) {
	payload := []byte{
		0x01, 0x02, 0x03, 0x04, // camera start
		0x05, 0x06, 0x07, 0x08, // camera end
		0x10, 0x0E, // battery 3600 mV
		0x00,                   // imu count
		0x00, 0x00, 0x00, 0x00, // image size
	}

	rec, err := DecodeSensor(payload)
	require.NoError(t, err)

	want := SensorHeader{
		CameraTimestampStart: 0x04030201,
		CameraTimestampEnd:   0x08070605,
		BatteryMilliVolts:    3600,
	}
	if diff := cmp.Diff(want, rec.Header); diff != "" {
		t.Errorf("header mismatch (-want +got):\n%s", diff)
	}
	assert.NotNil(t, rec.Samples)
	assert.Empty(t, rec.Samples)
	assert.Nil(t, rec.Image)
	assert.False(t, rec.Truncated())
}

func TestDecodeSensor_PayloadShorterThanHeader(t *testing.T) {
	for n := 0; n < SensorHeaderSize; n++ {
		rec, err := DecodeSensor(make([]byte, n))
		assert.ErrorIs(t, err, ErrPayloadTooShort, "len=%d", n)
		assert.Nil(t, rec)
	}
}

func TestDecodeSensor_SampleValues(t *testing.T) {
	payload := AppendHeader(nil, SensorHeader{IMUSampleCount: 1})
	payload = append(payload,
		0x40, 0x42, 0x0F, 0x00, // 1_000_000 us
		0xFF, 0xFF, // -1
		0x00, 0x80, // -32768
		0xFF, 0x7F, // 32767
	)

	rec, err := DecodeSensor(payload)
	require.NoError(t, err)
	require.Len(t, rec.Samples, 1)
	assert.Equal(t, IMUSample{TimestampMicros: 1_000_000, Accel: [3]int16{-1, -32768, 32767}}, rec.Samples[0])
}

func TestDecodeSensor_TruncatedSamples(t *testing.T) {
	// Five samples declared, two present: 15 + 2*10 = 35 bytes.
	payload := AppendHeader(nil, SensorHeader{IMUSampleCount: 5})
	payload = AppendSample(payload, testSample(0), SampleLayoutCompact)
	payload = AppendSample(payload, testSample(1), SampleLayoutCompact)
	require.Len(t, payload, 35)

	rec, err := DecodeSensor(payload)
	require.NoError(t, err)
	assert.Len(t, rec.Samples, 2)
	assert.Nil(t, rec.Image)
	assert.Equal(t, 3, rec.MissingSamples())
	assert.True(t, rec.Truncated())
	assert.Equal(t, testSample(1), rec.Samples[1])
}

func TestDecodeSensor_PartialTrailingSampleIgnored(t *testing.T) {
	payload := AppendHeader(nil, SensorHeader{IMUSampleCount: 2})
	payload = AppendSample(payload, testSample(0), SampleLayoutCompact)
	payload = append(payload, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, 0x09)

	rec, err := DecodeSensor(payload)
	require.NoError(t, err)
	assert.Len(t, rec.Samples, 1)
}

func TestDecodeSensor_ImageAbsentWhenShort(t *testing.T) {
	payload := AppendHeader(nil, SensorHeader{ImageByteSize: 100})
	payload = append(payload, bytes.Repeat([]byte{0xAB}, 40)...)

	rec, err := DecodeSensor(payload)
	require.NoError(t, err)
	assert.Nil(t, rec.Image)
	assert.True(t, rec.ImageMissing())
}

func TestDecodeSensor_ImageCopied(t *testing.T) {
	image := []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 0xFF, 0xD9}
	payload := AppendHeader(nil, SensorHeader{IMUSampleCount: 1, ImageByteSize: uint32(len(image))})
	payload = AppendSample(payload, testSample(3), SampleLayoutCompact)
	payload = append(payload, image...)
	payload = append(payload, 0xEE, 0xEE) // trailing bytes beyond the declared image

	rec, err := DecodeSensor(payload)
	require.NoError(t, err)
	assert.Equal(t, image, rec.Image)

	// The record owns its image bytes.
	payload[SensorHeaderSize+IMUSampleSize] = 0x00
	assert.Equal(t, byte(0xFF), rec.Image[0])
}

func TestDecodeSensor_SamplesConsumedBeforeImage(t *testing.T) {
	// Two samples declared but the buffer only holds one sample plus the
	// image. The second sample slot swallows image bytes, leaving too few for
	// the image itself.
	image := bytes.Repeat([]byte{0x11}, 12)
	payload := AppendHeader(nil, SensorHeader{IMUSampleCount: 2, ImageByteSize: uint32(len(image))})
	payload = AppendSample(payload, testSample(0), SampleLayoutCompact)
	payload = append(payload, image...)

	rec, err := DecodeSensor(payload)
	require.NoError(t, err)
	assert.Len(t, rec.Samples, 2)
	assert.Nil(t, rec.Image)
}

func TestDecoder_FullLayout(t *testing.T) {
	d := Decoder{Layout: SampleLayoutFull}
	in := &SensorRecord{
		Header: SensorHeader{BatteryMilliVolts: 3900, IMUSampleCount: 2},
		Samples: []IMUSample{
			{TimestampMicros: 10, Accel: [3]int16{1, 2, 3}, Gyro: [3]int16{-4, -5, -6}},
			{TimestampMicros: 20, Accel: [3]int16{7, 8, 9}, Gyro: [3]int16{10, 11, 12}},
		},
	}
	payload := d.Encode(in)
	require.Len(t, payload, SensorHeaderSize+2*FullIMUSampleSize)

	out, err := d.Decode(payload)
	require.NoError(t, err)
	if diff := cmp.Diff(in, out); diff != "" {
		t.Errorf("record mismatch (-want +got):\n%s", diff)
	}
}

func TestEncodeSensor_RoundTrip(t *testing.T) {
	in := &SensorRecord{
		Header: SensorHeader{
			CameraTimestampStart: 123456,
			CameraTimestampEnd:   123999,
			BatteryMilliVolts:    4100,
			IMUSampleCount:       3,
			ImageByteSize:        4,
		},
		Samples: []IMUSample{testSample(0), testSample(1), testSample(2)},
		Image:   []byte{1, 2, 3, 4},
	}

	out, err := DecodeSensor(EncodeSensor(in))
	require.NoError(t, err)
	if diff := cmp.Diff(in, out); diff != "" {
		t.Errorf("record mismatch (-want +got):\n%s", diff)
	}
	assert.False(t, out.Truncated())
}

func TestParseSampleLayout(t *testing.T) {
	tests := []struct {
		in      string
		want    SampleLayout
		wantErr bool
	}{
		{"", SampleLayoutCompact, false},
		{"compact", SampleLayoutCompact, false},
		{" FULL ", SampleLayoutFull, false},
		{"wide", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseSampleLayout(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}
