package protocol

import (
	"bytes"
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeFrame_TooShort(t *testing.T) {
	for _, raw := range [][]byte{nil, {}, {0x01}} {
		_, err := DecodeFrame(raw)
		if !errors.Is(err, ErrFrameTooShort) {
			t.Errorf("DecodeFrame(%v) error = %v, want ErrFrameTooShort", raw, err)
		}
	}
}

func TestDecodeFrame_EmptyPayload(t *testing.T) {
	f, err := DecodeFrame([]byte{0x01, 0xD5})
	require.NoError(t, err)
	assert.Equal(t, MessageDiscovery, f.Type)
	assert.Empty(t, f.Payload)
}

func TestDecodeFrame_ChecksumMismatch(t *testing.T) {
	_, err := DecodeFrame([]byte{0x01, 0xD4})
	assert.ErrorIs(t, err, ErrChecksumMismatch)
}

func TestEncodeReply(t *testing.T) {
	reply := EncodeReply(MessageHello)
	assert.Equal(t, []byte{0x02, 0x7F}, reply)

	f, err := DecodeFrame(reply)
	require.NoError(t, err)
	assert.Equal(t, MessageHello, f.Type)
	assert.Empty(t, f.Payload)
}

func TestFrame_RoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 100; i++ {
		payload := make([]byte, rng.Intn(512))
		rng.Read(payload)
		mt := MessageType(rng.Intn(256))

		f, err := DecodeFrame(EncodeFrame(mt, payload))
		require.NoError(t, err)
		assert.Equal(t, mt, f.Type)
		assert.True(t, bytes.Equal(payload, f.Payload), "payload mismatch at iteration %d", i)
	}
}

func TestFrame_SingleByteCorruptionRejected(t *testing.T) {
	payload := []byte("tracker-telemetry-payload")
	frame := EncodeFrame(MessageSensorData, payload)

	// CRC-8 detects every single-bit and single-byte error in the covered
	// range, so each corruption must be rejected.
	for pos := 0; pos < len(frame)-1; pos++ {
		for _, flip := range []byte{0x01, 0x80, 0xFF, 0x5A} {
			corrupt := append([]byte(nil), frame...)
			corrupt[pos] ^= flip
			_, err := DecodeFrame(corrupt)
			if !errors.Is(err, ErrChecksumMismatch) {
				t.Fatalf("corrupting byte %d with 0x%02x: error = %v, want ErrChecksumMismatch", pos, flip, err)
			}
		}
	}
}

func TestAppendFrame_PreservesPrefix(t *testing.T) {
	dst := []byte{0xAA, 0xBB}
	out := AppendFrame(dst, MessageDiscovery, nil)
	assert.Equal(t, []byte{0xAA, 0xBB, 0x01, 0xD5}, out)
}

func TestMessageType_String(t *testing.T) {
	assert.Equal(t, "discovery", MessageDiscovery.String())
	assert.Equal(t, "hello", MessageHeartbeat.String())
	assert.Equal(t, "sensor_data", MessageSensorData.String())
	assert.Equal(t, "type(0x7e)", MessageType(0x7E).String())
}
