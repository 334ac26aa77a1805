// Package protocol implements the tracker wire format.
//
// A datagram is a frame laid out as [type:1][payload:N][checksum:1]. The
// checksum is CRC-8/DVB-S2 over the type byte and payload. SensorData
// payloads carry a fixed 15-byte header, a run of inertial samples and an
// optional opaque image blob. All multi-byte integers are little-endian.
//
// Decoding never panics on short input. Frames that fail length or checksum
// validation are rejected with a sentinel error; sensor payloads whose
// declared sample count or image size exceed the bytes actually present are
// decoded best-effort, so callers must inspect len(Samples) and Image rather
// than trusting the header counts.
package protocol
