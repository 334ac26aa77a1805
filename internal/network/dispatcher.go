package network

import (
	"context"
	"errors"
	"fmt"
	"net/netip"

	"github.com/banshee-data/argus/internal/protocol"
	"github.com/banshee-data/argus/internal/tracking"
)

var (
	// ErrUnknownType indicates a frame whose tag is not a known message type.
	ErrUnknownType = errors.New("unknown message type")
	// ErrUnhandledType indicates a known message type that is not accepted
	// inbound (Hello, SetupConfig).
	ErrUnhandledType = errors.New("unhandled message type")
)

// Replier sends a frame back to the sender of a datagram.
type Replier interface {
	Reply(to netip.AddrPort, frame []byte) error
}

// RecordSink receives decoded sensor records.
type RecordSink interface {
	Route(from netip.AddrPort, rec *protocol.SensorRecord) tracking.Entry
}

// DispatcherConfig contains configuration options for the dispatcher.
type DispatcherConfig struct {
	Decoder   protocol.Decoder
	Sink      RecordSink
	Stats     *PacketStats
	Forwarder *PacketForwarder
}

// Dispatcher validates datagrams and routes them by message type. It is not
// safe for concurrent use; one receive loop owns it.
type Dispatcher struct {
	decoder   protocol.Decoder
	sink      RecordSink
	stats     *PacketStats
	forwarder *PacketForwarder
	hello     []byte
}

// NewDispatcher creates a dispatcher. Sink is required.
func NewDispatcher(config DispatcherConfig) *Dispatcher {
	stats := config.Stats
	if stats == nil {
		stats = NewPacketStats(nil)
	}
	return &Dispatcher{
		decoder:   config.Decoder,
		sink:      config.Sink,
		stats:     stats,
		forwarder: config.Forwarder,
		hello:     protocol.EncodeReply(protocol.MessageHello),
	}
}

// Stats returns the counters the dispatcher updates.
func (d *Dispatcher) Stats() *PacketStats {
	return d.stats
}

// HandleDatagram processes one datagram received from from. A nil reply
// suppresses the Discovery handshake, as during replay.
//
// The returned error describes why the datagram was dropped or why the
// reply failed; it never indicates a condition the caller must act on.
// Truncated sensor records are delivered and do not produce an error.
func (d *Dispatcher) HandleDatagram(raw []byte, from netip.AddrPort, reply Replier) error {
	d.stats.AddPacket(len(raw))

	frame, err := protocol.DecodeFrame(raw)
	if err != nil {
		d.stats.AddRejected(err)
		return err
	}

	if d.forwarder != nil {
		d.forwarder.ForwardAsync(raw)
	}

	switch frame.Type {
	case protocol.MessageDiscovery:
		d.stats.AddDiscovery()
		if reply == nil {
			return nil
		}
		if err := reply.Reply(from, d.hello); err != nil {
			d.stats.AddSendError()
			return fmt.Errorf("failed to send hello to %v: %w", from, err)
		}
		d.stats.AddHelloSent()
		return nil

	case protocol.MessageSensorData:
		rec, err := d.decoder.Decode(frame.Payload)
		if err != nil {
			d.stats.AddRejected(err)
			return err
		}
		d.sink.Route(from, rec)
		d.stats.AddSensorRecord(rec.Truncated())
		return nil

	case protocol.MessageHello, protocol.MessageSetupConfig:
		err := fmt.Errorf("%w: %v", ErrUnhandledType, frame.Type)
		d.stats.AddRejected(err)
		return err

	default:
		err := fmt.Errorf("%w: %v", ErrUnknownType, frame.Type)
		d.stats.AddRejected(err)
		return err
	}
}

// start launches the forwarder, if any, for the lifetime of ctx.
func (d *Dispatcher) start(ctx context.Context) {
	if d.forwarder != nil {
		d.forwarder.Start(ctx)
	}
}
