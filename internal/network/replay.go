package network

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/netip"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"github.com/banshee-data/argus/internal/monitoring"
)

// ReplayResult summarises a replay run.
type ReplayResult struct {
	Packets   int       // Packets read from the capture
	Datagrams int       // UDP datagrams passed to the dispatcher
	Skipped   int       // Non-UDP packets or other destination ports
	Dropped   int       // Datagrams the dispatcher rejected
	First     time.Time // Capture timestamp of the first packet
	Last      time.Time // Capture timestamp of the last packet
}

// Replay feeds the UDP datagrams of a classic pcap stream through d.
//
// Only datagrams addressed to port are used; port 0 accepts any. Discovery
// frames are counted but not answered. Replay stops at the end of the
// capture, on a read error, or when ctx is done between packets.
func Replay(ctx context.Context, r io.Reader, port int, d *Dispatcher) (ReplayResult, error) {
	var res ReplayResult

	reader, err := pcapgo.NewReader(r)
	if err != nil {
		return res, fmt.Errorf("failed to read pcap header: %w", err)
	}
	if port != 0 {
		monitoring.Logf("PCAP replay filter: udp dst port %d", port)
	}

	d.start(ctx)
	started := time.Now()

	for {
		if err := ctx.Err(); err != nil {
			monitoring.Logf("PCAP replay stopping due to context cancellation (processed %d packets)", res.Packets)
			return res, err
		}

		data, ci, err := reader.ReadPacketData()
		if errors.Is(err, io.EOF) {
			monitoring.Logf("PCAP replay complete: %d packets, %d datagrams, %d dropped in %v",
				res.Packets, res.Datagrams, res.Dropped, time.Since(started))
			return res, nil
		}
		if err != nil {
			return res, fmt.Errorf("failed to read packet %d: %w", res.Packets+1, err)
		}

		res.Packets++
		if res.First.IsZero() {
			res.First = ci.Timestamp
		}
		res.Last = ci.Timestamp

		packet := gopacket.NewPacket(data, reader.LinkType(), gopacket.Default)
		udp, ok := packet.Layer(layers.LayerTypeUDP).(*layers.UDP)
		if !ok || (port != 0 && int(udp.DstPort) != port) {
			res.Skipped++
			continue
		}

		res.Datagrams++
		from := sourceAddr(packet, udp)
		if err := d.HandleDatagram(udp.Payload, from, nil); err != nil {
			res.Dropped++
			monitoring.Warnf("dropped replayed datagram %d from %v: %v", res.Packets, from, err)
		}
	}
}

// sourceAddr returns the datagram's source IP and port.
func sourceAddr(packet gopacket.Packet, udp *layers.UDP) netip.AddrPort {
	var addr netip.Addr
	switch ip := packet.NetworkLayer().(type) {
	case *layers.IPv4:
		addr, _ = netip.AddrFromSlice(ip.SrcIP)
	case *layers.IPv6:
		addr, _ = netip.AddrFromSlice(ip.SrcIP)
	}
	return netip.AddrPortFrom(addr.Unmap(), uint16(udp.SrcPort))
}
