package network

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/banshee-data/argus/internal/monitoring"
)

// DropCounter records frames the forwarder could not queue.
type DropCounter interface {
	AddDropped()
}

// PacketForwarder mirrors accepted frames to another UDP address without
// blocking the receive loop.
type PacketForwarder struct {
	conn        net.Conn
	channel     chan []byte
	stats       DropCounter
	logInterval time.Duration
	address     string

	startOnce sync.Once
	closeOnce sync.Once
	done      chan struct{}
}

// DefaultForwardQueue is the number of frames buffered for forwarding.
const DefaultForwardQueue = 1000

// NewPacketForwarder dials addr ("host:port") and returns a forwarder.
func NewPacketForwarder(addr string, stats DropCounter, logInterval time.Duration) (*PacketForwarder, error) {
	forwardUDPAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve forward address: %w", err)
	}

	conn, err := net.DialUDP("udp", nil, forwardUDPAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to create forward connection: %w", err)
	}

	return newPacketForwarder(conn, addr, stats, logInterval, DefaultForwardQueue), nil
}

func newPacketForwarder(conn net.Conn, addr string, stats DropCounter, logInterval time.Duration, queue int) *PacketForwarder {
	if logInterval <= 0 {
		logInterval = time.Minute
	}
	return &PacketForwarder{
		conn:        conn,
		channel:     make(chan []byte, queue),
		stats:       stats,
		logInterval: logInterval,
		address:     addr,
		done:        make(chan struct{}),
	}
}

// Start launches the forwarding goroutine. Calls after the first are no-ops.
func (f *PacketForwarder) Start(ctx context.Context) {
	f.startOnce.Do(func() {
		go f.run(ctx)
		monitoring.Logf("Forwarding frames to %s", f.address)
	})
}

func (f *PacketForwarder) run(ctx context.Context) {
	failed := 0
	var lastError error
	ticker := time.NewTicker(f.logInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-f.done:
			return
		case packet := <-f.channel:
			if _, err := f.conn.Write(packet); err != nil {
				failed++
				lastError = err
			}
		case <-ticker.C:
			if failed > 0 {
				monitoring.Warnf("failed to forward %d frames (latest: %v)", failed, lastError)
				failed = 0
				lastError = nil
			}
		}
	}
}

// ForwardAsync queues a copy of packet. If the queue is full the packet is
// dropped and counted.
func (f *PacketForwarder) ForwardAsync(packet []byte) {
	packetCopy := make([]byte, len(packet))
	copy(packetCopy, packet)

	select {
	case f.channel <- packetCopy:
	default:
		if f.stats != nil {
			f.stats.AddDropped()
		}
	}
}

// Close stops the forwarding goroutine and closes the connection.
func (f *PacketForwarder) Close() error {
	var err error
	f.closeOnce.Do(func() {
		close(f.done)
		err = f.conn.Close()
	})
	return err
}
