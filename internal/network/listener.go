// Package network receives tracker datagrams over UDP, validates them and
// routes them by message type. Captured traffic can be replayed through the
// same path from a pcap file.
package network

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"sync"
	"time"

	"github.com/banshee-data/argus/internal/monitoring"
	"github.com/banshee-data/argus/internal/timeutil"
)

// Listener defaults.
const (
	DefaultAddress     = ":4210"
	DefaultMaxDatagram = 2048
)

// ListenerConfig contains configuration options for the UDP listener.
type ListenerConfig struct {
	Address       string
	RcvBuf        int           // OS receive buffer; 0 leaves the system default
	MaxDatagram   int           // Read buffer size; longer datagrams are truncated
	LogInterval   time.Duration // Interval between stats log lines
	Dispatcher    *Dispatcher
	SocketFactory UDPSocketFactory // Defaults to RealUDPSocketFactory
	Clock         timeutil.Clock   // Drives stats logging; defaults to RealClock
}

// Listener owns the UDP socket and the single receive loop that feeds the
// dispatcher.
type Listener struct {
	address       string
	rcvBuf        int
	maxDatagram   int
	logInterval   time.Duration
	dispatcher    *Dispatcher
	socketFactory UDPSocketFactory
	clock         timeutil.Clock

	mu    sync.Mutex
	conn  UDPSocket
	ready chan struct{}
}

// NewListener creates a new UDP listener with the provided configuration.
func NewListener(config ListenerConfig) *Listener {
	address := config.Address
	if address == "" {
		address = DefaultAddress
	}
	maxDatagram := config.MaxDatagram
	if maxDatagram <= 0 {
		maxDatagram = DefaultMaxDatagram
	}
	logInterval := config.LogInterval
	if logInterval <= 0 {
		logInterval = time.Minute
	}
	factory := config.SocketFactory
	if factory == nil {
		factory = NewRealUDPSocketFactory()
	}
	clock := config.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}

	return &Listener{
		address:       address,
		rcvBuf:        config.RcvBuf,
		maxDatagram:   maxDatagram,
		logInterval:   logInterval,
		dispatcher:    config.Dispatcher,
		socketFactory: factory,
		clock:         clock,
		ready:         make(chan struct{}),
	}
}

// Start binds the socket and runs the receive loop until ctx is cancelled
// or Close is called. It returns ctx.Err() on cancellation, nil after Close,
// and an error only if the socket cannot be set up. Per-datagram failures
// are logged and never end the loop. Start may be called only once.
func (l *Listener) Start(ctx context.Context) error {
	addr, err := net.ResolveUDPAddr("udp", l.address)
	if err != nil {
		return fmt.Errorf("failed to resolve UDP address: %w", err)
	}

	conn, err := l.socketFactory.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on UDP address: %w", err)
	}
	l.mu.Lock()
	l.conn = conn
	l.mu.Unlock()
	defer l.Close()

	if l.rcvBuf > 0 {
		if err := conn.SetReadBuffer(l.rcvBuf); err != nil {
			monitoring.Logf("Warning: Failed to set UDP receive buffer size to %d: %v", l.rcvBuf, err)
		}
	}

	monitoring.Logf("UDP listener started on %s with receive buffer %d bytes", conn.LocalAddr(), l.rcvBuf)
	close(l.ready)

	l.dispatcher.start(ctx)
	go l.startStatsLogging(ctx)

	// Reads carry no deadline; closing the socket is what unblocks them.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	buffer := make([]byte, l.maxDatagram)
	for {
		n, from, err := conn.ReadFromUDPAddrPort(buffer)
		if err != nil {
			if ctx.Err() != nil {
				monitoring.Logf("UDP listener stopping due to context cancellation")
				return ctx.Err()
			}
			if errors.Is(err, net.ErrClosed) {
				monitoring.Logf("UDP listener closed")
				return nil
			}
			l.dispatcher.stats.AddReadError()
			monitoring.Warnf("UDP read error: %v", err)
			continue
		}

		from = netip.AddrPortFrom(from.Addr().Unmap(), from.Port())
		if err := l.dispatcher.HandleDatagram(buffer[:n], from, l); err != nil {
			monitoring.Warnf("dropped datagram from %v: %v", from, err)
		}
	}
}

// startStatsLogging periodically logs packet statistics until ctx is done.
func (l *Listener) startStatsLogging(ctx context.Context) {
	ticker := l.clock.NewTicker(l.logInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			l.dispatcher.stats.LogStats()
		}
	}
}

// Reply writes frame to the given address through the listening socket.
func (l *Listener) Reply(to netip.AddrPort, frame []byte) error {
	conn := l.GetConn()
	if conn == nil {
		return net.ErrClosed
	}
	_, err := conn.WriteToUDPAddrPort(frame, to)
	return err
}

// Ready is closed once the socket is bound.
func (l *Listener) Ready() <-chan struct{} {
	return l.ready
}

// LocalAddr returns the bound address, or nil before Start binds.
func (l *Listener) LocalAddr() net.Addr {
	conn := l.GetConn()
	if conn == nil {
		return nil
	}
	return conn.LocalAddr()
}

// GetConn returns the UDP socket, or nil when not listening.
func (l *Listener) GetConn() UDPSocket {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.conn
}

// Close closes the socket, ending the receive loop.
func (l *Listener) Close() error {
	l.mu.Lock()
	conn := l.conn
	l.conn = nil
	l.mu.Unlock()
	if conn == nil {
		return nil
	}
	return conn.Close()
}
