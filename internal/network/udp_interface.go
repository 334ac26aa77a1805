package network

import (
	"net"
	"net/netip"
	"sync"
)

// UDPSocket defines the socket operations the listener needs.
// This abstraction enables unit testing without real network connections.
type UDPSocket interface {
	// ReadFromUDPAddrPort blocks until a datagram arrives or the socket is
	// closed.
	ReadFromUDPAddrPort(b []byte) (n int, addr netip.AddrPort, err error)

	// WriteToUDPAddrPort sends a datagram to addr.
	WriteToUDPAddrPort(b []byte, addr netip.AddrPort) (int, error)

	// SetReadBuffer sets the size of the operating system's receive buffer.
	SetReadBuffer(bytes int) error

	// Close closes the socket, unblocking any pending read.
	Close() error

	// LocalAddr returns the local network address.
	LocalAddr() net.Addr
}

// UDPSocketFactory creates UDP sockets.
type UDPSocketFactory interface {
	ListenUDP(network string, laddr *net.UDPAddr) (UDPSocket, error)
}

// RealUDPSocketFactory implements UDPSocketFactory using net.ListenUDP.
// *net.UDPConn satisfies UDPSocket directly.
type RealUDPSocketFactory struct{}

// NewRealUDPSocketFactory creates a new RealUDPSocketFactory.
func NewRealUDPSocketFactory() *RealUDPSocketFactory {
	return &RealUDPSocketFactory{}
}

// ListenUDP creates a new UDP socket.
func (f *RealUDPSocketFactory) ListenUDP(network string, laddr *net.UDPAddr) (UDPSocket, error) {
	conn, err := net.ListenUDP(network, laddr)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// MockUDPPacket represents a datagram for mock testing.
type MockUDPPacket struct {
	Data []byte
	Addr netip.AddrPort
}

// MockUDPSocket implements UDPSocket for testing. Reads block until a packet
// is delivered or the socket is closed, like a real socket without a
// deadline.
type MockUDPSocket struct {
	packets   chan MockUDPPacket
	closed    chan struct{}
	closeOnce sync.Once

	mu sync.Mutex
	// ReadErrors are returned, in order, before any queued packet.
	ReadErrors []error
	// WriteError is returned by every WriteToUDPAddrPort call if set.
	WriteError error
	// SetReadBufferError is returned by SetReadBuffer if set.
	SetReadBufferError error
	// LocalAddress is returned by LocalAddr.
	LocalAddress *net.UDPAddr

	readBufferSize int
	written        []MockUDPPacket
}

// NewMockUDPSocket creates a MockUDPSocket with packets queued for reading.
func NewMockUDPSocket(packets []MockUDPPacket) *MockUDPSocket {
	m := &MockUDPSocket{
		packets: make(chan MockUDPPacket, len(packets)+256),
		closed:  make(chan struct{}),
		LocalAddress: &net.UDPAddr{
			IP:   net.ParseIP("127.0.0.1"),
			Port: 4210,
		},
	}
	for _, p := range packets {
		m.packets <- p
	}
	return m
}

// Deliver queues another datagram for reading.
func (m *MockUDPSocket) Deliver(data []byte, from netip.AddrPort) {
	m.packets <- MockUDPPacket{Data: data, Addr: from}
}

// ReadFromUDPAddrPort returns the next queued packet, blocking until one is
// available or the socket is closed.
func (m *MockUDPSocket) ReadFromUDPAddrPort(b []byte) (int, netip.AddrPort, error) {
	m.mu.Lock()
	if len(m.ReadErrors) > 0 {
		err := m.ReadErrors[0]
		m.ReadErrors = m.ReadErrors[1:]
		m.mu.Unlock()
		return 0, netip.AddrPort{}, err
	}
	m.mu.Unlock()

	select {
	case <-m.closed:
		return 0, netip.AddrPort{}, net.ErrClosed
	default:
	}

	select {
	case pkt := <-m.packets:
		return copy(b, pkt.Data), pkt.Addr, nil
	case <-m.closed:
		return 0, netip.AddrPort{}, net.ErrClosed
	}
}

// WriteToUDPAddrPort records the datagram.
func (m *MockUDPSocket) WriteToUDPAddrPort(b []byte, addr netip.AddrPort) (int, error) {
	select {
	case <-m.closed:
		return 0, net.ErrClosed
	default:
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.WriteError != nil {
		return 0, m.WriteError
	}
	m.written = append(m.written, MockUDPPacket{Data: append([]byte(nil), b...), Addr: addr})
	return len(b), nil
}

// Written returns a copy of every datagram sent through the socket.
func (m *MockUDPSocket) Written() []MockUDPPacket {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockUDPPacket, len(m.written))
	copy(out, m.written)
	return out
}

// SetReadBuffer records the buffer size.
func (m *MockUDPSocket) SetReadBuffer(bytes int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SetReadBufferError != nil {
		return m.SetReadBufferError
	}
	m.readBufferSize = bytes
	return nil
}

// ReadBufferSize returns the value set by SetReadBuffer.
func (m *MockUDPSocket) ReadBufferSize() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.readBufferSize
}

// Close marks the socket as closed. It is safe to call more than once.
func (m *MockUDPSocket) Close() error {
	m.closeOnce.Do(func() { close(m.closed) })
	return nil
}

// Closed reports whether Close was called.
func (m *MockUDPSocket) Closed() bool {
	select {
	case <-m.closed:
		return true
	default:
		return false
	}
}

// LocalAddr returns the mock local address.
func (m *MockUDPSocket) LocalAddr() net.Addr {
	return m.LocalAddress
}

// MockUDPSocketFactory implements UDPSocketFactory for testing.
type MockUDPSocketFactory struct {
	// Socket is the socket to return from ListenUDP.
	Socket *MockUDPSocket
	// Error is returned by ListenUDP if set.
	Error error

	mu          sync.Mutex
	listenCalls []MockListenCall
}

// MockListenCall records a call to ListenUDP.
type MockListenCall struct {
	Network string
	Addr    *net.UDPAddr
}

// NewMockUDPSocketFactory creates a new MockUDPSocketFactory.
func NewMockUDPSocketFactory(socket *MockUDPSocket) *MockUDPSocketFactory {
	return &MockUDPSocketFactory{Socket: socket}
}

// ListenUDP returns the configured mock socket.
func (f *MockUDPSocketFactory) ListenUDP(network string, laddr *net.UDPAddr) (UDPSocket, error) {
	f.mu.Lock()
	f.listenCalls = append(f.listenCalls, MockListenCall{Network: network, Addr: laddr})
	f.mu.Unlock()
	if f.Error != nil {
		return nil, f.Error
	}
	return f.Socket, nil
}

// ListenCalls returns the recorded ListenUDP calls.
func (f *MockUDPSocketFactory) ListenCalls() []MockListenCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]MockListenCall(nil), f.listenCalls...)
}
