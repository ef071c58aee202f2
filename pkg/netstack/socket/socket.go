// Package socket provides minimal TCP and UDP socket records bound to routing
// endpoints.
package socket

import (
	"errors"
	"fmt"
	network "net"
	"sync"
	"sync/atomic"

	"tinyip/pkg/netstack"
	"tinyip/pkg/netstack/route"
)

// Protocol represents the socket protocol.
type Protocol uint8

const (
	ProtocolTCP Protocol = Protocol(netstack.ProtocolTCP)
	ProtocolUDP Protocol = Protocol(netstack.ProtocolUDP)
)

// SocketType represents the socket type.
type SocketType uint8

const (
	SocketStream SocketType = iota
	SocketDgram
)

// Status represents the socket status.
type Status uint8

const (
	StatusUnconnected Status = iota
	StatusConnecting
	StatusConnected
	StatusListening
	StatusClosing
	StatusClosed
)

// Queue depth of the send and receive buffers.
const queueDepth = 100

// Socket errors.
var (
	ErrClosed        = errors.New("socket closed")
	ErrNotConnected  = errors.New("not connected")
	ErrNotListening  = errors.New("socket not listening")
	ErrBufferFull    = errors.New("buffer full")
	ErrNoData        = errors.New("no data available")
	ErrAlreadyActive = errors.New("socket already connected or connecting")
)

// Socket represents a network socket. The embedded binding records the
// endpoint the socket sends from; see route.GetSocketEndpoint.
type Socket struct {
	route.EndpointBinding

	ID       uint64
	Protocol Protocol
	Type     SocketType
	Status   Status

	// Address info
	localAddr  network.Addr
	remoteAddr network.Addr

	table *route.Table

	// Synchronization
	mu       sync.RWMutex
	recvChan chan []byte
	sendChan chan []byte
	closed   bool
}

func newSocket(proto Protocol, typ SocketType, status Status, table *route.Table) *Socket {
	return &Socket{
		ID:       generateSocketID(),
		Protocol: proto,
		Type:     typ,
		Status:   status,
		table:    table,
		recvChan: make(chan []byte, queueDepth),
		sendChan: make(chan []byte, queueDepth),
	}
}

// NewTCPSocket creates a new TCP socket.
func NewTCPSocket(table *route.Table) *Socket {
	return newSocket(ProtocolTCP, SocketStream, StatusUnconnected, table)
}

// NewUDPSocket creates a new UDP socket bound to the given local address.
func NewUDPSocket(port uint16, localIP network.IP, table *route.Table) *Socket {
	s := newSocket(ProtocolUDP, SocketDgram, StatusConnected, table)
	s.localAddr = &network.UDPAddr{IP: localIP, Port: int(port)}
	return s
}

// Endpoint returns the endpoint the socket is bound to, or nil.
func (s *Socket) Endpoint() *route.Endpoint {
	return route.GetSocketEndpoint(s)
}

// Connect selects the endpoint that reaches addr and binds the socket to it.
// An endpoint whose subnet contains addr is preferred; otherwise the first
// endpoint with a gateway of the same family is used.
func (s *Socket) Connect(addr network.Addr) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if s.Protocol == ProtocolTCP && s.Status != StatusUnconnected {
		return ErrAlreadyActive
	}

	dst, err := remoteIP(addr)
	if err != nil {
		return err
	}

	ep := s.sourceEndpoint(dst)
	if ep == nil {
		return fmt.Errorf("connect %s: %w", addr, netstack.ErrNoRoute)
	}

	route.SetSocketEndpoint(s, ep)
	s.remoteAddr = addr
	if s.localAddr == nil {
		s.localAddr = localAddrFor(s.Protocol, ep)
	}
	s.Status = StatusConnected
	return nil
}

func (s *Socket) sourceEndpoint(dst network.IP) *route.Endpoint {
	if v4 := dst.To4(); v4 != nil {
		if ep := s.table.FindEndpointOnNetmaskFrom(route.SiteSocketConnect, nil, netstack.IPToUint32(v4)); ep != nil {
			return ep
		}
		return s.table.FindGateway(route.FamilyIPv4)
	}

	a, ok := netstack.IPToArray16(dst)
	if !ok {
		return nil
	}
	if ep := s.table.FindEndpointOnNetmaskIPv6(a); ep != nil {
		return ep
	}
	return s.table.FindGateway(route.FamilyIPv6)
}

func remoteIP(addr network.Addr) (network.IP, error) {
	switch a := addr.(type) {
	case *network.TCPAddr:
		return a.IP, nil
	case *network.UDPAddr:
		return a.IP, nil
	case *network.IPAddr:
		return a.IP, nil
	}
	return nil, fmt.Errorf("unsupported address %T: %w", addr, netstack.ErrInvalidAddress)
}

func localAddrFor(proto Protocol, ep *route.Endpoint) network.Addr {
	var local network.IP
	if ep.IsIPv6() {
		local = netstack.Array16ToIP(ep.IPv6().Address)
	} else {
		local = netstack.Uint32ToIP(ep.IPv4().Address)
	}
	if proto == ProtocolUDP {
		return &network.UDPAddr{IP: local}
	}
	return &network.TCPAddr{IP: local}
}

// Listen puts the socket in listening mode.
func (s *Socket) Listen(backlog int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Status != StatusUnconnected {
		return fmt.Errorf("socket must be unconnected to listen")
	}

	s.Status = StatusListening
	return nil
}

// Accept creates a connected socket for an inbound frame received on iface,
// bound to the endpoint that owns the frame.
func (s *Socket) Accept(frame []byte, iface *route.Interface) (*Socket, error) {
	s.mu.RLock()
	if s.Status != StatusListening {
		s.mu.RUnlock()
		return nil, ErrNotListening
	}
	s.mu.RUnlock()

	ep := s.table.MatchIncomingFrame(iface, frame)
	if ep == nil {
		return nil, fmt.Errorf("accept on %s: %w", iface, netstack.ErrNoRoute)
	}

	conn := NewTCPSocket(s.table)
	route.SetSocketEndpoint(conn, ep)
	conn.localAddr = localAddrFor(conn.Protocol, ep)
	conn.Status = StatusConnected
	return conn, nil
}

// Send queues data for transmission.
func (s *Socket) Send(data []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrClosed
	}
	if s.Status != StatusConnected {
		return 0, ErrNotConnected
	}

	select {
	case s.sendChan <- data:
		return len(data), nil
	default:
		return 0, fmt.Errorf("send: %w", ErrBufferFull)
	}
}

// Outgoing returns the next queued outbound payload, or nil when the queue is
// empty.
func (s *Socket) Outgoing() []byte {
	select {
	case data := <-s.sendChan:
		return data
	default:
		return nil
	}
}

// Deliver queues an inbound payload for Recv.
func (s *Socket) Deliver(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	select {
	case s.recvChan <- data:
		return nil
	default:
		return fmt.Errorf("deliver: %w", ErrBufferFull)
	}
}

// Recv receives data from the socket.
func (s *Socket) Recv(buf []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrClosed
	}

	select {
	case data := <-s.recvChan:
		return copy(buf, data), nil
	default:
		return 0, ErrNoData
	}
}

// Close closes the socket and releases its endpoint binding.
func (s *Socket) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("close: %w", ErrClosed)
	}

	s.closed = true
	s.Status = StatusClosed
	route.SetSocketEndpoint(s, nil)
	return nil
}

// LocalAddr returns the local address.
func (s *Socket) LocalAddr() network.Addr {
	return s.localAddr
}

// RemoteAddr returns the remote address.
func (s *Socket) RemoteAddr() network.Addr {
	return s.remoteAddr
}

// IsIPv6 reports whether the socket is bound to an IPv6 endpoint.
func (s *Socket) IsIPv6() bool {
	ep := s.Endpoint()
	return ep != nil && ep.IsIPv6()
}

var socketIDCounter atomic.Uint64

func generateSocketID() uint64 {
	return socketIDCounter.Add(1)
}

// Manager manages a collection of sockets.
type Manager struct {
	mu      sync.RWMutex
	sockets map[uint64]*Socket
}

// NewManager creates a new socket manager.
func NewManager() *Manager {
	return &Manager{
		sockets: make(map[uint64]*Socket),
	}
}

// Add adds a socket to the manager.
func (m *Manager) Add(s *Socket) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sockets[s.ID] = s
}

// Get retrieves a socket by ID.
func (m *Manager) Get(id uint64) (*Socket, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sockets[id]
	return s, ok
}

// Remove removes a socket from the manager.
func (m *Manager) Remove(id uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sockets, id)
}

// List returns all socket IDs.
func (m *Manager) List() []uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]uint64, 0, len(m.sockets))
	for id := range m.sockets {
		ids = append(ids, id)
	}
	return ids
}

// BoundTo returns the IDs of the sockets bound to ep.
func (m *Manager) BoundTo(ep *route.Endpoint) []uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var ids []uint64
	for id, s := range m.sockets {
		if route.GetSocketEndpoint(s) == ep {
			ids = append(ids, id)
		}
	}
	return ids
}
