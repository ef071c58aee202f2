package route

// EndpointBinding records the endpoint a socket sends from and receives on.
// Transport sockets embed it to satisfy Socket.
type EndpointBinding struct {
	endpoint *Endpoint
}

func (b *EndpointBinding) binding() *EndpointBinding {
	return b
}

// Socket is implemented by any type embedding EndpointBinding.
type Socket interface {
	binding() *EndpointBinding
}

// GetSocketEndpoint returns the endpoint bound to s, or nil when s is unbound
// or is the nil interface value. A nil pointer of a type embedding
// EndpointBinding is not a valid socket and panics.
func GetSocketEndpoint(s Socket) *Endpoint {
	if s == nil {
		return nil
	}
	b := s.binding()
	if b == nil {
		return nil
	}
	return b.endpoint
}

// SetSocketEndpoint binds s to ep. A nil ep clears the binding.
func SetSocketEndpoint(s Socket, ep *Endpoint) {
	mustHold(s != nil, "SetSocketEndpoint", "nil socket")
	b := s.binding()
	mustHold(b != nil, "SetSocketEndpoint", "nil socket")
	b.endpoint = ep
}
