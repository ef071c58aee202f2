package route

import (
	"go.uber.org/zap"

	"tinyip/pkg/netstack"
)

// Interface represents one network attachment, e.g. one physical or virtual
// link. The zero value with a Name is ready to be registered.
type Interface struct {
	Name string // Interface name (e.g., "eth0")

	table    *Table
	index    int
	endpoint *Endpoint
}

// Index returns the position of the interface in registration order, or -1
// when it has not been registered.
func (i *Interface) Index() int {
	if i.table == nil {
		return -1
	}
	return i.index
}

// EndPoint returns the first endpoint registered on the interface, or nil.
func (i *Interface) EndPoint() *Endpoint {
	return i.endpoint
}

func (i *Interface) String() string {
	if i == nil {
		return "<nil>"
	}
	return i.Name
}

// RegisterInterface appends iface to the interface list. Registering an
// interface that is already present is a no-op. It returns iface.
func (t *Table) RegisterInterface(iface *Interface) *Interface {
	const op = "RegisterInterface"
	mustHold(iface != nil, op, "nil interface")
	if t.single {
		mustHold(len(t.interfaces) == 0, op, "single mode allows one interface")
	}
	if iface.table == t {
		return iface
	}
	mustHold(iface.table == nil, op, "interface %q belongs to another table", iface.Name)
	mustHold(len(t.interfaces) < cap(t.interfaces), op, "interface capacity %d exhausted", cap(t.interfaces))

	iface.table = t
	iface.index = len(t.interfaces)
	iface.endpoint = nil
	t.interfaces = append(t.interfaces, iface)
	return iface
}

// RegisterEndpoint binds ep to iface and appends it to the endpoint list.
// Registering an endpoint that is already present on iface is a no-op. The
// first endpoint of an interface is cached on the interface. It returns ep.
func (t *Table) RegisterEndpoint(iface *Interface, ep *Endpoint) *Endpoint {
	const op = "RegisterEndpoint"
	mustHold(iface != nil, op, "nil interface")
	mustHold(ep != nil, op, "nil endpoint")
	mustHold(iface.table == t, op, "interface %q is not registered", iface.Name)
	if t.single {
		mustHold(len(t.endpoints) == 0, op, "single mode allows one endpoint")
	}
	if ep.table == t {
		mustHold(ep.iface == iface, op, "endpoint is bound to %q, not %q", ep.iface.Name, iface.Name)
		return ep
	}
	mustHold(ep.table == nil, op, "endpoint belongs to another table")
	mustHold(len(t.endpoints) < cap(t.endpoints), op, "endpoint capacity %d exhausted", cap(t.endpoints))

	ep.table = t
	ep.iface = iface
	ep.index = len(t.endpoints)
	if iface.endpoint == nil {
		iface.endpoint = ep
	}
	t.endpoints = append(t.endpoints, ep)

	mac := ep.mac
	if ep.family == FamilyIPv6 {
		t.log.Info("endpoint added",
			zap.String("iface", iface.Name),
			zap.String("mac", formatMACTail(mac)),
			zap.Stringer("hw", mac),
			zap.Stringer("ipv6", ipv6Stringer(ep.ipv6Defaults.Address)))
	} else {
		t.log.Info("endpoint added",
			zap.String("iface", iface.Name),
			zap.String("mac", formatMACTail(mac)),
			zap.Stringer("hw", mac),
			zap.Stringer("ipv4", ipv4Stringer(ep.ipv4Defaults.Address)))
	}
	return ep
}

// FirstInterface returns the first registered interface, or nil.
func (t *Table) FirstInterface() *Interface {
	if len(t.interfaces) == 0 {
		return nil
	}
	return t.interfaces[0]
}

// NextInterface returns the interface registered after iface, or nil when
// iface is nil or the last one.
func (t *Table) NextInterface(iface *Interface) *Interface {
	if iface == nil || iface.table != t {
		return nil
	}
	if next := iface.index + 1; next < len(t.interfaces) {
		return t.interfaces[next]
	}
	return nil
}

// FirstEndpoint returns the first endpoint bound to iface. A nil iface means
// any interface.
func (t *Table) FirstEndpoint(iface *Interface) *Endpoint {
	return t.scanEndpoints(iface, 0)
}

// NextEndpoint returns the endpoint after cursor that is bound to iface, or
// nil when there are no more. A nil iface means any interface.
func (t *Table) NextEndpoint(iface *Interface, cursor *Endpoint) *Endpoint {
	if cursor == nil || cursor.table != t {
		return nil
	}
	return t.scanEndpoints(iface, cursor.index+1)
}

// FirstIPv6Endpoint returns the first IPv6 endpoint bound to iface. A nil
// iface means any interface.
func (t *Table) FirstIPv6Endpoint(iface *Interface) *Endpoint {
	for _, ep := range t.endpoints {
		if ep.family == FamilyIPv6 && (iface == nil || ep.iface == iface) {
			return ep
		}
	}
	return nil
}

// AllEndpointsUp reports whether every endpoint bound to iface is up. A nil
// iface checks every endpoint. An interface without endpoints is not up.
func (t *Table) AllEndpointsUp(iface *Interface) bool {
	found := false
	for ep := t.FirstEndpoint(iface); ep != nil; ep = t.NextEndpoint(iface, ep) {
		if !ep.up {
			return false
		}
		found = true
	}
	return found
}

func (t *Table) scanEndpoints(iface *Interface, from int) *Endpoint {
	for i := from; i < len(t.endpoints); i++ {
		if ep := t.endpoints[i]; iface == nil || ep.iface == iface {
			return ep
		}
	}
	return nil
}

// formatMACTail renders the two low bytes of a MAC the way the advisory
// registration line has always shown them, e.g. "44-55".
func formatMACTail(m netstack.MAC) string {
	const hex = "0123456789abcdef"
	return string([]byte{hex[m[4]>>4], hex[m[4]&0xF], '-', hex[m[5]>>4], hex[m[5]&0xF]})
}
