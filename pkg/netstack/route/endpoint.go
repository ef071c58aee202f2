package route

import (
	"fmt"
	"net"

	"tinyip/pkg/netstack"
	"tinyip/pkg/netstack/ip"
)

// Family tells IPv4 and IPv6 endpoints apart.
type Family uint8

// Endpoint families.
const (
	FamilyIPv4 Family = iota
	FamilyIPv6
)

func (f Family) String() string {
	switch f {
	case FamilyIPv4:
		return "ipv4"
	case FamilyIPv6:
		return "ipv6"
	}
	return fmt.Sprintf("family(%d)", uint8(f))
}

// MaxDNSServers is the number of DNS server slots kept per endpoint.
const MaxDNSServers = 2

// IPv4Settings holds the addressing of an IPv4 endpoint. Addresses are in
// host byte order; zero means unset.
type IPv4Settings struct {
	Address    uint32
	NetMask    uint32
	Gateway    uint32
	Broadcast  uint32
	DNSServers [MaxDNSServers]uint32
}

// IPv6Settings holds the addressing of an IPv6 endpoint. The zero address
// means unset.
type IPv6Settings struct {
	Address      ip.Address
	Prefix       ip.Address
	PrefixLength int
	Gateway      ip.Address
	DNSServers   [MaxDNSServers]ip.Address
}

// Endpoint is one IPv4 or IPv6 address binding, owned by exactly one
// Interface for its lifetime. Storage is supplied by the caller and filled by
// Table.FillIPv4Endpoint or Table.FillIPv6Endpoint.
type Endpoint struct {
	family Family
	mac    netstack.MAC
	up     bool

	ipv4         IPv4Settings
	ipv4Defaults IPv4Settings
	ipv6         IPv6Settings
	ipv6Defaults IPv6Settings

	table *Table
	iface *Interface
	index int
}

// FillIPv4Endpoint configures ep as an IPv4 endpoint and registers it on
// iface.
//
// The netmask, gateway, DNS server and the derived broadcast address become
// the current settings, which are then copied into the default settings. The
// default address is set to address while the current address is left unset:
// it is filled in later by dynamic configuration or by ApplyDefaults.
// gateway and dns may be nil.
func (t *Table) FillIPv4Endpoint(iface *Interface, ep *Endpoint, address, netmask, gateway, dns net.IP, mac net.HardwareAddr) *Endpoint {
	const op = "FillIPv4Endpoint"
	mustHold(ep != nil, op, "nil endpoint storage")
	mustHold(ep.table == nil, op, "endpoint is already registered")
	mustHold(address.To4() != nil, op, "address %v is not IPv4", address)
	mustHold(netmask.To4() != nil, op, "netmask %v is not IPv4", netmask)
	hw, ok := netstack.MACFromHardwareAddr(mac)
	mustHold(ok, op, "MAC %v is not %d bytes", mac, netstack.MACLength)

	*ep = Endpoint{}
	addr := netstack.IPToUint32(address)
	ep.ipv4.NetMask = netstack.IPToUint32(netmask)
	ep.ipv4.Gateway = netstack.IPToUint32(gateway)
	ep.ipv4.DNSServers[0] = netstack.IPToUint32(dns)
	ep.ipv4.Broadcast = ip.BroadcastAddress(addr, ep.ipv4.NetMask)

	ep.ipv4Defaults = ep.ipv4
	ep.ipv4Defaults.Address = addr

	ep.mac = hw
	return t.RegisterEndpoint(iface, ep)
}

// FillIPv6Endpoint configures ep as an IPv6 endpoint and registers it on
// iface. Unlike IPv4 the unicast address is written into both the current
// and the default settings. prefix, gateway and dns may be nil.
func (t *Table) FillIPv6Endpoint(iface *Interface, ep *Endpoint, address, prefix net.IP, prefixLength int, gateway, dns net.IP, mac net.HardwareAddr) *Endpoint {
	const op = "FillIPv6Endpoint"
	mustHold(ep != nil, op, "nil endpoint storage")
	mustHold(ep.table == nil, op, "endpoint is already registered")
	addr, ok := netstack.IPToArray16(address)
	mustHold(ok, op, "address %v is not IPv6", address)
	mustHold(prefixLength >= 0 && prefixLength <= ip.IPv6AddressBits, op, "prefix length %d out of range", prefixLength)
	hw, ok := netstack.MACFromHardwareAddr(mac)
	mustHold(ok, op, "MAC %v is not %d bytes", mac, netstack.MACLength)

	*ep = Endpoint{family: FamilyIPv6}
	ep.ipv6.PrefixLength = prefixLength
	if gateway != nil {
		ep.ipv6.Gateway = optionalIPv6(op, "gateway", gateway)
	}
	if dns != nil {
		ep.ipv6.DNSServers[0] = optionalIPv6(op, "dns", dns)
	}
	if prefix != nil {
		ep.ipv6.Prefix = optionalIPv6(op, "prefix", prefix)
	}
	ep.ipv6.Address = addr
	ep.ipv6Defaults = ep.ipv6

	ep.mac = hw
	return t.RegisterEndpoint(iface, ep)
}

func optionalIPv6(op, field string, v net.IP) ip.Address {
	a, ok := netstack.IPToArray16(v)
	mustHold(ok, op, "%s %v is not IPv6", field, v)
	return a
}

// Family returns the address family of the endpoint.
func (e *Endpoint) Family() Family {
	return e.family
}

// IsIPv6 reports whether e is an IPv6 endpoint.
func (e *Endpoint) IsIPv6() bool {
	return e.family == FamilyIPv6
}

// MAC returns the hardware address of the endpoint.
func (e *Endpoint) MAC() netstack.MAC {
	return e.mac
}

// Interface returns the interface the endpoint is bound to, or nil before
// registration.
func (e *Endpoint) Interface() *Interface {
	return e.iface
}

// IPv4 returns the current IPv4 settings.
func (e *Endpoint) IPv4() IPv4Settings {
	return e.ipv4
}

// Defaults4 returns the IPv4 settings captured at configuration time.
func (e *Endpoint) Defaults4() IPv4Settings {
	return e.ipv4Defaults
}

// IPv6 returns the current IPv6 settings.
func (e *Endpoint) IPv6() IPv6Settings {
	return e.ipv6
}

// Defaults6 returns the IPv6 settings captured at configuration time.
func (e *Endpoint) Defaults6() IPv6Settings {
	return e.ipv6Defaults
}

// ApplyDefaults copies the default settings into the current settings. It
// is used when the endpoint is statically configured, or when dynamic
// configuration failed and the endpoint falls back to its static address.
func (e *Endpoint) ApplyDefaults() {
	if e.family == FamilyIPv6 {
		e.ipv6 = e.ipv6Defaults
		return
	}
	e.ipv4 = e.ipv4Defaults
	e.ipv4.Broadcast = ip.BroadcastAddress(e.ipv4.Address, e.ipv4.NetMask)
}

// SetIPv4Address sets the current IPv4 address, e.g. once a DHCP lease is
// bound, and recomputes the broadcast address.
func (e *Endpoint) SetIPv4Address(addr uint32) {
	mustHold(e.family == FamilyIPv4, "SetIPv4Address", "endpoint is %s", e.family)
	e.ipv4.Address = addr
	e.ipv4.Broadcast = ip.BroadcastAddress(addr, e.ipv4.NetMask)
}

// SetIPv4Settings replaces the current IPv4 settings. The broadcast field of
// s is ignored and recomputed from the address and netmask.
func (e *Endpoint) SetIPv4Settings(s IPv4Settings) {
	mustHold(e.family == FamilyIPv4, "SetIPv4Settings", "endpoint is %s", e.family)
	s.Broadcast = ip.BroadcastAddress(s.Address, s.NetMask)
	e.ipv4 = s
}

// SetIPv6Address sets the current IPv6 address, e.g. after SLAAC or DHCPv6.
func (e *Endpoint) SetIPv6Address(addr ip.Address) {
	mustHold(e.family == FamilyIPv6, "SetIPv6Address", "endpoint is %s", e.family)
	e.ipv6.Address = addr
}

// SetUp marks the endpoint as usable or not.
func (e *Endpoint) SetUp(up bool) {
	e.up = up
}

// IsUp reports whether the endpoint has been marked up.
func (e *Endpoint) IsUp() bool {
	return e.up
}

func (e *Endpoint) String() string {
	if e == nil {
		return "<nil>"
	}
	if e.family == FamilyIPv6 {
		return fmt.Sprintf("%s/%d@%s", ipv6Stringer(e.ipv6.Address), e.ipv6.PrefixLength, e.iface)
	}
	ones, _ := net.IPMask(netstack.Uint32ToIP(e.ipv4.NetMask)).Size()
	return fmt.Sprintf("%s/%d@%s", ipv4Stringer(e.ipv4.Address), ones, e.iface)
}

type ipv4Stringer uint32

func (a ipv4Stringer) String() string {
	return netstack.Uint32ToIP(uint32(a)).String()
}

type ipv6Stringer ip.Address

func (a ipv6Stringer) String() string {
	return netstack.Array16ToIP(a).String()
}
