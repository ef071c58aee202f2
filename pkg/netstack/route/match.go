package route

import (
	"fmt"
	"net"

	"go.uber.org/zap"

	"tinyip/pkg/netstack"
	"tinyip/pkg/netstack/ethernet"
	"tinyip/pkg/netstack/ip"
)

// FindEndpointByIPv4 returns the first IPv4 endpoint whose current address is
// addr. An addr of 0 matches the first IPv4 endpoint.
func (t *Table) FindEndpointByIPv4(addr uint32) *Endpoint {
	return t.FindEndpointByIPv4From(SiteUnknown, addr)
}

// FindEndpointByIPv4From is FindEndpointByIPv4 with the lookup attributed to
// site in the statistics.
func (t *Table) FindEndpointByIPv4From(site CallSite, addr uint32) *Endpoint {
	t.stats.countIP(site)
	for _, ep := range t.endpoints {
		if ep.family != FamilyIPv4 {
			continue
		}
		if addr == ip.AnyAddress || ep.ipv4.Address == addr {
			return ep
		}
	}
	return nil
}

// FindEndpointByIPv6 returns the first IPv6 endpoint that owns addr: either
// addr lies within the endpoint's prefix, or addr is the solicited-node
// multicast group of the endpoint's address.
func (t *Table) FindEndpointByIPv6(addr ip.Address) *Endpoint {
	multicast := ip.IsIPv6Multicast(&addr)
	for _, ep := range t.endpoints {
		if ep.family != FamilyIPv6 {
			continue
		}
		if ip.PrefixEqual(&ep.ipv6.Address, &addr, ep.ipv6.PrefixLength) {
			return ep
		}
		if multicast && ip.SolicitedNodeMulticast(&ep.ipv6.Address) == addr {
			return ep
		}
	}
	return nil
}

// FindEndpointByMAC returns the first endpoint with the given hardware
// address. A nil iface searches every interface.
func (t *Table) FindEndpointByMAC(mac net.HardwareAddr, iface *Interface) *Endpoint {
	t.stats.onMAC.Add(1)
	m, ok := netstack.MACFromHardwareAddr(mac)
	if !ok {
		return nil
	}
	for ep := t.FirstEndpoint(iface); ep != nil; ep = t.NextEndpoint(iface, ep) {
		if ep.mac == m {
			return ep
		}
	}
	return nil
}

// FindEndpointOnNetmask returns the first IPv4 endpoint whose subnet contains
// addr. A nil iface searches every interface.
func (t *Table) FindEndpointOnNetmask(iface *Interface, addr uint32) *Endpoint {
	return t.FindEndpointOnNetmaskFrom(SiteUnknown, iface, addr)
}

// FindEndpointOnNetmaskFrom is FindEndpointOnNetmask with the lookup
// attributed to site. Misses are logged unless the site expects them.
func (t *Table) FindEndpointOnNetmaskFrom(site CallSite, iface *Interface, addr uint32) *Endpoint {
	t.stats.countNetMask(site)
	for ep := t.FirstEndpoint(iface); ep != nil; ep = t.NextEndpoint(iface, ep) {
		if ep.family != FamilyIPv4 {
			continue
		}
		if ip.SameSubnet(addr, ep.ipv4.Address, ep.ipv4.NetMask) {
			return ep
		}
	}

	if !site.quiet() {
		t.log.Info("no endpoint on netmask",
			zap.Stringer("site", site),
			zap.Stringer("ip", ipv4Stringer(addr)))
	}
	return nil
}

// FindEndpointOnNetmaskIPv6 returns the IPv6 endpoint with the longest prefix
// containing addr. On equal prefix lengths the earlier registration wins.
func (t *Table) FindEndpointOnNetmaskIPv6(addr ip.Address) *Endpoint {
	var best *Endpoint
	for _, ep := range t.endpoints {
		if ep.family != FamilyIPv6 {
			continue
		}
		if !ip.PrefixEqual(&ep.ipv6.Address, &addr, ep.ipv6.PrefixLength) {
			continue
		}
		if best == nil || ep.ipv6.PrefixLength > best.ipv6.PrefixLength {
			best = ep
		}
	}
	return best
}

// FindGateway returns the first endpoint of the given family that has a
// gateway configured.
func (t *Table) FindGateway(family Family) *Endpoint {
	for _, ep := range t.endpoints {
		if ep.family != family {
			continue
		}
		switch family {
		case FamilyIPv4:
			if ep.ipv4.Gateway != 0 {
				return ep
			}
		case FamilyIPv6:
			if !ip.IsUnspecified(&ep.ipv6.Gateway) {
				return ep
			}
		}
	}
	return nil
}

// MatchIncomingFrame decides which endpoint of iface should handle a received
// Ethernet frame. It returns nil when no endpoint should handle it, including
// when the frame cannot be decoded. A nil iface stands for every interface.
//
// ARP frames go to the owner of the target protocol address. IPv6 frames go
// to an endpoint whose prefix contains the destination; LLMNR queries fall
// back to the interface's first IPv6 endpoint. IPv4 frames are matched by
// exact destination address, by subnet for broadcasts, or by any endpoint for
// multicast, where an exact match always wins.
func (t *Table) MatchIncomingFrame(iface *Interface, frame []byte) *Endpoint {
	mustHold(frame != nil, "MatchIncomingFrame", "nil frame")
	t.stats.matching.Add(1)

	eth, err := ethernet.ParseFrame(frame)
	if err != nil {
		t.log.Debug("dropping undecodable frame", zap.Error(err))
		return nil
	}

	switch eth.EtherType {
	case netstack.EtherTypeARP:
		return t.matchARP(eth.Payload)
	case netstack.EtherTypeIPv6:
		return t.matchIPv6(iface, eth.Payload)
	case netstack.EtherTypeIPv4:
		return t.matchIPv4(iface, eth.Payload)
	}

	t.log.Debug("no endpoint for frame",
		zap.Error(fmt.Errorf("%w: %s", netstack.ErrUnsupportedType, eth.EtherType)))
	return nil
}

func (t *Table) matchARP(payload []byte) *Endpoint {
	arp, err := ethernet.ParseARPPacket(payload)
	if err != nil {
		t.log.Debug("dropping undecodable ARP packet", zap.Error(err))
		return nil
	}
	if !arp.IsValid() {
		t.log.Debug("dropping non Ethernet/IPv4 ARP packet",
			zap.Uint16("hardware", arp.HardwareType),
			zap.Uint16("protocol", arp.ProtocolType))
		return nil
	}
	return t.FindEndpointByIPv4From(SiteMatchARP, arp.TargetAddress())
}

func (t *Table) matchIPv6(iface *Interface, payload []byte) *Endpoint {
	hdr, err := ip.ParseIPv6Header(payload)
	if err != nil {
		t.log.Debug("dropping undecodable IPv6 packet", zap.Error(err))
		return nil
	}
	dst := hdr.Destination()

	for ep := t.FirstEndpoint(iface); ep != nil; ep = t.NextEndpoint(iface, ep) {
		if ep.family == FamilyIPv6 && ip.PrefixEqual(&ep.ipv6.Address, &dst, ep.ipv6.PrefixLength) {
			return ep
		}
	}
	if dst == ip.LLMNRAddress {
		return t.FirstIPv6Endpoint(iface)
	}
	return nil
}

func (t *Table) matchIPv4(iface *Interface, payload []byte) *Endpoint {
	hdr, err := ip.ParseHeader(payload)
	if err != nil {
		t.log.Debug("dropping undecodable IPv4 packet", zap.Error(err))
		return nil
	}
	dst := hdr.Destination()
	broadcast := ip.IsLimitedBroadcast(dst)
	multicast := ip.IsMulticast(dst)

	// 255.255.255.255 carries no subnet, so the sender's subnet is used.
	match := dst
	if dst == ip.LimitedBroadcastAddress {
		match = hdr.Source()
	}

	var candidate *Endpoint
	for ep := t.FirstEndpoint(iface); ep != nil; ep = t.NextEndpoint(iface, ep) {
		if ep.family != FamilyIPv4 {
			continue
		}
		if ep.ipv4.Address == dst {
			return ep
		}
		if candidate != nil {
			continue
		}
		if broadcast && ip.SameSubnet(ep.ipv4.Address, match, ep.ipv4.NetMask) {
			candidate = ep
		} else if multicast {
			candidate = ep
		}
	}

	if candidate == nil && broadcast {
		candidate = t.FirstEndpoint(iface)
	}
	return candidate
}
