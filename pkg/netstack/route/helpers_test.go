package route_test

import (
	"net"
	"testing"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tinyip/pkg/netstack"
	"tinyip/pkg/netstack/ip"
	"tinyip/pkg/netstack/route"
)

var (
	macA = net.HardwareAddr{0x00, 0x11, 0x22, 0x33, 0x44, 0x55}
	macB = net.HardwareAddr{0x00, 0x11, 0x22, 0x33, 0x44, 0x66}
)

func v4(s string) uint32 {
	return netstack.IPToUint32(net.ParseIP(s))
}

func v6(s string) ip.Address {
	a, ok := netstack.IPToArray16(net.ParseIP(s))
	if !ok {
		panic("bad IPv6 literal " + s)
	}
	return a
}

// addIPv4 fills, registers and activates a static IPv4 endpoint.
func addIPv4(tbl *route.Table, iface *route.Interface, addr, mask, gw string, mac net.HardwareAddr) *route.Endpoint {
	var gateway net.IP
	if gw != "" {
		gateway = net.ParseIP(gw)
	}
	ep := tbl.FillIPv4Endpoint(iface, &route.Endpoint{}, net.ParseIP(addr), net.ParseIP(mask), gateway, nil, mac)
	ep.ApplyDefaults()
	return ep
}

func addIPv6(tbl *route.Table, iface *route.Interface, addr string, prefixLen int, gw string, mac net.HardwareAddr) *route.Endpoint {
	var gateway net.IP
	if gw != "" {
		gateway = net.ParseIP(gw)
	}
	return tbl.FillIPv6Endpoint(iface, &route.Endpoint{}, net.ParseIP(addr), nil, prefixLen, gateway, nil, mac)
}

func serialize(t testing.TB, ls ...gopacket.SerializableLayer) []byte {
	t.Helper()
	buf := gopacket.NewSerializeBuffer()
	err := gopacket.SerializeLayers(buf, gopacket.SerializeOptions{FixLengths: true}, ls...)
	require.NoError(t, err)
	return buf.Bytes()
}

func ipv4Frame(t testing.TB, src, dst string) []byte {
	t.Helper()
	return serialize(t,
		&layers.Ethernet{SrcMAC: macB, DstMAC: macA, EthernetType: layers.EthernetTypeIPv4},
		&layers.IPv4{
			Version: 4, IHL: 5, TTL: 64, Protocol: layers.IPProtocolUDP,
			SrcIP: net.ParseIP(src).To4(), DstIP: net.ParseIP(dst).To4(),
		},
		gopacket.Payload("data"),
	)
}

func ipv6Frame(t testing.TB, src, dst string) []byte {
	t.Helper()
	return serialize(t,
		&layers.Ethernet{SrcMAC: macB, DstMAC: macA, EthernetType: layers.EthernetTypeIPv6},
		&layers.IPv6{
			Version: 6, HopLimit: 64, NextHeader: layers.IPProtocolUDP,
			SrcIP: net.ParseIP(src), DstIP: net.ParseIP(dst),
		},
		gopacket.Payload("data"),
	)
}

func arpFrame(t testing.TB, sender, target string) []byte {
	t.Helper()
	return serialize(t,
		&layers.Ethernet{SrcMAC: macB, DstMAC: layers.EthernetBroadcast, EthernetType: layers.EthernetTypeARP},
		&layers.ARP{
			AddrType:          layers.LinkTypeEthernet,
			Protocol:          layers.EthernetTypeIPv4,
			HwAddressSize:     6,
			ProtAddressSize:   4,
			Operation:         layers.ARPRequest,
			SourceHwAddress:   macB,
			SourceProtAddress: net.ParseIP(sender).To4(),
			DstHwAddress:      make([]byte, 6),
			DstProtAddress:    net.ParseIP(target).To4(),
		},
	)
}

// assertViolation runs f and checks that it panics with a ContractViolation
// raised by op.
func assertViolation(t *testing.T, op string, f func()) {
	t.Helper()
	defer func() {
		t.Helper()
		r := recover()
		cv, ok := r.(route.ContractViolation)
		if assert.True(t, ok, "panic value %#v is not a ContractViolation", r) {
			assert.Equal(t, op, cv.Op, cv.Error())
		}
	}()
	f()
}
