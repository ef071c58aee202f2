package ip

import (
	"fmt"
	network "net"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"tinyip/pkg/netstack"
)

// IPv6 constants.
const (
	IPv6HeaderLength = 40 // Fixed header length for IPv6
	IPv6Version      = 6
	IPv6AddressBits  = 8 * netstack.IPv6Length
)

// Address is an IPv6 address in network byte order. The zero value is the
// unspecified address "::".
type Address = [netstack.IPv6Length]byte

// Well-known IPv6 addresses used by the matcher.
var (
	// Unspecified is "::".
	Unspecified Address
	// LLMNRAddress is the link-local multicast name resolution group ff02::1:3.
	LLMNRAddress = Address{0: 0xff, 1: 0x02, 13: 0x01, 15: 0x03}
)

// IPv6Header represents an IPv6 header.
type IPv6Header struct {
	Version      uint8  // IP version (6)
	TrafficClass uint8  // Traffic class
	FlowLabel    uint32 // Flow label
	PayloadLen   uint16 // Payload length
	NextHeader   uint8  // Next header (extension header or upper layer)
	HopLimit     uint8  // Hop limit (TTL)
	SrcIP        network.IP
	DstIP        network.IP
}

// ParseIPv6Header parses an IPv6 header from raw bytes.
func ParseIPv6Header(data []byte) (*IPv6Header, error) {
	if len(data) < IPv6HeaderLength {
		return nil, fmt.Errorf("IPv6 header too short: %d bytes: %w", len(data), netstack.ErrInvalidPacket)
	}

	var v6 layers.IPv6
	if err := v6.DecodeFromBytes(data, gopacket.NilDecodeFeedback); err != nil {
		return nil, fmt.Errorf("decode IPv6: %w", err)
	}

	return &IPv6Header{
		Version:      v6.Version,
		TrafficClass: v6.TrafficClass,
		FlowLabel:    v6.FlowLabel,
		PayloadLen:   v6.Length,
		NextHeader:   uint8(v6.NextHeader),
		HopLimit:     v6.HopLimit,
		SrcIP:        v6.SrcIP,
		DstIP:        v6.DstIP,
	}, nil
}

// Destination returns the destination address as a fixed-size array.
func (h *IPv6Header) Destination() Address {
	var a Address
	copy(a[:], h.DstIP)
	return a
}

// IPv6Datagram represents a complete IPv6 datagram.
type IPv6Datagram struct {
	Header  *IPv6Header
	Payload []byte
}

// NewIPv6Datagram creates a new IPv6 datagram.
func NewIPv6Datagram(srcIP, dstIP network.IP, nextHeader uint8, payload []byte) *IPv6Datagram {
	return &IPv6Datagram{
		Header: &IPv6Header{
			Version:    IPv6Version,
			NextHeader: nextHeader,
			HopLimit:   64,
			SrcIP:      srcIP,
			DstIP:      dstIP,
		},
		Payload: payload,
	}
}

// Layer converts the datagram header into its gopacket form.
func (d *IPv6Datagram) Layer() *layers.IPv6 {
	h := d.Header
	return &layers.IPv6{
		Version:      IPv6Version,
		TrafficClass: h.TrafficClass,
		FlowLabel:    h.FlowLabel,
		NextHeader:   layers.IPProtocol(h.NextHeader),
		HopLimit:     h.HopLimit,
		SrcIP:        h.SrcIP.To16(),
		DstIP:        h.DstIP.To16(),
	}
}

// Serialize serializes the datagram, filling in the payload length.
func (d *IPv6Datagram) Serialize() ([]byte, error) {
	buf := gopacket.NewSerializeBuffer()
	if err := gopacket.SerializeLayers(buf, gopacket.SerializeOptions{FixLengths: true}, d.Layer(), gopacket.Payload(d.Payload)); err != nil {
		return nil, fmt.Errorf("serialize IPv6: %w", err)
	}
	return buf.Bytes(), nil
}

// PrefixEqual reports whether a and b agree on their first bits bits.
// bits outside 0..128 is clamped.
func PrefixEqual(a, b *Address, bits int) bool {
	if bits <= 0 {
		return true
	}
	if bits > IPv6AddressBits {
		bits = IPv6AddressBits
	}
	full := bits / 8
	for i := 0; i < full; i++ {
		if a[i] != b[i] {
			return false
		}
	}
	if rem := bits % 8; rem != 0 {
		mask := byte(0xFF << (8 - rem))
		return a[full]&mask == b[full]&mask
	}
	return true
}

// SolicitedNodeMulticast returns ff02::1:ffXX:XXXX built from the low 24 bits
// of addr.
func SolicitedNodeMulticast(addr *Address) Address {
	return Address{0xff, 0x02, 11: 0x01, 12: 0xff, 13: addr[13], 14: addr[14], 15: addr[15]}
}

// IsIPv6Multicast reports whether addr is in ff00::/8.
func IsIPv6Multicast(addr *Address) bool {
	return addr[0] == 0xff
}

// IsUnspecified reports whether addr is "::".
func IsUnspecified(addr *Address) bool {
	return *addr == Unspecified
}
