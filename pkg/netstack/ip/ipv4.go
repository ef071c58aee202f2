// Package ip decodes IPv4 and IPv6 headers and classifies addresses the way
// the routing layer needs them: multicast, limited broadcast, solicited-node
// and prefix membership.
package ip

import (
	"fmt"
	network "net"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"tinyip/pkg/netstack"
)

// IPv4 header length in bytes (without options).
const HeaderLength = 20

// Protocol numbers.
const (
	ProtocolTCP uint8 = 6
	ProtocolUDP uint8 = 17
)

// IPv4 addresses with a special meaning to the matcher, in host byte order.
const (
	AnyAddress              uint32 = 0x00000000 // 0.0.0.0
	LimitedBroadcastAddress uint32 = 0xFFFFFFFF // 255.255.255.255
	multicastMask           uint32 = 0xF0000000
	multicastNet            uint32 = 0xE0000000 // 224.0.0.0/4
)

// Header represents an IPv4 header.
type Header struct {
	Version    uint8  // IP version (4)
	IHL        uint8  // Internet Header Length (number of 32-bit words)
	TOS        uint8  // Type of Service
	Length     uint16 // Total length of the datagram
	ID         uint16 // Identification
	Flags      uint8  // Fragment flags
	FragOffset uint16 // Fragment offset
	TTL        uint8  // Time to Live
	Protocol   uint8  // Upper layer protocol
	Checksum   uint16 // Header checksum
	SrcIP      network.IP
	DstIP      network.IP
}

// ParseHeader parses an IPv4 header from raw bytes. Address fields alias data.
func ParseHeader(data []byte) (*Header, error) {
	if len(data) < HeaderLength {
		return nil, fmt.Errorf("IPv4 header too short: %d bytes: %w", len(data), netstack.ErrInvalidPacket)
	}

	var v4 layers.IPv4
	if err := v4.DecodeFromBytes(data, gopacket.NilDecodeFeedback); err != nil {
		return nil, fmt.Errorf("decode IPv4: %w", err)
	}

	return &Header{
		Version:    v4.Version,
		IHL:        v4.IHL,
		TOS:        v4.TOS,
		Length:     v4.Length,
		ID:         v4.Id,
		Flags:      uint8(v4.Flags),
		FragOffset: v4.FragOffset,
		TTL:        v4.TTL,
		Protocol:   uint8(v4.Protocol),
		Checksum:   v4.Checksum,
		SrcIP:      v4.SrcIP,
		DstIP:      v4.DstIP,
	}, nil
}

// Source returns the source address in host byte order.
func (h *Header) Source() uint32 {
	return netstack.IPToUint32(h.SrcIP)
}

// Destination returns the destination address in host byte order.
func (h *Header) Destination() uint32 {
	return netstack.IPToUint32(h.DstIP)
}

// Datagram represents a complete IPv4 datagram.
type Datagram struct {
	Header  *Header
	Payload []byte
}

// NewDatagram creates a new IPv4 datagram.
func NewDatagram(srcIP, dstIP network.IP, protocol uint8, payload []byte) *Datagram {
	return &Datagram{
		Header: &Header{
			Version:  4,
			IHL:      5,
			TTL:      64,
			Protocol: protocol,
			SrcIP:    srcIP,
			DstIP:    dstIP,
		},
		Payload: payload,
	}
}

// Layer converts the datagram header into its gopacket form.
func (d *Datagram) Layer() *layers.IPv4 {
	h := d.Header
	return &layers.IPv4{
		Version:    4,
		IHL:        h.IHL,
		TOS:        h.TOS,
		Id:         h.ID,
		Flags:      layers.IPv4Flag(h.Flags),
		FragOffset: h.FragOffset,
		TTL:        h.TTL,
		Protocol:   layers.IPProtocol(h.Protocol),
		SrcIP:      h.SrcIP.To4(),
		DstIP:      h.DstIP.To4(),
	}
}

// Serialize serializes the datagram, filling in length and checksum.
func (d *Datagram) Serialize() ([]byte, error) {
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(buf, opts, d.Layer(), gopacket.Payload(d.Payload)); err != nil {
		return nil, fmt.Errorf("serialize IPv4: %w", err)
	}
	return buf.Bytes(), nil
}

// IsMulticast reports whether addr (host byte order) is in 224.0.0.0/4.
func IsMulticast(addr uint32) bool {
	return addr&multicastMask == multicastNet
}

// IsLimitedBroadcast reports whether addr is treated as a broadcast
// destination by the matcher: its low-order byte is all ones. This covers
// 255.255.255.255 as well as the directed broadcast of any /24 or shorter
// subnet.
func IsLimitedBroadcast(addr uint32) bool {
	return addr&0xFF == 0xFF
}

// BroadcastAddress returns addr | ^netmask.
func BroadcastAddress(addr, netmask uint32) uint32 {
	return addr | ^netmask
}

// SameSubnet reports whether a and b agree on every bit set in netmask.
func SameSubnet(a, b, netmask uint32) bool {
	return (a^b)&netmask == 0
}
