// Package ethernet provides Ethernet frame parsing and generation.
package ethernet

import (
	"fmt"
	"net"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"tinyip/pkg/netstack"
)

// Ethernet header length in bytes.
const HeaderLength = 14

// Frame represents an Ethernet frame.
type Frame struct {
	DstMAC    net.HardwareAddr   // Destination MAC address (6 bytes)
	SrcMAC    net.HardwareAddr   // Source MAC address (6 bytes)
	EtherType netstack.EtherType // EtherType field
	Payload   []byte             // Frame payload (IP packet, ARP, etc.)
}

// ParseFrame parses an Ethernet frame from raw bytes. The returned frame
// aliases data; nothing is copied.
func ParseFrame(data []byte) (*Frame, error) {
	if len(data) < HeaderLength {
		return nil, fmt.Errorf("frame too short: %d bytes: %w", len(data), netstack.ErrInvalidPacket)
	}

	var eth layers.Ethernet
	if err := eth.DecodeFromBytes(data, gopacket.NilDecodeFeedback); err != nil {
		return nil, fmt.Errorf("decode ethernet: %w", err)
	}

	return &Frame{
		DstMAC:    eth.DstMAC,
		SrcMAC:    eth.SrcMAC,
		EtherType: netstack.EtherType(eth.EthernetType),
		Payload:   eth.Payload,
	}, nil
}

// Serialize serializes the Ethernet frame to bytes. Frames shorter than the
// Ethernet minimum are padded.
func (f *Frame) Serialize() ([]byte, error) {
	buf := gopacket.NewSerializeBuffer()
	eth := &layers.Ethernet{
		DstMAC:       f.DstMAC,
		SrcMAC:       f.SrcMAC,
		EthernetType: layers.EthernetType(f.EtherType),
	}
	if err := gopacket.SerializeLayers(buf, gopacket.SerializeOptions{FixLengths: true}, eth, gopacket.Payload(f.Payload)); err != nil {
		return nil, fmt.Errorf("serialize ethernet: %w", err)
	}
	return buf.Bytes(), nil
}

// IsBroadcast checks if the destination MAC is broadcast.
func (f *Frame) IsBroadcast() bool {
	for _, b := range f.DstMAC {
		if b != 0xFF {
			return false
		}
	}
	return len(f.DstMAC) == netstack.MACLength
}

// IsMulticast checks if the destination MAC is multicast.
func (f *Frame) IsMulticast() bool {
	return len(f.DstMAC) > 0 && f.DstMAC[0]&0x01 == 0x01
}

// NewFrame creates a new Ethernet frame.
func NewFrame(dstMAC, srcMAC net.HardwareAddr, etherType netstack.EtherType, payload []byte) *Frame {
	return &Frame{
		DstMAC:    dstMAC,
		SrcMAC:    srcMAC,
		EtherType: etherType,
		Payload:   payload,
	}
}

// BroadcastMAC returns the Ethernet broadcast MAC address.
func BroadcastMAC() net.HardwareAddr {
	return net.HardwareAddr{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}
}

// ParseMAC parses a 6-byte MAC address string such as "00:11:22:33:44:55".
func ParseMAC(s string) (netstack.MAC, error) {
	hw, err := net.ParseMAC(s)
	if err != nil {
		return netstack.MAC{}, fmt.Errorf("invalid MAC address %q: %w", s, err)
	}
	m, ok := netstack.MACFromHardwareAddr(hw)
	if !ok {
		return netstack.MAC{}, fmt.Errorf("invalid MAC address %q: want %d bytes, got %d", s, netstack.MACLength, len(hw))
	}
	return m, nil
}
