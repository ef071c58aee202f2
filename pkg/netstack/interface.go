package netstack

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net"
)

// Protocol represents the network protocol type.
type Protocol uint8

// Network protocol constants.
const (
	ProtocolTCP Protocol = 6
	ProtocolUDP Protocol = 17
)

// EtherType represents the Ethernet frame type.
type EtherType uint16

// Common EtherType values.
const (
	EtherTypeIPv4 EtherType = 0x0800
	EtherTypeIPv6 EtherType = 0x86DD
	EtherTypeARP  EtherType = 0x0806
)

func (t EtherType) String() string {
	switch t {
	case EtherTypeIPv4:
		return "IPv4"
	case EtherTypeIPv6:
		return "IPv6"
	case EtherTypeARP:
		return "ARP"
	}
	return fmt.Sprintf("0x%04x", uint16(t))
}

// MACLength is the size of an Ethernet hardware address.
const MACLength = 6

// MAC is a fixed-size Ethernet hardware address. Unlike net.HardwareAddr it is
// comparable and can be stored without allocation.
type MAC [MACLength]byte

// MACFromHardwareAddr converts a 6-byte hardware address. ok is false when hw
// has any other length.
func MACFromHardwareAddr(hw net.HardwareAddr) (m MAC, ok bool) {
	if len(hw) != MACLength {
		return m, false
	}
	copy(m[:], hw)
	return m, true
}

// HardwareAddr returns the address as a net.HardwareAddr.
func (m MAC) HardwareAddr() net.HardwareAddr {
	return net.HardwareAddr(m[:])
}

func (m MAC) String() string {
	return m.HardwareAddr().String()
}

// IPToUint32 converts an IPv4 address to a 32-bit uint in host byte order.
// Both the 4-byte and the 16-byte (v4-in-v6) forms are accepted; anything
// else converts to 0.
func IPToUint32(ip net.IP) uint32 {
	if v4 := ip.To4(); v4 != nil {
		return binary.BigEndian.Uint32(v4)
	}
	return 0
}

// Uint32ToIP converts a 32-bit uint to an IPv4 address.
func Uint32ToIP(v uint32) net.IP {
	return net.IP{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)}
}

// IPv6Length is the size of an IPv6 address.
const IPv6Length = 16

// IPToArray16 converts a 16-byte IPv6 address into a fixed-size array. ok is
// false for nil or IPv4 input. IPv4-mapped addresses (::ffff:a.b.c.d) count as
// IPv4 and are not supported as IPv6 endpoint addresses.
func IPToArray16(ip net.IP) (a [IPv6Length]byte, ok bool) {
	if len(ip) != IPv6Length || ip.To4() != nil {
		return a, false
	}
	copy(a[:], ip)
	return a, true
}

// Array16ToIP converts a fixed-size IPv6 address to a net.IP.
func Array16ToIP(a [IPv6Length]byte) net.IP {
	ip := make(net.IP, IPv6Length)
	copy(ip, a[:])
	return ip
}

// Error definitions for the network stack.
var (
	ErrInvalidPacket   = errors.New("invalid packet")
	ErrUnsupportedType = errors.New("unsupported frame type")
	ErrNoRoute         = errors.New("no route to host")
	ErrInvalidAddress  = errors.New("invalid address")
)
