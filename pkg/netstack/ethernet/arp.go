package ethernet

import (
	"fmt"
	network "net"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"tinyip/pkg/netstack"
)

// ARP operation types.
const (
	ARPOperationRequest uint16 = layers.ARPRequest
	ARPOperationReply   uint16 = layers.ARPReply
)

// ARPPacketSize is the size of an Ethernet/IPv4 ARP packet in bytes.
const ARPPacketSize = 28

// ARPPacket represents an ARP packet for Ethernet/IP networks.
type ARPPacket struct {
	HardwareType uint16
	ProtocolType uint16
	HardwareSize uint8
	ProtocolSize uint8
	Operation    uint16
	SenderMAC    network.HardwareAddr
	SenderIP     network.IP
	TargetMAC    network.HardwareAddr
	TargetIP     network.IP
}

// ParseARPPacket parses an ARP packet from raw bytes.
func ParseARPPacket(data []byte) (*ARPPacket, error) {
	if len(data) < ARPPacketSize {
		return nil, fmt.Errorf("ARP packet too short: %d bytes: %w", len(data), netstack.ErrInvalidPacket)
	}

	var arp layers.ARP
	if err := arp.DecodeFromBytes(data, gopacket.NilDecodeFeedback); err != nil {
		return nil, fmt.Errorf("decode ARP: %w", err)
	}

	return &ARPPacket{
		HardwareType: uint16(arp.AddrType),
		ProtocolType: uint16(arp.Protocol),
		HardwareSize: arp.HwAddressSize,
		ProtocolSize: arp.ProtAddressSize,
		Operation:    arp.Operation,
		SenderMAC:    network.HardwareAddr(arp.SourceHwAddress),
		SenderIP:     network.IP(arp.SourceProtAddress),
		TargetMAC:    network.HardwareAddr(arp.DstHwAddress),
		TargetIP:     network.IP(arp.DstProtAddress),
	}, nil
}

// Layer converts the packet into its gopacket form, ready for serialization.
func (p *ARPPacket) Layer() *layers.ARP {
	return &layers.ARP{
		AddrType:          layers.LinkType(p.HardwareType),
		Protocol:          layers.EthernetType(p.ProtocolType),
		HwAddressSize:     p.HardwareSize,
		ProtAddressSize:   p.ProtocolSize,
		Operation:         p.Operation,
		SourceHwAddress:   p.SenderMAC,
		SourceProtAddress: p.SenderIP.To4(),
		DstHwAddress:      p.TargetMAC,
		DstProtAddress:    p.TargetIP.To4(),
	}
}

// Serialize converts the ARP packet to raw bytes.
func (p *ARPPacket) Serialize() ([]byte, error) {
	buf := gopacket.NewSerializeBuffer()
	if err := p.Layer().SerializeTo(buf, gopacket.SerializeOptions{}); err != nil {
		return nil, fmt.Errorf("serialize ARP: %w", err)
	}
	return buf.Bytes(), nil
}

// NewARPRequest creates an ARP request packet.
func NewARPRequest(senderMAC network.HardwareAddr, senderIP network.IP, targetIP network.IP) *ARPPacket {
	zeroMAC := network.HardwareAddr{0, 0, 0, 0, 0, 0}
	return &ARPPacket{
		HardwareType: uint16(layers.LinkTypeEthernet),
		ProtocolType: uint16(netstack.EtherTypeIPv4),
		HardwareSize: 6,
		ProtocolSize: 4,
		Operation:    ARPOperationRequest,
		SenderMAC:    senderMAC,
		SenderIP:     senderIP,
		TargetMAC:    zeroMAC,
		TargetIP:     targetIP,
	}
}

// IsValid returns true if the ARP packet has valid fields.
func (p *ARPPacket) IsValid() bool {
	return p.HardwareType == uint16(layers.LinkTypeEthernet) &&
		p.ProtocolType == uint16(netstack.EtherTypeIPv4) &&
		p.HardwareSize == 6 &&
		p.ProtocolSize == 4
}

// TargetAddress returns the target protocol address in host byte order.
func (p *ARPPacket) TargetAddress() uint32 {
	return netstack.IPToUint32(p.TargetIP)
}
