package ethernet

import (
	"errors"
	"net"
	"testing"

	"tinyip/pkg/netstack"
)

func TestFrameRoundTrip(t *testing.T) {
	src := net.HardwareAddr{0x00, 0x0C, 0x29, 0xAB, 0xCD, 0xEF}
	payload := []byte("Hello, Ethernet!")

	frame := NewFrame(BroadcastMAC(), src, netstack.EtherTypeIPv4, payload)
	raw, err := frame.Serialize()
	if err != nil {
		t.Fatalf("Serialize failed: %v", err)
	}
	if len(raw) < 60 {
		t.Errorf("Serialized length = %d, want at least 60", len(raw))
	}

	parsed, err := ParseFrame(raw)
	if err != nil {
		t.Fatalf("ParseFrame failed: %v", err)
	}
	if parsed.EtherType != netstack.EtherTypeIPv4 {
		t.Errorf("EtherType = %s, want %s", parsed.EtherType, netstack.EtherTypeIPv4)
	}
	if parsed.SrcMAC.String() != src.String() {
		t.Errorf("SrcMAC = %s, want %s", parsed.SrcMAC, src)
	}
	if !parsed.IsBroadcast() || !parsed.IsMulticast() {
		t.Error("broadcast frame misclassified")
	}

	unicast := NewFrame(src, src, netstack.EtherTypeARP, payload)
	if unicast.IsBroadcast() || unicast.IsMulticast() {
		t.Error("unicast frame misclassified")
	}
}

func TestParseFrameTooShort(t *testing.T) {
	_, err := ParseFrame(make([]byte, HeaderLength-1))
	if !errors.Is(err, netstack.ErrInvalidPacket) {
		t.Errorf("ParseFrame error = %v, want ErrInvalidPacket", err)
	}
}

func TestParseMAC(t *testing.T) {
	m, err := ParseMAC("00:11:22:33:44:55")
	if err != nil {
		t.Fatalf("ParseMAC failed: %v", err)
	}
	if m != (netstack.MAC{0x00, 0x11, 0x22, 0x33, 0x44, 0x55}) {
		t.Errorf("ParseMAC = %s", m)
	}

	if _, err := ParseMAC("00:11:22:33:44:55:66:77"); err == nil {
		t.Error("ParseMAC should reject an 8-byte address")
	}
	if _, err := ParseMAC("not-a-mac"); err == nil {
		t.Error("ParseMAC should reject garbage")
	}
}
