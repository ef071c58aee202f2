package route_test

import (
	"fmt"
	"math/rand"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tinyip/pkg/netstack"
	"tinyip/pkg/netstack/route"
)

func TestSingleTableRejectsSecondRegistration(t *testing.T) {
	tbl := route.NewSingleTable(nil)
	require.True(t, tbl.Single())

	eth0 := tbl.RegisterInterface(&route.Interface{Name: "eth0"})
	assertViolation(t, "RegisterInterface", func() { tbl.RegisterInterface(eth0) })
	assertViolation(t, "RegisterInterface", func() { tbl.RegisterInterface(&route.Interface{Name: "eth1"}) })

	ep := addIPv4(tbl, eth0, "10.0.0.5", "255.255.255.0", "10.0.0.1", macA)
	assertViolation(t, "RegisterEndpoint", func() { tbl.RegisterEndpoint(eth0, ep) })
	assertViolation(t, "RegisterEndpoint", func() {
		addIPv4(tbl, eth0, "10.0.0.6", "255.255.255.0", "", macA)
	})

	assert.Equal(t, 1, tbl.InterfaceCount())
	assert.Equal(t, 1, tbl.EndpointCount())
	assert.Nil(t, tbl.NextInterface(eth0))
	assert.Nil(t, tbl.NextEndpoint(nil, ep))
	assert.Same(t, ep, tbl.FirstEndpoint(nil))
}

// singleConfig describes one interface with one endpoint.
type singleConfig struct {
	ipv6    bool
	addr    string
	mask    string
	prefix  int
	gateway string
}

func (c singleConfig) build(tbl *route.Table) (*route.Interface, *route.Endpoint) {
	iface := tbl.RegisterInterface(&route.Interface{Name: "eth0"})
	if c.ipv6 {
		return iface, addIPv6(tbl, iface, c.addr, c.prefix, c.gateway, macA)
	}
	return iface, addIPv4(tbl, iface, c.addr, c.mask, c.gateway, macA)
}

// randomIPv4 draws addresses near the configured one so that hits, subnet
// broadcasts and limited broadcasts all occur.
func randomIPv4(rnd *rand.Rand, base uint32) string {
	var a uint32
	switch rnd.Intn(6) {
	case 0:
		a = base
	case 1:
		a = base&0xffffff00 | 0xff
	case 2:
		a = 0xffffffff
	case 3:
		a = 0xe0000000 | rnd.Uint32()&0x0fffffff
	case 4:
		a = base&0xffffff00 | uint32(rnd.Intn(256))
	default:
		a = rnd.Uint32()
	}
	return netstack.Uint32ToIP(a).String()
}

func randomIPv6(rnd *rand.Rand) string {
	switch rnd.Intn(5) {
	case 0:
		return "2001:db8::5"
	case 1:
		return fmt.Sprintf("2001:db8::%x", rnd.Intn(0x10000))
	case 2:
		return "ff02::1:3"
	case 3:
		return "ff02::1:ff00:5"
	}
	return fmt.Sprintf("2001:db8:%x::%x", rnd.Intn(0x10000), rnd.Intn(0x10000))
}

func TestSingleTableEquivalence(t *testing.T) {
	configs := []singleConfig{
		{addr: "10.0.0.5", mask: "255.255.255.0", gateway: "10.0.0.1"},
		{addr: "192.168.1.5", mask: "255.255.0.0"},
		{ipv6: true, addr: "2001:db8::5", prefix: 64, gateway: "fe80::1"},
		{ipv6: true, addr: "2001:db8::5", prefix: 48},
	}

	for i, cfg := range configs {
		t.Run(fmt.Sprintf("config%d", i), func(t *testing.T) {
			general := route.NewTable(route.Options{})
			single := route.NewSingleTable(nil)
			gi, ge := cfg.build(general)
			si, se := cfg.build(single)

			// same reports whether two results agree: both nil, or the
			// corresponding endpoint of each table.
			same := func(g, s *route.Endpoint) bool {
				return (g == nil && s == nil) || (g == ge && s == se)
			}

			rnd := rand.New(rand.NewSource(int64(i) + 1))
			base := v4("10.0.0.5")
			if !cfg.ipv6 {
				base = v4(cfg.addr)
			}
			for n := 0; n < 2000; n++ {
				a4 := randomIPv4(rnd, base)
				a6 := randomIPv6(rnd)
				u4 := v4(a4)

				require.True(t, same(general.FindEndpointByIPv4(u4), single.FindEndpointByIPv4(u4)), "FindEndpointByIPv4 %s", a4)
				require.True(t, same(general.FindEndpointOnNetmask(nil, u4), single.FindEndpointOnNetmask(nil, u4)), "FindEndpointOnNetmask %s", a4)
				require.True(t, same(general.FindEndpointOnNetmask(gi, u4), single.FindEndpointOnNetmask(si, u4)), "FindEndpointOnNetmask iface %s", a4)
				require.True(t, same(general.FindEndpointByIPv6(v6(a6)), single.FindEndpointByIPv6(v6(a6))), "FindEndpointByIPv6 %s", a6)
				require.True(t, same(general.FindEndpointOnNetmaskIPv6(v6(a6)), single.FindEndpointOnNetmaskIPv6(v6(a6))), "FindEndpointOnNetmaskIPv6 %s", a6)

				mac := macA
				if rnd.Intn(2) == 0 {
					mac = net.HardwareAddr{0, 0, 0, 0, 0, byte(rnd.Intn(256))}
				}
				require.True(t, same(general.FindEndpointByMAC(mac, gi), single.FindEndpointByMAC(mac, si)), "FindEndpointByMAC %s", mac)

				src := randomIPv4(rnd, base)
				frames := map[string][]byte{
					"ipv4": ipv4Frame(t, src, a4),
					"ipv6": ipv6Frame(t, "fe80::9", a6),
					"arp":  arpFrame(t, src, a4),
				}
				for kind, frame := range frames {
					require.True(t, same(general.MatchIncomingFrame(gi, frame), single.MatchIncomingFrame(si, frame)),
						"MatchIncomingFrame %s src=%s ipv4=%s ipv6=%s", kind, src, a4, a6)
				}
			}

			for _, f := range []route.Family{route.FamilyIPv4, route.FamilyIPv6} {
				assert.True(t, same(general.FindGateway(f), single.FindGateway(f)), "FindGateway %s", f)
			}
		})
	}
}
