package route_test

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tinyip/pkg/netstack/route"
)

func TestStats(t *testing.T) {
	tbl := route.NewTable(route.Options{})
	eth0 := tbl.RegisterInterface(&route.Interface{Name: "eth0"})
	addIPv4(tbl, eth0, "10.0.0.5", "255.255.255.0", "", macA)

	tbl.FindEndpointByIPv4(v4("10.0.0.5"))
	tbl.FindEndpointByIPv4From(route.SiteDNS, v4("10.0.0.5"))
	tbl.FindEndpointByIPv4From(route.CallSite(route.NumCallSites+3), v4("10.0.0.5"))
	tbl.FindEndpointOnNetmaskFrom(route.SiteSocketConnect, nil, v4("10.0.0.9"))
	tbl.FindEndpointByMAC(macA, nil)
	tbl.MatchIncomingFrame(eth0, ipv4Frame(t, "10.0.0.9", "10.0.0.5"))

	st := tbl.Stats()
	assert.EqualValues(t, 3, st.OnIP)
	assert.EqualValues(t, 1, st.OnMAC)
	assert.EqualValues(t, 1, st.OnNetMask)
	assert.EqualValues(t, 1, st.Matching)
	assert.EqualValues(t, 1, st.IPSites[route.SiteUnknown])
	assert.EqualValues(t, 1, st.IPSites[route.SiteDNS])
	assert.EqualValues(t, 1, st.NetMaskSites[route.SiteSocketConnect])

	var sites uint64
	for _, n := range st.IPSites {
		sites += n
	}
	assert.EqualValues(t, 2, sites, "out-of-range site counted in the total only")
}

func TestCallSiteString(t *testing.T) {
	assert.Equal(t, "arp_resolve", route.SiteARPResolve.String())
	assert.Equal(t, "user", route.SiteUser.String())
	assert.Equal(t, "site42", route.CallSite(42).String())
	assert.Equal(t, "site9", (route.SiteUser + 1).String())
}

func TestCollector(t *testing.T) {
	tbl := route.NewTable(route.Options{})
	eth0 := tbl.RegisterInterface(&route.Interface{Name: "eth0"})
	addIPv4(tbl, eth0, "10.0.0.5", "255.255.255.0", "", macA)

	tbl.FindEndpointByIPv4From(route.SiteDNS, v4("10.0.0.5"))
	tbl.FindEndpointByIPv4From(route.SiteDNS, v4("10.0.0.6"))
	tbl.FindEndpointOnNetmaskFrom(route.SiteDHCP, nil, v4("10.0.0.9"))
	tbl.FindEndpointByMAC(macA, eth0)

	reg := prometheus.NewPedanticRegistry()
	require.NoError(t, reg.Register(tbl.Collector()))

	expected := `
# HELP tinyip_route_lookups_total Routing table lookups by kind.
# TYPE tinyip_route_lookups_total counter
tinyip_route_lookups_total{kind="ip"} 2
tinyip_route_lookups_total{kind="mac"} 1
tinyip_route_lookups_total{kind="match"} 0
tinyip_route_lookups_total{kind="netmask"} 1
# HELP tinyip_route_site_lookups_total Routing table lookups by kind and call site.
# TYPE tinyip_route_site_lookups_total counter
tinyip_route_site_lookups_total{kind="ip",site="dns"} 2
tinyip_route_site_lookups_total{kind="netmask",site="dhcp"} 1
`
	err := testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"tinyip_route_lookups_total", "tinyip_route_site_lookups_total")
	assert.NoError(t, err)
}
