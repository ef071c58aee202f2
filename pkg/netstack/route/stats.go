package route

import (
	"strconv"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// CallSite tags a lookup with the place in the stack that issued it. It only
// feeds the statistics histograms and the miss diagnostics.
type CallSite uint32

// Known call sites.
const (
	SiteUnknown CallSite = iota
	SiteARPResolve
	SiteARPRefresh
	SiteMatchARP
	SiteSocketConnect
	SiteDNS
	SiteDHCP
	SiteICMP
	SiteUser
)

// NumCallSites is the number of histogram buckets per lookup kind. Tags at or
// beyond it are counted in the totals only.
const NumCallSites = 16

// quiet reports whether a netmask miss at this site is expected and should not
// be logged. ARP resolution routinely asks about off-link addresses.
func (s CallSite) quiet() bool {
	return s == SiteARPResolve || s == SiteARPRefresh
}

var siteNames = [...]string{
	SiteUnknown:       "unknown",
	SiteARPResolve:    "arp_resolve",
	SiteARPRefresh:    "arp_refresh",
	SiteMatchARP:      "match_arp",
	SiteSocketConnect: "socket_connect",
	SiteDNS:           "dns",
	SiteDHCP:          "dhcp",
	SiteICMP:          "icmp",
	SiteUser:          "user",
}

func (s CallSite) String() string {
	if int(s) < len(siteNames) {
		return siteNames[s]
	}
	return "site" + strconv.FormatUint(uint64(s), 10)
}

// statistics are best-effort counters updated from lookups.
type statistics struct {
	onIP      atomic.Uint64
	onMAC     atomic.Uint64
	onNetMask atomic.Uint64
	matching  atomic.Uint64

	sitesIP      [NumCallSites]atomic.Uint64
	sitesNetMask [NumCallSites]atomic.Uint64
}

func (s *statistics) countIP(site CallSite) {
	s.onIP.Add(1)
	if site < NumCallSites {
		s.sitesIP[site].Add(1)
	}
}

func (s *statistics) countNetMask(site CallSite) {
	s.onNetMask.Add(1)
	if site < NumCallSites {
		s.sitesNetMask[site].Add(1)
	}
}

// Stats is a snapshot of the routing statistics of a Table.
type Stats struct {
	OnIP      uint64 // IPv4 address lookups
	OnMAC     uint64 // MAC address lookups
	OnNetMask uint64 // netmask lookups
	Matching  uint64 // inbound frames matched

	IPSites      [NumCallSites]uint64
	NetMaskSites [NumCallSites]uint64
}

// Stats returns a snapshot of the lookup counters. Counters are read one at a
// time, so a snapshot taken during lookups may be slightly inconsistent.
func (t *Table) Stats() Stats {
	var s Stats
	s.OnIP = t.stats.onIP.Load()
	s.OnMAC = t.stats.onMAC.Load()
	s.OnNetMask = t.stats.onNetMask.Load()
	s.Matching = t.stats.matching.Load()
	for i := range s.IPSites {
		s.IPSites[i] = t.stats.sitesIP[i].Load()
		s.NetMaskSites[i] = t.stats.sitesNetMask[i].Load()
	}
	return s
}

// Lookup kinds used as metric labels.
const (
	kindIP      = "ip"
	kindMAC     = "mac"
	kindNetMask = "netmask"
	kindMatch   = "match"
)

var (
	lookupsDesc = prometheus.NewDesc(
		"tinyip_route_lookups_total",
		"Routing table lookups by kind.",
		[]string{"kind"}, nil,
	)
	siteLookupsDesc = prometheus.NewDesc(
		"tinyip_route_site_lookups_total",
		"Routing table lookups by kind and call site.",
		[]string{"kind", "site"}, nil,
	)
)

type collector struct {
	t *Table
}

// Collector exports the table statistics as Prometheus counters. Only call
// sites that have been hit are exported.
func (t *Table) Collector() prometheus.Collector {
	return collector{t: t}
}

func (c collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- lookupsDesc
	ch <- siteLookupsDesc
}

func (c collector) Collect(ch chan<- prometheus.Metric) {
	s := c.t.Stats()
	ch <- prometheus.MustNewConstMetric(lookupsDesc, prometheus.CounterValue, float64(s.OnIP), kindIP)
	ch <- prometheus.MustNewConstMetric(lookupsDesc, prometheus.CounterValue, float64(s.OnMAC), kindMAC)
	ch <- prometheus.MustNewConstMetric(lookupsDesc, prometheus.CounterValue, float64(s.OnNetMask), kindNetMask)
	ch <- prometheus.MustNewConstMetric(lookupsDesc, prometheus.CounterValue, float64(s.Matching), kindMatch)

	for i := 0; i < NumCallSites; i++ {
		site := CallSite(i).String()
		if n := s.IPSites[i]; n > 0 {
			ch <- prometheus.MustNewConstMetric(siteLookupsDesc, prometheus.CounterValue, float64(n), kindIP, site)
		}
		if n := s.NetMaskSites[i]; n > 0 {
			ch <- prometheus.MustNewConstMetric(siteLookupsDesc, prometheus.CounterValue, float64(n), kindNetMask, site)
		}
	}
}
