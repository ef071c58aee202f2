// netstack-demo brings up a routing table and walks a set of sample frames
// through the endpoint matcher.
//
// This demo shows:
// - Bring-up from a YAML configuration (or the built-in default)
// - Matching inbound ARP, IPv4 and IPv6 frames to endpoints
// - Source endpoint selection for outbound sockets
// - Routing statistics, optionally served as Prometheus metrics
package main

import (
	"context"
	"errors"
	"fmt"
	network "net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	flag "github.com/spf13/pflag"
	"go.uber.org/zap"

	"tinyip/pkg/netstack"
	"tinyip/pkg/netstack/config"
	"tinyip/pkg/netstack/ethernet"
	"tinyip/pkg/netstack/ip"
	"tinyip/pkg/netstack/route"
	"tinyip/pkg/netstack/socket"
)

var (
	configPath  = flag.StringP("config", "c", "", "path to a YAML stack configuration (default: built-in)")
	verbose     = flag.BoolP("verbose", "v", false, "enable debug logging")
	single      = flag.Bool("single", false, "force single-interface, single-endpoint mode")
	metricsAddr = flag.String("metrics-addr", "", "serve routing statistics on this address until interrupted")
)

func main() {
	flag.Parse()

	logger, err := newLogger(*verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "netstack-demo: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(logger); err != nil {
		logger.Error("demo failed", zap.Error(err))
		os.Exit(1)
	}
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func run(logger *zap.Logger) error {
	fmt.Println("=== tinyip Routing Demo ===")
	fmt.Println()

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			return err
		}
	}
	if *single {
		cfg.Single = true
	}

	st, err := cfg.Bringup(logger)
	if err != nil {
		return err
	}

	demoTable(st)
	demoMatching(st)
	demoSockets(st)
	demoStats(st.Table)

	fmt.Println()
	fmt.Println("=== Demo Complete ===")

	if *metricsAddr == "" {
		return nil
	}
	return serveMetrics(logger, st.Table, *metricsAddr)
}

func demoTable(st *config.Stack) {
	fmt.Println("--- Interfaces and Endpoints ---")

	tbl := st.Table
	for ifc := tbl.FirstInterface(); ifc != nil; ifc = tbl.NextInterface(ifc) {
		fmt.Printf("Interface %s (index %d, up=%v)\n", ifc.Name, ifc.Index(), tbl.AllEndpointsUp(ifc))
		for ep := tbl.FirstEndpoint(ifc); ep != nil; ep = tbl.NextEndpoint(ifc, ep) {
			fmt.Printf("  %-28s family=%s mac=%s up=%v\n", ep, ep.Family(), ep.MAC(), ep.IsUp())
		}
	}
	fmt.Println()
}

// sampleFrames builds one frame of each kind addressed to the first endpoint
// of the stack, plus a few that exercise broadcast and multicast handling.
func sampleFrames(st *config.Stack) (map[string][]byte, error) {
	frames := make(map[string][]byte)
	ep := st.Table.FirstEndpoint(nil)
	if ep == nil {
		return frames, nil
	}

	peerMAC := network.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x99}
	dstMAC := ep.MAC().HardwareAddr()
	build := func(name string, dst network.HardwareAddr, typ netstack.EtherType, packet []byte, err error) error {
		if err == nil {
			packet, err = ethernet.NewFrame(dst, peerMAC, typ, packet).Serialize()
		}
		if err != nil {
			return fmt.Errorf("build %s frame: %w", name, err)
		}
		frames[name] = packet
		return nil
	}

	if ep.IsIPv6() {
		local := netstack.Array16ToIP(ep.IPv6().Address)
		for name, dst := range map[string]network.IP{
			"ipv6 unicast": local,
			"ipv6 llmnr":   netstack.Array16ToIP(ip.LLMNRAddress),
		} {
			packet, err := ip.NewIPv6Datagram(network.ParseIP("fe80::99"), dst, ip.ProtocolUDP, []byte("demo")).Serialize()
			if err = build(name, dstMAC, netstack.EtherTypeIPv6, packet, err); err != nil {
				return nil, err
			}
		}
		return frames, nil
	}

	s := ep.IPv4()
	local := netstack.Uint32ToIP(s.Address)
	peer := netstack.Uint32ToIP(s.Address&s.NetMask | 0x99)
	for name, dst := range map[string]network.IP{
		"ipv4 unicast":           local,
		"ipv4 subnet broadcast":  netstack.Uint32ToIP(s.Broadcast),
		"ipv4 limited broadcast": network.IPv4bcast,
		"ipv4 multicast":         network.ParseIP("224.0.0.251"),
		"ipv4 foreign":           network.ParseIP("198.51.100.7"),
	} {
		packet, err := ip.NewDatagram(peer, dst, ip.ProtocolUDP, []byte("demo")).Serialize()
		if err = build(name, dstMAC, netstack.EtherTypeIPv4, packet, err); err != nil {
			return nil, err
		}
	}

	packet, err := ethernet.NewARPRequest(peerMAC, peer, local).Serialize()
	if err = build("arp request", ethernet.BroadcastMAC(), netstack.EtherTypeARP, packet, err); err != nil {
		return nil, err
	}
	return frames, nil
}

// linkClass names the link-layer destination class of a raw frame.
func linkClass(frame []byte) string {
	f, err := ethernet.ParseFrame(frame)
	switch {
	case err != nil:
		return "invalid"
	case f.IsBroadcast():
		return "broadcast"
	case f.IsMulticast():
		return "multicast"
	}
	return "unicast"
}

func demoMatching(st *config.Stack) {
	fmt.Println("--- Inbound Frame Matching ---")

	frames, err := sampleFrames(st)
	if err != nil {
		fmt.Printf("Error building frames: %v\n", err)
		return
	}

	ifc := st.Table.FirstInterface()
	for name, frame := range frames {
		ep := st.Table.MatchIncomingFrame(ifc, frame)
		if ep == nil {
			fmt.Printf("  %-24s %-9s -> dropped\n", name, linkClass(frame))
			continue
		}
		fmt.Printf("  %-24s %-9s -> %s\n", name, linkClass(frame), ep)
	}
	fmt.Println()
}

func demoSockets(st *config.Stack) {
	fmt.Println("--- Socket Source Selection ---")

	sm := socket.NewManager()
	targets := []network.Addr{
		&network.TCPAddr{IP: network.ParseIP("10.0.0.20"), Port: 80},
		&network.UDPAddr{IP: network.ParseIP("8.8.8.8"), Port: 53},
		&network.UDPAddr{IP: network.ParseIP("2001:db8::20"), Port: 53},
	}

	for _, addr := range targets {
		var s *socket.Socket
		if _, ok := addr.(*network.TCPAddr); ok {
			s = socket.NewTCPSocket(st.Table)
		} else {
			s = socket.NewUDPSocket(0, nil, st.Table)
		}

		if err := s.Connect(addr); err != nil {
			if errors.Is(err, netstack.ErrNoRoute) {
				fmt.Printf("  %-22s -> no route\n", addr)
				continue
			}
			fmt.Printf("  %-22s -> error: %v\n", addr, err)
			continue
		}
		sm.Add(s)
		fmt.Printf("  %-22s -> %s (socket %d)\n", addr, route.GetSocketEndpoint(s), s.ID)
	}
	fmt.Printf("Socket Manager: %d sockets\n", len(sm.List()))
	fmt.Println()
}

func demoStats(tbl *route.Table) {
	fmt.Println("--- Routing Statistics ---")

	s := tbl.Stats()
	fmt.Printf("IPv4 lookups: %d, MAC lookups: %d, netmask lookups: %d, frames matched: %d\n",
		s.OnIP, s.OnMAC, s.OnNetMask, s.Matching)
	for i := 0; i < route.NumCallSites; i++ {
		if s.IPSites[i] == 0 && s.NetMaskSites[i] == 0 {
			continue
		}
		fmt.Printf("  site %-16s ip=%d netmask=%d\n", route.CallSite(i), s.IPSites[i], s.NetMaskSites[i])
	}
}

func serveMetrics(logger *zap.Logger, tbl *route.Table, addr string) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(tbl.Collector())

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() {
		logger.Info("serving metrics", zap.String("addr", addr))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return fmt.Errorf("metrics server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
