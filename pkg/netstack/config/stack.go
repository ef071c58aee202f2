package config

import (
	"fmt"
	"net"

	"go.uber.org/zap"

	"tinyip/pkg/netstack/ethernet"
	"tinyip/pkg/netstack/route"
)

// Stack is a routing table brought up from a Config together with the
// records it references.
type Stack struct {
	Table      *route.Table
	Interfaces []*route.Interface
	Endpoints  []*route.Endpoint
}

// Interface returns the interface with the given name, or nil.
func (s *Stack) Interface(name string) *route.Interface {
	for _, ifc := range s.Interfaces {
		if ifc.Name == name {
			return ifc
		}
	}
	return nil
}

// Bringup validates c, allocates every interface and endpoint record once,
// and registers them in configuration order. Static endpoints get their
// default settings applied and are marked up.
func (c *Config) Bringup(logger *zap.Logger) (*Stack, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("bring-up: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	tbl := route.NewTable(route.Options{
		MaxInterfaces: c.MaxInterfaces,
		MaxEndpoints:  c.MaxEndpoints,
		Single:        c.Single,
		Logger:        logger,
	})

	ifaces := make([]route.Interface, len(c.Interfaces))
	endpoints := make([]route.Endpoint, c.endpointCount())
	st := &Stack{
		Table:      tbl,
		Interfaces: make([]*route.Interface, 0, len(ifaces)),
		Endpoints:  make([]*route.Endpoint, 0, len(endpoints)),
	}

	next := 0
	for i, ic := range c.Interfaces {
		ifaces[i].Name = ic.Name
		ifc := tbl.RegisterInterface(&ifaces[i])
		st.Interfaces = append(st.Interfaces, ifc)

		for _, ec := range ic.Endpoints {
			ep := fillEndpoint(tbl, ifc, &endpoints[next], ec)
			next++
			if ec.Static {
				ep.ApplyDefaults()
				ep.SetUp(true)
			}
			st.Endpoints = append(st.Endpoints, ep)
		}
	}

	logger.Info("stack up",
		zap.Int("interfaces", tbl.InterfaceCount()),
		zap.Int("endpoints", tbl.EndpointCount()),
		zap.Bool("single", tbl.Single()))
	return st, nil
}

func fillEndpoint(tbl *route.Table, ifc *route.Interface, storage *route.Endpoint, ec EndpointConfig) *route.Endpoint {
	mac, _ := ethernet.ParseMAC(ec.MAC)
	hw := net.HardwareAddr(mac[:])

	if v4 := ec.IPv4; v4 != nil {
		return tbl.FillIPv4Endpoint(ifc, storage,
			parseIPv4(v4.Address), parseIPv4(v4.Netmask),
			optional(v4.Gateway), optional(v4.DNS), hw)
	}
	v6 := ec.IPv6
	return tbl.FillIPv6Endpoint(ifc, storage,
		parseIPv6(v6.Address), optional(v6.Prefix), v6.PrefixLength,
		optional(v6.Gateway), optional(v6.DNS), hw)
}
