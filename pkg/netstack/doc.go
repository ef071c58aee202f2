// Package netstack holds the shared vocabulary of the tinyip embedded TCP/IP
// stack: link-layer frame types, protocol numbers, address helpers and the
// sentinel errors used by its sub-packages.
//
// Layer Structure:
//   - Layer 2 (Link): Ethernet frames, ARP (package ethernet)
//   - Layer 3 (Network): IPv4, IPv6 headers and address classes (package ip)
//   - Routing: interfaces, endpoints and frame-to-endpoint matching (package route)
//   - Socket glue: the endpoint a socket sends from (package socket)
//   - Bring-up: YAML interface and endpoint layout (package config)
//
// Example usage:
//
//	table := route.NewTable(route.Options{})
//	eth0 := table.RegisterInterface(&route.Interface{Name: "eth0"})
//	var ep route.Endpoint
//	table.FillIPv4Endpoint(eth0, &ep,
//	    net.IPv4(10, 0, 0, 5), net.IPv4(255, 255, 255, 0), net.IPv4(10, 0, 0, 1), nil,
//	    net.HardwareAddr{0x00, 0x11, 0x22, 0x33, 0x44, 0x55})
//	ep.ApplyDefaults()
//	owner := table.MatchIncomingFrame(eth0, frame)
package netstack
