// Package config loads the interface and endpoint layout of a stack from YAML
// and brings the routing table up from it.
package config

import (
	"fmt"
	"net"
	"os"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v2"

	"tinyip/pkg/netstack/ethernet"
	"tinyip/pkg/netstack/ip"
	"tinyip/pkg/netstack/route"
)

// Config is the top-level bring-up configuration.
type Config struct {
	Single        bool              `yaml:"single"`
	MaxInterfaces int               `yaml:"max_interfaces"`
	MaxEndpoints  int               `yaml:"max_endpoints"`
	Interfaces    []InterfaceConfig `yaml:"interfaces"`
}

// InterfaceConfig describes one network interface and its endpoints.
type InterfaceConfig struct {
	Name      string           `yaml:"name"`
	Endpoints []EndpointConfig `yaml:"endpoints"`
}

// EndpointConfig describes one endpoint. Exactly one of IPv4 and IPv6 must be
// set.
type EndpointConfig struct {
	MAC  string      `yaml:"mac"`
	IPv4 *IPv4Config `yaml:"ipv4,omitempty"`
	IPv6 *IPv6Config `yaml:"ipv6,omitempty"`

	// Static endpoints use their configured address right away and are
	// marked up at bring-up. Others wait for dynamic configuration.
	Static bool `yaml:"static"`
}

// IPv4Config holds the static IPv4 addressing of an endpoint.
type IPv4Config struct {
	Address string `yaml:"address"`
	Netmask string `yaml:"netmask"`
	Gateway string `yaml:"gateway,omitempty"`
	DNS     string `yaml:"dns,omitempty"`
}

// IPv6Config holds the static IPv6 addressing of an endpoint.
type IPv6Config struct {
	Address      string `yaml:"address"`
	Prefix       string `yaml:"prefix,omitempty"`
	PrefixLength int    `yaml:"prefix_length"`
	Gateway      string `yaml:"gateway,omitempty"`
	DNS          string `yaml:"dns,omitempty"`
}

// Default returns a configuration with a single statically addressed
// interface.
func Default() *Config {
	return &Config{
		MaxInterfaces: route.DefaultMaxInterfaces,
		MaxEndpoints:  route.DefaultMaxEndpoints,
		Interfaces: []InterfaceConfig{{
			Name: "eth0",
			Endpoints: []EndpointConfig{{
				MAC: "02:00:00:00:00:01",
				IPv4: &IPv4Config{
					Address: "10.0.0.2",
					Netmask: "255.255.255.0",
					Gateway: "10.0.0.1",
					DNS:     "10.0.0.1",
				},
				Static: true,
			}},
		}},
	}
}

// Load reads and validates the configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes and validates a YAML configuration. Unknown keys are errors.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.UnmarshalStrict(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration and reports every problem found.
func (c *Config) Validate() error {
	var err error
	if len(c.Interfaces) == 0 {
		err = multierr.Append(err, fmt.Errorf("no interfaces configured"))
	}
	if c.MaxInterfaces < 0 || c.MaxEndpoints < 0 {
		err = multierr.Append(err, fmt.Errorf("capacities must not be negative"))
	}

	maxIfaces, maxEndpoints := c.capacities()
	if n := len(c.Interfaces); n > maxIfaces {
		err = multierr.Append(err, fmt.Errorf("%d interfaces exceed capacity %d", n, maxIfaces))
	}
	if n := c.endpointCount(); n > maxEndpoints {
		err = multierr.Append(err, fmt.Errorf("%d endpoints exceed capacity %d", n, maxEndpoints))
	}

	names := make(map[string]bool)
	for i, ifc := range c.Interfaces {
		where := fmt.Sprintf("interfaces[%d]", i)
		switch {
		case ifc.Name == "":
			err = multierr.Append(err, fmt.Errorf("%s: missing name", where))
		case names[ifc.Name]:
			err = multierr.Append(err, fmt.Errorf("%s: duplicate name %q", where, ifc.Name))
		}
		names[ifc.Name] = true

		for j, ep := range ifc.Endpoints {
			err = multierr.Append(err, ep.validate(fmt.Sprintf("%s.endpoints[%d]", where, j)))
		}
	}
	return err
}

func (c *Config) capacities() (ifaces, endpoints int) {
	if c.Single {
		return 1, 1
	}
	ifaces, endpoints = c.MaxInterfaces, c.MaxEndpoints
	if ifaces <= 0 {
		ifaces = route.DefaultMaxInterfaces
	}
	if endpoints <= 0 {
		endpoints = route.DefaultMaxEndpoints
	}
	return ifaces, endpoints
}

func (c *Config) endpointCount() int {
	n := 0
	for _, ifc := range c.Interfaces {
		n += len(ifc.Endpoints)
	}
	return n
}

func (e *EndpointConfig) validate(where string) error {
	var err error
	if _, perr := ethernet.ParseMAC(e.MAC); perr != nil {
		err = multierr.Append(err, fmt.Errorf("%s: mac: %w", where, perr))
	}

	switch {
	case e.IPv4 == nil && e.IPv6 == nil:
		err = multierr.Append(err, fmt.Errorf("%s: one of ipv4 or ipv6 is required", where))
	case e.IPv4 != nil && e.IPv6 != nil:
		err = multierr.Append(err, fmt.Errorf("%s: ipv4 and ipv6 are mutually exclusive", where))
	case e.IPv4 != nil:
		err = multierr.Append(err, e.IPv4.validate(where+".ipv4"))
	default:
		err = multierr.Append(err, e.IPv6.validate(where+".ipv6"))
	}
	return err
}

func (c *IPv4Config) validate(where string) error {
	var err error
	if parseIPv4(c.Address) == nil {
		err = multierr.Append(err, fmt.Errorf("%s: invalid address %q", where, c.Address))
	}
	if mask := parseIPv4(c.Netmask); mask == nil {
		err = multierr.Append(err, fmt.Errorf("%s: invalid netmask %q", where, c.Netmask))
	} else if _, bits := net.IPMask(mask).Size(); bits == 0 {
		err = multierr.Append(err, fmt.Errorf("%s: netmask %q is not contiguous", where, c.Netmask))
	}
	if c.Gateway != "" && parseIPv4(c.Gateway) == nil {
		err = multierr.Append(err, fmt.Errorf("%s: invalid gateway %q", where, c.Gateway))
	}
	if c.DNS != "" && parseIPv4(c.DNS) == nil {
		err = multierr.Append(err, fmt.Errorf("%s: invalid dns %q", where, c.DNS))
	}
	return err
}

func (c *IPv6Config) validate(where string) error {
	var err error
	if parseIPv6(c.Address) == nil {
		err = multierr.Append(err, fmt.Errorf("%s: invalid address %q", where, c.Address))
	}
	if c.PrefixLength < 0 || c.PrefixLength > ip.IPv6AddressBits {
		err = multierr.Append(err, fmt.Errorf("%s: prefix_length %d out of range", where, c.PrefixLength))
	}
	for _, f := range []struct{ name, value string }{
		{"prefix", c.Prefix},
		{"gateway", c.Gateway},
		{"dns", c.DNS},
	} {
		if f.value != "" && parseIPv6(f.value) == nil {
			err = multierr.Append(err, fmt.Errorf("%s: invalid %s %q", where, f.name, f.value))
		}
	}
	return err
}

func parseIPv4(s string) net.IP {
	return net.ParseIP(s).To4()
}

func parseIPv6(s string) net.IP {
	v := net.ParseIP(s)
	if v == nil || v.To4() != nil {
		return nil
	}
	return v
}

// optional parses an address that may be left empty.
func optional(s string) net.IP {
	if s == "" {
		return nil
	}
	return net.ParseIP(s)
}
