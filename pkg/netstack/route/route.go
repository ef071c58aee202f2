// Package route keeps the registry of network interfaces and the address
// bindings (endpoints) attached to them, and resolves which endpoint owns an
// inbound frame or should originate an outbound packet.
//
// A Table is filled during a start-up phase (RegisterInterface, the Fill
// functions) and read afterwards. Lookups never modify the registries, so once
// start-up is over any number of goroutines may query a Table concurrently.
// Registration must not run concurrently with anything else.
//
// Interface and Endpoint records are owned by the caller. The table stores
// references to them in fixed-capacity slots allocated by NewTable and never
// copies, moves or releases them.
package route

import (
	"fmt"

	"go.uber.org/zap"
)

// Default capacities of a Table.
const (
	DefaultMaxInterfaces = 4
	DefaultMaxEndpoints  = 8
)

// Options configures a Table.
type Options struct {
	// MaxInterfaces and MaxEndpoints bound the registries. Zero selects the
	// defaults. Registering beyond capacity is a contract violation.
	MaxInterfaces int
	MaxEndpoints  int

	// Single restricts the table to exactly one interface and one endpoint.
	// A second registration of either kind panics, even when it repeats the
	// same record.
	Single bool

	// Logger receives advisory diagnostics. Nil disables logging.
	Logger *zap.Logger
}

// Table is a routing-table context: the ordered interface and endpoint
// registries of one stack instance.
type Table struct {
	single     bool
	interfaces []*Interface
	endpoints  []*Endpoint
	log        *zap.Logger
	stats      statistics
}

// NewTable creates an empty table.
func NewTable(opts Options) *Table {
	if opts.Single {
		opts.MaxInterfaces, opts.MaxEndpoints = 1, 1
	}
	if opts.MaxInterfaces <= 0 {
		opts.MaxInterfaces = DefaultMaxInterfaces
	}
	if opts.MaxEndpoints <= 0 {
		opts.MaxEndpoints = DefaultMaxEndpoints
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	return &Table{
		single:     opts.Single,
		interfaces: make([]*Interface, 0, opts.MaxInterfaces),
		endpoints:  make([]*Endpoint, 0, opts.MaxEndpoints),
		log:        opts.Logger.Named("route"),
	}
}

// NewSingleTable creates a table for deployments with exactly one interface
// and one endpoint.
func NewSingleTable(logger *zap.Logger) *Table {
	return NewTable(Options{Single: true, Logger: logger})
}

// Single reports whether the table was created in single-endpoint mode.
func (t *Table) Single() bool {
	return t.single
}

// InterfaceCount returns the number of registered interfaces.
func (t *Table) InterfaceCount() int {
	return len(t.interfaces)
}

// EndpointCount returns the number of registered endpoints.
func (t *Table) EndpointCount() int {
	return len(t.endpoints)
}

// ContractViolation is the panic value raised when a caller breaks the
// table's usage contract: a second registration in single mode, exhausted
// capacity, nil storage, a nil frame. These are integration bugs, not
// runtime conditions.
type ContractViolation struct {
	Op  string
	Msg string
}

func (c ContractViolation) Error() string {
	return fmt.Sprintf("route: %s: %s", c.Op, c.Msg)
}

func mustHold(cond bool, op, format string, args ...interface{}) {
	if !cond {
		panic(ContractViolation{Op: op, Msg: fmt.Sprintf(format, args...)})
	}
}
