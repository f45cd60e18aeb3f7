package manifest

import (
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/specialistvlad/computegrid/internal/compute"
	"github.com/specialistvlad/computegrid/internal/ident"
	"github.com/zclconf/go-cty/cty"
)

// Model is the format-agnostic result of loading manifest files.
type Model struct {
	States   []*State
	Computes []*Compute
	Commands []*Command
	Clients  []*Client
}

// State is a declared state.
type State struct {
	Name    string
	Type    cty.Type
	Default cty.Value
	File    string
}

// ID returns the engine identity of the state.
func (s *State) ID() ident.ID { return ident.Named(ident.KindState, s.Name) }

// Compute is a declared compute. Exactly one of Value, Handler or Fetch is
// set.
type Compute struct {
	Name     string
	States   []string
	Computes []string
	Type     cty.Type
	Default  cty.Value
	Policy   compute.Policy
	Value    hcl.Expression
	Handler  string
	Args     cty.Value
	Fetch    *Fetch
	File     string
}

// ID returns the engine identity of the compute.
func (c *Compute) ID() ident.ID { return ident.Named(ident.KindCompute, c.Name) }

// Fetch describes a remote call made by a compute.
type Fetch struct {
	Client  string
	Event   string
	Reply   string
	Data    hcl.Expression
	Timeout time.Duration
}

// Command is a declared command.
type Command struct {
	Name       string
	States     []string
	Computes   []string
	Handler    string
	Args       cty.Value
	Background bool
	File       string
}

// Client is a declared remote endpoint.
type Client struct {
	Kind               string
	Name               string
	URL                string
	Namespace          string
	Timeout            time.Duration
	InsecureSkipVerify bool
	Breaker            *Breaker
}

// Breaker configures the circuit breaker wrapped around a client.
type Breaker struct {
	MaxFailures uint32
	OpenTimeout time.Duration
}

func (m *Model) state(name string) *State {
	for _, s := range m.States {
		if s.Name == name {
			return s
		}
	}
	return nil
}

func (m *Model) compute(name string) *Compute {
	for _, c := range m.Computes {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func (m *Model) stateNames() []string {
	out := make([]string, len(m.States))
	for i, s := range m.States {
		out[i] = s.Name
	}
	return out
}

func (m *Model) computeNames() []string {
	out := make([]string, len(m.Computes))
	for i, c := range m.Computes {
		out[i] = c.Name
	}
	return out
}

func (m *Model) commandNames() []string {
	out := make([]string, len(m.Commands))
	for i, c := range m.Commands {
		out[i] = c.Name
	}
	return out
}

func (m *Model) client(name string) *Client {
	for _, c := range m.Clients {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func (m *Model) clientNames() []string {
	out := make([]string, len(m.Clients))
	for i, c := range m.Clients {
		out[i] = c.Name
	}
	return out
}
