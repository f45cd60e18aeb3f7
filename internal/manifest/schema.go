package manifest

import "github.com/hashicorp/hcl/v2"

// fileRoot is used to decode all possible top-level blocks from any file.
type fileRoot struct {
	States   []*stateBlock   `hcl:"state,block"`
	Computes []*computeBlock `hcl:"compute,block"`
	Commands []*commandBlock `hcl:"command,block"`
	Clients  []*clientBlock  `hcl:"client,block"`
	Remain   hcl.Body        `hcl:",remain"`
}

type stateBlock struct {
	Name    string         `hcl:"name,label"`
	Type    hcl.Expression `hcl:"type,optional"`
	Default hcl.Expression `hcl:"default,optional"`
}

type computeBlock struct {
	Name     string         `hcl:"name,label"`
	States   []string       `hcl:"states,optional"`
	Computes []string       `hcl:"computes,optional"`
	Type     hcl.Expression `hcl:"type,optional"`
	Default  hcl.Expression `hcl:"default,optional"`
	Policy   string         `hcl:"policy,optional"`
	Value    hcl.Expression `hcl:"value,optional"`
	Handler  string         `hcl:"handler,optional"`
	Args     hcl.Expression `hcl:"args,optional"`
	Fetch    *fetchBlock    `hcl:"fetch,block"`
}

type fetchBlock struct {
	Client  string         `hcl:"client"`
	Event   string         `hcl:"event"`
	Reply   string         `hcl:"reply,optional"`
	Data    hcl.Expression `hcl:"data,optional"`
	Timeout string         `hcl:"timeout,optional"`
}

type commandBlock struct {
	Name       string         `hcl:"name,label"`
	States     []string       `hcl:"states,optional"`
	Computes   []string       `hcl:"computes,optional"`
	Handler    string         `hcl:"handler"`
	Args       hcl.Expression `hcl:"args,optional"`
	Background bool           `hcl:"background,optional"`
}

type clientBlock struct {
	Kind               string        `hcl:"kind,label"`
	Name               string        `hcl:"name,label"`
	URL                string        `hcl:"url"`
	Namespace          string        `hcl:"namespace,optional"`
	Timeout            string        `hcl:"timeout,optional"`
	InsecureSkipVerify bool          `hcl:"insecure_skip_verify,optional"`
	Breaker            *breakerBlock `hcl:"breaker,block"`
}

type breakerBlock struct {
	MaxFailures int    `hcl:"max_failures,optional"`
	OpenTimeout string `hcl:"open_timeout,optional"`
}
