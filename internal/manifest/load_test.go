package manifest

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/specialistvlad/computegrid/internal/compute"
	"github.com/specialistvlad/computegrid/internal/store"
	"github.com/specialistvlad/computegrid/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

func load(t *testing.T, files map[string]string) (*Model, error) {
	t.Helper()
	ctx, _ := testutil.Context(t)
	return Load(ctx, testutil.WriteFiles(t, files))
}

func TestLoad_DirectoryMergesFiles(t *testing.T) {
	m, err := load(t, map[string]string{
		"states.hcl": `state "counter" { default = 0 }`,
		"nested/computes.hcl": `
			compute "doubled" {
			  states = ["counter"]
			  value  = counter * 2
			}`,
		"README.md": "not a manifest",
	})
	require.NoError(t, err)
	require.Len(t, m.States, 1)
	require.Len(t, m.Computes, 1)

	assert.Equal(t, "state.counter", m.States[0].ID().String())
	assert.True(t, m.States[0].Default.Equals(cty.NumberIntVal(0)).True())
	c := m.Computes[0]
	assert.Equal(t, "compute.doubled", c.ID().String())
	assert.Equal(t, []string{"counter"}, c.States)
	assert.NotNil(t, c.Value)
	assert.Equal(t, compute.LatestOnly, c.Policy)
	assert.Equal(t, cty.DynamicPseudoType, c.Type)
}

func TestLoad_TypedDefaultIsConverted(t *testing.T) {
	m, err := load(t, map[string]string{
		"main.hcl": `
			state "n" {
			  type    = number
			  default = "5"
			}
			state "tags" { type = list(string) }`,
	})
	require.NoError(t, err)
	n := m.state("n")
	require.NotNil(t, n)
	assert.Equal(t, cty.Number, n.Default.Type())
	assert.True(t, n.Default.Equals(cty.NumberIntVal(5)).True())

	tags := m.state("tags")
	require.NotNil(t, tags)
	assert.True(t, tags.Default.IsNull())
	assert.Equal(t, cty.List(cty.String), tags.Default.Type())
}

func TestLoad_FetchAndClient(t *testing.T) {
	m, err := load(t, map[string]string{
		"main.hcl": `
			state "q" { default = "x" }
			compute "remote" {
			  states = ["q"]
			  policy = "every_delivery"
			  fetch {
			    client  = "main"
			    event   = "lookup"
			    data    = { query = q }
			    timeout = "2s"
			  }
			}
			client "socketio" "main" {
			  url     = "http://localhost:3000"
			  timeout = "1s"
			  breaker {
			    max_failures = 3
			    open_timeout = "10s"
			  }
			}`,
	})
	require.NoError(t, err)
	c := m.compute("remote")
	require.NotNil(t, c)
	require.NotNil(t, c.Fetch)
	assert.Equal(t, compute.EveryDelivery, c.Policy)
	assert.Equal(t, "lookup", c.Fetch.Reply, "reply defaults to the event name")
	assert.Equal(t, 2*time.Second, c.Fetch.Timeout)
	assert.NotNil(t, c.Fetch.Data)

	require.Len(t, m.Clients, 1)
	cl := m.Clients[0]
	assert.Equal(t, time.Second, cl.Timeout)
	require.NotNil(t, cl.Breaker)
	assert.Equal(t, uint32(3), cl.Breaker.MaxFailures)
	assert.Equal(t, 10*time.Second, cl.Breaker.OpenTimeout)
}

func TestLoad_ComputeNeedsExactlyOneSource(t *testing.T) {
	_, err := load(t, map[string]string{
		"main.hcl": `
			compute "both" {
			  value   = 1
			  handler = "env_lookup"
			}`,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exactly one of value, handler or fetch")

	_, err = load(t, map[string]string{"main.hcl": `compute "none" {}`})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "found 0")
}

func TestLoad_UnknownDependencySuggestsName(t *testing.T) {
	_, err := load(t, map[string]string{
		"main.hcl": `
			state "counter" { default = 0 }
			compute "doubled" {
			  states = ["countr"]
			  value  = countr * 2
			}`,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, store.ErrStateNotFound))

	var nf *store.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "deps of compute.doubled", nf.Context)
	assert.Equal(t, "did you mean 'counter'?", nf.Hint)
}

func TestLoad_UnknownComputeDependency(t *testing.T) {
	_, err := load(t, map[string]string{
		"main.hcl": `
			compute "a" {
			  computes = ["missing"]
			  value    = 1
			}`,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, store.ErrComputeNotFound))
}

func TestLoad_ExpressionMustReadDeclaredDependencies(t *testing.T) {
	_, err := load(t, map[string]string{
		"main.hcl": `
			state "counter" { default = 0 }
			state "other" { default = 1 }
			compute "sum" {
			  states = ["counter"]
			  value  = counter + other
			}`,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "value reads 'other', which is not a declared dependency")
}

func TestLoad_UnknownFunctionSuggestsName(t *testing.T) {
	_, err := load(t, map[string]string{
		"main.hcl": `compute "shout" { value = uper("hi") }`,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "calls unknown function 'uper' (did you mean 'upper'?)")
}

func TestLoad_DuplicateNames(t *testing.T) {
	_, err := load(t, map[string]string{
		"a.hcl": `state "x" { default = 0 }`,
		"b.hcl": `compute "x" { value = 1 }`,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "is already declared as a")
}

func TestLoad_FetchNeedsDeclaredClient(t *testing.T) {
	_, err := load(t, map[string]string{
		"main.hcl": `
			compute "remote" {
			  fetch {
			    client = "mian"
			    event  = "lookup"
			  }
			}
			client "socketio" "main" { url = "http://localhost:3000" }`,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "undeclared client 'mian' (did you mean 'main'?)")
}

func TestLoad_RejectsUnknownClientKind(t *testing.T) {
	_, err := load(t, map[string]string{
		"main.hcl": `client "grpc" "main" { url = "http://localhost:3000" }`,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unsupported kind "grpc"`)
}

func TestLoad_BadPolicy(t *testing.T) {
	_, err := load(t, map[string]string{
		"main.hcl": `compute "a" {
		  value  = 1
		  policy = "sometimes"
		}`,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown delivery policy")
}

func TestLoad_Paths(t *testing.T) {
	ctx, _ := testutil.Context(t)
	dir := testutil.WriteFiles(t, map[string]string{
		"main.hcl":  `state "a" { default = 1 }`,
		"notes.txt": "hello",
	})

	_, err := Load(ctx, filepath.Join(dir, "missing"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "grid path not found")

	_, err = Load(ctx, filepath.Join(dir, "notes.txt"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not an .hcl file")

	m, err := Load(ctx, filepath.Join(dir, "main.hcl"), dir)
	require.NoError(t, err)
	assert.Len(t, m.States, 1, "a file listed twice is loaded once")

	empty := testutil.WriteFiles(t, map[string]string{"notes.txt": "hello"})
	_, err = Load(ctx, empty)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no .hcl files found")
}

func TestLoad_SyntaxError(t *testing.T) {
	_, err := load(t, map[string]string{"main.hcl": `state "a" {`})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse HCL file")
}
