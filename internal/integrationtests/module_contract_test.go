package integrationtests

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/specialistvlad/computegrid/internal/app"
	"github.com/specialistvlad/computegrid/modules/env_vars"
	"github.com/specialistvlad/computegrid/modules/http_request"
	"github.com/specialistvlad/computegrid/modules/print"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test for: step handlers see their dependencies by name and decode args.
func TestModuleContract_EnvLookup(t *testing.T) {
	t.Setenv("COMPUTEGRID_IT_TOKEN", "s3cret")
	grid := `
		state "var" { default = "COMPUTEGRID_IT_TOKEN" }
		state "missing" { default = "COMPUTEGRID_IT_NOT_SET" }

		compute "token" {
		  states  = ["var"]
		  handler = "env_lookup"
		}
		compute "fallback" {
		  states  = ["missing"]
		  handler = "env_lookup"
		  args    = { default = "none" }
		}
	`
	res := runGrid(t, map[string]string{"main.hcl": grid}, app.Config{}, &env_vars.Module{})
	require.NoError(t, res.Err)
	assert.JSONEq(t, `{"token": "s3cret", "fallback": "none"}`, res.Output)
}

// Test for: an async handler follows the state it depends on.
func TestModuleContract_HTTPRequestFollowsState(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "hello from %s", r.URL.Path)
	}))
	defer srv.Close()

	grid := fmt.Sprintf(`
		state "url" { default = "%s/first" }
		compute "page" {
		  states  = ["url"]
		  handler = "http_request"
		}
		compute "body" {
		  computes = ["page"]
		  value    = page == null ? "" : page.body
		}
	`, srv.URL)
	res := runGrid(t, map[string]string{"main.hcl": grid},
		app.Config{Sets: []string{fmt.Sprintf(`url = "%s/second"`, srv.URL)}},
		&http_request.Module{Client: srv.Client()},
	)
	require.NoError(t, res.Err)
	assert.Contains(t, res.Output, `"body": "hello from /second"`)
}

// Test for: commands see a snapshot taken after the grid settled.
func TestModuleContract_PrintCommand(t *testing.T) {
	grid := `
		state "greeting" { default = "hi" }
		compute "loud" {
		  states = ["greeting"]
		  value  = upper(greeting)
		}
		command "show" {
		  states   = ["greeting"]
		  computes = ["loud"]
		  handler  = "print"
		  args     = { title = "Greeting" }
		}
	`
	res := runGrid(t, map[string]string{"main.hcl": grid}, app.Config{Dispatch: []string{"show"}}, &print.Module{})
	require.NoError(t, res.Err)
	assert.Contains(t, res.Output, "Greeting:\n      greeting = \"hi\"\n      loud = \"HI\"\n")
}
