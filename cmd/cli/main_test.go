package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeGrid(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "main.hcl")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestRun_StartupError(t *testing.T) {
	t.Parallel()

	path := writeGrid(t, `
		state "counter" {
		  default = 1
		// Missing closing brace here
	`)
	out := &bytes.Buffer{}

	err := run(out, []string{"--log-format", "text", path})

	require.Error(t, err, "run() should fail when the grid cannot be parsed")
	require.Contains(t, err.Error(), "failed to parse")
}

func TestRun_PrintsOutputs(t *testing.T) {
	t.Parallel()

	path := writeGrid(t, `
		state "counter" { default = 1 }
		compute "doubled" {
		  states = ["counter"]
		  value  = counter * 2
		}
	`)
	out := &bytes.Buffer{}

	err := run(out, []string{"--log-level", "error", "--set", "counter=21", path})

	require.NoError(t, err)
	require.Contains(t, out.String(), `"doubled": 42`)
}

func TestRun_ShouldExit(t *testing.T) {
	t.Parallel()

	// The "-h" (help) flag should cause cli.Parse to return `shouldExit=true`.
	out := &bytes.Buffer{}

	err := run(out, []string{"-h"})

	require.NoError(t, err, "run() should return a nil error when shouldExit is true")
	require.Contains(t, out.String(), "Usage:", "Expected help text to be printed to the output buffer")
}

func TestRun_ParseError(t *testing.T) {
	t.Parallel()

	out := &bytes.Buffer{}

	err := run(out, []string{"--this-is-not-a-valid-flag"})

	require.Error(t, err, "run() should return an error when argument parsing fails")
	require.Contains(t, err.Error(), "flag provided but not defined: -this-is-not-a-valid-flag")
}
