package integrationtests

import (
	"context"
	"os"
	"testing"

	"github.com/specialistvlad/computegrid/internal/app"
	"github.com/specialistvlad/computegrid/internal/registry"
	"github.com/specialistvlad/computegrid/internal/testutil"
	"github.com/stretchr/testify/require"
)

// runResult holds the outcomes of one run.
type runResult struct {
	Output string
	Logs   string
	Err    error
}

// runGrid writes files to a temporary grid directory, builds an App with the
// given modules and runs it once.
func runGrid(t *testing.T, files map[string]string, cfg app.Config, modules ...registry.Module) runResult {
	t.Helper()
	cfg.GridPath = testutil.WriteFiles(t, files)
	cfg.LogLevel = "debug"
	cfg.LogFormat = "text"
	config, err := app.NewConfig(cfg)
	require.NoError(t, err)

	out, logs := &testutil.SafeBuffer{}, &testutil.SafeBuffer{}
	t.Cleanup(func() {
		if os.Getenv("COMPUTEGRID_TEST_LOGS") == "true" {
			t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), logs.String())
		}
	})

	a, err := app.NewApp(context.Background(), out, config, registry.New().Use(modules...), app.WithLogWriter(logs))
	if err != nil {
		return runResult{Logs: logs.String(), Err: err}
	}
	err = a.Run(context.Background())
	return runResult{Output: out.String(), Logs: logs.String(), Err: err}
}
