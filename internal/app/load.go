package app

import (
	"fmt"

	"github.com/specialistvlad/computegrid/internal/ctxlog"
	"github.com/specialistvlad/computegrid/internal/fetch"
	"github.com/specialistvlad/computegrid/internal/manifest"
)

// load reads the manifest, connects its clients and installs it into the
// engine. Injected services replace dialing.
func (a *App) load(services map[string]fetch.Service) error {
	logger := ctxlog.FromContext(a.ctx)
	logger.Debug("Loading grid...", "grid_path", a.config.GridPath)

	model, err := manifest.Load(a.ctx, a.config.GridPath)
	if err != nil {
		return fmt.Errorf("failed to load grid: %w", err)
	}
	a.model = model

	if services == nil {
		a.clients, err = manifest.DialClients(a.ctx, model)
		if err != nil {
			return fmt.Errorf("failed to connect clients: %w", err)
		}
		services = a.clients.Services()
	}

	a.installed, err = manifest.Install(a.ctx, a.engine, model, a.registry, manifest.Options{
		Stdout:  a.outW,
		Clients: services,
	})
	if err != nil {
		return fmt.Errorf("failed to install grid: %w", err)
	}

	if err := a.engine.VerifyDeps(); err != nil {
		return fmt.Errorf("invalid dependency graph: %w", err)
	}
	logger.Info("Grid loaded successfully.",
		"states", len(model.States),
		"computes", len(model.Computes),
		"commands", len(model.Commands),
	)
	return nil
}
