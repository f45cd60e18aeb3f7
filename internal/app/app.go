package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/specialistvlad/computegrid/internal/ctxlog"
	"github.com/specialistvlad/computegrid/internal/engine"
	"github.com/specialistvlad/computegrid/internal/fetch"
	"github.com/specialistvlad/computegrid/internal/manifest"
	"github.com/specialistvlad/computegrid/internal/metrics"
	"github.com/specialistvlad/computegrid/internal/registry"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	ctx        context.Context
	outW       io.Writer
	logger     *slog.Logger
	config     *Config
	registry   *registry.Registry
	metrics    *metrics.Metrics
	engine     *engine.Engine
	model      *manifest.Model
	clients    *manifest.Clients
	installed  *manifest.Installed
	httpServer *http.Server
}

// Option customizes NewApp.
type Option func(*options)

type options struct {
	logW     io.Writer
	services map[string]fetch.Service
}

// WithLogWriter sends logs to w instead of the output writer.
func WithLogWriter(w io.Writer) Option {
	return func(o *options) { o.logW = w }
}

// WithServices uses the given services for the manifest's clients instead of
// dialing them.
func WithServices(services map[string]fetch.Service) Option {
	return func(o *options) { o.services = services }
}

// NewApp is the constructor for the main application. It builds an isolated
// logger, metrics and engine, loads the manifest at cfg.GridPath and installs
// it. A nil registry means the core modules.
func NewApp(ctx context.Context, outW io.Writer, cfg *Config, reg *registry.Registry, opts ...Option) (*App, error) {
	o := options{logW: outW}
	for _, opt := range opts {
		opt(&o)
	}

	logger := newLogger(cfg.LogLevel, cfg.LogFormat, o.logW)
	ctx = ctxlog.WithLogger(ctx, logger)
	logger.Debug("Logger configured successfully.")

	if reg == nil {
		modules := coreModules()
		reg = registry.New().Use(modules...)
		logger.Debug("All Go modules registered.", "count", len(modules))
	}

	m := metrics.New(true)
	a := &App{
		ctx:      ctx,
		outW:     outW,
		logger:   logger,
		config:   cfg,
		registry: reg,
		metrics:  m,
		engine:   engine.New(engine.WithMetrics(m), engine.WithWorkers(cfg.WorkerCount)),
	}
	if err := a.load(o.services); err != nil {
		a.engine.Close()
		_ = a.clients.Close()
		return nil, err
	}
	return a, nil
}

// Registry returns the application's registry. This is primarily for testing.
func (a *App) Registry() *registry.Registry {
	return a.registry
}

// Engine returns the application's engine. This is primarily for testing.
func (a *App) Engine() *engine.Engine {
	return a.engine
}

// Close releases the clients and the engine.
func (a *App) Close() error {
	a.engine.Close()
	if err := a.clients.Close(); err != nil {
		return fmt.Errorf("failed to close clients: %w", err)
	}
	return nil
}
