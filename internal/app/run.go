package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/specialistvlad/computegrid/internal/ctxlog"
)

// Run drives one run of the loaded grid: apply the --set assignments, cycle
// until settled (or for a fixed number of cycles), dispatch the requested
// commands, wait for background work, cycle once more and print every cached
// compute as JSON. With Check set it only prints the evaluation order.
func (a *App) Run(ctx context.Context) (err error) {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	logger := ctxlog.FromContext(ctx)
	logger.Debug("App.Run method started.")

	a.healthCheckServer()
	defer func() {
		err = errors.Join(err, a.closeHealthCheckServer(), a.Close())
	}()

	if a.config.Check {
		return a.printOrder()
	}

	for _, s := range a.config.Sets {
		if err := a.installed.Set(s); err != nil {
			return fmt.Errorf("invalid --set: %w", err)
		}
		logger.Debug("Queued assignment.", "set", s)
	}

	logger.Info("▶️ Running grid...")
	if err := a.advance(ctx); err != nil {
		return err
	}

	if len(a.config.Dispatch) > 0 {
		for _, name := range a.config.Dispatch {
			rec, err := a.installed.Dispatch(ctx, name)
			if err != nil {
				return fmt.Errorf("dispatch failed: %w", err)
			}
			logger.Info("Command dispatched.", "command", rec.Name, "dispatch_id", rec.ID, "mode", rec.Mode.String())
		}
		if err := a.engine.Wait(); err != nil {
			return fmt.Errorf("command failed: %w", err)
		}
		if err := a.advance(ctx); err != nil {
			return err
		}
	}

	if err := a.installed.RenderJSON(a.outW); err != nil {
		return fmt.Errorf("failed to render outputs: %w", err)
	}
	if err := a.installed.Failures(); err != nil {
		return fmt.Errorf("some computes failed: %w", err)
	}
	logger.Info("✅ Grid run finished.")
	return nil
}

// advance runs the configured number of cycles, or settles within the
// timeout when none is configured.
func (a *App) advance(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)
	if a.config.Cycles > 0 {
		for range a.config.Cycles {
			rep, err := a.engine.Cycle(ctx)
			if err != nil {
				return fmt.Errorf("cycle failed: %w", err)
			}
			logger.Debug("Cycle finished.", "cycle", rep.Cycle, "evaluated", len(rep.Evaluated), "pending", rep.Pending)
		}
		return nil
	}

	settleCtx, cancel := context.WithTimeout(ctx, a.config.Timeout)
	defer cancel()
	rep, err := a.engine.Settle(settleCtx, a.config.Tick)
	if err != nil {
		return err
	}
	logger.Debug("Grid settled.", "cycle", rep.Cycle, "duration", rep.Duration)
	return nil
}

func (a *App) printOrder() error {
	order, err := a.engine.Order()
	if err != nil {
		return err
	}
	for _, id := range order {
		if _, err := fmt.Fprintln(a.outW, id.String()); err != nil {
			return err
		}
	}
	return nil
}
