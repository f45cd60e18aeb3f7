package app

import (
	"errors"
	"fmt"
	"time"
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	GridPath string // hcl file or directory

	LogFormat       string
	LogLevel        string
	HealthcheckPort int
	WorkerCount     int

	// Cycles runs exactly this many cycles. Zero settles instead: cycle
	// every Tick until nothing is left to do, for at most Timeout.
	Cycles  int
	Tick    time.Duration
	Timeout time.Duration

	// Sets are name=expression assignments applied before the first cycle.
	Sets []string
	// Dispatch names commands to run once the grid has settled.
	Dispatch []string
	// Check only validates the grid and prints the evaluation order.
	Check bool
}

// NewConfig validates cfg and fills in defaults.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.GridPath == "" {
		return nil, errors.New("GridPath is a required configuration field and cannot be empty")
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 4
	}
	if cfg.Cycles < 0 {
		return nil, fmt.Errorf("cycles cannot be negative, got %d", cfg.Cycles)
	}
	if cfg.Tick <= 0 {
		cfg.Tick = 10 * time.Millisecond
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.HealthcheckPort < 0 || cfg.HealthcheckPort > 65535 {
		return nil, fmt.Errorf("invalid healthcheck port %d", cfg.HealthcheckPort)
	}
	return &cfg, nil
}
