package testutil

import "github.com/specialistvlad/computegrid/internal/registry"

// SimpleModule is a test helper for easily creating a mock module that
// registers a single step or command handler.
type SimpleModule struct {
	StepName string
	Step     *registry.StepHandler

	CommandName string
	Command     *registry.CommandHandler
}

// Register implements the registry.Module interface.
func (m *SimpleModule) Register(r *registry.Registry) {
	if m.StepName != "" && m.Step != nil {
		r.RegisterStep(m.StepName, m.Step)
	}
	if m.CommandName != "" && m.Command != nil {
		r.RegisterCommand(m.CommandName, m.Command)
	}
}
