// Package config layers the settings of a run. Explicit overrides win over
// COMPUTEGRID_* environment variables, which win over an optional config
// file, which wins over defaults.
package config
