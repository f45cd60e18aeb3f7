// Package cli is responsible for parsing command-line arguments, validating
// user input, and handling process-level concerns like exit codes. It layers
// flags over environment variables and an optional config file and
// translates the result into the application's configuration.
package cli
