// Package config loads, normalizes, and validates dubflow's TOML
// configuration.
//
// The weight table for composite validation scoring lives here as
// configuration data; Validate rejects tables whose weights do not sum to 1.0
// so scoring code never has to repair a skewed table at runtime.
package config
