// Package config loads, normalizes, and validates simpleclipboard settings.
//
// Values come from repository defaults, then an optional TOML file, then the
// SIMPLECLIPBOARD_ADDR, SIMPLECLIPBOARD_FINAL_ADDR and SIMPLECLIPBOARD_TOKEN
// environment variables. Paths are expanded (including a leading ~) and the
// result is validated once; the daemon treats the Config as immutable after
// Load returns.
package config
