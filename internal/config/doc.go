// Package config loads, normalizes, and validates quill's TOML configuration.
//
// Load layers a config file over Default(), expands ~ in every path field,
// and rejects unusable combinations up front so the pipeline never has to
// re-validate settings mid-run.
package config
