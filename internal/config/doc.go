// Package config loads, normalizes, and validates allthatstax configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, loads an optional .env file next to the config
// and honours environment fallbacks such as ALLTHATSTAX_API_TOKEN. The Config
// type centralizes every knob the fetch pipeline, the CLI and the status API
// need, so dataset locations and source pacing are discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
