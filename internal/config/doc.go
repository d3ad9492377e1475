// Package config loads, normalizes, and validates review coordinator
// configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// MO_API_KEY. The Config type centralizes every knob the daemon and CLI need,
// from the record database location and claim lease length to the
// reconciliation thresholds and Mushroom Observer credentials.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
