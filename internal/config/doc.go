// Package config loads, normalizes, and validates capsync configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// CAPSYNC_UPLOAD_TOKEN. The Config type centralizes every knob the daemon and
// CLI need, from session working directories to the ingest endpoint the
// upload dispatchers talk to.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
