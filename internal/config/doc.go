// Package config loads, normalizes, and validates digistation configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// DIGISTATION_NTFY_TOPIC. The Config type centralizes the knobs the capture
// session, the barcode and blur adapters, and the bulk loader need.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, lower-cased extension sets, and clear validation errors.
package config
