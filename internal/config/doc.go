// Package config loads, normalizes, and validates bindery configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// GOOGLE_BOOKS_API_KEY. The Config type centralizes every knob the CLI and
// pipeline need: dataset locations, the document store path, the ETL mapping
// config path, and the augmentation provider roster.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors. The ETL
// mapping itself is a separate JSON file with its own schema; see
// internal/etl/spec.
package config
