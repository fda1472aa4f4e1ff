// Package spec models the JSON ETL mapping configuration.
//
// The mapping file declares raw sources, the joins combining them, and the
// target collections with their per-field document structure. Its shape is a
// boundary contract shared with the dataset tooling that produces it, so the
// JSON field names here must not change.
//
// Load parses and validates in one pass; validation failures are fatal and
// happen before any document is written.
package spec
