// Package docstore persists pipeline output as JSON documents in SQLite.
//
// Each collection maps to one table holding a composite document key and the
// document body as JSON. Upserts are keyed on doc_key so re-running the ETL
// against unchanged input is a no-op; declared field indexes become expression
// indexes over json_extract. The store is the only mutation path into the
// collections, and every write is an independently atomic single-document
// statement; nothing here relies on multi-document transactions.
//
// Schema changes bump schemaVersion in schema.go.
package docstore
