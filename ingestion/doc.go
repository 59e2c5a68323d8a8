// Package ingestion loads catalog data from files and imports it into storage.
//
// Loading turns CSV, JSON or YAML sources into loosely typed core.Record rows:
//   - CSV: the first row is the header; short rows leave trailing fields absent
//   - JSON: an array of objects; null values are absent
//   - YAML: a sequence of mappings
//
// The Importer converts rows into books or users, validates them, skips
// duplicates and writes the rest in batches on a worker pool. Write batches
// that fail with a transient error are retried with exponential backoff.
// Rows that cannot be imported are reported in the Summary rather than
// failing the whole import.
package ingestion
