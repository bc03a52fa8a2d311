// Package catalogdb bulk-loads persisted capture records into SQLite.
//
// Load scans a session directory for *.JSON snapshots (case-sensitive, so
// stray lower-case .json files are never ingested), oldest modification time
// first, and upserts each record into the images table keyed on the event id.
// Loading the same directory twice therefore converges on the latest state of
// every event instead of duplicating rows.
//
// Schema changes bump schemaVersion in schema.go; operators delete the
// database to adopt the new schema.
package catalogdb
