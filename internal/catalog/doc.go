// Package catalog turns raw barcode values read from a specimen sheet into a
// single canonical catalog number.
//
// A Resolver holds an ordered list of fully anchored patterns and an optional
// required prefix. Resolve pools every candidate that matches any pattern,
// applies the prefix, orders the pool with a natural sort (digit runs compare
// by value), and reports the first entry as canonical. Candidates that fail a
// pattern are kept as "other" catalog numbers so nothing read from the sheet
// is lost. Resolution is pure and deterministic.
package catalog
