// Package station manages the per-station identity file.
//
// The identity is a small TOML document holding a short operator-chosen
// station id and a generated uuid. It must never be copied between imaging
// stations; sessions tolerate its absence and leave the fields empty.
package station
