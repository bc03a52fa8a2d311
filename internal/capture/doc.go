// Package capture correlates the raw and derived image files of a specimen
// capture into a single Event, classifies its completeness, renames the files
// to the resolved catalog number, and persists a JSON snapshot per event.
//
// A Session owns its events. The Correlator is the only mutator while a
// session runs: it consumes normalized FileEvents one at a time, calls the
// metadata Adapters synchronously, and notifies an optional Observer with a
// copy of the event after each committed change. The Committer applies the
// collision-safe rename protocol and records a tri-state RenameState per
// image kind so repeated commits never retry a completed rename.
package capture
