// Package session runs one capture session over a directory.
//
// A Lifecycle takes an exclusive lock on the directory, opens the per-session
// log file, starts the filesystem watcher, and feeds its events serially
// through the capture correlator. Stop drains the loop and runs the flush
// pass, renaming every event that has a catalog number, then reports a
// summary and releases the lock.
package session
