// Package watcher turns fsnotify notifications for a session directory into
// normalized capture.FileEvents.
//
// Names matching the configured ignore patterns (snapshots, logs, dotfiles)
// are dropped at the source. Write notifications for the same path are
// coalesced until the file has been quiet for the settle interval, so a camera
// streaming a large file produces one Modified event instead of hundreds.
package watcher
