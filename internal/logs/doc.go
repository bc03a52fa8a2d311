// Package logs reads session log files back for the CLI.
//
// SessionLog finds the log a capture session wrote into its directory, Tail
// returns its last lines, and Follow streams lines appended afterwards using
// fsnotify write notifications. Memory use is bounded by the requested line
// count, not the file size.
package logs
