// Package preflight checks the directories a capture station writes to.
//
// The session lifecycle calls CheckDirectoryAccess on the session folder
// before taking the lock, since renames and snapshots need write access. The
// CLI "check" command runs RunAll to report the configured directories.
package preflight
