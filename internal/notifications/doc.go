// Package notifications pushes capture-session milestones to ntfy.
//
// NewService returns a no-op implementation when no topic is configured, so
// session code calls the Service unconditionally. Each milestone can also be
// muted individually through the [notifications] config section.
package notifications
