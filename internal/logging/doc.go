// Package logging builds the slog loggers used across the daemon and CLI.
//
// It provides typed attribute helpers, standardized field name constants, and
// context-derived fields (project, post, platform, correlation ID) so log
// records stay uniform whether they come from the lifecycle machine, the
// publish worker, or a service client.
package logging
