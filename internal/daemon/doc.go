// Package daemon supervises the background workers. It owns the
// single-instance lock file, starts the content and publish workers under a
// shared cancellation context, and exposes runtime status for the CLI.
package daemon
