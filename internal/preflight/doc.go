// Package preflight provides readiness checks for the directories and
// external services the pipeline depends on. The daemon runs them before
// starting workers; the status command uses the individual checks to display
// health.
package preflight
