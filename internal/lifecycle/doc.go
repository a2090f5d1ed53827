// Package lifecycle defines the project state machine for the content
// pipeline: the closed stage and trigger enums, the canonical transition
// table, and the stage-to-progress mapping.
//
// The table lives here as plain data and every other component consults it
// through CanFire/Next/PermittedTriggers, so the business rules cannot drift
// between callers. The package holds no persistence; atomic stage updates are
// performed by the queue store with a compare-and-swap on the previous stage.
package lifecycle
