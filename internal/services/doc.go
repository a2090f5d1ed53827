// Package services defines shared utilities consumed by the publish worker and
// external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp project IDs, post IDs, platforms, and
//     correlation identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper that keep failure
//     classification (retryable vs terminal) consistent across components.
//
// Use these helpers when wiring new integrations so operational behaviour
// (error handling, observability, retries) stays uniform across the pipeline.
package services
