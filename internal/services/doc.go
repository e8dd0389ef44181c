// Package services defines shared utilities consumed by the pipelines, the
// task orchestrator and external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp task IDs, stage names, and correlation
//     identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper so failures classify
//     consistently (frame errors recover, everything else fails the task).
//
// Use these helpers when wiring new pipeline logic so operational behaviour
// stays uniform.
package services
