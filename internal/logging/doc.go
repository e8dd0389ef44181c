// Package logging assembles structured slog loggers and formatting helpers used
// across unmark services.
//
// It owns the console and JSON handlers, centralizes level and output plumbing,
// and exposes context-aware helpers so pipeline code automatically tags log
// lines with task IDs, stages and request IDs. NewNop gives tests and
// wiring code a logger that cannot fail.
package logging
