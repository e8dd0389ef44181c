// Package daemon coordinates the long-running unmark process.
//
// It wires configuration, the task store, the task orchestrator, the
// retention sweeper and the HTTP API into a single lifecycle with
// flock-based locking to prevent multiple instances sharing one state
// directory.
//
// Keep orchestration logic here: image and video processing live in
// internal/pipeline and task admission in internal/tasks, while the daemon
// focuses on startup, shutdown, request handling and high level coordination.
package daemon
