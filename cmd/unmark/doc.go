// Package main hosts the unmark CLI entrypoint and command graph.
//
// The Cobra-based command tree runs the daemon in the foreground (serve),
// submits images and videos to a running daemon over its HTTP API (remove,
// video), reports task and daemon state (status, tasks), checks the host
// (doctor) and scaffolds configuration (config init|validate).
//
// Keep this package lean: processing lives in the internal packages and the
// commands here only translate terminal invocations into API calls.
package main
