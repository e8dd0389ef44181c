// Package ffprobe provides a typed wrapper around ffprobe JSON output.
//
// A Prober runs the binary through a replaceable Runner so callers can test
// against canned payloads. Result and Stream expose the values the video
// pipeline probes for: container duration, container and decoder frame
// rates, and recorded or counted frame totals.
package ffprobe
