// Package api defines the JSON wire types of the daemon's HTTP API, the
// converters from queue and progress models, and the Client used by the
// CLI.
//
// Field names are snake_case to match the response bodies documented for
// the watermark endpoints. Timestamps use RFC3339 with milliseconds.
package api
