// Package config loads, normalizes, and validates unmark configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// UNMARK_MODEL_URL and UNMARK_API_TOKEN. The Config type centralizes every
// knob the daemon and CLI need so upload, output and scratch directories,
// the inference backend and the progress store are discovered in one pass.
package config
