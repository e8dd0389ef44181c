// Package notifications publishes task outcomes to ntfy.
//
// When no topic is configured NewService returns a no-op, so callers never
// need to check whether notifications are enabled.
package notifications
