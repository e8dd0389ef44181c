// Package tasks admits watermark removal work and tracks it.
//
// Orchestrator records each task in the queue store, runs images on the
// request goroutine and hands videos to a dispatcher over a channel. Video
// jobs run on the orchestrator's context, so a client disconnect never
// cancels them; Stop does. Progress lives in a progress.Store that may be
// the sqlite task store or redis.
package tasks
