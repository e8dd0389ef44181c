// Package progress defines the task progress contract shared by the video
// pipeline, the orchestrator and the HTTP layer.
//
// Record values are keyed by task id and overwritten on every write; no
// history is kept. Reads of unknown ids return a not_found record rather than
// an error. The sqlite implementation lives in the queue package; RedisStore
// serves deployments that share progress across processes.
package progress
