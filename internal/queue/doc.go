// Package queue persists watermark removal tasks and their progress records
// in SQLite.
//
// The Store manages database connections, schema initialization, task rows,
// per-task progress records, stuck-task recovery after a crash, and the
// retention queries used by the sweeper. Store satisfies progress.Store, so
// single-process deployments need nothing beyond the state directory.
//
// The database is treated as transient storage for in-flight and recently
// finished work rather than a long-term archive. Schema changes bump the
// version in schema.go; users delete the database to adopt the new schema.
package queue
