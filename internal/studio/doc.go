// Package studio persists episodes, characters, scenes, and generation jobs
// in SQLite and exposes the lifecycle operations the rest of the system builds
// on.
//
// The Store manages the database connection, schema initialization, and the
// two concurrency-sensitive operations: compare-and-set job status transitions
// (terminal states are immutable) and monotone scene version advancement.
// Both are expressed as single guarded UPDATE statements so racing writers
// resolve deterministically without long-lived locks.
//
// Treat this package as the single source of truth for job semantics; when you
// add new statuses or fields, update schema.sql and bump schemaVersion.
package studio
