// Package reconciler keeps the local job ledger consistent with the
// generator service. A background loop periodically snapshots active jobs,
// polls the generator for each one with bounded concurrency, and applies the
// resulting transitions through the store's guarded updates so terminal
// states are never overwritten.
package reconciler
