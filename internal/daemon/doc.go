// Package daemon coordinates the long-running storyreel process.
//
// It wires configuration, the studio store, the reconciliation loop, and the
// HTTP API server into a single lifecycle with flock-based locking to prevent
// multiple instances. The daemon also aggregates system status across the
// database, the generator service, and local disk space.
//
// Keep orchestration logic here: pipeline steps live in their own packages
// while the daemon focuses on startup, shutdown, and high level coordination.
package daemon
