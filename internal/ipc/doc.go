// Package ipc provides the HTTP client the CLI uses against a running
// daemon's API. It mirrors the daemon's endpoints one method per operation
// and decodes the shared api package views.
package ipc
