// Package services holds the shared error taxonomy and context annotations
// used by external-service clients and the coordination layer.
//
// Errors are tagged with sentinel markers (validation, not found, transient,
// remote, configuration, terminal) via Wrap so callers can classify failures
// with errors.Is without parsing message text.
package services
