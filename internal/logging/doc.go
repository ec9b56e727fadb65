// Package logging builds slog loggers with console and JSON handlers, shared
// attribute helpers, and standardized field keys so every subsystem emits
// consistent structured events.
package logging
