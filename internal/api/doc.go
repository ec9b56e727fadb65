// Package api defines the coordination services and wire-format types behind
// the daemon's HTTP surface. JobService owns the submit/cancel paths against
// the generator; EpisodeService owns the script pipeline from creation
// through analysis, prompt generation, and metadata export.
//
// DTOs use camelCase JSON tags and expose internal enums as lowercase
// strings, so CLI and other consumers never couple to internal types.
package api
