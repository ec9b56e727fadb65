// Package generator wraps the external video generation service's HTTP API.
//
// The service executes jobs asynchronously: submit returns an opaque job id,
// and callers poll job status until the generator reports a terminal state.
// All operations can fail transiently; callers classify failures through the
// services error markers rather than inspecting responses here.
package generator
