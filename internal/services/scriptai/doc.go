// Package scriptai calls an OpenAI-compatible chat completions API to turn
// episode scripts into structured scene breakdowns and per-scene generation
// prompts. Responses are requested in JSON mode and validated before use.
package scriptai
