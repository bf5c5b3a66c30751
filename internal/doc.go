// Package internal holds the engine's private building blocks.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher + Sink implementations)
//   - config: process configuration for cmd/portalauth (.env, YAML, environment)
//   - flows: pure-function orchestrators for login, refresh, registration and status changes
//   - rate: fixed-window (Redis) and token-bucket (in-process) admission limiters
//
// Nothing here appears in the public portalauth API.
package internal
