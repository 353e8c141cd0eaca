// Package server implements the HTTP surface of the latchat relay.
//
// The implementation is organized into specialized files for configuration,
// origin checking, the WebSocket upgrade endpoint, and server lifecycle to
// keep the codebase maintainable and testable as the project grows.
package server
