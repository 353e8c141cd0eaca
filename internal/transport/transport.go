// Package transport implements the WebSocket transport for the relay: it
// owns the live connections, addresses them by opaque handle, and delivers
// inbound connect/disconnect/message events to a registered Handler. The
// rest of the system never touches a socket; it pushes text at a handle and
// learns about dead peers through ErrPeerGone.
package transport

import (
	"context"
	"errors"
	"strings"
)

// ErrPeerGone reports that the target of a push is no longer reachable:
// the handle is unknown, the connection is closing, or its outbound buffer
// has filled because the peer stopped draining it.
var ErrPeerGone = errors.New("transport: peer gone")

// Handler receives the inbound events of the transport. HandleConnect runs
// before any message from the same connection is delivered; HandleMessage
// calls for one connection may otherwise run concurrently with each other.
type Handler interface {
	HandleConnect(ctx context.Context, handle string) error
	HandleDisconnect(ctx context.Context, handle string)
	HandleMessage(ctx context.Context, handle, text string) error
}

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
