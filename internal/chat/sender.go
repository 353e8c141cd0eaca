// Package chat implements the relay's conversational core: the command
// interpreter that turns inbound text into session mutations and the
// broadcast sender that fans replies out to room members, healing the
// directory when a recipient turns out to be gone.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log"

	"golang.org/x/sync/errgroup"

	"github.com/latchat/latchat/internal/router"
	"github.com/latchat/latchat/internal/transport"
)

// fanoutLimit bounds how many sends a single broadcast runs concurrently.
const fanoutLimit = 8

// Transport is the outbound primitive the sender needs: push text at an
// opaque connection handle. Push reports transport.ErrPeerGone when the
// target is no longer reachable.
type Transport interface {
	Push(handle, text string) error
}

// Sender delivers messages to connection handles. When a push finds its
// target dead, the sender destroys that session before returning so stale
// entries never accumulate in the directory from failed sends.
type Sender struct {
	transport Transport
	router    *router.Router
}

// NewSender creates a Sender that pushes via the given transport and heals
// the given router's directory.
func NewSender(t Transport, r *router.Router) *Sender {
	return &Sender{transport: t, router: r}
}

// Send pushes one message to one handle. A gone peer is removed from the
// directory and not reported as an error; any other push failure is
// returned after being treated as best-effort (no delivery guarantee is
// offered).
func (s *Sender) Send(ctx context.Context, handle, message string) error {
	err := s.transport.Push(handle, message)
	if err == nil {
		return nil
	}

	if errors.Is(err, transport.ErrPeerGone) {
		log.Printf("Peer %s gone during send; removing from directory", handle)
		s.router.DestroySession(ctx, handle)
		return nil
	}

	return fmt.Errorf("chat: send to %s: %w", handle, err)
}

// Broadcast sends a message to every handle independently: a failure or a
// self-heal for one recipient never prevents delivery attempts to the
// others, and no ordering among recipients is guaranteed. Broadcast waits
// for every send to finish before returning and reports the first
// unexpected failure, if any.
func (s *Sender) Broadcast(ctx context.Context, handles []string, message string) error {
	g := new(errgroup.Group)
	g.SetLimit(fanoutLimit)

	for _, handle := range handles {
		handle := handle
		g.Go(func() error {
			return s.Send(ctx, handle, message)
		})
	}
	return g.Wait()
}
