package transport

import (
	"context"
	"log"
	"sync"
	"time"
)

// inboundText is one raw message lifted off a connection's read pump,
// tagged with the handle it arrived on.
type inboundText struct {
	handle string
	text   string
}

// Hub tracks all live WebSocket connections by handle and turns socket
// activity into Handler events. Registration, unregistration, and inbound
// dispatch run through a single event loop; each inbound message is then
// handled in its own short-lived goroutine so one slow event cannot stall
// the transport.
type Hub struct {
	handler Handler

	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	inbound    chan inboundText

	mutex  sync.RWMutex
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewHub creates a Hub. A Handler must be attached with SetHandler before
// Run is called; the two-step construction exists because the chat core's
// sender needs the hub as its push transport.
func NewHub() *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		inbound:    make(chan inboundText, 64),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
}

// SetHandler attaches the event handler. It must be called exactly once,
// before Run.
func (h *Hub) SetHandler(handler Handler) {
	h.handler = handler
}

// Register hands a newly upgraded connection to the hub. The hub announces
// it to the handler and starts its pump goroutines.
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Push sends text to the connection identified by handle. It returns
// ErrPeerGone when the handle is not registered, the connection is closing,
// or its send buffer is full; any such peer is due for directory cleanup by
// the caller.
func (h *Hub) Push(handle, text string) error {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	client, ok := h.clients[handle]
	if !ok || client.closed {
		return ErrPeerGone
	}

	select {
	case client.send <- []byte(text):
		return nil
	default:
		// The peer stopped draining its buffer. The caller will clean up
		// the directory, so the connection must go too, or transport and
		// directory state disagree and the peer's next message would look
		// like a fresh login.
		h.evict(client)
		return ErrPeerGone
	}
}

// evict routes a client through the unregister path from outside the Run
// loop. Push holds the registry read lock, so the handoff runs in its own
// goroutine rather than blocking until the loop picks it up.
func (h *Hub) evict(client *Client) {
	go func() {
		select {
		case h.unregister <- client:
		case <-h.ctx.Done():
		}
	}()
}

// Run starts the hub's event loop. It should be called in its own goroutine
// as it blocks until Shutdown cancels it.
func (h *Hub) Run() {
	if h.handler == nil {
		panic("transport: Hub.Run called without a handler")
	}
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.closeClients()
			return

		case client := <-h.register:
			if client == nil {
				log.Printf("Received nil client registration; skipping")
				continue
			}
			h.acceptClient(client)

		case client := <-h.unregister:
			h.dropClient(client)

		case msg := <-h.inbound:
			h.dispatchMessage(msg)
		}
	}
}

// acceptClient announces the connection to the handler, records it, and
// starts the pump goroutines. The whole sequence runs off the event loop so
// a slow directory write cannot stall other connections; ordering only
// matters per client, and the connect event still completes before the read
// pump starts, so no message from this connection can beat its session stub
// into the directory.
func (h *Hub) acceptClient(client *Client) {
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()

		if err := h.handler.HandleConnect(h.ctx, client.handle); err != nil {
			log.Printf("Rejecting connection %s from %s: %v", client.handle, client.addr, err)
			if client.conn != nil {
				_ = client.conn.Close()
			}
			return
		}

		h.mutex.Lock()
		client.closed = false
		h.clients[client.handle] = client
		clientCount := len(h.clients)
		h.mutex.Unlock()
		log.Printf("Connection %s registered from %s. Total connections: %d", client.handle, client.addr, clientCount)

		h.wg.Add(2)
		go func() {
			defer h.wg.Done()
			client.writePump()
		}()
		go func() {
			defer h.wg.Done()
			client.readPump()
		}()
	}()
}

// dropClient removes a connection from the registry and reports the
// disconnect to the handler so its directory rows are torn down.
func (h *Hub) dropClient(client *Client) {
	h.mutex.Lock()
	if _, ok := h.clients[client.handle]; !ok {
		h.mutex.Unlock()
		return
	}
	delete(h.clients, client.handle)
	client.closed = true
	clientCount := len(h.clients)
	h.mutex.Unlock()

	// Close the channel after releasing the lock.
	close(client.send)
	log.Printf("Connection %s unregistered from %s. Total connections: %d", client.handle, client.addr, clientCount)

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		h.handler.HandleDisconnect(h.ctx, client.handle)
	}()
}

// dispatchMessage hands one inbound message to the handler in its own
// goroutine. Events for the same handle may therefore be in flight
// concurrently; the directory layer is written to tolerate that.
func (h *Hub) dispatchMessage(msg inboundText) {
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		if err := h.handler.HandleMessage(h.ctx, msg.handle, msg.text); err != nil {
			log.Printf("Error handling message from %s: %v", msg.handle, err)
		}
	}()
}

// closeClients closes every live connection during shutdown.
func (h *Hub) closeClients() {
	log.Println("Shutting down all client connections...")

	h.mutex.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for _, client := range h.clients {
		clients = append(clients, client)
	}
	h.mutex.Unlock()

	for _, client := range clients {
		if client.conn != nil {
			if err := client.conn.Close(); err != nil && !isExpectedCloseError(err) {
				log.Printf("Error closing client connection from %s: %v", client.addr, err)
			}
		}
	}

	log.Printf("Closed %d client connections", len(clients))
}

// Shutdown initiates graceful shutdown of the hub and waits for all
// goroutines to complete, or until the timeout is reached.
func (h *Hub) Shutdown(timeout time.Duration) error {
	log.Println("Initiating hub shutdown...")

	h.cancel()
	<-h.done

	finished := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		log.Println("Hub shutdown completed successfully")
		return nil
	case <-time.After(timeout):
		log.Println("Hub shutdown timeout reached, some goroutines may still be running")
		return context.DeadlineExceeded
	}
}
