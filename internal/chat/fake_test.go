package chat_test

import (
	"sync"

	"github.com/latchat/latchat/internal/transport"
)

// fakeTransport records pushed messages per handle and can simulate gone
// peers and failing pushes.
type fakeTransport struct {
	mu       sync.Mutex
	pushes   map[string][]string
	gone     map[string]bool
	failWith map[string]error
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		pushes:   make(map[string][]string),
		gone:     make(map[string]bool),
		failWith: make(map[string]error),
	}
}

func (f *fakeTransport) Push(handle, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.gone[handle] {
		return transport.ErrPeerGone
	}
	if err := f.failWith[handle]; err != nil {
		return err
	}
	f.pushes[handle] = append(f.pushes[handle], text)
	return nil
}

// markGone makes all subsequent pushes to handle fail as peer-gone.
func (f *fakeTransport) markGone(handle string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gone[handle] = true
}

// received returns a copy of everything pushed to handle so far.
func (f *fakeTransport) received(handle string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.pushes[handle]...)
}

// last returns the most recent message pushed to handle, or "".
func (f *fakeTransport) last(handle string) string {
	f.mu.Lock()
	defer f.mu.Unlock()

	messages := f.pushes[handle]
	if len(messages) == 0 {
		return ""
	}
	return messages[len(messages)-1]
}
