// Package router owns the session directory access patterns: it maps each
// live connection handle to its identity and room membership and resolves
// room recipients through the store's reverse index. All cross-event state
// lives in the directory store, so Router values carry no per-connection
// memory of their own and are safe for concurrent use across handles.
package router

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/latchat/latchat/internal/directory"
)

const (
	usernamePrefix = "username:"
	roomPrefix     = "room:"
)

// Session is the live state of one connection, reconstructed from the
// directory rows stored under its handle. An empty Username means the
// connection has not chosen a name yet; an empty Room means it is not in
// any room.
type Session struct {
	Handle   string
	Username string
	Room     string
}

// Router reads and mutates session state in a directory store.
type Router struct {
	store directory.Store
}

// New creates a Router backed by the given directory store.
func New(store directory.Store) *Router {
	return &Router{store: store}
}

// CreateSession inserts the identity stub for a newly accepted connection:
// a username row with an empty value and no room row. A duplicate connect
// notification re-inserts the same row, which the store treats as a no-op
// overwrite rather than an error.
func (r *Router) CreateSession(ctx context.Context, handle string) error {
	if err := r.store.Put(ctx, handle, usernamePrefix); err != nil {
		return fmt.Errorf("router: create session %s: %w", handle, err)
	}
	return nil
}

// Session reconstructs the current session state for a handle. A handle with
// no identity row yields an empty username, which is the normal pre-login
// state rather than an error.
func (r *Router) Session(ctx context.Context, handle string) (Session, error) {
	rows, err := r.store.Partition(ctx, handle)
	if err != nil {
		return Session{}, fmt.Errorf("router: load session %s: %w", handle, err)
	}

	session := Session{Handle: handle}
	for _, row := range rows {
		switch {
		case strings.HasPrefix(row.SortKey, usernamePrefix):
			session.Username = strings.TrimPrefix(row.SortKey, usernamePrefix)
		case strings.HasPrefix(row.SortKey, roomPrefix):
			session.Room = strings.TrimPrefix(row.SortKey, roomPrefix)
		}
	}
	return session, nil
}

// SetUsername rewrites the identity row for a handle. The username is part
// of the row key, so a rename is a delete-old/insert-new pair rather than an
// in-place update. An empty oldName covers first login; oldName == newName
// still performs the rewrite safely.
func (r *Router) SetUsername(ctx context.Context, handle, oldName, newName string) error {
	if err := r.store.Delete(ctx, handle, usernamePrefix+oldName); err != nil {
		return fmt.Errorf("router: drop old username for %s: %w", handle, err)
	}
	if err := r.store.Put(ctx, handle, usernamePrefix+newName); err != nil {
		return fmt.Errorf("router: set username for %s: %w", handle, err)
	}
	return nil
}

// SetRoom records a room membership for a handle.
func (r *Router) SetRoom(ctx context.Context, handle, room string) error {
	if err := r.store.Put(ctx, handle, roomPrefix+room); err != nil {
		return fmt.Errorf("router: join room %q for %s: %w", room, handle, err)
	}
	return nil
}

// ClearRoom removes a specific room membership. Deletion is by exact key, so
// the caller must supply the current room name as reported by Session.
func (r *Router) ClearRoom(ctx context.Context, handle, room string) error {
	if err := r.store.Delete(ctx, handle, roomPrefix+room); err != nil {
		return fmt.Errorf("router: leave room %q for %s: %w", room, handle, err)
	}
	return nil
}

// RoomMembers returns the handles of every connection currently in a room,
// resolved through the reverse index in O(room size).
func (r *Router) RoomMembers(ctx context.Context, room string) ([]string, error) {
	rows, err := r.store.BySortKey(ctx, roomPrefix+room)
	if err != nil {
		return nil, fmt.Errorf("router: list members of %q: %w", room, err)
	}

	handles := make([]string, 0, len(rows))
	for _, row := range rows {
		handles = append(handles, row.PartitionKey)
	}
	return handles, nil
}

// Rooms returns the distinct names of all rooms with at least one member.
// This walks the full directory and is accepted as a coarse, infrequent
// operation.
func (r *Router) Rooms(ctx context.Context) ([]string, error) {
	rows, err := r.store.Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("router: list rooms: %w", err)
	}

	seen := make(map[string]struct{})
	for _, row := range rows {
		if strings.HasPrefix(row.SortKey, roomPrefix) {
			seen[strings.TrimPrefix(row.SortKey, roomPrefix)] = struct{}{}
		}
	}

	rooms := make([]string, 0, len(seen))
	for room := range seen {
		rooms = append(rooms, room)
	}
	sort.Strings(rooms)
	return rooms, nil
}

// DestroySession deletes every row stored under a handle: the identity row
// and, if present, the room row. Teardown is best-effort: store errors are
// logged and swallowed so a failed cleanup can never crash the disconnect
// path, and rows already absent are not an error.
func (r *Router) DestroySession(ctx context.Context, handle string) {
	rows, err := r.store.Partition(ctx, handle)
	if err != nil {
		log.Printf("Failed to load session %s for teardown: %v", handle, err)
		return
	}

	for _, row := range rows {
		if err := r.store.Delete(ctx, handle, row.SortKey); err != nil {
			log.Printf("Failed to delete row %s/%s during teardown: %v", handle, row.SortKey, err)
		}
	}
}
