package router_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/latchat/latchat/internal/directory"
	"github.com/latchat/latchat/internal/router"
)

func newTestRouter() (*router.Router, *directory.MemoryStore) {
	store := directory.NewMemoryStore()
	return router.New(store), store
}

func TestSessionIsAnonymousBeforeFirstMessage(t *testing.T) {
	ctx := context.Background()
	rtr, _ := newTestRouter()

	require.NoError(t, rtr.CreateSession(ctx, "c1"))

	sess, err := rtr.Session(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "c1", sess.Handle)
	assert.Empty(t, sess.Username)
	assert.Empty(t, sess.Room)
}

func TestSessionForUnknownHandleIsEmptyNotError(t *testing.T) {
	ctx := context.Background()
	rtr, _ := newTestRouter()

	sess, err := rtr.Session(ctx, "never-connected")
	require.NoError(t, err)
	assert.Empty(t, sess.Username)
}

func TestCreateSessionIsIdempotent(t *testing.T) {
	ctx := context.Background()
	rtr, store := newTestRouter()

	require.NoError(t, rtr.CreateSession(ctx, "c1"))
	require.NoError(t, rtr.CreateSession(ctx, "c1"))

	rows, err := store.Partition(ctx, "c1")
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestSetUsernameFirstLoginAndRename(t *testing.T) {
	ctx := context.Background()
	rtr, store := newTestRouter()

	require.NoError(t, rtr.CreateSession(ctx, "c1"))
	require.NoError(t, rtr.SetUsername(ctx, "c1", "", "alice"))

	sess, err := rtr.Session(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "alice", sess.Username)

	// A rename rewrites the identity row; the old one must be gone.
	require.NoError(t, rtr.SetUsername(ctx, "c1", "alice", "alicia"))
	sess, err = rtr.Session(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "alicia", sess.Username)

	rows, err := store.Partition(ctx, "c1")
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestSetUsernameDegenerateRename(t *testing.T) {
	ctx := context.Background()
	rtr, _ := newTestRouter()

	require.NoError(t, rtr.SetUsername(ctx, "c1", "", "alice"))
	require.NoError(t, rtr.SetUsername(ctx, "c1", "alice", "alice"))

	sess, err := rtr.Session(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "alice", sess.Username)
}

func TestRoomMembershipIsExclusive(t *testing.T) {
	ctx := context.Background()
	rtr, _ := newTestRouter()

	require.NoError(t, rtr.SetRoom(ctx, "c1", "alpha"))
	require.NoError(t, rtr.ClearRoom(ctx, "c1", "alpha"))
	require.NoError(t, rtr.SetRoom(ctx, "c1", "beta"))

	alpha, err := rtr.RoomMembers(ctx, "alpha")
	require.NoError(t, err)
	assert.Empty(t, alpha)

	beta, err := rtr.RoomMembers(ctx, "beta")
	require.NoError(t, err)
	assert.Equal(t, []string{"c1"}, beta)
}

func TestRoomMembers(t *testing.T) {
	ctx := context.Background()
	rtr, _ := newTestRouter()

	require.NoError(t, rtr.SetRoom(ctx, "c1", "lobby"))
	require.NoError(t, rtr.SetRoom(ctx, "c2", "lobby"))
	require.NoError(t, rtr.SetRoom(ctx, "c3", "den"))

	members, err := rtr.RoomMembers(ctx, "lobby")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"c1", "c2"}, members)
}

func TestRoomsListsDistinctNames(t *testing.T) {
	ctx := context.Background()
	rtr, _ := newTestRouter()

	require.NoError(t, rtr.CreateSession(ctx, "c1"))
	require.NoError(t, rtr.SetRoom(ctx, "c1", "lobby"))
	require.NoError(t, rtr.SetRoom(ctx, "c2", "lobby"))
	require.NoError(t, rtr.SetRoom(ctx, "c3", "den"))

	rooms, err := rtr.Rooms(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"den", "lobby"}, rooms)
}

func TestDestroySessionRemovesAllRows(t *testing.T) {
	ctx := context.Background()
	rtr, store := newTestRouter()

	require.NoError(t, rtr.CreateSession(ctx, "c1"))
	require.NoError(t, rtr.SetUsername(ctx, "c1", "", "alice"))
	require.NoError(t, rtr.SetRoom(ctx, "c1", "lobby"))

	rtr.DestroySession(ctx, "c1")

	members, err := rtr.RoomMembers(ctx, "lobby")
	require.NoError(t, err)
	assert.NotContains(t, members, "c1")

	sess, err := rtr.Session(ctx, "c1")
	require.NoError(t, err)
	assert.Empty(t, sess.Username)

	rows, err := store.Partition(ctx, "c1")
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestDestroySessionIsIdempotent(t *testing.T) {
	ctx := context.Background()
	rtr, _ := newTestRouter()

	// Destroying a handle with no rows must not panic or error.
	rtr.DestroySession(ctx, "ghost")
	rtr.DestroySession(ctx, "ghost")
}

// failingStore wraps a working store and fails selected operations, to
// verify teardown swallows transient errors.
type failingStore struct {
	directory.Store
	failDelete    bool
	failPartition bool
}

var errStoreDown = errors.New("store unavailable")

func (f *failingStore) Delete(ctx context.Context, pk, sk string) error {
	if f.failDelete {
		return errStoreDown
	}
	return f.Store.Delete(ctx, pk, sk)
}

func (f *failingStore) Partition(ctx context.Context, pk string) ([]directory.Row, error) {
	if f.failPartition {
		return nil, errStoreDown
	}
	return f.Store.Partition(ctx, pk)
}

func TestDestroySessionSwallowsStoreErrors(t *testing.T) {
	ctx := context.Background()
	store := &failingStore{Store: directory.NewMemoryStore(), failDelete: true}
	rtr := router.New(store)

	require.NoError(t, rtr.CreateSession(ctx, "c1"))

	// Failing deletes must not panic and must not surface an error.
	rtr.DestroySession(ctx, "c1")

	store.failDelete = false
	store.failPartition = true
	rtr.DestroySession(ctx, "c1")
}

func TestMutatingOperationsPropagateStoreErrors(t *testing.T) {
	ctx := context.Background()
	store := &failingStore{Store: directory.NewMemoryStore(), failDelete: true}
	rtr := router.New(store)

	err := rtr.SetUsername(ctx, "c1", "alice", "bob")
	assert.ErrorIs(t, err, errStoreDown)

	err = rtr.ClearRoom(ctx, "c1", "lobby")
	assert.ErrorIs(t, err, errStoreDown)
}
