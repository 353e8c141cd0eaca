package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/latchat/latchat/internal/router"
)

// helpText is the static usage message for /help.
const helpText = `Commands available:
    /help
          Display this message.
    /join {chat_room_name}
          Join a chatroom named {chat_room_name}.
    /nick {nickname}
          Change your name to {nickname}. If no {nickname}
          is provided then your current name will be printed
    /room
          Print out the name of the room you are currently
          in.
    /ls
          If you are in a room, list all users also in the
          room. Otherwise, list all rooms.
    /quit
          Leave current room.

If you are in a room, raw text messages that do not start
with a / will be sent to everyone else in the room.`

// command is one entry in the dispatch table. args is the whitespace-split
// remainder after the command name; sess is the session loaded at dispatch
// time.
type command func(ctx context.Context, sess router.Session, args []string) error

// Handler interprets inbound text for each connection. It is stateless:
// session state (anonymous, named, in a room) is derived from the directory
// on every event rather than cached, so concurrent workers can never
// disagree with the store.
type Handler struct {
	router   *router.Router
	sender   *Sender
	commands map[string]command
}

// NewHandler creates a Handler wired to the given router and sender. The
// command table is built once here and never mutated afterwards.
func NewHandler(r *router.Router, s *Sender) *Handler {
	h := &Handler{router: r, sender: s}
	h.commands = map[string]command{
		"help": h.help,
		"nick": h.nick,
		"join": h.join,
		"room": h.room,
		"quit": h.quit,
		"ls":   h.list,
	}
	return h
}

// HandleConnect inserts the session stub for a freshly accepted connection.
func (h *Handler) HandleConnect(ctx context.Context, handle string) error {
	return h.router.CreateSession(ctx, handle)
}

// HandleDisconnect tears down every directory row for the connection.
// Teardown is best-effort; the router logs and swallows store errors here.
func (h *Handler) HandleDisconnect(ctx context.Context, handle string) {
	h.router.DestroySession(ctx, handle)
}

// HandleMessage dispatches one inbound message. The first message from an
// anonymous connection is taken as its username; after that, text starting
// with "/" is a command and anything else is chat for the current room.
func (h *Handler) HandleMessage(ctx context.Context, handle, text string) error {
	sess, err := h.router.Session(ctx, handle)
	if err != nil {
		return err
	}

	switch {
	case sess.Username == "":
		return h.login(ctx, sess, text)
	case strings.HasPrefix(text, "/"):
		return h.dispatchCommand(ctx, sess, strings.TrimPrefix(text, "/"))
	default:
		return h.chatText(ctx, sess, text)
	}
}

// login takes the whole message as the desired username, literally and
// without validation, completing the anonymous-to-named transition.
func (h *Handler) login(ctx context.Context, sess router.Session, text string) error {
	if err := h.router.SetUsername(ctx, sess.Handle, "", text); err != nil {
		return err
	}
	return h.sender.Send(ctx, sess.Handle,
		fmt.Sprintf("Using nickname: %s\nType /help for list of commands.", text))
}

// dispatchCommand splits the slash-stripped text on single spaces and looks
// the lower-cased command name up in the table. An unknown name is a normal
// reply to the caller, not a fault.
func (h *Handler) dispatchCommand(ctx context.Context, sess router.Session, text string) error {
	parts := strings.Split(text, " ")
	name := strings.ToLower(parts[0])
	args := parts[1:]

	cmd, ok := h.commands[name]
	if !ok {
		return h.sender.Send(ctx, sess.Handle, fmt.Sprintf("Unknown command: %s", name))
	}
	return cmd(ctx, sess, args)
}

// chatText relays plain text to every member of the sender's room,
// including the sender, prefixed with the sender's name.
func (h *Handler) chatText(ctx context.Context, sess router.Session, text string) error {
	if sess.Room == "" {
		return h.sender.Send(ctx, sess.Handle, "Cannot send message if not in chatroom.")
	}

	members, err := h.router.RoomMembers(ctx, sess.Room)
	if err != nil {
		return err
	}
	return h.sender.Broadcast(ctx, members, sess.Username+": "+text)
}

func (h *Handler) help(ctx context.Context, sess router.Session, _ []string) error {
	return h.sender.Send(ctx, sess.Handle, helpText)
}

// nick echoes the current username when called bare, or renames the session
// and announces the change to the rest of the room. A blank first argument
// (from "/nick " or doubled spaces) is treated like no argument at all: a
// live session's name must never be rewritten back to empty.
func (h *Handler) nick(ctx context.Context, sess router.Session, args []string) error {
	if len(args) == 0 || args[0] == "" {
		return h.sender.Send(ctx, sess.Handle, fmt.Sprintf("Current nickname: %s", sess.Username))
	}

	name := args[0]
	if err := h.router.SetUsername(ctx, sess.Handle, sess.Username, name); err != nil {
		return err
	}
	if err := h.sender.Send(ctx, sess.Handle, fmt.Sprintf("Nickname is: %s", name)); err != nil {
		return err
	}

	if sess.Room == "" {
		return nil
	}

	// The requester already got a confirmation; announce to everyone else.
	members, err := h.router.RoomMembers(ctx, sess.Room)
	if err != nil {
		return err
	}
	others := make([]string, 0, len(members))
	for _, member := range members {
		if member != sess.Handle {
			others = append(others, member)
		}
	}
	return h.sender.Broadcast(ctx, others,
		fmt.Sprintf("%s is now known as %s.", sess.Username, name))
}

// join moves the session into a room, leaving the current one first. The
// arrival announcement goes to the members present before the join, which
// by construction excludes the joiner.
func (h *Handler) join(ctx context.Context, sess router.Session, args []string) error {
	if len(args) == 0 || args[0] == "" {
		return h.sender.Send(ctx, sess.Handle, "Missing room name. Type /join {room_name} to join a room.")
	}
	roomName := args[0]

	if err := h.quit(ctx, sess, nil); err != nil {
		return err
	}

	present, err := h.router.RoomMembers(ctx, roomName)
	if err != nil {
		return err
	}
	if err := h.router.SetRoom(ctx, sess.Handle, roomName); err != nil {
		return err
	}

	if err := h.sender.Send(ctx, sess.Handle, fmt.Sprintf("Joined chat room %q", roomName)); err != nil {
		return err
	}
	return h.sender.Broadcast(ctx, present, fmt.Sprintf("%s joined room.", sess.Username))
}

// room reports the current room name, or how to join one.
func (h *Handler) room(ctx context.Context, sess router.Session, _ []string) error {
	if sess.Room == "" {
		return h.sender.Send(ctx, sess.Handle, "Not currently in a room. Type /join {room_name} to do so.")
	}
	return h.sender.Send(ctx, sess.Handle, sess.Room)
}

// quit leaves the current room, silently doing nothing when there is none.
// The departure announcement goes to the members remaining after removal,
// so the leaver is naturally excluded.
func (h *Handler) quit(ctx context.Context, sess router.Session, _ []string) error {
	if sess.Room == "" {
		return nil
	}

	if err := h.router.ClearRoom(ctx, sess.Handle, sess.Room); err != nil {
		return err
	}
	if err := h.sender.Send(ctx, sess.Handle, fmt.Sprintf("Left chat room %q", sess.Room)); err != nil {
		return err
	}

	remaining, err := h.router.RoomMembers(ctx, sess.Room)
	if err != nil {
		return err
	}
	return h.sender.Broadcast(ctx, remaining, fmt.Sprintf("%s left room.", sess.Username))
}

// list sends the usernames in the current room, or the names of all open
// rooms when the session is roomless.
func (h *Handler) list(ctx context.Context, sess router.Session, _ []string) error {
	var result []string

	if sess.Room != "" {
		members, err := h.router.RoomMembers(ctx, sess.Room)
		if err != nil {
			return err
		}
		for _, member := range members {
			memberSess, err := h.router.Session(ctx, member)
			if err != nil {
				return err
			}
			result = append(result, memberSess.Username)
		}
	} else {
		rooms, err := h.router.Rooms(ctx)
		if err != nil {
			return err
		}
		result = rooms
	}

	return h.sender.Send(ctx, sess.Handle, strings.Join(result, "\n"))
}
