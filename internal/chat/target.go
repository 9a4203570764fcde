package chat

import (
	"slices"
	"strings"

	"livechat-client/internal/types"
)

type State int

const (
	StateIdle State = iota
	StateGlobal
	StatePrivate
)

func (s State) String() string {
	switch s {
	case StateGlobal:
		return "global"
	case StatePrivate:
		return "private"
	default:
		return "idle"
	}
}

// Target is the active conversation: empty (idle), the broadcast
// sentinel, or a peer username.
type Target string

const (
	NoTarget Target = ""
	Global   Target = types.BroadcastTarget

	GlobalRoom    = "global"
	roomDelimiter = "__"
)

func ParseTarget(s string) Target {
	return Target(strings.TrimSpace(s))
}

func (t Target) State() State {
	switch t {
	case NoTarget:
		return StateIdle
	case Global:
		return StateGlobal
	default:
		return StatePrivate
	}
}

// Peer is the other participant of a private conversation.
func (t Target) Peer() string {
	if t.State() != StatePrivate {
		return ""
	}
	return string(t)
}

// RoomID names the history room of t for self. Private rooms sort the two
// usernames so both sides compute the same id.
func RoomID(self string, t Target) string {
	switch t.State() {
	case StateGlobal:
		return GlobalRoom
	case StatePrivate:
		pair := []string{self, string(t)}
		slices.Sort(pair)
		return strings.Join(pair, roomDelimiter)
	default:
		return ""
	}
}

// Accept reports whether an inbound message belongs to the conversation
// with target t as seen by self.
func Accept(t Target, self string, ev types.MessageEvent) bool {
	switch t.State() {
	case StateGlobal:
		return ev.Receiver == types.BroadcastTarget
	case StatePrivate:
		if self == "" {
			return false
		}
		peer := string(t)
		return (ev.Sender == peer && ev.Receiver == self) ||
			(ev.Sender == self && ev.Receiver == peer)
	default:
		return false
	}
}
