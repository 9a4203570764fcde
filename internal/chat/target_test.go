package chat

import (
	"testing"

	"livechat-client/internal/models"
	"livechat-client/internal/types"

	"github.com/stretchr/testify/assert"
)

func TestTargetState(t *testing.T) {
	assert.Equal(t, StateIdle, ParseTarget("  ").State())
	assert.Equal(t, StateGlobal, ParseTarget("All").State())
	assert.Equal(t, StatePrivate, ParseTarget(" bob ").State())
	assert.Equal(t, "bob", ParseTarget(" bob ").Peer())
	assert.Empty(t, Global.Peer())
	assert.Equal(t, "private", StatePrivate.String())
}

func TestRoomID(t *testing.T) {
	assert.Equal(t, "global", RoomID("alice", Global))
	assert.Equal(t, "alice__bob", RoomID("alice", "bob"))
	assert.Equal(t, "alice__bob", RoomID("bob", "alice"))
	assert.Empty(t, RoomID("alice", NoTarget))
}

func TestAccept(t *testing.T) {
	cases := []struct {
		name   string
		target Target
		self   string
		ev     types.MessageEvent
		want   bool
	}{
		{"global broadcast", Global, "alice", types.MessageEvent{Sender: "bob", Receiver: "All"}, true},
		{"global own broadcast", Global, "alice", types.MessageEvent{Sender: "alice", Receiver: "All"}, true},
		{"global ignores private", Global, "alice", types.MessageEvent{Sender: "bob", Receiver: "alice"}, false},
		{"private inbound", "bob", "alice", types.MessageEvent{Sender: "bob", Receiver: "alice"}, true},
		{"private echo", "bob", "alice", types.MessageEvent{Sender: "alice", Receiver: "bob"}, true},
		{"private other peer", "bob", "alice", types.MessageEvent{Sender: "carol", Receiver: "alice"}, false},
		{"private ignores broadcast", "bob", "alice", types.MessageEvent{Sender: "bob", Receiver: "All"}, false},
		{"private third party", "bob", "alice", types.MessageEvent{Sender: "bob", Receiver: "carol"}, false},
		{"private unknown self", "bob", "", types.MessageEvent{Sender: "bob", Receiver: ""}, false},
		{"idle", NoTarget, "alice", types.MessageEvent{Sender: "bob", Receiver: "All"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Accept(tc.target, tc.self, tc.ev))
		})
	}
}

func TestMessageLogDedupsImmediatePredecessor(t *testing.T) {
	var l MessageLog
	m := models.Message{Sender: "bob", Text: "hi", Receiver: "All"}

	assert.True(t, l.Append(m))
	assert.False(t, l.Append(m))
	assert.True(t, l.Append(models.Message{Sender: "bob", Text: "other", Receiver: "All"}))
	assert.True(t, l.Append(m))
	assert.Equal(t, 3, l.Len())
}

func TestChronological(t *testing.T) {
	history := []types.HistoryEntry{
		{Sender: "bob", Message: "3"},
		{Sender: "alice", Message: "2", Receiver: "bob"},
		{Sender: "alice", Message: "1"},
	}
	got := Chronological("alice", "bob", history)

	assert.Equal(t, []models.Message{
		{Sender: "alice", Text: "1", Direction: models.DirectionSent, Receiver: "bob"},
		{Sender: "alice", Text: "2", Direction: models.DirectionSent, Receiver: "bob"},
		{Sender: "bob", Text: "3", Direction: models.DirectionReceived, Receiver: "alice"},
	}, got)

	global := Chronological("alice", Global, []types.HistoryEntry{{Sender: "bob", Message: "x"}})
	assert.Equal(t, "All", global[0].Receiver)
	assert.Empty(t, Chronological("alice", Global, nil))
}
