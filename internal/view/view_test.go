package view

import (
	"bytes"
	"testing"

	"livechat-client/internal/invite"
	"livechat-client/internal/models"
	"livechat-client/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCommand(t *testing.T) {
	cases := []struct {
		line string
		want Command
	}{
		{"hello there", Command{Kind: CmdSay, Arg: "hello there"}},
		{"/to bob", Command{Kind: CmdTo, Arg: "bob"}},
		{"/w  bob extra", Command{Kind: CmdTo, Arg: "bob"}},
		{"/global", Command{Kind: CmdGlobal}},
		{"/users Coordinator", Command{Kind: CmdUsers, Arg: "Coordinator"}},
		{"/users Player mag nus", Command{Kind: CmdUsers, Arg: "Player", Query: "mag nus"}},
		{"/accept\r\n", Command{Kind: CmdAccept}},
		{"/quit", Command{Kind: CmdQuit}},
	}
	for _, tc := range cases {
		got, err := ParseCommand(tc.line)
		require.NoError(t, err, tc.line)
		assert.Equal(t, tc.want, got, tc.line)
	}

	_, err := ParseCommand("/to")
	assert.Error(t, err)
	_, err = ParseCommand("/users")
	assert.Error(t, err)
	_, err = ParseCommand("/shrug")
	assert.ErrorIs(t, err, ErrUnknownCommand)
}

func TestTerminalBuffersUntilScroll(t *testing.T) {
	var buf bytes.Buffer
	term := NewTerminal(&buf)

	term.Replace([]models.Message{
		{Sender: "bob", Text: "hi all", Receiver: "All", Direction: models.DirectionReceived},
		{Sender: "alice", Text: "hey", Receiver: "All", Direction: models.DirectionSent},
	})
	assert.Zero(t, buf.Len())

	term.ScrollToLatest()
	out := buf.String()
	assert.Contains(t, out, "bob: hi all")
	assert.Contains(t, out, "you  hey")

	term.Append(models.Message{Sender: "bob", Text: "psst", Receiver: "alice"})
	term.ScrollToLatest()
	assert.Contains(t, buf.String(), "bob» psst")
}

func TestTerminalRendersContactsAndInvites(t *testing.T) {
	var buf bytes.Buffer
	term := NewTerminal(&buf)

	term.Contacts([]types.Contact{{Contact: "bob", LastMessage: "gg"}})
	term.InviteChanged(invite.StatePendingOpen, models.Invite{From: "carol", BaseMs: 60000, ColorPref: "random"})
	term.Toast("carol invited you", true)
	term.Toast("", false)

	out := buf.String()
	assert.Contains(t, out, "bob")
	assert.Contains(t, out, "gg")
	assert.Contains(t, out, "[invite] from carol")
	assert.Contains(t, out, "carol invited you")
}

func TestNavigator(t *testing.T) {
	var buf bytes.Buffer
	nav := NewNavigator(NewTerminal(&buf))

	assert.False(t, nav.OnRoute("/live-match"))
	require.NoError(t, nav.Navigate("/live-match?inviteId=7"))
	assert.True(t, nav.OnRoute("/live-match"))
	assert.Contains(t, buf.String(), "/live-match?inviteId=7")

	nav.Leave()
	assert.False(t, nav.OnRoute("/live-match"))
}
