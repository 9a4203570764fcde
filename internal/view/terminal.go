package view

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"sync"

	"livechat-client/internal/invite"
	"livechat-client/internal/models"
	"livechat-client/internal/types"
)

// Terminal renders the conversation, contacts and invite overlay as plain
// lines. Output is buffered and flushed when the view scrolls or a prompt
// needs to be visible.
type Terminal struct {
	mu  sync.Mutex
	out *bufio.Writer
}

func NewTerminal(w io.Writer) *Terminal {
	return &Terminal{out: bufio.NewWriter(w)}
}

func (t *Terminal) Replace(messages []models.Message) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintln(t.out, "──────── conversation ────────")
	for _, m := range messages {
		t.writeMessage(m)
	}
	if len(messages) == 0 {
		fmt.Fprintln(t.out, "(no messages yet)")
	}
}

func (t *Terminal) Append(m models.Message) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.writeMessage(m)
}

func (t *Terminal) ScrollToLatest() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.out.Flush()
}

func (t *Terminal) ClearCompose() {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprint(t.out, "> ")
	t.out.Flush()
}

func (t *Terminal) Contacts(contacts []types.Contact) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintln(t.out, "──────── contacts ────────")
	for _, c := range contacts {
		ts := ""
		if !c.Timestamp.IsZero() {
			ts = c.Timestamp.Local().Format("Jan 2 15:04")
		}
		fmt.Fprintf(t.out, "  %-16s %-12s %s\n", c.Contact, ts, c.LastMessage)
	}
	if len(contacts) == 0 {
		fmt.Fprintln(t.out, "  (none)")
	}
	t.out.Flush()
}

func (t *Terminal) Users(role string, users []types.UserDTO) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.out, "──────── %s ────────\n", role)
	for _, u := range users {
		fmt.Fprintf(t.out, "  %s\n", u.Username)
	}
	if len(users) == 0 {
		fmt.Fprintln(t.out, "  (no match)")
	}
	t.out.Flush()
}

// Notice prints a one-off status line.
func (t *Terminal) Notice(format string, args ...any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.out, "* "+format+"\n", args...)
	t.out.Flush()
}

func (t *Terminal) InviteChanged(state invite.State, inv models.Invite) {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch state {
	case invite.StatePendingMinimized:
		fmt.Fprintf(t.out, "[invite] %s is waiting (/open to view)\n", inv.From)
	case invite.StatePendingOpen:
		fmt.Fprintf(t.out, "[invite] from %s\n", inv.From)
		fmt.Fprintf(t.out, "         time control %d+%d ms, color %s\n", inv.BaseMs, inv.IncMs, inv.ColorPref)
		fmt.Fprintln(t.out, "         /accept  /reject  /dismiss  /minimize")
	case invite.StateAccepted:
		fmt.Fprintf(t.out, "[invite] accepted, joining %s\n", inv.From)
	case invite.StateRejected:
		fmt.Fprintf(t.out, "[invite] declined %s\n", inv.From)
	case invite.StateDismissed:
		fmt.Fprintln(t.out, "[invite] dismissed")
	}
	t.out.Flush()
}

func (t *Terminal) Toast(text string, visible bool) {
	if !visible {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.out, "🔔 %s\n", text)
	t.out.Flush()
}

func (t *Terminal) writeMessage(m models.Message) {
	switch {
	case m.Direction == models.DirectionSent:
		fmt.Fprintf(t.out, "%24s  %s\n", "you", m.Text)
	case m.Receiver == types.BroadcastTarget:
		fmt.Fprintf(t.out, "%24s: %s\n", m.Sender, m.Text)
	default:
		fmt.Fprintf(t.out, "%24s» %s\n", m.Sender, m.Text)
	}
}

// Navigator records accepted match routes; a terminal has no page to
// switch to, so it prints the address and remembers it.
type Navigator struct {
	term *Terminal

	mu      sync.Mutex
	current string
}

func NewNavigator(term *Terminal) *Navigator {
	return &Navigator{term: term}
}

func (n *Navigator) Navigate(route string) error {
	n.mu.Lock()
	n.current = route
	n.mu.Unlock()
	n.term.Notice("open %s to play", route)
	return nil
}

// OnRoute reports whether the last navigation went to path.
func (n *Navigator) OnRoute(path string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return path != "" && strings.HasPrefix(n.current, path)
}

func (n *Navigator) Leave() {
	n.mu.Lock()
	n.current = ""
	n.mu.Unlock()
}
