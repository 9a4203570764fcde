package invite

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"livechat-client/internal/models"
	"livechat-client/internal/socket"
	"livechat-client/internal/types"

	"github.com/rs/zerolog"
)

type State int

const (
	StateNone State = iota
	StatePendingMinimized
	StatePendingOpen
	StateAccepted
	StateRejected
	StateDismissed
)

func (s State) String() string {
	switch s {
	case StatePendingMinimized:
		return "pending-minimized"
	case StatePendingOpen:
		return "pending-open"
	case StateAccepted:
		return "accepted"
	case StateRejected:
		return "rejected"
	case StateDismissed:
		return "dismissed"
	default:
		return "none"
	}
}

func (s State) Pending() bool {
	return s == StatePendingMinimized || s == StatePendingOpen
}

var (
	ErrNoInvite = errors.New("invite: no pending invite")
	ErrNoClient = errors.New("invite: no event client")
	ErrClosed   = errors.New("invite: overlay closed")
)

type Navigator interface {
	Navigate(route string) error
}

// Observer is told about every transition and toast change. It is called
// with the overlay lock held and must not call back into the overlay.
type Observer interface {
	InviteChanged(state State, inv models.Invite)
	Toast(text string, visible bool)
}

type Config struct {
	Client    socket.Client
	Navigator Navigator
	Observer  Observer
	// OnMatchRoute reports whether the user is already in a live match.
	OnMatchRoute  func() bool
	MatchRoute    string
	ToastDuration time.Duration
	Log           zerolog.Logger
}

// Overlay tracks at most one inbound match invite.
type Overlay struct {
	cfg Config
	log zerolog.Logger

	mu      sync.Mutex
	state   State
	current models.Invite
	toast   *time.Timer
	off     func()
	closed  bool
}

func NewOverlay(cfg Config) *Overlay {
	if cfg.MatchRoute == "" {
		cfg.MatchRoute = "/live-match"
	}
	if cfg.ToastDuration <= 0 {
		cfg.ToastDuration = 5 * time.Second
	}
	if cfg.OnMatchRoute == nil {
		cfg.OnMatchRoute = func() bool { return false }
	}
	if cfg.Observer == nil {
		cfg.Observer = nopObserver{}
	}
	return &Overlay{cfg: cfg, log: cfg.Log}
}

// Attach subscribes to inbound invites on the configured client.
func (o *Overlay) Attach() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return ErrClosed
	}
	if o.cfg.Client == nil {
		return ErrNoClient
	}
	if o.off == nil {
		o.off = o.cfg.Client.On(types.EventMatchInvite, o.onInvite)
	}
	return nil
}

func (o *Overlay) onInvite(data json.RawMessage) {
	var ev types.MatchInviteEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		o.log.Debug().Err(err).Msg("dropping malformed invite")
		return
	}
	o.Handle(ev)
}

// Handle applies an inbound invite. It reports whether the invite became
// the pending one.
func (o *Overlay) Handle(ev types.MatchInviteEvent) bool {
	inv := models.InviteFromEvent(ev)
	if strings.TrimSpace(inv.InviteID) == "" && strings.TrimSpace(inv.From) == "" {
		o.log.Debug().Msg("invite without id or sender ignored")
		return false
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return false
	}
	if o.cfg.OnMatchRoute() {
		o.log.Debug().Str("from", inv.From).Msg("invite ignored during live match")
		return false
	}
	if o.state.Pending() {
		o.log.Debug().Str("previous", o.current.InviteID).Str("from", o.current.From).Msg("pending invite replaced")
	}

	o.current = inv
	o.setState(StatePendingMinimized)
	o.showToast(fmt.Sprintf("%s invited you to a %s game", displayName(inv.From), timeControl(inv)))
	o.log.Info().Str("invite_id", inv.InviteID).Str("from", inv.From).Msg("match invite received")
	return true
}

func (o *Overlay) Open() error     { return o.toggle(StatePendingOpen) }
func (o *Overlay) Minimize() error { return o.toggle(StatePendingMinimized) }

func (o *Overlay) toggle(to State) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.state.Pending() {
		return ErrNoInvite
	}
	if o.state != to {
		o.setState(to)
	}
	return nil
}

// Accept navigates to the match route for the pending invite. The server
// is not told; the match page takes over from there.
func (o *Overlay) Accept() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.state.Pending() {
		return ErrNoInvite
	}
	route := AcceptRoute(o.cfg.MatchRoute, o.current)
	if o.cfg.Navigator != nil {
		if err := o.cfg.Navigator.Navigate(route); err != nil {
			return fmt.Errorf("navigate to %s: %w", route, err)
		}
	}
	o.log.Info().Str("route", route).Msg("invite accepted")
	o.resolve(StateAccepted)
	return nil
}

// Reject declines the pending invite. The decline is emitted once and the
// invite is cleared even when the emit fails.
func (o *Overlay) Reject() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.state.Pending() {
		return ErrNoInvite
	}
	payload := DeclinePayload(o.current)
	o.resolve(StateRejected)

	if o.cfg.Client == nil {
		return ErrNoClient
	}
	if err := o.cfg.Client.Emit(types.EventInviteDecline, payload); err != nil {
		return fmt.Errorf("decline invite: %w", err)
	}
	return nil
}

func (o *Overlay) Dismiss() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.state.Pending() {
		return ErrNoInvite
	}
	o.resolve(StateDismissed)
	return nil
}

func (o *Overlay) Current() (models.Invite, State) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.current, o.state
}

// Close unsubscribes and stops the toast timer. It is safe to call more
// than once.
func (o *Overlay) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return nil
	}
	o.closed = true
	if o.off != nil {
		o.off()
		o.off = nil
	}
	if o.toast != nil {
		o.toast.Stop()
		o.toast = nil
	}
	return nil
}

// resolve reports the outcome, then clears the invite.
func (o *Overlay) resolve(outcome State) {
	o.setState(outcome)
	o.hideToast()
	o.current = models.Invite{}
	o.state = StateNone
}

func (o *Overlay) setState(s State) {
	o.state = s
	o.cfg.Observer.InviteChanged(s, o.current)
}

func (o *Overlay) showToast(text string) {
	if o.toast != nil {
		o.toast.Stop()
	}
	o.cfg.Observer.Toast(text, true)

	var t *time.Timer
	t = time.AfterFunc(o.cfg.ToastDuration, func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		// a newer toast owns the slot
		if o.toast != t {
			return
		}
		o.toast = nil
		o.cfg.Observer.Toast("", false)
	})
	o.toast = t
}

func (o *Overlay) hideToast() {
	if o.toast == nil {
		return
	}
	o.toast.Stop()
	o.toast = nil
	o.cfg.Observer.Toast("", false)
}

// AcceptRoute builds the match page address for inv, keyed by invite id
// when the server supplied one and by sender otherwise.
func AcceptRoute(matchRoute string, inv models.Invite) string {
	q := url.Values{}
	if inv.InviteID != "" {
		q.Set("inviteId", inv.InviteID)
	} else {
		q.Set("from", inv.From)
	}
	return matchRoute + "?" + q.Encode()
}

func DeclinePayload(inv models.Invite) types.InviteDeclinePayload {
	if inv.InviteID != "" {
		return types.InviteDeclinePayload{InviteID: inv.InviteID}
	}
	return types.InviteDeclinePayload{FromUsername: inv.From}
}

func displayName(from string) string {
	if from == "" {
		return "Someone"
	}
	return from
}

func timeControl(inv models.Invite) string {
	base := time.Duration(inv.BaseMs) * time.Millisecond
	inc := time.Duration(inv.IncMs) * time.Millisecond
	return fmt.Sprintf("%v+%v", base.Round(time.Second), inc.Round(time.Second))
}

type nopObserver struct{}

func (nopObserver) InviteChanged(State, models.Invite) {}
func (nopObserver) Toast(string, bool)                 {}
