package invite

import (
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"livechat-client/internal/models"
	"livechat-client/internal/socket"
	"livechat-client/internal/types"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubClient struct {
	mu      sync.Mutex
	handler socket.Handler
	sent    []types.InviteDeclinePayload
	events  []types.EventName
	emitErr error
}

func (s *stubClient) ID() string { return "stub" }

func (s *stubClient) Emit(event types.EventName, payload any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	if p, ok := payload.(types.InviteDeclinePayload); ok {
		s.sent = append(s.sent, p)
	}
	return s.emitErr
}

func (s *stubClient) On(event types.EventName, h socket.Handler) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if event == types.EventMatchInvite {
		s.handler = h
	}
	return func() {
		s.mu.Lock()
		s.handler = nil
		s.mu.Unlock()
	}
}

func (s *stubClient) OnConnect(func()) func() { return func() {} }
func (s *stubClient) ConnID() string           { return "stub#1" }
func (s *stubClient) Connected() bool          { return true }
func (s *stubClient) Close() error             { return nil }

func (s *stubClient) push(t *testing.T, ev any) {
	t.Helper()
	data, err := json.Marshal(ev)
	require.NoError(t, err)
	s.mu.Lock()
	h := s.handler
	s.mu.Unlock()
	if h != nil {
		h(data)
	}
}

type navRecorder struct {
	routes []string
	err    error
}

func (n *navRecorder) Navigate(route string) error {
	if n.err != nil {
		return n.err
	}
	n.routes = append(n.routes, route)
	return nil
}

type observerRecorder struct {
	mu     sync.Mutex
	states []State
	toasts []bool
}

func (o *observerRecorder) InviteChanged(s State, _ models.Invite) {
	o.mu.Lock()
	o.states = append(o.states, s)
	o.mu.Unlock()
}

func (o *observerRecorder) Toast(_ string, visible bool) {
	o.mu.Lock()
	o.toasts = append(o.toasts, visible)
	o.mu.Unlock()
}

func (o *observerRecorder) toastLog() []bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]bool(nil), o.toasts...)
}

type harness struct {
	overlay  *Overlay
	client   *stubClient
	nav      *navRecorder
	observer *observerRecorder
	inMatch  *atomic.Bool
}

func newHarness(t *testing.T, toast time.Duration) *harness {
	t.Helper()
	h := &harness{
		client:   &stubClient{},
		nav:      &navRecorder{},
		observer: &observerRecorder{},
		inMatch:  new(atomic.Bool),
	}
	h.overlay = NewOverlay(Config{
		Client:        h.client,
		Navigator:     h.nav,
		Observer:      h.observer,
		OnMatchRoute:  h.inMatch.Load,
		ToastDuration: toast,
		Log:           zerolog.Nop(),
	})
	require.NoError(t, h.overlay.Attach())
	t.Cleanup(func() { h.overlay.Close() })
	return h
}

func TestInviteArrivesMinimized(t *testing.T) {
	h := newHarness(t, time.Hour)
	h.client.push(t, types.MatchInviteEvent{InviteID: "inv-1", From: "bob", BaseMs: 300000, IncMs: 2000})

	inv, state := h.overlay.Current()
	assert.Equal(t, StatePendingMinimized, state)
	assert.Equal(t, "inv-1", inv.InviteID)
	assert.Equal(t, models.DefaultColorPref, inv.ColorPref)
	assert.Equal(t, []bool{true}, h.observer.toastLog())
}

func TestInviteIgnoredOnMatchRoute(t *testing.T) {
	h := newHarness(t, time.Hour)
	h.inMatch.Store(true)
	h.client.push(t, types.MatchInviteEvent{InviteID: "inv-1", From: "bob"})

	_, state := h.overlay.Current()
	assert.Equal(t, StateNone, state)
	assert.Empty(t, h.observer.toastLog())
}

func TestMalformedInviteIgnored(t *testing.T) {
	h := newHarness(t, time.Hour)
	h.client.push(t, []int{1, 2})
	h.client.push(t, types.MatchInviteEvent{BaseMs: 1000})

	_, state := h.overlay.Current()
	assert.Equal(t, StateNone, state)
}

func TestNewInviteReplacesPendingSilently(t *testing.T) {
	h := newHarness(t, time.Hour)
	h.client.push(t, types.MatchInviteEvent{InviteID: "inv-1", From: "bob"})
	require.NoError(t, h.overlay.Open())
	h.client.push(t, types.MatchInviteEvent{InviteID: "inv-2", From: "carol", ColorPref: "white"})

	inv, state := h.overlay.Current()
	assert.Equal(t, StatePendingMinimized, state)
	assert.Equal(t, "inv-2", inv.InviteID)
	assert.Equal(t, "white", inv.ColorPref)
	assert.Empty(t, h.client.events)
}

func TestOpenMinimize(t *testing.T) {
	h := newHarness(t, time.Hour)
	assert.ErrorIs(t, h.overlay.Open(), ErrNoInvite)

	h.overlay.Handle(types.MatchInviteEvent{From: "bob"})
	require.NoError(t, h.overlay.Open())
	_, state := h.overlay.Current()
	assert.Equal(t, StatePendingOpen, state)

	require.NoError(t, h.overlay.Minimize())
	_, state = h.overlay.Current()
	assert.Equal(t, StatePendingMinimized, state)
}

func TestAcceptNavigatesWithoutEmitting(t *testing.T) {
	h := newHarness(t, time.Hour)
	h.overlay.Handle(types.MatchInviteEvent{InviteID: "a b", From: "bob"})
	require.NoError(t, h.overlay.Accept())
	h.overlay.Handle(types.MatchInviteEvent{From: "carol"})
	require.NoError(t, h.overlay.Accept())

	assert.Equal(t, []string{"/live-match?inviteId=a+b", "/live-match?from=carol"}, h.nav.routes)
	assert.Empty(t, h.client.events)
	_, state := h.overlay.Current()
	assert.Equal(t, StateNone, state)
	assert.Contains(t, h.observer.states, StateAccepted)
}

func TestAcceptKeepsInviteWhenNavigationFails(t *testing.T) {
	h := newHarness(t, time.Hour)
	h.nav.err = errors.New("router gone")
	h.overlay.Handle(types.MatchInviteEvent{InviteID: "inv-1", From: "bob"})

	assert.Error(t, h.overlay.Accept())
	_, state := h.overlay.Current()
	assert.Equal(t, StatePendingMinimized, state)
}

func TestRejectEmitsOneDecline(t *testing.T) {
	h := newHarness(t, time.Hour)
	h.overlay.Handle(types.MatchInviteEvent{InviteID: "inv-1", From: "bob"})
	require.NoError(t, h.overlay.Reject())
	assert.ErrorIs(t, h.overlay.Reject(), ErrNoInvite)

	h.overlay.Handle(types.MatchInviteEvent{From: "carol"})
	require.NoError(t, h.overlay.Reject())

	assert.Equal(t, []types.InviteDeclinePayload{
		{InviteID: "inv-1"},
		{FromUsername: "carol"},
	}, h.client.sent)

	raw, err := json.Marshal(h.client.sent[1])
	require.NoError(t, err)
	assert.JSONEq(t, `{"fromUsername":"carol"}`, string(raw))
}

func TestRejectClearsEvenWhenEmitFails(t *testing.T) {
	h := newHarness(t, time.Hour)
	h.client.emitErr = socket.ErrClosed
	h.overlay.Handle(types.MatchInviteEvent{InviteID: "inv-1", From: "bob"})

	assert.ErrorIs(t, h.overlay.Reject(), socket.ErrClosed)
	_, state := h.overlay.Current()
	assert.Equal(t, StateNone, state)
}

func TestDismissEmitsNothing(t *testing.T) {
	h := newHarness(t, time.Hour)
	h.overlay.Handle(types.MatchInviteEvent{InviteID: "inv-1", From: "bob"})
	require.NoError(t, h.overlay.Dismiss())

	assert.Empty(t, h.client.events)
	assert.Empty(t, h.nav.routes)
	_, state := h.overlay.Current()
	assert.Equal(t, StateNone, state)
	assert.Equal(t, []bool{true, false}, h.observer.toastLog())
}

func TestToastAutoClears(t *testing.T) {
	h := newHarness(t, 20*time.Millisecond)
	h.overlay.Handle(types.MatchInviteEvent{InviteID: "inv-1", From: "bob"})

	assert.Eventually(t, func() bool {
		log := h.observer.toastLog()
		return len(log) == 2 && !log[1]
	}, time.Second, 5*time.Millisecond)

	// the invite outlives its toast
	_, state := h.overlay.Current()
	assert.Equal(t, StatePendingMinimized, state)
}

func TestCloseDetachesAndStopsToast(t *testing.T) {
	h := newHarness(t, 50*time.Millisecond)
	h.overlay.Handle(types.MatchInviteEvent{InviteID: "inv-1", From: "bob"})
	require.NoError(t, h.overlay.Close())
	require.NoError(t, h.overlay.Close())

	h.client.push(t, types.MatchInviteEvent{InviteID: "inv-2", From: "carol"})
	inv, _ := h.overlay.Current()
	assert.Equal(t, "inv-1", inv.InviteID)

	time.Sleep(120 * time.Millisecond)
	assert.Equal(t, []bool{true}, h.observer.toastLog())
	assert.ErrorIs(t, h.overlay.Attach(), ErrClosed)
}

func TestAttachWithoutClient(t *testing.T) {
	o := NewOverlay(Config{Log: zerolog.Nop()})
	assert.ErrorIs(t, o.Attach(), ErrNoClient)
}
