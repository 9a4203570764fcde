package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"livechat-client/internal/models"
	"livechat-client/internal/socket"
	"livechat-client/internal/storage"
	"livechat-client/internal/throttle"
	"livechat-client/internal/types"

	"github.com/rs/zerolog"
)

var (
	ErrEmptyMessage = errors.New("chat: message is empty")
	ErrNoClient     = errors.New("chat: no event client")
	ErrNoTarget     = errors.New("chat: no active conversation")
	ErrNoIdentity   = errors.New("chat: identity not known")
	ErrIdentitySet  = errors.New("chat: identity already set")
	ErrSelfTarget   = errors.New("chat: cannot open a conversation with yourself")
	ErrRateLimited  = errors.New("chat: sending too fast")
	ErrClosed       = errors.New("chat: conversation closed")
	ErrStarted      = errors.New("chat: conversation already started")
)

// View renders the conversation. Calls come from the conversation loop or
// from Send's caller; implementations must be safe for that.
type View interface {
	Replace(messages []models.Message)
	Append(m models.Message)
	ScrollToLatest()
	ClearCompose()
	Contacts(contacts []types.Contact)
}

type Backend interface {
	History(ctx context.Context, room string) ([]types.HistoryEntry, error)
	Contacts(ctx context.Context, username string) ([]types.Contact, error)
}

type Config struct {
	// Client may be nil when no event server is reachable; the
	// conversation then only shows history.
	Client               socket.Client
	Backend              Backend
	Store                storage.Store
	View                 View
	Limiter              *throttle.Limiter
	Roles                []string
	ContactsRefreshDelay time.Duration
	Log                  zerolog.Logger
}

type historyResult struct {
	target  Target
	room    string
	entries []types.HistoryEntry
	err     error
}

// Conversation drives one chat view. A single loop goroutine handles
// inbound events, target switches and history results in order.
type Conversation struct {
	cfg Config
	log zerolog.Logger

	identity atomic.Pointer[models.Identity]
	target   atomic.Pointer[Target]
	messages MessageLog

	inbound  chan types.MessageEvent
	switches chan Target
	history  chan historyResult

	// selectMu orders Select against SetIdentity
	selectMu sync.Mutex

	mu           sync.Mutex
	joined       map[string]bool
	offs         []func()
	refreshTimer *time.Timer
	started      bool
	closed       bool

	ctx       context.Context
	cancel    context.CancelFunc
	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

func NewConversation(cfg Config) *Conversation {
	if cfg.View == nil {
		cfg.View = nopView{}
	}
	if cfg.ContactsRefreshDelay <= 0 {
		cfg.ContactsRefreshDelay = 300 * time.Millisecond
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &Conversation{
		cfg:      cfg,
		log:      cfg.Log,
		inbound:  make(chan types.MessageEvent, 64),
		switches: make(chan Target, 8),
		history:  make(chan historyResult, 8),
		joined:   make(map[string]bool),
		ctx:      ctx,
		cancel:   cancel,
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	none := NoTarget
	c.target.Store(&none)
	return c
}

// Start attaches the listeners, starts the loop and restores the last
// persisted target.
func (c *Conversation) Start() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.started {
		c.mu.Unlock()
		return ErrStarted
	}
	c.started = true
	if client := c.cfg.Client; client != nil {
		c.offs = append(c.offs,
			client.On(types.EventMessage, c.onMessage),
			client.OnConnect(c.announce),
		)
	} else {
		c.log.Warn().Msg("no event client; live updates disabled")
	}
	c.mu.Unlock()

	go c.run()
	c.announce()

	if c.cfg.Store != nil {
		ctx, cancel := context.WithTimeout(c.ctx, 3*time.Second)
		stored, err := c.cfg.Store.Get(ctx, storage.ActiveTargetKey)
		cancel()
		switch {
		case errors.Is(err, storage.ErrNotFound):
		case err != nil:
			c.log.Warn().Err(err).Msg("could not restore active conversation")
		case ParseTarget(stored) != NoTarget:
			if err := c.Select(ParseTarget(stored)); err != nil {
				c.log.Warn().Err(err).Str("target", stored).Msg("stored conversation not restored")
			}
		}
	}
	return nil
}

// SetIdentity fixes the local identity. It can be set once; setting the
// same identity again is a no-op.
func (c *Conversation) SetIdentity(id models.Identity) error {
	id = models.NewIdentity(id.Username, id.Role)
	if !id.Known(c.cfg.Roles) {
		return ErrNoIdentity
	}

	c.selectMu.Lock()
	if !c.identity.CompareAndSwap(nil, &id) {
		c.selectMu.Unlock()
		if *c.identity.Load() == id {
			return nil
		}
		return ErrIdentitySet
	}
	c.log.Info().Str("username", id.Username).Str("role", id.Role).Msg("identity set")

	// a target selected before the identity was known still needs history,
	// unless it turns out to be ourselves
	t := c.Target()
	if t != NoTarget && t.Peer() == id.Username {
		c.log.Warn().Str("target", string(t)).Msg("dropping conversation with self")
		c.setTarget(NoTarget)
		t = NoTarget
	}
	if t != NoTarget {
		c.enqueueSwitch(t)
	}
	c.selectMu.Unlock()

	c.announce()
	return nil
}

func (c *Conversation) Identity() (models.Identity, bool) {
	id := c.identity.Load()
	if id == nil {
		return models.Identity{}, false
	}
	return *id, true
}

func (c *Conversation) Target() Target {
	return *c.target.Load()
}

func (c *Conversation) Messages() []models.Message {
	return c.messages.Snapshot()
}

// Select makes t the active conversation, persists it and fetches its
// history. The new target is visible to the routing filter before Select
// returns.
func (c *Conversation) Select(t Target) error {
	t = ParseTarget(string(t))
	if t == NoTarget {
		return ErrNoTarget
	}

	// the identity check and the history request must see the same identity
	c.selectMu.Lock()
	defer c.selectMu.Unlock()

	id, known := c.Identity()
	if known && t.Peer() == id.Username {
		return ErrSelfTarget
	}
	select {
	case <-c.quit:
		return ErrClosed
	default:
	}

	c.setTarget(t)
	c.log.Debug().Str("target", string(t)).Str("state", t.State().String()).Msg("conversation selected")

	if known {
		c.enqueueSwitch(t)
	}
	return nil
}

// setTarget publishes t to the routing filter and persists it.
func (c *Conversation) setTarget(t Target) {
	c.target.Store(&t)
	if c.cfg.Store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(c.ctx, 3*time.Second)
	defer cancel()
	if err := c.cfg.Store.Set(ctx, storage.ActiveTargetKey, string(t)); err != nil {
		c.log.Warn().Err(err).Msg("could not persist active conversation")
	}
}

// Send emits text to the active conversation.
func (c *Conversation) Send(text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyMessage
	}
	if c.cfg.Client == nil {
		return ErrNoClient
	}
	id, ok := c.Identity()
	if !ok {
		return ErrNoIdentity
	}
	t := c.Target()
	if t == NoTarget {
		return ErrNoTarget
	}
	select {
	case <-c.quit:
		return ErrClosed
	default:
	}
	if c.cfg.Limiter != nil && !c.cfg.Limiter.Allow() {
		return ErrRateLimited
	}

	err := c.cfg.Client.Emit(types.EventChatMessage, types.ChatMessagePayload{
		Sender:   id.Username,
		Receiver: string(t),
		Message:  text,
	})
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}

	c.cfg.View.ClearCompose()
	c.scheduleContactsRefresh()
	return nil
}

// RefreshContacts reloads the contacts list. Failures keep the current list.
func (c *Conversation) RefreshContacts() {
	id, ok := c.Identity()
	if !ok || c.cfg.Backend == nil {
		return
	}
	ctx, cancel := context.WithTimeout(c.ctx, 10*time.Second)
	defer cancel()

	contacts, err := c.cfg.Backend.Contacts(ctx, id.Username)
	if err != nil {
		c.log.Debug().Err(err).Msg("contacts refresh failed")
		return
	}
	select {
	case <-c.quit:
		return
	default:
	}
	c.cfg.View.Contacts(contacts)
}

// Close detaches the listeners, stops the loop and cancels pending work.
// The shared event client stays open.
func (c *Conversation) Close() error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		for _, off := range c.offs {
			off()
		}
		c.offs = nil
		if c.refreshTimer != nil {
			c.refreshTimer.Stop()
		}
		started := c.started
		c.closed = true
		c.mu.Unlock()

		close(c.quit)
		c.cancel()
		if !started {
			close(c.done)
		}
	})
	<-c.done
	return nil
}

func (c *Conversation) run() {
	defer close(c.done)
	for {
		select {
		case <-c.quit:
			return
		case ev := <-c.inbound:
			c.route(ev)
		case t := <-c.switches:
			c.fetchHistory(t)
		case res := <-c.history:
			c.applyHistory(res)
		}
	}
}

func (c *Conversation) onMessage(data json.RawMessage) {
	var ev types.MessageEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		c.log.Debug().Err(err).Msg("dropping malformed message event")
		return
	}
	select {
	case c.inbound <- ev:
	case <-c.quit:
	}
}

func (c *Conversation) route(ev types.MessageEvent) {
	t := c.Target()
	var self string
	if id, ok := c.Identity(); ok {
		self = id.Username
	}
	if !Accept(t, self, ev) {
		c.log.Debug().Str("sender", ev.Sender).Str("receiver", ev.Receiver).Str("target", string(t)).Msg("message not for active conversation")
		return
	}

	m := models.Message{
		Sender:    ev.Sender,
		Text:      ev.Message,
		Direction: models.DirectionFor(ev.Sender, self),
		Receiver:  ev.Receiver,
	}
	if !c.messages.Append(m) {
		c.log.Debug().Str("sender", ev.Sender).Msg("duplicate message suppressed")
		return
	}
	c.cfg.View.Append(m)
	c.cfg.View.ScrollToLatest()
}

func (c *Conversation) enqueueSwitch(t Target) {
	select {
	case c.switches <- t:
	case <-c.quit:
	}
}

func (c *Conversation) fetchHistory(t Target) {
	id, ok := c.Identity()
	if !ok || c.cfg.Backend == nil {
		return
	}
	room := RoomID(id.Username, t)
	go func() {
		ctx, cancel := context.WithTimeout(c.ctx, 10*time.Second)
		defer cancel()
		entries, err := c.cfg.Backend.History(ctx, room)
		select {
		case c.history <- historyResult{target: t, room: room, entries: entries, err: err}:
		case <-c.quit:
		}
	}()
}

func (c *Conversation) applyHistory(res historyResult) {
	if res.err != nil {
		c.log.Debug().Err(res.err).Str("room", res.room).Msg("history unavailable, keeping current log")
		return
	}
	id, _ := c.Identity()
	current := c.Target()
	if RoomID(id.Username, current) != res.room {
		c.log.Debug().Str("room", res.room).Msg("discarding history of a previous conversation")
		return
	}
	msgs := Chronological(id.Username, current, res.entries)
	c.messages.Replace(msgs)
	c.cfg.View.Replace(msgs)
	c.cfg.View.ScrollToLatest()
}

// announce emits join once per (connection, identity) as soon as both are
// available. A redial is a new connection and is announced again.
func (c *Conversation) announce() {
	client := c.cfg.Client
	id, ok := c.Identity()
	if client == nil || !ok || !client.Connected() {
		return
	}
	connID := client.ConnID()
	if connID == "" {
		return
	}
	key := connID + "|" + id.Username + "|" + id.Role

	c.mu.Lock()
	if c.joined[key] {
		c.mu.Unlock()
		return
	}
	c.joined[key] = true
	c.mu.Unlock()

	if err := client.Emit(types.EventJoin, types.JoinPayload{Username: id.Username, Role: id.Role}); err != nil {
		c.log.Warn().Err(err).Msg("join announcement failed")
		c.mu.Lock()
		delete(c.joined, key)
		c.mu.Unlock()
		return
	}
	c.log.Info().Str("client_id", client.ID()).Str("conn_id", connID).Msg("joined")
}

func (c *Conversation) scheduleContactsRefresh() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	if c.refreshTimer != nil {
		c.refreshTimer.Stop()
	}
	c.refreshTimer = time.AfterFunc(c.cfg.ContactsRefreshDelay, c.RefreshContacts)
}

type nopView struct{}

func (nopView) Replace([]models.Message)  {}
func (nopView) Append(models.Message)     {}
func (nopView) ScrollToLatest()           {}
func (nopView) ClearCompose()             {}
func (nopView) Contacts([]types.Contact) {}
