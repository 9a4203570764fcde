package socket

import (
	"encoding/json"
	"errors"
	"sync"

	"livechat-client/internal/types"

	"github.com/google/uuid"
)

var (
	ErrUnavailable    = errors.New("socket: event transport unavailable")
	ErrClosed         = errors.New("socket: client closed")
	ErrSendBufferFull = errors.New("socket: send buffer full")
)

// Handler receives the raw data of one inbound event.
type Handler func(data json.RawMessage)

// Client is a shared connection to the event server. Handlers registered
// with On are invoked one at a time, in delivery order.
type Client interface {
	ID() string
	// ConnID names the current underlying connection. It changes on every
	// successful (re)connect and is empty while disconnected.
	ConnID() string
	Emit(event types.EventName, payload any) error
	On(event types.EventName, h Handler) (off func())
	OnConnect(fn func()) (off func())
	Connected() bool
	Close() error
}

type listener struct {
	id string
	h  Handler
}

// registry holds event and connect listeners for one client.
type registry struct {
	mu        sync.RWMutex
	events    map[types.EventName][]listener
	onConnect []listener
}

func newRegistry() *registry {
	return &registry{events: make(map[types.EventName][]listener)}
}

func (r *registry) on(event types.EventName, h Handler) func() {
	id := uuid.NewString()
	r.mu.Lock()
	r.events[event] = append(r.events[event], listener{id: id, h: h})
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.events[event] = remove(r.events[event], id)
			if len(r.events[event]) == 0 {
				delete(r.events, event)
			}
		})
	}
}

func (r *registry) connect(fn func()) func() {
	id := uuid.NewString()
	r.mu.Lock()
	r.onConnect = append(r.onConnect, listener{id: id, h: func(json.RawMessage) { fn() }})
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			r.onConnect = remove(r.onConnect, id)
			r.mu.Unlock()
		})
	}
}

func (r *registry) dispatch(event types.EventName, data json.RawMessage) int {
	r.mu.RLock()
	snapshot := make([]listener, len(r.events[event]))
	copy(snapshot, r.events[event])
	r.mu.RUnlock()

	for _, l := range snapshot {
		l.h(data)
	}
	return len(snapshot)
}

func (r *registry) connected() {
	r.mu.RLock()
	snapshot := make([]listener, len(r.onConnect))
	copy(snapshot, r.onConnect)
	r.mu.RUnlock()

	for _, l := range snapshot {
		l.h(nil)
	}
}

func (r *registry) count(event types.EventName) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.events[event])
}

func remove(ls []listener, id string) []listener {
	out := ls[:0:0]
	for _, l := range ls {
		if l.id != id {
			out = append(out, l)
		}
	}
	return out
}
