package socket

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"livechat-client/internal/types"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

const natsPrefix = "chat"

// natsClient carries the same event contract over NATS subjects:
//
//	chat.emit.<event>           client -> server
//	chat.events.<event>         server -> every client
//	chat.user.<name>.<event>    server -> one user
//
// Every inbound subscription feeds one channel so handlers still see a
// single FIFO stream. The user subject is subscribed from the affinity key
// and again whenever a join names a user.
type natsClient struct {
	id        string
	conn      *nats.Conn
	inbox     chan *nats.Msg
	listeners *registry
	log       zerolog.Logger
	epoch     atomic.Uint64

	mu   sync.Mutex
	subs map[string]*nats.Subscription

	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

func newNATSClient(url string, opts Options, log zerolog.Logger) (*natsClient, error) {
	reconnect := opts.ReconnectInterval
	if reconnect <= 0 {
		reconnect = 3 * time.Second
	}
	id := uuid.NewString()
	c := &natsClient{
		id:        id,
		inbox:     make(chan *nats.Msg, sendBuffer),
		subs:      make(map[string]*nats.Subscription),
		listeners: newRegistry(),
		log:       log.With().Str("client_id", id).Logger(),
		quit:      make(chan struct{}),
		done:      make(chan struct{}),
	}

	nc, err := nats.Connect(url,
		nats.Name("livechat-"+id),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(reconnect),
		nats.ConnectHandler(func(*nats.Conn) {
			c.epoch.Add(1)
			c.log.Info().Str("url", url).Msg("connected")
			c.listeners.connected()
		}),
		nats.ReconnectHandler(func(*nats.Conn) {
			c.epoch.Add(1)
			c.log.Info().Msg("reconnected")
			c.listeners.connected()
		}),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				c.log.Warn().Err(err).Msg("disconnected")
			}
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	c.conn = nc
	// a connect that succeeds inside nats.Connect may not reach ConnectHandler
	if nc.IsConnected() {
		c.epoch.CompareAndSwap(0, 1)
	}

	if err := c.subscribe(natsPrefix + ".events.>"); err != nil {
		nc.Close()
		return nil, err
	}
	if err := c.subscribeUser(opts.AffinityKey); err != nil {
		nc.Close()
		return nil, err
	}

	go c.dispatchLoop()
	return c, nil
}

func (c *natsClient) subscribe(subject string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.subs[subject]; ok {
		return nil
	}
	sub, err := c.conn.ChanSubscribe(subject, c.inbox)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", subject, err)
	}
	c.subs[subject] = sub
	// the server must know the interest before it routes replies to us
	if c.conn.IsConnected() {
		if err := c.conn.FlushTimeout(2 * time.Second); err != nil {
			c.log.Debug().Err(err).Str("subject", subject).Msg("subscription flush failed")
		}
	}
	c.log.Debug().Str("subject", subject).Msg("subscribed")
	return nil
}

// subscribeUser routes direct events for username into the inbox. An empty
// name is a no-op.
func (c *natsClient) subscribeUser(username string) error {
	token := subjectToken(username)
	if token == "" {
		return nil
	}
	return c.subscribe(fmt.Sprintf("%s.user.%s.>", natsPrefix, token))
}

func (c *natsClient) ID() string { return c.id }

func (c *natsClient) Connected() bool { return c.conn.IsConnected() }

func (c *natsClient) ConnID() string {
	if !c.conn.IsConnected() {
		return ""
	}
	return c.id + "#" + strconv.FormatUint(c.epoch.Load(), 10)
}

func (c *natsClient) On(event types.EventName, h Handler) func() {
	return c.listeners.on(event, h)
}

func (c *natsClient) OnConnect(fn func()) func() {
	return c.listeners.connect(fn)
}

func (c *natsClient) Emit(event types.EventName, payload any) error {
	if c.conn.IsClosed() {
		return ErrClosed
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", event, err)
	}
	if event == types.EventJoin {
		var join types.JoinPayload
		if err := json.Unmarshal(data, &join); err == nil {
			if err := c.subscribeUser(join.Username); err != nil {
				return err
			}
		}
	}
	return c.conn.Publish(fmt.Sprintf("%s.emit.%s", natsPrefix, event), data)
}

func (c *natsClient) Close() error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		for _, sub := range c.subs {
			_ = sub.Unsubscribe()
		}
		c.mu.Unlock()
		c.conn.Close()
		close(c.quit)
	})
	<-c.done
	return nil
}

func (c *natsClient) dispatchLoop() {
	defer close(c.done)
	for {
		select {
		case <-c.quit:
			return
		case msg := <-c.inbox:
			event := msg.Subject[strings.LastIndexByte(msg.Subject, '.')+1:]
			c.listeners.dispatch(types.EventName(event), json.RawMessage(msg.Data))
		}
	}
}

// subjectToken strips characters NATS treats as separators or wildcards.
func subjectToken(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t':
			return '_'
		}
		return r
	}, strings.TrimSpace(s))
}
