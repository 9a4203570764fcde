package socket

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"livechat-client/internal/types"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	writeWait      = 5 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBuffer     = 256
)

// wsClient speaks JSON envelopes over a gorilla websocket. It redials at a
// fixed interval until closed; frames queued while disconnected are
// written after the next successful dial.
type wsClient struct {
	id        string
	url       string
	header    http.Header
	dialer    *websocket.Dialer
	reconnect time.Duration
	log       zerolog.Logger

	listeners *registry
	send      chan []byte
	connected atomic.Bool
	connID    atomic.Pointer[string]

	mu   sync.Mutex
	conn *websocket.Conn

	ctx       context.Context
	cancel    context.CancelFunc
	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

func newWSClient(url string, opts Options, log zerolog.Logger) *wsClient {
	reconnect := opts.ReconnectInterval
	if reconnect <= 0 {
		reconnect = 3 * time.Second
	}
	id := uuid.NewString()
	ctx, cancel := context.WithCancel(context.Background())
	c := &wsClient{
		id:        id,
		url:       url,
		header:    opts.Header,
		dialer:    websocket.DefaultDialer,
		reconnect: reconnect,
		log:       log.With().Str("client_id", id).Logger(),
		listeners: newRegistry(),
		send:      make(chan []byte, sendBuffer),
		ctx:       ctx,
		cancel:    cancel,
		quit:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	go c.run()
	return c
}

func (c *wsClient) ID() string { return c.id }

func (c *wsClient) Connected() bool { return c.connected.Load() }

func (c *wsClient) ConnID() string {
	if id := c.connID.Load(); id != nil {
		return *id
	}
	return ""
}

func (c *wsClient) On(event types.EventName, h Handler) func() {
	return c.listeners.on(event, h)
}

func (c *wsClient) OnConnect(fn func()) func() {
	return c.listeners.connect(fn)
}

func (c *wsClient) Emit(event types.EventName, payload any) error {
	select {
	case <-c.quit:
		return ErrClosed
	default:
	}

	frame, err := encodeEnvelope(event, payload)
	if err != nil {
		return err
	}

	select {
	case c.send <- frame:
		return nil
	default:
		c.log.Warn().Str("event", string(event)).Msg("send buffer full, dropping frame")
		return ErrSendBufferFull
	}
}

func (c *wsClient) Close() error {
	c.closeOnce.Do(func() {
		close(c.quit)
		c.cancel()
		c.mu.Lock()
		if c.conn != nil {
			c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			c.conn.Close()
		}
		c.mu.Unlock()
	})
	<-c.done
	return nil
}

func (c *wsClient) run() {
	defer close(c.done)
	for {
		conn, _, err := c.dialer.DialContext(c.ctx, c.url, c.header)
		if err != nil {
			c.log.Warn().Err(err).Str("url", c.url).Dur("retry_in", c.reconnect).Msg("dial failed")
			select {
			case <-c.quit:
				return
			case <-time.After(c.reconnect):
				continue
			}
		}

		c.mu.Lock()
		select {
		case <-c.quit:
			c.mu.Unlock()
			conn.Close()
			return
		default:
		}
		c.conn = conn
		c.mu.Unlock()

		c.log.Info().Str("url", c.url).Msg("connected")
		stop := make(chan struct{})
		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.writePump(conn, stop)
		}()

		connID := uuid.NewString()
		c.connID.Store(&connID)
		c.connected.Store(true)
		c.listeners.connected()
		c.readPump(conn)
		c.connected.Store(false)
		c.connID.Store(nil)

		close(stop)
		conn.Close()
		wg.Wait()

		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()

		select {
		case <-c.quit:
			return
		case <-time.After(c.reconnect):
			c.log.Info().Msg("reconnecting")
		}
	}
}

func (c *wsClient) writePump(conn *websocket.Conn, stop <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case frame := <-c.send:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.log.Error().Err(err).Msg("write failed")
				conn.Close()
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				conn.Close()
				return
			}
		}
	}
}

func (c *wsClient) readPump(conn *websocket.Conn) {
	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Warn().Err(err).Msg("unexpected close")
			}
			return
		}
		// Servers may coalesce several envelopes into one frame.
		dec := json.NewDecoder(bytes.NewReader(frame))
		for {
			var env types.Envelope
			if err := dec.Decode(&env); err != nil {
				if !errors.Is(err, io.EOF) {
					c.log.Debug().Err(err).Msg("skipping malformed frame")
				}
				break
			}
			if env.Event == "" {
				continue
			}
			c.listeners.dispatch(env.Event, env.Data)
		}
	}
}

func encodeEnvelope(event types.EventName, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", event, err)
	}
	return json.Marshal(types.Envelope{Event: event, Data: data})
}
