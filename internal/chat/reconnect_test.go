package chat

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"livechat-client/internal/models"
	"livechat-client/internal/socket"
	"livechat-client/internal/storage"
	"livechat-client/internal/types"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// joinServer counts join envelopes per accepted connection.
type joinServer struct {
	*httptest.Server

	mu    sync.Mutex
	joins []int
	conns chan *websocket.Conn
}

func newJoinServer(t *testing.T) *joinServer {
	t.Helper()
	s := &joinServer{conns: make(chan *websocket.Conn, 4)}
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		s.mu.Lock()
		idx := len(s.joins)
		s.joins = append(s.joins, 0)
		s.mu.Unlock()
		s.conns <- conn

		for {
			var env types.Envelope
			if err := conn.ReadJSON(&env); err != nil {
				return
			}
			if env.Event == types.EventJoin {
				s.mu.Lock()
				s.joins[idx]++
				s.mu.Unlock()
			}
		}
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *joinServer) joinCounts() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.joins...)
}

func TestJoinReemittedAfterReconnect(t *testing.T) {
	srv := newJoinServer(t)
	manager := socket.NewManager(zerolog.Nop())
	t.Cleanup(func() { manager.Close() })

	client, err := manager.GetOrCreate(socket.DefaultKey, socket.Options{
		URL:               "ws" + strings.TrimPrefix(srv.URL, "http") + "/socket",
		ReconnectInterval: 50 * time.Millisecond,
	})
	require.NoError(t, err)

	conv := NewConversation(Config{
		Client:  client,
		Backend: newFakeBackend(),
		Store:   storage.NewMemoryStore(),
		View:    &recordingView{},
		Log:     zerolog.Nop(),
	})
	t.Cleanup(func() { conv.Close() })
	require.NoError(t, conv.Start())
	require.NoError(t, conv.SetIdentity(models.Identity{Username: "alice", Role: "Player"}))

	var first *websocket.Conn
	select {
	case first = <-srv.conns:
	case <-time.After(3 * time.Second):
		t.Fatal("client never connected")
	}
	require.Eventually(t, func() bool {
		c := srv.joinCounts()
		return len(c) == 1 && c[0] == 1
	}, 3*time.Second, 10*time.Millisecond)

	require.NoError(t, first.Close())

	require.Eventually(t, func() bool {
		c := srv.joinCounts()
		return len(c) == 2 && c[1] == 1
	}, 3*time.Second, 10*time.Millisecond, "join not sent on the new connection")
	assert.Never(t, func() bool {
		for _, n := range srv.joinCounts() {
			if n > 1 {
				return true
			}
		}
		return false
	}, 200*time.Millisecond, 20*time.Millisecond)
}
