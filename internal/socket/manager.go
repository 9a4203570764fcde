package socket

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"livechat-client/internal/hashing"

	"github.com/rs/zerolog"
)

// DefaultKey is the slot used when a caller has no reason to keep a
// separate connection.
const DefaultKey = "__chatSocket"

type Options struct {
	// URL is an explicit override. A comma separated list is spread over
	// the endpoints by AffinityKey.
	URL string
	// Origin is the page origin used when URL is empty.
	Origin            string
	Path              string
	AffinityKey       string
	Header            http.Header
	ReconnectInterval time.Duration
}

// Manager owns every shared client of the process. It is created by the
// composition root and closed on shutdown.
type Manager struct {
	mu      sync.Mutex
	clients map[string]Client
	closed  bool
	log     zerolog.Logger
}

func NewManager(log zerolog.Logger) *Manager {
	return &Manager{
		clients: make(map[string]Client),
		log:     log,
	}
}

// GetOrCreate returns the client stored under key, creating and
// connecting it on first use. At most one client exists per key until
// the manager is closed.
func (m *Manager) GetOrCreate(key string, opts Options) (Client, error) {
	if key == "" {
		key = DefaultKey
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrClosed
	}
	if c, ok := m.clients[key]; ok {
		return c, nil
	}

	target, err := ResolveURL(opts, key)
	if err != nil {
		m.log.Warn().Err(err).Str("key", key).Msg("no event server available")
		return nil, err
	}

	var c Client
	switch target.Scheme {
	case "ws", "wss":
		c = newWSClient(target.String(), opts, m.log)
	case "nats", "tls":
		nc, err := newNATSClient(target.String(), opts, m.log)
		if err != nil {
			return nil, err
		}
		c = nc
	default:
		return nil, fmt.Errorf("%w: unsupported scheme %q", ErrUnavailable, target.Scheme)
	}

	m.clients[key] = c
	m.log.Info().Str("key", key).Str("client_id", c.ID()).Str("url", target.Redacted()).Msg("event client created")
	return c, nil
}

// Close tears down every client. Later GetOrCreate calls fail with
// ErrClosed.
func (m *Manager) Close() error {
	m.mu.Lock()
	clients := m.clients
	m.clients = make(map[string]Client)
	m.closed = true
	m.mu.Unlock()

	var errs []error
	for key, c := range clients {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", key, err))
		}
	}
	return errors.Join(errs...)
}

// ResolveURL picks the event server address. The explicit override wins
// over the origin; http(s) schemes become ws(s) and the socket path is
// appended when the address has none.
func ResolveURL(opts Options, key string) (*url.URL, error) {
	raw := strings.TrimSpace(opts.URL)
	if raw != "" {
		endpoints := splitEndpoints(raw)
		switch len(endpoints) {
		case 0:
			raw = ""
		case 1:
			raw = endpoints[0]
		default:
			affinity := opts.AffinityKey
			if affinity == "" {
				affinity = key
			}
			raw = hashing.NewRing(0, endpoints...).Get(affinity)
		}
	}
	fromOrigin := false
	if raw == "" {
		raw = strings.TrimSpace(opts.Origin)
		fromOrigin = true
	}
	if raw == "" {
		return nil, ErrUnavailable
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss", "nats", "tls":
	default:
		return nil, fmt.Errorf("%w: unsupported scheme %q", ErrUnavailable, u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%w: missing host in %q", ErrUnavailable, raw)
	}
	if (u.Scheme == "ws" || u.Scheme == "wss") && (fromOrigin || u.Path == "" || u.Path == "/") {
		path := opts.Path
		if path == "" {
			path = "/socket"
		}
		u.Path = "/" + strings.TrimPrefix(path, "/")
	}
	return u, nil
}

func splitEndpoints(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
