package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"

	"livechat-client/internal/db"
	"livechat-client/internal/repository"
)

var ErrNotFound = errors.New("storage: key not found")

// ActiveTargetKey holds the last active conversation target.
const ActiveTargetKey = "chatActiveTarget"

// Store is the client side key/value store that survives restarts.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Close() error
}

// Open picks a backend from the URL scheme. An empty URL gives an
// in-memory store.
func Open(ctx context.Context, rawURL string) (Store, error) {
	if rawURL == "" {
		return NewMemoryStore(), nil
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse storage url: %w", err)
	}
	switch u.Scheme {
	case "memory":
		return NewMemoryStore(), nil
	case "redis", "rediss":
		// namespace is ours; go-redis rejects unknown options
		q := u.Query()
		namespace := q.Get("namespace")
		q.Del("namespace")
		u.RawQuery = q.Encode()
		return NewRedisStore(ctx, u.String(), namespace)
	case "postgres", "postgresql":
		pool, err := db.Connect(ctx, rawURL)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		repo := repository.NewPreferenceRepo(pool)
		if err := repo.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, err
		}
		return &postgresStore{repo: repo, close: pool.Close}, nil
	default:
		return nil, fmt.Errorf("unsupported storage scheme %q", u.Scheme)
	}
}

type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]string)}
}

func (m *MemoryStore) Get(_ context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (m *MemoryStore) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	m.data[key] = value
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Close() error { return nil }

type postgresStore struct {
	repo  repository.PreferenceRepo
	close func()
}

func (p *postgresStore) Get(ctx context.Context, key string) (string, error) {
	v, err := p.repo.Get(ctx, key)
	if errors.Is(err, repository.ErrNoPreference) {
		return "", ErrNotFound
	}
	return v, err
}

func (p *postgresStore) Set(ctx context.Context, key, value string) error {
	return p.repo.Upsert(ctx, key, value)
}

func (p *postgresStore) Close() error {
	p.close()
	return nil
}
