package session

import (
	"context"
	"errors"
	"time"

	"livechat-client/internal/auth"
	"livechat-client/internal/models"
	"livechat-client/internal/types"

	"github.com/rs/zerolog"
)

var ErrNotResolved = errors.New("session: identity not resolved")

// Source is the session endpoint.
type Source interface {
	Session(ctx context.Context) (types.SessionResponse, error)
}

// Poller asks the session endpoint for the identity at a fixed interval
// until it returns a known one.
type Poller struct {
	Source      Source
	Interval    time.Duration
	MaxAttempts int // 0 means until ctx is done
	Roles       []string
	Log         zerolog.Logger
}

func (p *Poller) Poll(ctx context.Context) (models.Identity, error) {
	interval := p.Interval
	if interval <= 0 {
		interval = 2 * time.Second
	}

	timer := time.NewTimer(0)
	defer timer.Stop()

	for attempt := 1; ; attempt++ {
		select {
		case <-ctx.Done():
			return models.Identity{}, ctx.Err()
		case <-timer.C:
		}

		resp, err := p.Source.Session(ctx)
		if err == nil {
			id := models.NewIdentity(resp.Username, resp.UserRole)
			if id.Known(p.Roles) {
				p.Log.Info().Str("username", id.Username).Str("role", id.Role).Int("attempt", attempt).Msg("session resolved")
				return id, nil
			}
		} else {
			p.Log.Debug().Err(err).Int("attempt", attempt).Msg("session poll failed")
		}

		if p.MaxAttempts > 0 && attempt >= p.MaxAttempts {
			return models.Identity{}, ErrNotResolved
		}
		timer.Reset(interval)
	}
}

// Resolver picks the identity from the first source that knows it: the
// configured identity, the auth token, then the session endpoint.
type Resolver struct {
	Preset  models.Identity
	Token   string
	AuthKey string
	Poller  *Poller
	Roles   []string
	Log     zerolog.Logger
}

func (r *Resolver) Resolve(ctx context.Context) (models.Identity, error) {
	if r.Preset.Known(r.Roles) {
		return r.Preset, nil
	}
	if r.Token != "" {
		id, err := auth.ParseIdentity(r.Token, r.AuthKey)
		switch {
		case err != nil:
			r.Log.Warn().Err(err).Msg("auth token rejected, falling back to session endpoint")
		case id.Known(r.Roles):
			return id, nil
		default:
			r.Log.Warn().Str("role", id.Role).Msg("auth token carries an unknown role")
		}
	}
	if r.Poller == nil {
		return models.Identity{}, ErrNotResolved
	}
	return r.Poller.Poll(ctx)
}
