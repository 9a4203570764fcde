package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"livechat-client/internal/middleware"
	"livechat-client/internal/types"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

var ErrStatus = errors.New("api: unexpected status")

// Client calls the chat backend REST endpoints. A non-empty token is
// attached to every request by the transport.
type Client struct {
	base   *url.URL
	http   *http.Client
	log    zerolog.Logger
	flight singleflight.Group
}

func New(baseURL, token string, httpClient *http.Client, log zerolog.Logger) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if token != "" {
		wrapped := *httpClient
		wrapped.Transport = middleware.Authenticate(httpClient.Transport, token, log)
		httpClient = &wrapped
	}
	return &Client{base: u, http: httpClient, log: log}, nil
}

func (c *Client) Session(ctx context.Context) (types.SessionResponse, error) {
	var out types.SessionResponse
	err := c.get(ctx, "/api/session", nil, &out)
	return out, err
}

// History returns the room history as sent by the server, newest first.
func (c *Client) History(ctx context.Context, room string) ([]types.HistoryEntry, error) {
	var out types.HistoryResponse
	if err := c.get(ctx, "/api/chat/history", url.Values{"room": {room}}, &out); err != nil {
		return nil, err
	}
	return out.History, nil
}

// Contacts lists conversation partners of username. Concurrent callers for
// the same user share one request.
func (c *Client) Contacts(ctx context.Context, username string) ([]types.Contact, error) {
	v, err, shared := c.flight.Do("contacts:"+username, func() (any, error) {
		var out types.ContactsResponse
		if err := c.get(ctx, "/api/chat/contacts", url.Values{"username": {username}}, &out); err != nil {
			return nil, err
		}
		return out.Contacts, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		c.log.Debug().Str("username", username).Msg("contacts request shared")
	}
	return v.([]types.Contact), nil
}

func (c *Client) Users(ctx context.Context, role string) ([]types.UserDTO, error) {
	var out types.UsersResponse
	if err := c.get(ctx, "/api/users", url.Values{"role": {role}}, &out); err != nil {
		return nil, err
	}
	return out.Users, nil
}

// SearchUsers filters the users of role by a case-insensitive substring of
// the username. self is never returned.
func (c *Client) SearchUsers(ctx context.Context, role, query, self string) ([]types.UserDTO, error) {
	users, err := c.Users(ctx, role)
	if err != nil {
		return nil, err
	}
	query = strings.ToLower(strings.TrimSpace(query))
	out := make([]types.UserDTO, 0, len(users))
	for _, u := range users {
		if u.Username == self {
			continue
		}
		if query == "" || strings.Contains(strings.ToLower(u.Username), query) {
			out = append(out, u)
		}
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	u := *c.base
	u.Path = c.base.Path + path
	u.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Debug().Err(err).Str("path", path).Msg("request failed")
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.log.Debug().Int("status", resp.StatusCode).Str("path", path).Msg("non-success status")
		return fmt.Errorf("%w: GET %s returned %d", ErrStatus, path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
