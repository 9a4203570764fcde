package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRequiresEndpoint(t *testing.T) {
	t.Setenv("CHAT_SOCKET_URL", "")
	t.Setenv("CHAT_ORIGIN", "")

	_, err := Load("")
	assert.ErrorIs(t, err, ErrMissingEndpoint)
}

func TestLoadRequiresAPIWithoutOrigin(t *testing.T) {
	t.Setenv("CHAT_SOCKET_URL", "ws://events:9000")
	t.Setenv("CHAT_ORIGIN", "")
	t.Setenv("CHAT_API_URL", "")

	_, err := Load("")
	assert.ErrorIs(t, err, ErrMissingAPI)

	t.Setenv("CHAT_API_URL", "http://api:8080")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "http://api:8080", cfg.APIBaseURL)
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CHAT_SOCKET_URL", "")
	t.Setenv("CHAT_ORIGIN", "https://chess.example.com")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "https://chess.example.com", cfg.APIBaseURL)
	assert.Equal(t, "/socket", cfg.SocketPath)
	assert.Equal(t, []string{"Player", "Coordinator"}, cfg.Roles)
	assert.Equal(t, 2*time.Second, cfg.SessionPollInterval)
	assert.Equal(t, 300*time.Millisecond, cfg.ContactsRefreshDelay)
	assert.Equal(t, "/live-match", cfg.MatchRoute)
	assert.Equal(t, 5, cfg.SendBurst)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "client.json")
	require.NoError(t, os.WriteFile(file, []byte(`{
		"chat_origin": "http://file.example.com",
		"chat_role": "Coordinator",
		"chat_username": "from-file"
	}`), 0o600))

	t.Setenv("CHAT_SOCKET_URL", "")
	t.Setenv("CHAT_ORIGIN", "")
	t.Setenv("CHAT_USERNAME", "  alice ")

	cfg, err := Load(file)
	require.NoError(t, err)

	assert.Equal(t, "http://file.example.com", cfg.Origin)
	assert.Equal(t, "Coordinator", cfg.Role)
	assert.Equal(t, "alice", cfg.Username)
}

func TestMaskURL(t *testing.T) {
	assert.Equal(t, "postgres://****:****@db:5432/chat", MaskURL("postgres://user:secret@db:5432/chat"))
	assert.Equal(t, "redis://localhost:6379/0", MaskURL("redis://localhost:6379/0"))
}
