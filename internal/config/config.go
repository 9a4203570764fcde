package config

import (
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

var (
	ErrMissingEndpoint = errors.New("config: neither CHAT_SOCKET_URL nor CHAT_ORIGIN is set")
	ErrMissingAPI      = errors.New("config: neither CHAT_API_URL nor CHAT_ORIGIN is set")
)

type Config struct {
	// SocketURL overrides the origin-derived event server address. It may
	// hold several comma separated URLs.
	SocketURL  string
	Origin     string
	SocketPath string
	APIBaseURL string

	AuthToken string
	AuthKey   string

	Username string
	Role     string
	Roles    []string

	StorageURL string
	LogLevel   string
	Env        string

	SessionPollInterval  time.Duration
	SessionPollAttempts  int
	ReconnectInterval    time.Duration
	ContactsRefreshDelay time.Duration
	ToastDuration        time.Duration
	MatchRoute           string

	SendBurst  int
	SendRefill time.Duration
}

// Load reads .env (if present), then the optional config file and the
// process environment. Environment values win over the file.
func Load(configFile string) (*Config, error) {
	log.Println("[CONFIG] Attempting to load .env file...")
	if err := godotenv.Load(); err != nil {
		log.Println("[CONFIG] No .env file found, relying on system environment variables")
	}

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		log.Printf("[CONFIG] Loaded %s", configFile)
	}

	cfg := &Config{
		SocketURL:            strings.TrimSpace(v.GetString("CHAT_SOCKET_URL")),
		Origin:               strings.TrimSpace(v.GetString("CHAT_ORIGIN")),
		SocketPath:           v.GetString("CHAT_SOCKET_PATH"),
		APIBaseURL:           strings.TrimSpace(v.GetString("CHAT_API_URL")),
		AuthToken:            v.GetString("CHAT_AUTH_TOKEN"),
		AuthKey:              v.GetString("AUTH_KEY"),
		Username:             strings.TrimSpace(v.GetString("CHAT_USERNAME")),
		Role:                 strings.TrimSpace(v.GetString("CHAT_ROLE")),
		Roles:                splitList(v.GetString("CHAT_ROLES")),
		StorageURL:           v.GetString("CHAT_STORAGE_URL"),
		LogLevel:             v.GetString("LOG_LEVEL"),
		Env:                  v.GetString("APP_ENV"),
		SessionPollInterval:  v.GetDuration("SESSION_POLL_INTERVAL"),
		SessionPollAttempts:  v.GetInt("SESSION_POLL_ATTEMPTS"),
		ReconnectInterval:    v.GetDuration("RECONNECT_INTERVAL"),
		ContactsRefreshDelay: v.GetDuration("CONTACTS_REFRESH_DELAY"),
		ToastDuration:        v.GetDuration("TOAST_DURATION"),
		MatchRoute:           v.GetString("MATCH_ROUTE"),
		SendBurst:            v.GetInt("SEND_BURST"),
		SendRefill:           v.GetDuration("SEND_REFILL"),
	}

	if cfg.SocketURL == "" && cfg.Origin == "" {
		return nil, ErrMissingEndpoint
	}
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = cfg.Origin
	}
	if cfg.APIBaseURL == "" {
		return nil, ErrMissingAPI
	}
	if _, err := url.Parse(cfg.APIBaseURL); err != nil {
		return nil, fmt.Errorf("invalid CHAT_API_URL: %w", err)
	}

	log.Printf("[CONFIG] Environment: %s", cfg.Env)
	if cfg.SocketURL != "" {
		log.Printf("[CONFIG] Event server override: %s", cfg.SocketURL)
	} else {
		log.Printf("[CONFIG] Event server derived from origin: %s", cfg.Origin)
	}
	if cfg.StorageURL != "" {
		log.Printf("[CONFIG] Storage backend: %s", MaskURL(cfg.StorageURL))
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("CHAT_SOCKET_PATH", "/socket")
	v.SetDefault("CHAT_ROLES", "Player,Coordinator")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("SESSION_POLL_INTERVAL", "2s")
	v.SetDefault("SESSION_POLL_ATTEMPTS", 0)
	v.SetDefault("RECONNECT_INTERVAL", "3s")
	v.SetDefault("CONTACTS_REFRESH_DELAY", "300ms")
	v.SetDefault("TOAST_DURATION", "5s")
	v.SetDefault("MATCH_ROUTE", "/live-match")
	v.SetDefault("SEND_BURST", 5)
	v.SetDefault("SEND_REFILL", "500ms")
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// MaskURL hides credentials in a connection string before it is logged.
func MaskURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "invalid-url-format"
	}
	if u.User != nil {
		u.User = url.UserPassword("****", "****")
	}
	return u.String()
}
