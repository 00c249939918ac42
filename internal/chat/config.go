// Package chat provides configuration helpers that define runtime defaults,
// file loading, and environment overrides for the LineRelay service.
package chat

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultListenAddr      = ":50000"
	defaultUsersFile       = "users.txt"
	defaultAdminLabel      = "Admin"
	defaultMaxLineBytes    = 4096
	defaultShutdownSeconds = 5
)

// WebSocketConfig holds the settings for the optional WebSocket gateway.
type WebSocketConfig struct {
	Enabled        bool     `yaml:"enabled"`
	ListenAddr     string   `yaml:"listen_addr"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// Config holds the server configuration settings.
type Config struct {
	// ListenAddr is the TCP address the chat server binds.
	ListenAddr string `yaml:"listen_addr"`

	// UsersFile is the path of the "username:credential" file.
	UsersFile string `yaml:"users_file"`

	// AdminLabel prefixes operator broadcasts sent with the SEND command.
	AdminLabel string `yaml:"admin_label"`

	// MaxLineBytes bounds a single protocol line; longer lines terminate
	// the offending session.
	MaxLineBytes int `yaml:"max_line_bytes"`

	// ShutdownTimeoutSeconds bounds how long Shutdown waits for connection
	// goroutines to drain.
	ShutdownTimeoutSeconds int `yaml:"shutdown_timeout_seconds"`

	WebSocket WebSocketConfig `yaml:"websocket"`
}

// DefaultConfig returns a Config populated with default values for all
// settings. The WebSocket gateway is disabled by default.
func DefaultConfig() Config {
	return Config{
		ListenAddr:             defaultListenAddr,
		UsersFile:              defaultUsersFile,
		AdminLabel:             defaultAdminLabel,
		MaxLineBytes:           defaultMaxLineBytes,
		ShutdownTimeoutSeconds: defaultShutdownSeconds,
		WebSocket: WebSocketConfig{
			Enabled:    false,
			ListenAddr: ":8080",
			AllowedOrigins: []string{
				"http://localhost:8080",
			},
		},
	}
}

// ShutdownTimeout returns the shutdown drain window as a Duration.
func (c Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutSeconds) * time.Second
}

func sanitizeConfig(cfg Config) Config {
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = defaultListenAddr
	}
	if cfg.UsersFile == "" {
		cfg.UsersFile = defaultUsersFile
	}
	if cfg.AdminLabel == "" {
		cfg.AdminLabel = defaultAdminLabel
	}
	if cfg.MaxLineBytes <= 0 {
		cfg.MaxLineBytes = defaultMaxLineBytes
	}
	if cfg.ShutdownTimeoutSeconds <= 0 {
		cfg.ShutdownTimeoutSeconds = defaultShutdownSeconds
	}
	if cfg.WebSocket.ListenAddr == "" {
		cfg.WebSocket.ListenAddr = ":8080"
	}
	return cfg
}

// LoadConfigFile reads a YAML configuration file and fills any missing
// settings with defaults.
func LoadConfigFile(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return sanitizeConfig(cfg), nil
}

// ApplyEnv overlays CHAT_* environment variables on cfg. Unset or
// unparseable variables leave the existing value in place.
func ApplyEnv(cfg Config) Config {
	if addr := os.Getenv("CHAT_LISTEN_ADDR"); addr != "" {
		cfg.ListenAddr = addr
	}
	if path := os.Getenv("CHAT_USERS_FILE"); path != "" {
		cfg.UsersFile = path
	}
	if label := os.Getenv("CHAT_ADMIN_LABEL"); label != "" {
		cfg.AdminLabel = label
	}
	if raw := os.Getenv("CHAT_MAX_LINE_BYTES"); raw != "" {
		cfg.MaxLineBytes = parseIntValue(raw, cfg.MaxLineBytes)
	}
	if raw := os.Getenv("CHAT_SHUTDOWN_TIMEOUT_SECONDS"); raw != "" {
		cfg.ShutdownTimeoutSeconds = parseIntValue(raw, cfg.ShutdownTimeoutSeconds)
	}
	if raw := os.Getenv("CHAT_WS_ENABLED"); raw != "" {
		if enabled, err := strconv.ParseBool(raw); err == nil {
			cfg.WebSocket.Enabled = enabled
		}
	}
	if addr := os.Getenv("CHAT_WS_LISTEN_ADDR"); addr != "" {
		cfg.WebSocket.ListenAddr = addr
	}
	if origins := os.Getenv("CHAT_WS_ALLOWED_ORIGINS"); origins != "" {
		cfg.WebSocket.AllowedOrigins = parseOrigins(origins)
	}
	return sanitizeConfig(cfg)
}

func parseOrigins(origins string) []string {
	parts := strings.Split(origins, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func parseIntValue(value string, defaultValue int) int {
	if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
		return parsed
	}
	return defaultValue
}
