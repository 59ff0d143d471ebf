package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	DefaultAPIURL      = "http://127.0.0.1:10325"
	DefaultLogLevel    = "info"
	DefaultHTTPTimeout = "10s"
	DefaultTTLLocale   = "en"
	DefaultTTLTick     = "1s"
	DefaultChannel     = ""
	DefaultEcho        = true
	DefaultReconnect   = ReconnectOff
	DefaultListen      = ":10325"
	DefaultAutoExpire  = "1w"

	ReconnectOff     = "off"
	ReconnectBackoff = "backoff"

	fileName        = ".drop.toml"
	configDirEnvKey = "DROP_CONFIG_DIR"
)

// TTLConfig controls countdown rendering.
type TTLConfig struct {
	Locale string `toml:"locale"`
	Tick   string `toml:"tick"`
}

// SyncConfig controls the push channel.
type SyncConfig struct {
	Echo      bool   `toml:"echo"`
	Channel   string `toml:"channel"`
	Reconnect string `toml:"reconnect"`
}

// ServerConfig configures the reference backend started by `drop srv`.
type ServerConfig struct {
	Listen     string `toml:"listen"`
	DataDir    string `toml:"data_dir"`
	Password   string `toml:"password"`
	AutoExpire string `toml:"auto_expire"`
}

// Config defines runtime configuration for drop.
type Config struct {
	APIURL      string       `toml:"api_url"`
	Token       string       `toml:"token"`
	LogLevel    string       `toml:"log_level"`
	HTTPTimeout string       `toml:"http_timeout"`
	TTL         TTLConfig    `toml:"ttl"`
	Sync        SyncConfig   `toml:"sync"`
	Server      ServerConfig `toml:"server"`
}

// Default returns default configuration values.
func Default() Config {
	return Config{
		APIURL:      DefaultAPIURL,
		LogLevel:    DefaultLogLevel,
		HTTPTimeout: DefaultHTTPTimeout,
		TTL: TTLConfig{
			Locale: DefaultTTLLocale,
			Tick:   DefaultTTLTick,
		},
		Sync: SyncConfig{
			Echo:      DefaultEcho,
			Channel:   DefaultChannel,
			Reconnect: DefaultReconnect,
		},
		Server: ServerConfig{
			Listen:     DefaultListen,
			AutoExpire: DefaultAutoExpire,
		},
	}
}

func loadFile(path string, cfg *Config) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if info.IsDir() {
		return nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return nil
}

var allowedKeys = []string{
	"api_url",
	"token",
	"log_level",
	"http_timeout",
	"ttl.locale",
	"ttl.tick",
	"sync.echo",
	"sync.channel",
	"sync.reconnect",
	"server.listen",
	"server.data_dir",
	"server.password",
	"server.auto_expire",
}

// AllowedKeys returns the set of valid config keys.
func AllowedKeys() []string {
	return allowedKeys
}

// IsAllowedKey checks if a key is a valid config key.
func IsAllowedKey(key string) bool {
	for _, k := range allowedKeys {
		if k == key {
			return true
		}
	}
	return false
}

// Get returns the value of a config key.
func (c *Config) Get(key string) (string, error) {
	switch key {
	case "api_url":
		return c.APIURL, nil
	case "token":
		return c.Token, nil
	case "log_level":
		return c.LogLevel, nil
	case "http_timeout":
		return c.HTTPTimeout, nil
	case "ttl.locale":
		return c.TTL.Locale, nil
	case "ttl.tick":
		return c.TTL.Tick, nil
	case "sync.echo":
		return strconv.FormatBool(c.Sync.Echo), nil
	case "sync.channel":
		return c.Sync.Channel, nil
	case "sync.reconnect":
		return c.Sync.Reconnect, nil
	case "server.listen":
		return c.Server.Listen, nil
	case "server.data_dir":
		return c.Server.DataDir, nil
	case "server.password":
		return c.Server.Password, nil
	case "server.auto_expire":
		return c.Server.AutoExpire, nil
	default:
		return "", fmt.Errorf("unknown key: %s", key)
	}
}

// Timeout returns the parsed request timeout.
func (c *Config) Timeout() time.Duration {
	d, err := ParseDuration(c.HTTPTimeout)
	if err != nil || d <= 0 {
		d, _ = ParseDuration(DefaultHTTPTimeout)
	}
	return d
}

// TickInterval returns the parsed TTL refresh interval.
func (c *Config) TickInterval() time.Duration {
	d, err := ParseDuration(c.TTL.Tick)
	if err != nil || d <= 0 {
		return time.Second
	}
	return d
}

// AutoExpire returns the parsed server expiry window. Zero disables expiry.
func (c *Config) AutoExpire() (time.Duration, error) {
	value := strings.TrimSpace(c.Server.AutoExpire)
	if value == "" || value == "0" || value == "off" {
		return 0, nil
	}
	return ParseDuration(value)
}

// GlobalPath returns the path to the global config file.
func GlobalPath() (string, error) {
	if dir := strings.TrimSpace(os.Getenv(configDirEnvKey)); dir != "" {
		return filepath.Join(dir, fileName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, fileName), nil
}

// SetKey reads the TOML file at path, sets key=value, and writes it back.
func SetKey(path, key, value string) error {
	if !IsAllowedKey(key) {
		return fmt.Errorf("unknown key: %s", key)
	}

	data := make(map[string]any)
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &data); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	}

	parsedValue, err := parseSetValue(key, value)
	if err != nil {
		return err
	}
	if err := setNestedKey(data, strings.Split(key, "."), parsedValue); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	// The file may hold a token or password.
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(data)
}

// Load reads the global config file and applies env overrides.
func Load() (*Config, error) {
	cfg := Default()

	path, err := GlobalPath()
	if err == nil {
		if err := loadFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	if apiURL := strings.TrimSpace(os.Getenv("DROP_API_URL")); apiURL != "" {
		cfg.APIURL = apiURL
	}
	if token := strings.TrimSpace(os.Getenv("DROP_TOKEN")); token != "" {
		cfg.Token = token
	}
	if timeout := strings.TrimSpace(os.Getenv("DROP_HTTP_TIMEOUT")); timeout != "" {
		cfg.HTTPTimeout = timeout
	}

	cfg.normalize()
	return &cfg, nil
}

func (c *Config) normalize() {
	c.APIURL = strings.TrimRight(strings.TrimSpace(c.APIURL), "/")
	if c.APIURL == "" {
		c.APIURL = DefaultAPIURL
	}
	c.TTL.Locale = strings.ToLower(strings.TrimSpace(c.TTL.Locale))
	if c.TTL.Locale == "" {
		c.TTL.Locale = DefaultTTLLocale
	}
	c.Sync.Reconnect = strings.ToLower(strings.TrimSpace(c.Sync.Reconnect))
	if c.Sync.Reconnect != ReconnectBackoff {
		c.Sync.Reconnect = ReconnectOff
	}
	if strings.TrimSpace(c.Server.Listen) == "" {
		c.Server.Listen = DefaultListen
	}
}

func parseSetValue(key, value string) (any, error) {
	value = strings.TrimSpace(value)
	switch key {
	case "sync.echo":
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return nil, fmt.Errorf("%s must be true or false", key)
		}
		return parsed, nil
	case "sync.reconnect":
		value = strings.ToLower(value)
		if value != ReconnectOff && value != ReconnectBackoff {
			return nil, fmt.Errorf("%s must be %q or %q", key, ReconnectOff, ReconnectBackoff)
		}
		return value, nil
	case "ttl.locale":
		value = strings.ToLower(value)
		if value != "en" && value != "zh" {
			return nil, fmt.Errorf("%s must be en or zh", key)
		}
		return value, nil
	case "http_timeout", "ttl.tick":
		if d, err := ParseDuration(value); err != nil || d <= 0 {
			return nil, fmt.Errorf("%s must be a positive duration", key)
		}
		return value, nil
	case "server.auto_expire":
		if value == "0" || value == "off" {
			return value, nil
		}
		if _, err := ParseDuration(value); err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		return value, nil
	case "log_level":
		value = strings.ToLower(value)
		switch value {
		case "debug", "info", "warn", "warning", "error":
			return value, nil
		}
		return nil, fmt.Errorf("%s must be one of debug, info, warn, error", key)
	default:
		return value, nil
	}
}

func setNestedKey(data map[string]any, parts []string, value any) error {
	if len(parts) == 0 {
		return fmt.Errorf("invalid config key")
	}
	if len(parts) == 1 {
		data[parts[0]] = value
		return nil
	}
	childRaw, ok := data[parts[0]]
	if !ok {
		child := map[string]any{}
		data[parts[0]] = child
		return setNestedKey(child, parts[1:], value)
	}
	child, ok := childRaw.(map[string]any)
	if !ok {
		return fmt.Errorf("cannot set nested key %q", strings.Join(parts, "."))
	}
	return setNestedKey(child, parts[1:], value)
}
