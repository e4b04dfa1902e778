package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// NetworkConfig is one entry of the network table, keyed by chain code.
type NetworkConfig struct {
	Code     string `yaml:"code"`
	Server   string `yaml:"server"`
	Matcher  string `yaml:"matcher"`
	Explorer string `yaml:"explorer"`
}

// Config holds all application configuration
type Config struct {
	// HTTP server settings
	Port int `yaml:"port"`

	// Keeper bridge settings
	BridgeURL           string        `yaml:"bridgeURL"`
	PresenceInterval    time.Duration `yaml:"presenceInterval"`
	PresenceMaxAttempts int           `yaml:"presenceMaxAttempts"`
	UpdatePollInterval  time.Duration `yaml:"updatePollInterval"`

	// Node settings
	RequestTimeout time.Duration `yaml:"requestTimeout"`
	NodeRateLimit  float64       `yaml:"nodeRateLimit"`
	NodeRateBurst  int           `yaml:"nodeRateBurst"`
	MetaCacheTTL   time.Duration `yaml:"metaCacheTTL"`

	// Transaction settings
	DefaultFee           string `yaml:"defaultFee"`
	ScriptedFee          string `yaml:"scriptedFee"`
	SendEmptyArgsOnError bool   `yaml:"sendEmptyArgsOnCoercionError"`

	LogDir              string          `yaml:"logDir"`
	NotificationHistory int             `yaml:"notificationHistory"`
	Networks            []NetworkConfig `yaml:"networks"`
}

// NewConfig creates a new configuration with default values
func NewConfig() *Config {
	return &Config{
		Port:                8080,
		BridgeURL:           "http://127.0.0.1:8765",
		PresenceInterval:    time.Second,
		PresenceMaxAttempts: 2,
		UpdatePollInterval:  2 * time.Second,
		RequestTimeout:      30 * time.Second,
		NodeRateLimit:       10,
		NodeRateBurst:       5,
		MetaCacheTTL:        10 * time.Minute,
		DefaultFee:          "0.005",
		ScriptedFee:         "0.009",
		LogDir:              "logs",
		NotificationHistory: 50,
	}
}

// LoadFile overlays values from a YAML file. Missing keys keep their current value.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to unmarshal config data from %s: %w", path, err)
	}

	return nil
}

// LoadFromEnvironment loads configuration from environment variables
func (c *Config) LoadFromEnvironment() {
	if port := os.Getenv("KEEPER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Port = p
		}
	}

	if bridge := os.Getenv("KEEPER_BRIDGE_URL"); bridge != "" {
		c.BridgeURL = bridge
	}

	if interval := os.Getenv("KEEPER_PRESENCE_INTERVAL"); interval != "" {
		if ms, err := strconv.Atoi(interval); err == nil {
			c.PresenceInterval = time.Duration(ms) * time.Millisecond
		}
	}

	if attempts := os.Getenv("KEEPER_PRESENCE_ATTEMPTS"); attempts != "" {
		if a, err := strconv.Atoi(attempts); err == nil {
			c.PresenceMaxAttempts = a
		}
	}

	if interval := os.Getenv("KEEPER_UPDATE_INTERVAL"); interval != "" {
		if ms, err := strconv.Atoi(interval); err == nil {
			c.UpdatePollInterval = time.Duration(ms) * time.Millisecond
		}
	}

	if timeout := os.Getenv("KEEPER_REQUEST_TIMEOUT"); timeout != "" {
		if s, err := strconv.Atoi(timeout); err == nil {
			c.RequestTimeout = time.Duration(s) * time.Second
		}
	}

	if limit := os.Getenv("KEEPER_NODE_RATE_LIMIT"); limit != "" {
		if l, err := strconv.ParseFloat(limit, 64); err == nil {
			c.NodeRateLimit = l
		}
	}

	if ttl := os.Getenv("KEEPER_META_CACHE_TTL"); ttl != "" {
		if s, err := strconv.Atoi(ttl); err == nil {
			c.MetaCacheTTL = time.Duration(s) * time.Second
		}
	}

	if fee := os.Getenv("KEEPER_DEFAULT_FEE"); fee != "" {
		c.DefaultFee = fee
	}

	if fee := os.Getenv("KEEPER_SCRIPTED_FEE"); fee != "" {
		c.ScriptedFee = fee
	}

	if dir := os.Getenv("KEEPER_LOG_DIR"); dir != "" {
		c.LogDir = dir
	}

	if legacy := os.Getenv("KEEPER_SEND_EMPTY_ARGS_ON_ERROR"); legacy != "" {
		if b, err := strconv.ParseBool(legacy); err == nil {
			c.SendEmptyArgsOnError = b
		}
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got: %d", c.Port)
	}

	if _, err := url.ParseRequestURI(c.BridgeURL); err != nil {
		return fmt.Errorf("invalid bridge URL %q: %w", c.BridgeURL, err)
	}

	if c.PresenceInterval <= 0 {
		return fmt.Errorf("presence interval must be positive, got: %s", c.PresenceInterval)
	}

	if c.PresenceMaxAttempts < 0 {
		return fmt.Errorf("presence attempts must be non-negative, got: %d", c.PresenceMaxAttempts)
	}

	if c.UpdatePollInterval <= 0 {
		return fmt.Errorf("update poll interval must be positive, got: %s", c.UpdatePollInterval)
	}

	if c.NodeRateLimit <= 0 {
		return fmt.Errorf("node rate limit must be positive, got: %v", c.NodeRateLimit)
	}

	for name, fee := range map[string]string{"default fee": c.DefaultFee, "scripted fee": c.ScriptedFee} {
		d, err := decimal.NewFromString(fee)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", name, fee, err)
		}
		if !d.IsPositive() {
			return fmt.Errorf("%s must be positive, got: %s", name, fee)
		}
	}

	for _, n := range c.Networks {
		if len(n.Code) != 1 {
			return fmt.Errorf("network code must be a single character, got: %q", n.Code)
		}
		if n.Server == "" {
			return fmt.Errorf("network %s has no server", n.Code)
		}
	}

	return nil
}
