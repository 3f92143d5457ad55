package config

import (
	"errors"
	"strings"
	"time"
)

// Config holds service configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`
	LogFormat         string        `mapstructure:"log_format" yaml:"log_format"`
	DatabasePath      string        `mapstructure:"database_path" yaml:"database_path"`
	APISecret         string        `mapstructure:"api_secret" yaml:"api_secret"`
	APIIssuer         string        `mapstructure:"api_issuer" yaml:"api_issuer"`
	// AllowedOrigins are extra browser origins accepted on /ws when no API
	// secret is set. Same-origin connections are always accepted.
	AllowedOrigins []string `mapstructure:"allowed_origins" yaml:"allowed_origins"`

	Relay Relay `mapstructure:"relay" yaml:"relay"`
}

// Relay configures the chat relay connection.
type Relay struct {
	URL      string `mapstructure:"url" yaml:"url"`
	Username string `mapstructure:"username" yaml:"username"`
	// Token is the relay OAuth token. Prefer STREAMCHAT_RELAY_TOKEN over the file.
	Token   string `mapstructure:"token" yaml:"token"`
	Channel string `mapstructure:"channel" yaml:"channel"`

	ReconnectDelay       time.Duration `mapstructure:"reconnect_delay" yaml:"reconnect_delay"`
	MaxReconnectDelay    time.Duration `mapstructure:"max_reconnect_delay" yaml:"max_reconnect_delay"`
	BackoffMultiplier    float64       `mapstructure:"backoff_multiplier" yaml:"backoff_multiplier"`
	MaxReconnectAttempts int           `mapstructure:"max_reconnect_attempts" yaml:"max_reconnect_attempts"`

	HistorySize  int           `mapstructure:"history_size" yaml:"history_size"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	SendRate     float64       `mapstructure:"send_rate" yaml:"send_rate"`
	SendBurst    int           `mapstructure:"send_burst" yaml:"send_burst"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		// Loopback only: without an API secret anyone reaching the port can
		// chat with the configured relay account.
		Addr:              "127.0.0.1:8080",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		LogLevel:          "info",
		LogFormat:         "console",
		DatabasePath:      "",
		APIIssuer:         "streamchat",
		Relay: Relay{
			URL:               "wss://irc-ws.chat.twitch.tv:443",
			Channel:           "mst3k",
			ReconnectDelay:    5 * time.Second,
			MaxReconnectDelay: time.Minute,
			BackoffMultiplier: 2,
			HistorySize:       500,
			WriteTimeout:      10 * time.Second,
			// Twitch allows 20 messages per 30 seconds for regular users.
			SendRate:  20.0 / 30.0,
			SendBurst: 1,
		},
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
func (c *Config) UpdateFrom(other Config) {
	if other.Addr != "" {
		c.Addr = other.Addr
	}
	if other.ReadHeaderTimeout != 0 {
		c.ReadHeaderTimeout = other.ReadHeaderTimeout
	}
	if other.ShutdownTimeout != 0 {
		c.ShutdownTimeout = other.ShutdownTimeout
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.LogFormat != "" {
		c.LogFormat = other.LogFormat
	}
	if other.DatabasePath != "" {
		c.DatabasePath = other.DatabasePath
	}
	if other.APISecret != "" {
		c.APISecret = other.APISecret
	}
	if other.APIIssuer != "" {
		c.APIIssuer = other.APIIssuer
	}
	if len(other.AllowedOrigins) > 0 {
		c.AllowedOrigins = other.AllowedOrigins
	}
	if other.Relay.Username != "" {
		c.Relay.Username = other.Relay.Username
	}
	if other.Relay.Token != "" {
		c.Relay.Token = other.Relay.Token
	}
	if other.Relay.Channel != "" {
		c.Relay.Channel = other.Relay.Channel
	}
	if other.Relay.URL != "" {
		c.Relay.URL = other.Relay.URL
	}
	if other.Relay.ReconnectDelay != 0 {
		c.Relay.ReconnectDelay = other.Relay.ReconnectDelay
	}
	if other.Relay.MaxReconnectDelay != 0 {
		c.Relay.MaxReconnectDelay = other.Relay.MaxReconnectDelay
	}
	if other.Relay.BackoffMultiplier != 0 {
		c.Relay.BackoffMultiplier = other.Relay.BackoffMultiplier
	}
	if other.Relay.MaxReconnectAttempts != 0 {
		c.Relay.MaxReconnectAttempts = other.Relay.MaxReconnectAttempts
	}
	if other.Relay.HistorySize != 0 {
		c.Relay.HistorySize = other.Relay.HistorySize
	}
	if other.Relay.WriteTimeout != 0 {
		c.Relay.WriteTimeout = other.Relay.WriteTimeout
	}
	if other.Relay.SendRate != 0 {
		c.Relay.SendRate = other.Relay.SendRate
	}
	if other.Relay.SendBurst != 0 {
		c.Relay.SendBurst = other.Relay.SendBurst
	}
}

// Validate checks the values needed to reach the relay.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Relay.Username) == "" {
		errs = append(errs, errors.New("relay.username is required"))
	}
	if strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(c.Relay.Channel), "#")) == "" {
		errs = append(errs, errors.New("relay.channel is required"))
	}
	if c.Relay.URL == "" {
		errs = append(errs, errors.New("relay.url is required"))
	}
	return errors.Join(errs...)
}
