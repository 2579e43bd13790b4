package config

import "time"

// SecurityConfig controls the sender-identity trust policy.
type SecurityConfig struct {
	// StrictSender binds send/mark-read payload identities to the
	// connection's announced identity instead of trusting the payload.
	StrictSender bool `mapstructure:"strict_sender" yaml:"strict_sender"`
	// JWTSecret, when set, requires announce events to carry a token
	// whose subject matches the announced user id.
	JWTSecret string `mapstructure:"jwt_secret" yaml:"jwt_secret,omitempty"`
}

// RedisConfig enables the cross-process broadcast bridge.
type RedisConfig struct {
	// Addr is the Redis host:port. Empty keeps broadcasts process-local.
	Addr string `mapstructure:"addr" yaml:"addr,omitempty"`
}

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`
	DatabasePath      string        `mapstructure:"database_path" yaml:"database_path"`
	// WSMsgRateLimit caps inbound events per connection per minute.
	WSMsgRateLimit int `mapstructure:"ws_msg_rate_limit" yaml:"ws_msg_rate_limit"`

	Security SecurityConfig `mapstructure:"security" yaml:"security"`
	Redis    RedisConfig    `mapstructure:"redis" yaml:"redis"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              ":8080",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		LogLevel:          "info",
		DatabasePath:      "campuslink.db",
		WSMsgRateLimit:    120,
	}
}
