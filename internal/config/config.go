package config

import "time"

// Config holds gateway configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`

	DatabasePath string `mapstructure:"database_path" yaml:"database_path"`

	// JWTSecret signs the tokens the auth service issues; the gateway only
	// validates them.
	JWTSecret string `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	JWTIssuer string `mapstructure:"jwt_issuer" yaml:"jwt_issuer"`

	// DispatchToken authorizes the control plane to post pass-through events
	// on the internal dispatch endpoint.
	DispatchToken string `mapstructure:"dispatch_token" yaml:"dispatch_token"`

	// RedisURL enables the Redis pub/sub backbone when more than one gateway
	// process runs. Empty means in-process fan-out only.
	RedisURL string `mapstructure:"redis_url" yaml:"redis_url"`

	// RecoverLimit caps how many missed messages a single recover request
	// may replay.
	RecoverLimit int `mapstructure:"recover_limit" yaml:"recover_limit"`

	// SendBuffer is the per-connection outbound event buffer size.
	SendBuffer int `mapstructure:"send_buffer" yaml:"send_buffer"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              ":8080",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		LogLevel:          "info",
		DatabasePath:      "gateway.db",
		JWTIssuer:         "strandchat",
		RecoverLimit:      200,
		SendBuffer:        64,
	}
}
