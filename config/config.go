package config

import "time"

// Config contains all application settings
type Config struct {
	BindPort      int    `mapstructure:"PORT" yaml:"port"`
	BindHost      string `mapstructure:"HOST" yaml:"host"`
	DatabaseURL   string `mapstructure:"DATABASE_URL" yaml:"database_url"`
	NATSServerURL string `mapstructure:"NATS_URL" yaml:"nats_url"`

	// RelayToken seeds the token store when it holds no secret yet.
	RelayToken string `mapstructure:"RELAY_TOKEN" yaml:"relay_token"`

	AckTimeout          time.Duration `mapstructure:"ACK_TIMEOUT" yaml:"ack_timeout"`
	RegistrationTimeout int           `mapstructure:"REGISTRATION_TIMEOUT" yaml:"registration_timeout"`
	SessionTimeout      int           `mapstructure:"SESSION_TIMEOUT" yaml:"session_timeout"`
	PingInterval        int           `mapstructure:"PING_INTERVAL" yaml:"ping_interval"`
	PongTimeout         int           `mapstructure:"PONG_TIMEOUT" yaml:"pong_timeout"`

	LogLevel  string `mapstructure:"LOG_LEVEL" yaml:"log_level"`
	LogFormat string `mapstructure:"LOG_FORMAT" yaml:"log_format"`

	MigrateOnStart bool `mapstructure:"MIGRATE_ON_START" yaml:"migrate_on_start"`

	// Version
	BuildVersion string `yaml:"-"`
	BuildHash    string `yaml:"-"`
	BuildTime    string `yaml:"-"`
}

// Seconds converts one of the integer second settings.
func Seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
