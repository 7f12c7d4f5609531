package config

import (
	"time"

	"github.com/spf13/viper"
)

// ServerConfig holds the HTTP server settings.
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

// LedgerConfig holds the ledger-specific settings: which scatter strategy
// the directory uses and which queue the notification sink feeds.
type LedgerConfig struct {
	ScatterStrategy   string
	NotificationQueue string
}

// LoadServerConfig returns server configuration with defaults.
func LoadServerConfig() *ServerConfig {
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.read_timeout", 15*time.Second)
	viper.SetDefault("server.write_timeout", 15*time.Second)
	viper.SetDefault("server.idle_timeout", 60*time.Second)
	viper.SetDefault("server.request_timeout", 60*time.Second)
	viper.SetDefault("server.shutdown_timeout", 30*time.Second)

	return &ServerConfig{
		Port:            viper.GetString("server.port"),
		ReadTimeout:     viper.GetDuration("server.read_timeout"),
		WriteTimeout:    viper.GetDuration("server.write_timeout"),
		IdleTimeout:     viper.GetDuration("server.idle_timeout"),
		RequestTimeout:  viper.GetDuration("server.request_timeout"),
		ShutdownTimeout: viper.GetDuration("server.shutdown_timeout"),
	}
}

// LoadLedgerConfig returns ledger configuration with defaults.
func LoadLedgerConfig() *LedgerConfig {
	viper.SetDefault("ledger.scatter_strategy", "sequential")
	viper.SetDefault("ledger.notification_queue", "notification_events")

	return &LedgerConfig{
		ScatterStrategy:   viper.GetString("ledger.scatter_strategy"),
		NotificationQueue: viper.GetString("ledger.notification_queue"),
	}
}
