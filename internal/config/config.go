package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	// ApiURL is the REST origin, e.g. https://wall.example.com.
	ApiURL string
	// SocketURL is the WebSocket origin, e.g. wss://wall.example.com/ws.
	SocketURL string
	// AuthType selects the backend environment: "employee" or "admin".
	AuthType string
	// Token is sent raw in the Authorization header, no bearer prefix.
	Token string
	// AdminToken is required when AuthType is "admin".
	AdminToken string

	// DiagnosticsAddr serves /debug/vars when non-empty.
	DiagnosticsAddr string
	AllowedOrigins  []string

	ResyncInterval time.Duration
	PendingTimeout time.Duration
}

func NewConfig(apiURL, socketURL, authType, token, adminToken string) (*Config, error) {
	if apiURL == "" {
		return nil, fmt.Errorf("api URL cannot be empty")
	}
	if socketURL == "" {
		return nil, fmt.Errorf("socket URL cannot be empty")
	}
	if authType != "employee" && authType != "admin" {
		return nil, fmt.Errorf("auth type must be employee or admin, got %q", authType)
	}
	if token == "" {
		return nil, fmt.Errorf("token cannot be empty")
	}
	if authType == "admin" && adminToken == "" {
		return nil, fmt.Errorf("admin token cannot be empty for admin auth")
	}

	return &Config{
		ApiURL:     apiURL,
		SocketURL:  socketURL,
		AuthType:   authType,
		Token:      token,
		AdminToken: adminToken,
	}, nil
}

// LoadConfig reads a yaml config file, with CHATKIT_-prefixed environment
// variables overriding file values.
func LoadConfig(filename string) (*viper.Viper, error) {
	v := viper.New()

	v.SetConfigName(filename)
	v.SetConfigType("yaml")
	v.AddConfigPath("config")
	v.AddConfigPath(".")

	v.SetEnvPrefix("CHATKIT")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil, fmt.Errorf("config file %q not found", filename)
		}
		return nil, err
	}

	return v, nil
}

// ParseConfig materializes and validates a Config from loaded settings.
func ParseConfig(v *viper.Viper) (*Config, error) {
	cfg, err := NewConfig(
		v.GetString("api_url"),
		v.GetString("socket_url"),
		v.GetString("auth_type"),
		v.GetString("token"),
		v.GetString("admin_token"),
	)
	if err != nil {
		return nil, err
	}

	cfg.DiagnosticsAddr = v.GetString("diagnostics_addr")
	cfg.AllowedOrigins = v.GetStringSlice("allowed_origins")
	cfg.ResyncInterval = v.GetDuration("resync_interval")
	cfg.PendingTimeout = v.GetDuration("pending_timeout")

	return cfg, nil
}
