package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig(t *testing.T) {
	tests := []struct {
		name                                      string
		apiURL, socketURL, authType, token, admin string
		wantErr                                   bool
	}{
		{"valid employee", "http://x", "ws://x", "employee", "t", "", false},
		{"valid admin", "http://x", "ws://x", "admin", "t", "at", false},
		{"missing api url", "", "ws://x", "employee", "t", "", true},
		{"missing socket url", "http://x", "", "employee", "t", "", true},
		{"bad auth type", "http://x", "ws://x", "superuser", "t", "", true},
		{"missing token", "http://x", "ws://x", "employee", "", "", true},
		{"admin without admin token", "http://x", "ws://x", "admin", "t", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := NewConfig(tt.apiURL, tt.socketURL, tt.authType, tt.token, tt.admin)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.apiURL, cfg.ApiURL)
			assert.Equal(t, tt.authType, cfg.AuthType)
		})
	}
}

func TestParseConfig(t *testing.T) {
	v := viper.New()
	v.Set("api_url", "https://wall.example.com")
	v.Set("socket_url", "wss://wall.example.com/ws")
	v.Set("auth_type", "employee")
	v.Set("token", "tok-123")
	v.Set("diagnostics_addr", ":8089")
	v.Set("allowed_origins", []string{"https://app.example.com"})
	v.Set("resync_interval", "30s")
	v.Set("pending_timeout", "10s")

	cfg, err := ParseConfig(v)
	require.NoError(t, err)

	assert.Equal(t, "https://wall.example.com", cfg.ApiURL)
	assert.Equal(t, ":8089", cfg.DiagnosticsAddr)
	assert.Equal(t, []string{"https://app.example.com"}, cfg.AllowedOrigins)
	assert.Equal(t, 30*time.Second, cfg.ResyncInterval)
	assert.Equal(t, 10*time.Second, cfg.PendingTimeout)
}

func TestParseConfig_invalid(t *testing.T) {
	v := viper.New()
	v.Set("api_url", "https://wall.example.com")

	_, err := ParseConfig(v)
	assert.Error(t, err, "expected validation to reject an incomplete config")
}

func TestLoadConfig(t *testing.T) {
	t.Run("reads yaml file", func(t *testing.T) {
		dir := t.TempDir()
		data := []byte("api_url: https://wall.example.com\ntoken: tok-123\n")
		require.NoError(t, os.WriteFile(filepath.Join(dir, "chatkit.yaml"), data, 0o644))

		wd, err := os.Getwd()
		require.NoError(t, err)
		require.NoError(t, os.Chdir(dir))
		defer os.Chdir(wd)

		v, err := LoadConfig("chatkit")
		require.NoError(t, err)
		assert.Equal(t, "https://wall.example.com", v.GetString("api_url"))
		assert.Equal(t, "tok-123", v.GetString("token"))
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadConfig("does-not-exist")
		assert.Error(t, err)
	})
}
