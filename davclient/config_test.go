package davclient

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfig(t *testing.T) {
	yamlConfig := `
url: https://cal.example.com/dav/
username: alice
password: secret
timeout: 10s
rate_limit: 5
burst: 3
log_level: DEBUG
proxy:
  host: proxy.example.com
  port: 3128
`
	tomlConfig := `
url = "https://cal.example.com/dav/"
username = "alice"
password = "secret"
timeout = "10s"
rate_limit = 5.0
burst = 3
log_level = "DEBUG"

[proxy]
host = "proxy.example.com"
port = 3128
`

	for _, tc := range []struct {
		name    string
		file    string
		content string
	}{
		{name: "yaml", file: "caldav.yaml", content: yamlConfig},
		{name: "yml", file: "caldav.yml", content: yamlConfig},
		{name: "toml", file: "caldav.toml", content: tomlConfig},
	} {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := LoadConfig(writeConfig(t, tc.file, tc.content))
			require.NoError(t, err)

			assert.Equal(t, "https://cal.example.com/dav/", cfg.URL)
			assert.Equal(t, "alice", cfg.Username)
			assert.Equal(t, "secret", cfg.Password)
			assert.Equal(t, "10s", cfg.Timeout)
			assert.Equal(t, 5.0, cfg.RateLimit)
			assert.Equal(t, 3, cfg.Burst)
			assert.Equal(t, "debug", cfg.LogLevel)
			assert.Equal(t, slog.LevelDebug, cfg.Level())
			assert.Equal(t, defaultUserAgent, cfg.UserAgent)
			require.NotNil(t, cfg.Proxy)
			assert.Equal(t, "proxy.example.com", cfg.Proxy.Host)
			assert.Equal(t, 3128, cfg.Proxy.Port)
		})
	}
}

func TestLoadConfig_Errors(t *testing.T) {
	t.Run("empty path", func(t *testing.T) {
		_, err := LoadConfig("")
		assert.Error(t, err)
	})
	t.Run("missing file", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
		assert.ErrorIs(t, err, os.ErrNotExist)
	})
	t.Run("unsupported extension", func(t *testing.T) {
		_, err := LoadConfig(writeConfig(t, "caldav.json", `{}`))
		assert.ErrorContains(t, err, "unsupported config format")
	})
	t.Run("invalid yaml", func(t *testing.T) {
		_, err := LoadConfig(writeConfig(t, "caldav.yaml", "url: [unterminated"))
		assert.ErrorContains(t, err, "failed to parse config")
	})
}

func TestConfigNormalize(t *testing.T) {
	cfg := &Config{
		URL:       "  https://cal.example.com/  ",
		RateLimit: -1,
		Burst:     0,
		LogLevel:  "verbose",
	}
	cfg.Normalize()

	assert.Equal(t, "https://cal.example.com/", cfg.URL)
	assert.Equal(t, "30s", cfg.Timeout)
	assert.Zero(t, cfg.RateLimit)
	assert.Equal(t, 1, cfg.Burst)
	assert.Equal(t, defaultUserAgent, cfg.UserAgent)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, slog.LevelInfo, cfg.Level())
}

func TestConfigOptions(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name    string
		cfg     Config
		want    Options
		wantErr bool
	}{
		{
			name: "timeout and credentials",
			cfg:  Config{Username: "alice", Password: "pw", Timeout: "1m", Burst: 2, UserAgent: "ua"},
			want: Options{Username: "alice", Password: "pw", Timeout: time.Minute, Burst: 2, UserAgent: "ua", Logger: logger},
		},
		{
			name: "proxy",
			cfg:  Config{Proxy: &ProxyConfig{Scheme: "socks5", Host: "localhost", Port: 1080}},
			want: Options{Proxy: &Proxy{Scheme: "socks5", Host: "localhost", Port: 1080}, Logger: logger},
		},
		{
			name: "proxy without host is ignored",
			cfg:  Config{Proxy: &ProxyConfig{Port: 8080}},
			want: Options{Logger: logger},
		},
		{
			name:    "invalid timeout",
			cfg:     Config{Timeout: "soon"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.cfg.Options(logger)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
