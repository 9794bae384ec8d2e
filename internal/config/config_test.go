package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noDotenv(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "missing.env")
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(noDotenv(t))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, DriverSQLite, cfg.StoreDriver)
	assert.Equal(t, "dogfights.db", cfg.SQLitePath)
	assert.Equal(t, 10*time.Second, cfg.DefaultCountdown)
	assert.Equal(t, "ElytraDogfights", cfg.ServerName)
	assert.Empty(t, cfg.AdminToken)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9000")
	t.Setenv("DEFAULT_COUNTDOWN", "30s")
	t.Setenv("LOG_FORMAT", "console")

	cfg, err := Load(noDotenv(t))
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.HTTPAddr)
	assert.Equal(t, 30*time.Second, cfg.DefaultCountdown)
	assert.Equal(t, "console", cfg.LogFormat)
}

func TestLoadDotenvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("SERVER_NAME=Skyline\nADMIN_TOKEN=s3cret\n"), 0o600))
	// t.Setenv restores the variables godotenv sets.
	t.Setenv("SERVER_NAME", "")
	t.Setenv("ADMIN_TOKEN", "")
	os.Unsetenv("SERVER_NAME")
	os.Unsetenv("ADMIN_TOKEN")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "Skyline", cfg.ServerName)
	assert.Equal(t, "s3cret", cfg.AdminToken)
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"driver", map[string]string{"STORE_DRIVER": "mysql"}, "unknown STORE_DRIVER"},
		{"postgres without url", map[string]string{"STORE_DRIVER": "postgres"}, "DATABASE_URL"},
		{"format", map[string]string{"LOG_FORMAT": "xml"}, "LOG_FORMAT"},
		{"duration", map[string]string{"DEFAULT_COUNTDOWN": "soon"}, "parse env:"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load(noDotenv(t))
			require.Error(t, err)
			assert.True(t, strings.Contains(err.Error(), tt.want), "got %v", err)
		})
	}
}
