package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	req := require.New(t)
	t.Setenv("SWEAPP_TOKEN_SECRET", "s3cret")
	t.Setenv("SWEAPP_STATE_DIR", t.TempDir())

	cfg, err := Load()
	req.NoError(err)
	req.Equal(ListenTCP, cfg.ListenMode)
	req.Equal(":8080", cfg.ListenAddr)
	req.Equal(24*time.Hour, cfg.TokenTTL)
	req.Equal(256, cfg.ClientQueueSize)
	req.Equal(filepath.Join(cfg.StateDir, "chat.db"), cfg.DatabasePath)
	req.Equal(time.UTC, cfg.Location())
	req.NotContains(cfg.String(), "s3cret")
}

func TestLoadFromEnvFile(t *testing.T) {
	req := require.New(t)
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	req.NoError(os.WriteFile(envFile, []byte(
		"SWEAPP_TOKEN_SECRET=from-file\n"+
			"SWEAPP_TOKEN_TTL=2h\n"+
			"SWEAPP_TIME_ZONE=America/Chicago\n"+
			"SWEAPP_CLIENT_QUEUE_SIZE=8\n"+
			"SWEAPP_ALLOWED_ORIGINS=https://a.example.edu,https://b.example.edu\n"+
			"SWEAPP_DATABASE_PATH="+filepath.Join(dir, "x.db")+"\n"), 0o600))
	t.Cleanup(func() {
		for _, k := range []string{"SWEAPP_TOKEN_SECRET", "SWEAPP_TOKEN_TTL", "SWEAPP_TIME_ZONE", "SWEAPP_CLIENT_QUEUE_SIZE", "SWEAPP_ALLOWED_ORIGINS", "SWEAPP_DATABASE_PATH"} {
			os.Unsetenv(k)
		}
	})

	cfg, err := Load(envFile, filepath.Join(dir, "missing.env"))
	req.NoError(err)
	req.Equal("from-file", cfg.TokenSecret)
	req.Equal(2*time.Hour, cfg.TokenTTL)
	req.Equal(8, cfg.ClientQueueSize)
	req.Equal([]string{"https://a.example.edu", "https://b.example.edu"}, cfg.AllowedOrigins)
	req.Equal(filepath.Join(dir, "x.db"), cfg.DatabasePath)
	req.Equal("America/Chicago", cfg.Location().String())
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	t.Run("missing secret", func(t *testing.T) {
		t.Setenv("SWEAPP_TOKEN_SECRET", "")
		_, err := Load()
		require.Error(t, err)
	})

	t.Run("unknown listen mode", func(t *testing.T) {
		t.Setenv("SWEAPP_TOKEN_SECRET", "s3cret")
		t.Setenv("SWEAPP_LISTEN_MODE", "udp")
		_, err := Load()
		require.Error(t, err)
	})

	t.Run("bad time zone", func(t *testing.T) {
		t.Setenv("SWEAPP_TOKEN_SECRET", "s3cret")
		t.Setenv("SWEAPP_TIME_ZONE", "Mars/Olympus")
		_, err := Load()
		require.Error(t, err)
	})
}
