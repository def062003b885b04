package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// allConfigKeys lists every GITWATCH_ env var that Load() reads.
var allConfigKeys = []string{
	"GITWATCH_GITHUB_TOKEN",
	"GITWATCH_POLL_INTERVAL",
	"GITWATCH_LISTEN_ADDR",
	"GITWATCH_DB_PATH",
	"GITWATCH_COMMIT_WINDOW",
	"GITWATCH_WEBHOOK_URL",
}

// isolateConfigEnv saves and unsets all GITWATCH_ env vars so tests don't
// inherit values from the host environment (e.g. a running dev server).
// t.Cleanup restores original values after the test.
func isolateConfigEnv(t *testing.T) {
	t.Helper()
	for _, key := range allConfigKeys {
		if orig, ok := os.LookupEnv(key); ok {
			t.Cleanup(func() { os.Setenv(key, orig) })
		}
		os.Unsetenv(key)
	}
}

func TestLoad_Defaults(t *testing.T) {
	isolateConfigEnv(t)

	cfg, err := Load()

	require.NoError(t, err)
	assert.Empty(t, cfg.GitHubToken)
	assert.Equal(t, 5*time.Minute, cfg.PollInterval)
	assert.Equal(t, "127.0.0.1:8080", cfg.ListenAddr)
	assert.Equal(t, "gitwatch.db", cfg.DBPath)
	assert.Equal(t, 10, cfg.CommitWindow)
	assert.Empty(t, cfg.WebhookURL)
}

func TestLoad_AllValuesFromEnv(t *testing.T) {
	isolateConfigEnv(t)
	t.Setenv("GITWATCH_GITHUB_TOKEN", "ghp_token")
	t.Setenv("GITWATCH_POLL_INTERVAL", "90s")
	t.Setenv("GITWATCH_LISTEN_ADDR", "0.0.0.0:9090")
	t.Setenv("GITWATCH_DB_PATH", "/data/tracker.db")
	t.Setenv("GITWATCH_COMMIT_WINDOW", "25")
	t.Setenv("GITWATCH_WEBHOOK_URL", "https://hooks.example/notify")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "ghp_token", cfg.GitHubToken)
	assert.Equal(t, 90*time.Second, cfg.PollInterval)
	assert.Equal(t, "0.0.0.0:9090", cfg.ListenAddr)
	assert.Equal(t, "/data/tracker.db", cfg.DBPath)
	assert.Equal(t, 25, cfg.CommitWindow)
	assert.Equal(t, "https://hooks.example/notify", cfg.WebhookURL)
}

func TestLoad_InvalidPollInterval(t *testing.T) {
	isolateConfigEnv(t)
	t.Setenv("GITWATCH_POLL_INTERVAL", "often")

	_, err := Load()

	assert.Error(t, err)
}

func TestLoad_PollIntervalTooShort(t *testing.T) {
	isolateConfigEnv(t)
	t.Setenv("GITWATCH_POLL_INTERVAL", "1s")

	_, err := Load()

	assert.Error(t, err)
}

func TestLoad_InvalidCommitWindow(t *testing.T) {
	isolateConfigEnv(t)
	t.Setenv("GITWATCH_COMMIT_WINDOW", "many")

	_, err := Load()

	assert.Error(t, err)
}

func TestLoad_CommitWindowOutOfRange(t *testing.T) {
	isolateConfigEnv(t)
	t.Setenv("GITWATCH_COMMIT_WINDOW", "500")

	_, err := Load()

	assert.Error(t, err)
}

func TestLoad_InvalidListenAddr(t *testing.T) {
	isolateConfigEnv(t)
	t.Setenv("GITWATCH_LISTEN_ADDR", "not an address")

	_, err := Load()

	assert.Error(t, err)
}

func TestLoad_InvalidWebhookURL(t *testing.T) {
	isolateConfigEnv(t)
	t.Setenv("GITWATCH_WEBHOOK_URL", "::notaurl")

	_, err := Load()

	assert.Error(t, err)
}
