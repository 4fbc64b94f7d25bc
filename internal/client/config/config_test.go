package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(filepath.Join(dir, "client.toml"))
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8080", cfg.ServerURL)
	assert.Equal(t, filepath.Join(dir, "queue.db"), cfg.QueueDB)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, 500*time.Millisecond, cfg.Reconnect.Initial.Duration)
	assert.Equal(t, 30*time.Second, cfg.Reconnect.Max.Duration)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
server_url = "https://chat.example.com"
token = "tk"
max_retries = 5

[reconnect]
initial = "1s"
max = "1m"
`), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://chat.example.com", cfg.ServerURL)
	assert.Equal(t, "tk", cfg.Token)
	assert.Equal(t, 5, cfg.MaxRetries)
	assert.Equal(t, time.Second, cfg.Reconnect.Initial.Duration)
	assert.Equal(t, time.Minute, cfg.Reconnect.Max.Duration)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "client.toml")
	in := &Client{ServerURL: "http://h:1", Token: "abc", QueueDB: "/tmp/q.db", MaxRetries: 3, HistoryLimit: 20}
	in.Reconnect.Initial.Duration = 2 * time.Second
	in.Reconnect.Max.Duration = 10 * time.Second
	require.NoError(t, Save(path, in))

	out, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestLoad_BadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client.toml")
	require.NoError(t, os.WriteFile(path, []byte(`server_url = `), 0600))
	_, err := Load(path)
	assert.Error(t, err)
}
