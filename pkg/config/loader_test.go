package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSentinel(t *testing.T) {
	s := parseSentinel([]string{
		"REDIS_MASTER_NAME=chat-master",
		"REDIS_SENTINEL2_IP=10.0.0.2",
		"REDIS_SENTINEL2_PORT=26379",
		"REDIS_SENTINEL1_IP=10.0.0.1",
		"REDIS_SENTINEL1_PORT=26379",
		"REDIS_SENTINEL3_IP=10.0.0.3", // 沒有 port 會被略過
		"PATH=/usr/bin",
	})
	assert.Equal(t, "chat-master", s.MasterName)
	assert.Equal(t, []string{"10.0.0.1:26379", "10.0.0.2:26379"}, s.Addrs)

	assert.Equal(t, "localhost:6379", s.Addr)

	single := parseSentinel([]string{"REDIS_ADDR=cache:6380"})
	assert.Equal(t, "mymaster", single.MasterName)
	assert.Equal(t, "cache:6380", single.Addr)
	assert.Empty(t, single.Addrs)
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	yaml := `
port: "9090"
mongo:
  host: ${TEST_CHAT_MONGO_HOST}
  port: 27017
history:
  default_limit: 20
attachment:
  upload_expiry: 120s
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "chat_test.yaml"), []byte(yaml), 0600))
	t.Setenv("TEST_CHAT_MONGO_HOST", "mongo.internal")

	cfg, err := LoadConfig[Chat]("chat_test", dir)
	require.NoError(t, err)
	cfg = cfg.WithDefaults()

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "mongo.internal", cfg.MongoSQL.Host)
	assert.Equal(t, 27017, cfg.MongoSQL.Port)
	assert.Equal(t, 20, cfg.History.DefaultLimit)
	assert.Equal(t, 200, cfg.History.MaxLimit)
	assert.Equal(t, 120*time.Second, cfg.Attachment.UploadExpiry)
	assert.Equal(t, int64(10*1024*1024), cfg.Attachment.MaxSize)
	assert.Equal(t, 10*time.Minute, cfg.KeyCacheTTL)
}

func TestLoadConfig_Missing(t *testing.T) {
	_, err := LoadConfig[Chat]("nope", t.TempDir())
	assert.Error(t, err)
}
