package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestInitialize_FileOnly(t *testing.T) {
	dir := t.TempDir()
	l := Initialize("chat_test", dir, WithoutConsole())

	l.Info("hello", zap.String("conversation_id", "c1"))
	l.Debug("hidden")
	l.SetDebugMode(true)
	l.Debug("shown")
	l.Sync()

	files, err := filepath.Glob(filepath.Join(dir, "log_*.log"))
	require.NoError(t, err)
	require.Len(t, files, 1)

	raw, err := os.ReadFile(files[0])
	require.NoError(t, err)
	out := string(raw)
	assert.Contains(t, out, `"msg":"hello"`)
	assert.Contains(t, out, `"service":"chat_test"`)
	assert.Contains(t, out, "shown")
	assert.False(t, strings.Contains(out, "hidden"))
}

func TestDebugMode(t *testing.T) {
	l := NewNop()
	assert.False(t, l.IsDebugMode())
	l.SetDebugMode(true)
	assert.True(t, l.IsDebugMode())
}
