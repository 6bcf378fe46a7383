package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNew_InvalidLevel(t *testing.T) {
	_, err := New(&Config{Level: "loud"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")
}

func TestInit_WritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "proxy.log")
	sync, err := Init(&Config{Level: "debug", File: path, MaxSizeMB: 1})
	require.NoError(t, err)

	zap.S().Infow("ledger opened", "driver", "memory")
	sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "ledger opened")
	assert.Contains(t, string(data), `"driver":"memory"`)
}
