package log

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestInit_WritesToPath(t *testing.T) {
	req := require.New(t)
	t.Cleanup(func() { SetLogger(zap.NewNop()) })

	path := filepath.Join(t.TempDir(), "chat.log")
	req.NoError(Init("warn", path))

	Info("dropped")
	Warn("kept", zap.String("conversation", "group-1"))
	_ = Sync()

	out, err := os.ReadFile(path)
	req.NoError(err)
	req.NotContains(string(out), "dropped")
	req.Contains(string(out), "kept")
	req.Contains(string(out), "group-1")
}

func TestInit_BadLevel(t *testing.T) {
	require.New(t).Error(Init("loud"))
}
