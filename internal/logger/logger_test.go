package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewWritesNamedDailyFile(t *testing.T) {
	root := t.TempDir()
	log, err := New(root, "import", false, true)
	require.NoError(t, err)
	t.Cleanup(func() { zap.ReplaceGlobals(zap.NewNop()) })

	log.Debugw("bunch loaded", "rows", 3)
	require.NoError(t, log.Sync())

	name := filepath.Join(root, "logs", "import-"+time.Now().Format("2006-01-02")+".log")
	raw, err := os.ReadFile(name)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(raw), `"msg":"bunch loaded"`))
	assert.Contains(t, string(raw), `"level":"debug"`)
}
