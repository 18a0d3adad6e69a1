package badger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestBadgerLoggerAdapter(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	adapter := newBadgerLoggerAdapter(zap.New(core))

	adapter.Errorf("open %s failed\n", "MANIFEST")
	adapter.Warningf("slow write: %d ms", 12)
	adapter.Infof("compaction done\n")
	adapter.Debugf("gc round %d", 3)

	entries := logs.AllUntimed()
	require.Len(t, entries, 4)

	assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)
	assert.Equal(t, "open MANIFEST failed", entries[0].Message)
	assert.Equal(t, "badger", entries[0].LoggerName)

	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, "slow write: 12 ms", entries[1].Message)

	assert.Equal(t, zapcore.DebugLevel, entries[2].Level, "info is demoted")
	assert.Equal(t, "compaction done", entries[2].Message)

	assert.Equal(t, zapcore.DebugLevel, entries[3].Level)
}
