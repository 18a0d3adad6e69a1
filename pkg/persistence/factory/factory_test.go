package factory

import (
	"testing"

	"github.com/Layr-Labs/eigenx-msgsign-go/pkg/config"
	"github.com/Layr-Labs/eigenx-msgsign-go/pkg/logger"
	"github.com/Layr-Labs/eigenx-msgsign-go/pkg/persistence/badger"
	"github.com/Layr-Labs/eigenx-msgsign-go/pkg/persistence/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSubmissionLedger(t *testing.T) {
	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: false})
	require.NoError(t, err)

	t.Run("memory by default", func(t *testing.T) {
		ledger, err := NewSubmissionLedger(&config.PersistenceConfig{}, l)
		require.NoError(t, err)
		defer func() { _ = ledger.Close() }()
		assert.IsType(t, &memory.MemoryPersistence{}, ledger)
	})

	t.Run("badger", func(t *testing.T) {
		ledger, err := NewSubmissionLedger(&config.PersistenceConfig{
			Type:     config.PersistenceType_Badger,
			DataPath: t.TempDir(),
		}, l)
		require.NoError(t, err)
		defer func() { _ = ledger.Close() }()
		assert.IsType(t, &badger.BadgerPersistence{}, ledger)
		assert.NoError(t, ledger.HealthCheck())
	})

	t.Run("unsupported", func(t *testing.T) {
		_, err := NewSubmissionLedger(&config.PersistenceConfig{Type: "postgres"}, l)
		assert.Error(t, err)

		_, err = NewSubmissionLedger(nil, l)
		assert.Error(t, err)
	})
}
