package factory

import (
	"fmt"

	"github.com/Layr-Labs/eigenx-msgsign-go/pkg/config"
	"github.com/Layr-Labs/eigenx-msgsign-go/pkg/persistence"
	"github.com/Layr-Labs/eigenx-msgsign-go/pkg/persistence/badger"
	"github.com/Layr-Labs/eigenx-msgsign-go/pkg/persistence/memory"
	"github.com/Layr-Labs/eigenx-msgsign-go/pkg/persistence/redis"
	"go.uber.org/zap"
)

// NewSubmissionLedger opens the ledger backend selected by cfg
func NewSubmissionLedger(cfg *config.PersistenceConfig, logger *zap.Logger) (persistence.ISubmissionLedger, error) {
	if cfg == nil {
		return nil, fmt.Errorf("persistence config cannot be nil")
	}

	switch cfg.Type {
	case "", config.PersistenceType_Memory:
		logger.Sugar().Warnw("Using in-memory submission ledger, accepted submissions are lost on restart")
		return memory.NewMemoryPersistence(), nil
	case config.PersistenceType_Badger:
		return badger.NewBadgerPersistence(cfg.DataPath, logger)
	case config.PersistenceType_Redis:
		return redis.NewRedisPersistence(&redis.RedisConfig{
			Address:   cfg.Redis.Address,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			KeyPrefix: cfg.Redis.KeyPrefix,
		}, logger)
	default:
		return nil, fmt.Errorf("unsupported persistence type: %s", cfg.Type)
	}
}
