package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Layr-Labs/eigenx-msgsign-go/pkg/persistence"
	"github.com/Layr-Labs/eigenx-msgsign-go/pkg/types"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Key names for namespacing in Redis
const (
	keySubmissions   = "msgsign:submissions"
	keySchemaVersion = "msgsign:metadata:schema_version"

	opTimeout = 5 * time.Second
)

// RedisPersistence is an ISubmissionLedger stored as a Redis list.
// RPUSH gives every append a unique position, so ordering holds across
// several server processes sharing one Redis.
type RedisPersistence struct {
	client    *redis.Client
	logger    *zap.Logger
	keyPrefix string
	mu        sync.RWMutex
	closed    bool
}

var _ persistence.ISubmissionLedger = (*RedisPersistence)(nil)

// RedisConfig holds the configuration for connecting to Redis
type RedisConfig struct {
	// Address is the Redis server address (host:port)
	Address string
	// Password is the optional Redis password
	Password string
	// DB is the Redis database number (0-15)
	DB int
	// KeyPrefix is prepended to every key, e.g. "tenant-a:" gives
	// "tenant-a:msgsign:submissions"
	KeyPrefix string
}

// NewRedisPersistence creates a new Redis-backed ledger.
func NewRedisPersistence(cfg *RedisConfig, logger *zap.Logger) (*RedisPersistence, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis config cannot be nil")
	}

	if cfg.Address == "" {
		return nil, fmt.Errorf("redis address cannot be empty")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Address, err)
	}

	rp := &RedisPersistence{
		client:    client,
		logger:    logger,
		keyPrefix: cfg.KeyPrefix,
	}

	if err := rp.initSchema(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Sugar().Infow("Redis persistence initialized", "address", cfg.Address, "db", cfg.DB, "key_prefix", cfg.KeyPrefix)

	return rp, nil
}

// prefixKey adds the custom key prefix (if configured) to a key
func (r *RedisPersistence) prefixKey(key string) string {
	if r.keyPrefix == "" {
		return key
	}
	return r.keyPrefix + key
}

// initSchema initializes or validates the schema version
func (r *RedisPersistence) initSchema(ctx context.Context) error {
	schemaKey := r.prefixKey(keySchemaVersion)

	existingVersion, err := r.client.Get(ctx, schemaKey).Result()
	if err == redis.Nil {
		return r.client.Set(ctx, schemaKey, persistence.SchemaVersion, 0).Err()
	}
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	if existingVersion != persistence.SchemaVersion {
		return fmt.Errorf("unsupported schema version: %s (expected: %s)", existingVersion, persistence.SchemaVersion)
	}

	return nil
}

// Append pushes record onto the tail of the ledger list.
func (r *RedisPersistence) Append(record *types.SubmissionRecord) (int, error) {
	data, err := persistence.MarshalSubmissionRecord(record)
	if err != nil {
		return 0, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return 0, fmt.Errorf("persistence layer is closed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	n, err := r.client.RPush(ctx, r.prefixKey(keySubmissions), data).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to append SubmissionRecord %s: %w", record.Id, err)
	}
	return int(n - 1), nil
}

// List returns every record in append order.
func (r *RedisPersistence) List() ([]*types.SubmissionRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, fmt.Errorf("persistence layer is closed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	values, err := r.client.LRange(ctx, r.prefixKey(keySubmissions), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list SubmissionRecords: %w", err)
	}

	records := make([]*types.SubmissionRecord, 0, len(values))
	for i, v := range values {
		record, err := persistence.UnmarshalSubmissionRecord([]byte(v))
		if err != nil {
			return nil, fmt.Errorf("corrupt SubmissionRecord at position %d: %w", i, err)
		}
		records = append(records, record)
	}
	return records, nil
}

// ListBySigner returns the records submitted by address.
func (r *RedisPersistence) ListBySigner(address string) ([]*types.SubmissionRecord, error) {
	records, err := r.List()
	if err != nil {
		return nil, err
	}
	return persistence.FilterBySigner(records, address), nil
}

func (r *RedisPersistence) Len() (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return 0, fmt.Errorf("persistence layer is closed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	n, err := r.client.LLen(ctx, r.prefixKey(keySubmissions)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read ledger length: %w", err)
	}
	return int(n), nil
}

func (r *RedisPersistence) Clear() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return fmt.Errorf("persistence layer is closed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if err := r.client.Del(ctx, r.prefixKey(keySubmissions)).Err(); err != nil {
		return fmt.Errorf("failed to clear submissions: %w", err)
	}
	r.logger.Sugar().Infow("Submission ledger cleared")
	return nil
}

// Close cleanly shuts down the persistence layer
func (r *RedisPersistence) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()

	if err := r.client.Close(); err != nil {
		return fmt.Errorf("failed to close Redis client: %w", err)
	}

	r.logger.Sugar().Info("Redis persistence closed")
	return nil
}

// HealthCheck verifies the persistence layer is operational
func (r *RedisPersistence) HealthCheck() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return fmt.Errorf("persistence layer is closed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}

	_, err := r.client.Get(ctx, r.prefixKey(keySchemaVersion)).Result()
	if err == redis.Nil {
		return fmt.Errorf("schema version not found - database may not be properly initialized")
	}
	if err != nil {
		return fmt.Errorf("failed to verify schema version: %w", err)
	}

	return nil
}
