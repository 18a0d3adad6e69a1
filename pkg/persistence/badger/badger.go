package badger

import (
	"context"
	"encoding/binary"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/Layr-Labs/eigenx-msgsign-go/pkg/persistence"
	"github.com/Layr-Labs/eigenx-msgsign-go/pkg/types"
	badgerdb "github.com/dgraph-io/badger/v3"
	"go.uber.org/zap"
)

// Key prefixes for namespacing
const (
	keyPrefixSubmission = "submission:"
	keyNextSequence     = "metadata:next_sequence"
	keySchemaVersion    = "metadata:schema_version"
)

// BadgerPersistence is a durable ISubmissionLedger backed by Badger.
// Records are keyed by a big-endian sequence number so prefix iteration
// returns them in append order.
type BadgerPersistence struct {
	db       *badgerdb.DB
	logger   *zap.Logger
	gcCancel context.CancelFunc
	gcWg     sync.WaitGroup
	mu       sync.RWMutex
	closed   bool
}

var _ persistence.ISubmissionLedger = (*BadgerPersistence)(nil)

// NewBadgerPersistence creates a new Badger-backed ledger.
// The database is opened at the specified path with SyncWrites enabled for durability.
// A background goroutine is started for garbage collection.
func NewBadgerPersistence(dataPath string, logger *zap.Logger) (*BadgerPersistence, error) {
	absPath, err := filepath.Abs(dataPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path: %w", err)
	}

	opts := badgerdb.DefaultOptions(absPath)
	opts.Logger = newBadgerLoggerAdapter(logger)
	opts.SyncWrites = true
	opts.CompactL0OnClose = true
	opts.NumVersionsToKeep = 1

	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database at %s: %w", absPath, err)
	}

	bp := &BadgerPersistence{
		db:     db,
		logger: logger,
	}

	if err := bp.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	bp.gcCancel = cancel
	bp.gcWg.Add(1)
	go bp.runGC(ctx)

	logger.Sugar().Infow("Badger persistence initialized", "path", absPath)

	return bp, nil
}

// initSchema initializes or validates the schema version
func (b *BadgerPersistence) initSchema() error {
	return b.db.Update(func(txn *badgerdb.Txn) error {
		item, err := txn.Get([]byte(keySchemaVersion))
		if err == badgerdb.ErrKeyNotFound {
			return txn.Set([]byte(keySchemaVersion), []byte(persistence.SchemaVersion))
		}
		if err != nil {
			return fmt.Errorf("failed to read schema version: %w", err)
		}

		var existingVersion string
		err = item.Value(func(val []byte) error {
			existingVersion = string(val)
			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to read schema version value: %w", err)
		}

		if existingVersion != persistence.SchemaVersion {
			return fmt.Errorf("unsupported schema version: %s (expected: %s)", existingVersion, persistence.SchemaVersion)
		}

		return nil
	})
}

// runGC runs periodic garbage collection in the background
func (b *BadgerPersistence) runGC(ctx context.Context) {
	defer b.gcWg.Done()

	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			err := b.db.RunValueLogGC(0.5)
			if err != nil && err != badgerdb.ErrNoRewrite {
				b.logger.Sugar().Warnw("Badger GC error", "error", err)
			}
		case <-ctx.Done():
			return
		}
	}
}

func submissionKey(seq uint64) []byte {
	key := make([]byte, len(keyPrefixSubmission)+8)
	copy(key, keyPrefixSubmission)
	binary.BigEndian.PutUint64(key[len(keyPrefixSubmission):], seq)
	return key
}

func readSequence(txn *badgerdb.Txn) (uint64, error) {
	item, err := txn.Get([]byte(keyNextSequence))
	if err == badgerdb.ErrKeyNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read sequence: %w", err)
	}

	var seq uint64
	err = item.Value(func(val []byte) error {
		if len(val) != 8 {
			return fmt.Errorf("invalid sequence value length: %d", len(val))
		}
		seq = binary.BigEndian.Uint64(val)
		return nil
	})
	return seq, err
}

func writeSequence(txn *badgerdb.Txn, seq uint64) error {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, seq)
	return txn.Set([]byte(keyNextSequence), buf)
}

// Append stores record under the next sequence number.
func (b *BadgerPersistence) Append(record *types.SubmissionRecord) (int, error) {
	data, err := persistence.MarshalSubmissionRecord(record)
	if err != nil {
		return 0, err
	}

	// appends take the write lock so sequence reads never conflict
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return 0, fmt.Errorf("persistence layer is closed")
	}

	var seq uint64
	err = b.db.Update(func(txn *badgerdb.Txn) error {
		var err error
		seq, err = readSequence(txn)
		if err != nil {
			return err
		}
		if err := txn.Set(submissionKey(seq), data); err != nil {
			return err
		}
		return writeSequence(txn, seq+1)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to append SubmissionRecord %s: %w", record.Id, err)
	}
	return int(seq), nil
}

// List returns every record in append order.
func (b *BadgerPersistence) List() ([]*types.SubmissionRecord, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, fmt.Errorf("persistence layer is closed")
	}

	records := make([]*types.SubmissionRecord, 0)

	err := b.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = []byte(keyPrefixSubmission)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()

			var data []byte
			err := item.Value(func(val []byte) error {
				data = append([]byte{}, val...)
				return nil
			})
			if err != nil {
				return fmt.Errorf("failed to read value: %w", err)
			}

			record, err := persistence.UnmarshalSubmissionRecord(data)
			if err != nil {
				return fmt.Errorf("corrupt SubmissionRecord at position %d: %w", len(records), err)
			}

			records = append(records, record)
		}

		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("failed to list SubmissionRecords: %w", err)
	}

	return records, nil
}

// ListBySigner returns the records submitted by address.
func (b *BadgerPersistence) ListBySigner(address string) ([]*types.SubmissionRecord, error) {
	records, err := b.List()
	if err != nil {
		return nil, err
	}
	return persistence.FilterBySigner(records, address), nil
}

func (b *BadgerPersistence) Len() (int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return 0, fmt.Errorf("persistence layer is closed")
	}

	var seq uint64
	err := b.db.View(func(txn *badgerdb.Txn) error {
		var err error
		seq, err = readSequence(txn)
		return err
	})
	if err != nil {
		return 0, err
	}
	return int(seq), nil
}

// Clear drops every record and resets the sequence.
func (b *BadgerPersistence) Clear() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return fmt.Errorf("persistence layer is closed")
	}

	if err := b.db.DropPrefix([]byte(keyPrefixSubmission)); err != nil {
		return fmt.Errorf("failed to drop submissions: %w", err)
	}
	if err := b.db.Update(func(txn *badgerdb.Txn) error {
		return writeSequence(txn, 0)
	}); err != nil {
		return fmt.Errorf("failed to reset sequence: %w", err)
	}

	b.logger.Sugar().Infow("Submission ledger cleared")
	return nil
}

// Close cleanly shuts down the persistence layer
func (b *BadgerPersistence) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	if b.gcCancel != nil {
		b.gcCancel()
	}
	b.gcWg.Wait()

	if err := b.db.Close(); err != nil {
		return fmt.Errorf("failed to close badger database: %w", err)
	}

	b.logger.Sugar().Info("Badger persistence closed")
	return nil
}

// HealthCheck verifies the persistence layer is operational
func (b *BadgerPersistence) HealthCheck() error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return fmt.Errorf("persistence layer is closed")
	}

	return b.db.View(func(txn *badgerdb.Txn) error {
		_, err := txn.Get([]byte(keySchemaVersion))
		if err == badgerdb.ErrKeyNotFound {
			return fmt.Errorf("schema version not found - database may be corrupted")
		}
		return err
	})
}
