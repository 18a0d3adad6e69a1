package persistence

import "github.com/Layr-Labs/eigenx-msgsign-go/pkg/types"

// ISubmissionLedger is an append-only, ordered store of accepted submissions.
// All implementations must be thread-safe.
//
// The interface supports:
// - Appending accepted submissions in acceptance order
// - Listing the whole ledger or the records of one signer
// - Resetting the ledger
// - Lifecycle management (close, health check)
type ISubmissionLedger interface {
	// Append stores record at the end of the ledger and returns its
	// zero-based position.
	Append(record *types.SubmissionRecord) (int, error)

	// List returns every record in append order.
	// Returns empty slice if the ledger is empty, error only on storage failure.
	List() ([]*types.SubmissionRecord, error)

	// ListBySigner returns the records whose signer address matches address,
	// compared case-insensitively, in append order.
	ListBySigner(address string) ([]*types.SubmissionRecord, error)

	// Len returns the number of records in the ledger.
	Len() (int, error)

	// Clear removes every record. It is the only operation that removes
	// entries.
	Clear() error

	// Close cleanly shuts down the persistence layer.
	// Idempotent - safe to call multiple times.
	// After Close(), all other operations should return errors.
	Close() error

	// HealthCheck verifies the persistence layer is operational.
	// Returns nil if healthy, error describing the problem if not.
	HealthCheck() error
}
