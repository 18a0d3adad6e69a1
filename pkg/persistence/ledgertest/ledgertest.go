// Package ledgertest holds the behaviour every ISubmissionLedger backend
// must share, run by each backend's own tests.
package ledgertest

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/Layr-Labs/eigenx-msgsign-go/pkg/persistence"
	"github.com/Layr-Labs/eigenx-msgsign-go/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	SignerA = "0xAAAA000000000000000000000000000000000001"
	SignerB = "0xbbbb000000000000000000000000000000000002"
)

// NewRecord builds a record with a distinct id for signer
func NewRecord(id, signer string) *types.SubmissionRecord {
	return &types.SubmissionRecord{
		Id: id,
		Submission: &types.SubmissionData{
			Data:          json.RawMessage(`{"dailyLimit":10}`),
			Signature:     "0x" + id,
			SignerAddress: signer,
			SignedMessage: fmt.Sprintf(`{"action":"UPDATE_RULE","data":{"dailyLimit":10},"nonce":"%s","timestamp":1}`, id),
			Timestamp:     1702857600000,
		},
		AcceptedAt: 1702857600000,
	}
}

// RunLedgerTests exercises a backend. newLedger must return an empty ledger.
func RunLedgerTests(t *testing.T, newLedger func(t *testing.T) persistence.ISubmissionLedger) {
	t.Run("Append preserves order", func(t *testing.T) {
		l := newLedger(t)

		for i := 0; i < 5; i++ {
			idx, err := l.Append(NewRecord(fmt.Sprintf("SUB-%d", i), SignerA))
			require.NoError(t, err)
			assert.Equal(t, i, idx)
		}

		records, err := l.List()
		require.NoError(t, err)
		require.Len(t, records, 5)
		for i, r := range records {
			assert.Equal(t, fmt.Sprintf("SUB-%d", i), r.Id)
		}

		n, err := l.Len()
		require.NoError(t, err)
		assert.Equal(t, 5, n)
	})

	t.Run("Round trips record content", func(t *testing.T) {
		l := newLedger(t)
		original := NewRecord("SUB-rt", SignerB)

		_, err := l.Append(original)
		require.NoError(t, err)

		records, err := l.List()
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, original.Id, records[0].Id)
		assert.Equal(t, original.AcceptedAt, records[0].AcceptedAt)
		assert.Equal(t, original.Submission.SignedMessage, records[0].Submission.SignedMessage)
		assert.JSONEq(t, string(original.Submission.Data), string(records[0].Submission.Data))
	})

	t.Run("Returned records are copies", func(t *testing.T) {
		l := newLedger(t)
		_, err := l.Append(NewRecord("SUB-copy", SignerA))
		require.NoError(t, err)

		records, err := l.List()
		require.NoError(t, err)
		records[0].Submission.SignerAddress = SignerB

		again, err := l.List()
		require.NoError(t, err)
		assert.Equal(t, SignerA, again[0].Submission.SignerAddress)
	})

	t.Run("ListBySigner is case insensitive and disjoint", func(t *testing.T) {
		l := newLedger(t)
		_, err := l.Append(NewRecord("a1", SignerA))
		require.NoError(t, err)
		_, err = l.Append(NewRecord("b1", SignerB))
		require.NoError(t, err)
		_, err = l.Append(NewRecord("a2", SignerA))
		require.NoError(t, err)

		fromA, err := l.ListBySigner("0xaaaa000000000000000000000000000000000001")
		require.NoError(t, err)
		require.Len(t, fromA, 2)
		assert.Equal(t, "a1", fromA[0].Id)
		assert.Equal(t, "a2", fromA[1].Id)

		fromB, err := l.ListBySigner("0xBBBB000000000000000000000000000000000002")
		require.NoError(t, err)
		require.Len(t, fromB, 1)
		assert.Equal(t, "b1", fromB[0].Id)

		none, err := l.ListBySigner("0xcccc000000000000000000000000000000000003")
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("Clear empties the ledger and restarts positions", func(t *testing.T) {
		l := newLedger(t)
		_, err := l.Append(NewRecord("x", SignerA))
		require.NoError(t, err)

		require.NoError(t, l.Clear())

		records, err := l.List()
		require.NoError(t, err)
		assert.Empty(t, records)
		n, err := l.Len()
		require.NoError(t, err)
		assert.Equal(t, 0, n)

		idx, err := l.Append(NewRecord("y", SignerA))
		require.NoError(t, err)
		assert.Equal(t, 0, idx)
	})

	t.Run("Rejects nil records", func(t *testing.T) {
		l := newLedger(t)
		_, err := l.Append(nil)
		assert.Error(t, err)
		_, err = l.Append(&types.SubmissionRecord{Id: "no-submission"})
		assert.Error(t, err)
	})

	t.Run("Concurrent appends are not lost", func(t *testing.T) {
		l := newLedger(t)
		const workers = 20

		var wg sync.WaitGroup
		indexes := make(chan int, workers)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				idx, err := l.Append(NewRecord(fmt.Sprintf("c%d", i), SignerA))
				assert.NoError(t, err)
				indexes <- idx
			}(i)
		}
		wg.Wait()
		close(indexes)

		seen := make(map[int]bool)
		for idx := range indexes {
			assert.False(t, seen[idx], "duplicate index %d", idx)
			seen[idx] = true
		}

		n, err := l.Len()
		require.NoError(t, err)
		assert.Equal(t, workers, n)
	})

	t.Run("Health check and idempotent close", func(t *testing.T) {
		l := newLedger(t)
		require.NoError(t, l.HealthCheck())

		require.NoError(t, l.Close())
		require.NoError(t, l.Close())

		assert.Error(t, l.HealthCheck())
		_, err := l.Append(NewRecord("closed", SignerA))
		assert.Error(t, err)
		_, err = l.List()
		assert.Error(t, err)
		_, err = l.Len()
		assert.Error(t, err)
		assert.Error(t, l.Clear())
	})
}
