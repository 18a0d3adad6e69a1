package persistence

import (
	"strings"

	"github.com/Layr-Labs/eigenx-msgsign-go/pkg/types"
)

// SchemaVersion is written by the durable backends on first open
const SchemaVersion = "v1"

// RecordMatchesSigner reports whether record was submitted by address.
// Addresses compare case-insensitively and surrounding space is ignored.
func RecordMatchesSigner(record *types.SubmissionRecord, address string) bool {
	if record == nil || record.Submission == nil {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(record.Submission.SignerAddress), strings.TrimSpace(address))
}

// FilterBySigner returns the records submitted by address, preserving order
func FilterBySigner(records []*types.SubmissionRecord, address string) []*types.SubmissionRecord {
	out := make([]*types.SubmissionRecord, 0)
	for _, r := range records {
		if RecordMatchesSigner(r, address) {
			out = append(out, r)
		}
	}
	return out
}
