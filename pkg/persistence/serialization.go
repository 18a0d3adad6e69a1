package persistence

import (
	"encoding/json"
	"fmt"

	"github.com/Layr-Labs/eigenx-msgsign-go/pkg/types"
)

// MarshalSubmissionRecord serializes a SubmissionRecord to JSON bytes.
func MarshalSubmissionRecord(record *types.SubmissionRecord) ([]byte, error) {
	if record == nil {
		return nil, fmt.Errorf("cannot marshal nil SubmissionRecord")
	}
	if record.Submission == nil {
		return nil, fmt.Errorf("cannot marshal SubmissionRecord without submission")
	}

	data, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal SubmissionRecord to JSON: %w", err)
	}

	return data, nil
}

// UnmarshalSubmissionRecord deserializes a SubmissionRecord from JSON bytes.
func UnmarshalSubmissionRecord(data []byte) (*types.SubmissionRecord, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("cannot unmarshal empty data")
	}

	var record types.SubmissionRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal JSON to SubmissionRecord: %w", err)
	}
	if record.Submission == nil {
		return nil, fmt.Errorf("submission record %q has no submission", record.Id)
	}

	return &record, nil
}

// CopySubmissionRecord returns a deep copy of record
func CopySubmissionRecord(record *types.SubmissionRecord) *types.SubmissionRecord {
	if record == nil {
		return nil
	}
	out := *record
	if record.Submission != nil {
		sub := *record.Submission
		if record.Submission.Data != nil {
			sub.Data = append([]byte(nil), record.Submission.Data...)
		}
		out.Submission = &sub
	}
	return &out
}
