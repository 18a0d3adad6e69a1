package types

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// ContentToSign is the logical payload a client wants authenticated.
// Zero Timestamp and empty Nonce are replaced with fresh values when the
// canonical message is built.
type ContentToSign struct {
	Action    string          `json:"action"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp,omitempty"` // milliseconds since epoch
	Nonce     string          `json:"nonce,omitempty"`
}

// NewContent marshals data into a ContentToSign. Struct field order is
// preserved in the signed message; map keys are sorted by encoding/json.
func NewContent(action string, data any) (*ContentToSign, error) {
	raw, err := MarshalData(data)
	if err != nil {
		return nil, err
	}
	return &ContentToSign{Action: action, Data: raw}, nil
}

// MarshalData encodes an application payload to JSON
func MarshalData(data any) (json.RawMessage, error) {
	if data == nil {
		return nil, nil
	}
	if raw, ok := data.(json.RawMessage); ok {
		return raw, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal content data: %w", err)
	}
	return raw, nil
}

// SignedMessage is the output of a signing operation
type SignedMessage struct {
	// Message is the exact string that was signed and must be kept verbatim
	Message   string `json:"message"`
	Signature string `json:"signature"`
	Address   string `json:"address"`
	// Timestamp is the wall clock time (ms) the signing call completed
	Timestamp int64 `json:"timestamp"`
}

// SubmissionData is a client submission presented for verification.
// Data is the client's own copy of the payload and is never trusted.
type SubmissionData struct {
	Data          json.RawMessage `json:"data,omitempty"`
	Signature     string          `json:"signature"`
	SignerAddress string          `json:"signerAddress"`
	SignedMessage string          `json:"signedMessage"`
	Timestamp     int64           `json:"timestamp,omitempty"`
}

// SubmissionRecord is an accepted submission as stored in the ledger
type SubmissionRecord struct {
	Id         string          `json:"id"`
	Submission *SubmissionData `json:"submission"`
	AcceptedAt int64           `json:"acceptedAt"` // milliseconds since epoch
}

// MessageContent is the content recovered from a signed message
type MessageContent struct {
	Action    string          `json:"action"`
	Data      json.RawMessage `json:"data"`
	Nonce     string          `json:"nonce,omitempty"`
	Timestamp *time.Time      `json:"timestamp,omitempty"`
}

// VerificationResult is the outcome of verifying a submission. Failures
// are reported here rather than as errors.
type VerificationResult struct {
	IsValid       bool   `json:"isValid"`
	SignerAddress string `json:"signerAddress,omitempty"`
	Error         string `json:"error,omitempty"`
	// Data is the authoritative payload taken from the signed message
	Data json.RawMessage `json:"data,omitempty"`
	// Content is the full parsed signed message, set on personal-sign success
	Content *MessageContent `json:"content,omitempty"`
	// SubmissionId identifies the ledger record created on success
	SubmissionId string `json:"submissionId,omitempty"`
}

// ApiSubmissionResult is the data envelope returned for an accepted API submission
type ApiSubmissionResult struct {
	SubmissionId  string `json:"submissionId"`
	SignerAddress string `json:"signerAddress"`
	Timestamp     int64  `json:"timestamp"`
}

// ApiResponse is the response envelope of the submission API
type ApiResponse struct {
	Success bool                 `json:"success"`
	Message string               `json:"message"`
	Data    *ApiSubmissionResult `json:"data,omitempty"`
}

// TypedDataDomain, TypedDataTypes and TypedDataMessage describe EIP-712 input
type (
	TypedDataDomain  = apitypes.TypedDataDomain
	TypedDataField   = apitypes.Type
	TypedDataTypes   = apitypes.Types
	TypedDataMessage = apitypes.TypedDataMessage
)

// TypedDataSubmission is an EIP-712 signature presented for verification
type TypedDataSubmission struct {
	Domain          TypedDataDomain  `json:"domain"`
	Types           TypedDataTypes   `json:"types"`
	Value           TypedDataMessage `json:"value"`
	Signature       string           `json:"signature"`
	ExpectedAddress string           `json:"expectedAddress"`
}

// SubmissionListResponse is returned by GET /submissions
type SubmissionListResponse struct {
	Submissions []*SubmissionRecord `json:"submissions"`
	Count       int                 `json:"count"`
}

// TrustedAddressRequest adds or removes one trust list entry
type TrustedAddressRequest struct {
	Address string `json:"address"`
}

// TrustedAddressesResponse lists the trust list as lowercase addresses
type TrustedAddressesResponse struct {
	TrustedAddresses []string `json:"trustedAddresses"`
}

// LedgerRootResponse is the merkle root over the ledger in order
type LedgerRootResponse struct {
	Root  string `json:"root"`
	Count int    `json:"count"`
}

// LedgerProofResponse is an inclusion proof for one ledger record
type LedgerProofResponse struct {
	Index int      `json:"index"`
	Leaf  string   `json:"leaf"`
	Root  string   `json:"root"`
	Proof []string `json:"proof"`
}

// HealthResponse is returned by GET /health
type HealthResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}
