// Package submissions implements the stateful verifying service: a trust
// list, freshness policy and an append-only ledger of accepted submissions.
package submissions

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Layr-Labs/eigenx-msgsign-go/pkg/config"
	"github.com/Layr-Labs/eigenx-msgsign-go/pkg/merkle"
	"github.com/Layr-Labs/eigenx-msgsign-go/pkg/message"
	"github.com/Layr-Labs/eigenx-msgsign-go/pkg/metrics"
	"github.com/Layr-Labs/eigenx-msgsign-go/pkg/persistence"
	"github.com/Layr-Labs/eigenx-msgsign-go/pkg/persistence/memory"
	"github.com/Layr-Labs/eigenx-msgsign-go/pkg/types"
	"github.com/Layr-Labs/eigenx-msgsign-go/pkg/verifier"
)

// Verification failure reasons
const (
	ReasonInvalidSignature = "Invalid signature"
	ReasonInvalidFormat    = "Invalid message format"
	ReasonExpired          = "Message timestamp is too old (expired)"
	ReasonFuture           = "Message timestamp is in the future"
	ReasonInvalidTimestamp = "Invalid message timestamp"
	ReasonInvalidRequest   = "Invalid request body"

	// MessageAccepted is the API response message for an accepted submission
	MessageAccepted = "Submission verified and accepted"

	// SubmissionIdPrefix starts every submission id
	SubmissionIdPrefix = "SUB-"

	schemePersonal = "personal"
	schemeTyped    = "typed"
)

// untrustedReason formats the trust check failure for address
func untrustedReason(address string) string {
	return fmt.Sprintf("Signer address %s is not in trusted addresses", address)
}

// ServiceOption customises a Service
type ServiceOption func(*Service)

// WithClock replaces the wall clock used for freshness checks and acceptance times
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		s.now = now
	}
}

// Service verifies submissions and records the accepted ones.
// It is safe for concurrent use.
type Service struct {
	logger          *zap.Logger
	ledger          persistence.ISubmissionLedger
	freshnessWindow time.Duration
	maxFutureSkew   time.Duration
	now             func() time.Time

	trustMu sync.RWMutex
	trusted map[string]struct{}

	// ledgerMu serialises appends so ledger order is completion order
	ledgerMu sync.Mutex
}

// NewService creates a verifying service. A nil ledger selects an
// in-memory ledger.
func NewService(cfg *config.VerifierConfig, ledger persistence.ISubmissionLedger, logger *zap.Logger, opts ...ServiceOption) (*Service, error) {
	if cfg == nil {
		cfg = config.NewDefaultVerifierConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid verifier config: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if ledger == nil {
		ledger = memory.NewMemoryPersistence()
	}

	s := &Service{
		logger:          logger,
		ledger:          ledger,
		freshnessWindow: cfg.FreshnessWindow,
		maxFutureSkew:   cfg.MaxFutureSkew,
		now:             time.Now,
		trusted:         make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	for _, addr := range cfg.TrustedAddresses {
		if err := s.AddTrustedAddress(addr); err != nil {
			return nil, err
		}
	}

	if n, err := ledger.Len(); err == nil {
		metrics.SetLedgerSize(n)
	}
	return s, nil
}

func normalizeAddress(address string) string {
	address = strings.TrimSpace(address)
	if common.IsHexAddress(address) {
		return strings.ToLower(common.HexToAddress(address).Hex())
	}
	return strings.ToLower(address)
}

// AddTrustedAddress adds address to the trust list. Adding a member again
// has no effect.
func (s *Service) AddTrustedAddress(address string) error {
	if !common.IsHexAddress(strings.TrimSpace(address)) {
		return fmt.Errorf("%w: %q", verifier.ErrInvalidAddress, address)
	}
	s.trustMu.Lock()
	defer s.trustMu.Unlock()
	s.trusted[normalizeAddress(address)] = struct{}{}
	return nil
}

// RemoveTrustedAddress removes address from the trust list. Removing a
// non-member is a no-op.
func (s *Service) RemoveTrustedAddress(address string) {
	s.trustMu.Lock()
	defer s.trustMu.Unlock()
	delete(s.trusted, normalizeAddress(address))
}

// TrustedAddresses returns the trust list as sorted lowercase addresses
func (s *Service) TrustedAddresses() []string {
	s.trustMu.RLock()
	defer s.trustMu.RUnlock()

	addrs := make([]string, 0, len(s.trusted))
	for addr := range s.trusted {
		addrs = append(addrs, addr)
	}
	sort.Strings(addrs)
	return addrs
}

// IsTrusted reports whether address may submit. Every address is trusted
// while the trust list is empty.
func (s *Service) IsTrusted(address string) bool {
	s.trustMu.RLock()
	defer s.trustMu.RUnlock()

	if len(s.trusted) == 0 {
		return true
	}
	_, ok := s.trusted[normalizeAddress(address)]
	return ok
}

func (s *Service) reject(scheme, outcome string, result *types.VerificationResult) *types.VerificationResult {
	metrics.RecordVerification(scheme, outcome)
	s.logger.Sugar().Debugw("Submission rejected",
		"scheme", scheme,
		"reason", result.Error,
		"signer", result.SignerAddress,
	)
	return result
}

// VerifySubmission checks a personal-sign submission and records it when
// every check passes. The checks run in order and stop at the first
// failure: signature, trust, message format, freshness.
//
// On success Data is taken from the signed message, never from
// submission.Data.
func (s *Service) VerifySubmission(submission *types.SubmissionData) *types.VerificationResult {
	result, _ := s.verifySubmission(submission)
	return result
}

func (s *Service) verifySubmission(submission *types.SubmissionData) (*types.VerificationResult, *types.SubmissionRecord) {
	if submission == nil {
		return s.reject(schemePersonal, metrics.OutcomeInvalidSignature, &types.VerificationResult{Error: ReasonInvalidSignature}), nil
	}

	// Step 1: signature
	if !verifier.VerifySignature(submission.SignedMessage, submission.Signature, submission.SignerAddress) {
		return s.reject(schemePersonal, metrics.OutcomeInvalidSignature, &types.VerificationResult{Error: ReasonInvalidSignature}), nil
	}

	// Step 2: trust list
	if !s.IsTrusted(submission.SignerAddress) {
		return s.reject(schemePersonal, metrics.OutcomeUntrusted, &types.VerificationResult{
			SignerAddress: submission.SignerAddress,
			Error:         untrustedReason(submission.SignerAddress),
		}), nil
	}

	// Step 3: message format
	parsed, err := message.ParseMessage(submission.SignedMessage)
	if err != nil {
		return s.reject(schemePersonal, metrics.OutcomeInvalidFormat, &types.VerificationResult{
			SignerAddress: submission.SignerAddress,
			Error:         ReasonInvalidFormat,
		}), nil
	}

	// Step 4: freshness
	now := s.now()
	ts, hasTimestamp, err := message.ParseTimestamp(parsed.Timestamp)
	if err != nil {
		return s.reject(schemePersonal, metrics.OutcomeInvalidTimestamp, &types.VerificationResult{
			SignerAddress: submission.SignerAddress,
			Error:         ReasonInvalidTimestamp,
		}), nil
	}
	if hasTimestamp {
		age := now.Sub(ts)
		if age > s.freshnessWindow {
			return s.reject(schemePersonal, metrics.OutcomeExpired, &types.VerificationResult{
				SignerAddress: submission.SignerAddress,
				Error:         ReasonExpired,
			}), nil
		}
		if -age > s.maxFutureSkew {
			return s.reject(schemePersonal, metrics.OutcomeFuture, &types.VerificationResult{
				SignerAddress: submission.SignerAddress,
				Error:         ReasonFuture,
			}), nil
		}
	}

	// Step 5: acceptance
	record := &types.SubmissionRecord{
		Id: NewSubmissionId(now),
		Submission: &types.SubmissionData{
			Data:          validJSONOrNil(submission.Data),
			Signature:     submission.Signature,
			SignerAddress: submission.SignerAddress,
			SignedMessage: submission.SignedMessage,
			Timestamp:     now.UnixMilli(),
		},
		AcceptedAt: now.UnixMilli(),
	}

	s.ledgerMu.Lock()
	index, err := s.ledger.Append(record)
	if err == nil {
		metrics.SetLedgerSize(index + 1)
	}
	s.ledgerMu.Unlock()
	if err != nil {
		s.logger.Sugar().Errorw("Failed to record submission", "error", err)
		return s.reject(schemePersonal, metrics.OutcomeStorageError, &types.VerificationResult{
			SignerAddress: submission.SignerAddress,
			Error:         fmt.Sprintf("Failed to record submission: %v", err),
		}), nil
	}
	metrics.RecordVerification(schemePersonal, metrics.OutcomeAccepted)

	content := &types.MessageContent{
		Action: parsed.Action,
		Data:   parsed.Data,
		Nonce:  parsed.Nonce,
	}
	if hasTimestamp {
		content.Timestamp = &ts
	}

	s.logger.Sugar().Infow("Submission accepted",
		"submissionId", record.Id,
		"signer", submission.SignerAddress,
		"action", parsed.Action,
		"index", index,
		"messageHash", message.HashMessage(submission.SignedMessage),
	)

	return &types.VerificationResult{
		IsValid:       true,
		SignerAddress: submission.SignerAddress,
		Data:          parsed.Data,
		Content:       content,
		SubmissionId:  record.Id,
	}, record
}

// VerifyTypedDataSubmission checks an EIP-712 signature and the trust list.
// On success Data is the signed value. Typed data submissions are not
// recorded in the ledger.
func (s *Service) VerifyTypedDataSubmission(submission *types.TypedDataSubmission) *types.VerificationResult {
	if submission == nil {
		return s.reject(schemeTyped, metrics.OutcomeInvalidSignature, &types.VerificationResult{Error: ReasonInvalidSignature})
	}

	if !verifier.VerifyTypedData(submission.Domain, submission.Types, submission.Value, submission.Signature, submission.ExpectedAddress) {
		return s.reject(schemeTyped, metrics.OutcomeInvalidSignature, &types.VerificationResult{Error: ReasonInvalidSignature})
	}

	if !s.IsTrusted(submission.ExpectedAddress) {
		return s.reject(schemeTyped, metrics.OutcomeUntrusted, &types.VerificationResult{
			SignerAddress: submission.ExpectedAddress,
			Error:         untrustedReason(submission.ExpectedAddress),
		})
	}

	data, err := json.Marshal(submission.Value)
	if err != nil {
		return s.reject(schemeTyped, metrics.OutcomeInvalidFormat, &types.VerificationResult{
			SignerAddress: submission.ExpectedAddress,
			Error:         ReasonInvalidFormat,
		})
	}

	metrics.RecordVerification(schemeTyped, metrics.OutcomeAccepted)
	return &types.VerificationResult{
		IsValid:       true,
		SignerAddress: submission.ExpectedAddress,
		Data:          data,
	}
}

// HandleApiSubmission decodes a JSON request body into a submission,
// verifies it and maps the outcome to an API response. Failures never
// surface as errors.
func (s *Service) HandleApiSubmission(ctx context.Context, body []byte) *types.ApiResponse {
	if err := ctx.Err(); err != nil {
		metrics.RecordApiSubmission(false)
		return &types.ApiResponse{Success: false, Message: err.Error()}
	}

	var submission types.SubmissionData
	if err := json.Unmarshal(body, &submission); err != nil {
		metrics.RecordApiSubmission(false)
		return &types.ApiResponse{Success: false, Message: ReasonInvalidRequest}
	}

	result, record := s.verifySubmission(&submission)
	if !result.IsValid {
		metrics.RecordApiSubmission(false)
		return &types.ApiResponse{Success: false, Message: result.Error}
	}

	metrics.RecordApiSubmission(true)
	return &types.ApiResponse{
		Success: true,
		Message: MessageAccepted,
		Data: &types.ApiSubmissionResult{
			SubmissionId:  record.Id,
			SignerAddress: result.SignerAddress,
			Timestamp:     record.AcceptedAt,
		},
	}
}

// GetSubmissions returns every accepted submission in ledger order
func (s *Service) GetSubmissions() ([]*types.SubmissionRecord, error) {
	return s.ledger.List()
}

// GetSubmissionsFrom returns the accepted submissions of address in ledger order
func (s *Service) GetSubmissionsFrom(address string) ([]*types.SubmissionRecord, error) {
	return s.ledger.ListBySigner(address)
}

// HasSubmissionFrom reports whether address has any accepted submission
func (s *Service) HasSubmissionFrom(address string) (bool, error) {
	records, err := s.ledger.ListBySigner(address)
	if err != nil {
		return false, err
	}
	return len(records) > 0, nil
}

// ClearSubmissions empties the ledger
func (s *Service) ClearSubmissions() error {
	s.ledgerMu.Lock()
	defer s.ledgerMu.Unlock()

	if err := s.ledger.Clear(); err != nil {
		return fmt.Errorf("failed to clear submissions: %w", err)
	}
	metrics.SetLedgerSize(0)
	s.logger.Sugar().Infow("Submission ledger cleared")
	return nil
}

// LedgerRoot returns the merkle root over the ledger in append order and
// the number of records it covers. An empty ledger has a zero root.
func (s *Service) LedgerRoot() (common.Hash, int, error) {
	tree, count, err := s.ledgerTree()
	if err != nil || tree == nil {
		return common.Hash{}, count, err
	}
	return common.Hash(tree.Root), count, nil
}

// LedgerProof returns an inclusion proof for the record at index together
// with the root it verifies against
func (s *Service) LedgerProof(index int) (*merkle.MerkleProof, common.Hash, error) {
	tree, count, err := s.ledgerTree()
	if err != nil {
		return nil, common.Hash{}, err
	}
	if tree == nil {
		return nil, common.Hash{}, fmt.Errorf("ledger is empty")
	}
	if index < 0 || index >= count {
		return nil, common.Hash{}, fmt.Errorf("index %d out of range (ledger has %d records)", index, count)
	}
	proof, err := tree.GenerateProof(index)
	if err != nil {
		return nil, common.Hash{}, err
	}
	return proof, common.Hash(tree.Root), nil
}

func (s *Service) ledgerTree() (*merkle.MerkleTree, int, error) {
	s.ledgerMu.Lock()
	records, err := s.ledger.List()
	s.ledgerMu.Unlock()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list submissions: %w", err)
	}
	if len(records) == 0 {
		return nil, 0, nil
	}
	tree, err := merkle.BuildMerkleTree(records)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build ledger tree: %w", err)
	}
	return tree, len(records), nil
}

// HealthCheck reports whether the ledger backend is usable
func (s *Service) HealthCheck() error {
	return s.ledger.HealthCheck()
}

// Close closes the ledger backend
func (s *Service) Close() error {
	return s.ledger.Close()
}

// NewSubmissionId returns SUB-<unix ms>-<9 random characters>
func NewSubmissionId(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
	return fmt.Sprintf("%s%d-%s", SubmissionIdPrefix, now.UnixMilli(), suffix)
}

// MatchesSubmittedData reports whether the payload a client submitted is
// semantically equal to the signed payload in a successful result. Key
// order and whitespace are ignored.
func MatchesSubmittedData(result *types.VerificationResult, submitted json.RawMessage) bool {
	if result == nil || !result.IsValid {
		return false
	}
	signed, err := decodeJSON(result.Data)
	if err != nil {
		return false
	}
	claimed, err := decodeJSON(submitted)
	if err != nil {
		return false
	}
	return reflect.DeepEqual(signed, claimed)
}

func decodeJSON(raw json.RawMessage) (any, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}
	var v any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

func validJSONOrNil(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 || !json.Valid(raw) {
		return nil
	}
	return raw
}
