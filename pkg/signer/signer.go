package signer

import (
	"context"
	"time"

	"github.com/Layr-Labs/eigenx-msgsign-go/internal/aws"
	"github.com/Layr-Labs/eigenx-msgsign-go/internal/keySigner"
	"github.com/Layr-Labs/eigenx-msgsign-go/internal/keySigner/awsKms"
	"github.com/Layr-Labs/eigenx-msgsign-go/internal/keySigner/localKeySigner"
	"github.com/Layr-Labs/eigenx-msgsign-go/pkg/config"
	"github.com/Layr-Labs/eigenx-msgsign-go/pkg/eip712"
	"github.com/Layr-Labs/eigenx-msgsign-go/pkg/message"
	"github.com/Layr-Labs/eigenx-msgsign-go/pkg/metrics"
	"github.com/Layr-Labs/eigenx-msgsign-go/pkg/types"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.uber.org/zap"
)

const (
	schemePersonal = "personal"
	schemeTyped    = "typed"
)

// Signer produces EIP-191 and EIP-712 signatures with a single key
type Signer struct {
	logger  *zap.Logger
	backend keySigner.IKeySigner
	now     func() time.Time
}

// NewSigner wraps a key backend. A nil backend yields a signer whose
// operations fail with ErrKeyUnavailable.
func NewSigner(backend keySigner.IKeySigner, logger *zap.Logger) *Signer {
	return &Signer{
		logger:  logger,
		backend: backend,
		now:     time.Now,
	}
}

// NewSignerFromConfig validates cfg and loads the configured key backend
func NewSignerFromConfig(ctx context.Context, cfg *config.SignerConfig, logger *zap.Logger) (*Signer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, newSigningError("load key", ErrKeyUnavailable, err)
	}

	var backend keySigner.IKeySigner
	switch cfg.KeyBackend {
	case config.KeyBackend_AWSKMS:
		awsCfg, err := aws.LoadAWSConfig(ctx, cfg.AWSRegion)
		if err != nil {
			return nil, newSigningError("load key", ErrKeyUnavailable, err)
		}
		kmsSigner, err := awsKms.NewAWSKMSKeySignerFromConfig(ctx, awsCfg, cfg.KMSKeyId, logger)
		if err != nil {
			return nil, newSigningError("load key", ErrKeyUnavailable, err)
		}
		backend = kmsSigner
	default:
		localSigner, err := localKeySigner.NewLocalKeySignerFromHex(cfg.PrivateKey, logger)
		if err != nil {
			return nil, newSigningError("load key", ErrKeyUnavailable, err)
		}
		backend = localSigner
	}

	logger.Sugar().Infow("Signer initialized",
		"keyBackend", cfg.KeyBackend,
		"environment", cfg.Environment,
		"chain", config.GetChainName(cfg.ChainID),
		"address", backend.Address().String(),
	)
	return NewSigner(backend, logger), nil
}

// CreateMessage builds the canonical message string for content
func (s *Signer) CreateMessage(content *types.ContentToSign) (string, error) {
	return message.CreateMessage(content)
}

// SignMessage signs msg under EIP-191 personal sign
func (s *Signer) SignMessage(ctx context.Context, msg string) (*types.SignedMessage, error) {
	if s.backend == nil {
		metrics.RecordSignature(schemePersonal, ErrKeyUnavailable)
		return nil, newSigningError("sign message", ErrKeyUnavailable, nil)
	}

	sig, err := s.backend.SignDigest(ctx, accounts.TextHash([]byte(msg)))
	metrics.RecordSignature(schemePersonal, err)
	if err != nil {
		return nil, newSigningError("sign message", ErrKeyUnavailable, err)
	}

	signed := &types.SignedMessage{
		Message:   msg,
		Signature: hexutil.Encode(sig),
		Address:   s.backend.Address().String(),
		Timestamp: s.now().UnixMilli(),
	}
	s.logger.Sugar().Debugw("Signed message",
		"address", signed.Address,
		"messageHash", message.HashMessage(msg),
	)
	return signed, nil
}

// SignContent builds the canonical message for content and signs it
func (s *Signer) SignContent(ctx context.Context, content *types.ContentToSign) (*types.SignedMessage, error) {
	msg, err := s.CreateMessage(content)
	if err != nil {
		return nil, newSigningError("create message", nil, err)
	}
	return s.SignMessage(ctx, msg)
}

// SignTypedData produces an EIP-712 signature over value, returned as 0x hex
func (s *Signer) SignTypedData(ctx context.Context, domain types.TypedDataDomain, typeDefs types.TypedDataTypes, value types.TypedDataMessage) (string, error) {
	if s.backend == nil {
		metrics.RecordSignature(schemeTyped, ErrKeyUnavailable)
		return "", newSigningError("sign typed data", ErrKeyUnavailable, nil)
	}

	digest, err := eip712.Hash(domain, typeDefs, value)
	if err != nil {
		metrics.RecordSignature(schemeTyped, err)
		return "", newSigningError("sign typed data", ErrInvalidTypedData, err)
	}

	sig, err := s.backend.SignDigest(ctx, digest)
	metrics.RecordSignature(schemeTyped, err)
	if err != nil {
		return "", newSigningError("sign typed data", ErrKeyUnavailable, err)
	}

	s.logger.Sugar().Debugw("Signed typed data",
		"address", s.backend.Address().String(),
		"digest", hexutil.Encode(digest),
	)
	return hexutil.Encode(sig), nil
}

// GetAddress returns the checksummed address of the signing key
func (s *Signer) GetAddress() (string, error) {
	if s.backend == nil {
		return "", newSigningError("get address", ErrKeyUnavailable, nil)
	}
	return s.backend.Address().String(), nil
}

// HashMessage returns a keccak256 content hash of msg for logging and
// deduplication
func HashMessage(msg string) string {
	return message.HashMessage(msg)
}
