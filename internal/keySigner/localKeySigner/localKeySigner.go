package localKeySigner

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/Layr-Labs/eigenx-msgsign-go/internal/keySigner"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// LocalKeySigner holds a secp256k1 private key in process memory
type LocalKeySigner struct {
	logger     *zap.Logger
	keyId      string
	privateKey *ecdsa.PrivateKey
	address    common.Address
}

// NewLocalKeySignerFromHex loads a hex encoded private key. The hex string
// can optionally start with "0x".
func NewLocalKeySignerFromHex(privateKeyHex string, logger *zap.Logger) (*LocalKeySigner, error) {
	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(privateKeyHex), "0x"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key from hex: %w", err)
	}
	return NewLocalKeySigner(privateKey, logger)
}

// NewLocalKeySigner wraps an existing private key
func NewLocalKeySigner(privateKey *ecdsa.PrivateKey, logger *zap.Logger) (*LocalKeySigner, error) {
	if privateKey == nil {
		return nil, fmt.Errorf("private key cannot be nil")
	}

	s := &LocalKeySigner{
		logger:     logger,
		keyId:      fmt.Sprintf("local-key-%s", uuid.New().String()),
		privateKey: privateKey,
		address:    crypto.PubkeyToAddress(privateKey.PublicKey),
	}

	logger.Sugar().Debugw("Loaded local signing key",
		"keyId", s.keyId,
		"address", s.address.String(),
	)
	return s, nil
}

// GenerateLocalKeySigner creates a signer around a freshly generated key
func GenerateLocalKeySigner(logger *zap.Logger) (*LocalKeySigner, error) {
	privateKey, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate ECDSA key: %w", err)
	}
	return NewLocalKeySigner(privateKey, logger)
}

func (l *LocalKeySigner) Address() common.Address {
	return l.address
}

func (l *LocalKeySigner) KeyId() string {
	return l.keyId
}

func (l *LocalKeySigner) SignDigest(ctx context.Context, digest []byte) ([]byte, error) {
	if len(digest) != 32 {
		return nil, fmt.Errorf("digest must be exactly 32 bytes, got %d", len(digest))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sig, err := crypto.Sign(digest, l.privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign digest with key %s: %w", l.keyId, err)
	}

	l.logger.Debug("Signed digest with local key",
		zap.String("keyId", l.keyId),
		zap.Int("signatureLen", len(sig)),
	)
	return keySigner.NormalizeRecoveryId(sig)
}
