package keySigner

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// SignatureLength is the length of an r || s || v secp256k1 signature
const SignatureLength = 65

// IKeySigner signs 32 byte digests with a secp256k1 key it never exposes.
// Returned signatures are r || s || v with v in {27, 28}.
type IKeySigner interface {
	Address() common.Address
	SignDigest(ctx context.Context, digest []byte) ([]byte, error)
}

// NormalizeRecoveryId rewrites a 0/1 recovery id into the 27/28 form
func NormalizeRecoveryId(sig []byte) ([]byte, error) {
	if len(sig) != SignatureLength {
		return nil, fmt.Errorf("signature must be %d bytes, got %d", SignatureLength, len(sig))
	}
	out := make([]byte, SignatureLength)
	copy(out, sig)
	switch out[64] {
	case 0, 1:
		out[64] += 27
	case 27, 28:
	default:
		return nil, fmt.Errorf("invalid recovery id %d", out[64])
	}
	return out, nil
}
