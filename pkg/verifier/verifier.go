// Package verifier recovers signer addresses from EIP-191 and EIP-712
// signatures. The boolean Verify functions are fail closed: any decoding
// or recovery problem is reported as a mismatch.
package verifier

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/Layr-Labs/eigenx-msgsign-go/pkg/eip712"
	"github.com/Layr-Labs/eigenx-msgsign-go/pkg/types"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

const signatureHexLength = 2 + 65*2

var (
	ErrInvalidSignatureFormat = errors.New("signature must be 0x followed by 130 hex characters")
	ErrInvalidRecoveryId      = errors.New("invalid signature recovery id")
	ErrInvalidSignatureValues = errors.New("invalid signature values")
	ErrInvalidAddress         = errors.New("invalid address")
)

// DecodeSignature parses a 0x hex r || s || v signature. v may be 0, 1, 27
// or 28; the returned signature has v in {0, 1}. High s values are rejected.
func DecodeSignature(signature string) ([]byte, error) {
	if len(signature) != signatureHexLength {
		return nil, ErrInvalidSignatureFormat
	}
	sig, err := hexutil.Decode(signature)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignatureFormat, err)
	}

	switch sig[64] {
	case 0, 1:
	case 27, 28:
		sig[64] -= 27
	default:
		return nil, fmt.Errorf("%w: %d", ErrInvalidRecoveryId, sig[64])
	}

	r := new(big.Int).SetBytes(sig[:32])
	s := new(big.Int).SetBytes(sig[32:64])
	if !crypto.ValidateSignatureValues(sig[64], r, s, true) {
		return nil, ErrInvalidSignatureValues
	}
	return sig, nil
}

func recoverFromDigest(digest []byte, signature string) (common.Address, error) {
	sig, err := DecodeSignature(signature)
	if err != nil {
		return common.Address{}, err
	}
	pub, err := crypto.SigToPub(digest, sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to recover public key: %w", err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// RecoverPersonalSignAddress returns the address that signed message under
// EIP-191 personal sign
func RecoverPersonalSignAddress(message, signature string) (common.Address, error) {
	return recoverFromDigest(accounts.TextHash([]byte(message)), signature)
}

// RecoverTypedDataAddress returns the address that produced an EIP-712
// signature over value
func RecoverTypedDataAddress(domain types.TypedDataDomain, typeDefs types.TypedDataTypes, value types.TypedDataMessage, signature string) (common.Address, error) {
	digest, err := eip712.Hash(domain, typeDefs, value)
	if err != nil {
		return common.Address{}, err
	}
	return recoverFromDigest(digest, signature)
}

// ParseAddress decodes a hex address, with or without 0x, in any case
func ParseAddress(address string) (common.Address, error) {
	if !common.IsHexAddress(address) {
		return common.Address{}, fmt.Errorf("%w: %q", ErrInvalidAddress, address)
	}
	return common.HexToAddress(address), nil
}

func matches(recovered common.Address, err error, expected string) bool {
	if err != nil {
		return false
	}
	want, err := ParseAddress(expected)
	if err != nil {
		return false
	}
	return recovered == want
}

// VerifySignature reports whether signature over message was produced by
// expectedAddress
func VerifySignature(message, signature, expectedAddress string) bool {
	recovered, err := RecoverPersonalSignAddress(message, signature)
	return matches(recovered, err, expectedAddress)
}

// VerifyTypedData reports whether an EIP-712 signature over value was
// produced by expectedAddress
func VerifyTypedData(domain types.TypedDataDomain, typeDefs types.TypedDataTypes, value types.TypedDataMessage, signature, expectedAddress string) bool {
	recovered, err := RecoverTypedDataAddress(domain, typeDefs, value, signature)
	return matches(recovered, err, expectedAddress)
}
