// Package eip712 builds and hashes EIP-712 typed data from the
// (domain, types, value) triple used by wallet signTypedData calls.
package eip712

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

const DomainTypeName = "EIP712Domain"

var (
	ErrNoPrimaryType        = errors.New("no primary type found")
	ErrAmbiguousPrimaryType = errors.New("ambiguous primary types")
)

// DomainType returns the EIP712Domain fields for the populated members of
// domain, in canonical order.
func DomainType(domain apitypes.TypedDataDomain) []apitypes.Type {
	var fields []apitypes.Type
	if domain.Name != "" {
		fields = append(fields, apitypes.Type{Name: "name", Type: "string"})
	}
	if domain.Version != "" {
		fields = append(fields, apitypes.Type{Name: "version", Type: "string"})
	}
	if domain.ChainId != nil {
		fields = append(fields, apitypes.Type{Name: "chainId", Type: "uint256"})
	}
	if domain.VerifyingContract != "" {
		fields = append(fields, apitypes.Type{Name: "verifyingContract", Type: "address"})
	}
	if domain.Salt != "" {
		fields = append(fields, apitypes.Type{Name: "salt", Type: "bytes32"})
	}
	return fields
}

// PrimaryType returns the one struct type that no other type references
func PrimaryType(types apitypes.Types) (string, error) {
	referenced := make(map[string]bool)
	for name, fields := range types {
		for _, f := range fields {
			base := baseTypeName(f.Type)
			if base != name {
				referenced[base] = true
			}
		}
	}

	var candidates []string
	for name := range types {
		if name == DomainTypeName || referenced[name] {
			continue
		}
		candidates = append(candidates, name)
	}

	switch len(candidates) {
	case 0:
		return "", ErrNoPrimaryType
	case 1:
		return candidates[0], nil
	default:
		sort.Strings(candidates)
		return "", fmt.Errorf("%w: %s", ErrAmbiguousPrimaryType, strings.Join(candidates, ", "))
	}
}

// strips array suffixes, "Person[][2]" -> "Person"
func baseTypeName(t string) string {
	if i := strings.IndexByte(t, '['); i >= 0 {
		return t[:i]
	}
	return t
}

// NewTypedData assembles an apitypes.TypedData. An EIP712Domain type is
// derived from domain unless types already declares one.
func NewTypedData(domain apitypes.TypedDataDomain, types apitypes.Types, value apitypes.TypedDataMessage) (*apitypes.TypedData, error) {
	if len(types) == 0 {
		return nil, fmt.Errorf("types cannot be empty")
	}
	if value == nil {
		return nil, fmt.Errorf("value cannot be nil")
	}

	primaryType, err := PrimaryType(types)
	if err != nil {
		return nil, err
	}

	allTypes := make(apitypes.Types, len(types)+1)
	for name, fields := range types {
		allTypes[name] = fields
	}
	if _, ok := allTypes[DomainTypeName]; !ok {
		allTypes[DomainTypeName] = DomainType(domain)
	}

	return &apitypes.TypedData{
		Types:       allTypes,
		PrimaryType: primaryType,
		Domain:      domain,
		Message:     value,
	}, nil
}

// Hash returns keccak256("\x19\x01" || domainSeparator || hashStruct(value))
func Hash(domain apitypes.TypedDataDomain, types apitypes.Types, value apitypes.TypedDataMessage) (digest []byte, err error) {
	typedData, err := NewTypedData(domain, types, value)
	if err != nil {
		return nil, err
	}

	// the encoder can panic on some malformed type/value combinations
	defer func() {
		if r := recover(); r != nil {
			digest = nil
			err = fmt.Errorf("failed to encode typed data: %v", r)
		}
	}()

	digest, _, err = apitypes.TypedDataAndHash(*typedData)
	if err != nil {
		return nil, fmt.Errorf("failed to encode typed data: %w", err)
	}
	return digest, nil
}
