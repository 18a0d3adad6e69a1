package merkle

import (
	"encoding/binary"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/Layr-Labs/eigenx-msgsign-go/pkg/types"
)

// BuildMerkleTree creates a binary merkle tree from ledger records. The
// records are hashed in the order given, which is ledger order, so the root
// commits to both content and sequence.
//
// If there's an odd number of nodes at any level, the last node is duplicated.
func BuildMerkleTree(records []*types.SubmissionRecord) (*MerkleTree, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("cannot build merkle tree from empty record list")
	}

	leaves := make([][32]byte, len(records))
	for i, record := range records {
		if record == nil || record.Submission == nil {
			return nil, fmt.Errorf("record %d is empty", i)
		}
		leaves[i] = HashSubmissionRecord(record)
	}
	return BuildMerkleTreeFromLeaves(leaves)
}

// BuildMerkleTreeFromLeaves creates a tree from precomputed leaf hashes
func BuildMerkleTreeFromLeaves(leaves [][32]byte) (*MerkleTree, error) {
	if len(leaves) == 0 {
		return nil, fmt.Errorf("cannot build merkle tree from empty leaf list")
	}

	levels := make([][][32]byte, 0)
	levels = append(levels, leaves)

	currentLevel := leaves
	for len(currentLevel) > 1 {
		nextLevel := make([][32]byte, 0, (len(currentLevel)+1)/2)

		for i := 0; i < len(currentLevel); i += 2 {
			left := currentLevel[i]
			right := left
			if i+1 < len(currentLevel) {
				right = currentLevel[i+1]
			}
			nextLevel = append(nextLevel, hashPair(left, right))
		}

		levels = append(levels, nextLevel)
		currentLevel = nextLevel
	}

	return &MerkleTree{
		Leaves: leaves,
		Root:   currentLevel[0],
		levels: levels,
	}, nil
}

// GenerateProof creates a merkle proof for the leaf at the given index.
// The proof consists of sibling hashes along the path from leaf to root.
func (mt *MerkleTree) GenerateProof(leafIndex int) (*MerkleProof, error) {
	if leafIndex < 0 || leafIndex >= len(mt.Leaves) {
		return nil, fmt.Errorf("leaf index %d out of bounds (tree has %d leaves)", leafIndex, len(mt.Leaves))
	}

	proof := make([][32]byte, 0)
	index := leafIndex

	for level := 0; level < len(mt.levels)-1; level++ {
		currentLevel := mt.levels[level]

		var siblingIndex int
		if index%2 == 0 {
			siblingIndex = index + 1
		} else {
			siblingIndex = index - 1
		}

		// last node on an odd level is paired with itself
		if siblingIndex >= len(currentLevel) {
			siblingIndex = index
		}

		proof = append(proof, currentLevel[siblingIndex])
		index = index / 2
	}

	return &MerkleProof{
		LeafIndex: leafIndex,
		Leaf:      mt.Leaves[leafIndex],
		Proof:     proof,
	}, nil
}

// VerifyProof verifies that a leaf is included in the merkle tree with the given root.
func VerifyProof(proof *MerkleProof, root [32]byte) bool {
	if proof == nil || proof.LeafIndex < 0 {
		return false
	}

	currentHash := proof.Leaf
	index := proof.LeafIndex

	for _, siblingHash := range proof.Proof {
		if index%2 == 0 {
			currentHash = hashPair(currentHash, siblingHash)
		} else {
			currentHash = hashPair(siblingHash, currentHash)
		}
		index = index / 2
	}

	return currentHash == root
}

// HashSubmissionRecord creates the keccak256 leaf hash of a record:
//
//	keccak256(keccak256(id) || signer (20 bytes) || keccak256(signedMessage) || keccak256(signature) || acceptedAt (8 bytes, big endian))
func HashSubmissionRecord(record *types.SubmissionRecord) [32]byte {
	sub := record.Submission

	data := make([]byte, 0, 32+20+32+32+8)
	data = append(data, crypto.Keccak256([]byte(record.Id))...)
	data = append(data, common.HexToAddress(sub.SignerAddress).Bytes()...)
	data = append(data, crypto.Keccak256([]byte(sub.SignedMessage))...)
	data = append(data, crypto.Keccak256([]byte(sub.Signature))...)
	data = binary.BigEndian.AppendUint64(data, uint64(record.AcceptedAt))

	return [32]byte(crypto.Keccak256Hash(data))
}

// hashPair computes keccak256(left || right) for two 32-byte hashes.
func hashPair(left, right [32]byte) [32]byte {
	data := make([]byte, 64)
	copy(data[0:32], left[:])
	copy(data[32:64], right[:])

	return [32]byte(crypto.Keccak256Hash(data))
}
