// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package guard

import (
	"github.com/luxfi/geth/common"
	"github.com/zeebo/blake3"
)

// leafHash hashes a single price-bound leaf: bucket index as a 4-byte
// big-endian word || lower bound || upper bound, the bounds as given
// (callers pass big.Int.Bytes(), minimal-length big-endian).
func leafHash(bucketIndex uint32, lowerWad, upperWad []byte) common.Hash {
	h := blake3.New()
	var idx [4]byte
	idx[0] = byte(bucketIndex >> 24)
	idx[1] = byte(bucketIndex >> 16)
	idx[2] = byte(bucketIndex >> 8)
	idx[3] = byte(bucketIndex)
	h.Write(idx[:])
	h.Write(lowerWad)
	h.Write(upperWad)
	var out common.Hash
	h.Digest().Read(out[:])
	return out
}

// LeafHash hashes a PriceBound into its Merkle leaf, the same way
// CheckPriceBound does internally. Exported so an off-chain publisher
// can build the leaf set it feeds to ComputeMerkleRoot.
func LeafHash(bound PriceBound) common.Hash {
	return leafHash(bound.BucketIndex, bound.LowerWad.Bytes(), bound.UpperWad.Bytes())
}

// pairHash hashes two sibling nodes into their parent, matching the
// pad-and-hash bottom-up convention for an off-chain Merkle commitment.
func pairHash(left, right common.Hash) common.Hash {
	h := blake3.New()
	h.Write(left[:])
	h.Write(right[:])
	var out common.Hash
	h.Digest().Read(out[:])
	return out
}

// ComputeMerkleRoot builds a Merkle root over leaf hashes, padding the
// level with a duplicate of the last leaf when its size is odd.
func ComputeMerkleRoot(leaves []common.Hash) common.Hash {
	if len(leaves) == 0 {
		return common.Hash{}
	}
	level := make([]common.Hash, len(leaves))
	copy(level, leaves)

	for len(level) > 1 {
		if len(level)%2 != 0 {
			level = append(level, level[len(level)-1])
		}
		next := make([]common.Hash, len(level)/2)
		for i := 0; i < len(level); i += 2 {
			next[i/2] = pairHash(level[i], level[i+1])
		}
		level = next
	}
	return level[0]
}

// MerkleProof is an inclusion proof: the sibling hash at each level from
// leaf to root, plus a bitmask of which side the sibling sits on (bit i
// set means the sibling at level i is the left node).
type MerkleProof struct {
	Siblings  []common.Hash
	LeftMask  uint32
}

// VerifyProof recomputes the root from a leaf and its proof and reports
// whether it matches the committed root.
func VerifyProof(leaf common.Hash, proof MerkleProof, root common.Hash) bool {
	cur := leaf
	for i, sib := range proof.Siblings {
		if proof.LeftMask&(1<<uint(i)) != 0 {
			cur = pairHash(sib, cur)
		} else {
			cur = pairHash(cur, sib)
		}
	}
	return cur == root
}
