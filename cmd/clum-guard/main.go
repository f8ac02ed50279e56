// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Command clum-guard is the off-chain price-bounds publisher: it reads a
// set of (bucket, lower, upper) bounds produced by an off-chain monitor,
// hashes them into a Merkle tree the same way internal/guard verifies
// inclusion proofs, and prints the resulting root plus each leaf's
// inclusion proof for submission alongside a quote.
package main

import (
	"encoding/json"
	"fmt"
	"math/big"
	"os"

	"github.com/luxfi/geth/common"
	"github.com/spf13/cobra"

	"github.com/luxfi/everlast/internal/guard"
)

// boundFile is the on-disk shape of a published bounds set: one entry
// per discretized bucket, strike-ordered, lower/upper in WAD decimal.
type boundFile struct {
	Bounds []boundEntry `json:"bounds"`
}

type boundEntry struct {
	BucketIndex uint32 `json:"bucketIndex"`
	LowerWad    string `json:"lowerWad"`
	UpperWad    string `json:"upperWad"`
}

// proofOutput is what gets written for each leaf: its bound, the
// resulting leaf hash, and the sibling proof against the root.
type proofOutput struct {
	BucketIndex uint32   `json:"bucketIndex"`
	Leaf        string   `json:"leaf"`
	Siblings    []string `json:"siblings"`
	LeftMask    uint32   `json:"leftMask"`
}

type rootOutput struct {
	Root   string        `json:"root"`
	Proofs []proofOutput `json:"proofs"`
}

func newRootCmd() *cobra.Command {
	var inputPath, outputPath string

	cmd := &cobra.Command{
		Use:   "clum-guard",
		Short: "Computes a Merkle root over off-chain price bounds and an inclusion proof per bucket",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(inputPath, outputPath)
		},
	}

	cmd.Flags().StringVar(&inputPath, "bounds", "", "path to a JSON file of published (bucketIndex, lowerWad, upperWad) bounds")
	cmd.Flags().StringVar(&outputPath, "out", "", "path to write the root and per-bucket proofs as JSON (defaults to stdout)")
	cmd.MarkFlagRequired("bounds")

	return cmd
}

func run(inputPath, outputPath string) error {
	bounds, err := loadBounds(inputPath)
	if err != nil {
		return err
	}
	if len(bounds) == 0 {
		return fmt.Errorf("clum-guard: bounds file has no entries")
	}

	leaves := make([]common.Hash, len(bounds))
	for i, b := range bounds {
		leaves[i] = guard.LeafHash(b)
	}
	root := guard.ComputeMerkleRoot(leaves)

	out := rootOutput{Root: root.Hex(), Proofs: make([]proofOutput, len(bounds))}
	for i, b := range bounds {
		proof := buildProof(leaves, i)
		out.Proofs[i] = proofOutput{
			BucketIndex: b.BucketIndex,
			Leaf:        leaves[i].Hex(),
			Siblings:    hashesToHex(proof.Siblings),
			LeftMask:    proof.LeftMask,
		}
	}

	encoded, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	if outputPath == "" {
		fmt.Println(string(encoded))
		return nil
	}
	return os.WriteFile(outputPath, append(encoded, '\n'), 0o644)
}

func loadBounds(path string) ([]guard.PriceBound, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f boundFile
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("clum-guard: parsing %s: %w", path, err)
	}

	bounds := make([]guard.PriceBound, len(f.Bounds))
	for i, e := range f.Bounds {
		lower, ok := new(big.Int).SetString(e.LowerWad, 10)
		if !ok {
			return nil, fmt.Errorf("clum-guard: bucket %d: invalid lowerWad %q", e.BucketIndex, e.LowerWad)
		}
		upper, ok := new(big.Int).SetString(e.UpperWad, 10)
		if !ok {
			return nil, fmt.Errorf("clum-guard: bucket %d: invalid upperWad %q", e.BucketIndex, e.UpperWad)
		}
		bounds[i] = guard.PriceBound{BucketIndex: e.BucketIndex, LowerWad: lower, UpperWad: upper}
	}
	return bounds, nil
}

// buildProof recomputes the sibling path for leaf index idx the same
// way ComputeMerkleRoot folds levels, so the output round-trips through
// guard.VerifyProof unchanged.
func buildProof(leaves []common.Hash, idx int) guard.MerkleProof {
	level := make([]common.Hash, len(leaves))
	copy(level, leaves)

	var proof guard.MerkleProof
	pos := idx
	for len(level) > 1 {
		if len(level)%2 != 0 {
			level = append(level, level[len(level)-1])
		}
		siblingPos := pos ^ 1
		proof.Siblings = append(proof.Siblings, level[siblingPos])
		if siblingPos < pos {
			proof.LeftMask |= 1 << uint(len(proof.Siblings)-1)
		}

		next := make([]common.Hash, len(level)/2)
		for i := 0; i < len(level); i += 2 {
			next[i/2] = guard.ComputeMerkleRoot([]common.Hash{level[i], level[i+1]})
		}
		level = next
		pos /= 2
	}
	return proof
}

func hashesToHex(hashes []common.Hash) []string {
	out := make([]string, len(hashes))
	for i, h := range hashes {
		out[i] = h.Hex()
	}
	return out
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "clum-guard:", err)
		os.Exit(1)
	}
}
