// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package guard

import (
	"math/big"
	"testing"

	"github.com/luxfi/geth/common"

	"github.com/luxfi/everlast/internal/fixedmath"
)

func wad(n int64) *big.Int { return new(big.Int).Mul(big.NewInt(n), fixedmath.WAD) }

func TestCheckNonNegativeRejectsNegative(t *testing.T) {
	g := New()
	if err := g.CheckNonNegative(big.NewInt(-1)); err == nil {
		t.Fatal("expected NegativePrice error")
	}
	if err := g.CheckNonNegative(big.NewInt(0)); err != nil {
		t.Fatalf("zero price should pass: %v", err)
	}
}

func TestCheckConvexityAdvisoryByDefault(t *testing.T) {
	g := New()
	// C2 well above the chord: a clear violation, but hard-blocking is off
	// by default so this must still pass.
	err := g.CheckConvexity(wad(2800), wad(3000), wad(3200), wad(300), wad(500), wad(100))
	if err != nil {
		t.Fatalf("advisory convexity check should not block: %v", err)
	}
}

func TestCheckConvexityHardBlocks(t *testing.T) {
	g := New()
	g.SetHardBlocking(true, false)
	err := g.CheckConvexity(wad(2800), wad(3000), wad(3200), wad(300), wad(500), wad(100))
	if err == nil {
		t.Fatal("expected ConvexityViolated error when hard-blocking is on")
	}
}

func TestCheckConvexitySatisfied(t *testing.T) {
	g := New()
	g.SetHardBlocking(true, false)
	// Linear chord: C2 exactly at the midpoint satisfies convexity with
	// equality, which is within tolerance.
	err := g.CheckConvexity(wad(2800), wad(3000), wad(3200), wad(300), wad(200), wad(100))
	if err != nil {
		t.Fatalf("linear chord should satisfy convexity: %v", err)
	}
}

func TestCheckMonotonicityCall(t *testing.T) {
	g := New()
	g.SetHardBlocking(false, true)
	if err := g.CheckMonotonicity(true, wad(2800), wad(3000), wad(300), wad(200)); err != nil {
		t.Fatalf("non-increasing call prices should pass: %v", err)
	}
	if err := g.CheckMonotonicity(true, wad(2800), wad(3000), wad(200), wad(300)); err == nil {
		t.Fatal("expected MonotonicityViolated for increasing call prices")
	}
}

func TestCheckMonotonicityPut(t *testing.T) {
	g := New()
	g.SetHardBlocking(false, true)
	if err := g.CheckMonotonicity(false, wad(2800), wad(3000), wad(100), wad(200)); err != nil {
		t.Fatalf("non-decreasing put prices should pass: %v", err)
	}
	if err := g.CheckMonotonicity(false, wad(2800), wad(3000), wad(200), wad(100)); err == nil {
		t.Fatal("expected MonotonicityViolated for decreasing put prices")
	}
}

func TestCheckPutCallParity(t *testing.T) {
	g := New()
	// spot=3000, strike=3000: call-put = 0.
	if err := g.CheckPutCallParity(wad(150), wad(150), wad(3000), wad(3000)); err != nil {
		t.Fatalf("exact parity should pass: %v", err)
	}
	if err := g.CheckPutCallParity(wad(150), wad(50), wad(3000), wad(3000)); err == nil {
		t.Fatal("expected PutCallParityViolated for a large mismatch")
	}
}

func TestPriceBoundPassesWithNoRootSet(t *testing.T) {
	g := New()
	bound := PriceBound{BucketIndex: 5, LowerWad: wad(100), UpperWad: wad(200)}
	if err := g.CheckPriceBound(bound, MerkleProof{}, wad(150)); err != nil {
		t.Fatalf("bound check should pass with no root set: %v", err)
	}
}

func TestPriceBoundVerifiesAgainstRoot(t *testing.T) {
	g := New()
	bounds := []PriceBound{
		{BucketIndex: 0, LowerWad: wad(90), UpperWad: wad(110)},
		{BucketIndex: 1, LowerWad: wad(190), UpperWad: wad(210)},
		{BucketIndex: 2, LowerWad: wad(290), UpperWad: wad(310)},
	}
	leaves := make([]common.Hash, len(bounds))
	for i, b := range bounds {
		leaves[i] = leafHash(b.BucketIndex, b.LowerWad.Bytes(), b.UpperWad.Bytes())
	}
	root := ComputeMerkleRoot(leaves)
	g.SetPriceBoundsRoot(root)

	// Leaf 0 pairs with leaf 1 (its right sibling) at the base level; at
	// the next level up its sibling is leaf 2 hashed with its padded
	// duplicate.
	level0 := leaves
	proof := MerkleProof{
		Siblings: []common.Hash{level0[1], pairHash(level0[2], level0[2])},
		LeftMask: 0,
	}
	if err := g.CheckPriceBound(bounds[0], proof, wad(100)); err != nil {
		t.Fatalf("valid proof and in-bound price should pass: %v", err)
	}

	if err := g.CheckPriceBound(bounds[0], proof, wad(120)); err == nil {
		t.Fatal("expected PriceBoundExceeded for an out-of-range quote")
	}

	badProof := MerkleProof{Siblings: []common.Hash{{0xFF}, {0xEE}}, LeftMask: 0}
	if err := g.CheckPriceBound(bounds[0], badProof, wad(100)); err == nil {
		t.Fatal("expected PriceBoundProofInvalid for a bad proof")
	}
}
