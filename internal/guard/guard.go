// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package guard implements the stateless arbitrage checks that sit
// between a quote and its execution: non-negativity (hard-blocking),
// convexity and monotonicity (advisory, off-chain enforced by default),
// and an optional Merkle-committed off-chain price-bound check.
package guard

import (
	"math/big"
	"sync"

	"github.com/luxfi/geth/common"

	"github.com/luxfi/everlast/internal/errs"
	"github.com/luxfi/everlast/internal/fixedmath"
)

// convexityTolerance is the 0.1% slack allowed when checking
// C(K2) <= lambda*C(K1) + (1-lambda)*C(K3).
var convexityTolerance = fixedmath.DivWad(fixedmath.WAD, big.NewInt(1000))

// Guard is a stateless validator plus an optional Merkle-committed
// off-chain price-bounds root. It holds no position or market state.
type Guard struct {
	mu                    sync.RWMutex
	root                  common.Hash
	rootSet               bool
	hardBlockConvexity    bool
	hardBlockMonotonicity bool
}

// New constructs a Guard with convexity and monotonicity left as
// advisory (off-chain only) by default.
func New() *Guard {
	return &Guard{}
}

// SetHardBlocking toggles whether convexity/monotonicity violations
// reject a trade inline rather than only being reported off-chain.
func (g *Guard) SetHardBlocking(convexity, monotonicity bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.hardBlockConvexity = convexity
	g.hardBlockMonotonicity = monotonicity
}

// CheckNonNegative hard-blocks any negative quoted price.
func (g *Guard) CheckNonNegative(priceWad *big.Int) error {
	if priceWad.Sign() < 0 {
		return errs.ErrNegativePrice
	}
	return nil
}

// CheckConvexity verifies C(K2) <= lambda*C(K1) + (1-lambda)*C(K3) + tol
// for three strictly increasing strikes K1 < K2 < K3, where
// lambda = (K3-K2)/(K3-K1). Returns nil when the check is satisfied or
// when hard-blocking is disabled and the violation is advisory only.
func (g *Guard) CheckConvexity(k1, k2, k3, c1, c2, c3 *big.Int) error {
	if !(k1.Cmp(k2) < 0 && k2.Cmp(k3) < 0) {
		return errs.ErrInvalidStrikeOrdering
	}

	span := new(big.Int).Sub(k3, k1)
	upper := new(big.Int).Sub(k3, k2)
	lambda := fixedmath.DivWad(upper, span)
	oneMinusLambda := new(big.Int).Sub(fixedmath.WAD, lambda)

	bound := new(big.Int).Add(fixedmath.MulWad(lambda, c1), fixedmath.MulWad(oneMinusLambda, c3))
	bound.Add(bound, convexityTolerance)

	if c2.Cmp(bound) > 0 {
		g.mu.RLock()
		hard := g.hardBlockConvexity
		g.mu.RUnlock()
		if hard {
			return errs.ErrConvexityViolated
		}
	}
	return nil
}

// CheckMonotonicity verifies that call prices are non-increasing in
// strike and put prices are non-decreasing, for two strikes k1 < k2.
func (g *Guard) CheckMonotonicity(isCall bool, k1, k2, c1, c2 *big.Int) error {
	if k1.Cmp(k2) >= 0 {
		return errs.ErrInvalidStrikeOrdering
	}

	violated := false
	if isCall {
		violated = c2.Cmp(c1) > 0
	} else {
		violated = c2.Cmp(c1) < 0
	}
	if violated {
		g.mu.RLock()
		hard := g.hardBlockMonotonicity
		g.mu.RUnlock()
		if hard {
			return errs.ErrMonotonicityViolated
		}
	}
	return nil
}

// CheckPutCallParity verifies C(K) - P(K) == spot - K (zero rate),
// within the convexity tolerance. This check is off-chain only: it is
// used to tighten Merkle-published bounds, never to block a trade.
func (g *Guard) CheckPutCallParity(callPrice, putPrice, spot, strike *big.Int) error {
	lhs := new(big.Int).Sub(callPrice, putPrice)
	rhs := new(big.Int).Sub(spot, strike)
	diff := new(big.Int).Sub(lhs, rhs)
	diff.Abs(diff)
	if diff.Cmp(convexityTolerance) > 0 {
		return errs.ErrPutCallParityViolated
	}
	return nil
}

// SetPriceBoundsRoot commits a new Merkle root over off-chain-published
// PriceBound leaves.
func (g *Guard) SetPriceBoundsRoot(root common.Hash) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.root = root
	g.rootSet = true
}

// PriceBoundsRoot returns the currently committed root, if any.
func (g *Guard) PriceBoundsRoot() (common.Hash, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.root, g.rootSet
}

// PriceBound is a single off-chain-published leaf: a bucket index with a
// lower and upper price bound, verifiable in-place against the committed
// Merkle root. Option type, strike, bid and ask are not part of the leaf.
type PriceBound struct {
	BucketIndex uint32
	LowerWad    *big.Int
	UpperWad    *big.Int
}

// CheckPriceBound verifies that quotedWad falls within the committed
// [lower, upper] bound for the given leaf's inclusion proof. If no root
// is set, the check passes unconditionally.
func (g *Guard) CheckPriceBound(bound PriceBound, proof MerkleProof, quotedWad *big.Int) error {
	root, ok := g.PriceBoundsRoot()
	if !ok {
		return nil
	}

	leaf := LeafHash(bound)
	if !VerifyProof(leaf, proof, root) {
		return errs.ErrPriceBoundProofInvalid
	}
	if quotedWad.Cmp(bound.LowerWad) < 0 || quotedWad.Cmp(bound.UpperWad) > 0 {
		return errs.ErrPriceBoundExceeded
	}
	return nil
}
