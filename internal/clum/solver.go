// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package clum

import (
	"math/big"

	"github.com/luxfi/everlast/internal/errs"
)

// convergenceTol is the bisection window width at which the root
// finder considers C converged: 10^8, i.e. 10^-10 WAD.
var convergenceTol = big.NewInt(1e8)

// ConvergenceTol exposes the solver's window width, used by callers
// (e.g. round-trip property checks) that need to reason about residual
// error in C.
func ConvergenceTol() *big.Int { return new(big.Int).Set(convergenceTol) }

// Solver is the pluggable root-finding capability the engine delegates
// to, so the bisection reference implementation sits behind a capability
// interface for testability.
type Solver interface {
	// Solve finds C such that evalF(C) == target (within tolerance),
	// searching from low upward. evalF must return ErrLogDomain for any
	// C at or below maxQ.
	Solve(evalF func(C *big.Int) (*big.Int, error), low, maxQ, target *big.Int) (*big.Int, error)
}

// BisectionSolver is the reference root finder: bracket
// expansion by geometric doubling, then bisection for at most 100
// iterations.
type BisectionSolver struct{}

const (
	maxBracketDoublings = 50
	maxBisectionIters   = 100
)

// Solve implements Solver.
func (BisectionSolver) Solve(evalF func(C *big.Int) (*big.Int, error), low, maxQ, target *big.Int) (*big.Int, error) {
	fLow, err := evalF(low)
	if err != nil {
		return nil, err
	}

	// Expand the bracket geometrically until f(high) >= target.
	high := new(big.Int).Mul(low, big.NewInt(2))
	minHigh := new(big.Int).Add(maxQ, new(big.Int).Mul(big.NewInt(10000), bigWad()))
	if high.Cmp(minHigh) < 0 {
		high = new(big.Int).Set(minHigh)
	}
	var fHigh *big.Int
	for i := 0; i < maxBracketDoublings; i++ {
		fHigh, err = evalF(high)
		if err != nil {
			return nil, err
		}
		if fHigh.Cmp(target) >= 0 {
			break
		}
		high = new(big.Int).Mul(high, big.NewInt(2))
	}
	if fHigh.Cmp(target) < 0 {
		return nil, errs.ErrNewtonDidNotConverge
	}

	if fLow.Cmp(target) >= 0 {
		// f is monotonically increasing in C, so f(low) >= target means
		// the true root lies at or below low — outside the domain
		// C > max(q[i]). No valid cost clears this trade.
		return nil, errs.ErrInsufficientLiquidity
	}

	for i := 0; i < maxBisectionIters; i++ {
		width := new(big.Int).Sub(high, low)
		if width.Cmp(convergenceTol) <= 0 {
			break
		}
		mid := new(big.Int).Add(low, high)
		mid.Quo(mid, big.NewInt(2))

		fMid, err := evalF(mid)
		if err != nil {
			// mid fell into the log domain: the root must be above it.
			low = mid
			continue
		}
		if fMid.Cmp(target) >= 0 {
			high = mid
		} else {
			low = mid
		}
	}
	return high, nil
}

func bigWad() *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
}
