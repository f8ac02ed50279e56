// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package clum implements the Constant-Log-Utility Market Maker: the
// pricing engine at the center of the perpetual-options core. It holds
// the share vector q, the fixed prior pi, the cached cost C and the
// constant utility level U, and solves the implicit cost function
// f(C) = sum(pi[i]*ln(C-q[i])) = U on every trade.
package clum

import (
	"math/big"
	"sync"

	"github.com/luxfi/everlast/internal/buckets"
	"github.com/luxfi/everlast/internal/errs"
	"github.com/luxfi/everlast/internal/fixedmath"
)

// Engine owns q, C, U and pi exclusively; every read elsewhere in the
// core is a value copy, matching the ownership boundaries of the
// engine's data model.
type Engine struct {
	mu sync.RWMutex

	registry *buckets.Registry
	solver   Solver

	initialized bool
	pi          []*big.Int // prior, fixed at initialization
	q           []*big.Int // share vector, signed WAD
	c           *big.Int   // cached cost, signed WAD
	u           *big.Int   // constant utility level
}

// New constructs an uninitialized engine bound to a bucket registry. The
// registry's NumBuckets() fixes the dimensionality of q and pi.
func New(registry *buckets.Registry) *Engine {
	return &Engine{
		registry: registry,
		solver:   BisectionSolver{},
	}
}

// WithSolver overrides the default bisection root finder, e.g. in tests
// that want to exercise a deliberately failing solver.
func (e *Engine) WithSolver(s Solver) *Engine {
	e.solver = s
	return e
}

// Initialize sets C0 from the pool's subsidy and derives U = ln(C0). The
// prior is uniform unless sigma is non-nil, in which case it is a
// log-normal prior centered on the registry's current spot with width
// sigma, normalized so its residue lands in the lower tail bucket.
func (e *Engine) Initialize(subsidy *big.Int, sigma *big.Int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.initialized {
		return errs.ErrAlreadyInitialized
	}
	if subsidy == nil || subsidy.Sign() <= 0 {
		return errs.ErrZeroSubsidy
	}
	if sigma != nil && sigma.Sign() <= 0 {
		return errs.ErrZeroSigma
	}

	n := e.registry.NumBuckets()
	pi, err := e.buildPrior(n, sigma)
	if err != nil {
		return err
	}

	u, err := fixedmath.LnWad(subsidy)
	if err != nil {
		return err
	}

	q := make([]*big.Int, n)
	for i := range q {
		q[i] = big.NewInt(0)
	}

	e.pi = pi
	e.q = q
	e.c = new(big.Int).Set(subsidy)
	e.u = u
	e.initialized = true
	return nil
}

// buildPrior constructs the prior vector: uniform by default, or
// log-normal around spot with the given width, with residual probability
// mass swept into bucket 0 so the vector sums to exactly WAD.
func (e *Engine) buildPrior(n int, sigma *big.Int) ([]*big.Int, error) {
	pi := make([]*big.Int, n)
	if sigma == nil {
		share := new(big.Int).Quo(fixedmath.WAD, big.NewInt(int64(n)))
		sum := big.NewInt(0)
		for i := 0; i < n; i++ {
			pi[i] = new(big.Int).Set(share)
			sum.Add(sum, share)
		}
		pi[0].Add(pi[0], new(big.Int).Sub(fixedmath.WAD, sum))
		return pi, nil
	}

	spot, err := e.registry.SpotPrice()
	if err != nil {
		return nil, err
	}
	weights := make([]*big.Int, n)
	sum := big.NewInt(0)
	twoSigmaSq := fixedmath.MulWad(sigma, sigma)
	twoSigmaSq = new(big.Int).Mul(twoSigmaSq, big.NewInt(2))

	for i := 0; i < n; i++ {
		mid, err := e.registry.Midpoint(i)
		if err != nil {
			return nil, err
		}
		ratio := fixedmath.DivWad(mid, spot)
		lnRatio, err := fixedmath.LnWad(ratio)
		if err != nil {
			return nil, err
		}
		sq := fixedmath.MulWad(lnRatio, lnRatio)
		exponent := new(big.Int).Neg(fixedmath.DivWad(sq, twoSigmaSq))
		w, err := fixedmath.ExpWad(exponent)
		if err != nil {
			return nil, err
		}
		w = fixedmath.DivWad(w, mid)
		weights[i] = w
		sum.Add(sum, w)
	}

	for i := 0; i < n; i++ {
		pi[i] = fixedmath.DivWad(weights[i], sum)
	}
	normSum := big.NewInt(0)
	for _, w := range pi {
		normSum.Add(normSum, w)
	}
	pi[0].Add(pi[0], new(big.Int).Sub(fixedmath.WAD, normSum))
	return pi, nil
}

// Kappa computes the bucket-indexed payoff vector for a unit option of
// the given type, strike and size.
func (e *Engine) Kappa(optType OptionType, strikeWad, sizeWad *big.Int) ([]*big.Int, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.kappaLocked(optType, strikeWad, sizeWad)
}

func (e *Engine) kappaLocked(optType OptionType, strikeWad, sizeWad *big.Int) ([]*big.Int, error) {
	n := e.registry.NumBuckets()
	kappa := make([]*big.Int, n)
	for i := 0; i < n; i++ {
		mid, err := e.registry.Midpoint(i)
		if err != nil {
			return nil, err
		}
		var diff *big.Int
		if optType == Call {
			diff = new(big.Int).Sub(mid, strikeWad)
		} else {
			diff = new(big.Int).Sub(strikeWad, mid)
		}
		if diff.Sign() < 0 {
			diff = big.NewInt(0)
		}
		kappa[i] = fixedmath.MulWad(diff, sizeWad)
	}
	return kappa, nil
}

// evalF computes f(C) = sum(pi[i]*ln(C-q[i])) for a candidate cost and
// share vector, failing with ErrLogDomain if C does not exceed every
// entry of q.
func (e *Engine) evalF(pi, q []*big.Int, c *big.Int) (*big.Int, error) {
	sum := big.NewInt(0)
	for i := range q {
		wealth := new(big.Int).Sub(c, q[i])
		if wealth.Sign() <= 0 {
			return nil, errs.ErrLogDomain
		}
		lnw, err := fixedmath.LnWad(wealth)
		if err != nil {
			return nil, err
		}
		sum.Add(sum, fixedmath.MulWad(pi[i], lnw))
	}
	return sum, nil
}

func maxOf(q []*big.Int) *big.Int {
	m := new(big.Int).Set(q[0])
	for _, v := range q[1:] {
		if v.Cmp(m) > 0 {
			m = new(big.Int).Set(v)
		}
	}
	return m
}

func addVectors(q, kappa []*big.Int) []*big.Int {
	out := make([]*big.Int, len(q))
	for i := range q {
		out[i] = new(big.Int).Add(q[i], kappa[i])
	}
	return out
}

func subVectors(q, kappa []*big.Int) []*big.Int {
	out := make([]*big.Int, len(q))
	for i := range q {
		out[i] = new(big.Int).Sub(q[i], kappa[i])
	}
	return out
}

// solveFor finds the cost C' satisfying f(C') = U for the given share
// vector.
func (e *Engine) solveFor(qPrime []*big.Int) (*big.Int, error) {
	maxQ := maxOf(qPrime)
	low := new(big.Int).Add(maxQ, big.NewInt(1))
	evalF := func(c *big.Int) (*big.Int, error) {
		return e.evalF(e.pi, qPrime, c)
	}
	return e.solver.Solve(evalF, low, maxQ, e.u)
}

// QuoteBuy is a pure view: it returns the WAD cost of buying size units
// of optType at strike, without mutating state.
func (e *Engine) QuoteBuy(optType OptionType, strikeWad, sizeWad *big.Int) (*big.Int, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if !e.initialized {
		return nil, errs.ErrNotInitialized
	}
	kappa, err := e.kappaLocked(optType, strikeWad, sizeWad)
	if err != nil {
		return nil, err
	}
	qPrime := addVectors(e.q, kappa)
	cPrime, err := e.solveFor(qPrime)
	if err != nil {
		return nil, err
	}
	return new(big.Int).Sub(cPrime, e.c), nil
}

// QuoteSell is a pure view: it returns the WAD revenue from selling size
// units of optType at strike, failing with ErrInsufficientLiquidity if
// the resulting cost would not clear the new share vector's maximum.
func (e *Engine) QuoteSell(optType OptionType, strikeWad, sizeWad *big.Int) (*big.Int, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if !e.initialized {
		return nil, errs.ErrNotInitialized
	}
	kappa, err := e.kappaLocked(optType, strikeWad, sizeWad)
	if err != nil {
		return nil, err
	}
	qPrime := subVectors(e.q, kappa)
	cPrime, err := e.solveFor(qPrime)
	if err != nil {
		return nil, err
	}
	maxQPrime := maxOf(qPrime)
	if cPrime.Cmp(maxQPrime) <= 0 {
		return nil, errs.ErrInsufficientLiquidity
	}
	return new(big.Int).Sub(e.c, cPrime), nil
}

// ExecuteBuy commits the trade computed by QuoteBuy. It does not check
// its caller; the order manager calls it after collateral and premium
// transfers have already succeeded, so state commits only once the
// transfers are final.
func (e *Engine) ExecuteBuy(optType OptionType, strikeWad, sizeWad *big.Int) (cost *big.Int, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.initialized {
		return nil, errs.ErrNotInitialized
	}
	kappa, err := e.kappaLocked(optType, strikeWad, sizeWad)
	if err != nil {
		return nil, err
	}
	qPrime := addVectors(e.q, kappa)
	cPrime, err := e.solveFor(qPrime)
	if err != nil {
		return nil, err
	}
	cost = new(big.Int).Sub(cPrime, e.c)
	e.q = qPrime
	e.c = cPrime
	return cost, nil
}

// ExecuteSell commits the reverse trade computed by QuoteSell.
func (e *Engine) ExecuteSell(optType OptionType, strikeWad, sizeWad *big.Int) (revenue *big.Int, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.initialized {
		return nil, errs.ErrNotInitialized
	}
	kappa, err := e.kappaLocked(optType, strikeWad, sizeWad)
	if err != nil {
		return nil, err
	}
	qPrime := subVectors(e.q, kappa)
	cPrime, err := e.solveFor(qPrime)
	if err != nil {
		return nil, err
	}
	maxQPrime := maxOf(qPrime)
	if cPrime.Cmp(maxQPrime) <= 0 {
		return nil, errs.ErrInsufficientLiquidity
	}
	revenue = new(big.Int).Sub(e.c, cPrime)
	e.q = qPrime
	e.c = cPrime
	return revenue, nil
}

// VerifyAndSet commits a cost proposed by an off-chain solver, amortizing
// root-finding work off the hot path. It requires the proposed share
// vector to match the committed state element-wise and the residual
// |f(Cproposed)-U| to be within tol.
func (e *Engine) VerifyAndSet(cProposed *big.Int, qProposed []*big.Int, tol *big.Int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.initialized {
		return errs.ErrNotInitialized
	}
	if len(qProposed) != len(e.q) {
		return errs.ErrQuantityMismatch
	}
	for i := range e.q {
		if qProposed[i].Cmp(e.q[i]) != 0 {
			return errs.ErrQuantityMismatch
		}
	}
	fVal, err := e.evalF(e.pi, qProposed, cProposed)
	if err != nil {
		return errs.ErrInvalidVerification
	}
	residual := new(big.Int).Sub(fVal, e.u)
	residual.Abs(residual)
	if residual.Cmp(tol) > 0 {
		return errs.ErrInvalidVerification
	}
	e.c = new(big.Int).Set(cProposed)
	return nil
}

// RiskNeutralPrices returns p[i] = (pi[i]/(C-q[i])) / sum_j(pi[j]/(C-q[j])).
func (e *Engine) RiskNeutralPrices() ([]*big.Int, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if !e.initialized {
		return nil, errs.ErrNotInitialized
	}
	raw := make([]*big.Int, len(e.q))
	sum := big.NewInt(0)
	for i := range e.q {
		wealth := new(big.Int).Sub(e.c, e.q[i])
		r := fixedmath.DivWad(e.pi[i], wealth)
		raw[i] = r
		sum.Add(sum, r)
	}
	out := make([]*big.Int, len(raw))
	for i, r := range raw {
		out[i] = fixedmath.DivWad(r, sum)
	}
	return out, nil
}

// ImpliedDistribution zips bucket midpoints with RiskNeutralPrices.
func (e *Engine) ImpliedDistribution() (midpoints, probs []*big.Int, err error) {
	probs, err = e.RiskNeutralPrices()
	if err != nil {
		return nil, nil, err
	}
	n := e.registry.NumBuckets()
	midpoints = make([]*big.Int, n)
	for i := 0; i < n; i++ {
		mid, err := e.registry.Midpoint(i)
		if err != nil {
			return nil, nil, err
		}
		midpoints[i] = mid
	}
	return midpoints, probs, nil
}

// Q returns a value copy of the share vector.
func (e *Engine) Q() []*big.Int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]*big.Int, len(e.q))
	for i, v := range e.q {
		out[i] = new(big.Int).Set(v)
	}
	return out
}

// C returns the cached cost.
func (e *Engine) C() *big.Int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return new(big.Int).Set(e.c)
}

// U returns the constant utility level.
func (e *Engine) U() *big.Int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return new(big.Int).Set(e.u)
}

// N returns the number of buckets.
func (e *Engine) N() int {
	return e.registry.NumBuckets()
}

// Initialized reports whether Initialize has been called.
func (e *Engine) Initialized() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.initialized
}
