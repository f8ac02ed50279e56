// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package buckets discretizes the underlying price space into a fixed
// grid of half-open intervals so the CLUM engine's cost function stays
// O(N). Bucket 0 and bucket N+1 are open tails with finite midpoints,
// keeping the log-utility cost function from diverging on extreme
// prices.
package buckets

import (
	"math/big"
	"sync"
	"time"

	"github.com/luxfi/everlast/internal/errs"
	"github.com/luxfi/everlast/internal/feed"
	"github.com/luxfi/everlast/internal/fixedmath"
)

// Registry holds the grid parameters and the spot-feed handle. Width
// and NumRegular are fixed at construction; CenterPrice may move via
// Recenter.
type Registry struct {
	mu sync.RWMutex

	priceFeed feed.PriceFeed
	staleness time.Duration
	threshold *big.Int // WAD fraction, e.g. 0.1*WAD = 10%

	centerPrice *big.Int // WAD
	width       *big.Int // WAD
	numRegular  int
	lowerEdge   *big.Int // WAD
	upperEdge   *big.Int // WAD

	now func() time.Time
}

// Config parameterizes a new Registry.
type Config struct {
	PriceFeed          feed.PriceFeed
	OracleStaleness    time.Duration
	RebalanceThreshold *big.Int // WAD fraction
	CenterPrice        *big.Int // WAD
	Width              *big.Int // WAD
	NumRegular         int
}

// New builds a Registry around an initial center price. NumRegular must
// be even and >= 4; CenterPrice must exceed (NumRegular/2)*Width so the
// lower edge stays positive.
func New(cfg Config) (*Registry, error) {
	if cfg.NumRegular < 4 || cfg.NumRegular%2 != 0 {
		return nil, errs.ErrInvalidConfig
	}
	if cfg.Width == nil || cfg.Width.Sign() <= 0 {
		return nil, errs.ErrInvalidConfig
	}
	if cfg.CenterPrice == nil || cfg.CenterPrice.Sign() <= 0 {
		return nil, errs.ErrInvalidConfig
	}
	half := big.NewInt(int64(cfg.NumRegular / 2))
	minCenter := new(big.Int).Mul(half, cfg.Width)
	if cfg.CenterPrice.Cmp(minCenter) <= 0 {
		return nil, errs.ErrInvalidConfig
	}

	r := &Registry{
		priceFeed:   cfg.PriceFeed,
		staleness:   cfg.OracleStaleness,
		threshold:   cfg.RebalanceThreshold,
		centerPrice: new(big.Int).Set(cfg.CenterPrice),
		width:       new(big.Int).Set(cfg.Width),
		numRegular:  cfg.NumRegular,
		now:         time.Now,
	}
	r.rebuildEdges()
	return r, nil
}

func (r *Registry) rebuildEdges() {
	half := big.NewInt(int64(r.numRegular / 2))
	offset := new(big.Int).Mul(half, r.width)
	r.lowerEdge = new(big.Int).Sub(r.centerPrice, offset)
	r.upperEdge = new(big.Int).Add(r.centerPrice, offset)
}

// NumBuckets returns N+2.
func (r *Registry) NumBuckets() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.numRegular + 2
}

// Midpoint returns the midpoint price of bucket i.
func (r *Registry) Midpoint(i int) (*big.Int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	bounds, err := r.bucketBounds(i)
	if err != nil {
		return nil, err
	}
	if i == 0 {
		// Lower tail: midpoint of [0, lowerEdge).
		return new(big.Int).Quo(r.lowerEdge, big.NewInt(2)), nil
	}
	if i == r.numRegular+1 {
		return new(big.Int).Add(r.upperEdge, r.width), nil
	}
	sum := new(big.Int).Add(bounds[0], bounds[1])
	return sum.Quo(sum, big.NewInt(2)), nil
}

// Bounds returns the half-open [lower, upper) bounds of bucket i. The
// upper tail's upper bound is nil (open-ended).
func (r *Registry) Bounds(i int) (lower, upper *big.Int, err error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, err := r.bucketBounds(i)
	if err != nil {
		return nil, nil, err
	}
	return b[0], b[1], nil
}

// bucketBounds assumes the caller already holds r.mu.
func (r *Registry) bucketBounds(i int) ([2]*big.Int, error) {
	if i < 0 || i > r.numRegular+1 {
		return [2]*big.Int{}, errs.ErrIndexError
	}
	if i == 0 {
		return [2]*big.Int{big.NewInt(0), new(big.Int).Set(r.lowerEdge)}, nil
	}
	if i == r.numRegular+1 {
		return [2]*big.Int{new(big.Int).Set(r.upperEdge), nil}, nil
	}
	lower := new(big.Int).Mul(big.NewInt(int64(i-1)), r.width)
	lower.Add(lower, r.lowerEdge)
	upper := new(big.Int).Add(lower, r.width)
	return [2]*big.Int{lower, upper}, nil
}

// IndexOf returns the index of the bucket containing price (lower
// inclusive, upper exclusive).
func (r *Registry) IndexOf(price *big.Int) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if price.Cmp(r.lowerEdge) < 0 {
		return 0
	}
	if price.Cmp(r.upperEdge) >= 0 {
		return r.numRegular + 1
	}
	offset := new(big.Int).Sub(price, r.lowerEdge)
	idx := new(big.Int).Quo(offset, r.width)
	return int(idx.Int64()) + 1
}

// SpotPrice reads the current spot price from the feed, scaled to WAD,
// validating staleness, round freshness and positivity.
func (r *Registry) SpotPrice() (*big.Int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.spotPriceLocked()
}

// spotPriceLocked assumes the caller already holds r.mu (read or write).
func (r *Registry) spotPriceLocked() (*big.Int, error) {
	if r.priceFeed == nil {
		return nil, errs.ErrFeedNotSet
	}
	round, err := r.priceFeed.LatestRoundData()
	if err != nil {
		return nil, err
	}
	if r.now().Sub(round.UpdatedAt) > r.staleness {
		return nil, errs.ErrStalePrice
	}
	if round.AnsweredInRound.Cmp(round.RoundID) < 0 {
		return nil, errs.ErrStaleRound
	}
	if round.Answer.Sign() <= 0 {
		return nil, errs.ErrInvalidPrice
	}
	return scaleToWad(round.Answer, r.priceFeed.Decimals()), nil
}

func scaleToWad(answer *big.Int, decimals uint8) *big.Int {
	if decimals >= 18 {
		factor := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals-18)), nil)
		return new(big.Int).Quo(answer, factor)
	}
	factor := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(18-decimals)), nil)
	return new(big.Int).Mul(answer, factor)
}

// NeedsRebalance reports whether |spot-center|/center exceeds the
// configured threshold. Any feed error is suppressed and reported as
// false.
func (r *Registry) NeedsRebalance() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.needsRebalanceLocked()
}

// needsRebalanceLocked assumes the caller already holds r.mu (read or write).
func (r *Registry) needsRebalanceLocked() bool {
	spot, err := r.spotPriceLocked()
	if err != nil {
		return false
	}
	diff := new(big.Int).Sub(spot, r.centerPrice)
	diff.Abs(diff)
	ratio := fixedmath.DivWad(diff, r.centerPrice)
	return ratio.Cmp(r.threshold) > 0
}

// Recenter rebuilds the grid edges around newCenter. Permissionless, but
// only succeeds when NeedsRebalance holds and newCenter clears the
// minimum implied by half the grid width, matching the constructor's
// invariant.
func (r *Registry) Recenter(newCenter *big.Int) (oldCenter *big.Int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.needsRebalanceLocked() {
		return nil, errs.ErrInvalidConfig
	}
	half := big.NewInt(int64(r.numRegular / 2))
	minCenter := new(big.Int).Mul(half, r.width)
	if newCenter.Cmp(minCenter) <= 0 {
		return nil, errs.ErrInvalidConfig
	}
	old := new(big.Int).Set(r.centerPrice)
	r.centerPrice = new(big.Int).Set(newCenter)
	r.rebuildEdges()
	return old, nil
}

// CenterPrice returns the current grid center.
func (r *Registry) CenterPrice() *big.Int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return new(big.Int).Set(r.centerPrice)
}

// Width returns the regular bucket width.
func (r *Registry) Width() *big.Int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return new(big.Int).Set(r.width)
}

// NumRegular returns N, the number of regular (non-tail) buckets.
func (r *Registry) NumRegular() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.numRegular
}

// SetRebalanceThreshold updates the recenter trigger fraction, in WAD.
func (r *Registry) SetRebalanceThreshold(threshold *big.Int) error {
	if threshold == nil || threshold.Sign() <= 0 || threshold.Cmp(fixedmath.WAD) >= 0 {
		return errs.ErrInvalidConfig
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.threshold = new(big.Int).Set(threshold)
	return nil
}

// SetOracleStaleness updates the price-feed staleness threshold.
func (r *Registry) SetOracleStaleness(d time.Duration) error {
	if d <= 0 {
		return errs.ErrInvalidConfig
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.staleness = d
	return nil
}
