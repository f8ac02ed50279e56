// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package funding derives mark prices, intrinsic values and per-second
// funding rates from the CLUM engine's risk-neutral distribution and the
// bucket registry's spot price. No parametric pricing model is used:
// everything here reads the engine's own distribution.
package funding

import (
	"math/big"

	"github.com/luxfi/everlast/internal/buckets"
	"github.com/luxfi/everlast/internal/clum"
	"github.com/luxfi/everlast/internal/errs"
	"github.com/luxfi/everlast/internal/fixedmath"
)

// Distribution is the minimal slice of the CLUM engine the deriver
// depends on, expressed as an interface so funding can be tested against
// a fabricated distribution without a fully wired engine.
type Distribution interface {
	ImpliedDistribution() (midpoints, probs []*big.Int, err error)
}

// Deriver computes mark price, intrinsic value and funding rate.
type Deriver struct {
	registry *buckets.Registry
	engine   Distribution

	premiumFactor  *big.Int // WAD, >= WAD
	fundingPeriod  *big.Int // seconds
	maxFundingRate *big.Int // WAD fraction of size, per second
}

// Config parameterizes a new Deriver.
type Config struct {
	Registry       *buckets.Registry
	Engine         Distribution
	PremiumFactor  *big.Int
	FundingPeriod  *big.Int
	MaxFundingRate *big.Int
}

// New constructs a Deriver, validating the parameter constraints
// (premiumFactor >= WAD, fundingPeriod > 0).
func New(cfg Config) (*Deriver, error) {
	if cfg.PremiumFactor == nil || cfg.PremiumFactor.Cmp(fixedmath.WAD) < 0 {
		return nil, errs.ErrInvalidConfig
	}
	if cfg.FundingPeriod == nil || cfg.FundingPeriod.Sign() <= 0 {
		return nil, errs.ErrInvalidConfig
	}
	if cfg.MaxFundingRate == nil || cfg.MaxFundingRate.Sign() < 0 {
		return nil, errs.ErrInvalidConfig
	}
	return &Deriver{
		registry:       cfg.Registry,
		engine:         cfg.Engine,
		premiumFactor:  new(big.Int).Set(cfg.PremiumFactor),
		fundingPeriod:  new(big.Int).Set(cfg.FundingPeriod),
		maxFundingRate: new(big.Int).Set(cfg.MaxFundingRate),
	}, nil
}

// SetPremiumFactor updates the everlasting-structure premium factor.
func (d *Deriver) SetPremiumFactor(v *big.Int) error {
	if v == nil || v.Cmp(fixedmath.WAD) < 0 {
		return errs.ErrInvalidConfig
	}
	d.premiumFactor = new(big.Int).Set(v)
	return nil
}

// SetFundingPeriod updates the funding period, in seconds.
func (d *Deriver) SetFundingPeriod(v *big.Int) error {
	if v == nil || v.Sign() <= 0 {
		return errs.ErrInvalidConfig
	}
	d.fundingPeriod = new(big.Int).Set(v)
	return nil
}

// SetMaxFundingRate updates the per-second funding rate cap.
func (d *Deriver) SetMaxFundingRate(v *big.Int) error {
	if v == nil || v.Sign() < 0 {
		return errs.ErrInvalidConfig
	}
	d.maxFundingRate = new(big.Int).Set(v)
	return nil
}

func payoff(optType clum.OptionType, mid, strike *big.Int) *big.Int {
	var diff *big.Int
	if optType == clum.Call {
		diff = new(big.Int).Sub(mid, strike)
	} else {
		diff = new(big.Int).Sub(strike, mid)
	}
	if diff.Sign() < 0 {
		return big.NewInt(0)
	}
	return diff
}

// Mark computes premiumFactor * sum(p[i]*payoff_i(type,K)).
func (d *Deriver) Mark(optType clum.OptionType, strikeWad *big.Int) (*big.Int, error) {
	mids, probs, err := d.engine.ImpliedDistribution()
	if err != nil {
		return nil, err
	}
	expected := big.NewInt(0)
	for i := range mids {
		p := payoff(optType, mids[i], strikeWad)
		expected.Add(expected, fixedmath.MulWad(probs[i], p))
	}
	return fixedmath.MulWad(d.premiumFactor, expected), nil
}

// Intrinsic returns max(spot-K,0) for a call, max(K-spot,0) for a put.
func (d *Deriver) Intrinsic(optType clum.OptionType, strikeWad *big.Int) (*big.Int, error) {
	spot, err := d.registry.SpotPrice()
	if err != nil {
		return nil, err
	}
	return payoff(optType, spot, strikeWad), nil
}

// FundingPerSecond computes fps = (timeValue*size)/(fundingPeriod*WAD),
// capped at maxFundingRate*size/WAD. Fails closed (returns zero, no
// error) if mark < intrinsic, a defensive branch that should not occur
// given the engine's construction.
func (d *Deriver) FundingPerSecond(optType clum.OptionType, strikeWad, sizeWad *big.Int) (*big.Int, error) {
	mark, err := d.Mark(optType, strikeWad)
	if err != nil {
		return nil, err
	}
	intrinsic, err := d.Intrinsic(optType, strikeWad)
	if err != nil {
		return nil, err
	}
	timeValue := new(big.Int).Sub(mark, intrinsic)
	if timeValue.Sign() < 0 {
		return big.NewInt(0), nil
	}

	numerator := fixedmath.MulWad(timeValue, sizeWad)
	denominator := new(big.Int).Mul(d.fundingPeriod, fixedmath.WAD)
	fps := fixedmath.DivWad(numerator, denominator)

	cap := fixedmath.MulWad(d.maxFundingRate, sizeWad)
	if fps.Cmp(cap) > 0 {
		fps = cap
	}
	return fps, nil
}
