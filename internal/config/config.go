// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package config holds the operator-facing policy object that replaces
// a global mutable owner slot with a capability passed at construction
// and checked by a guard helper on each setter.
package config

import (
	"math/big"
	"sync"
	"time"

	"github.com/luxfi/geth/common"

	"github.com/luxfi/everlast/internal/errs"
	"github.com/luxfi/everlast/internal/fixedmath"
)

// registryTarget is the slice of buckets.Registry that Policy forwards
// range-validated updates to, kept as an interface to avoid a direct
// dependency cycle between config and buckets.
type registryTarget interface {
	SetRebalanceThreshold(*big.Int) error
	SetOracleStaleness(time.Duration) error
}

// deriverTarget is the slice of funding.Deriver that Policy forwards
// range-validated updates to.
type deriverTarget interface {
	SetPremiumFactor(*big.Int) error
	SetFundingPeriod(*big.Int) error
	SetMaxFundingRate(*big.Int) error
}

const (
	minOracleStaleness = time.Minute
	maxOracleStaleness = 24 * time.Hour
)

// Policy is the operator-facing configuration surface: a single owner
// capability gating a set of range-validated setters, constructed once
// and shared by reference with the components it configures.
type Policy struct {
	mu    sync.RWMutex
	owner common.Address

	registry registryTarget
	deriver  deriverTarget

	optionManager          common.Address
	rebalanceThreshold     *big.Int
	oracleStaleness        time.Duration
	premiumFactor          *big.Int
	fundingPeriod          *big.Int
	maxFundingRate         *big.Int
	minFundingBalance      *big.Int
	liquidationGracePeriod time.Duration
	paused                 bool
}

// New constructs a Policy owned by owner, seeded with the given
// defaults.
func New(owner common.Address) *Policy {
	return &Policy{
		owner:                  owner,
		rebalanceThreshold:     fixedmath.DivWad(fixedmath.WAD, big.NewInt(10)),
		oracleStaleness:        time.Hour,
		premiumFactor:          new(big.Int).Set(fixedmath.WAD),
		fundingPeriod:          big.NewInt(86400),
		maxFundingRate:         fixedmath.DivWad(fixedmath.WAD, big.NewInt(100)),
		minFundingBalance:      big.NewInt(0),
		liquidationGracePeriod: time.Hour,
	}
}

func (p *Policy) requireOwner(caller common.Address) error {
	if caller != p.owner {
		return errs.ErrOnlyOwner
	}
	return nil
}

// BindRegistry wires the bucket registry that rebalance-threshold and
// oracle-staleness updates forward to, so the two never drift. Call once
// during daemon wiring; a nil registry leaves those setters local-only.
func (p *Policy) BindRegistry(r registryTarget) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.registry = r
}

// BindDeriver wires the funding deriver that premium-factor, funding-
// period and max-funding-rate updates forward to. Call once during
// daemon wiring; a nil deriver leaves those setters local-only.
func (p *Policy) BindDeriver(d deriverTarget) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.deriver = d
}

// SetOptionManager assigns the order manager address that RequireManager
// checks. The engine's entry points do not consult it.
func (p *Policy) SetOptionManager(caller, manager common.Address) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.requireOwner(caller); err != nil {
		return err
	}
	p.optionManager = manager
	return nil
}

// OptionManager returns the configured order-manager address.
func (p *Policy) OptionManager() common.Address {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.optionManager
}

// RequireManager fails unless caller is the configured option manager.
func (p *Policy) RequireManager(caller common.Address) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if caller != p.optionManager {
		return errs.ErrOnlyManager
	}
	return nil
}

// SetRebalanceThreshold updates the bucket registry's recenter trigger
// fraction, in WAD.
func (p *Policy) SetRebalanceThreshold(caller common.Address, threshold *big.Int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.requireOwner(caller); err != nil {
		return err
	}
	if threshold == nil || threshold.Sign() <= 0 || threshold.Cmp(fixedmath.WAD) >= 0 {
		return errs.ErrInvalidConfig
	}
	if p.registry != nil {
		if err := p.registry.SetRebalanceThreshold(threshold); err != nil {
			return err
		}
	}
	p.rebalanceThreshold = new(big.Int).Set(threshold)
	return nil
}

// RebalanceThreshold returns the current recenter trigger fraction.
func (p *Policy) RebalanceThreshold() *big.Int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return new(big.Int).Set(p.rebalanceThreshold)
}

// SetOracleStaleness updates the price-feed staleness threshold, which
// must fall within [60s, 86400s].
func (p *Policy) SetOracleStaleness(caller common.Address, d time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.requireOwner(caller); err != nil {
		return err
	}
	if d < minOracleStaleness || d > maxOracleStaleness {
		return errs.ErrInvalidConfig
	}
	if p.registry != nil {
		if err := p.registry.SetOracleStaleness(d); err != nil {
			return err
		}
	}
	p.oracleStaleness = d
	return nil
}

// OracleStaleness returns the current price-feed staleness threshold.
func (p *Policy) OracleStaleness() time.Duration {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.oracleStaleness
}

// SetPremiumFactor updates the everlasting-structure premium factor,
// which must be at least WAD.
func (p *Policy) SetPremiumFactor(caller common.Address, factor *big.Int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.requireOwner(caller); err != nil {
		return err
	}
	if factor == nil || factor.Cmp(fixedmath.WAD) < 0 {
		return errs.ErrInvalidConfig
	}
	if p.deriver != nil {
		if err := p.deriver.SetPremiumFactor(factor); err != nil {
			return err
		}
	}
	p.premiumFactor = new(big.Int).Set(factor)
	return nil
}

// PremiumFactor returns the current premium factor.
func (p *Policy) PremiumFactor() *big.Int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return new(big.Int).Set(p.premiumFactor)
}

// SetFundingPeriod updates the funding period, in seconds.
func (p *Policy) SetFundingPeriod(caller common.Address, seconds *big.Int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.requireOwner(caller); err != nil {
		return err
	}
	if seconds == nil || seconds.Sign() <= 0 {
		return errs.ErrInvalidConfig
	}
	if p.deriver != nil {
		if err := p.deriver.SetFundingPeriod(seconds); err != nil {
			return err
		}
	}
	p.fundingPeriod = new(big.Int).Set(seconds)
	return nil
}

// FundingPeriod returns the current funding period, in seconds.
func (p *Policy) FundingPeriod() *big.Int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return new(big.Int).Set(p.fundingPeriod)
}

// SetMaxFundingRate updates the per-second funding-rate cap.
func (p *Policy) SetMaxFundingRate(caller common.Address, rate *big.Int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.requireOwner(caller); err != nil {
		return err
	}
	if rate == nil || rate.Sign() < 0 {
		return errs.ErrInvalidConfig
	}
	if p.deriver != nil {
		if err := p.deriver.SetMaxFundingRate(rate); err != nil {
			return err
		}
	}
	p.maxFundingRate = new(big.Int).Set(rate)
	return nil
}

// MaxFundingRate returns the current per-second funding-rate cap.
func (p *Policy) MaxFundingRate() *big.Int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return new(big.Int).Set(p.maxFundingRate)
}

// SetMinFundingBalance updates the liquidation threshold's minimum
// funding balance, in quote units.
func (p *Policy) SetMinFundingBalance(caller common.Address, amount *big.Int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.requireOwner(caller); err != nil {
		return err
	}
	if amount == nil || amount.Sign() < 0 {
		return errs.ErrInvalidConfig
	}
	p.minFundingBalance = new(big.Int).Set(amount)
	return nil
}

// MinFundingBalance returns the current minimum funding balance.
func (p *Policy) MinFundingBalance() *big.Int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return new(big.Int).Set(p.minFundingBalance)
}

// SetLiquidationGracePeriod updates the liquidation grace period.
func (p *Policy) SetLiquidationGracePeriod(caller common.Address, d time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.requireOwner(caller); err != nil {
		return err
	}
	if d < 0 {
		return errs.ErrInvalidConfig
	}
	p.liquidationGracePeriod = d
	return nil
}

// LiquidationGracePeriod returns the current liquidation grace period.
func (p *Policy) LiquidationGracePeriod() time.Duration {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.liquidationGracePeriod
}

// SetPaused toggles the manager-wide pause switch.
func (p *Policy) SetPaused(caller common.Address, paused bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.requireOwner(caller); err != nil {
		return err
	}
	p.paused = paused
	return nil
}

// Paused reports whether the manager is currently paused.
func (p *Policy) Paused() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.paused
}
