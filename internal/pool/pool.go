// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package pool defines the liquidity-pool collaborator the order
// manager routes premium, funding and loss cash flows through, plus a
// reference in-memory implementation for wiring and tests.
package pool

import (
	"math/big"
	"sync"

	"github.com/luxfi/everlast/internal/errs"
)

// LiquidityPool is the vault collaborator backing the CLUM's subsidy.
// "Reserved subsidy" is withdrawal-blocked capital distinct from
// LP-owned capital; total_assets >= reserved_subsidy always.
type LiquidityPool interface {
	ReceivePremium(amountQuote *big.Int) error
	DistributeFunding(amountQuote *big.Int) error
	RecordLoss(amountQuote *big.Int) error
	TotalAssets() *big.Int
	MaxSubsidy() *big.Int
}

// MemoryPool is a reference in-process LiquidityPool: an unsigned asset
// counter and an unsigned reserved-subsidy counter, kept so that
// totalAssets never drops below reservedSubsidy.
type MemoryPool struct {
	mu sync.Mutex

	totalAssets      *big.Int
	reservedSubsidy  *big.Int
	cumulativePremium *big.Int
	cumulativeFunding *big.Int
	cumulativeLoss    *big.Int
}

// NewMemoryPool constructs a pool seeded with initialAssets and a
// reserved subsidy of reservedSubsidy, both in quote-unit scale.
func NewMemoryPool(initialAssets, reservedSubsidy *big.Int) *MemoryPool {
	return &MemoryPool{
		totalAssets:       new(big.Int).Set(initialAssets),
		reservedSubsidy:   new(big.Int).Set(reservedSubsidy),
		cumulativePremium: big.NewInt(0),
		cumulativeFunding: big.NewInt(0),
		cumulativeLoss:    big.NewInt(0),
	}
}

// ReceivePremium credits quote-units to the pool's assets. It moves no
// quote asset itself; the caller does the transfer.
func (p *MemoryPool) ReceivePremium(amountQuote *big.Int) error {
	if amountQuote.Sign() < 0 {
		return errs.ErrInvalidSize
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.totalAssets.Add(p.totalAssets, amountQuote)
	p.cumulativePremium.Add(p.cumulativePremium, amountQuote)
	return nil
}

// DistributeFunding credits quote-units (funding debited from a position)
// to the pool's assets. It moves no quote asset itself.
func (p *MemoryPool) DistributeFunding(amountQuote *big.Int) error {
	if amountQuote.Sign() < 0 {
		return errs.ErrInvalidSize
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.totalAssets.Add(p.totalAssets, amountQuote)
	p.cumulativeFunding.Add(p.cumulativeFunding, amountQuote)
	return nil
}

// RecordLoss debits quote-units from the pool's assets and reduces the
// reserved subsidy, saturating at zero; fails if the pool's assets
// cannot cover the amount. It moves no quote asset itself; the caller
// pays out the amount.
func (p *MemoryPool) RecordLoss(amountQuote *big.Int) error {
	if amountQuote.Sign() < 0 {
		return errs.ErrInvalidSize
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.totalAssets.Cmp(amountQuote) < 0 {
		return errs.ErrInsufficientAvailable
	}
	p.totalAssets.Sub(p.totalAssets, amountQuote)
	p.reservedSubsidy.Sub(p.reservedSubsidy, amountQuote)
	if p.reservedSubsidy.Sign() < 0 {
		p.reservedSubsidy.SetInt64(0)
	}
	p.cumulativeLoss.Add(p.cumulativeLoss, amountQuote)
	return nil
}

// TotalAssets returns the pool's current total quote-unit assets.
func (p *MemoryPool) TotalAssets() *big.Int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return new(big.Int).Set(p.totalAssets)
}

// MaxSubsidy returns the pool's current reserved-subsidy ceiling.
func (p *MemoryPool) MaxSubsidy() *big.Int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return new(big.Int).Set(p.reservedSubsidy)
}

// CumulativeCounters returns the pool's lifetime premium, funding and
// loss totals, for diagnostics and tests.
func (p *MemoryPool) CumulativeCounters() (premium, funding, loss *big.Int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return new(big.Int).Set(p.cumulativePremium),
		new(big.Int).Set(p.cumulativeFunding),
		new(big.Int).Set(p.cumulativeLoss)
}
