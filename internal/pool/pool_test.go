// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package pool

import (
	"math/big"
	"testing"

	"github.com/luxfi/everlast/internal/errs"
)

func TestReceivePremiumCreditsAssets(t *testing.T) {
	p := NewMemoryPool(big.NewInt(1000), big.NewInt(500))
	if err := p.ReceivePremium(big.NewInt(100)); err != nil {
		t.Fatalf("ReceivePremium() error: %v", err)
	}
	if got := p.TotalAssets(); got.Cmp(big.NewInt(1100)) != 0 {
		t.Fatalf("TotalAssets() = %v, want 1100", got)
	}
	premium, _, _ := p.CumulativeCounters()
	if premium.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("cumulativePremium = %v, want 100", premium)
	}
}

func TestDistributeFundingCreditsAssets(t *testing.T) {
	p := NewMemoryPool(big.NewInt(1000), big.NewInt(500))
	if err := p.DistributeFunding(big.NewInt(50)); err != nil {
		t.Fatalf("DistributeFunding() error: %v", err)
	}
	if got := p.TotalAssets(); got.Cmp(big.NewInt(1050)) != 0 {
		t.Fatalf("TotalAssets() = %v, want 1050", got)
	}
}

func TestRecordLossReducesAssetsAndSubsidy(t *testing.T) {
	p := NewMemoryPool(big.NewInt(1000), big.NewInt(500))
	if err := p.RecordLoss(big.NewInt(300)); err != nil {
		t.Fatalf("RecordLoss() error: %v", err)
	}
	if got := p.TotalAssets(); got.Cmp(big.NewInt(700)) != 0 {
		t.Fatalf("TotalAssets() = %v, want 700", got)
	}
	if got := p.MaxSubsidy(); got.Cmp(big.NewInt(200)) != 0 {
		t.Fatalf("MaxSubsidy() = %v, want 200", got)
	}
}

func TestRecordLossSaturatesSubsidyAtZero(t *testing.T) {
	p := NewMemoryPool(big.NewInt(1000), big.NewInt(100))
	if err := p.RecordLoss(big.NewInt(400)); err != nil {
		t.Fatalf("RecordLoss() error: %v", err)
	}
	if got := p.MaxSubsidy(); got.Sign() != 0 {
		t.Fatalf("MaxSubsidy() = %v, want 0 (saturated)", got)
	}
	if got := p.TotalAssets(); got.Cmp(big.NewInt(600)) != 0 {
		t.Fatalf("TotalAssets() = %v, want 600", got)
	}
}

func TestRecordLossRejectsInsufficientAssets(t *testing.T) {
	p := NewMemoryPool(big.NewInt(100), big.NewInt(100))
	if err := p.RecordLoss(big.NewInt(200)); err != errs.ErrInsufficientAvailable {
		t.Fatalf("got %v, want ErrInsufficientAvailable", err)
	}
}

func TestNegativeAmountsRejected(t *testing.T) {
	p := NewMemoryPool(big.NewInt(1000), big.NewInt(500))
	neg := big.NewInt(-1)
	if err := p.ReceivePremium(neg); err != errs.ErrInvalidSize {
		t.Fatalf("ReceivePremium(neg): got %v, want ErrInvalidSize", err)
	}
	if err := p.DistributeFunding(neg); err != errs.ErrInvalidSize {
		t.Fatalf("DistributeFunding(neg): got %v, want ErrInvalidSize", err)
	}
	if err := p.RecordLoss(neg); err != errs.ErrInvalidSize {
		t.Fatalf("RecordLoss(neg): got %v, want ErrInvalidSize", err)
	}
}

func TestTotalAssetsNeverBelowReservedSubsidyInvariant(t *testing.T) {
	p := NewMemoryPool(big.NewInt(1000), big.NewInt(500))
	if err := p.RecordLoss(big.NewInt(500)); err != nil {
		t.Fatalf("RecordLoss() error: %v", err)
	}
	if p.TotalAssets().Cmp(p.MaxSubsidy()) < 0 {
		t.Fatalf("invariant violated: totalAssets %v < reservedSubsidy %v", p.TotalAssets(), p.MaxSubsidy())
	}
}
