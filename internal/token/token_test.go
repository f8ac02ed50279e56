// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package token

import (
	"math/big"
	"testing"

	"github.com/luxfi/geth/common"

	"github.com/luxfi/everlast/internal/clum"
	"github.com/luxfi/everlast/internal/errs"
)

// stubAsset is a configurable QuoteAsset double used to exercise
// SafeTransfer's non-standard-transfer detection.
type stubAsset struct {
	balances    map[common.Address]*big.Int
	transferErr error
	skew        *big.Int // extra/missing amount credited to `to`, simulating a fee-on-transfer token
}

func newStubAsset() *stubAsset {
	return &stubAsset{balances: make(map[common.Address]*big.Int)}
}

func (s *stubAsset) Approve(owner, spender common.Address, amount *big.Int) error { return nil }

func (s *stubAsset) Transfer(from, to common.Address, amount *big.Int) error {
	if s.transferErr != nil {
		return s.transferErr
	}
	credited := new(big.Int).Set(amount)
	if s.skew != nil {
		credited.Add(credited, s.skew)
	}
	s.balances[to] = new(big.Int).Add(s.BalanceOf(to), credited)
	return nil
}

func (s *stubAsset) TransferFrom(caller, from, to common.Address, amount *big.Int) error {
	return s.Transfer(from, to, amount)
}

func (s *stubAsset) BalanceOf(owner common.Address) *big.Int {
	b, ok := s.balances[owner]
	if !ok {
		return big.NewInt(0)
	}
	return new(big.Int).Set(b)
}

func (s *stubAsset) Decimals() uint8 { return 6 }

func (s *stubAsset) Allowance(owner, spender common.Address) *big.Int { return big.NewInt(0) }

func TestSafeTransferSucceedsOnExactCredit(t *testing.T) {
	asset := newStubAsset()
	from := common.HexToAddress("0x1")
	to := common.HexToAddress("0x2")
	if err := SafeTransfer(asset, from, to, big.NewInt(100)); err != nil {
		t.Fatalf("SafeTransfer() error: %v", err)
	}
}

func TestSafeTransferRejectsShortCredit(t *testing.T) {
	asset := newStubAsset()
	asset.skew = big.NewInt(-1) // fee-on-transfer token skims 1 unit
	from := common.HexToAddress("0x1")
	to := common.HexToAddress("0x2")
	if err := SafeTransfer(asset, from, to, big.NewInt(100)); err != errs.ErrNonStandardTransfer {
		t.Fatalf("got %v, want ErrNonStandardTransfer", err)
	}
}

func TestSafeTransferPropagatesUnderlyingError(t *testing.T) {
	asset := newStubAsset()
	asset.transferErr = errs.ErrInsufficientAvailable
	from := common.HexToAddress("0x1")
	to := common.HexToAddress("0x2")
	if err := SafeTransfer(asset, from, to, big.NewInt(100)); err != errs.ErrInsufficientAvailable {
		t.Fatalf("got %v, want ErrInsufficientAvailable", err)
	}
}

func TestEncodeTokenIDPacksTypeAndStrike(t *testing.T) {
	strike := big.NewInt(3000)
	callID := EncodeTokenID(clum.Call, strike)
	putID := EncodeTokenID(clum.Put, strike)

	if callID.Cmp(putID) == 0 {
		t.Fatal("expected call and put token IDs to differ for the same strike")
	}

	mask := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))
	gotStrike := new(big.Int).And(callID, mask)
	if gotStrike.Cmp(strike) != 0 {
		t.Fatalf("low 128 bits = %v, want strike %v", gotStrike, strike)
	}

	gotType := new(big.Int).Rsh(callID, 128)
	if gotType.Cmp(big.NewInt(int64(clum.Call))) != 0 {
		t.Fatalf("high bits = %v, want %d", gotType, clum.Call)
	}
}

func TestEncodeTokenIDDeterministic(t *testing.T) {
	strike := big.NewInt(2800)
	a := EncodeTokenID(clum.Put, strike)
	b := EncodeTokenID(clum.Put, strike)
	if a.Cmp(b) != 0 {
		t.Fatalf("EncodeTokenID not deterministic: %v != %v", a, b)
	}
}

func TestMemoryQuoteAssetMintAndTransfer(t *testing.T) {
	asset := NewMemoryQuoteAsset(6)
	alice := common.HexToAddress("0x1")
	bob := common.HexToAddress("0x2")
	asset.Mint(alice, big.NewInt(1000))

	if err := asset.Transfer(alice, bob, big.NewInt(300)); err != nil {
		t.Fatalf("Transfer() error: %v", err)
	}
	if got := asset.BalanceOf(alice); got.Cmp(big.NewInt(700)) != 0 {
		t.Fatalf("alice balance = %v, want 700", got)
	}
	if got := asset.BalanceOf(bob); got.Cmp(big.NewInt(300)) != 0 {
		t.Fatalf("bob balance = %v, want 300", got)
	}
}

func TestMemoryQuoteAssetTransferInsufficientBalance(t *testing.T) {
	asset := NewMemoryQuoteAsset(6)
	alice := common.HexToAddress("0x1")
	bob := common.HexToAddress("0x2")
	if err := asset.Transfer(alice, bob, big.NewInt(1)); err != errs.ErrInsufficientAvailable {
		t.Fatalf("got %v, want ErrInsufficientAvailable", err)
	}
}

func TestMemoryQuoteAssetSafeTransferRoundTrips(t *testing.T) {
	asset := NewMemoryQuoteAsset(6)
	alice := common.HexToAddress("0x1")
	bob := common.HexToAddress("0x2")
	asset.Mint(alice, big.NewInt(1000))
	if err := SafeTransfer(asset, alice, bob, big.NewInt(250)); err != nil {
		t.Fatalf("SafeTransfer() error: %v", err)
	}
}

func TestMemoryPositionTokenMintBurn(t *testing.T) {
	pt := NewMemoryPositionToken()
	owner := common.HexToAddress("0x1")
	strike := big.NewInt(2800)

	tokenID, err := pt.Mint(owner, clum.Call, strike, big.NewInt(5))
	if err != nil {
		t.Fatalf("Mint() error: %v", err)
	}
	if got := pt.BalanceOf(owner, tokenID); got.Cmp(big.NewInt(5)) != 0 {
		t.Fatalf("BalanceOf() = %v, want 5", got)
	}

	if err := pt.Burn(owner, tokenID, big.NewInt(2)); err != nil {
		t.Fatalf("Burn() error: %v", err)
	}
	if got := pt.BalanceOf(owner, tokenID); got.Cmp(big.NewInt(3)) != 0 {
		t.Fatalf("BalanceOf() after burn = %v, want 3", got)
	}
}

func TestMemoryPositionTokenBurnRejectsOverdraw(t *testing.T) {
	pt := NewMemoryPositionToken()
	owner := common.HexToAddress("0x1")
	strike := big.NewInt(2800)

	tokenID, err := pt.Mint(owner, clum.Call, strike, big.NewInt(1))
	if err != nil {
		t.Fatalf("Mint() error: %v", err)
	}
	if err := pt.Burn(owner, tokenID, big.NewInt(2)); err != errs.ErrInsufficientAvailable {
		t.Fatalf("got %v, want ErrInsufficientAvailable", err)
	}
}
