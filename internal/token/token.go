// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package token defines the external token collaborators the order
// manager routes cash flows and position receipts through: the
// quote-unit fungible asset and the semi-fungible position token.
package token

import (
	"math/big"
	"sync"

	"github.com/luxfi/geth/common"

	"github.com/luxfi/everlast/internal/clum"
	"github.com/luxfi/everlast/internal/errs"
)

// QuoteAsset is an ERC-20-equivalent fungible token collaborator
// denominated in the coarser quote unit (scale 10^6).
type QuoteAsset interface {
	Approve(owner, spender common.Address, amount *big.Int) error
	Transfer(from, to common.Address, amount *big.Int) error
	TransferFrom(caller, from, to common.Address, amount *big.Int) error
	BalanceOf(owner common.Address) *big.Int
	Decimals() uint8
	Allowance(owner, spender common.Address) *big.Int
}

// SafeTransfer wraps Transfer for collaborators that may return a
// non-reverting falsy result instead of an error on failure: it treats
// both a returned error and a post-transfer balance check as failure
// modes, matching the "safe transfer" convention of non-standard
// fungible tokens.
func SafeTransfer(asset QuoteAsset, from, to common.Address, amount *big.Int) error {
	before := asset.BalanceOf(to)
	if err := asset.Transfer(from, to, amount); err != nil {
		return err
	}
	after := asset.BalanceOf(to)
	want := new(big.Int).Add(before, amount)
	if after.Cmp(want) != 0 {
		return errs.ErrNonStandardTransfer
	}
	return nil
}

// EncodeTokenID packs (type, strikeWad) into the 256-bit position token
// ID: (type << 128) | (strike & (2^128 - 1)).
func EncodeTokenID(optType clum.OptionType, strikeWad *big.Int) *big.Int {
	typeShifted := new(big.Int).Lsh(big.NewInt(int64(optType)), 128)
	mask := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))
	strikeLow := new(big.Int).And(strikeWad, mask)
	return new(big.Int).Or(typeShifted, strikeLow)
}

// PositionToken is a semi-fungible collaborator that mints one token
// class per (type, strike) and burns by size.
type PositionToken interface {
	Mint(owner common.Address, optType clum.OptionType, strikeWad, sizeWad *big.Int) (tokenID *big.Int, err error)
	Burn(owner common.Address, tokenID, sizeWad *big.Int) error
	BalanceOf(owner common.Address, tokenID *big.Int) *big.Int
}

// MemoryQuoteAsset is a reference in-process QuoteAsset: a plain ledger
// keyed by address, with no allowance enforcement. Used for standalone
// wiring and tests, analogous to pool.MemoryPool.
type MemoryQuoteAsset struct {
	mu       sync.Mutex
	decimals uint8
	balances map[common.Address]*big.Int
}

// NewMemoryQuoteAsset constructs an empty ledger at the given decimal
// scale (6, matching the quote unit the order manager assumes).
func NewMemoryQuoteAsset(decimals uint8) *MemoryQuoteAsset {
	return &MemoryQuoteAsset{decimals: decimals, balances: make(map[common.Address]*big.Int)}
}

// Mint credits addr with amount, for seeding a standalone deployment.
func (a *MemoryQuoteAsset) Mint(addr common.Address, amount *big.Int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.balances[addr] = new(big.Int).Add(a.balanceOfLocked(addr), amount)
}

func (a *MemoryQuoteAsset) balanceOfLocked(addr common.Address) *big.Int {
	b, ok := a.balances[addr]
	if !ok {
		return big.NewInt(0)
	}
	return b
}

// Approve is a no-op: MemoryQuoteAsset trusts its caller and enforces no
// allowance, matching the direct Transfer/TransferFrom calls the order
// manager makes as the sole caller of this collaborator.
func (a *MemoryQuoteAsset) Approve(owner, spender common.Address, amount *big.Int) error {
	return nil
}

// Transfer implements QuoteAsset.
func (a *MemoryQuoteAsset) Transfer(from, to common.Address, amount *big.Int) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	bal := a.balanceOfLocked(from)
	if bal.Cmp(amount) < 0 {
		return errs.ErrInsufficientAvailable
	}
	a.balances[from] = new(big.Int).Sub(bal, amount)
	a.balances[to] = new(big.Int).Add(a.balanceOfLocked(to), amount)
	return nil
}

// TransferFrom implements QuoteAsset; caller's allowance is not checked.
func (a *MemoryQuoteAsset) TransferFrom(caller, from, to common.Address, amount *big.Int) error {
	return a.Transfer(from, to, amount)
}

// BalanceOf implements QuoteAsset.
func (a *MemoryQuoteAsset) BalanceOf(owner common.Address) *big.Int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return new(big.Int).Set(a.balanceOfLocked(owner))
}

// Decimals implements QuoteAsset.
func (a *MemoryQuoteAsset) Decimals() uint8 { return a.decimals }

// Allowance implements QuoteAsset; always reports unlimited, consistent
// with Approve's no-op.
func (a *MemoryQuoteAsset) Allowance(owner, spender common.Address) *big.Int {
	return new(big.Int).Lsh(big.NewInt(1), 256)
}

// MemoryPositionToken is a reference in-process PositionToken: a balance
// table keyed by (owner, tokenID), with no transfer primitive since the
// order manager is the only caller.
type MemoryPositionToken struct {
	mu       sync.Mutex
	balances map[common.Address]map[string]*big.Int
}

// NewMemoryPositionToken constructs an empty position-token ledger.
func NewMemoryPositionToken() *MemoryPositionToken {
	return &MemoryPositionToken{balances: make(map[common.Address]map[string]*big.Int)}
}

// Mint implements PositionToken.
func (m *MemoryPositionToken) Mint(owner common.Address, optType clum.OptionType, strikeWad, sizeWad *big.Int) (*big.Int, error) {
	tokenID := EncodeTokenID(optType, strikeWad)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.balances[owner] == nil {
		m.balances[owner] = make(map[string]*big.Int)
	}
	key := tokenID.String()
	cur, ok := m.balances[owner][key]
	if !ok {
		cur = big.NewInt(0)
	}
	m.balances[owner][key] = new(big.Int).Add(cur, sizeWad)
	return tokenID, nil
}

// Burn implements PositionToken.
func (m *MemoryPositionToken) Burn(owner common.Address, tokenID, sizeWad *big.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := tokenID.String()
	cur, ok := m.balances[owner][key]
	if !ok || cur.Cmp(sizeWad) < 0 {
		return errs.ErrInsufficientAvailable
	}
	m.balances[owner][key] = new(big.Int).Sub(cur, sizeWad)
	return nil
}

// BalanceOf implements PositionToken.
func (m *MemoryPositionToken) BalanceOf(owner common.Address, tokenID *big.Int) *big.Int {
	m.mu.Lock()
	defer m.mu.Unlock()
	bal, ok := m.balances[owner][tokenID.String()]
	if !ok {
		return big.NewInt(0)
	}
	return new(big.Int).Set(bal)
}
