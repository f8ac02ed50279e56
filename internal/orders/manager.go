// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package orders implements the position lifecycle that bridges the
// CLUM engine with the liquidity pool: open, accrue funding, exercise,
// sell back and liquidate.
package orders

import (
	"math/big"
	"sync"
	"time"

	"github.com/luxfi/geth/common"

	"github.com/luxfi/everlast/internal/clum"
	"github.com/luxfi/everlast/internal/config"
	"github.com/luxfi/everlast/internal/errs"
	"github.com/luxfi/everlast/internal/events"
	"github.com/luxfi/everlast/internal/fixedmath"
	"github.com/luxfi/everlast/internal/funding"
	"github.com/luxfi/everlast/internal/guard"
	"github.com/luxfi/everlast/internal/pool"
	"github.com/luxfi/everlast/internal/token"
)

// quoteScale is the conversion factor between the internal WAD scale
// (10^18) and the external quote-unit scale (10^6).
var quoteScale = new(big.Int).Exp(big.NewInt(10), big.NewInt(12), nil)

func wadToQuoteFloor(wad *big.Int) *big.Int {
	return new(big.Int).Quo(wad, quoteScale)
}

func wadToQuoteCeil(wad *big.Int) *big.Int {
	q, r := new(big.Int).QuoRem(wad, quoteScale, new(big.Int))
	if r.Sign() != 0 {
		q.Add(q, big.NewInt(1))
	}
	return q
}

func quoteToWad(quote *big.Int) *big.Int {
	return new(big.Int).Mul(quote, quoteScale)
}

// Position is a single open (or closed) option, denominated with a
// WAD-scaled strike and size and a quote-unit funding balance.
type Position struct {
	ID              uint64
	Type            clum.OptionType
	StrikeWad       *big.Int
	SizeWad         *big.Int
	Owner           common.Address
	FundingBalance  *big.Int // quote unit
	LastFundingTime time.Time
	Active          bool
}

// Manager owns the position table and routes cash flows between the
// engine, the liquidity pool and the quote-unit/position token
// collaborators. Immutable wiring is set at construction.
type Manager struct {
	mu     sync.Mutex
	locked bool

	engine   *clum.Engine
	deriver  *funding.Deriver
	guard    *guard.Guard
	pool     pool.LiquidityPool
	quote    token.QuoteAsset
	posToken token.PositionToken
	policy   *config.Policy
	sink     events.Sink
	now      func() time.Time

	// vaultAddr is the quote-asset custody boundary shared by the manager
	// and the liquidity pool: all cash flows that the pool interface
	// books (premium, funding, loss) move the underlying quote asset to
	// or from this address. The pool's own share accounting behind that
	// boundary is an out-of-scope collaborator.
	vaultAddr common.Address

	nextID     uint64
	positions  map[uint64]*Position
	ownerIndex map[common.Address][]uint64
}

// Config wires a Manager's collaborators.
type Config struct {
	Engine        *clum.Engine
	Deriver       *funding.Deriver
	Guard         *guard.Guard
	Pool          pool.LiquidityPool
	QuoteAsset    token.QuoteAsset
	PositionToken token.PositionToken
	Policy        *config.Policy
	Sink          events.Sink
	VaultAddr     common.Address
}

// New constructs a Manager from its collaborators.
func New(cfg Config) *Manager {
	return &Manager{
		engine:     cfg.Engine,
		deriver:    cfg.Deriver,
		guard:      cfg.Guard,
		pool:       cfg.Pool,
		quote:      cfg.QuoteAsset,
		posToken:   cfg.PositionToken,
		policy:     cfg.Policy,
		sink:       cfg.Sink,
		now:        time.Now,
		vaultAddr:  cfg.VaultAddr,
		positions:  make(map[uint64]*Position),
		ownerIndex: make(map[common.Address][]uint64),
	}
}

// enter acquires the manager's reentrancy guard for the duration of one
// mutating entry point.
func (m *Manager) enter() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.locked {
		return errs.ErrReentrancy
	}
	m.locked = true
	return nil
}

func (m *Manager) exit() {
	m.mu.Lock()
	m.locked = false
	m.mu.Unlock()
}

func (m *Manager) requireNotPaused() error {
	if m.policy != nil && m.policy.Paused() {
		return errs.ErrPaused
	}
	return nil
}

func (m *Manager) getPosition(id uint64) (*Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.positions[id]
	if !ok {
		return nil, errs.ErrPositionInactive
	}
	return p, nil
}

// Buy opens a new position: it converts strikeQuote to WAD, prices the
// trade against the engine, validates it through the guard, collects
// premium and prefund from the caller, commits the engine trade last,
// mints a position token and records the position.
func (m *Manager) Buy(caller common.Address, optType clum.OptionType, strikeQuote, sizeWad, prefundQuote *big.Int) (uint64, error) {
	if err := m.enter(); err != nil {
		return 0, err
	}
	defer m.exit()

	if err := m.requireNotPaused(); err != nil {
		return 0, err
	}
	if strikeQuote == nil || strikeQuote.Sign() <= 0 {
		return 0, errs.ErrInvalidStrike
	}
	if sizeWad == nil || sizeWad.Sign() <= 0 {
		return 0, errs.ErrInvalidSize
	}
	if prefundQuote == nil || prefundQuote.Sign() < 0 {
		return 0, errs.ErrInvalidSize
	}

	strikeWad := quoteToWad(strikeQuote)

	premiumWad, err := m.engine.QuoteBuy(optType, strikeWad, sizeWad)
	if err != nil {
		return 0, err
	}
	if err := m.guard.CheckNonNegative(premiumWad); err != nil {
		return 0, err
	}

	premiumQuote := wadToQuoteCeil(premiumWad)
	totalQuote := new(big.Int).Add(premiumQuote, prefundQuote)
	if totalQuote.Sign() > 0 {
		if err := token.SafeTransfer(m.quote, caller, m.vaultAddr, totalQuote); err != nil {
			return 0, err
		}
	}
	if premiumQuote.Sign() > 0 {
		if err := m.pool.ReceivePremium(premiumQuote); err != nil {
			return 0, err
		}
	}

	if _, err := m.engine.ExecuteBuy(optType, strikeWad, sizeWad); err != nil {
		return 0, err
	}

	tokenID, err := m.posToken.Mint(caller, optType, strikeWad, sizeWad)
	if err != nil {
		return 0, err
	}
	_ = tokenID

	m.mu.Lock()
	m.nextID++
	id := m.nextID
	pos := &Position{
		ID:              id,
		Type:            optType,
		StrikeWad:       strikeWad,
		SizeWad:         new(big.Int).Set(sizeWad),
		Owner:           caller,
		FundingBalance:  new(big.Int).Set(prefundQuote),
		LastFundingTime: m.now(),
		Active:          true,
	}
	m.positions[id] = pos
	m.ownerIndex[caller] = append(m.ownerIndex[caller], id)
	m.mu.Unlock()

	events.OptionBought(m.sink, caller, id, optType, strikeWad, sizeWad, premiumWad)
	events.TradeExecuted(m.sink, optType, strikeWad, sizeWad, true, premiumWad)
	return id, nil
}

// accrueLocked runs the funding accrual algorithm against pos, assuming
// the manager's reentrancy guard is already held by the caller.
func (m *Manager) accrueLocked(pos *Position) error {
	now := m.now()
	dt := now.Sub(pos.LastFundingTime)
	if dt <= 0 {
		return nil
	}

	fps, err := m.deriver.FundingPerSecond(pos.Type, pos.StrikeWad, pos.SizeWad)
	if err != nil {
		return err
	}

	elapsedWad := new(big.Int).Mul(big.NewInt(int64(dt/time.Second)), fixedmath.WAD)
	owedWad := fixedmath.MulWad(fps, elapsedWad)
	owedQuote := wadToQuoteFloor(owedWad)

	m.mu.Lock()
	if owedQuote.Cmp(pos.FundingBalance) >= 0 {
		owedQuote = new(big.Int).Set(pos.FundingBalance)
		pos.FundingBalance = big.NewInt(0)
	} else {
		pos.FundingBalance = new(big.Int).Sub(pos.FundingBalance, owedQuote)
	}
	pos.LastFundingTime = now
	m.mu.Unlock()

	if owedQuote.Sign() > 0 {
		if err := m.pool.DistributeFunding(owedQuote); err != nil {
			return err
		}
		events.FundingAccrued(m.sink, pos.ID, owedQuote, now.Unix())
	}
	return nil
}

// AccrueFunding runs the funding accrual algorithm for a single
// position. Permissionless.
func (m *Manager) AccrueFunding(id uint64) error {
	if err := m.enter(); err != nil {
		return err
	}
	defer m.exit()

	pos, err := m.getPosition(id)
	if err != nil {
		return err
	}
	if !pos.Active {
		return errs.ErrPositionInactive
	}
	return m.accrueLocked(pos)
}

// DepositFunding tops up a position's funding balance. Owner-only.
func (m *Manager) DepositFunding(caller common.Address, id uint64, amountQuote *big.Int) error {
	if err := m.enter(); err != nil {
		return err
	}
	defer m.exit()

	pos, err := m.getPosition(id)
	if err != nil {
		return err
	}
	if !pos.Active {
		return errs.ErrPositionInactive
	}
	if pos.Owner != caller {
		return errs.ErrNotPositionOwner
	}
	if amountQuote == nil || amountQuote.Sign() <= 0 {
		return errs.ErrInvalidSize
	}

	if err := m.accrueLocked(pos); err != nil {
		return err
	}

	if err := token.SafeTransfer(m.quote, caller, m.vaultAddr, amountQuote); err != nil {
		return err
	}

	m.mu.Lock()
	pos.FundingBalance = new(big.Int).Add(pos.FundingBalance, amountQuote)
	m.mu.Unlock()

	events.FundingDeposited(m.sink, id, amountQuote)
	return nil
}

// Sell executes a reverse engine trade against an existing position,
// refunding the proceeds from the pool. A partial sell (size < pos.size)
// leaves the position active with a reduced size; a full sell closes it.
func (m *Manager) Sell(caller common.Address, id uint64, sizeWad *big.Int) error {
	if err := m.enter(); err != nil {
		return err
	}
	defer m.exit()

	pos, err := m.getPosition(id)
	if err != nil {
		return err
	}
	if !pos.Active {
		return errs.ErrPositionInactive
	}
	if pos.Owner != caller {
		return errs.ErrNotPositionOwner
	}
	if sizeWad == nil || sizeWad.Sign() <= 0 || sizeWad.Cmp(pos.SizeWad) > 0 {
		return errs.ErrInvalidSize
	}

	if err := m.accrueLocked(pos); err != nil {
		return err
	}

	revenueWad, err := m.engine.ExecuteSell(pos.Type, pos.StrikeWad, sizeWad)
	if err != nil {
		return err
	}
	revenueQuote := wadToQuoteFloor(revenueWad)

	if revenueQuote.Sign() > 0 {
		if err := m.pool.RecordLoss(revenueQuote); err != nil {
			return err
		}
		if err := token.SafeTransfer(m.quote, m.vaultAddr, caller, revenueQuote); err != nil {
			return err
		}
	}

	if err := m.posToken.Burn(caller, token.EncodeTokenID(pos.Type, pos.StrikeWad), sizeWad); err != nil {
		return err
	}

	m.mu.Lock()
	pos.SizeWad = new(big.Int).Sub(pos.SizeWad, sizeWad)
	closed := pos.SizeWad.Sign() == 0
	if closed {
		pos.Active = false
	}
	m.mu.Unlock()

	events.OptionSold(m.sink, caller, id, sizeWad, revenueWad)
	events.TradeExecuted(m.sink, pos.Type, pos.StrikeWad, sizeWad, false, revenueWad)
	return nil
}

// Exercise pays intrinsic value from the pool, books the full exit
// through the engine, refunds any remaining funding balance, and closes
// the position.
func (m *Manager) Exercise(caller common.Address, id uint64) error {
	if err := m.enter(); err != nil {
		return err
	}
	defer m.exit()

	pos, err := m.getPosition(id)
	if err != nil {
		return err
	}
	if !pos.Active {
		return errs.ErrPositionInactive
	}
	if pos.Owner != caller {
		return errs.ErrNotPositionOwner
	}

	if err := m.accrueLocked(pos); err != nil {
		return err
	}

	intrinsicWad, err := m.deriver.Intrinsic(pos.Type, pos.StrikeWad)
	if err != nil {
		return err
	}
	if intrinsicWad.Sign() == 0 {
		return errs.ErrNotInTheMoney
	}

	payoutWad := fixedmath.MulWad(intrinsicWad, pos.SizeWad)
	payoutQuote := wadToQuoteFloor(payoutWad)

	if payoutQuote.Sign() > 0 {
		if err := m.pool.RecordLoss(payoutQuote); err != nil {
			return err
		}
		if err := token.SafeTransfer(m.quote, m.vaultAddr, caller, payoutQuote); err != nil {
			return err
		}
	}

	if _, err := m.engine.ExecuteSell(pos.Type, pos.StrikeWad, pos.SizeWad); err != nil {
		return err
	}

	if err := m.posToken.Burn(caller, token.EncodeTokenID(pos.Type, pos.StrikeWad), pos.SizeWad); err != nil {
		return err
	}

	m.mu.Lock()
	refund := new(big.Int).Set(pos.FundingBalance)
	pos.FundingBalance = big.NewInt(0)
	pos.Active = false
	m.mu.Unlock()

	if refund.Sign() > 0 {
		if err := token.SafeTransfer(m.quote, m.vaultAddr, caller, refund); err != nil {
			return err
		}
	}

	events.OptionExercised(m.sink, caller, id, payoutWad)
	return nil
}

// isLiquidatableLocked reports whether pos currently satisfies the
// liquidation policy, without mutating funding state.
func (m *Manager) isLiquidatableLocked(pos *Position) (bool, error) {
	minBalance := m.policy.MinFundingBalance()
	grace := m.policy.LiquidationGracePeriod()

	dt := m.now().Sub(pos.LastFundingTime)

	m.mu.Lock()
	balance := new(big.Int).Set(pos.FundingBalance)
	m.mu.Unlock()

	if balance.Cmp(minBalance) < 0 && dt > grace {
		return true, nil
	}

	fps, err := m.deriver.FundingPerSecond(pos.Type, pos.StrikeWad, pos.SizeWad)
	if err != nil {
		return false, err
	}
	if fps.Sign() <= 0 {
		return false, nil
	}

	balanceWad := quoteToWad(balance)
	timeUntilDrainSeconds := fixedmath.DivWad(balanceWad, fps)
	timeUntilDrain := time.Duration(timeUntilDrainSeconds.Int64()) * time.Second
	return timeUntilDrain < grace, nil
}

// IsLiquidatable reports whether a position currently satisfies the
// liquidation policy. Pure read.
func (m *Manager) IsLiquidatable(id uint64) (bool, error) {
	pos, err := m.getPosition(id)
	if err != nil {
		return false, err
	}
	if !pos.Active {
		return false, nil
	}
	return m.isLiquidatableLocked(pos)
}

// Liquidate closes a position whose funding has drained: any revenue
// from an engine exit is routed to the pool, the caller receives any
// remaining funding balance as a liquidation reward, and the position
// closes. A solver failure during the exit is swallowed so a pathological
// trade cannot block a liquidation.
func (m *Manager) Liquidate(caller common.Address, id uint64) error {
	if err := m.enter(); err != nil {
		return err
	}
	defer m.exit()

	pos, err := m.getPosition(id)
	if err != nil {
		return err
	}
	if !pos.Active {
		return errs.ErrPositionInactive
	}

	if err := m.accrueLocked(pos); err != nil {
		return err
	}

	liquidatable, err := m.isLiquidatableLocked(pos)
	if err != nil {
		return err
	}
	if !liquidatable {
		return errs.ErrNotLiquidatable
	}

	// The exit's revenue is not paid out, so it stays with the pool; an
	// error from the exit is ignored.
	_, _ = m.engine.ExecuteSell(pos.Type, pos.StrikeWad, pos.SizeWad)

	m.mu.Lock()
	reward := new(big.Int).Set(pos.FundingBalance)
	pos.FundingBalance = big.NewInt(0)
	pos.Active = false
	m.mu.Unlock()

	if reward.Sign() > 0 {
		if err := token.SafeTransfer(m.quote, m.vaultAddr, caller, reward); err != nil {
			return err
		}
	}

	events.PositionLiquidated(m.sink, id, caller)
	return nil
}

// GetPosition returns a copy of a position's current state.
func (m *Manager) GetPosition(id uint64) (Position, error) {
	pos, err := m.getPosition(id)
	if err != nil {
		return Position{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return Position{
		ID:              pos.ID,
		Type:            pos.Type,
		StrikeWad:       new(big.Int).Set(pos.StrikeWad),
		SizeWad:         new(big.Int).Set(pos.SizeWad),
		Owner:           pos.Owner,
		FundingBalance:  new(big.Int).Set(pos.FundingBalance),
		LastFundingTime: pos.LastFundingTime,
		Active:          pos.Active,
	}, nil
}

// AllPositionIDs returns every position ID currently tracked, active or
// closed, for a caller (e.g. a funding-accrual sweep) that needs to walk
// the full table.
func (m *Manager) AllPositionIDs() []uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]uint64, 0, len(m.positions))
	for id := range m.positions {
		ids = append(ids, id)
	}
	return ids
}

// OwnerPositions returns the position IDs ever opened by owner.
func (m *Manager) OwnerPositions(owner common.Address) []uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := m.ownerIndex[owner]
	out := make([]uint64, len(ids))
	copy(out, ids)
	return out
}

// PendingFunding returns the funding amount that the next AccrueFunding
// call would debit, without mutating state.
func (m *Manager) PendingFunding(id uint64) (*big.Int, error) {
	pos, err := m.getPosition(id)
	if err != nil {
		return nil, err
	}
	if !pos.Active {
		return big.NewInt(0), nil
	}

	dt := m.now().Sub(pos.LastFundingTime)
	if dt <= 0 {
		return big.NewInt(0), nil
	}

	fps, err := m.deriver.FundingPerSecond(pos.Type, pos.StrikeWad, pos.SizeWad)
	if err != nil {
		return nil, err
	}
	elapsedWad := new(big.Int).Mul(big.NewInt(int64(dt/time.Second)), fixedmath.WAD)
	owedWad := fixedmath.MulWad(fps, elapsedWad)
	owedQuote := wadToQuoteFloor(owedWad)

	m.mu.Lock()
	balance := new(big.Int).Set(pos.FundingBalance)
	m.mu.Unlock()

	if owedQuote.Cmp(balance) > 0 {
		owedQuote = balance
	}
	return owedQuote, nil
}
