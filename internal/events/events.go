// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package events defines the semantic event surface emitted by the
// engine and order manager, and a logging-backed sink.
package events

import (
	"math/big"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/log"
	"go.uber.org/zap"

	"github.com/luxfi/everlast/internal/clum"
)

// Sink receives named, structured events. A logging sink is the
// default; a test sink may instead record them for assertions.
type Sink interface {
	Emit(name string, fields map[string]any)
}

// LogSink emits every event as a structured info-level log line.
type LogSink struct {
	logger log.Logger
}

// NewLogSink wraps a logger as an event Sink.
func NewLogSink(logger log.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// Emit implements Sink.
func (s *LogSink) Emit(name string, fields map[string]any) {
	zapFields := make([]zap.Field, 0, len(fields))
	for k, v := range fields {
		zapFields = append(zapFields, zap.Any(k, v))
	}
	s.logger.Info(name, zapFields...)
}

// OptionBought is emitted when a buy completes.
func OptionBought(sink Sink, owner common.Address, id uint64, optType clum.OptionType, strike, size, premium *big.Int) {
	sink.Emit("OptionBought", map[string]any{
		"owner": owner, "id": id, "type": optType.String(),
		"strike": strike.String(), "size": size.String(), "premium": premium.String(),
	})
}

// OptionSold is emitted when a sell (partial or full) completes.
func OptionSold(sink Sink, owner common.Address, id uint64, size, revenue *big.Int) {
	sink.Emit("OptionSold", map[string]any{
		"owner": owner, "id": id, "size": size.String(), "revenue": revenue.String(),
	})
}

// OptionExercised is emitted when a position is exercised.
func OptionExercised(sink Sink, owner common.Address, id uint64, payout *big.Int) {
	sink.Emit("OptionExercised", map[string]any{
		"owner": owner, "id": id, "payout": payout.String(),
	})
}

// PositionLiquidated is emitted when a position is liquidated.
func PositionLiquidated(sink Sink, id uint64, liquidator common.Address) {
	sink.Emit("PositionLiquidated", map[string]any{"id": id, "liquidator": liquidator})
}

// FundingAccrued is emitted after each accrual debit.
func FundingAccrued(sink Sink, id uint64, amount *big.Int, timestamp int64) {
	sink.Emit("FundingAccrued", map[string]any{
		"id": id, "amount": amount.String(), "timestamp": timestamp,
	})
}

// FundingDeposited is emitted when a position's owner tops up funding.
func FundingDeposited(sink Sink, id uint64, amount *big.Int) {
	sink.Emit("FundingDeposited", map[string]any{"id": id, "amount": amount.String()})
}

// TradeExecuted is emitted by the order manager's Buy and Sell. The
// engine exits inside Exercise and Liquidate do not emit it.
func TradeExecuted(sink Sink, optType clum.OptionType, strike, size *big.Int, isBuy bool, amount *big.Int) {
	sink.Emit("TradeExecuted", map[string]any{
		"type": optType.String(), "strike": strike.String(), "size": size.String(),
		"isBuy": isBuy, "amount": amount.String(),
	})
}

// CostUpdated reports a change of the engine's cached cost. Nothing in
// this module calls it; engine trades do not emit it.
func CostUpdated(sink Sink, oldC, newC *big.Int) {
	sink.Emit("CostUpdated", map[string]any{"oldC": oldC.String(), "newC": newC.String()})
}

// Recentered reports a recentering of the bucket registry's grid. Nothing
// in this module calls it; Registry.Recenter does not emit it.
func Recentered(sink Sink, oldCenter, newCenter *big.Int) {
	sink.Emit("Recentered", map[string]any{"oldCenter": oldCenter.String(), "newCenter": newCenter.String()})
}

// PriceBoundsUpdated reports a newly committed price-bounds Merkle root.
// Nothing in this module calls it; Guard.SetPriceBoundsRoot does not
// emit it.
func PriceBoundsUpdated(sink Sink, root common.Hash) {
	sink.Emit("PriceBoundsUpdated", map[string]any{"merkleRoot": root.Hex()})
}
