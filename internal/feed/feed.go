// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package feed defines the price-feed collaborator boundary: an external
// aggregator reporting a round-based price, decimal-scaled, that the
// bucket registry reads and staleness-checks. No live network client is
// implemented here (out of scope for this package); InMemoryFeed is
// a deterministic test double and ChainlinkFeed is a thin adapter shape
// for wiring a real aggregator later.
package feed

import (
	"context"
	"math/big"
	"time"
)

// Round is a single price-feed observation, matching the Chainlink
// AggregatorV3Interface.latestRoundData() return shape.
type Round struct {
	RoundID         *big.Int
	Answer          *big.Int
	StartedAt       time.Time
	UpdatedAt       time.Time
	AnsweredInRound *big.Int
}

// PriceFeed is the external oracle collaborator.
type PriceFeed interface {
	// LatestRoundData returns the most recent observation. Decimals
	// reports the feed's native decimal scale (8 for Chainlink-shaped
	// feeds); callers scale by 10^(18-Decimals) to reach WAD.
	LatestRoundData() (Round, error)
	Decimals() uint8
}

// InMemoryFeed is a settable, deterministic PriceFeed used by tests and
// by cmd/clumd in standalone mode.
type InMemoryFeed struct {
	decimals uint8
	round    Round
	nextID   int64
}

// NewInMemoryFeed creates a feed seeded with an initial price at the
// given native-decimal scale.
func NewInMemoryFeed(decimals uint8, initialAnswer *big.Int, at time.Time) *InMemoryFeed {
	return &InMemoryFeed{
		decimals: decimals,
		nextID:   1,
		round: Round{
			RoundID:         big.NewInt(1),
			Answer:          new(big.Int).Set(initialAnswer),
			StartedAt:       at,
			UpdatedAt:       at,
			AnsweredInRound: big.NewInt(1),
		},
	}
}

// Decimals implements PriceFeed.
func (f *InMemoryFeed) Decimals() uint8 { return f.decimals }

// LatestRoundData implements PriceFeed.
func (f *InMemoryFeed) LatestRoundData() (Round, error) {
	return f.round, nil
}

// Push publishes a new round at the given price and timestamp.
func (f *InMemoryFeed) Push(answer *big.Int, at time.Time) {
	f.nextID++
	id := big.NewInt(f.nextID)
	f.round = Round{
		RoundID:         id,
		Answer:          new(big.Int).Set(answer),
		StartedAt:       at,
		UpdatedAt:       at,
		AnsweredInRound: id,
	}
}

// PushStaleRound simulates a feed that reports answeredInRound behind
// the current roundId, exercising the StaleRound failure mode.
func (f *InMemoryFeed) PushStaleRound(answer *big.Int, at time.Time) {
	f.nextID++
	f.round = Round{
		RoundID:         big.NewInt(f.nextID),
		Answer:          new(big.Int).Set(answer),
		StartedAt:       at,
		UpdatedAt:       at,
		AnsweredInRound: big.NewInt(f.nextID - 1),
	}
}

// Caller is the Chainlink AggregatorV3Interface surface a generated
// contract binding exposes. No concrete implementation ships here (out
// of scope for this package); ChainlinkFeed wraps whatever binding the
// deployment provides.
type Caller interface {
	LatestRoundData(ctx context.Context) (roundID, answer, startedAt, updatedAt, answeredInRound *big.Int, err error)
	Decimals(ctx context.Context) (uint8, error)
}

// ChainlinkFeed adapts a Caller to PriceFeed, converting unix-second
// timestamps to time.Time. Decimals is read once at construction since
// an aggregator's decimal scale does not change.
type ChainlinkFeed struct {
	ctx      context.Context
	caller   Caller
	decimals uint8
}

// NewChainlinkFeed wraps caller, reading its decimal scale once.
func NewChainlinkFeed(ctx context.Context, caller Caller) (*ChainlinkFeed, error) {
	decimals, err := caller.Decimals(ctx)
	if err != nil {
		return nil, err
	}
	return &ChainlinkFeed{ctx: ctx, caller: caller, decimals: decimals}, nil
}

// Decimals implements PriceFeed.
func (c *ChainlinkFeed) Decimals() uint8 { return c.decimals }

// LatestRoundData implements PriceFeed.
func (c *ChainlinkFeed) LatestRoundData() (Round, error) {
	roundID, answer, startedAt, updatedAt, answeredInRound, err := c.caller.LatestRoundData(c.ctx)
	if err != nil {
		return Round{}, err
	}
	return Round{
		RoundID:         roundID,
		Answer:          answer,
		StartedAt:       time.Unix(startedAt.Int64(), 0),
		UpdatedAt:       time.Unix(updatedAt.Int64(), 0),
		AnsweredInRound: answeredInRound,
	}, nil
}
