// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package feed

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"
)

func TestInMemoryFeedPush(t *testing.T) {
	f := NewInMemoryFeed(8, big.NewInt(3000_00000000), time.Unix(1000, 0))
	round, err := f.LatestRoundData()
	if err != nil {
		t.Fatalf("LatestRoundData() error: %v", err)
	}
	if round.Answer.Cmp(big.NewInt(3000_00000000)) != 0 {
		t.Fatalf("Answer = %v, want 3000e8", round.Answer)
	}

	f.Push(big.NewInt(3100_00000000), time.Unix(2000, 0))
	round, err = f.LatestRoundData()
	if err != nil {
		t.Fatalf("LatestRoundData() error: %v", err)
	}
	if round.Answer.Cmp(big.NewInt(3100_00000000)) != 0 {
		t.Fatalf("Answer after Push = %v, want 3100e8", round.Answer)
	}
	if round.AnsweredInRound.Cmp(round.RoundID) != 0 {
		t.Fatal("expected a fresh round to report answeredInRound == roundId")
	}
}

func TestInMemoryFeedPushStaleRound(t *testing.T) {
	f := NewInMemoryFeed(8, big.NewInt(3000_00000000), time.Unix(1000, 0))
	f.PushStaleRound(big.NewInt(3100_00000000), time.Unix(2000, 0))
	round, err := f.LatestRoundData()
	if err != nil {
		t.Fatalf("LatestRoundData() error: %v", err)
	}
	if round.AnsweredInRound.Cmp(round.RoundID) >= 0 {
		t.Fatal("expected a stale round to report answeredInRound behind roundId")
	}
}

type fakeCaller struct {
	decimals        uint8
	roundID         *big.Int
	answer          *big.Int
	startedAt       *big.Int
	updatedAt       *big.Int
	answeredInRound *big.Int
	err             error
}

func (c *fakeCaller) LatestRoundData(ctx context.Context) (roundID, answer, startedAt, updatedAt, answeredInRound *big.Int, err error) {
	if c.err != nil {
		return nil, nil, nil, nil, nil, c.err
	}
	return c.roundID, c.answer, c.startedAt, c.updatedAt, c.answeredInRound, nil
}

func (c *fakeCaller) Decimals(ctx context.Context) (uint8, error) {
	return c.decimals, nil
}

func TestChainlinkFeedAdaptsCaller(t *testing.T) {
	caller := &fakeCaller{
		decimals:        8,
		roundID:         big.NewInt(42),
		answer:          big.NewInt(3000_00000000),
		startedAt:       big.NewInt(1000),
		updatedAt:       big.NewInt(1000),
		answeredInRound: big.NewInt(42),
	}
	f, err := NewChainlinkFeed(context.Background(), caller)
	if err != nil {
		t.Fatalf("NewChainlinkFeed() error: %v", err)
	}
	if f.Decimals() != 8 {
		t.Fatalf("Decimals() = %d, want 8", f.Decimals())
	}

	round, err := f.LatestRoundData()
	if err != nil {
		t.Fatalf("LatestRoundData() error: %v", err)
	}
	if round.RoundID.Cmp(big.NewInt(42)) != 0 {
		t.Fatalf("RoundID = %v, want 42", round.RoundID)
	}
	if !round.UpdatedAt.Equal(time.Unix(1000, 0)) {
		t.Fatalf("UpdatedAt = %v, want unix 1000", round.UpdatedAt)
	}
}

func TestChainlinkFeedPropagatesError(t *testing.T) {
	caller := &fakeCaller{decimals: 8, err: errors.New("rpc unavailable")}
	f, err := NewChainlinkFeed(context.Background(), caller)
	if err != nil {
		t.Fatalf("NewChainlinkFeed() error: %v", err)
	}
	if _, err := f.LatestRoundData(); err == nil {
		t.Fatal("expected LatestRoundData to propagate the caller's error")
	}
}
