// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Command clumd wires the CLUM pricing core into a standalone daemon:
// an in-memory price feed and collaborators, the engine/registry/
// deriver/guard/manager stack, and a periodic funding-accrual sweep.
// It has no blockchain runtime dependency; the feed, pool and token
// collaborators are stand-ins for a real deployment's RPC and contract
// bindings.
package main

import (
	"context"
	"math/big"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/log"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/luxfi/everlast/internal/buckets"
	"github.com/luxfi/everlast/internal/clum"
	"github.com/luxfi/everlast/internal/config"
	"github.com/luxfi/everlast/internal/events"
	"github.com/luxfi/everlast/internal/feed"
	"github.com/luxfi/everlast/internal/fixedmath"
	"github.com/luxfi/everlast/internal/funding"
	"github.com/luxfi/everlast/internal/guard"
	"github.com/luxfi/everlast/internal/logging"
	"github.com/luxfi/everlast/internal/orders"
	"github.com/luxfi/everlast/internal/pool"
	"github.com/luxfi/everlast/internal/token"
)

func wad(n int64) *big.Int { return new(big.Int).Mul(big.NewInt(n), fixedmath.WAD) }

type daemonFlags struct {
	centerPrice     int64
	bucketWidth     int64
	numBuckets      int
	subsidy         int64
	premiumFactorBp int64
	fundingPeriod   int64
	maxFundingRate  int64
	sweepInterval   time.Duration
	ownerHex        string
}

func newRootCmd() *cobra.Command {
	var f daemonFlags

	cmd := &cobra.Command{
		Use:   "clumd",
		Short: "Runs the CLUM perpetual-options pricing core as a standalone daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), f)
		},
	}

	flags := cmd.Flags()
	flags.Int64Var(&f.centerPrice, "center-price", 3000, "initial grid center price, in whole quote units")
	flags.Int64Var(&f.bucketWidth, "bucket-width", 50, "regular bucket width, in whole quote units")
	flags.IntVar(&f.numBuckets, "num-buckets", 64, "number of regular buckets (even, >= 4)")
	flags.Int64Var(&f.subsidy, "subsidy", 1_000_000, "initial pool subsidy, in whole quote units")
	flags.Int64Var(&f.premiumFactorBp, "premium-factor-bp", 10_000, "everlasting premium factor, in basis points of WAD (10000 = 1x)")
	flags.Int64Var(&f.fundingPeriod, "funding-period-seconds", 86_400, "funding period denominator, in seconds")
	flags.Int64Var(&f.maxFundingRate, "max-funding-rate-bp", 100, "per-second funding rate cap, in basis points of size")
	flags.DurationVar(&f.sweepInterval, "sweep-interval", time.Minute, "interval between funding-accrual sweeps")
	flags.StringVar(&f.ownerHex, "owner", "0x0000000000000000000000000000000000000001", "address permitted to call owner-gated configuration setters")

	return cmd
}

func run(ctx context.Context, f daemonFlags) error {
	logger := logging.New()
	sink := events.NewLogSink(logger)

	priceFeed := feed.NewInMemoryFeed(8, bpToFeedUnits(f.centerPrice), time.Now())

	registry, err := buckets.New(buckets.Config{
		PriceFeed:          priceFeed,
		OracleStaleness:    time.Hour,
		RebalanceThreshold: fixedmath.DivWad(fixedmath.WAD, big.NewInt(10)),
		CenterPrice:        wad(f.centerPrice),
		Width:              wad(f.bucketWidth),
		NumRegular:         f.numBuckets,
	})
	if err != nil {
		return err
	}

	engine := clum.New(registry)
	if err := engine.Initialize(wad(f.subsidy), nil); err != nil {
		return err
	}

	premiumFactor := bpToWad(f.premiumFactorBp)
	maxFundingRate := bpToWad(f.maxFundingRate)

	deriver, err := funding.New(funding.Config{
		Registry:       registry,
		Engine:         engine,
		PremiumFactor:  premiumFactor,
		FundingPeriod:  big.NewInt(f.fundingPeriod),
		MaxFundingRate: maxFundingRate,
	})
	if err != nil {
		return err
	}

	g := guard.New()
	// The pool counts in quote units of the 6-decimal quote asset below.
	subsidyQuote := new(big.Int).Mul(big.NewInt(f.subsidy), big.NewInt(1_000_000))
	liquidityPool := pool.NewMemoryPool(subsidyQuote, subsidyQuote)
	quoteAsset := token.NewMemoryQuoteAsset(6)
	positionToken := token.NewMemoryPositionToken()

	owner := common.HexToAddress(f.ownerHex)
	policy := config.New(owner)
	policy.BindRegistry(registry)
	policy.BindDeriver(deriver)

	manager := orders.New(orders.Config{
		Engine:        engine,
		Deriver:       deriver,
		Guard:         g,
		Pool:          liquidityPool,
		QuoteAsset:    quoteAsset,
		PositionToken: positionToken,
		Policy:        policy,
		Sink:          sink,
		VaultAddr:     owner,
	})
	if err := policy.SetOptionManager(owner, owner); err != nil {
		return err
	}

	logger.Info("clumd started",
		zap.Int64("centerPrice", f.centerPrice),
		zap.Int("numBuckets", registry.NumBuckets()),
		zap.String("sweepInterval", f.sweepInterval.String()),
	)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	runFundingSweep(ctx, logger, manager, f.sweepInterval)
	return nil
}

// bpToFeedUnits converts a whole quote-unit price to the 8-decimal
// native scale InMemoryFeed expects for its seed round.
func bpToFeedUnits(wholeUnits int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(wholeUnits), big.NewInt(1e8))
}

// bpToWad converts a basis-points fraction of WAD (10000 == 1x) into a
// WAD fixed-point value.
func bpToWad(bp int64) *big.Int {
	v := new(big.Int).Mul(fixedmath.WAD, big.NewInt(bp))
	return v.Quo(v, big.NewInt(10_000))
}

// runFundingSweep periodically accrues funding across every open
// position until ctx is canceled. Funding accrual is permissionless,
// so the sweep uses the same entry point any caller would.
func runFundingSweep(ctx context.Context, logger log.Logger, manager *orders.Manager, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("clumd shutting down")
			return
		case <-ticker.C:
			sweepOnce(logger, manager)
		}
	}
}

func sweepOnce(logger log.Logger, manager *orders.Manager) {
	for _, id := range manager.AllPositionIDs() {
		pos, err := manager.GetPosition(id)
		if err != nil || !pos.Active {
			continue
		}
		if err := manager.AccrueFunding(id); err != nil {
			logger.Info("funding sweep skipped position", zap.Uint64("id", id), zap.Error(err))
		}
	}
}

func main() {
	cmd := newRootCmd()
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
