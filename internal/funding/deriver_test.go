// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package funding

import (
	"math/big"
	"testing"
	"time"

	"github.com/luxfi/everlast/internal/buckets"
	"github.com/luxfi/everlast/internal/clum"
	"github.com/luxfi/everlast/internal/feed"
	"github.com/luxfi/everlast/internal/fixedmath"
)

func wad(n int64) *big.Int { return new(big.Int).Mul(big.NewInt(n), fixedmath.WAD) }

func newTestDeriver(t *testing.T) (*Deriver, *clum.Engine) {
	t.Helper()
	f := feed.NewInMemoryFeed(8, big.NewInt(3000*1e8), time.Now())
	reg, err := buckets.New(buckets.Config{
		PriceFeed:          f,
		OracleStaleness:    time.Hour,
		RebalanceThreshold: fixedmath.DivWad(wad(1), wad(10)),
		CenterPrice:        wad(3000),
		Width:              wad(50),
		NumRegular:         64,
	})
	if err != nil {
		t.Fatalf("buckets.New() error: %v", err)
	}
	e := clum.New(reg)
	if err := e.Initialize(wad(10000), nil); err != nil {
		t.Fatalf("Initialize() error: %v", err)
	}
	d, err := New(Config{
		Registry:       reg,
		Engine:         e,
		PremiumFactor:  wad(1),
		FundingPeriod:  big.NewInt(86400),
		MaxFundingRate: fixedmath.DivWad(wad(1), wad(100)),
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return d, e
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	f := feed.NewInMemoryFeed(8, big.NewInt(3000*1e8), time.Now())
	reg, _ := buckets.New(buckets.Config{
		PriceFeed: f, OracleStaleness: time.Hour,
		RebalanceThreshold: fixedmath.DivWad(wad(1), wad(10)),
		CenterPrice:        wad(3000), Width: wad(50), NumRegular: 64,
	})
	e := clum.New(reg)
	_ = e.Initialize(wad(10000), nil)

	cases := []Config{
		{Registry: reg, Engine: e, PremiumFactor: wad(0), FundingPeriod: big.NewInt(1), MaxFundingRate: big.NewInt(0)},
		{Registry: reg, Engine: e, PremiumFactor: wad(1), FundingPeriod: big.NewInt(0), MaxFundingRate: big.NewInt(0)},
		{Registry: reg, Engine: e, PremiumFactor: wad(1), FundingPeriod: big.NewInt(1), MaxFundingRate: big.NewInt(-1)},
	}
	for i, c := range cases {
		if _, err := New(c); err == nil {
			t.Fatalf("case %d: expected InvalidConfig error", i)
		}
	}
}

func TestMarkAtLeastIntrinsic(t *testing.T) {
	d, _ := newTestDeriver(t)
	strikes := []int64{2800, 3000, 3200}
	for _, k := range strikes {
		for _, ot := range []clum.OptionType{clum.Call, clum.Put} {
			mark, err := d.Mark(ot, wad(k))
			if err != nil {
				t.Fatalf("Mark(%v,%d) error: %v", ot, k, err)
			}
			intrinsic, err := d.Intrinsic(ot, wad(k))
			if err != nil {
				t.Fatalf("Intrinsic(%v,%d) error: %v", ot, k, err)
			}
			if mark.Cmp(intrinsic) < 0 {
				t.Fatalf("mark(%v,%d)=%v < intrinsic=%v, violates property 4", ot, k, mark, intrinsic)
			}
		}
	}
}

func TestIntrinsicExactScenario(t *testing.T) {
	d, _ := newTestDeriver(t)
	// spot = 3000: a 2800 call is 200 ITM, a 3200 call is worthless.
	callITM, err := d.Intrinsic(clum.Call, wad(2800))
	if err != nil {
		t.Fatalf("Intrinsic error: %v", err)
	}
	if callITM.Cmp(wad(200)) != 0 {
		t.Fatalf("Intrinsic(CALL,2800) = %v, want 200 WAD", callITM)
	}

	callOTM, err := d.Intrinsic(clum.Call, wad(3200))
	if err != nil {
		t.Fatalf("Intrinsic error: %v", err)
	}
	if callOTM.Sign() != 0 {
		t.Fatalf("Intrinsic(CALL,3200) = %v, want 0", callOTM)
	}

	putITM, err := d.Intrinsic(clum.Put, wad(3200))
	if err != nil {
		t.Fatalf("Intrinsic error: %v", err)
	}
	if putITM.Cmp(wad(200)) != 0 {
		t.Fatalf("Intrinsic(PUT,3200) = %v, want 200 WAD", putITM)
	}
}

func TestFundingPerSecondRespectsCap(t *testing.T) {
	d, _ := newTestDeriver(t)
	if err := d.SetMaxFundingRate(big.NewInt(0)); err != nil {
		t.Fatalf("SetMaxFundingRate error: %v", err)
	}
	fps, err := d.FundingPerSecond(clum.Call, wad(3000), wad(100))
	if err != nil {
		t.Fatalf("FundingPerSecond error: %v", err)
	}
	if fps.Sign() != 0 {
		t.Fatalf("FundingPerSecond = %v, want 0 under a zero cap", fps)
	}
}

func TestFundingPerSecondPositiveForPositiveTimeValue(t *testing.T) {
	d, _ := newTestDeriver(t)
	fps, err := d.FundingPerSecond(clum.Call, wad(3000), wad(100))
	if err != nil {
		t.Fatalf("FundingPerSecond error: %v", err)
	}
	if fps.Sign() <= 0 {
		t.Fatalf("FundingPerSecond = %v, want positive", fps)
	}
}

func TestFundingPerSecondMatchesFundingPeriodScale(t *testing.T) {
	d, _ := newTestDeriver(t)
	// A short period and a generous cap isolate the fps/fundingPeriod
	// relationship from rounding-dominated or cap-dominated regimes.
	fundingPeriod := big.NewInt(100)
	if err := d.SetFundingPeriod(fundingPeriod); err != nil {
		t.Fatalf("SetFundingPeriod error: %v", err)
	}
	if err := d.SetMaxFundingRate(wad(10)); err != nil {
		t.Fatalf("SetMaxFundingRate error: %v", err)
	}

	strike, size := wad(2800), wad(100)
	mark, err := d.Mark(clum.Call, strike)
	if err != nil {
		t.Fatalf("Mark error: %v", err)
	}
	intrinsic, err := d.Intrinsic(clum.Call, strike)
	if err != nil {
		t.Fatalf("Intrinsic error: %v", err)
	}
	timeValue := new(big.Int).Sub(mark, intrinsic)
	if timeValue.Sign() <= 0 {
		t.Fatalf("expected positive time value, got %v", timeValue)
	}

	fps, err := d.FundingPerSecond(clum.Call, strike, size)
	if err != nil {
		t.Fatalf("FundingPerSecond error: %v", err)
	}

	// fps = floor(MulWad(timeValue,size)/fundingPeriod), so
	// fps*fundingPeriod must land within one fundingPeriod of the WAD
	// product — not 10^18x away from it, which is what fundingPeriod*WAD
	// collapsing to fundingPeriod alone would produce.
	want := fixedmath.MulWad(timeValue, size)
	got := new(big.Int).Mul(fps, fundingPeriod)
	diff := new(big.Int).Sub(want, got)
	diff.Abs(diff)
	if diff.Cmp(fundingPeriod) > 0 {
		t.Fatalf("fps*fundingPeriod = %v, want within %v of MulWad(timeValue,size) = %v (diff %v)", got, fundingPeriod, want, diff)
	}
}

func TestSettersValidate(t *testing.T) {
	d, _ := newTestDeriver(t)
	if err := d.SetPremiumFactor(wad(0)); err == nil {
		t.Fatal("expected InvalidConfig for premium factor below WAD")
	}
	if err := d.SetFundingPeriod(big.NewInt(0)); err == nil {
		t.Fatal("expected InvalidConfig for zero funding period")
	}
	if err := d.SetMaxFundingRate(big.NewInt(-1)); err == nil {
		t.Fatal("expected InvalidConfig for negative max funding rate")
	}
	if err := d.SetPremiumFactor(wad(2)); err != nil {
		t.Fatalf("SetPremiumFactor(2 WAD) should succeed: %v", err)
	}
}
