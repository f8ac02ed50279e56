// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package errs collects the sentinel errors returned across the CLUM
// core, grouped by the failure taxonomy of a perpetual-options market.
package errs

import "errors"

// Domain errors: malformed inputs rejected before any state is touched.
var (
	ErrZeroSubsidy  = errors.New("zero subsidy")
	ErrZeroSigma    = errors.New("zero sigma")
	ErrInvalidStrike = errors.New("invalid strike")
	ErrInvalidSize  = errors.New("invalid size")
	ErrInvalidConfig = errors.New("invalid config")
	ErrIndexError   = errors.New("bucket index out of range")
)

// Authorization errors.
var (
	ErrOnlyOwner        = errors.New("caller is not the owner")
	ErrOnlyManager       = errors.New("caller is not the order manager")
	ErrNotPositionOwner = errors.New("caller does not own this position")
)

// State errors.
var (
	ErrAlreadyInitialized = errors.New("engine already initialized")
	ErrNotInitialized     = errors.New("engine not initialized")
	ErrPaused             = errors.New("manager is paused")
	ErrPositionInactive   = errors.New("position is inactive")
	ErrNotInTheMoney      = errors.New("option is not in the money")
	ErrNotLiquidatable    = errors.New("position is not liquidatable")
	ErrReentrancy         = errors.New("reentrant call rejected")
)

// Numerical errors.
var (
	ErrLnUndefined          = errors.New("ln undefined for non-positive input")
	ErrExpOverflow          = errors.New("exp argument out of supported range")
	ErrLogDomain            = errors.New("cost at or below max share: log domain violated")
	ErrNewtonDidNotConverge = errors.New("root finder did not converge")
	ErrInsufficientLiquidity = errors.New("trade would push cost into the log domain")
)

// Oracle errors.
var (
	ErrStalePrice = errors.New("price feed is stale")
	ErrStaleRound = errors.New("price feed round is stale")
	ErrInvalidPrice = errors.New("price feed returned a non-positive price")
	ErrFeedNotSet = errors.New("price feed not configured")
)

// Verification errors.
var (
	ErrQuantityMismatch    = errors.New("proposed share vector does not match committed state")
	ErrInvalidVerification = errors.New("verification residual exceeds tolerance")
)

// Accounting errors.
var (
	ErrInsufficientFunding   = errors.New("insufficient funding balance")
	ErrInsufficientAvailable = errors.New("pool has insufficient available assets")
	ErrNonStandardTransfer   = errors.New("quote asset transfer did not move the expected balance")
)

// Guard errors.
var (
	ErrNegativePrice          = errors.New("quoted price is negative")
	ErrInvalidStrikeOrdering  = errors.New("strikes are not strictly increasing")
	ErrConvexityViolated      = errors.New("convexity across strikes violated")
	ErrMonotonicityViolated   = errors.New("monotonicity in strike violated")
	ErrPutCallParityViolated  = errors.New("put-call parity violated")
	ErrPriceBoundProofInvalid = errors.New("merkle inclusion proof does not verify")
	ErrPriceBoundExceeded     = errors.New("quoted price exceeds the committed bound")
)
