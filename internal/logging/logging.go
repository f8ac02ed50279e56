// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package logging provides the structured logger used across the CLUM
// core, a thin wrapper over github.com/luxfi/log.
package logging

import (
	"github.com/luxfi/log"
)

// New returns an info-level logger suitable for a running daemon.
func New() log.Logger {
	return log.NewTestLogger(log.InfoLevel)
}

// NewWithLevel returns a logger at the given level, for CLI tools that
// expose a verbosity flag.
func NewWithLevel(level log.Level) log.Logger {
	return log.NewTestLogger(level)
}
