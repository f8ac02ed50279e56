// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package clum

// OptionType distinguishes a call from a put; both trade against the
// same bucket grid and share vector.
type OptionType uint8

const (
	Call OptionType = iota
	Put
)

func (t OptionType) String() string {
	if t == Put {
		return "PUT"
	}
	return "CALL"
}
