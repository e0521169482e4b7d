// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package provenance

import (
	"errors"
	"fmt"
)

var errUnknownSource = errors.New("unknown issuance source")

// Source is the issuance channel that funded an account. The zero value is
// Invalid so that an unset source never grants access.
type Source uint8

const (
	Invalid Source = iota
	Mining
	Rewards
	P2P
)

// Sources lists every source that may fund an account.
var Sources = []Source{Mining, Rewards, P2P}

// Valid reports whether [s] may be used to mint or to enter the ecosystem.
func (s Source) Valid() bool {
	switch s {
	case Mining, Rewards, P2P:
		return true
	default:
		return false
	}
}

func (s Source) String() string {
	switch s {
	case Mining:
		return "Mining"
	case Rewards:
		return "Rewards"
	case P2P:
		return "P2P"
	default:
		return "Invalid"
	}
}

// ParseSource maps a source name back to its value. "Invalid" parses to
// Invalid; callers are still expected to reject it.
func ParseSource(name string) (Source, error) {
	switch name {
	case "Mining":
		return Mining, nil
	case "Rewards":
		return Rewards, nil
	case "P2P":
		return P2P, nil
	case "Invalid":
		return Invalid, nil
	default:
		return Invalid, fmt.Errorf("%w: %q", errUnknownSource, name)
	}
}

func (s Source) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Source) UnmarshalText(text []byte) error {
	parsed, err := ParseSource(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
