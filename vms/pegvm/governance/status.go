// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package governance

import "errors"

var errUnknownStatus = errors.New("unknown status")

// Status represents the status of a proposal
type Status uint8

const (
	Unknown Status = iota
	Active
	Passed
	Failed
)

// String returns the string representation of the status
func (s Status) String() string {
	switch s {
	case Active:
		return "Active"
	case Passed:
		return "Passed"
	case Failed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// Finalized is true once a proposal can no longer change.
func (s Status) Finalized() bool {
	return s == Passed || s == Failed
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(b []byte) error {
	switch string(b) {
	case "Active":
		*s = Active
	case "Passed":
		*s = Passed
	case "Failed":
		*s = Failed
	case "Unknown":
		*s = Unknown
	default:
		return errUnknownStatus
	}
	return nil
}
