package mission

import (
	"time"

	"github.com/juju/errors"
)

// SeqPolicy decides what to do with received item whose sequence
// differs from outstanding request.
type SeqPolicy uint8

const (
	// SeqIgnoreMismatch logs and keeps waiting for requested item.
	SeqIgnoreMismatch SeqPolicy = iota
	// SeqAcceptAny takes any item as answer to outstanding request.
	SeqAcceptAny
	// SeqReject fails transfer with ErrSequence.
	SeqReject
)

func (self SeqPolicy) String() string {
	switch self {
	case SeqIgnoreMismatch:
		return "ignore"
	case SeqAcceptAny:
		return "accept-any"
	case SeqReject:
		return "reject"
	}
	return "invalid"
}

func ParseSeqPolicy(s string) (SeqPolicy, error) {
	switch s {
	case "", "ignore":
		return SeqIgnoreMismatch, nil
	case "accept-any":
		return SeqAcceptAny, nil
	case "reject":
		return SeqReject, nil
	}
	return SeqIgnoreMismatch, errors.NotValidf("mission sequence policy=%q", s)
}

const (
	DefaultStallTimeout = 5 * time.Second
	DefaultMaxRetries   = 3
)

type Policy struct {
	Sequence SeqPolicy
	// StallTimeout=0 waits indefinitely.
	StallTimeout time.Duration
	MaxRetries   int
	// InviteList sends MISSION_REQUEST_LIST after count announcement on upload.
	InviteList bool
}

func DefaultPolicy() Policy {
	return Policy{
		Sequence:     SeqIgnoreMismatch,
		StallTimeout: DefaultStallTimeout,
		MaxRetries:   DefaultMaxRetries,
		InviteList:   true,
	}
}
