package mission

import (
	"fmt"

	"github.com/juju/errors"
	"github.com/temoto/mavgcs/link"
)

type Direction uint8

const (
	Download Direction = iota + 1
	Upload
)

func (self Direction) String() string {
	switch self {
	case Download:
		return "download"
	case Upload:
		return "upload"
	}
	return fmt.Sprintf("Direction(%d)", uint8(self))
}

type State uint8

const (
	StateIdle State = iota
	StateAwaitingCount
	StateRequestingItem
	StateAwaitingItem
	StateAnnounced
	StateAwaitingItemRequest
	StateServingItem
	StateAwaitingFinalAck
	StateComplete
	StateFailed
)

var stateNames = [...]string{
	"Idle", "AwaitingCount", "RequestingItem", "AwaitingItem",
	"Announced", "AwaitingItemRequest", "ServingItem", "AwaitingFinalAck",
	"Complete", "Failed",
}

func (self State) String() string {
	if int(self) < len(stateNames) {
		return stateNames[self]
	}
	return fmt.Sprintf("State(%d)", uint8(self))
}

func (self State) Terminal() bool { return self == StateComplete || self == StateFailed }

var (
	ErrStall    = errors.New("mission transfer stalled")
	ErrSequence = errors.New("mission sequence violation")
)

// RejectedError is non-accepted MISSION_ACK from vehicle.
type RejectedError struct {
	Result link.MissionResult
}

func (self RejectedError) Error() string { return "mission rejected result=" + self.Result.String() }

// IsRejected reports vehicle disposition if err is mission rejection.
func IsRejected(err error) (link.MissionResult, bool) {
	if r, ok := errors.Cause(err).(RejectedError); ok {
		return r.Result, true
	}
	return 0, false
}

func IsStall(err error) bool    { return errors.Cause(err) == ErrStall }
func IsSequence(err error) bool { return errors.Cause(err) == ErrSequence }
