package gcs

import (
	"sync"
	"time"

	"github.com/temoto/atomic_clock"
	"github.com/temoto/mavgcs/link"
	"github.com/temoto/mavgcs/log2"
)

// Monitor classifies inbound traffic into events and tracks liveness.
type Monitor struct {
	Log *log2.Log

	lastSeen atomic_clock.Clock
	mu       sync.Mutex
	known    bool
	armed    bool
	mode     uint32
}

// Observe returns event for message kinds worth reporting.
func (self *Monitor) Observe(now time.Time, from link.Header, m link.Message) (Event, bool) {
	e := Event{Time: now, From: from}
	switch x := m.(type) {
	case link.Heartbeat:
		self.lastSeen.Set(now.UnixNano())
		e.Kind = EventHeartbeat
		e.Armed = x.BaseMode.Has(link.ModeFlagSafetyArmed)
		e.CustomMode = x.CustomMode
		e.Mode = FlightMode(x.CustomMode)
		self.mu.Lock()
		e.Changed = !self.known || self.armed != e.Armed || self.mode != e.CustomMode
		self.known, self.armed, self.mode = true, e.Armed, e.CustomMode
		self.mu.Unlock()
		if e.Changed {
			self.Log.Infof("vehicle %s armed=%t mode=%s", from, e.Armed, e.Mode)
		}
	case link.CommandAck:
		e.Kind = EventCommandAck
		e.Ack = x
	case link.MissionCount, link.MissionItem, link.MissionRequest, link.MissionRequestList, link.MissionAck:
		e.Kind = EventMission
		e.Mission.Msg = m
	case link.ParamValue:
		e.Kind = EventParam
		e.Param = x
	case link.GlobalPosition:
		e.Kind = EventPosition
		e.Position = x
	case link.Attitude:
		e.Kind = EventAttitude
		e.Attitude = x
	default:
		return e, false
	}
	return e, true
}

// LastSeen is time of last heartbeat, zero if none yet.
func (self *Monitor) LastSeen() time.Time {
	if self.lastSeen.IsZero() {
		return time.Time{}
	}
	return time.Unix(0, int64(self.lastSeen.Sub(atomic_clock.New())))
}

// Armed returns last known armed state, ok=false before first heartbeat.
func (self *Monitor) Armed() (armed bool, ok bool) {
	self.mu.Lock()
	defer self.mu.Unlock()
	return self.armed, self.known
}

func (self *Monitor) Mode() (FlightMode, bool) {
	self.mu.Lock()
	defer self.mu.Unlock()
	return FlightMode(self.mode), self.known
}
