package mission

import (
	"time"

	"github.com/juju/errors"
	"github.com/temoto/mavgcs/link"
	"github.com/temoto/mavgcs/log2"
)

// Machine is mission transfer protocol state for one direction.
// Methods return messages to send to target, caller does I/O.
// Not safe for concurrent use, owned by single goroutine.
type Machine struct {
	Log *log2.Log

	dir      Direction
	target   link.Header
	policy   Policy
	state    State
	err      error
	items    []Item
	expected int // -1 until count is known
	next     uint16
	served   []bool
	nserved  int

	outstanding []link.Message
	progress    time.Time
	retries     int
}

func NewDownload(target link.Header, policy Policy) *Machine {
	return &Machine{
		dir:      Download,
		target:   target,
		policy:   policy,
		expected: -1,
	}
}

func NewUpload(target link.Header, items []Item, policy Policy) (*Machine, error) {
	if err := Validate(items); err != nil {
		return nil, errors.Annotate(err, "mission upload")
	}
	return &Machine{
		dir:      Upload,
		target:   target,
		policy:   policy,
		items:    append([]Item(nil), items...),
		expected: len(items),
		served:   make([]bool, len(items)),
	}, nil
}

func (self *Machine) Direction() Direction { return self.dir }
func (self *Machine) Target() link.Header  { return self.target }
func (self *Machine) State() State         { return self.state }
func (self *Machine) Done() bool           { return self.state.Terminal() }
func (self *Machine) Err() error           { return self.err }

// Expected is announced count, -1 while unknown.
func (self *Machine) Expected() int { return self.expected }

// Items returns downloaded items so far or upload source.
func (self *Machine) Items() []Item { return append([]Item(nil), self.items...) }

func (self *Machine) Start(now time.Time) []link.Message {
	if self.state != StateIdle {
		self.Log.Errorf("code error mission start state=%s", self.state)
		return nil
	}
	self.progress = now
	switch self.dir {
	case Download:
		self.state = StateAwaitingCount
		return self.request(link.MissionRequestList{Target: self.target})

	case Upload:
		self.state = StateAnnounced
		out := []link.Message{link.MissionCount{Target: self.target, Count: uint16(len(self.items))}}
		if self.policy.InviteList {
			out = append(out, link.MissionRequestList{Target: self.target})
		}
		if len(self.items) == 0 {
			self.state = StateAwaitingFinalAck
		}
		return self.request(out...)
	}
	self.fail(errors.NotValidf("mission direction=%s", self.dir))
	return nil
}

// Handle consumes mission protocol message from vehicle.
func (self *Machine) Handle(now time.Time, from link.Header, m link.Message) []link.Message {
	if self.Done() {
		self.Log.Debugf("mission %s done, ignore %s", self.dir, link.Kind(m))
		return nil
	}
	if from.SystemID != self.target.SystemID {
		self.Log.Debugf("mission ignore %s from=%s target=%s", link.Kind(m), from, self.target)
		return nil
	}
	if self.dir == Download {
		return self.handleDownload(now, m)
	}
	return self.handleUpload(now, m)
}

// Tick checks stall policy, returns re-sent outstanding request.
func (self *Machine) Tick(now time.Time) []link.Message {
	if self.Done() || self.state == StateIdle || self.policy.StallTimeout <= 0 {
		return nil
	}
	if now.Sub(self.progress) <= self.policy.StallTimeout {
		return nil
	}
	if self.retries >= self.policy.MaxRetries {
		self.fail(errors.Annotatef(ErrStall, "mission %s state=%s retries=%d", self.dir, self.state, self.retries))
		return nil
	}
	self.retries++
	self.progress = now
	self.Log.Infof("mission %s stall state=%s resend %d/%d", self.dir, self.state, self.retries, self.policy.MaxRetries)
	return append([]link.Message(nil), self.outstanding...)
}

// Abort fails transfer from outside, e.g. on send error.
func (self *Machine) Abort(err error) {
	if !self.Done() {
		self.fail(err)
	}
}

func (self *Machine) handleDownload(now time.Time, m link.Message) []link.Message {
	switch x := m.(type) {
	case link.MissionCount:
		if self.state != StateAwaitingCount {
			self.Log.Debugf("mission download duplicate count=%d state=%s", x.Count, self.state)
			return nil
		}
		self.expected = int(x.Count)
		self.items = make([]Item, 0, self.expected)
		self.touch(now)
		if self.expected == 0 {
			return self.complete()
		}
		self.next = 0
		return self.requestItem()

	case link.MissionItem:
		if self.state != StateAwaitingItem {
			self.Log.Debugf("mission download unexpected item seq=%d state=%s", x.Seq, self.state)
			return nil
		}
		if x.Seq != self.next {
			switch self.policy.Sequence {
			case SeqAcceptAny:
				self.Log.Debugf("mission download item seq=%d for request=%d accepted", x.Seq, self.next)
			case SeqReject:
				self.fail(errors.Annotatef(ErrSequence, "mission download item seq=%d requested=%d", x.Seq, self.next))
				return nil
			default:
				self.Log.Infof("mission download item seq=%d requested=%d ignored", x.Seq, self.next)
				return nil
			}
		}
		self.items = append(self.items, ItemFromMessage(x))
		self.touch(now)
		if int(self.next) == self.expected-1 {
			return self.complete()
		}
		self.next++
		return self.requestItem()

	case link.MissionAck:
		if x.Result != link.MissionAccepted {
			self.fail(errors.Trace(RejectedError{Result: x.Result}))
		}
		return nil
	}
	self.Log.Debugf("mission download ignore %s state=%s", link.Kind(m), self.state)
	return nil
}

func (self *Machine) handleUpload(now time.Time, m link.Message) []link.Message {
	switch x := m.(type) {
	case link.MissionRequest:
		if int(x.Seq) >= len(self.items) {
			if self.policy.Sequence == SeqReject {
				self.fail(errors.Annotatef(ErrSequence, "mission upload request seq=%d count=%d", x.Seq, len(self.items)))
				return nil
			}
			self.Log.Infof("mission upload request seq=%d out of range count=%d ignored", x.Seq, len(self.items))
			return nil
		}
		self.state = StateServingItem
		if !self.served[x.Seq] {
			self.served[x.Seq] = true
			self.nserved++
		}
		self.touch(now)
		out := self.request(self.items[x.Seq].Message(self.target))
		if self.nserved == len(self.items) {
			self.state = StateAwaitingFinalAck
		} else {
			self.state = StateAwaitingItemRequest
		}
		return out

	case link.MissionAck:
		self.touch(now)
		if x.Result != link.MissionAccepted {
			self.fail(errors.Trace(RejectedError{Result: x.Result}))
			return nil
		}
		if self.nserved < len(self.items) {
			self.Log.Infof("mission upload accepted after serving %d/%d", self.nserved, len(self.items))
		}
		self.state = StateComplete
		self.outstanding = nil
		return nil

	case link.MissionCount:
		self.Log.Debugf("mission upload count echo=%d state=%s", x.Count, self.state)
		return nil
	}
	self.Log.Debugf("mission upload ignore %s state=%s", link.Kind(m), self.state)
	return nil
}

func (self *Machine) requestItem() []link.Message {
	self.state = StateRequestingItem
	out := self.request(link.MissionRequest{Target: self.target, Seq: self.next, Int: true})
	self.state = StateAwaitingItem
	return out
}

func (self *Machine) complete() []link.Message {
	self.state = StateComplete
	self.outstanding = nil
	return []link.Message{link.MissionAck{Target: self.target, Result: link.MissionAccepted}}
}

func (self *Machine) request(ms ...link.Message) []link.Message {
	self.outstanding = ms
	return ms
}

func (self *Machine) touch(now time.Time) {
	self.progress = now
	self.retries = 0
}

func (self *Machine) fail(err error) {
	self.state = StateFailed
	self.err = err
	self.outstanding = nil
	self.Log.Errorf("mission %s: %v", self.dir, err)
}
