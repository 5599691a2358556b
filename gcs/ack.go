package gcs

import (
	"sync"

	"github.com/temoto/mavgcs/helpers"
	"github.com/temoto/mavgcs/link"
)

// AckTracker matches COMMAND_ACK to pending commands.
// Ack carries only command enumerant, so two identical commands in flight
// cannot be told apart; oldest pending one is completed first.
type AckTracker struct {
	mu      sync.Mutex
	pending map[link.Command][]*helpers.Future
}

func (self *AckTracker) Expect(cmd link.Command) *helpers.Future {
	f := helpers.NewFuture()
	self.mu.Lock()
	if self.pending == nil {
		self.pending = make(map[link.Command][]*helpers.Future)
	}
	self.pending[cmd] = append(self.pending[cmd], f)
	self.mu.Unlock()
	return f
}

// Complete returns false when nobody waits for this ack.
// IN_PROGRESS is not final and does not complete waiter.
func (self *AckTracker) Complete(ack link.CommandAck) bool {
	self.mu.Lock()
	defer self.mu.Unlock()
	q := self.pending[ack.Command]
	if len(q) == 0 {
		return false
	}
	if ack.Result == link.ResultInProgress {
		return true
	}
	q[0].Complete(ack)
	if len(q) == 1 {
		delete(self.pending, ack.Command)
	} else {
		self.pending[ack.Command] = q[1:]
	}
	return true
}

// Forget removes waiter, e.g. after timeout.
func (self *AckTracker) Forget(cmd link.Command, f *helpers.Future) {
	self.mu.Lock()
	defer self.mu.Unlock()
	q := self.pending[cmd]
	for i, x := range q {
		if x == f {
			q = append(q[:i:i], q[i+1:]...)
			break
		}
	}
	if len(q) == 0 {
		delete(self.pending, cmd)
	} else {
		self.pending[cmd] = q
	}
}

func (self *AckTracker) CancelAll(reason error) {
	self.mu.Lock()
	defer self.mu.Unlock()
	for cmd, q := range self.pending {
		for _, f := range q {
			f.Cancel(reason)
		}
		delete(self.pending, cmd)
	}
}

func (self *AckTracker) Pending() int {
	self.mu.Lock()
	defer self.mu.Unlock()
	n := 0
	for _, q := range self.pending {
		n += len(q)
	}
	return n
}
