package helpers

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"
)

const DefaultPollInterval = 1 * time.Second

// Poller is the only suspension point of link readers:
// non-blocking receive found no data -> Wait one fixed Interval, retry.
// Wait is cancellable by ctx and optional stop channel.
// Sleep and Now are replaceable in tests, see NewTestPoller.
type Poller struct {
	Interval time.Duration
	Sleep    func(ctx context.Context, stop <-chan struct{}, d time.Duration) error
	Now      func() time.Time
}

func NewPoller(interval time.Duration) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Poller{Interval: interval}
}

// Wait returns nil after Interval passed, ctx.Err() or ErrStopped on cancel.
func (self *Poller) Wait(ctx context.Context, stop <-chan struct{}) error {
	d := self.Interval
	if d <= 0 {
		d = DefaultPollInterval
	}
	if self.Sleep != nil {
		return self.Sleep(ctx, stop, d)
	}
	return SleepContext(ctx, stop, d)
}

func (self *Poller) Time() time.Time {
	if self.Now != nil {
		return self.Now()
	}
	return time.Now()
}

var ErrStopped = fmt.Errorf("stopped")

func SleepContext(ctx context.Context, stop <-chan struct{}, d time.Duration) error {
	tmr := time.NewTimer(d)
	defer tmr.Stop()
	select {
	case <-tmr.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-stop:
		return ErrStopped
	}
}

// FakeClock counts Wait calls and advances virtual time by Interval each time.
type FakeClock struct {
	now   int64
	waits int32
}

func (self *FakeClock) Waits() int { return int(atomic.LoadInt32(&self.waits)) }
func (self *FakeClock) Now() time.Time {
	return time.Unix(0, atomic.LoadInt64(&self.now))
}
func (self *FakeClock) Advance(d time.Duration) { atomic.AddInt64(&self.now, int64(d)) }

// NewTestPoller returns poller which never really sleeps, only yields.
func NewTestPoller(interval time.Duration) (*Poller, *FakeClock) {
	fc := &FakeClock{now: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC).UnixNano()}
	p := NewPoller(interval)
	p.Now = fc.Now
	p.Sleep = func(ctx context.Context, stop <-chan struct{}, d time.Duration) error {
		atomic.AddInt32(&fc.waits, 1)
		fc.Advance(d)
		// real short sleep lets other goroutines feed mock connection
		return SleepContext(ctx, stop, time.Millisecond)
	}
	return p, fc
}
