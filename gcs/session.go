package gcs

import (
	"context"
	"sync"
	"time"

	"github.com/juju/errors"
	"github.com/temoto/alive/v2"
	"github.com/temoto/mavgcs/helpers"
	"github.com/temoto/mavgcs/link"
	"github.com/temoto/mavgcs/log2"
	"github.com/temoto/mavgcs/mission"
)

const (
	DefaultWarmup       = 2 * time.Second
	DefaultAckTimeout   = 5 * time.Second
	DefaultEventsBuffer = 64
)

type Config struct {
	PollInterval time.Duration
	Warmup       time.Duration
	AckTimeout   time.Duration
	EventsBuffer int
	// Heartbeat>0 sends GCS heartbeat with this interval for session lifetime.
	Heartbeat      time.Duration
	SkipGCS        bool
	ResolveTimeout time.Duration
	Mission        mission.Policy
}

func DefaultConfig() Config {
	return Config{
		PollInterval: helpers.DefaultPollInterval,
		Warmup:       DefaultWarmup,
		AckTimeout:   DefaultAckTimeout,
		EventsBuffer: DefaultEventsBuffer,
		Mission:      mission.DefaultPolicy(),
	}
}

// Session owns read side of link to one vehicle.
// Background task classifies traffic and runs mission transfers,
// foreground enqueues intents and sends commands.
type Session struct {
	Log    *log2.Log
	Poller *helpers.Poller

	conn    link.Conn
	target  link.Header
	config  Config
	alive   *alive.Alive
	monitor Monitor
	acks    AckTracker
	params  paramWaiters
	events  chan Event
	intents chan *intent
	err     helpers.AtomicError

	sinkMu sync.Mutex
	sinks  []func(Event)

	// owned by run goroutine
	active *intent
	queue  []*intent
}

// Intent asks background task to transfer mission.
type Intent struct {
	Direction mission.Direction
	Items     []mission.Item
	// Policy nil means session config.
	Policy *mission.Policy
}

type intent struct {
	ctx     context.Context
	machine *mission.Machine
	result  *helpers.Future
}

type missionResult struct {
	items []mission.Item
	err   error
}

// Open resolves vehicle identity and starts session.
func Open(ctx context.Context, log *log2.Log, conn link.Conn, config Config) (*Session, error) {
	s := NewSession(log, conn, link.Header{}, config)
	r := Resolver{Conn: conn, Poller: s.Poller, Log: log, SkipGCS: config.SkipGCS, Timeout: config.ResolveTimeout}
	target, err := r.Resolve(ctx)
	if err != nil {
		return nil, errors.Trace(err)
	}
	s.target = target
	log.Infof("session vehicle=%s", target)
	s.Start(ctx)
	return s, nil
}

// NewSession with known target, call Start to run background task.
func NewSession(log *log2.Log, conn link.Conn, target link.Header, config Config) *Session {
	if config.AckTimeout == 0 {
		config.AckTimeout = DefaultAckTimeout
	}
	if config.EventsBuffer <= 0 {
		config.EventsBuffer = DefaultEventsBuffer
	}
	s := &Session{
		Log:     log,
		Poller:  helpers.NewPoller(config.PollInterval),
		conn:    conn,
		target:  target,
		config:  config,
		alive:   alive.NewAlive(),
		events:  make(chan Event, config.EventsBuffer),
		intents: make(chan *intent, 8),
	}
	s.monitor.Log = log
	return s
}

// Start is no-op after Close.
func (self *Session) Start(ctx context.Context) {
	if !self.alive.Add(1) {
		return
	}
	go self.run(ctx)
	if self.config.Heartbeat > 0 && self.alive.Add(1) {
		go self.heartbeat(ctx)
	}
}

func (self *Session) Target() link.Header { return self.target }
func (self *Session) Conn() link.Conn     { return self.conn }
func (self *Session) Monitor() *Monitor   { return &self.monitor }

// Events channel is never closed; use Done to detect session end.
// Overflowing events are dropped.
func (self *Session) Events() <-chan Event { return self.events }

// OnEvent f is called synchronously from background task, must not block.
func (self *Session) OnEvent(f func(Event)) {
	self.sinkMu.Lock()
	self.sinks = append(self.sinks, f)
	self.sinkMu.Unlock()
}

func (self *Session) Done() <-chan struct{} { return self.alive.WaitChan() }

// Err returns fatal error which ended background task.
func (self *Session) Err() error {
	err, _ := self.err.Load()
	return err
}

// Close stops background task and waits for it. Link is not closed.
func (self *Session) Close() error {
	self.alive.Stop()
	self.alive.Wait()
	return nil
}

// Warmup waits configured delay before first intent.
func (self *Session) Warmup(ctx context.Context) error {
	if self.config.Warmup <= 0 {
		return nil
	}
	err := helpers.SleepContext(ctx, self.alive.StopChan(), self.config.Warmup)
	if err == helpers.ErrStopped {
		return self.closedErr()
	}
	return errors.Trace(err)
}

// Mission runs transfer in background task and waits for result.
func (self *Session) Mission(ctx context.Context, in Intent) ([]mission.Item, error) {
	policy := self.config.Mission
	if in.Policy != nil {
		policy = *in.Policy
	}
	var m *mission.Machine
	switch in.Direction {
	case mission.Download:
		m = mission.NewDownload(self.target, policy)
	case mission.Upload:
		var err error
		if m, err = mission.NewUpload(self.target, in.Items, policy); err != nil {
			return nil, errors.Trace(err)
		}
	default:
		return nil, errors.NotValidf("mission direction=%s", in.Direction)
	}
	m.Log = self.Log

	it := &intent{ctx: ctx, machine: m, result: helpers.NewFuture()}
	select {
	case self.intents <- it:
	case <-self.alive.StopChan():
		return nil, self.closedErr()
	case <-ctx.Done():
		return nil, errors.Trace(ctx.Err())
	}
	select {
	case <-it.result.Completed():
	case <-ctx.Done():
		// background task skips intents with done ctx
		return nil, errors.Trace(ctx.Err())
	case <-self.alive.WaitChan():
		// enqueued after background task exit
		select {
		case <-it.result.Completed():
		default:
			return nil, self.closedErr()
		}
	}
	r := it.result.Result().(missionResult)
	return r.items, r.err
}

func (self *Session) closedErr() error {
	if err := self.Err(); err != nil {
		return err
	}
	return errors.Annotate(link.ErrClosed, "session")
}

func (self *Session) run(ctx context.Context) {
	defer self.alive.Done()
	defer self.cleanup()
	stopch := self.alive.StopChan()
	for {
		self.accept()
		h, m, err := self.conn.TryRecv()
		switch {
		case err == nil:
			if err = self.dispatch(h, m); err != nil {
				self.fatal(err)
				return
			}
		case link.IsWouldBlock(err):
			if err = self.Poller.Wait(ctx, stopch); err != nil {
				if err != helpers.ErrStopped {
					self.err.StoreOnce(errors.Annotate(err, "session"))
				}
				return
			}
		default:
			self.fatal(errors.Annotate(err, "session receive"))
			return
		}
		if err = self.tick(); err != nil {
			self.fatal(err)
			return
		}
	}
}

// accept takes queued intents and starts next transfer if idle.
func (self *Session) accept() {
loop:
	for {
		select {
		case it := <-self.intents:
			self.queue = append(self.queue, it)
		default:
			break loop
		}
	}
	for self.active == nil && len(self.queue) > 0 {
		it := self.queue[0]
		self.queue = self.queue[1:]
		if err := it.ctx.Err(); err != nil {
			it.result.Complete(missionResult{err: errors.Trace(err)})
			continue
		}
		self.active = it
		self.Log.Debugf("session mission %s start", it.machine.Direction())
		if err := self.send(it.machine.Start(self.Poller.Time())); err != nil {
			self.finish(err)
		}
	}
}

func (self *Session) dispatch(h link.Header, m link.Message) error {
	if h.SystemID != self.target.SystemID {
		self.Log.Debugf("session ignore %s from=%s", link.Kind(m), h)
		return nil
	}
	now := self.Poller.Time()
	e, ok := self.monitor.Observe(now, h, m)
	if !ok {
		return nil
	}
	switch x := m.(type) {
	case link.CommandAck:
		if !self.acks.Complete(x) {
			self.Log.Debugf("session unsolicited ack command=%s result=%s", x.Command, x.Result)
		}
	case link.ParamValue:
		self.params.deliver(x)
	}
	if e.Kind == EventMission {
		if it := self.active; it != nil {
			mm := it.machine
			if err := self.send(mm.Handle(now, h, m)); err != nil {
				return err
			}
			e.Mission = MissionReport{
				Direction: mm.Direction(),
				State:     mm.State(),
				Expected:  mm.Expected(),
				Items:     len(mm.Items()),
				Msg:       m,
			}
			if mm.Done() {
				self.finish(nil)
			}
		} else {
			self.Log.Infof("session unsolicited %s", link.Kind(m))
		}
	}
	self.emit(e)
	return nil
}

func (self *Session) tick() error {
	it := self.active
	if it == nil {
		return nil
	}
	if err := it.ctx.Err(); err != nil {
		it.machine.Abort(errors.Trace(err))
		self.finish(nil)
		return nil
	}
	if err := self.send(it.machine.Tick(self.Poller.Time())); err != nil {
		return err
	}
	if it.machine.Done() {
		self.finish(nil)
	}
	return nil
}

// send failure is fatal for session and active transfer.
func (self *Session) send(out []link.Message) error {
	for _, m := range out {
		if err := self.conn.SendDefault(m); err != nil {
			err = errors.Annotatef(err, "session send %s", link.Kind(m))
			if self.active != nil {
				self.active.machine.Abort(err)
			}
			return err
		}
	}
	return nil
}

func (self *Session) finish(err error) {
	it := self.active
	if it == nil {
		return
	}
	self.active = nil
	m := it.machine
	if err != nil {
		m.Abort(err)
	}
	if err = m.Err(); err != nil {
		it.result.Complete(missionResult{err: err})
		return
	}
	self.Log.Debugf("session mission %s complete", m.Direction())
	it.result.Complete(missionResult{items: m.Items()})
}

func (self *Session) emit(e Event) {
	self.sinkMu.Lock()
	sinks := self.sinks
	self.sinkMu.Unlock()
	for _, f := range sinks {
		f(e)
	}
	select {
	case self.events <- e:
	default:
		self.Log.Errorf("CRITICAL session events chan overflow, drop %s", e.Kind)
	}
}

func (self *Session) fatal(err error) {
	if _, set := self.err.StoreOnce(err); set {
		return
	}
	self.Log.Errorf("session fatal: %s", errors.ErrorStack(err))
	self.emit(Event{Kind: EventFatal, Time: self.Poller.Time(), From: self.target, Err: err})
	self.alive.Stop()
}

func (self *Session) cleanup() {
	self.alive.Stop()
	reason := self.closedErr()
	if self.active != nil {
		self.finish(reason)
	}
	for _, it := range self.queue {
		it.result.Complete(missionResult{err: reason})
	}
	self.queue = nil
loop:
	for {
		select {
		case it := <-self.intents:
			it.result.Complete(missionResult{err: reason})
		default:
			break loop
		}
	}
	self.acks.CancelAll(reason)
	self.params.cancelAll(reason)
}

func (self *Session) heartbeat(ctx context.Context) {
	defer self.alive.Done()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-self.alive.StopChan():
			cancel()
		case <-ctx.Done():
		}
	}()
	err := Heartbeat(ctx, self.Log, self.conn, self.config.Heartbeat)
	if err != nil && ctx.Err() == nil {
		self.fatal(err)
	}
}
