// Package tele mirrors vehicle state and events into MQTT broker
// and accepts remote commands for the attached session.
//
// Topics, relative to tele_config.Config.Prefix():
// - state    retained VehicleState, will message sets online=false
// - event    heartbeat changes, command acks, finished transfers, params, errors
// - r        command responses
// - c        commands, subscribed
package tele

import (
	"context"
	"sync"
	"time"

	"github.com/golang/protobuf/proto"
	"github.com/juju/errors"
	"github.com/temoto/alive/v2"
	"github.com/temoto/mavgcs/gcs"
	"github.com/temoto/mavgcs/helpers"
	"github.com/temoto/mavgcs/log2"
	tele_config "github.com/temoto/mavgcs/tele/config"
	"github.com/temoto/spq"
)

const (
	defaultStateInterval  = 1 * time.Minute
	defaultNetworkTimeout = 30 * time.Second
	stateRetryInterval    = 17 * time.Second
)

// Tele contract:
// - Init() fails only with invalid config or broken queue, network issues ignored
// - Event/Error/CommandReply block at most for disk write
//   network may be slow or absent, messages will be delivered in background
// - Close() does not wait for delivery, queued messages survive restart
// - Event/Response messages delivered at least once
// - State messages may be lost, broker retains latest
type Tele struct { //nolint:maligned
	enabled       bool
	log           *log2.Log
	transport     Transporter
	q             *spq.Queue
	alive         *alive.Alive
	cancel        context.CancelFunc
	closeOnce     sync.Once
	stateCh       chan struct{}
	stateInterval time.Duration
	retry         helpers.Backoff

	mu      sync.Mutex
	state   VehicleState
	session *gcs.Session

	stat Stat
}

func (self *Tele) Init(ctx context.Context, log *log2.Log, teleConfig tele_config.Config) error {
	self.enabled = teleConfig.Enabled
	self.log = log.Clone(log2.LInfo)
	// errors mirrored into tele must not come back through hook
	self.log.SetErrorFunc(nil)
	if teleConfig.LogDebug {
		self.log.SetLevel(log2.LDebug)
	}
	if !self.enabled {
		return nil
	}
	if teleConfig.PersistPath == "" {
		return errors.NotValidf("tele persist_path=empty")
	}

	self.alive = alive.NewAlive()
	self.stateCh = make(chan struct{}, 1)
	self.stateInterval = helpers.IntSecondDefault(teleConfig.StateIntervalSec, defaultStateInterval)
	self.retry = helpers.Backoff{
		Min: 1 * time.Second,
		Max: helpers.IntSecondDefault(teleConfig.NetworkTimeoutSec, defaultNetworkTimeout),
		K:   2,
	}

	var err error
	self.q, err = spq.Open(teleConfig.PersistPath)
	if err != nil {
		return errors.Annotate(err, "tele queue")
	}

	willPayload, err := proto.Marshal((&VehicleState{}).Struct())
	if err != nil {
		_ = self.q.Close()
		return errors.Annotate(err, "tele will")
	}
	// test code sets .transport
	if self.transport == nil { // production path
		self.transport = &transportMqtt{}
	}
	ctx, self.cancel = context.WithCancel(ctx)
	onCommand := func(payload []byte) bool { return self.onCommandMessage(ctx, payload) }
	if err := self.transport.Init(ctx, self.log, teleConfig, onCommand, willPayload); err != nil {
		self.cancel()
		_ = self.q.Close()
		return errors.Annotate(err, "tele transport")
	}

	self.alive.Add(2)
	go self.qworker()
	go self.stateWorker()
	self.notifyState()
	return nil
}

// Close stops workers and running commands, undelivered messages stay in queue.
func (self *Tele) Close() {
	if !self.enabled {
		return
	}
	self.closeOnce.Do(func() {
		self.alive.Stop()
		self.cancel()
		if err := self.q.Close(); err != nil {
			self.log.Errorf("tele queue close err=%v", err)
		}
		self.alive.Wait()
		self.transport.Close()
	})
}

// Attach subscribes to session events and routes remote commands to it.
func (self *Tele) Attach(s *gcs.Session) {
	if !self.enabled {
		return
	}
	self.mu.Lock()
	self.session = s
	self.mu.Unlock()
	s.OnEvent(self.onEvent)
}

func (self *Tele) attached() *gcs.Session {
	self.mu.Lock()
	defer self.mu.Unlock()
	return self.session
}

func (self *Tele) State() VehicleState {
	self.mu.Lock()
	defer self.mu.Unlock()
	return self.state
}

// Called from session background task, must not block on network.
func (self *Tele) onEvent(e gcs.Event) {
	self.mu.Lock()
	changed := self.state.observe(e)
	self.mu.Unlock()
	if changed {
		self.notifyState()
	}

	switch e.Kind {
	case gcs.EventHeartbeat:
		if !e.Changed {
			return
		}
	case gcs.EventPosition, gcs.EventAttitude:
		// sent with state
		return
	case gcs.EventMission:
		if !e.Mission.State.Terminal() {
			return
		}
	}
	self.Event(e)
}

func (self *Tele) notifyState() {
	select {
	case self.stateCh <- struct{}{}:
	default: // already pending
	}
}

func (self *Tele) stateWorker() {
	defer self.alive.Done()
	var sent bool
	tmrRegular := time.NewTicker(self.stateInterval)
	defer tmrRegular.Stop()
	tmrRetry := time.NewTicker(stateRetryInterval)
	defer tmrRetry.Stop()
	stopch := self.alive.StopChan()
	for {
		select {
		case <-self.stateCh:
			sent = self.sendState()

		case <-tmrRegular.C:
			sent = self.sendState()

		case <-tmrRetry.C:
			if !sent {
				sent = self.sendState()
			}

		case <-stopch:
			return
		}
	}
}

func (self *Tele) sendState() bool {
	self.mu.Lock()
	s := self.state.Struct()
	self.mu.Unlock()
	self.stat.Lock()
	s.Fields["stat"] = pbValue(self.stat.Locked_Struct())
	self.stat.Unlock()

	payload, err := proto.Marshal(s)
	if err != nil {
		self.log.Errorf("CRITICAL state Marshal err=%v", err)
		return true // retry will not help
	}
	return self.transport.SendState(payload)
}

// denote value type in persistent queue bytes form
const (
	qEvent    byte = 1
	qResponse byte = 2
)

func (self *Tele) qworker() {
	defer self.alive.Done()
	stopch := self.alive.StopChan()
	for {
		box, err := self.q.Peek()
		switch err {
		case nil:
			// success path
			b := box.Bytes()
			var del bool
			del, err = self.qhandle(b)
			if err != nil {
				self.log.Errorf("tele qhandle b=%x err=%v", b, err)
			}
			if del {
				self.retry.Reset()
				if err = self.q.Delete(box); err != nil && self.alive.IsRunning() {
					self.log.Errorf("tele qhandle Delete b=%x err=%v", b, err)
				}
				continue
			}

			self.stat.Lock()
			self.stat.Retries++
			self.stat.Unlock()
			if err = self.q.DeletePush(box); err != nil && self.alive.IsRunning() {
				self.log.Errorf("tele qhandle DeletePush b=%x err=%v", b, err)
			}
			if helpers.SleepContext(context.Background(), stopch, self.retry.DelayAfter(false)) != nil {
				return
			}

		case spq.ErrClosed:
			if self.alive.IsRunning() {
				self.log.Errorf("CRITICAL tele spq closed unexpectedly")
			}
			return

		default:
			self.log.Errorf("CRITICAL tele spq err=%v", err)
			// here will go yet unhandled shit like disk full
			if helpers.SleepContext(context.Background(), stopch, self.retry.DelayAfter(false)) != nil {
				return
			}
		}
	}
}

func (self *Tele) qhandle(b []byte) (bool, error) {
	if len(b) == 0 {
		self.log.Errorf("tele spq peek=empty")
		// what else can we do?
		return true, nil
	}

	var ok bool
	switch b[0] {
	case qEvent:
		ok = self.transport.SendEvent(b[1:])

	case qResponse:
		ok = self.transport.SendResponse(b[1:])

	default:
		err := errors.Errorf("unknown kind=%d", b[0])
		return true, err
	}
	if ok {
		self.stat.Lock()
		self.stat.Delivered++
		self.stat.Unlock()
	}
	return ok, nil
}

func (self *Tele) qpushTagProto(tag byte, pb proto.Message) error {
	buf := proto.NewBuffer(make([]byte, 0, 1024))
	if err := buf.EncodeVarint(uint64(tag)); err != nil {
		return err
	}
	if err := buf.Marshal(pb); err != nil {
		return err
	}
	return self.q.Push(buf.Bytes())
}
