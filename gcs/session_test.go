package gcs

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/temoto/mavgcs/helpers"
	"github.com/temoto/mavgcs/link"
	"github.com/temoto/mavgcs/log2"
	"github.com/temoto/mavgcs/mission"
)

func newTestSession(t testing.TB, config Config) (*Session, *link.MockConn) {
	conn := link.NewMockConn()
	log := log2.NewTest(t, log2.LDebug)
	log.SetErrorFunc(func(error) {})
	s := NewSession(log, conn, testVehicle, config)
	s.Poller, _ = helpers.NewTestPoller(time.Second)
	return s, conn
}

func testConfig() Config {
	c := DefaultConfig()
	c.Warmup = 0
	c.AckTimeout = 2 * time.Second
	return c
}

func waitEvent(t testing.TB, s *Session, kind EventKind) Event {
	tmr := time.NewTimer(5 * time.Second)
	defer tmr.Stop()
	for {
		select {
		case e := <-s.Events():
			if e.Kind == kind {
				return e
			}
		case <-tmr.C:
			t.Fatalf("timeout waiting for event %s", kind)
			return Event{}
		}
	}
}

func TestSessionArmedEvents(t *testing.T) {
	t.Parallel()

	s, conn := newTestSession(t, testConfig())
	s.Start(context.Background())
	defer s.Close()

	conn.Push(testVehicle, link.Heartbeat{BaseMode: link.ModeFlagSafetyArmed | link.ModeFlagCustomModeEnabled, CustomMode: 4})
	e := waitEvent(t, s, EventHeartbeat)
	assert.True(t, e.Armed)
	assert.True(t, e.Changed)
	assert.Equal(t, ModeGuided, e.Mode)
	assert.Equal(t, testVehicle, e.From)

	conn.Push(testVehicle, link.Heartbeat{BaseMode: link.ModeFlagCustomModeEnabled, CustomMode: 4})
	e = waitEvent(t, s, EventHeartbeat)
	assert.False(t, e.Armed)
	assert.True(t, e.Changed)
	assert.False(t, s.Monitor().LastSeen().IsZero())
}

func TestSessionIgnoresOtherSystems(t *testing.T) {
	t.Parallel()

	s, conn := newTestSession(t, testConfig())
	var sunk int32
	s.OnEvent(func(e Event) { atomic.AddInt32(&sunk, 1) })
	s.Start(context.Background())
	defer s.Close()

	conn.Push(link.Header{SystemID: 255, ComponentID: 190}, link.Heartbeat{Type: link.TypeGCS, BaseMode: link.ModeFlagSafetyArmed})
	conn.Push(testVehicle, link.Attitude{Roll: 0.5})
	e := waitEvent(t, s, EventAttitude)
	assert.Equal(t, float32(0.5), e.Attitude.Roll)
	_, known := s.Monitor().Armed()
	assert.False(t, known)
	assert.Equal(t, int32(1), atomic.LoadInt32(&sunk))
}

func TestSessionCommand(t *testing.T) {
	t.Parallel()

	s, conn := newTestSession(t, testConfig())
	conn.OnSend(func(sent link.Sent) {
		if cmd, ok := sent.Msg.(link.CommandLong); ok {
			conn.Push(testVehicle, link.CommandAck{Command: cmd.Command, Result: link.ResultInProgress})
			result := link.ResultAccepted
			if cmd.Command == link.CmdComponentArmDisarm && cmd.Params[0] == 1 {
				result = link.ResultDenied
			}
			conn.Push(testVehicle, link.CommandAck{Command: cmd.Command, Result: result})
		}
	})
	s.Start(context.Background())
	defer s.Close()
	ctx := context.Background()

	ack, err := s.Command(ctx, link.CommandLong{Command: link.CmdNavReturnToLaunch})
	require.NoError(t, err)
	assert.Equal(t, link.CommandAck{Command: link.CmdNavReturnToLaunch, Result: link.ResultAccepted}, ack)

	err = s.Arm(ctx)
	require.Error(t, err)
	got, ok := IsResult(err)
	assert.True(t, ok)
	assert.Equal(t, link.ResultDenied, got.Result)
	assert.EqualError(t, err, "command COMPONENT_ARM_DISARM result=DENIED")

	require.NoError(t, s.Disarm(ctx))
	require.NoError(t, s.SetMode(ctx, ModeRTL))

	var setMode link.CommandLong
	for _, m := range conn.SentMessages() {
		if c, ok := m.(link.CommandLong); ok && c.Command == link.CmdDoSetMode {
			setMode = c
		}
	}
	assert.Equal(t, testVehicle, setMode.Target)
	assert.Equal(t, [7]float32{1, 6}, setMode.Params)
	assert.Equal(t, 0, s.acks.Pending())
}

func TestSessionCommandTimeout(t *testing.T) {
	t.Parallel()

	config := testConfig()
	config.AckTimeout = 20 * time.Millisecond
	s, _ := newTestSession(t, config)
	s.Start(context.Background())
	defer s.Close()

	_, err := s.Command(context.Background(), link.CommandLong{Command: link.CmdNavLand})
	require.Error(t, err)
	assert.True(t, errors.IsTimeout(err), errors.ErrorStack(err))
	assert.Equal(t, 0, s.acks.Pending())
}

func TestSessionCommandSendError(t *testing.T) {
	t.Parallel()

	s, conn := newTestSession(t, testConfig())
	fatal := fmt.Errorf("write: broken pipe")
	conn.SetSendError(fatal)
	_, err := s.Command(context.Background(), link.CommandLong{Command: link.CmdNavLand})
	assert.Equal(t, fatal, errors.Cause(err))
	assert.Equal(t, 0, s.acks.Pending())
}

func TestSessionCloseCancelsCommand(t *testing.T) {
	t.Parallel()

	config := testConfig()
	config.AckTimeout = time.Minute
	s, conn := newTestSession(t, config)
	s.Start(context.Background())
	conn.OnSend(func(link.Sent) { go s.Close() })
	_, err := s.Command(context.Background(), link.CommandLong{Command: link.CmdNavLand})
	require.Error(t, err)
	assert.Equal(t, link.ErrClosed, errors.Cause(err))
}

func TestSessionMissionDownload(t *testing.T) {
	t.Parallel()

	s, conn := newTestSession(t, testConfig())
	source := []mission.Item{
		{Seq: 0, Frame: link.FrameGlobalRelativeAltInt, Command: link.CmdNavTakeoff, Autocontinue: true, Z: 50},
		{Seq: 1, Frame: link.FrameGlobalRelativeAltInt, Command: link.CmdNavWaypoint, Autocontinue: true, X: -35.36, Y: 149.16, Z: 100},
		{Seq: 2, Frame: link.FrameGlobalRelativeAltInt, Command: link.CmdNavReturnToLaunch, Autocontinue: true},
	}
	conn.OnSend(func(sent link.Sent) {
		switch m := sent.Msg.(type) {
		case link.MissionRequestList:
			// unrelated traffic interleaves with protocol
			conn.Push(testVehicle, link.Heartbeat{})
			conn.Push(testVehicle, link.MissionCount{Target: sent.From, Count: uint16(len(source))})
		case link.MissionRequest:
			conn.Push(testVehicle, source[m.Seq].Message(sent.From))
		}
	})
	s.Start(context.Background())
	defer s.Close()
	require.NoError(t, s.Warmup(context.Background()))

	items, err := s.Mission(context.Background(), Intent{Direction: mission.Download})
	require.NoError(t, err, errors.ErrorStack(err))
	assert.Equal(t, source, items)

	var last Event
	for i := 0; i < 4; i++ {
		last = waitEvent(t, s, EventMission)
	}
	assert.Equal(t, mission.Download, last.Mission.Direction)
	assert.Equal(t, mission.StateComplete, last.Mission.State)
	assert.Equal(t, 3, last.Mission.Items)
	assert.Equal(t, 3, last.Mission.Expected)
}

func TestSessionMissionUpload(t *testing.T) {
	t.Parallel()

	s, conn := newTestSession(t, testConfig())
	order := []uint16{0, 2, 1}
	received := make(chan link.MissionItem, 3)
	next := func(gcs link.Header) {
		if len(order) == 0 {
			conn.Push(testVehicle, link.MissionAck{Target: gcs, Result: link.MissionAccepted})
			return
		}
		conn.Push(testVehicle, link.MissionRequest{Target: gcs, Seq: order[0], Int: true})
		order = order[1:]
	}
	conn.OnSend(func(sent link.Sent) {
		switch m := sent.Msg.(type) {
		case link.MissionCount:
			next(sent.From)
		case link.MissionItem:
			received <- m
			next(sent.From)
		}
	})
	s.Start(context.Background())
	defer s.Close()

	items := mission.Renumber([]mission.Item{
		{Frame: link.FrameGlobalRelativeAltInt, Command: link.CmdNavTakeoff, Z: 50},
		{Frame: link.FrameGlobalRelativeAltInt, Command: link.CmdNavWaypoint, X: -35.361, Y: 149.165, Z: 100},
		{Frame: link.FrameGlobalRelativeAltInt, Command: link.CmdNavWaypoint, X: -35.362, Y: 149.166, Z: 100},
	})
	out, err := s.Mission(context.Background(), Intent{Direction: mission.Upload, Items: items})
	require.NoError(t, err, errors.ErrorStack(err))
	assert.Equal(t, items, out)
	require.Len(t, received, 3)
	for _, seq := range []uint16{0, 2, 1} {
		assert.Equal(t, seq, (<-received).Seq)
	}
}

func TestSessionMissionInvalid(t *testing.T) {
	t.Parallel()

	s, _ := newTestSession(t, testConfig())
	_, err := s.Mission(context.Background(), Intent{})
	assert.True(t, errors.IsNotValid(err))
	_, err = s.Mission(context.Background(), Intent{Direction: mission.Upload, Items: []mission.Item{{Seq: 3}}})
	assert.True(t, errors.IsNotValid(err), "err=%v", err)
}

func TestSessionMissionCancel(t *testing.T) {
	t.Parallel()

	config := testConfig()
	config.Mission.StallTimeout = 0
	s, _ := newTestSession(t, config)
	s.Start(context.Background())
	defer s.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := s.Mission(ctx, Intent{Direction: mission.Download})
	require.Error(t, err)
	assert.Equal(t, context.DeadlineExceeded, errors.Cause(err))
}

func TestSessionMissionQueuedDeadline(t *testing.T) {
	t.Parallel()

	config := testConfig()
	config.Mission.StallTimeout = 0
	s, conn := newTestSession(t, config)
	s.Start(context.Background())
	defer s.Close()

	// vehicle stays silent, first transfer waits forever
	firstCtx, firstCancel := context.WithCancel(context.Background())
	defer firstCancel()
	firstErr := make(chan error, 1)
	go func() {
		_, err := s.Mission(firstCtx, Intent{Direction: mission.Download})
		firstErr <- err
	}()
	_, err := conn.WaitSent(context.Background(), 1)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	begin := time.Now()
	_, err = s.Mission(ctx, Intent{Direction: mission.Download})
	require.Error(t, err)
	assert.Equal(t, context.DeadlineExceeded, errors.Cause(err))
	assert.Less(t, int64(time.Since(begin)), int64(2*time.Second))

	select {
	case err := <-firstErr:
		t.Fatalf("first transfer ended early err=%v", err)
	default:
	}
	firstCancel()
	select {
	case err := <-firstErr:
		assert.Equal(t, context.Canceled, errors.Cause(err))
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for first transfer")
	}
}

func TestSessionStartAfterClose(t *testing.T) {
	t.Parallel()

	config := testConfig()
	config.Heartbeat = time.Millisecond
	s, conn := newTestSession(t, config)
	require.NoError(t, s.Close())
	s.Start(context.Background())
	<-s.Done()
	assert.Empty(t, conn.SentMessages())
}

func TestSessionMissionStall(t *testing.T) {
	t.Parallel()

	config := testConfig()
	config.Mission.MaxRetries = 1
	s, conn := newTestSession(t, config)
	s.Start(context.Background())
	defer s.Close()
	_, err := s.Mission(context.Background(), Intent{Direction: mission.Download})
	assert.True(t, mission.IsStall(err), "err=%v", err)
	n := 0
	for _, m := range conn.SentMessages() {
		if _, ok := m.(link.MissionRequestList); ok {
			n++
		}
	}
	assert.Equal(t, 2, n)
	assert.NoError(t, s.Err())
}

func TestSessionUnsolicitedMission(t *testing.T) {
	t.Parallel()

	s, conn := newTestSession(t, testConfig())
	s.Start(context.Background())
	defer s.Close()
	conn.Push(testVehicle, link.MissionCount{Count: 5})
	e := waitEvent(t, s, EventMission)
	assert.Equal(t, mission.Direction(0), e.Mission.Direction)
	assert.Equal(t, link.MissionCount{Count: 5}, e.Mission.Msg)
}

func TestSessionFatal(t *testing.T) {
	t.Parallel()

	s, conn := newTestSession(t, testConfig())
	var fatalSunk int32
	s.OnEvent(func(e Event) {
		if e.Kind == EventFatal {
			atomic.AddInt32(&fatalSunk, 1)
		}
	})
	s.Start(context.Background())
	fatal := fmt.Errorf("serial: EOF")
	conn.PushError(fatal)
	e := waitEvent(t, s, EventFatal)
	assert.Equal(t, fatal, errors.Cause(e.Err))
	<-s.Done()
	assert.Equal(t, fatal, errors.Cause(s.Err()))
	assert.Equal(t, int32(1), atomic.LoadInt32(&fatalSunk))

	_, err := s.Mission(context.Background(), Intent{Direction: mission.Download})
	assert.Equal(t, fatal, errors.Cause(err))
	assert.NoError(t, s.Close())
}

func TestSessionEventsOverflow(t *testing.T) {
	t.Parallel()

	config := testConfig()
	config.EventsBuffer = 2
	s, conn := newTestSession(t, config)
	var sunk int32
	s.OnEvent(func(Event) { atomic.AddInt32(&sunk, 1) })
	for i := 0; i < 5; i++ {
		conn.Push(testVehicle, link.Attitude{Yaw: float32(i)})
	}
	s.Start(context.Background())
	defer s.Close()
	require.Eventually(t, func() bool { return atomic.LoadInt32(&sunk) == 5 }, 5*time.Second, time.Millisecond)
	assert.Len(t, s.Events(), 2)
	e := <-s.Events()
	assert.Equal(t, float32(0), e.Attitude.Yaw)
}

func TestSessionHeartbeat(t *testing.T) {
	t.Parallel()

	config := testConfig()
	config.Heartbeat = time.Millisecond
	s, conn := newTestSession(t, config)
	s.Start(context.Background())
	sent, err := conn.WaitSent(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, gcsHeartbeat, sent[0].Msg)
	require.NoError(t, s.Close())
	assert.NoError(t, s.Err())
}

func TestOpen(t *testing.T) {
	t.Parallel()

	conn := link.NewMockConn()
	conn.Push(link.Header{SystemID: 255, ComponentID: 190}, link.Heartbeat{Type: link.TypeGCS})
	conn.Push(testVehicle, link.Heartbeat{Type: 2})
	config := testConfig()
	config.SkipGCS = true
	s, err := Open(context.Background(), log2.NewTest(t, log2.LDebug), conn, config)
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, testVehicle, s.Target())
}
