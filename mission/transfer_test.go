package mission

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/temoto/mavgcs/helpers"
	"github.com/temoto/mavgcs/link"
	"github.com/temoto/mavgcs/log2"
)

// testAutopilot plays vehicle side of mission protocol over MockConn.
type testAutopilot struct {
	sync.Mutex
	conn     *link.MockConn
	mission  []Item
	order    []uint16 // upload request order
	received map[uint16]Item
	requests []uint16
	acks     []link.MissionResult
	result   link.MissionResult
}

func newTestAutopilot(conn *link.MockConn, mission []Item) *testAutopilot {
	self := &testAutopilot{conn: conn, mission: mission, received: make(map[uint16]Item)}
	conn.OnSend(self.onSend)
	return self
}

func (self *testAutopilot) onSend(s link.Sent) {
	self.Lock()
	defer self.Unlock()
	switch m := s.Msg.(type) {
	case link.MissionRequestList:
		if self.order == nil {
			self.conn.Push(testVehicle, link.MissionCount{Target: s.From, Count: uint16(len(self.mission))})
		}
	case link.MissionRequest:
		self.requests = append(self.requests, m.Seq)
		self.conn.Push(testVehicle, self.mission[m.Seq].Message(s.From))
	case link.MissionAck:
		self.acks = append(self.acks, m.Result)
	case link.MissionCount:
		self.requestNext(s.From)
	case link.MissionItem:
		self.received[m.Seq] = ItemFromMessage(m)
		self.requestNext(s.From)
	}
}

func (self *testAutopilot) requestNext(gcs link.Header) {
	if len(self.order) == 0 {
		self.conn.Push(testVehicle, link.MissionAck{Target: gcs, Result: self.result})
		return
	}
	seq := self.order[0]
	self.order = self.order[1:]
	self.conn.Push(testVehicle, link.MissionRequest{Target: gcs, Seq: seq, Int: true})
}

func TestTransferDownload(t *testing.T) {
	t.Parallel()

	conn := link.NewMockConn()
	mission := testItems(7)
	ap := newTestAutopilot(conn, mission)
	poller, _ := helpers.NewTestPoller(time.Second)
	tr := &Transfer{Conn: conn, Poller: poller, Log: log2.NewTest(t, log2.LDebug)}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	items, err := tr.Run(ctx, NewDownload(testVehicle, DefaultPolicy()))
	require.NoError(t, err, errors.ErrorStack(err))
	assert.Equal(t, mission, items)
	assert.Equal(t, []uint16{0, 1, 2, 3, 4, 5, 6}, ap.requests)
	assert.Equal(t, []link.MissionResult{link.MissionAccepted}, ap.acks)
	sent := conn.SentMessages()
	assert.Equal(t, link.MissionRequestList{Target: testVehicle}, sent[0])
	assert.Len(t, sent, 1+7+1)
}

func TestTransferUpload(t *testing.T) {
	t.Parallel()

	conn := link.NewMockConn()
	mission := testItems(3)
	ap := newTestAutopilot(conn, nil)
	ap.order = []uint16{0, 2, 1}
	poller, _ := helpers.NewTestPoller(time.Second)
	tr := &Transfer{Conn: conn, Poller: poller, Log: log2.NewTest(t, log2.LDebug)}
	m, err := NewUpload(testVehicle, mission, DefaultPolicy())
	require.NoError(t, err)

	items, err := tr.Run(context.Background(), m)
	require.NoError(t, err, errors.ErrorStack(err))
	assert.Equal(t, mission, items)
	assert.Equal(t, StateComplete, m.State())
	require.Len(t, ap.received, 3)
	for _, it := range mission {
		assert.InDelta(t, it.X, ap.received[it.Seq].X, 1e-7)
	}
}

func TestTransferUploadRejected(t *testing.T) {
	t.Parallel()

	conn := link.NewMockConn()
	ap := newTestAutopilot(conn, nil)
	ap.order = []uint16{0}
	ap.result = link.MissionDenied
	poller, _ := helpers.NewTestPoller(time.Second)
	tr := &Transfer{Conn: conn, Poller: poller, Log: log2.NewTest(t, log2.LDebug)}
	m, err := NewUpload(testVehicle, testItems(2), DefaultPolicy())
	require.NoError(t, err)

	_, err = tr.Run(context.Background(), m)
	result, ok := IsRejected(err)
	assert.True(t, ok, "err=%v", err)
	assert.Equal(t, link.MissionDenied, result)
}

func TestTransferWouldBlockNoResend(t *testing.T) {
	t.Parallel()

	conn := link.NewMockConn()
	poller, clock := helpers.NewTestPoller(time.Second)
	sleep := poller.Sleep
	poller.Sleep = func(ctx context.Context, stop <-chan struct{}, d time.Duration) error {
		assert.Equal(t, time.Second, d)
		err := sleep(ctx, stop, d)
		if clock.Waits() == 5 {
			conn.Push(testVehicle, link.MissionCount{Count: 0})
		}
		return err
	}
	tr := &Transfer{Conn: conn, Poller: poller, Log: log2.NewTest(t, log2.LDebug)}

	items, err := tr.Run(context.Background(), NewDownload(testVehicle, DefaultPolicy()))
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.Equal(t, 5, clock.Waits())
	assert.Equal(t, 5, conn.WouldBlocks())
	assert.Equal(t, []link.Message{
		link.MissionRequestList{Target: testVehicle},
		link.MissionAck{Target: testVehicle, Result: link.MissionAccepted},
	}, conn.SentMessages())
}

func TestTransferStall(t *testing.T) {
	t.Parallel()

	conn := link.NewMockConn()
	poller, clock := helpers.NewTestPoller(time.Second)
	log := log2.NewTest(t, log2.LDebug)
	log.SetErrorFunc(func(error) {})
	tr := &Transfer{Conn: conn, Poller: poller, Log: log}

	_, err := tr.Run(context.Background(), NewDownload(testVehicle, DefaultPolicy()))
	assert.True(t, IsStall(err), "err=%v", err)
	sent := conn.SentMessages()
	assert.Len(t, sent, 1+DefaultMaxRetries)
	for _, m := range sent {
		assert.Equal(t, link.MissionRequestList{Target: testVehicle}, m)
	}
	assert.Equal(t, 24, clock.Waits())
}

func TestTransferErrors(t *testing.T) {
	t.Parallel()

	type Case struct {
		name  string
		setup func(*link.MockConn)
		check func(t testing.TB, err error)
	}
	fatal := fmt.Errorf("serial: device gone")
	cases := []Case{
		{"send", func(c *link.MockConn) { c.SetSendError(fatal) }, func(t testing.TB, err error) {
			assert.Equal(t, fatal, errors.Cause(err))
			assert.Contains(t, err.Error(), "send MISSION_REQUEST_LIST")
		}},
		{"receive", func(c *link.MockConn) { c.PushError(fatal) }, func(t testing.TB, err error) {
			assert.Equal(t, fatal, errors.Cause(err))
		}},
		{"closed", func(c *link.MockConn) {
			c.OnSend(func(link.Sent) { _ = c.Close() })
		}, func(t testing.TB, err error) {
			assert.Equal(t, link.ErrClosed, errors.Cause(err))
		}},
	}
	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()
			conn := link.NewMockConn()
			c.setup(conn)
			poller, _ := helpers.NewTestPoller(time.Second)
			log := log2.NewTest(t, log2.LDebug)
			log.SetErrorFunc(func(error) {})
			tr := &Transfer{Conn: conn, Poller: poller, Log: log}
			m := NewDownload(testVehicle, DefaultPolicy())
			_, err := tr.Run(context.Background(), m)
			require.Error(t, err)
			c.check(t, err)
			assert.Equal(t, StateFailed, m.State())
		})
	}
}

func TestTransferCancel(t *testing.T) {
	t.Parallel()

	conn := link.NewMockConn()
	ctx, cancel := context.WithCancel(context.Background())
	poller, _ := helpers.NewTestPoller(time.Second)
	poller.Sleep = func(ctx context.Context, stop <-chan struct{}, d time.Duration) error {
		cancel()
		return helpers.SleepContext(ctx, stop, d)
	}
	tr := &Transfer{Conn: conn, Poller: poller}
	_, err := tr.Run(ctx, NewDownload(testVehicle, DefaultPolicy()))
	assert.Equal(t, context.Canceled, errors.Cause(err))
}
