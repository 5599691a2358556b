package link

// Public API to easy create link stubs to test your code.
import (
	"context"
	"sync"
	"time"

	"github.com/juju/errors"
)

type Sent struct {
	From Header
	Msg  Message
}

type mockIn struct {
	h   Header
	m   Message
	err error
}

// MockConn is in-memory Conn.
// Inbound messages are queued by Push, outbound recorded in Sent.
// OnSend hook lets test play vehicle side of protocol.
type MockConn struct {
	Self Header

	mu      sync.Mutex
	in      []mockIn
	sent    []Sent
	sendErr error
	onSend  func(Sent)
	closed  bool
	notify  chan struct{}
	tries   int
}

var _ Conn = &MockConn{}

func NewMockConn() *MockConn {
	return &MockConn{
		Self:   Header{SystemID: DefaultSystemID, ComponentID: DefaultComponentID},
		notify: make(chan struct{}, 1),
	}
}

func (self *MockConn) Push(h Header, m Message) {
	self.mu.Lock()
	self.in = append(self.in, mockIn{h: h, m: m})
	self.mu.Unlock()
	self.wake()
}

// PushError makes one receive call return err.
func (self *MockConn) PushError(err error) {
	self.mu.Lock()
	self.in = append(self.in, mockIn{err: err})
	self.mu.Unlock()
	self.wake()
}

func (self *MockConn) SetSendError(err error) {
	self.mu.Lock()
	self.sendErr = err
	self.mu.Unlock()
}

// OnSend f is called outside lock, may Push replies.
func (self *MockConn) OnSend(f func(Sent)) {
	self.mu.Lock()
	self.onSend = f
	self.mu.Unlock()
}

func (self *MockConn) Sent() []Sent {
	self.mu.Lock()
	defer self.mu.Unlock()
	out := make([]Sent, len(self.sent))
	copy(out, self.sent)
	return out
}

// SentMessages returns only messages, in send order.
func (self *MockConn) SentMessages() []Message {
	sent := self.Sent()
	out := make([]Message, len(sent))
	for i, s := range sent {
		out[i] = s.Msg
	}
	return out
}

// WouldBlocks counts TryRecv calls that found empty queue.
func (self *MockConn) WouldBlocks() int {
	self.mu.Lock()
	defer self.mu.Unlock()
	return self.tries
}

// WaitSent blocks until at least n messages were sent.
func (self *MockConn) WaitSent(ctx context.Context, n int) ([]Sent, error) {
	for {
		sent := self.Sent()
		if len(sent) >= n {
			return sent, nil
		}
		select {
		case <-ctx.Done():
			return sent, errors.Annotatef(ctx.Err(), "mock sent=%d expected=%d", len(sent), n)
		case <-time.After(time.Millisecond):
		}
	}
}

func (self *MockConn) Send(h Header, m Message) error {
	self.mu.Lock()
	if self.closed {
		self.mu.Unlock()
		return ErrClosed
	}
	if err := self.sendErr; err != nil {
		self.mu.Unlock()
		return err
	}
	if h.IsZero() {
		h = self.Self
	}
	s := Sent{From: h, Msg: m}
	self.sent = append(self.sent, s)
	f := self.onSend
	self.mu.Unlock()
	if f != nil {
		f(s)
	}
	return nil
}

func (self *MockConn) SendDefault(m Message) error { return self.Send(Header{}, m) }

func (self *MockConn) TryRecv() (Header, Message, error) {
	self.mu.Lock()
	defer self.mu.Unlock()
	if len(self.in) == 0 {
		if self.closed {
			return Header{}, nil, ErrClosed
		}
		self.tries++
		return Header{}, nil, ErrWouldBlock
	}
	x := self.in[0]
	self.in = self.in[1:]
	return x.h, x.m, x.err
}

func (self *MockConn) Recv(ctx context.Context) (Header, Message, error) {
	for {
		h, m, err := self.TryRecv()
		if !IsWouldBlock(err) {
			return h, m, err
		}
		select {
		case <-self.notify:
		case <-ctx.Done():
			return Header{}, nil, ctx.Err()
		}
	}
}

func (self *MockConn) Close() error {
	self.mu.Lock()
	self.closed = true
	self.mu.Unlock()
	self.wake()
	return nil
}

func (self *MockConn) wake() {
	select {
	case self.notify <- struct{}{}:
	default:
	}
}
