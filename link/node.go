package link

import (
	"context"
	"sync"

	"github.com/bluenviron/gomavlib/v3"
	"github.com/bluenviron/gomavlib/v3/pkg/dialects/common"
	"github.com/juju/errors"
	"github.com/temoto/mavgcs/log2"
)

// Node is Conn over gomavlib, which owns framing, CRC and transport.
type Node struct {
	Log *log2.Log

	node      *gomavlib.Node
	events    <-chan gomavlib.Event
	self      Header
	closeOnce sync.Once
}

var _ Conn = &Node{}

func Dial(log *log2.Log, address string, opt Options) (*Node, error) {
	ep, err := ParseEndpoint(address)
	if err != nil {
		return nil, errors.Trace(err)
	}
	self := opt.identity()
	node, err := gomavlib.NewNode(gomavlib.NodeConf{
		Endpoints:        []gomavlib.EndpointConf{ep},
		Dialect:          common.Dialect,
		OutVersion:       gomavlib.V2,
		OutSystemID:      self.SystemID,
		OutComponentID:   self.ComponentID,
		HeartbeatDisable: true, // see gcs.Heartbeat
	})
	if err != nil {
		return nil, errors.Annotatef(err, "link dial address=%s", address)
	}
	log.Debugf("link open address=%s self=%s", address, self)
	return &Node{
		Log:    log,
		node:   node,
		events: node.Events(),
		self:   self,
	}, nil
}

func (self *Node) Identity() Header { return self.self }

func (self *Node) Send(h Header, m Message) error {
	if !h.IsZero() && h != self.self {
		return errors.NotSupportedf("link send as %s, node identity %s", h, self.self)
	}
	wm, err := toWire(m)
	if err != nil {
		return errors.Trace(err)
	}
	if err = self.node.WriteMessageAll(wm); err != nil {
		return errors.Annotatef(err, "link send %s", Kind(m))
	}
	return nil
}

func (self *Node) SendDefault(m Message) error { return self.Send(Header{}, m) }

func (self *Node) Recv(ctx context.Context) (Header, Message, error) {
	for {
		select {
		case ev, ok := <-self.events:
			if !ok {
				return Header{}, nil, ErrClosed
			}
			if h, m, ok := self.event(ev); ok {
				return h, m, nil
			}
		case <-ctx.Done():
			return Header{}, nil, ctx.Err()
		}
	}
}

func (self *Node) TryRecv() (Header, Message, error) {
	for {
		select {
		case ev, ok := <-self.events:
			if !ok {
				return Header{}, nil, ErrClosed
			}
			if h, m, ok := self.event(ev); ok {
				return h, m, nil
			}
		default:
			return Header{}, nil, ErrWouldBlock
		}
	}
}

func (self *Node) Close() error {
	self.closeOnce.Do(self.node.Close)
	return nil
}

func (self *Node) event(ev gomavlib.Event) (Header, Message, bool) {
	switch e := ev.(type) {
	case *gomavlib.EventFrame:
		h := Header{SystemID: e.SystemID(), ComponentID: e.ComponentID()}
		return h, fromWire(e.Message()), true
	case *gomavlib.EventChannelOpen:
		self.Log.Debugf("link channel open %v", e.Channel)
	case *gomavlib.EventChannelClose:
		self.Log.Infof("link channel close %v", e.Channel)
	case *gomavlib.EventParseError:
		self.Log.Debugf("link parse error: %v", e.Error)
	}
	return Header{}, nil, false
}
