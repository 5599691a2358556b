package mission

import (
	"context"

	"github.com/juju/errors"
	"github.com/temoto/mavgcs/helpers"
	"github.com/temoto/mavgcs/link"
	"github.com/temoto/mavgcs/log2"
)

// Transfer drives Machine inline on a link nobody else reads.
type Transfer struct {
	Conn   link.Conn
	Poller *helpers.Poller
	Log    *log2.Log
	// OnMessage receives non-mission traffic, optional.
	OnMessage func(link.Header, link.Message)
}

// Run blocks until machine is done, link fails or ctx is cancelled.
func (self *Transfer) Run(ctx context.Context, m *Machine) ([]Item, error) {
	poller := self.Poller
	if poller == nil {
		poller = helpers.NewPoller(0)
	}
	if m.Log == nil {
		m.Log = self.Log
	}
	self.Log.Debugf("mission %s target=%s start", m.Direction(), m.Target())
	if err := self.send(m, m.Start(poller.Time())); err != nil {
		return nil, err
	}
	for !m.Done() {
		h, msg, err := self.Conn.TryRecv()
		switch {
		case err == nil:
			if link.IsMission(msg) {
				if err = self.send(m, m.Handle(poller.Time(), h, msg)); err != nil {
					return nil, err
				}
			} else if self.OnMessage != nil {
				self.OnMessage(h, msg)
			}
		case link.IsWouldBlock(err):
			if err = poller.Wait(ctx, nil); err != nil {
				m.Abort(err)
				return nil, errors.Trace(err)
			}
		default:
			err = errors.Annotatef(err, "mission %s receive", m.Direction())
			m.Abort(err)
			return nil, err
		}
		if err = self.send(m, m.Tick(poller.Time())); err != nil {
			return nil, err
		}
	}
	if err := m.Err(); err != nil {
		return nil, err
	}
	self.Log.Debugf("mission %s target=%s complete items=%d", m.Direction(), m.Target(), len(m.items))
	return m.Items(), nil
}

func (self *Transfer) send(m *Machine, out []link.Message) error {
	for _, msg := range out {
		if err := self.Conn.SendDefault(msg); err != nil {
			err = errors.Annotatef(err, "mission %s send %s", m.Direction(), link.Kind(msg))
			m.Abort(err)
			return err
		}
	}
	return nil
}
