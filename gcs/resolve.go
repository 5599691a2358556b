package gcs

import (
	"context"
	"time"

	"github.com/juju/errors"
	"github.com/temoto/mavgcs/helpers"
	"github.com/temoto/mavgcs/link"
	"github.com/temoto/mavgcs/log2"
)

// Resolver discovers vehicle identity from first inbound message.
type Resolver struct {
	Conn   link.Conn
	Poller *helpers.Poller
	Log    *log2.Log
	// SkipGCS ignores heartbeats of other ground stations on shared bus.
	SkipGCS bool
	// Timeout=0 waits forever.
	Timeout time.Duration
}

func (self *Resolver) Resolve(ctx context.Context) (link.Header, error) {
	poller := self.Poller
	if poller == nil {
		poller = helpers.NewPoller(0)
	}
	if self.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, self.Timeout)
		defer cancel()
	}
	for {
		h, m, err := self.Conn.TryRecv()
		switch {
		case err == nil:
			if hb, ok := m.(link.Heartbeat); ok && self.SkipGCS && hb.Type == link.TypeGCS {
				self.Log.Debugf("resolve skip gcs=%s", h)
				continue
			}
			self.Log.Debugf("resolve vehicle=%s by %s", h, link.Kind(m))
			return h, nil
		case link.IsWouldBlock(err):
			if err = poller.Wait(ctx, nil); err != nil {
				if errors.Cause(err) == context.DeadlineExceeded {
					return link.Header{}, errors.Timeoutf("resolve vehicle identity after %v", self.Timeout)
				}
				return link.Header{}, errors.Trace(err)
			}
		default:
			return link.Header{}, errors.Annotate(err, "resolve vehicle identity")
		}
	}
}

// Resolve is Resolver with default poller.
func Resolve(ctx context.Context, conn link.Conn, log *log2.Log) (link.Header, error) {
	r := Resolver{Conn: conn, Log: log}
	return r.Resolve(ctx)
}
