package link

import (
	"context"
	"fmt"

	"github.com/juju/errors"
)

// Header identifies message source or destination.
type Header struct {
	SystemID    uint8
	ComponentID uint8
}

func (self Header) IsZero() bool { return self.SystemID == 0 && self.ComponentID == 0 }

func (self Header) String() string { return fmt.Sprintf("%d:%d", self.SystemID, self.ComponentID) }

var (
	// ErrWouldBlock from TryRecv means no message is available now.
	ErrWouldBlock = errors.New("would block")
	ErrClosed     = errors.New("link closed")
)

func IsWouldBlock(err error) bool { return errors.Cause(err) == ErrWouldBlock }

// Conn is message level link to vehicle.
// Single message Send must be safe for concurrent use.
// Receive side has single owner.
type Conn interface {
	// Send h is sender identity, zero means connection default.
	Send(h Header, m Message) error
	SendDefault(m Message) error
	Recv(ctx context.Context) (Header, Message, error)
	// TryRecv returns ErrWouldBlock when nothing is buffered.
	TryRecv() (Header, Message, error)
	Close() error
}
