package gcs

import (
	"context"

	"github.com/juju/errors"
	"github.com/temoto/mavgcs/link"
)

// ResultError is final non-accepted command acknowledgement.
type ResultError struct {
	Ack link.CommandAck
}

func (self ResultError) Error() string {
	return "command " + self.Ack.Command.String() + " result=" + self.Ack.Result.String()
}

// Command sends COMMAND_LONG and waits for correlated ack up to AckTimeout.
// Zero Target means session vehicle.
func (self *Session) Command(ctx context.Context, cmd link.CommandLong) (link.CommandAck, error) {
	if cmd.Target.IsZero() {
		cmd.Target = self.target
	}
	f := self.acks.Expect(cmd.Command)
	if err := self.conn.SendDefault(cmd); err != nil {
		self.acks.Forget(cmd.Command, f)
		return link.CommandAck{}, errors.Annotatef(err, "command %s", cmd.Command)
	}
	self.Log.Debugf("command %s sent to %s", cmd.Command, cmd.Target)

	ctx, cancel := context.WithTimeout(ctx, self.config.AckTimeout)
	defer cancel()
	v, ok := f.Wait(ctx)
	if ok {
		return v.(link.CommandAck), nil
	}
	self.acks.Forget(cmd.Command, f)
	if v == context.DeadlineExceeded {
		return link.CommandAck{}, errors.Timeoutf("command %s ack", cmd.Command)
	}
	err, _ := v.(error)
	return link.CommandAck{}, errors.Annotatef(err, "command %s", cmd.Command)
}

// CommandAccepted is Command which also fails on non-accepted result.
func (self *Session) CommandAccepted(ctx context.Context, cmd link.CommandLong) error {
	ack, err := self.Command(ctx, cmd)
	if err != nil {
		return err
	}
	if ack.Result != link.ResultAccepted {
		return errors.Trace(ResultError{Ack: ack})
	}
	return nil
}

func (self *Session) Arm(ctx context.Context) error {
	return self.CommandAccepted(ctx, link.CommandLong{Command: link.CmdComponentArmDisarm, Params: [7]float32{1}})
}

func (self *Session) Disarm(ctx context.Context) error {
	return self.CommandAccepted(ctx, link.CommandLong{Command: link.CmdComponentArmDisarm, Params: [7]float32{0}})
}

func (self *Session) SetMode(ctx context.Context, mode FlightMode) error {
	return self.CommandAccepted(ctx, link.CommandLong{
		Command: link.CmdDoSetMode,
		Params:  [7]float32{float32(link.ModeFlagCustomModeEnabled), float32(mode)},
	})
}

// IsResult reports command acknowledgement if err is ResultError.
func IsResult(err error) (link.CommandAck, bool) {
	if r, ok := errors.Cause(err).(ResultError); ok {
		return r.Ack, true
	}
	return link.CommandAck{}, false
}
