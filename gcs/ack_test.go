package gcs

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/temoto/mavgcs/link"
)

func TestAckTrackerFIFO(t *testing.T) {
	t.Parallel()

	var at AckTracker
	assert.False(t, at.Complete(link.CommandAck{Command: link.CmdDoSetMode}))

	f1 := at.Expect(link.CmdComponentArmDisarm)
	f2 := at.Expect(link.CmdComponentArmDisarm)
	f3 := at.Expect(link.CmdDoSetMode)
	assert.Equal(t, 3, at.Pending())

	assert.True(t, at.Complete(link.CommandAck{Command: link.CmdComponentArmDisarm, Result: link.ResultInProgress}))
	assert.Equal(t, 3, at.Pending())

	assert.True(t, at.Complete(link.CommandAck{Command: link.CmdComponentArmDisarm, Result: link.ResultDenied}))
	assert.Equal(t, link.CommandAck{Command: link.CmdComponentArmDisarm, Result: link.ResultDenied}, f1.Result())
	assert.Nil(t, f2.Result())

	assert.True(t, at.Complete(link.CommandAck{Command: link.CmdComponentArmDisarm}))
	assert.Equal(t, link.CommandAck{Command: link.CmdComponentArmDisarm}, f2.Result())
	assert.False(t, at.Complete(link.CommandAck{Command: link.CmdComponentArmDisarm}))

	at.Forget(link.CmdDoSetMode, f3)
	assert.Equal(t, 0, at.Pending())
	assert.False(t, at.Complete(link.CommandAck{Command: link.CmdDoSetMode}))
}

func TestAckTrackerCancel(t *testing.T) {
	t.Parallel()

	var at AckTracker
	f := at.Expect(link.CmdNavLand)
	reason := fmt.Errorf("closed")
	at.CancelAll(reason)
	select {
	case <-f.Cancelled():
	default:
		t.Fatal("expected cancelled")
	}
	assert.Equal(t, reason, f.Result())
	assert.Equal(t, 0, at.Pending())
}
