package link

import (
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCommand(t *testing.T) {
	t.Parallel()

	cases := []struct {
		input  string
		expect Command
		err    bool
	}{
		{"takeoff", CmdNavTakeoff, false},
		{"NAV_WAYPOINT", CmdNavWaypoint, false},
		{"mav_cmd_nav_land", CmdNavLand, false},
		{" rtl ", CmdNavReturnToLaunch, false},
		{"400", CmdComponentArmDisarm, false},
		{"31000", Command(31000), false},
		{"", 0, true},
		{"fly", 0, true},
		{"70000", 0, true},
	}
	for _, c := range cases {
		c := c
		t.Run(c.input, func(t *testing.T) {
			t.Parallel()
			cmd, err := ParseCommand(c.input)
			if c.err {
				require.Error(t, err)
				assert.True(t, errors.IsNotValid(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, c.expect, cmd)
		})
	}
}

func TestParseFrame(t *testing.T) {
	t.Parallel()

	cases := []struct {
		input  string
		expect Frame
		err    bool
	}{
		{"GLOBAL_RELATIVE_ALT", FrameGlobalRelativeAlt, false},
		{"mav_frame_global", FrameGlobal, false},
		{"local_ned", FrameLocalNED, false},
		{"mission", FrameMission, false},
		{"6", FrameGlobalRelativeAltInt, false},
		{"21", FrameLocalFLU, false},
		{"sky", 0, true},
		{"300", 0, true},
	}
	for _, c := range cases {
		c := c
		t.Run(c.input, func(t *testing.T) {
			t.Parallel()
			f, err := ParseFrame(c.input)
			if c.err {
				require.Error(t, err)
				assert.True(t, errors.IsNotValid(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, c.expect, f)
		})
	}
}

func TestFrameScale(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 1e7, FrameGlobalRelativeAlt.Scale())
	assert.Equal(t, 1e4, FrameLocalNED.Scale())
	assert.Equal(t, 1.0, FrameMission.Scale())
	assert.Equal(t, "MAV_FRAME(9)", FrameBodyOffsetNED.String())
}
