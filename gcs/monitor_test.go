package gcs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/temoto/mavgcs/link"
	"github.com/temoto/mavgcs/log2"
)

var testVehicle = link.Header{SystemID: 1, ComponentID: 1}

func TestMonitorArmedTransitions(t *testing.T) {
	t.Parallel()

	mon := Monitor{Log: log2.NewTest(t, log2.LDebug)}
	_, known := mon.Armed()
	assert.False(t, known)
	assert.True(t, mon.LastSeen().IsZero())

	t0 := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	type step struct {
		base    link.ModeFlag
		mode    uint32
		armed   bool
		changed bool
	}
	steps := []step{
		{link.ModeFlagCustomModeEnabled, 0, false, true},
		{link.ModeFlagCustomModeEnabled, 0, false, false},
		{link.ModeFlagCustomModeEnabled | link.ModeFlagSafetyArmed, 0, true, true},
		{link.ModeFlagCustomModeEnabled | link.ModeFlagSafetyArmed, 0, true, false},
		{link.ModeFlagCustomModeEnabled | link.ModeFlagSafetyArmed, 4, true, true},
		{link.ModeFlagCustomModeEnabled, 4, false, true},
	}
	for i, s := range steps {
		now := t0.Add(time.Duration(i) * time.Second)
		e, ok := mon.Observe(now, testVehicle, link.Heartbeat{BaseMode: s.base, CustomMode: s.mode})
		require.True(t, ok)
		assert.Equal(t, EventHeartbeat, e.Kind, "step=%d", i)
		assert.Equal(t, s.armed, e.Armed, "step=%d", i)
		assert.Equal(t, s.changed, e.Changed, "step=%d", i)
		assert.Equal(t, FlightMode(s.mode), e.Mode)
		assert.Equal(t, now.UnixNano(), mon.LastSeen().UnixNano())
	}
	armed, known := mon.Armed()
	assert.True(t, known)
	assert.False(t, armed)
	mode, _ := mon.Mode()
	assert.Equal(t, ModeGuided, mode)
}

func TestMonitorClassify(t *testing.T) {
	t.Parallel()

	mon := Monitor{}
	type Case struct {
		msg    link.Message
		expect EventKind
		ok     bool
	}
	cases := []Case{
		{link.CommandAck{Command: link.CmdDoSetMode}, EventCommandAck, true},
		{link.MissionCount{Count: 3}, EventMission, true},
		{link.MissionAck{}, EventMission, true},
		{link.ParamValue{ID: "SIM_SPEEDUP"}, EventParam, true},
		{link.GlobalPosition{Lat: 1}, EventPosition, true},
		{link.Attitude{Roll: 0.1}, EventAttitude, true},
		{link.Unknown{ID: 1}, EventInvalid, false},
		{link.ParamSet{}, EventInvalid, false},
	}
	for _, c := range cases {
		e, ok := mon.Observe(time.Now(), testVehicle, c.msg)
		assert.Equal(t, c.ok, ok, link.Kind(c.msg))
		assert.Equal(t, c.expect, e.Kind, link.Kind(c.msg))
	}
}
