package link

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/juju/errors"
)

// Command is MAV_CMD enumerant.
type Command uint16

const (
	CmdNavWaypoint        Command = 16
	CmdNavReturnToLaunch  Command = 20
	CmdNavLand            Command = 21
	CmdNavTakeoff         Command = 22
	CmdDoSetMode          Command = 176
	CmdComponentArmDisarm Command = 400
)

func (self Command) String() string {
	switch self {
	case CmdNavWaypoint:
		return "NAV_WAYPOINT"
	case CmdNavReturnToLaunch:
		return "NAV_RETURN_TO_LAUNCH"
	case CmdNavLand:
		return "NAV_LAND"
	case CmdNavTakeoff:
		return "NAV_TAKEOFF"
	case CmdDoSetMode:
		return "DO_SET_MODE"
	case CmdComponentArmDisarm:
		return "COMPONENT_ARM_DISARM"
	}
	return fmt.Sprintf("MAV_CMD(%d)", uint16(self))
}

var commandAliases = map[string]Command{
	"WAYPOINT": CmdNavWaypoint,
	"RTL":      CmdNavReturnToLaunch,
	"LAND":     CmdNavLand,
	"TAKEOFF":  CmdNavTakeoff,
	"MODE":     CmdDoSetMode,
	"ARM":      CmdComponentArmDisarm,
}

// ParseCommand accepts MAV_CMD name with or without prefix, short alias or number.
// Examples: "NAV_TAKEOFF", "MAV_CMD_NAV_TAKEOFF", "takeoff", "22".
func ParseCommand(s string) (Command, error) {
	upper := strings.TrimPrefix(strings.ToUpper(strings.TrimSpace(s)), "MAV_CMD_")
	if c, ok := commandAliases[upper]; ok {
		return c, nil
	}
	for _, c := range []Command{CmdNavWaypoint, CmdNavReturnToLaunch, CmdNavLand, CmdNavTakeoff, CmdDoSetMode, CmdComponentArmDisarm} {
		if c.String() == upper {
			return c, nil
		}
	}
	if n, err := strconv.ParseUint(upper, 10, 16); err == nil {
		return Command(n), nil
	}
	return 0, errors.NotValidf("command=%q", s)
}

// Frame is MAV_FRAME, coordinate system of mission item.
type Frame uint8

const (
	FrameGlobal               Frame = 0
	FrameLocalNED             Frame = 1
	FrameMission              Frame = 2
	FrameGlobalRelativeAlt    Frame = 3
	FrameLocalENU             Frame = 4
	FrameGlobalInt            Frame = 5
	FrameGlobalRelativeAltInt Frame = 6
	FrameLocalOffsetNED       Frame = 7
	FrameBodyNED              Frame = 8
	FrameBodyOffsetNED        Frame = 9
	FrameGlobalTerrainAlt     Frame = 10
	FrameGlobalTerrainAltInt  Frame = 11
	FrameLocalFRD             Frame = 20
	FrameLocalFLU             Frame = 21
)

func (self Frame) Global() bool {
	switch self {
	case FrameGlobal, FrameGlobalRelativeAlt, FrameGlobalInt, FrameGlobalRelativeAltInt, FrameGlobalTerrainAlt, FrameGlobalTerrainAltInt:
		return true
	}
	return false
}

// Scale converts X/Y between float and integer wire form.
// Global frames carry degrees*1e7, local frames metres*1e4, mission frame raw.
func (self Frame) Scale() float64 {
	switch {
	case self.Global():
		return 1e7
	case self == FrameMission:
		return 1
	}
	return 1e4
}

func (self Frame) String() string {
	switch self {
	case FrameGlobal:
		return "GLOBAL"
	case FrameLocalNED:
		return "LOCAL_NED"
	case FrameMission:
		return "MISSION"
	case FrameGlobalRelativeAlt:
		return "GLOBAL_RELATIVE_ALT"
	case FrameLocalENU:
		return "LOCAL_ENU"
	case FrameGlobalInt:
		return "GLOBAL_INT"
	case FrameGlobalRelativeAltInt:
		return "GLOBAL_RELATIVE_ALT_INT"
	case FrameGlobalTerrainAlt:
		return "GLOBAL_TERRAIN_ALT"
	}
	return fmt.Sprintf("MAV_FRAME(%d)", uint8(self))
}

// ParseFrame accepts MAV_FRAME name with or without prefix or number.
func ParseFrame(s string) (Frame, error) {
	upper := strings.TrimPrefix(strings.ToUpper(strings.TrimSpace(s)), "MAV_FRAME_")
	for f := FrameGlobal; f <= FrameLocalFLU; f++ {
		if f.String() == upper {
			return f, nil
		}
	}
	if n, err := strconv.ParseUint(upper, 10, 8); err == nil {
		return Frame(n), nil
	}
	return 0, errors.NotValidf("frame=%q", s)
}

// Result is MAV_RESULT, command acknowledgement disposition.
type Result uint8

const (
	ResultAccepted Result = iota
	ResultTemporarilyRejected
	ResultDenied
	ResultUnsupported
	ResultFailed
	ResultInProgress
	ResultCancelled
)

var resultNames = [...]string{"ACCEPTED", "TEMPORARILY_REJECTED", "DENIED", "UNSUPPORTED", "FAILED", "IN_PROGRESS", "CANCELLED"}

func (self Result) String() string {
	if int(self) < len(resultNames) {
		return resultNames[self]
	}
	return fmt.Sprintf("MAV_RESULT(%d)", uint8(self))
}

// MissionResult is MAV_MISSION_RESULT.
type MissionResult uint8

const (
	MissionAccepted MissionResult = iota
	MissionError
	MissionUnsupportedFrame
	MissionUnsupported
	MissionNoSpace
	MissionInvalid
	MissionInvalidParam1
	MissionInvalidParam2
	MissionInvalidParam3
	MissionInvalidParam4
	MissionInvalidParam5X
	MissionInvalidParam6Y
	MissionInvalidParam7
	MissionInvalidSequence
	MissionDenied
	MissionOperationCancelled
)

var missionResultNames = [...]string{
	"ACCEPTED", "ERROR", "UNSUPPORTED_FRAME", "UNSUPPORTED", "NO_SPACE", "INVALID",
	"INVALID_PARAM1", "INVALID_PARAM2", "INVALID_PARAM3", "INVALID_PARAM4",
	"INVALID_PARAM5_X", "INVALID_PARAM6_Y", "INVALID_PARAM7",
	"INVALID_SEQUENCE", "DENIED", "OPERATION_CANCELLED",
}

func (self MissionResult) String() string {
	if int(self) < len(missionResultNames) {
		return missionResultNames[self]
	}
	return fmt.Sprintf("MAV_MISSION_RESULT(%d)", uint8(self))
}

// ModeFlag is MAV_MODE_FLAG bitmask of heartbeat base_mode.
type ModeFlag uint8

const (
	ModeFlagCustomModeEnabled ModeFlag = 1
	ModeFlagTestEnabled       ModeFlag = 2
	ModeFlagAutoEnabled       ModeFlag = 4
	ModeFlagGuidedEnabled     ModeFlag = 8
	ModeFlagStabilizeEnabled  ModeFlag = 16
	ModeFlagHILEnabled        ModeFlag = 32
	ModeFlagManualInput       ModeFlag = 64
	ModeFlagSafetyArmed       ModeFlag = 128
)

func (self ModeFlag) Has(f ModeFlag) bool { return self&f == f }

// MAV_TYPE, MAV_AUTOPILOT, MAV_STATE values used by ground station.
const (
	TypeGCS          uint8 = 6
	AutopilotInvalid uint8 = 8
	StateActive      uint8 = 4
)

// ParamType is MAV_PARAM_TYPE.
type ParamType uint8

const (
	ParamUint8  ParamType = 1
	ParamInt8   ParamType = 2
	ParamUint16 ParamType = 3
	ParamInt16  ParamType = 4
	ParamUint32 ParamType = 5
	ParamInt32  ParamType = 6
	ParamReal32 ParamType = 9
)

// ParamIDLen is max length of parameter name on wire.
const ParamIDLen = 16
