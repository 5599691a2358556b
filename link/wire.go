package link

import (
	"fmt"
	"math"
	"strings"

	"github.com/bluenviron/gomavlib/v3/pkg/dialects/common"
	"github.com/bluenviron/gomavlib/v3/pkg/message"
	"github.com/juju/errors"
)

func scaleInt(v float64, f Frame) int32   { return int32(math.Round(v * f.Scale())) }
func scaleFloat(v int32, f Frame) float64 { return float64(v) / f.Scale() }

// toWire converts link message into gomavlib dialect message.
func toWire(m Message) (message.Message, error) {
	switch x := m.(type) {
	case Heartbeat:
		return &common.MessageHeartbeat{
			Type:           common.MAV_TYPE(x.Type),
			Autopilot:      common.MAV_AUTOPILOT(x.Autopilot),
			BaseMode:       common.MAV_MODE_FLAG(x.BaseMode),
			CustomMode:     x.CustomMode,
			SystemStatus:   common.MAV_STATE(x.SystemStatus),
			MavlinkVersion: 3,
		}, nil
	case CommandLong:
		return &common.MessageCommandLong{
			TargetSystem:    x.Target.SystemID,
			TargetComponent: x.Target.ComponentID,
			Command:         common.MAV_CMD(x.Command),
			Confirmation:    x.Confirmation,
			Param1:          x.Params[0],
			Param2:          x.Params[1],
			Param3:          x.Params[2],
			Param4:          x.Params[3],
			Param5:          x.Params[4],
			Param6:          x.Params[5],
			Param7:          x.Params[6],
		}, nil
	case CommandAck:
		return &common.MessageCommandAck{
			Command: common.MAV_CMD(x.Command),
			Result:  common.MAV_RESULT(x.Result),
		}, nil
	case MissionCount:
		return &common.MessageMissionCount{
			TargetSystem:    x.Target.SystemID,
			TargetComponent: x.Target.ComponentID,
			Count:           x.Count,
		}, nil
	case MissionItem:
		return &common.MessageMissionItemInt{
			TargetSystem:    x.Target.SystemID,
			TargetComponent: x.Target.ComponentID,
			Seq:             x.Seq,
			Frame:           common.MAV_FRAME(x.Frame),
			Command:         common.MAV_CMD(x.Command),
			Current:         boolByte(x.Current),
			Autocontinue:    boolByte(x.Autocontinue),
			Param1:          x.Param1,
			Param2:          x.Param2,
			Param3:          x.Param3,
			Param4:          x.Param4,
			X:               scaleInt(x.X, x.Frame),
			Y:               scaleInt(x.Y, x.Frame),
			Z:               x.Z,
		}, nil
	case MissionRequest:
		if x.Int {
			return &common.MessageMissionRequestInt{
				TargetSystem:    x.Target.SystemID,
				TargetComponent: x.Target.ComponentID,
				Seq:             x.Seq,
			}, nil
		}
		return &common.MessageMissionRequest{
			TargetSystem:    x.Target.SystemID,
			TargetComponent: x.Target.ComponentID,
			Seq:             x.Seq,
		}, nil
	case MissionRequestList:
		return &common.MessageMissionRequestList{
			TargetSystem:    x.Target.SystemID,
			TargetComponent: x.Target.ComponentID,
		}, nil
	case MissionAck:
		return &common.MessageMissionAck{
			TargetSystem:    x.Target.SystemID,
			TargetComponent: x.Target.ComponentID,
			Type:            common.MAV_MISSION_RESULT(x.Result),
		}, nil
	case ParamRequestRead:
		return &common.MessageParamRequestRead{
			TargetSystem:    x.Target.SystemID,
			TargetComponent: x.Target.ComponentID,
			ParamId:         x.ID,
			ParamIndex:      x.Index,
		}, nil
	case ParamRequestList:
		return &common.MessageParamRequestList{
			TargetSystem:    x.Target.SystemID,
			TargetComponent: x.Target.ComponentID,
		}, nil
	case ParamSet:
		return &common.MessageParamSet{
			TargetSystem:    x.Target.SystemID,
			TargetComponent: x.Target.ComponentID,
			ParamId:         x.ID,
			ParamValue:      x.Value,
			ParamType:       common.MAV_PARAM_TYPE(x.Type),
		}, nil
	case ParamValue:
		return &common.MessageParamValue{
			ParamId:    x.ID,
			ParamValue: x.Value,
			ParamType:  common.MAV_PARAM_TYPE(x.Type),
			ParamCount: x.Count,
			ParamIndex: x.Index,
		}, nil
	case GlobalPosition:
		return &common.MessageGlobalPositionInt{
			Lat:         int32(math.Round(x.Lat * 1e7)),
			Lon:         int32(math.Round(x.Lon * 1e7)),
			Alt:         int32(math.Round(float64(x.Alt) * 1000)),
			RelativeAlt: int32(math.Round(float64(x.RelativeAlt) * 1000)),
			Hdg:         uint16(math.Round(float64(x.Heading) * 100)),
		}, nil
	case Attitude:
		return &common.MessageAttitude{Roll: x.Roll, Pitch: x.Pitch, Yaw: x.Yaw}, nil
	}
	return nil, errors.NotSupportedf("send %s", Kind(m))
}

// fromWire never fails, unsupported messages become Unknown.
func fromWire(wm message.Message) Message {
	switch x := wm.(type) {
	case *common.MessageHeartbeat:
		return Heartbeat{
			Type:         uint8(x.Type),
			Autopilot:    uint8(x.Autopilot),
			BaseMode:     ModeFlag(x.BaseMode),
			CustomMode:   x.CustomMode,
			SystemStatus: uint8(x.SystemStatus),
		}
	case *common.MessageCommandLong:
		return CommandLong{
			Target:       Header{x.TargetSystem, x.TargetComponent},
			Command:      Command(x.Command),
			Confirmation: x.Confirmation,
			Params:       [7]float32{x.Param1, x.Param2, x.Param3, x.Param4, x.Param5, x.Param6, x.Param7},
		}
	case *common.MessageCommandAck:
		return CommandAck{Command: Command(x.Command), Result: Result(x.Result)}
	case *common.MessageMissionCount:
		return MissionCount{Target: Header{x.TargetSystem, x.TargetComponent}, Count: x.Count}
	case *common.MessageMissionItemInt:
		f := Frame(x.Frame)
		return MissionItem{
			Target:       Header{x.TargetSystem, x.TargetComponent},
			Seq:          x.Seq,
			Frame:        f,
			Command:      Command(x.Command),
			Current:      x.Current != 0,
			Autocontinue: x.Autocontinue != 0,
			Param1:       x.Param1,
			Param2:       x.Param2,
			Param3:       x.Param3,
			Param4:       x.Param4,
			X:            scaleFloat(x.X, f),
			Y:            scaleFloat(x.Y, f),
			Z:            x.Z,
		}
	case *common.MessageMissionItem:
		// deprecated float form, X/Y already in natural units
		return MissionItem{
			Target:       Header{x.TargetSystem, x.TargetComponent},
			Seq:          x.Seq,
			Frame:        Frame(x.Frame),
			Command:      Command(x.Command),
			Current:      x.Current != 0,
			Autocontinue: x.Autocontinue != 0,
			Param1:       x.Param1,
			Param2:       x.Param2,
			Param3:       x.Param3,
			Param4:       x.Param4,
			X:            float64(x.X),
			Y:            float64(x.Y),
			Z:            x.Z,
		}
	case *common.MessageMissionRequest:
		return MissionRequest{Target: Header{x.TargetSystem, x.TargetComponent}, Seq: x.Seq}
	case *common.MessageMissionRequestInt:
		return MissionRequest{Target: Header{x.TargetSystem, x.TargetComponent}, Seq: x.Seq, Int: true}
	case *common.MessageMissionRequestList:
		return MissionRequestList{Target: Header{x.TargetSystem, x.TargetComponent}}
	case *common.MessageMissionAck:
		return MissionAck{Target: Header{x.TargetSystem, x.TargetComponent}, Result: MissionResult(x.Type)}
	case *common.MessageParamRequestRead:
		return ParamRequestRead{Target: Header{x.TargetSystem, x.TargetComponent}, ID: x.ParamId, Index: x.ParamIndex}
	case *common.MessageParamRequestList:
		return ParamRequestList{Target: Header{x.TargetSystem, x.TargetComponent}}
	case *common.MessageParamSet:
		return ParamSet{Target: Header{x.TargetSystem, x.TargetComponent}, ID: x.ParamId, Value: x.ParamValue, Type: ParamType(x.ParamType)}
	case *common.MessageParamValue:
		return ParamValue{ID: x.ParamId, Value: x.ParamValue, Type: ParamType(x.ParamType), Count: x.ParamCount, Index: x.ParamIndex}
	case *common.MessageGlobalPositionInt:
		return GlobalPosition{
			Lat:         float64(x.Lat) / 1e7,
			Lon:         float64(x.Lon) / 1e7,
			Alt:         float32(x.Alt) / 1000,
			RelativeAlt: float32(x.RelativeAlt) / 1000,
			Heading:     float32(x.Hdg) / 100,
		}
	case *common.MessageAttitude:
		return Attitude{Roll: x.Roll, Pitch: x.Pitch, Yaw: x.Yaw}
	case nil:
		return Unknown{}
	}
	return Unknown{ID: wm.GetID(), Name: wireName(wm)}
}

// *common.MessageSysStatus -> SysStatus
func wireName(wm message.Message) string {
	s := fmt.Sprintf("%T", wm)
	if i := strings.LastIndex(s, ".Message"); i >= 0 {
		return s[i+len(".Message"):]
	}
	return strings.TrimPrefix(s, "*")
}

func boolByte(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
