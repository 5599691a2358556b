package link

import "fmt"

// Message is closed set of link messages understood by ground station.
// Implementations are sealed, everything else arrives as Unknown.
type Message interface {
	message()
}

type Heartbeat struct {
	Type         uint8
	Autopilot    uint8
	BaseMode     ModeFlag
	CustomMode   uint32
	SystemStatus uint8
}

type CommandLong struct {
	Target       Header
	Command      Command
	Confirmation uint8
	Params       [7]float32
}

type CommandAck struct {
	Command Command
	Result  Result
}

type MissionCount struct {
	Target Header
	Count  uint16
}

// MissionItem X/Y are degrees for global frames, metres for local.
type MissionItem struct {
	Target       Header
	Seq          uint16
	Frame        Frame
	Command      Command
	Current      bool
	Autocontinue bool
	Param1       float32
	Param2       float32
	Param3       float32
	Param4       float32
	X            float64
	Y            float64
	Z            float32
}

// MissionRequest Int selects MISSION_REQUEST_INT wire form.
type MissionRequest struct {
	Target Header
	Seq    uint16
	Int    bool
}

type MissionRequestList struct {
	Target Header
}

type MissionAck struct {
	Target Header
	Result MissionResult
}

// ParamRequestRead Index=-1 means lookup by ID.
type ParamRequestRead struct {
	Target Header
	ID     string
	Index  int16
}

type ParamRequestList struct {
	Target Header
}

type ParamSet struct {
	Target Header
	ID     string
	Value  float32
	Type   ParamType
}

type ParamValue struct {
	ID    string
	Value float32
	Type  ParamType
	Count uint16
	Index uint16
}

// GlobalPosition Lat/Lon in degrees, altitudes in metres.
type GlobalPosition struct {
	Lat         float64
	Lon         float64
	Alt         float32
	RelativeAlt float32
	Heading     float32
}

// Attitude angles in radians.
type Attitude struct {
	Roll  float32
	Pitch float32
	Yaw   float32
}

type Unknown struct {
	ID   uint32
	Name string
}

func (Heartbeat) message()          {}
func (CommandLong) message()        {}
func (CommandAck) message()         {}
func (MissionCount) message()       {}
func (MissionItem) message()        {}
func (MissionRequest) message()     {}
func (MissionRequestList) message() {}
func (MissionAck) message()         {}
func (ParamRequestRead) message()   {}
func (ParamRequestList) message()   {}
func (ParamSet) message()           {}
func (ParamValue) message()         {}
func (GlobalPosition) message()     {}
func (Attitude) message()           {}
func (Unknown) message()            {}

// Kind returns short message name for logs.
func Kind(m Message) string {
	switch x := m.(type) {
	case Heartbeat:
		return "HEARTBEAT"
	case CommandLong:
		return "COMMAND_LONG"
	case CommandAck:
		return "COMMAND_ACK"
	case MissionCount:
		return "MISSION_COUNT"
	case MissionItem:
		return "MISSION_ITEM_INT"
	case MissionRequest:
		if x.Int {
			return "MISSION_REQUEST_INT"
		}
		return "MISSION_REQUEST"
	case MissionRequestList:
		return "MISSION_REQUEST_LIST"
	case MissionAck:
		return "MISSION_ACK"
	case ParamRequestRead:
		return "PARAM_REQUEST_READ"
	case ParamRequestList:
		return "PARAM_REQUEST_LIST"
	case ParamSet:
		return "PARAM_SET"
	case ParamValue:
		return "PARAM_VALUE"
	case GlobalPosition:
		return "GLOBAL_POSITION_INT"
	case Attitude:
		return "ATTITUDE"
	case Unknown:
		if x.Name != "" {
			return x.Name
		}
		return fmt.Sprintf("UNKNOWN(%d)", x.ID)
	case nil:
		return "nil"
	}
	panic(fmt.Sprintf("code error link.Kind unhandled type %T", m))
}

// IsMission reports mission protocol kinds routed to transfer state machine.
func IsMission(m Message) bool {
	switch m.(type) {
	case MissionCount, MissionItem, MissionRequest, MissionRequestList, MissionAck:
		return true
	}
	return false
}
