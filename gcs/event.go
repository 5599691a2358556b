package gcs

import (
	"fmt"
	"time"

	"github.com/temoto/mavgcs/link"
	"github.com/temoto/mavgcs/mission"
)

type EventKind uint8

const (
	EventInvalid EventKind = iota
	EventHeartbeat
	EventCommandAck
	EventMission
	EventParam
	EventPosition
	EventAttitude
	EventFatal
)

var eventKindNames = [...]string{"invalid", "heartbeat", "command-ack", "mission", "param", "position", "attitude", "fatal"}

func (self EventKind) String() string {
	if int(self) < len(eventKindNames) {
		return eventKindNames[self]
	}
	return fmt.Sprintf("EventKind(%d)", uint8(self))
}

// MissionReport is transfer progress or unsolicited mission message.
// Direction is zero when no transfer was active.
type MissionReport struct {
	Direction mission.Direction
	State     mission.State
	Expected  int
	Items     int
	Msg       link.Message
}

type Event struct {
	Kind EventKind
	Time time.Time
	From link.Header

	// heartbeat
	Armed      bool
	CustomMode uint32
	Mode       FlightMode
	Changed    bool

	Ack      link.CommandAck
	Mission  MissionReport
	Param    link.ParamValue
	Position link.GlobalPosition
	Attitude link.Attitude
	Err      error
}

func (self Event) String() string {
	switch self.Kind {
	case EventHeartbeat:
		return fmt.Sprintf("heartbeat from=%s armed=%t mode=%s changed=%t", self.From, self.Armed, self.Mode, self.Changed)
	case EventCommandAck:
		return fmt.Sprintf("command-ack from=%s command=%s result=%s", self.From, self.Ack.Command, self.Ack.Result)
	case EventMission:
		return fmt.Sprintf("mission from=%s %s direction=%s state=%s items=%d/%d",
			self.From, link.Kind(self.Mission.Msg), self.Mission.Direction, self.Mission.State, self.Mission.Items, self.Mission.Expected)
	case EventParam:
		return fmt.Sprintf("param from=%s %s=%v index=%d/%d", self.From, self.Param.ID, self.Param.Value, self.Param.Index, self.Param.Count)
	case EventPosition:
		return fmt.Sprintf("position from=%s lat=%.7f lon=%.7f alt=%.2f rel=%.2f", self.From, self.Position.Lat, self.Position.Lon, self.Position.Alt, self.Position.RelativeAlt)
	case EventAttitude:
		return fmt.Sprintf("attitude from=%s roll=%.3f pitch=%.3f yaw=%.3f", self.From, self.Attitude.Roll, self.Attitude.Pitch, self.Attitude.Yaw)
	case EventFatal:
		return fmt.Sprintf("fatal err=%v", self.Err)
	}
	return self.Kind.String()
}
