package tele

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/golang/protobuf/proto"
	structpb "github.com/golang/protobuf/ptypes/struct"
	"github.com/juju/errors"
	"github.com/temoto/mavgcs/gcs"
	"github.com/temoto/mavgcs/link"
	"github.com/temoto/mavgcs/mission"
)

// Every MQTT payload is google.protobuf.Struct in binary protobuf encoding.
// Schemaless struct keeps broker side consumers free of generated code.

type fields map[string]interface{}

func pbStruct(f fields) *structpb.Struct {
	s := &structpb.Struct{Fields: make(map[string]*structpb.Value, len(f))}
	for k, v := range f {
		s.Fields[k] = pbValue(v)
	}
	return s
}

func pbNumber(x float64) *structpb.Value {
	return &structpb.Value{Kind: &structpb.Value_NumberValue{NumberValue: x}}
}

func pbString(s string) *structpb.Value {
	return &structpb.Value{Kind: &structpb.Value_StringValue{StringValue: s}}
}

func pbValue(x interface{}) *structpb.Value {
	switch v := x.(type) {
	case nil:
		return &structpb.Value{Kind: &structpb.Value_NullValue{}}
	case *structpb.Value:
		return v
	case bool:
		return &structpb.Value{Kind: &structpb.Value_BoolValue{BoolValue: v}}
	case string:
		return pbString(v)
	case int:
		return pbNumber(float64(v))
	case int16:
		return pbNumber(float64(v))
	case int32:
		return pbNumber(float64(v))
	case int64:
		return pbNumber(float64(v))
	case uint8:
		return pbNumber(float64(v))
	case uint16:
		return pbNumber(float64(v))
	case uint32:
		return pbNumber(float64(v))
	case float32:
		return pbNumber(float64(v))
	case float64:
		return pbNumber(v)
	case time.Time:
		if v.IsZero() {
			return pbValue(nil)
		}
		return pbString(v.UTC().Format(time.RFC3339Nano))
	case error:
		return pbString(v.Error())
	case *structpb.Struct:
		return &structpb.Value{Kind: &structpb.Value_StructValue{StructValue: v}}
	case []*structpb.Value:
		return &structpb.Value{Kind: &structpb.Value_ListValue{ListValue: &structpb.ListValue{Values: v}}}
	case fmt.Stringer:
		return pbString(v.String())
	}
	panic(fmt.Sprintf("code error pbValue unsupported type=%T", x))
}

// VehicleState is retained snapshot published to `<prefix>/state`.
type VehicleState struct {
	Online      bool
	Vehicle     link.Header
	Armed       bool
	Mode        gcs.FlightMode
	LastSeen    time.Time
	HasPosition bool
	Position    link.GlobalPosition
	Attitude    link.Attitude
}

func (self *VehicleState) observe(e gcs.Event) bool {
	switch e.Kind {
	case gcs.EventHeartbeat:
		changed := !self.Online || e.Changed
		self.Online = true
		self.Vehicle = e.From
		self.Armed = e.Armed
		self.Mode = e.Mode
		self.LastSeen = e.Time
		return changed
	case gcs.EventPosition:
		self.HasPosition = true
		self.Position = e.Position
	case gcs.EventAttitude:
		self.Attitude = e.Attitude
	case gcs.EventFatal:
		changed := self.Online
		self.Online = false
		return changed
	}
	return false
}

func (self *VehicleState) Struct() *structpb.Struct {
	f := fields{"online": self.Online}
	if self.Vehicle.IsZero() {
		return pbStruct(f)
	}
	f["vehicle"] = self.Vehicle
	f["armed"] = self.Armed
	f["mode"] = self.Mode
	f["last_seen"] = self.LastSeen
	if self.HasPosition {
		f["position"] = pbStruct(positionFields(self.Position))
	}
	f["attitude"] = pbStruct(attitudeFields(self.Attitude))
	return pbStruct(f)
}

func positionFields(p link.GlobalPosition) fields {
	return fields{
		"lat":          p.Lat,
		"lon":          p.Lon,
		"alt":          p.Alt,
		"relative_alt": p.RelativeAlt,
		"heading":      p.Heading,
	}
}

func attitudeFields(a link.Attitude) fields {
	return fields{"roll": a.Roll, "pitch": a.Pitch, "yaw": a.Yaw}
}

func paramStruct(p link.ParamValue) *structpb.Struct {
	return pbStruct(fields{"id": p.ID, "value": p.Value, "index": p.Index, "count": p.Count})
}

func EventStruct(e gcs.Event) *structpb.Struct {
	f := fields{
		"kind": e.Kind,
		"time": e.Time,
		"from": e.From,
	}
	switch e.Kind {
	case gcs.EventHeartbeat:
		f["armed"] = e.Armed
		f["mode"] = e.Mode
		f["custom_mode"] = e.CustomMode
		f["changed"] = e.Changed
	case gcs.EventCommandAck:
		f["command"] = e.Ack.Command
		f["result"] = e.Ack.Result
	case gcs.EventMission:
		f["direction"] = e.Mission.Direction
		f["state"] = e.Mission.State
		f["expected"] = e.Mission.Expected
		f["items"] = e.Mission.Items
		if e.Mission.Msg != nil {
			f["message"] = link.Kind(e.Mission.Msg)
		}
	case gcs.EventParam:
		f["param"] = paramStruct(e.Param)
	case gcs.EventPosition:
		f["position"] = pbStruct(positionFields(e.Position))
	case gcs.EventAttitude:
		f["attitude"] = pbStruct(attitudeFields(e.Attitude))
	case gcs.EventFatal:
		f["error"] = e.Err
	}
	return pbStruct(f)
}

func errorStruct(e error) *structpb.Struct {
	return pbStruct(fields{"kind": "error", "time": time.Now(), "error": e})
}

func itemStruct(it mission.Item) *structpb.Struct {
	return pbStruct(fields{
		"seq":          it.Seq,
		"frame":        uint8(it.Frame),
		"command":      uint16(it.Command),
		"current":      it.Current,
		"autocontinue": it.Autocontinue,
		"param1":       it.Param1,
		"param2":       it.Param2,
		"param3":       it.Param3,
		"param4":       it.Param4,
		"x":            it.X,
		"y":            it.Y,
		"z":            it.Z,
	})
}

func itemsValue(items []mission.Item) []*structpb.Value {
	vs := make([]*structpb.Value, len(items))
	for i, it := range items {
		vs[i] = pbValue(itemStruct(it))
	}
	return vs
}

// MissionStruct is mission snapshot, also used as mission-download result.
func MissionStruct(vehicle link.Header, items []mission.Item) *structpb.Struct {
	f := fields{"count": len(items), "items": itemsValue(items)}
	if !vehicle.IsZero() {
		f["vehicle"] = vehicle.String()
	}
	return pbStruct(f)
}

func MissionFromStruct(s *structpb.Struct) (string, []mission.Item, error) {
	f := s.GetFields()
	list := f["items"].GetListValue().GetValues()
	if n := numberOr(f["count"], float64(len(list))); int(n) != len(list) {
		return "", nil, errors.NotValidf("mission count=%v items=%d", n, len(list))
	}
	items := make([]mission.Item, 0, len(list))
	for i, v := range list {
		it, err := ItemFromStruct(v.GetStructValue(), i)
		if err != nil {
			return "", nil, errors.Trace(err)
		}
		items = append(items, it)
	}
	return f["vehicle"].GetStringValue(), items, nil
}

// enumArg returns string form of enum field given either as name or number.
func enumArg(v *structpb.Value) string {
	if _, ok := v.GetKind().(*structpb.Value_NumberValue); ok {
		return strconv.FormatInt(int64(v.GetNumberValue()), 10)
	}
	return v.GetStringValue()
}

func numberOr(v *structpb.Value, def float64) float64 {
	if _, ok := v.GetKind().(*structpb.Value_NumberValue); ok {
		return v.GetNumberValue()
	}
	return def
}

// ItemFromStruct decodes waypoint, missing seq defaults to index
// and missing frame to GLOBAL_RELATIVE_ALT.
func ItemFromStruct(s *structpb.Struct, index int) (mission.Item, error) {
	f := s.GetFields()
	it := mission.Item{
		Current:      f["current"].GetBoolValue(),
		Autocontinue: true,
		Param1:       float32(numberOr(f["param1"], 0)),
		Param2:       float32(numberOr(f["param2"], 0)),
		Param3:       float32(numberOr(f["param3"], 0)),
		Param4:       float32(numberOr(f["param4"], 0)),
		X:            numberOr(f["x"], 0),
		Y:            numberOr(f["y"], 0),
		Z:            float32(numberOr(f["z"], 0)),
	}
	if v, ok := f["autocontinue"]; ok {
		it.Autocontinue = v.GetBoolValue()
	}
	seq := numberOr(f["seq"], float64(index))
	if seq < 0 || seq > math.MaxUint16 {
		return it, errors.NotValidf("item[%d] seq=%v", index, seq)
	}
	it.Seq = uint16(seq)

	var err error
	it.Frame = link.FrameGlobalRelativeAlt
	if v, ok := f["frame"]; ok {
		if it.Frame, err = link.ParseFrame(enumArg(v)); err != nil {
			return it, errors.Annotatef(err, "item[%d]", index)
		}
	}
	if it.Command, err = link.ParseCommand(enumArg(f["command"])); err != nil {
		return it, errors.Annotatef(err, "item[%d]", index)
	}
	return it, nil
}

// Command is remote intent received on `<prefix>/c`.
// Payload fields: id (echoed in response), cmd, arg, value, items.
type Command struct {
	ID    *structpb.Value
	Name  string
	Arg   string
	Value float64
	Items []mission.Item
}

func ParseCommand(b []byte) (Command, error) {
	var s structpb.Struct
	if err := proto.Unmarshal(b, &s); err != nil {
		return Command{}, errors.Annotate(err, "command parse")
	}
	f := s.GetFields()
	c := Command{
		ID:    f["id"],
		Name:  f["cmd"].GetStringValue(),
		Arg:   f["arg"].GetStringValue(),
		Value: f["value"].GetNumberValue(),
	}
	if c.Name == "" {
		return c, errors.NotValidf("command cmd=empty")
	}
	for i, v := range f["items"].GetListValue().GetValues() {
		it, err := ItemFromStruct(v.GetStructValue(), i)
		if err != nil {
			return c, errors.Annotate(err, "command parse")
		}
		c.Items = append(c.Items, it)
	}
	return c, nil
}

func (self Command) Struct() *structpb.Struct {
	f := fields{"cmd": self.Name}
	if self.ID != nil {
		f["id"] = self.ID
	}
	if self.Arg != "" {
		f["arg"] = self.Arg
	}
	if self.Value != 0 {
		f["value"] = self.Value
	}
	if len(self.Items) != 0 {
		f["items"] = itemsValue(self.Items)
	}
	return pbStruct(f)
}

func responseStruct(c Command, result *structpb.Struct, e error) *structpb.Struct {
	f := fields{"cmd": c.Name, "time": time.Now(), "error": ""}
	if c.ID != nil {
		f["id"] = c.ID
	}
	if e != nil {
		f["error"] = e
	}
	if result != nil {
		f["result"] = result
	}
	return pbStruct(f)
}
