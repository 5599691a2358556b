package mission

import (
	"github.com/juju/errors"
	"github.com/temoto/mavgcs/link"
)

// Item is one mission waypoint or command.
// X/Y are degrees for global frames, metres for local frames.
type Item struct {
	Seq          uint16
	Frame        link.Frame
	Command      link.Command
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

func (self Item) Message(target link.Header) link.MissionItem {
	return link.MissionItem{
		Target:       target,
		Seq:          self.Seq,
		Frame:        self.Frame,
		Command:      self.Command,
		Current:      self.Current,
		Autocontinue: self.Autocontinue,
		Param1:       self.Param1,
		Param2:       self.Param2,
		Param3:       self.Param3,
		Param4:       self.Param4,
		X:            self.X,
		Y:            self.Y,
		Z:            self.Z,
	}
}

func ItemFromMessage(m link.MissionItem) Item {
	return Item{
		Seq:          m.Seq,
		Frame:        m.Frame,
		Command:      m.Command,
		Current:      m.Current,
		Autocontinue: m.Autocontinue,
		Param1:       m.Param1,
		Param2:       m.Param2,
		Param3:       m.Param3,
		Param4:       m.Param4,
		X:            m.X,
		Y:            m.Y,
		Z:            m.Z,
	}
}

// Validate checks mission is indexed 0..len-1 without gaps.
func Validate(items []Item) error {
	if len(items) > 0xffff {
		return errors.NotValidf("mission length=%d", len(items))
	}
	for i, it := range items {
		if int(it.Seq) != i {
			return errors.NotValidf("mission item index=%d seq=%d", i, it.Seq)
		}
	}
	return nil
}

// Renumber returns copy with Seq assigned by position.
func Renumber(items []Item) []Item {
	out := make([]Item, len(items))
	for i, it := range items {
		it.Seq = uint16(i)
		out[i] = it
	}
	return out
}
