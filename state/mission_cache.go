package state

import (
	"sync"
	"time"

	"github.com/golang/protobuf/proto"
	structpb "github.com/golang/protobuf/ptypes/struct"
	"github.com/juju/errors"
	"github.com/temoto/mavgcs/link"
	"github.com/temoto/mavgcs/mission"
	"github.com/temoto/mavgcs/state/persist"
	"github.com/temoto/mavgcs/tele"
)

// MissionCache remembers last mission exchanged with vehicle.
type MissionCache struct {
	Persist persist.Persist

	mu      sync.RWMutex
	vehicle string
	items   []mission.Item
	updated time.Time
}

var _ persist.Stater = &MissionCache{}

func (self *MissionCache) Get() (vehicle string, items []mission.Item, ok bool) {
	self.mu.RLock()
	defer self.mu.RUnlock()
	if self.items == nil {
		return "", nil, false
	}
	return self.vehicle, append([]mission.Item(nil), self.items...), true
}

// Set replaces cached mission and stores it if persist is enabled.
func (self *MissionCache) Set(vehicle link.Header, items []mission.Item) error {
	self.mu.Lock()
	self.vehicle = vehicle.String()
	self.items = append(make([]mission.Item, 0, len(items)), items...)
	self.updated = time.Now()
	self.mu.Unlock()
	return self.Persist.Store()
}

func (self *MissionCache) MarshalBinary() ([]byte, error) {
	self.mu.RLock()
	defer self.mu.RUnlock()
	s := tele.MissionStruct(link.Header{}, self.items)
	s.Fields["vehicle"] = &structpb.Value{Kind: &structpb.Value_StringValue{StringValue: self.vehicle}}
	s.Fields["updated"] = &structpb.Value{Kind: &structpb.Value_StringValue{StringValue: self.updated.UTC().Format(time.RFC3339Nano)}}
	return proto.Marshal(s)
}

func (self *MissionCache) UnmarshalBinary(b []byte) error {
	var s structpb.Struct
	if err := proto.Unmarshal(b, &s); err != nil {
		return errors.Trace(err)
	}
	vehicle, items, err := tele.MissionFromStruct(&s)
	if err != nil {
		return errors.Trace(err)
	}
	updated, _ := time.Parse(time.RFC3339Nano, s.GetFields()["updated"].GetStringValue())
	self.mu.Lock()
	self.vehicle, self.items, self.updated = vehicle, items, updated
	self.mu.Unlock()
	return nil
}
