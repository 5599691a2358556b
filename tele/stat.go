package tele

import (
	"sync"

	structpb "github.com/golang/protobuf/ptypes/struct"
)

// Low priority counters, sent together with state.
type Stat struct { //nolint:maligned
	sync.Mutex
	Events    uint32
	Responses uint32
	Commands  uint32
	Delivered uint32
	Retries   uint32
	Errors    uint32
}

// Caller must hold self.Mutex.
func (self *Stat) Locked_Struct() *structpb.Struct {
	return pbStruct(fields{
		"events":    self.Events,
		"responses": self.Responses,
		"commands":  self.Commands,
		"delivered": self.Delivered,
		"retries":   self.Retries,
		"errors":    self.Errors,
	})
}
