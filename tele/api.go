package tele

import (
	structpb "github.com/golang/protobuf/ptypes/struct"
	"github.com/temoto/mavgcs/gcs"
)

const logMsgDisabled = "tele disabled"

func (self *Tele) Event(e gcs.Event) {
	if !self.enabled {
		self.log.Errorf(logMsgDisabled)
		return
	}

	self.log.Debugf("tele.Event %s", e.String())
	self.stat.Lock()
	self.stat.Events++
	self.stat.Unlock()
	if err := self.qpushTagProto(qEvent, EventStruct(e)); err != nil {
		self.log.Errorf("CRITICAL qpush event=%s err=%v", e.String(), err)
	}
}

// Error is suitable for log2.SetErrorFunc.
func (self *Tele) Error(e error) {
	if !self.enabled {
		self.log.Errorf(logMsgDisabled)
		return
	}

	self.log.Infof("tele.Error e=%v", e)
	self.stat.Lock()
	self.stat.Errors++
	self.stat.Unlock()
	if err := self.qpushTagProto(qEvent, errorStruct(e)); err != nil {
		self.log.Errorf("CRITICAL qpush error=%v err=%v", e, err)
	}
}

func (self *Tele) CommandReply(c Command, result *structpb.Struct, e error) {
	if !self.enabled {
		self.log.Errorf(logMsgDisabled)
		return
	}

	self.stat.Lock()
	self.stat.Responses++
	self.stat.Unlock()
	if err := self.qpushTagProto(qResponse, responseStruct(c, result, e)); err != nil {
		self.log.Errorf("CRITICAL qpush response cmd=%s err=%v", c.Name, err)
	}
}

func (self *Tele) StatModify(fun func(s *Stat)) {
	if !self.enabled {
		self.log.Errorf(logMsgDisabled)
		return
	}

	self.stat.Lock()
	fun(&self.stat)
	self.stat.Unlock()
}
