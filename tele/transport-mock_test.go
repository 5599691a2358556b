package tele

import (
	"context"
	"testing"
	"time"

	"github.com/temoto/mavgcs/log2"
	tele_config "github.com/temoto/mavgcs/tele/config"
)

type transportMock struct {
	t              testing.TB
	onCommand      func([]byte) bool
	networkTimeout time.Duration
	outBuffer      int
	outState       chan []byte
	outEvent       chan []byte
	outResponse    chan []byte
}

func (self *transportMock) Init(ctx context.Context, log *log2.Log, teleConfig tele_config.Config, onCommand func([]byte) bool, willPayload []byte) error {
	self.onCommand = func(payload []byte) bool {
		self.t.Logf("mock command=%x", payload)
		return onCommand(payload)
	}
	if self.networkTimeout == 0 {
		self.networkTimeout = defaultNetworkTimeout
	}
	self.outState = make(chan []byte, self.outBuffer)
	self.outEvent = make(chan []byte, self.outBuffer)
	self.outResponse = make(chan []byte, self.outBuffer)
	return nil
}

func (self *transportMock) Close() {}

func (self *transportMock) send(ch chan<- []byte, kind string, payload []byte) bool {
	select {
	case ch <- payload:
		self.t.Logf("mock delivered %s=%x", kind, payload)
	case <-time.After(self.networkTimeout):
		self.t.Logf("mock network timeout")
		return false
	}
	return true
}

func (self *transportMock) SendState(payload []byte) bool {
	return self.send(self.outState, "state", payload)
}

func (self *transportMock) SendEvent(payload []byte) bool {
	return self.send(self.outEvent, "event", payload)
}

func (self *transportMock) SendResponse(payload []byte) bool {
	return self.send(self.outResponse, "response", payload)
}
