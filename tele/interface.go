package tele

import (
	"context"

	"github.com/temoto/mavgcs/gcs"
	"github.com/temoto/mavgcs/log2"
	tele_config "github.com/temoto/mavgcs/tele/config"
)

// Teler is telemetry client, ground station side.
type Teler interface {
	Init(context.Context, *log2.Log, tele_config.Config) error
	Attach(*gcs.Session)
	Close()
	Error(error)
	Event(gcs.Event)
	StatModify(func(*Stat))
}

type Noop struct{}

var _ Teler = Noop{} // compile-time interface test
var _ Teler = &Tele{}

func (Noop) Init(context.Context, *log2.Log, tele_config.Config) error { return nil }
func (Noop) Attach(*gcs.Session)                                       {}
func (Noop) Close()                                                    {}
func (Noop) Error(error)                                               {}
func (Noop) Event(gcs.Event)                                           {}
func (Noop) StatModify(func(*Stat))                                    {}

// Transporter delivers encoded payloads, true means delivered.
// onCommand returns false to request redelivery.
type Transporter interface {
	Init(ctx context.Context, log *log2.Log, teleConfig tele_config.Config, onCommand func([]byte) bool, willPayload []byte) error
	Close()
	SendState(payload []byte) bool
	SendEvent(payload []byte) bool
	SendResponse(payload []byte) bool
}
