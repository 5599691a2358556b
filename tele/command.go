package tele

import (
	"context"

	structpb "github.com/golang/protobuf/ptypes/struct"
	"github.com/juju/errors"
	"github.com/temoto/mavgcs/gcs"
	"github.com/temoto/mavgcs/mission"
)

// Remote command names, see Command.
const (
	CmdReport          = "report"
	CmdArm             = "arm"
	CmdDisarm          = "disarm"
	CmdMode            = "mode"
	CmdParamGet        = "param-get"
	CmdParamSet        = "param-set"
	CmdMissionDownload = "mission-download"
	CmdMissionUpload   = "mission-upload"
)

// Returns false only when tele is stopping, so broker redelivers command later.
func (self *Tele) onCommandMessage(ctx context.Context, payload []byte) bool {
	self.stat.Lock()
	self.stat.Commands++
	self.stat.Unlock()

	cmd, err := ParseCommand(payload)
	if err != nil {
		self.log.Errorf("tele command parse raw=%x err=%v", payload, err)
		self.CommandReply(cmd, nil, err)
		return true
	}
	self.log.Debugf("tele command=%s arg=%s", cmd.Name, cmd.Arg)

	// vehicle protocol takes seconds, do not hold MQTT client
	if !self.alive.Add(1) {
		return false
	}
	go func() {
		defer self.alive.Done()
		result, err := self.dispatchCommand(ctx, cmd)
		if err != nil {
			self.log.Errorf("tele command=%s err=%v", cmd.Name, err)
		}
		self.CommandReply(cmd, result, err)
	}()
	return true
}

func (self *Tele) dispatchCommand(ctx context.Context, cmd Command) (*structpb.Struct, error) {
	if cmd.Name == CmdReport {
		self.notifyState()
		return nil, nil
	}
	s := self.attached()
	if s == nil {
		return nil, errors.NotFoundf("vehicle session")
	}

	switch cmd.Name {
	case CmdArm:
		return nil, s.Arm(ctx)

	case CmdDisarm:
		return nil, s.Disarm(ctx)

	case CmdMode:
		mode, err := gcs.ParseFlightMode(cmd.Arg)
		if err != nil {
			return nil, err
		}
		return nil, s.SetMode(ctx, mode)

	case CmdParamGet:
		v, err := s.ParamGet(ctx, cmd.Arg)
		if err != nil {
			return nil, err
		}
		return paramStruct(v), nil

	case CmdParamSet:
		v, err := s.ParamSet(ctx, cmd.Arg, float32(cmd.Value))
		if err != nil {
			return nil, err
		}
		return paramStruct(v), nil

	case CmdMissionDownload:
		items, err := s.Mission(ctx, gcs.Intent{Direction: mission.Download})
		if err != nil {
			return nil, err
		}
		return MissionStruct(s.Target(), items), nil

	case CmdMissionUpload:
		if _, err := s.Mission(ctx, gcs.Intent{Direction: mission.Upload, Items: cmd.Items}); err != nil {
			return nil, err
		}
		return pbStruct(fields{"count": len(cmd.Items)}), nil
	}
	return nil, errors.NotSupportedf("command=%q", cmd.Name)
}
