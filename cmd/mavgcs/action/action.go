// Package action is vehicle operations shared by sub-commands and console.
package action

import (
	"context"
	"sort"
	"strconv"
	"time"

	"github.com/juju/errors"
	"github.com/temoto/mavgcs/cmd/mavgcs/subcmd"
	"github.com/temoto/mavgcs/gcs"
	"github.com/temoto/mavgcs/mission"
	"github.com/temoto/mavgcs/state"
)

type Func func(ctx context.Context, g *state.Global, s *gcs.Session, args []string) error

type Action struct {
	Name  string
	Usage string
	Run   Func
}

var List = []Action{
	{"arm", "arm motors", doArm},
	{"disarm", "disarm motors", doDisarm},
	{"mode", "MODE  set flight mode, one of STABILIZE ACRO ALT_HOLD AUTO GUIDED LOITER RTL", doMode},
	{"param-get", "ID  read parameter", doParamGet},
	{"param-set", "ID VALUE  write parameter", doParamSet},
	{"param-list", "read all parameters", doParamList},
	{"mission-download", "read mission from vehicle", doMissionDownload},
	{"mission-upload", "[cached]  write configured or last cached mission to vehicle", doMissionUpload},
	{"status", "print last heartbeat state", doStatus},
}

func Find(name string) (Action, bool) {
	for _, a := range List {
		if a.Name == name {
			return a, true
		}
	}
	return Action{}, false
}

// Mod runs action once on freshly connected session.
func Mod(a Action) subcmd.Mod {
	return subcmd.Mod{Name: a.Name, Usage: a.Usage, Main: func(ctx context.Context, config *state.Config, args []string) error {
		g := state.GetGlobal(ctx)
		g.MustInit(ctx, config)
		defer g.Close()

		s, err := Connect(ctx, g)
		if err != nil {
			return err
		}
		return a.Run(ctx, g, s, args)
	}}
}

func Mods() []subcmd.Mod {
	mods := make([]subcmd.Mod, len(List))
	for i, a := range List {
		mods[i] = Mod(a)
	}
	return mods
}

// Connect starts session and waits warmup delay.
func Connect(ctx context.Context, g *state.Global) (*gcs.Session, error) {
	s, err := g.Connect(ctx)
	if err != nil {
		return nil, err
	}
	if err = s.Warmup(ctx); err != nil {
		return nil, errors.Annotate(err, "warmup")
	}
	return s, nil
}

func doArm(ctx context.Context, g *state.Global, s *gcs.Session, args []string) error {
	return s.Arm(ctx)
}

func doDisarm(ctx context.Context, g *state.Global, s *gcs.Session, args []string) error {
	return s.Disarm(ctx)
}

func doMode(ctx context.Context, g *state.Global, s *gcs.Session, args []string) error {
	arg, err := subcmd.ArgN(args, 0, "mode")
	if err != nil {
		return err
	}
	mode, err := gcs.ParseFlightMode(arg)
	if err != nil {
		return err
	}
	return s.SetMode(ctx, mode)
}

func doParamGet(ctx context.Context, g *state.Global, s *gcs.Session, args []string) error {
	id, err := subcmd.ArgN(args, 0, "id")
	if err != nil {
		return err
	}
	v, err := s.ParamGet(ctx, id)
	if err != nil {
		return err
	}
	g.Log.Infof("%s=%v", v.ID, v.Value)
	return nil
}

func doParamSet(ctx context.Context, g *state.Global, s *gcs.Session, args []string) error {
	id, err := subcmd.ArgN(args, 0, "id")
	if err != nil {
		return err
	}
	arg, err := subcmd.ArgN(args, 1, "value")
	if err != nil {
		return err
	}
	f, err := strconv.ParseFloat(arg, 32)
	if err != nil {
		return errors.NotValidf("param %s value=%q", id, arg)
	}
	v, err := s.ParamSet(ctx, id, float32(f))
	if err != nil {
		return err
	}
	g.Log.Infof("%s=%v", v.ID, v.Value)
	return nil
}

func doParamList(ctx context.Context, g *state.Global, s *gcs.Session, args []string) error {
	list, err := s.ParamList(ctx)
	sort.Slice(list, func(a, b int) bool { return list[a].Index < list[b].Index })
	for _, v := range list {
		g.Log.Infof("%d/%d %s=%v", v.Index, v.Count, v.ID, v.Value)
	}
	return err
}

func doMissionDownload(ctx context.Context, g *state.Global, s *gcs.Session, args []string) error {
	items, err := g.TransferMission(ctx, gcs.Intent{Direction: mission.Download})
	if err != nil {
		return err
	}
	g.Log.Infof("mission items=%d", len(items))
	for _, it := range items {
		g.Log.Infof("%d %s %s x=%.8f y=%.8f z=%.2f", it.Seq, it.Frame, it.Command, it.X, it.Y, it.Z)
	}
	return nil
}

func doMissionUpload(ctx context.Context, g *state.Global, s *gcs.Session, args []string) error {
	items := g.Mission
	if len(args) != 0 && args[0] == "cached" {
		vehicle, cached, ok := g.MissionCache.Get()
		if !ok {
			return errors.NotFoundf("cached mission")
		}
		g.Log.Debugf("mission cached from vehicle=%s", vehicle)
		items = cached
	}
	if len(items) == 0 {
		return errors.NotValidf("mission items=empty")
	}
	if _, err := g.TransferMission(ctx, gcs.Intent{Direction: mission.Upload, Items: items}); err != nil {
		return err
	}
	g.Log.Infof("mission uploaded items=%d", len(items))
	return nil
}

func doStatus(ctx context.Context, g *state.Global, s *gcs.Session, args []string) error {
	m := s.Monitor()
	armed, ok := m.Armed()
	if !ok {
		g.Log.Infof("vehicle=%s no heartbeat yet", s.Target())
		return nil
	}
	mode, _ := m.Mode()
	g.Log.Infof("vehicle=%s armed=%t mode=%s last_seen=%s ago",
		s.Target(), armed, mode, time.Since(m.LastSeen()).Truncate(time.Millisecond))
	return nil
}
