// Package monitor is long running sub-command: keeps session with vehicle,
// logs events and reports them to tele until stopped.
package monitor

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/daemon"
	"github.com/juju/errors"
	"github.com/temoto/mavgcs/cmd/mavgcs/subcmd"
	"github.com/temoto/mavgcs/gcs"
	"github.com/temoto/mavgcs/state"
)

var Mod = subcmd.Mod{Name: "monitor", Usage: "log vehicle events until signal, report to tele", Main: Main}
var HeartbeatMod = subcmd.Mod{Name: "heartbeat", Usage: "[interval]  only announce ground station, default 1s", Main: MainHeartbeat}

func Main(ctx context.Context, config *state.Config, args []string) error {
	g := state.GetGlobal(ctx)
	g.MustInit(ctx, config)
	defer g.Close()
	g.Log.Debugf("config=%+v", g.Config)

	ctx, cancel := withSignal(ctx, g)
	defer cancel()

	subcmd.SdNotify("connecting")
	s, err := g.Connect(ctx)
	if err != nil {
		return errors.Annotate(err, "monitor")
	}
	subcmd.SdNotify(daemon.SdNotifyReady)
	g.Log.Infof("monitor vehicle=%s", s.Target())
	return Run(ctx, g, s)
}

// Run logs session events until ctx is done or session ends.
func Run(ctx context.Context, g *state.Global, s *gcs.Session) error {
	for {
		select {
		case e := <-s.Events():
			switch e.Kind {
			case gcs.EventPosition, gcs.EventAttitude:
				g.Log.Debugf("%s", e.String())
			case gcs.EventHeartbeat:
				if e.Changed {
					g.Log.Infof("%s", e.String())
				}
			default:
				g.Log.Infof("%s", e.String())
			}
		case <-s.Done():
			return errors.Annotate(s.Err(), "monitor")
		case <-ctx.Done():
			return nil
		}
	}
}

func MainHeartbeat(ctx context.Context, config *state.Config, args []string) error {
	g := state.GetGlobal(ctx)
	g.MustInit(ctx, config)
	defer g.Close()

	interval := gcs.DefaultHeartbeatInterval
	if len(args) != 0 {
		var err error
		if interval, err = time.ParseDuration(args[0]); err != nil || interval <= 0 {
			return errors.NotValidf("heartbeat interval=%q", args[0])
		}
	}
	conn, err := g.Dial()
	if err != nil {
		return errors.Annotate(err, "heartbeat")
	}
	ctx, cancel := withSignal(ctx, g)
	defer cancel()
	subcmd.SdNotify(daemon.SdNotifyReady)
	err = gcs.Heartbeat(ctx, g.Log, conn, interval)
	if errors.Cause(err) == context.Canceled {
		return nil
	}
	return err
}

func withSignal(ctx context.Context, g *state.Global) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		defer signal.Stop(sigs)
		select {
		case sig := <-sigs:
			g.Log.Infof("signal=%v, stopping", sig)
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
