package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/juju/errors"
	"github.com/temoto/mavgcs/cmd/mavgcs/action"
	"github.com/temoto/mavgcs/cmd/mavgcs/console"
	"github.com/temoto/mavgcs/cmd/mavgcs/monitor"
	"github.com/temoto/mavgcs/cmd/mavgcs/subcmd"
	"github.com/temoto/mavgcs/log2"
	"github.com/temoto/mavgcs/state"
	"github.com/temoto/mavgcs/tele"
)

var log = log2.NewStderr(log2.LDebug)

// set by script/build
var BuildVersion string = "unknown"

func modules() []subcmd.Mod {
	mods := []subcmd.Mod{
		monitor.Mod,
		monitor.HeartbeatMod,
		console.Mod,
		{Name: "version", Usage: "print build version", Main: func(context.Context, *state.Config, []string) error {
			fmt.Printf("mavgcs %s\n", BuildVersion)
			return nil
		}},
	}
	return append(mods, action.Mods()...)
}

func main() {
	mods := modules()
	flagset := flag.NewFlagSet("mavgcs", flag.ContinueOnError)
	flagConfig := flagset.String("config", "mavgcs.hcl", "")
	flagset.Usage = func() {
		fmt.Fprintf(flagset.Output(), "Usage: mavgcs [option] command [arg...]\n\nOptions:\n")
		flagset.PrintDefaults()
		fmt.Fprintf(flagset.Output(), "\nCommands:\n%s\n", subcmd.Help(mods))
	}
	if err := flagset.Parse(os.Args[1:]); err != nil {
		if err == flag.ErrHelp {
			os.Exit(0)
		}
		os.Exit(2)
	}

	mod, err := subcmd.Parse(flagset.Arg(0), mods)
	if err != nil {
		flagset.Usage()
		log.Fatal(err)
	}

	if subcmd.SdNotify("start") {
		// we're under systemd, assume systemd journal logging, remove timestamp
		log.SetFlags(log2.LServiceFlags)
	} else {
		log.SetFlags(log2.LInteractiveFlags)
	}
	log.Debugf("mavgcs version=%s starting command=%s", BuildVersion, mod.Name)

	config := state.MustReadConfig(log, state.NewOsFullReader("."), *flagConfig)
	if !config.LogDebug {
		log.SetLevel(log2.LInfo)
	}
	ctx, g := state.NewContext(log, new(tele.Tele))
	g.BuildVersion = BuildVersion

	if err := mod.Main(ctx, config, flagset.Args()[1:]); err != nil {
		log.Fatal(errors.ErrorStack(err))
	}
}
