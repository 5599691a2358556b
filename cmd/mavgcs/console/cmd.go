// Package console is interactive shell over one vehicle session.
package console

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	prompt "github.com/c-bata/go-prompt"
	"github.com/juju/errors"
	"github.com/temoto/mavgcs/cmd/mavgcs/action"
	"github.com/temoto/mavgcs/cmd/mavgcs/subcmd"
	"github.com/temoto/mavgcs/gcs"
	"github.com/temoto/mavgcs/helpers/cli"
	"github.com/temoto/mavgcs/state"
)

const modName = "console"

const usageHead = `syntax: ACTION [ARG...] [/loop=N]
(meta)
- help     this text
- /loop=N  repeat N times
(actions)
`

var Mod = subcmd.Mod{Name: modName, Usage: "interactive shell, actions as below", Main: Main}

func Main(ctx context.Context, config *state.Config, args []string) error {
	g := state.GetGlobal(ctx)
	g.MustInit(ctx, config)
	defer g.Close()

	s, err := action.Connect(ctx, g)
	if err != nil {
		return errors.Annotate(err, modName)
	}
	g.Log.Infof("console vehicle=%s, type help", s.Target())

	return cli.MainLoop(ctx, "mavgcs", newExecutor(g, s), newCompleter())
}

func usage() string {
	var b strings.Builder
	b.WriteString(usageHead)
	for _, a := range action.List {
		fmt.Fprintf(&b, "- %-17s %s\n", a.Name, a.Usage)
	}
	return b.String()
}

func newCompleter() cli.CompleteFunc {
	suggests := make([]prompt.Suggest, 0, len(action.List)+1)
	for _, a := range action.List {
		suggests = append(suggests, prompt.Suggest{Text: a.Name, Description: a.Usage})
	}
	suggests = append(suggests, prompt.Suggest{Text: "help"})

	return func(d prompt.Document) []prompt.Suggest {
		// complete only action name, first word
		if strings.Contains(strings.TrimLeft(d.TextBeforeCursor(), " "), " ") {
			return nil
		}
		return cli.Suggest(d, suggests)
	}
}

func newExecutor(g *state.Global, s *gcs.Session) cli.ExecFunc {
	return func(ctx context.Context, line string) {
		if err := execLine(ctx, g, s, line); err != nil {
			g.Log.Errorf(errors.ErrorStack(err))
		}
	}
}

func execLine(ctx context.Context, g *state.Global, s *gcs.Session, line string) error {
	words := strings.Fields(line)
	if len(words) == 0 {
		return nil
	}

	loopn := uint64(1)
	rest := make([]string, 0, len(words))
	for _, word := range words {
		switch {
		case word == "help" || word == "/help":
			g.Log.Infof("%s", usage())
			return nil
		case strings.HasPrefix(word, "/loop="):
			i, err := strconv.ParseUint(word[6:], 10, 32)
			if err != nil {
				return errors.Annotatef(err, "word=%s", word)
			}
			loopn = i
		default:
			rest = append(rest, word)
		}
	}
	if len(rest) == 0 {
		return errors.NotValidf("line=%q without action", line)
	}
	a, ok := action.Find(rest[0])
	if !ok {
		return errors.NotFoundf("action=%s", rest[0])
	}

	for i := uint64(0); i < loopn; i++ {
		tbegin := time.Now()
		err := a.Run(ctx, g, s, rest[1:])
		g.Log.Infof("%s duration=%v", a.Name, time.Since(tbegin))
		if err != nil {
			return errors.Annotatef(err, "%s", line)
		}
	}
	return nil
}
