package cli

import (
	"bufio"
	"context"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/c-bata/go-prompt"
	"github.com/juju/errors"
	"github.com/mattn/go-isatty"
)

type ExecFunc func(ctx context.Context, line string)
type CompleteFunc = prompt.Completer

// MainLoop reads commands from terminal prompt or piped stdin.
// Signals cancel ctx passed to exec, second signal exits.
func MainLoop(ctx context.Context, tag string, exec ExecFunc, complete CompleteFunc) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh,
		syscall.SIGHUP,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT)
	defer signal.Stop(signalCh)
	go func() {
		n := 0
		for range signalCh {
			n++
			cancel()
			if n > 1 {
				os.Exit(1)
			}
		}
	}()

	if isatty.IsTerminal(os.Stdin.Fd()) {
		p := prompt.New(
			func(line string) { exec(ctx, line) },
			complete,
			prompt.OptionPrefix(tag+"> "),
			prompt.OptionTitle(tag),
		)
		p.Run()
		return nil
	}
	return ReadLines(ctx, os.Stdin, exec)
}

// ReadLines feeds non-empty trimmed lines to exec until EOF or ctx done.
func ReadLines(ctx context.Context, r io.Reader, exec ExecFunc) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		exec(ctx, line)
	}
	return errors.Annotate(scanner.Err(), "stdin")
}

// Suggest filters candidates by word before cursor.
func Suggest(d prompt.Document, candidates []prompt.Suggest) []prompt.Suggest {
	return prompt.FilterFuzzy(candidates, d.GetWordBeforeCursor(), true)
}
