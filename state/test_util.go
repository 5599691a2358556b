package state

import (
	"context"
	"testing"

	"github.com/temoto/mavgcs/link"
	"github.com/temoto/mavgcs/log2"
	"github.com/temoto/mavgcs/tele"
)

// NewTestContext reads inline config and sets mock link.
// Push vehicle traffic to mock before g.Connect.
func NewTestContext(t testing.TB, confString string) (context.Context, *Global, *link.MockConn) {
	fs := NewMockFullReader(map[string]string{
		"test-inline": confString,
	})

	log := log2.NewTest(t, log2.LDebug)
	// log := log2.NewStderr(log2.LDebug) // useful with panics
	log.SetFlags(log2.LTestFlags)
	ctx, g := NewContext(log, tele.Noop{})
	conf := MustReadConfig(log, fs, "test-inline")
	if conf.Persist.Root == "" {
		conf.Persist.Root = t.TempDir()
	}
	g.MustInit(ctx, conf)

	mock := link.NewMockConn()
	g.Link = mock
	return ctx, g, mock
}
