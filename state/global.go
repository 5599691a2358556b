package state

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/juju/errors"
	"github.com/temoto/alive/v2"
	"github.com/temoto/mavgcs/gcs"
	"github.com/temoto/mavgcs/helpers"
	"github.com/temoto/mavgcs/link"
	"github.com/temoto/mavgcs/log2"
	"github.com/temoto/mavgcs/mission"
	"github.com/temoto/mavgcs/tele"
)

type Global struct {
	Alive        *alive.Alive
	BuildVersion string
	Config       *Config
	Log          *log2.Log
	Tele         tele.Teler
	Link         link.Conn
	Session      *gcs.Session

	// parsed in Init
	SessionConfig gcs.Config
	LinkOptions   link.Options
	Mission       []mission.Item

	MissionCache MissionCache

	lk        sync.Mutex
	connectMu sync.Mutex
	closeOnce sync.Once
}

const ContextKey = "run/state-global"

func GetGlobal(ctx context.Context) *Global {
	v := ctx.Value(ContextKey)
	if v == nil {
		panic(fmt.Sprintf("context['%s'] is nil", ContextKey))
	}
	if g, ok := v.(*Global); ok {
		return g
	}
	panic(fmt.Sprintf("context['%s'] expected type *Global actual=%#v", ContextKey, v))
}

func NewContext(log *log2.Log, teler tele.Teler) (context.Context, *Global) {
	if log == nil {
		panic("code error NewContext() log=nil")
	}

	g := &Global{
		Alive: alive.NewAlive(),
		Log:   log,
		Tele:  teler,
	}
	ctx := context.Background()
	ctx = context.WithValue(ctx, log2.ContextKey, log)
	ctx = context.WithValue(ctx, ContextKey, g)

	return ctx, g
}

// If `Init` fails, consider `Global` is in broken state.
func (g *Global) Init(ctx context.Context, cfg *Config) error {
	g.Config = cfg

	if g.Config.LogDebug {
		g.Log.SetLevel(log2.LDebug)
	}
	if g.Config.Persist.Root == "" {
		g.Config.Persist.Root = "./tmp-mavgcs-db"
		g.Log.Debugf("config: persist.root=empty changed=%s", g.Config.Persist.Root)
	}

	// Since tele is remote error reporting mechanism, it must be inited before anything else
	if g.Config.Tele.PersistPath == "" {
		g.Config.Tele.PersistPath = filepath.Join(g.Config.Persist.Root, "tele")
	}
	if err := g.Tele.Init(ctx, g.Log, g.Config.Tele); err != nil {
		return errors.Annotate(err, "tele init")
	}

	errs := make([]error, 0)
	var err error
	if g.LinkOptions, err = g.Config.LinkOptions(); err != nil {
		errs = append(errs, err)
	}
	if g.SessionConfig, err = g.Config.SessionConfig(); err != nil {
		errs = append(errs, err)
	}
	if g.Mission, err = g.Config.MissionItems(); err != nil {
		errs = append(errs, err)
	}
	err = g.MissionCache.Persist.Init("mission", &g.MissionCache, g.Config.Persist.Root, g.Config.Persist.Mission, g.Log)
	if err == nil {
		_, err = g.MissionCache.Persist.Load()
	}
	if err != nil {
		g.Error(err)
		errs = append(errs, err)
	}
	return helpers.FoldErrors(errs)
}

func (g *Global) MustInit(ctx context.Context, cfg *Config) {
	err := g.Init(ctx, cfg)
	if err != nil {
		g.Log.Fatal(errors.ErrorStack(err))
	}
}

// Dial opens configured link unless already set.
func (g *Global) Dial() (link.Conn, error) {
	g.lk.Lock()
	defer g.lk.Unlock()
	if g.Link != nil {
		return g.Link, nil
	}
	if g.Config.Link.Address == "" {
		return nil, errors.NotValidf("config: link.address=empty")
	}
	node, err := link.Dial(g.Log, g.Config.Link.Address, g.LinkOptions)
	if err != nil {
		return nil, errors.Trace(err)
	}
	g.Link = node
	return node, nil
}

// Connect dials link, resolves vehicle and starts session reporting to tele.
func (g *Global) Connect(ctx context.Context) (*gcs.Session, error) {
	conn, err := g.Dial()
	if err != nil {
		return nil, errors.Annotate(err, "connect")
	}

	// one session per link, it is the only reader
	g.connectMu.Lock()
	defer g.connectMu.Unlock()
	g.lk.Lock()
	s := g.Session
	g.lk.Unlock()
	if s != nil {
		return s, nil
	}
	s, err = gcs.Open(ctx, g.Log, conn, g.SessionConfig)
	if err != nil {
		return nil, errors.Annotate(err, "connect")
	}
	g.Tele.Attach(s)
	g.lk.Lock()
	g.Session = s
	g.lk.Unlock()

	if !g.Alive.Add(1) {
		return s, nil
	}
	go func() {
		defer g.Alive.Done()
		select {
		case <-s.Done():
			if err := s.Err(); err != nil {
				g.Error(err, "session vehicle=%s", s.Target())
			}
		case <-g.Alive.StopChan():
		}
	}()
	return s, nil
}

// TransferMission runs intent on connected session and caches result.
func (g *Global) TransferMission(ctx context.Context, in gcs.Intent) ([]mission.Item, error) {
	g.lk.Lock()
	s := g.Session
	g.lk.Unlock()
	if s == nil {
		return nil, errors.NotFoundf("vehicle session")
	}
	items, err := s.Mission(ctx, in)
	if err != nil {
		return nil, errors.Annotatef(err, "mission %s", in.Direction)
	}
	if in.Direction == mission.Upload {
		items = in.Items
	}
	if err := g.MissionCache.Set(s.Target(), items); err != nil {
		g.Error(err)
	}
	return items, nil
}

func (g *Global) Error(err error, args ...interface{}) {
	if err != nil {
		if len(args) != 0 {
			msg := args[0].(string)
			args = args[1:]
			err = errors.Annotatef(err, msg, args...)
		}
		g.Log.Errorf(errors.ErrorStack(err))
		g.Tele.Error(err)
	}
}

// Close stops session, tele and link in that order.
func (g *Global) Close() error {
	var err error
	g.closeOnce.Do(func() {
		g.Alive.Stop()
		g.lk.Lock()
		s, conn := g.Session, g.Link
		g.lk.Unlock()
		if s != nil {
			_ = s.Close()
		}
		g.Alive.Wait()
		g.Tele.Close()
		if conn != nil {
			err = conn.Close()
		}
	})
	return errors.Trace(err)
}
