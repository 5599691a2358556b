package state

import (
	"path/filepath"
	"sync"

	"github.com/hashicorp/hcl"
	"github.com/juju/errors"
	"github.com/temoto/mavgcs/gcs"
	"github.com/temoto/mavgcs/helpers"
	"github.com/temoto/mavgcs/link"
	"github.com/temoto/mavgcs/log2"
	"github.com/temoto/mavgcs/mission"
	tele_config "github.com/temoto/mavgcs/tele/config"
)

type Config struct {
	// includeSeen contains absolute paths to prevent include loops
	includeSeen map[string]struct{}
	// only used for Unmarshal, do not access
	XXX_Include []ConfigSource `hcl:"include"`

	LogDebug bool `hcl:"log_debug"`

	Link struct {
		// tcpout:host:port udpin:0.0.0.0:14550 serial:/dev/ttyACM0:57600
		Address     string `hcl:"address"`
		SystemID    int    `hcl:"system_id"`
		ComponentID int    `hcl:"component_id"`
		// send GCS heartbeat for session lifetime
		Heartbeat bool `hcl:"heartbeat"`
		// 0 waits for vehicle forever
		ReadTimeoutSec int `hcl:"read_timeout_sec"`
	}
	Mission struct {
		Sequence        string       `hcl:"sequence"`
		StallTimeoutSec int          `hcl:"stall_timeout_sec"`
		MaxRetries      int          `hcl:"max_retries"`
		InviteList      *bool        `hcl:"invite_list"`
		Items           []ItemConfig `hcl:"item"`
	}
	Persist struct {
		Root string `hcl:"root"`
		// keep last uploaded or downloaded mission
		Mission bool `hcl:"mission"`
	}
	Session struct {
		PollMs int `hcl:"poll_ms"`
		// negative disables warmup
		WarmupSec     int  `hcl:"warmup_sec"`
		AckTimeoutSec int  `hcl:"ack_timeout_sec"`
		EventsBuffer  int  `hcl:"events_buffer"`
		SkipGCS       bool `hcl:"skip_gcs"`
	}
	Tele tele_config.Config `hcl:"tele"`

	_copy_guard sync.Mutex //nolint:unused
}

type ConfigSource struct {
	Name     string `hcl:"name,key"`
	Optional bool   `hcl:"optional"`
}

// ItemConfig is one `item "name" {}` block of mission section.
// Items are numbered in file order.
type ItemConfig struct {
	Name         string  `hcl:"name,key"`
	Frame        string  `hcl:"frame"`
	Command      string  `hcl:"command"`
	Current      bool    `hcl:"current"`
	Autocontinue *bool   `hcl:"autocontinue"`
	Param1       float32 `hcl:"param1"`
	Param2       float32 `hcl:"param2"`
	Param3       float32 `hcl:"param3"`
	Param4       float32 `hcl:"param4"`
	X            float64 `hcl:"x"`
	Y            float64 `hcl:"y"`
	Z            float32 `hcl:"z"`
}

func (self *ItemConfig) Item(seq uint16) (mission.Item, error) {
	it := mission.Item{
		Seq:          seq,
		Frame:        link.FrameGlobalRelativeAlt,
		Current:      self.Current,
		Autocontinue: true,
		Param1:       self.Param1,
		Param2:       self.Param2,
		Param3:       self.Param3,
		Param4:       self.Param4,
		X:            self.X,
		Y:            self.Y,
		Z:            self.Z,
	}
	var err error
	if self.Frame != "" {
		if it.Frame, err = link.ParseFrame(self.Frame); err != nil {
			return it, errors.Annotatef(err, "mission item=%s", self.Name)
		}
	}
	if it.Command, err = link.ParseCommand(self.Command); err != nil {
		return it, errors.Annotatef(err, "mission item=%s", self.Name)
	}
	if self.Autocontinue != nil {
		it.Autocontinue = *self.Autocontinue
	}
	return it, nil
}

func (c *Config) LinkOptions() (link.Options, error) {
	opt := link.Options{}
	if c.Link.SystemID < 0 || c.Link.SystemID > 255 {
		return opt, errors.NotValidf("config: link.system_id=%d", c.Link.SystemID)
	}
	if c.Link.ComponentID < 0 || c.Link.ComponentID > 255 {
		return opt, errors.NotValidf("config: link.component_id=%d", c.Link.ComponentID)
	}
	opt.SystemID = uint8(c.Link.SystemID)
	opt.ComponentID = uint8(c.Link.ComponentID)
	return opt, nil
}

func (c *Config) MissionPolicy() (mission.Policy, error) {
	p := mission.DefaultPolicy()
	var err error
	if p.Sequence, err = mission.ParseSeqPolicy(c.Mission.Sequence); err != nil {
		return p, errors.Annotate(err, "config")
	}
	if c.Mission.StallTimeoutSec < 0 {
		return p, errors.NotValidf("config: mission.stall_timeout_sec=%d", c.Mission.StallTimeoutSec)
	}
	p.StallTimeout = helpers.IntSecondDefault(c.Mission.StallTimeoutSec, p.StallTimeout)
	if c.Mission.MaxRetries < 0 {
		return p, errors.NotValidf("config: mission.max_retries=%d", c.Mission.MaxRetries)
	}
	if c.Mission.MaxRetries != 0 {
		p.MaxRetries = c.Mission.MaxRetries
	}
	if c.Mission.InviteList != nil {
		p.InviteList = *c.Mission.InviteList
	}
	return p, nil
}

// MissionItems converts configured items, sequence numbers follow file order.
func (c *Config) MissionItems() ([]mission.Item, error) {
	items := make([]mission.Item, 0, len(c.Mission.Items))
	errs := make([]error, 0)
	for i := range c.Mission.Items {
		it, err := c.Mission.Items[i].Item(uint16(i))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		items = append(items, it)
	}
	if err := helpers.FoldErrors(errs); err != nil {
		return nil, err
	}
	if err := mission.Validate(items); err != nil {
		return nil, errors.Annotate(err, "config: mission")
	}
	return items, nil
}

func (c *Config) SessionConfig() (gcs.Config, error) {
	sc := gcs.DefaultConfig()
	sc.PollInterval = helpers.IntMillisecondDefault(c.Session.PollMs, sc.PollInterval)
	switch {
	case c.Session.WarmupSec < 0:
		sc.Warmup = 0
	default:
		sc.Warmup = helpers.IntSecondDefault(c.Session.WarmupSec, sc.Warmup)
	}
	sc.AckTimeout = helpers.IntSecondDefault(c.Session.AckTimeoutSec, sc.AckTimeout)
	if c.Session.EventsBuffer > 0 {
		sc.EventsBuffer = c.Session.EventsBuffer
	}
	sc.SkipGCS = c.Session.SkipGCS
	sc.ResolveTimeout = helpers.IntSecondDefault(c.Link.ReadTimeoutSec, 0)
	if c.Link.Heartbeat {
		sc.Heartbeat = gcs.DefaultHeartbeatInterval
	}
	var err error
	sc.Mission, err = c.MissionPolicy()
	return sc, err
}

func (c *Config) read(log *log2.Log, fs FullReader, source ConfigSource, errs *[]error) {
	norm := fs.Normalize(source.Name)
	if _, ok := c.includeSeen[norm]; ok {
		*errs = append(*errs, errors.Errorf("config duplicate source=%s", source.Name))
		return
	}
	log.Debugf("config reading source='%s' path=%s", source.Name, norm)
	c.includeSeen[source.Name] = struct{}{}
	c.includeSeen[norm] = struct{}{}

	bs, err := fs.ReadAll(norm)
	if bs == nil && err == nil && !source.Optional {
		*errs = append(*errs, errors.NotFoundf("config required name=%s path=%s", source.Name, norm))
		return
	}
	if err != nil {
		*errs = append(*errs, errors.Annotatef(err, "config source=%s", source.Name))
		return
	}

	if err = hcl.Unmarshal(bs, c); err != nil {
		*errs = append(*errs, errors.Annotatef(err, "config unmarshal source=%s", source.Name))
		return
	}

	var includes []ConfigSource
	includes, c.XXX_Include = c.XXX_Include, nil
	for _, include := range includes {
		includeNorm := fs.Normalize(include.Name)
		if _, ok := c.includeSeen[includeNorm]; ok {
			*errs = append(*errs, errors.Errorf("config include loop: from=%s include=%s", source.Name, include.Name))
			continue
		}
		c.read(log, fs, include, errs)
	}
}

func ReadConfig(log *log2.Log, fs FullReader, names ...string) (*Config, error) {
	if len(names) == 0 {
		log.Fatal("code error [Must]ReadConfig() without names")
	}

	if osfs, ok := fs.(*OsFullReader); ok {
		dir, name := filepath.Split(names[0])
		osfs.SetBase(dir)
		names[0] = name
	}
	c := &Config{
		includeSeen: make(map[string]struct{}),
	}
	errs := make([]error, 0, 8)
	for _, name := range names {
		c.read(log, fs, ConfigSource{Name: name}, &errs)
	}
	return c, helpers.FoldErrors(errs)
}

func MustReadConfig(log *log2.Log, fs FullReader, names ...string) *Config {
	c, err := ReadConfig(log, fs, names...)
	if err != nil {
		log.Fatal(errors.ErrorStack(err))
	}
	return c
}
