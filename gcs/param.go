package gcs

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/juju/errors"
	"github.com/temoto/mavgcs/helpers"
	"github.com/temoto/mavgcs/link"
)

type paramWaiter struct {
	id string
	f  *helpers.Future
}

// paramList collects PARAM_VALUE stream after PARAM_REQUEST_LIST.
type paramList struct {
	values  map[uint16]link.ParamValue
	count   int // 0 until first value
	updated chan struct{}
	done    *helpers.Future
}

type paramWaiters struct {
	mu      sync.Mutex
	waiters []*paramWaiter
	lists   []*paramList
}

func paramID(s string) string { return strings.TrimRight(s, "\x00") }

func (self *paramWaiters) expect(id string) *paramWaiter {
	w := &paramWaiter{id: id, f: helpers.NewFuture()}
	self.mu.Lock()
	self.waiters = append(self.waiters, w)
	self.mu.Unlock()
	return w
}

func (self *paramWaiters) collect() *paramList {
	l := &paramList{
		values:  make(map[uint16]link.ParamValue),
		updated: make(chan struct{}, 1),
		done:    helpers.NewFuture(),
	}
	self.mu.Lock()
	self.lists = append(self.lists, l)
	self.mu.Unlock()
	return l
}

func (self *paramWaiters) forget(w *paramWaiter, l *paramList) {
	self.mu.Lock()
	defer self.mu.Unlock()
	for i, x := range self.waiters {
		if x == w {
			self.waiters = append(self.waiters[:i:i], self.waiters[i+1:]...)
			break
		}
	}
	for i, x := range self.lists {
		if x == l {
			self.lists = append(self.lists[:i:i], self.lists[i+1:]...)
			break
		}
	}
}

func (self *paramWaiters) deliver(v link.ParamValue) {
	v.ID = paramID(v.ID)
	self.mu.Lock()
	defer self.mu.Unlock()
	keep := self.waiters[:0]
	for _, w := range self.waiters {
		if w.id == v.ID {
			w.f.Complete(v)
		} else {
			keep = append(keep, w)
		}
	}
	self.waiters = keep
	lists := self.lists[:0]
	for _, l := range self.lists {
		l.values[v.Index] = v
		l.count = int(v.Count)
		if len(l.values) >= l.count {
			l.done.Complete(l.sorted())
			continue
		}
		select {
		case l.updated <- struct{}{}:
		default:
		}
		lists = append(lists, l)
	}
	self.lists = lists
}

func (self *paramWaiters) cancelAll(reason error) {
	self.mu.Lock()
	defer self.mu.Unlock()
	for _, w := range self.waiters {
		w.f.Cancel(reason)
	}
	for _, l := range self.lists {
		l.done.Cancel(reason)
	}
	self.waiters, self.lists = nil, nil
}

func (self *paramList) sorted() []link.ParamValue {
	out := make([]link.ParamValue, 0, len(self.values))
	for _, v := range self.values {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

func checkParamID(id string) error {
	if id == "" || len(id) > link.ParamIDLen {
		return errors.NotValidf("param id=%q", id)
	}
	return nil
}

// ParamGet reads parameter by name.
func (self *Session) ParamGet(ctx context.Context, id string) (link.ParamValue, error) {
	if err := checkParamID(id); err != nil {
		return link.ParamValue{}, err
	}
	w := self.params.expect(id)
	defer self.params.forget(w, nil)
	if err := self.conn.SendDefault(link.ParamRequestRead{Target: self.target, ID: id, Index: -1}); err != nil {
		return link.ParamValue{}, errors.Annotatef(err, "param get %s", id)
	}
	return self.waitParam(ctx, w, "param get "+id)
}

// ParamSet writes REAL32 parameter and returns value echoed by vehicle.
func (self *Session) ParamSet(ctx context.Context, id string, value float32) (link.ParamValue, error) {
	if err := checkParamID(id); err != nil {
		return link.ParamValue{}, err
	}
	w := self.params.expect(id)
	defer self.params.forget(w, nil)
	m := link.ParamSet{Target: self.target, ID: id, Value: value, Type: link.ParamReal32}
	if err := self.conn.SendDefault(m); err != nil {
		return link.ParamValue{}, errors.Annotatef(err, "param set %s", id)
	}
	return self.waitParam(ctx, w, "param set "+id)
}

func (self *Session) waitParam(ctx context.Context, w *paramWaiter, what string) (link.ParamValue, error) {
	ctx, cancel := context.WithTimeout(ctx, self.config.AckTimeout)
	defer cancel()
	v, ok := w.f.Wait(ctx)
	if ok {
		return v.(link.ParamValue), nil
	}
	if v == context.DeadlineExceeded {
		return link.ParamValue{}, errors.Timeoutf("%s", what)
	}
	err, _ := v.(error)
	return link.ParamValue{}, errors.Annotate(err, what)
}

// ParamList requests all parameters. Collection ends when every announced
// index arrived; AckTimeout without new values returns partial list and timeout error.
func (self *Session) ParamList(ctx context.Context) ([]link.ParamValue, error) {
	l := self.params.collect()
	defer self.params.forget(nil, l)
	if err := self.conn.SendDefault(link.ParamRequestList{Target: self.target}); err != nil {
		return nil, errors.Annotate(err, "param list")
	}
	for {
		tmr := time.NewTimer(self.config.AckTimeout)
		select {
		case <-l.done.Completed():
			tmr.Stop()
			return l.done.Result().([]link.ParamValue), nil
		case <-l.done.Cancelled():
			tmr.Stop()
			err, _ := l.done.Result().(error)
			return nil, errors.Annotate(err, "param list")
		case <-l.updated:
			tmr.Stop()
		case <-tmr.C:
			return self.partial(l), errors.Timeoutf("param list")
		case <-ctx.Done():
			tmr.Stop()
			return self.partial(l), errors.Trace(ctx.Err())
		}
	}
}

func (self *Session) partial(l *paramList) []link.ParamValue {
	self.params.mu.Lock()
	defer self.params.mu.Unlock()
	return l.sorted()
}
