// Package persist keeps small state blobs on local disk between runs.
package persist

import (
	"encoding"
	"encoding/binary"
	"io"
	"path/filepath"
	"sync"
	"time"

	"github.com/juju/errors"
	"github.com/temoto/extremofile"
	"github.com/temoto/mavgcs/log2"
)

type Stater interface {
	encoding.BinaryMarshaler
	encoding.BinaryUnmarshaler
}

type storage interface {
	Read() ([]byte, error)
	io.Writer
}

// Persist binds Stater to extremofile directory `root/tag`.
// Zero value and disabled Persist are no-op.
type Persist struct {
	sync.Mutex
	log     *log2.Log
	tag     string
	target  Stater
	storage storage
	// storage overwrites without truncate, frames never shrink
	frameSize int
}

const frameBlock = 512

func (p *Persist) Init(tag string, target Stater, root string, enabled bool, log *log2.Log) error {
	p.tag = tag
	p.log = log
	if !enabled {
		p.log.Debugf("persist %s disabled", p.tag)
		return nil
	}
	if root == "" {
		return errors.NotValidf("persist %s enabled but root=empty", p.tag)
	}
	if target == nil {
		panic("code error persist target nil")
	}
	p.target = target
	p.storage = extremofile.New(extremofile.Config{
		Dir:      filepath.Join(root, tag),
		DirPerm:  0755,
		FilePerm: 0644,
	})
	return nil
}

func (p *Persist) Enabled() bool { return p.storage != nil }

// Load returns found=false when nothing was stored yet.
func (p *Persist) Load() (found bool, err error) {
	if p.storage == nil {
		return false, nil
	}
	p.Lock()
	defer p.Unlock()
	tbegin := time.Now()
	b, err := p.storage.Read()
	p.log.Debugf("persist %s read duration=%v size=%d", p.tag, time.Since(tbegin), len(b))
	if b == nil {
		return false, errors.Annotatef(err, "persist %s load", p.tag)
	}
	if err != nil {
		// main copy is broken, data came from backup
		p.log.Errorf("persist %s ignore non-critical storage err=%v", p.tag, err)
	}
	p.frameSize = len(b)
	data, err := unframe(b)
	if err != nil {
		return false, errors.Annotatef(err, "persist %s load", p.tag)
	}
	return true, errors.Annotatef(p.target.UnmarshalBinary(data), "persist %s load", p.tag)
}

func (p *Persist) Store() error {
	if p.storage == nil {
		return nil
	}
	p.Lock()
	defer p.Unlock()
	b, err := p.target.MarshalBinary()
	if err != nil {
		return errors.Annotatef(err, "persist %s store", p.tag)
	}
	b = p.frame(b)
	tbegin := time.Now()
	_, err = p.storage.Write(b)
	p.log.Debugf("persist %s write duration=%v size=%d", p.tag, time.Since(tbegin), len(b))
	return errors.Annotatef(err, "persist %s store", p.tag)
}

// frame is big endian uint32 length, data, zero padding up to frameSize.
func (p *Persist) frame(data []byte) []byte {
	size := 4 + len(data)
	size = (size + frameBlock - 1) / frameBlock * frameBlock
	if size < p.frameSize {
		size = p.frameSize
	}
	p.frameSize = size
	b := make([]byte, size)
	binary.BigEndian.PutUint32(b, uint32(len(data)))
	copy(b[4:], data)
	return b
}

func unframe(b []byte) ([]byte, error) {
	if len(b) < 4 {
		return nil, errors.NotValidf("frame size=%d", len(b))
	}
	n := binary.BigEndian.Uint32(b)
	if int(n) > len(b)-4 {
		return nil, errors.NotValidf("frame length=%d size=%d", n, len(b))
	}
	return b[4 : 4+n], nil
}
