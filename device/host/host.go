// Package host is a device backend that keeps buffers in host memory and
// runs transforms on the CPU. It stands in for an accelerator where none is
// present and is the backend tests run against.
package host

import (
	"runtime"
	"sync/atomic"

	algofft "github.com/MeKo-Christian/algo-fft"
	"github.com/pkg/errors"

	"github.com/noriah/fftpipe/device"
)

func init() {
	device.RegisterBackend("host", Backend{})
}

type Backend struct{}

func (Backend) Available() bool {
	return true
}

func (Backend) Devices() ([]device.Info, error) {
	return []device.Info{info()}, nil
}

func (Backend) NewContext(deviceIndex int) (device.Context, error) {
	if deviceIndex != 0 {
		return nil, errors.Errorf("host backend: device index %d out of range", deviceIndex)
	}

	return &Context{}, nil
}

func info() device.Info {
	return device.Info{
		Name:   "host-" + runtime.GOARCH,
		Vendor: "fftpipe",
		Driver: "host",
	}
}

// Context tracks the number of live allocations so leaks show up in tests.
type Context struct {
	buffers atomic.Int64
	plans   atomic.Int64
	closed  atomic.Bool
}

func (c *Context) Device() device.Info {
	return info()
}

// Live returns the number of buffers and plans not yet closed.
func (c *Context) Live() (buffers, plans int) {
	return int(c.buffers.Load()), int(c.plans.Load())
}

func (c *Context) NewBuffer(n int) (device.Buffer, error) {
	if c.closed.Load() {
		return nil, device.ErrClosed
	}

	if n < 0 {
		return nil, errors.Errorf("invalid buffer length %d", n)
	}

	c.buffers.Add(1)

	return &buffer{ctx: c, data: make([]complex64, n)}, nil
}

func (c *Context) NewPlan(n, batch int) (device.Plan, error) {
	if c.closed.Load() {
		return nil, device.ErrClosed
	}

	if n < 1 || batch < 1 {
		return nil, errors.Errorf("invalid plan shape %dx%d", batch, n)
	}

	p, err := algofft.NewPlan32(n)
	if err != nil {
		return nil, errors.Wrap(err, "failed to make host plan")
	}

	c.plans.Add(1)

	return &plan{
		ctx:     c,
		n:       n,
		batch:   batch,
		plan:    p,
		scratch: make([]complex64, n),
	}, nil
}

// Synchronize returns immediately, host work is synchronous.
func (c *Context) Synchronize() error {
	return nil
}

func (c *Context) Close() error {
	c.closed.Store(true)
	return nil
}

type buffer struct {
	ctx  *Context
	data []complex64
}

func (b *buffer) Len() int {
	return len(b.data)
}

func (b *buffer) Upload(src []complex64) error {
	if b.data == nil && len(src) > 0 {
		return device.ErrClosed
	}
	if len(src) > len(b.data) {
		return device.ErrLengthMismatch
	}

	copy(b.data, src)
	return nil
}

func (b *buffer) Download(dst []complex64) error {
	if b.data == nil && len(dst) > 0 {
		return device.ErrClosed
	}
	if len(dst) > len(b.data) {
		return device.ErrLengthMismatch
	}

	copy(dst, b.data)
	return nil
}

func (b *buffer) Close() error {
	if b.data != nil {
		b.data = nil
		b.ctx.buffers.Add(-1)
	}
	return nil
}

type plan struct {
	ctx     *Context
	n       int
	batch   int
	plan    *algofft.Plan[complex64]
	scratch []complex64
}

func (p *plan) Len() int {
	return p.n
}

func (p *plan) Batch() int {
	return p.batch
}

func (p *plan) Forward(dst, src device.Buffer) error {
	return p.execute(dst, src, false)
}

func (p *plan) Inverse(dst, src device.Buffer) error {
	return p.execute(dst, src, true)
}

// execute transforms exactly batch frames, one at a time through scratch
// so dst and src may alias. Anything past batch frames is left untouched.
func (p *plan) execute(dst, src device.Buffer, inverse bool) error {
	if p.plan == nil {
		return device.ErrClosed
	}

	d, ok := dst.(*buffer)
	if !ok {
		return errors.Errorf("host plan: foreign dst buffer %T", dst)
	}
	s, ok := src.(*buffer)
	if !ok {
		return errors.Errorf("host plan: foreign src buffer %T", src)
	}

	if d.data == nil || s.data == nil {
		return device.ErrClosed
	}

	if len(s.data) < p.batch*p.n || len(d.data) < p.batch*p.n {
		return errors.Wrapf(device.ErrLengthMismatch, "plan of %dx%d", p.batch, p.n)
	}

	for f := 0; f < p.batch; f++ {
		in := s.data[f*p.n : (f+1)*p.n]
		out := d.data[f*p.n : (f+1)*p.n]

		var err error
		if inverse {
			err = p.plan.Inverse(p.scratch, in)
		} else {
			err = p.plan.Forward(p.scratch, in)
		}
		if err != nil {
			return errors.Wrapf(err, "frame %d", f)
		}

		copy(out, p.scratch)
	}

	return nil
}

func (p *plan) Close() error {
	if p.plan != nil {
		p.plan = nil
		p.scratch = nil
		p.ctx.plans.Add(-1)
	}
	return nil
}
