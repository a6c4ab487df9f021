package blocks

import (
	"context"

	"github.com/pkg/errors"

	"github.com/noriah/fftpipe/device"
	"github.com/noriah/fftpipe/dsp"
	"github.com/noriah/fftpipe/pipeline"
)

// Copy moves spans into another memory space. Real input is promoted to
// complex on the way to the device, since device buffers hold cf32.
type Copy struct {
	Space pipeline.Space

	ctx     device.Context
	scratch []complex64

	devPool  *pipeline.Pool[device.Buffer]
	hostPool *pipeline.Pool[[]complex64]
	f32Pool  *pipeline.Pool[[]float32]

	lastIn  *pipeline.Header
	lastOut *pipeline.Header
}

// NewCopy returns a copy block targeting space.
func NewCopy(space string) (*Copy, error) {
	sp, err := pipeline.ParseSpace(space)
	if err != nil {
		return nil, errors.Wrap(err, "copy")
	}

	c := &Copy{Space: sp}

	c.devPool = pipeline.NewPool(pipeline.DefaultBufferFactor+1,
		func(n int) (device.Buffer, error) { return c.ctx.NewBuffer(n) },
		func(b device.Buffer) int { return b.Len() },
		func(b device.Buffer) error { return b.Close() })

	c.hostPool = pipeline.NewPool(pipeline.DefaultBufferFactor+1,
		func(n int) ([]complex64, error) { return make([]complex64, n), nil },
		func(b []complex64) int { return len(b) },
		nil)

	c.f32Pool = pipeline.NewPool(pipeline.DefaultBufferFactor+1,
		func(n int) ([]float32, error) { return make([]float32, n), nil },
		func(b []float32) int { return len(b) },
		nil)

	return c, nil
}

func (c *Copy) Name() string {
	return "copy_" + string(c.Space)
}

func (c *Copy) Run(ctx context.Context, in <-chan *pipeline.Span, out chan<- *pipeline.Span) error {
	c.devPool.Reset()
	c.hostPool.Reset()
	c.f32Pool.Reset()
	c.lastIn, c.lastOut = nil, nil

	for s := range in {
		res, err := c.copy(ctx, s)
		s.Release()

		if err != nil {
			return err
		}

		if err := pipeline.Send(ctx, out, res); err != nil {
			return err
		}
	}

	return nil
}

func (c *Copy) header(in *pipeline.Header) (*pipeline.Header, error) {
	if in == c.lastIn {
		return c.lastOut, nil
	}

	hdr := in.Clone()
	hdr.Space = c.Space

	if c.Space == pipeline.Device {
		hdr.DType = pipeline.CF32

		if c.ctx == nil {
			ctx, err := device.Current()
			if err != nil {
				return nil, errors.Wrap(err, "copy to device")
			}
			c.ctx = ctx
		}
	}

	c.lastIn, c.lastOut = in, hdr
	return hdr, nil
}

func (c *Copy) copy(ctx context.Context, s *pipeline.Span) (*pipeline.Span, error) {
	hdr, err := c.header(s.Header)
	if err != nil {
		return nil, err
	}

	n := s.Len()
	capacity := spanCap(s)

	res := &pipeline.Span{Header: hdr, Frames: s.Frames}

	switch hdr.Space {
	case pipeline.Device:
		buf, err := c.devPool.Get(ctx, capacity)
		if err != nil {
			return nil, err
		}
		res.Dev = buf
		res.OnRelease(func() { c.devPool.Put(buf) })

		src, err := c.hostComplex(s, n)
		if err != nil {
			res.Release()
			return nil, err
		}

		if err := buf.Upload(src); err != nil {
			res.Release()
			return nil, errors.Wrap(err, "failed to upload span")
		}

	case pipeline.System:
		if hdr.DType == pipeline.F32 {
			buf, err := c.f32Pool.Get(ctx, capacity)
			if err != nil {
				return nil, err
			}
			copy(buf, s.F32[:n])
			res.F32 = buf
			res.OnRelease(func() { c.f32Pool.Put(buf) })
			break
		}

		buf, err := c.hostPool.Get(ctx, capacity)
		if err != nil {
			return nil, err
		}
		res.C64 = buf
		res.OnRelease(func() { c.hostPool.Put(buf) })

		src, err := c.hostComplex(s, n)
		if err != nil {
			res.Release()
			return nil, err
		}
		copy(buf, src)
	}

	return res, nil
}

// hostComplex returns the first n values of s as complex64 in host memory.
// The result may alias s or the block's scratch buffer.
func (c *Copy) hostComplex(s *pipeline.Span, n int) ([]complex64, error) {
	switch {
	case s.Dev != nil:
		c.grow(n)
		if err := s.Dev.Download(c.scratch[:n]); err != nil {
			return nil, errors.Wrap(err, "failed to download span")
		}
		return c.scratch[:n], nil

	case s.C64 != nil:
		return s.C64[:n], nil

	default:
		c.grow(n)
		return dsp.Promote(c.scratch, s.F32[:n]), nil
	}
}

func (c *Copy) grow(n int) {
	if cap(c.scratch) < n {
		c.scratch = make([]complex64, n)
	}
	c.scratch = c.scratch[:cap(c.scratch)]
}

// Close frees the device buffers this block allocated.
func (c *Copy) Close() error {
	c.hostPool.Close()
	c.f32Pool.Close()
	return c.devPool.Close()
}

// spanCap is the number of elements a full span of s's sequence holds, so
// pooled buffers are sized for full gulps even when s is a short one.
func spanCap(s *pipeline.Span) int {
	switch {
	case s.Dev != nil:
		return s.Dev.Len()
	case s.C64 != nil:
		return len(s.C64)
	default:
		return len(s.F32)
	}
}
