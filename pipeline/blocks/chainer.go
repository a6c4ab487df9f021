package blocks

import (
	"github.com/noriah/fftpipe/pipeline"
)

// Chainer appends blocks to a pipeline one after another. The first error
// stops the chain; later calls do nothing and Err reports it.
//
//	bc := blocks.NewChainer(p)
//	bc.BinaryRead(files, 32768, 128, "f32")
//	bc.Copy("device")
//	bc.FFT([]string{"gulped"}, []string{"ft_gulped"}, false)
//	if err := bc.Err(); err != nil { ... }
type Chainer struct {
	// Backend is the CPU FFT backend for FFT blocks in system space.
	Backend string

	p   *pipeline.Pipeline
	err error
}

// NewChainer returns a Chainer adding to p.
func NewChainer(p *pipeline.Pipeline) *Chainer {
	return &Chainer{p: p}
}

func (c *Chainer) add(b pipeline.Block, err error) *Chainer {
	if c.err != nil {
		return c
	}

	if err == nil {
		err = c.p.Add(b)
	}

	c.err = err
	return c
}

// BinaryRead adds a raw file reader.
func (c *Chainer) BinaryRead(files []string, gulpSize, gulpNFrame int, dtype string) *Chainer {
	if c.err != nil {
		return c
	}
	b, err := NewBinaryRead(files, gulpSize, gulpNFrame, dtype)
	return c.add(b, err)
}

// Copy adds a copy into space.
func (c *Chainer) Copy(space string) *Chainer {
	if c.err != nil {
		return c
	}
	b, err := NewCopy(space)
	return c.add(b, err)
}

// FFT adds a forward or inverse transform.
func (c *Chainer) FFT(axes, labels []string, inverse bool) *Chainer {
	if c.err != nil {
		return c
	}
	b, err := NewFFT(axes, labels, inverse, c.Backend)
	return c.add(b, err)
}

// Err returns the first error met while chaining.
func (c *Chainer) Err() error {
	return c.err
}
