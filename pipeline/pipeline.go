// Package pipeline runs chains of data-processing blocks.
//
// A pipeline is a list of blocks. The first block is the source, each later
// block consumes the spans the previous block emits. Every block runs in its
// own goroutine and spans are handed over on buffered channels, so blocks
// overlap their work the way stages of a ring-buffered pipeline do. The
// spans leaving the last block are released by the pipeline.
package pipeline

import (
	"context"
	"io"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"
)

// DefaultBufferFactor is the number of spans buffered between blocks.
const DefaultBufferFactor = 4

// ErrClosed is returned when a closed pipeline is run or extended.
var ErrClosed = errors.New("pipeline closed")

// Block is a stage of a pipeline. Run reads spans from in until it is
// closed and writes results to out; the pipeline closes out when Run
// returns. A source block is given a nil in. Run must use Send to write so
// that it gives up when ctx is done.
//
// Blocks holding resources implement io.Closer; Pipeline.Close calls it.
type Block interface {
	Name() string
	Run(ctx context.Context, in <-chan *Span, out chan<- *Span) error
}

// Pipeline is a scoped set of blocks. Close releases every block resource
// and should be deferred right after New.
type Pipeline struct {
	// BufferFactor is the channel depth between blocks.
	BufferFactor int

	blocks []Block
	closed bool
}

// New returns an empty pipeline.
func New() *Pipeline {
	return &Pipeline{BufferFactor: DefaultBufferFactor}
}

// Add appends b to the chain.
func (p *Pipeline) Add(b Block) error {
	if p.closed {
		return ErrClosed
	}

	p.blocks = append(p.blocks, b)
	return nil
}

// Blocks returns the chain in order.
func (p *Pipeline) Blocks() []Block {
	return p.blocks
}

// Run executes the chain until the source is exhausted or a block fails.
// The first failure cancels the other blocks and is returned.
func (p *Pipeline) Run(ctx context.Context) error {
	if p.closed {
		return ErrClosed
	}

	if len(p.blocks) == 0 {
		return errors.New("pipeline has no blocks")
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	depth := p.BufferFactor
	if depth < 1 {
		depth = 1
	}

	g, gctx := errgroup.WithContext(ctx)

	var in chan *Span

	for _, b := range p.blocks {
		b, src, out := b, in, make(chan *Span, depth)

		g.Go(func() error {
			defer close(out)

			start := time.Now()

			if err := b.Run(gctx, src, out); err != nil {
				return errors.Wrapf(err, "block %s", b.Name())
			}

			klog.V(2).Infof("block %s done in %v", b.Name(), time.Since(start))
			return nil
		})

		in = out
	}

	// The sink releases whatever reaches the end of the chain.
	g.Go(func() error {
		for s := range in {
			s.Release()
		}
		return nil
	})

	return g.Wait()
}

// Close releases the resources of every block, last block first. It is safe
// to call more than once.
func (p *Pipeline) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true

	var first error
	for i := len(p.blocks) - 1; i >= 0; i-- {
		c, ok := p.blocks[i].(io.Closer)
		if !ok {
			continue
		}

		if err := c.Close(); err != nil {
			klog.Warningf("failed to close block %s: %v", p.blocks[i].Name(), err)
			if first == nil {
				first = errors.Wrapf(err, "block %s", p.blocks[i].Name())
			}
		}
	}

	return first
}

// Send writes s to out unless ctx is done first, in which case s is
// released.
func Send(ctx context.Context, out chan<- *Span, s *Span) error {
	select {
	case out <- s:
		return nil
	case <-ctx.Done():
		s.Release()
		return ctx.Err()
	}
}
