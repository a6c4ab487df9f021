package pipeline

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countSource struct {
	spans    int
	released atomic.Int32
}

func (s *countSource) Name() string { return "count" }

func (s *countSource) Run(ctx context.Context, _ <-chan *Span, out chan<- *Span) error {
	hdr := &Header{Name: "count", DType: F32, Space: System, Shape: []int{-1, 2}, Labels: []string{"streamed", "x"}}
	for i := 0; i < s.spans; i++ {
		span := &Span{Header: hdr, Frames: 1, F32: []float32{float32(i), 0}}
		span.OnRelease(func() { s.released.Add(1) })
		if err := Send(ctx, out, span); err != nil {
			return err
		}
	}
	return nil
}

type passBlock struct {
	seen   atomic.Int32
	fail   int
	closed bool
}

func (b *passBlock) Name() string { return "pass" }

func (b *passBlock) Run(ctx context.Context, in <-chan *Span, out chan<- *Span) error {
	for s := range in {
		if n := int(b.seen.Add(1)); b.fail > 0 && n == b.fail {
			s.Release()
			return errors.New("boom")
		}
		if err := Send(ctx, out, s); err != nil {
			return err
		}
	}
	return nil
}

func (b *passBlock) Close() error {
	b.closed = true
	return nil
}

func TestRunReleasesAtSink(t *testing.T) {
	src := &countSource{spans: 10}
	pass := &passBlock{}

	p := New()
	defer p.Close()

	require.NoError(t, p.Add(src))
	require.NoError(t, p.Add(pass))
	require.NoError(t, p.Run(context.Background()))

	assert.EqualValues(t, 10, pass.seen.Load())
	assert.EqualValues(t, 10, src.released.Load())
}

func TestRunPropagatesBlockError(t *testing.T) {
	src := &countSource{spans: 100}
	pass := &passBlock{fail: 3}

	p := New()
	p.BufferFactor = 1
	defer p.Close()

	require.NoError(t, p.Add(src))
	require.NoError(t, p.Add(pass))

	done := make(chan error, 1)
	go func() { done <- p.Run(context.Background()) }()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.Contains(t, err.Error(), "block pass")
		assert.Contains(t, err.Error(), "boom")
	case <-time.After(5 * time.Second):
		t.Fatal("pipeline did not stop after a block failed")
	}
}

func TestRunHonorsCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := New()
	defer p.Close()

	require.NoError(t, p.Add(&countSource{spans: 1000}))
	assert.ErrorIs(t, p.Run(ctx), context.Canceled)
}

func TestCloseIsScoped(t *testing.T) {
	pass := &passBlock{}

	p := New()
	require.NoError(t, p.Add(&countSource{}))
	require.NoError(t, p.Add(pass))

	require.NoError(t, p.Close())
	require.NoError(t, p.Close())
	assert.True(t, pass.closed)

	assert.ErrorIs(t, p.Run(context.Background()), ErrClosed)
	assert.ErrorIs(t, p.Add(pass), ErrClosed)
}

func TestRunEmpty(t *testing.T) {
	assert.Error(t, New().Run(context.Background()))
}

func TestHeaderAxis(t *testing.T) {
	h := &Header{Shape: []int{-1, 4, 8}, Labels: []string{"streamed", "pol", "gulped"}}

	axis, err := h.Axis("gulped")
	require.NoError(t, err)
	assert.Equal(t, 2, axis)
	assert.Equal(t, 32, h.FrameSize())

	_, err = h.Axis("ft_gulped")
	assert.ErrorIs(t, err, ErrAxisNotFound)

	c := h.Clone()
	c.Labels[2] = "ft_gulped"
	assert.Equal(t, "gulped", h.Labels[2])
}

func TestParse(t *testing.T) {
	d, err := ParseDType("F32")
	require.NoError(t, err)
	assert.Equal(t, F32, d)
	assert.Equal(t, 8, CF32.Size())

	_, err = ParseDType("i8")
	assert.Error(t, err)

	sp, err := ParseSpace("cuda")
	require.NoError(t, err)
	assert.Equal(t, Device, sp)

	_, err = ParseSpace("tape")
	assert.Error(t, err)
}

func TestPoolLimitsOutstanding(t *testing.T) {
	allocs := 0
	pool := NewPool(2,
		func(n int) ([]float32, error) { allocs++; return make([]float32, n), nil },
		func(b []float32) int { return len(b) },
		nil)

	ctx := context.Background()
	a, err := pool.Get(ctx, 4)
	require.NoError(t, err)
	_, err = pool.Get(ctx, 4)
	require.NoError(t, err)

	short, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err = pool.Get(short, 4)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	pool.Put(a)
	c, err := pool.Get(ctx, 4)
	require.NoError(t, err)
	assert.Len(t, c, 4)
	assert.Equal(t, 2, allocs)
	assert.Equal(t, 2, pool.Allocated())

	pool.Reset()
	_, err = pool.Get(ctx, 8)
	require.NoError(t, err)
	assert.Equal(t, 3, allocs)
}
