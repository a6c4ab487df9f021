package blocks

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noriah/fftpipe/device"
	"github.com/noriah/fftpipe/device/host"
	"github.com/noriah/fftpipe/dsp"
	"github.com/noriah/fftpipe/pipeline"
)

const (
	testGulpSize   = 256
	testGulpNFrame = 4
)

// capture is a final block that copies every span's data to host memory.
type capture struct {
	labels [][]string
	frames []int
	data   []complex64
	f32    []float32
}

func (c *capture) Name() string { return "capture" }

func (c *capture) Run(ctx context.Context, in <-chan *pipeline.Span, out chan<- *pipeline.Span) error {
	for s := range in {
		c.labels = append(c.labels, append([]string(nil), s.Header.Labels...))
		c.frames = append(c.frames, s.Frames)

		switch {
		case s.Dev != nil:
			buf := make([]complex64, s.Len())
			if err := s.Dev.Download(buf); err != nil {
				return err
			}
			c.data = append(c.data, buf...)
		case s.C64 != nil:
			c.data = append(c.data, s.C64[:s.Len()]...)
		default:
			c.f32 = append(c.f32, s.F32[:s.Len()]...)
		}

		if err := pipeline.Send(ctx, out, s); err != nil {
			return err
		}
	}
	return nil
}

// countingBackend is the host backend with plans that count the frames
// they transform.
type countingBackend struct {
	host.Backend
	frames *atomic.Int64
}

func (b countingBackend) NewContext(deviceIndex int) (device.Context, error) {
	ctx, err := b.Backend.NewContext(deviceIndex)
	if err != nil {
		return nil, err
	}
	return countingContext{Context: ctx, frames: b.frames}, nil
}

type countingContext struct {
	device.Context
	frames *atomic.Int64
}

func (c countingContext) NewPlan(n, batch int) (device.Plan, error) {
	p, err := c.Context.NewPlan(n, batch)
	if err != nil {
		return nil, err
	}
	return countingPlan{Plan: p, frames: c.frames}, nil
}

type countingPlan struct {
	device.Plan
	frames *atomic.Int64
}

func (p countingPlan) Forward(dst, src device.Buffer) error {
	p.frames.Add(int64(p.Batch()))
	return p.Plan.Forward(dst, src)
}

func (p countingPlan) Inverse(dst, src device.Buffer) error {
	p.frames.Add(int64(p.Batch()))
	return p.Plan.Inverse(dst, src)
}

var countedFrames atomic.Int64

func init() {
	device.RegisterBackend("counting", countingBackend{frames: &countedFrames})
}

func writeSignal(t *testing.T, count int) (string, []float32) {
	t.Helper()
	name := filepath.Join(t.TempDir(), "signal.bin")
	samples := dsp.GenerateSine(count, dsp.DefaultOmega)
	must.M(dsp.WriteSamples(name, samples, false))
	return name, samples
}

func initDevice(t *testing.T) {
	t.Helper()
	require.NoError(t, device.Init("host"))
	t.Cleanup(func() { device.Shutdown() })
}

func chain(p *pipeline.Pipeline, name, space string, cycles int) *Chainer {
	bc := NewChainer(p)
	bc.BinaryRead([]string{name}, testGulpSize, testGulpNFrame, "f32")
	bc.Copy(space)
	for i := 0; i < cycles; i++ {
		bc.FFT([]string{"gulped"}, []string{"ft_gulped"}, false)
		bc.FFT([]string{"ft_gulped"}, []string{"gulped"}, true)
	}
	return bc
}

func assertRoundTrip(t *testing.T, want []float32, got []complex64) {
	t.Helper()
	require.Len(t, got, len(want))

	var num, den float64
	for i, v := range want {
		d := float64(real(got[i]) - v)
		num += d*d + float64(imag(got[i]))*float64(imag(got[i]))
		den += float64(v) * float64(v)
	}
	assert.Less(t, math.Sqrt(num/den), 1e-4)
}

func TestBinaryReadPartialGulp(t *testing.T) {
	// two full spans and one short span of three frames
	name, samples := writeSignal(t, testGulpSize*(2*testGulpNFrame+3))

	c := &capture{}
	p := pipeline.New()
	defer p.Close()

	require.NoError(t, NewChainer(p).BinaryRead([]string{name}, testGulpSize, testGulpNFrame, "f32").Err())
	require.NoError(t, p.Add(c))
	require.NoError(t, p.Run(context.Background()))

	assert.Equal(t, []int{4, 4, 3}, c.frames)
	assert.Equal(t, []string{StreamedLabel, GulpedLabel}, c.labels[0])
	assert.Equal(t, samples, c.f32)
}

func TestBinaryReadTrailingFragment(t *testing.T) {
	name, _ := writeSignal(t, testGulpSize+10)

	p := pipeline.New()
	defer p.Close()

	require.NoError(t, NewChainer(p).BinaryRead([]string{name}, testGulpSize, testGulpNFrame, "f32").Err())
	assert.Error(t, p.Run(context.Background()))
}

func TestBinaryReadMissingFile(t *testing.T) {
	p := pipeline.New()
	defer p.Close()

	missing := filepath.Join(t.TempDir(), "nope.bin")
	require.NoError(t, NewChainer(p).BinaryRead([]string{missing}, testGulpSize, testGulpNFrame, "f32").Err())
	assert.Error(t, p.Run(context.Background()))
}

func TestBinaryReadValidates(t *testing.T) {
	_, err := NewBinaryRead(nil, 4, 4, "f32")
	assert.Error(t, err)
	_, err = NewBinaryRead([]string{"x"}, 0, 4, "f32")
	assert.Error(t, err)
	_, err = NewBinaryRead([]string{"x"}, 4, 4, "cf32")
	assert.Error(t, err)
}

func TestDevicePipelineRoundTrip(t *testing.T) {
	initDevice(t)

	for _, cycles := range []int{1, 10} {
		name, samples := writeSignal(t, testGulpSize*(testGulpNFrame*2+1))

		c := &capture{}
		p := pipeline.New()

		bc := chain(p, name, "cuda", cycles)
		require.NoError(t, bc.Err())
		require.NoError(t, p.Add(c))
		require.NoError(t, p.Run(context.Background()))
		require.NoError(t, p.Close())

		assert.Len(t, p.Blocks(), 2+2*cycles+1)
		assert.Equal(t, []string{StreamedLabel, GulpedLabel}, c.labels[0])
		assertRoundTrip(t, samples, c.data)
	}
}

func TestSystemPipelineRoundTrip(t *testing.T) {
	name, samples := writeSignal(t, testGulpSize*testGulpNFrame*3)

	c := &capture{}
	p := pipeline.New()
	defer p.Close()

	bc := chain(p, name, "system", 10)
	require.NoError(t, bc.Err())
	require.NoError(t, p.Add(c))
	require.NoError(t, p.Run(context.Background()))

	assert.Equal(t, []string{StreamedLabel, GulpedLabel}, c.labels[0])
	assertRoundTrip(t, samples, c.data)
}

func TestSystemFFTOnRealInput(t *testing.T) {
	name, samples := writeSignal(t, testGulpSize*testGulpNFrame)

	c := &capture{}
	p := pipeline.New()
	defer p.Close()

	bc := NewChainer(p)
	bc.Backend = "gonum"
	bc.BinaryRead([]string{name}, testGulpSize, testGulpNFrame, "f32")
	bc.FFT([]string{"gulped"}, []string{"ft_gulped"}, false)
	bc.FFT([]string{"ft_gulped"}, nil, true)
	require.NoError(t, bc.Err())
	require.NoError(t, p.Add(c))
	require.NoError(t, p.Run(context.Background()))

	assert.Equal(t, []string{StreamedLabel, "ft_gulped"}, c.labels[0])
	assertRoundTrip(t, samples, c.data)
}

func TestFFTForwardSpectrum(t *testing.T) {
	initDevice(t)

	// a constant frame transforms to a single DC bin
	name := filepath.Join(t.TempDir(), "ones.bin")
	ones := make([]float32, testGulpSize)
	for i := range ones {
		ones[i] = 1
	}
	must.M(dsp.WriteSamples(name, ones, false))

	c := &capture{}
	p := pipeline.New()
	defer p.Close()

	bc := NewChainer(p)
	bc.BinaryRead([]string{name}, testGulpSize, testGulpNFrame, "f32").
		Copy("device").
		FFT([]string{"gulped"}, []string{"ft_gulped"}, false)
	require.NoError(t, bc.Err())
	require.NoError(t, p.Add(c))
	require.NoError(t, p.Run(context.Background()))

	require.Len(t, c.data, testGulpSize)
	assert.InDelta(t, testGulpSize, real(c.data[0]), 1e-3)
	for k := 1; k < testGulpSize; k++ {
		assert.InDelta(t, 0, real(c.data[k]), 1e-3)
	}
}

func TestFFTMissingAxisLabel(t *testing.T) {
	name, _ := writeSignal(t, testGulpSize)

	p := pipeline.New()
	defer p.Close()

	bc := NewChainer(p)
	bc.BinaryRead([]string{name}, testGulpSize, testGulpNFrame, "f32")
	bc.FFT([]string{"ft_gulped"}, []string{"gulped"}, true)
	require.NoError(t, bc.Err())

	err := p.Run(context.Background())
	assert.ErrorIs(t, err, pipeline.ErrAxisNotFound)
}

func TestCopyWithoutDevice(t *testing.T) {
	require.NoError(t, device.Shutdown())
	name, _ := writeSignal(t, testGulpSize)

	p := pipeline.New()
	defer p.Close()

	require.NoError(t, NewChainer(p).
		BinaryRead([]string{name}, testGulpSize, testGulpNFrame, "f32").
		Copy("device").Err())

	assert.ErrorIs(t, p.Run(context.Background()), device.ErrNotInitialized)
}

func TestChainerStopsAtFirstError(t *testing.T) {
	p := pipeline.New()
	defer p.Close()

	bc := NewChainer(p)
	bc.BinaryRead(nil, testGulpSize, testGulpNFrame, "f32").Copy("device")

	assert.Error(t, bc.Err())
	assert.Empty(t, p.Blocks())

	bc = NewChainer(p)
	bc.Backend = "nope"
	bc.FFT([]string{"gulped"}, nil, false)
	assert.Error(t, bc.Err())

	_, err := NewFFT([]string{"a", "b"}, nil, false, "")
	assert.Error(t, err)
	_, err = NewCopy("tape")
	assert.Error(t, err)
}

func TestDeviceResourcesReleasedOnClose(t *testing.T) {
	initDevice(t)
	name, _ := writeSignal(t, testGulpSize*testGulpNFrame*2)

	ctx := must.M1(device.Current())
	live, ok := ctx.(interface{ Live() (int, int) })
	require.True(t, ok)

	p := pipeline.New()
	require.NoError(t, chain(p, name, "device", 2).Err())
	require.NoError(t, p.Run(context.Background()))

	buffers, plans := live.Live()
	assert.Positive(t, buffers)
	assert.Equal(t, 4, plans)

	require.NoError(t, p.Close())

	buffers, plans = live.Live()
	assert.Zero(t, buffers)
	assert.Zero(t, plans)
}

func TestDeviceFFTTransformsValidFramesOnly(t *testing.T) {
	require.NoError(t, device.Shutdown())
	require.NoError(t, device.Init("counting"))
	t.Cleanup(func() { device.Shutdown() })

	tests := []struct {
		name   string
		frames int
		want   int64
	}{
		// one forward and one inverse stage each
		{"single frame", 1, 2 * 1},
		{"two gulps and a short one", 2*testGulpNFrame + 1, 2 * (2*testGulpNFrame + 1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			name, samples := writeSignal(t, testGulpSize*tt.frames)
			countedFrames.Store(0)

			c := &capture{}
			p := pipeline.New()
			defer p.Close()

			require.NoError(t, chain(p, name, "device", 1).Err())
			require.NoError(t, p.Add(c))
			require.NoError(t, p.Run(context.Background()))

			assert.Equal(t, tt.want, countedFrames.Load())
			assertRoundTrip(t, samples, c.data)
		})
	}
}

func TestMain(m *testing.M) {
	code := m.Run()
	device.Shutdown()
	os.Exit(code)
}
