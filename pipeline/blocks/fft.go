package blocks

import (
	"context"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/noriah/fftpipe/device"
	"github.com/noriah/fftpipe/dsp"
	"github.com/noriah/fftpipe/fft"
	"github.com/noriah/fftpipe/pipeline"
)

// FFT transforms every frame of a span along one labelled axis and renames
// that axis. Device spans are transformed in place with a batched device
// plan; system spans go through a CPU backend from the fft package. The
// inverse transform is normalized.
type FFT struct {
	Axis    string
	Label   string
	Inverse bool
	Backend string

	devN     int
	devPlans map[int]device.Plan
	cpuPlan  fft.Plan
	scratch  []complex64
	hostPool *pipeline.Pool[[]complex64]

	lastIn  *pipeline.Header
	lastOut *pipeline.Header
}

// NewFFT returns an FFT block over the axis named axes[0]. If labels is
// empty the axis keeps its label. backend selects the CPU backend used for
// system space spans; "" means fft.DefaultBackend.
func NewFFT(axes, labels []string, inverse bool, backend string) (*FFT, error) {
	if len(axes) != 1 {
		return nil, errors.Errorf("fft: exactly one axis supported, got %v", axes)
	}

	if len(labels) > 1 {
		return nil, errors.Errorf("fft: at most one axis label, got %v", labels)
	}

	if backend == "" {
		backend = fft.DefaultBackend
	}

	if !fft.HasBackend(backend) {
		return nil, errors.Wrapf(fft.ErrBackendNotFound, "fft: %q", backend)
	}

	b := &FFT{
		Axis:    axes[0],
		Label:   axes[0],
		Inverse: inverse,
		Backend: backend,
		hostPool: pipeline.NewPool(pipeline.DefaultBufferFactor+1,
			func(n int) ([]complex64, error) { return make([]complex64, n), nil },
			func(b []complex64) int { return len(b) },
			nil),
	}

	if len(labels) == 1 {
		b.Label = labels[0]
	}

	return b, nil
}

func (b *FFT) Name() string {
	if b.Inverse {
		return "ifft_" + b.Label
	}
	return "fft_" + b.Label
}

func (b *FFT) Run(ctx context.Context, in <-chan *pipeline.Span, out chan<- *pipeline.Span) error {
	b.hostPool.Reset()
	b.lastIn, b.lastOut = nil, nil

	for s := range in {
		res, err := b.transform(ctx, s)
		if err != nil {
			s.Release()
			return err
		}

		if err := pipeline.Send(ctx, out, res); err != nil {
			return err
		}
	}

	return nil
}

func (b *FFT) header(in *pipeline.Header) (*pipeline.Header, error) {
	if in == b.lastIn {
		return b.lastOut, nil
	}

	axis, err := in.Axis(b.Axis)
	if err != nil {
		return nil, err
	}

	if axis != len(in.Shape)-1 {
		return nil, errors.Errorf("axis %q is not the innermost axis of %v", b.Axis, in.Labels)
	}

	hdr := in.Clone()
	hdr.DType = pipeline.CF32
	hdr.Labels[axis] = b.Label

	klog.V(2).Infof("%s: sequence %s %v -> %v", b.Name(), in.Name, in.Labels, hdr.Labels)

	b.lastIn, b.lastOut = in, hdr
	return hdr, nil
}

func (b *FFT) transform(ctx context.Context, s *pipeline.Span) (*pipeline.Span, error) {
	hdr, err := b.header(s.Header)
	if err != nil {
		return nil, err
	}

	n := s.Header.Shape[len(s.Header.Shape)-1]

	if s.Header.Space == pipeline.Device {
		if err := b.device(s, n); err != nil {
			return nil, err
		}
		s.Header = hdr
		return s, nil
	}

	res := s

	// Real input needs a complex buffer of its own.
	if s.C64 == nil {
		buf, err := b.hostPool.Get(ctx, len(s.F32))
		if err != nil {
			return nil, err
		}

		res = &pipeline.Span{Frames: s.Frames, C64: dsp.Promote(buf, s.F32[:s.Len()])[:len(buf)]}
		res.OnRelease(func() { b.hostPool.Put(buf) })
		s.Release()
	}

	if err := b.system(res, n); err != nil {
		res.Release()
		return nil, err
	}

	res.Header = hdr
	return res, nil
}

// device runs a plan batched over exactly s.Frames frames. Plans are kept
// per frame count, so a short final span gets a plan of its own.
func (b *FFT) device(s *pipeline.Span, n int) error {
	if n != b.devN {
		if err := b.closePlans(); err != nil {
			return err
		}
		b.devN = n
	}

	plan, ok := b.devPlans[s.Frames]
	if !ok {
		ctx, err := device.Current()
		if err != nil {
			return errors.Wrap(err, "fft on device")
		}

		plan, err = ctx.NewPlan(n, s.Frames)
		if err != nil {
			return errors.Wrap(err, "failed to make device plan")
		}

		if b.devPlans == nil {
			b.devPlans = make(map[int]device.Plan)
		}
		b.devPlans[s.Frames] = plan
	}

	if b.Inverse {
		return plan.Inverse(s.Dev, s.Dev)
	}
	return plan.Forward(s.Dev, s.Dev)
}

func (b *FFT) closePlans() error {
	var first error
	for frames, plan := range b.devPlans {
		if err := plan.Close(); err != nil && first == nil {
			first = err
		}
		delete(b.devPlans, frames)
	}
	return first
}

func (b *FFT) system(s *pipeline.Span, n int) error {
	if b.cpuPlan == nil || b.cpuPlan.Len() != n {
		plan, err := fft.NewPlan(b.Backend, n)
		if err != nil {
			return err
		}
		b.cpuPlan = plan
		b.scratch = make([]complex64, n)
	}

	for f := 0; f < s.Frames; f++ {
		frame := s.C64[f*n : (f+1)*n]

		var err error
		if b.Inverse {
			err = b.cpuPlan.Inverse(b.scratch, frame)
		} else {
			err = b.cpuPlan.Forward(b.scratch, frame)
		}
		if err != nil {
			return errors.Wrapf(err, "frame %d", f)
		}

		copy(frame, b.scratch)
	}

	return nil
}

// Close releases the device plans.
func (b *FFT) Close() error {
	b.hostPool.Close()
	return b.closePlans()
}
