package bench

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/noriah/fftpipe/device"
	"github.com/noriah/fftpipe/dsp"
	"github.com/noriah/fftpipe/fft"
)

// RegularFFT times nfft forward/inverse cycles over the whole file with the
// generic go-dsp transform, the way a plain single threaded numpy run would.
func RegularFFT(ctx context.Context, name string, nfft int) (time.Duration, error) {
	return ReferenceFFT(ctx, "godsp", name, nfft)
}

// PackFFT times nfft forward/inverse cycles over the whole file with the
// gonum FFTPACK port.
func PackFFT(ctx context.Context, name string, nfft int) (time.Duration, error) {
	return ReferenceFFT(ctx, "gonum", name, nfft)
}

// ReferenceFFT times reading name and running nfft forward/inverse cycles
// over all of it with a CPU backend from the fft package.
func ReferenceFFT(ctx context.Context, backend, name string, nfft int) (time.Duration, error) {
	start := time.Now()

	data, err := readComplex(name)
	if err != nil {
		return 0, err
	}

	plan, err := fft.NewPlan(backend, len(data))
	if err != nil {
		return 0, err
	}

	scratch := make([]complex64, len(data))

	for i := 0; i < nfft; i++ {
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		if err := plan.Forward(scratch, data); err != nil {
			return 0, errors.Wrap(err, "forward transform")
		}
		if err := plan.Inverse(data, scratch); err != nil {
			return 0, errors.Wrap(err, "inverse transform")
		}
	}

	elapsed := time.Since(start)
	klog.V(1).Infof("%s reference: %d samples, %d cycles, %v", backend, len(data), nfft, elapsed)

	return elapsed, nil
}

// DeviceFFT times reading name, moving it to the device once and running
// nfft in place forward/inverse cycles there with a single plan. The device
// runtime must be initialized.
func DeviceFFT(ctx context.Context, name string, nfft int) (elapsed time.Duration, err error) {
	start := time.Now()

	data, err := readComplex(name)
	if err != nil {
		return 0, err
	}

	dctx, err := device.Current()
	if err != nil {
		return 0, err
	}

	buf, err := device.ToDevice(dctx, data)
	if err != nil {
		return 0, errors.Wrap(err, "failed to copy to device")
	}
	defer buf.Close()

	plan, err := dctx.NewPlan(len(data), 1)
	if err != nil {
		return 0, errors.Wrap(err, "failed to make device plan")
	}
	defer plan.Close()

	for i := 0; i < nfft; i++ {
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		if err := plan.Forward(buf, buf); err != nil {
			return 0, errors.Wrap(err, "forward transform")
		}
		if err := plan.Inverse(buf, buf); err != nil {
			return 0, errors.Wrap(err, "inverse transform")
		}
	}

	if err := dctx.Synchronize(); err != nil {
		return 0, err
	}

	elapsed = time.Since(start)
	klog.V(1).Infof("device reference: %d samples, %d cycles, %v", len(data), nfft, elapsed)

	return elapsed, nil
}

func readComplex(name string) ([]complex64, error) {
	samples, err := dsp.ReadSamples(name)
	if err != nil {
		return nil, err
	}

	if len(samples) == 0 {
		return nil, errors.Errorf("%s holds no samples", name)
	}

	return dsp.Promote(make([]complex64, len(samples)), samples), nil
}
