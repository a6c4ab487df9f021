// Package bench times repeated forward and inverse FFTs over a sample file.
//
// The pipeline benchmarker implements Benchmarker and is averaged with
// AverageBenchmark. The reference runners each time a single run over the
// whole file with one FFT implementation.
package bench

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/noriah/fftpipe/util"
)

// NumberFFT is the number of forward/inverse cycles each benchmark runs.
const NumberFFT = 10

// Benchmarker is a unit of timed work. RunBenchmark does the work and
// records how long the timed section took; TotalClockTime reports it.
type Benchmarker interface {
	RunBenchmark(ctx context.Context) error
	TotalClockTime() time.Duration
}

// Result holds the runs of an averaged benchmark.
type Result struct {
	Mean   float64
	StdDev float64
	Runs   []time.Duration
}

// AverageBenchmark runs b n times and returns the mean and sample standard
// deviation of the elapsed times, in seconds.
func AverageBenchmark(ctx context.Context, b Benchmarker, n int) (mean, stddev float64, err error) {
	res, err := Average(ctx, b, n)
	if err != nil {
		return 0, 0, err
	}
	return res.Mean, res.StdDev, nil
}

// Average is AverageBenchmark keeping every run.
func Average(ctx context.Context, b Benchmarker, n int) (Result, error) {
	if n < 1 {
		return Result{}, errors.Errorf("invalid benchmark count %d", n)
	}

	window := util.NewMovingWindow(n)
	res := Result{Runs: make([]time.Duration, 0, n)}

	for i := 0; i < n; i++ {
		if err := b.RunBenchmark(ctx); err != nil {
			return Result{}, errors.Wrapf(err, "benchmark run %d of %d", i+1, n)
		}

		elapsed := b.TotalClockTime()
		klog.V(1).Infof("benchmark run %d of %d: %v", i+1, n, elapsed)

		res.Runs = append(res.Runs, elapsed)
		res.Mean, res.StdDev = window.Update(elapsed.Seconds())
	}

	return res, nil
}
