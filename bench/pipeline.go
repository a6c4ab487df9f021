package bench

import (
	"context"
	"time"

	"github.com/noriah/fftpipe/pipeline"
	"github.com/noriah/fftpipe/pipeline/blocks"
)

// Axis labels the FFT stages alternate between.
const (
	GulpedLabel   = blocks.GulpedLabel
	FTGulpedLabel = "ft_gulped"
)

// PipelineBenchmarker times a pipeline that reads a sample file, copies it
// into Space and runs NumberFFT forward/inverse FFT stage pairs over it.
type PipelineBenchmarker struct {
	File       string
	GulpSize   int
	GulpNFrame int
	NumberFFT  int
	// Space is where the FFT stages run, "device" or "system".
	Space string
	// Backend is the CPU FFT backend used when Space is "system".
	Backend string

	totalClockTime time.Duration
}

// NewPipelineBenchmarker returns a benchmarker with the default gulp shape.
func NewPipelineBenchmarker(file string) *PipelineBenchmarker {
	return &PipelineBenchmarker{
		File:       file,
		GulpSize:   32768,
		GulpNFrame: 128,
		NumberFFT:  NumberFFT,
		Space:      "device",
	}
}

// RunBenchmark builds the pipeline and times one run of it. Building the
// pipeline is not timed.
func (b *PipelineBenchmarker) RunBenchmark(ctx context.Context) (err error) {
	p := pipeline.New()
	defer func() {
		if cerr := p.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	bc := blocks.NewChainer(p)
	bc.Backend = b.Backend

	bc.BinaryRead([]string{b.File}, b.GulpSize, b.GulpNFrame, "f32")
	bc.Copy(b.Space)
	for i := 0; i < b.NumberFFT; i++ {
		bc.FFT([]string{GulpedLabel}, []string{FTGulpedLabel}, false)
		bc.FFT([]string{FTGulpedLabel}, []string{GulpedLabel}, true)
	}

	if err := bc.Err(); err != nil {
		return err
	}

	start := time.Now()
	if err := p.Run(ctx); err != nil {
		return err
	}
	b.totalClockTime = time.Since(start)

	return nil
}

func (b *PipelineBenchmarker) TotalClockTime() time.Duration {
	return b.totalClockTime
}
