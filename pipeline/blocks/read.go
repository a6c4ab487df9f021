// Package blocks holds the pipeline blocks used by the FFT benchmarks: a
// raw file reader, a memory space copy and a one dimensional FFT.
package blocks

import (
	"bufio"
	"context"
	"io"
	"os"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/noriah/fftpipe/dsp"
	"github.com/noriah/fftpipe/pipeline"
)

// Axis labels of sequences produced by BinaryRead.
const (
	StreamedLabel = "streamed"
	GulpedLabel   = "gulped"
)

// BinaryRead streams raw sample files. Each frame holds GulpSize samples and
// each span holds up to GulpNFrame frames. Files are read in order, one
// sequence per file.
type BinaryRead struct {
	Files      []string
	GulpSize   int
	GulpNFrame int
	DType      pipeline.DType

	pool *pipeline.Pool[[]float32]
}

// NewBinaryRead validates its arguments and returns a reader block. Only
// "f32" files are supported.
func NewBinaryRead(files []string, gulpSize, gulpNFrame int, dtype string) (*BinaryRead, error) {
	if len(files) == 0 {
		return nil, errors.New("binary_read: no files given")
	}

	if gulpSize < 1 || gulpNFrame < 1 {
		return nil, errors.Errorf("binary_read: invalid gulp %dx%d", gulpNFrame, gulpSize)
	}

	dt, err := pipeline.ParseDType(dtype)
	if err != nil {
		return nil, errors.Wrap(err, "binary_read")
	}

	if dt != pipeline.F32 {
		return nil, errors.Errorf("binary_read: dtype %s not supported", dt)
	}

	return &BinaryRead{
		Files:      files,
		GulpSize:   gulpSize,
		GulpNFrame: gulpNFrame,
		DType:      dt,
		pool: pipeline.NewPool(pipeline.DefaultBufferFactor+1,
			func(n int) ([]float32, error) { return make([]float32, n), nil },
			func(b []float32) int { return len(b) },
			nil),
	}, nil
}

func (r *BinaryRead) Name() string {
	return "binary_read"
}

func (r *BinaryRead) Run(ctx context.Context, _ <-chan *pipeline.Span, out chan<- *pipeline.Span) error {
	r.pool.Reset()

	for _, name := range r.Files {
		if err := r.readFile(ctx, name, out); err != nil {
			return err
		}
	}

	return nil
}

func (r *BinaryRead) readFile(ctx context.Context, name string, out chan<- *pipeline.Span) error {
	f, err := os.Open(name)
	if err != nil {
		return errors.Wrap(err, "failed to open input")
	}
	defer f.Close()

	hdr := &pipeline.Header{
		Name:   name,
		DType:  r.DType,
		Space:  pipeline.System,
		Shape:  []int{-1, r.GulpSize},
		Labels: []string{StreamedLabel, GulpedLabel},
	}

	gulp := r.GulpSize * r.GulpNFrame
	reader := dsp.NewFloatReader(bufio.NewReaderSize(f, 1<<20))

	spans := 0

	for {
		buf, err := r.pool.Get(ctx, gulp)
		if err != nil {
			return err
		}

		n, err := reader.Read(buf[:gulp])

		switch {
		case errors.Is(err, io.EOF):
			r.pool.Put(buf)
			klog.V(2).Infof("binary_read: %s: %d spans", name, spans)
			return nil

		case err != nil && !errors.Is(err, io.ErrUnexpectedEOF):
			r.pool.Put(buf)
			return errors.Wrapf(err, "failed to read %s", name)

		case n%r.GulpSize != 0:
			r.pool.Put(buf)
			return errors.Errorf("%s: trailing %d samples do not fill a frame of %d",
				name, n%r.GulpSize, r.GulpSize)
		}

		span := &pipeline.Span{
			Header: hdr,
			Frames: n / r.GulpSize,
			F32:    buf,
		}
		span.OnRelease(func() { r.pool.Put(buf) })

		if err := pipeline.Send(ctx, out, span); err != nil {
			return err
		}
		spans++

		if n < gulp {
			klog.V(2).Infof("binary_read: %s: %d spans", name, spans)
			return nil
		}
	}
}
