package dsp

import (
	"bufio"
	"encoding/binary"
	"io"
	"math"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
	"k8s.io/klog/v2"
)

// SampleBytes is the on-disk size of a single sample.
const SampleBytes = 4

// chunk is the number of samples encoded per write.
const chunk = 64 * 1024

// WriteSamples writes samples to name as raw float32 values in native byte
// order with no header. Any existing file is truncated.
func WriteSamples(name string, samples []float32, progress bool) error {
	f, err := os.Create(name)
	if err != nil {
		return errors.Wrap(err, "failed to create sample file")
	}
	defer f.Close()

	var w io.Writer = f

	if progress {
		bar := progressbar.DefaultBytes(int64(len(samples)*SampleBytes), "writing "+name)
		defer bar.Finish()
		w = io.MultiWriter(f, bar)
	}

	if err := EncodeSamples(w, samples); err != nil {
		return errors.Wrapf(err, "failed to write %s", name)
	}

	if err := f.Close(); err != nil {
		return errors.Wrapf(err, "failed to close %s", name)
	}

	klog.V(1).Infof("wrote %s (%s, %d samples)",
		name, humanize.IBytes(uint64(len(samples)*SampleBytes)), len(samples))

	return nil
}

// EncodeSamples writes samples to w in native byte order.
func EncodeSamples(w io.Writer, samples []float32) error {
	order := NativeOrder()
	raw := make([]byte, chunk*SampleBytes)

	for len(samples) > 0 {
		n := min(len(samples), chunk)

		for i, v := range samples[:n] {
			order.PutUint32(raw[i*SampleBytes:], math.Float32bits(v))
		}

		if _, err := w.Write(raw[:n*SampleBytes]); err != nil {
			return err
		}

		samples = samples[n:]
	}

	return nil
}

// ReadSamples reads a whole sample file into memory.
func ReadSamples(name string) ([]float32, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open sample file")
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to stat %s", name)
	}

	if info.Size()%SampleBytes != 0 {
		return nil, errors.Errorf("%s: size %d is not a multiple of %d",
			name, info.Size(), SampleBytes)
	}

	samples := make([]float32, info.Size()/SampleBytes)
	reader := NewFloatReader(bufio.NewReaderSize(f, chunk*SampleBytes))

	if _, err := reader.Read(samples); err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", name)
	}

	return samples, nil
}

// FloatReader decodes native-endian float32 values from a byte stream.
type FloatReader struct {
	r     io.Reader
	order binary.ByteOrder
	raw   []byte
}

// NewFloatReader returns a FloatReader over r.
func NewFloatReader(r io.Reader) *FloatReader {
	return &FloatReader{
		r:     r,
		order: NativeOrder(),
	}
}

// Read fills dst completely. It returns io.EOF if no bytes were read and
// io.ErrUnexpectedEOF if the stream ended partway through dst. On
// io.ErrUnexpectedEOF the returned count is the number of whole samples
// decoded.
func (f *FloatReader) Read(dst []float32) (int, error) {
	total := 0

	for total < len(dst) {
		n := min(len(dst)-total, chunk)
		if cap(f.raw) < n*SampleBytes {
			f.raw = make([]byte, chunk*SampleBytes)
		}

		raw := f.raw[:n*SampleBytes]
		got, err := io.ReadFull(f.r, raw)

		whole := got / SampleBytes
		for i := 0; i < whole; i++ {
			dst[total+i] = math.Float32frombits(f.order.Uint32(raw[i*SampleBytes:]))
		}
		total += whole

		if err != nil {
			if errors.Is(err, io.EOF) && total > 0 {
				return total, io.ErrUnexpectedEOF
			}
			if errors.Is(err, io.ErrUnexpectedEOF) && got%SampleBytes != 0 {
				return total, errors.Errorf("trailing partial sample of %d bytes", got%SampleBytes)
			}
			return total, err
		}
	}

	return total, nil
}
