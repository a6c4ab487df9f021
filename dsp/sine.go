package dsp

import "math"

// DefaultOmega is the angular frequency constant of the benchmark signal.
const DefaultOmega = 0.01

// DefaultSampleCount is the number of samples in the benchmark signal.
const DefaultSampleCount = 32768 * 1024

// GenerateSine makes count samples of sin(4*w*t).
func GenerateSine(count int, w float64) []float32 {
	buf := make([]float32, count)

	step := 4.0 * w
	for t := range buf {
		buf[t] = float32(math.Sin(step * float64(t)))
	}

	return buf
}

// Promote widens real samples into complex values with zero imaginary part.
// dst must be at least as long as src.
func Promote(dst []complex64, src []float32) []complex64 {
	dst = dst[:len(src)]
	for i, v := range src {
		dst[i] = complex(v, 0)
	}

	return dst
}
