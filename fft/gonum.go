package fft

import (
	"gonum.org/v1/gonum/dsp/fourier"
)

func init() {
	RegisterBackend("gonum", "gonum FFTPACK port (complex128 internally)", newGonumPlan)
}

// gonumPlan holds a gonum FFT plan.
type gonumPlan struct {
	fft   *fourier.CmplxFFT
	n     int
	work  []complex128
	coeff []complex128
}

func newGonumPlan(n int) (Plan, error) {
	return &gonumPlan{
		fft:   fourier.NewCmplxFFT(n),
		n:     n,
		work:  make([]complex128, n),
		coeff: make([]complex128, n),
	}, nil
}

func (p *gonumPlan) Len() int {
	return p.n
}

func (p *gonumPlan) Forward(dst, src []complex64) error {
	if err := checkLen(p, dst, src); err != nil {
		return err
	}

	widen(p.work, src)
	p.fft.Coefficients(p.coeff, p.work)
	narrow(dst, p.coeff, 1)

	return nil
}

// Inverse scales by 1/n, gonum leaves the sequence unnormalized.
func (p *gonumPlan) Inverse(dst, src []complex64) error {
	if err := checkLen(p, dst, src); err != nil {
		return err
	}

	widen(p.coeff, src)
	p.fft.Sequence(p.work, p.coeff)
	narrow(dst, p.work, 1/float64(p.n))

	return nil
}

func widen(dst []complex128, src []complex64) {
	for i := range dst {
		dst[i] = complex128(src[i])
	}
}

func narrow(dst []complex64, src []complex128, scale float64) {
	for i, v := range src {
		dst[i] = complex64(complex(real(v)*scale, imag(v)*scale))
	}
}
