package fft

import (
	dspfft "github.com/mjibson/go-dsp/fft"
)

func init() {
	RegisterBackend("godsp", "go-dsp radix-2/Bluestein FFT (complex128 internally)", newGoDSPPlan)
}

// goDSPPlan has no precomputed state of its own; go-dsp caches its twiddle
// factors per length internally.
type goDSPPlan struct {
	n    int
	work []complex128
}

func newGoDSPPlan(n int) (Plan, error) {
	return &goDSPPlan{
		n:    n,
		work: make([]complex128, n),
	}, nil
}

func (p *goDSPPlan) Len() int {
	return p.n
}

func (p *goDSPPlan) Forward(dst, src []complex64) error {
	if err := checkLen(p, dst, src); err != nil {
		return err
	}

	widen(p.work, src)
	narrow(dst, dspfft.FFT(p.work), 1)

	return nil
}

// Inverse is already normalized by go-dsp.
func (p *goDSPPlan) Inverse(dst, src []complex64) error {
	if err := checkLen(p, dst, src); err != nil {
		return err
	}

	widen(p.work, src)
	narrow(dst, dspfft.IFFT(p.work), 1)

	return nil
}
