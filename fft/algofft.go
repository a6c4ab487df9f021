package fft

import (
	algofft "github.com/MeKo-Christian/algo-fft"
)

func init() {
	RegisterBackend("algofft", "pure Go mixed-radix FFT with SIMD kernels", newAlgoPlan)
}

// algoPlan wraps an algo-fft complex64 plan.
type algoPlan struct {
	plan *algofft.Plan[complex64]
}

func newAlgoPlan(n int) (Plan, error) {
	plan, err := algofft.NewPlan32(n)
	if err != nil {
		return nil, err
	}

	return &algoPlan{plan: plan}, nil
}

func (p *algoPlan) Len() int {
	return p.plan.Len()
}

func (p *algoPlan) Forward(dst, src []complex64) error {
	if err := checkLen(p, dst, src); err != nil {
		return err
	}
	return p.plan.Forward(dst[:p.Len()], src[:p.Len()])
}

// Inverse is already normalized by algo-fft.
func (p *algoPlan) Inverse(dst, src []complex64) error {
	if err := checkLen(p, dst, src); err != nil {
		return err
	}
	return p.plan.Inverse(dst[:p.Len()], src[:p.Len()])
}
