//go:build cgo && fftw

package fft

// The only included bindings are those needed for complex single precision
// 1d transforms. Build with -tags fftw to enable them.

// #cgo pkg-config: fftw3f
// #include <fftw3.h>
import "C"

import (
	"runtime"
	"unsafe"

	"github.com/pkg/errors"
)

func init() {
	RegisterBackend("fftw", "FFTW3 single precision via cgo", newFFTWPlan)
}

// fftwPlan holds a pair of FFTW C plans.
type fftwPlan struct {
	n       int
	forward C.fftwf_plan
	inverse C.fftwf_plan
}

func newFFTWPlan(n int) (Plan, error) {
	in := (*C.fftwf_complex)(C.fftwf_malloc(C.size_t(n * 8)))
	out := (*C.fftwf_complex)(C.fftwf_malloc(C.size_t(n * 8)))
	defer C.fftwf_free(unsafe.Pointer(in))
	defer C.fftwf_free(unsafe.Pointer(out))

	// Go slices carry no alignment guarantee beyond 8 bytes.
	flags := C.uint(C.FFTW_ESTIMATE | C.FFTW_UNALIGNED)

	plan := &fftwPlan{
		n:       n,
		forward: C.fftwf_plan_dft_1d(C.int(n), in, out, C.FFTW_FORWARD, flags),
		inverse: C.fftwf_plan_dft_1d(C.int(n), in, out, C.FFTW_BACKWARD, flags),
	}

	if plan.forward == nil || plan.inverse == nil {
		plan.destroy()
		return nil, errors.New("fftw failed to make a plan")
	}

	// Rely on the runtime to free memory.
	runtime.SetFinalizer(plan, (*fftwPlan).destroy)

	return plan, nil
}

func (p *fftwPlan) Len() int {
	return p.n
}

func (p *fftwPlan) Forward(dst, src []complex64) error {
	if err := checkLen(p, dst, src); err != nil {
		return err
	}

	p.execute(p.forward, dst, src)
	return nil
}

func (p *fftwPlan) Inverse(dst, src []complex64) error {
	if err := checkLen(p, dst, src); err != nil {
		return err
	}

	p.execute(p.inverse, dst, src)

	scale := float32(1) / float32(p.n)
	for i := range dst[:p.n] {
		dst[i] = complex(real(dst[i])*scale, imag(dst[i])*scale)
	}

	return nil
}

func (p *fftwPlan) execute(plan C.fftwf_plan, dst, src []complex64) {
	C.fftwf_execute_dft(plan,
		(*C.fftwf_complex)(unsafe.Pointer(&src[0])),
		(*C.fftwf_complex)(unsafe.Pointer(&dst[0])))
}

// destroy releases resources
func (p *fftwPlan) destroy() {
	if p.forward != nil {
		C.fftwf_destroy_plan(p.forward)
		p.forward = nil
	}
	if p.inverse != nil {
		C.fftwf_destroy_plan(p.inverse)
		p.inverse = nil
	}
}
