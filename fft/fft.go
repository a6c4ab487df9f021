// Package fft provides generic abstractions around fourier transformers.
//
// Backends register themselves by name on init. Every backend transforms
// complex64 sequences and normalizes the inverse transform by 1/n, so a
// Forward followed by an Inverse reproduces the input.
package fft

import (
	"github.com/pkg/errors"
)

// ErrBackendNotFound is returned when no backend is registered under a name.
var ErrBackendNotFound = errors.New("fft backend not found")

// DefaultBackend is the backend used when none is requested.
const DefaultBackend = "algofft"

// Plan is a reusable transform of a fixed length.
type Plan interface {
	// Len is the transform length.
	Len() int
	// Forward computes the forward transform of src into dst.
	Forward(dst, src []complex64) error
	// Inverse computes the normalized inverse transform of src into dst.
	Inverse(dst, src []complex64) error
}

// PlanFunc makes a new Plan of length n.
type PlanFunc func(n int) (Plan, error)

type NamedBackend struct {
	Name        string
	Description string
	NewPlan     PlanFunc
}

var Backends []NamedBackend

// RegisterBackend registers a backend globally. This function is not
// thread-safe, and most packages should call it on init().
func RegisterBackend(name, description string, fn PlanFunc) {
	Backends = append(Backends, NamedBackend{
		Name:        name,
		Description: description,
		NewPlan:     fn,
	})
}

// FindBackend is a helper function that finds a backend. It returns nil if the
// backend is not found.
func FindBackend(name string) *NamedBackend {
	for idx := range Backends {
		if Backends[idx].Name == name {
			return &Backends[idx]
		}
	}
	return nil
}

func HasBackend(name string) bool {
	return FindBackend(name) != nil
}

// NewPlan makes a plan of length n with the named backend.
func NewPlan(backend string, n int) (Plan, error) {
	b := FindBackend(backend)
	if b == nil {
		return nil, errors.Wrapf(ErrBackendNotFound, "%q; check list-backends", backend)
	}

	if n < 1 {
		return nil, errors.Errorf("invalid transform length %d", n)
	}

	plan, err := b.NewPlan(n)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to make %s plan of length %d", backend, n)
	}

	return plan, nil
}

func checkLen(p Plan, dst, src []complex64) error {
	if len(dst) < p.Len() || len(src) < p.Len() {
		return errors.Errorf("buffer shorter than transform length %d", p.Len())
	}
	return nil
}
