// Package device is a small accelerator runtime for FFT work.
//
// Backends register by name on init, the same way input backends do. A
// process selects one with Init and releases it with Shutdown; both are
// idempotent. Buffers live in device memory and are only reachable through
// Upload and Download, so callers pay for host/device transfer explicitly.
package device

import (
	"sync"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

var (
	// ErrNotInitialized is returned when the runtime is used before Init.
	ErrNotInitialized = errors.New("device runtime not initialized")

	// ErrBackendConflict is returned by Init when a different backend is
	// already active.
	ErrBackendConflict = errors.New("device runtime already initialized with another backend")

	// ErrLengthMismatch is returned when buffer lengths do not fit a plan or
	// a host slice.
	ErrLengthMismatch = errors.New("device buffer length mismatch")

	// ErrClosed is returned when a closed buffer or plan is used.
	ErrClosed = errors.New("device resource closed")
)

// DefaultBackend is the backend used when none is requested.
const DefaultBackend = "host"

// Info describes a device.
type Info struct {
	Name     string
	Vendor   string
	Driver   string
	MemoryMB int
}

func (i Info) String() string {
	return i.Name
}

// Backend is implemented by device backends. It is responsible for device
// discovery and context creation.
type Backend interface {
	Available() bool
	Devices() ([]Info, error)
	NewContext(deviceIndex int) (Context, error)
}

// Context is a backend-specific context tied to a device.
type Context interface {
	Device() Info
	// NewBuffer allocates a device buffer of n complex64 values.
	NewBuffer(n int) (Buffer, error)
	// NewPlan makes an FFT plan over batch contiguous frames of length n.
	NewPlan(n, batch int) (Plan, error)
	// Synchronize blocks until queued work completes.
	Synchronize() error
	Close() error
}

// Buffer is a device buffer of complex64 values.
type Buffer interface {
	Len() int
	// Upload copies len(src) values from host to the start of the buffer.
	Upload(src []complex64) error
	// Download copies len(dst) values from the start of the buffer to host.
	Download(dst []complex64) error
	Close() error
}

// Plan is a precomputed batched transform over exactly Batch contiguous
// frames of Len values. Buffers must hold at least Batch*Len values; the
// rest is not touched. dst and src may be the same buffer.
type Plan interface {
	Len() int
	Batch() int
	Forward(dst, src Buffer) error
	// Inverse is normalized by 1/Len.
	Inverse(dst, src Buffer) error
	Close() error
}

type NamedBackend struct {
	Name string
	Backend
}

var Backends []NamedBackend

// RegisterBackend registers a backend globally. This function is not
// thread-safe, and most packages should call it on init().
func RegisterBackend(name string, b Backend) {
	Backends = append(Backends, NamedBackend{
		Name:    name,
		Backend: b,
	})
}

// FindBackend is a helper function that finds a backend. It returns nil if the
// backend is not found.
func FindBackend(name string) Backend {
	for _, backend := range Backends {
		if backend.Name == name {
			return backend
		}
	}
	return nil
}

func HasBackend(name string) bool {
	return FindBackend(name) != nil
}

var (
	mu      sync.Mutex
	active  string
	current Context
)

// Init selects a backend and opens a context on its first device. Calling
// Init again with the same backend does nothing.
func Init(name string) error {
	if name == "" {
		name = DefaultBackend
	}

	mu.Lock()
	defer mu.Unlock()

	if current != nil {
		if active == name {
			return nil
		}
		return errors.Wrapf(ErrBackendConflict, "active %q, requested %q", active, name)
	}

	backend := FindBackend(name)
	if backend == nil {
		return errors.Errorf("device backend not found: %q; check list-backends", name)
	}

	if !backend.Available() {
		return errors.Errorf("device backend %q is not available", name)
	}

	ctx, err := backend.NewContext(0)
	if err != nil {
		return errors.Wrap(err, "failed to open device context")
	}

	klog.V(1).Infof("device runtime up: backend %s, device %s", name, ctx.Device())

	active, current = name, ctx
	return nil
}

// Shutdown closes the active context. It does nothing if Init was never
// called or Shutdown already ran.
func Shutdown() error {
	mu.Lock()
	defer mu.Unlock()

	if current == nil {
		return nil
	}

	err := current.Close()
	active, current = "", nil

	return errors.Wrap(err, "failed to close device context")
}

// Current returns the active context.
func Current() (Context, error) {
	mu.Lock()
	defer mu.Unlock()

	if current == nil {
		return nil, ErrNotInitialized
	}
	return current, nil
}

// Active returns the name of the active backend, or "" before Init.
func Active() string {
	mu.Lock()
	defer mu.Unlock()

	return active
}

// ToDevice allocates a buffer in ctx and uploads src into it.
func ToDevice(ctx Context, src []complex64) (Buffer, error) {
	buf, err := ctx.NewBuffer(len(src))
	if err != nil {
		return nil, err
	}

	if err := buf.Upload(src); err != nil {
		buf.Close()
		return nil, err
	}

	return buf, nil
}
