package pipeline

import (
	"strings"

	"github.com/pkg/errors"
)

// ErrAxisNotFound is returned when a block asks for an axis label the
// incoming sequence does not carry.
var ErrAxisNotFound = errors.New("axis label not found")

// DType is the element type of a sequence.
type DType string

const (
	F32  DType = "f32"
	CF32 DType = "cf32"
)

// Size is the number of bytes per element.
func (d DType) Size() int {
	switch d {
	case F32:
		return 4
	case CF32:
		return 8
	}
	return 0
}

// ParseDType accepts the short dtype names used when declaring blocks.
func ParseDType(s string) (DType, error) {
	switch d := DType(strings.ToLower(s)); d {
	case F32, CF32:
		return d, nil
	}
	return "", errors.Errorf("unsupported dtype %q", s)
}

// Space is where a sequence's data lives.
type Space string

const (
	System Space = "system"
	Device Space = "device"
)

// ParseSpace accepts "system" and "device". "cuda" is taken as "device".
func ParseSpace(s string) (Space, error) {
	switch strings.ToLower(s) {
	case "system", "host":
		return System, nil
	case "device", "cuda", "gpu":
		return Device, nil
	}
	return "", errors.Errorf("unsupported space %q", s)
}

// Header describes a sequence flowing between blocks. The first axis of
// Shape is the streamed frame axis and is always -1.
type Header struct {
	Name   string
	DType  DType
	Space  Space
	Shape  []int
	Labels []string
}

// Clone returns a deep copy of h.
func (h *Header) Clone() *Header {
	c := *h
	c.Shape = append([]int(nil), h.Shape...)
	c.Labels = append([]string(nil), h.Labels...)
	return &c
}

// Axis returns the index of the axis carrying label.
func (h *Header) Axis(label string) (int, error) {
	for i, l := range h.Labels {
		if l == label {
			return i, nil
		}
	}
	return -1, errors.Wrapf(ErrAxisNotFound, "%q not in %v", label, h.Labels)
}

// FrameSize is the number of elements in one frame.
func (h *Header) FrameSize() int {
	size := 1
	for _, n := range h.Shape[1:] {
		size *= n
	}
	return size
}
