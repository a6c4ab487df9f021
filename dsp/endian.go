package dsp

import (
	"encoding/binary"
	"unsafe"
)

// IsLE returns true if the host architecture is little-endian.
func IsLE() bool {
	x := 1
	return *(*byte)(unsafe.Pointer(&x)) == 1
}

// NativeOrder returns the byte order sample files are written in.
func NativeOrder() binary.ByteOrder {
	if IsLE() {
		return binary.LittleEndian
	}

	return binary.BigEndian
}
