// Package memory abstracts the address space the resolvers read from.
//
// Addresses are absolute. A Reader never writes; implementations decide how
// an unreadable address is reported.
package memory

import (
	"github.com/carved4/go-symresolve/pkg/errors"
)

// Reader reads little-endian scalars at absolute addresses.
type Reader interface {
	Uint8(addr uintptr) (uint8, error)
	Uint16(addr uintptr) (uint16, error)
	Uint32(addr uintptr) (uint32, error)
	Uint64(addr uintptr) (uint64, error)
}

// Pointer reads a 64-bit pointer at addr.
func Pointer(r Reader, addr uintptr) (uintptr, error) {
	v, err := r.Uint64(addr)
	return uintptr(v), err
}

// Zero clears b.
func Zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// Scan looks for target in the limit bytes starting at addr and returns its
// offset. When target is absent, Scan returns limit and false.
func Scan(r Reader, addr uintptr, target byte, limit int) (int, bool, error) {
	for i := 0; i < limit; i++ {
		b, err := r.Uint8(addr + uintptr(i))
		if err != nil {
			return i, false, err
		}
		if b == target {
			return i, true, nil
		}
	}
	return limit, false, nil
}

// Copy reads len(dst) bytes starting at addr into dst.
func Copy(r Reader, dst []byte, addr uintptr) error {
	for i := range dst {
		b, err := r.Uint8(addr + uintptr(i))
		if err != nil {
			return err
		}
		dst[i] = b
	}
	return nil
}

var errUnreadable = errors.New(errors.ErrUnreadable)
