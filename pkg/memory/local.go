package memory

import "unsafe"

// Local reads the caller's own address space directly. It cannot detect
// unmapped memory: a bad address faults like any other pointer dereference.
// Only the null page is rejected.
//
// The methods are exempt from checkptr: the addresses they read are loader
// and image memory the runtime never allocated.
type Local struct{}

//go:nocheckptr
func (Local) Uint8(addr uintptr) (uint8, error) {
	if addr == 0 {
		return 0, errUnreadable
	}
	return *(*uint8)(unsafe.Pointer(addr)), nil
}

//go:nocheckptr
func (Local) Uint16(addr uintptr) (uint16, error) {
	if addr == 0 {
		return 0, errUnreadable
	}
	return *(*uint16)(unsafe.Pointer(addr)), nil
}

//go:nocheckptr
func (Local) Uint32(addr uintptr) (uint32, error) {
	if addr == 0 {
		return 0, errUnreadable
	}
	return *(*uint32)(unsafe.Pointer(addr)), nil
}

//go:nocheckptr
func (Local) Uint64(addr uintptr) (uint64, error) {
	if addr == 0 {
		return 0, errUnreadable
	}
	return *(*uint64)(unsafe.Pointer(addr)), nil
}
