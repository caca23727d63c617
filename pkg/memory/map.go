package memory

import (
	"encoding/binary"
	"sort"

	"github.com/carved4/go-symresolve/pkg/errors"
)

// Region is a contiguous run of bytes mapped at Base.
type Region struct {
	Base uintptr
	Data []byte
}

func (r *Region) end() uintptr {
	return r.Base + uintptr(len(r.Data))
}

// Map is a synthetic address space built from non-overlapping regions.
// Reads outside every region fail with ErrUnreadable instead of faulting,
// which makes it the address space of choice for malformed-input tests.
type Map struct {
	regions []*Region
}

// NewMap returns an empty address space.
func NewMap() *Map {
	return &Map{}
}

// Map places data at base. The slice is used in place, not copied.
func (m *Map) Map(base uintptr, data []byte) error {
	if base == 0 || base+uintptr(len(data)) < base {
		return errors.New(errors.ErrInvalidBase)
	}
	nr := &Region{Base: base, Data: data}
	for _, r := range m.regions {
		if nr.Base < r.end() && r.Base < nr.end() {
			return errors.New(errors.ErrRegionOverlap)
		}
	}
	m.regions = append(m.regions, nr)
	sort.Slice(m.regions, func(i, j int) bool {
		return m.regions[i].Base < m.regions[j].Base
	})
	return nil
}

// Alloc maps size zeroed bytes at base and returns them.
func (m *Map) Alloc(base uintptr, size int) ([]byte, error) {
	data := make([]byte, size)
	if err := m.Map(base, data); err != nil {
		return nil, err
	}
	return data, nil
}

// Regions returns the mapped regions ordered by base.
func (m *Map) Regions() []*Region {
	return m.regions
}

func (m *Map) slice(addr uintptr, n int) ([]byte, bool) {
	i := sort.Search(len(m.regions), func(i int) bool {
		return m.regions[i].end() > addr
	})
	if i == len(m.regions) {
		return nil, false
	}
	r := m.regions[i]
	if addr < r.Base || addr+uintptr(n) > r.end() || addr+uintptr(n) < addr {
		return nil, false
	}
	off := addr - r.Base
	return r.Data[off : off+uintptr(n)], true
}

func (m *Map) Uint8(addr uintptr) (uint8, error) {
	b, ok := m.slice(addr, 1)
	if !ok {
		return 0, errUnreadable
	}
	return b[0], nil
}

func (m *Map) Uint16(addr uintptr) (uint16, error) {
	b, ok := m.slice(addr, 2)
	if !ok {
		return 0, errUnreadable
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (m *Map) Uint32(addr uintptr) (uint32, error) {
	b, ok := m.slice(addr, 4)
	if !ok {
		return 0, errUnreadable
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (m *Map) Uint64(addr uintptr) (uint64, error) {
	b, ok := m.slice(addr, 8)
	if !ok {
		return 0, errUnreadable
	}
	return binary.LittleEndian.Uint64(b), nil
}

// Write copies p to addr. The whole range must be mapped in one region.
func (m *Map) Write(addr uintptr, p []byte) error {
	b, ok := m.slice(addr, len(p))
	if !ok {
		return errUnreadable
	}
	copy(b, p)
	return nil
}

func (m *Map) PutUint16(addr uintptr, v uint16) error {
	b, ok := m.slice(addr, 2)
	if !ok {
		return errUnreadable
	}
	binary.LittleEndian.PutUint16(b, v)
	return nil
}

func (m *Map) PutUint32(addr uintptr, v uint32) error {
	b, ok := m.slice(addr, 4)
	if !ok {
		return errUnreadable
	}
	binary.LittleEndian.PutUint32(b, v)
	return nil
}

func (m *Map) PutUint64(addr uintptr, v uint64) error {
	b, ok := m.slice(addr, 8)
	if !ok {
		return errUnreadable
	}
	binary.LittleEndian.PutUint64(b, v)
	return nil
}
