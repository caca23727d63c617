package resolve

import (
	"github.com/carved4/go-symresolve/pkg/errors"
	"github.com/carved4/go-symresolve/pkg/memory"
)

const (
	maxListedName      = 512
	maxForwarderString = 256
	maxListedExports   = 1 << 16
)

// ExportEntry is one populated slot of an export address table.
type ExportEntry struct {
	Ordinal   uint32
	Index     uint32
	Name      string
	RVA       uint32
	Address   uintptr
	Forwarder string
}

// Exports lists every populated EAT slot of the image at base, in slot
// order. Forwarder strings are read but not followed. Unlike ExportAddress
// this allocates; it exists for listings and tests.
func (r *Resolver) Exports(base uintptr) ([]ExportEntry, error) {
	var d exportDir
	if err := r.readExportDir(base, &d); err != nil {
		return nil, err
	}
	if d.functions > maxListedExports {
		return nil, errors.New(errors.ErrIndexOutOfRange)
	}

	nameByIndex := make(map[uint32]string, d.names)
	for i := uint32(0); i < d.names; i++ {
		nameRVA, err := r.mem.Uint32(d.nameTable + uintptr(i)*4)
		if err != nil {
			return nil, err
		}
		slot, err := r.mem.Uint16(d.ordinalTable + uintptr(i)*2)
		if err != nil {
			return nil, err
		}
		name, err := r.readCString(base+uintptr(nameRVA), maxListedName)
		if err != nil {
			return nil, err
		}
		if _, dup := nameByIndex[uint32(slot)]; !dup {
			nameByIndex[uint32(slot)] = name
		}
	}

	exports := make([]ExportEntry, 0, d.functions)
	for i := uint32(0); i < d.functions; i++ {
		rva, err := r.mem.Uint32(d.addressTable + uintptr(i)*4)
		if err != nil {
			return nil, err
		}
		if rva == 0 {
			continue
		}
		e := ExportEntry{
			Ordinal: d.ordinalBase + i,
			Index:   i,
			Name:    nameByIndex[i],
			RVA:     rva,
			Address: base + uintptr(rva),
		}
		if d.contains(e.Address) {
			if e.Forwarder, err = r.readCString(e.Address, maxForwarderString); err != nil {
				return nil, err
			}
		}
		exports = append(exports, e)
	}
	return exports, nil
}

func (r *Resolver) readCString(addr uintptr, limit int) (string, error) {
	n, _, err := memory.Scan(r.mem, addr, 0, limit)
	if err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if err := memory.Copy(r.mem, buf, addr); err != nil {
		return "", err
	}
	return string(buf), nil
}

// ExportNames returns the export name table of the image at base in table
// order, aliases included. This is the order findName scans, so of two names
// that hash alike only the earlier one can be resolved.
func (r *Resolver) ExportNames(base uintptr) ([]string, error) {
	var d exportDir
	if err := r.readExportDir(base, &d); err != nil {
		return nil, err
	}
	if d.names > maxListedExports {
		return nil, errors.New(errors.ErrIndexOutOfRange)
	}
	names := make([]string, 0, d.names)
	for i := uint32(0); i < d.names; i++ {
		nameRVA, err := r.mem.Uint32(d.nameTable + uintptr(i)*4)
		if err != nil {
			return nil, err
		}
		name, err := r.readCString(base+uintptr(nameRVA), maxListedName)
		if err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, nil
}
