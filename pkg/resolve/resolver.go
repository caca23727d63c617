package resolve

import (
	"github.com/carved4/go-symresolve/pkg/errors"
	"github.com/carved4/go-symresolve/pkg/hash"
	"github.com/carved4/go-symresolve/pkg/memory"
)

const (
	dosMagic      = 0x5A4D     // MZ
	ntSignature   = 0x00004550 // PE\0\0
	optionalMagic = 0x20B      // PE32+

	lfanewOffset        = 0x3C
	optionalOffset      = 4 + 20 // signature + file header
	exportDataDirectory = 112    // DataDirectory[0] inside the PE32+ optional header

	// e_lfanew beyond this is taken to mean the base does not point at an image.
	maxHeaderOffset = 256 << 20

	// MaxExportNameLen bounds the terminator scan for export names. Longer
	// names are hashed truncated and will not match.
	MaxExportNameLen = 64

	invalidBase = ^uintptr(0)
)

// Resolver looks up exports of PE32+ images mapped in an address space.
// Every structure is validated before any RVA inside it is followed.
type Resolver struct {
	mem memory.Reader
}

func NewResolver(mem memory.Reader) *Resolver {
	return &Resolver{mem: mem}
}

// exportDir is the validated export directory of one image.
type exportDir struct {
	start        uintptr
	size         uint32
	ordinalBase  uint32
	functions    uint32
	names        uint32
	addressTable uintptr
	nameTable    uintptr
	ordinalTable uintptr
}

func (d *exportDir) contains(addr uintptr) bool {
	// strict on the low side: the directory start itself is not a forwarder
	return addr > d.start && addr < d.start+uintptr(d.size)
}

// readExportDir walks DOS header -> NT headers -> optional header -> data
// directory -> export directory.
func (r *Resolver) readExportDir(base uintptr, d *exportDir) error {
	if base == 0 || base == invalidBase {
		return errors.New(errors.ErrInvalidBase)
	}

	magic, err := r.mem.Uint16(base)
	if err != nil {
		return err
	}
	if magic != dosMagic {
		return errors.New(errors.ErrDosSignature)
	}

	lfanew, err := r.mem.Uint32(base + lfanewOffset)
	if err != nil {
		return err
	}
	if lfanew >= maxHeaderOffset {
		return errors.New(errors.ErrHeaderOffset)
	}

	nt := base + uintptr(lfanew)
	sig, err := r.mem.Uint32(nt)
	if err != nil {
		return err
	}
	if sig != ntSignature {
		return errors.New(errors.ErrNtSignature)
	}
	opt := nt + optionalOffset
	if magic, err = r.mem.Uint16(opt); err != nil {
		return err
	}
	if magic != optionalMagic {
		return errors.New(errors.ErrImageFormat)
	}

	dirRVA, err := r.mem.Uint32(opt + exportDataDirectory)
	if err != nil {
		return err
	}
	if dirRVA == 0 {
		return errors.New(errors.ErrNoExports)
	}
	if d.size, err = r.mem.Uint32(opt + exportDataDirectory + 4); err != nil {
		return err
	}
	d.start = base + uintptr(dirRVA)

	// IMAGE_EXPORT_DIRECTORY
	if d.ordinalBase, err = r.mem.Uint32(d.start + 16); err != nil {
		return err
	}
	if d.functions, err = r.mem.Uint32(d.start + 20); err != nil {
		return err
	}
	if d.functions == 0 {
		return errors.New(errors.ErrNoExports)
	}
	if d.names, err = r.mem.Uint32(d.start + 24); err != nil {
		return err
	}
	var rva uint32
	if rva, err = r.mem.Uint32(d.start + 28); err != nil {
		return err
	}
	d.addressTable = base + uintptr(rva)
	if rva, err = r.mem.Uint32(d.start + 32); err != nil {
		return err
	}
	d.nameTable = base + uintptr(rva)
	if rva, err = r.mem.Uint32(d.start + 36); err != nil {
		return err
	}
	d.ordinalTable = base + uintptr(rva)
	return nil
}

// ExportAddress returns the absolute address of the export selected by key
// in the image mapped at base. Forwarded exports are reported as
// ErrForwarded and never followed.
func (r *Resolver) ExportAddress(base uintptr, key SymbolKey) (uintptr, error) {
	var d exportDir
	if err := r.readExportDir(base, &d); err != nil {
		return 0, err
	}

	var index uint32
	if key.IsOrdinal() {
		ordinal := key.Ordinal()
		if ordinal > 0xFFFF {
			return 0, errors.New(errors.ErrOrdinalRange)
		}
		if ordinal < d.ordinalBase {
			return 0, errors.New(errors.ErrOrdinalBelowBase)
		}
		index = ordinal - d.ordinalBase
	} else {
		i, err := r.findName(base, &d, uint64(key))
		if err != nil {
			return 0, err
		}
		slot, err := r.mem.Uint16(d.ordinalTable + uintptr(i)*2)
		if err != nil {
			return 0, err
		}
		index = uint32(slot)
	}

	if index >= d.functions {
		return 0, errors.New(errors.ErrIndexOutOfRange)
	}
	rva, err := r.mem.Uint32(d.addressTable + uintptr(index)*4)
	if err != nil {
		return 0, err
	}
	if rva == 0 {
		return 0, errors.New(errors.ErrSymbolNotFound)
	}
	addr := base + uintptr(rva)
	if d.contains(addr) {
		return 0, errors.New(errors.ErrForwarded)
	}
	return addr, nil
}

// findName scans the name table front to back and returns the position of
// the first name hashing to target.
func (r *Resolver) findName(base uintptr, d *exportDir, target uint64) (uint32, error) {
	var buf [MaxExportNameLen]byte
	for i := uint32(0); i < d.names; i++ {
		nameRVA, err := r.mem.Uint32(d.nameTable + uintptr(i)*4)
		if err != nil {
			return 0, err
		}
		name := base + uintptr(nameRVA)
		n, _, err := memory.Scan(r.mem, name, 0, MaxExportNameLen)
		if err != nil {
			return 0, err
		}
		if err := memory.Copy(r.mem, buf[:n], name); err != nil {
			return 0, err
		}
		if hash.Bytes(buf[:n]) == target {
			return i, nil
		}
	}
	return 0, errors.New(errors.ErrSymbolNotFound)
}
