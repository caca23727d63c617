package resolve

import (
	"github.com/carved4/go-symresolve/pkg/errors"
	"github.com/carved4/go-symresolve/pkg/hash"
	"github.com/carved4/go-symresolve/pkg/memory"
	"github.com/carved4/go-symresolve/pkg/ntabi"
)

// MaxModuleNameLen bounds how much of a module's base name is hashed.
// Longer names are truncated and will not match their full-name hash.
const MaxModuleNameLen = 64

// Walker finds loaded modules by walking the loader's in-memory-order list.
//
// No loader lock is taken: the caller may already hold it, and the list may
// change underneath the walk. A list that never returns to its head keeps
// the walk going forever.
type Walker struct {
	view ntabi.View
	teb  uintptr
}

// NewWalker reads loader state through mem, starting from the thread
// environment block at teb.
func NewWalker(mem memory.Reader, teb uintptr) *Walker {
	return &Walker{view: ntabi.NewView(mem, nil), teb: teb}
}

// NewWalkerWithLayout is NewWalker for a non-default structure layout.
func NewWalkerWithLayout(mem memory.Reader, teb uintptr, layout *ntabi.Layout) *Walker {
	return &Walker{view: ntabi.NewView(mem, layout), teb: teb}
}

// ModuleBase returns the image base of the first module whose transliterated
// base name hashes to target. A target of 0 means the process executable,
// answered from the PEB without touching the list.
func (w *Walker) ModuleBase(target uint64) (uintptr, error) {
	peb, err := w.view.PEB(w.teb)
	if err != nil {
		return 0, err
	}
	if target == 0 {
		base, err := w.view.ImageBase(peb)
		if err != nil {
			return 0, err
		}
		if base == 0 {
			return 0, errors.New(errors.ErrModuleNotFound)
		}
		return base, nil
	}

	head, err := w.view.ModuleListHead(peb)
	if err != nil {
		return 0, err
	}

	var units [MaxModuleNameLen]uint16
	var name [MaxModuleNameLen]byte
	var us ntabi.UnicodeString

	link, err := w.view.Next(head)
	for link != head {
		if err != nil {
			return 0, err
		}
		entry := w.view.Entry(link)

		if us, err = w.view.BaseDllName(entry); err != nil {
			return 0, err
		}
		n := min(us.Units(), MaxModuleNameLen)
		for i := 0; i < n; i++ {
			if units[i], err = w.view.Unit(us, i); err != nil {
				return 0, err
			}
		}
		memory.Zero(name[:])
		n = Transliterate(name[:], units[:n])

		if hash.Bytes(name[:n]) == target {
			base, err := w.view.DllBase(entry)
			if err != nil {
				return 0, err
			}
			if base == 0 {
				return 0, errors.New(errors.ErrModuleNotFound)
			}
			return base, nil
		}
		link, err = w.view.Next(link)
	}
	return 0, errors.New(errors.ErrModuleNotFound)
}

// Transliterate folds UTF-16 module name units into single bytes with
// hash.FoldModuleChar and returns how many bytes were written.
func Transliterate(dst []byte, units []uint16) int {
	n := min(len(dst), len(units))
	for i := 0; i < n; i++ {
		dst[i] = hash.FoldModuleChar(units[i])
	}
	return n
}
