// Package resolve finds loaded modules and their exports using nothing but
// memory the process already has mapped: no loader API is called.
//
// Walker and Resolver report why a lookup failed through pkg/errors codes.
// The package-level functions collapse every failure to a zero address.
package resolve

import (
	"github.com/carved4/go-symresolve/pkg/memory"
	"github.com/carved4/go-symresolve/pkg/ntabi"
)

// GetFunctionAddress resolves key (an ordinal or a hash.String name hash) in
// the module mapped at moduleBase in this process. It returns 0 when the
// image is malformed, the export is missing or forwarded.
func GetFunctionAddress(moduleBase uintptr, key uint64) uintptr {
	r := Resolver{mem: memory.Local{}}
	addr, err := r.ExportAddress(moduleBase, SymbolKey(key))
	if err != nil {
		return 0
	}
	return addr
}

// ModuleBaseFrom walks this process's loader list starting from the thread
// environment block at teb. moduleHash is a hash.Module value, or 0 for the
// process executable. It returns 0 when nothing matches.
func ModuleBaseFrom(teb uintptr, moduleHash uint64) uintptr {
	w := Walker{view: ntabi.NewView(memory.Local{}, nil), teb: teb}
	base, err := w.ModuleBase(moduleHash)
	if err != nil {
		return 0
	}
	return base
}
