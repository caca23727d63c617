// Package symresolve resolves loaded modules and their exports by 64-bit
// name hash, reading only memory the process already has mapped.
//
// A lookup key is either a hash of the export name (hash.String) or, when
// its upper 32 bits are zero, an ordinal. A name hash whose upper half
// happens to be zero is therefore indistinguishable from an ordinal.
//
// An export whose address-table slot is empty (RVA 0) is reported as not
// found, so GetFunctionAddress returns 0 rather than the module base.
package symresolve

import (
	"github.com/carved4/go-symresolve/pkg/hash"
	"github.com/carved4/go-symresolve/pkg/resolve"
)

var GetFunctionAddress = resolve.GetFunctionAddress
var ModuleBaseFrom = resolve.ModuleBaseFrom

// GetHash hashes an export name exactly, case included.
var GetHash = hash.String

// ModuleHash hashes a module name the way loaded module names are folded
// before comparison.
var ModuleHash = hash.Module

// Ordinal returns the lookup key for an export ordinal.
func Ordinal(n uint16) uint64 {
	return uint64(resolve.Ordinal(n))
}
