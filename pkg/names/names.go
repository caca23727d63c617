// Package names holds precomputed hashes for the modules and exports this
// repository's tools look up, plus stack builders for the few names that
// also have to be handed to the OS as text.
package names

//go:generate go run github.com/carved4/go-symresolve/cmd/hashgen generate -m names.yaml -o names_gen.go

// Check pairs a module with one of its exports.
type Check struct {
	Module     uint64
	Symbol     uint64
	ModuleName func() []byte
	SymbolName func() []byte
}

// Checks returns the exports symresolve verify compares against the OS
// loader when no names are given on the command line.
func Checks() []Check {
	ntdll := func() []byte { b := LiteralNtdllDll(); return b[:len(b)-1] }
	kernel32 := func() []byte { b := LiteralKernel32Dll(); return b[:len(b)-1] }
	return []Check{
		{ModuleNtdllDll, SymbolNtAllocateVirtualMemory, ntdll,
			func() []byte { b := LiteralNtAllocateVirtualMemory(); return b[:len(b)-1] }},
		{ModuleNtdllDll, SymbolRtlGetVersion, ntdll,
			func() []byte { b := LiteralRtlGetVersion(); return b[:len(b)-1] }},
		{ModuleKernel32Dll, SymbolLoadLibraryA, kernel32,
			func() []byte { b := LiteralLoadLibraryA(); return b[:len(b)-1] }},
		{ModuleKernel32Dll, SymbolGetProcAddress, kernel32,
			func() []byte { b := LiteralGetProcAddress(); return b[:len(b)-1] }},
	}
}
