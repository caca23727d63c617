// Package hash implements the 64-bit FNV-1a hash used for every lookup key.
//
// The same function runs at build time (pkg/hashgen) and at run time
// (pkg/resolve); keys produced by one must match candidates produced by the
// other bit for bit.
package hash

const (
	// Prime is the 64-bit FNV magic prime.
	Prime uint64 = 0x100000001B3

	// OffsetBasis is the published FNV-1 64-bit basis. Not used for keys.
	OffsetBasis uint64 = 0xCBF29CE484222325

	// Seed replaces OffsetBasis for every key this module produces.
	Seed uint64 = 0x95DD92DBA3D9E736
)

// Sum hashes b with FNV-1a starting from seed.
func Sum(b []byte, seed uint64) uint64 {
	h := seed
	for _, c := range b {
		h ^= uint64(c)
		h *= Prime
	}
	return h
}

// Bytes hashes b with Seed.
func Bytes(b []byte) uint64 {
	return Sum(b, Seed)
}

// String hashes s verbatim with Seed. Export names are matched this way,
// so the result is case sensitive.
func String(s string) uint64 {
	h := Seed
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= Prime
	}
	return h
}

// Module hashes a module name the way the loader walker sees it: the name
// is taken as UTF-16 and each unit goes through FoldModuleChar before
// hashing. Names longer than the walker's 64 unit buffer will not match.
func Module(name string) uint64 {
	h := Seed
	for _, r := range name {
		if r >= 0x10000 {
			// surrogate pair, both halves fold to '?'
			h ^= '?'
			h *= Prime
			h ^= '?'
			h *= Prime
			continue
		}
		h ^= uint64(FoldModuleChar(uint16(r)))
		h *= Prime
	}
	return h
}

// FoldModuleChar maps one UTF-16 unit of a loader module name to a single
// byte: everything except '_' gets bit 0x20 set, and anything left above
// 0x7F becomes '?'.
func FoldModuleChar(c uint16) byte {
	if c != '_' {
		c |= 0x20
	}
	if c > 0x7F {
		c = '?'
	}
	return byte(c)
}
