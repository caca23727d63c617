package resolve

import "fmt"

// SymbolKey selects an export either by ordinal or by name hash. There is no
// tag: a key whose upper 32 bits are zero is an ordinal, anything else is a
// hash. A real name hash with a zero upper half is therefore looked up as an
// ordinal; at one in four billion per name this is accepted rather than
// encoded away.
type SymbolKey uint64

// Ordinal returns the key for export ordinal n.
func Ordinal(n uint16) SymbolKey {
	return SymbolKey(n)
}

// NameHash returns the key for a name hash produced by hash.String.
func NameHash(h uint64) SymbolKey {
	return SymbolKey(h)
}

func (k SymbolKey) IsOrdinal() bool {
	return k>>32 == 0
}

// Ordinal returns the ordinal value of k. Only meaningful when IsOrdinal.
func (k SymbolKey) Ordinal() uint32 {
	return uint32(k)
}

func (k SymbolKey) String() string {
	if k.IsOrdinal() {
		return fmt.Sprintf("#%d", uint32(k))
	}
	return fmt.Sprintf("0x%016X", uint64(k))
}
