//go:build amd64 || arm64

// Package fakeproc lays out the loader structures of a pretend process in a
// memory.Map, using the same ntabi.Layout the walker reads with.
package fakeproc

import (
	"unicode/utf16"

	"github.com/pkg/errors"

	"github.com/carved4/go-symresolve/pkg/memory"
	"github.com/carved4/go-symresolve/pkg/ntabi"
)

const (
	// DefaultArena is where the structures are placed unless Options says otherwise.
	DefaultArena uintptr = 0x7FFE_0000_0000

	tebOffset     = 0x0000
	pebOffset     = 0x1000
	ldrOffset     = 0x2000
	entriesOffset = 0x3000
	entryStride   = 0x400
	nameOffset    = 0x200 // inside an entry slot
	pathOffset    = 0x300
)

// Module is one loader record. Units, when set, is used verbatim as the
// base name instead of encoding Name, so tests can plant arbitrary UTF-16.
type Module struct {
	Name        string
	Units       []uint16
	Path        string
	Base        uintptr
	SizeOfImage uint32
}

// Process is the result of New.
type Process struct {
	Mem       *memory.Map
	Layout    *ntabi.Layout
	TEB       uintptr
	PEB       uintptr
	Ldr       uintptr
	ListHead  uintptr
	ImageBase uintptr
	// Links[i] is the InMemoryOrderLinks address of module i.
	Links []uintptr
}

// Options tweaks New.
type Options struct {
	Mem    *memory.Map
	Arena  uintptr
	Layout *ntabi.Layout
	// Backing, when set, is mapped at Arena instead of a fresh allocation.
	// Pass a live slice and its own address to get structures that
	// memory.Local can read.
	Backing []byte
}

// Size is how many arena bytes New needs for n modules.
func Size(n int) int {
	return entriesOffset + entryStride*n
}

// New builds a process whose executable is mapped at imageBase and whose
// in-memory-order module list holds mods in order.
func New(imageBase uintptr, mods ...Module) (*Process, error) {
	return NewWithOptions(Options{}, imageBase, mods...)
}

func NewWithOptions(opts Options, imageBase uintptr, mods ...Module) (*Process, error) {
	if opts.Mem == nil {
		opts.Mem = memory.NewMap()
	}
	if opts.Arena == 0 {
		opts.Arena = DefaultArena
	}
	if opts.Layout == nil {
		opts.Layout = &ntabi.Win64
	}
	l := opts.Layout
	m := opts.Mem

	if opts.Backing != nil {
		if len(opts.Backing) < Size(len(mods)) {
			return nil, errors.Errorf("backing holds %d bytes, need %d", len(opts.Backing), Size(len(mods)))
		}
		if err := m.Map(opts.Arena, opts.Backing); err != nil {
			return nil, err
		}
	} else if _, err := m.Alloc(opts.Arena, Size(len(mods))); err != nil {
		return nil, err
	}

	p := &Process{
		Mem:       m,
		Layout:    l,
		TEB:       opts.Arena + tebOffset,
		PEB:       opts.Arena + pebOffset,
		Ldr:       opts.Arena + ldrOffset,
		ImageBase: imageBase,
	}
	p.ListHead = p.Ldr + l.LdrInMemoryOrderModuleList

	put := func(addr uintptr, v uintptr) {
		// the arena was allocated to fit every write below
		_ = m.PutUint64(addr, uint64(v))
	}
	put(p.TEB+l.TebSelf, p.TEB)
	put(p.TEB+l.TebProcessEnvironmentBlock, p.PEB)
	put(p.PEB+l.PebImageBaseAddress, imageBase)
	put(p.PEB+l.PebLdr, p.Ldr)

	for i, mod := range mods {
		slot := opts.Arena + entriesOffset + uintptr(i*entryStride)
		link := slot + l.EntryInMemoryOrderLinks
		p.Links = append(p.Links, link)

		put(slot+l.EntryDllBase, mod.Base)
		_ = m.PutUint32(slot+l.EntrySizeOfImage, mod.SizeOfImage)

		units := mod.Units
		if units == nil {
			units = utf16.Encode([]rune(mod.Name))
		}
		writeUnicode(m, l, slot+l.EntryBaseDllName, slot+nameOffset, units)
		path := mod.Path
		if path == "" {
			path = `C:\Windows\System32\` + mod.Name
		}
		writeUnicode(m, l, slot+l.EntryFullDllName, slot+pathOffset, utf16.Encode([]rune(path)))
	}

	// close the ring: head -> links[0] -> ... -> links[n-1] -> head
	ring := append([]uintptr{p.ListHead}, p.Links...)
	for i, cur := range ring {
		next := ring[(i+1)%len(ring)]
		prev := ring[(i+len(ring)-1)%len(ring)]
		put(cur+l.ListFlink, next)
		put(cur+l.ListBlink, prev)
	}
	return p, nil
}

// writeUnicode stores a UNICODE_STRING header at hdr pointing to units at buf.
// Units past the slot are dropped; tests never need more than 0x80 of them.
func writeUnicode(m *memory.Map, l *ntabi.Layout, hdr, buf uintptr, units []uint16) {
	if len(units) > 0x7F {
		units = units[:0x7F]
	}
	_ = m.PutUint16(hdr+l.UnicodeLength, uint16(len(units)*2))
	_ = m.PutUint16(hdr+l.UnicodeMaximumLength, uint16(len(units)*2+2))
	_ = m.PutUint64(hdr+l.UnicodeBuffer, uint64(buf))
	for i, c := range units {
		_ = m.PutUint16(buf+uintptr(i*2), c)
	}
}

// SetLength overwrites the byte length of module i's base name without
// touching its buffer.
func (p *Process) SetLength(i int, length uint16) error {
	entry := p.Links[i] - p.Layout.EntryInMemoryOrderLinks
	return p.Mem.PutUint16(entry+p.Layout.EntryBaseDllName+p.Layout.UnicodeLength, length)
}

// Corrupt points the Flink of module i at addr.
func (p *Process) Corrupt(i int, addr uintptr) error {
	return p.Mem.PutUint64(p.Links[i]+p.Layout.ListFlink, uint64(addr))
}
