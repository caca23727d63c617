// Package pebuild produces small PE32+ images in their mapped layout, with
// an export directory shaped by the caller. The output is valid enough for
// both the resolvers and an ordinary PE parser; tests then corrupt it through
// the offsets in Layout.
package pebuild

import (
	"encoding/binary"
	"sort"

	"github.com/pkg/errors"
	"golang.org/x/exp/constraints"
)

const (
	DosMagic       = 0x5A4D     // "MZ"
	NtSignature    = 0x00004550 // "PE\0\0"
	Magic64        = 0x20B
	Magic32        = 0x10B
	MachineAMD64   = 0x8664
	sizeOfOptional = 240
	numDirectories = 16

	SectionAlignment = 0x1000
	FileAlignment    = 0x200

	NtHeaderOffset = 0x80
	stubSize       = 0x10
	textRVA        = SectionAlignment
)

// Export is one slot in the export address table; slot i has ordinal
// Base+i. A named slot appears in the name table. Forward turns the slot
// into a forwarder string ("OTHER.Func"). Hole leaves the slot's RVA at 0.
type Export struct {
	Name    string
	Forward string
	Hole    bool
}

// Spec describes the image to build.
type Spec struct {
	ModuleName  string
	OrdinalBase uint32
	Exports     []Export
	// Magic overrides the optional header magic; zero means PE32+.
	Magic uint16
	// NoExports leaves the export data directory empty.
	NoExports bool
}

// Layout records where things ended up.
type Layout struct {
	SizeOfImage     uint32
	NtHeaderOffset  uint32
	OptionalHeader  uint32
	ExportDirEntry  uint32 // offset of DataDirectory[0]
	ExportDirRVA    uint32
	ExportDirSize   uint32
	AddressTableRVA uint32
	NameTableRVA    uint32
	OrdinalTableRVA uint32
	FunctionRVAs    []uint32 // per EAT slot, 0 for holes
	NameRVAs        map[string]uint32
}

func align[T constraints.Integer](v, a T) T {
	return (v + a - 1) &^ (a - 1)
}

// Build lays out the image. The returned slice is SizeOfImage bytes long
// and can be mapped as-is; file offsets equal RVAs.
func Build(spec Spec) ([]byte, *Layout, error) {
	if len(spec.Exports) > 0xFFFF {
		return nil, nil, errors.Errorf("%d exports do not fit the ordinal table", len(spec.Exports))
	}
	magic := spec.Magic
	if magic == 0 {
		magic = Magic64
	}
	if spec.ModuleName == "" {
		spec.ModuleName = "synthetic.dll"
	}

	lay := &Layout{
		NtHeaderOffset: NtHeaderOffset,
		OptionalHeader: NtHeaderOffset + 4 + 20,
		NameRVAs:       make(map[string]uint32),
	}
	lay.ExportDirEntry = lay.OptionalHeader + 112

	// .text: one ret stub per slot that has code
	cur := uint32(textRVA)
	lay.FunctionRVAs = make([]uint32, len(spec.Exports))
	for i, e := range spec.Exports {
		if e.Hole || e.Forward != "" {
			continue
		}
		lay.FunctionRVAs[i] = cur
		cur += stubSize
	}

	type named struct {
		name  string
		index uint16
	}
	var names []named
	for i, e := range spec.Exports {
		if e.Name != "" {
			names = append(names, named{e.Name, uint16(i)})
		}
	}
	// the loader binary-searches the name table, so keep it sorted
	sort.SliceStable(names, func(i, j int) bool { return names[i].name < names[j].name })

	// export data: directory, EAT, ENT, ENOT, then strings
	cur = align(cur, 16)
	lay.ExportDirRVA = cur
	cur += 40
	lay.AddressTableRVA = cur
	cur += 4 * uint32(len(spec.Exports))
	lay.NameTableRVA = cur
	cur += 4 * uint32(len(names))
	lay.OrdinalTableRVA = cur
	cur += 2 * uint32(len(names))

	var strs []byte
	addString := func(s string) uint32 {
		rva := cur + uint32(len(strs))
		strs = append(strs, s...)
		strs = append(strs, 0)
		return rva
	}
	moduleNameRVA := addString(spec.ModuleName)
	for _, n := range names {
		lay.NameRVAs[n.name] = addString(n.name)
	}
	for i, e := range spec.Exports {
		if e.Forward != "" && !e.Hole {
			lay.FunctionRVAs[i] = addString(e.Forward)
		}
	}
	cur += uint32(len(strs))
	lay.ExportDirSize = cur - lay.ExportDirRVA

	lay.SizeOfImage = align(cur, SectionAlignment)
	img := make([]byte, lay.SizeOfImage)
	le := binary.LittleEndian

	// DOS header
	le.PutUint16(img[0:], DosMagic)
	le.PutUint32(img[0x3C:], NtHeaderOffset)

	// NT headers
	nt := img[NtHeaderOffset:]
	le.PutUint32(nt[0:], NtSignature)
	fh := nt[4:]
	le.PutUint16(fh[0:], MachineAMD64)
	le.PutUint16(fh[2:], 1) // NumberOfSections
	le.PutUint16(fh[16:], sizeOfOptional)
	le.PutUint16(fh[18:], 0x2022) // EXECUTABLE_IMAGE | LARGE_ADDRESS_AWARE | DLL

	opt := img[lay.OptionalHeader:]
	le.PutUint16(opt[0:], magic)
	le.PutUint32(opt[4:], lay.SizeOfImage-textRVA) // SizeOfCode
	le.PutUint32(opt[20:], textRVA)                // BaseOfCode
	le.PutUint64(opt[24:], 0x180000000)            // ImageBase
	le.PutUint32(opt[32:], SectionAlignment)
	le.PutUint32(opt[36:], FileAlignment)
	le.PutUint16(opt[40:], 6) // MajorOperatingSystemVersion
	le.PutUint16(opt[48:], 6) // MajorSubsystemVersion
	le.PutUint32(opt[56:], lay.SizeOfImage)
	le.PutUint32(opt[60:], textRVA) // SizeOfHeaders
	le.PutUint16(opt[68:], 3)       // IMAGE_SUBSYSTEM_WINDOWS_CUI
	le.PutUint64(opt[72:], 0x100000)
	le.PutUint64(opt[80:], 0x1000)
	le.PutUint64(opt[88:], 0x100000)
	le.PutUint64(opt[96:], 0x1000)
	le.PutUint32(opt[108:], numDirectories)
	if !spec.NoExports {
		le.PutUint32(opt[112:], lay.ExportDirRVA)
		le.PutUint32(opt[116:], lay.ExportDirSize)
	}

	// single section covering code and export data
	sh := img[lay.OptionalHeader+sizeOfOptional:]
	copy(sh[0:8], ".text")
	le.PutUint32(sh[8:], lay.SizeOfImage-textRVA)  // VirtualSize
	le.PutUint32(sh[12:], textRVA)                 // VirtualAddress
	le.PutUint32(sh[16:], lay.SizeOfImage-textRVA) // SizeOfRawData
	le.PutUint32(sh[20:], textRVA)                 // PointerToRawData
	le.PutUint32(sh[36:], 0x60000020)              // CODE | EXECUTE | READ

	for _, rva := range lay.FunctionRVAs {
		if rva != 0 && rva < lay.ExportDirRVA {
			img[rva] = 0xC3
		}
	}

	ed := img[lay.ExportDirRVA:]
	le.PutUint32(ed[12:], moduleNameRVA)
	le.PutUint32(ed[16:], spec.OrdinalBase)
	le.PutUint32(ed[20:], uint32(len(spec.Exports)))
	le.PutUint32(ed[24:], uint32(len(names)))
	le.PutUint32(ed[28:], lay.AddressTableRVA)
	le.PutUint32(ed[32:], lay.NameTableRVA)
	le.PutUint32(ed[36:], lay.OrdinalTableRVA)

	for i, rva := range lay.FunctionRVAs {
		le.PutUint32(img[lay.AddressTableRVA+4*uint32(i):], rva)
	}
	for i, n := range names {
		le.PutUint32(img[lay.NameTableRVA+4*uint32(i):], lay.NameRVAs[n.name])
		le.PutUint16(img[lay.OrdinalTableRVA+2*uint32(i):], n.index)
	}
	copy(img[moduleNameRVA:], strs)

	return img, lay, nil
}
