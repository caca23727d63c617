// Package ntabi is the only place that knows where the Windows loader keeps
// its bookkeeping. Everything here is an undocumented ABI: offsets are
// grouped into a named Layout so that a new OS build means a new Layout value,
// not edits scattered through the resolvers.
package ntabi

// Layout holds byte offsets into TEB, PEB, PEB_LDR_DATA, LDR_DATA_TABLE_ENTRY
// and UNICODE_STRING for one OS family.
type Layout struct {
	Name string

	TebSelf                    uintptr // NT_TIB.Self
	TebProcessEnvironmentBlock uintptr

	PebImageBaseAddress uintptr
	PebLdr              uintptr

	LdrInMemoryOrderModuleList uintptr

	ListFlink uintptr
	ListBlink uintptr

	EntryInMemoryOrderLinks uintptr
	EntryDllBase            uintptr
	EntrySizeOfImage        uintptr
	EntryFullDllName        uintptr
	EntryBaseDllName        uintptr

	UnicodeLength        uintptr
	UnicodeMaximumLength uintptr
	UnicodeBuffer        uintptr
}

// Win64 covers x64 Windows from 7 through 11; none of these fields have
// moved in that range.
var Win64 = Layout{
	Name: "win64",

	TebSelf:                    0x30,
	TebProcessEnvironmentBlock: 0x60,

	PebImageBaseAddress: 0x10,
	PebLdr:              0x18,

	LdrInMemoryOrderModuleList: 0x20,

	ListFlink: 0x00,
	ListBlink: 0x08,

	EntryInMemoryOrderLinks: 0x10,
	EntryDllBase:            0x30,
	EntrySizeOfImage:        0x40,
	EntryFullDllName:        0x48,
	EntryBaseDllName:        0x58,

	UnicodeLength:        0x00,
	UnicodeMaximumLength: 0x02,
	UnicodeBuffer:        0x08,
}
