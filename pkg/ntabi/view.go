package ntabi

import (
	"unicode/utf16"

	"github.com/carved4/go-symresolve/pkg/errors"
	"github.com/carved4/go-symresolve/pkg/memory"
)

// View reads loader structures from an address space using one Layout.
// It holds no state beyond that and can be copied freely.
type View struct {
	Mem    memory.Reader
	Layout *Layout
}

// NewView returns a View over mem. A nil layout selects Win64.
func NewView(mem memory.Reader, layout *Layout) View {
	if layout == nil {
		layout = &Win64
	}
	return View{Mem: mem, Layout: layout}
}

// UnicodeString is the decoded header of a UNICODE_STRING. Length is in
// bytes, as the OS stores it.
type UnicodeString struct {
	Length        uint16
	MaximumLength uint16
	Buffer        uintptr
}

// Units is the number of UTF-16 code units the string holds.
func (u UnicodeString) Units() int {
	return int(u.Length / 2)
}

func (v View) PEB(teb uintptr) (uintptr, error) {
	if teb == 0 {
		return 0, errors.New(errors.ErrNoEnvironment)
	}
	peb, err := memory.Pointer(v.Mem, teb+v.Layout.TebProcessEnvironmentBlock)
	if err != nil {
		return 0, err
	}
	if peb == 0 {
		return 0, errors.New(errors.ErrNoEnvironment)
	}
	return peb, nil
}

// ImageBase is the base of the executable that owns the process.
func (v View) ImageBase(peb uintptr) (uintptr, error) {
	return memory.Pointer(v.Mem, peb+v.Layout.PebImageBaseAddress)
}

// ModuleListHead returns the address of the InMemoryOrderModuleList head
// inside PEB_LDR_DATA. The head is a sentinel, not a module.
func (v View) ModuleListHead(peb uintptr) (uintptr, error) {
	ldr, err := memory.Pointer(v.Mem, peb+v.Layout.PebLdr)
	if err != nil {
		return 0, err
	}
	if ldr == 0 {
		return 0, errors.New(errors.ErrNoEnvironment)
	}
	return ldr + v.Layout.LdrInMemoryOrderModuleList, nil
}

func (v View) Next(link uintptr) (uintptr, error) {
	return memory.Pointer(v.Mem, link+v.Layout.ListFlink)
}

func (v View) Prev(link uintptr) (uintptr, error) {
	return memory.Pointer(v.Mem, link+v.Layout.ListBlink)
}

// Entry converts an InMemoryOrderLinks address into the address of the
// LDR_DATA_TABLE_ENTRY containing it.
func (v View) Entry(link uintptr) uintptr {
	return link - v.Layout.EntryInMemoryOrderLinks
}

func (v View) DllBase(entry uintptr) (uintptr, error) {
	return memory.Pointer(v.Mem, entry+v.Layout.EntryDllBase)
}

func (v View) SizeOfImage(entry uintptr) (uint32, error) {
	return v.Mem.Uint32(entry + v.Layout.EntrySizeOfImage)
}

func (v View) BaseDllName(entry uintptr) (UnicodeString, error) {
	return v.unicodeString(entry + v.Layout.EntryBaseDllName)
}

func (v View) FullDllName(entry uintptr) (UnicodeString, error) {
	return v.unicodeString(entry + v.Layout.EntryFullDllName)
}

func (v View) unicodeString(addr uintptr) (UnicodeString, error) {
	var u UnicodeString
	var err error
	if u.Length, err = v.Mem.Uint16(addr + v.Layout.UnicodeLength); err != nil {
		return u, err
	}
	if u.MaximumLength, err = v.Mem.Uint16(addr + v.Layout.UnicodeMaximumLength); err != nil {
		return u, err
	}
	u.Buffer, err = memory.Pointer(v.Mem, addr+v.Layout.UnicodeBuffer)
	return u, err
}

// Unit reads the i-th UTF-16 unit of u.
func (v View) Unit(u UnicodeString, i int) (uint16, error) {
	return v.Mem.Uint16(u.Buffer + uintptr(i)*2)
}

// String decodes u for display. It allocates and is not used on the
// lookup path.
func (v View) String(u UnicodeString) (string, error) {
	units := make([]uint16, u.Units())
	for i := range units {
		c, err := v.Unit(u, i)
		if err != nil {
			return "", err
		}
		units[i] = c
	}
	return string(utf16.Decode(units)), nil
}

// Module is a decoded loader record, for listings.
type Module struct {
	Base        uintptr
	SizeOfImage uint32
	Name        string
	Path        string
}

// Modules walks the in-memory-order list and decodes every record. Like the
// resolvers it takes no lock; the result is a best-effort snapshot.
func (v View) Modules(teb uintptr) ([]Module, error) {
	peb, err := v.PEB(teb)
	if err != nil {
		return nil, err
	}
	head, err := v.ModuleListHead(peb)
	if err != nil {
		return nil, err
	}
	var mods []Module
	for link, err := v.Next(head); link != head; link, err = v.Next(link) {
		if err != nil {
			return mods, err
		}
		entry := v.Entry(link)
		var m Module
		var name, path UnicodeString
		if m.Base, err = v.DllBase(entry); err != nil {
			return mods, err
		}
		if m.SizeOfImage, err = v.SizeOfImage(entry); err != nil {
			return mods, err
		}
		if name, err = v.BaseDllName(entry); err != nil {
			return mods, err
		}
		if m.Name, err = v.String(name); err != nil {
			return mods, err
		}
		if path, err = v.FullDllName(entry); err != nil {
			return mods, err
		}
		if m.Path, err = v.String(path); err != nil {
			return mods, err
		}
		mods = append(mods, m)
	}
	return mods, nil
}
