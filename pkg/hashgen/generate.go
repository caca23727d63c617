package hashgen

import (
	"bytes"
	"fmt"
	"go/format"
	"go/token"
	"strings"
	"text/template"
	"unicode"
	"unicode/utf16"

	"github.com/pkg/errors"

	"github.com/carved4/go-symresolve/pkg/hash"
	"github.com/carved4/go-symresolve/pkg/resolve"
)

const (
	modulePrefix  = "Module"
	symbolPrefix  = "Symbol"
	literalPrefix = "Literal"
)

type constEntry struct {
	Ident string
	Name  string
	Hash  uint64
}

type literalEntry struct {
	Ident string
	Name  string
	Bytes []byte
}

func (l literalEntry) Size() int {
	return len(l.Bytes) + 1
}

type fileData struct {
	Source   string
	Package  string
	Modules  []constEntry
	Symbols  []constEntry
	Literals []literalEntry
}

var fileTemplate = template.Must(template.New("names").Funcs(template.FuncMap{
	"hex": hexHash,
}).Parse(`// Code generated by hashgen{{if .Source}} from {{.Source}}{{end}}. DO NOT EDIT.

package {{.Package}}
{{if .Modules}}
// Module name hashes, as computed by hash.Module.
const (
{{- range .Modules}}
	Module{{.Ident}} uint64 = {{hex .Hash}} // {{printf "%q" .Name}}
{{- end}}
)
{{end}}
{{- if .Symbols}}
// Export name hashes, as computed by hash.String.
const (
{{- range .Symbols}}
	Symbol{{.Ident}} uint64 = {{hex .Hash}} // {{printf "%q" .Name}}
{{- end}}
)
{{end}}
{{- range .Literals}}
// Literal{{.Ident}} builds {{printf "%q" .Name}} and a NUL terminator one byte
// at a time.
func Literal{{.Ident}}() (b [{{.Size}}]byte) {
{{- range $i, $c := .Bytes}}
	b[{{$i}}] = {{printf "0x%02x" $c}}
{{- end}}
	return
}
{{end}}`))

// Generate renders m as gofmt'd Go source. Two names in the same namespace
// that hash alike, or that map to the same identifier, are an error: the
// generated constants would silently resolve the wrong thing.
func Generate(m *Manifest) ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	if !token.IsIdentifier(m.Package) {
		return nil, errors.Errorf("invalid package name %q", m.Package)
	}
	data := fileData{Source: m.Source, Package: m.Package}

	var err error
	if data.Modules, err = constEntries(modulePrefix, m.Modules, hash.Module, checkModule); err != nil {
		return nil, err
	}
	if data.Symbols, err = constEntries(symbolPrefix, m.Symbols, hash.String, checkSymbol); err != nil {
		return nil, err
	}

	seen := make(map[string]string)
	for _, name := range m.Literals {
		id := Ident(name)
		if prev, ok := seen[id]; ok {
			if prev == name {
				continue
			}
			return nil, errors.Errorf("literals %q and %q both map to %s%s", prev, name, literalPrefix, id)
		}
		seen[id] = name
		data.Literals = append(data.Literals, literalEntry{Ident: id, Name: name, Bytes: []byte(name)})
	}

	var buf bytes.Buffer
	if err := fileTemplate.Execute(&buf, data); err != nil {
		return nil, errors.Wrap(err, "render")
	}
	out, err := format.Source(buf.Bytes())
	if err != nil {
		return nil, errors.Wrap(err, "gofmt generated source")
	}
	return out, nil
}

func constEntries(prefix string, names []string, fn func(string) uint64, check func(string, uint64) error) ([]constEntry, error) {
	reg := NewRegistry(nil)
	idents := make(map[string]string)
	var out []constEntry
	for _, name := range names {
		id := Ident(name)
		if prev, ok := idents[id]; ok {
			if prev == name {
				continue
			}
			return nil, errors.Errorf("%q and %q both map to %s%s", prev, name, prefix, id)
		}
		idents[id] = name

		h := fn(name)
		if err := check(name, h); err != nil {
			return nil, err
		}
		if !reg.Add(name, h) {
			existing, _ := reg.Lookup(h)
			return nil, errors.Errorf("%q and %q share hash %s", existing, name, hexHash(h))
		}
		out = append(out, constEntry{Ident: id, Name: name, Hash: h})
	}
	return out, nil
}

// checkModule rejects names the walker truncates before hashing; their
// constant could never match a loaded module.
func checkModule(name string, _ uint64) error {
	if n := len(utf16.Encode([]rune(name))); n > resolve.MaxModuleNameLen {
		return errors.Errorf("module %q is %d UTF-16 units, the walker hashes at most %d", name, n, resolve.MaxModuleNameLen)
	}
	return nil
}

// checkSymbol rejects names whose hash has a zero upper half: the resolver
// would take the constant for an ordinal.
func checkSymbol(name string, h uint64) error {
	if resolve.SymbolKey(h).IsOrdinal() {
		return errors.Errorf("symbol %q hashes to %s, which reads as an ordinal", name, hexHash(h))
	}
	return nil
}

// Ident turns a name into the exported Go identifier suffix used for its
// constant: runs of letters and digits are kept, each starts upper case, and
// everything else separates runs. "api-ms-win-core.dll" becomes ApiMsWinCoreDll.
func Ident(name string) string {
	var b strings.Builder
	upper := true
	for _, r := range name {
		if r > unicode.MaxASCII || !(unicode.IsLetter(r) || unicode.IsDigit(r)) {
			upper = true
			continue
		}
		if upper {
			r = unicode.ToUpper(r)
			upper = false
		}
		b.WriteRune(r)
	}
	id := b.String()
	if id == "" || unicode.IsDigit(rune(id[0])) {
		id = "X" + id
	}
	return id
}

func hexHash(h uint64) string {
	return fmt.Sprintf("0x%016X", h)
}
