package hashgen

import (
	"encoding/binary"
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carved4/go-symresolve/pkg/hash"
	"github.com/carved4/go-symresolve/pkg/pebuild"
)

const sampleManifest = `
package: names
modules:
  - ntdll.dll
  - KERNEL32.DLL
symbols:
  - NtAllocateVirtualMemory
  - LoadLibraryA
literals:
  - ntdll.dll
`

// parseConsts returns every uint64 constant declared in src.
func parseConsts(t *testing.T, src []byte) map[string]uint64 {
	t.Helper()
	f, err := parser.ParseFile(token.NewFileSet(), "gen.go", src, parser.ParseComments)
	require.NoError(t, err)
	out := map[string]uint64{}
	for _, decl := range f.Decls {
		gd, ok := decl.(*ast.GenDecl)
		if !ok || gd.Tok != token.CONST {
			continue
		}
		for _, spec := range gd.Specs {
			vs := spec.(*ast.ValueSpec)
			lit := vs.Values[0].(*ast.BasicLit)
			v, err := strconv.ParseUint(lit.Value, 0, 64)
			require.NoError(t, err)
			out[vs.Names[0].Name] = v
		}
	}
	return out
}

func TestParseManifest(t *testing.T) {
	m, err := ParseManifest([]byte(sampleManifest))
	require.NoError(t, err)
	assert.Equal(t, "names", m.Package)
	assert.Equal(t, []string{"ntdll.dll", "KERNEL32.DLL"}, m.Modules)
	assert.Equal(t, []string{"ntdll.dll"}, m.Literals)

	_, err = ParseManifest([]byte("package: x\nsymbol: [A]\n"))
	assert.Error(t, err, "unknown key")
	_, err = ParseManifest([]byte("modules: [a.dll]\n"))
	assert.Error(t, err, "missing package")
	_, err = ParseManifest([]byte("package: x\n"))
	assert.Error(t, err, "empty manifest")
	_, err = ParseManifest([]byte("package: x\nsymbols: ['']\n"))
	assert.Error(t, err, "empty name")
}

func TestLoadManifest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "names.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleManifest), 0o644))
	m, err := LoadManifest(path)
	require.NoError(t, err)
	assert.Equal(t, "names.yaml", m.Source)

	_, err = LoadManifest(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestGenerate(t *testing.T) {
	m, err := ParseManifest([]byte(sampleManifest))
	require.NoError(t, err)
	m.Source = "names.yaml"

	src, err := Generate(m)
	require.NoError(t, err)
	text := string(src)

	assert.True(t, strings.HasPrefix(text, "// Code generated by hashgen from names.yaml. DO NOT EDIT.\n\npackage names\n"))

	consts := parseConsts(t, src)
	assert.Equal(t, map[string]uint64{
		"ModuleNtdllDll":                hash.Module("ntdll.dll"),
		"ModuleKERNEL32DLL":             hash.Module("kernel32.dll"),
		"SymbolNtAllocateVirtualMemory": hash.String("NtAllocateVirtualMemory"),
		"SymbolLoadLibraryA":            hash.String("LoadLibraryA"),
	}, consts)

	assert.Contains(t, text, "func LiteralNtdllDll() (b [10]byte) {\n\tb[0] = 0x6e\n\tb[1] = 0x74\n")
	assert.Contains(t, text, "\tb[8] = 0x6c\n\treturn\n}")

	// names only ever appear in comments
	f, err := parser.ParseFile(token.NewFileSet(), "gen.go", src, 0)
	require.NoError(t, err)
	ast.Inspect(f, func(n ast.Node) bool {
		if lit, ok := n.(*ast.BasicLit); ok {
			assert.NotEqual(t, token.STRING, lit.Kind, lit.Value)
		}
		return true
	})
}

func TestGenerateRejectsClashes(t *testing.T) {
	_, err := Generate(&Manifest{Package: "names", Symbols: []string{"a.b", "a_b"}})
	assert.ErrorContains(t, err, "SymbolAB")

	_, err = Generate(&Manifest{Package: "names", Modules: []string{"A.DLL", "a.dll"}})
	assert.ErrorContains(t, err, "share hash")

	_, err = Generate(&Manifest{Package: "not a package", Symbols: []string{"A"}})
	assert.Error(t, err)

	src, err := Generate(&Manifest{Package: "names", Symbols: []string{"A", "A"}, Literals: []string{"x", "x"}})
	require.NoError(t, err, "repeated names are folded")
	assert.Len(t, parseConsts(t, src), 1)
	assert.Equal(t, 1, strings.Count(string(src), "func LiteralX()"))
}

func TestGenerateRejectsUnresolvableNames(t *testing.T) {
	long := strings.Repeat("m", 61) + ".dll"
	_, err := Generate(&Manifest{Package: "names", Modules: []string{long}})
	assert.ErrorContains(t, err, "at most 64")

	ok := strings.Repeat("m", 60) + ".dll"
	_, err = Generate(&Manifest{Package: "names", Modules: []string{ok}})
	assert.NoError(t, err)

	lowHash := func(string) uint64 { return 0x1234 }
	_, err = constEntries(symbolPrefix, []string{"Unlucky"}, lowHash, checkSymbol)
	assert.ErrorContains(t, err, "reads as an ordinal")

	entries, err := constEntries(symbolPrefix, []string{"Foo"}, hash.String, checkSymbol)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, hash.String("Foo"), entries[0].Hash)
}

func TestIdent(t *testing.T) {
	tests := map[string]string{
		"kernel32.dll":        "Kernel32Dll",
		"api-ms-win-core.dll": "ApiMsWinCoreDll",
		"LoadLibraryA":        "LoadLibraryA",
		"_start":              "Start",
		"7zip.dll":            "X7zipDll",
		"??":                  "X",
		"café":                "Caf",
	}
	for in, want := range tests {
		assert.Equal(t, want, Ident(in), in)
	}
}

func TestRegistry(t *testing.T) {
	logger, hook := test.NewNullLogger()
	r := NewRegistry(logger)

	assert.True(t, r.Add("a", 1))
	assert.True(t, r.Add("a", 1))
	assert.True(t, r.Add("b", 2))
	assert.False(t, r.Add("c", 1))

	assert.Equal(t, []Collision{{Hash: 1, Existing: "a", New: "c"}}, r.Collisions())
	assert.Equal(t, 2, r.Len())
	assert.Equal(t, []string{"a", "b"}, r.Names())

	name, ok := r.Lookup(1)
	assert.True(t, ok)
	assert.Equal(t, "a", name)

	require.Len(t, hook.Entries, 1)
	entry := hook.LastEntry()
	assert.Equal(t, logrus.WarnLevel, entry.Level)
	assert.Equal(t, "hash collision", entry.Message)
	assert.Equal(t, "0x0000000000000001", entry.Data["hash"])
	assert.Equal(t, "c", entry.Data["new"])
}

func TestAuditNames(t *testing.T) {
	logger, hook := test.NewNullLogger()
	rep := AuditNames("KERNEL32.DLL",
		[]string{"CloseHandle", "LoadLibraryA", "LoadLibraryA"},
		[]string{"LoadLibraryA", "GetProcAddress"},
		logger)

	assert.Equal(t, hash.Module("kernel32.dll"), rep.ModuleHash)
	assert.Equal(t, 3, rep.Exports)
	assert.Empty(t, rep.Collisions)
	assert.Empty(t, rep.Shadowed)
	assert.Equal(t, []string{"GetProcAddress"}, rep.Missing)
	assert.False(t, rep.Clean())
	assert.NotEmpty(t, hook.AllEntries())

	rep = AuditNames("x.dll", []string{"A"}, []string{"A"}, logger)
	assert.True(t, rep.Clean())
}

func TestAuditDLL(t *testing.T) {
	img, _, err := pebuild.Build(pebuild.Spec{
		ModuleName:  "sample.dll",
		OrdinalBase: 1,
		Exports: []pebuild.Export{
			{Name: "Alpha"},
			{Name: "Beta"},
			{},
		},
	})
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "sample.dll")
	require.NoError(t, os.WriteFile(path, img, 0o644))

	logger, _ := test.NewNullLogger()
	rep, err := Audit(path, []string{"Alpha", "Gamma"}, logger)
	require.NoError(t, err)
	assert.Equal(t, "sample.dll", rep.Module)
	assert.Equal(t, 2, rep.Exports)
	assert.Equal(t, []string{"Gamma"}, rep.Missing)

	_, err = Audit(filepath.Join(t.TempDir(), "none.dll"), nil, logger)
	assert.Error(t, err)
}

func TestAuditKeepsAliases(t *testing.T) {
	img, lay, err := pebuild.Build(pebuild.Spec{
		ModuleName:  "alias.dll",
		OrdinalBase: 1,
		Exports:     []pebuild.Export{{Name: "Alpha"}, {Name: "Beta"}},
	})
	require.NoError(t, err)
	// point Beta's name-ordinal entry at Alpha's slot
	binary.LittleEndian.PutUint16(img[lay.OrdinalTableRVA+2:], 0)
	path := filepath.Join(t.TempDir(), "alias.dll")
	require.NoError(t, os.WriteFile(path, img, 0o644))

	logger, _ := test.NewNullLogger()
	rep, err := Audit(path, []string{"Alpha", "Beta"}, logger)
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Exports)
	assert.Empty(t, rep.Missing)
	assert.True(t, rep.Clean())
}

func TestAuditRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk.dll")
	require.NoError(t, os.WriteFile(path, []byte("MZ not really"), 0o644))
	logger, _ := test.NewNullLogger()
	_, err := Audit(path, nil, logger)
	assert.Error(t, err)
}
