//go:build amd64 || arm64

package resolve

import (
	"encoding/binary"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carved4/go-symresolve/pkg/errors"
	"github.com/carved4/go-symresolve/pkg/hash"
	"github.com/carved4/go-symresolve/pkg/memory"
	"github.com/carved4/go-symresolve/pkg/pebuild"
)

const imageBase uintptr = 0x7FF8_1000_0000

func mapImage(t *testing.T, spec pebuild.Spec) (*memory.Map, []byte, *pebuild.Layout) {
	t.Helper()
	img, lay, err := pebuild.Build(spec)
	require.NoError(t, err)
	m := memory.NewMap()
	require.NoError(t, m.Map(imageBase, img))
	return m, img, lay
}

func fooSpec() pebuild.Spec {
	return pebuild.Spec{
		ModuleName:  "foo.dll",
		OrdinalBase: 1,
		Exports: []pebuild.Export{
			{},
			{},
			{Name: "Foo"},
		},
	}
}

func TestFooByNameAndOrdinal(t *testing.T) {
	m, _, lay := mapImage(t, fooSpec())
	r := NewResolver(m)
	want := imageBase + uintptr(lay.FunctionRVAs[2])

	byName, err := r.ExportAddress(imageBase, NameHash(hash.String("Foo")))
	require.NoError(t, err)
	assert.Equal(t, want, byName)

	byOrdinal, err := r.ExportAddress(imageBase, Ordinal(3))
	require.NoError(t, err)
	assert.Equal(t, want, byOrdinal)
}

func TestNameAndOrdinalAgree(t *testing.T) {
	spec := pebuild.Spec{
		OrdinalBase: 7,
		Exports: []pebuild.Export{
			{Name: "CreateThing"},
			{Name: "DestroyThing"},
			{},
			{Name: "a"},
			{Hole: true},
			{Name: "zz_last"},
			{Name: "Fwd", Forward: "other.Fwd"},
		},
	}
	m, _, _ := mapImage(t, spec)
	r := NewResolver(m)

	exports, err := r.Exports(imageBase)
	require.NoError(t, err)
	named := 0
	for _, e := range exports {
		if e.Name == "" || e.Forwarder != "" {
			continue
		}
		named++
		byName, err := r.ExportAddress(imageBase, NameHash(hash.String(e.Name)))
		require.NoError(t, err, e.Name)
		byOrdinal, err := r.ExportAddress(imageBase, Ordinal(uint16(e.Ordinal)))
		require.NoError(t, err, e.Name)
		assert.Equal(t, byName, byOrdinal, e.Name)
		assert.Equal(t, e.Address, byName, e.Name)
	}
	assert.Equal(t, 4, named)
}

func TestExportNamesAreCaseSensitive(t *testing.T) {
	m, _, _ := mapImage(t, fooSpec())
	_, err := NewResolver(m).ExportAddress(imageBase, NameHash(hash.String("foo")))
	assert.True(t, errors.IsCode(err, errors.ErrSymbolNotFound))
}

func TestOrdinalBounds(t *testing.T) {
	m, _, lay := mapImage(t, fooSpec())
	r := NewResolver(m)

	tests := []struct {
		name string
		key  SymbolKey
		code errors.Code
	}{
		{"below base", Ordinal(0), errors.ErrOrdinalBelowBase},
		{"past end", Ordinal(4), errors.ErrIndexOutOfRange},
		{"far past end", Ordinal(0xFFFF), errors.ErrIndexOutOfRange},
		{"wider than 16 bits", SymbolKey(0x1_0001), errors.ErrOrdinalRange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			addr, err := r.ExportAddress(imageBase, tt.key)
			assert.Zero(t, addr)
			assert.True(t, errors.IsCode(err, tt.code), "got %v", err)
		})
	}

	addr, err := r.ExportAddress(imageBase, Ordinal(1))
	require.NoError(t, err)
	assert.Equal(t, imageBase+uintptr(lay.FunctionRVAs[0]), addr)
}

func TestForwarderRejected(t *testing.T) {
	spec := pebuild.Spec{
		OrdinalBase: 1,
		Exports: []pebuild.Export{
			{Name: "Real"},
			{Name: "Moved", Forward: "NTDLL.RtlMoved"},
		},
	}
	m, _, _ := mapImage(t, spec)
	r := NewResolver(m)

	addr, err := r.ExportAddress(imageBase, NameHash(hash.String("Moved")))
	assert.Zero(t, addr)
	assert.True(t, errors.IsCode(err, errors.ErrForwarded))

	addr, err = r.ExportAddress(imageBase, Ordinal(2))
	assert.Zero(t, addr)
	assert.True(t, errors.IsCode(err, errors.ErrForwarded))

	_, err = r.ExportAddress(imageBase, NameHash(hash.String("Real")))
	assert.NoError(t, err)
}

func TestForwarderBoundary(t *testing.T) {
	m, img, lay := mapImage(t, fooSpec())
	r := NewResolver(m)
	slot := lay.AddressTableRVA + 4*2
	le := binary.LittleEndian

	// exactly the directory start is not inside the directory
	le.PutUint32(img[slot:], lay.ExportDirRVA)
	addr, err := r.ExportAddress(imageBase, Ordinal(3))
	require.NoError(t, err)
	assert.Equal(t, imageBase+uintptr(lay.ExportDirRVA), addr)

	le.PutUint32(img[slot:], lay.ExportDirRVA+1)
	_, err = r.ExportAddress(imageBase, Ordinal(3))
	assert.True(t, errors.IsCode(err, errors.ErrForwarded))

	le.PutUint32(img[slot:], lay.ExportDirRVA+lay.ExportDirSize-1)
	_, err = r.ExportAddress(imageBase, Ordinal(3))
	assert.True(t, errors.IsCode(err, errors.ErrForwarded))

	// one past the end is outside again
	le.PutUint32(img[slot:], lay.ExportDirRVA+lay.ExportDirSize)
	addr, err = r.ExportAddress(imageBase, Ordinal(3))
	require.NoError(t, err)
	assert.Equal(t, imageBase+uintptr(lay.ExportDirRVA+lay.ExportDirSize), addr)
}

func TestEmptySlot(t *testing.T) {
	spec := pebuild.Spec{OrdinalBase: 1, Exports: []pebuild.Export{{Name: "A"}, {Hole: true}}}
	m, _, _ := mapImage(t, spec)
	_, err := NewResolver(m).ExportAddress(imageBase, Ordinal(2))
	assert.True(t, errors.IsCode(err, errors.ErrSymbolNotFound))
}

func TestMalformedHeaders(t *testing.T) {
	le := binary.LittleEndian
	tests := []struct {
		name   string
		spec   func(*pebuild.Spec)
		mutate func(img []byte, lay *pebuild.Layout)
		base   uintptr
		code   errors.Code
	}{
		{name: "null base", base: 0, code: errors.ErrInvalidBase},
		{name: "invalid handle base", base: ^uintptr(0), code: errors.ErrInvalidBase},
		{name: "unmapped base", base: 0x1000, code: errors.ErrUnreadable},
		{
			name:   "dos magic",
			mutate: func(img []byte, _ *pebuild.Layout) { img[0] = 'Z' },
			code:   errors.ErrDosSignature,
		},
		{
			name:   "header offset at limit",
			mutate: func(img []byte, _ *pebuild.Layout) { le.PutUint32(img[0x3C:], 256<<20) },
			code:   errors.ErrHeaderOffset,
		},
		{
			name:   "header offset outside mapping",
			mutate: func(img []byte, _ *pebuild.Layout) { le.PutUint32(img[0x3C:], 256<<20-1) },
			code:   errors.ErrUnreadable,
		},
		{
			name: "nt signature",
			mutate: func(img []byte, lay *pebuild.Layout) {
				img[lay.NtHeaderOffset+1] = 'X'
			},
			code: errors.ErrNtSignature,
		},
		{
			name: "pe32 image",
			spec: func(s *pebuild.Spec) { s.Magic = pebuild.Magic32 },
			code: errors.ErrImageFormat,
		},
		{
			name: "no export directory",
			spec: func(s *pebuild.Spec) { s.NoExports = true },
			code: errors.ErrNoExports,
		},
		{
			name: "zero functions",
			mutate: func(img []byte, lay *pebuild.Layout) {
				le.PutUint32(img[lay.ExportDirRVA+20:], 0)
			},
			code: errors.ErrNoExports,
		},
		{
			name: "name table outside image",
			mutate: func(img []byte, lay *pebuild.Layout) {
				le.PutUint32(img[lay.ExportDirRVA+32:], 0x7FFF_0000)
			},
			code: errors.ErrUnreadable,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := fooSpec()
			if tt.spec != nil {
				tt.spec(&spec)
			}
			m, img, lay := mapImage(t, spec)
			if tt.mutate != nil {
				tt.mutate(img, lay)
			}
			base := imageBase
			if tt.mutate == nil && tt.spec == nil {
				base = tt.base
			}
			addr, err := NewResolver(m).ExportAddress(base, NameHash(hash.String("Foo")))
			assert.Zero(t, addr)
			assert.True(t, errors.IsCode(err, tt.code), "got %v", err)
		})
	}
}

func TestLongNamesAreTruncated(t *testing.T) {
	long := "Function_with_a_name_that_runs_well_past_the_sixty_four_byte_scan_window"
	require.Greater(t, len(long), MaxExportNameLen)
	spec := pebuild.Spec{OrdinalBase: 1, Exports: []pebuild.Export{{Name: long}}}
	m, _, _ := mapImage(t, spec)
	r := NewResolver(m)

	_, err := r.ExportAddress(imageBase, NameHash(hash.String(long)))
	assert.True(t, errors.IsCode(err, errors.ErrSymbolNotFound))

	addr, err := r.ExportAddress(imageBase, NameHash(hash.String(long[:MaxExportNameLen])))
	require.NoError(t, err)
	assert.NotZero(t, addr)
}

func TestFirstNameMatchWins(t *testing.T) {
	m, img, lay := mapImage(t, pebuild.Spec{
		OrdinalBase: 1,
		Exports:     []pebuild.Export{{Name: "Dup"}, {Name: "Other"}},
	})
	// both name entries now spell "Dup"; the earlier one decides the slot
	le := binary.LittleEndian
	le.PutUint32(img[lay.NameTableRVA+4:], lay.NameRVAs["Dup"])

	addr, err := NewResolver(m).ExportAddress(imageBase, NameHash(hash.String("Dup")))
	require.NoError(t, err)
	assert.Equal(t, imageBase+uintptr(lay.FunctionRVAs[0]), addr)
}

func TestIdempotent(t *testing.T) {
	m, _, _ := mapImage(t, fooSpec())
	r := NewResolver(m)
	first, err := r.ExportAddress(imageBase, NameHash(hash.String("Foo")))
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := r.ExportAddress(imageBase, NameHash(hash.String("Foo")))
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestExportsListing(t *testing.T) {
	spec := pebuild.Spec{
		OrdinalBase: 10,
		Exports: []pebuild.Export{
			{Name: "Alpha"},
			{},
			{Hole: true},
			{Name: "Beta", Forward: "core.Beta"},
		},
	}
	m, _, lay := mapImage(t, spec)
	got, err := NewResolver(m).Exports(imageBase)
	require.NoError(t, err)

	want := []ExportEntry{
		{Ordinal: 10, Index: 0, Name: "Alpha", RVA: lay.FunctionRVAs[0], Address: imageBase + uintptr(lay.FunctionRVAs[0])},
		{Ordinal: 11, Index: 1, RVA: lay.FunctionRVAs[1], Address: imageBase + uintptr(lay.FunctionRVAs[1])},
		{Ordinal: 13, Index: 3, Name: "Beta", RVA: lay.FunctionRVAs[3], Address: imageBase + uintptr(lay.FunctionRVAs[3]), Forwarder: "core.Beta"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Exports() mismatch (-want +got):\n%s", diff)
	}
}

func TestSymbolKey(t *testing.T) {
	assert.True(t, Ordinal(42).IsOrdinal())
	assert.Equal(t, uint32(42), Ordinal(42).Ordinal())
	assert.Equal(t, "#42", Ordinal(42).String())

	k := NameHash(hash.String("Foo"))
	assert.False(t, k.IsOrdinal())
	assert.Equal(t, "0xE060A5863C0E3286", k.String())

	// a hash with a zero upper half is indistinguishable from an ordinal
	assert.True(t, NameHash(0x0000_0000_DEAD_BEEF).IsOrdinal())
	assert.True(t, SymbolKey(0).IsOrdinal())
}

func TestExportNamesKeepsAliases(t *testing.T) {
	m, img, lay := mapImage(t, pebuild.Spec{
		OrdinalBase: 1,
		Exports:     []pebuild.Export{{Name: "Zeta"}, {Name: "Alpha"}, {Name: "Beta"}},
	})
	// Beta now shares Zeta's slot
	binary.LittleEndian.PutUint16(img[lay.OrdinalTableRVA+2:], 0)

	r := NewResolver(m)
	names, err := r.ExportNames(imageBase)
	require.NoError(t, err)
	assert.Equal(t, []string{"Alpha", "Beta", "Zeta"}, names)

	beta, err := r.ExportAddress(imageBase, NameHash(hash.String("Beta")))
	require.NoError(t, err)
	zeta, err := r.ExportAddress(imageBase, NameHash(hash.String("Zeta")))
	require.NoError(t, err)
	assert.Equal(t, zeta, beta)

	_, err = r.ExportNames(imageBase + 1)
	assert.True(t, errors.IsCode(err, errors.ErrDosSignature))
}
