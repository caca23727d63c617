// Package hashgen turns a manifest of module and export names into Go
// constants holding their hashes, so release builds never carry the names
// themselves. It also audits hashes against real DLLs and rewrites
// hash.String("...") call sites in existing source.
package hashgen

import (
	"bytes"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Manifest is the YAML input to Generate.
//
//	package: names
//	modules: [ntdll.dll, kernel32.dll]
//	symbols: [NtAllocateVirtualMemory, LoadLibraryA]
//	literals: [ntdll.dll]
type Manifest struct {
	Package  string   `yaml:"package"`
	Modules  []string `yaml:"modules"`
	Symbols  []string `yaml:"symbols"`
	Literals []string `yaml:"literals"`

	// Source is the file the manifest came from, for the generated header.
	Source string `yaml:"-"`
}

// LoadManifest reads and validates the manifest at path.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read manifest")
	}
	m, err := ParseManifest(data)
	if err != nil {
		return nil, errors.Wrapf(err, "manifest %s", path)
	}
	m.Source = filepath.Base(path)
	return m, nil
}

// ParseManifest decodes YAML, rejecting unknown keys.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil {
		return nil, errors.Wrap(err, "decode")
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *Manifest) Validate() error {
	if m.Package == "" {
		return errors.New("package name is required")
	}
	if len(m.Modules)+len(m.Symbols)+len(m.Literals) == 0 {
		return errors.New("nothing to generate")
	}
	for _, list := range [][]string{m.Modules, m.Symbols, m.Literals} {
		for _, name := range list {
			if name == "" {
				return errors.New("empty name")
			}
			if bytes.IndexByte([]byte(name), 0) >= 0 {
				return errors.Errorf("name %q contains NUL", name)
			}
		}
	}
	return nil
}
