package hashgen

import (
	"bytes"
	"os"
	"path/filepath"
	"sort"

	"github.com/Binject/debug/pe"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/carved4/go-symresolve/pkg/hash"
	"github.com/carved4/go-symresolve/pkg/memory"
	"github.com/carved4/go-symresolve/pkg/resolve"
)

// auditBase is where a DLL under audit is laid out in a memory.Map.
const auditBase uintptr = 0x10000

// AuditReport describes how safely a set of hashed names can be looked up in
// one DLL.
type AuditReport struct {
	Module     string
	ModuleHash uint64
	Exports    int
	// Collisions are export names in the DLL that hash alike. Only the one
	// listed first in the name table can ever be resolved by hash.
	Collisions []Collision
	// Shadowed are manifest symbols whose hash matches a different export.
	Shadowed []Collision
	// Missing are manifest symbols the DLL does not export by name.
	Missing []string
}

// Clean reports whether every requested symbol resolves unambiguously.
func (r *AuditReport) Clean() bool {
	return len(r.Collisions) == 0 && len(r.Shadowed) == 0 && len(r.Missing) == 0
}

// Audit maps the DLL at path the way the loader would and checks symbols
// against its export name table, read in table order through the same
// resolver the run-time lookups use.
func Audit(path string, symbols []string, log logrus.FieldLogger) (*AuditReport, error) {
	img, err := loadImage(path)
	if err != nil {
		return nil, err
	}
	m := memory.NewMap()
	if err := m.Map(auditBase, img); err != nil {
		return nil, errors.Wrapf(err, "map %s", path)
	}
	names, err := resolve.NewResolver(m).ExportNames(auditBase)
	if err != nil {
		return nil, errors.Wrapf(err, "read export names of %s", path)
	}
	return AuditNames(filepath.Base(path), names, symbols, log), nil
}

// loadImage parses the file at path with Binject's PE reader and returns
// its headers and sections placed at their virtual addresses.
func loadImage(path string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read dll")
	}
	f, err := pe.NewFile(bytes.NewReader(raw))
	if err != nil {
		return nil, errors.Wrapf(err, "parse %s", path)
	}
	defer f.Close()

	var sizeOfImage, sizeOfHeaders uint32
	switch opt := f.OptionalHeader.(type) {
	case *pe.OptionalHeader64:
		sizeOfImage, sizeOfHeaders = opt.SizeOfImage, opt.SizeOfHeaders
	case *pe.OptionalHeader32:
		sizeOfImage, sizeOfHeaders = opt.SizeOfImage, opt.SizeOfHeaders
	default:
		return nil, errors.Errorf("%s has no optional header", path)
	}
	if sizeOfHeaders > sizeOfImage || int(sizeOfHeaders) > len(raw) {
		return nil, errors.Errorf("%s: headers do not fit the image", path)
	}

	img := make([]byte, sizeOfImage)
	copy(img, raw[:sizeOfHeaders])
	for _, s := range f.Sections {
		if s.VirtualAddress >= sizeOfImage {
			return nil, errors.Errorf("%s: section %s outside the image", path, s.Name)
		}
		data, err := s.Data()
		if err != nil {
			return nil, errors.Wrapf(err, "section %s", s.Name)
		}
		copy(img[s.VirtualAddress:], data)
	}
	return img, nil
}

// AuditNames is Audit over an already extracted export name list. Names are
// hashed in the order given, which should be the DLL's name table order.
func AuditNames(module string, exports, symbols []string, log logrus.FieldLogger) *AuditReport {
	if log == nil {
		log = defaultLogger()
	}
	log = log.WithField("module", module)

	rep := &AuditReport{
		Module:     module,
		ModuleHash: hash.Module(module),
		Exports:    len(exports),
	}
	reg := NewRegistry(log)
	exported := make(map[string]bool, len(exports))
	for _, name := range exports {
		exported[name] = true
		reg.Add(name, hash.String(name))
	}
	rep.Collisions = reg.Collisions()

	for _, sym := range symbols {
		h := hash.String(sym)
		owner, ok := reg.Lookup(h)
		switch {
		case ok && owner != sym:
			rep.Shadowed = append(rep.Shadowed, Collision{Hash: h, Existing: owner, New: sym})
			log.WithFields(logrus.Fields{
				"hash":   hexHash(h),
				"symbol": sym,
				"export": owner,
			}).Warn("symbol hash resolves to a different export")
		case !exported[sym]:
			rep.Missing = append(rep.Missing, sym)
			log.WithField("symbol", sym).Warn("symbol not exported by name")
		}
	}
	sort.Strings(rep.Missing)
	log.WithFields(logrus.Fields{
		"exports":    rep.Exports,
		"collisions": len(rep.Collisions),
	}).Debug("audit complete")
	return rep
}
