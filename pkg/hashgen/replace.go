package hashgen

import (
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/carved4/go-symresolve/pkg/hash"
)

// callPattern matches hash.String("x"), hash.Module("x") and the root
// package's GetHash("x") / ModuleHash("x"), optionally package qualified.
var callPattern = regexp.MustCompile(`\b(?:(\w+)\.)?(String|Module|GetHash|ModuleHash)\(("(?:[^"\\\n]|\\.)*")\)`)

// Replacement is one rewritten call site.
type Replacement struct {
	Call    string
	Literal string
	Value   string
}

// Replace rewrites every hashing call with a string literal argument in src
// into the constant it evaluates to. Calls through a package other than hash
// (for String/Module) are left alone, so strings.String-like helpers survive.
func Replace(src []byte) ([]byte, []Replacement, error) {
	var (
		reps    []Replacement
		lastErr error
	)
	out := callPattern.ReplaceAllFunc(src, func(call []byte) []byte {
		m := callPattern.FindSubmatch(call)
		pkg, fn := string(m[1]), string(m[2])
		moduleName := false
		switch fn {
		case "String", "Module":
			if pkg != "hash" {
				return call
			}
			moduleName = fn == "Module"
		case "ModuleHash":
			moduleName = true
		}

		lit, err := strconv.Unquote(string(m[3]))
		if err != nil {
			lastErr = errors.Wrapf(err, "unquote %s", m[3])
			return call
		}
		h := hash.String(lit)
		if moduleName {
			h = hash.Module(lit)
		}
		value := "uint64(" + hexHash(h) + ")"
		reps = append(reps, Replacement{Call: string(call), Literal: lit, Value: value})
		return []byte(value)
	})
	if lastErr != nil {
		return nil, nil, lastErr
	}
	return out, reps, nil
}

// ReplaceFile applies Replace to one file, writing it back unless dryRun.
func ReplaceFile(path string, dryRun bool, log logrus.FieldLogger) (int, error) {
	if log == nil {
		log = defaultLogger()
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return 0, errors.Wrap(err, "read")
	}
	out, reps, err := Replace(src)
	if err != nil {
		return 0, errors.Wrap(err, path)
	}
	if len(reps) == 0 {
		return 0, nil
	}
	for _, r := range reps {
		log.WithFields(logrus.Fields{
			"file":  path,
			"value": r.Value,
		}).Infof("%s -> %s", r.Call, r.Value)
	}
	if strings.Contains(string(src), `"github.com/carved4/go-symresolve/pkg/hash"`) &&
		!strings.Contains(string(out), "hash.") {
		log.WithField("file", path).Warn("pkg/hash import is now unused")
	}
	if dryRun {
		return len(reps), nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return 0, errors.Wrap(err, "stat")
	}
	if err := os.WriteFile(path, out, info.Mode().Perm()); err != nil {
		return 0, errors.Wrap(err, "write")
	}
	return len(reps), nil
}

// ReplaceDir runs ReplaceFile over every non-test Go file under root,
// skipping vendor, testdata and hidden directories.
func ReplaceDir(root string, dryRun bool, log logrus.FieldLogger) (int, error) {
	total := 0
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			name := d.Name()
			if path != root && (name == "vendor" || name == "testdata" || strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_")) {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(path, ".go") || strings.HasSuffix(path, "_test.go") {
			return nil
		}
		n, err := ReplaceFile(path, dryRun, log)
		total += n
		return err
	})
	return total, err
}
