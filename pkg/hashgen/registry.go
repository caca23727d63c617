package hashgen

import (
	"sort"

	"github.com/sirupsen/logrus"
)

// Collision is two different names that hash to the same value.
type Collision struct {
	Hash     uint64
	Existing string
	New      string
}

// Registry remembers which name produced each hash in one namespace
// (module names and export names are never compared with each other).
type Registry struct {
	log        logrus.FieldLogger
	byHash     map[uint64]string
	collisions []Collision
}

func NewRegistry(log logrus.FieldLogger) *Registry {
	if log == nil {
		log = defaultLogger()
	}
	return &Registry{log: log, byHash: make(map[uint64]string)}
}

// Add records name under h. It returns false, and logs a warning, when h
// already belongs to a different name. Re-adding the same name is a no-op.
func (r *Registry) Add(name string, h uint64) bool {
	existing, ok := r.byHash[h]
	if !ok {
		r.byHash[h] = name
		return true
	}
	if existing == name {
		return true
	}
	r.collisions = append(r.collisions, Collision{Hash: h, Existing: existing, New: name})
	r.log.WithFields(logrus.Fields{
		"hash":     hexHash(h),
		"existing": existing,
		"new":      name,
	}).Warn("hash collision")
	return false
}

// Lookup returns the first name recorded under h.
func (r *Registry) Lookup(h uint64) (string, bool) {
	name, ok := r.byHash[h]
	return name, ok
}

func (r *Registry) Len() int {
	return len(r.byHash)
}

// Collisions returns every collision seen so far, in insertion order.
func (r *Registry) Collisions() []Collision {
	return r.collisions
}

// Names returns the recorded names sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.byHash))
	for _, n := range r.byHash {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func defaultLogger() logrus.FieldLogger {
	return logrus.WithField("subsys", "hashgen")
}
