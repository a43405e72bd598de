// ============================================================================
// Iguana - Issue Tracker Query Languages
// ============================================================================
//
// Package:     registry
// Description: Searchable field registry of the tracker entities
// Author:      Mike Stoffels
// Created:     2025-03-04
// License:     MIT
// ============================================================================

// Package registry records which fields of which entity may be used in
// search queries. Entity modules register their fields explicitly at
// startup; the registry is sealed afterwards and read-only from then on.
package registry

import (
	"sort"
	"strings"
	"sync"

	mdwerror "github.com/msto63/iguana/foundation/core/error"
	mdwlog "github.com/msto63/iguana/foundation/core/log"
)

// PathSeparator joins the segments of a field path, e.g. tags__tag_text.
const PathSeparator = "__"

// Field is a searchable field of an entity. A field with a Relation points
// to another registered entity and can only be used as an intermediate path
// segment. Via is set for reverse relations and names the field of the
// target entity that points back.
type Field struct {
	Name     string `yaml:"name"`
	Relation string `yaml:"relation,omitempty"`
	Via      string `yaml:"via,omitempty"`
}

// Scalar returns a searchable value field.
func Scalar(name string) Field {
	return Field{Name: name}
}

// Relation returns a searchable field referring to the entity target.
func Relation(name, target string) Field {
	return Field{Name: name, Relation: target}
}

// Reverse returns a relation followed backwards: the target records whose
// field via refers to the record at hand.
func Reverse(name, target, via string) Field {
	return Field{Name: name, Relation: target, Via: via}
}

// IsRelation reports whether the field refers to another entity.
func (f Field) IsRelation() bool {
	return f.Relation != ""
}

type entity struct {
	name   string
	fields []Field
	byName map[string]Field
}

// Options configures a Registry
type Options struct {
	Logger *mdwlog.Logger
}

// Registry maps entity names to their searchable fields
type Registry struct {
	mu       sync.RWMutex
	entities map[string]*entity
	order    []string
	sealed   bool
	logger   *mdwlog.Logger
}

// New creates an empty, unsealed registry
func New(opts Options) *Registry {
	logger := opts.Logger
	if logger == nil {
		logger = mdwlog.GetDefault()
	}
	return &Registry{
		entities: make(map[string]*entity),
		logger:   logger.WithField("component", "registry"),
	}
}

// key normalises entity names; lookups are case-insensitive.
func key(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Register adds an entity with its searchable fields. An entity may be
// registered with no fields; it is then known but never matched by the
// full-text fallback.
func (r *Registry) Register(name string, fields ...Field) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		return mdwerror.Newf("registry is sealed, cannot register %q", name).
			WithCode(mdwerror.CodeRegistry)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return mdwerror.New("entity name cannot be empty").WithCode(mdwerror.CodeRegistry)
	}
	if _, exists := r.entities[key(name)]; exists {
		return mdwerror.Newf("entity %q already registered", name).
			WithCode(mdwerror.CodeRegistry)
	}

	e := &entity{name: name, byName: make(map[string]Field, len(fields))}
	for _, f := range fields {
		if f.Name == "" || strings.Contains(f.Name, PathSeparator) || strings.Contains(f.Name, ".") {
			return mdwerror.Newf("invalid field name %q on entity %q", f.Name, name).
				WithCode(mdwerror.CodeRegistry)
		}
		if _, dup := e.byName[f.Name]; dup {
			return mdwerror.Newf("field %q registered twice on entity %q", f.Name, name).
				WithCode(mdwerror.CodeRegistry)
		}
		e.byName[f.Name] = f
		e.fields = append(e.fields, f)
	}

	r.entities[key(name)] = e
	r.order = append(r.order, name)

	r.logger.Debug("entity registered", mdwlog.Fields{
		"entity": name,
		"fields": len(fields),
	})
	return nil
}

// Seal freezes the registry. It fails if a relation names an entity that
// was never registered.
func (r *Registry) Seal() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		return nil
	}
	for _, name := range r.order {
		for _, f := range r.entities[key(name)].fields {
			if f.IsRelation() {
				if _, ok := r.entities[key(f.Relation)]; !ok {
					return mdwerror.Newf("field %s.%s refers to unknown entity %q", name, f.Name, f.Relation).
						WithCode(mdwerror.CodeRegistry)
				}
			}
		}
	}
	r.sealed = true
	r.logger.Info("registry sealed", mdwlog.Fields{"entities": len(r.order)})
	return nil
}

// Sealed reports whether Seal has been called
func (r *Registry) Sealed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sealed
}

// Has reports whether the entity is registered
func (r *Registry) Has(name string) bool {
	_, ok := r.lookup(name)
	return ok
}

// CanonicalName returns the registered spelling of an entity name
func (r *Registry) CanonicalName(name string) (string, bool) {
	e, ok := r.lookup(name)
	if !ok {
		return "", false
	}
	return e.name, true
}

// Entities returns the registered entity names in registration order
func (r *Registry) Entities() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Fields returns all registered fields of an entity
func (r *Registry) Fields(name string) []Field {
	e, ok := r.lookup(name)
	if !ok {
		return nil
	}
	out := make([]Field, len(e.fields))
	copy(out, e.fields)
	return out
}

// SearchableFields returns the scalar fields of an entity, the field set
// used for full-text search.
func (r *Registry) SearchableFields(name string) []string {
	e, ok := r.lookup(name)
	if !ok {
		return nil
	}
	var out []string
	for _, f := range e.fields {
		if !f.IsRelation() {
			out = append(out, f.Name)
		}
	}
	return out
}

// IsFieldSearchable reports whether path, starting at entity, names a
// searchable scalar field.
func (r *Registry) IsFieldSearchable(name string, path []string) bool {
	_, err := r.Resolve(name, path)
	return err == nil
}

// Hop is one step of a resolved path
type Hop struct {
	Entity string
	Field  Field
}

// Resolution is a validated field path
type Resolution struct {
	Entity string
	Path   []string
	Hops   []Hop
}

// Leaf returns the final scalar field
func (res Resolution) Leaf() Field {
	return res.Hops[len(res.Hops)-1].Field
}

// String renders the path with the path separator
func (res Resolution) String() string {
	return strings.Join(res.Path, PathSeparator)
}

// Resolve walks path from entity. Every segment must be a registered
// field of the entity reached so far and the final segment must be a
// scalar.
func (r *Registry) Resolve(name string, path []string) (Resolution, error) {
	e, ok := r.lookup(name)
	if !ok {
		return Resolution{}, mdwerror.Newf("unknown entity %q", name).
			WithCode(mdwerror.CodeSemantic).WithDetail("entity", name)
	}
	if len(path) == 0 {
		return Resolution{}, mdwerror.Newf("no field given for entity %q", e.name).
			WithCode(mdwerror.CodeSemantic).WithDetail("entity", e.name)
	}

	res := Resolution{Entity: e.name, Path: append([]string(nil), path...)}
	current := e
	for i, segment := range path {
		f, ok := current.byName[segment]
		if !ok {
			return Resolution{}, mdwerror.Newf("field %q is not searchable on %s", segment, current.name).
				WithCode(mdwerror.CodeSemantic).
				WithDetail("entity", current.name).
				WithDetail("field", segment)
		}
		res.Hops = append(res.Hops, Hop{Entity: current.name, Field: f})

		last := i == len(path)-1
		switch {
		case last && f.IsRelation():
			return Resolution{}, mdwerror.Newf("field %s.%s is a relation, name one of its fields", current.name, segment).
				WithCode(mdwerror.CodeSemantic).
				WithDetail("entity", current.name).
				WithDetail("field", segment)
		case !last && !f.IsRelation():
			return Resolution{}, mdwerror.Newf("field %s.%s has no fields", current.name, segment).
				WithCode(mdwerror.CodeSemantic).
				WithDetail("entity", current.name).
				WithDetail("field", segment)
		case !last:
			next, ok := r.lookup(f.Relation)
			if !ok {
				return Resolution{}, mdwerror.Newf("relation %s.%s refers to unknown entity %q", current.name, segment, f.Relation).
					WithCode(mdwerror.CodeRegistry)
			}
			current = next
		}
	}
	return res, nil
}

func (r *Registry) lookup(name string) (*entity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entities[key(name)]
	return e, ok
}

// Describe returns entity name → sorted field paths, expanded one level
// deep through relations. Used by the CLI help output.
func (r *Registry) Describe() map[string][]string {
	out := make(map[string][]string)
	for _, name := range r.Entities() {
		var paths []string
		for _, f := range r.Fields(name) {
			if !f.IsRelation() {
				paths = append(paths, f.Name)
				continue
			}
			for _, sub := range r.SearchableFields(f.Relation) {
				paths = append(paths, f.Name+"."+sub)
			}
		}
		sort.Strings(paths)
		out[name] = paths
	}
	return out
}
