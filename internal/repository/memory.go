package repository

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/btree"

	mdwerror "github.com/msto63/iguana/foundation/core/error"
	mdwlog "github.com/msto63/iguana/foundation/core/log"
	"github.com/msto63/iguana/internal/entities"
	"github.com/msto63/iguana/internal/model"
	"github.com/msto63/iguana/internal/registry"
	"github.com/msto63/iguana/internal/search/ast"
)

// recordItem is stored in the btree, ordered by entity then id. The
// entity is compared lower-cased so lookups ignore case.
type recordItem struct {
	entity string
	id     int64
	rec    *model.Record
}

func lessRecord(a, b recordItem) bool {
	if a.entity != b.entity {
		return a.entity < b.entity
	}
	return a.id < b.id
}

func itemKey(entity string, id int64) recordItem {
	return recordItem{entity: strings.ToLower(entity), id: id}
}

// MemoryOptions configures a MemoryRepository
type MemoryOptions struct {
	Logger   *mdwlog.Logger
	Catalog  *entities.Catalog
	Registry *registry.Registry

	// ReplaceAssignees clears the assignees of an issue before an
	// Olea @user adds one
	ReplaceAssignees bool

	// SavedSearchKeep bounds the non persistent saved searches
	SavedSearchKeep int

	// Now returns the current time
	Now func() time.Time

	// OnPut is called with every stored record while the write lock is
	// held. prev is the replaced version, nil for a new record.
	OnPut func(prev, rec *model.Record)
}

// MemoryRepository keeps all records in a btree. It is safe for
// concurrent use.
type MemoryRepository struct {
	mu       sync.RWMutex
	records  *btree.BTreeG[recordItem]
	maxID    map[string]int64
	searches *searchList

	catalog  *entities.Catalog
	registry *registry.Registry
	logger   *mdwlog.Logger
	options  MemoryOptions
}

// NewMemory creates an empty repository
func NewMemory(opts MemoryOptions) (*MemoryRepository, error) {
	if opts.Logger == nil {
		opts.Logger = mdwlog.GetDefault()
	}
	if opts.Catalog == nil {
		opts.Catalog = entities.Default()
	}
	if opts.Registry == nil {
		reg, err := opts.Catalog.NewRegistry(opts.Logger)
		if err != nil {
			return nil, mdwerror.Wrap(err, "failed to build registry").
				WithCode(mdwerror.CodeServiceInitialization)
		}
		opts.Registry = reg
	}
	if opts.SavedSearchKeep <= 0 {
		opts.SavedSearchKeep = DefaultSavedSearchKeep
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &MemoryRepository{
		records:  btree.NewG(16, lessRecord),
		maxID:    make(map[string]int64),
		searches: newSearchList(opts.SavedSearchKeep),
		catalog:  opts.Catalog,
		registry: opts.Registry,
		logger:   opts.Logger.WithField("component", "memory-repository"),
		options:  opts,
	}, nil
}

// Registry returns the registry queries are resolved against
func (m *MemoryRepository) Registry() *registry.Registry {
	return m.registry
}

// Catalog returns the entity catalog
func (m *MemoryRepository) Catalog() *entities.Catalog {
	return m.catalog
}

// Put inserts or replaces records. A record without id gets the next
// free id of its entity. Entity names are canonicalised.
func (m *MemoryRepository) Put(records ...*model.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range records {
		if err := m.put(rec.Clone()); err != nil {
			return err
		}
	}
	return nil
}

func (m *MemoryRepository) put(rec *model.Record) error {
	name, ok := m.registry.CanonicalName(rec.Entity)
	if !ok {
		return mdwerror.Newf("unknown entity %q", rec.Entity).
			WithCode(mdwerror.CodeInvalidInput).
			WithDetail("entity", rec.Entity)
	}
	rec.Entity = name
	if rec.ID == 0 {
		rec.ID = m.maxID[name] + 1
	}
	if rec.ID > m.maxID[name] {
		m.maxID[name] = rec.ID
	}
	rec.NormalizeAll()

	item := itemKey(name, rec.ID)
	item.rec = rec
	old, replaced := m.records.ReplaceOrInsert(item)
	if m.options.OnPut != nil {
		var prev *model.Record
		if replaced {
			prev = old.rec
		}
		m.options.OnPut(prev, rec)
	}
	return nil
}

// Get returns a copy of a record
func (m *MemoryRepository) Get(entity string, id int64) (*model.Record, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.get(entity, id)
	if !ok {
		return nil, false
	}
	return rec.Clone(), true
}

func (m *MemoryRepository) get(entity string, id int64) (*model.Record, bool) {
	item, ok := m.records.Get(itemKey(entity, id))
	if !ok {
		return nil, false
	}
	return item.rec, true
}

// Delete removes a record
func (m *MemoryRepository) Delete(entity string, id int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.records.Delete(itemKey(entity, id))
	return ok
}

// Len returns the number of records
func (m *MemoryRepository) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.records.Len()
}

// All returns copies of every record in (entity, id) order
func (m *MemoryRepository) All() []*model.Record {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*model.Record, 0, m.records.Len())
	m.records.Ascend(func(i recordItem) bool {
		out = append(out, i.rec.Clone())
		return true
	})
	return out
}

// scan calls fn for every record of entity in id order until fn
// returns false
func (m *MemoryRepository) scan(entity string, fn func(rec *model.Record) bool) {
	from := itemKey(entity, 0)
	to := recordItem{entity: from.entity + "\x00"}
	m.records.AscendRange(from, to, func(i recordItem) bool {
		return fn(i.rec)
	})
}

// lockedLookup reads records while the caller holds the lock
type lockedLookup struct {
	m *MemoryRepository
}

func (l lockedLookup) Get(entity string, id int64) (*model.Record, bool) {
	return l.m.get(entity, id)
}

// Execute evaluates q against the records of its target entity. Results
// are distinct and ordered by the sort directives, then by id. No limit
// is applied; callers limit after permission filtering.
func (m *MemoryRepository) Execute(ctx context.Context, q *ast.CompiledQuery) ([]*model.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entity, ok := m.registry.CanonicalName(q.TargetEntity)
	if !ok {
		return nil, mdwerror.Newf("unknown entity %q", q.TargetEntity).
			WithCode(mdwerror.CodeInvalidInput)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	ev, err := newEvaluator(m, entity)
	if err != nil {
		return nil, err
	}

	var matches []*model.Record
	var evalErr error
	m.scan(entity, func(rec *model.Record) bool {
		ok, err := ev.match(q.Expression, rec)
		if err != nil {
			evalErr = err
			return false
		}
		if ok {
			matches = append(matches, rec)
		}
		return true
	})
	if evalErr != nil {
		return nil, evalErr
	}

	ev.sort(matches, q.Sort)

	out := make([]*model.Record, len(matches))
	for i, rec := range matches {
		out[i] = rec.Clone()
	}

	m.logger.Debug("query executed", mdwlog.Fields{
		"entity":  entity,
		"matches": len(out),
	})
	return out, nil
}

// CanRead reports whether user may see rec
func (m *MemoryRepository) CanRead(_ context.Context, rec *model.Record, user model.UserRef) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.catalog.CanRead(lockedLookup{m}, rec, user)
}

// Present renders rec as a search result
func (m *MemoryRepository) Present(_ context.Context, rec *model.Record) model.Result {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.catalog.Present(lockedLookup{m}, rec)
}

// SaveSearchIfNew autosaves expression unless it is already stored
func (m *MemoryRepository) SaveSearchIfNew(ctx context.Context, expression string, user model.UserRef) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.searches.save(expression, user, m.options.Now()) {
		m.logger.Debug("search autosaved", mdwlog.Fields{"expression": expression, "user": user.String()})
	}
	return nil
}

// ListSearches returns the saved searches user may read, newest first
func (m *MemoryRepository) ListSearches(_ context.Context, user model.UserRef) ([]model.SavedSearch, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.SavedSearch
	for _, s := range m.searches.newestFirst() {
		if m.searchReadable(s, user) {
			out = append(out, s)
		}
	}
	return out, nil
}

// SetPersistent marks a saved search as kept or prunable. Only its
// creator may change it.
func (m *MemoryRepository) SetPersistent(_ context.Context, id string, persistent bool, user model.UserRef) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.searches.setPersistent(id, persistent, user)
}

// searchReadable: the creator and members of projects the search is
// shared with may read it.
func (m *MemoryRepository) searchReadable(s model.SavedSearch, user model.UserRef) bool {
	if s.Creator.ID == user.ID {
		return true
	}
	for _, short := range s.SharedWith {
		if p, ok := m.projectByShort(short); ok && entities.DeveloperAllowed(p, user) {
			return true
		}
	}
	return false
}

// projectByShort finds a project by its short name, ignoring case
func (m *MemoryRepository) projectByShort(short string) (*model.Record, bool) {
	var found *model.Record
	m.scan(entities.ProjectEntity, func(rec *model.Record) bool {
		if strings.EqualFold(rec.String("name_short"), short) {
			found = rec
			return false
		}
		return true
	})
	return found, found != nil
}

// LookupUser resolves a username to a user reference. The comparison
// ignores case.
func (m *MemoryRepository) LookupUser(_ context.Context, username string) (model.UserRef, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var found model.UserRef
	m.scan(entities.UserEntity, func(rec *model.Record) bool {
		if strings.EqualFold(rec.String("username"), username) {
			found = model.UserRef{ID: rec.ID, Username: rec.String("username")}
			return false
		}
		return true
	})
	if found.IsZero() {
		return model.UserRef{}, mdwerror.Newf("unknown user %q", username).
			WithCode(mdwerror.CodeNotFound).
			WithOperation("repository.LookupUser")
	}
	return found, nil
}
