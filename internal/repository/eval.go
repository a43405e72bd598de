package repository

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	mdwerror "github.com/msto63/iguana/foundation/core/error"
	"github.com/msto63/iguana/internal/model"
	"github.com/msto63/iguana/internal/registry"
	"github.com/msto63/iguana/internal/search/ast"
)

// evaluator matches expression trees against the records of one entity.
// A path through a to-many relation matches when any related record
// matches. The repository's read lock is held while it runs.
type evaluator struct {
	m       *MemoryRepository
	entity  string
	regexps map[string]*regexp.Regexp
	paths   map[string]registry.Resolution
}

func newEvaluator(m *MemoryRepository, entity string) (*evaluator, error) {
	return &evaluator{
		m:       m,
		entity:  entity,
		regexps: make(map[string]*regexp.Regexp),
		paths:   make(map[string]registry.Resolution),
	}, nil
}

func (ev *evaluator) match(expr ast.Expr, rec *model.Record) (bool, error) {
	switch e := expr.(type) {
	case *ast.Comparison:
		return ev.compare(e, rec)
	case *ast.And:
		ok, err := ev.match(e.Left, rec)
		if err != nil || !ok {
			return false, err
		}
		return ev.match(e.Right, rec)
	case *ast.Or:
		ok, err := ev.match(e.Left, rec)
		if err != nil || ok {
			return ok, err
		}
		return ev.match(e.Right, rec)
	case *ast.Not:
		ok, err := ev.match(e.Operand, rec)
		return !ok, err
	case nil:
		return true, nil
	default:
		return false, fmt.Errorf("unsupported expression %T", expr)
	}
}

func (ev *evaluator) compare(c *ast.Comparison, rec *model.Record) (bool, error) {
	values, err := ev.values(rec, c.Field)
	if err != nil {
		return false, err
	}
	var re *regexp.Regexp
	if c.Comparator == ast.Regex {
		if re, err = ev.regexp(c.Value.Str); err != nil {
			return false, err
		}
	}
	for _, v := range values {
		if matchValue(v, c.Comparator, c.Value, re) {
			return true, nil
		}
	}
	return false, nil
}

func (ev *evaluator) regexp(pattern string) (*regexp.Regexp, error) {
	if re, ok := ev.regexps[pattern]; ok {
		return re, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, mdwerror.Wrap(err, "invalid regular expression").WithCode(mdwerror.CodeInvalidInput)
	}
	ev.regexps[pattern] = re
	return re, nil
}

func (ev *evaluator) resolve(path []string) (registry.Resolution, error) {
	key := strings.Join(path, registry.PathSeparator)
	if res, ok := ev.paths[key]; ok {
		return res, nil
	}
	res, err := ev.m.registry.Resolve(ev.entity, path)
	if err != nil {
		return registry.Resolution{}, err
	}
	ev.paths[key] = res
	return res, nil
}

// values collects the leaf values reached from rec along path. The
// pseudo field ast.IDField yields the record id.
func (ev *evaluator) values(rec *model.Record, path []string) ([]any, error) {
	if len(path) == 1 && path[0] == ast.IDField {
		return []any{rec.ID}, nil
	}
	res, err := ev.resolve(path)
	if err != nil {
		return nil, err
	}

	current := []*model.Record{rec}
	for _, hop := range res.Hops[:len(res.Hops)-1] {
		current = ev.follow(current, hop.Field)
		if len(current) == 0 {
			return nil, nil
		}
	}

	leaf := res.Leaf().Name
	var out []any
	for _, r := range current {
		if v, ok := r.Attr(leaf); ok && v != nil {
			out = append(out, v)
		}
	}
	return out, nil
}

// follow hops from records over a relation field. Reverse relations
// scan the target entity for records pointing back.
func (ev *evaluator) follow(from []*model.Record, f registry.Field) []*model.Record {
	seen := make(map[int64]bool)
	var out []*model.Record
	add := func(r *model.Record) {
		if !seen[r.ID] {
			seen[r.ID] = true
			out = append(out, r)
		}
	}

	if f.Via != "" {
		ids := make(map[int64]bool, len(from))
		for _, r := range from {
			ids[r.ID] = true
		}
		ev.m.scan(f.Relation, func(candidate *model.Record) bool {
			for _, id := range candidate.Refs[f.Via] {
				if ids[id] {
					add(candidate)
					break
				}
			}
			return true
		})
		return out
	}

	for _, r := range from {
		for _, id := range r.Refs[f.Name] {
			if target, ok := ev.m.get(f.Relation, id); ok {
				add(target)
			}
		}
	}
	return out
}

// matchValue applies one comparator. Values of a different type than
// the query value never match, except that strings are read as dates
// or numbers where possible.
func matchValue(attr any, cmp ast.Comparator, want ast.Value, re *regexp.Regexp) bool {
	switch cmp {
	case ast.Regex:
		return re.MatchString(model.FormatValue(attr))
	case ast.Contains:
		return strings.Contains(model.FormatValue(attr), want.Raw())
	}

	var order int
	switch want.Kind {
	case ast.IntValue:
		n, ok := model.AsInt(attr)
		if !ok {
			return false
		}
		order = compareInt(n, want.Int)
	case ast.DateValue:
		t, ok := model.AsTime(attr)
		if !ok {
			return false
		}
		order = compareDate(t, want.Date)
	default:
		s, ok := attr.(string)
		if !ok {
			s = model.FormatValue(attr)
		}
		order = strings.Compare(s, want.Str)
	}

	switch cmp {
	case ast.Eq:
		return order == 0
	case ast.Gt:
		return order > 0
	case ast.Gte:
		return order >= 0
	case ast.Lt:
		return order < 0
	case ast.Lte:
		return order <= 0
	default:
		return false
	}
}

func compareInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// compareDate compares the calendar day of t with day
func compareDate(t, day time.Time) int {
	y, m, d := t.UTC().Date()
	return compareInt(time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix(), day.Unix())
}

// sort orders records by the directives, the first being the primary
// key, then by id. Missing values sort first.
func (ev *evaluator) sort(records []*model.Record, directives []ast.SortDirective) {
	type keyed struct {
		rec  *model.Record
		keys []any
	}
	rows := make([]keyed, len(records))
	for i, rec := range records {
		rows[i].rec = rec
		for _, d := range directives {
			var key any
			if vals, err := ev.values(rec, d.Field); err == nil && len(vals) > 0 {
				key = vals[0]
			}
			rows[i].keys = append(rows[i].keys, key)
		}
	}

	sort.SliceStable(rows, func(i, j int) bool {
		for k, d := range directives {
			c := compareAny(rows[i].keys[k], rows[j].keys[k])
			if c == 0 {
				continue
			}
			if d.Direction == ast.Descending {
				return c > 0
			}
			return c < 0
		}
		return rows[i].rec.ID < rows[j].rec.ID
	})

	for i := range rows {
		records[i] = rows[i].rec
	}
}

func compareAny(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	if x, ok := a.(int64); ok {
		if y, ok := b.(int64); ok {
			return compareInt(x, y)
		}
	}
	if x, ok := a.(time.Time); ok {
		if y, ok := b.(time.Time); ok {
			return x.Compare(y)
		}
	}
	return strings.Compare(model.FormatValue(a), model.FormatValue(b))
}
