// ============================================================================
// Iguana - Issue Tracker Query Languages
// ============================================================================
//
// Package:     model
// Description: Records, users and search results shared by the layers
// Author:      Mike Stoffels
// Created:     2025-03-07
// License:     MIT
// ============================================================================

// Package model holds the plain data types exchanged between the query
// languages and the repositories. A Record is a schemaless tracker object:
// scalar attributes plus references to other records by id.
package model

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

// UserRef identifies the user on whose behalf a query runs
type UserRef struct {
	ID       int64  `json:"id" yaml:"id"`
	Username string `json:"username" yaml:"username"`
}

func (u UserRef) String() string {
	if u.Username != "" {
		return u.Username
	}
	return "#" + strconv.FormatInt(u.ID, 10)
}

// IsZero reports whether no user is set
func (u UserRef) IsZero() bool {
	return u.ID == 0 && u.Username == ""
}

// Record is one stored object. Attrs holds scalar values (string, int64,
// time.Time, bool); Refs holds forward references by field name.
type Record struct {
	Entity string             `json:"entity" yaml:"entity"`
	ID     int64              `json:"id" yaml:"id"`
	Attrs  map[string]any     `json:"attrs,omitempty" yaml:"attrs,omitempty"`
	Refs   map[string][]int64 `json:"refs,omitempty" yaml:"refs,omitempty"`
}

// Key identifies a record across entities
type Key struct {
	Entity string
	ID     int64
}

func (k Key) String() string {
	return fmt.Sprintf("%s#%d", k.Entity, k.ID)
}

// Key returns the record key
func (r *Record) Key() Key {
	return Key{Entity: r.Entity, ID: r.ID}
}

// Clone returns a deep copy
func (r *Record) Clone() *Record {
	out := &Record{Entity: r.Entity, ID: r.ID}
	if r.Attrs != nil {
		out.Attrs = make(map[string]any, len(r.Attrs))
		for k, v := range r.Attrs {
			out.Attrs[k] = v
		}
	}
	if r.Refs != nil {
		out.Refs = make(map[string][]int64, len(r.Refs))
		for k, v := range r.Refs {
			out.Refs[k] = append([]int64(nil), v...)
		}
	}
	return out
}

// Attr returns an attribute value
func (r *Record) Attr(name string) (any, bool) {
	v, ok := r.Attrs[name]
	return v, ok
}

// String returns an attribute as text, "" when absent
func (r *Record) String(name string) string {
	v, ok := r.Attrs[name]
	if !ok || v == nil {
		return ""
	}
	return FormatValue(v)
}

// Int returns an integer attribute
func (r *Record) Int(name string) (int64, bool) {
	v, ok := r.Attrs[name].(int64)
	return v, ok
}

// Ref returns the first reference of a field
func (r *Record) Ref(field string) (int64, bool) {
	ids := r.Refs[field]
	if len(ids) == 0 {
		return 0, false
	}
	return ids[0], true
}

// SetAttr stores a normalized attribute value
func (r *Record) SetAttr(name string, v any) {
	if r.Attrs == nil {
		r.Attrs = make(map[string]any)
	}
	r.Attrs[name] = Normalize(v)
}

// SetRef replaces the references of a field
func (r *Record) SetRef(field string, ids ...int64) {
	if r.Refs == nil {
		r.Refs = make(map[string][]int64)
	}
	r.Refs[field] = append([]int64(nil), ids...)
}

// AddRef adds a reference once
func (r *Record) AddRef(field string, id int64) {
	for _, existing := range r.Refs[field] {
		if existing == id {
			return
		}
	}
	if r.Refs == nil {
		r.Refs = make(map[string][]int64)
	}
	r.Refs[field] = append(r.Refs[field], id)
}

// HasRef reports whether field refers to id
func (r *Record) HasRef(field string, id int64) bool {
	for _, existing := range r.Refs[field] {
		if existing == id {
			return true
		}
	}
	return false
}

// Normalize converts decoded values to the attribute types. Whole
// floats (JSON numbers) become int64, other integer kinds widen to int64.
func Normalize(v any) any {
	switch x := v.(type) {
	case int:
		return int64(x)
	case int32:
		return int64(x)
	case uint:
		return int64(x)
	case float64:
		if x == math.Trunc(x) && math.Abs(x) < math.MaxInt64 {
			return int64(x)
		}
		return x
	case time.Time:
		return x.UTC()
	default:
		return v
	}
}

// NormalizeAll normalizes the attributes of r in place
func (r *Record) NormalizeAll() {
	for k, v := range r.Attrs {
		r.Attrs[k] = Normalize(v)
	}
	for k, ids := range r.Refs {
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		r.Refs[k] = ids
	}
}

// RestoreTimes turns RFC 3339 timestamp strings into times. Plain dates
// stay text.
func (r *Record) RestoreTimes() {
	for k, v := range r.Attrs {
		str, ok := v.(string)
		if !ok || len(str) < len("2006-01-02T15:04:05Z") {
			continue
		}
		if t, err := time.Parse(time.RFC3339Nano, str); err == nil {
			r.Attrs[k] = t.UTC()
		}
	}
}

// dateLayouts are accepted for date attributes stored as text
var dateLayouts = []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02", "20060102"}

// AsTime interprets an attribute value as a point in time
func AsTime(v any) (time.Time, bool) {
	switch x := v.(type) {
	case time.Time:
		return x, true
	case string:
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, x); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

// AsInt interprets an attribute value as an integer
func AsInt(v any) (int64, bool) {
	switch x := v.(type) {
	case int64:
		return x, true
	case int:
		return int64(x), true
	case float64:
		if x == math.Trunc(x) {
			return int64(x), true
		}
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
		return n, err == nil
	}
	return 0, false
}

// FormatValue renders an attribute value as text
func FormatValue(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case time.Time:
		if x.Hour() == 0 && x.Minute() == 0 && x.Second() == 0 {
			return x.Format("2006-01-02")
		}
		return x.Format(time.RFC3339)
	case nil:
		return ""
	default:
		return fmt.Sprint(x)
	}
}

// Result is one search hit as shown to the user
type Result struct {
	Title          string `json:"title"`
	Link           string `json:"link"`
	EntityName     string `json:"entity_name"`
	RelatedProject string `json:"related_project,omitempty"`
}

// SavedSearch is a stored search expression. Non persistent searches are
// autosaved and pruned.
type SavedSearch struct {
	ID          string    `json:"id"`
	Description string    `json:"description"`
	Expression  string    `json:"expression"`
	Creator     UserRef   `json:"creator"`
	SharedWith  []string  `json:"shared_with,omitempty"`
	Persistent  bool      `json:"persistent"`
	CreatedAt   time.Time `json:"created_at"`
}
