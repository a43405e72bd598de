// ============================================================================
// Iguana - Issue Tracker Query Languages
// ============================================================================
//
// Package:     entities
// Description: Searchable tracker entities and their presentation
// Author:      Mike Stoffels
// Created:     2025-03-07
// License:     MIT
// ============================================================================

// Package entities declares the tracker's entity types: which fields each
// one exposes to search, how a hit is titled and linked, and who may see
// it. Every entity registers itself explicitly with the registry.
package entities

import (
	"strings"

	mdwlog "github.com/msto63/iguana/foundation/core/log"
	"github.com/msto63/iguana/internal/model"
	"github.com/msto63/iguana/internal/registry"
)

// Entity names
const (
	ProjectEntity      = "Project"
	IssueEntity        = "Issue"
	CommentEntity      = "Comment"
	AttachmentEntity   = "Attachment"
	TagEntity          = "Tag"
	CommitEntity       = "Commit"
	UserEntity         = "User"
	KanbanColumnEntity = "KanbanColumn"
	SprintEntity       = "Sprint"
	TimelogEntity      = "Timelog"
)

// Lookup fetches related records while presenting a hit
type Lookup interface {
	Get(entity string, id int64) (*model.Record, bool)
}

// Kind describes one entity type
type Kind struct {
	Name   string
	Fields []registry.Field

	// FullText includes the kind in the full-text fallback
	FullText bool

	// Public kinds are readable by every user
	Public bool

	Title   func(l Lookup, r *model.Record) string
	Link    func(l Lookup, r *model.Record) string
	Project func(l Lookup, r *model.Record) *model.Record
}

// Catalog is the set of known kinds in registration order
type Catalog struct {
	kinds []*Kind
	byKey map[string]*Kind
}

// NewCatalog creates a catalog from kinds
func NewCatalog(kinds ...*Kind) *Catalog {
	c := &Catalog{byKey: make(map[string]*Kind, len(kinds))}
	for _, k := range kinds {
		c.kinds = append(c.kinds, k)
		c.byKey[strings.ToLower(k.Name)] = k
	}
	return c
}

// Default returns the catalog of the tracker entities
func Default() *Catalog {
	return NewCatalog(
		projectKind(),
		issueKind(),
		commentKind(),
		attachmentKind(),
		tagKind(),
		commitKind(),
		userKind(),
		kanbanColumnKind(),
		sprintKind(),
		timelogKind(),
	)
}

// Kinds returns the kinds in registration order
func (c *Catalog) Kinds() []*Kind {
	return append([]*Kind(nil), c.kinds...)
}

// Kind looks up a kind, case-insensitively
func (c *Catalog) Kind(name string) (*Kind, bool) {
	k, ok := c.byKey[strings.ToLower(name)]
	return k, ok
}

// FullTextEntities lists the kinds searched by the full-text fallback
func (c *Catalog) FullTextEntities() []string {
	var out []string
	for _, k := range c.kinds {
		if k.FullText {
			out = append(out, k.Name)
		}
	}
	return out
}

// RegisterAll registers every kind with reg and seals it
func (c *Catalog) RegisterAll(reg *registry.Registry) error {
	for _, k := range c.kinds {
		if err := reg.Register(k.Name, k.Fields...); err != nil {
			return err
		}
	}
	return reg.Seal()
}

// NewRegistry returns a sealed registry holding the catalog's kinds
func (c *Catalog) NewRegistry(logger *mdwlog.Logger) (*registry.Registry, error) {
	reg := registry.New(registry.Options{Logger: logger})
	if err := c.RegisterAll(reg); err != nil {
		return nil, err
	}
	return reg, nil
}

// Present turns a record into a search result
func (c *Catalog) Present(l Lookup, r *model.Record) model.Result {
	res := model.Result{EntityName: r.Entity}
	k, ok := c.Kind(r.Entity)
	if !ok {
		res.Title = r.Key().String()
		return res
	}
	res.EntityName = k.Name
	if k.Title != nil {
		res.Title = k.Title(l, r)
	}
	if k.Link != nil {
		res.Link = k.Link(l, r)
	}
	if p := c.ProjectOf(l, r); p != nil {
		res.RelatedProject = p.String("name")
	}
	return res
}

// ProjectOf returns the project a record belongs to, if any
func (c *Catalog) ProjectOf(l Lookup, r *model.Record) *model.Record {
	k, ok := c.Kind(r.Entity)
	if !ok || k.Project == nil {
		return nil
	}
	return k.Project(l, r)
}

// CanRead reports whether user may see r: public kinds are visible to
// everyone, all others to developers and managers of their project.
func (c *Catalog) CanRead(l Lookup, r *model.Record, user model.UserRef) bool {
	k, ok := c.Kind(r.Entity)
	if !ok {
		return false
	}
	if k.Public {
		return true
	}
	p := c.ProjectOf(l, r)
	if p == nil {
		return false
	}
	return DeveloperAllowed(p, user)
}

// DeveloperAllowed reports whether user is a manager or developer of
// the project
func DeveloperAllowed(project *model.Record, user model.UserRef) bool {
	return project.HasRef("manager", user.ID) || project.HasRef("developer", user.ID)
}

// ref follows a forward reference
func ref(l Lookup, r *model.Record, field, entity string) *model.Record {
	id, ok := r.Ref(field)
	if !ok {
		return nil
	}
	out, ok := l.Get(entity, id)
	if !ok {
		return nil
	}
	return out
}

// projectVia returns the project of the record referenced by field
func projectVia(field, entity string) func(l Lookup, r *model.Record) *model.Record {
	return func(l Lookup, r *model.Record) *model.Record {
		parent := ref(l, r, field, entity)
		if parent == nil {
			return nil
		}
		return ref(l, parent, "project", ProjectEntity)
	}
}

func ownProject(l Lookup, r *model.Record) *model.Record {
	return ref(l, r, "project", ProjectEntity)
}
