package ast

import (
	"fmt"
	"strings"
)

// Direction is a sort order
type Direction string

const (
	Ascending  Direction = "ASC"
	Descending Direction = "DESC"
)

// NoLimit marks a query without LIMIT
const NoLimit = -1

// IDField orders by record identity. It is not a registered field and
// only appears in queries built by code.
const IDField = "id"

// SortDirective orders results by a field path of the target entity
type SortDirective struct {
	Field     []string
	Direction Direction
}

// FieldPath returns the field path joined with "__"
func (s SortDirective) FieldPath() string {
	return strings.Join(s.Field, "__")
}

func (s SortDirective) String() string {
	return fmt.Sprintf("SORT %s %s", s.Direction, strings.Join(s.Field, "."))
}

// Resolver checks that a field path exists on an entity. The registry
// implements it.
type Resolver interface {
	IsFieldSearchable(entity string, path []string) bool
}

// CompiledQuery is the result of compiling a search expression. The
// first sort directive is the primary key.
type CompiledQuery struct {
	TargetEntity string
	Expression   Expr
	Sort         []SortDirective
	Limit        int
	Source       string
}

// HasLimit reports whether a LIMIT applies
func (q *CompiledQuery) HasLimit() bool {
	return q.Limit >= 0
}

// String renders the query in query syntax
func (q *CompiledQuery) String() string {
	var b strings.Builder
	b.WriteString(qualify(q.TargetEntity, q.Expression))
	for _, s := range q.Sort {
		b.WriteString(" SORT ")
		b.WriteString(string(s.Direction))
		b.WriteString(" ")
		b.WriteString(q.TargetEntity + "." + strings.Join(s.Field, "."))
	}
	if q.HasLimit() {
		fmt.Fprintf(&b, " LIMIT %d", q.Limit)
	}
	return b.String()
}

// Validate checks structure and that every referenced field is
// searchable on the target entity.
func (q *CompiledQuery) Validate(reg Resolver) error {
	if q.TargetEntity == "" {
		return fmt.Errorf("query without target entity")
	}
	if q.Expression == nil {
		return fmt.Errorf("query without expression")
	}
	if err := q.Expression.Validate(); err != nil {
		return err
	}
	if reg == nil {
		return nil
	}
	for _, c := range Comparisons(q.Expression) {
		if !reg.IsFieldSearchable(q.TargetEntity, c.Field) {
			return fmt.Errorf("field %s is not searchable on %s", c.FieldPath(), q.TargetEntity)
		}
	}
	for _, s := range q.Sort {
		if !reg.IsFieldSearchable(q.TargetEntity, s.Field) {
			return fmt.Errorf("sort field %s is not searchable on %s", s.FieldPath(), q.TargetEntity)
		}
	}
	return nil
}

// qualify renders expr with every field prefixed by the entity
func qualify(entity string, expr Expr) string {
	switch e := expr.(type) {
	case *Comparison:
		return fmt.Sprintf("%s.%s %s %s", entity, strings.Join(e.Field, "."), e.Comparator.Symbol(), e.Value.String())
	case *Not:
		if c, ok := e.Operand.(*Comparison); ok && c.Comparator == Eq {
			return fmt.Sprintf("%s.%s != %s", entity, strings.Join(c.Field, "."), c.Value.String())
		}
		return "NOT " + qualify(entity, e.Operand)
	case *And:
		return "(" + qualify(entity, e.Left) + " AND " + qualify(entity, e.Right) + ")"
	case *Or:
		return "(" + qualify(entity, e.Left) + " OR " + qualify(entity, e.Right) + ")"
	default:
		return ""
	}
}
