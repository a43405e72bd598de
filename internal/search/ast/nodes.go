// File: nodes.go
// Title: Search Expression Nodes
// Description: Node types of compiled search queries. Nodes are immutable
//              once the parser has built them.
// Author: msto63
// Version: v0.1.0
// Created: 2025-03-05
// Modified: 2025-03-05
//
// Change History:
// - 2025-03-05 v0.1.0: Initial implementation

package ast

import (
	"fmt"
	"strings"

	"github.com/msto63/iguana/internal/lang/scan"
)

// Node is implemented by all expression nodes
type Node interface {
	String() string
	Accept(visitor Visitor) interface{}
	Position() scan.Span
	Validate() error
}

// Expr is a boolean filter expression
type Expr interface {
	Node
	exprNode()
}

// Comparator is the comparison operator of a Comparison
type Comparator string

const (
	Eq       Comparator = "eq"
	Gt       Comparator = "gt"
	Gte      Comparator = "gte"
	Lt       Comparator = "lt"
	Lte      Comparator = "lte"
	Regex    Comparator = "regex"
	Contains Comparator = "contains"
)

var comparatorSymbols = map[Comparator]string{
	Eq:       "==",
	Gt:       ">",
	Gte:      ">=",
	Lt:       "<",
	Lte:      "<=",
	Regex:    "~",
	Contains: "~~",
}

// Symbol returns the query syntax of the comparator
func (c Comparator) Symbol() string {
	return comparatorSymbols[c]
}

// Valid reports whether c is a known comparator
func (c Comparator) Valid() bool {
	_, ok := comparatorSymbols[c]
	return ok
}

// Comparison tests one field against a value. Field is the path below
// the query's target entity, e.g. ["tags", "tag_text"].
type Comparison struct {
	Field      []string
	Comparator Comparator
	Value      Value
	Pos        scan.Span
}

// FieldPath returns the field path joined with "__"
func (c *Comparison) FieldPath() string {
	return strings.Join(c.Field, "__")
}

func (c *Comparison) String() string {
	return fmt.Sprintf("%s %s %s", strings.Join(c.Field, "."), c.Comparator.Symbol(), c.Value.String())
}

func (c *Comparison) Accept(visitor Visitor) interface{} {
	return visitor.VisitComparison(c)
}

func (c *Comparison) Position() scan.Span { return c.Pos }

func (c *Comparison) Validate() error {
	if len(c.Field) == 0 {
		return fmt.Errorf("comparison without field")
	}
	if !c.Comparator.Valid() {
		return fmt.Errorf("unknown comparator %q", c.Comparator)
	}
	return c.Value.Validate()
}

func (c *Comparison) exprNode() {}

// And is the conjunction of two expressions
type And struct {
	Left  Expr
	Right Expr
	Pos   scan.Span
}

func (a *And) String() string {
	return fmt.Sprintf("(%s AND %s)", a.Left.String(), a.Right.String())
}

func (a *And) Accept(visitor Visitor) interface{} {
	return visitor.VisitAnd(a)
}

func (a *And) Position() scan.Span { return a.Pos }

func (a *And) Validate() error {
	return validateOperands("AND", a.Left, a.Right)
}

func (a *And) exprNode() {}

// Or is the disjunction of two expressions
type Or struct {
	Left  Expr
	Right Expr
	Pos   scan.Span
}

func (o *Or) String() string {
	return fmt.Sprintf("(%s OR %s)", o.Left.String(), o.Right.String())
}

func (o *Or) Accept(visitor Visitor) interface{} {
	return visitor.VisitOr(o)
}

func (o *Or) Position() scan.Span { return o.Pos }

func (o *Or) Validate() error {
	return validateOperands("OR", o.Left, o.Right)
}

func (o *Or) exprNode() {}

// Not negates an expression. The parser only produces it for "!=".
type Not struct {
	Operand Expr
	Pos     scan.Span
}

func (n *Not) String() string {
	if c, ok := n.Operand.(*Comparison); ok && c.Comparator == Eq {
		return fmt.Sprintf("%s != %s", strings.Join(c.Field, "."), c.Value.String())
	}
	return fmt.Sprintf("NOT %s", n.Operand.String())
}

func (n *Not) Accept(visitor Visitor) interface{} {
	return visitor.VisitNot(n)
}

func (n *Not) Position() scan.Span { return n.Pos }

func (n *Not) Validate() error {
	if n.Operand == nil {
		return fmt.Errorf("NOT without operand")
	}
	return n.Operand.Validate()
}

func (n *Not) exprNode() {}

func validateOperands(op string, left, right Expr) error {
	if left == nil || right == nil {
		return fmt.Errorf("%s with missing operand", op)
	}
	if err := left.Validate(); err != nil {
		return err
	}
	return right.Validate()
}

// AnyOf folds expressions into a left-nested Or. It returns nil for an
// empty list.
func AnyOf(exprs ...Expr) Expr {
	return fold(exprs, func(l, r Expr) Expr { return &Or{Left: l, Right: r} })
}

// AllOf folds expressions into a left-nested And. It returns nil for an
// empty list.
func AllOf(exprs ...Expr) Expr {
	return fold(exprs, func(l, r Expr) Expr { return &And{Left: l, Right: r} })
}

func fold(exprs []Expr, join func(l, r Expr) Expr) Expr {
	var out Expr
	for _, e := range exprs {
		if e == nil {
			continue
		}
		if out == nil {
			out = e
			continue
		}
		out = join(out, e)
	}
	return out
}
