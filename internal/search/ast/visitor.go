package ast

// Visitor traverses expression trees
type Visitor interface {
	VisitComparison(c *Comparison) interface{}
	VisitAnd(a *And) interface{}
	VisitOr(o *Or) interface{}
	VisitNot(n *Not) interface{}
}

// BaseVisitor visits every node and returns nil. Embed it and override
// the methods of interest; the embedding type has to drive the recursion
// itself when it overrides a compound node.
type BaseVisitor struct {
	// Self receives the recursive calls. Set it to the embedding visitor.
	Self Visitor
}

func (bv *BaseVisitor) self() Visitor {
	if bv.Self != nil {
		return bv.Self
	}
	return bv
}

func (bv *BaseVisitor) VisitComparison(c *Comparison) interface{} { return nil }

func (bv *BaseVisitor) VisitAnd(a *And) interface{} {
	a.Left.Accept(bv.self())
	a.Right.Accept(bv.self())
	return nil
}

func (bv *BaseVisitor) VisitOr(o *Or) interface{} {
	o.Left.Accept(bv.self())
	o.Right.Accept(bv.self())
	return nil
}

func (bv *BaseVisitor) VisitNot(n *Not) interface{} {
	n.Operand.Accept(bv.self())
	return nil
}

type comparisonCollector struct {
	BaseVisitor
	found []*Comparison
}

func (cc *comparisonCollector) VisitComparison(c *Comparison) interface{} {
	cc.found = append(cc.found, c)
	return nil
}

// Comparisons returns all comparisons of expr in source order
func Comparisons(expr Expr) []*Comparison {
	if expr == nil {
		return nil
	}
	cc := &comparisonCollector{}
	cc.Self = cc
	expr.Accept(cc)
	return cc.found
}

// Fields returns the distinct field paths referenced by expr
func Fields(expr Expr) []string {
	seen := make(map[string]bool)
	var out []string
	for _, c := range Comparisons(expr) {
		p := c.FieldPath()
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}
