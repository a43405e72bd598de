package frontend

import (
	"context"
	"strings"

	mdwerror "github.com/msto63/iguana/foundation/core/error"
	"github.com/msto63/iguana/internal/model"
	"github.com/msto63/iguana/internal/search/ast"
)

// Separators of full-text terms. They are matched literally and are case
// sensitive.
const (
	orSeparator  = " OR "
	andSeparator = " AND "
)

// Terms splits a full-text input into OR groups of AND terms
func Terms(input string) [][]string {
	var groups [][]string
	for _, or := range strings.Split(input, orSeparator) {
		groups = append(groups, strings.Split(or, andSeparator))
	}
	return groups
}

// FullTextQueries builds one query per entity that matches records with a
// scalar field containing the terms. Entities without scalar fields are
// left out.
func (f *Frontend) FullTextQueries(input string) ([]*ast.CompiledQuery, error) {
	groups := Terms(input)
	for _, group := range groups {
		for _, term := range group {
			if err := f.checkLength(input, term); err != nil {
				return nil, err
			}
		}
	}

	var queries []*ast.CompiledQuery
	for _, entity := range f.options.FullTextEntities {
		var perField []ast.Expr
		for _, field := range f.registry.SearchableFields(entity) {
			perField = append(perField, termsExpr(field, groups))
		}
		if len(perField) == 0 {
			continue
		}
		queries = append(queries, &ast.CompiledQuery{
			TargetEntity: entity,
			Expression:   ast.AnyOf(perField...),
			Sort:         []ast.SortDirective{{Field: []string{ast.IDField}, Direction: ast.Descending}},
			Limit:        ast.NoLimit,
			Source:       input,
		})
	}
	return queries, nil
}

func termsExpr(field string, groups [][]string) ast.Expr {
	ors := make([]ast.Expr, 0, len(groups))
	for _, group := range groups {
		ands := make([]ast.Expr, 0, len(group))
		for _, term := range group {
			ands = append(ands, &ast.Comparison{
				Field:      []string{field},
				Comparator: ast.Contains,
				Value:      ast.String(term),
			})
		}
		ors = append(ors, ast.AllOf(ands...))
	}
	return ast.AnyOf(ors...)
}

func (f *Frontend) fullText(ctx context.Context, input string, user model.UserRef) (*Response, error) {
	queries, err := f.FullTextQueries(input)
	if err != nil {
		return nil, err
	}

	seen := make(map[model.Key]bool)
	var records []*model.Record
	for _, q := range queries {
		found, err := f.store.Execute(ctx, q)
		if err != nil {
			return nil, mdwerror.Wrap(err, "full-text search failed").
				WithDetail("entity", q.TargetEntity)
		}
		for _, rec := range found {
			if seen[rec.Key()] {
				continue
			}
			seen[rec.Key()] = true
			records = append(records, rec)
		}
	}

	records = f.readable(ctx, records, user)
	return &Response{Results: f.present(ctx, records), FullText: true}, nil
}
