package parser

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	mdwerror "github.com/msto63/iguana/foundation/core/error"
	mdwlog "github.com/msto63/iguana/foundation/core/log"
	"github.com/msto63/iguana/internal/lang/scan"
	"github.com/msto63/iguana/internal/registry"
	"github.com/msto63/iguana/internal/search/ast"
)

func newTestParser(t *testing.T) *Parser {
	t.Helper()
	reg := registry.New(registry.Options{Logger: mdwlog.Discard()})
	must := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatal(err)
		}
	}
	must(reg.Register("Issue",
		registry.Scalar("title"),
		registry.Scalar("number"),
		registry.Scalar("type"),
		registry.Scalar("due_date"),
		registry.Relation("tags", "Tag"),
		registry.Relation("project", "Project"),
	))
	must(reg.Register("Tag", registry.Scalar("tag_text")))
	must(reg.Register("Project",
		registry.Scalar("name"),
		registry.Scalar("name_short"),
		registry.Reverse("issue", "Issue", "project"),
	))
	must(reg.Register("Comment", registry.Scalar("text")))
	must(reg.Seal())

	p, err := New(Options{Logger: mdwlog.Discard(), Registry: reg})
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func TestNewRequiresRegistry(t *testing.T) {
	_, err := New(Options{})
	if !mdwerror.HasCode(err, mdwerror.CodeServiceInitialization) {
		t.Errorf("New() error = %v, want %s", err, mdwerror.CodeServiceInitialization)
	}
}

func TestTokenCount(t *testing.T) {
	tests := map[string]int{
		"":                0,
		"AND":             1,
		"OR":              1,
		"() AND () OR ()": 8,
		"aa":              1,
		"20160314":        1,
		"15":              1,
		"==":              1,
		">=":              1,
		"<":               1,
		`(A__A != 15) AND (B.B == "blub") OR (C__C ~ "bla")`: 17,
	}
	for input, want := range tests {
		t.Run(input, func(t *testing.T) {
			tokens, err := Tokenize(input)
			if err != nil {
				t.Fatalf("Tokenize(%q) error = %v", input, err)
			}
			if len(tokens) != want {
				t.Errorf("Tokenize(%q) = %d tokens, want %d", input, len(tokens), want)
			}
		})
	}
}

func TestTokenValues(t *testing.T) {
	tokens, err := Tokenize(`Issue.tags__tag_text ~~ "es" SORT DESC 20240229 7`)
	if err != nil {
		t.Fatal(err)
	}
	want := []scan.Kind{TokenField, TokenComparator, TokenString, TokenSort, TokenSortOrder, TokenDate, TokenNumber}
	var got []scan.Kind
	for _, tok := range tokens {
		got = append(got, tok.Kind)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("kinds mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"Issue", "tags", "tag_text"}, tokens[0].Value); diff != "" {
		t.Errorf("field path mismatch (-want +got):\n%s", diff)
	}
	if tokens[2].Value != "es" {
		t.Errorf("string value = %v, want es", tokens[2].Value)
	}
	if d := tokens[5].Value.(time.Time); !d.Equal(time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("date value = %v", d)
	}
	if tokens[6].Value != int64(7) {
		t.Errorf("number value = %v", tokens[6].Value)
	}
}

func TestParseAccepted(t *testing.T) {
	p := newTestParser(t)

	tests := []struct {
		input  string
		entity string
		expr   string
	}{
		{`Project.name_short == "PRJ"`, "Project", `name_short == "PRJ"`},
		{`Project.issue.title ~~ "Issue"`, "Project", `issue.title ~~ "Issue"`},
		{`Issue.type != "Bug"`, "Issue", `type != "Bug"`},
		{`Issue.number >= 2`, "Issue", `number >= 2`},
		{`Issue.due_date <= 20051005`, "Issue", `due_date <= 20051005`},
		{`Issue.tags.tag_text ~~ "es"`, "Issue", `tags.tag_text ~~ "es"`},
		{`Issue__tags__tag_text ~~ "es"`, "Issue", `tags.tag_text ~~ "es"`},
		{`Comment.text ~ "b.{2}b"`, "Comment", `text ~ "b.{2}b"`},
		{
			`(Issue.project.name_short ~~ "PR") AND (Issue.title ~~ "Issue")`,
			"Issue",
			`(project.name_short ~~ "PR" AND title ~~ "Issue")`,
		},
		{
			`Issue.number == 1 OR Issue.number == 2 AND Issue.title == "x"`,
			"Issue",
			`((number == 1 OR number == 2) AND title == "x")`,
		},
		{
			`Issue.number == 1 AND (Issue.number == 2 OR Issue.title == "x")`,
			"Issue",
			`(number == 1 AND (number == 2 OR title == "x"))`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			q, err := p.Parse(tt.input)
			if err != nil {
				t.Fatalf("Parse(%q) error = %v", tt.input, err)
			}
			if q.TargetEntity != tt.entity {
				t.Errorf("TargetEntity = %q, want %q", q.TargetEntity, tt.entity)
			}
			if got := q.Expression.String(); got != tt.expr {
				t.Errorf("Expression = %s, want %s", got, tt.expr)
			}
			if q.Limit != ast.NoLimit {
				t.Errorf("Limit = %d, want %d", q.Limit, ast.NoLimit)
			}
			if q.Source != tt.input {
				t.Errorf("Source = %q", q.Source)
			}
		})
	}
}

func TestParseNotEqual(t *testing.T) {
	p := newTestParser(t)
	q, err := p.Parse(`Issue.type != "Bug"`)
	if err != nil {
		t.Fatal(err)
	}
	not, ok := q.Expression.(*ast.Not)
	if !ok {
		t.Fatalf("Expression = %T, want *ast.Not", q.Expression)
	}
	c := not.Operand.(*ast.Comparison)
	if c.Comparator != ast.Eq || c.Value != ast.String("Bug") {
		t.Errorf("operand = %s", c)
	}
}

func TestParseSortAndLimit(t *testing.T) {
	p := newTestParser(t)

	tests := []struct {
		input string
		sort  []ast.SortDirective
		limit int
	}{
		{`Issue.number >= 2 LIMIT 1`, nil, 1},
		{
			`Issue.number >= 2 SORT ASC Issue.number LIMIT 2`,
			[]ast.SortDirective{{Field: []string{"number"}, Direction: ast.Ascending}},
			2,
		},
		{
			`Issue.number >= 2 LIMIT 2 SORT DESC Issue__number`,
			[]ast.SortDirective{{Field: []string{"number"}, Direction: ast.Descending}},
			2,
		},
		{`Issue.number >= 2 LIMIT 5 LIMIT 3`, nil, 3},
		{
			`Issue.number >= 2 SORT DESC Issue.number SORT ASC Issue.project.name`,
			[]ast.SortDirective{
				{Field: []string{"number"}, Direction: ast.Descending},
				{Field: []string{"project", "name"}, Direction: ast.Ascending},
			},
			ast.NoLimit,
		},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			q, err := p.Parse(tt.input)
			if err != nil {
				t.Fatalf("Parse(%q) error = %v", tt.input, err)
			}
			if diff := cmp.Diff(tt.sort, q.Sort); diff != "" {
				t.Errorf("Sort mismatch (-want +got):\n%s", diff)
			}
			if q.Limit != tt.limit {
				t.Errorf("Limit = %d, want %d", q.Limit, tt.limit)
			}
		})
	}
}

func TestParseRejected(t *testing.T) {
	p := newTestParser(t)

	tests := []struct {
		name  string
		input string
		lex   bool
	}{
		{"dangling bool op", `Project.name_short == "PRJ" AND OR Project.name ~~ "T"`, false},
		{"invalid date", `Issue.due_date >= 20121340`, true},
		{"sort without direction", `Issue.due_date >= 20100101 SORT Issue.number`, false},
		{"sort without field", `Issue.due_date >= 20100101 SORT ASC`, false},
		{"limit without number", `Issue.due_date >= 20100101 LIMIT`, false},
		{"unknown comparator", `Project.name <> "PRJ"`, false},
		{"unquoted string", `Project.name <= PRJ`, false},
		{"bare field", `Project.name`, false},
		{"bare limit", `LIMIT 3`, false},
		{"unknown field", `Project.invalidfield ~~ "blubber"`, false},
		{"unknown entity", `Invalidobject.field ~~ "blubber"`, false},
		{"lower case entity", `issue.title ~~ "x"`, false},
		{"lower case second entity", `Issue.title ~~ "x" AND issue.number == 1`, false},
		{"field without entity", `title ~~ "x"`, false},
		{"relation as leaf", `Issue.tags ~~ "x"`, false},
		{"second entity", `Issue.title ~~ "x" AND Project.name ~~ "y"`, false},
		{"sort on other entity", `Issue.title ~~ "x" SORT ASC Project.name`, false},
		{"broken regex", `Comment.text ~ "(ab"`, false},
		{"regex on number", `Issue.number ~ 5`, false},
		{"unterminated string", `Comment.text ~ "?{42}.`, true},
		{"unclosed paren", `(Issue.number == 1`, false},
		{"trailing token", `Issue.number == 1 2`, false},
		{"empty input", ``, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := p.Parse(tt.input)
			if err == nil {
				t.Fatalf("Parse(%q) = %s, want error", tt.input, q)
			}
			var pe *ParseError
			if !errors.As(err, &pe) {
				t.Fatalf("error = %T, want *ParseError", err)
			}
			if pe.Input != tt.input {
				t.Errorf("Input = %q", pe.Input)
			}
			var lexErr *scan.LexError
			if got := errors.As(err, &lexErr); got != tt.lex {
				t.Errorf("wraps LexError = %v, want %v (%v)", got, tt.lex, err)
			}
			if mdwerror.GetCode(err) != mdwerror.CodeSyntax {
				t.Errorf("code = %s, want %s", mdwerror.GetCode(err), mdwerror.CodeSyntax)
			}
		})
	}
}

func TestParseMaxInputLength(t *testing.T) {
	p := newTestParser(t)
	p.options.MaxInputLength = 16
	_, err := p.Parse(`Issue.title ~~ "much too long"`)
	if err == nil || !strings.Contains(err.Error(), "maximum length") {
		t.Errorf("Parse() error = %v, want length error", err)
	}
}

func TestCompiledQueryRoundTrip(t *testing.T) {
	p := newTestParser(t)
	inputs := []string{
		`Issue.number == 1 OR Issue.number == 2 AND Issue.title != "x" SORT ASC Issue.number LIMIT 4`,
		`Project.issue.due_date >= 20240101`,
		`Comment.text ~ "b.{2}b"`,
	}
	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			first, err := p.Parse(input)
			if err != nil {
				t.Fatal(err)
			}
			second, err := p.Parse(first.String())
			if err != nil {
				t.Fatalf("reparse of %q failed: %v", first.String(), err)
			}
			if first.String() != second.String() {
				t.Errorf("round trip changed query: %q != %q", first.String(), second.String())
			}
			if second.TargetEntity != first.TargetEntity {
				t.Errorf("TargetEntity = %q, want %q", second.TargetEntity, first.TargetEntity)
			}
			if err := second.Validate(p.registry); err != nil {
				t.Errorf("Validate() error = %v", err)
			}
		})
	}
}
