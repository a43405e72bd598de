package frontend_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/prometheus/client_golang/prometheus"

	mdwerror "github.com/msto63/iguana/foundation/core/error"
	mdwlog "github.com/msto63/iguana/foundation/core/log"
	"github.com/msto63/iguana/internal/entities"
	"github.com/msto63/iguana/internal/metrics"
	"github.com/msto63/iguana/internal/model"
	"github.com/msto63/iguana/internal/repository"
	"github.com/msto63/iguana/internal/repository/repotest"
	"github.com/msto63/iguana/internal/search/ast"
	"github.com/msto63/iguana/internal/search/frontend"
)

func newFrontend(t *testing.T) (*frontend.Frontend, *repository.MemoryRepository) {
	t.Helper()
	repo := repotest.New(t, repository.MemoryOptions{})
	f, err := frontend.New(frontend.Options{
		Logger:           mdwlog.Discard(),
		Registry:         repo.Registry(),
		Store:            repo,
		FullTextEntities: entities.Default().FullTextEntities(),
		Metrics:          metrics.New(prometheus.NewRegistry()),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return f, repo
}

func titles(results []model.Result) []string {
	out := make([]string, 0, len(results))
	for _, r := range results {
		out = append(out, r.Title)
	}
	return out
}

func TestQuery(t *testing.T) {
	f, _ := newFrontend(t)

	tests := []struct {
		name  string
		input string
		user  model.UserRef
		want  []string
	}{
		{
			name:  "structured",
			input: `Issue.title ~~ "Issue"`,
			user:  repotest.Alice,
			want:  []string{"(PRJ-1) Test-Issue", "(PRJ-2) Blub-Issue", "(PRJ-3) Bla-Issue", "(PROJ-1) Bling-Issue"},
		},
		{
			name:  "structured filtered by permission",
			input: `Issue.title ~~ "Issue"`,
			user:  repotest.Bob,
			want:  []string{"(PROJ-1) Bling-Issue"},
		},
		{
			name:  "limit applies after permission filter",
			input: `Issue.title ~~ "Issue" LIMIT 1`,
			user:  repotest.Bob,
			want:  []string{"(PROJ-1) Bling-Issue"},
		},
		{
			name:  "structured limit",
			input: `Issue.title ~~ "Issue" SORT DESC Issue.number LIMIT 2`,
			user:  repotest.Alice,
			want:  []string{"(PRJ-3) Bla-Issue", "(PRJ-2) Blub-Issue"},
		},
		{
			name:  "structured without results does not fall back",
			input: `Issue.title == "Issue"`,
			user:  repotest.Alice,
			want:  []string{},
		},
		{
			name:  "lower case entity falls back to full text",
			input: `issue.title ~~ "Issue"`,
			user:  repotest.Alice,
			want:  []string{},
		},
		{
			name:  "full text newest first",
			input: "Issue",
			user:  repotest.Alice,
			want:  []string{"(PROJ-1) Bling-Issue", "(PRJ-3) Bla-Issue", "(PRJ-2) Blub-Issue", "(PRJ-1) Test-Issue"},
		},
		{
			name:  "full text is case sensitive",
			input: "blub",
			user:  repotest.Alice,
			want:  []string{"PRJ-1:Comment1", "PROJ-1:Comment1"},
		},
		{
			name:  "full text filtered by permission",
			input: "blub",
			user:  repotest.Bob,
			want:  []string{"PROJ-1:Comment1"},
		},
		{
			name:  "full text across entities",
			input: "Blub",
			user:  repotest.Alice,
			want:  []string{"(PRJ-2) Blub-Issue", "Bob Blub"},
		},
		{
			name:  "full text OR",
			input: "Bla OR Blub",
			user:  repotest.Alice,
			want:  []string{"(PRJ-3) Bla-Issue", "(PRJ-2) Blub-Issue", "Bob Blub", "Alice Bla"},
		},
		{
			name:  "full text AND",
			input: "Bling AND Issue",
			user:  repotest.Alice,
			want:  []string{"(PROJ-1) Bling-Issue"},
		},
		{
			name:  "full text public entities only for guests",
			input: "Bla OR Blub",
			user:  repotest.Guest,
			want:  []string{"Bob Blub", "Alice Bla"},
		},
		{
			name:  "full text tags",
			input: "tag",
			user:  repotest.Alice,
			want:  []string{"tag with spaces", "zweitertag", "testtag"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.Query(context.Background(), tt.input, tt.user)
			if err != nil {
				t.Fatalf("Query(%q) error = %v", tt.input, err)
			}
			if diff := cmp.Diff(tt.want, titles(got), cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("Query(%q) mismatch (-want +got):\n%s", tt.input, diff)
			}
		})
	}
}

func TestQueryTooShort(t *testing.T) {
	f, _ := newFrontend(t)

	tests := []struct {
		input string
		part  string
	}{
		{"aa", "aa"},
		{"", ""},
		{"Bla OR   OR Blub", " "},
		{"Bla AND bl", "bl"},
		{"ab OR abc", "ab"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			_, err := f.Query(context.Background(), tt.input, repotest.Alice)
			var tse *frontend.TooShortError
			if !errors.As(err, &tse) {
				t.Fatalf("Query(%q) error = %v, want *TooShortError", tt.input, err)
			}
			if tse.Part != tt.part {
				t.Errorf("Part = %q, want %q", tse.Part, tt.part)
			}
			if tse.Expression() != tt.input {
				t.Errorf("Expression() = %q, want %q", tse.Expression(), tt.input)
			}
			if !mdwerror.HasCode(err, mdwerror.CodeTooShort) {
				t.Errorf("code = %s, want %s", mdwerror.GetCode(err), mdwerror.CodeTooShort)
			}
		})
	}
}

func TestSearchSavesStructuredQueriesOnly(t *testing.T) {
	f, repo := newFrontend(t)
	ctx := context.Background()

	inputs := []string{`Issue.type == "Bug"`, "blub", `Issue.type == "Bug"`, `Tag.tag_text ~~ "tag"`}
	for _, input := range inputs {
		resp, err := f.Search(ctx, input, repotest.Alice)
		if err != nil {
			t.Fatalf("Search(%q) error = %v", input, err)
		}
		if resp.FullText != (resp.Query == nil) {
			t.Errorf("Search(%q) FullText = %v with query %v", input, resp.FullText, resp.Query)
		}
	}

	saved, err := repo.ListSearches(ctx, repotest.Alice)
	if err != nil {
		t.Fatal(err)
	}
	var got []string
	for _, s := range saved {
		got = append(got, s.Expression)
	}
	want := []string{`Tag.tag_text ~~ "tag"`, `Issue.type == "Bug"`}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("saved searches mismatch (-want +got):\n%s", diff)
	}
}

func TestFullTextQueries(t *testing.T) {
	f, _ := newFrontend(t)

	queries, err := f.FullTextQueries("test OR foo AND bar")
	if err != nil {
		t.Fatal(err)
	}
	var targets []string
	for _, q := range queries {
		targets = append(targets, q.TargetEntity)
		if diff := cmp.Diff([]ast.SortDirective{{Field: []string{ast.IDField}, Direction: ast.Descending}}, q.Sort); diff != "" {
			t.Errorf("%s sort mismatch (-want +got):\n%s", q.TargetEntity, diff)
		}
		for _, c := range ast.Comparisons(q.Expression) {
			if c.Comparator != ast.Contains || len(c.Field) != 1 {
				t.Errorf("%s: unexpected comparison %s", q.TargetEntity, c)
			}
		}
	}
	want := []string{"Project", "Issue", "Comment", "Attachment", "Tag", "Commit", "User"}
	if diff := cmp.Diff(want, targets); diff != "" {
		t.Errorf("targets mismatch (-want +got):\n%s", diff)
	}

	tag := queries[4]
	if got, want := tag.Expression.String(), `(tag_text ~~ "test" OR (tag_text ~~ "foo" AND tag_text ~~ "bar"))`; got != want {
		t.Errorf("Tag expression = %s, want %s", got, want)
	}
}

func TestTerms(t *testing.T) {
	tests := []struct {
		input string
		want  [][]string
	}{
		{"test", [][]string{{"test"}}},
		{"a OR b", [][]string{{"a"}, {"b"}}},
		{"a AND b OR c", [][]string{{"a", "b"}, {"c"}}},
		{"a or b", [][]string{{"a or b"}}},
		{"a OR  OR b", [][]string{{"a"}, {""}, {"b"}}},
	}
	for _, tt := range tests {
		if diff := cmp.Diff(tt.want, frontend.Terms(tt.input)); diff != "" {
			t.Errorf("Terms(%q) mismatch (-want +got):\n%s", tt.input, diff)
		}
	}
}

func TestCompile(t *testing.T) {
	f, _ := newFrontend(t)

	q, err := f.Compile(`Issue.number >= 2 SORT ASC Issue.number`)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if q.TargetEntity != "Issue" {
		t.Errorf("TargetEntity = %q, want Issue", q.TargetEntity)
	}
	if _, err := f.Compile("ab"); !frontend.IsTooShort(err) {
		t.Errorf("Compile(ab) error = %v, want too short", err)
	}
	if _, err := f.Compile("just words"); err == nil {
		t.Error("Compile(just words) expected error")
	}
}

func TestNewRequiresStore(t *testing.T) {
	if _, err := frontend.New(frontend.Options{Logger: mdwlog.Discard()}); !mdwerror.HasCode(err, mdwerror.CodeServiceInitialization) {
		t.Errorf("New() error = %v", err)
	}
}
