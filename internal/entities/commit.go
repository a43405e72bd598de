package entities

import (
	"strings"

	"github.com/msto63/iguana/internal/model"
	"github.com/msto63/iguana/internal/registry"
)

// commitHashLength is the length of an abbreviated commit name
const commitHashLength = 7

func commitKind() *Kind {
	return &Kind{
		Name: CommitEntity,
		Fields: []registry.Field{
			registry.Relation("issue", IssueEntity),
			registry.Scalar("date"),
			registry.Scalar("author"),
			registry.Scalar("name"),
			registry.Scalar("message"),
			registry.Scalar("changes"),
		},
		FullText: true,
		Title: func(_ Lookup, r *model.Record) string {
			name := r.String("name")
			if len(name) > commitHashLength {
				name = name[:commitHashLength]
			}
			message, _, _ := strings.Cut(r.String("message"), "\n")
			return "(" + name + ") " + message
		},
		Link:    linkViaIssue,
		Project: projectVia("issue", IssueEntity),
	}
}
