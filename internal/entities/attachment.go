package entities

import (
	"path"

	"github.com/msto63/iguana/internal/model"
	"github.com/msto63/iguana/internal/registry"
)

func attachmentKind() *Kind {
	return &Kind{
		Name: AttachmentEntity,
		Fields: []registry.Field{
			registry.Scalar("when"),
			registry.Relation("creator", UserEntity),
			registry.Relation("issue", IssueEntity),
		},
		FullText: true,
		Title: func(_ Lookup, r *model.Record) string {
			return path.Base(r.String("file"))
		},
		Link:    linkViaIssue,
		Project: projectVia("issue", IssueEntity),
	}
}
