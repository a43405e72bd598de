package entities

import (
	"github.com/msto63/iguana/internal/model"
	"github.com/msto63/iguana/internal/registry"
)

func projectKind() *Kind {
	return &Kind{
		Name: ProjectEntity,
		Fields: []registry.Field{
			registry.Relation("creator", UserEntity),
			registry.Scalar("created_at"),
			registry.Scalar("description"),
			registry.Scalar("name"),
			registry.Scalar("name_short"),
			registry.Scalar("updated_at"),
			registry.Reverse("issue", IssueEntity, "project"),
		},
		FullText: true,
		Title: func(_ Lookup, r *model.Record) string {
			return r.String("name")
		},
		Link: func(_ Lookup, r *model.Record) string {
			return "/project/" + r.String("name_short") + "/"
		},
		Project: func(_ Lookup, r *model.Record) *model.Record {
			return r
		},
	}
}
