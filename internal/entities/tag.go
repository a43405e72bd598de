package entities

import (
	"github.com/msto63/iguana/internal/model"
	"github.com/msto63/iguana/internal/registry"
)

func tagKind() *Kind {
	return &Kind{
		Name:     TagEntity,
		Fields:   []registry.Field{registry.Scalar("tag_text")},
		FullText: true,
		Title: func(_ Lookup, r *model.Record) string {
			return r.String("tag_text")
		},
		Link: func(l Lookup, r *model.Record) string {
			if p := ownProject(l, r); p != nil {
				return "/project/" + p.String("name_short") + "/tag/"
			}
			return ""
		},
		Project: ownProject,
	}
}
