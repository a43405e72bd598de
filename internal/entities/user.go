package entities

import (
	"github.com/msto63/iguana/internal/model"
	"github.com/msto63/iguana/internal/registry"
)

func userKind() *Kind {
	return &Kind{
		Name: UserEntity,
		Fields: []registry.Field{
			registry.Scalar("first_name"),
			registry.Scalar("last_name"),
			registry.Scalar("username"),
		},
		FullText: true,
		Public:   true,
		Title:    DisplayName,
		Link: func(_ Lookup, r *model.Record) string {
			return "/user/" + r.String("username") + "/"
		},
	}
}

// DisplayName returns "First Last", falling back to the username
func DisplayName(_ Lookup, r *model.Record) string {
	first, last := r.String("first_name"), r.String("last_name")
	switch {
	case first != "" && last != "":
		return first + " " + last
	case first != "" || last != "":
		return first + last
	default:
		return r.String("username")
	}
}
