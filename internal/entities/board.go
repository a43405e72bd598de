package entities

import (
	"strconv"

	"github.com/msto63/iguana/internal/model"
	"github.com/msto63/iguana/internal/registry"
)

// Kanban columns and sprints are registered so that issue queries can
// follow them; they are not part of the full-text search.

func kanbanColumnKind() *Kind {
	return &Kind{
		Name:   KanbanColumnEntity,
		Fields: []registry.Field{registry.Scalar("name")},
		Title: func(_ Lookup, r *model.Record) string {
			return r.String("name")
		},
		Link: func(l Lookup, r *model.Record) string {
			if p := ownProject(l, r); p != nil {
				return "/project/" + p.String("name_short") + "/kanban/"
			}
			return ""
		},
		Project: ownProject,
	}
}

func sprintKind() *Kind {
	return &Kind{
		Name:   SprintEntity,
		Fields: []registry.Field{registry.Scalar("name")},
		Title: func(_ Lookup, r *model.Record) string {
			if name := r.String("name"); name != "" {
				return name
			}
			return "Sprint " + strconv.FormatInt(seqnum(r), 10)
		},
		Link: func(l Lookup, r *model.Record) string {
			if p := ownProject(l, r); p != nil {
				return "/project/" + p.String("name_short") + "/backlog/" + strconv.FormatInt(seqnum(r), 10) + "/"
			}
			return ""
		},
		Project: ownProject,
	}
}

// Timelogs are known to the registry but expose no searchable fields
func timelogKind() *Kind {
	return &Kind{
		Name: TimelogEntity,
		Title: func(_ Lookup, r *model.Record) string {
			return "Timelog " + r.String("time")
		},
		Link:    linkViaIssue,
		Project: projectVia("issue", IssueEntity),
	}
}
