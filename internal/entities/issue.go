package entities

import (
	"strconv"

	"github.com/msto63/iguana/internal/model"
	"github.com/msto63/iguana/internal/registry"
)

func issueKind() *Kind {
	return &Kind{
		Name: IssueEntity,
		Fields: []registry.Field{
			registry.Relation("project", ProjectEntity),
			registry.Relation("sprint", SprintEntity),
			registry.Scalar("description"),
			registry.Relation("kanbancol", KanbanColumnEntity),
			registry.Relation("assignee", UserEntity),
			registry.Scalar("due_date"),
			registry.Relation("tags", TagEntity),
			registry.Scalar("number"),
			registry.Scalar("priority"),
			registry.Scalar("storypoints"),
			registry.Scalar("title"),
			registry.Scalar("type"),
			registry.Relation("creator", UserEntity),
		},
		FullText: true,
		Title: func(l Lookup, r *model.Record) string {
			return "(" + TicketIdentifier(l, r) + ") " + r.String("title")
		},
		Link:    IssueLink,
		Project: ownProject,
	}
}

// TicketIdentifier returns "PRJ-12" for an issue
func TicketIdentifier(l Lookup, issue *model.Record) string {
	short := ""
	if p := ownProject(l, issue); p != nil {
		short = p.String("name_short")
	}
	n, _ := issue.Int("number")
	return short + "-" + strconv.FormatInt(n, 10)
}

// IssueLink returns the detail page of an issue
func IssueLink(l Lookup, issue *model.Record) string {
	short := ""
	if p := ownProject(l, issue); p != nil {
		short = p.String("name_short")
	}
	n, _ := issue.Int("number")
	return "/project/" + short + "/issue/" + strconv.FormatInt(n, 10) + "/"
}

// issueOf returns the issue a comment, attachment or commit belongs to
func issueOf(l Lookup, r *model.Record) *model.Record {
	return ref(l, r, "issue", IssueEntity)
}

func linkViaIssue(l Lookup, r *model.Record) string {
	issue := issueOf(l, r)
	if issue == nil {
		return ""
	}
	return IssueLink(l, issue)
}
