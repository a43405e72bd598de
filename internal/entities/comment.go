package entities

import (
	"strconv"

	"github.com/msto63/iguana/internal/model"
	"github.com/msto63/iguana/internal/registry"
)

func commentKind() *Kind {
	return &Kind{
		Name: CommentEntity,
		Fields: []registry.Field{
			registry.Scalar("when"),
			registry.Relation("creator", UserEntity),
			registry.Relation("issue", IssueEntity),
			registry.Scalar("text"),
		},
		FullText: true,
		Title: func(l Lookup, r *model.Record) string {
			prefix := ""
			if issue := issueOf(l, r); issue != nil {
				prefix = TicketIdentifier(l, issue)
			}
			return prefix + ":Comment" + strconv.FormatInt(seqnum(r), 10)
		},
		Link: func(l Lookup, r *model.Record) string {
			link := linkViaIssue(l, r)
			if link == "" {
				return ""
			}
			return link + "#comment" + strconv.FormatInt(seqnum(r), 10)
		},
		Project: projectVia("issue", IssueEntity),
	}
}

func seqnum(r *model.Record) int64 {
	if n, ok := r.Int("seqnum"); ok {
		return n
	}
	return r.ID
}
