package repository

import (
	"sort"
	"time"

	"github.com/google/uuid"

	mdwerror "github.com/msto63/iguana/foundation/core/error"
	"github.com/msto63/iguana/internal/model"
)

// searchList is the in-memory saved search table. Callers lock.
type searchList struct {
	keep  int
	items []model.SavedSearch
}

func newSearchList(keep int) *searchList {
	return &searchList{keep: keep}
}

// save stores expression unless an identical one exists and reports
// whether it did
func (l *searchList) save(expression string, user model.UserRef, now time.Time) bool {
	for _, s := range l.items {
		if s.Expression == expression {
			return false
		}
	}
	l.items = append(l.items, model.SavedSearch{
		ID:          uuid.NewString(),
		Description: AutosaveDescription,
		Expression:  expression,
		Creator:     user,
		CreatedAt:   now,
	})
	l.prune()
	return true
}

// prune drops the oldest non persistent searches beyond keep
func (l *searchList) prune() {
	kept := 0
	var out []model.SavedSearch
	for i := len(l.items) - 1; i >= 0; i-- {
		s := l.items[i]
		if !s.Persistent {
			if kept >= l.keep {
				continue
			}
			kept++
		}
		out = append(out, s)
	}
	// back to insertion order
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	l.items = out
}

func (l *searchList) newestFirst() []model.SavedSearch {
	out := make([]model.SavedSearch, len(l.items))
	for i, s := range l.items {
		out[len(l.items)-1-i] = s
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func (l *searchList) setPersistent(id string, persistent bool, user model.UserRef) error {
	for i := range l.items {
		if l.items[i].ID != id {
			continue
		}
		if l.items[i].Creator.ID != user.ID {
			return mdwerror.Newf("saved search %s belongs to another user", id).
				WithCode(mdwerror.CodeForbidden)
		}
		l.items[i].Persistent = persistent
		if !persistent {
			l.prune()
		}
		return nil
	}
	return mdwerror.Newf("saved search %s not found", id).WithCode(mdwerror.CodeNotFound)
}
