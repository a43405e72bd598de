package repository

import (
	"context"
	"strings"

	mdwerror "github.com/msto63/iguana/foundation/core/error"
	mdwlog "github.com/msto63/iguana/foundation/core/log"
	"github.com/msto63/iguana/internal/entities"
	"github.com/msto63/iguana/internal/model"
	"github.com/msto63/iguana/internal/olea"
)

// change is a fully resolved set of Olea instructions. Resolution happens
// before any record is touched so a failing line changes nothing.
type change struct {
	in        *olea.Instructions
	project   *model.Record
	tag       []int64
	column    int64
	assignee  int64
	dependsOn int64
}

// CreateIssue creates an issue in project from create instructions
func (m *MemoryRepository) CreateIssue(ctx context.Context, project string, in *olea.Instructions, user model.UserRef) (olea.IssueRef, error) {
	return m.CreateIssueInSprint(ctx, project, 0, in, user)
}

// CreateIssueInSprint creates an issue and adds it to the sprint with
// the given sequence number. Sprint 0 creates it outside any sprint. An
// unknown sprint fails before the issue is created.
func (m *MemoryRepository) CreateIssueInSprint(ctx context.Context, project string, sprint int, in *olea.Instructions, user model.UserRef) (olea.IssueRef, error) {
	if err := ctx.Err(); err != nil {
		return olea.IssueRef{}, err
	}
	if !in.IsCreate() {
		return olea.IssueRef{}, mdwerror.New("instructions target an existing issue").
			WithCode(mdwerror.CodeInvalidInput)
	}
	if strings.TrimSpace(in.Title) == "" {
		return olea.IssueRef{}, mdwerror.New("a new issue needs a title").WithCode(mdwerror.CodeInvalidInput)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	p, err := m.writableProject(project, user)
	if err != nil {
		return olea.IssueRef{}, err
	}
	in = in.Resolve(p.String("name_short"))
	ch, err := m.resolveChange(p, in)
	if err != nil {
		return olea.IssueRef{}, err
	}
	var sp *model.Record
	if sprint > 0 {
		if sp, err = m.sprintOf(p, sprint); err != nil {
			return olea.IssueRef{}, err
		}
	}

	issue := &model.Record{Entity: entities.IssueEntity}
	issue.SetAttr("title", in.Title)
	issue.SetAttr("number", m.nextIssueNumber(p.ID))
	issue.SetAttr("created_at", m.options.Now())
	issue.SetRef("project", p.ID)
	issue.SetRef("creator", user.ID)
	if col, ok := m.firstColumn(p.ID); ok {
		issue.SetRef("kanbancol", col)
	}
	if sp != nil {
		issue.SetRef("sprint", sp.ID)
	}
	m.applyChange(issue, ch, user)
	if err := m.put(issue); err != nil {
		return olea.IssueRef{}, err
	}
	m.logTime(issue, in, user)

	n, _ := issue.Int("number")
	ref := olea.IssueRef{Project: p.String("name_short"), Number: int(n)}
	m.logger.Info("issue created", mdwlog.Fields{
		"issue": ref.String(),
		"user":  user.String(),
	})
	return ref, nil
}

// UpdateIssue applies update instructions to an existing issue
func (m *MemoryRepository) UpdateIssue(ctx context.Context, ref olea.IssueRef, in *olea.Instructions, user model.UserRef) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	p, err := m.writableProject(ref.Project, user)
	if err != nil {
		return err
	}
	issue, ok := m.issueByNumber(p.ID, ref.Number)
	if !ok {
		return mdwerror.Newf("no valid issue reference given: %s", ref).
			WithCode(mdwerror.CodeNotFound).
			WithDetail("issue", ref.String())
	}
	in = in.Resolve(p.String("name_short"))
	ch, err := m.resolveChange(p, in)
	if err != nil {
		return err
	}

	updated := issue.Clone()
	m.applyChange(updated, ch, user)
	updated.SetAttr("updated_at", m.options.Now())
	if err := m.put(updated); err != nil {
		return err
	}
	m.logTime(updated, in, user)

	m.logger.Info("issue updated", mdwlog.Fields{
		"issue":   ref.String(),
		"user":    user.String(),
		"changes": in.Changes(),
	})
	return nil
}

// AddToSprint moves an issue into the sprint with the given sequence
// number of its project
func (m *MemoryRepository) AddToSprint(ctx context.Context, ref olea.IssueRef, sprint int, user model.UserRef) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	p, err := m.writableProject(ref.Project, user)
	if err != nil {
		return err
	}
	issue, ok := m.issueByNumber(p.ID, ref.Number)
	if !ok {
		return mdwerror.Newf("issue %s not found", ref).WithCode(mdwerror.CodeNotFound)
	}
	found, err := m.sprintOf(p, sprint)
	if err != nil {
		return err
	}
	updated := issue.Clone()
	updated.SetRef("sprint", found.ID)
	return m.put(updated)
}

// sprintOf finds the sprint with sequence number seq of project p
func (m *MemoryRepository) sprintOf(p *model.Record, seq int) (*model.Record, error) {
	var found *model.Record
	m.scan(entities.SprintEntity, func(rec *model.Record) bool {
		if n, _ := rec.Int("seqnum"); rec.HasRef("project", p.ID) && n == int64(seq) {
			found = rec
			return false
		}
		return true
	})
	if found == nil {
		return nil, mdwerror.Newf("sprint %d not found in project %s", seq, p.String("name_short")).
			WithCode(mdwerror.CodeNotFound)
	}
	return found, nil
}

// writableProject finds the project and checks the user may change its
// issues
func (m *MemoryRepository) writableProject(short string, user model.UserRef) (*model.Record, error) {
	p, ok := m.projectByShort(short)
	if !ok {
		return nil, mdwerror.Newf("project %q not found", short).
			WithCode(mdwerror.CodeNotFound).
			WithDetail("project", short)
	}
	if !entities.DeveloperAllowed(p, user) {
		return nil, mdwerror.Newf("no user permissions to modify issues in project %s", p.String("name_short")).
			WithCode(mdwerror.CodeForbidden).
			WithDetail("project", p.String("name_short")).
			WithDetail("user", user.String())
	}
	return p, nil
}

func (m *MemoryRepository) resolveChange(p *model.Record, in *olea.Instructions) (*change, error) {
	ch := &change{in: in, project: p}

	for _, text := range in.Tags {
		tag, err := m.uniqueMatch(entities.TagEntity, "tag", text, func(rec *model.Record) bool {
			return rec.HasRef("project", p.ID)
		}, func(rec *model.Record) []string {
			return []string{rec.String("tag_text")}
		}, func(rec *model.Record) string {
			return rec.String("tag_text")
		})
		if err != nil {
			return nil, err
		}
		ch.tag = append(ch.tag, tag.ID)
	}

	if in.Status != "" {
		col, err := m.uniqueMatch(entities.KanbanColumnEntity, "kanban column", in.Status, func(rec *model.Record) bool {
			return rec.HasRef("project", p.ID)
		}, func(rec *model.Record) []string {
			return []string{rec.String("name")}
		}, func(rec *model.Record) string {
			return rec.String("name")
		})
		if err != nil {
			return nil, err
		}
		ch.column = col.ID
	}

	if in.Assignee != "" {
		u, err := m.uniqueMatch(entities.UserEntity, "user", in.Assignee, func(rec *model.Record) bool {
			return entities.DeveloperAllowed(p, model.UserRef{ID: rec.ID})
		}, func(rec *model.Record) []string {
			return []string{rec.String("username"), rec.String("first_name"), rec.String("last_name")}
		}, func(rec *model.Record) string {
			return rec.String("username")
		})
		if err != nil {
			return nil, err
		}
		ch.assignee = u.ID
	}

	if in.DependsOn != nil {
		if !strings.EqualFold(in.DependsOn.Project, p.String("name_short")) {
			return nil, mdwerror.Newf("depends issue %s does not uniquely exist in project %s", in.DependsOn, p.String("name_short")).
				WithCode(mdwerror.CodeNotFound)
		}
		dep, ok := m.issueByNumber(p.ID, in.DependsOn.Number)
		if !ok {
			return nil, mdwerror.Newf("depends issue %s does not uniquely exist", in.DependsOn).
				WithCode(mdwerror.CodeNotFound)
		}
		ch.dependsOn = dep.ID
	}
	return ch, nil
}

// uniqueMatch finds the one record whose texts contain value, ignoring
// case. When several match, an exact match of the key decides.
func (m *MemoryRepository) uniqueMatch(entity, what, value string, scope func(*model.Record) bool,
	texts func(*model.Record) []string, key func(*model.Record) string) (*model.Record, error) {

	needle := strings.ToLower(value)
	var candidates []*model.Record
	m.scan(entity, func(rec *model.Record) bool {
		if !scope(rec) {
			return true
		}
		for _, t := range texts(rec) {
			if strings.Contains(strings.ToLower(t), needle) {
				candidates = append(candidates, rec)
				break
			}
		}
		return true
	})
	if len(candidates) == 1 {
		return candidates[0], nil
	}

	var exact []*model.Record
	for _, rec := range candidates {
		if key(rec) == value {
			exact = append(exact, rec)
		}
	}
	if len(exact) == 1 {
		return exact[0], nil
	}

	code := mdwerror.CodeNotFound
	if len(candidates) > 1 {
		code = mdwerror.CodeAmbiguous
	}
	return nil, mdwerror.Newf("given %s %q does not uniquely exist", what, value).
		WithCode(code).
		WithDetail("candidates", len(candidates))
}

func (m *MemoryRepository) applyChange(issue *model.Record, ch *change, user model.UserRef) {
	in := ch.in
	if in.Description != "" {
		issue.SetAttr("description", in.Description)
	}
	if in.Priority != nil {
		issue.SetAttr("priority", *in.Priority)
	}
	if in.Storypoints != nil {
		issue.SetAttr("storypoints", *in.Storypoints)
	}
	if in.Type != "" {
		issue.SetAttr("type", string(in.Type))
	}
	if ch.column != 0 {
		issue.SetRef("kanbancol", ch.column)
	}
	for _, id := range ch.tag {
		issue.AddRef("tags", id)
	}
	if ch.assignee != 0 {
		if m.options.ReplaceAssignees {
			issue.SetRef("assignee")
		}
		issue.AddRef("assignee", ch.assignee)
	}
	if ch.dependsOn != 0 {
		issue.AddRef("dependsOn", ch.dependsOn)
	}
}

// logTime records the time a line logs as a Timelog of user
func (m *MemoryRepository) logTime(issue *model.Record, in *olea.Instructions, user model.UserRef) {
	if in.TimeToLog <= 0 {
		return
	}
	tl := &model.Record{Entity: entities.TimelogEntity}
	tl.SetAttr("time", olea.FormatDuration(in.TimeToLog))
	tl.SetAttr("minutes", int64(in.TimeToLog.Minutes()))
	tl.SetAttr("created_at", m.options.Now())
	tl.SetRef("issue", issue.ID)
	tl.SetRef("user", user.ID)
	// registered entity, cannot fail
	_ = m.put(tl)
}

func (m *MemoryRepository) issueByNumber(projectID int64, number int) (*model.Record, bool) {
	var found *model.Record
	m.scan(entities.IssueEntity, func(rec *model.Record) bool {
		n, _ := rec.Int("number")
		if rec.HasRef("project", projectID) && n == int64(number) {
			found = rec
			return false
		}
		return true
	})
	return found, found != nil
}

func (m *MemoryRepository) nextIssueNumber(projectID int64) int64 {
	var max int64
	m.scan(entities.IssueEntity, func(rec *model.Record) bool {
		if n, _ := rec.Int("number"); rec.HasRef("project", projectID) && n > max {
			max = n
		}
		return true
	})
	return max + 1
}

// firstColumn returns the kanban column with the lowest position
func (m *MemoryRepository) firstColumn(projectID int64) (int64, bool) {
	var best *model.Record
	var bestPos int64
	m.scan(entities.KanbanColumnEntity, func(rec *model.Record) bool {
		if !rec.HasRef("project", projectID) {
			return true
		}
		pos, _ := rec.Int("position")
		if best == nil || pos < bestPos {
			best, bestPos = rec, pos
		}
		return true
	})
	if best == nil {
		return 0, false
	}
	return best.ID, true
}
