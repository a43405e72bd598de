package olea

import (
	"strconv"
	"strings"
	"time"
)

// Instructions is the result of parsing one quick-add line. Without a
// Target the line creates an issue titled Title; with a Target only the
// fields that were present change. Zero values mean "not given".
type Instructions struct {
	Target      *IssueRef     `json:"target,omitempty"`
	Title       string        `json:"title,omitempty"`
	Assignee    string        `json:"assignee,omitempty"`
	Tags        []string      `json:"tags,omitempty"`
	Description string        `json:"description,omitempty"`
	Status      string        `json:"status,omitempty"`
	Priority    *int          `json:"priority,omitempty"`
	Type        IssueType     `json:"type,omitempty"`
	DependsOn   *IssueRef     `json:"depends_on,omitempty"`
	TimeToLog   time.Duration `json:"time_to_log,omitempty"`
	Storypoints *int          `json:"storypoints,omitempty"`
}

// IsCreate reports whether the instructions create a new issue
func (in *Instructions) IsCreate() bool {
	return in.Target == nil
}

// AddTag adds a tag once, keeping first-seen order
func (in *Instructions) AddTag(tag string) {
	for _, t := range in.Tags {
		if t == tag {
			return
		}
	}
	in.Tags = append(in.Tags, tag)
}

// Changes lists the issue fields the instructions modify, in a fixed
// order. Logging time is not a change of the issue.
func (in *Instructions) Changes() []string {
	var out []string
	add := func(cond bool, field string) {
		if cond {
			out = append(out, field)
		}
	}
	add(in.Title != "" && in.IsCreate(), "title")
	add(in.Assignee != "", "assignee")
	add(len(in.Tags) > 0, "tags")
	add(in.Description != "", "description")
	add(in.Status != "", "status")
	add(in.Priority != nil, "priority")
	add(in.Type != "", "type")
	add(in.DependsOn != nil, "depends_on")
	add(in.Storypoints != nil, "storypoints")
	return out
}

// Resolve returns a copy with bare issue numbers qualified by the
// current project.
func (in *Instructions) Resolve(projectShort string) *Instructions {
	out := *in
	out.Tags = append([]string(nil), in.Tags...)
	if in.Target != nil {
		t := in.Target.Resolve(projectShort)
		out.Target = &t
	}
	if in.DependsOn != nil {
		d := in.DependsOn.Resolve(projectShort)
		out.DependsOn = &d
	}
	return &out
}

// String renders the instructions back in quick-add syntax
func (in *Instructions) String() string {
	var parts []string
	if in.Target != nil {
		parts = append(parts, ">"+in.Target.String())
	} else {
		parts = append(parts, in.Title)
	}
	if in.Assignee != "" {
		parts = append(parts, "@"+in.Assignee)
	}
	for _, t := range in.Tags {
		parts = append(parts, "#"+t)
	}
	if in.Description != "" {
		parts = append(parts, ";"+in.Description)
	}
	if in.Status != "" {
		parts = append(parts, "&"+in.Status)
	}
	if in.Priority != nil {
		parts = append(parts, "!"+strconv.Itoa(*in.Priority))
	}
	if in.Storypoints != nil {
		parts = append(parts, "$"+strconv.Itoa(*in.Storypoints))
	}
	if in.Type != "" {
		parts = append(parts, ":"+string(in.Type))
	}
	if in.DependsOn != nil {
		parts = append(parts, "~"+in.DependsOn.String())
	}
	if in.TimeToLog > 0 {
		parts = append(parts, "+"+FormatDuration(in.TimeToLog))
	}
	return strings.Join(parts, " ")
}
