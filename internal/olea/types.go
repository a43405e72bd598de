package olea

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// IssueType is the closed set of issue types
type IssueType string

const (
	Bug   IssueType = "Bug"
	Story IssueType = "Story"
	Task  IssueType = "Task"
)

// IssueTypes lists the valid issue types
var IssueTypes = []IssueType{Bug, Story, Task}

// ParseIssueType accepts exactly the spellings of IssueTypes
func ParseIssueType(s string) (IssueType, error) {
	for _, t := range IssueTypes {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("invalid issue type %q, expected one of Bug, Story, Task", s)
}

// IssueRef names an issue as PROJECT-NUMBER. Project is empty for a bare
// number, which refers to the current project.
type IssueRef struct {
	Project string
	Number  int
}

func (r IssueRef) String() string {
	if r.Project == "" {
		return strconv.Itoa(r.Number)
	}
	return r.Project + "-" + strconv.Itoa(r.Number)
}

// Qualified reports whether the reference names its project
func (r IssueRef) Qualified() bool {
	return r.Project != ""
}

// Resolve qualifies a bare number with the given project short name
func (r IssueRef) Resolve(projectShort string) IssueRef {
	if r.Project == "" {
		r.Project = projectShort
	}
	return r
}

var issueRefPattern = regexp.MustCompile(`^(?:([a-zA-Z]{1,4})-)?([0-9]+)$`)

// ParseIssueRef parses "PRJ-12" or "12"
func ParseIssueRef(s string) (IssueRef, error) {
	m := issueRefPattern.FindStringSubmatch(s)
	if m == nil {
		return IssueRef{}, fmt.Errorf("invalid issue reference %q", s)
	}
	n, err := strconv.Atoi(m[2])
	if err != nil {
		return IssueRef{}, fmt.Errorf("invalid issue number %q", m[2])
	}
	return IssueRef{Project: m[1], Number: n}, nil
}

var durationPattern = regexp.MustCompile(`^(?:([0-9]+)d)?(?:([0-9]+)h)?(?:([0-9]+)m)?$`)

// ParseDuration parses the time log syntax, e.g. "1d3h5m". Units are
// optional but must appear in d, h, m order. The result is positive.
func ParseDuration(s string) (time.Duration, error) {
	m := durationPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("invalid duration %q, expected e.g. 1d3h5m", s)
	}
	units := []time.Duration{24 * time.Hour, time.Hour, time.Minute}
	var total time.Duration
	for i, unit := range units {
		if m[i+1] == "" {
			continue
		}
		n, err := strconv.ParseInt(m[i+1], 10, 64)
		if err != nil || n > math.MaxInt64/int64(unit) {
			return 0, fmt.Errorf("duration %q is too long", s)
		}
		part := time.Duration(n) * unit
		if total > math.MaxInt64-part {
			return 0, fmt.Errorf("duration %q is too long", s)
		}
		total += part
	}
	if total <= 0 {
		return 0, fmt.Errorf("duration %q must be positive", s)
	}
	return total, nil
}

// FormatDuration renders d in the time log syntax
func FormatDuration(d time.Duration) string {
	d = d.Round(time.Minute)
	days := d / (24 * time.Hour)
	d -= days * 24 * time.Hour
	hours := d / time.Hour
	d -= hours * time.Hour
	minutes := d / time.Minute

	var b strings.Builder
	if days > 0 {
		fmt.Fprintf(&b, "%dd", days)
	}
	if hours > 0 {
		fmt.Fprintf(&b, "%dh", hours)
	}
	if minutes > 0 || b.Len() == 0 {
		fmt.Fprintf(&b, "%dm", minutes)
	}
	return b.String()
}
