package tui

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/go-cmp/cmp"

	mdwerror "github.com/msto63/iguana/foundation/core/error"
	"github.com/msto63/iguana/internal/engine"
	"github.com/msto63/iguana/internal/model"
	"github.com/msto63/iguana/internal/server"
)

type fakeBackend struct {
	searches []string
	lines    []string
	search   func(expression string) (*server.SearchReply, error)
	quickAdd func(line string) (*server.QuickAddReply, error)
}

func (f *fakeBackend) Search(_ context.Context, expression string) (*server.SearchReply, error) {
	f.searches = append(f.searches, expression)
	return f.search(expression)
}

func (f *fakeBackend) QuickAdd(_ context.Context, line string) (*server.QuickAddReply, error) {
	f.lines = append(f.lines, line)
	return f.quickAdd(line)
}

func newShell(t *testing.T, cfg Config) Model {
	t.Helper()
	next, _ := New(cfg).Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	return next.(Model)
}

func key(k tea.KeyType) tea.KeyMsg { return tea.KeyMsg{Type: k} }

// submit types input, presses enter and feeds the finished call back
func submit(t *testing.T, m Model, input string) Model {
	t.Helper()
	m.input.SetValue(input)
	next, cmd := m.Update(key(tea.KeyEnter))
	m = next.(Model)
	if cmd == nil {
		t.Fatalf("enter on %q returned no command", input)
	}
	for _, msg := range collect(cmd) {
		switch msg.(type) {
		case searchDoneMsg, quickAddDoneMsg:
			next, _ = m.Update(msg)
			m = next.(Model)
		}
	}
	return m
}

func collect(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	batch, ok := msg.(tea.BatchMsg)
	if !ok {
		return []tea.Msg{msg}
	}
	var out []tea.Msg
	for _, c := range batch {
		out = append(out, collect(c)...)
	}
	return out
}

func TestSearchShowsResults(t *testing.T) {
	backend := &fakeBackend{search: func(string) (*server.SearchReply, error) {
		return &server.SearchReply{Results: []model.Result{
			{Title: "(PRJ-1) Test-Issue", Link: "/project/PRJ/issue/1/"},
		}}, nil
	}}
	m := newShell(t, Config{Backend: backend, Project: "PRJ", User: "a"})

	m = submit(t, m, `  Issue.title ~~ "Test"  `)

	if diff := cmp.Diff([]string{`Issue.title ~~ "Test"`}, backend.searches); diff != "" {
		t.Errorf("searches mismatch (-want +got):\n%s", diff)
	}
	if m.Input() != "" {
		t.Errorf("Input() = %q, want empty after a search", m.Input())
	}
	view := m.View()
	for _, want := range []string{"(PRJ-1) Test-Issue", "1 results (structured)", "project PRJ"} {
		if !strings.Contains(view, want) {
			t.Errorf("view lacks %q", want)
		}
	}
}

func TestOleaErrorRestoresLine(t *testing.T) {
	line := ">PRJ-2 :Weird !2"
	backend := &fakeBackend{quickAdd: func(l string) (*server.QuickAddReply, error) {
		return nil, &engine.QuickAddError{
			Line: l,
			Err:  mdwerror.New("unknown issue type").WithCode(mdwerror.CodeSemantic),
		}
	}}
	m := newShell(t, Config{Backend: backend, Mode: ModeOlea})

	m = submit(t, m, line)

	if m.Input() != line {
		t.Errorf("Input() = %q, want the rejected line %q", m.Input(), line)
	}
	if !strings.Contains(m.View(), "unknown issue type") {
		t.Error("view lacks the error")
	}
}

func TestOleaApplied(t *testing.T) {
	backend := &fakeBackend{quickAdd: func(string) (*server.QuickAddReply, error) {
		return &server.QuickAddReply{Issue: "PRJ-4", Created: true, Changes: []string{"title", "priority"}}, nil
	}}
	m := newShell(t, Config{Backend: backend, Mode: ModeOlea})

	m = submit(t, m, "New issue !2")

	if m.Input() != "" {
		t.Errorf("Input() = %q, want empty", m.Input())
	}
	if !strings.Contains(m.View(), "created PRJ-4 (title, priority)") {
		t.Errorf("view lacks the applied line:\n%s", m.View())
	}
}

func TestTabSwitchesMode(t *testing.T) {
	m := newShell(t, Config{Backend: &fakeBackend{}})
	if m.Mode() != ModeSearch {
		t.Fatalf("Mode() = %v, want Search", m.Mode())
	}
	next, _ := m.Update(key(tea.KeyTab))
	if got := next.(Model).Mode(); got != ModeOlea {
		t.Errorf("Mode() after tab = %v, want Olea", got)
	}
	next, _ = next.Update(key(tea.KeyTab))
	if got := next.(Model).Mode(); got != ModeSearch {
		t.Errorf("Mode() after two tabs = %v, want Search", got)
	}
}

func TestHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shell", "history.json")
	backend := &fakeBackend{search: func(string) (*server.SearchReply, error) {
		return &server.SearchReply{}, nil
	}}
	m := newShell(t, Config{Backend: backend, HistoryFile: path})
	m = submit(t, m, "first query")
	m = submit(t, m, "second query")
	m.input.SetValue("draft")

	steps := []struct {
		key  tea.KeyType
		want string
	}{
		{tea.KeyUp, "second query"},
		{tea.KeyUp, "first query"},
		{tea.KeyUp, "first query"},
		{tea.KeyDown, "second query"},
		{tea.KeyDown, "draft"},
	}
	for i, step := range steps {
		next, _ := m.Update(key(step.key))
		m = next.(Model)
		if m.Input() != step.want {
			t.Errorf("step %d: Input() = %q, want %q", i, m.Input(), step.want)
		}
	}

	reloaded := New(Config{Backend: backend, HistoryFile: path})
	if diff := cmp.Diff([]string{"first query", "second query"}, reloaded.history.Search); diff != "" {
		t.Errorf("persisted history mismatch (-want +got):\n%s", diff)
	}
	if reloaded.err != nil {
		t.Errorf("loading history failed: %v", reloaded.err)
	}
}

func TestRejectedInputFallsBackToSentInput(t *testing.T) {
	if got := rejectedInput(errors.New("connection refused"), "abc"); got != "abc" {
		t.Errorf("rejectedInput() = %q, want %q", got, "abc")
	}
}
