// Package tui implements the interactive Iguana shell: one input line
// that either searches or applies Olea quick-add lines.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/msto63/iguana/internal/server"
)

// Mode selects the language of the input line
type Mode int

const (
	ModeSearch Mode = iota
	ModeOlea
)

func (m Mode) String() string {
	if m == ModeOlea {
		return "Olea"
	}
	return "Search"
}

// entryKind styles a transcript line
type entryKind int

const (
	entryQuery entryKind = iota
	entryResult
	entryInfo
	entryError
)

type entry struct {
	kind entryKind
	mode Mode
	text string
	link string
}

// Config configures the shell
type Config struct {
	Backend Backend

	// Project and User are shown in the status bar
	Project string
	User    string

	// Mode the shell starts in
	Mode Mode

	// HistoryFile persists submitted lines (optional)
	HistoryFile string

	// Timeout bounds one call (default: 30s)
	Timeout time.Duration
}

// Model is the shell's bubbletea model
type Model struct {
	mode    Mode
	width   int
	height  int
	ready   bool
	loading bool
	err     error

	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model

	entries []entry
	history *history
	// histIdx walks the history of the current mode, -1 is the draft
	histIdx int
	draft   string

	config Config
}

// New creates the shell model
func New(cfg Config) Model {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	ti := textinput.New()
	ti.Prompt = "> "
	ti.CharLimit = 4096
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(colorAccent)

	h, err := loadHistory(cfg.HistoryFile)

	m := Model{
		mode:    cfg.Mode,
		input:   ti,
		spinner: sp,
		history: h,
		histIdx: -1,
		err:     err,
		config:  cfg,
	}
	m.updatePlaceholder()
	return m
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit

		case "tab":
			if m.mode == ModeSearch {
				m.mode = ModeOlea
			} else {
				m.mode = ModeSearch
			}
			m.histIdx = -1
			m.updatePlaceholder()
			return m, nil

		case "enter":
			if m.loading {
				return m, nil
			}
			input := strings.TrimSpace(m.input.Value())
			if input == "" {
				return m, nil
			}
			return m.submit(input)

		case "up":
			m.browseHistory(1)
			return m, nil

		case "down":
			m.browseHistory(-1)
			return m, nil

		case "ctrl+l":
			m.entries = nil
			m.err = nil
			m.updateContent()
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		height := max(1, msg.Height-7)
		if !m.ready {
			m.viewport = viewport.New(msg.Width, height)
			m.viewport.YPosition = 2
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = height
		}
		m.input.Width = max(10, msg.Width-8)
		m.updateContent()

	case searchDoneMsg:
		m.loading = false
		if msg.err != nil {
			m.reject(msg.expression, msg.err)
		} else {
			m.showResults(msg.reply)
		}
		m.updateContent()

	case quickAddDoneMsg:
		m.loading = false
		if msg.err != nil {
			m.reject(msg.line, msg.err)
		} else {
			m.showApplied(msg.reply)
		}
		m.updateContent()

	case spinner.TickMsg:
		if m.loading {
			m.spinner, cmd = m.spinner.Update(msg)
			cmds = append(cmds, cmd)
		}
	}

	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)

	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// Mode returns the current input mode
func (m Model) Mode() Mode { return m.mode }

// Input returns the text of the input line
func (m Model) Input() string { return m.input.Value() }

func (m Model) submit(input string) (tea.Model, tea.Cmd) {
	m.history.add(m.mode, input)
	if err := saveHistory(m.config.HistoryFile, m.history); err != nil {
		m.err = err
	}
	m.histIdx = -1
	m.draft = ""

	m.entries = append(m.entries, entry{kind: entryQuery, mode: m.mode, text: m.mode.String() + ": " + input})
	m.input.Reset()
	m.loading = true
	m.updateContent()

	var run tea.Cmd
	if m.mode == ModeOlea {
		run = m.quickAdd(input)
	} else {
		run = m.search(input)
	}
	return m, tea.Batch(run, m.spinner.Tick)
}

// reject reports err and puts the rejected input back for correction
func (m *Model) reject(sent string, err error) {
	m.entries = append(m.entries, entry{kind: entryError, text: err.Error()})
	m.input.SetValue(rejectedInput(err, sent))
	m.input.CursorEnd()
}

func (m *Model) showResults(reply *server.SearchReply) {
	kind := "structured"
	if reply.FullText {
		kind = "full text"
	}
	m.entries = append(m.entries, entry{
		kind: entryInfo,
		text: fmt.Sprintf("%d results (%s)", len(reply.Results), kind),
	})
	for _, r := range reply.Results {
		m.entries = append(m.entries, entry{kind: entryResult, text: r.Title, link: r.Link})
	}
}

func (m *Model) showApplied(reply *server.QuickAddReply) {
	verb := "updated"
	if reply.Created {
		verb = "created"
	}
	text := fmt.Sprintf("%s %s", verb, reply.Issue)
	if len(reply.Changes) > 0 {
		text += " (" + strings.Join(reply.Changes, ", ") + ")"
	}
	m.entries = append(m.entries, entry{kind: entryInfo, text: text})
}

// browseHistory moves through the history of the current mode, step 1
// goes back in time
func (m *Model) browseHistory(step int) {
	lines := *m.history.lines(m.mode)
	if len(lines) == 0 {
		return
	}
	if m.histIdx == -1 {
		if step < 0 {
			return
		}
		m.draft = m.input.Value()
	}
	idx := m.histIdx + step
	switch {
	case idx < 0:
		m.histIdx = -1
		m.input.SetValue(m.draft)
	case idx >= len(lines):
		return
	default:
		m.histIdx = idx
		m.input.SetValue(lines[len(lines)-1-idx])
	}
	m.input.CursorEnd()
}

func (m *Model) updatePlaceholder() {
	if m.mode == ModeOlea {
		m.input.Placeholder = "Title :Type !priority @user #tag ..."
	} else {
		m.input.Placeholder = `Issue.title ~~ "text" or full-text words`
	}
}

// View renders the UI
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	var s strings.Builder
	s.WriteString(m.renderHeader())
	s.WriteString("\n")
	s.WriteString(m.viewport.View())
	s.WriteString("\n")
	if m.loading {
		s.WriteString(m.spinner.View())
		s.WriteString(" working...\n")
	}
	s.WriteString(inputStyle(m.mode).Render(m.input.View()))
	s.WriteString("\n")
	s.WriteString(m.renderFooter())
	return s.String()
}

func (m *Model) renderHeader() string {
	var tabs []string
	for _, mode := range []Mode{ModeSearch, ModeOlea} {
		if mode == m.mode {
			tabs = append(tabs, activeTabStyle(mode).Render(mode.String()))
		} else {
			tabs = append(tabs, TabStyle.Render(mode.String()))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, append([]string{TitleStyle.Render("Iguana")}, tabs...)...)
}

func (m *Model) renderFooter() string {
	help := "Tab: mode • ↑/↓: history • Ctrl+L: clear • Ctrl+C: quit"
	var info []string
	if m.config.Project != "" {
		info = append(info, "project "+m.config.Project)
	}
	if m.config.User != "" {
		info = append(info, "user "+m.config.User)
	}
	if m.err != nil {
		info = append(info, ErrorMessageStyle.Render(m.err.Error()))
	}
	right := strings.Join(info, " • ")

	return StatusBarStyle.Width(m.width).Render(
		lipgloss.JoinHorizontal(
			lipgloss.Top,
			help,
			strings.Repeat(" ", max(1, m.width-lipgloss.Width(help)-lipgloss.Width(right)-4)),
			right,
		),
	)
}

func (m *Model) updateContent() {
	var content strings.Builder
	for _, e := range m.entries {
		switch e.kind {
		case entryQuery:
			content.WriteString(QueryStyle.Foreground(modeColor(e.mode)).Render(e.text))
		case entryResult:
			content.WriteString("  " + ResultStyle.Render(e.text))
			if e.link != "" {
				content.WriteString("  " + LinkStyle.Render(e.link))
			}
		case entryInfo:
			content.WriteString(InfoStyle.Render(e.text))
		case entryError:
			content.WriteString(ErrorMessageStyle.Render("Error: " + e.text))
		}
		content.WriteString("\n")
	}
	m.viewport.SetContent(content.String())
	m.viewport.GotoBottom()
}

// Message types for async operations
type searchDoneMsg struct {
	expression string
	reply      *server.SearchReply
	err        error
}

type quickAddDoneMsg struct {
	line  string
	reply *server.QuickAddReply
	err   error
}

func (m Model) search(expression string) tea.Cmd {
	backend, timeout := m.config.Backend, m.config.Timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		reply, err := backend.Search(ctx, expression)
		return searchDoneMsg{expression: expression, reply: reply, err: err}
	}
}

func (m Model) quickAdd(line string) tea.Cmd {
	backend, timeout := m.config.Backend, m.config.Timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		reply, err := backend.QuickAdd(ctx, line)
		return quickAddDoneMsg{line: line, reply: reply, err: err}
	}
}

// Run starts the shell on the terminal
func Run(cfg Config) error {
	_, err := tea.NewProgram(New(cfg), tea.WithAltScreen()).Run()
	return err
}
