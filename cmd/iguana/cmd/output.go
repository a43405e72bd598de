package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"

	mdwerror "github.com/msto63/iguana/foundation/core/error"
	"github.com/msto63/iguana/internal/server"
)

var (
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444")).Bold(true)
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	titleStyle = lipgloss.NewStyle().Bold(true)
	linkStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#3B82F6"))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
)

// printError writes err to w. Rejected input is printed with its code
// and the input it came from.
func printError(w io.Writer, err error) {
	code, expression := rejection(err)
	if code == "" {
		fmt.Fprintf(w, "%s %v\n", errorStyle.Render("Error:"), err)
		return
	}
	fmt.Fprintf(w, "%s [%s] %v\n", errorStyle.Render("Error:"), code, err)
	if expression != "" {
		fmt.Fprintf(w, "  %s %s\n", dimStyle.Render("input:"), expression)
	}
}

// rejection returns the code and expression of a rejected input, local
// or remote
func rejection(err error) (string, string) {
	var rej interface {
		Expression() string
		Code() mdwerror.Code
	}
	if errors.As(err, &rej) {
		return string(rej.Code()), rej.Expression()
	}
	if payload, ok := server.RejectedInput(err); ok {
		return payload.Code, payload.Expression
	}
	return "", ""
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printSearchReply(w io.Writer, reply *server.SearchReply) {
	kind := "structured"
	if reply.FullText {
		kind = "full text"
	}
	fmt.Fprintf(w, "%s\n", dimStyle.Render(fmt.Sprintf("%d results (%s)", len(reply.Results), kind)))
	if reply.Query != "" {
		fmt.Fprintf(w, "%s %s\n", dimStyle.Render("query:"), reply.Query)
	}
	for _, r := range reply.Results {
		fmt.Fprintf(w, "  %s  %s\n", titleStyle.Render(r.Title), linkStyle.Render(r.Link))
	}
}

func printQuickAddReply(w io.Writer, reply *server.QuickAddReply) {
	verb := "updated"
	if reply.Created {
		verb = "created"
	}
	fmt.Fprintf(w, "%s %s\n", okStyle.Render(verb), reply.Issue)
	for _, c := range reply.Changes {
		fmt.Fprintf(w, "  %s %s\n", dimStyle.Render("-"), c)
	}
}

func printTokens(w io.Writer, reply *server.TokenizeReply) {
	for _, tok := range reply.Tokens {
		fmt.Fprintf(w, "%4d:%-3d %-12s %q\n", tok.Offset, tok.Length, tok.Kind, tok.Value)
	}
}
