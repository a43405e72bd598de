// File: parser.go
// Title: Olea Parser
// Description: Turns a quick-add line into create or update instructions.
//              line := ISSUE change+ | TITLE change*
// Author: msto63
// Version: v0.1.0
// Created: 2025-03-06
// Modified: 2025-03-06
//
// Change History:
// - 2025-03-06 v0.1.0: Initial implementation

package olea

import (
	"errors"
	"fmt"
	"time"

	mdwlog "github.com/msto63/iguana/foundation/core/log"
	"github.com/msto63/iguana/internal/lang/scan"
)

// DefaultMaxLineLength bounds the size of a quick-add line
const DefaultMaxLineLength = 1024

// Options configures a Parser
type Options struct {
	Logger        *mdwlog.Logger
	MaxLineLength int
}

// Parser parses quick-add lines. It is safe for concurrent use.
type Parser struct {
	logger  *mdwlog.Logger
	options Options
}

// New creates a parser
func New(opts Options) *Parser {
	if opts.Logger == nil {
		opts.Logger = mdwlog.GetDefault()
	}
	if opts.MaxLineLength <= 0 {
		opts.MaxLineLength = DefaultMaxLineLength
	}
	return &Parser{
		logger:  opts.Logger.WithField("component", "olea-parser"),
		options: opts,
	}
}

// Parse parses line with default options
func Parse(line string) (*Instructions, error) {
	return defaultParser.Parse(line)
}

var defaultParser = &Parser{logger: mdwlog.Discard(), options: Options{MaxLineLength: DefaultMaxLineLength}}

// Parse lexes the complete line before interpreting any token, so value
// errors of later tokens win over grammar errors of earlier ones. Errors
// implement LineError.
func (p *Parser) Parse(line string) (*Instructions, error) {
	if len(line) > p.options.MaxLineLength {
		return nil, &ParseError{
			Line:     line,
			Position: p.options.MaxLineLength,
			Message:  fmt.Sprintf("line exceeds maximum length: %d > %d", len(line), p.options.MaxLineLength),
			Near:     scan.Snippet(line, p.options.MaxLineLength),
		}
	}

	tokens, err := oleaLexer.Tokenize(line)
	if err != nil {
		var semErr *SemanticError
		if errors.As(err, &semErr) {
			semErr.Line = line
		}
		p.logger.Debug("quick-add line rejected", mdwlog.Fields{"line": line, "error": err.Error()})
		return nil, err
	}

	in, err := build(line, tokens)
	if err != nil {
		p.logger.Debug("quick-add line rejected", mdwlog.Fields{"line": line, "error": err.Error()})
		return nil, err
	}

	p.logger.Debug("quick-add line parsed", mdwlog.Fields{
		"line":    line,
		"create":  in.IsCreate(),
		"changes": in.Changes(),
	})
	return in, nil
}

func build(line string, tokens []scan.Token) (*Instructions, error) {
	if len(tokens) == 0 {
		return nil, &ParseError{Line: line, Message: "empty line", Near: "end of input"}
	}

	in := &Instructions{}
	first := tokens[0]
	switch first.Kind {
	case TokenIssue:
		ref := first.Value.(IssueRef)
		in.Target = &ref
		if len(tokens) == 1 {
			return nil, &ParseError{
				Line:     line,
				Position: first.Span.End(),
				Message:  fmt.Sprintf("nothing to change on %s", ref),
				Near:     "end of input",
			}
		}
	case TokenTitle:
		in.Title = first.Value.(string)
	default:
		return nil, &ParseError{
			Line:     line,
			Position: first.Span.Offset,
			Message:  "line must start with a title or an issue reference",
			Near:     first.Text,
		}
	}

	for _, tok := range tokens[1:] {
		switch tok.Kind {
		case TokenUser:
			in.Assignee = tok.Value.(string)
		case TokenTag:
			in.AddTag(tok.Value.(string))
		case TokenDescription:
			in.Description = tok.Value.(string)
		case TokenStatus:
			in.Status = tok.Value.(string)
		case TokenPriority:
			n := tok.Value.(int)
			in.Priority = &n
		case TokenStorypoints:
			n := tok.Value.(int)
			in.Storypoints = &n
		case TokenType:
			in.Type = tok.Value.(IssueType)
		case TokenDepends:
			ref := tok.Value.(IssueRef)
			in.DependsOn = &ref
		case TokenTimelog:
			in.TimeToLog = tok.Value.(time.Duration)
		default:
			return nil, &ParseError{
				Line:     line,
				Position: tok.Span.Offset,
				Message:  fmt.Sprintf("unexpected %s", tok.Kind),
				Near:     tok.Text,
			}
		}
	}
	return in, nil
}
