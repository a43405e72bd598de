// File: lexer.go
// Title: Olea Lexer
// Description: Token rules of the quick-add language. Every field token
//              starts with exactly one space and a sigil; only the issue
//              reference and the title carry no separator.
// Author: msto63
// Version: v0.1.0
// Created: 2025-03-06
// Modified: 2025-03-06
//
// Change History:
// - 2025-03-06 v0.1.0: Initial implementation

package olea

import (
	"strconv"

	"github.com/msto63/iguana/internal/lang/scan"
)

// Token kinds of the quick-add language
const (
	TokenUser        scan.Kind = "USER"
	TokenTag         scan.Kind = "TAG"
	TokenDescription scan.Kind = "DESCR"
	TokenStatus      scan.Kind = "STATUS"
	TokenPriority    scan.Kind = "PRIO"
	TokenStorypoints scan.Kind = "STORYPOINTS"
	TokenType        scan.Kind = "TYPE"
	TokenDepends     scan.Kind = "DEPENDS"
	TokenTimelog     scan.Kind = "TIMELOG"
	TokenIssue       scan.Kind = "ISSUE"
	TokenTitle       scan.Kind = "TITLE"
)

const (
	// word matches what \w matches for Unicode text
	word     = `\p{L}\p{N}_`
	name     = `a-zA-Z0-9_\-+.`
	text     = word + `\-.?",/()`
	issueRef = `([a-zA-Z]{1,4}-)?[0-9]+`
)

var oleaLexer = scan.NewLexer("olea", "\t",
	scan.NewRule(TokenUser, ` @[`+name+`]+`, stripSigil),
	scan.NewRule(TokenTag, ` #[`+name+` ]+[`+name+`]`, stripSigil),
	scan.NewRule(TokenDescription, ` ;[`+text+` ]+[`+text+`]`, stripSigil),
	scan.NewRule(TokenStatus, ` &[`+name+` ]+[`+name+`]`, stripSigil),
	scan.NewRule(TokenPriority, ` ![0-4]`, lexInt),
	scan.NewRule(TokenStorypoints, ` \$[0-9]+`, lexInt),
	scan.NewRule(TokenType, ` :[A-Za-z]+`, lexType),
	scan.NewRule(TokenDepends, ` ~`+issueRef, lexIssueRef(2)),
	scan.NewRule(TokenTimelog, ` \+([0-9]+d)?([0-9]+h)?([0-9]+m)?`, lexDuration),
	scan.StartRule(TokenIssue, `>`+issueRef, lexIssueRef(1)),
	scan.NewRule(TokenTitle, `[`+word+`][`+text+` ]+[`+text+`]`, nil),
)

// Lexer returns the quick-add lexer
func Lexer() *scan.Lexer {
	return oleaLexer
}

// Tokenize lexes a quick-add line
func Tokenize(line string) ([]scan.Token, error) {
	return oleaLexer.Tokenize(line)
}

// stripSigil drops the separating space and the sigil
func stripSigil(tok *scan.Token) error {
	tok.Value = tok.Text[2:]
	return nil
}

func lexInt(tok *scan.Token) error {
	n, err := strconv.Atoi(tok.Text[2:])
	if err != nil {
		return &scan.LexError{Reason: "number out of range " + tok.Text[2:]}
	}
	tok.Value = n
	return nil
}

func lexType(tok *scan.Token) error {
	t, err := ParseIssueType(tok.Text[2:])
	if err != nil {
		return &SemanticError{
			Position: tok.Span.Offset,
			Value:    tok.Text[2:],
			Message:  err.Error(),
		}
	}
	tok.Value = t
	return nil
}

func lexIssueRef(prefix int) scan.Action {
	return func(tok *scan.Token) error {
		ref, err := ParseIssueRef(tok.Text[prefix:])
		if err != nil {
			return &scan.LexError{Reason: err.Error()}
		}
		tok.Value = ref
		return nil
	}
}

func lexDuration(tok *scan.Token) error {
	d, err := ParseDuration(tok.Text[2:])
	if err != nil {
		return &SemanticError{
			Position: tok.Span.Offset,
			Value:    tok.Text[2:],
			Message:  err.Error(),
		}
	}
	tok.Value = d
	return nil
}
