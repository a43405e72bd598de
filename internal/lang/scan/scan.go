// ============================================================================
// Iguana - Issue Tracker Query Languages
// ============================================================================
//
// Package:     scan
// Description: Ordered rule-based lexer shared by the query languages
// Author:      Mike Stoffels
// Created:     2025-03-04
// License:     MIT
// ============================================================================

// Package scan implements the lexer used by both Iguana languages.
//
// A language is described by an ordered list of rules. At every input
// position the rules are tried in declaration order and the first rule
// whose pattern matches at that position produces the next token. The
// declaration order is therefore the priority order: a keyword rule has
// to be declared before a more general identifier rule.
package scan

import (
	"errors"
	"io"
	"iter"
	"regexp"
	"strings"
)

// Kind identifies the class of a token
type Kind string

// Span locates a token in the input, in bytes
type Span struct {
	Offset int
	Length int
}

// End returns the offset just past the token
func (s Span) End() int {
	return s.Offset + s.Length
}

// Token is a single lexical unit. Text is the matched input, Value the
// converted payload set by the rule action (string, int64, time.Time,
// []string or an action specific type).
type Token struct {
	Kind  Kind
	Text  string
	Value any
	Span  Span
}

// String returns the token value as text
func (t Token) String() string {
	if s, ok := t.Value.(string); ok {
		return s
	}
	return t.Text
}

// Action post-processes a matched token. It may change the kind, set the
// value or reject the token. A *LexError returned without position is
// completed by the scanner.
type Action func(tok *Token) error

// Rule is one entry of a lexer's ordered rule list
type Rule struct {
	Kind    Kind
	Pattern *regexp.Regexp
	Action  Action

	// AtStart restricts the rule to offset 0
	AtStart bool
}

// NewRule compiles pattern anchored at the current position
func NewRule(kind Kind, pattern string, action Action) Rule {
	return Rule{
		Kind:    kind,
		Pattern: regexp.MustCompile(`\A(?:` + pattern + `)`),
		Action:  action,
	}
}

// StartRule is NewRule restricted to the beginning of the input
func StartRule(kind Kind, pattern string, action Action) Rule {
	r := NewRule(kind, pattern, action)
	r.AtStart = true
	return r
}

// Lexer holds the rule list of a language. A Lexer is immutable and safe
// for concurrent use; every Scan call gets its own Scanner.
type Lexer struct {
	name   string
	rules  []Rule
	ignore string
}

// NewLexer creates a lexer. Characters contained in ignore are skipped
// between tokens.
func NewLexer(name string, ignore string, rules ...Rule) *Lexer {
	return &Lexer{name: name, rules: rules, ignore: ignore}
}

// Name returns the language name
func (l *Lexer) Name() string {
	return l.name
}

// Scan returns a scanner over input
func (l *Lexer) Scan(input string) *Scanner {
	return &Scanner{lexer: l, input: input}
}

// Tokenize lexes the complete input. On error no tokens are returned.
func (l *Lexer) Tokenize(input string) ([]Token, error) {
	var tokens []Token
	for tok, err := range l.Scan(input).All() {
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
	}
	return tokens, nil
}

// Scanner produces the tokens of one input lazily. A scanner is single
// pass: once exhausted or failed it keeps returning the same result.
type Scanner struct {
	lexer *Lexer
	input string
	pos   int
	err   error
}

// Input returns the text being scanned
func (s *Scanner) Input() string {
	return s.input
}

// Next returns the next token, io.EOF at the end of input or the lexing
// error that stopped the scanner.
func (s *Scanner) Next() (Token, error) {
	if s.err != nil {
		return Token{}, s.err
	}

	for s.pos < len(s.input) && strings.IndexByte(s.lexer.ignore, s.input[s.pos]) >= 0 {
		s.pos++
	}
	if s.pos >= len(s.input) {
		s.err = io.EOF
		return Token{}, s.err
	}

	rest := s.input[s.pos:]
	for _, rule := range s.lexer.rules {
		if rule.AtStart && s.pos != 0 {
			continue
		}
		loc := rule.Pattern.FindStringIndex(rest)
		if loc == nil || loc[1] == 0 {
			continue
		}
		tok := Token{
			Kind:  rule.Kind,
			Text:  rest[:loc[1]],
			Value: rest[:loc[1]],
			Span:  Span{Offset: s.pos, Length: loc[1]},
		}
		if rule.Action != nil {
			if err := rule.Action(&tok); err != nil {
				s.err = s.complete(err, tok.Span.Offset)
				return Token{}, s.err
			}
		}
		s.pos += loc[1]
		return tok, nil
	}

	s.err = NewLexError(s.input, s.pos, "")
	return Token{}, s.err
}

// All iterates over the remaining tokens. Iteration stops after the
// first error, which is yielded with a zero token.
func (s *Scanner) All() iter.Seq2[Token, error] {
	return func(yield func(Token, error) bool) {
		for {
			tok, err := s.Next()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(Token{}, err)
				return
			}
			if !yield(tok, nil) {
				return
			}
		}
	}
}

func (s *Scanner) complete(err error, offset int) error {
	var lexErr *LexError
	if errors.As(err, &lexErr) && lexErr.Input == "" {
		filled := NewLexError(s.input, offset, lexErr.Reason)
		*lexErr = *filled
	}
	return err
}
