package scan

import (
	"fmt"
	"unicode/utf8"

	mdwerror "github.com/msto63/iguana/foundation/core/error"
)

// contextWidth is the number of bytes shown on each side of the offending
// character.
const contextWidth = 10

// LexError reports input that no rule could match
type LexError struct {
	Input    string
	Position int
	Char     rune
	Context  string
	Reason   string
}

// NewLexError builds an error for the character at position
func NewLexError(input string, position int, reason string) *LexError {
	e := &LexError{Input: input, Position: position, Reason: reason}
	if position < len(input) {
		e.Char, _ = utf8.DecodeRuneInString(input[position:])
	}
	e.Context = Snippet(input, position)
	return e
}

// Error implements the error interface
func (e *LexError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("lexical error at position %d: %s (near '%s')", e.Position, e.Reason, e.Context)
	}
	return fmt.Sprintf("lexical error at position %d: illegal character %q (near '%s')", e.Position, e.Char, e.Context)
}

// Expression returns the scanned input
func (e *LexError) Expression() string {
	return e.Input
}

// Code returns the error code
func (e *LexError) Code() mdwerror.Code {
	return mdwerror.CodeLexical
}

// Snippet returns the input around position, cut at rune boundaries
func Snippet(input string, position int) string {
	start := position - contextWidth
	if start < 0 {
		start = 0
	}
	end := position + contextWidth
	if end > len(input) {
		end = len(input)
	}
	for start > 0 && !utf8.RuneStart(input[start]) {
		start--
	}
	for end < len(input) && !utf8.RuneStart(input[end]) {
		end++
	}
	return input[start:end]
}
