// File: lexer.go
// Title: Search Query Lexer
// Description: Token rules of the search query language, in priority order.
// Author: msto63
// Version: v0.1.0
// Created: 2025-03-05
// Modified: 2025-03-05
//
// Change History:
// - 2025-03-05 v0.1.0: Initial implementation

package parser

import (
	"strconv"
	"strings"
	"time"

	"github.com/msto63/iguana/internal/lang/scan"
	"github.com/msto63/iguana/internal/registry"
	"github.com/msto63/iguana/internal/search/ast"
)

// Token kinds of the search language
const (
	TokenField      scan.Kind = "FIELD"
	TokenString     scan.Kind = "STRING"
	TokenDate       scan.Kind = "DATE"
	TokenNumber     scan.Kind = "NUMBER"
	TokenComparator scan.Kind = "COMPARATOR"
	TokenLeftParen  scan.Kind = "LPAREN"
	TokenRightParen scan.Kind = "RPAREN"
	TokenBool       scan.Kind = "BOOL_OP"
	TokenSortOrder  scan.Kind = "SORT_ORDER"
	TokenSort       scan.Kind = "SORT"
	TokenLimit      scan.Kind = "LIMIT"
	TokenEOF        scan.Kind = "EOF"
)

// keywords only match when the whole field token equals the word
var keywords = map[string]scan.Kind{
	"AND":   TokenBool,
	"OR":    TokenBool,
	"ASC":   TokenSortOrder,
	"DESC":  TokenSortOrder,
	"SORT":  TokenSort,
	"LIMIT": TokenLimit,
}

var searchLexer = scan.NewLexer("search", " \t",
	scan.NewRule(TokenField, `[a-zA-Z][\p{L}\p{N}_.]+`, lexField),
	scan.NewRule(TokenString, `"[^"]*"`, lexString),
	scan.NewRule(TokenDate, `[0-9]{4}[0-9]{2}[0-9]{2}`, lexDate),
	scan.NewRule(TokenNumber, `[0-9]+`, lexNumber),
	scan.NewRule(TokenComparator, `[!=]=|[<>]=?|~~?`, nil),
	scan.NewRule(TokenLeftParen, `\(`, nil),
	scan.NewRule(TokenRightParen, `\)`, nil),
)

// Lexer returns the search language lexer
func Lexer() *scan.Lexer {
	return searchLexer
}

// Tokenize lexes a complete search expression
func Tokenize(input string) ([]scan.Token, error) {
	return searchLexer.Tokenize(input)
}

// lexField splits a field reference into its path. Both "." and "__"
// separate segments.
func lexField(tok *scan.Token) error {
	if kind, ok := keywords[tok.Text]; ok {
		tok.Kind = kind
		tok.Value = tok.Text
		return nil
	}
	joined := strings.ReplaceAll(tok.Text, ".", registry.PathSeparator)
	tok.Value = strings.Split(joined, registry.PathSeparator)
	return nil
}

func lexString(tok *scan.Token) error {
	tok.Value = tok.Text[1 : len(tok.Text)-1]
	return nil
}

func lexDate(tok *scan.Token) error {
	t, err := time.Parse(ast.DateLayout, tok.Text)
	if err != nil {
		return &scan.LexError{Reason: "invalid date " + tok.Text}
	}
	tok.Value = t
	return nil
}

func lexNumber(tok *scan.Token) error {
	n, err := strconv.ParseInt(tok.Text, 10, 64)
	if err != nil {
		return &scan.LexError{Reason: "number out of range " + tok.Text}
	}
	tok.Value = n
	return nil
}
