// File: parser.go
// Title: Search Query Parser
// Description: Recursive descent parser for structured search queries.
//              Field references are bound to the registry while parsing;
//              the first field fixes the target entity of the query.
// Author: msto63
// Version: v0.1.0
// Created: 2025-03-05
// Modified: 2025-03-05
//
// Change History:
// - 2025-03-05 v0.1.0: Initial implementation

package parser

import (
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	mdwerror "github.com/msto63/iguana/foundation/core/error"
	mdwlog "github.com/msto63/iguana/foundation/core/log"
	"github.com/msto63/iguana/internal/lang/scan"
	"github.com/msto63/iguana/internal/registry"
	"github.com/msto63/iguana/internal/search/ast"
)

// DefaultMaxInputLength bounds the size of a query
const DefaultMaxInputLength = 4096

// Parser compiles search expressions. It keeps no per-call state and can
// be shared between goroutines.
type Parser struct {
	logger   *mdwlog.Logger
	registry *registry.Registry
	options  Options
}

// Options configures parser behavior
type Options struct {
	Logger         *mdwlog.Logger
	Registry       *registry.Registry
	MaxInputLength int
}

// ParseError reports a query that is not a valid structured query. Err
// holds the underlying lexical or registry error, if any.
type ParseError struct {
	Input    string
	Message  string
	Position int
	Near     string
	Err      error
}

func (pe *ParseError) Error() string {
	return fmt.Sprintf("parse error at position %d: %s (near '%s')", pe.Position, pe.Message, pe.Near)
}

func (pe *ParseError) Unwrap() error {
	return pe.Err
}

// Code returns the error code
func (pe *ParseError) Code() mdwerror.Code {
	return mdwerror.CodeSyntax
}

// New creates a parser bound to a registry
func New(opts Options) (*Parser, error) {
	if opts.Registry == nil {
		return nil, mdwerror.New("search parser needs a registry").
			WithCode(mdwerror.CodeServiceInitialization)
	}
	if opts.Logger == nil {
		opts.Logger = mdwlog.GetDefault()
	}
	if opts.MaxInputLength <= 0 {
		opts.MaxInputLength = DefaultMaxInputLength
	}
	return &Parser{
		logger:   opts.Logger.WithField("component", "search-parser"),
		registry: opts.Registry,
		options:  opts,
	}, nil
}

// Parse compiles input into a query. Every failure, including lexical
// errors, is reported as *ParseError and no partial result is returned.
func (p *Parser) Parse(input string) (*ast.CompiledQuery, error) {
	if len(input) > p.options.MaxInputLength {
		return nil, &ParseError{
			Input:   input,
			Message: fmt.Sprintf("input exceeds maximum length: %d > %d", len(input), p.options.MaxInputLength),
			Near:    scan.Snippet(input, p.options.MaxInputLength),
		}
	}

	st := &state{
		parser:  p,
		input:   input,
		scanner: searchLexer.Scan(input),
		query:   &ast.CompiledQuery{Limit: ast.NoLimit, Source: input},
	}

	query, err := st.parseQuery()
	if err != nil {
		p.logger.Debug("search query rejected", mdwlog.Fields{
			"input": input,
			"error": err.Error(),
		})
		return nil, err
	}

	p.logger.Debug("search query compiled", mdwlog.Fields{
		"input":       input,
		"entity":      query.TargetEntity,
		"comparisons": len(ast.Comparisons(query.Expression)),
		"sort":        len(query.Sort),
		"limit":       query.Limit,
	})
	return query, nil
}

// state is the cursor of a single Parse call
type state struct {
	parser  *Parser
	input   string
	scanner *scan.Scanner
	current scan.Token
	query   *ast.CompiledQuery
}

// advance loads the next token. Scanning errors abort the parse.
func (st *state) advance() error {
	tok, err := st.scanner.Next()
	if errors.Is(err, io.EOF) {
		st.current = scan.Token{Kind: TokenEOF, Span: scan.Span{Offset: len(st.input)}}
		return nil
	}
	if err != nil {
		var lexErr *scan.LexError
		pos := len(st.input)
		if errors.As(err, &lexErr) {
			pos = lexErr.Position
		}
		return &ParseError{
			Input:    st.input,
			Message:  err.Error(),
			Position: pos,
			Near:     scan.Snippet(st.input, pos),
			Err:      err,
		}
	}
	st.current = tok
	return nil
}

func (st *state) parseQuery() (*ast.CompiledQuery, error) {
	if err := st.advance(); err != nil {
		return nil, err
	}
	expr, err := st.parseExpression()
	if err != nil {
		return nil, err
	}
	st.query.Expression = expr

	for st.current.Kind != TokenEOF {
		switch st.current.Kind {
		case TokenLimit:
			if err := st.parseLimit(); err != nil {
				return nil, err
			}
		case TokenSort:
			if err := st.parseSort(); err != nil {
				return nil, err
			}
		default:
			return nil, st.errorf("unexpected %s after expression", describe(st.current))
		}
	}
	return st.query, nil
}

// parseExpression parses term (BOOL_OP term)*. AND and OR bind equally
// and group from the left.
func (st *state) parseExpression() (ast.Expr, error) {
	left, err := st.parseTerm()
	if err != nil {
		return nil, err
	}
	for st.current.Kind == TokenBool {
		op := st.current
		if err := st.advance(); err != nil {
			return nil, err
		}
		right, err := st.parseTerm()
		if err != nil {
			return nil, err
		}
		span := scan.Span{Offset: left.Position().Offset, Length: right.Position().End() - left.Position().Offset}
		if op.Text == "AND" {
			left = &ast.And{Left: left, Right: right, Pos: span}
		} else {
			left = &ast.Or{Left: left, Right: right, Pos: span}
		}
	}
	return left, nil
}

func (st *state) parseTerm() (ast.Expr, error) {
	switch st.current.Kind {
	case TokenLeftParen:
		open := st.current
		if err := st.advance(); err != nil {
			return nil, err
		}
		expr, err := st.parseExpression()
		if err != nil {
			return nil, err
		}
		if st.current.Kind != TokenRightParen {
			return nil, st.errorf("expected ')' to close '(' at position %d, got %s", open.Span.Offset, describe(st.current))
		}
		if err := st.advance(); err != nil {
			return nil, err
		}
		return expr, nil
	case TokenField:
		return st.parseComparison()
	default:
		return nil, st.errorf("expected field or '(', got %s", describe(st.current))
	}
}

func (st *state) parseComparison() (ast.Expr, error) {
	start := st.current.Span
	field, err := st.parseTarget()
	if err != nil {
		return nil, err
	}

	if st.current.Kind != TokenComparator {
		return nil, st.errorf("expected comparator after field, got %s", describe(st.current))
	}
	symbol := st.current.Text
	if err := st.advance(); err != nil {
		return nil, err
	}

	end := st.current.Span.End()
	value, err := st.parseValue()
	if err != nil {
		return nil, err
	}
	if err := st.advance(); err != nil {
		return nil, err
	}
	span := scan.Span{Offset: start.Offset, Length: end - start.Offset}

	cmp := &ast.Comparison{Field: field, Value: value, Pos: span}
	switch symbol {
	case "==":
		cmp.Comparator = ast.Eq
	case "!=":
		cmp.Comparator = ast.Eq
		return &ast.Not{Operand: cmp, Pos: span}, nil
	case ">":
		cmp.Comparator = ast.Gt
	case ">=":
		cmp.Comparator = ast.Gte
	case "<":
		cmp.Comparator = ast.Lt
	case "<=":
		cmp.Comparator = ast.Lte
	case "~":
		if value.Kind != ast.StringValue {
			return nil, st.errorf("regular expression must be a string")
		}
		if _, err := regexp.Compile(value.Str); err != nil {
			return nil, st.errorf("invalid regular expression %q", value.Str)
		}
		cmp.Comparator = ast.Regex
	case "~~":
		cmp.Comparator = ast.Contains
	default:
		return nil, st.errorf("unknown comparator %q", symbol)
	}
	return cmp, nil
}

func (st *state) parseValue() (ast.Value, error) {
	tok := st.current
	switch tok.Kind {
	case TokenString:
		return ast.String(tok.Value.(string)), nil
	case TokenNumber:
		return ast.Int(tok.Value.(int64)), nil
	case TokenDate:
		return ast.Date(tok.Value.(time.Time)), nil
	default:
		return ast.Value{}, st.errorf("expected string, number or date, got %s", describe(tok))
	}
}

// parseTarget binds a field reference. The first reference of a query
// fixes the target entity, later ones have to name the same entity.
func (st *state) parseTarget() ([]string, error) {
	tok := st.current
	path, _ := tok.Value.([]string)
	if len(path) < 2 {
		return nil, st.errorf("field reference %q needs an entity and a field", tok.Text)
	}

	// entity prefixes are case-sensitive
	entity, ok := st.parser.registry.CanonicalName(path[0])
	if !ok || entity != path[0] {
		return nil, st.errorf("unknown entity %q", path[0])
	}
	if st.query.TargetEntity == "" {
		st.query.TargetEntity = entity
	} else if entity != st.query.TargetEntity {
		return nil, st.errorf("query targets %s, cannot reference %s", st.query.TargetEntity, entity)
	}

	field := path[1:]
	if _, err := st.parser.registry.Resolve(entity, field); err != nil {
		pe := st.errorf("%s", mdwerrorMessage(err))
		pe.Err = err
		return nil, pe
	}

	if err := st.advance(); err != nil {
		return nil, err
	}
	return field, nil
}

func (st *state) parseLimit() error {
	if err := st.advance(); err != nil {
		return err
	}
	if st.current.Kind != TokenNumber {
		return st.errorf("expected number after LIMIT, got %s", describe(st.current))
	}
	st.query.Limit = int(st.current.Value.(int64))
	return st.advance()
}

func (st *state) parseSort() error {
	if err := st.advance(); err != nil {
		return err
	}
	if st.current.Kind != TokenSortOrder {
		return st.errorf("expected ASC or DESC after SORT, got %s", describe(st.current))
	}
	dir := ast.Direction(st.current.Text)
	if err := st.advance(); err != nil {
		return err
	}
	if st.current.Kind != TokenField {
		return st.errorf("expected field after SORT %s, got %s", dir, describe(st.current))
	}
	field, err := st.parseTarget()
	if err != nil {
		return err
	}
	st.query.Sort = append(st.query.Sort, ast.SortDirective{Field: field, Direction: dir})
	return nil
}

func (st *state) errorf(format string, args ...interface{}) *ParseError {
	near := st.current.Text
	if st.current.Kind == TokenEOF {
		near = "end of input"
	}
	return &ParseError{
		Input:    st.input,
		Message:  fmt.Sprintf(format, args...),
		Position: st.current.Span.Offset,
		Near:     near,
	}
}

func describe(tok scan.Token) string {
	if tok.Kind == TokenEOF {
		return "end of input"
	}
	return fmt.Sprintf("%s '%s'", strings.ToLower(string(tok.Kind)), tok.Text)
}

// mdwerrorMessage strips the cause chain from registry errors
func mdwerrorMessage(err error) string {
	var coded *mdwerror.Error
	if errors.As(err, &coded) {
		return coded.Message()
	}
	return err.Error()
}
