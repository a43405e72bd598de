package olea

import (
	"fmt"

	mdwerror "github.com/msto63/iguana/foundation/core/error"
	"github.com/msto63/iguana/internal/lang/scan"
)

// SemanticError reports a well formed token with an invalid value, such
// as an unknown issue type. It is raised while lexing.
type SemanticError struct {
	Line     string
	Position int
	Value    string
	Message  string
}

func (e *SemanticError) Error() string {
	return fmt.Sprintf("semantic error at position %d: %s", e.Position, e.Message)
}

// Expression returns the rejected line
func (e *SemanticError) Expression() string { return e.Line }

// Code returns the error code
func (e *SemanticError) Code() mdwerror.Code { return mdwerror.CodeSemantic }

// ParseError reports a line whose tokens do not form an instruction
type ParseError struct {
	Line     string
	Position int
	Message  string
	Near     string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at position %d: %s (near '%s')", e.Position, e.Message, e.Near)
}

// Expression returns the rejected line
func (e *ParseError) Expression() string { return e.Line }

// Code returns the error code
func (e *ParseError) Code() mdwerror.Code { return mdwerror.CodeSyntax }

// LineError is implemented by every error Parse returns. Expression gives
// back the original line so a client can offer it for correction.
type LineError interface {
	error
	Expression() string
	Code() mdwerror.Code
}

var (
	_ LineError = (*SemanticError)(nil)
	_ LineError = (*ParseError)(nil)
	_ LineError = (*scan.LexError)(nil)
)
