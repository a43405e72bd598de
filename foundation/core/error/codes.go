// File: codes.go
// Title: Error Codes
// Description: Error codes used across Iguana. The language codes classify
//              failures of the search and quick-add pipelines.
// Author: msto63
// Version: v0.2.0
// Created: 2025-01-24
// Modified: 2025-03-02
//
// Change History:
// - 2025-01-24 v0.1.0: Initial implementation
// - 2025-03-02 v0.2.0: Replaced command language codes with query language codes

package error

// Code represents a structured error code for categorizing errors
type Code string

const (
	// Generic codes
	CodeUnknown      Code = "UNKNOWN"
	CodeInternal     Code = "INTERNAL"
	CodeNotFound     Code = "NOT_FOUND"
	CodeInvalidInput Code = "INVALID_INPUT"
	CodeForbidden    Code = "FORBIDDEN"

	// Storage
	CodeDatabaseError  Code = "DATABASE_ERROR"
	CodeDuplicateEntry Code = "DUPLICATE_ENTRY"

	// Service
	CodeServiceInitialization Code = "SERVICE_INITIALIZATION"

	// Query languages
	CodeLexical   Code = "LEX_ERROR"
	CodeSyntax    Code = "PARSE_ERROR"
	CodeSemantic  Code = "SEMANTIC_ERROR"
	CodeTooShort  Code = "TOO_SHORT"
	CodeRegistry  Code = "REGISTRY_ERROR"
	CodeAmbiguous Code = "AMBIGUOUS_REFERENCE"

	// Configuration
	CodeConfigError   Code = "CONFIG_ERROR"
	CodeInvalidConfig Code = "INVALID_CONFIG"

	// Validation
	CodeInvalidLength Code = "INVALID_LENGTH"
)

// String returns the string representation of the error code
func (c Code) String() string {
	return string(c)
}

// IsLanguage reports whether the code describes a rejected query or
// quick-add line rather than a system failure.
func (c Code) IsLanguage() bool {
	switch c {
	case CodeLexical, CodeSyntax, CodeSemantic, CodeTooShort, CodeAmbiguous:
		return true
	}
	return false
}

// HTTPStatus maps the code to an HTTP status code
func (c Code) HTTPStatus() int {
	switch c {
	case CodeNotFound:
		return 404
	case CodeForbidden:
		return 403
	case CodeDuplicateEntry:
		return 409
	case CodeInvalidInput, CodeInvalidLength, CodeLexical, CodeSyntax,
		CodeSemantic, CodeTooShort, CodeAmbiguous:
		return 400
	default:
		return 500
	}
}
