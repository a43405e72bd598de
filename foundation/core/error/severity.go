// File: severity.go
// Title: Error Severity
// Description: Severity levels of coded errors.
// Author: msto63
// Version: v0.1.1
// Created: 2025-01-24
// Modified: 2025-03-02

package error

// Severity represents the severity level of an error
type Severity int

const (
	// SeverityLow marks rejected user input
	SeverityLow Severity = iota
	// SeverityMedium is the default
	SeverityMedium
	// SeverityHigh marks storage and startup failures
	SeverityHigh
	// SeverityCritical marks errors that leave the service unusable
	SeverityCritical
)

// String returns the string representation of the severity level
func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "low"
	case SeverityMedium:
		return "medium"
	case SeverityHigh:
		return "high"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// GetSeverityFromCode determines appropriate severity level based on error code
func GetSeverityFromCode(code Code) Severity {
	switch code {
	case CodeServiceInitialization:
		return SeverityCritical
	case CodeDatabaseError, CodeRegistry, CodeInternal:
		return SeverityHigh
	case CodeInvalidInput, CodeNotFound, CodeInvalidLength:
		return SeverityLow
	}
	if code.IsLanguage() {
		return SeverityLow
	}
	return SeverityMedium
}
