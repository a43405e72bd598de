// File: error_test.go
// Title: Error Module Tests
// Description: Tests for coded errors, wrapping and code extraction.
// Author: msto63
// Version: v0.2.0
// Created: 2025-01-24
// Modified: 2025-03-02

package error

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
)

type codedErr struct{ code Code }

func (e *codedErr) Error() string { return "coded" }
func (e *codedErr) Code() Code    { return e.code }

func TestNew(t *testing.T) {
	err := New("test error message")
	if err.Error() != "test error message" {
		t.Errorf("Error() = %q, want %q", err.Error(), "test error message")
	}
	if err.Code() != CodeUnknown {
		t.Errorf("Code() = %v, want %v", err.Code(), CodeUnknown)
	}
	if err.Severity() != SeverityMedium {
		t.Errorf("Severity() = %v, want %v", err.Severity(), SeverityMedium)
	}
	if err.Timestamp().IsZero() {
		t.Error("Timestamp() should not be zero")
	}
}

func TestWrap(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantNil  bool
		wantMsg  string
		wantCode Code
	}{
		{name: "wrap nil error", err: nil, wantNil: true},
		{name: "wrap standard error", err: errors.New("boom"), wantMsg: "ctx: boom", wantCode: CodeUnknown},
		{
			name:     "wrap coded error",
			err:      New("disk").WithCode(CodeDatabaseError),
			wantMsg:  "ctx: disk",
			wantCode: CodeDatabaseError,
		},
		{name: "wrap error with Code method", err: &codedErr{code: CodeSyntax}, wantMsg: "ctx: coded", wantCode: CodeSyntax},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Wrap(tt.err, "ctx")
			if tt.wantNil {
				if got != nil {
					t.Errorf("Wrap() = %v, want nil", got)
				}
				return
			}
			if got.Error() != tt.wantMsg {
				t.Errorf("Error() = %q, want %q", got.Error(), tt.wantMsg)
			}
			if got.Code() != tt.wantCode {
				t.Errorf("Code() = %v, want %v", got.Code(), tt.wantCode)
			}
			if !errors.Is(got, tt.err) {
				t.Error("errors.Is() should find the wrapped error")
			}
		})
	}
}

func TestWithCodeSetsSeverity(t *testing.T) {
	tests := []struct {
		code Code
		want Severity
	}{
		{CodeSyntax, SeverityLow},
		{CodeTooShort, SeverityLow},
		{CodeDatabaseError, SeverityHigh},
		{CodeServiceInitialization, SeverityCritical},
		{CodeConfigError, SeverityMedium},
	}
	for _, tt := range tests {
		if got := New("x").WithCode(tt.code).Severity(); got != tt.want {
			t.Errorf("WithCode(%v).Severity() = %v, want %v", tt.code, got, tt.want)
		}
	}

	explicit := New("x").WithSeverity(SeverityCritical).WithCode(CodeSyntax)
	if explicit.Severity() != SeverityCritical {
		t.Errorf("Severity() = %v, want %v", explicit.Severity(), SeverityCritical)
	}
}

func TestGetCode(t *testing.T) {
	inner := &codedErr{code: CodeSemantic}
	tests := []struct {
		name string
		err  error
		want Code
	}{
		{"nil", nil, CodeUnknown},
		{"plain", errors.New("x"), CodeUnknown},
		{"language error", inner, CodeSemantic},
		{"fmt wrapped", fmt.Errorf("outer: %w", inner), CodeSemantic},
		{"coded", New("x").WithCode(CodeNotFound), CodeNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetCode(tt.err); got != tt.want {
				t.Errorf("GetCode() = %v, want %v", got, tt.want)
			}
		})
	}
	if !HasCode(inner, CodeSemantic) {
		t.Error("HasCode() = false, want true")
	}
}

func TestMarshalJSON(t *testing.T) {
	err := New("bad line").WithCode(CodeSyntax).WithDetail("position", 4).WithOperation("olea.Parse")
	data, jerr := json.Marshal(err)
	if jerr != nil {
		t.Fatalf("json.Marshal() error = %v", jerr)
	}
	var out map[string]interface{}
	if jerr := json.Unmarshal(data, &out); jerr != nil {
		t.Fatalf("json.Unmarshal() error = %v", jerr)
	}
	if out["code"] != "PARSE_ERROR" {
		t.Errorf("code = %v, want PARSE_ERROR", out["code"])
	}
	if out["operation"] != "olea.Parse" {
		t.Errorf("operation = %v, want olea.Parse", out["operation"])
	}
}

func TestCodeHTTPStatus(t *testing.T) {
	tests := []struct {
		code Code
		want int
	}{
		{CodeTooShort, 400},
		{CodeNotFound, 404},
		{CodeForbidden, 403},
		{CodeDatabaseError, 500},
	}
	for _, tt := range tests {
		if got := tt.code.HTTPStatus(); got != tt.want {
			t.Errorf("%v.HTTPStatus() = %d, want %d", tt.code, got, tt.want)
		}
	}
}
