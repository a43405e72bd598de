// File: logger_test.go
// Title: Logger Tests
// Description: Tests for the structured logger, formatters and timers.
// Author: msto63
// Version: v0.2.0
// Created: 2025-01-24
// Modified: 2025-03-02

package log

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	mdwerror "github.com/msto63/iguana/foundation/core/error"
)

func newBufferLogger(level Level, format Format) (*Logger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	return NewWithConfig(Config{Level: level, Format: format, Output: buf, Name: "test"}), buf
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]interface{}
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("invalid JSON line %q: %v", line, err)
		}
		out = append(out, m)
	}
	return out
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input   string
		want    Level
		wantErr bool
	}{
		{"trace", LevelTrace, false},
		{"DEBUG", LevelDebug, false},
		{" info ", LevelInfo, false},
		{"warning", LevelWarn, false},
		{"err", LevelError, false},
		{"loud", LevelInfo, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestLevelFlagValue(t *testing.T) {
	var l Level
	if err := l.Set("warn"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if l != LevelWarn {
		t.Errorf("Set() level = %v, want %v", l, LevelWarn)
	}
	if err := l.Set("nope"); err == nil {
		t.Error("Set() expected error for unknown level")
	}
}

func TestLoggerLevelFiltering(t *testing.T) {
	logger, buf := newBufferLogger(LevelWarn, FormatJSON)
	logger.Debug("hidden")
	logger.Info("hidden")
	logger.Warn("shown")
	logger.Error("shown")

	lines := decodeLines(t, buf)
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
	if lines[0]["level"] != "warn" {
		t.Errorf("level = %v, want warn", lines[0]["level"])
	}
}

func TestWithFieldDoesNotMutateParent(t *testing.T) {
	parent, buf := newBufferLogger(LevelDebug, FormatJSON)
	child := parent.WithField("component", "search-parser")

	parent.Info("parent")
	child.Info("child", Fields{"entity": "Issue"})

	lines := decodeLines(t, buf)
	if _, ok := lines[0]["component"]; ok {
		t.Error("parent logger should not carry child field")
	}
	if lines[1]["component"] != "search-parser" {
		t.Errorf("component = %v, want search-parser", lines[1]["component"])
	}
	if lines[1]["entity"] != "Issue" {
		t.Errorf("entity = %v, want Issue", lines[1]["entity"])
	}
}

func TestTextFormatter(t *testing.T) {
	logger, buf := newBufferLogger(LevelInfo, FormatText)
	logger.WithRequestID("r-1").Info("query compiled", Fields{"b": 2, "a": 1})

	out := buf.String()
	for _, want := range []string{"[INF]", "{test}", "(req=r-1)", "query compiled", "[a=1 b=2]"} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q does not contain %q", out, want)
		}
	}
}

func TestLogErrorUsesSeverity(t *testing.T) {
	logger, buf := newBufferLogger(LevelDebug, FormatJSON)
	logger.LogError(mdwerror.New("line rejected").WithCode(mdwerror.CodeSyntax))
	logger.LogError(mdwerror.New("disk").WithCode(mdwerror.CodeDatabaseError))
	logger.LogError(errors.New("plain"))
	logger.LogError(nil)

	lines := decodeLines(t, buf)
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3", len(lines))
	}
	wantLevels := []string{"debug", "error", "error"}
	for i, want := range wantLevels {
		if lines[i]["level"] != want {
			t.Errorf("line %d level = %v, want %v", i, lines[i]["level"], want)
		}
	}
	if lines[0]["error_code"] != "PARSE_ERROR" {
		t.Errorf("error_code = %v, want PARSE_ERROR", lines[0]["error_code"])
	}
}

func TestTimer(t *testing.T) {
	logger, buf := newBufferLogger(LevelDebug, FormatJSON)

	timer := logger.StartTimer("compile")
	timer.WithField("entity", "Issue").Stop()
	if got := timer.Stop(); got != 0 {
		t.Errorf("second Stop() = %v, want 0", got)
	}

	logger.StartTimer("quickadd").StopWithError(errors.New("bad line"))

	rejected := mdwerror.New("unknown issue type").WithCode(mdwerror.CodeSemantic)
	logger.StartTimer("quickadd").StopWithError(rejected)

	lines := decodeLines(t, buf)
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3", len(lines))
	}
	if lines[0]["message"] != "compile completed" || lines[0]["entity"] != "Issue" || lines[0]["operation"] != "compile" {
		t.Errorf("unexpected completion line %v", lines[0])
	}
	if _, ok := lines[0]["duration_ms"]; !ok {
		t.Errorf("completion line %v has no duration_ms", lines[0])
	}
	if lines[1]["message"] != "quickadd failed" || lines[1]["error"] != "bad line" || lines[1]["level"] != "warn" {
		t.Errorf("unexpected failure line %v", lines[1])
	}
	if lines[2]["level"] != "debug" || lines[2]["error_code"] != string(mdwerror.CodeSemantic) {
		t.Errorf("rejected input line %v, want debug with %s", lines[2], mdwerror.CodeSemantic)
	}
}

func TestDefaultLogger(t *testing.T) {
	orig := GetDefault()
	defer SetDefault(orig)

	logger, _ := newBufferLogger(LevelInfo, FormatJSON)
	SetDefault(logger)
	if GetDefault() != logger {
		t.Error("GetDefault() did not return logger set by SetDefault()")
	}
	SetDefault(nil)
	if GetDefault() != logger {
		t.Error("SetDefault(nil) should be ignored")
	}
}
