// File: timer.go
// Title: Operation Timer
// Description: Logs one compile or apply operation together with its
//              duration. Failures caused by rejected input are logged
//              below warning level.
// Author: msto63
// Version: v0.2.0
// Created: 2025-01-24
// Modified: 2025-03-08
//
// Change History:
// - 2025-01-24 v0.1.0: Initial implementation
// - 2025-03-08 v0.2.0: Duration carried on the entry, failure level
//                      follows the error severity

package log

import (
	"time"

	mdwerror "github.com/msto63/iguana/foundation/core/error"
)

// Timer logs the duration of an operation when it is stopped. Only the
// first Stop or StopWithError logs.
type Timer struct {
	logger    *Logger
	operation string
	start     time.Time
	fields    Fields
	level     Level
	done      bool
}

// NewTimer starts a timer for operation
func NewTimer(logger *Logger, operation string) *Timer {
	return &Timer{
		logger:    logger,
		operation: operation,
		start:     time.Now(),
		fields:    Fields{"operation": operation},
		level:     LevelDebug,
	}
}

// WithLevel sets the level of the completion entry (default: debug)
func (t *Timer) WithLevel(level Level) *Timer {
	t.level = level
	return t
}

// WithField adds a field to the final entry
func (t *Timer) WithField(key string, value interface{}) *Timer {
	t.fields[key] = value
	return t
}

// Elapsed returns the time since the timer started
func (t *Timer) Elapsed() time.Duration {
	return time.Since(t.start)
}

// Stop logs "<operation> completed" and returns the duration
func (t *Timer) Stop() time.Duration {
	return t.StopWithError(nil)
}

// StopWithError logs "<operation> failed" with err. Codes of low
// severity mark rejected input and logged at the completion level, all
// other errors at warning level. A nil err behaves like Stop.
func (t *Timer) StopWithError(err error) time.Duration {
	if t.done {
		return 0
	}
	t.done = true
	elapsed := t.Elapsed()
	if t.logger == nil {
		return elapsed
	}

	if err == nil {
		t.logger.write(t.level, t.operation+" completed", nil, elapsed, t.fields)
		return elapsed
	}

	level := LevelWarn
	if code := mdwerror.GetCode(err); code != mdwerror.CodeUnknown {
		t.fields["error_code"] = code
		if mdwerror.GetSeverityFromCode(code) == mdwerror.SeverityLow {
			level = t.level
		}
	}
	t.fields["success"] = false
	t.logger.write(level, t.operation+" failed", err, elapsed, t.fields)
	return elapsed
}
