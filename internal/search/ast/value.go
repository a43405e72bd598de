package ast

import (
	"fmt"
	"strconv"
	"time"
)

// DateLayout is the query syntax of dates
const DateLayout = "20060102"

// ValueKind is the type of a comparison value
type ValueKind int

const (
	StringValue ValueKind = iota
	IntValue
	DateValue
)

// String returns the name of the kind
func (k ValueKind) String() string {
	switch k {
	case StringValue:
		return "string"
	case IntValue:
		return "int"
	case DateValue:
		return "date"
	default:
		return "unknown"
	}
}

// Value is the right hand side of a comparison. Dates are calendar dates
// held at midnight UTC.
type Value struct {
	Kind ValueKind
	Str  string
	Int  int64
	Date time.Time
}

// String creates a string value
func String(s string) Value {
	return Value{Kind: StringValue, Str: s}
}

// Int creates an integer value
func Int(n int64) Value {
	return Value{Kind: IntValue, Int: n}
}

// Date creates a date value from the calendar day of t
func Date(t time.Time) Value {
	y, m, d := t.Date()
	return Value{Kind: DateValue, Date: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// String renders the value in query syntax
func (v Value) String() string {
	switch v.Kind {
	case IntValue:
		return strconv.FormatInt(v.Int, 10)
	case DateValue:
		return v.Date.Format(DateLayout)
	default:
		return `"` + v.Str + `"`
	}
}

// Raw returns the value as plain text, without quotes
func (v Value) Raw() string {
	if v.Kind == StringValue {
		return v.Str
	}
	return v.String()
}

// Interface returns the Go value
func (v Value) Interface() interface{} {
	switch v.Kind {
	case IntValue:
		return v.Int
	case DateValue:
		return v.Date
	default:
		return v.Str
	}
}

// Validate checks that the kind is known
func (v Value) Validate() error {
	switch v.Kind {
	case StringValue, IntValue, DateValue:
		return nil
	default:
		return fmt.Errorf("unknown value kind %d", v.Kind)
	}
}
