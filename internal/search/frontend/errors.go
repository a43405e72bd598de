package frontend

import (
	"fmt"

	mdwerror "github.com/msto63/iguana/foundation/core/error"
)

// TooShortError rejects a search input, or one of its full-text parts,
// shorter than the minimum length. It never triggers the fallback.
type TooShortError struct {
	Input string
	Part  string
	Min   int
}

func (e *TooShortError) Error() string {
	if e.Part == e.Input {
		return fmt.Sprintf("search expression %q is too short, at least %d characters are needed", e.Input, e.Min)
	}
	return fmt.Sprintf("search term %q in %q is too short, at least %d characters are needed", e.Part, e.Input, e.Min)
}

// Expression returns the rejected input
func (e *TooShortError) Expression() string { return e.Input }

// Code returns the error code
func (e *TooShortError) Code() mdwerror.Code { return mdwerror.CodeTooShort }
