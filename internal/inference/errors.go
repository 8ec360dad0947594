package inference

import "fmt"

// ParseError reports malformed or unreadable CSV input.
//
// It is one of exactly two error kinds the engine produces. Callers surface
// the message verbatim to the user and abort generation; no partial form is
// produced.
type ParseError struct {
	// Line is the 1-based input line the error was detected on, 0 when the
	// error concerns the input as a whole (e.g. empty input).
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("parse error at line %d: %s", e.Line, e.Msg)
	}
	return "parse error: " + e.Msg
}

// EmptyInputError reports that parsing succeeded but yielded zero usable
// columns (every header blank). Same abort-and-report contract as ParseError.
type EmptyInputError struct{}

func (e *EmptyInputError) Error() string {
	return "no usable columns in input"
}
