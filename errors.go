package mtxt

import (
	"fmt"
	"strings"
)

// ParseError is a lexical, grammatical, or semantic failure in MTXT source,
// carrying the 1-based line of the offending token (§7). The parser does
// not record columns, so Column is 0 on every ParseError it produces.
type ParseError struct {
	Line    int
	Column  int
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%d:%d: %s", e.Line, e.Column, e.Message)
}

// RangeError reports a numeric value outside its legal bound (velocity,
// pan, channel, octave, cents, ...).
type RangeError struct {
	Line    int
	Field   string
	Value   float64
	Message string
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("%d: %s out of range (%v): %s", e.Line, e.Field, e.Value, e.Message)
}

// ReferenceError reports an unknown alias, an unresolved transition start
// value, or an alias expansion cycle.
type ReferenceError struct {
	Line    int
	Message string
}

func (e *ReferenceError) Error() string {
	return fmt.Sprintf("%d: %s", e.Line, e.Message)
}

// ConversionError reports an SMF encode/decode failure: a note outside the
// MIDI range 0-127 or a transition with no start value at export, or an
// SMF with no tracks (Validate). An error from reading a malformed SMF file
// is returned as the SMF reader produced it, not as a ConversionError.
type ConversionError struct {
	Message string
}

func (e *ConversionError) Error() string {
	return "conversion error: " + e.Message
}

// Diagnostics aggregates every non-fatal warning and every recoverable
// ParseError collected while processing a file, per §4.C ("parsing attempts
// to continue through further lines to collect all diagnostics"). It
// implements error so a Diagnostics with at least one Fatal entry can be
// returned directly, while callers that only care about warnings can
// inspect the slice.
type Diagnostics struct {
	Errors   []error
	Warnings []string
}

// Add appends a diagnostic error.
func (d *Diagnostics) Add(err error) {
	if err != nil {
		d.Errors = append(d.Errors, err)
	}
}

// Warn appends a non-fatal warning message.
func (d *Diagnostics) Warn(msg string) {
	d.Warnings = append(d.Warnings, msg)
}

// HasErrors reports whether any fatal diagnostics were collected.
func (d *Diagnostics) HasErrors() bool { return len(d.Errors) > 0 }

// Err returns d as an error if it carries any fatal diagnostics, else nil.
func (d *Diagnostics) Err() error {
	if !d.HasErrors() {
		return nil
	}
	return d
}

func (d *Diagnostics) Error() string {
	lines := make([]string, len(d.Errors))
	for i, e := range d.Errors {
		lines[i] = e.Error()
	}
	return strings.Join(lines, "\n")
}
