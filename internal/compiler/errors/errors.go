// Package errors collects the located diagnostics produced by the parser,
// linker, semantic analyzer and optimizer.
package errors

import (
	"encoding/json"
	"fmt"
)

// Severity distinguishes fatal diagnostics from advisory ones.
type Severity string

const (
	Error   Severity = "error"
	Warning Severity = "warning"
)

// Diagnostic is a single located message from any pass.
type Diagnostic struct {
	Line     int
	Message  string
	Severity Severity
	Phase    string // "parser", "linker", "semantic", "optimizer", "irgen", "schema"
}

func (d *Diagnostic) Error() string {
	return fmt.Sprintf("[%s] %s (line %d): %s", d.Phase, d.Severity, d.Line, d.Message)
}

// lintEntry is the wire shape for --lint mode.
type lintEntry struct {
	Line     int    `json:"line"`
	Msg      string `json:"msg"`
	Severity string `json:"severity"`
}

// Diagnostics accumulates errors and warnings for one compilation pass or
// for an entire run. Passes that can fail partially (everything except the
// Lexer) take one of these and keep going.
type Diagnostics struct {
	items []*Diagnostic
}

func NewDiagnostics() *Diagnostics {
	return &Diagnostics{}
}

func (d *Diagnostics) Add(phase string, severity Severity, line int, format string, args ...any) {
	d.items = append(d.items, &Diagnostic{
		Line:     line,
		Message:  fmt.Sprintf(format, args...),
		Severity: severity,
		Phase:    phase,
	})
}

func (d *Diagnostics) Errorf(phase string, line int, format string, args ...any) {
	d.Add(phase, Error, line, format, args...)
}

func (d *Diagnostics) Warnf(phase string, line int, format string, args ...any) {
	d.Add(phase, Warning, line, format, args...)
}

// Merge appends another Diagnostics' items onto this one, preserving order.
func (d *Diagnostics) Merge(other *Diagnostics) {
	if other == nil {
		return
	}
	d.items = append(d.items, other.items...)
}

func (d *Diagnostics) HasErrors() bool {
	for _, it := range d.items {
		if it.Severity == Error {
			return true
		}
	}
	return false
}

func (d *Diagnostics) Errors() []*Diagnostic {
	var out []*Diagnostic
	for _, it := range d.items {
		if it.Severity == Error {
			out = append(out, it)
		}
	}
	return out
}

func (d *Diagnostics) Warnings() []*Diagnostic {
	var out []*Diagnostic
	for _, it := range d.items {
		if it.Severity == Warning {
			out = append(out, it)
		}
	}
	return out
}

func (d *Diagnostics) All() []*Diagnostic {
	return d.items
}

// String renders warnings then errors, one per line — the order the driver
// prints them in outside of lint mode.
func (d *Diagnostics) String() string {
	s := ""
	for _, w := range d.Warnings() {
		s += w.Error() + "\n"
	}
	for _, e := range d.Errors() {
		s += e.Error() + "\n"
	}
	return s
}

// LintJSON serializes every accumulated diagnostic as the JSON array shape
// --lint mode prints: {line, msg, severity}.
func (d *Diagnostics) LintJSON() ([]byte, error) {
	entries := make([]lintEntry, 0, len(d.items))
	for _, it := range d.items {
		entries = append(entries, lintEntry{Line: it.Line, Msg: it.Message, Severity: string(it.Severity)})
	}
	return json.MarshalIndent(entries, "", "  ")
}
